package gateway

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"ticket-marketplace/internal/status"
)

// Webhook event types delivered by the gateway.
const (
	EventPaymentSucceeded = "payment.succeeded"
	EventPaymentFailed    = "payment.failed"
	EventAccountUpdated   = "account.updated"
	EventChargeRefunded   = "charge.refunded"
	EventSessionCompleted = "checkout.session.completed"
)

// Event is the envelope of a gateway webhook notification. The gateway
// assigns ID once per physical event; redeliveries reuse it.
type Event struct {
	ID        string          `json:"id"`
	Type      string          `json:"type"`
	CreatedAt time.Time       `json:"created_at"`
	Data      json.RawMessage `json:"data"`
}

// PaymentMetadata is the metadata payload attached to gateway payments at
// session or reference creation time. It is the only correlation channel the
// gateway offers back to registrations.
type PaymentMetadata struct {
	RegistrationIDs string `json:"registration_ids,omitempty"` // comma separated
	InstallmentID   string `json:"installment_id,omitempty"`
	EventID         string `json:"event_id,omitempty"`
}

// RegistrationIDList parses the comma-joined registration ids into a typed,
// validated list.
func (m PaymentMetadata) RegistrationIDList() []string {
	if m.RegistrationIDs == "" {
		return nil
	}
	parts := strings.Split(m.RegistrationIDs, ",")
	ids := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			ids = append(ids, p)
		}
	}
	return ids
}

type PaymentData struct {
	PaymentID     string          `json:"payment_id"`
	Amount        decimal.Decimal `json:"amount"`
	Currency      string          `json:"currency"`
	FailureReason string          `json:"failure_reason,omitempty"`
	Metadata      PaymentMetadata `json:"metadata"`
}

type AccountData struct {
	AccountID        string `json:"account_id"`
	DetailsSubmitted bool   `json:"details_submitted"`
	ChargesEnabled   bool   `json:"charges_enabled"`
	PayoutsEnabled   bool   `json:"payouts_enabled"`
}

type RefundData struct {
	ChargeID       string          `json:"charge_id"`
	PaymentID      string          `json:"payment_id"`
	AmountRefunded decimal.Decimal `json:"amount_refunded"`
	Reason         string          `json:"reason,omitempty"`
}

// ParseEvent verifies the signature against the raw body and only then decodes
// the envelope. The raw bytes must be the unmodified request body.
func ParseEvent(body []byte, signature, secret string) (*Event, error) {
	if !VerifySignature(body, signature, secret) {
		return nil, status.ErrSignatureMismatch
	}

	var ev Event
	if err := json.Unmarshal(body, &ev); err != nil {
		return nil, fmt.Errorf("gateway: decode event: %w", err)
	}
	if ev.ID == "" || ev.Type == "" {
		return nil, fmt.Errorf("gateway: event missing id or type")
	}
	return &ev, nil
}

func (e *Event) Payment() (*PaymentData, error) {
	var d PaymentData
	if err := json.Unmarshal(e.Data, &d); err != nil {
		return nil, fmt.Errorf("gateway: decode payment data: %w", err)
	}
	if d.PaymentID == "" {
		return nil, fmt.Errorf("gateway: payment event %s missing payment_id", e.ID)
	}
	return &d, nil
}

func (e *Event) Account() (*AccountData, error) {
	var d AccountData
	if err := json.Unmarshal(e.Data, &d); err != nil {
		return nil, fmt.Errorf("gateway: decode account data: %w", err)
	}
	if d.AccountID == "" {
		return nil, fmt.Errorf("gateway: account event %s missing account_id", e.ID)
	}
	return &d, nil
}

func (e *Event) Refund() (*RefundData, error) {
	var d RefundData
	if err := json.Unmarshal(e.Data, &d); err != nil {
		return nil, fmt.Errorf("gateway: decode refund data: %w", err)
	}
	return &d, nil
}
