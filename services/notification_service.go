package services

import (
	"log/slog"
	"time"

	pubnub "github.com/pubnub/go"
	"github.com/shopspring/decimal"

	"ticket-marketplace/internal/gateway"
)

// Publisher dispatches one notification payload to the out-of-scope
// notification service. Rendering and delivery happen on the other side.
type Publisher interface {
	Publish(channel string, message map[string]any) error
}

type pubnubPublisher struct {
	pn *pubnub.PubNub
}

func NewPubNubPublisher(pn *pubnub.PubNub) Publisher {
	return &pubnubPublisher{pn: pn}
}

func (p *pubnubPublisher) Publish(channel string, message map[string]any) error {
	_, _, err := p.pn.Publish().
		Channel(channel).
		Message(message).
		Execute()
	return err
}

type NotificationService struct {
	publisher    Publisher
	channel      string
	verifySecret string
}

func NewNotificationService(publisher Publisher, channel, verifySecret string) *NotificationService {
	return &NotificationService{
		publisher:    publisher,
		channel:      channel,
		verifySecret: verifySecret,
	}
}

// TicketConfirmation is the structured payload for a confirmed purchase.
type TicketConfirmation struct {
	RegistrationID   string
	ParticipantName  string
	ParticipantEmail string
	EventTitle       string
	TicketTitle      string
	Quantity         int
	TotalAmount      decimal.Decimal
	TicketCode       string
}

// SendTicketConfirmation dispatches a confirmation request. It is called
// fire-and-forget: a failure here is logged and never rolls back the
// confirmed registration.
func (s *NotificationService) SendTicketConfirmation(n TicketConfirmation) {
	payload := map[string]any{
		"type":              "ticket_confirmation",
		"registration_id":   n.RegistrationID,
		"participant_name":  n.ParticipantName,
		"participant_email": n.ParticipantEmail,
		"event_title":       n.EventTitle,
		"ticket_title":      n.TicketTitle,
		"quantity":          n.Quantity,
		"total_amount":      n.TotalAmount.StringFixed(2),
		"ticket_code":       n.TicketCode,
		"verification_ref":  s.verificationRef(n.TicketCode),
		"sent_at":           time.Now().UTC().Format(time.RFC3339),
	}

	if err := s.publisher.Publish(s.channel, payload); err != nil {
		slog.Error("notification dispatch failed", "registration_id", n.RegistrationID, "error", err)
	}
}

// SendInstallmentReceipt dispatches a per-installment payment receipt.
func (s *NotificationService) SendInstallmentReceipt(registrationID, email string, number, total int, amount decimal.Decimal) {
	payload := map[string]any{
		"type":               "installment_receipt",
		"registration_id":    registrationID,
		"participant_email":  email,
		"installment_number": number,
		"total_installments": total,
		"amount":             amount.StringFixed(2),
		"sent_at":            time.Now().UTC().Format(time.RFC3339),
	}

	if err := s.publisher.Publish(s.channel, payload); err != nil {
		slog.Error("installment receipt dispatch failed", "registration_id", registrationID, "error", err)
	}
}

// verificationRef derives a short code ticket scanners can check without a
// database round trip.
func (s *NotificationService) verificationRef(ticketCode string) string {
	sum := gateway.Hmac256([]byte(ticketCode), []byte(s.verifySecret))
	if len(sum) > 8 {
		sum = sum[:8]
	}
	return sum
}
