package status

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

var (
	ErrOrganizerNotEnabled = errors.New("organizer: payment account not enabled for charges")
	ErrTicketUnavailable   = errors.New("ticket: not on sale")
	ErrRateLimited         = errors.New("reference: regeneration rate limit exceeded")
	ErrAlreadySettled      = errors.New("installment: already settled")
	ErrSignatureMismatch   = errors.New("webhook: signature verification failed")
	ErrGatewayUnavailable  = errors.New("gateway: request failed")
)

// InsufficientStockError is returned by a failed reservation and carries
// the quantity still available for client display.
type InsufficientStockError struct {
	TicketTypeID string
	Requested    int
	Available    int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("stock: %d requested but only %d available for ticket type %s",
		e.Requested, e.Available, e.TicketTypeID)
}

// QuantityLimitError reports a violated per-purchase min/max.
type QuantityLimitError struct {
	TicketTypeID string
	Requested    int
	Min          int
	Max          int
}

func (e *QuantityLimitError) Error() string {
	return fmt.Sprintf("quantity: %d outside allowed range [%d, %d] for ticket type %s",
		e.Requested, e.Min, e.Max, e.TicketTypeID)
}

// Transaction is a settled deferred-rail payment received over the gateway's
// realtime notification channel.
type Transaction struct {
	RefID         string
	UUID          string
	Payer         string
	AccountNumber string
	Ccy           string
	Amount        decimal.Decimal
	CreatedAt     time.Time
}
