package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type CheckoutItem struct {
	TicketTypeID string `json:"ticket_type_id" validate:"required"`
	Quantity     int    `json:"quantity" validate:"required,min=1"`
}

type Participant struct {
	Name     string `json:"name" validate:"required"`
	Email    string `json:"email" validate:"required,email"`
	Phone    string `json:"phone,omitempty" validate:"omitempty,min=8"`
	Document string `json:"document,omitempty"`
}

type CheckoutRequest struct {
	EventID     string         `json:"event_id" validate:"required"`
	Items       []CheckoutItem `json:"items" validate:"required,min=1,dive"`
	Participant Participant    `json:"participant" validate:"required"`
}

type CheckoutResponse struct {
	SessionURL      string   `json:"session_url"`
	RegistrationIDs []string `json:"registration_ids"`
}

type InstallmentCheckoutRequest struct {
	TicketTypeID string      `json:"ticket_type_id" validate:"required"`
	Quantity     int         `json:"quantity" validate:"required,min=1"`
	Installments int         `json:"installments" validate:"required,min=2,max=12"`
	Participant  Participant `json:"participant" validate:"required"`
}

type InstallmentSummary struct {
	ID      string          `json:"id"`
	Number  int             `json:"installment_number"`
	Amount  decimal.Decimal `json:"amount"`
	DueDate time.Time       `json:"due_date"`
}

type InstallmentCheckoutResponse struct {
	RegistrationID string               `json:"registration_id"`
	TotalAmount    decimal.Decimal      `json:"total_amount"`
	Installments   []InstallmentSummary `json:"installments"`
	FirstReference *PayableReference    `json:"first_installment"`
}

// PayableReference is a time-boxed code representing one installment's amount due.
type PayableReference struct {
	InstallmentID string          `json:"installment_id"`
	ReferenceBlob string          `json:"reference_blob"`
	ReferenceCode string          `json:"human_readable_code"`
	Amount        decimal.Decimal `json:"amount"`
	ExpiresAt     time.Time       `json:"expires_at"`
}
