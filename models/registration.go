package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type Registration struct {
	ID           string `json:"id"`
	EventID      string `json:"event_id"`
	TicketTypeID string `json:"ticket_type_id"`

	ParticipantName     string `json:"participant_name"`
	ParticipantEmail    string `json:"participant_email"`
	ParticipantPhone    string `json:"participant_phone,omitempty"`
	ParticipantDocument string `json:"participant_document,omitempty"`

	Quantity      int             `json:"quantity"`
	UnitPrice     decimal.Decimal `json:"unit_price"`
	GatewayFee    decimal.Decimal `json:"gateway_fee"`
	PlatformFee   decimal.Decimal `json:"platform_fee"`
	OrganizerNet  decimal.Decimal `json:"organizer_net"`
	TotalAmount   decimal.Decimal `json:"total_amount"`
	PaymentMethod string          `json:"payment_method"` // card, bank_transfer

	Status        string `json:"status"`         // pending, confirmed, partial_payment, payment_overdue, failed, cancelled
	PaymentStatus string `json:"payment_status"` // pending, paid, failed, refunded
	BlockedReason string `json:"blocked_reason,omitempty"`

	TicketCode        string `json:"ticket_code,omitempty"`
	GatewaySessionID  string `json:"gateway_session_id,omitempty"`
	GatewayPaymentID  string `json:"gateway_payment_id,omitempty"`
	InventoryReserved bool   `json:"inventory_reserved"`

	IsInstallmentPayment bool   `json:"is_installment_payment"`
	TotalInstallments    int    `json:"total_installments,omitempty"`
	InstallmentPlan      string `json:"installment_plan_status,omitempty"` // active, completed

	CreatedAt   time.Time  `json:"created_at"`
	ConfirmedAt *time.Time `json:"confirmed_at,omitempty"`
}

const (
	RegistrationStatusPending        = "pending"
	RegistrationStatusConfirmed      = "confirmed"
	RegistrationStatusPartialPayment = "partial_payment"
	RegistrationStatusOverdue        = "payment_overdue"
	RegistrationStatusFailed         = "failed"
	RegistrationStatusCancelled      = "cancelled"

	PaymentStatusPending  = "pending"
	PaymentStatusPaid     = "paid"
	PaymentStatusFailed   = "failed"
	PaymentStatusRefunded = "refunded"

	PaymentMethodCard         = "card"
	PaymentMethodBankTransfer = "bank_transfer"

	InstallmentPlanActive    = "active"
	InstallmentPlanCompleted = "completed"
)
