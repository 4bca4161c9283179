package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type Installment struct {
	ID                string          `json:"id"`
	RegistrationID    string          `json:"registration_id"`
	Number            int             `json:"installment_number"` // 1..TotalInstallments
	TotalInstallments int             `json:"total_installments"`
	Amount            decimal.Decimal `json:"amount"`
	DueDate           time.Time       `json:"due_date"`
	Status            string          `json:"status"` // pending, paid, cancelled

	// Currently active payable reference, if any.
	ReferenceBlob    string    `json:"reference_blob,omitempty"`
	ReferenceCode    string    `json:"reference_code,omitempty"`
	GatewayPaymentID string    `json:"gateway_payment_id,omitempty"`
	ReferenceExpires time.Time `json:"reference_expires_at,omitempty"`

	PaidAt *time.Time `json:"paid_at,omitempty"`
}

const (
	InstallmentStatusPending   = "pending"
	InstallmentStatusPaid      = "paid"
	InstallmentStatusCancelled = "cancelled"
)

// ReferenceValidAt reports whether the stored payable reference can still be
// handed back to the buyer instead of requesting a fresh one.
func (i *Installment) ReferenceValidAt(now time.Time) bool {
	return i.ReferenceBlob != "" && now.Before(i.ReferenceExpires)
}
