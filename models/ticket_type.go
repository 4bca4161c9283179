package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type TicketType struct {
	ID           string          `json:"id"`
	EventID      string          `json:"event_id"`
	Title        string          `json:"title"`
	Price        decimal.Decimal `json:"price"`
	FeePolicy    string          `json:"fee_policy"` // absorbed, passed_to_buyer
	Quantity     int             `json:"quantity"`
	QuantitySold int             `json:"quantity_sold"`
	MinPerOrder  int             `json:"min_per_order"`
	MaxPerOrder  int             `json:"max_per_order"`
	SaleStart    time.Time       `json:"sale_start"`
	SaleEnd      time.Time       `json:"sale_end"`
	Status       string          `json:"status"` // active, inactive

	AllowInstallments        bool            `json:"allow_installments"`
	MaxInstallments          int             `json:"max_installments"`
	MinAmountForInstallments decimal.Decimal `json:"min_amount_for_installments"`
}

const (
	FeePolicyAbsorbed      = "absorbed"
	FeePolicyPassedToBuyer = "passed_to_buyer"

	TicketTypeStatusActive   = "active"
	TicketTypeStatusInactive = "inactive"
)

func (t *TicketType) Available() int {
	avail := t.Quantity - t.QuantitySold
	if avail < 0 {
		return 0
	}
	return avail
}

func (t *TicketType) OnSaleAt(now time.Time) bool {
	if t.Status != TicketTypeStatusActive {
		return false
	}
	if !t.SaleStart.IsZero() && now.Before(t.SaleStart) {
		return false
	}
	if !t.SaleEnd.IsZero() && now.After(t.SaleEnd) {
		return false
	}
	return true
}
