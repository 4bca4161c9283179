package models

import (
	"github.com/shopspring/decimal"
)

// FeeConfig holds the platform-wide fee settings read at checkout time.
// Amounts computed from it are snapshotted onto the registration so later
// config changes never affect an existing purchase.
type FeeConfig struct {
	PlatformPct  decimal.Decimal `json:"platform_fee_percentage"`
	GatewayPct   decimal.Decimal `json:"gateway_percentage_fee"`
	GatewayFixed decimal.Decimal `json:"gateway_fixed_fee"`
}

// FeeBreakdown is the per-unit result of a fee computation.
type FeeBreakdown struct {
	TicketPrice    decimal.Decimal `json:"ticket_price"`
	ConvenienceFee decimal.Decimal `json:"convenience_fee"`
	BuyerPrice     decimal.Decimal `json:"buyer_price"`
	GatewayFee     decimal.Decimal `json:"gateway_fee"`
	PlatformFee    decimal.Decimal `json:"platform_fee"`
	OrganizerNet   decimal.Decimal `json:"organizer_net"`
}
