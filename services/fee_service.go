package services

import (
	"fmt"

	"github.com/shopspring/decimal"

	"ticket-marketplace/models"
)

var (
	oneHundred = decimal.NewFromInt(100)
	one        = decimal.NewFromInt(1)
)

// FeeService computes the buyer/organizer/platform split for one ticket unit.
// It is pure: no storage, no clock, no gateway.
type FeeService struct{}

func NewFeeService() *FeeService {
	return &FeeService{}
}

// Calculate converts a base ticket price and a fee-absorption policy into the
// full fee breakdown. Each derived quantity is rounded to cents half-up as it
// is produced, so the amounts shown to the buyer before the charge reproduce
// exactly at settlement.
//
// passed_to_buyer: the convenience fee F satisfies buyerPrice = price + F with
// F = (price*(gatewayPct+platformPct) + gatewayFixed) / (1 - gatewayPct), so
// the organizer is not the one funding the fees. absorbed: buyerPrice = price
// and the organizer nets less than the nominal price.
func (s *FeeService) Calculate(price decimal.Decimal, feePolicy string, cfg models.FeeConfig) (models.FeeBreakdown, error) {
	if !price.IsPositive() {
		return models.FeeBreakdown{}, fmt.Errorf("fees: ticket price must be positive, got %s", price)
	}
	if err := validatePct(cfg.PlatformPct, "platform"); err != nil {
		return models.FeeBreakdown{}, err
	}
	if err := validatePct(cfg.GatewayPct, "gateway"); err != nil {
		return models.FeeBreakdown{}, err
	}
	if cfg.GatewayFixed.IsNegative() {
		return models.FeeBreakdown{}, fmt.Errorf("fees: negative gateway fixed fee %s", cfg.GatewayFixed)
	}

	platformPct := cfg.PlatformPct.Div(oneHundred)
	gatewayPct := cfg.GatewayPct.Div(oneHundred)

	var convenienceFee decimal.Decimal
	switch feePolicy {
	case models.FeePolicyPassedToBuyer:
		convenienceFee = price.Mul(gatewayPct.Add(platformPct)).
			Add(cfg.GatewayFixed).
			Div(one.Sub(gatewayPct)).
			Round(2)
	case models.FeePolicyAbsorbed:
		convenienceFee = decimal.Zero
	default:
		return models.FeeBreakdown{}, fmt.Errorf("fees: unknown fee policy %q", feePolicy)
	}

	buyerPrice := price.Add(convenienceFee).Round(2)
	gatewayFee := buyerPrice.Mul(gatewayPct).Add(cfg.GatewayFixed).Round(2)
	platformFee := price.Mul(platformPct).Round(2)
	organizerNet := buyerPrice.Sub(gatewayFee).Sub(platformFee)

	// A config that produces a negative fee is fatal to the checkout, never
	// silently clamped. A negative net is a valid outcome of absorbing fees
	// on a cheap ticket; the organizer wears it.
	if convenienceFee.IsNegative() || gatewayFee.IsNegative() || platformFee.IsNegative() {
		return models.FeeBreakdown{}, fmt.Errorf("fees: config produced a negative fee for price %s", price)
	}

	return models.FeeBreakdown{
		TicketPrice:    price,
		ConvenienceFee: convenienceFee,
		BuyerPrice:     buyerPrice,
		GatewayFee:     gatewayFee,
		PlatformFee:    platformFee,
		OrganizerNet:   organizerNet,
	}, nil
}

func validatePct(pct decimal.Decimal, name string) error {
	if pct.IsNegative() || pct.GreaterThan(oneHundred) {
		return fmt.Errorf("fees: %s percentage %s outside 0-100", name, pct)
	}
	return nil
}
