package models

type Organizer struct {
	ID                 string `json:"id"`
	Name               string `json:"name"`
	Email              string `json:"email"`
	Status             string `json:"status"` // pending, active, suspended
	GatewayAccountID   string `json:"gateway_account_id"`
	OnboardingComplete bool   `json:"onboarding_complete"`
	ChargesEnabled     bool   `json:"charges_enabled"`
	PayoutsEnabled     bool   `json:"payouts_enabled"`
}

const (
	OrganizerStatusPending   = "pending"
	OrganizerStatusActive    = "active"
	OrganizerStatusSuspended = "suspended"
)

// ReadyForCheckout reports whether every gateway readiness flag is set.
// The flags are written only by the account-updated webhook handler.
func (o *Organizer) ReadyForCheckout() bool {
	return o.OnboardingComplete && o.ChargesEnabled && o.PayoutsEnabled
}
