package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestTicketTypeAvailable(t *testing.T) {
	tt := TicketType{Quantity: 100, QuantitySold: 60}
	assert.Equal(t, 40, tt.Available())

	tt.QuantitySold = 100
	assert.Equal(t, 0, tt.Available())

	// An over-commit never reports negative availability
	tt.QuantitySold = 120
	assert.Equal(t, 0, tt.Available())
}

func TestTicketTypeOnSaleAt(t *testing.T) {
	now := time.Date(2026, 8, 15, 12, 0, 0, 0, time.UTC)

	tt := TicketType{
		Status:    TicketTypeStatusActive,
		SaleStart: now.Add(-24 * time.Hour),
		SaleEnd:   now.Add(24 * time.Hour),
	}
	assert.True(t, tt.OnSaleAt(now))

	assert.False(t, tt.OnSaleAt(now.Add(-48*time.Hour)), "before sale start")
	assert.False(t, tt.OnSaleAt(now.Add(48*time.Hour)), "after sale end")

	tt.Status = TicketTypeStatusInactive
	assert.False(t, tt.OnSaleAt(now), "inactive ticket type")

	// Open-ended windows
	open := TicketType{Status: TicketTypeStatusActive}
	assert.True(t, open.OnSaleAt(now))
}

func TestOrganizerReadyForCheckout(t *testing.T) {
	org := Organizer{
		OnboardingComplete: true,
		ChargesEnabled:     true,
		PayoutsEnabled:     true,
	}
	assert.True(t, org.ReadyForCheckout())

	// All three flags are required; any one missing blocks checkout
	for _, flip := range []func(*Organizer){
		func(o *Organizer) { o.OnboardingComplete = false },
		func(o *Organizer) { o.ChargesEnabled = false },
		func(o *Organizer) { o.PayoutsEnabled = false },
	} {
		o := org
		flip(&o)
		assert.False(t, o.ReadyForCheckout())
	}
}

func TestInstallmentReferenceValidAt(t *testing.T) {
	now := time.Now()

	inst := Installment{ReferenceBlob: "emv-blob", ReferenceExpires: now.Add(time.Hour)}
	assert.True(t, inst.ReferenceValidAt(now))

	inst.ReferenceExpires = now.Add(-time.Minute)
	assert.False(t, inst.ReferenceValidAt(now), "expired reference")

	inst = Installment{ReferenceExpires: now.Add(time.Hour)}
	assert.False(t, inst.ReferenceValidAt(now), "no blob stored yet")
}
