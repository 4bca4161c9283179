package services

import (
	"testing"
	"time"

	"github.com/pocketbase/pocketbase/core"
	"github.com/stretchr/testify/assert"

	"ticket-marketplace/models"
)

func TestTicketTypeFromRecord(t *testing.T) {
	rec := core.NewRecord(core.NewBaseCollection("ticket_types"))
	rec.Id = "tt1"
	rec.Set("event_id", "ev1")
	rec.Set("price", 100.0)
	rec.Set("fee_policy", models.FeePolicyPassedToBuyer)
	rec.Set("quantity", 100)
	rec.Set("quantity_sold", 60)
	rec.Set("max_per_order", 4)
	rec.Set("status", models.TicketTypeStatusActive)

	tt := ticketTypeFromRecord(rec)
	assert.Equal(t, "tt1", tt.ID)
	assert.Equal(t, "ev1", tt.EventID)
	assert.Equal(t, "100", tt.Price.String())
	assert.Equal(t, 40, tt.Available())
	assert.True(t, tt.OnSaleAt(time.Now()), "open-ended sale window")
}

func TestOrganizerFromRecord(t *testing.T) {
	rec := core.NewRecord(core.NewBaseCollection("organizers"))
	rec.Id = "org1"
	rec.Set("gateway_account_id", "acct_1")
	rec.Set("onboarding_complete", true)
	rec.Set("charges_enabled", true)
	rec.Set("payouts_enabled", false)

	organizer := organizerFromRecord(rec)
	assert.Equal(t, "acct_1", organizer.GatewayAccountID)
	assert.False(t, organizer.ReadyForCheckout())

	rec.Set("payouts_enabled", true)
	organizer = organizerFromRecord(rec)
	assert.True(t, organizer.ReadyForCheckout())
}

func TestInstallmentFromRecord(t *testing.T) {
	now := time.Now()

	rec := core.NewRecord(core.NewBaseCollection("installments"))
	rec.Id = "in1"
	rec.Set("registration_id", "reg1")
	rec.Set("installment_number", 2)
	rec.Set("amount", 103.33)
	rec.Set("status", models.InstallmentStatusPending)
	rec.Set("reference_blob", "emv-blob")
	rec.Set("reference_expires", now.Add(time.Hour))

	inst := installmentFromRecord(rec)
	assert.Equal(t, "reg1", inst.RegistrationID)
	assert.Equal(t, 2, inst.Number)
	assert.True(t, inst.ReferenceValidAt(now))

	rec.Set("reference_expires", now.Add(-time.Hour))
	inst = installmentFromRecord(rec)
	assert.False(t, inst.ReferenceValidAt(now))
}
