package services

import (
	"context"

	"github.com/pocketbase/dbx"
	"github.com/pocketbase/pocketbase/core"
	"github.com/shopspring/decimal"

	"ticket-marketplace/models"
)

// recordStore is the slice of core.App the services read and write records
// through. core.App satisfies it.
type recordStore interface {
	FindRecordById(collectionModelOrIdentifier any, recordId string, optFilters ...func(q *dbx.SelectQuery) error) (*core.Record, error)
	FindFirstRecordByFilter(collectionModelOrIdentifier any, filter string, params ...dbx.Params) (*core.Record, error)
	FindRecordsByFilter(collectionModelOrIdentifier any, filter string, sort string, limit int, offset int, params ...dbx.Params) ([]*core.Record, error)
	FindCollectionByNameOrId(nameOrId string) (*core.Collection, error)
	SaveWithContext(ctx context.Context, model core.Model) error
}

// Stored records are decoded into domain structs at this boundary so the
// business rules live on the typed models, not on raw record lookups.

func eventFromRecord(rec *core.Record) models.Event {
	return models.Event{
		ID:          rec.Id,
		OrganizerID: rec.GetString("organizer_id"),
		Title:       rec.GetString("title"),
		Description: rec.GetString("description"),
		Venue:       rec.GetString("venue"),
		StartTime:   rec.GetDateTime("starts_at").Time(),
		EndTime:     rec.GetDateTime("ends_at").Time(),
		Status:      rec.GetString("status"),
	}
}

func organizerFromRecord(rec *core.Record) models.Organizer {
	return models.Organizer{
		ID:                 rec.Id,
		Name:               rec.GetString("name"),
		Email:              rec.GetString("email"),
		Status:             rec.GetString("status"),
		GatewayAccountID:   rec.GetString("gateway_account_id"),
		OnboardingComplete: rec.GetBool("onboarding_complete"),
		ChargesEnabled:     rec.GetBool("charges_enabled"),
		PayoutsEnabled:     rec.GetBool("payouts_enabled"),
	}
}

func ticketTypeFromRecord(rec *core.Record) models.TicketType {
	return models.TicketType{
		ID:           rec.Id,
		EventID:      rec.GetString("event_id"),
		Title:        rec.GetString("title"),
		Price:        decimal.NewFromFloat(rec.GetFloat("price")),
		FeePolicy:    rec.GetString("fee_policy"),
		Quantity:     rec.GetInt("quantity"),
		QuantitySold: rec.GetInt("quantity_sold"),
		MinPerOrder:  rec.GetInt("min_per_order"),
		MaxPerOrder:  rec.GetInt("max_per_order"),
		SaleStart:    rec.GetDateTime("sale_start").Time(),
		SaleEnd:      rec.GetDateTime("sale_end").Time(),
		Status:       rec.GetString("status"),

		AllowInstallments:        rec.GetBool("allow_installments"),
		MaxInstallments:          rec.GetInt("max_installments"),
		MinAmountForInstallments: decimal.NewFromFloat(rec.GetFloat("min_amount_for_installments")),
	}
}

func registrationFromRecord(rec *core.Record) models.Registration {
	return models.Registration{
		ID:           rec.Id,
		EventID:      rec.GetString("event_id"),
		TicketTypeID: rec.GetString("ticket_type_id"),

		ParticipantName:     rec.GetString("participant_name"),
		ParticipantEmail:    rec.GetString("participant_email"),
		ParticipantPhone:    rec.GetString("participant_phone"),
		ParticipantDocument: rec.GetString("participant_document"),

		Quantity:      rec.GetInt("quantity"),
		UnitPrice:     decimal.NewFromFloat(rec.GetFloat("unit_price")),
		GatewayFee:    decimal.NewFromFloat(rec.GetFloat("gateway_fee")),
		PlatformFee:   decimal.NewFromFloat(rec.GetFloat("platform_fee")),
		OrganizerNet:  decimal.NewFromFloat(rec.GetFloat("organizer_net")),
		TotalAmount:   decimal.NewFromFloat(rec.GetFloat("total_amount")),
		PaymentMethod: rec.GetString("payment_method"),

		Status:        rec.GetString("status"),
		PaymentStatus: rec.GetString("payment_status"),
		BlockedReason: rec.GetString("blocked_reason"),

		TicketCode:        rec.GetString("ticket_code"),
		GatewaySessionID:  rec.GetString("gateway_session_id"),
		GatewayPaymentID:  rec.GetString("gateway_payment_id"),
		InventoryReserved: rec.GetBool("inventory_reserved"),

		IsInstallmentPayment: rec.GetBool("is_installment_payment"),
		TotalInstallments:    rec.GetInt("total_installments"),
		InstallmentPlan:      rec.GetString("installment_plan_status"),

		CreatedAt: rec.GetDateTime("created").Time(),
	}
}

func installmentFromRecord(rec *core.Record) models.Installment {
	return models.Installment{
		ID:                rec.Id,
		RegistrationID:    rec.GetString("registration_id"),
		Number:            rec.GetInt("installment_number"),
		TotalInstallments: rec.GetInt("total_installments"),
		Amount:            decimal.NewFromFloat(rec.GetFloat("amount")),
		DueDate:           rec.GetDateTime("due_date").Time(),
		Status:            rec.GetString("status"),

		ReferenceBlob:    rec.GetString("reference_blob"),
		ReferenceCode:    rec.GetString("reference_code"),
		GatewayPaymentID: rec.GetString("gateway_payment_id"),
		ReferenceExpires: rec.GetDateTime("reference_expires").Time(),
	}
}
