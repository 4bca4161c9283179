package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/pocketbase/dbx"
	"github.com/pocketbase/pocketbase/core"
	"github.com/shopspring/decimal"

	"ticket-marketplace/config"
	"ticket-marketplace/internal/gateway"
	"ticket-marketplace/internal/status"
	"ticket-marketplace/models"
	"ticket-marketplace/monitoring"
	"ticket-marketplace/security"
	"ticket-marketplace/utils"
)

// InstallmentService splits a registration's total into a monthly payment
// plan and manages the time-boxed payable references each installment is
// paid against.
// referenceIssuer creates payable references at the gateway.
// *gateway.Gateway satisfies it.
type referenceIssuer interface {
	GeneratePayableReference(ctx context.Context, req *gateway.ReferenceRequest) (*gateway.Reference, error)
}

type InstallmentService struct {
	app       recordStore
	fees      *FeeService
	inventory *InventoryService
	gateway   referenceIssuer
	checkout  *CheckoutService
	limiter   *security.ReferenceLimiter
	breaker   *utils.CircuitBreaker
	cfg       *config.Config
}

func NewInstallmentService(
	app recordStore,
	fees *FeeService,
	inventory *InventoryService,
	gw referenceIssuer,
	checkout *CheckoutService,
	limiter *security.ReferenceLimiter,
	cfg *config.Config,
) *InstallmentService {
	return &InstallmentService{
		app:       app,
		fees:      fees,
		inventory: inventory,
		gateway:   gw,
		checkout:  checkout,
		limiter:   limiter,
		breaker:   utils.NewCircuitBreaker("gateway-reference"),
		cfg:       cfg,
	}
}

// SplitAmount divides total into n equal two-decimal installments. The
// rounding remainder is absorbed by the first installment so the parts
// always sum to the exact total.
func SplitAmount(total decimal.Decimal, n int) ([]decimal.Decimal, error) {
	if n < 1 {
		return nil, fmt.Errorf("installment count must be positive, got %d", n)
	}
	base := total.Div(decimal.NewFromInt(int64(n))).RoundDown(2)
	first := total.Sub(base.Mul(decimal.NewFromInt(int64(n - 1))))

	amounts := make([]decimal.Decimal, n)
	amounts[0] = first
	for i := 1; i < n; i++ {
		amounts[i] = base
	}
	return amounts, nil
}

// Checkout opens an installment purchase: validates plan eligibility,
// reserves stock, creates the registration plus its installment schedule and
// returns a payable reference for the first installment.
func (s *InstallmentService) Checkout(ctx context.Context, req models.InstallmentCheckoutRequest) (*models.InstallmentCheckoutResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.CheckoutTimeout)
	defer cancel()

	tt, err := s.app.FindRecordById("ticket_types", req.TicketTypeID)
	if err != nil {
		return nil, fmt.Errorf("installment checkout: ticket type %s: %w", req.TicketTypeID, err)
	}

	eventRec, err := s.app.FindRecordById("events", tt.GetString("event_id"))
	if err != nil {
		return nil, fmt.Errorf("installment checkout: event: %w", err)
	}
	event := eventFromRecord(eventRec)
	if event.Status != models.EventStatusPublished {
		return nil, status.ErrTicketUnavailable
	}

	organizer, err := s.app.FindRecordById("organizers", event.OrganizerID)
	if err != nil {
		return nil, fmt.Errorf("installment checkout: organizer: %w", err)
	}
	if !organizerReady(organizer) {
		return nil, status.ErrOrganizerNotEnabled
	}

	now := time.Now()
	if err := checkOnSale(tt, now); err != nil {
		return nil, err
	}
	if err := checkQuantityLimits(tt, req.Quantity); err != nil {
		return nil, err
	}
	if err := checkInstallmentPlan(tt, req.Installments); err != nil {
		return nil, err
	}

	price := decimal.NewFromFloat(tt.GetFloat("price"))
	breakdown, err := s.fees.Calculate(price, tt.GetString("fee_policy"), s.checkout.LoadFeeConfig())
	if err != nil {
		return nil, err
	}

	qty := decimal.NewFromInt(int64(req.Quantity))
	total := breakdown.BuyerPrice.Mul(qty)
	if min := decimal.NewFromFloat(tt.GetFloat("min_amount_for_installments")); min.IsPositive() && total.LessThan(min) {
		return nil, fmt.Errorf("total %s below the installment minimum %s", total, min)
	}

	amounts, err := SplitAmount(total, req.Installments)
	if err != nil {
		return nil, err
	}

	if err := s.inventory.TryReserve(ctx, tt.Id, req.Quantity); err != nil {
		return nil, err
	}
	release := func() {
		if err := s.inventory.Release(ctx, tt.Id, req.Quantity); err != nil {
			slog.Error("failed to release reservation", "ticket_type_id", tt.Id, "error", err)
		}
	}

	reg, err := s.createPlanRegistration(ctx, req, tt, breakdown, total)
	if err != nil {
		release()
		return nil, err
	}

	installments, err := s.createSchedule(ctx, reg.Id, req.Installments, amounts, now)
	if err != nil {
		s.checkout.abandonRegistrations(ctx, []*core.Record{reg})
		release()
		return nil, err
	}

	summaries := make([]models.InstallmentSummary, len(installments))
	for i, in := range installments {
		summaries[i] = models.InstallmentSummary{
			ID:      in.Id,
			Number:  in.GetInt("installment_number"),
			Amount:  decimal.NewFromFloat(in.GetFloat("amount")),
			DueDate: in.GetDateTime("due_date").Time(),
		}
	}

	// The first installment gets its reference immediately so the buyer can
	// pay straight from the checkout response. Failing here is not fatal:
	// the reference can be regenerated on demand.
	first, err := s.GenerateReference(ctx, installments[0].Id)
	if err != nil {
		slog.Warn("could not issue first installment reference", "registration_id", reg.Id, "error", err)
	}

	slog.Info("installment plan created",
		"registration_id", reg.Id,
		"installments", req.Installments,
		"total", total,
	)

	return &models.InstallmentCheckoutResponse{
		RegistrationID: reg.Id,
		TotalAmount:    total,
		Installments:   summaries,
		FirstReference: first,
	}, nil
}

func checkInstallmentPlan(rec *core.Record, n int) error {
	tt := ticketTypeFromRecord(rec)
	if !tt.AllowInstallments {
		return fmt.Errorf("ticket type %s does not allow installment payment", tt.ID)
	}
	max := tt.MaxInstallments
	if max <= 0 {
		max = 12
	}
	if n < 2 || n > max {
		return fmt.Errorf("installment count %d outside allowed range 2..%d", n, max)
	}
	return nil
}

func (s *InstallmentService) createPlanRegistration(
	ctx context.Context,
	req models.InstallmentCheckoutRequest,
	tt *core.Record,
	breakdown models.FeeBreakdown,
	total decimal.Decimal,
) (*core.Record, error) {
	collection, err := s.app.FindCollectionByNameOrId("registrations")
	if err != nil {
		return nil, fmt.Errorf("installment checkout: registrations collection: %w", err)
	}

	qty := decimal.NewFromInt(int64(req.Quantity))

	rec := core.NewRecord(collection)
	rec.Set("event_id", tt.GetString("event_id"))
	rec.Set("ticket_type_id", tt.Id)
	rec.Set("participant_name", req.Participant.Name)
	rec.Set("participant_email", req.Participant.Email)
	rec.Set("participant_phone", req.Participant.Phone)
	rec.Set("participant_document", req.Participant.Document)
	rec.Set("quantity", req.Quantity)
	rec.Set("unit_price", breakdown.BuyerPrice.InexactFloat64())
	rec.Set("gateway_fee", breakdown.GatewayFee.Mul(qty).InexactFloat64())
	rec.Set("platform_fee", breakdown.PlatformFee.Mul(qty).InexactFloat64())
	rec.Set("organizer_net", breakdown.OrganizerNet.Mul(qty).InexactFloat64())
	rec.Set("total_amount", total.InexactFloat64())
	rec.Set("payment_method", models.PaymentMethodBankTransfer)
	rec.Set("status", models.RegistrationStatusPending)
	rec.Set("payment_status", models.PaymentStatusPending)
	rec.Set("inventory_reserved", true)
	rec.Set("is_installment_payment", true)
	rec.Set("total_installments", req.Installments)
	rec.Set("installment_plan_status", models.InstallmentPlanActive)

	if err := s.app.SaveWithContext(ctx, rec); err != nil {
		return nil, fmt.Errorf("installment checkout: create registration: %w", err)
	}
	return rec, nil
}

func (s *InstallmentService) createSchedule(ctx context.Context, registrationID string, n int, amounts []decimal.Decimal, start time.Time) ([]*core.Record, error) {
	collection, err := s.app.FindCollectionByNameOrId("installments")
	if err != nil {
		return nil, fmt.Errorf("installments collection: %w", err)
	}

	created := make([]*core.Record, 0, n)
	for i := 0; i < n; i++ {
		rec := core.NewRecord(collection)
		rec.Set("registration_id", registrationID)
		rec.Set("installment_number", i+1)
		rec.Set("total_installments", n)
		rec.Set("amount", amounts[i].InexactFloat64())
		rec.Set("due_date", start.AddDate(0, i, 0))
		rec.Set("status", models.InstallmentStatusPending)

		if err := s.app.SaveWithContext(ctx, rec); err != nil {
			return nil, fmt.Errorf("create installment %d: %w", i+1, err)
		}
		created = append(created, rec)
	}
	return created, nil
}

// GenerateReference returns a payable reference for a pending installment,
// reusing the current one while it is still inside its validity window.
func (s *InstallmentService) GenerateReference(ctx context.Context, installmentID string) (*models.PayableReference, error) {
	rec, err := s.app.FindRecordById("installments", installmentID)
	if err != nil {
		return nil, fmt.Errorf("installment %s: %w", installmentID, err)
	}
	inst := installmentFromRecord(rec)

	switch inst.Status {
	case models.InstallmentStatusPaid:
		return nil, status.ErrAlreadySettled
	case models.InstallmentStatusCancelled:
		monitoring.TrackPayableReference("cancelled")
		return nil, fmt.Errorf("installment %s is cancelled", installmentID)
	}

	// Reuse before rate limiting: returning the live reference costs nothing
	// and keeps retry-happy clients off the gateway.
	if inst.ReferenceValidAt(time.Now()) {
		monitoring.TrackPayableReference("reused")
		return &models.PayableReference{
			InstallmentID: inst.ID,
			ReferenceBlob: inst.ReferenceBlob,
			ReferenceCode: inst.ReferenceCode,
			Amount:        inst.Amount,
			ExpiresAt:     inst.ReferenceExpires,
		}, nil
	}
	amount := inst.Amount

	if err := s.limiter.Allow(ctx, installmentID); err != nil {
		monitoring.TrackPayableReference("rate_limited")
		return nil, err
	}

	reg, err := s.app.FindRecordById("registrations", inst.RegistrationID)
	if err != nil {
		return nil, fmt.Errorf("registration for installment %s: %w", installmentID, err)
	}
	organizer, err := s.organizerForRegistration(reg)
	if err != nil {
		return nil, err
	}

	// Per-installment platform share keeps the split proportional across the
	// whole plan.
	totalAmount := decimal.NewFromFloat(reg.GetFloat("total_amount"))
	platformFee := decimal.Zero
	if totalAmount.IsPositive() {
		platformFee = decimal.NewFromFloat(reg.GetFloat("platform_fee")).
			Mul(amount).Div(totalAmount).Round(2)
	}

	label, err := utils.GenerateReferenceLabel(fmt.Sprintf("INST %d/%d", inst.Number, inst.TotalInstallments))
	if err != nil {
		return nil, fmt.Errorf("reference label: %w", err)
	}

	result, err := s.breaker.Execute(ctx, func() (interface{}, error) {
		return s.gateway.GeneratePayableReference(ctx, &gateway.ReferenceRequest{
			UUID:               inst.ID,
			Amount:             amount,
			ReferenceLabel:     label,
			DestinationAccount: organizer.GetString("gateway_account_id"),
			PlatformFee:        platformFee,
			ExpirySeconds:      int(s.cfg.ReferenceTTL.Seconds()),
			Metadata: gateway.PaymentMetadata{
				InstallmentID: inst.ID,
			},
		})
	})
	if err != nil {
		monitoring.TrackPayableReference("gateway_error")
		return nil, fmt.Errorf("%w: %v", status.ErrGatewayUnavailable, err)
	}
	ref := result.(*gateway.Reference)

	expires := time.Now().Add(s.cfg.ReferenceTTL)
	rec.Set("reference_blob", ref.Blob)
	rec.Set("reference_code", ref.Code)
	rec.Set("gateway_payment_id", ref.PaymentID)
	rec.Set("reference_expires", expires)
	if err := s.app.SaveWithContext(ctx, rec); err != nil {
		return nil, fmt.Errorf("save installment reference: %w", err)
	}

	monitoring.TrackPayableReference("issued")
	slog.Info("payable reference issued",
		"installment_id", inst.ID,
		"number", inst.Number,
		"amount", amount,
	)

	return &models.PayableReference{
		InstallmentID: inst.ID,
		ReferenceBlob: ref.Blob,
		ReferenceCode: ref.Code,
		Amount:        amount,
		ExpiresAt:     expires,
	}, nil
}

func (s *InstallmentService) organizerForRegistration(reg *core.Record) (*core.Record, error) {
	event, err := s.app.FindRecordById("events", reg.GetString("event_id"))
	if err != nil {
		return nil, fmt.Errorf("event for registration %s: %w", reg.Id, err)
	}
	organizer, err := s.app.FindRecordById("organizers", event.GetString("organizer_id"))
	if err != nil {
		return nil, fmt.Errorf("organizer for registration %s: %w", reg.Id, err)
	}
	return organizer, nil
}

// PendingPayment is one open installment plan as shown to the buyer.
type PendingPayment struct {
	RegistrationID string                      `json:"registration_id"`
	EventTitle     string                      `json:"event_title"`
	Status         string                      `json:"status"`
	BlockedReason  string                      `json:"blocked_reason,omitempty"`
	TotalAmount    decimal.Decimal             `json:"total_amount"`
	AmountPaid     decimal.Decimal             `json:"amount_paid"`
	Installments   []models.InstallmentSummary `json:"pending_installments"`
}

// PendingPayments lists the buyer's installment registrations that still
// have money outstanding, oldest plan first.
func (s *InstallmentService) PendingPayments(ctx context.Context, participantEmail string) ([]PendingPayment, error) {
	regs, err := s.app.FindRecordsByFilter(
		"registrations",
		"participant_email = {:email} && is_installment_payment = true && payment_status != {:paid}",
		"created", 0, 0,
		dbx.Params{"email": participantEmail, "paid": models.PaymentStatusPaid},
	)
	if err != nil {
		return nil, fmt.Errorf("pending payments: %w", err)
	}

	out := make([]PendingPayment, 0, len(regs))
	for _, regRec := range regs {
		reg := registrationFromRecord(regRec)

		records, err := s.app.FindRecordsByFilter(
			"installments",
			"registration_id = {:rid}",
			"installment_number", 0, 0,
			dbx.Params{"rid": reg.ID},
		)
		if err != nil {
			return nil, fmt.Errorf("installments for %s: %w", reg.ID, err)
		}

		paid := decimal.Zero
		pending := make([]models.InstallmentSummary, 0, len(records))
		for _, rec := range records {
			in := installmentFromRecord(rec)
			if in.Status == models.InstallmentStatusPaid {
				paid = paid.Add(in.Amount)
				continue
			}
			pending = append(pending, models.InstallmentSummary{
				ID:      in.ID,
				Number:  in.Number,
				Amount:  in.Amount,
				DueDate: in.DueDate,
			})
		}

		eventTitle := ""
		if ev, err := s.app.FindRecordById("events", reg.EventID); err == nil {
			eventTitle = eventFromRecord(ev).Title
		}

		out = append(out, PendingPayment{
			RegistrationID: reg.ID,
			EventTitle:     eventTitle,
			Status:         reg.Status,
			BlockedReason:  reg.BlockedReason,
			TotalAmount:    reg.TotalAmount,
			AmountPaid:     paid,
			Installments:   pending,
		})
	}
	return out, nil
}
