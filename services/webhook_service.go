package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/pocketbase/dbx"
	"github.com/pocketbase/pocketbase/core"
	"github.com/shopspring/decimal"

	"ticket-marketplace/internal/gateway"
	"ticket-marketplace/internal/status"
	"ticket-marketplace/models"
	"ticket-marketplace/monitoring"
	"ticket-marketplace/utils"
)

// WebhookService drives provisional purchases to a terminal state exactly
// once per physical gateway event. Safety comes from two layers: the
// payment_transactions ledger keyed by gateway event id, and a per-record
// status re-check before any side effect.
type WebhookService struct {
	app       recordStore
	inventory *InventoryService
	notifier  *NotificationService
	secret    string
}

func NewWebhookService(app recordStore, inventory *InventoryService, notifier *NotificationService, secret string) *WebhookService {
	return &WebhookService{
		app:       app,
		inventory: inventory,
		notifier:  notifier,
		secret:    secret,
	}
}

// VerifyAndParse authenticates the raw request body before anything trusts
// its shape.
func (s *WebhookService) VerifyAndParse(body []byte, signature string) (*gateway.Event, error) {
	return gateway.ParseEvent(body, signature, s.secret)
}

// Process handles one verified gateway event. Redelivery of an already
// processed event id is acknowledged with no further side effects.
func (s *WebhookService) Process(ctx context.Context, ev *gateway.Event) error {
	if s.alreadyProcessed(ev.ID) {
		slog.Info("webhook event already processed, skipping", "event_id", ev.ID, "type", ev.Type)
		monitoring.TrackWebhookEvent(ev.Type, "duplicate")
		return nil
	}

	var err error
	switch ev.Type {
	case gateway.EventPaymentSucceeded:
		err = s.handlePaymentSucceeded(ctx, ev)
	case gateway.EventPaymentFailed:
		err = s.handlePaymentFailed(ctx, ev)
	case gateway.EventAccountUpdated:
		err = s.handleAccountUpdated(ctx, ev)
	case gateway.EventChargeRefunded:
		err = s.handleChargeRefunded(ctx, ev)
	case gateway.EventSessionCompleted:
		// Confirmation is driven by payment.succeeded; nothing to do here.
		slog.Info("checkout session completed", "event_id", ev.ID)
	default:
		slog.Info("ignoring unhandled webhook event type", "event_id", ev.ID, "type", ev.Type)
	}

	if err != nil {
		monitoring.TrackWebhookEvent(ev.Type, "error")
		return err
	}
	monitoring.TrackWebhookEvent(ev.Type, "ok")
	return nil
}

// ProcessSettlement feeds a realtime deferred-rail settlement through the
// same confirmation path webhook deliveries use, ledger gate included.
func (s *WebhookService) ProcessSettlement(ctx context.Context, tran *status.Transaction) error {
	data, err := json.Marshal(gateway.PaymentData{
		PaymentID: tran.RefID,
		Amount:    tran.Amount,
		Currency:  tran.Ccy,
		Metadata:  gateway.PaymentMetadata{InstallmentID: tran.UUID},
	})
	if err != nil {
		return err
	}

	return s.Process(ctx, &gateway.Event{
		ID:        "rt_" + tran.RefID,
		Type:      gateway.EventPaymentSucceeded,
		CreatedAt: tran.CreatedAt,
		Data:      data,
	})
}

func (s *WebhookService) alreadyProcessed(eventID string) bool {
	rec, err := s.app.FindFirstRecordByFilter(
		"payment_transactions",
		"gateway_event_id = {:eid}",
		dbx.Params{"eid": eventID},
	)
	return err == nil && rec != nil
}

func (s *WebhookService) handlePaymentSucceeded(ctx context.Context, ev *gateway.Event) error {
	data, err := ev.Payment()
	if err != nil {
		return err
	}

	if data.Metadata.InstallmentID != "" {
		return s.handleInstallmentPaid(ctx, ev, data)
	}

	ids := data.Metadata.RegistrationIDList()
	if len(ids) == 0 {
		slog.Warn("payment succeeded with no registration correlation", "event_id", ev.ID, "payment_id", data.PaymentID)
		s.recordTransaction(ctx, ev, data.PaymentID, data.Amount, "succeeded", "")
		return nil
	}

	var firstErr error
	for _, id := range ids {
		if err := s.confirmRegistration(ctx, id, data.PaymentID); err != nil {
			slog.Error("failed to confirm registration", "registration_id", id, "event_id", ev.ID, "error", err)
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	if firstErr != nil {
		// Leave the event off the ledger so the gateway redelivers it. The
		// per-registration payment_status re-check keeps the retry from
		// double-applying the confirmations that did succeed.
		return firstErr
	}

	// Ledger write is deliberately the last step: a crash before it causes a
	// safe idempotent redelivery instead of a silently lost event.
	s.recordTransaction(ctx, ev, data.PaymentID, data.Amount, "succeeded", ids[0])
	return nil
}

func (s *WebhookService) confirmRegistration(ctx context.Context, registrationID, paymentID string) error {
	reg, err := s.app.FindRecordById("registrations", registrationID)
	if err != nil {
		return fmt.Errorf("registration %s: %w", registrationID, err)
	}

	// Secondary idempotency check: a concurrent retry may have confirmed this
	// registration and failed only at the ledger step.
	if reg.GetString("payment_status") == models.PaymentStatusPaid {
		slog.Info("registration already confirmed, skipping", "registration_id", registrationID)
		return nil
	}

	code, err := utils.GenerateTicketCode()
	if err != nil {
		return fmt.Errorf("ticket code: %w", err)
	}

	wasReserved := reg.GetBool("inventory_reserved")

	reg.Set("status", models.RegistrationStatusConfirmed)
	reg.Set("payment_status", models.PaymentStatusPaid)
	reg.Set("ticket_code", code)
	reg.Set("gateway_payment_id", paymentID)
	reg.Set("inventory_reserved", true)
	reg.Set("confirmed_at", time.Now().UTC())
	if err := s.app.SaveWithContext(ctx, reg); err != nil {
		return fmt.Errorf("save registration %s: %w", registrationID, err)
	}

	if err := s.inventory.CommitSale(ctx, reg.GetString("ticket_type_id"), reg.GetInt("quantity"), wasReserved); err != nil {
		slog.Error("failed to reconcile sold counter", "registration_id", registrationID, "error", err)
	}

	monitoring.TrackRegistrationConfirmed()
	slog.Info("registration confirmed", "registration_id", registrationID, "ticket_code", code)

	// Failure-isolated: a broken notification never reverts a confirmation.
	go s.notifyConfirmation(reg, code)
	return nil
}

func (s *WebhookService) notifyConfirmation(reg *core.Record, code string) {
	eventTitle, ticketTitle := "", ""
	if ev, err := s.app.FindRecordById("events", reg.GetString("event_id")); err == nil {
		eventTitle = ev.GetString("title")
	}
	if tt, err := s.app.FindRecordById("ticket_types", reg.GetString("ticket_type_id")); err == nil {
		ticketTitle = tt.GetString("title")
	}

	s.notifier.SendTicketConfirmation(TicketConfirmation{
		RegistrationID:   reg.Id,
		ParticipantName:  reg.GetString("participant_name"),
		ParticipantEmail: reg.GetString("participant_email"),
		EventTitle:       eventTitle,
		TicketTitle:      ticketTitle,
		Quantity:         reg.GetInt("quantity"),
		TotalAmount:      decimal.NewFromFloat(reg.GetFloat("total_amount")),
		TicketCode:       code,
	})
}

func (s *WebhookService) handlePaymentFailed(ctx context.Context, ev *gateway.Event) error {
	data, err := ev.Payment()
	if err != nil {
		return err
	}

	ids := data.Metadata.RegistrationIDList()
	for _, id := range ids {
		reg, err := s.app.FindRecordById("registrations", id)
		if err != nil {
			slog.Error("payment failed for unknown registration", "registration_id", id, "error", err)
			continue
		}

		// A failed event after a confirmation is an anomaly, never a
		// regression of the confirmed state.
		if reg.GetString("payment_status") == models.PaymentStatusPaid {
			slog.Warn("ignoring payment failure for confirmed registration", "registration_id", id, "event_id", ev.ID)
			continue
		}

		reg.Set("status", models.RegistrationStatusFailed)
		reg.Set("payment_status", models.PaymentStatusFailed)
		if reg.GetBool("inventory_reserved") {
			if err := s.inventory.Release(ctx, reg.GetString("ticket_type_id"), reg.GetInt("quantity")); err != nil {
				slog.Error("failed to release reservation after payment failure", "registration_id", id, "error", err)
			} else {
				reg.Set("inventory_reserved", false)
			}
		}
		if err := s.app.SaveWithContext(ctx, reg); err != nil {
			slog.Error("failed to mark registration failed", "registration_id", id, "error", err)
		}
	}

	var firstID string
	if len(ids) > 0 {
		firstID = ids[0]
	}
	s.recordTransaction(ctx, ev, data.PaymentID, data.Amount, "failed", firstID)
	return nil
}

func (s *WebhookService) handleAccountUpdated(ctx context.Context, ev *gateway.Event) error {
	data, err := ev.Account()
	if err != nil {
		return err
	}

	organizer, err := s.app.FindFirstRecordByFilter(
		"organizers",
		"gateway_account_id = {:aid}",
		dbx.Params{"aid": data.AccountID},
	)
	if err != nil {
		slog.Warn("account update for unknown organizer", "gateway_account_id", data.AccountID)
		s.recordTransaction(ctx, ev, data.AccountID, decimal.Zero, "ignored", "")
		return nil
	}

	complete := data.DetailsSubmitted && data.ChargesEnabled
	organizer.Set("onboarding_complete", complete)
	organizer.Set("charges_enabled", data.ChargesEnabled)
	organizer.Set("payouts_enabled", data.PayoutsEnabled)
	if complete && organizer.GetString("status") == models.OrganizerStatusPending {
		organizer.Set("status", models.OrganizerStatusActive)
		slog.Info("activating organizer, gateway onboarding complete", "organizer_id", organizer.Id)
	}
	if err := s.app.SaveWithContext(ctx, organizer); err != nil {
		return fmt.Errorf("save organizer %s: %w", organizer.Id, err)
	}

	s.recordTransaction(ctx, ev, data.AccountID, decimal.Zero, "succeeded", "")
	return nil
}

func (s *WebhookService) handleChargeRefunded(ctx context.Context, ev *gateway.Event) error {
	data, err := ev.Refund()
	if err != nil {
		return err
	}
	if data.PaymentID == "" {
		slog.Warn("refund with no payment reference", "event_id", ev.ID)
		s.recordTransaction(ctx, ev, data.ChargeID, data.AmountRefunded, "refunded", "")
		return nil
	}

	regs, err := s.app.FindRecordsByFilter(
		"registrations",
		"gateway_payment_id = {:pid}",
		"", 0, 0,
		dbx.Params{"pid": data.PaymentID},
	)
	if err != nil {
		return fmt.Errorf("find refunded registrations: %w", err)
	}

	var firstID string
	for _, reg := range regs {
		if firstID == "" {
			firstID = reg.Id
		}
		reg.Set("payment_status", models.PaymentStatusRefunded)
		reg.Set("status", models.RegistrationStatusCancelled)
		if err := s.app.SaveWithContext(ctx, reg); err != nil {
			slog.Error("failed to mark registration refunded", "registration_id", reg.Id, "error", err)
		}
	}

	s.recordTransaction(ctx, ev, data.ChargeID, data.AmountRefunded, "refunded", firstID)
	return nil
}

func (s *WebhookService) handleInstallmentPaid(ctx context.Context, ev *gateway.Event, data *gateway.PaymentData) error {
	inst, err := s.app.FindRecordById("installments", data.Metadata.InstallmentID)
	if err != nil {
		slog.Error("settlement for unknown installment", "installment_id", data.Metadata.InstallmentID, "event_id", ev.ID)
		return nil
	}

	switch inst.GetString("status") {
	case models.InstallmentStatusPaid:
		// A second rail (webhook vs realtime) or a redelivery after a
		// reconcile failure. The installment itself is settled; re-run the
		// aggregate recompute so a previously failed reconcile still lands.
		slog.Info("installment already paid", "installment_id", inst.Id, "event_id", ev.ID)
		if err := s.reconcileInstallmentPlan(ctx, inst.GetString("registration_id"), data.PaymentID); err != nil {
			return fmt.Errorf("reconcile plan for installment %s: %w", inst.Id, err)
		}
		s.recordTransaction(ctx, ev, data.PaymentID, decimal.NewFromFloat(inst.GetFloat("amount")), "ignored", inst.GetString("registration_id"))
		return nil
	case models.InstallmentStatusCancelled:
		slog.Warn("settlement for cancelled installment", "installment_id", inst.Id, "event_id", ev.ID)
		return nil
	}

	inst.Set("status", models.InstallmentStatusPaid)
	inst.Set("gateway_payment_id", data.PaymentID)
	inst.Set("paid_at", time.Now().UTC())
	if err := s.app.SaveWithContext(ctx, inst); err != nil {
		return fmt.Errorf("save installment %s: %w", inst.Id, err)
	}

	registrationID := inst.GetString("registration_id")
	if err := s.reconcileInstallmentPlan(ctx, registrationID, data.PaymentID); err != nil {
		// No ledger append: the gateway redelivers and the paid-status branch
		// above retries the reconcile.
		return fmt.Errorf("reconcile plan for registration %s: %w", registrationID, err)
	}

	reg, err := s.app.FindRecordById("registrations", registrationID)
	if err == nil {
		go s.notifier.SendInstallmentReceipt(
			registrationID,
			reg.GetString("participant_email"),
			inst.GetInt("installment_number"),
			inst.GetInt("total_installments"),
			decimal.NewFromFloat(inst.GetFloat("amount")),
		)
	}

	s.recordTransaction(ctx, ev, data.PaymentID, decimal.NewFromFloat(inst.GetFloat("amount")), "succeeded", registrationID)
	return nil
}

// reconcileInstallmentPlan recomputes the registration's aggregate status
// from its installments: fully paid, overdue-blocked, or in partial payment.
// The ticket itself is issued on the first settled installment.
func (s *WebhookService) reconcileInstallmentPlan(ctx context.Context, registrationID, paymentID string) error {
	reg, err := s.app.FindRecordById("registrations", registrationID)
	if err != nil {
		return fmt.Errorf("registration %s: %w", registrationID, err)
	}

	all, err := s.app.FindRecordsByFilter(
		"installments",
		"registration_id = {:rid}",
		"installment_number", 0, 0,
		dbx.Params{"rid": registrationID},
	)
	if err != nil {
		return fmt.Errorf("list installments: %w", err)
	}

	now := time.Now()
	paid, overdue := 0, 0
	for _, in := range all {
		switch in.GetString("status") {
		case models.InstallmentStatusPaid:
			paid++
		case models.InstallmentStatusPending:
			if due := in.GetDateTime("due_date").Time(); !due.IsZero() && now.After(due) {
				overdue++
			}
		}
	}

	switch {
	case paid == len(all):
		reg.Set("status", models.RegistrationStatusConfirmed)
		reg.Set("payment_status", models.PaymentStatusPaid)
		reg.Set("blocked_reason", "")
		reg.Set("installment_plan_status", models.InstallmentPlanCompleted)
	case overdue > 0:
		reg.Set("status", models.RegistrationStatusOverdue)
		reg.Set("payment_status", models.PaymentStatusPending)
		reg.Set("blocked_reason", "overdue_installments")
	default:
		reg.Set("status", models.RegistrationStatusPartialPayment)
		reg.Set("payment_status", models.PaymentStatusPending)
		reg.Set("blocked_reason", "")
	}

	// First settled installment issues the ticket and reconciles stock.
	issued := false
	var code string
	if reg.GetString("ticket_code") == "" && paid >= 1 {
		code, err = utils.GenerateTicketCode()
		if err != nil {
			return fmt.Errorf("ticket code: %w", err)
		}
		wasReserved := reg.GetBool("inventory_reserved")
		reg.Set("ticket_code", code)
		reg.Set("gateway_payment_id", paymentID)
		reg.Set("inventory_reserved", true)
		issued = true

		if err := s.inventory.CommitSale(ctx, reg.GetString("ticket_type_id"), reg.GetInt("quantity"), wasReserved); err != nil {
			slog.Error("failed to reconcile sold counter", "registration_id", registrationID, "error", err)
		}
	}

	if err := s.app.SaveWithContext(ctx, reg); err != nil {
		return fmt.Errorf("save registration %s: %w", registrationID, err)
	}

	if issued {
		monitoring.TrackRegistrationConfirmed()
		slog.Info("first installment settled, ticket issued", "registration_id", registrationID, "ticket_code", code)
		go s.notifyConfirmation(reg, code)
	}
	return nil
}

// recordTransaction appends one row to the idempotency ledger. A failure to
// log is never allowed to fail an otherwise processed event: the side
// effects are idempotent on redelivery.
func (s *WebhookService) recordTransaction(ctx context.Context, ev *gateway.Event, objectID string, amount decimal.Decimal, outcome, registrationID string) {
	collection, err := s.app.FindCollectionByNameOrId("payment_transactions")
	if err != nil {
		slog.Error("payment_transactions collection missing", "error", err)
		return
	}

	rec := core.NewRecord(collection)
	rec.Set("gateway_event_id", ev.ID)
	rec.Set("event_type", ev.Type)
	rec.Set("gateway_object_id", objectID)
	rec.Set("amount", amount.InexactFloat64())
	rec.Set("outcome", outcome)
	rec.Set("registration_id", registrationID)

	if err := s.app.SaveWithContext(ctx, rec); err != nil {
		slog.Error("failed to log payment transaction", "event_id", ev.ID, "error", err)
	}
}
