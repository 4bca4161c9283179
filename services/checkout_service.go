package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/pocketbase/pocketbase/core"
	"github.com/shopspring/decimal"

	"ticket-marketplace/config"
	"ticket-marketplace/internal/gateway"
	"ticket-marketplace/internal/status"
	"ticket-marketplace/models"
	"ticket-marketplace/monitoring"
	"ticket-marketplace/utils"
)

type CheckoutService struct {
	app       core.App
	fees      *FeeService
	inventory *InventoryService
	gateway   *gateway.Gateway
	breaker   *utils.CircuitBreaker
	cfg       *config.Config
}

func NewCheckoutService(app core.App, fees *FeeService, inventory *InventoryService, gw *gateway.Gateway, cfg *config.Config) *CheckoutService {
	return &CheckoutService{
		app:       app,
		fees:      fees,
		inventory: inventory,
		gateway:   gw,
		breaker:   utils.NewCircuitBreaker("gateway-checkout"),
		cfg:       cfg,
	}
}

type reservation struct {
	ticketTypeID string
	quantity     int
}

// Checkout validates a cart, reserves inventory, creates pending
// registrations with a snapshotted fee breakdown and opens a hosted gateway
// session with split routing. Any failure after a partial reservation
// unwinds every reservation made in this request before returning.
func (s *CheckoutService) Checkout(ctx context.Context, req models.CheckoutRequest) (*models.CheckoutResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.CheckoutTimeout)
	defer cancel()

	started := time.Now()
	outcome := "error"
	defer func() { monitoring.TrackCheckout(outcome, time.Since(started)) }()

	eventRec, err := s.app.FindRecordById("events", req.EventID)
	if err != nil {
		return nil, fmt.Errorf("checkout: event %s: %w", req.EventID, err)
	}
	event := eventFromRecord(eventRec)
	if event.Status != models.EventStatusPublished {
		return nil, status.ErrTicketUnavailable
	}

	organizer, err := s.app.FindRecordById("organizers", event.OrganizerID)
	if err != nil {
		return nil, fmt.Errorf("checkout: organizer: %w", err)
	}
	if !organizerReady(organizer) {
		return nil, status.ErrOrganizerNotEnabled
	}

	feeConfig := s.LoadFeeConfig()

	now := time.Now()
	var (
		reserved  []reservation
		lines     []checkoutLine
		totalDue  = decimal.Zero
		totalFees = decimal.Zero
	)

	release := func() {
		for _, r := range reserved {
			if err := s.inventory.Release(ctx, r.ticketTypeID, r.quantity); err != nil {
				slog.Error("failed to release reservation", "ticket_type_id", r.ticketTypeID, "error", err)
			}
		}
	}

	for _, item := range req.Items {
		tt, err := s.app.FindRecordById("ticket_types", item.TicketTypeID)
		if err != nil {
			release()
			return nil, fmt.Errorf("checkout: ticket type %s: %w", item.TicketTypeID, err)
		}
		if tt.GetString("event_id") != req.EventID {
			release()
			return nil, fmt.Errorf("checkout: ticket type %s does not belong to event %s", item.TicketTypeID, req.EventID)
		}
		if err := checkOnSale(tt, now); err != nil {
			release()
			return nil, err
		}
		if err := checkQuantityLimits(tt, item.Quantity); err != nil {
			release()
			return nil, err
		}

		if err := s.inventory.TryReserve(ctx, item.TicketTypeID, item.Quantity); err != nil {
			release()
			return nil, err
		}
		reserved = append(reserved, reservation{item.TicketTypeID, item.Quantity})

		price := decimal.NewFromFloat(tt.GetFloat("price"))
		breakdown, err := s.fees.Calculate(price, tt.GetString("fee_policy"), feeConfig)
		if err != nil {
			release()
			return nil, err
		}

		qty := decimal.NewFromInt(int64(item.Quantity))
		lines = append(lines, checkoutLine{
			ticketType: tt,
			quantity:   item.Quantity,
			breakdown:  breakdown,
		})
		totalDue = totalDue.Add(breakdown.BuyerPrice.Mul(qty))
		totalFees = totalFees.Add(breakdown.PlatformFee.Mul(qty))
	}

	registrations, err := s.createRegistrations(ctx, req, lines)
	if err != nil {
		release()
		return nil, err
	}

	ids := make([]string, len(registrations))
	sessionItems := make([]gateway.SessionLineItem, len(lines))
	for i, reg := range registrations {
		ids[i] = reg.Id
	}
	for i, line := range lines {
		sessionItems[i] = gateway.SessionLineItem{
			Name:      line.ticketType.GetString("title"),
			Quantity:  line.quantity,
			UnitPrice: line.breakdown.BuyerPrice,
		}
	}

	result, err := s.breaker.Execute(ctx, func() (interface{}, error) {
		return s.gateway.CreateCheckoutSession(ctx, &gateway.SessionRequest{
			Amount:             totalDue,
			PlatformFee:        totalFees,
			DestinationAccount: organizer.GetString("gateway_account_id"),
			SuccessURL:         s.cfg.CheckoutSuccessURL,
			CancelURL:          s.cfg.CheckoutCancelURL,
			LineItems:          sessionItems,
			Metadata: gateway.PaymentMetadata{
				RegistrationIDs: strings.Join(ids, ","),
				EventID:         req.EventID,
			},
		})
	})
	if err != nil {
		// Best-effort compensation: the gateway and the data store share no
		// transaction, so abandon the registrations and hand stock back.
		s.abandonRegistrations(ctx, registrations)
		release()
		return nil, fmt.Errorf("%w: %v", status.ErrGatewayUnavailable, err)
	}
	session := result.(*gateway.Session)

	for _, reg := range registrations {
		reg.Set("gateway_session_id", session.ID)
		if err := s.app.SaveWithContext(ctx, reg); err != nil {
			slog.Error("failed to persist session reference", "registration_id", reg.Id, "error", err)
		}
	}

	outcome = "ok"
	return &models.CheckoutResponse{
		SessionURL:      session.URL,
		RegistrationIDs: ids,
	}, nil
}

type checkoutLine struct {
	ticketType *core.Record
	quantity   int
	breakdown  models.FeeBreakdown
}

func (s *CheckoutService) createRegistrations(ctx context.Context, req models.CheckoutRequest, lines []checkoutLine) ([]*core.Record, error) {
	collection, err := s.app.FindCollectionByNameOrId("registrations")
	if err != nil {
		return nil, fmt.Errorf("checkout: registrations collection: %w", err)
	}

	created := make([]*core.Record, 0, len(lines))
	for _, line := range lines {
		qty := decimal.NewFromInt(int64(line.quantity))

		rec := core.NewRecord(collection)
		rec.Set("event_id", req.EventID)
		rec.Set("ticket_type_id", line.ticketType.Id)
		rec.Set("participant_name", req.Participant.Name)
		rec.Set("participant_email", req.Participant.Email)
		rec.Set("participant_phone", req.Participant.Phone)
		rec.Set("participant_document", req.Participant.Document)
		rec.Set("quantity", line.quantity)
		rec.Set("unit_price", line.breakdown.BuyerPrice.InexactFloat64())
		rec.Set("gateway_fee", line.breakdown.GatewayFee.Mul(qty).InexactFloat64())
		rec.Set("platform_fee", line.breakdown.PlatformFee.Mul(qty).InexactFloat64())
		rec.Set("organizer_net", line.breakdown.OrganizerNet.Mul(qty).InexactFloat64())
		rec.Set("total_amount", line.breakdown.BuyerPrice.Mul(qty).InexactFloat64())
		rec.Set("payment_method", models.PaymentMethodCard)
		rec.Set("status", models.RegistrationStatusPending)
		rec.Set("payment_status", models.PaymentStatusPending)
		rec.Set("inventory_reserved", true)

		if err := s.app.SaveWithContext(ctx, rec); err != nil {
			s.abandonRegistrations(ctx, created)
			return nil, fmt.Errorf("checkout: create registration: %w", err)
		}
		created = append(created, rec)
	}
	return created, nil
}

func (s *CheckoutService) abandonRegistrations(ctx context.Context, regs []*core.Record) {
	for _, reg := range regs {
		reg.Set("status", models.RegistrationStatusCancelled)
		reg.Set("payment_status", models.PaymentStatusFailed)
		reg.Set("inventory_reserved", false)
		if err := s.app.SaveWithContext(ctx, reg); err != nil {
			slog.Error("failed to abandon registration", "registration_id", reg.Id, "error", err)
		}
	}
}

// LoadFeeConfig reads the stored platform fee settings, falling back to the
// configured defaults: failing an entire checkout on a config-read hiccup is
// worse than charging slightly stale fees.
func (s *CheckoutService) LoadFeeConfig() models.FeeConfig {
	records, err := s.app.FindRecordsByFilter("platform_config", "id != ''", "-created", 1, 0)
	if err != nil || len(records) == 0 {
		slog.Warn("platform config unavailable, using fee defaults", "error", err)
		return models.FeeConfig{
			PlatformPct:  s.cfg.DefaultPlatformPct,
			GatewayPct:   s.cfg.DefaultGatewayPct,
			GatewayFixed: s.cfg.DefaultGatewayFixed,
		}
	}

	rec := records[0]
	return models.FeeConfig{
		PlatformPct:  decimal.NewFromFloat(rec.GetFloat("platform_fee_percentage")),
		GatewayPct:   decimal.NewFromFloat(rec.GetFloat("gateway_percentage_fee")),
		GatewayFixed: decimal.NewFromFloat(rec.GetFloat("gateway_fixed_fee")),
	}
}

func organizerReady(rec *core.Record) bool {
	organizer := organizerFromRecord(rec)
	return organizer.ReadyForCheckout()
}

func checkOnSale(rec *core.Record, now time.Time) error {
	tt := ticketTypeFromRecord(rec)
	if !tt.OnSaleAt(now) {
		return status.ErrTicketUnavailable
	}
	return nil
}

func checkQuantityLimits(rec *core.Record, qty int) error {
	tt := ticketTypeFromRecord(rec)
	min := tt.MinPerOrder
	if min <= 0 {
		min = 1
	}
	if qty < min || (tt.MaxPerOrder > 0 && qty > tt.MaxPerOrder) {
		return &status.QuantityLimitError{
			TicketTypeID: tt.ID,
			Requested:    qty,
			Min:          min,
			Max:          tt.MaxPerOrder,
		}
	}
	return nil
}
