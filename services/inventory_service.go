package services

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/pocketbase/dbx"
	"github.com/pocketbase/pocketbase/core"

	"ticket-marketplace/internal/status"
)

// StockStore performs the atomic counter updates behind stock decisions.
// Reserve must check-and-increment in one step observable as a single
// operation by concurrent callers.
type StockStore interface {
	Reserve(ctx context.Context, ticketTypeID string, qty int) (bool, error)
	Release(ctx context.Context, ticketTypeID string, qty int) error
	Available(ctx context.Context, ticketTypeID string) (int, error)
}

// InventoryService serializes decisions about remaining stock for a ticket
// type under concurrent purchase attempts. Its critical section is strictly
// the counter update; no external call ever happens under it.
type InventoryService struct {
	store StockStore
}

func NewInventoryService(store StockStore) *InventoryService {
	return &InventoryService{store: store}
}

// TryReserve provisionally takes qty units at checkout time, before the
// gateway session exists, so two concurrent buyers cannot both take the last
// unit. A failed or abandoned payment must hand the units back via Release.
func (s *InventoryService) TryReserve(ctx context.Context, ticketTypeID string, qty int) error {
	if qty <= 0 {
		return fmt.Errorf("inventory: invalid quantity %d", qty)
	}

	ok, err := s.store.Reserve(ctx, ticketTypeID, qty)
	if err != nil {
		return fmt.Errorf("inventory: reserve %s: %w", ticketTypeID, err)
	}
	if !ok {
		available, err := s.store.Available(ctx, ticketTypeID)
		if err != nil {
			available = 0
		}
		return &status.InsufficientStockError{
			TicketTypeID: ticketTypeID,
			Requested:    qty,
			Available:    available,
		}
	}
	return nil
}

// Release is the compensating decrement for a reservation whose payment
// failed or never happened.
func (s *InventoryService) Release(ctx context.Context, ticketTypeID string, qty int) error {
	if qty <= 0 {
		return nil
	}
	if err := s.store.Release(ctx, ticketTypeID, qty); err != nil {
		return fmt.Errorf("inventory: release %s: %w", ticketTypeID, err)
	}
	return nil
}

// CommitSale reconciles a confirmed payment with the sold counter. A
// registration that still holds its checkout-time reservation is already
// counted. One whose reservation was released (a late success after a
// failure event) re-reserves through the same atomic path; if stock ran out
// in between, the sale is kept and the anomaly logged, since the buyer has
// already paid.
func (s *InventoryService) CommitSale(ctx context.Context, ticketTypeID string, qty int, alreadyReserved bool) error {
	if alreadyReserved {
		return nil
	}

	err := s.TryReserve(ctx, ticketTypeID, qty)
	if err != nil {
		if _, ok := err.(*status.InsufficientStockError); ok {
			slog.Warn("confirmed payment exceeds remaining stock, keeping sale",
				"ticket_type_id", ticketTypeID, "quantity", qty)
			return nil
		}
		return err
	}
	return nil
}

// dbStockStore backs the ledger with single-statement conditional updates so
// the check and the increment are one atomic step in the database.
type dbStockStore struct {
	app core.App
}

func NewDBStockStore(app core.App) StockStore {
	return &dbStockStore{app: app}
}

func (d *dbStockStore) Reserve(ctx context.Context, ticketTypeID string, qty int) (bool, error) {
	res, err := d.app.DB().NewQuery(
		`UPDATE ticket_types
		    SET quantity_sold = quantity_sold + {:qty}
		  WHERE id = {:id} AND quantity_sold + {:qty} <= quantity`,
	).Bind(dbx.Params{"qty": qty, "id": ticketTypeID}).WithContext(ctx).Execute()
	if err != nil {
		return false, err
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (d *dbStockStore) Release(ctx context.Context, ticketTypeID string, qty int) error {
	_, err := d.app.DB().NewQuery(
		`UPDATE ticket_types
		    SET quantity_sold = MAX(quantity_sold - {:qty}, 0)
		  WHERE id = {:id}`,
	).Bind(dbx.Params{"qty": qty, "id": ticketTypeID}).WithContext(ctx).Execute()
	return err
}

func (d *dbStockStore) Available(ctx context.Context, ticketTypeID string) (int, error) {
	var available int
	err := d.app.DB().NewQuery(
		`SELECT MAX(quantity - quantity_sold, 0) FROM ticket_types WHERE id = {:id}`,
	).Bind(dbx.Params{"id": ticketTypeID}).WithContext(ctx).Row(&available)
	if err != nil {
		return 0, err
	}
	return available, nil
}
