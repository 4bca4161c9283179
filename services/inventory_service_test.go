package services

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ticket-marketplace/internal/status"
)

// memStockStore mirrors the database store's atomicity with a mutex.
type memStockStore struct {
	mu       sync.Mutex
	capacity map[string]int
	sold     map[string]int
}

func newMemStockStore(capacity map[string]int) *memStockStore {
	return &memStockStore{
		capacity: capacity,
		sold:     map[string]int{},
	}
}

func (m *memStockStore) Reserve(_ context.Context, id string, qty int) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.sold[id]+qty > m.capacity[id] {
		return false, nil
	}
	m.sold[id] += qty
	return true, nil
}

func (m *memStockStore) Release(_ context.Context, id string, qty int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sold[id] -= qty
	if m.sold[id] < 0 {
		m.sold[id] = 0
	}
	return nil
}

func (m *memStockStore) Available(_ context.Context, id string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.capacity[id] - m.sold[id], nil
}

func (m *memStockStore) soldCount(id string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sold[id]
}

func TestTryReserve_InsufficientStock(t *testing.T) {
	store := newMemStockStore(map[string]int{"tt1": 3})
	svc := NewInventoryService(store)
	ctx := context.Background()

	require.NoError(t, svc.TryReserve(ctx, "tt1", 2))

	err := svc.TryReserve(ctx, "tt1", 2)
	require.Error(t, err)

	var stockErr *status.InsufficientStockError
	require.ErrorAs(t, err, &stockErr)
	assert.Equal(t, "tt1", stockErr.TicketTypeID)
	assert.Equal(t, 2, stockErr.Requested)
	assert.Equal(t, 1, stockErr.Available)
}

func TestTryReserve_InvalidQuantity(t *testing.T) {
	svc := NewInventoryService(newMemStockStore(map[string]int{"tt1": 3}))

	assert.Error(t, svc.TryReserve(context.Background(), "tt1", 0))
	assert.Error(t, svc.TryReserve(context.Background(), "tt1", -1))
}

// Concurrent buyers must never over-sell: with capacity 60 and 100 buyers of
// one unit each, exactly 60 reservations succeed.
func TestTryReserve_NoOversellUnderConcurrency(t *testing.T) {
	store := newMemStockStore(map[string]int{"tt1": 60})
	svc := NewInventoryService(store)
	ctx := context.Background()

	var wg sync.WaitGroup
	var mu sync.Mutex
	succeeded := 0

	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := svc.TryReserve(ctx, "tt1", 1); err == nil {
				mu.Lock()
				succeeded++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 60, succeeded)
	assert.Equal(t, 60, store.soldCount("tt1"))
}

func TestRelease_FloorsAtZero(t *testing.T) {
	store := newMemStockStore(map[string]int{"tt1": 10})
	svc := NewInventoryService(store)
	ctx := context.Background()

	require.NoError(t, svc.TryReserve(ctx, "tt1", 2))
	require.NoError(t, svc.Release(ctx, "tt1", 5))

	assert.Equal(t, 0, store.soldCount("tt1"))
}

func TestCommitSale_AlreadyReservedIsNoop(t *testing.T) {
	store := newMemStockStore(map[string]int{"tt1": 10})
	svc := NewInventoryService(store)
	ctx := context.Background()

	require.NoError(t, svc.TryReserve(ctx, "tt1", 3))
	require.NoError(t, svc.CommitSale(ctx, "tt1", 3, true))

	assert.Equal(t, 3, store.soldCount("tt1"))
}

func TestCommitSale_ReReservesAfterRelease(t *testing.T) {
	store := newMemStockStore(map[string]int{"tt1": 10})
	svc := NewInventoryService(store)
	ctx := context.Background()

	// Reservation released after a failure event, then the payment succeeds
	// late anyway.
	require.NoError(t, svc.TryReserve(ctx, "tt1", 3))
	require.NoError(t, svc.Release(ctx, "tt1", 3))
	require.NoError(t, svc.CommitSale(ctx, "tt1", 3, false))

	assert.Equal(t, 3, store.soldCount("tt1"))
}

func TestCommitSale_KeepsSaleWhenStockRanOut(t *testing.T) {
	store := newMemStockStore(map[string]int{"tt1": 2})
	svc := NewInventoryService(store)
	ctx := context.Background()

	require.NoError(t, svc.TryReserve(ctx, "tt1", 2))

	// The buyer already paid; the commit logs the anomaly and succeeds.
	require.NoError(t, svc.CommitSale(ctx, "tt1", 1, false))
	assert.Equal(t, 2, store.soldCount("tt1"))
}
