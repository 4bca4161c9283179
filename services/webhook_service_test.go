package services

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/pocketbase/dbx"
	"github.com/pocketbase/pocketbase/core"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ticket-marketplace/internal/gateway"
	"ticket-marketplace/internal/status"
	"ticket-marketplace/models"
)

func TestVerifyAndParse(t *testing.T) {
	svc := NewWebhookService(nil, nil, nil, "whsec_test")

	body, err := json.Marshal(map[string]any{
		"id":   "evt_1",
		"type": gateway.EventPaymentSucceeded,
		"data": map[string]any{"payment_id": "pay_1"},
	})
	require.NoError(t, err)
	sig := gateway.Hmac256(body, []byte("whsec_test"))

	ev, err := svc.VerifyAndParse(body, sig)
	require.NoError(t, err)
	assert.Equal(t, "evt_1", ev.ID)
	assert.Equal(t, gateway.EventPaymentSucceeded, ev.Type)
}

// Verification happens against the raw bytes, before any parsing: changing
// a single byte must invalidate the delivery.
func TestVerifyAndParse_TamperedBody(t *testing.T) {
	svc := NewWebhookService(nil, nil, nil, "whsec_test")

	body := []byte(`{"id":"evt_1","type":"payment.succeeded","data":{}}`)
	sig := gateway.Hmac256(body, []byte("whsec_test"))

	tampered := []byte(`{"id":"evt_2","type":"payment.succeeded","data":{}}`)
	_, err := svc.VerifyAndParse(tampered, sig)
	assert.ErrorIs(t, err, status.ErrSignatureMismatch)
}

// fakeRecordStore keeps records in memory with save semantics close to the
// real store: reads hand out clones, so mutations only stick once a save
// goes through.
type fakeRecordStore struct {
	mu          sync.Mutex
	seq         int
	collections map[string]*core.Collection
	records     map[string][]*core.Record
	failSavesIn string
}

func newFakeRecordStore() *fakeRecordStore {
	return &fakeRecordStore{
		collections: map[string]*core.Collection{},
		records:     map[string][]*core.Record{},
	}
}

func (f *fakeRecordStore) collection(name string) *core.Collection {
	if c, ok := f.collections[name]; ok {
		return c
	}
	c := core.NewBaseCollection(name)
	f.collections[name] = c
	return c
}

func (f *fakeRecordStore) add(name, id string, fields map[string]any) *core.Record {
	f.mu.Lock()
	defer f.mu.Unlock()
	rec := core.NewRecord(f.collection(name))
	rec.Id = id
	for k, v := range fields {
		rec.Set(k, v)
	}
	f.records[name] = append(f.records[name], rec)
	return rec
}

func (f *fakeRecordStore) count(name string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.records[name])
}

func (f *fakeRecordStore) FindRecordById(collection any, id string, _ ...func(q *dbx.SelectQuery) error) (*core.Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, rec := range f.records[collection.(string)] {
		if rec.Id == id {
			return rec.Clone(), nil
		}
	}
	return nil, sql.ErrNoRows
}

// matches supports the single-equality filters the services use.
func matches(rec *core.Record, filter string, params dbx.Params) bool {
	parts := strings.SplitN(filter, "=", 2)
	if len(parts) != 2 {
		return false
	}
	field := strings.TrimSpace(parts[0])
	param := strings.Trim(strings.TrimSpace(parts[1]), "{:}")
	return rec.GetString(field) == fmt.Sprint(params[param])
}

func (f *fakeRecordStore) FindFirstRecordByFilter(collection any, filter string, params ...dbx.Params) (*core.Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	merged := dbx.Params{}
	for _, p := range params {
		for k, v := range p {
			merged[k] = v
		}
	}
	for _, rec := range f.records[collection.(string)] {
		if matches(rec, filter, merged) {
			return rec.Clone(), nil
		}
	}
	return nil, sql.ErrNoRows
}

func (f *fakeRecordStore) FindRecordsByFilter(collection any, filter string, _ string, _ int, _ int, params ...dbx.Params) ([]*core.Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	merged := dbx.Params{}
	for _, p := range params {
		for k, v := range p {
			merged[k] = v
		}
	}
	var out []*core.Record
	for _, rec := range f.records[collection.(string)] {
		if matches(rec, filter, merged) {
			out = append(out, rec.Clone())
		}
	}
	return out, nil
}

func (f *fakeRecordStore) FindCollectionByNameOrId(nameOrId string) (*core.Collection, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.collection(nameOrId), nil
}

func (f *fakeRecordStore) SaveWithContext(_ context.Context, model core.Model) error {
	rec, ok := model.(*core.Record)
	if !ok {
		return fmt.Errorf("unexpected model %T", model)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	name := rec.Collection().Name
	if f.failSavesIn == name {
		return fmt.Errorf("save %s: datastore unavailable", name)
	}
	if rec.Id == "" {
		f.seq++
		rec.Id = fmt.Sprintf("%s_%d", name, f.seq)
	}
	for i, existing := range f.records[name] {
		if existing.Id == rec.Id {
			f.records[name][i] = rec.Clone()
			return nil
		}
	}
	f.records[name] = append(f.records[name], rec.Clone())
	return nil
}

func paymentSucceededEvent(t *testing.T, id, paymentID, registrationIDs string) *gateway.Event {
	t.Helper()
	data, err := json.Marshal(gateway.PaymentData{
		PaymentID: paymentID,
		Amount:    decimal.RequireFromString("110.30"),
		Metadata:  gateway.PaymentMetadata{RegistrationIDs: registrationIDs},
	})
	require.NoError(t, err)
	return &gateway.Event{ID: id, Type: gateway.EventPaymentSucceeded, Data: data}
}

// Delivering the same physical event twice must confirm exactly once: one
// ticket code, one sold-counter increment, one notification.
func TestProcess_PaymentSucceededIsIdempotent(t *testing.T) {
	store := newFakeRecordStore()
	store.add("registrations", "reg1", map[string]any{
		"ticket_type_id":     "tt1",
		"quantity":           1,
		"participant_name":   "Ana Souza",
		"participant_email":  "ana@example.com",
		"total_amount":       110.30,
		"status":             models.RegistrationStatusPending,
		"payment_status":     models.PaymentStatusPending,
		"inventory_reserved": false,
	})
	stock := newMemStockStore(map[string]int{"tt1": 5})
	pub := &capturingPublisher{}
	svc := NewWebhookService(store, NewInventoryService(stock),
		NewNotificationService(pub, "notify", "secret"), "whsec_test")

	ev := paymentSucceededEvent(t, "evt_10", "pay_10", "reg1")
	require.NoError(t, svc.Process(context.Background(), ev))

	reg, err := store.FindRecordById("registrations", "reg1")
	require.NoError(t, err)
	assert.Equal(t, models.PaymentStatusPaid, reg.GetString("payment_status"))
	code := reg.GetString("ticket_code")
	assert.NotEmpty(t, code)
	assert.Equal(t, 1, stock.soldCount("tt1"))
	assert.Equal(t, 1, store.count("payment_transactions"))
	require.Eventually(t, func() bool { return pub.messageCount() == 1 },
		time.Second, 10*time.Millisecond)

	// Redelivery: the ledger gate swallows the whole event.
	require.NoError(t, svc.Process(context.Background(), ev))

	reg, err = store.FindRecordById("registrations", "reg1")
	require.NoError(t, err)
	assert.Equal(t, code, reg.GetString("ticket_code"))
	assert.Equal(t, 1, stock.soldCount("tt1"))
	assert.Equal(t, 1, store.count("payment_transactions"))
	assert.Never(t, func() bool { return pub.messageCount() > 1 },
		150*time.Millisecond, 20*time.Millisecond)
}

// A delivery whose confirmation fails must stay off the ledger so the
// gateway's redelivery can finish the job.
func TestProcess_ConfirmationFailureIsRetriable(t *testing.T) {
	store := newFakeRecordStore()
	store.add("registrations", "reg1", map[string]any{
		"ticket_type_id":     "tt1",
		"quantity":           1,
		"participant_email":  "ana@example.com",
		"status":             models.RegistrationStatusPending,
		"payment_status":     models.PaymentStatusPending,
		"inventory_reserved": false,
	})
	stock := newMemStockStore(map[string]int{"tt1": 5})
	pub := &capturingPublisher{}
	svc := NewWebhookService(store, NewInventoryService(stock),
		NewNotificationService(pub, "notify", "secret"), "whsec_test")

	ev := paymentSucceededEvent(t, "evt_11", "pay_11", "reg1")

	store.failSavesIn = "registrations"
	require.Error(t, svc.Process(context.Background(), ev))

	// Nothing finalized: no ledger row, registration still pending.
	assert.Equal(t, 0, store.count("payment_transactions"))
	reg, err := store.FindRecordById("registrations", "reg1")
	require.NoError(t, err)
	assert.Equal(t, models.PaymentStatusPending, reg.GetString("payment_status"))
	assert.Empty(t, reg.GetString("ticket_code"))
	assert.Equal(t, 0, stock.soldCount("tt1"))

	// The store recovers and the gateway redelivers the same event.
	store.failSavesIn = ""
	require.NoError(t, svc.Process(context.Background(), ev))

	reg, err = store.FindRecordById("registrations", "reg1")
	require.NoError(t, err)
	assert.Equal(t, models.PaymentStatusPaid, reg.GetString("payment_status"))
	assert.NotEmpty(t, reg.GetString("ticket_code"))
	assert.Equal(t, 1, stock.soldCount("tt1"))
	assert.Equal(t, 1, store.count("payment_transactions"))
}

func (f *fakeRecordStore) setField(name, id, field string, value any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, rec := range f.records[name] {
		if rec.Id == id {
			rec.Set(field, value)
		}
	}
}
