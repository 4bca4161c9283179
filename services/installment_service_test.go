package services

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ticket-marketplace/config"
	"ticket-marketplace/internal/gateway"
	"ticket-marketplace/models"
	"ticket-marketplace/security"
)

func TestSplitAmount(t *testing.T) {
	tests := []struct {
		name     string
		total    string
		n        int
		expected []string
	}{
		{"even split", "100", 4, []string{"25", "25", "25", "25"}},
		{"first absorbs remainder", "310", 3, []string{"103.34", "103.33", "103.33"}},
		{"repeating decimal", "100", 3, []string{"33.34", "33.33", "33.33"}},
		{"single installment", "59.90", 1, []string{"59.90"}},
		{"tiny amounts", "0.05", 3, []string{"0.03", "0.01", "0.01"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			amounts, err := SplitAmount(decimal.RequireFromString(tt.total), tt.n)
			require.NoError(t, err)
			require.Len(t, amounts, tt.n)

			for i, exp := range tt.expected {
				assert.True(t, amounts[i].Equal(decimal.RequireFromString(exp)),
					"installment %d: expected %s, got %s", i+1, exp, amounts[i])
			}
		})
	}
}

func TestSplitAmount_InvalidCount(t *testing.T) {
	_, err := SplitAmount(decimal.NewFromInt(100), 0)
	assert.Error(t, err)

	_, err = SplitAmount(decimal.NewFromInt(100), -3)
	assert.Error(t, err)
}

// The installments always sum back to the exact total, and only the first
// one may differ from the rest.
func TestSplitAmount_SumLaw(t *testing.T) {
	totals := []string{"310", "99.99", "1234.56", "0.10", "777.77", "450"}
	for _, total := range totals {
		for n := 1; n <= 12; n++ {
			amount := decimal.RequireFromString(total)
			amounts, err := SplitAmount(amount, n)
			require.NoError(t, err)

			sum := decimal.Zero
			for _, a := range amounts {
				sum = sum.Add(a)
			}
			assert.True(t, sum.Equal(amount), "total %s n %d: sum %s", total, n, sum)

			for i := 2; i < n; i++ {
				assert.True(t, amounts[i].Equal(amounts[1]),
					"total %s n %d: installment %d differs from the base", total, n, i+1)
			}
			if n > 1 {
				assert.True(t, amounts[0].GreaterThanOrEqual(amounts[1]),
					"total %s n %d: first installment smaller than the base", total, n)
			}
		}
	}
}

type fakeReferenceIssuer struct {
	calls int
}

func (f *fakeReferenceIssuer) GeneratePayableReference(_ context.Context, _ *gateway.ReferenceRequest) (*gateway.Reference, error) {
	f.calls++
	return &gateway.Reference{
		PaymentID: fmt.Sprintf("gwpay_%d", f.calls),
		Blob:      fmt.Sprintf("emv-blob-%d", f.calls),
		Code:      fmt.Sprintf("CODE-%d", f.calls),
	}, nil
}

// Inside the validity window every call returns the stored reference; only
// after expiry does the gateway get asked for a new one.
func TestGenerateReference_ReusesUntilExpiry(t *testing.T) {
	store := newFakeRecordStore()
	store.add("organizers", "org1", map[string]any{"gateway_account_id": "acct_1"})
	store.add("events", "ev1", map[string]any{"organizer_id": "org1"})
	store.add("registrations", "reg1", map[string]any{
		"event_id":     "ev1",
		"total_amount": 150.00,
		"platform_fee": 7.50,
	})
	store.add("installments", "in1", map[string]any{
		"registration_id":    "reg1",
		"installment_number": 1,
		"total_installments": 3,
		"amount":             50.00,
		"status":             models.InstallmentStatusPending,
	})

	db, mock := redismock.NewClientMock()
	key := "ratelimit:reference:in1"
	mock.ExpectIncr(key).SetVal(1)
	mock.ExpectExpire(key, time.Hour).SetVal(true)
	mock.ExpectIncr(key).SetVal(2)

	issuer := &fakeReferenceIssuer{}
	svc := NewInstallmentService(
		store,
		NewFeeService(),
		NewInventoryService(newMemStockStore(nil)),
		issuer,
		nil,
		security.NewReferenceLimiter(db, 5, time.Hour),
		&config.Config{ReferenceTTL: 24 * time.Hour},
	)

	ctx := context.Background()

	first, err := svc.GenerateReference(ctx, "in1")
	require.NoError(t, err)
	assert.Equal(t, "emv-blob-1", first.ReferenceBlob)
	assert.Equal(t, 1, issuer.calls)

	second, err := svc.GenerateReference(ctx, "in1")
	require.NoError(t, err)
	assert.Equal(t, first.ReferenceBlob, second.ReferenceBlob)
	assert.Equal(t, first.ReferenceCode, second.ReferenceCode)
	assert.Equal(t, 1, issuer.calls, "reuse must not touch the gateway")

	store.setField("installments", "in1", "reference_expires", time.Now().Add(-time.Minute))

	third, err := svc.GenerateReference(ctx, "in1")
	require.NoError(t, err)
	assert.NotEqual(t, first.ReferenceBlob, third.ReferenceBlob)
	assert.Equal(t, 2, issuer.calls)

	assert.NoError(t, mock.ExpectationsWereMet())
}
