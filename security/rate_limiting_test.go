package security

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ticket-marketplace/internal/status"
)

func TestReferenceLimiter_AllowsWithinLimit(t *testing.T) {
	db, mock := redismock.NewClientMock()
	limiter := NewReferenceLimiter(db, 5, time.Hour)
	ctx := context.Background()

	mock.ExpectIncr("ratelimit:reference:inst1").SetVal(1)
	mock.ExpectExpire("ratelimit:reference:inst1", time.Hour).SetVal(true)

	require.NoError(t, limiter.Allow(ctx, "inst1"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReferenceLimiter_BlocksOverLimit(t *testing.T) {
	db, mock := redismock.NewClientMock()
	limiter := NewReferenceLimiter(db, 5, time.Hour)
	ctx := context.Background()

	mock.ExpectIncr("ratelimit:reference:inst1").SetVal(6)

	err := limiter.Allow(ctx, "inst1")
	require.Error(t, err)
	assert.ErrorIs(t, err, status.ErrRateLimited)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// The TTL is set only when the window opens, so the cap is a true rolling
// window and not per-request.
func TestReferenceLimiter_ExpiresOnlyOnFirstUse(t *testing.T) {
	db, mock := redismock.NewClientMock()
	limiter := NewReferenceLimiter(db, 5, time.Hour)
	ctx := context.Background()

	mock.ExpectIncr("ratelimit:reference:inst1").SetVal(3)

	require.NoError(t, limiter.Allow(ctx, "inst1"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReferenceLimiter_FailsOpenWhenRedisDown(t *testing.T) {
	db, mock := redismock.NewClientMock()
	limiter := NewReferenceLimiter(db, 5, time.Hour)
	ctx := context.Background()

	mock.ExpectIncr("ratelimit:reference:inst1").SetErr(errors.New("connection refused"))

	assert.NoError(t, limiter.Allow(ctx, "inst1"))
}

func TestReferenceLimiter_Remaining(t *testing.T) {
	db, mock := redismock.NewClientMock()
	limiter := NewReferenceLimiter(db, 5, time.Hour)
	ctx := context.Background()

	mock.ExpectGet("ratelimit:reference:inst1").SetVal("3")
	assert.Equal(t, 2, limiter.Remaining(ctx, "inst1"))

	mock.ExpectGet("ratelimit:reference:inst2").RedisNil()
	assert.Equal(t, 5, limiter.Remaining(ctx, "inst2"))

	mock.ExpectGet("ratelimit:reference:inst3").SetVal("9")
	assert.Equal(t, 0, limiter.Remaining(ctx, "inst3"))
}
