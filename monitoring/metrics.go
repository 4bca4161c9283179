package monitoring

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
)

var (
	checkoutAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "checkout_attempts_total",
			Help: "Checkout attempts by outcome",
		},
		[]string{"outcome"},
	)

	checkoutDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "checkout_duration_seconds",
			Help:    "Duration of checkout orchestration",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 10),
		},
	)

	webhookEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "webhook_events_total",
			Help: "Processed gateway webhook events by type and outcome",
		},
		[]string{"event_type", "outcome"},
	)

	registrationsConfirmed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "registrations_confirmed_total",
			Help: "Registrations driven to confirmed with a ticket issued",
		},
	)

	payableReferences = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payable_references_total",
			Help: "Installment payable reference generations by outcome",
		},
		[]string{"outcome"},
	)

	activeRateLimits = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "reference_rate_limit_keys_total",
			Help: "Current number of live reference rate-limit windows",
		},
	)

	redisUp = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "redis_up",
			Help: "Whether the Redis backend answers PING",
		},
	)
)

type Monitor struct {
	redis *redis.Client
}

func NewMonitor(redisClient *redis.Client) *Monitor {
	monitor := &Monitor{redis: redisClient}

	// Start metrics collection
	go monitor.collectMetrics()

	return monitor
}

func (m *Monitor) collectMetrics() {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for range ticker.C {
		ctx := context.Background()
		m.collectRateLimitMetrics(ctx)
		m.collectRedisHealth(ctx)
	}
}

func (m *Monitor) collectRateLimitMetrics(ctx context.Context) {
	keys, err := m.redis.Keys(ctx, "ratelimit:reference:*").Result()
	if err != nil {
		return
	}
	activeRateLimits.Set(float64(len(keys)))
}

func (m *Monitor) collectRedisHealth(ctx context.Context) {
	if err := m.redis.Ping(ctx).Err(); err != nil {
		redisUp.Set(0)
		return
	}
	redisUp.Set(1)
}

func TrackCheckout(outcome string, duration time.Duration) {
	checkoutAttempts.WithLabelValues(outcome).Inc()
	checkoutDuration.Observe(duration.Seconds())
}

func TrackWebhookEvent(eventType, outcome string) {
	webhookEvents.WithLabelValues(eventType, outcome).Inc()
}

func TrackRegistrationConfirmed() {
	registrationsConfirmed.Inc()
}

func TrackPayableReference(outcome string) {
	payableReferences.WithLabelValues(outcome).Inc()
}

// StartMetricsServer exposes /metrics and /health on a dedicated port,
// separate from the application listener.
func StartMetricsServer(port string, redisClient *redis.Client) {
	e := echo.New()

	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))
	e.GET("/health", func(c echo.Context) error {
		status := map[string]string{"status": "ok"}
		if err := redisClient.Ping(c.Request().Context()).Err(); err != nil {
			status["status"] = "degraded"
			status["redis"] = err.Error()
			return c.JSON(http.StatusServiceUnavailable, status)
		}
		return c.JSON(http.StatusOK, status)
	})

	go func() {
		if err := e.Start(":" + port); err != nil && err != http.ErrServerClosed {
			slog.Error("metrics server stopped", "error", err)
		}
	}()
}
