package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/pocketbase/pocketbase"
	"github.com/pocketbase/pocketbase/core"
	"github.com/pocketbase/pocketbase/plugins/migratecmd"
	pubnub "github.com/pubnub/go"

	"ticket-marketplace/config"
	"ticket-marketplace/handlers"
	"ticket-marketplace/internal/gateway"
	"ticket-marketplace/internal/status"
	_ "ticket-marketplace/migrations"
	"ticket-marketplace/monitoring"
	"ticket-marketplace/security"
	"ticket-marketplace/services"
	"ticket-marketplace/utils"
)

func main() {
	app := pocketbase.New()

	// Load configuration
	cfg := config.LoadConfig()

	// Initialize Redis
	redisClient := utils.NewRedisClient(cfg.RedisURL, cfg.RedisPassword, cfg.RedisDB)
	defer redisClient.Close()

	// Initialize PubNub for buyer notifications
	pnConfig := pubnub.NewConfig()
	pnConfig.PublishKey = cfg.PubNubPublishKey
	pnConfig.SubscribeKey = cfg.PubNubSubscribeKey
	pnConfig.SecretKey = cfg.PubNubSecretKey

	pn := pubnub.NewPubNub(pnConfig)

	// Create context for background tasks
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Settlement deliveries from the realtime stream. The channel is wired
	// into the gateway up front so no notification can arrive unconsumed.
	tranCh := make(chan *status.Transaction, 16)

	// Connect to the payment gateway. The realtime settlement subscription
	// starts here too when a stream key is configured.
	gw, err := gateway.New(ctx, &gateway.Config{
		BaseURL:    cfg.GatewayBaseURL,
		MerchantID: cfg.GatewayMerchantID,
		ClientID:   cfg.GatewayClientID,
		ClientKey:  cfg.GatewayClientKey,
		HMACKey:    cfg.GatewayHMACKey,
		Currency:   cfg.Currency,

		PNSubKey:    cfg.GatewayPNSubKey,
		PNSubSecret: cfg.GatewayPNSubSecret,
		PNUUID:      cfg.GatewayPNUUID,
		PNChannel:   cfg.GatewayPNChannel,

		Settlements: tranCh,
	})
	if err != nil {
		log.Fatalf("failed to connect to payment gateway: %v", err)
	}

	// Initialize services
	feeService := services.NewFeeService()
	inventoryService := services.NewInventoryService(services.NewDBStockStore(app))
	notificationService := services.NewNotificationService(
		services.NewPubNubPublisher(pn),
		cfg.NotifyChannel,
		cfg.TicketVerifySecret,
	)
	checkoutService := services.NewCheckoutService(app, feeService, inventoryService, gw, cfg)
	webhookService := services.NewWebhookService(app, inventoryService, notificationService, cfg.GatewayWebhookSecret)
	limiter := security.NewReferenceLimiter(redisClient, cfg.ReferenceRateLimit, cfg.ReferenceRateWindow)
	installmentService := services.NewInstallmentService(app, feeService, inventoryService, gw, checkoutService, limiter, cfg)

	// Initialize handlers
	checkoutHandler := handlers.NewCheckoutHandler(checkoutService)
	webhookHandler := handlers.NewWebhookHandler(webhookService)
	installmentHandler := handlers.NewInstallmentHandler(installmentService)

	// Enable migrations
	migratecmd.MustRegister(app, app.RootCmd, migratecmd.Config{
		Automigrate: true,
	})

	// Feed realtime settlements through the same processing path as webhooks
	go consumeSettlements(ctx, tranCh, webhookService, gw)

	// Metrics server on its own port
	if cfg.EnableMetrics {
		monitoring.NewMonitor(redisClient)
		monitoring.StartMetricsServer(cfg.MetricsPort, redisClient)
	}

	// Setup graceful shutdown
	go handleShutdown(cancel)

	// Register routes
	app.OnServe().BindFunc(func(e *core.ServeEvent) error {
		// Checkout endpoints
		e.Router.POST("/api/checkout", checkoutHandler.Checkout)
		e.Router.POST("/api/checkout/installments", installmentHandler.Checkout)

		// Gateway webhook
		e.Router.POST("/api/payments/webhook", webhookHandler.HandleWebhook)

		// Installment endpoints
		e.Router.POST("/api/installments/{installmentId}/generate-reference", installmentHandler.GenerateReference)
		e.Router.GET("/api/registrations/pending-payments", installmentHandler.PendingPayments)

		// Health check
		e.Router.GET("/health", func(e *core.RequestEvent) error {
			if err := utils.RedisHealthCheck(redisClient); err != nil {
				return e.JSON(503, map[string]string{
					"status": "unhealthy",
					"error":  err.Error(),
				})
			}
			return e.JSON(200, map[string]string{"status": "healthy"})
		})

		log.Println("Server routes registered")

		return e.Next()
	})

	// Start server
	if err := app.Start(); err != nil {
		log.Fatal(err)
	}
}

// consumeSettlements drains the realtime settlement stream. Each settlement
// goes through the webhook processing path, so idempotency and status
// reconciliation behave identically on both delivery channels.
func consumeSettlements(ctx context.Context, ch chan *status.Transaction, webhooks *services.WebhookService, gw *gateway.Gateway) {
	for {
		select {
		case <-ctx.Done():
			return
		case tran, ok := <-ch:
			if !ok {
				return
			}
			if err := webhooks.ProcessSettlement(ctx, tran); err != nil {
				slog.Error("failed to process settlement", "ref", tran.RefID, "error", err)
				continue
			}
			gw.Unsubscribe(ctx, tran.UUID)
		}
	}
}

func handleShutdown(cancel context.CancelFunc) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Println("Shutting down background tasks...")
	cancel()
}
