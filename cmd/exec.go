package cmd

import (
	"context"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"ticket-portal/config"
	"ticket-portal/internal/handlers"
	"ticket-portal/internal/services"
	"ticket-portal/internal/store"
	"ticket-portal/monitoring"
	"ticket-portal/security"
	"ticket-portal/utils"

	"github.com/pocketbase/pocketbase"
	"github.com/pocketbase/pocketbase/apis"
	"github.com/pocketbase/pocketbase/core"
	"github.com/pocketbase/pocketbase/plugins/migratecmd"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
)

func Start() error {
	app := pocketbase.New()

	// Load configuration
	cfg := config.LoadConfig()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.OTLPEndpoint != "" {
		tp, err := initTracer(ctx, cfg.OTLPEndpoint, cfg.ServiceName)
		if err != nil {
			log.Printf("Tracing disabled: %v", err)
		} else {
			defer func() {
				shutdownCtx, done := context.WithTimeout(context.Background(), 5*time.Second)
				defer done()
				if err := tp.Shutdown(shutdownCtx); err != nil {
					log.Printf("Error shutting down tracer provider: %v", err)
				}
			}()
		}
	}

	// Redis backs the durable webhook queue and submission throttling. The
	// portal still runs without it when the in-memory queue is configured.
	redisClient, err := utils.NewRedisClient(cfg.RedisURL, cfg.RedisPassword, cfg.RedisDB)
	if err != nil {
		if cfg.Webhook.Queue == "redis" {
			return err
		}
		log.Printf("Redis unavailable, rate limiting disabled: %v", err)
		redisClient = nil
	}
	if redisClient != nil {
		defer redisClient.Close()
	}

	// Stores and services
	conn := store.NewAppConn(app)
	tierStore := store.NewTierStore(conn)
	saleStore := store.NewSaleStore(conn)
	profileStore := store.NewProfileStore(conn)
	logStore := store.NewWebhookLogStore(conn)

	breaker := utils.NewCircuitBreaker("webhook")
	webhookService := services.NewWebhookService(services.WebhookSettings{
		URL:               cfg.Webhook.URL,
		Secret:            cfg.Webhook.Secret,
		Timeout:           cfg.Webhook.Timeout,
		MaxAttempts:       cfg.Webhook.MaxAttempts,
		Backoff:           cfg.Webhook.Backoff,
		ScreenshotBaseURL: cfg.ScreenshotBaseURL,
	}, saleStore, profileStore, logStore, breaker)
	if cfg.Webhook.URL == "" {
		log.Println("WEBHOOK_URL is not set, approved sales will be logged as failed deliveries")
	}

	queue, closeQueue := newWebhookQueue(ctx, cfg, redisClient, webhookService)
	defer closeQueue()

	var publisher services.Publisher
	if cfg.PubNubPublishKey != "" && cfg.PubNubSubscribeKey != "" {
		publisher = services.NewPubNubPublisher(cfg.PubNubPublishKey, cfg.PubNubSubscribeKey, cfg.PubNubSecretKey, cfg.PubNubUserID)
	}
	notifier := services.NewNotifyService(publisher, cfg.CurrencyExponent)

	approvalService := services.NewApprovalService(conn, tierStore, saleStore, queue, notifier)
	submissionService := services.NewSubmissionService(saleStore, tierStore, profileStore)
	inventoryService := services.NewInventoryService(tierStore)
	queryService := services.NewSaleQueryService(saleStore, logStore)

	// Initialize handlers
	adminHandler := handlers.NewAdminHandler(approvalService, queryService, inventoryService)
	partnerHandler := handlers.NewPartnerHandler(submissionService, approvalService, queryService)
	publicHandler := handlers.NewPublicHandler(app, submissionService, inventoryService)
	limiter := security.NewRateLimiter(redisClient, cfg.SubmissionRateLimit, cfg.SubmissionRateWindow)

	// Enable migrations
	migratecmd.MustRegister(app, app.RootCmd, migratecmd.Config{
		Automigrate: cfg.IsDevelopment(),
	})

	handlers.RegisterRecordHooks(app)

	// Setup graceful shutdown
	go handleShutdown(cancel)

	app.OnServe().BindFunc(func(se *core.ServeEvent) error {
		if cfg.EnableMetrics {
			queueKey := ""
			if cfg.Webhook.Queue == "redis" {
				queueKey = services.WebhookQueueKey
			}
			monitor := monitoring.NewMonitor(saleStore, redisClient, queueKey)
			go monitor.Run(ctx)
			se.Router.GET("/metrics", apis.WrapStdHandler(promhttp.Handler()))
		}

		api := se.Router.Group("/api/v1")

		// Public referral page
		api.GET("/public/partners/{code}", publicHandler.GetPartner)
		api.GET("/public/tiers", publicHandler.ListTiers)
		api.POST("/public/screenshots", publicHandler.UploadScreenshot).BindFunc(limiter.SubmissionLimit)
		api.POST("/public/sales", publicHandler.SubmitSale).BindFunc(limiter.SubmissionLimit)

		// Partner self-service
		api.GET("/partner/sales", partnerHandler.ListSales).Bind(apis.RequireAuth())
		api.POST("/partner/sales", partnerHandler.CreateSale).Bind(apis.RequireAuth())
		api.PATCH("/partner/sales/{id}", partnerHandler.UpdateSale).Bind(apis.RequireAuth())

		// Admin endpoints
		admin := api.Group("/admin")
		admin.Bind(apis.RequireAuth())
		admin.GET("/sales", adminHandler.ListSales)
		admin.GET("/sales/{id}", adminHandler.GetSale)
		admin.POST("/sales/{id}/approve", adminHandler.ApproveSale)
		admin.POST("/sales/{id}/reject", adminHandler.RejectSale)
		admin.GET("/sales/{id}/webhooks", adminHandler.WebhookLogs)
		admin.POST("/sales/{id}/webhooks/replay", adminHandler.ReplayWebhook)
		admin.GET("/tiers", adminHandler.ListTiers)
		admin.POST("/tiers", adminHandler.CreateTier)
		admin.PATCH("/tiers/{id}", adminHandler.UpdateTier)

		// Health check
		se.Router.GET("/health", func(e *core.RequestEvent) error {
			if redisClient != nil {
				if err := utils.RedisHealthCheck(redisClient); err != nil {
					return e.JSON(http.StatusServiceUnavailable, map[string]string{
						"status": "unhealthy",
						"error":  err.Error(),
					})
				}
			}
			return e.JSON(http.StatusOK, map[string]string{"status": "healthy"})
		})

		log.Println("Server routes registered")

		return se.Next()
	})

	// Start server
	if err := app.Start(); err != nil {
		log.Fatal(err)
	}
	return nil
}

// newWebhookQueue picks the dispatch backend. The returned func stops it.
func newWebhookQueue(ctx context.Context, cfg *config.Config, redisClient *redis.Client, d services.Dispatcher) (services.WebhookQueue, func()) {
	if cfg.Webhook.Queue == "redis" && redisClient != nil {
		q := services.NewRedisQueue(redisClient, d)
		q.Run(ctx, cfg.Webhook.Workers)
		slog.Info("webhook queue started", "backend", "redis", "workers", cfg.Webhook.Workers)
		return q, func() {}
	}

	q := services.NewChannelQueue(d, cfg.Webhook.Workers, cfg.Webhook.Workers*64)
	slog.Info("webhook queue started", "backend", "memory", "workers", cfg.Webhook.Workers)
	return q, q.Close
}

// handleShutdown handles graceful shutdown
func handleShutdown(cancel context.CancelFunc) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	<-sigChan
	log.Println("Shutdown signal received, cleaning up...")
	cancel()
}
