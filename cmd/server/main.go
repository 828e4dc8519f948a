package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dukerupert/cartwright/internal"
	"github.com/dukerupert/cartwright/internal/cache"
	"github.com/dukerupert/cartwright/internal/catalog"
	"github.com/dukerupert/cartwright/internal/events"
	"github.com/dukerupert/cartwright/internal/handler/api"
	"github.com/dukerupert/cartwright/internal/memory"
	"github.com/dukerupert/cartwright/internal/middleware"
	"github.com/dukerupert/cartwright/internal/postgres"
	"github.com/dukerupert/cartwright/internal/router"
	"github.com/dukerupert/cartwright/internal/routes"
	"github.com/dukerupert/cartwright/internal/service"
	"github.com/dukerupert/cartwright/internal/shipping"
	"github.com/dukerupert/cartwright/internal/stock"
	"github.com/dukerupert/cartwright/internal/tax"
	"github.com/dukerupert/cartwright/internal/telemetry"
	"github.com/dukerupert/cartwright/internal/worker"
	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Load configuration
	cfg, err := internal.NewConfig()
	if err != nil {
		return fmt.Errorf("config initialization failed: %w", err)
	}

	// Configure logger
	logger := internal.NewLogger(os.Stdout, cfg.Env, cfg.LogLevel)
	slog.SetDefault(logger)

	flushSentry, err := telemetry.InitSentry(telemetry.SentryConfig{
		DSN:              cfg.Sentry.DSN,
		Enabled:          cfg.Sentry.Enabled,
		Environment:      cfg.Sentry.Environment,
		Release:          cfg.Sentry.Release,
		SampleRate:       cfg.Sentry.SampleRate,
		TracesSampleRate: cfg.Sentry.TracesSampleRate,
		Debug:            cfg.Sentry.Debug,
	}, logger)
	if err != nil {
		return fmt.Errorf("sentry initialization failed: %w", err)
	}
	defer flushSentry()

	cat, err := catalog.Load(cfg.CatalogFile)
	if err != nil {
		return fmt.Errorf("catalog load failed: %w", err)
	}
	logger.Info("Catalog loaded", "currencies", cat.Currencies(), "default_region", cat.DefaultRegion)

	// Initialize database/sql connection for migrations
	logger.Info("Connecting to database...")
	sqlDB, err := sql.Open("pgx", cfg.Database.URL)
	if err != nil {
		return fmt.Errorf("database connection failed: %w", err)
	}
	defer sqlDB.Close()

	if err := sqlDB.PingContext(ctx); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}

	logger.Info("Running database migrations...")
	if err := internal.RunMigrations(sqlDB); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}
	logger.Info("Database migrations completed successfully")

	// Initialize pgx connection pool for application
	poolConfig, err := pgxpool.ParseConfig(cfg.Database.URL)
	if err != nil {
		return fmt.Errorf("invalid database url: %w", err)
	}
	if cfg.Database.MaxConns > 0 {
		poolConfig.MaxConns = cfg.Database.MaxConns
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return fmt.Errorf("failed to create connection pool: %w", err)
	}
	defer pool.Close()

	// ==========================================================================
	// Stores
	// ==========================================================================

	variations := postgres.NewVariationStore(pool)
	discounts := postgres.NewDiscountStore(pool)
	bundles := postgres.NewBundleStore(pool)
	sales := postgres.NewSaleStore(pool)
	carts := postgres.NewCartStore(pool)
	orders := postgres.NewOrderStore(pool)
	ledger := postgres.NewStockLedger(pool, stock.Thresholds{
		Base:       cfg.Stock.BaseThreshold,
		Pool:       cfg.Stock.PoolThreshold,
		PoolCutoff: cfg.Stock.PoolCutoff,
	})

	// Rule snapshots and payment idempotency go through redis when configured
	var (
		rules       service.RuleSource = service.NewBundleSource(bundles)
		invalidator service.Invalidator
		idempotency service.IdempotencyStore = memory.NewIdempotency()
	)
	if cfg.Redis.URL != "" {
		redisClient, err := cache.Connect(ctx, cfg.Redis.URL)
		if err != nil {
			return fmt.Errorf("redis connection failed: %w", err)
		}
		defer redisClient.Close()

		ruleCache := cache.NewRuleCache(redisClient, service.NewBundleSource(bundles), cfg.Redis.RuleCacheTTL, logger)
		rules, invalidator = ruleCache, ruleCache
		idempotency = cache.NewIdempotency(redisClient, cfg.Redis.IdempotencyTTL)
		logger.Info("Redis rule cache enabled", "ttl", cfg.Redis.RuleCacheTTL)
	} else {
		logger.Warn("REDIS_URL not set, payment idempotency is per process")
	}

	var publisher events.Publisher = events.Noop{}
	if cfg.NATS.URL != "" {
		natsPublisher, err := events.Connect(cfg.NATS.URL, cfg.NATS.ClientName, logger)
		if err != nil {
			return fmt.Errorf("nats connection failed: %w", err)
		}
		publisher = natsPublisher
		logger.Info("Order events enabled", "url", cfg.NATS.URL)
	}
	defer publisher.Close()

	// ==========================================================================
	// Services
	// ==========================================================================

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	businessMetrics := telemetry.NewBusinessMetrics("cartwright", registry)

	shippingProvider := shipping.NewFlatRateProvider(cat.ShippingRegions())

	var taxCalculator tax.Calculator = tax.NewNoTaxCalculator()
	if !cfg.Tax.Rate.IsZero() {
		taxCalculator = tax.NewPercentageCalculator(cfg.Tax.Rate, cfg.Tax.Name)
	}

	cartService := service.NewCartService(
		carts,
		variations,
		discounts,
		rules,
		ledger,
		shippingProvider,
		cat,
		service.CartOptions{
			Expiry:        cfg.Cart.Expiry,
			OptionTypes:   cat.OptionTypes,
			DefaultRegion: cat.DefaultRegion,
		},
		businessMetrics,
		logger,
	)
	checkoutService := service.NewCheckoutService(
		cartService,
		carts,
		orders,
		discounts,
		ledger,
		shippingProvider,
		taxCalculator,
		idempotency,
		publisher,
		service.CheckoutOptions{DefaultRegion: cat.DefaultRegion},
		businessMetrics,
		logger,
	)
	orderService := service.NewOrderService(orders, publisher, businessMetrics, logger)
	promotionService := service.NewPromotionService(discounts, bundles, sales, variations, invalidator, logger)

	// ==========================================================================
	// Background jobs
	// ==========================================================================

	sweeper := worker.NewSweeper(worker.Config{
		Interval: cfg.Cart.SweepInterval,
	}, businessMetrics, logger)
	sweeper.Register(worker.PurgeCartsJob(carts, cfg.Cart.Expiry, businessMetrics, logger))

	sweeperDone := make(chan struct{})
	go func() {
		defer close(sweeperDone)
		if err := sweeper.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("sweeper stopped", "error", err)
		}
	}()

	// ==========================================================================
	// Routes
	// ==========================================================================

	httpMetrics := middleware.NewMetrics("cartwright", registry)

	rateLimit := middleware.DefaultRateLimiterConfig()
	rateLimit.RequestsPerSecond = cfg.RateLimit.RequestsPerSecond
	rateLimit.BurstSize = cfg.RateLimit.Burst
	rateLimiter := middleware.NewRateLimiter(rateLimit)

	r := router.New(
		middleware.RequestID,
		middleware.WithClientIP,
		middleware.WithRequestLogger(logger),
		telemetry.SentryMiddleware(),
		middleware.Recovery,
		httpMetrics.Middleware,
		middleware.AccessLog,
	)

	// Metrics endpoint (no auth required, but should be protected in production via firewall)
	r.Get("/metrics", httpMetrics.Handler().ServeHTTP)

	checkoutHandler := api.NewCheckoutHandler(checkoutService, orderService)
	promotionHandler := api.NewPromotionHandler(promotionService)

	apiRouter := r.Group(
		middleware.MaxBodySize(),
		rateLimiter.Middleware,
	)
	routes.RegisterAPIRoutes(apiRouter, routes.APIDeps{
		CartHandler:      api.NewCartHandler(cartService),
		CheckoutHandler:  checkoutHandler,
		StockHandler:     api.NewStockHandler(ledger),
		PromotionHandler: promotionHandler,
		Ready: func(req *http.Request) error {
			return pool.Ping(req.Context())
		},
	})
	if cfg.AdminToken == "" {
		logger.Warn("ADMIN_TOKEN not set, admin routes reject every request")
	}
	routes.RegisterAdminRoutes(apiRouter, routes.AdminDeps{
		PromotionHandler: promotionHandler,
		CheckoutHandler:  checkoutHandler,
		Token:            cfg.AdminToken,
	})

	// ==========================================================================
	// Start server
	// ==========================================================================

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("Starting server", "address", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	select {
	case err := <-serverErr:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
	case <-ctx.Done():
		logger.Info("Shutting down server")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}
	stop()
	<-sweeperDone

	return nil
}

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}
