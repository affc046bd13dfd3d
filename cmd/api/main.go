// Package main is the entrypoint for the Petlink API server.
package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"

	"github.com/petlink/petlink/internal/auth"
	"github.com/petlink/petlink/internal/cache"
	"github.com/petlink/petlink/internal/config"
	"github.com/petlink/petlink/internal/handler"
	"github.com/petlink/petlink/internal/imagehost"
	"github.com/petlink/petlink/internal/lookup"
	"github.com/petlink/petlink/internal/metrics"
	"github.com/petlink/petlink/internal/middleware"
	"github.com/petlink/petlink/internal/repository"
	"github.com/petlink/petlink/internal/scan"
	"github.com/petlink/petlink/internal/server"
	"github.com/petlink/petlink/internal/service"
)

func main() {
	if err := run(); err != nil {
		slog.Error("petlink_exited", "error", err)
		os.Exit(1)
	}
}

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logger := newLogger(cfg)

	// Apply migrations before serving
	version, err := repository.Migrate(cfg.DatabaseURL)
	if err != nil {
		return errors.New(sanitizeError(err, cfg.DatabaseURL))
	}
	logger.Info("migrations_applied", "version", version)

	// Initialize database
	repo, err := repository.New(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error("database_connect_failed",
			slog.String("error", sanitizeError(err, cfg.DatabaseURL)),
			slog.String("database_url", redactURL(cfg.DatabaseURL)),
		)
		return errors.New("database unavailable")
	}
	defer repo.Close()
	logger.Info("database_connected")

	// Initialize cache
	cacheClient, err := cache.New(ctx, cfg.RedisURL)
	if err != nil {
		logger.Error("redis_connect_failed",
			slog.String("error", sanitizeError(err, cfg.RedisURL)),
			slog.String("redis_url", redactURL(cfg.RedisURL)),
		)
		return errors.New("redis unavailable")
	}
	defer cacheClient.Close()
	logger.Info("redis_connected")

	// Metrics
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	recorder := metrics.NewPrometheus(registry)

	// Initialize services
	contacts := service.NewContactCache(cfg.Contacts.CacheSize, cfg.Contacts.CacheTTL)
	scanEvents := repository.NewScanEventRepository(repo)

	var images service.ImageUploader
	if cfg.Images.Enabled() {
		images = imagehost.NewClient(cfg.Images.APIKey, cfg.Images.UploadURL, imagehost.NewHTTPClient())
	}

	tokens := auth.NewTokenIssuer(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)

	allocator := service.NewAllocator(repo, service.AllocatorConfig{
		Prefix:      cfg.PetCodes.Prefix,
		MaxAttempts: cfg.PetCodes.MaxAttempts,
	}, recorder)

	petService := service.NewPetService(service.PetServiceDeps{
		Pets:      repo,
		Allocator: allocator,
		Cache:     cacheClient,
		Scans:     scanEvents,
		Images:    images,
		BaseURL:   cfg.BaseURL,
		Metrics:   recorder,
		Logger:    logger,
	})
	accountService := service.NewAccountService(service.AccountServiceDeps{
		Accounts: repo,
		Hasher:   auth.NewHasher(auth.DefaultParams),
		Tokens:   tokens,
		Roles:    cacheClient,
		Contacts: contacts,
		Logger:   logger,
	})
	campaignService := service.NewCampaignService(repo, logger)
	resolver := service.NewResolver(service.ResolverDeps{
		Pets:     repo,
		Accounts: repo,
		Cache:    cacheClient,
		Contacts: contacts,
		Metrics:  recorder,
		Logger:   logger,
	})

	publisher := scan.NewPublisher(cacheClient.Client(), logger, recorder)

	// Initialize handlers
	health := handler.NewHealthHandler(logger,
		handler.Dependency{Name: "postgres", Pinger: repo},
		handler.Dependency{Name: "redis", Pinger: cacheClient},
	)

	router := server.NewRouter(server.RouterDeps{
		Logger:      logger,
		PrintStack:  cfg.IsDevelopment(),
		Security:    middleware.SecurityConfig{IsDevelopment: cfg.IsDevelopment()},
		CORS:        corsConfig(cfg.HTTP.CORSAllowedOrigins),
		MaxBodySize: cfg.HTTP.MaxRequestBodySize,
		Auth: middleware.AuthConfig{
			Logger: logger,
			Tokens: tokens,
			Roles:  accountService,
		},
		RateLimit: middleware.RateLimitConfig{
			Logger:         logger,
			Limiter:        cacheClient,
			LookupEnabled:  cfg.RateLimit.LookupEnabled,
			LookupRPS:      cfg.RateLimit.LookupRPS,
			LookupBurst:    cfg.RateLimit.LookupBurst,
			LoginPerMinute: cfg.RateLimit.LoginPerMinute,
			LoginBurst:     cfg.RateLimit.LoginBurst,
		},
		Observer: recorder,

		Root:     handler.New(),
		Health:   health,
		Metrics:  handler.NewMetricsHandler(registry),
		Accounts: handler.NewAccountHandler(accountService, logger),
		Pets:     handler.NewPetHandler(petService, logger),
		Lookup: handler.NewLookupHandler(handler.LookupHandlerDeps{
			Resolver:    resolver,
			Sessions:    lookup.NewTracker[service.Resolution](cfg.Sessions.Max, cfg.Sessions.TTL),
			Publisher:   publisher,
			CountryCode: cfg.Contacts.CountryCode,
			Logger:      logger,
		}),
		Campaigns: handler.NewCampaignHandler(campaignService, logger),
	})

	srv := server.New(router, server.Config{
		Port:            cfg.AppPort,
		ReadTimeout:     cfg.HTTP.ReadTimeout,
		WriteTimeout:    cfg.HTTP.WriteTimeout,
		ShutdownTimeout: cfg.HTTP.ShutdownTimeout,
	}, logger)

	g, gctx := errgroup.WithContext(ctx)

	if cfg.Scan.Enabled {
		worker := scan.NewWorker(cacheClient.Client(), scanEvents, logger, scan.NewConsumerID(), recorder, scan.WorkerOptions{
			BatchSize:    cfg.Scan.BatchSize,
			BlockTimeout: cfg.Scan.Block,
		})
		// The worker outlives the HTTP server so scans published by the last
		// requests are drained; the server stops it during shutdown.
		srv.OnShutdown("scan_worker", worker.Shutdown)
		g.Go(func() error {
			return worker.Run(context.WithoutCancel(gctx))
		})
	}
	// Registered last so it stops first: scans from the final requests reach
	// the stream before the worker stops reading.
	srv.OnShutdown("scan_publisher", publisher.Shutdown)

	g.Go(func() error {
		return srv.Run(gctx)
	})

	logger.Info("petlink_starting",
		"port", cfg.AppPort,
		"base_url", cfg.BaseURL,
		"env", cfg.AppEnv,
		"image_uploads", cfg.Images.Enabled(),
		"scan_worker", cfg.Scan.Enabled,
	)

	return g.Wait()
}

func newLogger(cfg *config.Config) *slog.Logger {
	opts := &slog.HandlerOptions{Level: cfg.LogLevel}

	var h slog.Handler = slog.NewJSONHandler(os.Stdout, opts)
	if cfg.LogFormat == "text" {
		h = slog.NewTextHandler(os.Stdout, opts)
	}

	logger := slog.New(h).With("service", "petlink")
	slog.SetDefault(logger)
	return logger
}

func corsConfig(origins []string) middleware.CORSConfig {
	c := middleware.DefaultCORSConfig()
	c.AllowedOrigins = origins
	return c
}
