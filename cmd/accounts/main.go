package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"

	"github.com/platinummonkey/accounts/pkg/accounts"
	"github.com/platinummonkey/accounts/pkg/api"
	"github.com/platinummonkey/accounts/pkg/audit"
	"github.com/platinummonkey/accounts/pkg/auth"
	"github.com/platinummonkey/accounts/pkg/config"
	"github.com/platinummonkey/accounts/pkg/middleware"
	"github.com/platinummonkey/accounts/pkg/observability"
)

// version is set at build time with -ldflags "-X main.version=..."
var version = "dev"

func main() {
	configFile := flag.String("config", "", "Path to a YAML config file (overrides "+config.ConfigFileEnv+")")
	flag.Parse()

	if *configFile != "" {
		os.Setenv(config.ConfigFileEnv, *configFile)
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger := observability.NewLogger(cfg.Observability.Level(), os.Stdout).
		WithField("service", "accounts").
		WithField("version", version)

	if err := run(context.Background(), cfg, logger); err != nil {
		logger.WithError(err).Error("Accounts service exited with error")
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, logger *observability.Logger) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics := observability.NewMetrics(registry)

	shutdown := observability.NewShutdownManager(logger, cfg.Server.ShutdownTimeout)

	otelProviders, err := observability.InitOTel(ctx, observability.OTelConfig{
		Enabled:        cfg.Observability.OTelEnabled,
		Endpoint:       cfg.Observability.OTelEndpoint,
		ServiceName:    cfg.Observability.OTelServiceName,
		ServiceVersion: cfg.Observability.OTelServiceVersion,
		Insecure:       cfg.Observability.OTelInsecure,
		SampleRatio:    cfg.Observability.OTelSampleRatio,
	}, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize OpenTelemetry: %w", err)
	}
	shutdown.RegisterShutdownFunc(func(ctx context.Context) error {
		return observability.ShutdownOTel(ctx, otelProviders, logger)
	})

	deps, err := openStorage(ctx, cfg, metrics, logger, shutdown)
	if err != nil {
		return err
	}

	auditLogger, err := newAuditLogger(cfg, deps.db, logger)
	if err != nil {
		return err
	}
	shutdown.RegisterShutdownFunc(func(context.Context) error {
		return auditLogger.Close()
	})

	hasher, err := auth.NewBcryptHasher(cfg.Auth.BcryptCost)
	if err != nil {
		return err
	}
	codec, err := auth.NewTokenCodec([]byte(cfg.Auth.JWTSecret), cfg.Auth.TokenTTL)
	if err != nil {
		return err
	}

	svc, err := accounts.NewService(deps.store, hasher, codec,
		accounts.WithMetrics(metrics),
		accounts.WithMinPasswordLength(cfg.Auth.MinPasswordLength),
	)
	if err != nil {
		return err
	}

	if cfg.Bootstrap.Enabled() {
		bootCtx := observability.WithLogger(audit.WithLogger(ctx, auditLogger), logger)
		admin, created, err := svc.EnsureAdmin(bootCtx, cfg.Bootstrap.AdminName, cfg.Bootstrap.AdminEmail, cfg.Bootstrap.AdminPassword)
		if err != nil {
			return fmt.Errorf("failed to bootstrap admin: %w", err)
		}
		logger.WithField("principal_id", admin.ID).WithField("created", created).Info("Bootstrap admin ready")
	}

	server := api.NewServer(svc, middleware.NewAuthMiddleware(codec, deps.store, metrics), api.Options{
		PathPrefix:     cfg.Server.PathPrefix,
		RateLimiter:    newRateLimiter(ctx, cfg, deps),
		TrustProxy:     cfg.Server.TrustProxy,
		AllowedOrigins: cfg.Server.AllowedOrigins,
		MaxBodyBytes:   cfg.Server.MaxBodyBytes,
		Audit:          auditLogger,
		Metrics:        metrics,
		Logger:         logger,
	})

	apiServer := &http.Server{
		Addr:         net.JoinHostPort(cfg.Server.Host, cfg.Server.Port),
		Handler:      server,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	healthMux := http.NewServeMux()
	observability.RegisterHealthRoutes(healthMux, observability.NewHealthChecker(deps.db, deps.redis, version))
	if cfg.Observability.MetricsEnabled {
		observability.RegisterMetricsEndpoint(healthMux, registry)
	}
	healthServer := &http.Server{
		Addr:         net.JoinHostPort(cfg.Server.Host, cfg.Server.HealthPort),
		Handler:      healthMux,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// Registered last so both servers drain before any cleanup runs
	shutdown.RegisterShutdownFunc(func(ctx context.Context) error {
		return errors.Join(apiServer.Shutdown(ctx), healthServer.Shutdown(ctx))
	})

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.WithField("addr", apiServer.Addr).Info("Starting accounts API server")
		return serve(apiServer)
	})
	g.Go(func() error {
		logger.WithField("addr", healthServer.Addr).Info("Starting health server")
		return serve(healthServer)
	})
	g.Go(func() error {
		return shutdown.WaitForShutdown(gctx)
	})

	return g.Wait()
}

// serve runs srv until it is shut down
func serve(srv *http.Server) error {
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server %s: %w", srv.Addr, err)
	}
	return nil
}
