package main

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/go-redis/redis/v8"

	"github.com/platinummonkey/accounts/pkg/audit"
	"github.com/platinummonkey/accounts/pkg/config"
	"github.com/platinummonkey/accounts/pkg/middleware"
	"github.com/platinummonkey/accounts/pkg/observability"
	"github.com/platinummonkey/accounts/pkg/storage"
	"github.com/platinummonkey/accounts/pkg/storage/cache"
	"github.com/platinummonkey/accounts/pkg/storage/sqlstore"
)

// storageDeps is the principal store plus the connections behind it.
// db and redis are nil when not configured.
type storageDeps struct {
	store storage.UserStore
	db    *sql.DB
	redis *redis.Client
}

func openStorage(ctx context.Context, cfg *config.Config, metrics *observability.Metrics, logger *observability.Logger, shutdown *observability.ShutdownManager) (*storageDeps, error) {
	deps := &storageDeps{}
	sc := cfg.Storage

	switch sc.Type {
	case "memory":
		logger.Warn("Using in-memory storage, principals are lost on restart")
		deps.store = storage.NewMemoryStore()

	case "postgres", "sqlite":
		dialect, dsn := sqlstore.DialectPostgres, sc.PostgresURL
		if sc.Type == "sqlite" {
			dialect, dsn = sqlstore.DialectSQLite, sc.SQLitePath
		}

		db, err := sqlstore.Open(ctx, sqlstore.ConnectionConfig{
			Dialect:      dialect,
			DSN:          dsn,
			MaxOpenConns: sc.MaxOpenConns,
			MaxIdleConns: sc.MaxIdleConns,
			MaxLifetime:  sc.ConnMaxLifetime,
			Timeout:      sc.QueryTimeout,
		})
		if err != nil {
			return nil, err
		}
		shutdown.RegisterShutdownFunc(func(context.Context) error { return db.Close() })

		if err := sqlstore.Migrate(ctx, db, dialect); err != nil {
			return nil, err
		}
		if v, err := sqlstore.SchemaVersion(ctx, db, dialect); err == nil {
			logger.WithField("dialect", string(dialect)).WithField("schema_version", v).Info("Database ready")
		}

		collector, err := observability.NewDBStatsCollector(db, metrics, cfg.Observability.DBStatsSchedule, logger)
		if err != nil {
			return nil, err
		}
		collector.Start()
		shutdown.RegisterShutdownFunc(func(context.Context) error {
			collector.Stop()
			return nil
		})

		deps.db = db
		deps.store = sqlstore.NewStore(db, sc.QueryTimeout)

	default:
		return nil, fmt.Errorf("unsupported storage type: %s", sc.Type)
	}

	if sc.RedisURL != "" {
		client, err := cache.NewRedisClient(ctx, sc)
		if err != nil {
			return nil, err
		}
		shutdown.RegisterShutdownFunc(func(context.Context) error { return client.Close() })
		deps.redis = client
	}

	if sc.CacheEnabled {
		deps.store = cache.NewStore(deps.store, cache.Options{
			Redis:   deps.redis,
			Size:    sc.L1CacheSize,
			TTL:     sc.CacheTTL,
			Metrics: metrics,
			Logger:  logger,
		})
	}

	return deps, nil
}

// newAuditLogger fans events out to the log and, for SQL storage, the
// audit_logs table. Writes happen off the request path.
func newAuditLogger(cfg *config.Config, db *sql.DB, logger *observability.Logger) (audit.Logger, error) {
	if !cfg.Audit.Enabled {
		return audit.NewNoOpLogger(), nil
	}

	sinks := []audit.Logger{audit.NewLogLogger(logger)}
	if db != nil && cfg.Audit.Database {
		dbLogger, err := audit.NewDBLogger(db)
		if err != nil {
			return nil, err
		}
		sinks = append(sinks, dbLogger)
	}

	return audit.NewAsyncLogger(audit.NewMultiLogger(sinks...), cfg.Audit.Timeout, logger), nil
}

// newRateLimiter shares limits through Redis when it is available so that
// every replica enforces the same budget.
func newRateLimiter(ctx context.Context, cfg *config.Config, deps *storageDeps) middleware.Limiter {
	if !cfg.RateLimit.Enabled {
		return nil
	}

	rl := &middleware.RateLimitConfig{
		RequestsPerWindow: cfg.RateLimit.Requests,
		WindowDuration:    cfg.RateLimit.Window,
		BurstSize:         cfg.RateLimit.Burst,
	}
	if deps.redis != nil {
		return middleware.NewDistributedRateLimiter(deps.redis, rl, "")
	}

	limiter := middleware.NewRateLimiter(rl)
	limiter.StartCleanup(ctx)
	return limiter
}
