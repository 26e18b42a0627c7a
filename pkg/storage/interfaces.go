package storage

import (
	"context"
	"errors"
	"time"

	"github.com/platinummonkey/accounts/pkg/auth"
)

// Sentinel errors returned by every UserStore implementation
var (
	ErrNotFound       = errors.New("principal not found")
	ErrDuplicateEmail = errors.New("email already registered")
)

// PrincipalReader provides read access to principals.
// Reads never include the password hash unless WithPasswordHash is passed.
type PrincipalReader interface {
	GetByEmail(ctx context.Context, email string, opts ...ReadOption) (*auth.Principal, error)
	GetByID(ctx context.Context, id string, opts ...ReadOption) (*auth.Principal, error)
	List(ctx context.Context) ([]*auth.Principal, error)
}

// PrincipalWriter provides write access to principals
type PrincipalWriter interface {
	// Create stores p. p.ID, p.CreatedAt and p.UpdatedAt are set when empty.
	Create(ctx context.Context, p *auth.Principal) error
	// Update applies the non-nil fields of u and returns the updated principal.
	Update(ctx context.Context, id string, u Update) (*auth.Principal, error)
	// Delete removes the principal permanently.
	Delete(ctx context.Context, id string) error
}

// HealthChecker reports backend health
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// UserStore is the durable record of principals
type UserStore interface {
	PrincipalReader
	PrincipalWriter
	HealthChecker
}

// Update is a partial update of a principal
type Update struct {
	Name   *string
	Active *bool
}

// ReadOptions controls which fields a read returns
type ReadOptions struct {
	IncludePasswordHash bool
}

// ReadOption configures a read
type ReadOption func(*ReadOptions)

// WithPasswordHash opts a read into returning the stored password hash.
// Only the login path should use it.
func WithPasswordHash() ReadOption {
	return func(o *ReadOptions) {
		o.IncludePasswordHash = true
	}
}

// ApplyReadOptions folds opts into a ReadOptions value
func ApplyReadOptions(opts ...ReadOption) ReadOptions {
	var o ReadOptions
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// Config for storage backend
type Config struct {
	Type string `yaml:"type"` // "memory", "postgres", "sqlite"

	// SQL config
	PostgresURL     string        `yaml:"postgres_url"`
	SQLitePath      string        `yaml:"sqlite_path"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
	QueryTimeout    time.Duration `yaml:"query_timeout"`

	// Redis config
	RedisURL        string `yaml:"redis_url"`
	RedisPassword   string `yaml:"redis_password"`
	RedisDB         int    `yaml:"redis_db"`
	RedisMaxRetries int    `yaml:"redis_max_retries"`
	RedisPoolSize   int    `yaml:"redis_pool_size"`

	// Principal cache config. Without RedisURL the cache is in-process and
	// only coherent for a single replica; L1CacheSize applies to that mode.
	CacheEnabled bool          `yaml:"cache_enabled"`
	CacheTTL     time.Duration `yaml:"cache_ttl"`
	L1CacheSize  int           `yaml:"l1_cache_size"`
}

// DefaultConfig returns sensible default configuration
func DefaultConfig() Config {
	return Config{
		Type:            "memory",
		SQLitePath:      "file:accounts.db?_foreign_keys=on",
		MaxOpenConns:    20,
		MaxIdleConns:    5,
		ConnMaxLifetime: 30 * time.Minute,
		QueryTimeout:    5 * time.Second,
		RedisDB:         0,
		RedisMaxRetries: 3,
		RedisPoolSize:   10,
		CacheEnabled:    false,
		CacheTTL:        30 * time.Second,
		L1CacheSize:     1024,
	}
}
