package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/platinummonkey/accounts/pkg/auth"
	"github.com/platinummonkey/accounts/pkg/observability"
	"github.com/platinummonkey/accounts/pkg/storage"
)

const (
	keyPrefix = "accounts:principal:"
	genPrefix = "accounts:principal-gen:"
)

// fillScript stores a principal only when the id's generation still matches
// the value observed before the backing read.
var fillScript = redis.NewScript(`
local cur = redis.call("GET", KEYS[2])
if cur == false then cur = "" end
if cur ~= ARGV[1] then return 0 end
redis.call("SET", KEYS[1], ARGV[2], "PX", ARGV[3])
return 1
`)

// Store decorates a storage.UserStore with a principal cache. With Redis
// configured the cache lives only in Redis so every replica sees the same
// invalidations; without Redis an in-process expirable LRU is used, which is
// only coherent for a single replica. Only id lookups without the password
// hash are cached. Writes bump a generation so a fill that raced a write is
// discarded instead of resurrecting the old principal.
type Store struct {
	storage.UserStore

	l1      *expirable.LRU[string, auth.Principal]
	redis   *redis.Client
	ttl     time.Duration
	metrics *observability.Metrics
	logger  *observability.Logger

	mu  sync.Mutex
	gen uint64
}

// Options configures the cache decorator
type Options struct {
	Redis   *redis.Client // shared tier; disables the in-process tier when set
	Size    int
	TTL     time.Duration
	Metrics *observability.Metrics
	Logger  *observability.Logger
}

// NewStore wraps next with caching
func NewStore(next storage.UserStore, opts Options) *Store {
	if opts.Size <= 0 {
		opts.Size = 1024
	}
	if opts.TTL <= 0 {
		opts.TTL = 30 * time.Second
	}
	if opts.Logger == nil {
		opts.Logger = observability.NewLogger(observability.InfoLevel, nil)
	}

	s := &Store{
		UserStore: next,
		redis:     opts.Redis,
		ttl:       opts.TTL,
		metrics:   opts.Metrics,
		logger:    opts.Logger.WithField("component", "principal_cache"),
	}
	if s.redis == nil {
		s.l1 = expirable.NewLRU[string, auth.Principal](opts.Size, nil, opts.TTL)
	}
	return s
}

func cacheKey(id string) string {
	return keyPrefix + id
}

func genKey(id string) string {
	return genPrefix + id
}

// GetByID returns a cached principal when available
func (s *Store) GetByID(ctx context.Context, id string, opts ...storage.ReadOption) (*auth.Principal, error) {
	if storage.ApplyReadOptions(opts...).IncludePasswordHash {
		return s.UserStore.GetByID(ctx, id, opts...)
	}
	if s.redis != nil {
		return s.getShared(ctx, id)
	}
	return s.getLocal(ctx, id)
}

func (s *Store) getLocal(ctx context.Context, id string) (*auth.Principal, error) {
	if p, ok := s.l1.Get(id); ok {
		s.metrics.RecordCacheHit("l1")
		return &p, nil
	}
	s.metrics.RecordCacheMiss("l1")

	s.mu.Lock()
	observed := s.gen
	s.mu.Unlock()

	p, err := s.UserStore.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	if s.gen == observed {
		s.l1.Add(id, *p)
	}
	s.mu.Unlock()
	return p, nil
}

func (s *Store) getShared(ctx context.Context, id string) (*auth.Principal, error) {
	if p, ok := s.getRedis(ctx, id); ok {
		s.metrics.RecordCacheHit("redis")
		return p, nil
	}

	observed, err := s.redis.Get(ctx, genKey(id)).Result()
	fill := err == nil || errors.Is(err, redis.Nil)
	if err != nil && !errors.Is(err, redis.Nil) {
		s.logger.WithError(err).Warn("Redis generation read failed, skipping fill")
	}

	p, err := s.UserStore.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if fill {
		s.setRedis(ctx, p, observed)
	}
	return p, nil
}

// Update invalidates the cached principal after a successful write
func (s *Store) Update(ctx context.Context, id string, u storage.Update) (*auth.Principal, error) {
	p, err := s.UserStore.Update(ctx, id, u)
	s.invalidate(ctx, id)
	return p, err
}

// Delete invalidates the cached principal after a successful delete
func (s *Store) Delete(ctx context.Context, id string) error {
	err := s.UserStore.Delete(ctx, id)
	s.invalidate(ctx, id)
	return err
}

func (s *Store) getRedis(ctx context.Context, id string) (*auth.Principal, bool) {
	if s.redis == nil {
		return nil, false
	}

	data, err := s.redis.Get(ctx, cacheKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		s.metrics.RecordCacheMiss("redis")
		return nil, false
	}
	if err != nil {
		s.logger.WithError(err).Warn("Redis get failed, falling back to store")
		return nil, false
	}

	var p auth.Principal
	if err := json.Unmarshal(data, &p); err != nil {
		// Drop corrupt entries
		s.redis.Del(ctx, cacheKey(id))
		return nil, false
	}
	return &p, true
}

func (s *Store) setRedis(ctx context.Context, p *auth.Principal, observedGen string) {
	data, err := json.Marshal(p)
	if err != nil {
		return
	}
	keys := []string{cacheKey(p.ID), genKey(p.ID)}
	if err := fillScript.Run(ctx, s.redis, keys, observedGen, data, s.ttl.Milliseconds()).Err(); err != nil {
		s.logger.WithError(err).Warn("Redis set failed")
	}
}

func (s *Store) invalidate(ctx context.Context, id string) {
	if s.redis == nil {
		s.mu.Lock()
		s.gen++
		s.l1.Remove(id)
		s.mu.Unlock()
		return
	}

	_, err := s.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Incr(ctx, genKey(id))
		pipe.Expire(ctx, genKey(id), s.ttl+time.Minute)
		pipe.Del(ctx, cacheKey(id))
		return nil
	})
	if err != nil {
		s.logger.WithError(err).Warn("Redis invalidation failed")
	}
}

// HealthCheck checks the wrapped store and Redis
func (s *Store) HealthCheck(ctx context.Context) error {
	if err := s.UserStore.HealthCheck(ctx); err != nil {
		return err
	}
	if s.redis != nil {
		if err := s.redis.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("redis: %w", err)
		}
	}
	return nil
}
