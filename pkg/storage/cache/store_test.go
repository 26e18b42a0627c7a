package cache

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/accounts/pkg/auth"
	"github.com/platinummonkey/accounts/pkg/observability"
	"github.com/platinummonkey/accounts/pkg/storage"
)

// countingStore counts GetByID calls that reach the backing store
type countingStore struct {
	storage.UserStore
	gets int
}

func (c *countingStore) GetByID(ctx context.Context, id string, opts ...storage.ReadOption) (*auth.Principal, error) {
	c.gets++
	return c.UserStore.GetByID(ctx, id, opts...)
}

func setupCacheTest(t *testing.T) (*Store, *countingStore, *miniredis.Miniredis, *observability.Metrics) {
	t.Helper()

	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)
	client := newClient(t, mr)

	backing := &countingStore{UserStore: storage.NewMemoryStore()}
	metrics := observability.NewMetrics(prometheus.NewRegistry())

	s := NewStore(backing, Options{Redis: client, Size: 16, TTL: time.Minute, Metrics: metrics})
	return s, backing, mr, metrics
}

func newClient(t *testing.T, mr *miniredis.Miniredis) *redis.Client {
	t.Helper()
	client, err := NewRedisClient(context.Background(), storage.Config{RedisURL: "redis://" + mr.Addr()})
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })
	return client
}

// newReplica builds a second cache in front of the same backing store and Redis
func newReplica(t *testing.T, backing storage.UserStore, mr *miniredis.Miniredis) *Store {
	t.Helper()
	return NewStore(backing, Options{Redis: newClient(t, mr), Size: 16, TTL: time.Minute})
}

func createPrincipal(t *testing.T, s storage.UserStore) *auth.Principal {
	t.Helper()
	p := &auth.Principal{Name: "A", Email: "a@x.com", PasswordHash: "hash", Role: auth.RoleUser, Active: true}
	require.NoError(t, s.Create(context.Background(), p))
	return p
}

func TestStore_GetByIDCaches(t *testing.T) {
	s, backing, mr, metrics := setupCacheTest(t)
	ctx := context.Background()
	p := createPrincipal(t, s)

	first, err := s.GetByID(ctx, p.ID)
	require.NoError(t, err)
	second, err := s.GetByID(ctx, p.ID)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 1, backing.gets)
	assert.True(t, mr.Exists(keyPrefix+p.ID))
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.CacheHitsTotal.WithLabelValues("redis")))
	assert.Nil(t, s.l1)

	cached, err := mr.Get(keyPrefix + p.ID)
	require.NoError(t, err)
	assert.NotContains(t, cached, "hash")
}

func TestStore_ReplicasShareRedisTier(t *testing.T) {
	s, backing, mr, metrics := setupCacheTest(t)
	ctx := context.Background()
	p := createPrincipal(t, s)

	_, err := s.GetByID(ctx, p.ID)
	require.NoError(t, err)

	replica := newReplica(t, backing, mr)
	got, err := replica.GetByID(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, p.ID, got.ID)
	assert.Equal(t, 1, backing.gets)
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.CacheMissesTotal.WithLabelValues("redis")))
}

func TestStore_WritesInvalidate(t *testing.T) {
	s, backing, mr, _ := setupCacheTest(t)
	ctx := context.Background()
	p := createPrincipal(t, s)

	_, err := s.GetByID(ctx, p.ID)
	require.NoError(t, err)

	inactive := false
	_, err = s.Update(ctx, p.ID, storage.Update{Active: &inactive})
	require.NoError(t, err)
	assert.False(t, mr.Exists(keyPrefix+p.ID))

	got, err := s.GetByID(ctx, p.ID)
	require.NoError(t, err)
	assert.False(t, got.Active)
	assert.Equal(t, 2, backing.gets)

	require.NoError(t, s.Delete(ctx, p.ID))
	_, err = s.GetByID(ctx, p.ID)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestStore_HashReadsBypassCache(t *testing.T) {
	s, backing, _, _ := setupCacheTest(t)
	ctx := context.Background()
	p := createPrincipal(t, s)

	for i := 0; i < 2; i++ {
		got, err := s.GetByID(ctx, p.ID, storage.WithPasswordHash())
		require.NoError(t, err)
		assert.Equal(t, "hash", got.PasswordHash)
	}
	assert.Equal(t, 2, backing.gets)
}

func TestStore_CorruptRedisEntryFallsBack(t *testing.T) {
	s, backing, mr, _ := setupCacheTest(t)
	ctx := context.Background()
	p := createPrincipal(t, s)

	require.NoError(t, mr.Set(keyPrefix+p.ID, "{not json"))

	got, err := s.GetByID(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, p.ID, got.ID)
	assert.Equal(t, 1, backing.gets)
}

func TestStore_WorksWithoutRedis(t *testing.T) {
	backing := &countingStore{UserStore: storage.NewMemoryStore()}
	s := NewStore(backing, Options{})
	ctx := context.Background()
	p := createPrincipal(t, s)

	_, err := s.GetByID(ctx, p.ID)
	require.NoError(t, err)
	_, err = s.GetByID(ctx, p.ID)
	require.NoError(t, err)

	assert.Equal(t, 1, backing.gets)
	assert.NoError(t, s.HealthCheck(ctx))
}

func TestStore_HealthCheckReportsRedis(t *testing.T) {
	s, _, mr, _ := setupCacheTest(t)
	assert.NoError(t, s.HealthCheck(context.Background()))

	mr.Close()
	assert.Error(t, s.HealthCheck(context.Background()))
}

func TestNewRedisClient_InvalidURL(t *testing.T) {
	_, err := NewRedisClient(context.Background(), storage.Config{RedisURL: "://bad"})
	assert.Error(t, err)
}

func TestStore_ReplicaSeesWritesFromAnotherReplica(t *testing.T) {
	a, backing, mr, _ := setupCacheTest(t)
	b := newReplica(t, backing, mr)
	ctx := context.Background()
	p := createPrincipal(t, a)

	got, err := b.GetByID(ctx, p.ID)
	require.NoError(t, err)
	assert.True(t, got.Active)

	inactive := false
	_, err = a.Update(ctx, p.ID, storage.Update{Active: &inactive})
	require.NoError(t, err)

	got, err = b.GetByID(ctx, p.ID)
	require.NoError(t, err)
	assert.False(t, got.Active)

	require.NoError(t, a.Delete(ctx, p.ID))
	_, err = b.GetByID(ctx, p.ID)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

// gatedStore pauses one armed GetByID after it has read from the backing store
type gatedStore struct {
	storage.UserStore

	mu      sync.Mutex
	read    chan struct{}
	release chan struct{}
}

func (g *gatedStore) arm() (read, release chan struct{}) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.read = make(chan struct{})
	g.release = make(chan struct{})
	return g.read, g.release
}

func (g *gatedStore) GetByID(ctx context.Context, id string, opts ...storage.ReadOption) (*auth.Principal, error) {
	p, err := g.UserStore.GetByID(ctx, id, opts...)

	g.mu.Lock()
	read, release := g.read, g.release
	g.read, g.release = nil, nil
	g.mu.Unlock()

	if read != nil {
		close(read)
		<-release
	}
	return p, err
}

func TestStore_FillRacingWriteIsDiscarded(t *testing.T) {
	withRedis := func(t *testing.T, backing storage.UserStore) *Store {
		mr, err := miniredis.Run()
		require.NoError(t, err)
		t.Cleanup(mr.Close)
		return NewStore(backing, Options{Redis: newClient(t, mr), Size: 16, TTL: time.Minute})
	}
	inProcess := func(t *testing.T, backing storage.UserStore) *Store {
		return NewStore(backing, Options{Size: 16, TTL: time.Minute})
	}
	deleteWrite := func(ctx context.Context, s *Store, id string) error {
		return s.Delete(ctx, id)
	}
	deactivateWrite := func(ctx context.Context, s *Store, id string) error {
		inactive := false
		_, err := s.Update(ctx, id, storage.Update{Active: &inactive})
		return err
	}
	expectNotFound := func(t *testing.T, p *auth.Principal, err error) {
		assert.Nil(t, p)
		assert.ErrorIs(t, err, storage.ErrNotFound)
	}
	expectInactive := func(t *testing.T, p *auth.Principal, err error) {
		require.NoError(t, err)
		assert.False(t, p.Active)
	}

	tests := []struct {
		name     string
		newStore func(*testing.T, storage.UserStore) *Store
		write    func(context.Context, *Store, string) error
		check    func(*testing.T, *auth.Principal, error)
	}{
		{name: "delete with redis", newStore: withRedis, write: deleteWrite, check: expectNotFound},
		{name: "deactivate with redis", newStore: withRedis, write: deactivateWrite, check: expectInactive},
		{name: "delete in process", newStore: inProcess, write: deleteWrite, check: expectNotFound},
		{name: "deactivate in process", newStore: inProcess, write: deactivateWrite, check: expectInactive},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			backing := &gatedStore{UserStore: storage.NewMemoryStore()}
			s := tt.newStore(t, backing)
			p := createPrincipal(t, s)

			read, release := backing.arm()
			done := make(chan error, 1)
			go func() {
				_, err := s.GetByID(ctx, p.ID)
				done <- err
			}()

			<-read
			require.NoError(t, tt.write(ctx, s, p.ID))
			close(release)
			require.NoError(t, <-done)

			got, err := s.GetByID(ctx, p.ID)
			tt.check(t, got, err)
		})
	}
}

var _ storage.UserStore = (*Store)(nil)
