package storage

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/platinummonkey/accounts/pkg/auth"
)

// MemoryStore is an in-process UserStore. It is safe for concurrent use.
type MemoryStore struct {
	mu      sync.RWMutex
	byID    map[string]*auth.Principal
	byEmail map[string]string
	now     func() time.Time
}

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		byID:    make(map[string]*auth.Principal),
		byEmail: make(map[string]string),
		now:     time.Now,
	}
}

// GetByEmail returns the principal registered under email
func (s *MemoryStore) GetByEmail(ctx context.Context, email string, opts ...ReadOption) (*auth.Principal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byEmail[email]
	if !ok {
		return nil, ErrNotFound
	}
	return s.read(id, ApplyReadOptions(opts...))
}

// GetByID returns the principal with the given id
func (s *MemoryStore) GetByID(ctx context.Context, id string, opts ...ReadOption) (*auth.Principal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.read(id, ApplyReadOptions(opts...))
}

// read must be called with s.mu held
func (s *MemoryStore) read(id string, o ReadOptions) (*auth.Principal, error) {
	p, ok := s.byID[id]
	if !ok {
		return nil, ErrNotFound
	}
	out := *p
	if !o.IncludePasswordHash {
		out.PasswordHash = ""
	}
	return &out, nil
}

// List returns all principals ordered by creation time
func (s *MemoryStore) List(ctx context.Context) ([]*auth.Principal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*auth.Principal, 0, len(s.byID))
	for _, p := range s.byID {
		out = append(out, p.Redacted())
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

// Create stores a new principal
func (s *MemoryStore) Create(ctx context.Context, p *auth.Principal) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.byEmail[p.Email]; exists {
		return ErrDuplicateEmail
	}
	if p.ID == "" {
		p.ID = uuid.New().String()
	}
	now := s.now().UTC()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	if p.UpdatedAt.IsZero() {
		p.UpdatedAt = now
	}

	stored := *p
	s.byID[p.ID] = &stored
	s.byEmail[p.Email] = p.ID
	return nil
}

// Update applies u to the principal with the given id
func (s *MemoryStore) Update(ctx context.Context, id string, u Update) (*auth.Principal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.byID[id]
	if !ok {
		return nil, ErrNotFound
	}
	if u.Name != nil {
		p.Name = *u.Name
	}
	if u.Active != nil {
		p.Active = *u.Active
	}
	p.UpdatedAt = s.now().UTC()

	return p.Redacted(), nil
}

// Delete removes the principal with the given id
func (s *MemoryStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.byID[id]
	if !ok {
		return ErrNotFound
	}
	delete(s.byEmail, p.Email)
	delete(s.byID, id)
	return nil
}

// HealthCheck always succeeds
func (s *MemoryStore) HealthCheck(ctx context.Context) error {
	return nil
}
