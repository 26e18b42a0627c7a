package accounts

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/platinummonkey/accounts/pkg/audit"
	"github.com/platinummonkey/accounts/pkg/auth"
	"github.com/platinummonkey/accounts/pkg/observability"
	"github.com/platinummonkey/accounts/pkg/storage"
)

// DefaultMinPasswordLength is used when no minimum is configured
const DefaultMinPasswordLength = 6

const (
	msgBadCredentials = "email or password is wrong"
	msgMissingLogin   = "please provide email and password"
	msgNoSuchUser     = "no user found with that id"
	msgDuplicateEmail = "email is already registered"
	msgInvalidInput   = "invalid input data"
)

// dummyPassword is hashed once at construction so that logins for unknown
// emails cost the same bcrypt work as real ones.
const dummyPassword = "accounts-timing-equalizer"

// Service issues credentials and performs account administration on top of
// a UserStore. It holds no per-request state and is safe for concurrent use.
type Service struct {
	store             storage.UserStore
	hasher            auth.Hasher
	tokens            *auth.TokenCodec
	metrics           *observability.Metrics
	minPasswordLength int
	dummyHash         string
}

// Option configures a Service
type Option func(*Service)

// WithMetrics records outcomes on m
func WithMetrics(m *observability.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// WithMinPasswordLength sets the minimum accepted password length in bytes
func WithMinPasswordLength(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.minPasswordLength = n
		}
	}
}

// NewService creates a Service
func NewService(store storage.UserStore, hasher auth.Hasher, tokens *auth.TokenCodec, opts ...Option) (*Service, error) {
	if store == nil || hasher == nil || tokens == nil {
		return nil, errors.New("store, hasher and token codec are required")
	}

	s := &Service{
		store:             store,
		hasher:            hasher,
		tokens:            tokens,
		minPasswordLength: DefaultMinPasswordLength,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.minPasswordLength > maxPasswordLength {
		return nil, fmt.Errorf("minimum password length %d exceeds %d", s.minPasswordLength, maxPasswordLength)
	}

	dummy, err := hasher.Hash(dummyPassword)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare dummy hash: %w", err)
	}
	s.dummyHash = dummy

	return s, nil
}

// Login verifies credentials and issues a token. Unknown email, wrong
// password and deactivated account all produce the same authentication error.
func (s *Service) Login(ctx context.Context, req LoginRequest) (creds *auth.Credentials, err error) {
	ctx, span := observability.StartSpan(ctx, "accounts.Login")
	defer func() { observability.EndSpan(span, err) }()

	req.Email = strings.TrimSpace(req.Email)
	if err := req.Validate(); err != nil {
		s.metrics.RecordLogin("invalid")
		return nil, invalid(err, msgMissingLogin)
	}

	p, err := s.store.GetByEmail(ctx, req.Email, storage.WithPasswordHash())
	switch {
	case errors.Is(err, storage.ErrNotFound):
		// equalize timing with the found path
		s.hasher.Verify(req.Password, s.dummyHash)
		return nil, s.loginFailed(ctx, req.Email, "unknown_email")
	case err != nil:
		s.metrics.RecordLogin("error")
		return nil, auth.InternalError(fmt.Errorf("lookup principal by email: %w", err))
	}

	if !s.hasher.Verify(req.Password, p.PasswordHash) {
		return nil, s.loginFailed(ctx, req.Email, "bad_password")
	}
	if !p.Active {
		return nil, s.loginFailed(ctx, req.Email, "inactive")
	}

	token, err := s.issue(p.ID)
	if err != nil {
		s.metrics.RecordLogin("error")
		return nil, err
	}

	s.metrics.RecordLogin("success")
	audit.Record(ctx, audit.NewEvent(ctx, audit.EventTypeAuthLogin, audit.EventStatusSuccess).WithActor(p))

	return &auth.Credentials{Principal: p.Redacted(), Token: token}, nil
}

func (s *Service) loginFailed(ctx context.Context, email, reason string) error {
	s.metrics.RecordLogin("failure")
	observability.FromContext(ctx).WithField("reason", reason).Debug("Login rejected")

	event := audit.NewEvent(ctx, audit.EventTypeAuthLoginFailed, audit.EventStatusFailure).
		WithMessage(msgBadCredentials).
		WithMetadata("reason", reason)
	event.ActorEmail = email
	audit.Record(ctx, event)

	return auth.AuthenticationError(msgBadCredentials)
}

// Signup validates req, creates an ordinary active principal and issues a token
func (s *Service) Signup(ctx context.Context, req SignupRequest) (creds *auth.Credentials, err error) {
	ctx, span := observability.StartSpan(ctx, "accounts.Signup")
	defer func() { observability.EndSpan(span, err) }()

	req.normalize()
	if err := req.validate(s.minPasswordLength); err != nil {
		s.metrics.RecordSignup("invalid")
		return nil, invalid(err, "")
	}

	p := &auth.Principal{
		Name:   req.Name,
		Email:  req.Email,
		Role:   auth.RoleUser,
		Active: true,
	}
	if err := s.create(ctx, p, req.Password); err != nil {
		if auth.KindOf(err) == auth.KindValidation {
			s.metrics.RecordSignup("duplicate")
		} else {
			s.metrics.RecordSignup("error")
		}
		return nil, err
	}

	token, err := s.issue(p.ID)
	if err != nil {
		s.metrics.RecordSignup("error")
		return nil, err
	}

	s.metrics.RecordSignup("success")
	audit.Record(ctx, audit.NewEvent(ctx, audit.EventTypeAuthSignup, audit.EventStatusSuccess).WithActor(p))

	return &auth.Credentials{Principal: p.Redacted(), Token: token}, nil
}

// EnsureAdmin creates an administrator with the given credentials unless a
// principal with that email already exists. It reports whether one was created.
func (s *Service) EnsureAdmin(ctx context.Context, name, email, password string) (*auth.Principal, bool, error) {
	req := CreateRequest{Name: name, Email: email, Password: password, Role: auth.RoleAdmin}
	req.normalize()

	existing, err := s.store.GetByEmail(ctx, req.Email)
	switch {
	case err == nil:
		if existing.Role != auth.RoleAdmin {
			observability.FromContext(ctx).WithField("principal_id", existing.ID).
				Warn("Bootstrap admin email belongs to a non-admin principal")
		}
		return existing, false, nil
	case !errors.Is(err, storage.ErrNotFound):
		return nil, false, auth.InternalError(fmt.Errorf("lookup bootstrap admin: %w", err))
	}

	if err := req.validate(s.minPasswordLength); err != nil {
		return nil, false, invalid(err, "")
	}

	p := &auth.Principal{Name: req.Name, Email: req.Email, Role: auth.RoleAdmin, Active: true}
	if err := s.create(ctx, p, req.Password); err != nil {
		return nil, false, err
	}

	audit.Record(ctx, audit.NewEvent(ctx, audit.EventTypeAdminBootstrap, audit.EventStatusSuccess).WithTarget(p.ID))
	return p.Redacted(), true, nil
}

// Deactivate marks the principal inactive. It is only reachable with the id
// of the authenticated caller.
func (s *Service) Deactivate(ctx context.Context, id string) (err error) {
	ctx, span := observability.StartSpan(ctx, "accounts.Deactivate", attribute.String("principal.id", id))
	defer func() { observability.EndSpan(span, err) }()

	active := false
	if _, err := s.store.Update(ctx, id, storage.Update{Active: &active}); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return auth.AuthenticationError("this user no longer exists")
		}
		return auth.InternalError(fmt.Errorf("deactivate principal: %w", err))
	}

	audit.Record(ctx, audit.NewEvent(ctx, audit.EventTypeAuthDeactivate, audit.EventStatusSuccess).WithTarget(id))
	return nil
}

// Get returns the principal with id, or nil when there is none
func (s *Service) Get(ctx context.Context, id string) (*auth.Principal, error) {
	p, err := s.store.GetByID(ctx, id)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, auth.InternalError(fmt.Errorf("get principal: %w", err))
	}
	return p.Redacted(), nil
}

// List returns every principal, including deactivated ones
func (s *Service) List(ctx context.Context) ([]*auth.Principal, error) {
	principals, err := s.store.List(ctx)
	if err != nil {
		return nil, auth.InternalError(fmt.Errorf("list principals: %w", err))
	}
	out := make([]*auth.Principal, 0, len(principals))
	for _, p := range principals {
		out = append(out, p.Redacted())
	}
	return out, nil
}

// Create is the administrative create. Unlike Signup it can assign the admin
// role and does not require a password confirmation.
func (s *Service) Create(ctx context.Context, req CreateRequest) (*auth.Principal, error) {
	req.normalize()
	if err := req.validate(s.minPasswordLength); err != nil {
		return nil, invalid(err, "")
	}

	p := &auth.Principal{Name: req.Name, Email: req.Email, Role: req.Role, Active: true}
	if err := s.create(ctx, p, req.Password); err != nil {
		return nil, err
	}

	audit.Record(ctx, audit.NewEvent(ctx, audit.EventTypeAdminUserCreate, audit.EventStatusSuccess).
		WithTarget(p.ID).
		WithMetadata("role", string(p.Role)))
	return p.Redacted(), nil
}

// Update changes the display name of the principal with id
func (s *Service) Update(ctx context.Context, id string, req UpdateRequest) (*auth.Principal, error) {
	req.Name = strings.TrimSpace(req.Name)
	if err := req.validate(); err != nil {
		return nil, invalid(err, "")
	}

	p, err := s.store.Update(ctx, id, storage.Update{Name: &req.Name})
	if errors.Is(err, storage.ErrNotFound) {
		return nil, auth.NotFoundError(msgNoSuchUser)
	}
	if err != nil {
		return nil, auth.InternalError(fmt.Errorf("update principal: %w", err))
	}

	audit.Record(ctx, audit.NewEvent(ctx, audit.EventTypeAdminUserUpdate, audit.EventStatusSuccess).WithTarget(id))
	return p.Redacted(), nil
}

// Delete permanently removes the principal with id
func (s *Service) Delete(ctx context.Context, id string) error {
	err := s.store.Delete(ctx, id)
	if errors.Is(err, storage.ErrNotFound) {
		return auth.NotFoundError(msgNoSuchUser)
	}
	if err != nil {
		return auth.InternalError(fmt.Errorf("delete principal: %w", err))
	}

	audit.Record(ctx, audit.NewEvent(ctx, audit.EventTypeAdminUserDelete, audit.EventStatusSuccess).WithTarget(id))
	return nil
}

// create hashes password into p and stores it
func (s *Service) create(ctx context.Context, p *auth.Principal, password string) error {
	start := time.Now()
	hash, err := s.hasher.Hash(password)
	s.metrics.ObservePasswordHash(time.Since(start))
	if err != nil {
		return err
	}
	p.PasswordHash = hash

	if err := s.store.Create(ctx, p); err != nil {
		if errors.Is(err, storage.ErrDuplicateEmail) {
			return auth.ValidationError("email", msgDuplicateEmail)
		}
		return auth.InternalError(fmt.Errorf("create principal: %w", err))
	}
	return nil
}

func (s *Service) issue(subject string) (string, error) {
	token, err := s.tokens.Issue(subject)
	if err != nil {
		return "", auth.InternalError(fmt.Errorf("issue token: %w", err))
	}
	s.metrics.RecordTokenIssued()
	return token, nil
}
