package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/mattn/go-sqlite3"

	"github.com/platinummonkey/accounts/pkg/auth"
	"github.com/platinummonkey/accounts/pkg/storage"
)

const principalColumns = "id, name, email, password_hash, role, active, created_at, updated_at"

// pgUniqueViolation is the PostgreSQL SQLSTATE for unique_violation
const pgUniqueViolation = "23505"

// Store is a storage.UserStore backed by a SQL database.
// Queries use $n placeholders in ascending order so they run on both
// PostgreSQL and SQLite.
type Store struct {
	db      *sql.DB
	timeout time.Duration
	now     func() time.Time
}

// NewStore creates a store on an open connection pool. The schema must
// already be migrated (see Migrate).
func NewStore(db *sql.DB, queryTimeout time.Duration) *Store {
	if queryTimeout <= 0 {
		queryTimeout = 5 * time.Second
	}
	return &Store{
		db:      db,
		timeout: queryTimeout,
		now:     time.Now,
	}
}

// DB returns the underlying connection pool
func (s *Store) DB() *sql.DB {
	return s.db
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanPrincipal(row rowScanner) (*auth.Principal, error) {
	var (
		p    auth.Principal
		role string
	)
	if err := row.Scan(&p.ID, &p.Name, &p.Email, &p.PasswordHash, &role, &p.Active, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return nil, err
	}
	p.Role = auth.Role(role)
	p.CreatedAt = p.CreatedAt.UTC()
	p.UpdatedAt = p.UpdatedAt.UTC()
	return &p, nil
}

func (s *Store) getOne(ctx context.Context, where string, arg string, opts []storage.ReadOption) (*auth.Principal, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	query := "SELECT " + principalColumns + " FROM users WHERE " + where + " = $1"
	p, err := scanPrincipal(s.db.QueryRowContext(ctx, query, arg))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query principal by %s: %w", where, err)
	}

	if !storage.ApplyReadOptions(opts...).IncludePasswordHash {
		p.PasswordHash = ""
	}
	return p, nil
}

// GetByEmail returns the principal registered under email
func (s *Store) GetByEmail(ctx context.Context, email string, opts ...storage.ReadOption) (*auth.Principal, error) {
	return s.getOne(ctx, "email", email, opts)
}

// GetByID returns the principal with the given id
func (s *Store) GetByID(ctx context.Context, id string, opts ...storage.ReadOption) (*auth.Principal, error) {
	return s.getOne(ctx, "id", id, opts)
}

// List returns all principals ordered by creation time
func (s *Store) List(ctx context.Context) ([]*auth.Principal, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	rows, err := s.db.QueryContext(ctx, "SELECT "+principalColumns+" FROM users ORDER BY created_at, id")
	if err != nil {
		return nil, fmt.Errorf("failed to list principals: %w", err)
	}
	defer rows.Close()

	principals := make([]*auth.Principal, 0)
	for rows.Next() {
		p, err := scanPrincipal(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan principal: %w", err)
		}
		p.PasswordHash = ""
		principals = append(principals, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate principals: %w", err)
	}
	return principals, nil
}

// Create inserts a new principal
func (s *Store) Create(ctx context.Context, p *auth.Principal) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

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

	_, err := s.db.ExecContext(ctx,
		"INSERT INTO users ("+principalColumns+") VALUES ($1, $2, $3, $4, $5, $6, $7, $8)",
		p.ID, p.Name, p.Email, p.PasswordHash, string(p.Role), p.Active, p.CreatedAt, p.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return storage.ErrDuplicateEmail
		}
		return fmt.Errorf("failed to insert principal: %w", err)
	}
	return nil
}

// Update applies u and returns the updated principal
func (s *Store) Update(ctx context.Context, id string, u storage.Update) (*auth.Principal, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	sets := make([]string, 0, 3)
	args := make([]interface{}, 0, 4)
	if u.Name != nil {
		args = append(args, *u.Name)
		sets = append(sets, fmt.Sprintf("name = $%d", len(args)))
	}
	if u.Active != nil {
		args = append(args, *u.Active)
		sets = append(sets, fmt.Sprintf("active = $%d", len(args)))
	}
	args = append(args, s.now().UTC())
	sets = append(sets, fmt.Sprintf("updated_at = $%d", len(args)))
	args = append(args, id)

	query := fmt.Sprintf("UPDATE users SET %s WHERE id = $%d", strings.Join(sets, ", "), len(args))

	result, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to update principal: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("failed to read affected rows: %w", err)
	}
	if n == 0 {
		return nil, storage.ErrNotFound
	}

	return s.getOne(ctx, "id", id, nil)
}

// Delete removes a principal permanently
func (s *Store) Delete(ctx context.Context, id string) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	result, err := s.db.ExecContext(ctx, "DELETE FROM users WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("failed to delete principal: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if n == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// HealthCheck pings the database
func (s *Store) HealthCheck(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the connection pool
func (s *Store) Close() error {
	return s.db.Close()
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == pgUniqueViolation
	}
	var liteErr sqlite3.Error
	if errors.As(err, &liteErr) {
		return liteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
			liteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	return false
}
