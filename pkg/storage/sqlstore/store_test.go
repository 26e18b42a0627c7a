package sqlstore

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/accounts/pkg/auth"
	"github.com/platinummonkey/accounts/pkg/storage"
)

var columnNames = []string{"id", "name", "email", "password_hash", "role", "active", "created_at", "updated_at"}

func setupMockStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	s := NewStore(db, time.Second)
	s.now = func() time.Time { return time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC) }
	return s, mock
}

func TestStore_GetByEmail(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	query := regexp.QuoteMeta("SELECT " + principalColumns + " FROM users WHERE email = $1")

	t.Run("without hash", func(t *testing.T) {
		s, mock := setupMockStore(t)
		mock.ExpectQuery(query).
			WithArgs("a@x.com").
			WillReturnRows(sqlmock.NewRows(columnNames).
				AddRow("id-1", "A", "a@x.com", "$2a$hash", "user", true, now, now))

		p, err := s.GetByEmail(context.Background(), "a@x.com")
		require.NoError(t, err)
		assert.Equal(t, "id-1", p.ID)
		assert.Equal(t, auth.RoleUser, p.Role)
		assert.True(t, p.Active)
		assert.Empty(t, p.PasswordHash)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("with hash", func(t *testing.T) {
		s, mock := setupMockStore(t)
		mock.ExpectQuery(query).
			WithArgs("a@x.com").
			WillReturnRows(sqlmock.NewRows(columnNames).
				AddRow("id-1", "A", "a@x.com", "$2a$hash", "admin", true, now, now))

		p, err := s.GetByEmail(context.Background(), "a@x.com", storage.WithPasswordHash())
		require.NoError(t, err)
		assert.Equal(t, "$2a$hash", p.PasswordHash)
		assert.Equal(t, auth.RoleAdmin, p.Role)
	})

	t.Run("not found", func(t *testing.T) {
		s, mock := setupMockStore(t)
		mock.ExpectQuery(query).
			WithArgs("nobody@x.com").
			WillReturnRows(sqlmock.NewRows(columnNames))

		_, err := s.GetByEmail(context.Background(), "nobody@x.com")
		assert.ErrorIs(t, err, storage.ErrNotFound)
	})

	t.Run("query error is wrapped", func(t *testing.T) {
		s, mock := setupMockStore(t)
		mock.ExpectQuery(query).
			WithArgs("a@x.com").
			WillReturnError(errors.New("connection reset"))

		_, err := s.GetByEmail(context.Background(), "a@x.com")
		require.Error(t, err)
		assert.NotErrorIs(t, err, storage.ErrNotFound)
		assert.Contains(t, err.Error(), "connection reset")
	})
}

func TestStore_Create(t *testing.T) {
	insert := regexp.QuoteMeta("INSERT INTO users (" + principalColumns + ")")

	t.Run("assigns id and timestamps", func(t *testing.T) {
		s, mock := setupMockStore(t)
		mock.ExpectExec(insert).
			WithArgs(sqlmock.AnyArg(), "A", "a@x.com", "hash", "user", true, sqlmock.AnyArg(), sqlmock.AnyArg()).
			WillReturnResult(sqlmock.NewResult(0, 1))

		p := &auth.Principal{Name: "A", Email: "a@x.com", PasswordHash: "hash", Role: auth.RoleUser, Active: true}
		require.NoError(t, s.Create(context.Background(), p))
		assert.NotEmpty(t, p.ID)
		assert.Equal(t, s.now(), p.CreatedAt)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("postgres unique violation", func(t *testing.T) {
		s, mock := setupMockStore(t)
		mock.ExpectExec(insert).
			WillReturnError(&pq.Error{Code: "23505", Message: "duplicate key value violates unique constraint"})

		err := s.Create(context.Background(), &auth.Principal{Email: "a@x.com"})
		assert.ErrorIs(t, err, storage.ErrDuplicateEmail)
	})

	t.Run("other errors pass through wrapped", func(t *testing.T) {
		s, mock := setupMockStore(t)
		mock.ExpectExec(insert).
			WillReturnError(&pq.Error{Code: "53300", Message: "too many connections"})

		err := s.Create(context.Background(), &auth.Principal{Email: "a@x.com"})
		require.Error(t, err)
		assert.NotErrorIs(t, err, storage.ErrDuplicateEmail)
	})
}

func TestStore_Update(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	t.Run("name only", func(t *testing.T) {
		s, mock := setupMockStore(t)
		mock.ExpectExec(regexp.QuoteMeta("UPDATE users SET name = $1, updated_at = $2 WHERE id = $3")).
			WithArgs("New", now, "id-1").
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectQuery(regexp.QuoteMeta("SELECT " + principalColumns + " FROM users WHERE id = $1")).
			WithArgs("id-1").
			WillReturnRows(sqlmock.NewRows(columnNames).
				AddRow("id-1", "New", "a@x.com", "hash", "user", true, now, now))

		name := "New"
		p, err := s.Update(context.Background(), "id-1", storage.Update{Name: &name})
		require.NoError(t, err)
		assert.Equal(t, "New", p.Name)
		assert.Empty(t, p.PasswordHash)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("deactivate", func(t *testing.T) {
		s, mock := setupMockStore(t)
		mock.ExpectExec(regexp.QuoteMeta("UPDATE users SET active = $1, updated_at = $2 WHERE id = $3")).
			WithArgs(false, now, "id-1").
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectQuery(regexp.QuoteMeta("SELECT " + principalColumns + " FROM users WHERE id = $1")).
			WithArgs("id-1").
			WillReturnRows(sqlmock.NewRows(columnNames).
				AddRow("id-1", "A", "a@x.com", "hash", "user", false, now, now))

		inactive := false
		p, err := s.Update(context.Background(), "id-1", storage.Update{Active: &inactive})
		require.NoError(t, err)
		assert.False(t, p.Active)
	})

	t.Run("missing", func(t *testing.T) {
		s, mock := setupMockStore(t)
		mock.ExpectExec(regexp.QuoteMeta("UPDATE users SET")).
			WillReturnResult(sqlmock.NewResult(0, 0))

		name := "New"
		_, err := s.Update(context.Background(), "missing", storage.Update{Name: &name})
		assert.ErrorIs(t, err, storage.ErrNotFound)
	})
}

func TestStore_Delete(t *testing.T) {
	del := regexp.QuoteMeta("DELETE FROM users WHERE id = $1")

	t.Run("deleted", func(t *testing.T) {
		s, mock := setupMockStore(t)
		mock.ExpectExec(del).WithArgs("id-1").WillReturnResult(sqlmock.NewResult(0, 1))
		assert.NoError(t, s.Delete(context.Background(), "id-1"))
	})

	t.Run("missing", func(t *testing.T) {
		s, mock := setupMockStore(t)
		mock.ExpectExec(del).WithArgs("id-1").WillReturnResult(sqlmock.NewResult(0, 0))
		assert.ErrorIs(t, s.Delete(context.Background(), "id-1"), storage.ErrNotFound)
	})
}

func TestStore_List(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	s, mock := setupMockStore(t)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT " + principalColumns + " FROM users ORDER BY created_at, id")).
		WillReturnRows(sqlmock.NewRows(columnNames).
			AddRow("id-1", "A", "a@x.com", "h1", "user", true, now, now).
			AddRow("id-2", "B", "b@x.com", "h2", "admin", false, now, now))

	list, err := s.List(context.Background())
	require.NoError(t, err)
	require.Len(t, list, 2)
	for _, p := range list {
		assert.Empty(t, p.PasswordHash)
	}
	assert.Equal(t, auth.RoleAdmin, list[1].Role)
}
