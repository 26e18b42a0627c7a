package audit

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db, mock
}

func TestNewDBLogger(t *testing.T) {
	logger, err := NewDBLogger(nil)
	assert.Error(t, err)
	assert.Nil(t, logger)

	db, _ := setupMockDB(t)
	logger, err = NewDBLogger(db)
	require.NoError(t, err)
	assert.NoError(t, logger.Close())
}

func TestDBLogger_Log(t *testing.T) {
	ts := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	t.Run("success", func(t *testing.T) {
		db, mock := setupMockDB(t)
		logger, err := NewDBLogger(db)
		require.NoError(t, err)

		event := &Event{
			Timestamp: ts,
			EventType: EventTypeAdminUserCreate,
			Status:    EventStatusSuccess,
			ActorID:   "admin-1",
			TargetID:  "u-2",
			Metadata:  map[string]interface{}{"role": "user"},
		}

		mock.ExpectExec(regexp.QuoteMeta(insertAuditLog)).
			WithArgs(sqlmock.AnyArg(), ts, "admin.user_create", "success",
				sql.NullString{String: "admin-1", Valid: true}, sql.NullString{}, sql.NullString{String: "u-2", Valid: true},
				sql.NullString{}, sql.NullString{}, sql.NullString{},
				sql.NullString{}, sql.NullString{}, sql.NullString{},
				sql.NullString{String: `{"role":"user"}`, Valid: true}).
			WillReturnResult(sqlmock.NewResult(1, 1))

		require.NoError(t, logger.Log(context.Background(), event))
		assert.Len(t, event.ID, 36)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("keeps existing id", func(t *testing.T) {
		db, mock := setupMockDB(t)
		logger, _ := NewDBLogger(db)

		mock.ExpectExec("INSERT INTO audit_logs").
			WithArgs("fixed-id", sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(),
				sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(),
				sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(),
				sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg()).
			WillReturnResult(sqlmock.NewResult(1, 1))

		require.NoError(t, logger.Log(context.Background(), &Event{ID: "fixed-id", Timestamp: ts}))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("insert error", func(t *testing.T) {
		db, mock := setupMockDB(t)
		logger, _ := NewDBLogger(db)

		mock.ExpectExec("INSERT INTO audit_logs").WillReturnError(errors.New("relation does not exist"))

		err := logger.Log(context.Background(), &Event{Timestamp: ts})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to insert audit log")
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}
