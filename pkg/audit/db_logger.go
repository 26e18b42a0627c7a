package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// DBLogger writes audit events to the audit_logs table created by the
// sqlstore migrations. It works on PostgreSQL and SQLite.
type DBLogger struct {
	db *sql.DB
}

// NewDBLogger creates a new database-based audit logger
func NewDBLogger(db *sql.DB) (*DBLogger, error) {
	if db == nil {
		return nil, errors.New("database connection is required")
	}
	return &DBLogger{db: db}, nil
}

const insertAuditLog = `INSERT INTO audit_logs (
	id, timestamp, event_type, status,
	actor_id, actor_email, target_id,
	ip_address, user_agent, request_id,
	method, path, message, metadata
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`

// Log inserts event, assigning it an id when it has none
func (l *DBLogger) Log(ctx context.Context, event *Event) error {
	var metadata sql.NullString
	if len(event.Metadata) > 0 {
		raw, err := json.Marshal(event.Metadata)
		if err != nil {
			return fmt.Errorf("failed to marshal metadata: %w", err)
		}
		metadata = sql.NullString{String: string(raw), Valid: true}
	}

	if event.ID == "" {
		event.ID = uuid.NewString()
	}

	_, err := l.db.ExecContext(ctx, insertAuditLog,
		event.ID, event.Timestamp, string(event.EventType), string(event.Status),
		nullString(event.ActorID), nullString(event.ActorEmail), nullString(event.TargetID),
		nullString(event.IPAddress), nullString(event.UserAgent), nullString(event.RequestID),
		nullString(event.Method), nullString(event.Path), nullString(event.Message), metadata,
	)
	if err != nil {
		return fmt.Errorf("failed to insert audit log: %w", err)
	}
	return nil
}

// Close is a no-op; the connection pool is owned by the caller
func (l *DBLogger) Close() error {
	return nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
