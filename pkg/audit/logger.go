package audit

import (
	"context"
	"net/http"
	"time"

	"github.com/platinummonkey/accounts/pkg/auth"
	"github.com/platinummonkey/accounts/pkg/contextkeys"
	"github.com/platinummonkey/accounts/pkg/httputil"
	"github.com/platinummonkey/accounts/pkg/observability"
)

// Logger is the interface for audit sinks
type Logger interface {
	// Log records an audit event
	Log(ctx context.Context, event *Event) error

	// Close flushes any buffered events
	Close() error
}

// WithLogger adds an audit logger to the context
func WithLogger(ctx context.Context, logger Logger) context.Context {
	return context.WithValue(ctx, contextkeys.AuditLoggerKey, logger)
}

// FromContext retrieves the audit logger from context, or a no-op logger
func FromContext(ctx context.Context) Logger {
	if logger, ok := ctx.Value(contextkeys.AuditLoggerKey).(Logger); ok {
		return logger
	}
	return noOpLogger{}
}

// Middleware makes logger and the request's client details available to
// handlers further down the chain.
func Middleware(logger Logger, trustProxy bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			info := &RequestInfo{
				IPAddress: httputil.ClientIP(r, trustProxy),
				UserAgent: r.UserAgent(),
				Method:    r.Method,
				Path:      r.URL.Path,
			}
			ctx := WithLogger(r.Context(), logger)
			ctx = context.WithValue(ctx, contextkeys.AuditRequestKey, info)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// NewEvent builds an event populated from the request id, request info and
// authenticated principal found in ctx.
func NewEvent(ctx context.Context, eventType EventType, status EventStatus) *Event {
	event := &Event{
		Timestamp: time.Now().UTC(),
		EventType: eventType,
		Status:    status,
		RequestID: contextkeys.GetRequestID(ctx),
	}

	if info, ok := ctx.Value(contextkeys.AuditRequestKey).(*RequestInfo); ok && info != nil {
		event.IPAddress = info.IPAddress
		event.UserAgent = info.UserAgent
		event.Method = info.Method
		event.Path = info.Path
	}

	if p := contextkeys.GetPrincipal(ctx); p != nil {
		event.WithActor(p)
	}

	return event
}

// WithActor sets the acting principal
func (e *Event) WithActor(p *auth.Principal) *Event {
	if p != nil {
		e.ActorID = p.ID
		e.ActorEmail = p.Email
	}
	return e
}

// WithTarget sets the principal acted upon
func (e *Event) WithTarget(id string) *Event {
	e.TargetID = id
	return e
}

// WithMessage sets a human readable message
func (e *Event) WithMessage(msg string) *Event {
	e.Message = msg
	return e
}

// WithMetadata adds a key to the event metadata
func (e *Event) WithMetadata(key string, value interface{}) *Event {
	if e.Metadata == nil {
		e.Metadata = make(map[string]interface{})
	}
	e.Metadata[key] = value
	return e
}

// Record sends event to the context's audit logger. Audit failures never
// fail the caller; they are logged instead.
func Record(ctx context.Context, event *Event) {
	if err := FromContext(ctx).Log(ctx, event); err != nil {
		observability.FromContext(ctx).WithError(err).
			WithField("event_type", string(event.EventType)).
			Warn("Failed to record audit event")
	}
}

// NewNoOpLogger returns a logger that discards every event
func NewNoOpLogger() Logger {
	return noOpLogger{}
}

// noOpLogger is used when no audit logger is configured
type noOpLogger struct{}

func (noOpLogger) Log(context.Context, *Event) error { return nil }

func (noOpLogger) Close() error { return nil }
