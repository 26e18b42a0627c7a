package audit

import (
	"context"

	"github.com/platinummonkey/accounts/pkg/observability"
)

// LogLogger writes audit events to the structured application log
type LogLogger struct {
	logger *observability.Logger
}

// NewLogLogger creates an audit sink on top of logger
func NewLogLogger(logger *observability.Logger) *LogLogger {
	return &LogLogger{logger: logger.WithField("audit", true)}
}

// Log writes one log line per event
func (l *LogLogger) Log(_ context.Context, event *Event) error {
	fields := map[string]interface{}{
		"event_type": string(event.EventType),
		"status":     string(event.Status),
	}
	for k, v := range map[string]string{
		"actor_id":    event.ActorID,
		"actor_email": event.ActorEmail,
		"target_id":   event.TargetID,
		"ip_address":  event.IPAddress,
		"request_id":  event.RequestID,
		"method":      event.Method,
		"path":        event.Path,
	} {
		if v != "" {
			fields[k] = v
		}
	}
	if len(event.Metadata) > 0 {
		fields["metadata"] = event.Metadata
	}

	msg := event.Message
	if msg == "" {
		msg = string(event.EventType)
	}

	entry := l.logger.WithFields(fields)
	if event.Status == EventStatusSuccess {
		entry.Info(msg)
	} else {
		entry.Warn(msg)
	}
	return nil
}

// Close is a no-op
func (l *LogLogger) Close() error {
	return nil
}
