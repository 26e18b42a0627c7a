package audit

import (
	"encoding/json"
	"time"
)

// EventType represents the category of audit event
type EventType string

const (
	// Authentication events
	EventTypeAuthLogin         EventType = "auth.login"
	EventTypeAuthLoginFailed   EventType = "auth.login_failed"
	EventTypeAuthSignup        EventType = "auth.signup"
	EventTypeAuthDeactivate    EventType = "auth.deactivate"
	EventTypeAuthTokenRejected EventType = "auth.token_rejected"

	// Authorization events
	EventTypeAuthzAccessDenied EventType = "authz.access_denied"

	// Admin events
	EventTypeAdminUserCreate EventType = "admin.user_create"
	EventTypeAdminUserUpdate EventType = "admin.user_update"
	EventTypeAdminUserDelete EventType = "admin.user_delete"
	EventTypeAdminBootstrap  EventType = "admin.bootstrap"
)

// EventStatus represents the outcome of an event
type EventStatus string

const (
	EventStatusSuccess EventStatus = "success"
	EventStatusFailure EventStatus = "failure"
	EventStatusDenied  EventStatus = "denied"
)

// Event is a single audit log entry
type Event struct {
	ID        string      `json:"id"`
	Timestamp time.Time   `json:"timestamp"`
	EventType EventType   `json:"event_type"`
	Status    EventStatus `json:"status"`

	// Actor is the authenticated principal, or the claimed email for failed logins
	ActorID    string `json:"actor_id,omitempty"`
	ActorEmail string `json:"actor_email,omitempty"`

	// TargetID is the principal acted upon by admin operations
	TargetID string `json:"target_id,omitempty"`

	IPAddress string `json:"ip_address,omitempty"`
	UserAgent string `json:"user_agent,omitempty"`
	RequestID string `json:"request_id,omitempty"`
	Method    string `json:"method,omitempty"`
	Path      string `json:"path,omitempty"`

	Message  string                 `json:"message,omitempty"`
	Metadata map[string]interface{} `json:"metadata,omitempty"`
}

// RequestInfo is the HTTP request context captured by Middleware
type RequestInfo struct {
	IPAddress string
	UserAgent string
	Method    string
	Path      string
}

// ToJSON converts the audit event to JSON
func (e *Event) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}
