// Package contextkeys provides centralized context key definitions.
//
// All context keys used across the service are defined here so that the
// producer and consumers of a value agree on its key and type.
//
//	ctx = contextkeys.WithPrincipal(ctx, principal)
//	p := contextkeys.GetPrincipal(ctx)
package contextkeys

import (
	"context"

	"github.com/platinummonkey/accounts/pkg/auth"
)

// Key is the type for context keys to prevent collisions
type Key string

const (
	// PrincipalKey contains the authenticated *auth.Principal
	// Set by: middleware.AuthMiddleware (pkg/middleware/auth.go)
	// Required by: rbac.RequireRoles, self-service and admin handlers
	PrincipalKey Key = "principal"

	// RequestIDKey contains the request ID string
	// Set by: httputil.RequestIDMiddleware
	// Used by: Logger, audit trail
	RequestIDKey Key = "request_id"

	// LoggerKey contains *observability.Logger
	// Set by: api.Server logger middleware
	LoggerKey Key = "logger"

	// AuditLoggerKey contains audit.Logger
	// Set by: audit.Middleware
	AuditLoggerKey Key = "audit_logger"

	// AuditRequestKey contains *audit.RequestInfo (client ip, user agent, method, path)
	// Set by: audit.Middleware
	AuditRequestKey Key = "audit_request"
)

// WithPrincipal attaches the authenticated principal to the context
func WithPrincipal(ctx context.Context, p *auth.Principal) context.Context {
	return context.WithValue(ctx, PrincipalKey, p)
}

// GetPrincipal returns the authenticated principal, or nil when the request
// did not pass the authentication gate.
func GetPrincipal(ctx context.Context) *auth.Principal {
	if p, ok := ctx.Value(PrincipalKey).(*auth.Principal); ok {
		return p
	}
	return nil
}

// WithRequestID adds request ID to the context
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, RequestIDKey, requestID)
}

// GetRequestID retrieves request ID from context
func GetRequestID(ctx context.Context) string {
	if requestID, ok := ctx.Value(RequestIDKey).(string); ok {
		return requestID
	}
	return ""
}
