package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/platinummonkey/accounts/pkg/audit"
	"github.com/platinummonkey/accounts/pkg/auth"
	"github.com/platinummonkey/accounts/pkg/contextkeys"
	"github.com/platinummonkey/accounts/pkg/httputil"
	"github.com/platinummonkey/accounts/pkg/observability"
	"github.com/platinummonkey/accounts/pkg/storage"
)

// Client facing messages. Token failures share one message so callers cannot
// tell a forged token from an expired one.
const (
	MsgNotLoggedIn   = "you are not logged in"
	MsgInvalidToken  = "invalid or expired token, please log in again"
	MsgUserNotExists = "this user no longer exists"
)

// AuthMiddleware is the authentication gate. It resolves the bearer token to
// an active principal and attaches it to the request context.
type AuthMiddleware struct {
	tokens  *auth.TokenCodec
	store   storage.PrincipalReader
	metrics *observability.Metrics
}

// NewAuthMiddleware creates a new authentication middleware
func NewAuthMiddleware(tokens *auth.TokenCodec, store storage.PrincipalReader, metrics *observability.Metrics) *AuthMiddleware {
	return &AuthMiddleware{
		tokens:  tokens,
		store:   store,
		metrics: metrics,
	}
}

// Handler wraps an HTTP handler with authentication
func (m *AuthMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		token, ok := bearerToken(r.Header.Get("Authorization"))
		if !ok {
			m.reject(w, r, "missing_token", MsgNotLoggedIn)
			return
		}

		subject, err := m.tokens.Verify(token)
		if err != nil {
			m.reject(w, r, tokenFailureReason(err), MsgInvalidToken)
			return
		}

		p, err := m.store.GetByID(ctx, subject)
		switch {
		case errors.Is(err, storage.ErrNotFound):
			m.reject(w, r, "unknown_principal", MsgUserNotExists)
			return
		case err != nil:
			m.metrics.RecordAuthFailure("store_error")
			httputil.WriteError(w, r, auth.InternalError(err))
			return
		case !p.Active:
			m.reject(w, r, "inactive", MsgUserNotExists)
			return
		}

		next.ServeHTTP(w, r.WithContext(contextkeys.WithPrincipal(ctx, p.Redacted())))
	})
}

func (m *AuthMiddleware) reject(w http.ResponseWriter, r *http.Request, reason, message string) {
	ctx := r.Context()
	m.metrics.RecordAuthFailure(reason)
	observability.FromContext(ctx).WithField("reason", reason).Debug("Authentication rejected")

	if reason != "missing_token" {
		audit.Record(ctx, audit.NewEvent(ctx, audit.EventTypeAuthTokenRejected, audit.EventStatusFailure).
			WithMetadata("reason", reason))
	}

	httputil.WriteErrorMessage(w, http.StatusUnauthorized, message)
}

// bearerToken extracts the token from an "Authorization: Bearer <token>" header
func bearerToken(header string) (string, bool) {
	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

func tokenFailureReason(err error) string {
	switch {
	case errors.Is(err, auth.ErrTokenExpired):
		return "expired"
	case errors.Is(err, auth.ErrTokenMalformed):
		return "malformed"
	default:
		return "invalid"
	}
}

// PrincipalFromRequest returns the principal attached by AuthMiddleware
func PrincipalFromRequest(r *http.Request) *auth.Principal {
	return contextkeys.GetPrincipal(r.Context())
}
