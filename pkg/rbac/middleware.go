package rbac

import (
	"net/http"
	"strings"

	"github.com/platinummonkey/accounts/pkg/audit"
	"github.com/platinummonkey/accounts/pkg/auth"
	"github.com/platinummonkey/accounts/pkg/httputil"
	"github.com/platinummonkey/accounts/pkg/middleware"
	"github.com/platinummonkey/accounts/pkg/observability"
)

// MsgForbidden is returned when the principal lacks every required role
const MsgForbidden = "you do not have permission to perform this action"

// RoleMiddleware is the authorization gate. It must run after
// middleware.AuthMiddleware.
type RoleMiddleware struct {
	metrics *observability.Metrics
}

// NewRoleMiddleware creates a new role middleware
func NewRoleMiddleware(metrics *observability.Metrics) *RoleMiddleware {
	return &RoleMiddleware{metrics: metrics}
}

// RequireRoles allows the request through only when the authenticated
// principal holds one of roles.
func (rm *RoleMiddleware) RequireRoles(roles ...auth.Role) func(http.Handler) http.Handler {
	required := make([]string, 0, len(roles))
	for _, r := range roles {
		required = append(required, string(r))
	}
	requiredLabel := strings.Join(required, ",")

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p := middleware.PrincipalFromRequest(r)
			if p == nil {
				httputil.WriteErrorMessage(w, http.StatusUnauthorized, middleware.MsgNotLoggedIn)
				return
			}

			if !p.HasRole(roles...) {
				ctx := r.Context()
				rm.metrics.RecordAuthorizationDenied(string(p.Role))
				observability.FromContext(ctx).WithFields(map[string]interface{}{
					"role":     string(p.Role),
					"required": requiredLabel,
				}).Info("Authorization denied")
				audit.Record(ctx, audit.NewEvent(ctx, audit.EventTypeAuthzAccessDenied, audit.EventStatusDenied).
					WithMetadata("required", requiredLabel))

				httputil.WriteErrorMessage(w, http.StatusForbidden, MsgForbidden)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
