// Package middleware provides the authentication gate and per-address rate
// limiting for the accounts API.
//
// AuthMiddleware requires "Authorization: Bearer <token>", verifies the token
// and resolves its subject to an active principal, which handlers read with
// PrincipalFromRequest. Every token failure is answered with the same 401.
//
//	authn := middleware.NewAuthMiddleware(codec, store, metrics)
//	protected.Use(authn.Handler)
//
// RateLimitMiddleware limits requests per client address with either the
// in-process token bucket (RateLimiter) or the Redis fixed window shared by
// all instances (DistributedRateLimiter).
//
// Authorization by role lives in pkg/rbac.
package middleware
