// Package rbac is the authorization gate: it admits an authenticated
// principal only when its role is in the route's required-role set.
//
//	roles := rbac.NewRoleMiddleware(metrics)
//	admin := router.NewRoute().Subrouter()
//	admin.Use(authn.Handler, roles.RequireRoles(auth.RoleAdmin))
//
// Denials answer 403 and are counted and audited. A request that reaches the
// gate without a principal answers 401; that only happens when the gate is
// mounted without the authentication middleware in front of it.
package rbac
