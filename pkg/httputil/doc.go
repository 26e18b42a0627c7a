// Package httputil provides the HTTP plumbing shared by the API handlers and
// the authentication gates.
//
// # Errors
//
// WriteError maps an error's auth.Kind to a status code:
//
//	validation → 400, authentication → 401, authorization → 403,
//	not found → 404, anything else → 500
//
// Internal errors are logged with their cause and answered with a generic
// message.
//
// # Middleware
//
//	httputil.Chain(
//		httputil.RequestIDMiddleware,
//		httputil.LoggingMiddleware(logger),
//		httputil.RecoveryMiddleware,
//		httputil.CORSMiddleware(origins),
//		httputil.MaxBytesMiddleware(1<<20),
//	)
package httputil
