// Package api provides the HTTP server for the accounts service.
//
// # Routes
//
// All routes are mounted below Options.PathPrefix (empty by default):
//
//	POST   /login      public, rate limited
//	POST   /signup     public, rate limited
//	DELETE /deleteMe   any authenticated principal
//	GET    /           admin: list principals
//	POST   /           admin: create a principal
//	GET    /{id}       admin: fetch a principal (user is null when absent)
//	PATCH  /{id}       admin: rename a principal
//	DELETE /{id}       admin: delete a principal
//
// Successful responses use the envelope
//
//	{"status": "success", "token": "...", "data": {"user": {...}}}
//
// and failures the httputil.ErrorResponse shape.
//
// # Usage
//
//	authn := middleware.NewAuthMiddleware(codec, store, metrics)
//	server := api.NewServer(service, authn, api.Options{
//		PathPrefix:  "/api/v1/users",
//		RateLimiter: middleware.NewRateLimiter(nil),
//		Metrics:     metrics,
//		Logger:      logger,
//	})
//	http.ListenAndServe(":8080", server)
package api
