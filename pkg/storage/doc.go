// Package storage defines the principal store used by the accounts service
// and provides an in-memory implementation.
//
// # Backends
//
//   - MemoryStore: process-local map, used for development and tests
//   - sqlstore.Store: PostgreSQL or SQLite via database/sql, schema managed by goose
//   - cache.Store: decorator adding an expirable LRU (L1) and Redis (L2) in front
//     of another store for id lookups
//
// All backends report a missing principal with ErrNotFound and a taken email
// with ErrDuplicateEmail. Emails are matched exactly as stored.
//
// # Password hashes
//
// Reads omit the password hash unless WithPasswordHash is passed. Only the
// login path asks for it:
//
//	p, err := store.GetByEmail(ctx, email, storage.WithPasswordHash())
//
// # Configuration
//
//	config := storage.DefaultConfig()
//	config.Type = "postgres"
//	config.PostgresURL = "postgres://localhost/accounts?sslmode=disable"
//	config.RedisURL = "redis://localhost:6379/0"
//	config.CacheEnabled = true
package storage
