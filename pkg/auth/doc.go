// Package auth provides the credential primitives of the accounts service.
//
// # Overview
//
// Principals are registered accounts identified by an opaque UUID. A principal
// proves its identity once with email and password and receives a signed,
// expiring bearer token that it presents on every subsequent request.
//
// # Key Components
//
// Password hashing with bcrypt:
//
//	hasher, _ := auth.NewBcryptHasher(bcrypt.DefaultCost)
//	hash, err := hasher.Hash("correct horse")
//	ok := hasher.Verify("correct horse", hash)
//
// Tokens are HS256 JWTs carrying only sub, iat and exp:
//
//	codec, _ := auth.NewTokenCodec(secret, 7*24*time.Hour)
//	token, _ := codec.Issue(principal.ID)
//	subject, err := codec.Verify(token) // ErrTokenExpired, ErrTokenInvalid, ErrTokenMalformed
//
// # Errors
//
// Every failure that can reach a client is an *auth.Error with a Kind that the
// HTTP layer maps to a status code. Only the Message of an error is ever shown
// to clients.
//
// # Related Packages
//
//   - pkg/accounts: Login and signup orchestration
//   - pkg/middleware: Bearer token authentication
//   - pkg/rbac: Role gate for administrative routes
package auth
