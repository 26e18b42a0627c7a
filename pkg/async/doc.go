// Package async runs fire-and-forget background work with panic recovery,
// timeouts and structured error logging.
package async
