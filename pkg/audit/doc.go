// Package audit records security relevant account events: logins, signups,
// self-deactivation, admin changes and authorization denials.
//
// Sinks implement Logger. LogLogger writes to the application log, DBLogger
// to the audit_logs table, MultiLogger fans out and AsyncLogger moves writes
// off the request path:
//
//	sink := audit.NewAsyncLogger(audit.NewMultiLogger(
//		audit.NewLogLogger(logger),
//		dbSink,
//	), 5*time.Second, logger)
//
// Middleware places the sink and the caller's address in the request context;
// code further down records events with:
//
//	audit.Record(ctx, audit.NewEvent(ctx, audit.EventTypeAuthLogin, audit.EventStatusSuccess).
//		WithActor(principal))
package audit
