// Package observability provides structured logging, Prometheus metrics,
// health probes, graceful shutdown and OpenTelemetry tracing for the
// accounts service.
//
// # Structured Logging
//
//	logger := observability.NewLogger(observability.InfoLevel, os.Stdout)
//	logger.WithField("principal_id", id).Info("Login succeeded")
//
// Request scoped loggers carry request, principal and trace ids:
//
//	observability.FromContext(r.Context()).Warn("Token rejected")
//
// # Prometheus Metrics
//
//	registry := prometheus.NewRegistry()
//	metrics := observability.NewMetrics(registry)
//	metrics.RecordLogin("success")
//
// All Record* helpers are safe to call on a nil *Metrics.
//
// # Health Checks
//
// Liveness always answers 200. Readiness pings the database and, when
// configured, Redis and answers 503 when the database is unreachable.
//
// # Tracing
//
// InitOTel exports spans and metrics over OTLP/gRPC. With tracing disabled
// StartSpan returns no-op spans, so call sites never branch on configuration.
package observability
