// Package observability provides structured logging, Prometheus metrics, and OpenTelemetry tracing.
//
// # Overview
//
// The compiler is a one-shot command, so observability is kept local: logs go
// to stderr, metrics can be dumped to a node_exporter textfile after each run
// and spans are exported only when an OTLP endpoint is configured.
//
// # Structured Logging
//
// Create logger:
//
//	log, err := observability.NewLogger(observability.LoggerConfig{
//		Level:  "debug",
//		Format: observability.FormatJSON,
//	})
//
// Run-scoped logging:
//
//	ctx = observability.WithRunID(ctx, runID)
//	ctx = observability.WithLogger(ctx, log)
//	observability.FromContext(ctx).Info("Compilation complete")
//
// # Prometheus Metrics
//
//	metrics := observability.NewMetrics(nil)
//	metrics.RecordCompilation(observability.RunMetrics{Status: "succeeded"})
//	err := metrics.WriteTextfile("/var/lib/node_exporter/mobile_air.prom")
//
// # OpenTelemetry
//
//	tp, err := observability.InitTracing(ctx, observability.OTelConfig{
//		Endpoint:    "otel-collector:4317",
//		ServiceName: "mobile-air",
//		Insecure:    true,
//	}, log)
//	defer observability.ShutdownTracing(ctx, tp)
//
// # Related Packages
//
//   - pkg/config: Observability configuration
//   - pkg/codegen/orchestrator: records a span tree and metrics per compile
package observability
