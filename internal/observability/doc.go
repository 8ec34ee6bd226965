// Package observability provides logging, metrics and tracing for sweeps.
//
// # Logging
//
// Logger wraps slog with JSON or text output, level filtering and redaction
// of credentials (OpenAI, Google and AWS keys, bearer tokens, passwords in
// DSNs). Run, group and config identifiers stored in the context with
// WithRunID, WithGroup and WithConfig are attached to every record.
//
//	logger := observability.NewLogger(observability.LogConfig{Level: "debug"})
//	ctx = observability.WithRunID(ctx, runID)
//	logger.Info(ctx, "sweep started", "configs", len(plan.Configs))
//
// # Metrics
//
// Metrics registers Prometheus collectors on an injectable registerer:
//
//   - ragsweep_configs_total{stage,status}
//   - ragsweep_builds_total{status}
//   - ragsweep_build_duration_seconds
//   - ragsweep_evaluation_duration_seconds{status}
//   - ragsweep_evaluations_in_flight
//   - ragsweep_evaluation_retries_total
//
// Serve exposes them on /metrics for the duration of a run.
//
// # Tracing
//
// Tracer uses OpenTelemetry. With an OTLP endpoint spans are exported over
// gRPC; without one a local SDK provider still mints trace IDs. Each
// evaluation gets its own trace and TraceReference turns the trace ID into
// the reference stored on the result, optionally through a URL template:
//
//	ctx, span := tracer.TraceEvaluation(ctx, cfg.String())
//	defer span.End()
//	ref := observability.TraceReference(ctx, "http://localhost:16686/trace/{trace_id}")
package observability
