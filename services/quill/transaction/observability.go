// Copyright (C) 2025 Quill Docs (maintainers@quilldocs.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package transaction

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

const transactionTracerName = "quill.transaction"

// Tracer provides OpenTelemetry tracing for transaction operations.
//
// # Description
//
// Wraps the OpenTelemetry tracer with operation-specific span creation.
// When disabled, returns noop spans for zero overhead. Exporter wiring is
// the embedding application's concern; this package only emits through the
// API.
//
// # Thread Safety
//
// All methods are safe for concurrent use.
type Tracer struct {
	tracer  trace.Tracer
	logger  *slog.Logger
	enabled bool
}

// NewTracer creates a new transaction tracer.
//
// # Inputs
//
//   - logger: Logger for structured logging. Uses slog.Default() if nil.
//   - enabled: Whether tracing is enabled. When false, uses noop spans.
func NewTracer(logger *slog.Logger, enabled bool) *Tracer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Tracer{
		tracer:  otel.Tracer(transactionTracerName),
		logger:  logger,
		enabled: enabled,
	}
}

// StartOp starts a span for one manager operation.
//
// # Inputs
//
//   - ctx: Parent context for span creation.
//   - op: Operation name, e.g. "begin", "commit", "rollback_change".
//   - sessionID: Session the operation applies to (may be empty).
//
// # Outputs
//
//   - context.Context: Context with span attached.
//   - trace.Span: The created span. Caller must pass it to EndOp.
func (t *Tracer) StartOp(ctx context.Context, op, sessionID string) (context.Context, trace.Span) {
	if !t.enabled {
		return ctx, noop.Span{}
	}

	ctx, span := t.tracer.Start(ctx, "transaction."+op,
		trace.WithAttributes(
			attribute.String("session_id", truncateForTrace(sessionID, 64)),
		),
		trace.WithSpanKind(trace.SpanKindInternal),
	)
	return ctx, span
}

// EndOp completes an operation span, recording the error if any.
func (t *Tracer) EndOp(span trace.Span, err error) {
	if span == nil {
		return
	}
	defer span.End()

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return
	}
	span.SetStatus(codes.Ok, "")
}

// RecordStateTransition records a manifest state change on the active span.
func (t *Tracer) RecordStateTransition(ctx context.Context, sessionID string, from, to Status, inState time.Duration) {
	span := trace.SpanFromContext(ctx)
	// SpanFromContext returns a noop span (not nil) when no span exists.
	if span.SpanContext().IsValid() {
		span.AddEvent("state_transition",
			trace.WithAttributes(
				attribute.String("session_id", sessionID),
				attribute.String("from_state", string(from)),
				attribute.String("to_state", string(to)),
				attribute.Int64("duration_in_state_ms", inState.Milliseconds()),
			),
		)
	}

	t.logger.DebugContext(ctx, "manifest state transition",
		slog.String("session_id", sessionID),
		slog.String("from", string(from)),
		slog.String("to", string(to)),
	)
}

// truncateForTrace truncates a string for use in span attributes.
func truncateForTrace(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	if maxLen < 4 {
		if maxLen <= 0 {
			return ""
		}
		return s[:maxLen]
	}
	return s[:maxLen-3] + "..."
}

// LoggerWithTrace returns a logger carrying trace correlation fields.
func LoggerWithTrace(ctx context.Context, logger *slog.Logger) *slog.Logger {
	spanCtx := trace.SpanContextFromContext(ctx)
	if !spanCtx.IsValid() {
		return logger
	}
	return logger.With(
		slog.String("trace_id", spanCtx.TraceID().String()),
		slog.String("span_id", spanCtx.SpanID().String()),
	)
}
