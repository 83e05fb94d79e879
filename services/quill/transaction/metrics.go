// Copyright (C) 2025 Quill Docs (maintainers@quilldocs.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package transaction

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Package-level meter for transaction metrics.
var meter = otel.Meter("quill.transaction")

// Metric instruments for transaction operations.
var (
	beginTotal       metric.Int64Counter
	commitTotal      metric.Int64Counter
	rollbackTotal    metric.Int64Counter
	revertTotal      metric.Int64Counter
	sessionDuration  metric.Float64Histogram
	sessionEntries   metric.Int64Histogram
	activeGauge      metric.Int64UpDownCounter
	gitOpDuration    metric.Float64Histogram
	gitOpErrors      metric.Int64Counter

	metricsOnce sync.Once
	metricsErr  error
)

// metricsEnabled controls whether metrics are recorded.
// Set by the Manager on initialization.
//
// Thread Safety: Uses atomic operations for safe concurrent access.
var metricsEnabled atomic.Bool

func init() {
	metricsEnabled.Store(true)
}

// SetMetricsEnabled controls whether metrics are recorded.
//
// Thread Safety: Safe for concurrent use.
func SetMetricsEnabled(enabled bool) {
	metricsEnabled.Store(enabled)
}

// initMetrics initializes all metric instruments.
// Safe to call multiple times; uses sync.Once internally.
func initMetrics() error {
	metricsOnce.Do(func() {
		var err error

		beginTotal, err = meter.Int64Counter(
			"quill_session_begin_total",
			metric.WithDescription("Total number of sessions begun"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		commitTotal, err = meter.Int64Counter(
			"quill_session_commit_total",
			metric.WithDescription("Total number of session commit operations"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		rollbackTotal, err = meter.Int64Counter(
			"quill_session_rollback_total",
			metric.WithDescription("Total number of whole-session rollbacks"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		revertTotal, err = meter.Int64Counter(
			"quill_change_revert_total",
			metric.WithDescription("Total number of individual change reverts"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		sessionDuration, err = meter.Float64Histogram(
			"quill_session_duration_seconds",
			metric.WithDescription("Wall-clock duration of sessions in seconds"),
			metric.WithUnit("s"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		sessionEntries, err = meter.Int64Histogram(
			"quill_session_entries",
			metric.WithDescription("Number of recorded entries per session"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		activeGauge, err = meter.Int64UpDownCounter(
			"quill_session_active",
			metric.WithDescription("Number of currently in-progress sessions"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		gitOpDuration, err = meter.Float64Histogram(
			"quill_git_operation_duration_seconds",
			metric.WithDescription("Duration of shadow git operations in seconds"),
			metric.WithUnit("s"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		gitOpErrors, err = meter.Int64Counter(
			"quill_git_operation_errors_total",
			metric.WithDescription("Total number of shadow git operation errors"),
		)
		if err != nil {
			metricsErr = err
			return
		}
	})
	return metricsErr
}

// recordBegin records a session begin operation.
func recordBegin(ctx context.Context, mode string, success bool) {
	if !metricsEnabled.Load() {
		return
	}
	if err := initMetrics(); err != nil {
		return
	}

	status := "success"
	if !success {
		status = "error"
	}

	beginTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String("mode", mode),
		attribute.String("status", status),
	))
}

// recordCommit records a session commit operation.
func recordCommit(ctx context.Context, duration time.Duration, entries int, success bool) {
	if !metricsEnabled.Load() {
		return
	}
	if err := initMetrics(); err != nil {
		return
	}

	status := "success"
	if !success {
		status = "error"
	}

	attrs := metric.WithAttributes(attribute.String("status", status))

	commitTotal.Add(ctx, 1, attrs)
	sessionDuration.Record(ctx, duration.Seconds(), attrs)
	sessionEntries.Record(ctx, int64(entries), attrs)
}

// recordRollback records a whole-session rollback.
func recordRollback(ctx context.Context, duration time.Duration, restored, skipped int) {
	if !metricsEnabled.Load() {
		return
	}
	if err := initMetrics(); err != nil {
		return
	}

	outcome := "full"
	if skipped > 0 {
		outcome = "partial"
	}

	attrs := metric.WithAttributes(attribute.String("outcome", outcome))

	rollbackTotal.Add(ctx, 1, attrs)
	sessionDuration.Record(ctx, duration.Seconds(), attrs)
	sessionEntries.Record(ctx, int64(restored+skipped), attrs)
}

// recordRevert records an individual change revert attempt.
func recordRevert(ctx context.Context, postSquash bool, success bool) {
	if !metricsEnabled.Load() {
		return
	}
	if err := initMetrics(); err != nil {
		return
	}

	phase := "pre_squash"
	if postSquash {
		phase = "post_squash"
	}
	status := "success"
	if !success {
		status = "error"
	}

	revertTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String("phase", phase),
		attribute.String("status", status),
	))
}

// recordGitOp records one shadow git operation.
func recordGitOp(ctx context.Context, operation string, duration time.Duration, opErr error) {
	if !metricsEnabled.Load() {
		return
	}
	if err := initMetrics(); err != nil {
		return
	}

	attrs := metric.WithAttributes(attribute.String("operation", operation))

	gitOpDuration.Record(ctx, duration.Seconds(), attrs)

	if opErr != nil {
		gitOpErrors.Add(ctx, 1, attrs)
	}
}

// incActive increments the active session gauge.
func incActive(ctx context.Context) {
	if !metricsEnabled.Load() {
		return
	}
	if err := initMetrics(); err != nil {
		return
	}

	activeGauge.Add(ctx, 1)
}

// decActive decrements the active session gauge.
func decActive(ctx context.Context) {
	if !metricsEnabled.Load() {
		return
	}
	if err := initMetrics(); err != nil {
		return
	}

	activeGauge.Add(ctx, -1)
}
