// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package trainer

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

const tracerName = "aleutian.lcs.trainer"

// Tracer provides OpenTelemetry tracing for training runs.
//
// Thread Safety: Safe for concurrent use.
type Tracer struct {
	tracer  trace.Tracer
	logger  *slog.Logger
	enabled bool
}

// NewTracer creates a tracer on the global provider.
//
// Inputs:
//   - logger: Logger for structured logging (can be nil).
//   - enabled: When false every span is a no-op.
//
// Outputs:
//   - *Tracer: Tracer instance.
func NewTracer(logger *slog.Logger, enabled bool) *Tracer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Tracer{
		tracer:  otel.Tracer(tracerName),
		logger:  logger,
		enabled: enabled,
	}
}

// StartRun starts the span for a whole training run.
func (t *Tracer) StartRun(ctx context.Context, iterations, examples int) (context.Context, trace.Span) {
	if t == nil || !t.enabled {
		return ctx, noop.Span{}
	}
	return t.tracer.Start(ctx, "lcs.train",
		trace.WithAttributes(
			attribute.Int("lcs.iterations", iterations),
			attribute.Int("lcs.examples", examples),
		),
		trace.WithSpanKind(trace.SpanKindInternal),
	)
}

// EndRun completes the run span.
func (t *Tracer) EndRun(span trace.Span, summary Summary, err error) {
	if span == nil {
		return
	}
	endWithStatus(span, err)
	span.SetAttributes(
		attribute.Int("lcs.result.iterations", summary.Iterations),
		attribute.Int("lcs.result.macro_size", summary.MacroSize),
		attribute.Int("lcs.result.micro_size", summary.MicroSize),
		attribute.Float64("lcs.result.ave_fitness", summary.Averages.Fitness),
	)
	span.End()
}

// StartStep starts the span for one example.
func (t *Tracer) StartStep(ctx context.Context, iteration int) (context.Context, trace.Span) {
	if t == nil || !t.enabled {
		return ctx, noop.Span{}
	}
	return t.tracer.Start(ctx, "lcs.step",
		trace.WithAttributes(attribute.Int("lcs.iteration", iteration)),
	)
}

// EndStep completes the step span.
func (t *Tracer) EndStep(span trace.Span, report StepReport, err error) {
	if span == nil {
		return
	}
	span.SetAttributes(
		attribute.Int("lcs.step.match_set", report.MatchSetSize),
		attribute.Int("lcs.step.correct_set", report.CorrectSetSize),
		attribute.Bool("lcs.step.ga", report.GARan),
		attribute.Int("lcs.step.deleted", report.Deleted),
	)
	endWithStatus(span, err)
	span.End()
}

func endWithStatus(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return
	}
	span.SetStatus(codes.Ok, "")
}
