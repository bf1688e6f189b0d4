// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package trainer drives a classifier set over a training set, one example
// per iteration.
package trainer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/AleutianAI/AleutianLCS/services/lcs/classifierset"
)

// ErrNoData is returned by Run when the trainer has no examples.
var ErrNoData = errors.New("no training examples")

// DefaultTrackFreq is the default number of iterations between progress
// lines.
const DefaultTrackFreq = 1000

// Options configures a Trainer.
type Options struct {
	// TrackFreq is the number of iterations between progress log lines.
	// Zero disables them.
	TrackFreq int

	// StartIteration is the first iteration number, for resumed runs.
	StartIteration int

	// Compact removes never-matched rules at the end of Run.
	Compact bool
}

// StepReport describes one processed example.
type StepReport struct {
	Iteration      int
	MatchSetSize   int
	CorrectSetSize int
	GARan          bool
	Subsumed       int
	Deleted        int
}

// Summary describes a finished run.
type Summary struct {
	Iterations int
	MacroSize  int
	MicroSize  int
	Averages   classifierset.Averages
	Compacted  int
	Elapsed    time.Duration
}

// Trainer feeds examples through a ClassifierSet.
//
// Thread Safety: NOT safe for concurrent use.
type Trainer struct {
	set       *classifierset.ClassifierSet
	data      []classifierset.Example
	opts      Options
	logger    *slog.Logger
	tracer    *Tracer
	iteration int
}

// New creates a trainer.
//
// Inputs:
//   - set: The classifier set to train.
//   - data: Training examples, cycled in order.
//   - opts: Options.
//   - logger: Logger (nil uses slog.Default()).
//   - tracer: Tracer (nil disables tracing).
//
// Outputs:
//   - *Trainer: Ready to run.
func New(set *classifierset.ClassifierSet, data []classifierset.Example, opts Options, logger *slog.Logger, tracer *Tracer) *Trainer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Trainer{
		set:       set,
		data:      data,
		opts:      opts,
		logger:    logger.With(slog.String("component", "trainer")),
		tracer:    tracer,
		iteration: opts.StartIteration,
	}
}

// Iteration returns the next iteration number.
func (t *Trainer) Iteration() int {
	return t.iteration
}

// Step processes one training example.
//
// Description:
//
//	Builds the match set (covering and refining as needed), derives the
//	correct set, updates the matched rules' statistics, subsumes the
//	correct set when enabled, runs the GA when its trigger fires, deletes
//	down to the population ceiling and clears the index sets.
//
// Inputs:
//   - ctx: Context for tracing.
//   - iteration: The iteration number.
//   - ex: The example.
//
// Outputs:
//   - StepReport: What happened.
//   - error: Errors from building the match set.
func (t *Trainer) Step(ctx context.Context, iteration int, ex classifierset.Example) (report StepReport, err error) {
	_, span := t.tracer.StartStep(ctx, iteration)
	defer func() { t.tracer.EndStep(span, report, err) }()

	report.Iteration = iteration
	if err := t.set.MakeMatchSet(ex.State, ex.Labels, iteration); err != nil {
		return report, fmt.Errorf("iteration %d: %w", iteration, err)
	}
	t.set.MakeCorrectSet(ex.Labels)
	report.MatchSetSize = len(t.set.MatchSet())
	report.CorrectSetSize = len(t.set.CorrectSet())

	t.set.UpdateSets(ex.Labels)
	if t.set.Config().Subsumption {
		report.Subsumed = t.set.SubsumeCorrectSet()
	}
	if t.set.ShouldRunGA(iteration) {
		t.set.ApplyGA(iteration, ex.State, t.data)
		report.GARan = true
	}
	report.Deleted = t.set.Deletion()
	t.set.ClearSets()
	return report, nil
}

// Run processes iterations examples, cycling through the data.
//
// Description:
//
//	The context is checked between examples. Every TrackFreq iterations a
//	progress line is logged. After the last iteration never-matched rules
//	are compacted (when enabled) and every rule's label probabilities are
//	estimated from the data.
//
// Outputs:
//   - Summary: The final population state.
//   - error: ErrNoData, ctx.Err() on cancellation, or a step error.
func (t *Trainer) Run(ctx context.Context, iterations int) (summary Summary, err error) {
	ctx, span := t.tracer.StartRun(ctx, iterations, len(t.data))
	defer func() { t.tracer.EndRun(span, summary, err) }()

	if len(t.data) == 0 {
		return summary, ErrNoData
	}
	start := time.Now()
	t.logger.Info("training started",
		slog.Int("iterations", iterations),
		slog.Int("examples", len(t.data)),
		slog.Int("start_iteration", t.iteration),
	)

	for i := range iterations {
		if err := ctx.Err(); err != nil {
			return t.summarize(summary, start), err
		}
		it := t.iteration
		if _, err := t.Step(ctx, it, t.data[it%len(t.data)]); err != nil {
			return t.summarize(summary, start), err
		}
		t.iteration++
		summary.Iterations = i + 1

		if t.opts.TrackFreq > 0 && t.iteration%t.opts.TrackFreq == 0 {
			t.logger.Info("training progress",
				slog.Int("iteration", t.iteration),
				slog.String("tracking", t.set.Tracking()),
			)
		}
	}

	if t.opts.Compact {
		summary.Compacted = t.set.Compact()
	}
	t.set.EstimateLabelProbabilities(t.data)

	summary = t.summarize(summary, start)
	t.logger.Info("training completed",
		slog.Int("iterations", summary.Iterations),
		slog.Int("macro", summary.MacroSize),
		slog.Int("micro", summary.MicroSize),
		slog.Duration("elapsed", summary.Elapsed),
	)
	return summary, nil
}

func (t *Trainer) summarize(s Summary, start time.Time) Summary {
	s.MacroSize = t.set.Len()
	s.MicroSize = t.set.MicroSize()
	s.Averages = t.set.Averages(t.set.Schema().Len())
	s.Elapsed = time.Since(start)
	return s
}
