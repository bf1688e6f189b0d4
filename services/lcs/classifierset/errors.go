// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package classifierset manages the evolving rule population of a
// multi-label learning classifier system.
//
// A ClassifierSet owns the rules and two index sets into them: the match
// set (rules whose condition accepts the current example) and the correct
// set (matched rules whose prediction is a subset of the current target).
// Per example it covers unexplained targets, refines predictions through a
// partition.Partitioner, runs the genetic algorithm over the correct set,
// subsumes redundant rules and deletes rules until the population fits its
// ceiling.
//
// # Index Sets
//
// The match and correct sets hold positions into the rule slice. Every
// removal goes through a single renumbering routine that drops the removed
// position and shifts higher positions down, so both sets stay valid after
// each individual removal.
//
// # Randomness
//
// Every stochastic operator draws from the *rand.Rand passed to New. Runs
// are reproducible given the same seed and example order.
//
// # Thread Safety
//
// ClassifierSet is NOT safe for concurrent use. Examples must be processed
// one at a time.
package classifierset

import "errors"

// Sentinel errors for the classifier set.
var (
	// ErrNilRand is returned when New receives no random source.
	ErrNilRand = errors.New("random source must not be nil")

	// ErrEmptySchema is returned when New receives a schema without
	// attributes.
	ErrEmptySchema = errors.New("schema must have at least one attribute")

	// ErrStateLength is returned when an example's state does not match the
	// schema width.
	ErrStateLength = errors.New("state length does not match schema")

	// ErrInvalidConfig is returned when a Config fails validation.
	ErrInvalidConfig = errors.New("invalid classifier set config")

	// ErrUnknownSelectionMethod is returned for an unrecognized parent
	// selection method name.
	ErrUnknownSelectionMethod = errors.New("undefined selection method")

	// ErrSingularCovariance is returned when a covariance matrix is not
	// positive definite.
	ErrSingularCovariance = errors.New("covariance matrix is not positive definite")

	// ErrMetricDimension is returned when a metric's dimension differs from
	// the schema width.
	ErrMetricDimension = errors.New("metric dimension does not match schema")
)
