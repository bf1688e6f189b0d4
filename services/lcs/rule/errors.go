// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package rule provides the classifier record evolved by the learning
// classifier system.
//
// A Rule maps a condition over a subset of the input attributes to a set of
// predicted labels. Attributes that are not part of the condition are
// "don't care" and match any value. One stored Rule (a macro-rule) stands
// for Numerosity logically identical micro-rules.
//
// # Ownership Model
//
// Rules are owned by the population that stores them. The population mutates
// a rule's statistics in place (numerosity, fitness, counters). Rules are
// never shared between populations; use Copy to derive a new one.
//
// # Thread Safety
//
// Rule is NOT safe for concurrent use. The learning loop processes one
// example at a time and is the only writer.
package rule

import "errors"

// Sentinel errors for rule validation.
var (
	// ErrConditionMismatch is returned when SpecifiedAtts and Condition
	// have different lengths.
	ErrConditionMismatch = errors.New("specified attributes and condition length differ")

	// ErrDuplicateAttribute is returned when an attribute index appears
	// more than once in SpecifiedAtts.
	ErrDuplicateAttribute = errors.New("duplicate specified attribute")

	// ErrInvertedInterval is returned when a continuous condition has Lo > Hi.
	ErrInvertedInterval = errors.New("interval lower bound exceeds upper bound")

	// ErrEmptyPrediction is returned when a rule predicts no labels.
	ErrEmptyPrediction = errors.New("prediction is empty")

	// ErrInvalidNumerosity is returned when numerosity is negative.
	ErrInvalidNumerosity = errors.New("numerosity must not be negative")

	// ErrAttributeOutOfRange is returned when a specified attribute index
	// is outside the schema.
	ErrAttributeOutOfRange = errors.New("specified attribute outside schema")
)
