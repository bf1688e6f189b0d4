// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package rule

import (
	"fmt"
	"maps"
	"math"
	"math/rand/v2"
	"slices"

	"github.com/google/uuid"
)

// Rule is a condition -> prediction mapping with evolving statistics.
//
// SpecifiedAtts and Condition are parallel: Condition[i] constrains
// attribute SpecifiedAtts[i]. SpecifiedAtts is kept in ascending order.
type Rule struct {
	// ID identifies the rule in snapshots and logs. It has no effect on
	// learning.
	ID string `json:"id"`

	SpecifiedAtts []int       `json:"specified_atts"`
	Condition     []Condition `json:"condition"`
	Prediction    LabelSet    `json:"prediction"`

	// Numerosity is the number of micro-rules this record stands for.
	Numerosity int `json:"numerosity"`

	Fitness  float64 `json:"fitness"`
	Accuracy float64 `json:"accuracy"`

	// Loss is the running mean Hamming loss of Prediction against the
	// targets of the examples the rule matched.
	Loss float64 `json:"loss"`

	MatchCount   int `json:"match_count"`
	CorrectCount int `json:"correct_count"`

	// AveMatchSetSize estimates the numerosity of the match sets this rule
	// takes part in. The deletion vote grows with it.
	AveMatchSetSize float64 `json:"ave_match_set_size"`

	InitTimestamp int `json:"init_timestamp"`

	// GATime is the iteration at which the rule last took part in a GA
	// invocation.
	GATime int `json:"ga_time"`

	// LabelProb is the per-label frequency among training examples the
	// rule covers. Nil until EstimateLabelProbabilities runs.
	LabelProb map[int]float64 `json:"label_prob,omitempty"`
}

// Cover builds a rule anchored at a concrete example.
//
// Description:
//
//	Every attribute is specified with a condition built by BuildMatch from
//	the example's value, so the new rule always matches state. The rule
//	predicts the whole target set, starts with numerosity 1 and initial
//	fitness from params. setSize seeds the match-set size estimate.
//
// Inputs:
//   - setSize: Numerosity of the current match set plus one.
//   - timestamp: Current iteration.
//   - state: The example's attribute values. Length must equal schema.Len().
//   - target: The example's labels.
//   - schema: Attribute descriptions.
//   - rng: Random source. Must not be nil.
//   - params: Rule parameters.
//
// Outputs:
//   - *Rule: The new covering rule.
func Cover(setSize, timestamp int, state []float64, target LabelSet, schema Schema, rng *rand.Rand, params Params) *Rule {
	r := &Rule{
		ID:              uuid.NewString(),
		SpecifiedAtts:   make([]int, 0, schema.Len()),
		Condition:       make([]Condition, 0, schema.Len()),
		Prediction:      target.Clone(),
		Numerosity:      1,
		Fitness:         params.InitFitness,
		AveMatchSetSize: float64(setSize),
		InitTimestamp:   timestamp,
		GATime:          timestamp,
	}
	for idx, attr := range schema.Attributes {
		r.SpecifiedAtts = append(r.SpecifiedAtts, idx)
		r.Condition = append(r.Condition, BuildMatch(state[idx], attr, rng))
	}
	return r
}

// Copy derives an offspring from parent.
//
// The condition and prediction are deep-copied. Fitness, accuracy, loss and
// the match-set size estimate are inherited; numerosity is 1 and the
// experience counters start at zero.
func Copy(parent *Rule, timestamp int) *Rule {
	return &Rule{
		ID:              uuid.NewString(),
		SpecifiedAtts:   slices.Clone(parent.SpecifiedAtts),
		Condition:       slices.Clone(parent.Condition),
		Prediction:      parent.Prediction.Clone(),
		Numerosity:      1,
		Fitness:         parent.Fitness,
		Accuracy:        parent.Accuracy,
		Loss:            parent.Loss,
		AveMatchSetSize: parent.AveMatchSetSize,
		InitTimestamp:   timestamp,
		GATime:          timestamp,
	}
}

// UpdateNumerosity adds delta to the numerosity.
func (r *Rule) UpdateNumerosity(delta int) {
	r.Numerosity += delta
}

// SetFitness overwrites the fitness.
func (r *Rule) SetFitness(f float64) {
	r.Fitness = f
}

// UpdateParams updates experience, accuracy, loss, fitness and the
// match-set size estimate after the rule took part in a match set.
//
// Inputs:
//   - matchSetSize: Total numerosity of the match set.
//   - target: Labels of the current example.
//   - params: Rule parameters.
func (r *Rule) UpdateParams(matchSetSize int, target LabelSet, params Params) {
	r.MatchCount++
	if r.Prediction.IsSubsetOf(target) {
		r.CorrectCount++
	}
	n := float64(r.MatchCount)
	r.Loss += (r.Prediction.HammingLoss(target) - r.Loss) / n
	r.Accuracy = float64(r.CorrectCount) / n

	// Plain mean while inexperienced, fixed learning rate afterwards.
	if n < 1/params.Beta {
		r.AveMatchSetSize += (float64(matchSetSize) - r.AveMatchSetSize) / n
	} else {
		r.AveMatchSetSize += params.Beta * (float64(matchSetSize) - r.AveMatchSetSize)
	}
	r.Fitness = math.Pow(r.Accuracy, params.Nu)
}

// Conditions returns the condition keyed by attribute index.
func (r *Rule) Conditions() map[int]Condition {
	m := make(map[int]Condition, len(r.SpecifiedAtts))
	for i, att := range r.SpecifiedAtts {
		m[att] = r.Condition[i]
	}
	return m
}

// SetConditions replaces the condition with fresh slices built from m,
// ordered by attribute index.
func (r *Rule) SetConditions(m map[int]Condition) {
	atts := slices.Sorted(maps.Keys(m))
	conds := make([]Condition, len(atts))
	for i, att := range atts {
		conds[i] = m[att].sorted()
	}
	r.SpecifiedAtts = atts
	r.Condition = conds
}

// ConditionFor returns the condition on att, if any.
func (r *Rule) ConditionFor(att int) (Condition, bool) {
	i := slices.Index(r.SpecifiedAtts, att)
	if i < 0 {
		return Condition{}, false
	}
	return r.Condition[i], true
}

// Generality returns the fraction of the nFeatures attributes the rule
// leaves unspecified.
func (r *Rule) Generality(nFeatures int) float64 {
	if nFeatures == 0 {
		return 0
	}
	return float64(nFeatures-len(r.SpecifiedAtts)) / float64(nFeatures)
}

// EstimateLabelProbabilities records, for each label, the fraction of the
// covered examples carrying it. With no covered examples LabelProb is reset
// to an empty map.
func (r *Rule) EstimateLabelProbabilities(covered []LabelSet) {
	r.LabelProb = make(map[int]float64)
	if len(covered) == 0 {
		return
	}
	for _, labels := range covered {
		for _, l := range labels {
			r.LabelProb[l]++
		}
	}
	for l, c := range r.LabelProb {
		r.LabelProb[l] = c / float64(len(covered))
	}
}

// Validate checks the data-model invariants against schema.
func (r *Rule) Validate(schema Schema) error {
	if len(r.SpecifiedAtts) != len(r.Condition) {
		return fmt.Errorf("rule %s: %w", r.ID, ErrConditionMismatch)
	}
	seen := make(map[int]struct{}, len(r.SpecifiedAtts))
	for i, att := range r.SpecifiedAtts {
		if att < 0 || att >= schema.Len() {
			return fmt.Errorf("rule %s: attribute %d: %w", r.ID, att, ErrAttributeOutOfRange)
		}
		if _, dup := seen[att]; dup {
			return fmt.Errorf("rule %s: attribute %d: %w", r.ID, att, ErrDuplicateAttribute)
		}
		seen[att] = struct{}{}
		if c := r.Condition[i]; !c.Discrete && c.Lo > c.Hi {
			return fmt.Errorf("rule %s: attribute %d: %w", r.ID, att, ErrInvertedInterval)
		}
	}
	if r.Prediction.Len() == 0 {
		return fmt.Errorf("rule %s: %w", r.ID, ErrEmptyPrediction)
	}
	if r.Numerosity < 0 {
		return fmt.Errorf("rule %s: %w", r.ID, ErrInvalidNumerosity)
	}
	return nil
}

// String renders a compact description for logs.
func (r *Rule) String() string {
	return fmt.Sprintf("rule(%s atts=%d pred=%s num=%d fit=%.4f)",
		shortID(r.ID), len(r.SpecifiedAtts), r.Prediction, r.Numerosity, r.Fitness)
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
