// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package classifierset

import (
	"fmt"
	"slices"

	"github.com/AleutianAI/AleutianLCS/services/lcs/rule"
)

// =============================================================================
// Insertion and Identity
// =============================================================================

// Insert adds one micro-rule to the population.
//
// Description:
//
//	If a rule semantically identical to r exists (searching the match set
//	when searchMatchSet is true, the whole population otherwise), its
//	numerosity grows by one. Otherwise r is appended with numerosity 1.
//	The micro size always grows by one.
//
//	r's incoming numerosity is ignored: each call inserts exactly one
//	micro-rule. Restore merged rules with WithPopulation instead.
//
// Outputs:
//   - int: Index of the rule that absorbed r, or of r itself.
//   - bool: True if r was appended as a new macro-rule.
func (s *ClassifierSet) Insert(r *rule.Rule, searchMatchSet bool) (int, bool) {
	s.microSize++
	if idx := s.GetIdentical(r, searchMatchSet); idx >= 0 {
		s.pop[idx].UpdateNumerosity(1)
		return idx, false
	}
	// One call is one micro-rule, whatever count r arrived with.
	r.Numerosity = 1
	s.pop = append(s.pop, r)
	return len(s.pop) - 1, true
}

// GetIdentical returns the index of the first rule equal to r, or -1.
// Rules with zero numerosity are awaiting removal and never match.
func (s *ClassifierSet) GetIdentical(r *rule.Rule, searchMatchSet bool) int {
	if searchMatchSet {
		for _, idx := range s.matchSet {
			if c := s.pop[idx]; c.Numerosity > 0 && s.heuristics.Equal(r, c) {
				return idx
			}
		}
		return -1
	}
	for idx, c := range s.pop {
		if c.Numerosity > 0 && s.heuristics.Equal(r, c) {
			return idx
		}
	}
	return -1
}

// =============================================================================
// Removal
// =============================================================================

// RemoveAt removes the rule at index together with its numerosity. Out of
// range indices are ignored.
func (s *ClassifierSet) RemoveAt(index int) {
	if index < 0 || index >= len(s.pop) {
		return
	}
	s.microSize -= s.pop[index].Numerosity
	s.detach(index)
}

// detach removes the rule at index from the population and renumbers both
// index sets. The micro size is left to the caller.
func (s *ClassifierSet) detach(index int) {
	s.pop = slices.Delete(s.pop, index, index+1)
	s.matchSet = renumber(s.matchSet, index)
	s.correctSet = renumber(s.correctSet, index)
}

// renumber drops ref from set and shifts every index above it down by one.
func renumber(set []int, ref int) []int {
	out := set[:0]
	for _, idx := range set {
		switch {
		case idx == ref:
		case idx > ref:
			out = append(out, idx-1)
		default:
			out = append(out, idx)
		}
	}
	return out
}

// =============================================================================
// Statistics
// =============================================================================

// UpdateSets updates every matched rule's statistics against target.
func (s *ClassifierSet) UpdateSets(target rule.LabelSet) {
	size := s.matchSetNumerosity()
	for _, idx := range s.matchSet {
		s.pop[idx].UpdateParams(size, target, s.cfg.Rule)
	}
}

// TimeAverage returns the numerosity-weighted mean GA time of the correct
// set, or 0 when it is empty.
func (s *ClassifierSet) TimeAverage() float64 {
	var num, sum float64
	for _, idx := range s.correctSet {
		r := s.pop[idx]
		num += float64(r.Numerosity)
		sum += float64(r.GATime * r.Numerosity)
	}
	if num == 0 {
		return 0
	}
	return sum / num
}

// Averages summarizes the population.
type Averages struct {
	Generality float64
	Fitness    float64

	// Defined is false for an empty population, in which case the means
	// are zero.
	Defined bool
}

// Averages returns the mean generality over nFeatures attributes and the
// mean fitness, per macro-rule.
func (s *ClassifierSet) Averages(nFeatures int) Averages {
	if len(s.pop) == 0 || nFeatures == 0 {
		return Averages{}
	}
	var gen, fit float64
	for _, r := range s.pop {
		gen += r.Generality(nFeatures)
		fit += r.Fitness
	}
	n := float64(len(s.pop))
	return Averages{Generality: gen / n, Fitness: fit / n, Defined: true}
}

// Tracking returns the progress line "macro, micro, fitness, generality".
// Undefined averages print as NA.
func (s *ClassifierSet) Tracking() string {
	a := s.Averages(s.schema.Len())
	if !a.Defined {
		return fmt.Sprintf("%d, %d, NA, NA", len(s.pop), s.microSize)
	}
	return fmt.Sprintf("%d, %d, %.4f, %.4f", len(s.pop), s.microSize, a.Fitness, a.Generality)
}

// Compact removes every rule that never matched an example. It returns the
// number of macro-rules removed.
func (s *ClassifierSet) Compact() int {
	removed := 0
	for idx := len(s.pop) - 1; idx >= 0; idx-- {
		if s.pop[idx].MatchCount == 0 {
			s.RemoveAt(idx)
			removed++
		}
	}
	s.observeSize()
	return removed
}

// EstimateLabelProbabilities sets each rule's label frequencies over the
// examples in data it matches.
func (s *ClassifierSet) EstimateLabelProbabilities(data []Example) {
	for _, r := range s.pop {
		var covered []rule.LabelSet
		for _, ex := range data {
			if Match(r, ex.State) {
				covered = append(covered, ex.Labels)
			}
		}
		r.EstimateLabelProbabilities(covered)
	}
}
