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
	"slices"

	"github.com/AleutianAI/AleutianLCS/services/lcs/rule"
)

// Match reports whether every specified attribute of r accepts the
// corresponding value of state. Unspecified attributes always match.
func Match(r *rule.Rule, state []float64) bool {
	for i, att := range r.SpecifiedAtts {
		if !r.Condition[i].Contains(state[att]) {
			return false
		}
	}
	return true
}

// BuildMatchSet returns the indices of all rules matching state, trimmed
// to the MatchSetCap nearest rules and sorted ascending. It does not modify
// the set's match set.
func (s *ClassifierSet) BuildMatchSet(state []float64) []int {
	matched := s.scan(state)
	if len(matched) > s.cfg.MatchSetCap {
		matched = s.nearest(matched, state)
		slices.Sort(matched)
	}
	return matched
}

// MakeEvalMatchSet sets the match set for inference: matching rules only,
// no covering. When capped, the match set is kept in ascending distance
// order.
func (s *ClassifierSet) MakeEvalMatchSet(state []float64) error {
	if err := s.checkState(state); err != nil {
		return err
	}
	matched := s.scan(state)
	if len(matched) > s.cfg.MatchSetCap {
		matched = s.nearest(matched, state)
	}
	s.matchSet = matched
	return nil
}

// MakeCorrectSet sets the correct set to the matched rules whose prediction
// is a subset of target.
func (s *ClassifierSet) MakeCorrectSet(target rule.LabelSet) {
	s.correctSet = s.correctSet[:0]
	for _, idx := range s.matchSet {
		if s.pop[idx].Prediction.IsSubsetOf(target) {
			s.correctSet = append(s.correctSet, idx)
		}
	}
}

func (s *ClassifierSet) scan(state []float64) []int {
	var matched []int
	for idx, r := range s.pop {
		if Match(r, state) {
			matched = append(matched, idx)
		}
	}
	return matched
}

// nearest returns the MatchSetCap indices closest to state in ascending
// distance order. Ties keep scan order.
func (s *ClassifierSet) nearest(indices []int, state []float64) []int {
	type scored struct {
		idx  int
		dist float64
	}
	ranked := make([]scored, len(indices))
	for i, idx := range indices {
		ranked[i] = scored{idx: idx, dist: ruleDistance(s.metric, s.pop[idx], state)}
	}
	slices.SortStableFunc(ranked, func(a, b scored) int {
		switch {
		case a.dist < b.dist:
			return -1
		case a.dist > b.dist:
			return 1
		default:
			return 0
		}
	})

	out := make([]int, 0, s.cfg.MatchSetCap)
	for _, r := range ranked[:s.cfg.MatchSetCap] {
		out = append(out, r.idx)
	}
	return out
}

func (s *ClassifierSet) matchSetNumerosity() int {
	n := 0
	for _, idx := range s.matchSet {
		n += s.pop[idx].Numerosity
	}
	return n
}
