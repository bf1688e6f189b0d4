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
	"log/slog"
	"slices"

	"github.com/AleutianAI/AleutianLCS/services/lcs/rule"
)

// insertDiscovered places a GA offspring into the population.
func (s *ClassifierSet) insertDiscovered(child, parent1, parent2 *rule.Rule) {
	if s.cfg.Subsumption && len(child.SpecifiedAtts) > 0 {
		s.subsumeIntoParents(child, parent1, parent2)
		return
	}
	s.Insert(child, false)
	gaOffspring.WithLabelValues("inserted").Inc()
}

// subsumeIntoParents lets the first parent able to subsume child absorb it,
// falling back to the correct set.
func (s *ClassifierSet) subsumeIntoParents(child, parent1, parent2 *rule.Rule) {
	for _, p := range []*rule.Rule{parent1, parent2} {
		if s.heuristics.Subsumes(p, child) {
			p.UpdateNumerosity(1)
			s.microSize++
			gaOffspring.WithLabelValues("subsumed").Inc()
			return
		}
	}
	s.subsumeIntoCorrectSet(child)
}

// subsumeIntoCorrectSet lets a uniformly chosen correct-set subsumer of
// child absorb it, or inserts child when there is none.
func (s *ClassifierSet) subsumeIntoCorrectSet(child *rule.Rule) {
	var choices []int
	for _, idx := range s.correctSet {
		if s.heuristics.Subsumes(s.pop[idx], child) {
			choices = append(choices, idx)
		}
	}
	if len(choices) > 0 {
		s.pop[choices[s.rng.IntN(len(choices))]].UpdateNumerosity(1)
		s.microSize++
		gaOffspring.WithLabelValues("subsumed").Inc()
		return
	}
	s.Insert(child, false)
	gaOffspring.WithLabelValues("inserted").Inc()
}

// SubsumeCorrectSet merges correct-set members into the first member that
// qualifies as a subsumer.
//
// Description:
//
//	Every other correct-set member that the subsumer is more general than
//	adds its numerosity to the subsumer and is removed from the population
//	and both index sets. The micro size is unchanged.
//
// Outputs:
//   - int: Number of rules merged.
func (s *ClassifierSet) SubsumeCorrectSet() int {
	if len(s.correctSet) < 2 {
		return 0
	}
	subsumerIdx := -1
	for _, idx := range s.correctSet {
		if s.heuristics.IsSubsumer(s.pop[idx]) {
			subsumerIdx = idx
			break
		}
	}
	if subsumerIdx < 0 {
		return 0
	}
	subsumer := s.pop[subsumerIdx]

	var merged []int
	for _, idx := range s.correctSet {
		if idx != subsumerIdx && s.heuristics.IsMoreGeneral(subsumer, s.pop[idx]) {
			merged = append(merged, idx)
		}
	}
	slices.Sort(merged)
	slices.Reverse(merged)
	for _, idx := range merged {
		subsumer.UpdateNumerosity(s.pop[idx].Numerosity)
		s.detach(idx)
	}

	if len(merged) > 0 {
		subsumedTotal.Add(float64(len(merged)))
		s.logger.Debug("correct set subsumed",
			slog.String("subsumer", subsumer.String()),
			slog.Int("merged", len(merged)),
		)
	}
	return len(merged)
}
