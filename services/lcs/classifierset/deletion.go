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

import "log/slog"

// Deletion removes micro-rules until the micro size is within
// MaxPopulation, one unit of numerosity per step. It returns the number of
// units removed.
func (s *ClassifierSet) Deletion() int {
	deleted := 0
	for s.microSize > s.cfg.MaxPopulation && len(s.pop) > 0 {
		s.deleteOne()
		deleted++
	}
	if deleted > 0 {
		deletionsTotal.Add(float64(deleted))
	}
	s.observeSize()
	return deleted
}

// deleteOne draws a rule by deletion vote and decrements its numerosity,
// removing it once it reaches zero.
func (s *ClassifierSet) deleteOne() {
	mean := 0.0
	for _, r := range s.pop {
		mean += r.Fitness * float64(r.Numerosity)
	}
	mean /= float64(s.microSize)

	votes := make([]float64, len(s.pop))
	total := 0.0
	for i, r := range s.pop {
		votes[i] = s.heuristics.DeletionVote(r, mean)
		total += votes[i]
	}

	victim := -1
	if total > 0 {
		choice := total * s.rng.Float64()
		cum := 0.0
		last := -1
		for i, v := range votes {
			if v <= 0 {
				continue
			}
			last = i
			cum += v
			if cum > choice {
				victim = i
				break
			}
		}
		// Rounding can leave choice just above the final sum.
		if victim < 0 {
			victim = last
		}
	} else {
		victim = s.rng.IntN(len(s.pop))
		s.logger.Warn("deletion votes sum to zero, picking uniformly", slog.Int("population", len(s.pop)))
	}

	r := s.pop[victim]
	r.UpdateNumerosity(-1)
	s.microSize--
	if r.Numerosity < 1 {
		s.detach(victim)
	}
}
