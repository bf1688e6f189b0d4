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
	"maps"
	"slices"

	"github.com/AleutianAI/AleutianLCS/services/lcs/rule"
)

// maxMutationPasses bounds the retries of a mutation pass that would leave
// an offspring without specified attributes.
const maxMutationPasses = 1000

// ShouldRunGA reports whether the correct set is non-empty and its mean
// time since the last GA exceeds ThetaGA.
func (s *ClassifierSet) ShouldRunGA(iteration int) bool {
	if len(s.correctSet) == 0 {
		return false
	}
	return float64(iteration)-s.TimeAverage() > float64(s.cfg.ThetaGA)
}

// ApplyGA breeds two offspring from the correct set and inserts them.
//
// Description:
//
//	Correct-set members get their GA time set to iteration. With more than
//	one member, two parents are selected and their copies are crossed over
//	with CrossoverProb unless already identical; with a single member both
//	offspring copy it. Both offspring are mutated against state. If
//	crossover changed anything both receive the reduced mean of their
//	fitness, otherwise each keeps its own reduced fitness. An offspring is
//	inserted only if it matches some example in data (a nil data skips
//	this check), through subsumption when enabled.
//
// Inputs:
//   - iteration: Current iteration.
//   - state: The current example's attribute values.
//   - data: The training examples.
func (s *ClassifierSet) ApplyGA(iteration int, state []float64, data []Example) {
	if len(s.correctSet) == 0 {
		return
	}
	gaRuns.Inc()
	for _, idx := range s.correctSet {
		s.pop[idx].GATime = iteration
	}

	var parent1, parent2 *rule.Rule
	changed := false
	if len(s.correctSet) > 1 {
		fitness := make([]float64, len(s.correctSet))
		for i, idx := range s.correctSet {
			fitness[i] = s.pop[idx].Fitness
		}
		a, b := s.cfg.Selection.SelectParents(fitness, s.cfg.TournamentSize, s.rng)
		parent1, parent2 = s.pop[s.correctSet[a]], s.pop[s.correctSet[b]]
	} else {
		parent1 = s.pop[s.correctSet[0]]
		parent2 = parent1
	}
	child1, child2 := rule.Copy(parent1, iteration), rule.Copy(parent2, iteration)

	if len(s.correctSet) > 1 && s.rng.Float64() < s.cfg.CrossoverProb && !s.heuristics.Equal(child1, child2) {
		changed = s.crossover(child1, child2)
	}
	s.mutate(child1, state)
	s.mutate(child2, state)

	if changed {
		f := s.cfg.FitnessReduction * (child1.Fitness + child2.Fitness) / 2
		child1.SetFitness(f)
		child2.SetFitness(f)
	} else {
		child1.SetFitness(s.cfg.FitnessReduction * child1.Fitness)
		child2.SetFitness(s.cfg.FitnessReduction * child2.Fitness)
	}

	for _, child := range []*rule.Rule{child1, child2} {
		if data != nil && !coversAny(child, data) {
			gaOffspring.WithLabelValues("rejected").Inc()
			continue
		}
		s.insertDiscovered(child, parent1, parent2)
	}

	s.logger.Debug("ga applied",
		slog.Int("iteration", iteration),
		slog.Int("correct_set", len(s.correctSet)),
		slog.Bool("crossed", changed),
	)
}

// crossover recombines the conditions of two offspring.
//
// Attributes specified by only one offspring move to the other with
// probability 1/2. Shared attributes are recombined with probability 1/2:
// continuous ones swap a bound or are absorbed (interval union) into one
// side, discrete ones swap values. Both offspring get fresh condition
// slices. It reports whether anything moved.
func (s *ClassifierSet) crossover(child1, child2 *rule.Rule) bool {
	c1, c2 := child1.Conditions(), child2.Conditions()

	var only1, only2, both []int
	for _, att := range child1.SpecifiedAtts {
		if _, ok := c2[att]; ok {
			both = append(both, att)
		} else {
			only1 = append(only1, att)
		}
	}
	for _, att := range child2.SpecifiedAtts {
		if _, ok := c1[att]; !ok {
			only2 = append(only2, att)
		}
	}

	changed := false
	for _, att := range only1 {
		if s.rng.Float64() < 0.5 {
			c2[att] = c1[att]
			delete(c1, att)
			changed = true
		}
	}
	for _, att := range only2 {
		if s.rng.Float64() < 0.5 {
			c1[att] = c2[att]
			delete(c2, att)
			changed = true
		}
	}
	for _, att := range both {
		if s.rng.Float64() >= 0.5 {
			continue
		}
		changed = true
		x, y := c1[att], c2[att]
		if !s.schema.Attributes[att].Continuous {
			c1[att], c2[att] = y, x
			continue
		}
		switch s.rng.IntN(4) {
		case 0:
			x.Lo, y.Lo = y.Lo, x.Lo
			c1[att], c2[att] = rule.Interval(x.Lo, x.Hi), rule.Interval(y.Lo, y.Hi)
		case 1:
			x.Hi, y.Hi = y.Hi, x.Hi
			c1[att], c2[att] = rule.Interval(x.Lo, x.Hi), rule.Interval(y.Lo, y.Hi)
		case 2:
			c1[att] = rule.Interval(min(x.Lo, y.Lo), max(x.Hi, y.Hi))
			delete(c2, att)
		default:
			c2[att] = rule.Interval(min(x.Lo, y.Lo), max(x.Hi, y.Hi))
			delete(c1, att)
		}
	}

	child1.SetConditions(c1)
	child2.SetConditions(c2)
	return changed
}

// mutate perturbs the offspring's condition attribute by attribute.
//
// Each attribute is visited with MutationProb. A specified attribute is
// generalized away with DontCareProb; otherwise, if continuous, one bound
// moves by up to half the attribute range, clamped to the attribute bounds.
// An unspecified attribute is specified around state with 1-DontCareProb.
// Passes that leave no specified attribute are retried from the original
// condition. It reports whether the condition changed.
func (s *ClassifierSet) mutate(child *rule.Rule, state []float64) bool {
	original := child.Conditions()
	for range maxMutationPasses {
		conds := maps.Clone(original)
		changed := false
		for att, attr := range s.schema.Attributes {
			if s.rng.Float64() >= s.cfg.MutationProb {
				continue
			}
			c, specified := conds[att]
			switch {
			case specified && s.rng.Float64() < s.cfg.DontCareProb:
				delete(conds, att)
				changed = true
			case specified && attr.Continuous:
				step := s.rng.Float64() * attr.Range() / 2
				if s.rng.Float64() >= 0.5 {
					step = -step
				}
				if s.rng.Float64() < 0.5 {
					c.Lo += step
				} else {
					c.Hi += step
				}
				conds[att] = rule.Interval(attr.Clamp(c.Lo), attr.Clamp(c.Hi))
				changed = true
			case !specified && s.rng.Float64() < 1-s.cfg.DontCareProb:
				conds[att] = rule.BuildMatch(state[att], attr, s.rng)
				changed = true
			}
		}
		if len(conds) > 0 {
			child.SetConditions(conds)
			return changed
		}
	}

	if len(original) > 0 {
		return false
	}
	att := s.rng.IntN(s.schema.Len())
	s.logger.Warn("mutation kept producing a fully general rule, specifying one attribute",
		slog.Int("attribute", att),
		slog.Int("passes", maxMutationPasses),
	)
	child.SetConditions(map[int]rule.Condition{
		att: rule.BuildMatch(state[att], s.schema.Attributes[att], s.rng),
	})
	return true
}

func coversAny(r *rule.Rule, data []Example) bool {
	return slices.ContainsFunc(data, func(ex Example) bool {
		return Match(r, ex.State)
	})
}
