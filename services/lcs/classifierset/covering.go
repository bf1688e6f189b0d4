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
	"log/slog"
	"slices"

	"github.com/AleutianAI/AleutianLCS/services/lcs/partition"
	"github.com/AleutianAI/AleutianLCS/services/lcs/rule"
)

// MakeMatchSet builds the match set for a training example and makes sure
// it explains the target.
//
// Description:
//
//	When the union of the matched predictions does not contain target, a
//	fully specified covering rule predicting target is created and handed
//	to the partitioner. Without a split it is inserted as is; otherwise one
//	covering rule per refined prediction is inserted. In both cases the new
//	indices join the match set.
//
//	When the match set already explains target, the partitioner runs over
//	all matched rules. Replacement rules are inserted into the match set,
//	replaced rules (numerosity zero) are removed from the population and
//	both index sets, and the micro size drops by the reported reduction.
//
// Inputs:
//   - state: The example's attribute values.
//   - target: The example's labels.
//   - iteration: Current iteration.
//
// Outputs:
//   - error: ErrStateLength, or a partitioner error.
func (s *ClassifierSet) MakeMatchSet(state []float64, target rule.LabelSet, iteration int) error {
	if err := s.checkState(state); err != nil {
		return err
	}
	s.matchSet = s.BuildMatchSet(state)
	matchSetSize.Observe(float64(len(s.matchSet)))

	var preds []rule.LabelSet
	for _, idx := range s.matchSet {
		preds = append(preds, s.pop[idx].Prediction)
	}
	if !target.IsSubsetOf(rule.UnionAll(preds...)) {
		return s.cover(state, target, iteration)
	}
	return s.refineMatchSet(iteration)
}

func (s *ClassifierSet) cover(state []float64, target rule.LabelSet, iteration int) error {
	setSize := s.matchSetNumerosity() + 1
	candidate := rule.Cover(setSize, iteration, state, target, s.schema, s.rng, s.cfg.Rule)

	res, err := s.partition([]*rule.Rule{candidate}, iteration)
	if err != nil {
		return fmt.Errorf("partitioning covering rule: %w", err)
	}
	if !res.Split() {
		s.insertIntoMatchSet(candidate)
		coveringTotal.WithLabelValues("single").Inc()
		return nil
	}

	for _, refined := range res.Rules {
		s.insertIntoMatchSet(rule.Cover(setSize, iteration, state, refined.Prediction, s.schema, s.rng, s.cfg.Rule))
	}
	coveringTotal.WithLabelValues("partitioned").Inc()
	s.logger.Debug("covering rule partitioned",
		slog.Int("iteration", iteration),
		slog.String("target", target.String()),
		slog.Int("rules", len(res.Rules)),
	)
	return nil
}

func (s *ClassifierSet) refineMatchSet(iteration int) error {
	if len(s.matchSet) == 0 {
		return nil
	}
	matched := make([]*rule.Rule, len(s.matchSet))
	for i, idx := range s.matchSet {
		matched[i] = s.pop[idx]
	}

	res, err := s.partition(matched, iteration)
	if err != nil {
		return fmt.Errorf("partitioning match set: %w", err)
	}
	if !res.Split() {
		return nil
	}

	for _, r := range res.Rules {
		s.insertIntoMatchSet(r)
	}
	removed := s.removeEmpty(s.matchSet)
	s.microSize -= res.Reduction
	partitionSplits.Add(float64(removed))

	s.logger.Debug("match set refined",
		slog.Int("iteration", iteration),
		slog.Int("replacements", len(res.Rules)),
		slog.Int("removed", removed),
		slog.Int("reduction", res.Reduction),
	)
	return nil
}

func (s *ClassifierSet) partition(rules []*rule.Rule, iteration int) (partition.Result, error) {
	return s.partitioner.Partition(partition.Request{
		Rules:      rules,
		Similarity: s.similarity,
		Mode:       s.cfg.Clustering,
		Vote:       s.vote,
		Iteration:  iteration,
		Rand:       s.rng,
	})
}

// insertIntoMatchSet inserts r searching only the match set, and appends
// its index to the match set when it became a new macro-rule.
func (s *ClassifierSet) insertIntoMatchSet(r *rule.Rule) {
	if idx, appended := s.Insert(r, true); appended {
		s.matchSet = append(s.matchSet, idx)
	}
}

// removeEmpty removes every rule among indices whose numerosity is zero,
// highest index first. It returns the number removed.
func (s *ClassifierSet) removeEmpty(indices []int) int {
	var empty []int
	for _, idx := range indices {
		if s.pop[idx].Numerosity == 0 {
			empty = append(empty, idx)
		}
	}
	slices.Sort(empty)
	slices.Reverse(empty)
	for _, idx := range empty {
		s.detach(idx)
	}
	return len(empty)
}
