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
	"math/rand/v2"
	"slices"

	"gonum.org/v1/gonum/mat"

	"github.com/AleutianAI/AleutianLCS/services/lcs/partition"
	"github.com/AleutianAI/AleutianLCS/services/lcs/rule"
)

// Example is one training instance.
type Example struct {
	State  []float64     `json:"state"`
	Labels rule.LabelSet `json:"labels"`
}

// ClassifierSet is the rule population with its match and correct sets.
type ClassifierSet struct {
	cfg        Config
	schema     rule.Schema
	rng        *rand.Rand
	heuristics rule.Heuristics
	logger     *slog.Logger

	partitioner partition.Partitioner
	similarity  partition.SimilaritySource
	simMatrix   *mat.Dense
	vote        []float64
	metric      Metric
	cov         *mat.SymDense

	pop        []*rule.Rule
	matchSet   []int
	correctSet []int
	microSize  int
}

// Option configures a ClassifierSet.
type Option func(*ClassifierSet)

// WithSimilarityMatrix sets the label similarity matrix used in global
// similarity mode.
func WithSimilarityMatrix(m *mat.Dense) Option {
	return func(s *ClassifierSet) {
		s.simMatrix = m
	}
}

// WithVote sets the per-label vote vector used by wsc clustering.
func WithVote(vote []float64) Option {
	return func(s *ClassifierSet) {
		s.vote = slices.Clone(vote)
	}
}

// WithCovariance supplies the attribute covariance. The match set cap then
// ranks rules by Mahalanobis distance under it.
func WithCovariance(cov *mat.SymDense) Option {
	return func(s *ClassifierSet) {
		s.cov = cov
	}
}

// WithMetric overrides the match set capping metric. Without it the metric
// is Mahalanobis when WithCovariance is given and Euclidean otherwise.
func WithMetric(m Metric) Option {
	return func(s *ClassifierSet) {
		s.metric = m
	}
}

// WithPartitioner replaces the graph partitioner.
func WithPartitioner(p partition.Partitioner) Option {
	return func(s *ClassifierSet) {
		s.partitioner = p
	}
}

// WithHeuristics replaces the rule heuristics derived from Config.Rule.
func WithHeuristics(h rule.Heuristics) Option {
	return func(s *ClassifierSet) {
		s.heuristics = h
	}
}

// WithPopulation seeds the set with existing rules, e.g. a restored
// snapshot. The micro size is recomputed from their numerosity.
func WithPopulation(rules []*rule.Rule) Option {
	return func(s *ClassifierSet) {
		s.pop = slices.Clone(rules)
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *ClassifierSet) {
		s.logger = logger
	}
}

// New creates a classifier set.
//
// Inputs:
//   - cfg: Options. Validated.
//   - schema: Attribute descriptions. Must not be empty.
//   - rng: The single random source for every stochastic operator.
//   - opts: Optional configuration functions.
//
// Outputs:
//   - *ClassifierSet: Ready to process examples.
//   - error: Configuration errors: invalid options, nil rng, empty schema,
//     partition.ErrMissingSimilarityMatrix in global similarity mode
//     without a matrix, partition.ErrVoteVectorRequired for wsc clustering
//     without a vote vector, ErrSingularCovariance for a covariance that
//     cannot be factorized, or a metric of the wrong dimension.
func New(cfg Config, schema rule.Schema, rng *rand.Rand, opts ...Option) (*ClassifierSet, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if rng == nil {
		return nil, ErrNilRand
	}
	if schema.Len() == 0 {
		return nil, ErrEmptySchema
	}

	s := &ClassifierSet{
		cfg:        cfg,
		schema:     schema,
		rng:        rng,
		heuristics: rule.NewHeuristics(cfg.Rule),
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With(slog.String("component", "classifierset"))

	switch cfg.SimilarityMode {
	case partition.SimilarityGlobal:
		sim, err := partition.NewGlobalSimilarity(s.simMatrix)
		if err != nil {
			return nil, fmt.Errorf("creating global similarity: %w", err)
		}
		s.similarity = sim
	default:
		s.similarity = partition.PairwiseSimilarity{}
	}
	if cfg.Clustering.RequiresVote() && len(s.vote) == 0 {
		return nil, fmt.Errorf("clustering %s: %w", cfg.Clustering, partition.ErrVoteVectorRequired)
	}
	if s.metric == nil {
		if s.cov == nil {
			s.metric = NewEuclideanMetric()
		} else {
			m, err := NewMahalanobisMetric(s.cov)
			if err != nil {
				return nil, fmt.Errorf("creating mahalanobis metric: %w", err)
			}
			s.metric = m
		}
	}
	if d, ok := s.metric.(interface{ Dims() int }); ok && d.Dims() != schema.Len() {
		return nil, fmt.Errorf("metric has %d dims, schema has %d: %w", d.Dims(), schema.Len(), ErrMetricDimension)
	}
	if s.partitioner == nil {
		s.partitioner = partition.NewGraphPartitioner(cfg.Partition)
	}

	for _, r := range s.pop {
		s.microSize += r.Numerosity
	}
	return s, nil
}

// =============================================================================
// Accessors
// =============================================================================

// Config returns the options.
func (s *ClassifierSet) Config() Config {
	return s.cfg
}

// Schema returns the attribute schema.
func (s *ClassifierSet) Schema() rule.Schema {
	return s.schema
}

// Rules returns the population. The slice is owned by the set; callers
// must not modify it.
func (s *ClassifierSet) Rules() []*rule.Rule {
	return s.pop
}

// Rule returns the rule at index.
func (s *ClassifierSet) Rule(index int) *rule.Rule {
	return s.pop[index]
}

// Len returns the macro population size.
func (s *ClassifierSet) Len() int {
	return len(s.pop)
}

// MicroSize returns the sum of numerosities.
func (s *ClassifierSet) MicroSize() int {
	return s.microSize
}

// MatchSet returns a copy of the match set.
func (s *ClassifierSet) MatchSet() []int {
	return slices.Clone(s.matchSet)
}

// CorrectSet returns a copy of the correct set.
func (s *ClassifierSet) CorrectSet() []int {
	return slices.Clone(s.correctSet)
}

// ClearSets empties the match and correct sets.
func (s *ClassifierSet) ClearSets() {
	s.matchSet = nil
	s.correctSet = nil
}

func (s *ClassifierSet) checkState(state []float64) error {
	if len(state) != s.schema.Len() {
		return fmt.Errorf("got %d values for %d attributes: %w", len(state), s.schema.Len(), ErrStateLength)
	}
	return nil
}
