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

	"github.com/AleutianAI/AleutianLCS/services/lcs/partition"
	"github.com/AleutianAI/AleutianLCS/services/lcs/rule"
)

// Population and GA defaults.
const (
	DefaultMaxPopulation    = 100
	DefaultMatchSetCap      = 100
	DefaultCrossoverProb    = 0.8
	DefaultMutationProb     = 0.001
	DefaultDontCareProb     = 0.85
	DefaultFitnessReduction = 0.1
	DefaultTournamentSize   = 5
	DefaultThetaGA          = 50
)

// Config holds the classifier set options.
type Config struct {
	// MaxPopulation is the ceiling on the micro population size.
	MaxPopulation int

	// MatchSetCap (K) is the maximum match set size. Larger match sets are
	// trimmed to the K rules nearest the example.
	MatchSetCap int

	CrossoverProb float64

	// MutationProb is the per-attribute probability of a mutation attempt.
	MutationProb float64

	// DontCareProb is the probability that a mutated specified attribute is
	// generalized away. Unspecified attributes are specified with
	// probability 1 - DontCareProb.
	DontCareProb float64

	// FitnessReduction scales offspring fitness.
	FitnessReduction float64

	Selection      SelectionMethod
	TournamentSize int

	// Subsumption enables GA and correct-set subsumption.
	Subsumption bool

	// ThetaGA is the mean time since the last GA, over the correct set,
	// that triggers the next GA.
	ThetaGA int

	SimilarityMode partition.SimilarityMode
	Clustering     partition.ClusteringMode
	Partition      partition.Options

	Rule rule.Params
}

// DefaultConfig returns the default options.
func DefaultConfig() Config {
	return Config{
		MaxPopulation:    DefaultMaxPopulation,
		MatchSetCap:      DefaultMatchSetCap,
		CrossoverProb:    DefaultCrossoverProb,
		MutationProb:     DefaultMutationProb,
		DontCareProb:     DefaultDontCareProb,
		FitnessReduction: DefaultFitnessReduction,
		Selection:        SelectionTournament,
		TournamentSize:   DefaultTournamentSize,
		Subsumption:      true,
		ThetaGA:          DefaultThetaGA,
		SimilarityMode:   partition.SimilarityGlobal,
		Clustering:       partition.ClusterComponents,
		Partition:        partition.DefaultOptions(),
		Rule:             rule.DefaultParams(),
	}
}

// Validate checks the options.
//
// Outputs:
//   - error: Wraps ErrInvalidConfig, ErrUnknownSelectionMethod,
//     partition.ErrUnknownClusteringMethod or
//     partition.ErrUnknownSimilarityMode.
func (c Config) Validate() error {
	if c.MaxPopulation <= 0 {
		return fmt.Errorf("%w: max population must be positive, got %d", ErrInvalidConfig, c.MaxPopulation)
	}
	if c.MatchSetCap <= 0 {
		return fmt.Errorf("%w: match set cap must be positive, got %d", ErrInvalidConfig, c.MatchSetCap)
	}
	probs := []struct {
		name  string
		value float64
	}{
		{"crossover probability", c.CrossoverProb},
		{"mutation probability", c.MutationProb},
		{"don't care probability", c.DontCareProb},
		{"fitness reduction", c.FitnessReduction},
	}
	for _, p := range probs {
		if p.value < 0 || p.value > 1 {
			return fmt.Errorf("%w: %s must be in [0, 1], got %f", ErrInvalidConfig, p.name, p.value)
		}
	}
	if c.Selection != SelectionTournament && c.Selection != SelectionRoulette {
		return fmt.Errorf("selection %d: %w", int(c.Selection), ErrUnknownSelectionMethod)
	}
	if c.Selection == SelectionTournament && c.TournamentSize < 1 {
		return fmt.Errorf("%w: tournament size must be at least 1, got %d", ErrInvalidConfig, c.TournamentSize)
	}
	if c.ThetaGA < 0 {
		return fmt.Errorf("%w: theta GA must not be negative, got %d", ErrInvalidConfig, c.ThetaGA)
	}
	if c.SimilarityMode.String() == "unknown" {
		return fmt.Errorf("similarity mode %d: %w", int(c.SimilarityMode), partition.ErrUnknownSimilarityMode)
	}
	if c.Clustering.String() == "unknown" {
		return fmt.Errorf("clustering mode %d: %w", int(c.Clustering), partition.ErrUnknownClusteringMethod)
	}
	if c.Rule.Beta <= 0 || c.Rule.Beta > 1 {
		return fmt.Errorf("%w: beta must be in (0, 1], got %f", ErrInvalidConfig, c.Rule.Beta)
	}
	return nil
}
