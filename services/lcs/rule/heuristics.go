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

// Rule parameter defaults.
const (
	// DefaultInitFitness is the fitness of a freshly covered rule.
	DefaultInitFitness = 0.01

	// DefaultBeta is the learning rate of the match-set size estimate.
	DefaultBeta = 0.1

	// DefaultNu is the accuracy exponent in the fitness.
	DefaultNu = 1.0

	// DefaultThetaSub is the experience a rule needs to subsume others.
	DefaultThetaSub = 200

	// DefaultLossSub is the maximum loss a subsumer may have.
	DefaultLossSub = 0.01

	// DefaultThetaDel is the experience after which low fitness raises the
	// deletion vote.
	DefaultThetaDel = 20

	// DefaultDelta is the fraction of mean fitness below which a rule is
	// considered weak for deletion.
	DefaultDelta = 0.1
)

// Params holds the per-rule statistics and heuristic parameters.
type Params struct {
	InitFitness float64 `json:"init_fitness" yaml:"init_fitness" validate:"gte=0"`
	Beta        float64 `json:"beta" yaml:"beta" validate:"gt=0,lte=1"`
	Nu          float64 `json:"nu" yaml:"nu" validate:"gt=0"`
	ThetaSub    int     `json:"theta_sub" yaml:"theta_sub" validate:"gte=0"`
	LossSub     float64 `json:"loss_sub" yaml:"loss_sub" validate:"gte=0,lte=1"`
	ThetaDel    int     `json:"theta_del" yaml:"theta_del" validate:"gte=0"`
	Delta       float64 `json:"delta" yaml:"delta" validate:"gte=0,lte=1"`
}

// DefaultParams returns the default rule parameters.
func DefaultParams() Params {
	return Params{
		InitFitness: DefaultInitFitness,
		Beta:        DefaultBeta,
		Nu:          DefaultNu,
		ThetaSub:    DefaultThetaSub,
		LossSub:     DefaultLossSub,
		ThetaDel:    DefaultThetaDel,
		Delta:       DefaultDelta,
	}
}

// Heuristics bundles the per-rule predicates and votes the population
// manager relies on.
type Heuristics struct {
	Params Params
}

// NewHeuristics returns Heuristics over params.
func NewHeuristics(params Params) Heuristics {
	return Heuristics{Params: params}
}

// Equal reports whether a and b are semantically identical: same specified
// attributes with equal conditions and the same prediction. Attribute order
// is irrelevant.
func (h Heuristics) Equal(a, b *Rule) bool {
	if len(a.SpecifiedAtts) != len(b.SpecifiedAtts) || !a.Prediction.Equal(b.Prediction) {
		return false
	}
	for i, att := range a.SpecifiedAtts {
		c, ok := b.ConditionFor(att)
		if !ok || !c.Equal(a.Condition[i]) {
			return false
		}
	}
	return true
}

// IsSubsumer reports whether r is experienced and accurate enough to absorb
// more specific rules.
func (h Heuristics) IsSubsumer(r *Rule) bool {
	return r.MatchCount > h.Params.ThetaSub && r.Loss < h.Params.LossSub
}

// IsMoreGeneral reports whether general advocates the same labels as
// specific and its condition strictly generalizes specific's: fewer
// specified attributes, each of them also specified by specific with a
// covering condition.
func (h Heuristics) IsMoreGeneral(general, specific *Rule) bool {
	if len(general.SpecifiedAtts) >= len(specific.SpecifiedAtts) {
		return false
	}
	if !general.Prediction.Equal(specific.Prediction) {
		return false
	}
	for i, att := range general.SpecifiedAtts {
		c, ok := specific.ConditionFor(att)
		if !ok || !general.Condition[i].Covers(c) {
			return false
		}
	}
	return true
}

// Subsumes reports whether general may absorb specific.
func (h Heuristics) Subsumes(general, specific *Rule) bool {
	return h.IsSubsumer(general) && h.IsMoreGeneral(general, specific)
}

// DeletionVote returns r's weight in the deletion roulette.
//
// Description:
//
//	The base vote is the match-set size estimate times numerosity, which
//	pushes deletion toward crowded niches. Experienced rules whose fitness
//	falls below Delta times the population mean get the vote scaled up by
//	meanFitness / fitness.
//
// Inputs:
//   - r: The rule.
//   - meanFitness: Numerosity-weighted mean fitness of the population.
//
// Outputs:
//   - float64: Non-negative vote.
func (h Heuristics) DeletionVote(r *Rule, meanFitness float64) float64 {
	vote := r.AveMatchSetSize * float64(r.Numerosity)
	if r.MatchCount > h.Params.ThetaDel && r.Fitness < h.Params.Delta*meanFitness {
		if r.Fitness > 0 {
			vote *= meanFitness / r.Fitness
		} else {
			vote *= meanFitness / minFitness
		}
	}
	return max(vote, 0)
}

// minFitness replaces a zero fitness in the deletion vote ratio.
const minFitness = 1e-6
