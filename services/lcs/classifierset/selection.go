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
	"math"
	"math/rand/v2"
	"strings"
)

// SelectionMethod is the GA parent selection strategy.
type SelectionMethod int

const (
	// SelectionTournament takes the fittest of a random sample.
	SelectionTournament SelectionMethod = iota

	// SelectionRoulette samples proportionally to fitness.
	SelectionRoulette
)

// String returns the configuration name of the method.
func (m SelectionMethod) String() string {
	switch m {
	case SelectionTournament:
		return "tournament"
	case SelectionRoulette:
		return "roulette"
	default:
		return "unknown"
	}
}

// ParseSelectionMethod parses "tournament" ("t") or "roulette" ("r").
func ParseSelectionMethod(s string) (SelectionMethod, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "t", "tournament":
		return SelectionTournament, nil
	case "r", "roulette":
		return SelectionRoulette, nil
	default:
		return 0, fmt.Errorf("%q: %w", s, ErrUnknownSelectionMethod)
	}
}

// SelectParents picks two positions in fitness.
//
// Inputs:
//   - fitness: Candidate fitness values. Must not be empty.
//   - tournamentSize: Sample size for tournament selection.
//   - rng: Random source.
//
// Outputs:
//   - int, int: Positions of the two parents. They differ whenever
//     len(fitness) > 1 under tournament selection.
func (m SelectionMethod) SelectParents(fitness []float64, tournamentSize int, rng *rand.Rand) (int, int) {
	if len(fitness) == 1 {
		return 0, 0
	}
	switch m {
	case SelectionRoulette:
		return roulettePair(fitness, rng)
	default:
		return tournamentPair(fitness, tournamentSize, rng)
	}
}

// roulettePair draws two positions in a single sweep over the cumulative
// fitness. Each draw consumes its slice of the remaining weight, so the
// second pick lands at or after the first.
func roulettePair(fitness []float64, rng *rand.Rand) (int, int) {
	n := len(fitness)
	total := 0.0
	for _, f := range fitness {
		total += max(f, 0)
	}
	if total <= 0 {
		a := rng.IntN(n)
		b := rng.IntN(n - 1)
		if b >= a {
			b++
		}
		return a, b
	}

	var picks [2]int
	i := 0
	w := max(fitness[0], 0)
	for k := range picks {
		x := total * (1 - math.Pow(rng.Float64(), 1/float64(n)))
		total -= x
		for x > w && i < n-1 {
			x -= w
			i++
			w = max(fitness[i], 0)
		}
		w -= x
		picks[k] = i
	}
	return picks[0], picks[1]
}

// tournamentPair runs two tournaments, the second without the first winner.
func tournamentPair(fitness []float64, size int, rng *rand.Rand) (int, int) {
	all := make([]int, len(fitness))
	for i := range all {
		all[i] = i
	}
	first := tournament(fitness, all, size, rng)

	rest := make([]int, 0, len(all)-1)
	for _, i := range all {
		if i != first {
			rest = append(rest, i)
		}
	}
	return first, tournament(fitness, rest, size, rng)
}

func tournament(fitness []float64, candidates []int, size int, rng *rand.Rand) int {
	size = max(1, min(size, len(candidates)))
	perm := rng.Perm(len(candidates))[:size]
	best := candidates[perm[0]]
	for _, p := range perm[1:] {
		if c := candidates[p]; fitness[c] > fitness[best] {
			best = c
		}
	}
	return best
}
