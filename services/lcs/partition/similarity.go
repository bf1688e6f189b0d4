// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package partition

import (
	"fmt"
	"math"
	"strings"

	"gonum.org/v1/gonum/mat"

	"github.com/AleutianAI/AleutianLCS/services/lcs/rule"
)

// =============================================================================
// Similarity Mode
// =============================================================================

// SimilarityMode selects where label similarity comes from.
type SimilarityMode int

const (
	// SimilarityGlobal reads a precomputed label-by-label matrix.
	SimilarityGlobal SimilarityMode = iota

	// SimilarityPairwise computes similarity from the partitioned rules.
	SimilarityPairwise
)

// String returns the configuration name of the mode.
func (m SimilarityMode) String() string {
	switch m {
	case SimilarityGlobal:
		return "global"
	case SimilarityPairwise:
		return "pairwise"
	default:
		return "unknown"
	}
}

// ParseSimilarityMode parses "global" or "pairwise" (case-insensitive).
func ParseSimilarityMode(s string) (SimilarityMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "global":
		return SimilarityGlobal, nil
	case "pairwise", "local":
		return SimilarityPairwise, nil
	default:
		return 0, fmt.Errorf("%q: %w", s, ErrUnknownSimilarityMode)
	}
}

// =============================================================================
// Similarity Sources
// =============================================================================

// SimilaritySource scores how related two labels are, in [0, 1].
type SimilaritySource interface {
	// Similarity returns the similarity of labels a and b. rules is the
	// rule set being partitioned; sources that do not need it ignore it.
	Similarity(a, b int, rules []*rule.Rule) float64
}

// GlobalSimilarity looks similarity up in a precomputed matrix indexed by
// label id.
type GlobalSimilarity struct {
	matrix *mat.Dense
}

// NewGlobalSimilarity wraps a square label similarity matrix.
//
// Inputs:
//   - m: Square matrix, m.At(a, b) is the similarity of labels a and b.
//
// Outputs:
//   - *GlobalSimilarity: The source.
//   - error: ErrMissingSimilarityMatrix if m is nil or empty, or an error
//     if m is not square.
func NewGlobalSimilarity(m *mat.Dense) (*GlobalSimilarity, error) {
	if m == nil || m.IsEmpty() {
		return nil, ErrMissingSimilarityMatrix
	}
	if r, c := m.Dims(); r != c {
		return nil, fmt.Errorf("similarity matrix must be square, got %dx%d", r, c)
	}
	return &GlobalSimilarity{matrix: m}, nil
}

// Similarity implements SimilaritySource. Labels outside the matrix have
// zero similarity.
func (g *GlobalSimilarity) Similarity(a, b int, _ []*rule.Rule) float64 {
	n, _ := g.matrix.Dims()
	if a < 0 || b < 0 || a >= n || b >= n {
		return 0
	}
	return g.matrix.At(a, b)
}

// Labels returns the matrix dimension.
func (g *GlobalSimilarity) Labels() int {
	n, _ := g.matrix.Dims()
	return n
}

// PairwiseSimilarity computes the cosine similarity of two labels' indicator
// vectors over the rules, each rule weighted by its numerosity (at least 1).
type PairwiseSimilarity struct{}

// Similarity implements SimilaritySource.
func (PairwiseSimilarity) Similarity(a, b int, rules []*rule.Rule) float64 {
	var na, nb, nab float64
	for _, r := range rules {
		w := float64(max(r.Numerosity, 1))
		hasA, hasB := r.Prediction.Contains(a), r.Prediction.Contains(b)
		if hasA {
			na += w
		}
		if hasB {
			nb += w
		}
		if hasA && hasB {
			nab += w
		}
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return nab / math.Sqrt(na*nb)
}
