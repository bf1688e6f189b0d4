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
	"math/rand/v2"
	"slices"
	"strings"

	"gonum.org/v1/gonum/graph/community"
	"gonum.org/v1/gonum/graph/topo"
	"gonum.org/v1/gonum/mat"

	"github.com/AleutianAI/AleutianLCS/services/lcs/rule"
)

// =============================================================================
// Clustering Mode
// =============================================================================

// ClusteringMode selects the label clustering strategy.
type ClusteringMode int

const (
	// ClusterComponents groups labels by connected component.
	ClusterComponents ClusteringMode = iota

	// ClusterHFPS groups labels into Louvain modularity communities.
	ClusterHFPS

	// ClusterWSC bisects components spectrally with vote-weighted edges.
	ClusterWSC
)

// String returns the configuration name of the mode.
func (m ClusteringMode) String() string {
	switch m {
	case ClusterComponents:
		return "components"
	case ClusterHFPS:
		return "hfps"
	case ClusterWSC:
		return "wsc"
	default:
		return "unknown"
	}
}

// ParseClusteringMode parses a clustering method name. The empty string and
// "none" select connected components.
func ParseClusteringMode(s string) (ClusteringMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "none", "components":
		return ClusterComponents, nil
	case "hfps":
		return ClusterHFPS, nil
	case "wsc":
		return ClusterWSC, nil
	default:
		return 0, fmt.Errorf("%q: %w", s, ErrUnknownClusteringMethod)
	}
}

// RequiresVote reports whether the mode needs a label vote vector.
func (m ClusteringMode) RequiresVote() bool {
	return m == ClusterWSC
}

// Cluster partitions the labels of lg.
//
// Inputs:
//   - lg: The label graph.
//   - opts: Partitioning options. Resolution feeds hfps; Clusters is the
//     target cluster count for wsc.
//   - vote: Per-label weights indexed by label id. Required for wsc.
//   - rng: Random source for hfps. May be nil for the other modes.
//
// Outputs:
//   - []rule.LabelSet: Disjoint clusters covering every label, ordered by
//     smallest label.
//   - error: ErrVoteVectorRequired, ErrVoteVectorTooShort or
//     ErrUnknownClusteringMethod.
func (m ClusteringMode) Cluster(lg *LabelGraph, opts Options, vote []float64, rng *rand.Rand) ([]rule.LabelSet, error) {
	switch m {
	case ClusterComponents:
		return toClusters(topo.ConnectedComponents(lg.g)), nil
	case ClusterHFPS:
		var src rand.Source
		if rng != nil {
			src = rand.NewPCG(rng.Uint64(), rng.Uint64())
		}
		reduced := community.Modularize(lg.g, opts.Resolution, src)
		return toClusters(reduced.Communities()), nil
	case ClusterWSC:
		if len(vote) == 0 {
			return nil, ErrVoteVectorRequired
		}
		for _, l := range lg.labels {
			if l >= len(vote) {
				return nil, fmt.Errorf("label %d with %d votes: %w", l, len(vote), ErrVoteVectorTooShort)
			}
		}
		return spectralClusters(lg, vote, opts.Clusters), nil
	default:
		return nil, fmt.Errorf("mode %d: %w", int(m), ErrUnknownClusteringMethod)
	}
}

// =============================================================================
// Weighted Spectral Clustering
// =============================================================================

// spectralClusters starts from the connected components and repeatedly
// bisects the largest splittable cluster by the sign of its Fiedler vector
// until k clusters exist or nothing can be split further.
func spectralClusters(lg *LabelGraph, vote []float64, k int) []rule.LabelSet {
	clusters := toClusters(topo.ConnectedComponents(lg.g))
	blocked := make(map[int]bool)
	for len(clusters) < k {
		target := -1
		for i, c := range clusters {
			if c.Len() < 2 || blocked[c[0]] {
				continue
			}
			if target < 0 || c.Len() > clusters[target].Len() {
				target = i
			}
		}
		if target < 0 {
			break
		}
		left, right, ok := bisect(lg, clusters[target], vote)
		if !ok {
			blocked[clusters[target][0]] = true
			continue
		}
		clusters = slices.Delete(clusters, target, target+1)
		clusters = append(clusters, left, right)
		sortClusters(clusters)
	}
	return clusters
}

// bisect splits nodes with the normalized Laplacian
// L = I - D^-1/2 W D^-1/2, where W[i][j] = weight(i,j) * sqrt(vote_i vote_j).
func bisect(lg *LabelGraph, nodes rule.LabelSet, vote []float64) (rule.LabelSet, rule.LabelSet, bool) {
	n := nodes.Len()
	w := mat.NewSymDense(n, nil)
	deg := make([]float64, n)
	for i, a := range nodes {
		for j := i + 1; j < n; j++ {
			b := nodes[j]
			x := lg.Weight(a, b) * math.Sqrt(math.Max(vote[a], 0)*math.Max(vote[b], 0))
			w.SetSym(i, j, x)
			deg[i] += x
			deg[j] += x
		}
	}

	// Nodes whose every weighted edge vanished split off on their own.
	var isolated, rest []int
	for i, d := range deg {
		if d == 0 {
			isolated = append(isolated, nodes[i])
		} else {
			rest = append(rest, nodes[i])
		}
	}
	if len(isolated) > 0 {
		if len(rest) == 0 {
			return nil, nil, false
		}
		return rule.NewLabelSet(isolated...), rule.NewLabelSet(rest...), true
	}

	lap := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		lap.SetSym(i, i, 1)
		for j := i + 1; j < n; j++ {
			lap.SetSym(i, j, -w.At(i, j)/math.Sqrt(deg[i]*deg[j]))
		}
	}

	var eig mat.EigenSym
	if !eig.Factorize(lap, true) {
		return nil, nil, false
	}
	var vecs mat.Dense
	eig.VectorsTo(&vecs)

	var pos, neg []int
	for i, l := range nodes {
		if vecs.At(i, 1) >= 0 {
			pos = append(pos, l)
		} else {
			neg = append(neg, l)
		}
	}
	if len(pos) == 0 || len(neg) == 0 {
		return nil, nil, false
	}
	return rule.NewLabelSet(pos...), rule.NewLabelSet(neg...), true
}
