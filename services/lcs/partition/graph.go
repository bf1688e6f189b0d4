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
	"slices"

	"gonum.org/v1/gonum/graph"
	"gonum.org/v1/gonum/graph/simple"

	"github.com/AleutianAI/AleutianLCS/services/lcs/rule"
)

// LabelGraph is the thresholded similarity graph over the labels predicted
// by a rule set. Node ids are label ids.
type LabelGraph struct {
	g      *simple.WeightedUndirectedGraph
	labels rule.LabelSet
}

// BuildLabelGraph connects every pair of labels predicted by rules whose
// similarity is positive and at least delta.
//
// Inputs:
//   - rules: The rule set. Zero-numerosity rules still contribute labels.
//   - sim: Similarity source.
//   - delta: Edge threshold.
//
// Outputs:
//   - *LabelGraph: The graph. Never nil.
func BuildLabelGraph(rules []*rule.Rule, sim SimilaritySource, delta float64) *LabelGraph {
	preds := make([]rule.LabelSet, len(rules))
	for i, r := range rules {
		preds[i] = r.Prediction
	}
	labels := rule.UnionAll(preds...)

	g := simple.NewWeightedUndirectedGraph(0, 0)
	for _, l := range labels {
		g.AddNode(simple.Node(l))
	}
	for i, a := range labels {
		for _, b := range labels[i+1:] {
			s := sim.Similarity(a, b, rules)
			if s > 0 && s >= delta {
				g.SetWeightedEdge(g.NewWeightedEdge(simple.Node(a), simple.Node(b), s))
			}
		}
	}
	return &LabelGraph{g: g, labels: labels}
}

// Labels returns the graph's labels in ascending order.
func (lg *LabelGraph) Labels() rule.LabelSet {
	return lg.labels
}

// Len returns the number of labels.
func (lg *LabelGraph) Len() int {
	return lg.labels.Len()
}

// Weight returns the edge weight between labels a and b, zero when they are
// not connected.
func (lg *LabelGraph) Weight(a, b int) float64 {
	w, ok := lg.g.Weight(int64(a), int64(b))
	if !ok || a == b {
		return 0
	}
	return w
}

// Edges returns the number of edges.
func (lg *LabelGraph) Edges() int {
	return lg.g.Edges().Len()
}

// toClusters converts gonum node groups into sorted label sets ordered by
// their smallest label.
func toClusters(groups [][]graph.Node) []rule.LabelSet {
	out := make([]rule.LabelSet, 0, len(groups))
	for _, grp := range groups {
		ids := make([]int, 0, len(grp))
		for _, n := range grp {
			ids = append(ids, int(n.ID()))
		}
		if len(ids) > 0 {
			out = append(out, rule.NewLabelSet(ids...))
		}
	}
	sortClusters(out)
	return out
}

func sortClusters(clusters []rule.LabelSet) {
	slices.SortFunc(clusters, func(a, b rule.LabelSet) int {
		return a[0] - b[0]
	})
}
