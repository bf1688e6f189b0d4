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
	"math"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/AleutianAI/AleutianLCS/services/lcs/rule"
)

// simMatrix builds a symmetric n x n matrix with unit diagonal from the
// given upper-triangle entries; unspecified pairs get base.
func simMatrix(n int, base float64, pairs map[[2]int]float64) *mat.Dense {
	m := mat.NewDense(n, n, nil)
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			if i == j {
				m.Set(i, j, 1)
			} else {
				m.Set(i, j, base)
			}
		}
	}
	for p, v := range pairs {
		m.Set(p[0], p[1], v)
		m.Set(p[1], p[0], v)
	}
	return m
}

func predicting(numerosity int, labels ...int) *rule.Rule {
	return &rule.Rule{
		ID:            "r",
		SpecifiedAtts: []int{0},
		Condition:     []rule.Condition{rule.Interval(0, 1)},
		Prediction:    rule.NewLabelSet(labels...),
		Numerosity:    numerosity,
		Fitness:       0.5,
	}
}

func twoBlockSimilarity(t *testing.T) *GlobalSimilarity {
	t.Helper()
	sim, err := NewGlobalSimilarity(simMatrix(4, 0.1, map[[2]int]float64{
		{0, 1}: 0.9,
		{2, 3}: 0.8,
	}))
	require.NoError(t, err)
	return sim
}

// =============================================================================
// Mode Parsing Tests
// =============================================================================

func TestParseClusteringMode(t *testing.T) {
	tests := []struct {
		in   string
		want ClusteringMode
	}{
		{"", ClusterComponents},
		{"components", ClusterComponents},
		{"HFPS", ClusterHFPS},
		{" wsc ", ClusterWSC},
	}
	for _, tt := range tests {
		got, err := ParseClusteringMode(tt.in)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got)
	}

	_, err := ParseClusteringMode("kmeans")
	assert.ErrorIs(t, err, ErrUnknownClusteringMethod)

	assert.True(t, ClusterWSC.RequiresVote())
	assert.False(t, ClusterHFPS.RequiresVote())
	assert.Equal(t, "hfps", ClusterHFPS.String())
}

func TestParseSimilarityMode(t *testing.T) {
	m, err := ParseSimilarityMode("global")
	require.NoError(t, err)
	assert.Equal(t, SimilarityGlobal, m)

	m, err = ParseSimilarityMode("pairwise")
	require.NoError(t, err)
	assert.Equal(t, SimilarityPairwise, m)

	_, err = ParseSimilarityMode("jaccard")
	assert.ErrorIs(t, err, ErrUnknownSimilarityMode)
}

// =============================================================================
// Similarity Tests
// =============================================================================

func TestNewGlobalSimilarity_Validation(t *testing.T) {
	_, err := NewGlobalSimilarity(nil)
	assert.ErrorIs(t, err, ErrMissingSimilarityMatrix)

	_, err = NewGlobalSimilarity(mat.NewDense(2, 3, nil))
	assert.Error(t, err)

	sim := twoBlockSimilarity(t)
	assert.Equal(t, 4, sim.Labels())
	assert.Equal(t, 0.9, sim.Similarity(0, 1, nil))
	assert.Equal(t, 0.0, sim.Similarity(0, 9, nil), "out of range labels are unrelated")
}

func TestPairwiseSimilarity(t *testing.T) {
	rules := []*rule.Rule{
		predicting(2, 0, 1),
		predicting(1, 0),
		predicting(1, 2),
	}
	var sim PairwiseSimilarity
	assert.InDelta(t, 2/math.Sqrt(6), sim.Similarity(0, 1, rules), 1e-12)
	assert.Equal(t, 0.0, sim.Similarity(0, 2, rules))
	assert.Equal(t, 0.0, sim.Similarity(0, 7, rules))
}

func TestBuildLabelGraph_Threshold(t *testing.T) {
	lg := BuildLabelGraph([]*rule.Rule{predicting(1, 0, 1, 2, 3)}, twoBlockSimilarity(t), 0.3)
	assert.Equal(t, rule.LabelSet{0, 1, 2, 3}, lg.Labels())
	assert.Equal(t, 2, lg.Edges())
	assert.Equal(t, 0.9, lg.Weight(0, 1))
	assert.Equal(t, 0.0, lg.Weight(1, 2))
}

// =============================================================================
// Partition Tests
// =============================================================================

func TestPartition_SplitsAcrossComponents(t *testing.T) {
	p := NewGraphPartitioner(DefaultOptions())
	original := predicting(3, 0, 1, 2, 3)

	res, err := p.Partition(Request{
		Rules:      []*rule.Rule{original},
		Similarity: twoBlockSimilarity(t),
		Mode:       ClusterComponents,
		Iteration:  12,
	})
	require.NoError(t, err)
	require.True(t, res.Split())
	require.Len(t, res.Rules, 2)

	assert.Equal(t, rule.LabelSet{0, 1}, res.Rules[0].Prediction)
	assert.Equal(t, rule.LabelSet{2, 3}, res.Rules[1].Prediction)
	for _, r := range res.Rules {
		assert.Equal(t, 1, r.Numerosity)
		assert.Equal(t, 12, r.GATime)
		assert.Equal(t, original.SpecifiedAtts, r.SpecifiedAtts)
	}
	assert.Equal(t, 3, res.Reduction)
	assert.Equal(t, 0, original.Numerosity)
	assert.Equal(t, []rule.LabelSet{{0, 1}, {2, 3}}, res.Clusters)
}

func TestPartition_LeavesAlignedRulesAlone(t *testing.T) {
	p := NewGraphPartitioner(DefaultOptions())
	aligned := predicting(2, 0, 1)
	straddling := predicting(1, 1, 2)

	res, err := p.Partition(Request{
		Rules:      []*rule.Rule{aligned, straddling},
		Similarity: twoBlockSimilarity(t),
	})
	require.NoError(t, err)
	require.Len(t, res.Rules, 2)
	assert.Equal(t, rule.LabelSet{1}, res.Rules[0].Prediction)
	assert.Equal(t, rule.LabelSet{2}, res.Rules[1].Prediction)
	assert.Equal(t, 1, res.Reduction)
	assert.Equal(t, 2, aligned.Numerosity)
}

func TestPartition_DegenerateGraph(t *testing.T) {
	p := NewGraphPartitioner(DefaultOptions())
	res, err := p.Partition(Request{
		Rules:      []*rule.Rule{predicting(1, 2)},
		Similarity: twoBlockSimilarity(t),
	})
	require.NoError(t, err)
	assert.False(t, res.Split())
	assert.Zero(t, res.Reduction)
	assert.Nil(t, res.Clusters)
}

func TestPartition_SingleCluster(t *testing.T) {
	p := NewGraphPartitioner(DefaultOptions())
	r := predicting(1, 0, 1, 2)
	res, err := p.Partition(Request{
		Rules:      []*rule.Rule{r},
		Similarity: PairwiseSimilarity{},
	})
	require.NoError(t, err)
	assert.False(t, res.Split())
	assert.Len(t, res.Clusters, 1)
	assert.Equal(t, 1, r.Numerosity)
}

func TestPartition_SkipsZeroNumerosity(t *testing.T) {
	p := NewGraphPartitioner(DefaultOptions())
	res, err := p.Partition(Request{
		Rules:      []*rule.Rule{predicting(0, 0, 1, 2, 3)},
		Similarity: twoBlockSimilarity(t),
	})
	require.NoError(t, err)
	assert.False(t, res.Split())
}

func TestPartition_Errors(t *testing.T) {
	p := NewGraphPartitioner(DefaultOptions())
	rules := []*rule.Rule{predicting(1, 0, 1, 2, 3)}

	_, err := p.Partition(Request{Rules: rules})
	assert.ErrorIs(t, err, ErrNilSimilarity)

	_, err = p.Partition(Request{Rules: rules, Similarity: twoBlockSimilarity(t), Mode: ClusterWSC})
	assert.ErrorIs(t, err, ErrVoteVectorRequired)

	_, err = p.Partition(Request{Rules: rules, Similarity: twoBlockSimilarity(t), Mode: ClusterWSC, Vote: []float64{1, 1}})
	assert.ErrorIs(t, err, ErrVoteVectorTooShort)

	_, err = p.Partition(Request{Rules: rules, Similarity: twoBlockSimilarity(t), Mode: ClusteringMode(9)})
	assert.ErrorIs(t, err, ErrUnknownClusteringMethod)
}

// =============================================================================
// Clustering Tests
// =============================================================================

func TestCluster_WSCBisectsConnectedChain(t *testing.T) {
	sim, err := NewGlobalSimilarity(simMatrix(4, 0, map[[2]int]float64{
		{0, 1}: 0.9,
		{1, 2}: 0.35,
		{2, 3}: 0.9,
	}))
	require.NoError(t, err)
	lg := BuildLabelGraph([]*rule.Rule{predicting(1, 0, 1, 2, 3)}, sim, 0.3)

	comps, err := ClusterComponents.Cluster(lg, DefaultOptions(), nil, nil)
	require.NoError(t, err)
	assert.Len(t, comps, 1, "chain is one component")

	clusters, err := ClusterWSC.Cluster(lg, DefaultOptions(), []float64{1, 1, 1, 1}, nil)
	require.NoError(t, err)
	assert.Equal(t, []rule.LabelSet{{0, 1}, {2, 3}}, clusters)
}

func TestCluster_WSCZeroVoteIsolatesLabel(t *testing.T) {
	sim, err := NewGlobalSimilarity(simMatrix(3, 0.9, nil))
	require.NoError(t, err)
	lg := BuildLabelGraph([]*rule.Rule{predicting(1, 0, 1, 2)}, sim, 0.3)

	clusters, err := ClusterWSC.Cluster(lg, DefaultOptions(), []float64{1, 1, 0}, nil)
	require.NoError(t, err)
	assert.Equal(t, []rule.LabelSet{{0, 1}, {2}}, clusters)
}

func TestCluster_HFPSSeparatesBlocks(t *testing.T) {
	lg := BuildLabelGraph([]*rule.Rule{predicting(1, 0, 1, 2, 3)}, twoBlockSimilarity(t), 0.3)
	clusters, err := ClusterHFPS.Cluster(lg, DefaultOptions(), nil, rand.New(rand.NewPCG(3, 4)))
	require.NoError(t, err)
	assert.Equal(t, []rule.LabelSet{{0, 1}, {2, 3}}, clusters)
}
