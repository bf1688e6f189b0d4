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
	"math"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/AleutianAI/AleutianLCS/services/lcs/partition"
	"github.com/AleutianAI/AleutianLCS/services/lcs/rule"
)

// =============================================================================
// Helpers
// =============================================================================

func testSchema() rule.Schema {
	return rule.Schema{Attributes: []rule.Attribute{
		{Name: "x", Continuous: true, Min: 0, Max: 10},
		{Name: "y", Continuous: true, Min: 0, Max: 10},
	}}
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.SimilarityMode = partition.SimilarityPairwise
	return cfg
}

func newTestSet(t *testing.T, cfg Config, opts ...Option) *ClassifierSet {
	t.Helper()
	s, err := New(cfg, testSchema(), rand.New(rand.NewPCG(7, 11)), opts...)
	require.NoError(t, err)
	return s
}

func makeRule(conds map[int]rule.Condition, labels ...int) *rule.Rule {
	r := &rule.Rule{
		ID:              "test",
		Prediction:      rule.NewLabelSet(labels...),
		Numerosity:      1,
		Fitness:         0.5,
		AveMatchSetSize: 1,
	}
	r.SetConditions(conds)
	return r
}

func numerositySum(s *ClassifierSet) int {
	n := 0
	for _, r := range s.Rules() {
		n += r.Numerosity
	}
	return n
}

// assertIndexSets checks that both index sets only hold valid positions.
func assertIndexSets(t *testing.T, s *ClassifierSet) {
	t.Helper()
	for _, idx := range s.MatchSet() {
		assert.True(t, idx >= 0 && idx < s.Len(), "match set index %d out of range", idx)
	}
	for _, idx := range s.CorrectSet() {
		assert.True(t, idx >= 0 && idx < s.Len(), "correct set index %d out of range", idx)
	}
	assert.Equal(t, numerositySum(s), s.MicroSize(), "micro size must equal numerosity sum")
}

func twoBlockMatrix() *mat.Dense {
	m := mat.NewDense(4, 4, nil)
	for i := 0; i < 4; i++ {
		m.Set(i, i, 1)
	}
	m.Set(0, 1, 0.9)
	m.Set(1, 0, 0.9)
	m.Set(2, 3, 0.9)
	m.Set(3, 2, 0.9)
	return m
}

// =============================================================================
// Construction Tests
// =============================================================================

func TestNew_ConfigurationErrors(t *testing.T) {
	rng := rand.New(rand.NewPCG(1, 1))

	_, err := New(DefaultConfig(), testSchema(), rng)
	assert.ErrorIs(t, err, partition.ErrMissingSimilarityMatrix)

	cfg := testConfig()
	cfg.Clustering = partition.ClusterWSC
	_, err = New(cfg, testSchema(), rng)
	assert.ErrorIs(t, err, partition.ErrVoteVectorRequired)

	_, err = New(cfg, testSchema(), rng, WithVote([]float64{1, 1}))
	assert.NoError(t, err)

	cfg = testConfig()
	cfg.Clustering = partition.ClusteringMode(42)
	_, err = New(cfg, testSchema(), rng)
	assert.ErrorIs(t, err, partition.ErrUnknownClusteringMethod)

	_, err = New(testConfig(), testSchema(), nil)
	assert.ErrorIs(t, err, ErrNilRand)

	_, err = New(testConfig(), rule.Schema{}, rng)
	assert.ErrorIs(t, err, ErrEmptySchema)

	cfg = testConfig()
	cfg.MaxPopulation = 0
	_, err = New(cfg, testSchema(), rng)
	assert.ErrorIs(t, err, ErrInvalidConfig)

	metric, err := NewMahalanobisMetric(mat.NewSymDense(3, []float64{1, 0, 0, 0, 1, 0, 0, 0, 1}))
	require.NoError(t, err)
	_, err = New(testConfig(), testSchema(), rng, WithMetric(metric))
	assert.ErrorIs(t, err, ErrMetricDimension)
}

func TestNew_WithPopulation(t *testing.T) {
	a := makeRule(map[int]rule.Condition{0: rule.Interval(0, 5)}, 1)
	a.Numerosity = 3
	b := makeRule(map[int]rule.Condition{1: rule.Interval(0, 5)}, 2)

	s := newTestSet(t, testConfig(), WithPopulation([]*rule.Rule{a, b}))
	assert.Equal(t, 2, s.Len())
	assert.Equal(t, 4, s.MicroSize())
}

// =============================================================================
// Match Engine Tests
// =============================================================================

func TestMatch_Boundaries(t *testing.T) {
	r := makeRule(map[int]rule.Condition{0: rule.Interval(2, 4), 1: rule.Exact(1)}, 1)

	assert.True(t, Match(r, []float64{2, 1}))
	assert.True(t, Match(r, []float64{4, 1}))
	assert.True(t, Match(r, []float64{3, 1}))
	assert.False(t, Match(r, []float64{1.999, 1}))
	assert.False(t, Match(r, []float64{3, 2}))

	general := makeRule(map[int]rule.Condition{}, 1)
	assert.True(t, Match(general, []float64{100, -100}), "unspecified attributes always match")
}

func TestBuildMatchSet_CapsToNearest(t *testing.T) {
	cfg := testConfig()
	cfg.MatchSetCap = 3
	s := newTestSet(t, cfg)

	// Rule i has center 5 + offsets[i]/4 on x, so its distance to the state
	// is offsets[i]/4.
	offsets := []float64{9, 3, 7, 1, 8, 2, 6, 0, 5, 4}
	for _, o := range offsets {
		s.pop = append(s.pop, makeRule(map[int]rule.Condition{0: rule.Interval(o/2, 10)}, 1))
		s.microSize++
	}
	state := []float64{5, 5}

	assert.Equal(t, []int{3, 5, 7}, s.BuildMatchSet(state))

	require.NoError(t, s.MakeEvalMatchSet(state))
	assert.Equal(t, []int{7, 3, 5}, s.MatchSet(), "evaluation match set keeps distance order")
}

func TestBuildMatchSet_CapsByMahalanobis(t *testing.T) {
	cfg := testConfig()
	cfg.MatchSetCap = 1
	cov := mat.NewSymDense(2, []float64{1, 0.9, 0.9, 1})

	// Both centers are sqrt(2) from the state. Only (6, 6) lies along the
	// correlation, so it is the nearer one under the covariance.
	across := makeRule(map[int]rule.Condition{0: rule.Interval(5, 7), 1: rule.Interval(3, 5)}, 1)
	along := makeRule(map[int]rule.Condition{0: rule.Interval(5, 7), 1: rule.Interval(5, 7)}, 1)
	state := []float64{5, 5}

	euclidean := newTestSet(t, cfg, WithPopulation([]*rule.Rule{across, along}))
	assert.Equal(t, []int{0}, euclidean.BuildMatchSet(state), "euclidean tie keeps scan order")

	s := newTestSet(t, cfg, WithCovariance(cov), WithPopulation([]*rule.Rule{across, along}))
	assert.Equal(t, []int{1}, s.BuildMatchSet(state))

	overridden := newTestSet(t, cfg, WithCovariance(cov), WithMetric(NewEuclideanMetric()),
		WithPopulation([]*rule.Rule{across, along}))
	assert.Equal(t, []int{0}, overridden.BuildMatchSet(state), "an explicit metric wins over the covariance")

	m, err := NewMahalanobisMetric(cov)
	require.NoError(t, err)
	assert.InDelta(t, math.Sqrt(0.2/0.19), m.Distance([]float64{6, 6}, state), 1e-9)
	assert.InDelta(t, math.Sqrt(3.8/0.19), m.Distance([]float64{6, 4}, state), 1e-9)
}

func TestNew_SingularCovariance(t *testing.T) {
	_, err := New(testConfig(), testSchema(), rand.New(rand.NewPCG(1, 1)),
		WithCovariance(mat.NewSymDense(2, []float64{1, 1, 1, 1})))
	assert.ErrorIs(t, err, ErrSingularCovariance)
}

func TestBuildMatchSet_TiesKeepScanOrder(t *testing.T) {
	cfg := testConfig()
	cfg.MatchSetCap = 2
	s := newTestSet(t, cfg)
	for range 4 {
		s.pop = append(s.pop, makeRule(map[int]rule.Condition{0: rule.Interval(0, 10)}, 1))
		s.microSize++
	}
	assert.Equal(t, []int{0, 1}, s.BuildMatchSet([]float64{5, 5}))
}

func TestMakeCorrectSet_SubsetOfTarget(t *testing.T) {
	s := newTestSet(t, testConfig())
	all := map[int]rule.Condition{0: rule.Interval(0, 10)}
	s.pop = []*rule.Rule{makeRule(all, 1), makeRule(all, 2), makeRule(all, 1, 3)}
	s.microSize = 3
	s.matchSet = []int{0, 1, 2}

	s.MakeCorrectSet(rule.NewLabelSet(1, 3))
	assert.Equal(t, []int{0, 2}, s.CorrectSet())
}

func TestMakeMatchSet_StateLength(t *testing.T) {
	s := newTestSet(t, testConfig())
	err := s.MakeMatchSet([]float64{1}, rule.NewLabelSet(1), 0)
	assert.ErrorIs(t, err, ErrStateLength)
}

// =============================================================================
// Covering Tests
// =============================================================================

func TestMakeMatchSet_CoversEmptyPopulation(t *testing.T) {
	s := newTestSet(t, testConfig())
	state := []float64{5, 5}

	require.NoError(t, s.MakeMatchSet(state, rule.NewLabelSet(3), 1))

	require.Equal(t, 1, s.Len())
	r := s.Rule(0)
	assert.Equal(t, []int{0, 1}, r.SpecifiedAtts, "covering rule is fully specified")
	assert.True(t, r.Prediction.Equal(rule.NewLabelSet(3)))
	assert.Equal(t, 1, r.Numerosity)
	assert.True(t, Match(r, state))
	assert.Equal(t, []int{0}, s.MatchSet())
	assert.Equal(t, 1, s.MicroSize())
}

func TestMakeMatchSet_CoveringPartitionsTarget(t *testing.T) {
	cfg := DefaultConfig()
	s := newTestSet(t, cfg, WithSimilarityMatrix(twoBlockMatrix()))

	require.NoError(t, s.MakeMatchSet([]float64{5, 5}, rule.NewLabelSet(0, 1, 2, 3), 1))

	require.Equal(t, 2, s.Len())
	assert.Equal(t, rule.LabelSet{0, 1}, s.Rule(0).Prediction)
	assert.Equal(t, rule.LabelSet{2, 3}, s.Rule(1).Prediction)
	assert.Equal(t, []int{0, 1}, s.MatchSet())
	assert.Equal(t, 2, s.MicroSize())
	assertIndexSets(t, s)
}

func TestMakeMatchSet_NoCoveringWhenExplained(t *testing.T) {
	s := newTestSet(t, testConfig())
	s.pop = []*rule.Rule{makeRule(map[int]rule.Condition{0: rule.Interval(0, 10)}, 1, 2)}
	s.microSize = 1

	require.NoError(t, s.MakeMatchSet([]float64{5, 5}, rule.NewLabelSet(2), 1))
	assert.Equal(t, 1, s.Len())
	assert.Equal(t, []int{0}, s.MatchSet())
}

func TestMakeMatchSet_RefinesExplainingMatchSet(t *testing.T) {
	s := newTestSet(t, DefaultConfig(), WithSimilarityMatrix(twoBlockMatrix()))
	cond := map[int]rule.Condition{0: rule.Interval(0, 10)}
	wide := makeRule(cond, 0, 1, 2, 3)
	wide.Numerosity = 2
	narrow := makeRule(cond, 0, 1)
	s.pop = []*rule.Rule{wide, narrow}
	s.microSize = 3

	require.NoError(t, s.MakeMatchSet([]float64{5, 5}, rule.NewLabelSet(0, 1), 4))

	require.Equal(t, 2, s.Len())
	assert.Equal(t, rule.LabelSet{0, 1}, s.Rule(0).Prediction)
	assert.Equal(t, 2, s.Rule(0).Numerosity, "refined {0,1} merges into the identical rule")
	assert.Equal(t, rule.LabelSet{2, 3}, s.Rule(1).Prediction)
	assert.Equal(t, 1, s.Rule(1).Numerosity)
	assert.Equal(t, []int{0, 1}, s.MatchSet())
	assert.Equal(t, 3, s.MicroSize())
	assertIndexSets(t, s)
}

// =============================================================================
// Population Tests
// =============================================================================

func TestInsert_IdenticalRulesMerge(t *testing.T) {
	s := newTestSet(t, testConfig())
	cond := map[int]rule.Condition{0: rule.Interval(1, 2)}

	idx, appended := s.Insert(makeRule(cond, 4), false)
	assert.Equal(t, 0, idx)
	assert.True(t, appended)
	assert.Equal(t, 1, s.MicroSize())

	idx, appended = s.Insert(makeRule(cond, 4), false)
	assert.Equal(t, 0, idx)
	assert.False(t, appended)

	require.Equal(t, 1, s.Len())
	assert.Equal(t, 2, s.Rule(0).Numerosity)
	assert.Equal(t, 2, s.MicroSize())
}

func TestInsert_CountsOneMicroRule(t *testing.T) {
	s := newTestSet(t, testConfig())
	merged := makeRule(map[int]rule.Condition{0: rule.Interval(1, 2)}, 4)
	merged.Numerosity = 5

	idx, appended := s.Insert(merged, false)
	require.True(t, appended)
	assert.Equal(t, 1, s.Rule(idx).Numerosity, "incoming numerosity is not carried over")
	assert.Equal(t, 1, s.MicroSize())
	assertIndexSets(t, s)

	snapshot := makeRule(map[int]rule.Condition{0: rule.Interval(1, 2)}, 4)
	snapshot.Numerosity = 5
	restored := newTestSet(t, testConfig(), WithPopulation([]*rule.Rule{snapshot}))
	assert.Equal(t, 5, restored.Rule(0).Numerosity)
	assert.Equal(t, 5, restored.MicroSize(), "restored rules keep their numerosity")
}

func TestInsert_MatchSetScope(t *testing.T) {
	s := newTestSet(t, testConfig())
	cond := map[int]rule.Condition{0: rule.Interval(1, 2)}
	s.Insert(makeRule(cond, 4), false)

	_, appended := s.Insert(makeRule(cond, 4), true)
	assert.True(t, appended, "identical rule outside the match set is not found")
	assert.Equal(t, 2, s.Len())
}

func TestGetIdentical_SkipsEmptyRules(t *testing.T) {
	s := newTestSet(t, testConfig())
	cond := map[int]rule.Condition{0: rule.Interval(1, 2)}
	s.Insert(makeRule(cond, 4), false)
	s.pop[0].Numerosity = 0

	assert.Equal(t, -1, s.GetIdentical(makeRule(cond, 4), false))
}

func TestRemoveAt_RenumbersIndexSets(t *testing.T) {
	s := newTestSet(t, testConfig())
	for i := range 5 {
		s.Insert(makeRule(map[int]rule.Condition{0: rule.Interval(float64(i), 10)}, i), false)
	}
	s.matchSet = []int{0, 2, 4}
	s.correctSet = []int{2, 4}

	s.RemoveAt(2)
	assert.Equal(t, []int{0, 3}, s.MatchSet())
	assert.Equal(t, []int{3}, s.CorrectSet())
	assert.Equal(t, 4, s.Len())
	assertIndexSets(t, s)

	s.RemoveAt(0)
	assert.Equal(t, []int{2}, s.MatchSet())
	assert.Equal(t, []int{2}, s.CorrectSet())

	s.RemoveAt(99)
	s.RemoveAt(-1)
	assert.Equal(t, 3, s.Len(), "out of range removal is a no-op")
	assertIndexSets(t, s)
}

func TestUpdateSets_UsesMatchSetNumerosity(t *testing.T) {
	s := newTestSet(t, testConfig())
	cond := map[int]rule.Condition{0: rule.Interval(0, 10)}
	a, b := makeRule(cond, 1), makeRule(cond, 2)
	b.Numerosity = 2
	s.pop = []*rule.Rule{a, b}
	s.microSize = 3
	s.matchSet = []int{0, 1}

	s.UpdateSets(rule.NewLabelSet(1))
	assert.Equal(t, 1, a.MatchCount)
	assert.Equal(t, 1, a.CorrectCount)
	assert.Equal(t, 0, b.CorrectCount)
	assert.Equal(t, 3.0, a.AveMatchSetSize)
}

func TestTimeAverage(t *testing.T) {
	s := newTestSet(t, testConfig())
	assert.Equal(t, 0.0, s.TimeAverage())

	cond := map[int]rule.Condition{0: rule.Interval(0, 10)}
	a, b := makeRule(cond, 1), makeRule(cond, 2)
	a.GATime, b.GATime = 10, 40
	b.Numerosity = 2
	s.pop = []*rule.Rule{a, b}
	s.microSize = 3
	s.correctSet = []int{0, 1}

	assert.InDelta(t, 30.0, s.TimeAverage(), 1e-12)
	assert.True(t, s.ShouldRunGA(81))
	assert.False(t, s.ShouldRunGA(80))
}

func TestAverages_EmptyIsUndefined(t *testing.T) {
	s := newTestSet(t, testConfig())
	assert.False(t, s.Averages(2).Defined)
	assert.Equal(t, "0, 0, NA, NA", s.Tracking())

	s.Insert(makeRule(map[int]rule.Condition{0: rule.Interval(0, 1)}, 1), false)
	a := s.Averages(2)
	assert.True(t, a.Defined)
	assert.InDelta(t, 0.5, a.Generality, 1e-12)
	assert.InDelta(t, 0.5, a.Fitness, 1e-12)
	assert.Equal(t, "1, 1, 0.5000, 0.5000", s.Tracking())
}

func TestCompact_RemovesUnmatchedRules(t *testing.T) {
	s := newTestSet(t, testConfig())
	cond := map[int]rule.Condition{0: rule.Interval(0, 10)}
	used, unused := makeRule(cond, 1), makeRule(cond, 2)
	used.MatchCount = 4
	unused.Numerosity = 3
	s.pop = []*rule.Rule{unused, used}
	s.microSize = 4

	assert.Equal(t, 1, s.Compact())
	assert.Equal(t, 1, s.Len())
	assert.Equal(t, 1, s.MicroSize())
}

func TestEstimateLabelProbabilities(t *testing.T) {
	s := newTestSet(t, testConfig())
	s.Insert(makeRule(map[int]rule.Condition{0: rule.Interval(0, 5)}, 1), false)
	data := []Example{
		{State: []float64{1, 1}, Labels: rule.NewLabelSet(1, 2)},
		{State: []float64{2, 9}, Labels: rule.NewLabelSet(1)},
		{State: []float64{8, 9}, Labels: rule.NewLabelSet(3)},
	}

	s.EstimateLabelProbabilities(data)
	prob := s.Rule(0).LabelProb
	assert.Equal(t, 1.0, prob[1])
	assert.Equal(t, 0.5, prob[2])
	assert.NotContains(t, prob, 3)
}

// =============================================================================
// Subsumption Tests
// =============================================================================

func TestSubsumeCorrectSet_MergesSpecificRules(t *testing.T) {
	s := newTestSet(t, testConfig())
	params := s.Config().Rule

	general := makeRule(map[int]rule.Condition{0: rule.Interval(0, 10)}, 1)
	general.MatchCount = params.ThetaSub + 1
	general.Loss = 0
	specific := makeRule(map[int]rule.Condition{0: rule.Interval(2, 3), 1: rule.Interval(0, 1)}, 1)
	specific.Numerosity = 3
	other := makeRule(map[int]rule.Condition{0: rule.Interval(2, 3), 1: rule.Interval(0, 1)}, 2)

	s.pop = []*rule.Rule{general, specific, other}
	s.microSize = 5
	s.matchSet = []int{0, 1, 2}
	s.correctSet = []int{0, 1, 2}

	assert.Equal(t, 1, s.SubsumeCorrectSet())
	require.Equal(t, 2, s.Len())
	assert.Equal(t, 4, general.Numerosity, "subsumer gains the merged numerosity")
	assert.Same(t, other, s.Rule(1))
	assert.Equal(t, []int{0, 1}, s.MatchSet())
	assert.Equal(t, []int{0, 1}, s.CorrectSet())
	assert.Equal(t, 5, s.MicroSize())
	assertIndexSets(t, s)
}

func TestSubsumeCorrectSet_NoSubsumer(t *testing.T) {
	s := newTestSet(t, testConfig())
	cond := map[int]rule.Condition{0: rule.Interval(0, 10)}
	s.pop = []*rule.Rule{makeRule(cond, 1), makeRule(cond, 1)}
	s.microSize = 2
	s.correctSet = []int{0, 1}

	assert.Equal(t, 0, s.SubsumeCorrectSet())
	assert.Equal(t, 2, s.Len())
}

// =============================================================================
// Deletion Tests
// =============================================================================

func TestDeletion_Converges(t *testing.T) {
	cfg := testConfig()
	cfg.MaxPopulation = 10
	s := newTestSet(t, cfg)
	for i := range 5 {
		r := makeRule(map[int]rule.Condition{0: rule.Interval(float64(i), 10)}, i)
		r.Numerosity = 4
		r.AveMatchSetSize = float64(i + 1)
		s.pop = append(s.pop, r)
		s.microSize += 4
	}
	s.matchSet = []int{0, 1, 2, 3, 4}
	s.correctSet = []int{1, 3}

	assert.Equal(t, 10, s.Deletion())
	assert.Equal(t, 10, s.MicroSize())
	for _, r := range s.Rules() {
		assert.GreaterOrEqual(t, r.Numerosity, 1)
	}
	assertIndexSets(t, s)

	assert.Equal(t, 0, s.Deletion(), "within the ceiling nothing is deleted")
}

func TestDeletion_OneUnitPerStep(t *testing.T) {
	s := newTestSet(t, testConfig())
	for i := range 3 {
		r := makeRule(map[int]rule.Condition{0: rule.Interval(float64(i), 10)}, i)
		r.Numerosity = 1 + i
		s.pop = append(s.pop, r)
		s.microSize += r.Numerosity
	}
	for s.Len() > 0 {
		before := s.MicroSize()
		s.deleteOne()
		assert.Equal(t, before-1, s.MicroSize())
		assertIndexSets(t, s)
	}
}

func TestDeletion_ZeroVotes(t *testing.T) {
	cfg := testConfig()
	cfg.MaxPopulation = 1
	s := newTestSet(t, cfg)
	for i := range 3 {
		r := makeRule(map[int]rule.Condition{0: rule.Interval(float64(i), 10)}, i)
		r.AveMatchSetSize = 0
		s.pop = append(s.pop, r)
		s.microSize++
	}
	assert.Equal(t, 2, s.Deletion())
	assert.Equal(t, 1, s.Len())
}
