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
	"math/rand/v2"

	"github.com/AleutianAI/AleutianLCS/services/lcs/rule"
)

// Option defaults.
const (
	// DefaultSimDelta is the minimum label similarity for an edge.
	DefaultSimDelta = 0.3

	// DefaultMinLabels is the label count below which the graph is
	// considered degenerate.
	DefaultMinLabels = 2

	// DefaultResolution is the hfps modularity resolution.
	DefaultResolution = 1.0

	// DefaultClusters is the wsc target cluster count.
	DefaultClusters = 2
)

// Options configures a GraphPartitioner.
type Options struct {
	SimDelta   float64 `json:"sim_delta" yaml:"sim_delta" validate:"gte=0,lte=1"`
	MinLabels  int     `json:"min_labels" yaml:"min_labels" validate:"gte=2"`
	Resolution float64 `json:"resolution" yaml:"resolution" validate:"gt=0"`
	Clusters   int     `json:"clusters" yaml:"clusters" validate:"gte=2"`
}

// DefaultOptions returns the default partitioning options.
func DefaultOptions() Options {
	return Options{
		SimDelta:   DefaultSimDelta,
		MinLabels:  DefaultMinLabels,
		Resolution: DefaultResolution,
		Clusters:   DefaultClusters,
	}
}

// Request is one partitioning call.
type Request struct {
	// Rules is the rule set whose predictions may be split. Rules that get
	// replaced have their numerosity set to zero.
	Rules []*rule.Rule

	Similarity SimilaritySource
	Mode       ClusteringMode

	// Vote holds per-label weights indexed by label id.
	Vote []float64

	// Iteration stamps the replacement rules.
	Iteration int

	Rand *rand.Rand
}

// Result is the outcome of a partitioning call.
type Result struct {
	// Rules are the replacement rules, one per (replaced rule, cluster)
	// pair, each with numerosity 1. Empty when no refinement applies.
	Rules []*rule.Rule

	// Reduction is the total numerosity removed from replaced rules.
	Reduction int

	// Clusters is the label clustering found, nil for degenerate graphs.
	Clusters []rule.LabelSet
}

// Split reports whether the call produced replacement rules.
func (r Result) Split() bool {
	return len(r.Rules) > 0
}

// Partitioner refines rule predictions along label clusters.
type Partitioner interface {
	Partition(req Request) (Result, error)
}

// GraphPartitioner clusters the label similarity graph of the request's
// rules.
type GraphPartitioner struct {
	opts Options
}

// NewGraphPartitioner creates a partitioner. Zero-valued options fall back
// to their defaults.
func NewGraphPartitioner(opts Options) *GraphPartitioner {
	def := DefaultOptions()
	if opts.MinLabels < 2 {
		opts.MinLabels = def.MinLabels
	}
	if opts.Resolution <= 0 {
		opts.Resolution = def.Resolution
	}
	if opts.Clusters < 2 {
		opts.Clusters = def.Clusters
	}
	return &GraphPartitioner{opts: opts}
}

// Options returns the effective options.
func (p *GraphPartitioner) Options() Options {
	return p.opts
}

// Partition builds the label graph over req.Rules, clusters it and splits
// every rule whose prediction spans two or more clusters.
//
// Description:
//
//	A straddling rule is replaced by one copy per cluster it intersects,
//	predicting that intersection. Each copy has numerosity 1. The original's
//	numerosity is added to Result.Reduction and set to zero; the caller is
//	responsible for removing it from its population.
//
// Inputs:
//   - req: The request. Similarity must be set; Vote must be set for wsc.
//
// Outputs:
//   - Result: Replacement rules and numerosity reduction. Empty when the
//     graph has fewer than MinLabels labels or a single cluster.
//   - error: ErrNilSimilarity, ErrVoteVectorRequired, ErrVoteVectorTooShort
//     or ErrUnknownClusteringMethod.
func (p *GraphPartitioner) Partition(req Request) (Result, error) {
	if req.Similarity == nil {
		return Result{}, ErrNilSimilarity
	}
	if req.Mode.RequiresVote() && len(req.Vote) == 0 {
		return Result{}, ErrVoteVectorRequired
	}

	lg := BuildLabelGraph(req.Rules, req.Similarity, p.opts.SimDelta)
	if lg.Len() < p.opts.MinLabels {
		return Result{}, nil
	}
	clusters, err := req.Mode.Cluster(lg, p.opts, req.Vote, req.Rand)
	if err != nil {
		return Result{}, err
	}
	if len(clusters) < 2 {
		return Result{Clusters: clusters}, nil
	}

	res := Result{Clusters: clusters}
	for _, r := range req.Rules {
		if r.Numerosity == 0 {
			continue
		}
		parts := refine(r.Prediction, clusters)
		if len(parts) < 2 {
			continue
		}
		for _, part := range parts {
			child := rule.Copy(r, req.Iteration)
			child.Prediction = part
			res.Rules = append(res.Rules, child)
		}
		res.Reduction += r.Numerosity
		r.Numerosity = 0
	}
	return res, nil
}

// refine returns the non-empty intersections of pred with each cluster.
func refine(pred rule.LabelSet, clusters []rule.LabelSet) []rule.LabelSet {
	var parts []rule.LabelSet
	for _, c := range clusters {
		if part := pred.Intersect(c); part.Len() > 0 {
			parts = append(parts, part)
		}
	}
	return parts
}
