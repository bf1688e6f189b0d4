// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package partition splits multi-label predictions along clusters of a
// label similarity graph.
//
// Given a set of rules, the partitioner builds an undirected weighted graph
// whose nodes are the labels the rules predict and whose edges connect
// labels at least SimDelta similar. The labels are then clustered, and every
// rule whose prediction straddles two or more clusters is replaced by one
// narrower rule per cluster it touches.
//
// # Similarity Sources
//
// Label similarity comes either from a precomputed global matrix (typically
// cosine similarity of the label columns of the training data) or from the
// rules themselves (numerosity-weighted co-occurrence in their predictions).
//
// # Clustering Modes
//
//   - components: connected components of the thresholded graph
//   - hfps: Louvain modularity communities
//   - wsc: vote-weighted spectral bisection (requires a label vote vector)
//
// # Thread Safety
//
// GraphPartitioner is stateless and safe for concurrent use. The rules passed
// in a Request are mutated (numerosity of replaced rules is set to zero).
package partition

import "errors"

// Sentinel errors for partitioning.
var (
	// ErrMissingSimilarityMatrix is returned when global similarity is
	// selected without a matrix.
	ErrMissingSimilarityMatrix = errors.New("similarity matrix required for global similarity mode")

	// ErrUnknownClusteringMethod is returned for an unrecognized clustering
	// method name.
	ErrUnknownClusteringMethod = errors.New("undefined clustering method")

	// ErrUnknownSimilarityMode is returned for an unrecognized similarity
	// mode name.
	ErrUnknownSimilarityMode = errors.New("undefined similarity mode")

	// ErrVoteVectorRequired is returned when wsc clustering runs without a
	// vote vector.
	ErrVoteVectorRequired = errors.New("vote vector required for wsc clustering")

	// ErrVoteVectorTooShort is returned when a label id has no entry in the
	// vote vector.
	ErrVoteVectorTooShort = errors.New("vote vector has no entry for label")

	// ErrNilSimilarity is returned when a Request carries no similarity
	// source.
	ErrNilSimilarity = errors.New("similarity source must not be nil")
)
