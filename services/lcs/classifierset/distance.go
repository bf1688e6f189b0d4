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
	"slices"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/AleutianAI/AleutianLCS/services/lcs/rule"
)

// Metric measures the distance between two attribute vectors.
type Metric interface {
	Distance(x, y []float64) float64
}

// MahalanobisMetric measures distance under the data covariance.
type MahalanobisMetric struct {
	chol mat.Cholesky
	dims int
}

// NewMahalanobisMetric factorizes cov.
//
// Inputs:
//   - cov: Symmetric positive definite covariance of the attributes.
//
// Outputs:
//   - *MahalanobisMetric: The metric.
//   - error: ErrSingularCovariance if cov cannot be factorized.
func NewMahalanobisMetric(cov *mat.SymDense) (*MahalanobisMetric, error) {
	if cov == nil || cov.IsEmpty() {
		return nil, ErrSingularCovariance
	}
	m := &MahalanobisMetric{dims: cov.SymmetricDim()}
	if ok := m.chol.Factorize(cov); !ok {
		return nil, ErrSingularCovariance
	}
	return m, nil
}

// Distance implements Metric.
func (m *MahalanobisMetric) Distance(x, y []float64) float64 {
	return stat.Mahalanobis(mat.NewVecDense(len(x), x), mat.NewVecDense(len(y), y), &m.chol)
}

// Dims returns the vector length the metric accepts.
func (m *MahalanobisMetric) Dims() int {
	return m.dims
}

// EuclideanMetric is the L2 distance.
type EuclideanMetric struct{}

// NewEuclideanMetric returns the L2 metric.
func NewEuclideanMetric() EuclideanMetric {
	return EuclideanMetric{}
}

// Distance implements Metric.
func (EuclideanMetric) Distance(x, y []float64) float64 {
	return floats.Distance(x, y, 2)
}

// ruleDistance is the metric distance between state and the rule's center,
// divided by the number of specified attributes. The center takes the
// condition midpoint on specified attributes and the state's own value
// elsewhere. Fully general rules are infinitely far.
func ruleDistance(m Metric, r *rule.Rule, state []float64) float64 {
	if len(r.SpecifiedAtts) == 0 {
		return math.Inf(1)
	}
	center := slices.Clone(state)
	for i, att := range r.SpecifiedAtts {
		center[att] = r.Condition[i].Center()
	}
	return m.Distance(center, state) / float64(len(r.SpecifiedAtts))
}
