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
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// =============================================================================
// Prometheus Metrics for the Rule Population
// =============================================================================

var (
	// coveringTotal counts covering events.
	// Labels: outcome (single, partitioned)
	coveringTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "lcs",
		Subsystem: "population",
		Name:      "covering_total",
		Help:      "Total covering events by outcome",
	}, []string{"outcome"})

	// partitionSplits counts rules replaced by prediction refinement.
	partitionSplits = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "lcs",
		Subsystem: "population",
		Name:      "partition_splits_total",
		Help:      "Total rules replaced by partition refinement",
	})

	// gaOffspring counts GA offspring by what happened to them.
	// Labels: outcome (inserted, subsumed, rejected)
	gaOffspring = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "lcs",
		Subsystem: "ga",
		Name:      "offspring_total",
		Help:      "Total GA offspring by outcome",
	}, []string{"outcome"})

	// gaRuns counts GA invocations.
	gaRuns = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "lcs",
		Subsystem: "ga",
		Name:      "runs_total",
		Help:      "Total GA invocations",
	})

	// subsumedTotal counts rules merged by correct-set subsumption.
	subsumedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "lcs",
		Subsystem: "population",
		Name:      "subsumed_total",
		Help:      "Total rules merged into a subsumer",
	})

	// deletionsTotal counts numerosity units removed by deletion.
	deletionsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "lcs",
		Subsystem: "population",
		Name:      "deletions_total",
		Help:      "Total micro-rules removed by deletion",
	})

	// matchSetSize tracks the number of macro-rules matched per training
	// example, after capping.
	matchSetSize = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "lcs",
		Subsystem: "population",
		Name:      "match_set_size",
		Help:      "Macro-rules matched per training example",
		Buckets:   prometheus.ExponentialBuckets(1, 2, 8),
	})

	// populationSize tracks the population size.
	// Labels: kind (macro, micro)
	populationSize = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "lcs",
		Subsystem: "population",
		Name:      "size",
		Help:      "Current population size",
	}, []string{"kind"})
)

func (s *ClassifierSet) observeSize() {
	populationSize.WithLabelValues("macro").Set(float64(len(s.pop)))
	populationSize.WithLabelValues("micro").Set(float64(s.microSize))
}
