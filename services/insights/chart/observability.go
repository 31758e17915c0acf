// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package chart

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel"
)

// tracer is the shared OTel tracer for the chart pipeline.
var tracer = otel.Tracer("insights.chart")

// Package-level Prometheus metrics for the chart pipeline.
// Auto-registered via promauto so no explicit registry wiring is needed.
var (
	// pipelineDuration measures end-to-end chart generation duration.
	//
	// Labels:
	//   - outcome: "chart", "no_chart"
	pipelineDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "insights",
			Subsystem: "chart",
			Name:      "pipeline_duration_seconds",
			Help:      "End-to-end chart generation duration in seconds.",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
		},
		[]string{"outcome"},
	)

	// stageFallbacksTotal counts documented-fallback activations per
	// pipeline stage. A rising counter means the completion capability
	// is misbehaving, not that requests are failing.
	//
	// Labels:
	//   - stage: "intent", "select", "normalize", "synthesize"
	stageFallbacksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "insights",
			Subsystem: "chart",
			Name:      "stage_fallbacks_total",
			Help:      "Fallback activations by pipeline stage.",
		},
		[]string{"stage"},
	)

	// parsedRowsTotal counts rows recovered by the result parser.
	parsedRowsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "insights",
			Subsystem: "chart",
			Name:      "parsed_rows_total",
			Help:      "Total rows recovered from raw query results.",
		},
	)
)

// recordStageFallback records one fallback activation for a stage.
func recordStageFallback(stage string) {
	stageFallbacksTotal.WithLabelValues(stage).Inc()
}

// recordPipeline records one completed pipeline run.
func recordPipeline(outcome string, seconds float64) {
	pipelineDuration.WithLabelValues(outcome).Observe(seconds)
}
