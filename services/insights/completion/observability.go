// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package completion

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// completionDuration measures provider round trips.
//
// Labels:
//   - provider: "openai", "ollama", "langchain"
//   - outcome: "ok" or an error class ("http_error", "api_error",
//     "transport_error", "parse_error", "marshal_error", "read_error",
//     "request_error", "empty")
var completionDuration = promauto.NewHistogramVec(
	prometheus.HistogramOpts{
		Namespace: "insights",
		Subsystem: "completion",
		Name:      "request_duration_seconds",
		Help:      "Completion provider round-trip duration in seconds.",
		Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120},
	},
	[]string{"provider", "outcome"},
)

// recordCompletion records one provider round trip.
func recordCompletion(provider, outcome string, seconds float64) {
	completionDuration.WithLabelValues(provider, outcome).Observe(seconds)
}
