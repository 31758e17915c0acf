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
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// =============================================================================
// Graph-Intent Classifier
// =============================================================================

// Intent is the classified decision of whether, and how, a question wants
// a chart.
type Intent struct {
	// NeedsGraph is true when the question asks for any visualization.
	NeedsGraph bool `json:"needs_graph"`

	// ChartType is one of the fixed enumeration (see ChartTypes), or
	// empty when the user wants a chart but did not name a type.
	ChartType string `json:"chart_type"`

	// Variant is a stylistic sub-mode: stacked, grouped, smooth, area,
	// or donut. Empty when unspecified.
	Variant string `json:"variant"`

	// Reasoning is diagnostic free text. Nothing downstream consumes it.
	Reasoning string `json:"reasoning"`
}

// noChartIntent is the safe default returned on any classification
// failure.
func noChartIntent() Intent {
	return Intent{NeedsGraph: false, Reasoning: "error"}
}

// DetectIntent classifies whether the question wants a chart, and if so
// which type and variant.
//
// Description:
//
//	Builds a fixed instruction prompt embedding the question and the
//	closed chart-type/variant enumerations, makes one completion call,
//	and parses the JSON object out of the response (tolerating markdown
//	fences). Any capability error or parse failure returns the no-chart
//	default — intent classification never propagates an error.
//
// Inputs:
//
//	ctx - Context for the completion call.
//	question - The user's natural-language question.
//	complete - The completion capability. Must not be nil.
//
// Outputs:
//
//	Intent - The classification, or the no-chart default on failure.
//
// Thread Safety: Safe for concurrent use.
func DetectIntent(ctx context.Context, question string, complete Completer) Intent {
	ctx, span := tracer.Start(ctx, "chart.DetectIntent")
	defer span.End()
	span.SetAttributes(attribute.String("question_preview", truncate(question, 100)))

	response, err := complete.Complete(ctx, buildIntentPrompt(question))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "completion failed")
		recordStageFallback("intent")
		slog.Warn("intent classification failed; defaulting to no chart",
			slog.String("error", err.Error()))
		return noChartIntent()
	}

	var intent Intent
	if err := json.Unmarshal([]byte(stripCodeFences(response)), &intent); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "parse failed")
		recordStageFallback("intent")
		slog.Warn("intent response was not valid JSON; defaulting to no chart",
			slog.String("preview", truncate(response, 120)))
		return noChartIntent()
	}

	intent.ChartType = normalizeToken(intent.ChartType)
	if !IsValidChartType(intent.ChartType) {
		intent.ChartType = ""
	}
	intent.Variant = normalizeToken(intent.Variant)
	if !isValidVariant(intent.Variant) {
		intent.Variant = ""
	}

	span.SetAttributes(
		attribute.Bool("intent.needs_graph", intent.NeedsGraph),
		attribute.String("intent.chart_type", intent.ChartType),
		attribute.String("intent.variant", intent.Variant),
	)
	return intent
}

// normalizeToken lowercases and strips quoting/whitespace from an enum
// token. Models occasionally return "null" or "none" for unset fields.
func normalizeToken(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.Trim(s, "\"'` ")
	if s == "null" || s == "none" {
		return ""
	}
	return s
}

func isValidVariant(v string) bool {
	switch v {
	case "", "stacked", "grouped", "smooth", "area", "donut":
		return true
	}
	return false
}

func buildIntentPrompt(question string) string {
	var sb strings.Builder
	sb.WriteString("Analyze the following user question and determine if they want a visualization/graph/chart.\n\n")
	fmt.Fprintf(&sb, "User Question: %q\n\n", question)
	sb.WriteString(`Respond in JSON format with:
{
    "needs_graph": true/false,
    "chart_type": "bar" | "line" | "pie" | "scatter" | "heatmap" | "candlestick" | "radar" | "gauge" | "funnel" | "sankey" | "treemap" | "sunburst" | "boxplot" | "graph" | "parallel" | "tree" | null,
    "variant": "stacked" | "grouped" | "smooth" | "area" | "donut" | null,
    "reasoning": "brief explanation"
}

Chart type detection:
- If the user explicitly mentions a chart type (like "show me a bar chart"), set chart_type to that type
- If they want a graph but don't specify the type (like "visualize this"), set chart_type to null
- If they don't want a graph at all, set needs_graph to false

Variant detection:
- Bar charts: "stacked" (stacked bars) or "grouped" (side-by-side bars)
- Line charts: "smooth" (curved lines), "area" (filled area under line), "stacked" (stacked areas)
- Pie charts: "donut" (ring chart with hollow center)
- Set variant to null if no specific variant is mentioned

Common keywords:
- Graphs: chart, graph, plot, visualize, show, display, trend, distribution, comparison
- Stacked: stacked, cumulative, total
- Grouped: grouped, side-by-side, compared
- Smooth: smooth, curved
- Area: area, filled
- Donut: donut, ring
`)
	return sb.String()
}
