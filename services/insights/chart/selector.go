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
	"fmt"
	"log/slog"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// =============================================================================
// Chart-Type Selector
// =============================================================================

// ChartTypes is the fixed enumeration of supported chart types. The
// selector and the intent classifier never produce a value outside it.
var ChartTypes = []string{
	"bar", "line", "pie", "scatter", "heatmap", "radar", "gauge",
	"funnel", "sankey", "treemap", "sunburst", "boxplot", "candlestick",
	"graph", "parallel", "tree",
}

// DefaultChartType is the fallback when selection fails or returns an
// invalid token.
const DefaultChartType = "bar"

// dataPreviewLimit bounds the raw-data rendering embedded in the
// selection prompt.
const dataPreviewLimit = 500

// IsValidChartType reports whether t is in the fixed enumeration.
func IsValidChartType(t string) bool {
	for _, v := range ChartTypes {
		if t == v {
			return true
		}
	}
	return false
}

// SelectChartType picks the best chart type for the data and question.
//
// Description:
//
//	Invoked only when the intent says "graph wanted, type unspecified".
//	Prompts the completion capability with the question, the source
//	query, a truncated rendering of the raw data, and the enumeration,
//	expecting a single bare lowercase token back. The token is trimmed of
//	quotes and whitespace and validated against the enumeration; anything
//	invalid — including a capability error — selects "bar".
//
// Inputs:
//
//	ctx - Context for the completion call.
//	data - The raw query result (pre-parse), rendered for preview only.
//	question - The user's question.
//	query - The source query string.
//	complete - The completion capability. Must not be nil.
//
// Outputs:
//
//	string - A member of ChartTypes. Never empty.
//
// Thread Safety: Safe for concurrent use.
func SelectChartType(ctx context.Context, data any, question, query string, complete Completer) string {
	ctx, span := tracer.Start(ctx, "chart.SelectChartType")
	defer span.End()

	response, err := complete.Complete(ctx, buildSelectPrompt(data, question, query))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "completion failed")
		recordStageFallback("select")
		slog.Warn("chart type selection failed; defaulting",
			slog.String("default", DefaultChartType),
			slog.String("error", err.Error()))
		return DefaultChartType
	}

	chartType := normalizeToken(response)
	if !IsValidChartType(chartType) {
		span.SetAttributes(attribute.String("invalid_token", truncate(chartType, 40)))
		recordStageFallback("select")
		slog.Warn("invalid chart type from selector; defaulting",
			slog.String("token", truncate(chartType, 40)),
			slog.String("default", DefaultChartType))
		return DefaultChartType
	}

	span.SetAttributes(attribute.String("chart_type", chartType))
	return chartType
}

func buildSelectPrompt(data any, question, query string) string {
	var sb strings.Builder
	sb.WriteString("You are a data visualization expert. Based on the user's question, SQL query, and data structure, select the BEST chart type.\n\n")
	fmt.Fprintf(&sb, "User Question: %q\n", question)
	fmt.Fprintf(&sb, "SQL Query: %q\n", query)
	fmt.Fprintf(&sb, "Data Sample: %s\n\n", truncate(fmt.Sprintf("%v", data), dataPreviewLimit))
	sb.WriteString(`Available chart types:
- bar: Compare categorical data, show rankings
- line: Show trends over time, continuous data
- pie: Show proportions and percentages
- scatter: Show relationships between two variables
- heatmap: Show data density or patterns in a matrix (especially geographic data with coordinates)
- radar: Compare multiple dimensions across items
- gauge: Show single KPI or progress
- funnel: Show conversion or process stages
- sankey: Show flow between states
- treemap: Show hierarchical data with size comparison
- sunburst: Show multi-level hierarchical data
- boxplot: Show statistical distribution
- candlestick: Show financial OHLC data
- graph: Show network relationships
- parallel: Show multi-dimensional data comparison
- tree: Show tree structure/hierarchy

Respond with ONLY the chart type name (one word, lowercase). Examples: "bar", "line", "pie", "heatmap"
`)
	return sb.String()
}
