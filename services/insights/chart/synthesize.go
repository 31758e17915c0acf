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
	"regexp"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// =============================================================================
// Chart-Spec Synthesizer
// =============================================================================

// SynthesizeSpec converts canonical chart data into a complete declarative
// chart specification.
//
// Description:
//
//	Two-stage strategy: first prompt the completion capability with the
//	chart type, the full chart data, and worked examples for every
//	type/variant combination, then structurally validate the response
//	(fence stripping, a trailing-comma repair pass, a comment-stripping
//	retry). If validation fails at every step — or the capability itself
//	errors — fall through to GenerateFallback, which covers every chart
//	type locally. Synthesis therefore always succeeds.
//
// Inputs:
//
//	ctx - Context for the completion call.
//	chartType - A member of ChartTypes.
//	cd - The canonical chart data.
//	complete - The completion capability. Must not be nil.
//
// Outputs:
//
//	map[string]any - A structurally valid, JSON-compatible chart spec.
//
// Thread Safety: Safe for concurrent use.
func SynthesizeSpec(ctx context.Context, chartType string, cd ChartData, complete Completer) map[string]any {
	ctx, span := tracer.Start(ctx, "chart.SynthesizeSpec")
	defer span.End()
	span.SetAttributes(
		attribute.String("chart_type", chartType),
		attribute.Int("points", len(cd.Data)),
	)

	response, err := complete.Complete(ctx, buildSynthesizePrompt(chartType, cd))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "completion failed")
		recordStageFallback("synthesize")
		slog.Warn("chart spec synthesis failed; using deterministic fallback",
			slog.String("error", err.Error()))
		return GenerateFallback(chartType, cd)
	}

	if spec, ok := parseSpecJSON(response); ok {
		span.SetAttributes(attribute.Bool("fallback", false))
		return spec
	}

	span.SetStatus(codes.Error, "spec parse failed")
	recordStageFallback("synthesize")
	slog.Warn("chart spec response failed structural parse; using deterministic fallback",
		slog.String("preview", truncate(response, 200)))
	return GenerateFallback(chartType, cd)
}

var (
	trailingCommaRe = regexp.MustCompile(`,(\s*[}\]])`)
	lineCommentRe   = regexp.MustCompile(`//[^\n]*`)
	blockCommentRe  = regexp.MustCompile(`(?s)/\*.*?\*/`)
)

// parseSpecJSON attempts a structural parse of a spec response, applying
// the known free-text JSON repairs: markdown fences, trailing commas, and
// (on a second attempt) // and /* */ comments.
func parseSpecJSON(response string) (map[string]any, bool) {
	content := stripCodeFences(response)
	content = trailingCommaRe.ReplaceAllString(content, "$1")

	var spec map[string]any
	if err := json.Unmarshal([]byte(content), &spec); err == nil && len(spec) > 0 {
		return spec, true
	}

	// Repair pass: models sometimes annotate generated options with
	// JS-style comments.
	content = lineCommentRe.ReplaceAllString(content, "")
	content = blockCommentRe.ReplaceAllString(content, "")
	content = trailingCommaRe.ReplaceAllString(content, "$1")
	if err := json.Unmarshal([]byte(content), &spec); err == nil && len(spec) > 0 {
		return spec, true
	}
	return nil, false
}

func buildSynthesizePrompt(chartType string, cd ChartData) string {
	dataJSON, err := json.MarshalIndent(cd, "", "  ")
	if err != nil {
		dataJSON = []byte("{}")
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Generate a complete ECharts option object in JSON format for a %s chart.\n\n", chartType)
	fmt.Fprintf(&sb, "Chart Type: %s\n", chartType)
	fmt.Fprintf(&sb, "Data: %s\n", dataJSON)
	fmt.Fprintf(&sb, "Has Groups: %t\n", cd.HasGroups())
	fmt.Fprintf(&sb, "Is Stacked: %t\n", cd.Stack)
	fmt.Fprintf(&sb, "Is Grouped: %t\n", cd.Group)
	fmt.Fprintf(&sb, "Is Smooth: %t\n", cd.Smooth)
	fmt.Fprintf(&sb, "Show Area: %t\n", cd.ShowArea)
	fmt.Fprintf(&sb, "Inner Radius: %g\n", cd.InnerRadius)
	sb.WriteString(`
CRITICAL INSTRUCTIONS FOR STACKED/GROUPED CHARTS:
1. If data has "group" field, create MULTIPLE series - one per unique group
2. For stacked bar: Each series should have same stack ID (e.g., "stack": "total")
3. For grouped bar: Each series should NOT have a stack property
4. Extract unique categories and groups from the data
5. Map data correctly to each series

Example for STACKED BAR with groups:
{
  "title": {"text": "Title", "left": "center"},
  "tooltip": {"trigger": "axis", "axisPointer": {"type": "shadow"}},
  "legend": {"data": ["BEV", "PHEV"]},
  "xAxis": {"type": "category", "data": ["King", "Pierce"]},
  "yAxis": {"type": "value"},
  "series": [
    {"name": "BEV", "type": "bar", "stack": "total", "data": [5000, 3000]},
    {"name": "PHEV", "type": "bar", "stack": "total", "data": [2000, 1500]}
  ]
}

Example for GROUPED BAR (no stack):
{
  "title": {"text": "Title", "left": "center"},
  "tooltip": {"trigger": "axis"},
  "legend": {"data": ["BEV", "PHEV"]},
  "xAxis": {"type": "category", "data": ["King", "Pierce"]},
  "yAxis": {"type": "value"},
  "series": [
    {"name": "BEV", "type": "bar", "data": [5000, 3000]},
    {"name": "PHEV", "type": "bar", "data": [2000, 1500]}
  ]
}

Example for SMOOTH LINE:
{
  "title": {"text": "Title", "left": "center"},
  "tooltip": {"trigger": "axis"},
  "xAxis": {"type": "category", "data": ["2020", "2021"]},
  "yAxis": {"type": "value"},
  "series": [{"type": "line", "smooth": true, "data": [100, 150]}]
}

Example for AREA LINE:
{
  "title": {"text": "Title", "left": "center"},
  "tooltip": {"trigger": "axis"},
  "xAxis": {"type": "category", "data": ["2020", "2021"]},
  "yAxis": {"type": "value"},
  "series": [{"type": "line", "areaStyle": {}, "data": [100, 150]}]
}

Example for DONUT PIE:
{
  "title": {"text": "Title", "left": "center"},
  "tooltip": {"trigger": "item"},
  "legend": {"orient": "vertical", "left": "left"},
  "series": [{
    "type": "pie",
    "radius": ["60%", "40%"],
    "data": [{"name": "BEV", "value": 70000}, {"name": "PHEV", "value": 30000}]
  }]
}

Now generate the complete, professional ECharts option with:
- Proper title from the chart data
- Tooltips with appropriate triggers
- Legend (if multiple series)
- Good color palette
- Axis labels (if applicable)
- Responsive design

Respond with ONLY valid JSON, no explanations:
`)
	return sb.String()
}
