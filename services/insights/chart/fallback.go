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

// =============================================================================
// Deterministic Fallback Generator
// =============================================================================

// stackID is the shared stack identifier attached to every series of a
// stacked chart.
const stackID = "total"

// GenerateFallback builds a complete chart specification locally, with no
// external calls.
//
// Description:
//
//	This is the second stage of the two-stage synthesis strategy: when
//	the completion-backed path fails structural validation, the fallback
//	must independently cover every chart type the normalizer can produce.
//	It is pure and total — given any well-formed ChartData it returns a
//	structurally valid specification and never panics.
//
//	Category and group lists preserve first-occurrence order (not
//	sorted). For grouped/stacked charts each group becomes one series
//	with one value per category, resolved by exact (category, group)
//	match and defaulting to 0 for absent combinations. Stack takes
//	precedence over Group when both flags are set; a group field with
//	neither flag set renders as a single ungrouped series.
//
// Inputs:
//
//	chartType - A member of ChartTypes (anything else gets the generic shape).
//	cd - The canonical chart data.
//
// Outputs:
//
//	map[string]any - A declarative, JSON-compatible chart specification.
//
// Thread Safety: Safe for concurrent use (no shared state).
func GenerateFallback(chartType string, cd ChartData) map[string]any {
	title := cd.Title
	if title == "" {
		title = "Chart"
	}

	switch chartType {
	case "pie":
		return fallbackPie(cd, title)
	case "bar":
		if cd.HasGroups() && (cd.Stack || cd.Group) {
			return fallbackGroupedBar(cd, title)
		}
		return fallbackSimpleBar(cd, title)
	case "line":
		if cd.HasGroups() && (cd.Stack || cd.Group) {
			return fallbackStackedLine(cd, title)
		}
		return fallbackSimpleLine(cd, title)
	case "heatmap":
		return fallbackHeatmap(cd, title)
	default:
		return fallbackGeneric(chartType, cd, title)
	}
}

func fallbackPie(cd ChartData, title string) map[string]any {
	// A nonzero inner radius renders as an outer/inner pair — a donut —
	// instead of a single percentage.
	var radius any = "50%"
	if cd.InnerRadius > 0 {
		radius = []string{"60%", "40%"}
	}
	data := make([]map[string]any, 0, len(cd.Data))
	for _, p := range cd.Data {
		name := p.Category
		if name == "" {
			name = "Item"
		}
		data = append(data, map[string]any{"name": name, "value": p.Value})
	}
	return map[string]any{
		"title":   map[string]any{"text": title, "left": "center", "top": "5%"},
		"tooltip": map[string]any{"trigger": "item"},
		"legend":  map[string]any{"orient": "vertical", "left": "left"},
		"series": []map[string]any{{
			"name":   title,
			"type":   "pie",
			"radius": radius,
			"data":   data,
			"emphasis": map[string]any{
				"itemStyle": map[string]any{
					"shadowBlur":    10,
					"shadowOffsetX": 0,
					"shadowColor":   "rgba(0, 0, 0, 0.5)",
				},
			},
		}},
	}
}

func fallbackSimpleBar(cd ChartData, title string) map[string]any {
	categories := make([]string, 0, len(cd.Data))
	values := make([]float64, 0, len(cd.Data))
	for _, p := range cd.Data {
		categories = append(categories, p.Category)
		values = append(values, p.Value)
	}
	return map[string]any{
		"title":   map[string]any{"text": title, "left": "center"},
		"tooltip": map[string]any{},
		"xAxis":   map[string]any{"type": "category", "data": categories},
		"yAxis":   map[string]any{"type": "value"},
		"series":  []map[string]any{{"type": "bar", "data": values}},
	}
}

func fallbackGroupedBar(cd ChartData, title string) map[string]any {
	categories := uniqueCategories(cd.Data)
	groups := uniqueGroups(cd.Data)

	series := make([]map[string]any, 0, len(groups))
	for _, g := range groups {
		s := map[string]any{
			"name": g,
			"type": "bar",
			"data": seriesValues(cd.Data, categories, g, pointCategory),
		}
		if cd.Stack {
			s["stack"] = stackID
		}
		series = append(series, s)
	}
	return map[string]any{
		"title":   map[string]any{"text": title, "left": "center"},
		"tooltip": map[string]any{"trigger": "axis", "axisPointer": map[string]any{"type": "shadow"}},
		"legend":  map[string]any{"data": groups},
		"xAxis":   map[string]any{"type": "category", "data": categories},
		"yAxis":   map[string]any{"type": "value"},
		"series":  series,
	}
}

func fallbackSimpleLine(cd ChartData, title string) map[string]any {
	times := make([]string, 0, len(cd.Data))
	values := make([]float64, 0, len(cd.Data))
	for _, p := range cd.Data {
		times = append(times, p.Time)
		values = append(values, p.Value)
	}
	s := map[string]any{"type": "line", "data": values}
	if cd.Smooth {
		s["smooth"] = true
	}
	if cd.ShowArea {
		s["areaStyle"] = map[string]any{}
	}
	return map[string]any{
		"title":   map[string]any{"text": title, "left": "center"},
		"tooltip": map[string]any{"trigger": "axis"},
		"xAxis":   map[string]any{"type": "category", "data": times},
		"yAxis":   map[string]any{"type": "value"},
		"series":  []map[string]any{s},
	}
}

func fallbackStackedLine(cd ChartData, title string) map[string]any {
	times := uniqueTimes(cd.Data)
	groups := uniqueGroups(cd.Data)

	series := make([]map[string]any, 0, len(groups))
	for _, g := range groups {
		s := map[string]any{
			"name":  g,
			"type":  "line",
			"stack": stackID,
			"data":  seriesValues(cd.Data, times, g, pointTime),
		}
		if cd.ShowArea {
			s["areaStyle"] = map[string]any{}
		}
		if cd.Smooth {
			s["smooth"] = true
		}
		series = append(series, s)
	}
	return map[string]any{
		"title":   map[string]any{"text": title, "left": "center"},
		"tooltip": map[string]any{"trigger": "axis"},
		"legend":  map[string]any{"data": groups},
		"xAxis":   map[string]any{"type": "category", "data": times},
		"yAxis":   map[string]any{"type": "value"},
		"series":  series,
	}
}

func fallbackHeatmap(cd ChartData, title string) map[string]any {
	data := make([][]any, 0, len(cd.Data))
	maxVal := 100.0
	for i, p := range cd.Data {
		data = append(data, []any{p.X, p.Y, p.Value})
		if i == 0 || p.Value > maxVal {
			maxVal = p.Value
		}
	}
	return map[string]any{
		"title":   map[string]any{"text": title, "left": "center"},
		"tooltip": map[string]any{"position": "top"},
		"grid":    map[string]any{"height": "70%", "top": "10%"},
		"xAxis":   map[string]any{"type": "category"},
		"yAxis":   map[string]any{"type": "category"},
		"visualMap": map[string]any{
			"min":        0,
			"max":        maxVal,
			"calculable": true,
			"orient":     "horizontal",
			"left":       "center",
			"bottom":     "5%",
		},
		"series": []map[string]any{{
			"name":  title,
			"type":  "heatmap",
			"data":  data,
			"label": map[string]any{"show": true},
			"emphasis": map[string]any{
				"itemStyle": map[string]any{
					"shadowBlur":  10,
					"shadowColor": "rgba(0, 0, 0, 0.5)",
				},
			},
		}},
	}
}

// fallbackGeneric is the best-effort shape for chart types without a
// dedicated layout: one series of the requested type over the raw values.
func fallbackGeneric(chartType string, cd ChartData, title string) map[string]any {
	values := make([]float64, 0, len(cd.Data))
	for _, p := range cd.Data {
		values = append(values, p.Value)
	}
	return map[string]any{
		"title":   map[string]any{"text": title, "left": "center"},
		"tooltip": map[string]any{},
		"series":  []map[string]any{{"type": chartType, "data": values}},
	}
}

// =============================================================================
// Cross-Product Helpers
// =============================================================================

func pointCategory(p DataPoint) string { return p.Category }
func pointTime(p DataPoint) string     { return p.Time }

// seriesValues resolves one value per axis key for the given group, by
// exact (key, group) match, defaulting to 0 for absent combinations.
func seriesValues(points []DataPoint, keys []string, group string, keyOf func(DataPoint) string) []float64 {
	out := make([]float64, 0, len(keys))
	for _, k := range keys {
		v := 0.0
		for _, p := range points {
			if keyOf(p) == k && p.Group == group {
				v = p.Value
				break
			}
		}
		out = append(out, v)
	}
	return out
}

func uniqueCategories(points []DataPoint) []string {
	return uniqueKeys(points, pointCategory)
}

func uniqueTimes(points []DataPoint) []string {
	return uniqueKeys(points, pointTime)
}

func uniqueGroups(points []DataPoint) []string {
	seen := make(map[string]struct{}, len(points))
	var out []string
	for _, p := range points {
		if p.Group == "" {
			continue
		}
		if _, ok := seen[p.Group]; ok {
			continue
		}
		seen[p.Group] = struct{}{}
		out = append(out, p.Group)
	}
	return out
}

// uniqueKeys preserves first-occurrence order, never sorted order.
func uniqueKeys(points []DataPoint, keyOf func(DataPoint) string) []string {
	seen := make(map[string]struct{}, len(points))
	var out []string
	for _, p := range points {
		k := keyOf(p)
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, k)
	}
	return out
}
