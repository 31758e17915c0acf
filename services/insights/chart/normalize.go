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
// Canonical Chart Data
// =============================================================================

// DataPoint is one point of the canonical intermediate chart shape.
//
// Exactly one axis identity applies per chart family: Category for
// categorical charts, Time for time series, X/Y for matrix charts. Group
// is set when the point belongs to a named series.
type DataPoint struct {
	Category string  `json:"category,omitempty"`
	Time     string  `json:"time,omitempty"`
	X        string  `json:"x,omitempty"`
	Y        string  `json:"y,omitempty"`
	Value    float64 `json:"value"`
	Group    string  `json:"group,omitempty"`
}

// ChartData is the canonical intermediate shape between parsed rows and
// the final chart specification.
//
// Invariants:
//
//	If Stack or Group is set, every point carries a Group field. For
//	time-series charts every point carries Time instead of Category.
//	Values and labels are copied verbatim from the parsed rows — the
//	normalizer's responsibility is shape conformance, not value
//	invention.
type ChartData struct {
	Data        []DataPoint `json:"data"`
	Title       string      `json:"title,omitempty"`
	AxisXTitle  string      `json:"axisXTitle,omitempty"`
	AxisYTitle  string      `json:"axisYTitle,omitempty"`
	Stack       bool        `json:"stack,omitempty"`
	Group       bool        `json:"group,omitempty"`
	Smooth      bool        `json:"smooth,omitempty"`
	ShowArea    bool        `json:"showArea,omitempty"`
	InnerRadius float64     `json:"innerRadius,omitempty"`
}

// HasGroups reports whether any point carries a group field.
func (cd ChartData) HasGroups() bool {
	for _, p := range cd.Data {
		if p.Group != "" {
			return true
		}
	}
	return false
}

// NoDataChartData is the single-point placeholder used whenever the
// parsed result set is empty. Charts are never synthesized against empty
// data.
func NoDataChartData() ChartData {
	return ChartData{
		Data:  []DataPoint{{Category: "No Data", Value: 0}},
		Title: "No Data Available",
	}
}

// degenerateChartData is the well-formed fallback when normalization
// itself fails.
func degenerateChartData() ChartData {
	return ChartData{
		Data:  []DataPoint{{Category: "Data", Value: 1}},
		Title: "Chart",
	}
}

// =============================================================================
// Chart-Data Normalizer
// =============================================================================

// NormalizeChartData maps parsed rows onto the canonical chart-data shape
// for the chosen chart type and variant.
//
// Description:
//
//	Empty input short-circuits to the "No Data Available" placeholder.
//	Otherwise the rows are rendered verbatim into a prompt — the prompt
//	explicitly forbids invented labels or values — together with one
//	worked target shape per chart family, and the completion response is
//	parsed as a single JSON object. Variant flags are then re-applied
//	locally so the shape does not depend on the model echoing them. On
//	any failure the degenerate-but-well-formed fallback shape is
//	returned; normalization never raises.
//
// Inputs:
//
//	ctx - Context for the completion call.
//	rows - The parsed result set.
//	chartType - A member of ChartTypes.
//	question - The user's question, for title/axis naming.
//	variant - Stylistic variant, or empty.
//	maxRows - Upper bound on rows rendered into the prompt. Zero or
//	          negative falls back to defaultMaxPromptRows.
//	complete - The completion capability. Must not be nil.
//
// Outputs:
//
//	ChartData - A well-formed canonical shape. Never empty.
//
// Thread Safety: Safe for concurrent use.
func NormalizeChartData(ctx context.Context, rows ResultSet, chartType, question, variant string, maxRows int, complete Completer) ChartData {
	ctx, span := tracer.Start(ctx, "chart.NormalizeChartData")
	defer span.End()
	span.SetAttributes(
		attribute.String("chart_type", chartType),
		attribute.String("variant", variant),
		attribute.Int("rows", rows.Len()),
	)

	if rows.Empty() {
		slog.Warn("no structured data available for chart; using placeholder")
		return NoDataChartData()
	}

	response, err := complete.Complete(ctx, buildNormalizePrompt(rows, chartType, question, variant, maxRows))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "completion failed")
		recordStageFallback("normalize")
		slog.Warn("chart data normalization failed; using degenerate shape",
			slog.String("error", err.Error()))
		return degenerateChartData()
	}

	var cd ChartData
	if err := json.Unmarshal([]byte(stripCodeFences(response)), &cd); err != nil || len(cd.Data) == 0 {
		span.SetStatus(codes.Error, "parse failed")
		recordStageFallback("normalize")
		slog.Warn("chart data response was not a usable JSON object; using degenerate shape",
			slog.String("preview", truncate(response, 120)))
		return degenerateChartData()
	}

	applyVariant(&cd, variant)
	return cd
}

// applyVariant re-applies the requested variant flags after parsing.
// A stated variant always wins over whatever flags the model set.
func applyVariant(cd *ChartData, variant string) {
	switch variant {
	case "stacked":
		cd.Stack = true
	case "grouped":
		cd.Group = true
	case "smooth":
		cd.Smooth = true
	case "area":
		cd.ShowArea = true
	case "donut":
		if cd.InnerRadius == 0 {
			cd.InnerRadius = 0.6
		}
	}
}

// defaultMaxPromptRows bounds the rows rendered into normalization
// prompts when no limit is configured. Large result sets blow past model
// context windows; the leading rows are enough to establish the shape.
const defaultMaxPromptRows = 200

func buildNormalizePrompt(rows ResultSet, chartType, question, variant string, maxRows int) string {
	if maxRows <= 0 {
		maxRows = defaultMaxPromptRows
	}
	var sb strings.Builder
	variantSuffix := ""
	if variant != "" {
		variantSuffix = fmt.Sprintf(" (%s variant)", variant)
	}
	fmt.Fprintf(&sb, "Transform the SQL query results into the exact format needed for an ECharts %s chart%s.\n\n", chartType, variantSuffix)
	sb.WriteString(`CRITICAL INSTRUCTIONS:
1. Use the ACTUAL values from the SQL data below - the real names, real numbers, exact values
2. Do NOT make up placeholder names like "Category A", "make1", "Label1", etc.
3. Do NOT generate random percentages or values
4. Copy the exact data from the SQL results into the chart format
5. For example, if the SQL shows "Tesla: 50000", the chart data must show {"category": "Tesla", "value": 50000}
6. If the SQL has multiple columns that represent different series (e.g., County, VehicleType, Count), use the "group" field

`)
	fmt.Fprintf(&sb, "User Question: %q\n", question)
	fmt.Fprintf(&sb, "Chart Type: %s\n", chartType)
	if variant != "" {
		fmt.Fprintf(&sb, "Variant: %s\n", variant)
	} else {
		sb.WriteString("Variant: none\n")
	}
	if rows.Len() > maxRows {
		bounded := ResultSet{Columns: rows.Columns, Rows: rows.Rows[:maxRows]}
		fmt.Fprintf(&sb, "SQL Data (RAW RESULTS TO USE, first %d of %d rows):\n%s\n\n",
			maxRows, rows.Len(), bounded.JSON())
	} else {
		fmt.Fprintf(&sb, "SQL Data (RAW RESULTS TO USE):\n%s\n\n", rows.JSON())
	}
	sb.WriteString(`Based on the chart type, format the data correctly:

For SIMPLE BAR chart (no grouping/stacking):
{
    "data": [
        {"category": "Label1", "value": 10},
        {"category": "Label2", "value": 20}
    ],
    "title": "Chart Title",
    "axisXTitle": "X Axis Label",
    "axisYTitle": "Y Axis Label"
}

For STACKED BAR chart (when SQL has multiple series - e.g., County + VehicleType + Count):
{
    "data": [
        {"category": "King", "value": 5000, "group": "BEV"},
        {"category": "King", "value": 2000, "group": "PHEV"},
        {"category": "Pierce", "value": 3000, "group": "BEV"},
        {"category": "Pierce", "value": 1500, "group": "PHEV"}
    ],
    "stack": true,
    "title": "Chart Title",
    "axisXTitle": "County",
    "axisYTitle": "Vehicle Count"
}

For GROUPED BAR chart (side-by-side comparison):
{
    "data": [
        {"category": "King", "value": 5000, "group": "BEV"},
        {"category": "King", "value": 2000, "group": "PHEV"}
    ],
    "group": true,
    "title": "Chart Title",
    "axisXTitle": "County",
    "axisYTitle": "Vehicle Count"
}

For LINE chart:
{
    "data": [
        {"time": "2020", "value": 10},
        {"time": "2021", "value": 20}
    ],
`)
	fmt.Fprintf(&sb, "    \"smooth\": %t,\n    \"showArea\": %t,\n", variant == "smooth", variant == "area")
	sb.WriteString(`    "title": "Chart Title",
    "axisXTitle": "Year",
    "axisYTitle": "Count"
}

For STACKED LINE/AREA chart:
{
    "data": [
        {"time": "2020", "value": 100, "group": "BEV"},
        {"time": "2020", "value": 50, "group": "PHEV"},
        {"time": "2021", "value": 150, "group": "BEV"},
        {"time": "2021", "value": 80, "group": "PHEV"}
    ],
    "stack": true,
    "showArea": true,
    "title": "Chart Title"
}

For PIE chart (regular):
{
    "data": [
        {"category": "Tesla", "value": 30000},
        {"category": "Nissan", "value": 20000}
    ],
    "title": "Chart Title"
}

For DONUT PIE chart:
{
    "data": [
        {"category": "BEV", "value": 70000},
        {"category": "PHEV", "value": 30000}
    ],
    "innerRadius": 0.6,
    "title": "Chart Title"
}

For HEATMAP chart:
{
    "data": [
        {"x": "Location1", "y": "Category1", "value": 100},
        {"x": "Location2", "y": "Category2", "value": 200}
    ],
    "title": "Chart Title",
    "axisXTitle": "X Axis",
    "axisYTitle": "Y Axis"
}

IMPORTANT:
- Detect if SQL data has 3+ columns - if so, likely needs grouping
- The "group" field should come from the SQL data (e.g., VehicleType, Make, etc.)
- For stacked/grouped charts, ensure each category-group combination has one data point

Respond with ONLY the JSON object, no explanations.
`)
	return sb.String()
}
