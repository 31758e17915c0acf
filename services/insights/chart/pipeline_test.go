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
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewPipeline_NilCompleter(t *testing.T) {
	p, err := NewPipeline(nil)
	assert.Nil(t, p)
	assert.Error(t, err)
}

func TestPipeline_FullRun(t *testing.T) {
	// intent -> normalize -> synthesize, in call order.
	stub := &stubCompleter{responses: []string{
		`{"needs_graph": true, "chart_type": "bar", "variant": "stacked", "reasoning": "comparison"}`,
		`{"data": [
			{"category": "King", "value": 5000, "group": "BEV"},
			{"category": "King", "value": 2000, "group": "PHEV"}
		], "stack": true, "title": "EVs by County"}`,
		`{"title": {"text": "EVs by County"}, "series": [
			{"name": "BEV", "type": "bar", "stack": "total", "data": [5000]},
			{"name": "PHEV", "type": "bar", "stack": "total", "data": [2000]}
		]}`,
	}}
	p, err := NewPipeline(stub)
	require.NoError(t, err)

	res := p.Generate(context.Background(), Request{
		Question:    "stacked bar of EVs by county and type",
		RawResult:   "[('King', 'BEV', 5000), ('King', 'PHEV', 2000)]",
		SourceQuery: "SELECT County, Type, Total FROM EVs",
	})

	require.NotNil(t, res)
	assert.Equal(t, "bar", res.ChartType)
	assert.Equal(t, "stacked", res.Variant)
	assert.True(t, res.Data.Stack)
	require.Len(t, res.Data.Data, 2)
	assert.NotEmpty(t, res.Spec["series"])
	assert.Equal(t, 3, stub.calls())
}

func TestPipeline_NoChartOutcome(t *testing.T) {
	stub := &stubCompleter{responses: []string{
		`{"needs_graph": false, "reasoning": "plain lookup"}`,
	}}
	p, err := NewPipeline(stub)
	require.NoError(t, err)

	res := p.Generate(context.Background(), Request{Question: "how many EVs in total?"})
	assert.Nil(t, res)
	assert.Equal(t, 1, stub.calls(), "no further stages after a no-chart intent")
}

func TestPipeline_ChartTypeHintSkipsClassification(t *testing.T) {
	// With a type hint the first completion call is the normalizer, not
	// the intent classifier.
	stub := &stubCompleter{responses: []string{
		`{"data": [{"category": "King", "value": 5000}], "title": "t"}`,
		`{"title": {"text": "t"}, "series": [{"type": "bar", "data": [5000]}]}`,
	}}
	p, err := NewPipeline(stub)
	require.NoError(t, err)

	res := p.Generate(context.Background(), Request{
		Question:      "per county",
		ChartTypeHint: "bar",
		RawResult:     "[('King', 5000)]",
		SourceQuery:   "SELECT County, Total FROM EVs",
	})

	require.NotNil(t, res)
	assert.Equal(t, "bar", res.ChartType)
	assert.Equal(t, 2, stub.calls())
}

func TestPipeline_InvalidHintFallsBackToClassification(t *testing.T) {
	stub := &stubCompleter{responses: []string{
		`{"needs_graph": true, "chart_type": "pie", "variant": null}`,
		`{"data": [{"category": "BEV", "value": 7}]}`,
		`{"title": {"text": "t"}, "series": [{"type": "pie"}]}`,
	}}
	p, err := NewPipeline(stub)
	require.NoError(t, err)

	res := p.Generate(context.Background(), Request{
		Question:      "share of vehicle types",
		ChartTypeHint: "histogram",
		RawResult:     "[('BEV', 7)]",
	})

	require.NotNil(t, res)
	assert.Equal(t, "pie", res.ChartType)
}

func TestPipeline_SelectorRunsWhenIntentOmitsType(t *testing.T) {
	stub := &stubCompleter{responses: []string{
		`{"needs_graph": true, "chart_type": null, "variant": null}`,
		"line",
		`{"data": [{"time": "2020", "value": 10}]}`,
		`{"title": {"text": "t"}, "series": [{"type": "line", "data": [10]}]}`,
	}}
	p, err := NewPipeline(stub)
	require.NoError(t, err)

	res := p.Generate(context.Background(), Request{
		Question:  "visualize the yearly trend",
		RawResult: "[(2020, 10)]",
	})

	require.NotNil(t, res)
	assert.Equal(t, "line", res.ChartType)
	assert.Equal(t, 4, stub.calls())
}

func TestPipeline_ConfiguredPromptRowBound(t *testing.T) {
	stub := &stubCompleter{responses: []string{
		`{"data": [{"category": "King", "value": 5000}], "title": "t"}`,
		`{"title": {"text": "t"}, "series": [{"type": "bar", "data": [5000]}]}`,
	}}
	p, err := NewPipelineWithConfig(stub, 1)
	require.NoError(t, err)

	res := p.Generate(context.Background(), Request{
		Question:      "per county",
		ChartTypeHint: "bar",
		RawResult:     "[('King', 5000), ('Pierce', 3000)]",
		SourceQuery:   "SELECT County, Total FROM EVs",
	})

	require.NotNil(t, res)
	normalizePrompt := stub.prompt(0)
	assert.Contains(t, normalizePrompt, `"King"`)
	assert.NotContains(t, normalizePrompt, `"Pierce"`, "rows past the configured bound must not reach the prompt")
}

func TestNewPipelineWithConfig_NonPositiveBoundUsesDefault(t *testing.T) {
	p, err := NewPipelineWithConfig(&stubCompleter{}, 0)
	require.NoError(t, err)
	assert.Equal(t, defaultMaxPromptRows, p.maxPromptRows)
}

func TestPipeline_EverythingFailingStillYieldsChart(t *testing.T) {
	// All completion calls error after the hint removes classification:
	// normalization degenerates, synthesis falls back locally. The caller
	// still gets a structurally valid chart.
	stub := &stubCompleter{err: errors.New("backend gone")}
	p, err := NewPipeline(stub)
	require.NoError(t, err)

	res := p.Generate(context.Background(), Request{
		Question:      "bar it",
		ChartTypeHint: "bar",
		RawResult:     "[('King', 5000)]",
	})

	require.NotNil(t, res)
	assert.Equal(t, "bar", res.ChartType)
	require.NotEmpty(t, res.Data.Data)
	assert.NotEmpty(t, res.Spec)
}

func TestPipeline_EmptyResultYieldsNoDataPlaceholder(t *testing.T) {
	stub := &stubCompleter{responses: []string{
		`{"title": {"text": "No Data Available"}, "series": [{"type": "bar", "data": [0]}]}`,
	}}
	p, err := NewPipeline(stub)
	require.NoError(t, err)

	res := p.Generate(context.Background(), Request{
		Question:      "chart it",
		ChartTypeHint: "bar",
		RawResult:     "[]",
	})

	require.NotNil(t, res)
	require.Len(t, res.Data.Data, 1)
	assert.Equal(t, "No Data", res.Data.Data[0].Category)
	assert.Equal(t, "No Data Available", res.Data.Title)
	// Normalization short-circuited; only synthesis hit the capability.
	assert.Equal(t, 1, stub.calls())
}

func TestPipeline_VariantHintNormalized(t *testing.T) {
	stub := &stubCompleter{responses: []string{
		`{"data": [{"category": "BEV", "value": 7}]}`,
		`{"title": {"text": "t"}, "series": [{"type": "pie"}]}`,
	}}
	p, err := NewPipeline(stub)
	require.NoError(t, err)

	res := p.Generate(context.Background(), Request{
		Question:      "donut of types",
		ChartTypeHint: "PIE",
		VariantHint:   " Donut ",
		RawResult:     "[('BEV', 7)]",
	})

	require.NotNil(t, res)
	assert.Equal(t, "pie", res.ChartType)
	assert.Equal(t, "donut", res.Variant)
	assert.Equal(t, 0.6, res.Data.InnerRadius)
}
