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

func TestSynthesizeSpec_ModelSpecAccepted(t *testing.T) {
	stub := &stubCompleter{responses: []string{`{
		"title": {"text": "EVs"},
		"xAxis": {"type": "category", "data": ["King", "Pierce"]},
		"yAxis": {"type": "value"},
		"series": [{"type": "bar", "data": [5000, 3000]}]
	}`}}

	spec := SynthesizeSpec(context.Background(), "bar", stackedCountyData(), stub)

	require.NotEmpty(t, spec)
	title, ok := spec["title"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "EVs", title["text"])
}

func TestSynthesizeSpec_FencedAndTrailingCommaRepaired(t *testing.T) {
	stub := &stubCompleter{responses: []string{
		"```json\n{\"series\": [{\"type\": \"bar\", \"data\": [1, 2],}],}\n```",
	}}
	spec := SynthesizeSpec(context.Background(), "bar", stackedCountyData(), stub)
	_, ok := spec["series"]
	assert.True(t, ok)
	_, isFallback := spec["legend"]
	assert.False(t, isFallback, "repaired model spec should win over fallback")
}

func TestSynthesizeSpec_CommentedJSONRepaired(t *testing.T) {
	stub := &stubCompleter{responses: []string{`{
		// chart title
		"title": {"text": "EVs"},
		/* the data */
		"series": [{"type": "bar", "data": [1]}]
	}`}}
	spec := SynthesizeSpec(context.Background(), "bar", stackedCountyData(), stub)
	title, ok := spec["title"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "EVs", title["text"])
}

func TestSynthesizeSpec_CompletionErrorFallsBack(t *testing.T) {
	stub := &stubCompleter{err: errors.New("no backend")}
	spec := SynthesizeSpec(context.Background(), "bar", stackedCountyData(), stub)

	// The deterministic fallback path: grouped series with the shared
	// stack id.
	series := specSeries(t, spec)
	require.Len(t, series, 2)
	assert.Equal(t, "total", series[0]["stack"])
}

func TestSynthesizeSpec_UnparseableResponseFallsBack(t *testing.T) {
	for _, response := range []string{
		"Here is a lovely chart for you.",
		"{}",
		"[1, 2, 3]",
		`{"broken": `,
	} {
		stub := &stubCompleter{responses: []string{response}}
		spec := SynthesizeSpec(context.Background(), "pie", ChartData{
			Data:  []DataPoint{{Category: "BEV", Value: 1}},
			Title: "t",
		}, stub)
		require.NotEmpty(t, spec, "response %q", response)
		series := specSeries(t, spec)
		assert.Equal(t, "pie", series[0]["type"])
	}
}

func TestParseSpecJSON(t *testing.T) {
	t.Run("valid object", func(t *testing.T) {
		spec, ok := parseSpecJSON(`{"a": 1}`)
		assert.True(t, ok)
		assert.Equal(t, 1.0, spec["a"])
	})
	t.Run("empty object rejected", func(t *testing.T) {
		_, ok := parseSpecJSON(`{}`)
		assert.False(t, ok)
	})
	t.Run("array rejected", func(t *testing.T) {
		_, ok := parseSpecJSON(`[{"a": 1}]`)
		assert.False(t, ok)
	})
	t.Run("trailing comma repaired", func(t *testing.T) {
		spec, ok := parseSpecJSON(`{"a": [1, 2,],}`)
		assert.True(t, ok)
		assert.NotNil(t, spec["a"])
	})
}
