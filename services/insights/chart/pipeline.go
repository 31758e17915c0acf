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
	"time"

	"go.opentelemetry.io/otel/attribute"
)

// =============================================================================
// Pipeline
// =============================================================================

// Request is the inbound contract for one chart generation.
type Request struct {
	// Question is the user's natural-language question.
	Question string

	// ChartTypeHint, when non-empty, bypasses intent classification and
	// type selection: the caller already knows a chart of this type is
	// wanted.
	ChartTypeHint string

	// VariantHint optionally accompanies ChartTypeHint.
	VariantHint string

	// RawResult is the query-execution collaborator's raw output.
	RawResult any

	// SourceQuery is the executed query, used to recover column names.
	SourceQuery string
}

// Result is the outcome of a chart generation run. A nil *Result means
// "no chart" — a normal outcome, not an error.
type Result struct {
	// ChartType is the selected member of ChartTypes.
	ChartType string `json:"chart_type"`

	// Variant is the stylistic sub-mode, or empty.
	Variant string `json:"variant,omitempty"`

	// Data is the canonical intermediate shape the spec was built from.
	Data ChartData `json:"data"`

	// Spec is the declarative rendering configuration, embeddable
	// directly into a rendering template.
	Spec map[string]any `json:"spec"`
}

// Pipeline runs the full result-interpretation and chart-synthesis flow.
//
// Description:
//
//	Parser -> Intent -> Selector -> Normalizer -> Synthesizer, each step
//	degrading into its documented fallback rather than failing. One
//	Pipeline is safe to share across requests: it holds only the
//	completion capability and a logger, no per-request state.
//
// Thread Safety: Pipeline is safe for concurrent use.
type Pipeline struct {
	complete      Completer
	logger        *slog.Logger
	maxPromptRows int
}

// NewPipeline creates a chart pipeline over the given completion
// capability, with the default prompt-row bound.
//
// Inputs:
//
//	complete - The completion capability. Must not be nil.
//
// Outputs:
//
//	*Pipeline: The configured pipeline.
//	error: Non-nil if complete is nil.
func NewPipeline(complete Completer) (*Pipeline, error) {
	return NewPipelineWithConfig(complete, defaultMaxPromptRows)
}

// NewPipelineWithConfig creates a chart pipeline with an explicit bound
// on the rows rendered into normalization prompts.
//
// Inputs:
//
//	complete - The completion capability. Must not be nil.
//	maxPromptRows - Prompt-row bound. Zero or negative uses the default.
//
// Outputs:
//
//	*Pipeline: The configured pipeline.
//	error: Non-nil if complete is nil.
func NewPipelineWithConfig(complete Completer, maxPromptRows int) (*Pipeline, error) {
	if complete == nil {
		return nil, fmt.Errorf("completer must not be nil")
	}
	if maxPromptRows <= 0 {
		maxPromptRows = defaultMaxPromptRows
	}
	return &Pipeline{
		complete:      complete,
		logger:        slog.Default(),
		maxPromptRows: maxPromptRows,
	}, nil
}

// Generate runs the pipeline for one request.
//
// Description:
//
//	Classifies intent (unless a chart-type hint short-circuits it),
//	selects a chart type when unspecified, parses the raw result into a
//	typed record set, normalizes it onto the canonical chart shape, and
//	synthesizes the final specification. Never returns an error: every
//	internal failure resolves to a fallback, and the only caller-visible
//	"failure" is the nil no-chart outcome.
//
// Inputs:
//
//	ctx - Context for the completion calls.
//	req - The chart request.
//
// Outputs:
//
//	*Result - The chart, or nil when no chart is wanted.
//
// Thread Safety: Safe for concurrent use.
func (p *Pipeline) Generate(ctx context.Context, req Request) *Result {
	ctx, span := tracer.Start(ctx, "chart.Pipeline.Generate")
	defer span.End()
	start := time.Now()

	chartType := normalizeToken(req.ChartTypeHint)
	variant := normalizeToken(req.VariantHint)
	if chartType != "" && !IsValidChartType(chartType) {
		chartType = ""
	}
	if !isValidVariant(variant) {
		variant = ""
	}

	if chartType == "" {
		intent := DetectIntent(ctx, req.Question, p.complete)
		if !intent.NeedsGraph {
			p.logger.Info("no chart requested",
				slog.String("reasoning", intent.Reasoning))
			span.SetAttributes(attribute.Bool("needs_graph", false))
			recordPipeline("no_chart", time.Since(start).Seconds())
			return nil
		}
		chartType = intent.ChartType
		if variant == "" {
			variant = intent.Variant
		}
	}

	if chartType == "" {
		chartType = SelectChartType(ctx, req.RawResult, req.Question, req.SourceQuery, p.complete)
	}

	rows := ParseResult(req.RawResult, req.SourceQuery)
	parsedRowsTotal.Add(float64(rows.Len()))
	p.logger.Info("chart pipeline shaping data",
		slog.String("chart_type", chartType),
		slog.String("variant", variant),
		slog.Int("rows", rows.Len()),
		slog.Any("columns", rows.Columns))

	data := NormalizeChartData(ctx, rows, chartType, req.Question, variant, p.maxPromptRows, p.complete)
	spec := SynthesizeSpec(ctx, chartType, data, p.complete)

	span.SetAttributes(
		attribute.String("chart_type", chartType),
		attribute.String("variant", variant),
		attribute.Int("rows", rows.Len()),
	)
	recordPipeline("chart", time.Since(start).Seconds())

	return &Result{
		ChartType: chartType,
		Variant:   variant,
		Data:      data,
		Spec:      spec,
	}
}
