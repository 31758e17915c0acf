// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package insights exposes the natural-language data insights service:
// question answering over query results, chart synthesis, per-session
// conversation memory, and spreadsheet uploads.
package insights

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/AleutianAI/AleutianInsights/services/insights/chart"
	"github.com/AleutianAI/AleutianInsights/services/insights/config"
	"github.com/AleutianAI/AleutianInsights/services/insights/memory"
	"github.com/AleutianAI/AleutianInsights/services/insights/spreadsheet"
)

var tracer = otel.Tracer("insights.service")

// AskRequest is one question against previously executed query results.
type AskRequest struct {
	// SessionID ties the question to conversation memory. Optional; when
	// empty the exchange is stateless.
	SessionID string `json:"session_id"`

	// Question is the user's natural-language question.
	Question string `json:"question" binding:"required"`

	// Query is the executed source query, used to recover column names.
	Query string `json:"query"`

	// Result is the raw query output: a stringified tuple list, a JSON
	// array, or structured rows.
	Result any `json:"result"`

	// ChartType optionally forces a chart type, bypassing intent
	// classification.
	ChartType string `json:"chart_type"`

	// Variant optionally forces a chart variant.
	Variant string `json:"variant"`
}

// AskResponse is the service's answer to one question.
type AskResponse struct {
	// Answer is the human-readable reply.
	Answer string `json:"answer"`

	// Chart is the synthesized chart, or null when no chart is wanted.
	Chart *chart.Result `json:"chart"`

	// SessionID echoes the request's session, or the one generated for it.
	SessionID string `json:"session_id"`
}

// Service orchestrates the insights flow.
//
// Description:
//
//	One Ask call runs the chart pipeline and the answer generator over
//	the same raw result, in the caller's session context. Chart failures
//	never fail the request: the pipeline degrades internally and the
//	worst case is a null chart.
//
// Thread Safety: Service is safe for concurrent use.
type Service struct {
	pipeline   *chart.Pipeline
	complete   chart.Completer
	store      *memory.Store
	summarizer *memory.Summarizer
	cfg        *config.Config
	logger     *slog.Logger
}

// NewService wires the service from its collaborators.
//
// Inputs:
//
//	complete - The completion capability. Must not be nil.
//	store - Conversation store. Must not be nil.
//	cfg - Service configuration. Must not be nil.
//	logger - Logger for diagnostic output. Must not be nil.
//
// Outputs:
//
//	*Service - The configured service.
//	error - Non-nil if any dependency is nil or wiring fails.
func NewService(complete chart.Completer, store *memory.Store, cfg *config.Config, logger *slog.Logger) (*Service, error) {
	if complete == nil {
		return nil, fmt.Errorf("completer must not be nil")
	}
	if store == nil {
		return nil, fmt.Errorf("store must not be nil")
	}
	if cfg == nil {
		return nil, fmt.Errorf("config must not be nil")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger must not be nil")
	}

	pipeline, err := chart.NewPipelineWithConfig(complete, cfg.Pipeline.MaxPromptRows)
	if err != nil {
		return nil, err
	}
	summarizer, err := memory.NewSummarizer(store, complete, logger)
	if err != nil {
		return nil, err
	}
	return &Service{
		pipeline:   pipeline,
		complete:   complete,
		store:      store,
		summarizer: summarizer,
		cfg:        cfg,
		logger:     logger,
	}, nil
}

// Ask answers one question over raw query results.
//
// Description:
//
//	Runs the chart pipeline and the answer generator, then records the
//	exchange in conversation memory. A missing session id gets one
//	generated so the caller can continue the conversation. Answer
//	generation failures degrade to a plain rendering of the result
//	rather than failing the request.
//
// Inputs:
//
//	ctx - Context for completion calls.
//	req - The question, raw result, and hints.
//
// Outputs:
//
//	*AskResponse - Answer, chart (possibly null), and session id.
//	error - Non-nil only for invalid requests or storage failures.
func (s *Service) Ask(ctx context.Context, req AskRequest) (*AskResponse, error) {
	ctx, span := tracer.Start(ctx, "insights.Service.Ask",
		trace.WithAttributes(
			attribute.Bool("chart_hint", req.ChartType != ""),
		),
	)
	defer span.End()

	if strings.TrimSpace(req.Question) == "" {
		return nil, fmt.Errorf("insights: question must not be empty")
	}
	sessionID := req.SessionID
	if sessionID == "" {
		sessionID = uuid.NewString()
	}
	span.SetAttributes(attribute.String("session_id", sessionID))

	chartRes := s.pipeline.Generate(ctx, chart.Request{
		Question:      req.Question,
		ChartTypeHint: req.ChartType,
		VariantHint:   req.Variant,
		RawResult:     req.Result,
		SourceQuery:   req.Query,
	})

	answer := s.generateAnswer(ctx, sessionID, req)

	if err := s.summarizer.RecordExchange(ctx, sessionID, req.Question, answer); err != nil {
		s.logger.Warn("could not record exchange",
			slog.String("session", sessionID),
			slog.String("error", err.Error()))
	}

	return &AskResponse{
		Answer:    answer,
		Chart:     chartRes,
		SessionID: sessionID,
	}, nil
}

// generateAnswer renders the raw result into a human-readable reply,
// carrying the rolling summary and the recent conversation for follow-up
// questions.
func (s *Service) generateAnswer(ctx context.Context, sessionID string, req AskRequest) string {
	history, err := s.store.History(ctx, sessionID)
	if err != nil {
		s.logger.Warn("could not read conversation history",
			slog.String("session", sessionID),
			slog.String("error", err.Error()))
	}
	summary, err := s.store.Summary(ctx, sessionID)
	if err != nil {
		s.logger.Warn("could not read conversation summary",
			slog.String("session", sessionID),
			slog.String("error", err.Error()))
	}

	response, err := s.complete.Complete(ctx, buildAnswerPrompt(req, history, summary))
	if err != nil {
		s.logger.Warn("answer generation failed; returning raw result",
			slog.String("error", err.Error()))
		return fmt.Sprintf("Result: %v", req.Result)
	}
	response = strings.TrimSpace(response)
	if response == "" {
		return fmt.Sprintf("Result: %v", req.Result)
	}
	return response
}

// recentContextWindow bounds the history turns rendered into the answer
// prompt.
const recentContextWindow = 5

func buildAnswerPrompt(req AskRequest, history []memory.Message, summary string) string {
	var sb strings.Builder
	sb.WriteString(`Given the following user question regarding a data query, the corresponding query, and the result of that query,
generate a human-readable sentence with proper presentation.

- Do not talk about any technical query information.
- If the result is a list, format it for readability with multiple lines.
- Your final output must be a single string.
- Consider the previous conversation context when generating your response.
- If there are multiple rows of data, use markdown tables to represent them.

`)
	fmt.Fprintf(&sb, "Question: %s\n", req.Question)
	fmt.Fprintf(&sb, "Query: %s\n", req.Query)
	fmt.Fprintf(&sb, "Result: %v\n", req.Result)

	if summary != "" {
		sb.WriteString("\nSummary of the conversation so far:\n")
		sb.WriteString(summary)
		sb.WriteString("\n")
	}
	if len(history) > 0 {
		sb.WriteString("\nPrevious conversation:\n")
		start := len(history) - recentContextWindow
		if start < 0 {
			start = 0
		}
		for _, m := range history[start:] {
			fmt.Fprintf(&sb, "%s: %s\n", m.Role, m.Content)
		}
	}
	return sb.String()
}

// =============================================================================
// Spreadsheet Sessions
// =============================================================================

// SaveUpload persists an uploaded spreadsheet for a session and validates
// that it parses.
//
// Description:
//
//	The file is written under the configured upload directory with a
//	generated name (never the client's), loaded once to validate, and
//	its path recorded against the session. The parsed table is returned
//	so callers can echo a preview.
//
// Inputs:
//
//	ctx - Context for storage calls.
//	sessionID - The owning session. Empty generates a new one.
//	filename - The client filename, used only for its extension.
//	data - The file contents.
//
// Outputs:
//
//	string - The session id.
//	*spreadsheet.Table - The parsed table.
//	error - Non-nil if the file does not parse or storage fails.
func (s *Service) SaveUpload(ctx context.Context, sessionID, filename string, data []byte) (string, *spreadsheet.Table, error) {
	ctx, span := tracer.Start(ctx, "insights.Service.SaveUpload")
	defer span.End()

	if sessionID == "" {
		sessionID = uuid.NewString()
	}
	ext := strings.ToLower(filepath.Ext(filename))
	if ext != ".xlsx" && ext != ".csv" {
		return "", nil, fmt.Errorf("insights: unsupported upload extension: %s", ext)
	}

	if err := os.MkdirAll(s.cfg.Server.UploadDir, 0o755); err != nil {
		return "", nil, fmt.Errorf("insights: creating upload dir: %w", err)
	}
	path := filepath.Join(s.cfg.Server.UploadDir, uuid.NewString()+ext)
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return "", nil, fmt.Errorf("insights: writing upload: %w", err)
	}

	table, err := spreadsheet.Load(path)
	if err != nil {
		os.Remove(path)
		return "", nil, err
	}

	if err := s.store.SetDataFile(ctx, sessionID, path); err != nil {
		return "", nil, err
	}
	s.logger.Info("spreadsheet uploaded",
		slog.String("session", sessionID),
		slog.Int("rows", table.Len()),
		slog.Int("columns", len(table.Columns)))
	span.SetAttributes(attribute.Int("rows", table.Len()))
	return sessionID, table, nil
}

// SessionTable loads the spreadsheet previously uploaded for a session.
//
// Outputs:
//
//	*spreadsheet.Table - The parsed table.
//	error - Non-nil when the session has no upload or the file is gone.
func (s *Service) SessionTable(ctx context.Context, sessionID string) (*spreadsheet.Table, error) {
	path, err := s.store.DataFile(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if path == "" {
		return nil, fmt.Errorf("insights: no spreadsheet for session %s", sessionID)
	}
	return spreadsheet.Load(path)
}
