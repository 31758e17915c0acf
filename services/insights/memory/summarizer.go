// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package memory

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
)

// Completer is the completion capability the summarizer depends on,
// satisfied by any services/insights/completion client.
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// summarizeThreshold is the history length at which RecordExchange folds
// the window into the rolling summary.
const summarizeThreshold = 10

// Summarizer maintains rolling conversation summaries.
//
// Description:
//
//	Conversation windows are bounded; to keep long sessions coherent, the
//	summarizer periodically extends a rolling summary from the retained
//	messages. An existing summary is extended rather than regenerated, so
//	detail from messages already trimmed out of the window survives.
//
// Thread Safety: Safe for concurrent use when store and complete are.
type Summarizer struct {
	store    *Store
	complete Completer
	logger   *slog.Logger
}

// NewSummarizer creates a summarizer over a conversation store.
//
// Inputs:
//
//	store - The conversation store. Must not be nil.
//	complete - The completion capability. Must not be nil.
//	logger - Logger for diagnostic output. Must not be nil.
//
// Outputs:
//
//	*Summarizer - The configured summarizer.
//	error - Non-nil if any dependency is nil.
func NewSummarizer(store *Store, complete Completer, logger *slog.Logger) (*Summarizer, error) {
	if store == nil {
		return nil, fmt.Errorf("store must not be nil")
	}
	if complete == nil {
		return nil, fmt.Errorf("completer must not be nil")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger must not be nil")
	}
	return &Summarizer{store: store, complete: complete, logger: logger}, nil
}

// RecordExchange appends one question/answer pair to the session and, when
// the window has grown past the threshold, refreshes the rolling summary.
//
// Description:
//
//	Summary refresh failures are logged and swallowed: the exchange is
//	already persisted, and a stale summary is strictly better than a
//	failed request.
//
// Inputs:
//
//	ctx - Context for cancellation.
//	session - The session identifier.
//	question - The user's message.
//	answer - The assistant's reply.
//
// Outputs:
//
//	error - Non-nil only when the append itself fails.
func (s *Summarizer) RecordExchange(ctx context.Context, session, question, answer string) error {
	err := s.store.Append(ctx, session,
		Message{Role: RoleHuman, Content: question},
		Message{Role: RoleAI, Content: answer},
	)
	if err != nil {
		return err
	}

	history, err := s.store.History(ctx, session)
	if err != nil {
		s.logger.Warn("could not read history for summarization",
			slog.String("session", session),
			slog.String("error", err.Error()))
		return nil
	}
	if len(history) < summarizeThreshold {
		return nil
	}

	if err := s.Refresh(ctx, session); err != nil {
		s.logger.Warn("conversation summary refresh failed",
			slog.String("session", session),
			slog.String("error", err.Error()))
	}
	return nil
}

// Refresh regenerates the session's rolling summary from its current
// window, extending the existing summary when one is present.
func (s *Summarizer) Refresh(ctx context.Context, session string) error {
	history, err := s.store.History(ctx, session)
	if err != nil {
		return err
	}
	if len(history) == 0 {
		return nil
	}
	current, err := s.store.Summary(ctx, session)
	if err != nil {
		return err
	}

	response, err := s.complete.Complete(ctx, buildSummaryPrompt(history, current))
	if err != nil {
		return fmt.Errorf("memory: summarizing session %s: %w", session, err)
	}
	response = strings.TrimSpace(response)
	if response == "" {
		return fmt.Errorf("memory: empty summary for session %s", session)
	}
	return s.store.SetSummary(ctx, session, response)
}

func buildSummaryPrompt(history []Message, currentSummary string) string {
	var sb strings.Builder
	for _, m := range history {
		fmt.Fprintf(&sb, "%s: %s\n", m.Role, m.Content)
	}
	sb.WriteString("\n")
	if currentSummary != "" {
		fmt.Fprintf(&sb, "This is a summary of the conversation to date: %s\n\n", currentSummary)
		sb.WriteString("Extend the summary by taking into account the new messages above:")
	} else {
		sb.WriteString("Create a summary of the conversation above:")
	}
	return sb.String()
}
