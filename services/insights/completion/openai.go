// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package completion

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"time"
)

// =============================================================================
// OpenAI Wire Types
// =============================================================================

const defaultOpenAIBaseURL = "https://api.openai.com/v1/chat/completions"

// systemPrompt frames every completion: the pipeline always wants
// machine-readable output, never conversation.
const systemPrompt = "You are a data analysis assistant. Follow the output format instructions in each request exactly."

type openaiRequest struct {
	Model               string          `json:"model"`
	Messages            []openaiMessage `json:"messages"`
	Temperature         *float32        `json:"temperature,omitempty"`
	MaxCompletionTokens *int            `json:"max_completion_tokens,omitempty"`
	TopP                *float32        `json:"top_p,omitempty"`
	Stop                []string        `json:"stop,omitempty"`
}

type openaiMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type openaiResponse struct {
	ID      string         `json:"id"`
	Object  string         `json:"object"`
	Choices []openaiChoice `json:"choices"`
	Error   *openaiError   `json:"error,omitempty"`
}

type openaiChoice struct {
	Index        int           `json:"index"`
	Message      openaiMessage `json:"message"`
	FinishReason string        `json:"finish_reason"`
}

type openaiError struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// =============================================================================
// Client Implementation
// =============================================================================

// OpenAIClient implements Client against the OpenAI Chat Completions
// REST API using raw net/http.
//
// Description:
//
//	Talks to api.openai.com or any compatible endpoint (Azure OpenAI
//	deployments, vLLM, LocalAI) selected by base URL. Requests are
//	single-turn: a fixed system message plus the pipeline's prompt.
//
// Thread Safety: OpenAIClient is safe for concurrent use.
type OpenAIClient struct {
	httpClient *http.Client
	apiKey     string
	model      string
	baseURL    string
	params     Params
}

// NewOpenAIClientWithConfig creates an OpenAIClient with explicit
// configuration.
//
// Description:
//
//	Creates an OpenAIClient without reading environment variables. Useful
//	for testing with mock servers or when configuration comes from a
//	source other than environment variables.
//
// Inputs:
//   - apiKey: The OpenAI API key.
//   - model: The model name (e.g., "gpt-4o").
//   - baseURL: The base URL for API requests.
//   - params: Generation parameters applied to every request.
//
// Outputs:
//   - *OpenAIClient: The configured client.
func NewOpenAIClientWithConfig(apiKey, model, baseURL string, params Params) *OpenAIClient {
	return &OpenAIClient{
		httpClient: &http.Client{Timeout: DefaultTimeout},
		apiKey:     apiKey,
		model:      model,
		baseURL:    baseURL,
		params:     params,
	}
}

// NewOpenAIClient creates a new OpenAIClient from environment variables.
//
// Description:
//
//	Reads OPENAI_API_KEY, OPENAI_MODEL, and OPENAI_BASE_URL from the
//	environment. Defaults to "gpt-4o-mini" and the public endpoint.
//	Temperature is pinned to 0: the pipeline consumes structured output
//	and sampling variety only hurts parse rates.
//
// Outputs:
//   - *OpenAIClient: The configured client.
//   - error: Non-nil if OPENAI_API_KEY is missing.
func NewOpenAIClient() (*OpenAIClient, error) {
	apiKey := os.Getenv("OPENAI_API_KEY")
	model := os.Getenv("OPENAI_MODEL")
	baseURL := os.Getenv("OPENAI_BASE_URL")
	if apiKey == "" {
		slog.Warn("OpenAI API Key is empty. OpenAI Client will not function.")
		return nil, fmt.Errorf("openai: %w (OPENAI_API_KEY)", ErrMissingAPIKey)
	}
	if model == "" {
		model = "gpt-4o-mini"
		slog.Warn("OPENAI_MODEL not set, defaulting to gpt-4o-mini")
	}
	if baseURL == "" {
		baseURL = defaultOpenAIBaseURL
	}
	slog.Info("Initializing OpenAI completion client", "model", model)
	return NewOpenAIClientWithConfig(apiKey, model, baseURL, Params{Temperature: floatPtr(0)}), nil
}

// Complete implements the Client interface.
//
// Description:
//
//	Sends one chat completion request and returns the first choice's
//	content. Non-200 statuses, in-band API errors, and empty choice
//	lists all surface as errors so the pipeline can fall back.
//
// Thread Safety: This method is safe for concurrent use.
func (o *OpenAIClient) Complete(ctx context.Context, prompt string) (string, error) {
	start := time.Now()
	slog.Debug("Completing via OpenAI", slog.String("model", o.model), slog.Int("prompt_len", len(prompt)))

	reqPayload := openaiRequest{
		Model: o.model,
		Messages: []openaiMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: prompt},
		},
		Temperature:         o.params.Temperature,
		MaxCompletionTokens: o.params.MaxTokens,
		TopP:                o.params.TopP,
		Stop:                o.params.Stop,
	}

	reqBody, err := json.Marshal(reqPayload)
	if err != nil {
		recordCompletion("openai", "marshal_error", time.Since(start).Seconds())
		return "", fmt.Errorf("openai: marshaling request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST", o.baseURL, bytes.NewBuffer(reqBody))
	if err != nil {
		recordCompletion("openai", "request_error", time.Since(start).Seconds())
		return "", fmt.Errorf("openai: creating HTTP request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+o.apiKey)

	resp, err := o.httpClient.Do(httpReq)
	if err != nil {
		recordCompletion("openai", "transport_error", time.Since(start).Seconds())
		return "", fmt.Errorf("openai: HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		recordCompletion("openai", "read_error", time.Since(start).Seconds())
		return "", fmt.Errorf("openai: reading response body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		recordCompletion("openai", "http_error", time.Since(start).Seconds())
		return "", fmt.Errorf("openai: API returned status %d: %s", resp.StatusCode, truncateForLog(string(bodyBytes)))
	}

	var apiResp openaiResponse
	if err := json.Unmarshal(bodyBytes, &apiResp); err != nil {
		recordCompletion("openai", "parse_error", time.Since(start).Seconds())
		return "", fmt.Errorf("openai: parsing response JSON: %w", err)
	}

	if apiResp.Error != nil {
		recordCompletion("openai", "api_error", time.Since(start).Seconds())
		return "", fmt.Errorf("openai: API error: %s - %s", apiResp.Error.Type, truncateForLog(apiResp.Error.Message))
	}

	if len(apiResp.Choices) == 0 {
		recordCompletion("openai", "empty", time.Since(start).Seconds())
		return "", fmt.Errorf("openai: returned no choices")
	}

	slog.Debug("Received OpenAI completion",
		slog.String("finish_reason", apiResp.Choices[0].FinishReason),
		slog.Int("response_len", len(apiResp.Choices[0].Message.Content)),
	)
	recordCompletion("openai", "ok", time.Since(start).Seconds())
	return apiResp.Choices[0].Message.Content, nil
}

// truncateForLog bounds provider payloads quoted in errors and logs.
func truncateForLog(s string) string {
	const max = 300
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
