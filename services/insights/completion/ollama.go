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
	"strings"
	"time"
)

// =============================================================================
// Ollama Wire Types
// =============================================================================

const defaultOllamaBaseURL = "http://localhost:11434"

type ollamaRequest struct {
	Model   string         `json:"model"`
	Prompt  string         `json:"prompt"`
	System  string         `json:"system,omitempty"`
	Stream  bool           `json:"stream"`
	Options *ollamaOptions `json:"options,omitempty"`
}

type ollamaOptions struct {
	Temperature *float32 `json:"temperature,omitempty"`
	NumPredict  *int     `json:"num_predict,omitempty"`
	TopP        *float32 `json:"top_p,omitempty"`
	Stop        []string `json:"stop,omitempty"`
}

type ollamaResponse struct {
	Model    string `json:"model"`
	Response string `json:"response"`
	Done     bool   `json:"done"`
	Error    string `json:"error,omitempty"`
}

// =============================================================================
// Client Implementation
// =============================================================================

// OllamaClient implements Client against a local Ollama server's
// /api/generate endpoint using raw net/http.
//
// Description:
//
//	Requests are non-streaming: the pipeline consumes complete responses
//	and re-parses them structurally, so token-level streaming buys
//	nothing here.
//
// Thread Safety: OllamaClient is safe for concurrent use.
type OllamaClient struct {
	httpClient *http.Client
	model      string
	baseURL    string
	params     Params
}

// NewOllamaClientWithConfig creates an OllamaClient with explicit
// configuration.
//
// Inputs:
//   - model: The model name (e.g., "llama3.1:8b").
//   - baseURL: The server base URL, without the /api/generate suffix.
//   - params: Generation parameters applied to every request.
//
// Outputs:
//   - *OllamaClient: The configured client.
func NewOllamaClientWithConfig(model, baseURL string, params Params) *OllamaClient {
	return &OllamaClient{
		httpClient: &http.Client{Timeout: DefaultTimeout},
		model:      model,
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		params:     params,
	}
}

// NewOllamaClient creates a new OllamaClient from environment variables.
//
// Description:
//
//	Reads OLLAMA_MODEL and OLLAMA_BASE_URL from the environment,
//	defaulting to "llama3.1:8b" on localhost:11434. No API key is
//	required for local servers.
//
// Outputs:
//   - *OllamaClient: The configured client.
func NewOllamaClient() *OllamaClient {
	model := os.Getenv("OLLAMA_MODEL")
	baseURL := os.Getenv("OLLAMA_BASE_URL")
	if model == "" {
		model = "llama3.1:8b"
		slog.Warn("OLLAMA_MODEL not set, defaulting to llama3.1:8b")
	}
	if baseURL == "" {
		baseURL = defaultOllamaBaseURL
	}
	slog.Info("Initializing Ollama completion client", "model", model, "base_url", baseURL)
	return NewOllamaClientWithConfig(model, baseURL, Params{Temperature: floatPtr(0)})
}

// Complete implements the Client interface.
//
// Thread Safety: This method is safe for concurrent use.
func (o *OllamaClient) Complete(ctx context.Context, prompt string) (string, error) {
	start := time.Now()
	slog.Debug("Completing via Ollama", slog.String("model", o.model), slog.Int("prompt_len", len(prompt)))

	reqPayload := ollamaRequest{
		Model:  o.model,
		Prompt: prompt,
		System: systemPrompt,
		Stream: false,
	}
	if o.params.Temperature != nil || o.params.MaxTokens != nil || o.params.TopP != nil || len(o.params.Stop) > 0 {
		reqPayload.Options = &ollamaOptions{
			Temperature: o.params.Temperature,
			NumPredict:  o.params.MaxTokens,
			TopP:        o.params.TopP,
			Stop:        o.params.Stop,
		}
	}

	reqBody, err := json.Marshal(reqPayload)
	if err != nil {
		recordCompletion("ollama", "marshal_error", time.Since(start).Seconds())
		return "", fmt.Errorf("ollama: marshaling request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST", o.baseURL+"/api/generate", bytes.NewBuffer(reqBody))
	if err != nil {
		recordCompletion("ollama", "request_error", time.Since(start).Seconds())
		return "", fmt.Errorf("ollama: creating HTTP request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := o.httpClient.Do(httpReq)
	if err != nil {
		recordCompletion("ollama", "transport_error", time.Since(start).Seconds())
		return "", fmt.Errorf("ollama: HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		recordCompletion("ollama", "read_error", time.Since(start).Seconds())
		return "", fmt.Errorf("ollama: reading response body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		recordCompletion("ollama", "http_error", time.Since(start).Seconds())
		return "", fmt.Errorf("ollama: API returned status %d: %s", resp.StatusCode, truncateForLog(string(bodyBytes)))
	}

	var apiResp ollamaResponse
	if err := json.Unmarshal(bodyBytes, &apiResp); err != nil {
		recordCompletion("ollama", "parse_error", time.Since(start).Seconds())
		return "", fmt.Errorf("ollama: parsing response JSON: %w", err)
	}

	if apiResp.Error != "" {
		recordCompletion("ollama", "api_error", time.Since(start).Seconds())
		return "", fmt.Errorf("ollama: API error: %s", truncateForLog(apiResp.Error))
	}

	slog.Debug("Received Ollama completion",
		slog.Bool("done", apiResp.Done),
		slog.Int("response_len", len(apiResp.Response)),
	)
	recordCompletion("ollama", "ok", time.Since(start).Seconds())
	return apiResp.Response, nil
}
