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
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
)

// =============================================================================
// Langchain Adapter
// =============================================================================

// LangchainClient adapts any langchaingo llms.Model to the Client
// contract.
//
// Description:
//
//	Covers backends the raw clients don't: Azure OpenAI deployments with
//	their deployment/api-version handshake, and whatever other providers
//	langchaingo grows support for. The adapter holds the model and the
//	call options; everything else rides on langchaingo.
//
// Thread Safety: LangchainClient is safe for concurrent use when the
// wrapped model is.
type LangchainClient struct {
	model llms.Model
	opts  []llms.CallOption
}

// NewLangchainClient wraps an existing langchaingo model.
//
// Inputs:
//   - model: Any langchaingo llms.Model. Must not be nil.
//   - opts: Call options applied to every completion.
//
// Outputs:
//   - *LangchainClient: The adapter.
//   - error: Non-nil if model is nil.
func NewLangchainClient(model llms.Model, opts ...llms.CallOption) (*LangchainClient, error) {
	if model == nil {
		return nil, fmt.Errorf("langchain: model must not be nil")
	}
	return &LangchainClient{model: model, opts: opts}, nil
}

// NewAzureOpenAIClient builds a langchaingo-backed client for an Azure
// OpenAI deployment, configured from the environment.
//
// Description:
//
//	Reads AZURE_OPENAI_ENDPOINT, AZURE_OPENAI_API_KEY,
//	AZURE_OPENAI_API_VERSION, and OPENAI_MODEL. Azure's deployment
//	routing and api-version query handling are exactly the kind of
//	provider quirks langchaingo already encodes.
//
// Outputs:
//   - *LangchainClient: The configured adapter.
//   - error: Non-nil if the endpoint or key is missing, or model
//     construction fails.
func NewAzureOpenAIClient() (*LangchainClient, error) {
	endpoint := os.Getenv("AZURE_OPENAI_ENDPOINT")
	apiKey := os.Getenv("AZURE_OPENAI_API_KEY")
	apiVersion := os.Getenv("AZURE_OPENAI_API_VERSION")
	model := os.Getenv("OPENAI_MODEL")
	if endpoint == "" || apiKey == "" {
		return nil, fmt.Errorf("azure openai: %w (AZURE_OPENAI_ENDPOINT, AZURE_OPENAI_API_KEY)", ErrMissingAPIKey)
	}
	if apiVersion == "" {
		apiVersion = "2023-12-01-preview"
	}
	if model == "" {
		model = "gpt-4o"
	}

	llm, err := openai.New(
		openai.WithAPIType(openai.APITypeAzure),
		openai.WithBaseURL(endpoint),
		openai.WithToken(apiKey),
		openai.WithAPIVersion(apiVersion),
		openai.WithModel(model),
	)
	if err != nil {
		return nil, fmt.Errorf("azure openai: constructing model: %w", err)
	}
	slog.Info("Initializing Azure OpenAI completion client", "model", model)
	return NewLangchainClient(llm, llms.WithTemperature(0))
}

// Complete implements the Client interface.
//
// Thread Safety: Safe for concurrent use when the wrapped model is.
func (l *LangchainClient) Complete(ctx context.Context, prompt string) (string, error) {
	start := time.Now()
	slog.Debug("Completing via langchain adapter", slog.Int("prompt_len", len(prompt)))

	response, err := llms.GenerateFromSinglePrompt(ctx, l.model, prompt, l.opts...)
	if err != nil {
		recordCompletion("langchain", "api_error", time.Since(start).Seconds())
		return "", fmt.Errorf("langchain: generation failed: %w", err)
	}
	recordCompletion("langchain", "ok", time.Since(start).Seconds())
	return response, nil
}
