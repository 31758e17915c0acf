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
	"fmt"
	"log/slog"
	"os"
)

// Provider names accepted by the factory.
const (
	ProviderOpenAI      = "openai"
	ProviderAzureOpenAI = "azure_openai"
	ProviderOllama      = "ollama"
)

// NewClient constructs the completion client for a named provider.
//
// Description:
//
//	"openai" and "ollama" use the raw net/http clients; "azure_openai"
//	goes through the langchaingo adapter. Each constructor reads its own
//	environment variables.
//
// Inputs:
//   - provider: One of the Provider constants.
//
// Outputs:
//   - Client: The configured client.
//   - error: ErrUnknownProvider for unrecognized names, or the
//     constructor's error.
func NewClient(provider string) (Client, error) {
	switch provider {
	case ProviderOpenAI:
		return NewOpenAIClient()
	case ProviderAzureOpenAI:
		return NewAzureOpenAIClient()
	case ProviderOllama:
		return NewOllamaClient(), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownProvider, provider)
	}
}

// NewClientFromEnv picks a provider the way the service defaults do:
// Azure when its endpoint and key are both present, then OpenAI when an
// API key is present, then local Ollama.
//
// Outputs:
//   - Client: The configured client.
//   - error: Non-nil only if the selected constructor fails.
func NewClientFromEnv() (Client, error) {
	if os.Getenv("AZURE_OPENAI_ENDPOINT") != "" && os.Getenv("AZURE_OPENAI_API_KEY") != "" {
		slog.Info("Completion provider selected from environment", "provider", ProviderAzureOpenAI)
		return NewAzureOpenAIClient()
	}
	if os.Getenv("OPENAI_API_KEY") != "" {
		slog.Info("Completion provider selected from environment", "provider", ProviderOpenAI)
		return NewOpenAIClient()
	}
	slog.Info("Completion provider selected from environment", "provider", ProviderOllama)
	return NewOllamaClient(), nil
}
