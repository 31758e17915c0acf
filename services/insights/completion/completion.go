// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package completion provides the text-completion providers behind the
// insights pipeline: OpenAI-compatible endpoints, local Ollama servers,
// and a langchaingo-backed adapter, all exposed through one minimal
// prompt-in/string-out contract.
package completion

import (
	"context"
	"errors"
	"time"
)

// Client is the provider contract. It matches the capability the chart
// pipeline consumes: one prompt in, one completed string out.
//
// Thread Safety: Implementations must be safe for concurrent use.
type Client interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// Params are the generation knobs shared by every provider. Pointer
// fields are omitted from the wire request when nil, deferring to the
// backend's defaults.
type Params struct {
	Temperature *float32
	MaxTokens   *int
	TopP        *float32
	Stop        []string
}

// DefaultTimeout bounds a single completion round trip. Chart prompts
// embed full result sets, so responses can take a while on small local
// models.
const DefaultTimeout = 120 * time.Second

// ErrMissingAPIKey is returned by constructors that require an API key.
var ErrMissingAPIKey = errors.New("completion: API key is missing")

// ErrUnknownProvider is returned by the factory for an unrecognized
// provider name.
var ErrUnknownProvider = errors.New("completion: unknown provider")

func floatPtr(v float32) *float32 { return &v }
