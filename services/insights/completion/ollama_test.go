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
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestNewOllamaClient_Defaults(t *testing.T) {
	t.Setenv("OLLAMA_MODEL", "")
	t.Setenv("OLLAMA_BASE_URL", "")

	client := NewOllamaClient()
	if client.model != "llama3.1:8b" {
		t.Errorf("model = %q, want default", client.model)
	}
	if client.baseURL != defaultOllamaBaseURL {
		t.Errorf("baseURL = %q, want default", client.baseURL)
	}
}

func TestOllamaClient_Complete_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/generate" {
			t.Errorf("path = %q, want /api/generate", r.URL.Path)
		}
		var req ollamaRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("failed to decode request: %v", err)
		}
		if req.Stream {
			t.Error("stream should be false")
		}
		if req.Prompt != "normalize this" {
			t.Errorf("prompt = %q", req.Prompt)
		}
		if req.System == "" {
			t.Error("system prompt missing")
		}
		json.NewEncoder(w).Encode(ollamaResponse{
			Model:    req.Model,
			Response: `{"data": []}`,
			Done:     true,
		})
	}))
	defer server.Close()

	client := NewOllamaClientWithConfig("llama3.1:8b", server.URL, Params{})
	result, err := client.Complete(context.Background(), "normalize this")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result != `{"data": []}` {
		t.Errorf("result = %q", result)
	}
}

func TestOllamaClient_Complete_TrailingSlashTrimmed(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.Contains(r.URL.Path, "//") {
			t.Errorf("double slash in path: %q", r.URL.Path)
		}
		json.NewEncoder(w).Encode(ollamaResponse{Response: "ok", Done: true})
	}))
	defer server.Close()

	client := NewOllamaClientWithConfig("m", server.URL+"/", Params{})
	if _, err := client.Complete(context.Background(), "p"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestOllamaClient_Complete_OptionsForwarded(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req ollamaRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("failed to decode request: %v", err)
		}
		if req.Options == nil {
			t.Fatal("options missing")
		}
		if req.Options.Temperature == nil || *req.Options.Temperature != 0 {
			t.Errorf("temperature not forwarded: %v", req.Options.Temperature)
		}
		json.NewEncoder(w).Encode(ollamaResponse{Response: "ok", Done: true})
	}))
	defer server.Close()

	client := NewOllamaClientWithConfig("m", server.URL, Params{Temperature: floatPtr(0)})
	if _, err := client.Complete(context.Background(), "p"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestOllamaClient_Complete_InBandError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(ollamaResponse{Error: "model not found"})
	}))
	defer server.Close()

	client := NewOllamaClientWithConfig("missing", server.URL, Params{})
	_, err := client.Complete(context.Background(), "p")
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "model not found") {
		t.Errorf("error should carry the server message, got: %s", err)
	}
}

func TestOllamaClient_Complete_HTTPError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	client := NewOllamaClientWithConfig("m", server.URL, Params{})
	if _, err := client.Complete(context.Background(), "p"); err == nil {
		t.Fatal("expected error for 500 status")
	}
}
