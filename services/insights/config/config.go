// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package config loads the insights service configuration from YAML, with
// embedded defaults so the service runs with no config file at all.
package config

import (
	_ "embed"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

//go:embed defaults.yaml
var defaultConfigYAML []byte

// Config is the full service configuration.
//
// Thread Safety: Immutable after loading; safe for concurrent use.
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Completion CompletionConfig `yaml:"completion"`
	Memory     MemoryConfig     `yaml:"memory"`
	Pipeline   PipelineConfig   `yaml:"pipeline"`
	Telemetry  TelemetryConfig  `yaml:"telemetry"`
}

// ServerConfig configures the HTTP listener and upload handling.
type ServerConfig struct {
	// ListenAddr is the host:port the HTTP server binds.
	ListenAddr string `yaml:"listen_addr"`

	// UploadDir is where uploaded spreadsheets are written.
	UploadDir string `yaml:"upload_dir"`

	// MaxUploadBytes bounds multipart upload size.
	MaxUploadBytes int64 `yaml:"max_upload_bytes"`
}

// CompletionConfig selects the completion provider.
type CompletionConfig struct {
	// Provider is "openai", "azure_openai", "ollama", or "auto" to pick
	// from the environment.
	Provider string `yaml:"provider"`
}

// MemoryConfig configures the conversation store.
type MemoryConfig struct {
	// DataDir is the BadgerDB directory.
	DataDir string `yaml:"data_dir"`

	// InMemory runs BadgerDB without disk persistence. Conversation
	// state then dies with the process.
	InMemory bool `yaml:"in_memory"`
}

// PipelineConfig tunes the chart pipeline.
type PipelineConfig struct {
	// MaxPromptRows bounds the rows rendered into normalization prompts.
	MaxPromptRows int `yaml:"max_prompt_rows"`
}

// TelemetryConfig configures tracing output.
type TelemetryConfig struct {
	// StdoutTraces emits OTel spans to stdout.
	StdoutTraces bool `yaml:"stdout_traces"`
}

// Default returns the embedded default configuration.
func Default() (*Config, error) {
	return Load(defaultConfigYAML)
}

// Load parses and validates a configuration from YAML bytes. Fields left
// unset fall back to the embedded defaults.
//
// Outputs:
//
//	*Config - The validated configuration.
//	error - Non-nil on parse or validation failure.
func Load(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(defaultConfigYAML, &cfg); err != nil {
		return nil, fmt.Errorf("config: parsing embedded defaults: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parsing: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadFile loads configuration from a YAML file. An empty path yields the
// embedded defaults.
func LoadFile(path string) (*Config, error) {
	if path == "" {
		return Default()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: reading %s: %w", path, err)
	}
	return Load(data)
}

func (c *Config) validate() error {
	if c.Server.ListenAddr == "" {
		return fmt.Errorf("config: server.listen_addr must not be empty")
	}
	if c.Server.MaxUploadBytes <= 0 {
		return fmt.Errorf("config: server.max_upload_bytes must be positive")
	}
	switch c.Completion.Provider {
	case "openai", "azure_openai", "ollama", "auto":
	default:
		return fmt.Errorf("config: unknown completion.provider %q", c.Completion.Provider)
	}
	if c.Pipeline.MaxPromptRows <= 0 {
		return fmt.Errorf("config: pipeline.max_prompt_rows must be positive")
	}
	if !c.Memory.InMemory && c.Memory.DataDir == "" {
		return fmt.Errorf("config: memory.data_dir required unless in_memory is set")
	}
	return nil
}
