// Copyright (C) 2025 Quill Docs (maintainers@quilldocs.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package config loads the per-project quill configuration from
// .quill/config.yaml, with defaults and validation.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Config is the per-project configuration. A missing config file yields
// Default(); a present file overrides only the fields it sets.
type Config struct {
	// Model is the chat model used for doc generation.
	Model string `yaml:"model" validate:"required"`

	// RequestsPerSecond caps LLM request admission.
	RequestsPerSecond float64 `yaml:"requests_per_second" validate:"gt=0,lte=50"`

	// MaxItemsPerRun bounds how many items one improve run touches.
	MaxItemsPerRun int `yaml:"max_items_per_run" validate:"gt=0,lte=1000"`

	// KeepManifests is the retention window for completed transaction
	// manifests; in-progress manifests are never cleaned up.
	KeepManifests int `yaml:"keep_manifests" validate:"gte=0"`

	// GitTimeout bounds each history store operation.
	GitTimeout time.Duration `yaml:"git_timeout" validate:"gt=0"`

	// OnlyExported restricts the audit to public-surface items.
	OnlyExported bool `yaml:"only_exported"`

	// MetricsEnabled and TracingEnabled toggle OpenTelemetry emission.
	MetricsEnabled bool `yaml:"metrics_enabled"`
	TracingEnabled bool `yaml:"tracing_enabled"`
}

// Default returns the standard configuration.
func Default() Config {
	return Config{
		Model:             "gpt-4o-mini",
		RequestsPerSecond: 2,
		MaxItemsPerRun:    25,
		KeepManifests:     20,
		GitTimeout:        30 * time.Second,
		OnlyExported:      false,
		MetricsEnabled:    true,
		TracingEnabled:    false,
	}
}

// PathFor returns the config file path for a project root.
func PathFor(root string) string {
	return filepath.Join(root, ".quill", "config.yaml")
}

// Load reads the project config, merging file values over defaults.
//
// A missing file is not an error; an unparseable or invalid one is.
func Load(root string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(PathFor(root))
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("reading config: %w", err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parsing %s: %w", PathFor(root), err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate checks field constraints.
func (c Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}
