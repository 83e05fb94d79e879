// Copyright (C) 2025 Quill Docs (maintainers@quilldocs.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/QuillDocs/quill/services/quill/config"
)

// =============================================================================
// COMMAND FLAGS
// =============================================================================

var initForce bool // Overwrite an existing config file

func init() {
	initCmd.Flags().BoolVarP(&initForce, "force", "f", false,
		"Overwrite an existing config file")
}

// =============================================================================
// COMMAND IMPLEMENTATION
// =============================================================================

// runInitCommand writes the default configuration into <root>/.quill.
func runInitCommand(cmd *cobra.Command, args []string) error {
	root := mustRoot()
	path := config.PathFor(root)

	if !initForce {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("%s already exists (use --force to overwrite)", path)
		}
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("creating %s: %w", filepath.Dir(path), err)
	}

	data, err := yaml.Marshal(config.Default())
	if err != nil {
		return fmt.Errorf("encoding default config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}

	fmt.Printf("Wrote %s\n", path)
	return nil
}
