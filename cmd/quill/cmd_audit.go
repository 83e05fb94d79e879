// Copyright (C) 2025 Quill Docs (maintainers@quilldocs.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/QuillDocs/quill/services/quill/session"
	"github.com/QuillDocs/quill/services/quill/tui"
)

// =============================================================================
// COMMAND FLAGS
// =============================================================================

var auditJSONOutput bool // Output as JSON for scripting

func init() {
	auditCmd.Flags().BoolVar(&auditJSONOutput, "json", false,
		"Output coverage as JSON")
}

// =============================================================================
// COMMAND IMPLEMENTATION
// =============================================================================

// runAuditCommand scans the project and reports documentation coverage.
//
// # Description
//
// Scans every supported source file under the project root, computes
// repo-wide and per-file coverage, prints a report, and records an audit
// snapshot so later runs can compare before/after.
func runAuditCommand(cmd *cobra.Command, args []string) error {
	root := mustRoot()
	cfg, err := loadConfig(root)
	if err != nil {
		return err
	}

	ranked, coverage, err := scanAndRank(cmd.Context(), root, cfg)
	if err != nil {
		return fmt.Errorf("scanning %s: %w", root, err)
	}

	snap := &session.Snapshot{
		ID:        "audit-" + uuid.NewString(),
		Phase:     session.PhaseAudit,
		CreatedAt: time.Now().UTC(),
		Root:      root,
		Items:     ranked,
		Coverage:  coverage,
	}
	if err := session.NewStore(reportsDirFor(root)).Save(snap); err != nil {
		return fmt.Errorf("saving audit snapshot: %w", err)
	}

	if auditJSONOutput {
		encoder := json.NewEncoder(os.Stdout)
		encoder.SetIndent("", "  ")
		return encoder.Encode(coverage)
	}

	fmt.Print(tui.RenderCoverage(coverage))
	return nil
}
