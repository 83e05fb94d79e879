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

	"github.com/QuillDocs/quill/services/quill/scoring"
	"github.com/QuillDocs/quill/services/quill/session"
	"github.com/QuillDocs/quill/services/quill/tui"
)

// =============================================================================
// COMMAND FLAGS
// =============================================================================

var (
	planLimit      int  // Cap the number of rows shown
	planJSONOutput bool // Output as JSON
)

func init() {
	planCmd.Flags().IntVarP(&planLimit, "limit", "n", 25,
		"Show at most this many items (0 for all)")
	planCmd.Flags().BoolVar(&planJSONOutput, "json", false,
		"Output the worklist as JSON")
}

// =============================================================================
// COMMAND IMPLEMENTATION
// =============================================================================

// runPlanCommand ranks documentation gaps and saves the worklist.
//
// # Description
//
// The worklist contains only items that need documentation (missing or
// thin), ranked by impact. The saved snapshot is what a following
// `quill improve` run consumes, so plan and improve see the same ordering.
func runPlanCommand(cmd *cobra.Command, args []string) error {
	root := mustRoot()
	cfg, err := loadConfig(root)
	if err != nil {
		return err
	}

	ranked, coverage, err := scanAndRank(cmd.Context(), root, cfg)
	if err != nil {
		return fmt.Errorf("scanning %s: %w", root, err)
	}

	var worklist []scoring.ScoredItem
	for _, item := range ranked {
		if needsDoc(item) {
			worklist = append(worklist, item)
		}
	}

	snap := &session.Snapshot{
		ID:        "plan-" + uuid.NewString(),
		Phase:     session.PhasePlan,
		CreatedAt: time.Now().UTC(),
		Root:      root,
		Items:     worklist,
		Coverage:  coverage,
	}
	if err := session.NewStore(reportsDirFor(root)).Save(snap); err != nil {
		return fmt.Errorf("saving plan snapshot: %w", err)
	}

	if planJSONOutput {
		encoder := json.NewEncoder(os.Stdout)
		encoder.SetIndent("", "  ")
		return encoder.Encode(worklist)
	}

	if len(worklist) == 0 {
		fmt.Println("Nothing to document: coverage is complete.")
		return nil
	}
	fmt.Print(tui.RenderPlan(worklist, planLimit))
	fmt.Printf("\n%d item(s) need documentation. Run `quill improve` to fill them.\n",
		len(worklist))
	return nil
}
