// Copyright (C) 2025 Quill Docs (maintainers@quilldocs.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/QuillDocs/quill/services/quill/tui"
)

// =============================================================================
// COMMAND FLAGS
// =============================================================================

var sessionsKeep int // Retention window for cleanup

func init() {
	sessionsCleanupCmd.Flags().IntVarP(&sessionsKeep, "keep", "k", 0,
		"Completed manifests to keep (default: keep_manifests from config)")
}

// =============================================================================
// COMMAND IMPLEMENTATION
// =============================================================================

// runSessionsList prints every recorded session, newest first.
func runSessionsList(cmd *cobra.Command, args []string) error {
	root := mustRoot()
	cfg, err := loadConfig(root)
	if err != nil {
		return err
	}
	manager, err := newManager(cmd.Context(), root, cfg)
	if err != nil {
		return err
	}

	manifests, err := manager.ListAllSessions()
	if err != nil {
		return fmt.Errorf("listing sessions: %w", err)
	}
	if len(manifests) == 0 {
		fmt.Println("No sessions recorded.")
		return nil
	}
	fmt.Print(tui.RenderSessions(manifests))
	return nil
}

// runSessionsCleanup deletes completed manifests beyond the retention
// window. In-progress sessions are never touched.
func runSessionsCleanup(cmd *cobra.Command, args []string) error {
	root := mustRoot()
	cfg, err := loadConfig(root)
	if err != nil {
		return err
	}
	manager, err := newManager(cmd.Context(), root, cfg)
	if err != nil {
		return err
	}

	keep := sessionsKeep
	if keep <= 0 {
		keep = cfg.KeepManifests
	}
	removed, err := manager.CleanupOldManifests(keep)
	if err != nil {
		return fmt.Errorf("cleaning up manifests: %w", err)
	}
	fmt.Printf("Removed %d old manifest(s), keeping the %d most recent.\n", removed, keep)
	return nil
}
