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

	"github.com/QuillDocs/quill/services/quill/transaction"
	"github.com/QuillDocs/quill/services/quill/tui"
)

// =============================================================================
// COMMAND FLAGS
// =============================================================================

var rollbackYes bool // Skip the confirmation prompt

func init() {
	rollbackSessionCmd.Flags().BoolVarP(&rollbackYes, "yes", "y", false,
		"Skip the confirmation prompt")
	rollbackChangeCmd.Flags().BoolVarP(&rollbackYes, "yes", "y", false,
		"Skip the confirmation prompt")
}

// =============================================================================
// COMMAND IMPLEMENTATION
// =============================================================================

// runRollbackSession restores every file an in-progress session touched.
//
// # Description
//
// Only in-progress sessions can be rolled back wholesale; committed ones
// are unwound change-by-change with `rollback change`. Without an argument,
// an interactive terminal gets a picker over the uncommitted sessions.
func runRollbackSession(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	root := mustRoot()
	cfg, err := loadConfig(root)
	if err != nil {
		return err
	}
	manager, err := newManager(ctx, root, cfg)
	if err != nil {
		return err
	}

	var sessionID string
	if len(args) > 0 {
		sessionID = args[0]
	} else {
		if !tui.Interactive() {
			return fmt.Errorf("session ID required (stdout is not a terminal)")
		}
		uncommitted, err := manager.ListUncommitted()
		if err != nil {
			return fmt.Errorf("listing uncommitted sessions: %w", err)
		}
		sessionID, err = tui.PickSession(uncommitted, "Select a session to roll back")
		if err != nil {
			return err
		}
	}

	manifest, err := manager.LoadSession(sessionID)
	if err != nil {
		return err
	}

	if !rollbackYes {
		ok, err := confirmOrDefault(fmt.Sprintf("session %s (%d change(s))",
			manifest.SessionID, manifest.EntryCount()))
		if err != nil {
			return err
		}
		if !ok {
			fmt.Println("Rollback cancelled.")
			return nil
		}
	}

	restored, err := manager.Rollback(ctx, manifest)
	if err != nil {
		return fmt.Errorf("rolling back %s: %w", sessionID, err)
	}
	if manifest.Status == transaction.StatusPartialRollback {
		fmt.Println(tui.Warn(fmt.Sprintf(
			"Partial rollback: %d of %d file(s) restored; see logs for the rest.",
			restored, manifest.EntryCount())))
		return nil
	}
	fmt.Println(tui.Success(fmt.Sprintf("Rolled back session %s: %d file(s) restored.",
		sessionID, restored)))
	return nil
}

// runRollbackChange reverts individual changes by entry ID.
//
// # Description
//
// Works on committed sessions too: the revert is applied to the session
// branch and re-squashed onto the main line, so later changes stay
// revertible. Conflicting reverts fail closed with the conflicting paths
// listed. Without arguments, an interactive terminal gets a session picker
// followed by a change multi-select.
func runRollbackChange(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	root := mustRoot()
	cfg, err := loadConfig(root)
	if err != nil {
		return err
	}
	manager, err := newManager(ctx, root, cfg)
	if err != nil {
		return err
	}

	entryIDs := args
	if len(entryIDs) == 0 {
		if !tui.Interactive() {
			return fmt.Errorf("entry ID required (stdout is not a terminal)")
		}
		sessionID, err := sessionIDFromArgsOrPicker(manager, nil,
			"Select the session holding the change")
		if err != nil {
			return err
		}
		entries, err := manager.ListSessionChanges(ctx, sessionID)
		if err != nil {
			return fmt.Errorf("listing changes for %s: %w", sessionID, err)
		}
		entryIDs, err = tui.PickChanges(entries, "Select change(s) to revert")
		if err != nil {
			return err
		}
	}

	if !rollbackYes {
		ok, err := confirmOrDefault(fmt.Sprintf("%d change(s)", len(entryIDs)))
		if err != nil {
			return err
		}
		if !ok {
			fmt.Println("Rollback cancelled.")
			return nil
		}
	}

	result, err := manager.RollbackMultiple(ctx, entryIDs)
	if err != nil {
		return fmt.Errorf("reverting changes: %w", err)
	}
	fmt.Print(tui.RenderRollbackResult(result))
	if !result.Success {
		return fmt.Errorf("%d change(s) could not be reverted", result.FailedCount)
	}
	return nil
}

// confirmOrDefault prompts for confirmation on a terminal and defaults to
// proceed when stdout is not one (scripted use passes --yes explicitly to
// be unambiguous, but a pipeline without it should not hang).
func confirmOrDefault(what string) (bool, error) {
	if !tui.Interactive() {
		return true, nil
	}
	return tui.ConfirmRollback(what)
}
