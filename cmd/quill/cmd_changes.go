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

// runChangesCommand lists the changes recorded in one session.
//
// Without an argument, an interactive terminal gets a session picker;
// a non-interactive one gets an error naming the flag-driven alternative.
func runChangesCommand(cmd *cobra.Command, args []string) error {
	root := mustRoot()
	cfg, err := loadConfig(root)
	if err != nil {
		return err
	}
	manager, err := newManager(cmd.Context(), root, cfg)
	if err != nil {
		return err
	}

	sessionID, err := sessionIDFromArgsOrPicker(manager, args,
		"Select a session to inspect")
	if err != nil {
		return err
	}

	entries, err := manager.ListSessionChanges(cmd.Context(), sessionID)
	if err != nil {
		return fmt.Errorf("listing changes for %s: %w", sessionID, err)
	}
	if len(entries) == 0 {
		fmt.Printf("Session %s recorded no changes.\n", sessionID)
		return nil
	}
	fmt.Print(tui.RenderChanges(entries))
	return nil
}

// sessionIDFromArgsOrPicker resolves a session ID from the first positional
// argument, or from an interactive picker over all recorded sessions.
func sessionIDFromArgsOrPicker(manager *transaction.Manager, args []string, prompt string) (string, error) {
	if len(args) > 0 {
		return args[0], nil
	}
	if !tui.Interactive() {
		return "", fmt.Errorf("session ID required (stdout is not a terminal)")
	}

	manifests, err := manager.ListAllSessions()
	if err != nil {
		return "", fmt.Errorf("listing sessions: %w", err)
	}
	return tui.PickSession(manifests, prompt)
}
