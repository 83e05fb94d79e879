// Copyright (C) 2025 Quill Docs (maintainers@quilldocs.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/QuillDocs/quill/services/quill/transaction"
	"github.com/QuillDocs/quill/services/quill/tui"
)

// runDiffCommand shows what one recorded change did to its file.
func runDiffCommand(cmd *cobra.Command, args []string) error {
	root := mustRoot()
	cfg, err := loadConfig(root)
	if err != nil {
		return err
	}
	manager, err := newManager(cmd.Context(), root, cfg)
	if err != nil {
		return err
	}

	entryID := args[0]
	raw, err := manager.GetChangeDiff(cmd.Context(), entryID)
	if err != nil {
		if errors.Is(err, transaction.ErrDiffUnavailable) {
			return fmt.Errorf("diffs require the git backend; " +
				"this project is running in JSON fallback mode")
		}
		return fmt.Errorf("diff for %s: %w", entryID, err)
	}

	return tui.Page("Change "+entryID, tui.RenderDiff(raw))
}
