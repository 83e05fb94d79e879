// Copyright (C) 2025 Quill Docs (maintainers@quilldocs.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package tui

import (
	"errors"
	"fmt"
	"time"

	"github.com/charmbracelet/huh"

	"github.com/QuillDocs/quill/services/quill/transaction"
)

// ErrNothingToPick is returned when a picker has no options.
var ErrNothingToPick = errors.New("nothing to select")

// PickSession presents an interactive session selector and returns the
// chosen session ID.
func PickSession(manifests []*transaction.Manifest, prompt string) (string, error) {
	if len(manifests) == 0 {
		return "", ErrNothingToPick
	}

	options := make([]huh.Option[string], 0, len(manifests))
	for _, m := range manifests {
		label := fmt.Sprintf("%s  %s  %d changes  (%s)",
			m.SessionID,
			m.StartedAt.Local().Format(time.DateTime),
			m.EntryCount(),
			m.Status)
		options = append(options, huh.NewOption(label, m.SessionID))
	}

	var selected string
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title(prompt).
				Options(options...).
				Value(&selected),
		),
	)
	if err := form.Run(); err != nil {
		return "", fmt.Errorf("session selection: %w", err)
	}
	return selected, nil
}

// PickChanges presents a multi-select over a session's recorded changes
// and returns the chosen entry IDs.
func PickChanges(entries []transaction.Entry, prompt string) ([]string, error) {
	if len(entries) == 0 {
		return nil, ErrNothingToPick
	}

	options := make([]huh.Option[string], 0, len(entries))
	for _, e := range entries {
		label := fmt.Sprintf("%s  %s %s  %s",
			e.EntryID, e.ItemType, e.ItemName, e.Filepath)
		options = append(options, huh.NewOption(label, e.EntryID))
	}

	var selected []string
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewMultiSelect[string]().
				Title(prompt).
				Options(options...).
				Value(&selected),
		),
	)
	if err := form.Run(); err != nil {
		return nil, fmt.Errorf("change selection: %w", err)
	}
	if len(selected) == 0 {
		return nil, ErrNothingToPick
	}
	return selected, nil
}

// ConfirmRollback asks for explicit confirmation before destructive
// restore operations.
func ConfirmRollback(what string) (bool, error) {
	confirmed := false
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().
				Title(fmt.Sprintf("Roll back %s?", what)).
				Description("Files will be restored to their pre-change content.").
				Affirmative("Roll back").
				Negative("Cancel").
				Value(&confirmed),
		),
	)
	if err := form.Run(); err != nil {
		return false, fmt.Errorf("confirmation: %w", err)
	}
	return confirmed, nil
}
