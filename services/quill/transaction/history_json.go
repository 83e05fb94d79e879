// Copyright (C) 2025 Quill Docs (maintainers@quilldocs.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package transaction

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
)

// jsonHistory is the fallback strategy used when git is not installed.
//
// # Description
//
// No content history exists: the manifest plus the per-entry backup files
// are everything. The lifecycle contract is identical to backend mode, but
// individual rollback only works while the session is still in progress
// (commit deletes the backups, and there is no history line to revert
// against), and diffs are unavailable.
type jsonHistory struct {
	store  *Store
	logger *slog.Logger
}

func newJSONHistory(store *Store, logger *slog.Logger) *jsonHistory {
	return &jsonHistory{store: store, logger: logger}
}

func (h *jsonHistory) mode() string { return "json" }

func (h *jsonHistory) begin(ctx context.Context, m *Manifest) error {
	return nil
}

// record assigns a manifest-scoped sequential ID. The session prefix keeps
// partial-ID lookup unambiguous across sessions.
func (h *jsonHistory) record(ctx context.Context, m *Manifest, e *Entry) error {
	e.EntryID = fmt.Sprintf("%s-%04d", m.SessionID, len(m.Entries)+1)
	return nil
}

func (h *jsonHistory) commit(ctx context.Context, m *Manifest) (string, error) {
	return "", nil
}

func (h *jsonHistory) abandon(ctx context.Context, m *Manifest) error {
	return nil
}

func (h *jsonHistory) listChanges(ctx context.Context, sessionID string) ([]Entry, error) {
	m, err := h.store.LoadSession(sessionID)
	if err != nil {
		return nil, err
	}
	return m.Entries, nil
}

// revert restores one entry's file from its backup.
//
// A later entry touching the same file is a conflict: restoring the older
// backup would silently wipe the newer change, so the operation fails
// closed and reports the path instead.
func (h *jsonHistory) revert(ctx context.Context, m *Manifest, e Entry) *RollbackResult {
	result := &RollbackResult{}

	if m.Status != StatusInProgress {
		result.FailedCount = 1
		result.Errors = append(result.Errors,
			fmt.Sprintf("%v: reverting %s after commit requires the git backend", ErrBackendUnavailable, e.EntryID))
		return result
	}

	if h.laterEntryTouches(m, e) {
		result.FailedCount = 1
		result.Conflicts = append(result.Conflicts, e.Filepath)
		result.Errors = append(result.Errors,
			fmt.Sprintf("a later change in this session also modified %s", e.Filepath))
		return result
	}

	if e.BackupPath == "" {
		result.FailedCount = 1
		result.Errors = append(result.Errors,
			fmt.Sprintf("entry %s has no backup to restore from", e.EntryID))
		return result
	}
	if _, err := os.Stat(e.BackupPath); err != nil {
		result.FailedCount = 1
		result.Errors = append(result.Errors,
			fmt.Sprintf("backup for %s is missing: %s", e.EntryID, e.BackupPath))
		return result
	}

	if err := restoreFile(e.BackupPath, e.Filepath); err != nil {
		result.FailedCount = 1
		result.Errors = append(result.Errors, err.Error())
		return result
	}
	if err := os.Remove(e.BackupPath); err != nil && !os.IsNotExist(err) {
		h.logger.Warn("failed to delete used backup",
			"backup_path", e.BackupPath,
			"error", err)
	}

	result.Success = true
	result.RestoredCount = 1
	h.logger.Info("change reverted from backup",
		"entry_id", e.EntryID,
		"filepath", e.Filepath)
	return result
}

func (h *jsonHistory) diff(ctx context.Context, entryID string) (string, error) {
	return "", fmt.Errorf("%w: %s (fallback mode)", ErrDiffUnavailable, entryID)
}

// laterEntryTouches reports whether any entry after e modified the same file.
func (h *jsonHistory) laterEntryTouches(m *Manifest, e Entry) bool {
	past := false
	for i := range m.Entries {
		if m.Entries[i].EntryID == e.EntryID {
			past = true
			continue
		}
		if past && m.Entries[i].Filepath == e.Filepath {
			return true
		}
	}
	return false
}

// restoreFile copies a backup over its original location, preserving the
// destination's existing mode when it still exists.
func restoreFile(backupPath, destPath string) error {
	data, err := os.ReadFile(backupPath)
	if err != nil {
		return fmt.Errorf("reading backup %s: %w", backupPath, err)
	}

	mode := os.FileMode(0644)
	if info, err := os.Stat(destPath); err == nil {
		mode = info.Mode()
	}

	if err := os.MkdirAll(filepath.Dir(destPath), 0755); err != nil {
		return fmt.Errorf("recreating parent directory: %w", err)
	}
	if err := os.WriteFile(destPath, data, mode); err != nil {
		return fmt.Errorf("restoring %s: %w", destPath, err)
	}
	return nil
}
