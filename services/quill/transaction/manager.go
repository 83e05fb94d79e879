// Copyright (C) 2025 Quill Docs (maintainers@quilldocs.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package transaction

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// history is the storage strategy behind a Manager. Selected exactly once
// at construction by capability check; mode never changes for the life of
// the Manager.
type history interface {
	// begin prepares per-session storage (backend: create the session line).
	begin(ctx context.Context, m *Manifest) error

	// record persists one change unit and assigns e.EntryID.
	record(ctx context.Context, m *Manifest, e *Entry) error

	// commit finalizes the session and returns the squash identifier
	// (empty in fallback mode and for empty sessions).
	commit(ctx context.Context, m *Manifest) (string, error)

	// abandon releases session storage after a whole-session rollback.
	abandon(ctx context.Context, m *Manifest) error

	// listChanges returns the ordered entries for a session from the
	// strategy's own source of truth.
	listChanges(ctx context.Context, sessionID string) ([]Entry, error)

	// revert undoes one entry. Operational failures are folded into the
	// result, never returned as errors.
	revert(ctx context.Context, m *Manifest, e Entry) *RollbackResult

	// diff returns the entry's textual diff.
	diff(ctx context.Context, entryID string) (string, error)

	// mode names the strategy for logs and metrics: "git" or "json".
	mode() string
}

// Manager coordinates the transaction lifecycle for documentation sessions.
//
// # Description
//
// Owns the manifest store, the shadow git store and the active strategy.
// All lifecycle operations (Begin, RecordWrite, Commit, Rollback) and all
// individual-change operations (ListSessionChanges, RollbackChange,
// RollbackMultiple, GetChangeDiff) go through the Manager; callers never
// touch the store or the backend directly.
//
// # Thread Safety
//
// All methods are safe for concurrent use within one process. Cross-process
// coordination is not provided; see the package documentation.
type Manager struct {
	config Config
	git    *ShadowGit
	store  *Store
	hist   history
	mu     sync.Mutex
	logger *slog.Logger
	tracer *Tracer
}

// NewManager creates a transaction manager for one project root.
//
// # Description
//
// Probes backend capability exactly once: when git is installed and the
// shadow store initializes, the manager runs in backend mode; otherwise it
// degrades to JSON fallback with a warning. The decision is permanent for
// this Manager.
//
// # Inputs
//
//   - ctx: Context for store initialization.
//   - config: Manager configuration. ProjectRoot is required and must be
//     absolute; other fields default via applyDefaults.
//
// # Outputs
//
//   - *Manager: Ready-to-use manager.
//   - error: Non-nil for invalid configuration.
func NewManager(ctx context.Context, config Config) (*Manager, error) {
	if config.ProjectRoot == "" {
		return nil, fmt.Errorf("project root is required")
	}
	if !filepath.IsAbs(config.ProjectRoot) {
		return nil, fmt.Errorf("project root must be absolute: %s", config.ProjectRoot)
	}
	config.applyDefaults()

	logger := slog.Default().With("component", "transaction.Manager")
	store := NewStore(config.ManifestDir)

	git, err := NewShadowGit(config.ProjectRoot, config.StateDir, config.GitTimeout)
	if err != nil {
		return nil, err
	}

	var hist history
	if git.Available() && git.InitStore(ctx) {
		hist = newGitHistory(git, store, logger)
	} else {
		logger.Warn("git unavailable, running in JSON fallback mode",
			"project_root", config.ProjectRoot)
		hist = newJSONHistory(store, logger)
	}

	SetMetricsEnabled(config.MetricsEnabled)

	m := &Manager{
		config: config,
		git:    git,
		store:  store,
		hist:   hist,
		logger: logger,
		tracer: NewTracer(logger, config.TracingEnabled),
	}
	m.logger.Info("transaction manager ready",
		"mode", hist.mode(),
		"state_dir", config.StateDir)
	return m, nil
}

// BackendMode reports whether the git backend is active.
func (m *Manager) BackendMode() bool {
	return m.hist.mode() == "git"
}

// Begin starts a new session and persists its in-progress manifest.
//
// # Inputs
//
//   - ctx: Context for backend operations.
//   - sessionID: Caller-supplied unique ID. Empty generates a UUID. Reuse
//     of a live session's ID is last-writer-wins, not detected.
//
// # Outputs
//
//   - *Manifest: The new in-progress manifest.
//   - error: Backend or persistence failure; nothing was begun.
func (m *Manager) Begin(ctx context.Context, sessionID string) (*Manifest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	ctx, span := m.tracer.StartOp(ctx, "begin", sessionID)
	var opErr error
	defer func() {
		m.tracer.EndOp(span, opErr)
		recordBegin(ctx, m.hist.mode(), opErr == nil)
	}()

	if sessionID == "" {
		sessionID = uuid.NewString()
	}

	manifest := &Manifest{
		SessionID: sessionID,
		StartedAt: time.Now().UTC(),
		Entries:   []Entry{},
		Status:    StatusInProgress,
	}

	if opErr = m.hist.begin(ctx, manifest); opErr != nil {
		return nil, fmt.Errorf("beginning session %s: %w", sessionID, opErr)
	}
	if opErr = m.store.Save(manifest); opErr != nil {
		return nil, fmt.Errorf("persisting manifest for %s: %w", sessionID, opErr)
	}

	incActive(ctx)
	m.logger.Info("session begun",
		"session_id", sessionID,
		"mode", m.hist.mode())
	return manifest, nil
}

// RecordWrite records one completed file modification in the session.
//
// # Description
//
// Called after the edit and its backup already exist on disk. Appends an
// immutable entry, lets the strategy assign its ID, and persists the
// manifest so the record survives a crash immediately after the write.
//
// # Outputs
//
//   - *Entry: The recorded entry with its assigned ID.
//   - error: ErrInvalidTransition when the manifest is not in progress
//     (no side effects), or a backend/persistence failure.
func (m *Manager) RecordWrite(ctx context.Context, manifest *Manifest, path, backupPath, itemName, itemType, language string) (*Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	ctx, span := m.tracer.StartOp(ctx, "record_write", manifest.SessionID)
	var opErr error
	defer func() { m.tracer.EndOp(span, opErr) }()

	if manifest.Status != StatusInProgress {
		opErr = fmt.Errorf("%w: cannot record on %s manifest %s",
			ErrInvalidTransition, manifest.Status, manifest.SessionID)
		return nil, opErr
	}

	if !filepath.IsAbs(path) {
		path = filepath.Join(m.config.ProjectRoot, path)
	}

	entry := Entry{
		Filepath:   path,
		BackupPath: backupPath,
		Timestamp:  time.Now().UTC().Format(time.RFC3339),
		ItemName:   itemName,
		ItemType:   itemType,
		Language:   language,
		Success:    true,
	}

	if opErr = m.hist.record(ctx, manifest, &entry); opErr != nil {
		return nil, fmt.Errorf("recording change for %s: %w", path, opErr)
	}

	manifest.Entries = append(manifest.Entries, entry)
	if opErr = m.store.Save(manifest); opErr != nil {
		return nil, fmt.Errorf("persisting manifest for %s: %w", manifest.SessionID, opErr)
	}

	m.logger.Debug("change recorded",
		"session_id", manifest.SessionID,
		"entry_id", entry.EntryID,
		"filepath", path,
		"item_name", itemName)
	return &manifest.Entries[len(manifest.Entries)-1], nil
}

// Commit finalizes a session: the changes stay on disk, backups are
// deleted, and in backend mode the session collapses to one squash unit on
// the main line (the detailed session line is preserved).
//
// # Outputs
//
//   - error: ErrInvalidTransition when the manifest is not in progress
//     (no side effects), or a backend/persistence failure.
func (m *Manager) Commit(ctx context.Context, manifest *Manifest) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	ctx, span := m.tracer.StartOp(ctx, "commit", manifest.SessionID)
	start := time.Now()
	var opErr error
	defer func() {
		m.tracer.EndOp(span, opErr)
		recordCommit(ctx, time.Since(start), manifest.EntryCount(), opErr == nil)
	}()

	if manifest.Status != StatusInProgress {
		opErr = fmt.Errorf("%w: cannot commit %s manifest %s",
			ErrInvalidTransition, manifest.Status, manifest.SessionID)
		return opErr
	}

	sha, err := m.hist.commit(ctx, manifest)
	if err != nil {
		opErr = fmt.Errorf("committing session %s: %w", manifest.SessionID, err)
		return opErr
	}

	now := time.Now().UTC()
	prev := manifest.Status
	manifest.Status = StatusCommitted
	manifest.CompletedAt = &now
	manifest.GitCommitSHA = sha
	m.tracer.RecordStateTransition(ctx, manifest.SessionID, prev, manifest.Status, now.Sub(manifest.StartedAt))

	// Persist the terminal state before touching backups: if the save fails,
	// the session is still in progress on disk and every snapshot survives.
	if opErr = m.store.Save(manifest); opErr != nil {
		return fmt.Errorf("persisting manifest for %s: %w", manifest.SessionID, opErr)
	}

	// Changes are final; the pre-modification snapshots are no longer needed.
	for _, entry := range manifest.Entries {
		if entry.BackupPath == "" {
			continue
		}
		if err := os.Remove(entry.BackupPath); err != nil && !os.IsNotExist(err) {
			m.logger.Warn("failed to delete backup",
				"backup_path", entry.BackupPath,
				"error", err)
		}
	}

	decActive(ctx)
	m.logger.Info("session committed",
		"session_id", manifest.SessionID,
		"entries", manifest.EntryCount(),
		"git_commit_sha", sha)
	return nil
}

// Rollback restores every entry of an in-progress session from its backup.
//
// # Description
//
// Best-effort per entry: a missing backup skips that entry and the rest
// still restore. Used backups are deleted. The count of restored files is
// returned so partial outcomes are visible; the manifest ends rolled_back,
// or partial_rollback when any backup was missing.
//
// # Outputs
//
//   - int: Number of files actually restored.
//   - error: ErrInvalidTransition when the manifest is not in progress
//     (no side effects), or a persistence failure.
func (m *Manager) Rollback(ctx context.Context, manifest *Manifest) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	ctx, span := m.tracer.StartOp(ctx, "rollback", manifest.SessionID)
	start := time.Now()
	restored, skipped := 0, 0
	var opErr error
	defer func() {
		m.tracer.EndOp(span, opErr)
		if opErr == nil {
			recordRollback(ctx, time.Since(start), restored, skipped)
		}
	}()

	if manifest.Status != StatusInProgress {
		opErr = fmt.Errorf("%w: cannot roll back %s manifest %s",
			ErrInvalidTransition, manifest.Status, manifest.SessionID)
		return 0, opErr
	}

	for _, entry := range manifest.Entries {
		if entry.BackupPath == "" {
			skipped++
			continue
		}
		if _, err := os.Stat(entry.BackupPath); err != nil {
			m.logger.Warn("backup missing, skipping restore",
				"entry_id", entry.EntryID,
				"backup_path", entry.BackupPath)
			skipped++
			continue
		}
		if err := restoreFile(entry.BackupPath, entry.Filepath); err != nil {
			m.logger.Warn("restore failed",
				"entry_id", entry.EntryID,
				"filepath", entry.Filepath,
				"error", err)
			skipped++
			continue
		}
		if err := os.Remove(entry.BackupPath); err != nil && !os.IsNotExist(err) {
			m.logger.Warn("failed to delete used backup",
				"backup_path", entry.BackupPath,
				"error", err)
		}
		restored++
	}

	if err := m.hist.abandon(ctx, manifest); err != nil {
		// Files are already restored; log and continue to the state change.
		m.logger.Warn("abandoning session history failed",
			"session_id", manifest.SessionID,
			"error", err)
	}

	now := time.Now().UTC()
	prev := manifest.Status
	manifest.Status = StatusRolledBack
	if skipped > 0 {
		manifest.Status = StatusPartialRollback
	}
	manifest.CompletedAt = &now
	m.tracer.RecordStateTransition(ctx, manifest.SessionID, prev, manifest.Status, now.Sub(manifest.StartedAt))

	if opErr = m.store.Save(manifest); opErr != nil {
		return restored, fmt.Errorf("persisting manifest for %s: %w", manifest.SessionID, opErr)
	}

	decActive(ctx)
	m.logger.Info("session rolled back",
		"session_id", manifest.SessionID,
		"restored", restored,
		"skipped", skipped)
	return restored, nil
}

// LoadSession returns the persisted manifest for a session ID.
func (m *Manager) LoadSession(sessionID string) (*Manifest, error) {
	return m.store.LoadSession(sessionID)
}

// ListUncommitted returns in-progress manifests, newest first.
func (m *Manager) ListUncommitted() ([]*Manifest, error) {
	return m.store.ListUncommitted()
}

// ListAllSessions returns every persisted manifest.
func (m *Manager) ListAllSessions() ([]*Manifest, error) {
	return m.store.ListAll()
}

// CleanupOldManifests deletes the oldest completed manifests beyond
// keepCount. In-progress manifests are never deleted.
func (m *Manager) CleanupOldManifests(keepCount int) (int, error) {
	return m.store.CleanupOld(keepCount)
}

// ListSessionChanges returns the ordered change list for a session.
//
// # Description
//
// Reads from the strategy's own source of truth (the session history line
// in backend mode), so it works even when the manifest file was lost.
// Read-only.
func (m *Manager) ListSessionChanges(ctx context.Context, sessionID string) ([]Entry, error) {
	ctx, span := m.tracer.StartOp(ctx, "list_changes", sessionID)
	entries, err := m.hist.listChanges(ctx, sessionID)
	m.tracer.EndOp(span, err)
	return entries, err
}

// RollbackChange reverts a single recorded change by full or partial ID.
//
// # Description
//
// Resolution order: the persisted manifests first, then (backend mode) a
// scan of every session history line, so entries survive manifest loss. A
// prefix matching more than one entry is rejected with ErrAmbiguousEntryID.
//
// Lookup failures are errors; the revert attempt itself reports through
// the RollbackResult, including conflicts, and never partially applies.
func (m *Manager) RollbackChange(ctx context.Context, entryID string) (*RollbackResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	ctx, span := m.tracer.StartOp(ctx, "rollback_change", "")
	var opErr error
	defer func() { m.tracer.EndOp(span, opErr) }()

	manifest, entry, err := m.resolveEntry(ctx, entryID)
	if err != nil {
		opErr = err
		return nil, err
	}

	result := m.hist.revert(ctx, manifest, *entry)
	recordRevert(ctx, manifest.Status == StatusCommitted, result.Success)

	if !result.Success {
		opErr = errors.New(strings.Join(result.Errors, "; "))
	}
	m.logger.Info("change rollback finished",
		"entry_id", entry.EntryID,
		"session_id", manifest.SessionID,
		"success", result.Success,
		"restored", result.RestoredCount,
		"conflicts", len(result.Conflicts))
	return result, nil
}

// RollbackMultiple reverts several changes independently and aggregates
// the outcomes. One failure never aborts the remaining reverts.
func (m *Manager) RollbackMultiple(ctx context.Context, entryIDs []string) (*RollbackResult, error) {
	ctx, span := m.tracer.StartOp(ctx, "rollback_multiple", "")
	defer m.tracer.EndOp(span, nil)

	agg := &RollbackResult{Success: true}
	for _, id := range entryIDs {
		result, err := m.RollbackChange(ctx, id)
		if err != nil {
			agg.Success = false
			agg.FailedCount++
			agg.Errors = append(agg.Errors, fmt.Sprintf("%s: %v", id, err))
			continue
		}
		agg.merge(result)
	}
	return agg, nil
}

// GetChangeDiff returns the textual diff of one recorded change.
//
// Read-only. Fallback-mode entries have no content history and return
// ErrDiffUnavailable.
func (m *Manager) GetChangeDiff(ctx context.Context, entryID string) (string, error) {
	ctx, span := m.tracer.StartOp(ctx, "get_diff", "")
	var opErr error
	defer func() { m.tracer.EndOp(span, opErr) }()

	_, entry, err := m.resolveEntry(ctx, entryID)
	if err != nil {
		opErr = err
		return "", err
	}

	text, err := m.hist.diff(ctx, entry.EntryID)
	opErr = err
	return text, err
}

// resolveEntry finds the entry matching a full or partial ID, plus the
// manifest governing its revert semantics.
//
// When no on-disk manifest mentions the entry but the backend still has it,
// a minimal committed-view manifest is synthesized from the history line so
// the revert can proceed.
func (m *Manager) resolveEntry(ctx context.Context, idPrefix string) (*Manifest, *Entry, error) {
	if idPrefix == "" {
		return nil, nil, fmt.Errorf("%w: empty entry ID", ErrEntryNotFound)
	}

	manifests, err := m.store.ListAll()
	if err != nil {
		return nil, nil, err
	}

	var (
		foundManifest *Manifest
		foundEntry    *Entry
	)
	for _, manifest := range manifests {
		for i := range manifest.Entries {
			if !strings.HasPrefix(manifest.Entries[i].EntryID, idPrefix) {
				continue
			}
			if foundEntry != nil && foundEntry.EntryID != manifest.Entries[i].EntryID {
				return nil, nil, fmt.Errorf("%w: %s", ErrAmbiguousEntryID, idPrefix)
			}
			foundManifest = manifest
			foundEntry = &manifest.Entries[i]
		}
	}
	if foundEntry != nil {
		return foundManifest, foundEntry, nil
	}

	// Manifest lost or never written; the backend history may still know it.
	gh, ok := m.hist.(*gitHistory)
	if !ok {
		return nil, nil, fmt.Errorf("%w: %s", ErrEntryNotFound, idPrefix)
	}
	sessionID, entry, err := gh.findEntry(ctx, idPrefix)
	if err != nil {
		return nil, nil, err
	}

	if manifest, err := m.store.LoadSession(sessionID); err == nil {
		return manifest, entry, nil
	}
	// Sessions only discoverable from history have already been squashed or
	// abandoned; treat them as committed for revert-strategy selection.
	return &Manifest{
		SessionID: sessionID,
		Status:    StatusCommitted,
		Entries:   []Entry{*entry},
	}, entry, nil
}
