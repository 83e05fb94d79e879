// Copyright (C) 2025 Quill Docs (maintainers@quilldocs.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package transaction

import (
	"path/filepath"
	"time"
)

// Status represents the lifecycle state of a transaction manifest.
//
// Transitions: in_progress -> committed or rolled_back. A committed
// manifest stays committed even after individual entries are reverted.
// There is no transition out of rolled_back.
type Status string

const (
	// StatusInProgress is the initial state; entries may still be appended.
	StatusInProgress Status = "in_progress"

	// StatusCommitted means the session was squashed onto the main history
	// line. Individual entries remain revertible via the re-squash strategy.
	StatusCommitted Status = "committed"

	// StatusRolledBack means every entry was restored from its backup.
	StatusRolledBack Status = "rolled_back"

	// StatusPartialRollback means a rollback restored only a subset of
	// entries (some backups were missing).
	StatusPartialRollback Status = "partial_rollback"
)

// Terminal reports whether no further whole-session transition is allowed.
func (s Status) Terminal() bool {
	return s == StatusCommitted || s == StatusRolledBack || s == StatusPartialRollback
}

// Entry records one atomic file modification within a session.
//
// Entries are immutable once created. Reverting an entry produces a new
// reverting unit in history; the entry record itself never changes.
type Entry struct {
	// EntryID is the backend commit identifier (short form) in backend
	// mode, or a generated per-manifest sequential ID in fallback mode.
	// Stable once assigned.
	EntryID string `json:"entry_id"`

	// Filepath is the absolute path of the modified file.
	Filepath string `json:"filepath"`

	// BackupPath points at the pre-modification snapshot of the file.
	// Backups exist only until the session commits.
	BackupPath string `json:"backup_path"`

	// Timestamp is the entry creation time in ISO-8601.
	Timestamp string `json:"timestamp"`

	// ItemName is the documented symbol (function/class/method name).
	ItemName string `json:"item_name"`

	// ItemType is the kind of symbol: function, class or method.
	ItemType string `json:"item_type"`

	// Language is the source language of the documented file.
	Language string `json:"language"`

	// Success records whether the underlying file write succeeded.
	Success bool `json:"success"`
}

// Manifest is the durable record of one improve session.
//
// The entries list is append-only while the manifest is in progress.
// Commit and rollback never remove entries; they change Status and
// delete backup files.
type Manifest struct {
	SessionID   string     `json:"session_id"`
	StartedAt   time.Time  `json:"started_at"`
	CompletedAt *time.Time `json:"completed_at"`
	Entries     []Entry    `json:"entries"`
	Status      Status     `json:"status"`

	// GitCommitSHA identifies the squash unit created at commit time.
	// Empty while in progress and in fallback mode.
	GitCommitSHA string `json:"git_commit_sha,omitempty"`
}

// EntryCount returns the number of recorded entries.
func (m *Manifest) EntryCount() int {
	return len(m.Entries)
}

// FindEntry returns the entry whose ID matches id exactly, or nil.
func (m *Manifest) FindEntry(id string) *Entry {
	for i := range m.Entries {
		if m.Entries[i].EntryID == id {
			return &m.Entries[i]
		}
	}
	return nil
}

// RollbackResult aggregates the outcome of one or more entry rollbacks.
//
// Success is true only when every requested rollback succeeded. Partial
// outcomes are always visible through the counts and the conflict list;
// callers must never collapse this to a boolean when rendering.
type RollbackResult struct {
	Success       bool     `json:"success"`
	RestoredCount int      `json:"restored_count"`
	FailedCount   int      `json:"failed_count"`
	Conflicts     []string `json:"conflicts,omitempty"`
	Errors        []string `json:"errors,omitempty"`
}

// merge folds another result into r (used by RollbackMultiple).
func (r *RollbackResult) merge(other *RollbackResult) {
	r.RestoredCount += other.RestoredCount
	r.FailedCount += other.FailedCount
	r.Conflicts = append(r.Conflicts, other.Conflicts...)
	r.Errors = append(r.Errors, other.Errors...)
	r.Success = r.Success && other.Success
}

// CommandResult holds the outcome of one backend command invocation.
type CommandResult struct {
	Code   int
	Stdout string
	Stderr string
}

// Config configures a transaction Manager.
type Config struct {
	// ProjectRoot is the absolute path of the project being documented.
	// Required.
	ProjectRoot string

	// StateDir is the shadow history store root.
	// Defaults to <ProjectRoot>/.quill/state.
	StateDir string

	// ManifestDir holds one manifest JSON per session.
	// Defaults to <ProjectRoot>/.quill/session-reports/transactions.
	ManifestDir string

	// GitTimeout bounds each backend command. Defaults to 30s.
	GitTimeout time.Duration

	// MetricsEnabled controls OpenTelemetry metric recording.
	MetricsEnabled bool

	// TracingEnabled controls OpenTelemetry span creation.
	TracingEnabled bool
}

// DefaultConfig returns a Config with production defaults.
// ProjectRoot must still be set by the caller.
func DefaultConfig() Config {
	return Config{
		GitTimeout:     30 * time.Second,
		MetricsEnabled: true,
	}
}

// applyDefaults fills zero-valued fields from ProjectRoot.
func (c *Config) applyDefaults() {
	if c.StateDir == "" {
		c.StateDir = filepath.Join(c.ProjectRoot, ".quill", "state")
	}
	if c.ManifestDir == "" {
		c.ManifestDir = filepath.Join(c.ProjectRoot, ".quill", "session-reports", "transactions")
	}
	if c.GitTimeout == 0 {
		c.GitTimeout = 30 * time.Second
	}
}
