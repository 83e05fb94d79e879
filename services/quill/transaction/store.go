// Copyright (C) 2025 Quill Docs (maintainers@quilldocs.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package transaction

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// manifestPrefix and manifestExt shape manifest file names:
// transaction-<session_id>.json.
const (
	manifestPrefix = "transaction-"
	manifestExt    = ".json"
)

// Store serializes transaction manifests to JSON files.
//
// # Description
//
// One file per session under the manifest directory. Persisted manifests
// are the durable source of truth across process restarts; in backend mode
// they are additionally a derived index into the shadow history and can be
// reconstructed from it.
//
// # Thread Safety
//
// Store methods are safe for concurrent use within one process; writes go
// through a temp file and rename so readers never observe a torn manifest.
type Store struct {
	dir    string
	logger *slog.Logger
}

// NewStore creates a manifest store rooted at dir.
func NewStore(dir string) *Store {
	return &Store{
		dir:    dir,
		logger: slog.Default().With("component", "transaction.Store"),
	}
}

// PathFor returns the manifest file path for a session ID.
func (s *Store) PathFor(sessionID string) string {
	return filepath.Join(s.dir, manifestPrefix+sessionID+manifestExt)
}

// Save serializes a manifest, creating parent directories as needed.
//
// The write is atomic: a temp file in the same directory is renamed over
// the destination.
func (s *Store) Save(m *Manifest) error {
	if err := os.MkdirAll(s.dir, 0755); err != nil {
		return fmt.Errorf("creating manifest directory: %w", err)
	}

	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling manifest: %w", err)
	}

	path := s.PathFor(m.SessionID)
	tmp, err := os.CreateTemp(s.dir, manifestPrefix+"*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp manifest: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("writing manifest: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("closing manifest: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("renaming manifest: %w", err)
	}
	return nil
}

// Load deserializes one manifest file, reconstructing entry records.
func (s *Store) Load(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading manifest: %w", err)
	}
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parsing manifest %s: %w", filepath.Base(path), err)
	}
	return &m, nil
}

// LoadSession loads the manifest for a session ID.
//
// Returns ErrSessionNotFound when no manifest file exists.
func (s *Store) LoadSession(sessionID string) (*Manifest, error) {
	path := s.PathFor(sessionID)
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, sessionID)
	}
	return s.Load(path)
}

// ListAll parses every manifest in the directory, skipping unreadable files.
//
// An absent directory yields an empty list, not an error.
func (s *Store) ListAll() ([]*Manifest, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading manifest directory: %w", err)
	}

	var manifests []*Manifest
	for _, entry := range entries {
		if entry.IsDir() || !isManifestFile(entry.Name()) {
			continue
		}
		m, err := s.Load(filepath.Join(s.dir, entry.Name()))
		if err != nil {
			s.logger.Warn("skipping unreadable manifest",
				"file", entry.Name(),
				"error", err)
			continue
		}
		manifests = append(manifests, m)
	}
	return manifests, nil
}

// ListUncommitted returns in-progress manifests, newest first by file
// modification time.
func (s *Store) ListUncommitted() ([]*Manifest, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading manifest directory: %w", err)
	}

	type dated struct {
		m     *Manifest
		mtime time.Time
	}
	var found []dated
	for _, entry := range entries {
		if entry.IsDir() || !isManifestFile(entry.Name()) {
			continue
		}
		m, err := s.Load(filepath.Join(s.dir, entry.Name()))
		if err != nil {
			s.logger.Warn("skipping unreadable manifest",
				"file", entry.Name(),
				"error", err)
			continue
		}
		if m.Status != StatusInProgress {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		found = append(found, dated{m: m, mtime: info.ModTime()})
	}

	sort.Slice(found, func(i, j int) bool {
		return found[i].mtime.After(found[j].mtime)
	})

	result := make([]*Manifest, len(found))
	for i, d := range found {
		result[i] = d.m
	}
	return result, nil
}

// CleanupOld deletes the oldest completed manifests beyond keepCount.
//
// # Description
//
// Only committed and rolled-back manifests are eligible; an in-progress
// manifest is never deleted regardless of count or age, because uncommitted
// work must stay rollback-able indefinitely.
//
// # Outputs
//
//   - int: Number of manifest files deleted.
//   - error: Non-nil only for directory read failures.
func (s *Store) CleanupOld(keepCount int) (int, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("reading manifest directory: %w", err)
	}

	type dated struct {
		path  string
		mtime time.Time
	}
	var completed []dated
	for _, entry := range entries {
		if entry.IsDir() || !isManifestFile(entry.Name()) {
			continue
		}
		path := filepath.Join(s.dir, entry.Name())
		m, err := s.Load(path)
		if err != nil {
			continue
		}
		if m.Status == StatusInProgress {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		completed = append(completed, dated{path: path, mtime: info.ModTime()})
	}

	if keepCount < 0 {
		keepCount = 0
	}
	if len(completed) <= keepCount {
		return 0, nil
	}

	// Oldest first; delete everything beyond the keep window.
	sort.Slice(completed, func(i, j int) bool {
		return completed[i].mtime.Before(completed[j].mtime)
	})

	deleted := 0
	for _, d := range completed[:len(completed)-keepCount] {
		if err := os.Remove(d.path); err != nil {
			s.logger.Warn("failed to delete old manifest",
				"path", d.path,
				"error", err)
			continue
		}
		deleted++
	}
	return deleted, nil
}

func isManifestFile(name string) bool {
	return strings.HasPrefix(name, manifestPrefix) && strings.HasSuffix(name, manifestExt)
}
