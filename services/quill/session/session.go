// Copyright (C) 2025 Quill Docs (maintainers@quilldocs.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package session persists audit and improve run snapshots so interrupted
// workflows can resume where they left off.
package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/QuillDocs/quill/services/quill/scoring"
)

// ErrSnapshotNotFound is returned when no snapshot exists for an ID.
var ErrSnapshotNotFound = errors.New("snapshot not found")

// Phase identifies which workflow stage produced a snapshot.
type Phase string

const (
	PhaseAudit   Phase = "audit"
	PhasePlan    Phase = "plan"
	PhaseImprove Phase = "improve"
)

// Snapshot is one persisted workflow state.
type Snapshot struct {
	ID        string    `json:"id"`
	Phase     Phase     `json:"phase"`
	CreatedAt time.Time `json:"created_at"`
	Root      string    `json:"root"`

	// Items is the ranked worklist the phase operated on.
	Items []scoring.ScoredItem `json:"items"`

	// Done marks ranked-item indexes already processed, enabling resume.
	Done []int `json:"done,omitempty"`

	// Coverage at snapshot time, for before/after reporting.
	Coverage scoring.Coverage `json:"coverage"`
}

// Remaining returns the indexes not yet processed, in rank order.
func (s *Snapshot) Remaining() []int {
	done := make(map[int]bool, len(s.Done))
	for _, i := range s.Done {
		done[i] = true
	}
	var remaining []int
	for i := range s.Items {
		if !done[i] {
			remaining = append(remaining, i)
		}
	}
	return remaining
}

// Store persists snapshots under a reports directory.
type Store struct {
	dir    string
	logger *slog.Logger
}

// NewStore creates a snapshot store rooted at dir
// (normally <root>/.quill/session-reports).
func NewStore(dir string) *Store {
	return &Store{
		dir:    dir,
		logger: slog.Default().With("component", "session.Store"),
	}
}

func (s *Store) pathFor(id string) string {
	return filepath.Join(s.dir, id+".json")
}

// Save writes a snapshot atomically (temp file plus rename).
func (s *Store) Save(snap *Snapshot) error {
	if snap.ID == "" {
		return errors.New("snapshot ID is required")
	}
	if err := os.MkdirAll(s.dir, 0755); err != nil {
		return fmt.Errorf("creating reports directory: %w", err)
	}

	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling snapshot: %w", err)
	}

	tmp, err := os.CreateTemp(s.dir, snap.ID+"-*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp snapshot: %w", err)
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("writing snapshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("closing snapshot: %w", err)
	}
	if err := os.Rename(tmpPath, s.pathFor(snap.ID)); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("renaming snapshot: %w", err)
	}
	return nil
}

// Load reads one snapshot by ID.
func (s *Store) Load(id string) (*Snapshot, error) {
	data, err := os.ReadFile(s.pathFor(id))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrSnapshotNotFound, id)
		}
		return nil, fmt.Errorf("reading snapshot: %w", err)
	}
	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("parsing snapshot %s: %w", id, err)
	}
	return &snap, nil
}

// Latest returns the newest snapshot for a phase, or ErrSnapshotNotFound.
func (s *Store) Latest(phase Phase) (*Snapshot, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: no %s snapshots", ErrSnapshotNotFound, phase)
		}
		return nil, fmt.Errorf("reading reports directory: %w", err)
	}

	var candidates []*Snapshot
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		snap, err := s.Load(strings.TrimSuffix(entry.Name(), ".json"))
		if err != nil {
			s.logger.Warn("skipping unreadable snapshot",
				"file", entry.Name(),
				"error", err)
			continue
		}
		if snap.Phase == phase {
			candidates = append(candidates, snap)
		}
	}
	if len(candidates) == 0 {
		return nil, fmt.Errorf("%w: no %s snapshots", ErrSnapshotNotFound, phase)
	}

	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].CreatedAt.After(candidates[j].CreatedAt)
	})
	return candidates[0], nil
}
