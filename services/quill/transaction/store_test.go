// Copyright (C) 2025 Quill Docs (maintainers@quilldocs.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package transaction

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testManifest(sessionID string, status Status) *Manifest {
	m := &Manifest{
		SessionID: sessionID,
		StartedAt: time.Date(2026, 8, 31, 10, 0, 0, 0, time.UTC),
		Entries: []Entry{
			{
				EntryID:    "abc1234",
				Filepath:   "/project/pkg/parser.go",
				BackupPath: "/project/.quill/backups/parser.go.bak",
				Timestamp:  "2026-08-31T10:01:00Z",
				ItemName:   "Parse",
				ItemType:   "function",
				Language:   "go",
				Success:    true,
			},
		},
		Status: status,
	}
	if status.Terminal() {
		done := m.StartedAt.Add(5 * time.Minute)
		m.CompletedAt = &done
	}
	return m
}

func TestStore_SaveLoadRoundTrip(t *testing.T) {
	store := NewStore(t.TempDir())
	original := testManifest("sess-1", StatusCommitted)
	original.GitCommitSHA = "deadbee"

	require.NoError(t, store.Save(original))

	loaded, err := store.LoadSession("sess-1")
	require.NoError(t, err)
	assert.Equal(t, original.SessionID, loaded.SessionID)
	assert.Equal(t, original.Status, loaded.Status)
	assert.Equal(t, original.GitCommitSHA, loaded.GitCommitSHA)
	assert.Equal(t, original.Entries, loaded.Entries)
	require.NotNil(t, loaded.CompletedAt)
	assert.True(t, original.CompletedAt.Equal(*loaded.CompletedAt))
}

func TestStore_FieldNamesOnDisk(t *testing.T) {
	dir := t.TempDir()
	store := NewStore(dir)
	require.NoError(t, store.Save(testManifest("sess-wire", StatusInProgress)))

	data, err := os.ReadFile(store.PathFor("sess-wire"))
	require.NoError(t, err)

	var raw map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(data, &raw))
	for _, key := range []string{"session_id", "started_at", "completed_at", "entries", "status"} {
		assert.Contains(t, raw, key)
	}

	var entries []map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(raw["entries"], &entries))
	require.Len(t, entries, 1)
	for _, key := range []string{"entry_id", "filepath", "backup_path", "timestamp", "item_name", "item_type", "language", "success"} {
		assert.Contains(t, entries[0], key)
	}
}

func TestStore_LoadSessionNotFound(t *testing.T) {
	store := NewStore(t.TempDir())
	_, err := store.LoadSession("no-such-session")
	assert.True(t, errors.Is(err, ErrSessionNotFound))
}

func TestStore_ListAllSkipsCorrupt(t *testing.T) {
	dir := t.TempDir()
	store := NewStore(dir)
	require.NoError(t, store.Save(testManifest("good", StatusInProgress)))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "transaction-bad.json"), []byte("{not json"), 0644))

	manifests, err := store.ListAll()
	require.NoError(t, err)
	require.Len(t, manifests, 1)
	assert.Equal(t, "good", manifests[0].SessionID)
}

func TestStore_ListAllMissingDir(t *testing.T) {
	store := NewStore(filepath.Join(t.TempDir(), "never-created"))
	manifests, err := store.ListAll()
	require.NoError(t, err)
	assert.Empty(t, manifests)
}

func TestStore_ListUncommittedNewestFirst(t *testing.T) {
	dir := t.TempDir()
	store := NewStore(dir)

	require.NoError(t, store.Save(testManifest("older", StatusInProgress)))
	require.NoError(t, store.Save(testManifest("done", StatusCommitted)))
	require.NoError(t, store.Save(testManifest("newer", StatusInProgress)))

	// Separate the mtimes explicitly; sub-second FS resolution is not a given.
	old := time.Now().Add(-1 * time.Hour)
	require.NoError(t, os.Chtimes(store.PathFor("older"), old, old))

	uncommitted, err := store.ListUncommitted()
	require.NoError(t, err)
	require.Len(t, uncommitted, 2)
	assert.Equal(t, "newer", uncommitted[0].SessionID)
	assert.Equal(t, "older", uncommitted[1].SessionID)
}

func TestStore_CleanupOldKeepsWindow(t *testing.T) {
	dir := t.TempDir()
	store := NewStore(dir)

	base := time.Now().Add(-10 * time.Hour)
	for i := 0; i < 5; i++ {
		id := fmt.Sprintf("done-%d", i)
		require.NoError(t, store.Save(testManifest(id, StatusCommitted)))
		mtime := base.Add(time.Duration(i) * time.Hour)
		require.NoError(t, os.Chtimes(store.PathFor(id), mtime, mtime))
	}

	deleted, err := store.CleanupOld(2)
	require.NoError(t, err)
	assert.Equal(t, 3, deleted)

	remaining, err := store.ListAll()
	require.NoError(t, err)
	require.Len(t, remaining, 2)

	ids := []string{remaining[0].SessionID, remaining[1].SessionID}
	assert.ElementsMatch(t, []string{"done-3", "done-4"}, ids)
}

func TestStore_CleanupOldNeverDeletesInProgress(t *testing.T) {
	dir := t.TempDir()
	store := NewStore(dir)

	require.NoError(t, store.Save(testManifest("active", StatusInProgress)))
	old := time.Now().Add(-100 * time.Hour)
	require.NoError(t, os.Chtimes(store.PathFor("active"), old, old))

	for i := 0; i < 3; i++ {
		require.NoError(t, store.Save(testManifest(fmt.Sprintf("done-%d", i), StatusRolledBack)))
	}

	deleted, err := store.CleanupOld(0)
	require.NoError(t, err)
	assert.Equal(t, 3, deleted)

	_, err = store.LoadSession("active")
	assert.NoError(t, err, "in-progress manifests are never eligible for cleanup")
}

func TestStore_CleanupOldUnderLimit(t *testing.T) {
	store := NewStore(t.TempDir())
	require.NoError(t, store.Save(testManifest("done-0", StatusCommitted)))

	deleted, err := store.CleanupOld(10)
	require.NoError(t, err)
	assert.Zero(t, deleted)
}

func TestStore_SaveIsAtomic(t *testing.T) {
	dir := t.TempDir()
	store := NewStore(dir)
	require.NoError(t, store.Save(testManifest("sess", StatusInProgress)))
	require.NoError(t, store.Save(testManifest("sess", StatusCommitted)))

	// No temp files left behind after overwriting.
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "transaction-sess.json", entries[0].Name())
}
