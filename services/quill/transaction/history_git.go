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
	"path/filepath"
	"strings"
	"time"
)

// sessionBranchPrefix namespaces per-session history lines in the store.
const sessionBranchPrefix = "quill/session-"

// sessionBranch returns the isolated history line name for a session.
func sessionBranch(sessionID string) string {
	return sessionBranchPrefix + sessionID
}

// gitHistory is the backend-mode strategy: one preserved branch per session
// inside the shadow store, one commit per recorded change, squash-merge to
// main on commit, revert plus re-squash for individual rollback.
type gitHistory struct {
	git    *ShadowGit
	store  *Store
	logger *slog.Logger
}

func newGitHistory(git *ShadowGit, store *Store, logger *slog.Logger) *gitHistory {
	return &gitHistory{git: git, store: store, logger: logger}
}

func (h *gitHistory) mode() string { return "git" }

// begin creates (or resets, last-writer-wins) the session's isolated line
// and moves HEAD onto it without touching the work tree.
func (h *gitHistory) begin(ctx context.Context, m *Manifest) error {
	branch := sessionBranch(m.SessionID)
	if err := h.timed(ctx, "create_branch", "branch", "-f", branch, mainLine); err != nil {
		return fmt.Errorf("creating session line: %w", err)
	}
	if err := h.git.switchLine(ctx, branch); err != nil {
		return err
	}
	h.logger.Debug("session line created",
		"session_id", m.SessionID,
		"branch", branch)
	return nil
}

// record commits the current content of the entry's file as one atomic unit
// on the session line and assigns the unit's short identifier as EntryID.
//
// A path the store cannot stage (outside the work tree) degrades to a
// locally-generated ID; the entry is still appended rather than aborting
// the whole session for one bad path.
func (h *gitHistory) record(ctx context.Context, m *Manifest, e *Entry) error {
	// Always land the unit on this manifest's own line: another session may
	// have moved HEAD since the last call.
	if err := h.git.switchLine(ctx, sessionBranch(m.SessionID)); err != nil {
		return fmt.Errorf("switching to session line: %w", err)
	}

	if rel, err := filepath.Rel(h.git.root, e.Filepath); err == nil && !strings.HasPrefix(rel, "..") {
		h.ensureBaseline(ctx, m, filepath.ToSlash(rel), e.BackupPath)
	}

	if err := h.timed(ctx, "add", "add", "--", e.Filepath); err != nil {
		h.logger.Warn("file not trackable by history store, using local ID",
			"session_id", m.SessionID,
			"filepath", e.Filepath,
			"error", err)
		e.EntryID = fmt.Sprintf("%s-%04d", m.SessionID, len(m.Entries)+1)
		return nil
	}

	summary := fmt.Sprintf("document %s %s in %s", e.ItemType, e.ItemName, filepath.Base(e.Filepath))
	message := encodeChangeMessage(summary, changeMetadata{
		ItemName:   e.ItemName,
		ItemType:   e.ItemType,
		Language:   e.Language,
		Filepath:   e.Filepath,
		BackupPath: e.BackupPath,
		Timestamp:  e.Timestamp,
	})

	if err := h.timed(ctx, "commit", "commit", "--quiet", "--allow-empty", "-m", message); err != nil {
		return fmt.Errorf("recording change unit: %w", err)
	}

	id, err := h.git.output(ctx, "rev-parse", "--short", "HEAD")
	if err != nil {
		return fmt.Errorf("resolving change unit ID: %w", err)
	}
	e.EntryID = id
	return nil
}

// ensureBaseline records the file's pre-change content the first time a
// session touches a file the store has no matching snapshot of, so that
// reverting the first change unit restores the original content instead of
// deleting the file. The snapshot is built from the backup via object
// plumbing and never reads or writes the work tree.
//
// Baseline units carry no metadata payload, so listChanges skips them.
// Failures degrade to a warning: the change unit itself is still recorded.
func (h *gitHistory) ensureBaseline(ctx context.Context, m *Manifest, rel, backupPath string) {
	if backupPath == "" {
		return
	}

	blob, err := h.git.output(ctx, "hash-object", "-w", "--", backupPath)
	if err != nil {
		h.logger.Warn("baseline snapshot failed",
			"session_id", m.SessionID,
			"filepath", rel,
			"error", err)
		return
	}
	if tip, err := h.git.output(ctx, "rev-parse", "HEAD:"+rel); err == nil && tip == blob {
		return
	}

	if err := h.timed(ctx, "update_index", "update-index", "--add",
		"--cacheinfo", "100644,"+blob+","+rel); err != nil {
		h.logger.Warn("baseline snapshot failed",
			"session_id", m.SessionID,
			"filepath", rel,
			"error", err)
		return
	}

	res, err := h.git.Run(ctx, []string{"commit", "--quiet", "-m", summaryPrefix + "baseline " + rel}, false)
	if err != nil || (res.Code != 0 && !isNothingToCommit(res)) {
		h.logger.Warn("baseline unit not committed",
			"session_id", m.SessionID,
			"filepath", rel)
		return
	}
	h.logger.Debug("baseline recorded",
		"session_id", m.SessionID,
		"filepath", rel)
}

// commit squashes the session line into a single unit on main.
//
// The squash is built entirely from objects: the session tree is committed
// onto main with commit-tree and the ref advanced with update-ref. A
// work-tree merge would refuse whenever the user's live files differ from
// the store's snapshot, which is the normal state of a documentation run.
//
// The session line is preserved, not deleted: it is the detailed timeline
// that future individual reverts operate on. An empty session commits as a
// no-op and returns an empty SHA.
func (h *gitHistory) commit(ctx context.Context, m *Manifest) (string, error) {
	branch := sessionBranch(m.SessionID)

	branchTree, err := h.git.output(ctx, "rev-parse", branch+"^{tree}")
	if err != nil {
		return "", fmt.Errorf("resolving session tree: %w", err)
	}
	mainTree, err := h.git.output(ctx, "rev-parse", mainLine+"^{tree}")
	if err != nil {
		return "", fmt.Errorf("resolving main tree: %w", err)
	}
	if branchTree == mainTree {
		h.logger.Info("empty session, nothing to squash",
			"session_id", m.SessionID)
		return "", h.git.switchLine(ctx, mainLine)
	}

	mainSHA, err := h.git.output(ctx, "rev-parse", mainLine)
	if err != nil {
		return "", fmt.Errorf("resolving main line: %w", err)
	}

	message := fmt.Sprintf("%ssquash session %s (%d changes)", summaryPrefix, m.SessionID, len(m.Entries))
	start := time.Now()
	squash, err := h.git.output(ctx, "commit-tree", branchTree, "-p", mainSHA, "-m", message)
	recordGitOp(ctx, "commit_tree", time.Since(start), err)
	if err != nil {
		return "", fmt.Errorf("building squash unit: %w", err)
	}

	if err := h.timed(ctx, "update_ref", "update-ref", "refs/heads/"+mainLine, squash, mainSHA); err != nil {
		return "", fmt.Errorf("advancing main line: %w", err)
	}
	if err := h.git.switchLine(ctx, mainLine); err != nil {
		return "", err
	}

	sha, err := h.git.output(ctx, "rev-parse", "--short", squash)
	if err != nil {
		return "", fmt.Errorf("resolving squash SHA: %w", err)
	}
	return sha, nil
}

// abandon returns HEAD to main after a whole-session rollback. The session
// line is kept for auditing.
func (h *gitHistory) abandon(ctx context.Context, m *Manifest) error {
	return h.git.switchLine(ctx, mainLine)
}

// listChanges reconstructs the ordered change list from the session line.
//
// This is a read-only projection straight from backend history: it works
// even when the JSON manifest was lost. Units without a parseable quill
// metadata payload (foreign commits, squash and revert units) are silently
// skipped.
func (h *gitHistory) listChanges(ctx context.Context, sessionID string) ([]Entry, error) {
	branch := sessionBranch(sessionID)
	if !h.git.BranchExists(ctx, branch) {
		return nil, fmt.Errorf("%w: no history line for %q", ErrSessionNotFound, sessionID)
	}

	out, err := h.git.output(ctx, "log", "--reverse", "--format=%h%x1f%B%x1e", branch)
	if err != nil {
		return nil, fmt.Errorf("reading session history: %w", err)
	}

	var entries []Entry
	for _, rec := range strings.Split(out, "\x1e") {
		rec = strings.TrimSpace(rec)
		if rec == "" {
			continue
		}
		id, body, found := strings.Cut(rec, "\x1f")
		if !found {
			continue
		}
		_, md, ok := parseChangeMessage(body)
		if !ok {
			continue
		}
		entries = append(entries, Entry{
			EntryID:    strings.TrimSpace(id),
			Filepath:   md.Filepath,
			BackupPath: md.BackupPath,
			Timestamp:  md.Timestamp,
			ItemName:   md.ItemName,
			ItemType:   md.ItemType,
			Language:   md.Language,
			Success:    true,
		})
	}
	return entries, nil
}

// revert undoes exactly one change unit.
//
// Pre-squash (session in progress): the unit is reverted directly on the
// session line. Post-squash: the re-squash strategy reverts on the
// preserved session line, then produces a fresh squash-equivalent unit on
// main recording the reversal. Either way the session line survives, so
// remaining entries stay individually revertible.
//
// On conflict the operation fails closed: the revert is aborted, no file
// ends up in a partial state, and the conflicting paths are reported.
func (h *gitHistory) revert(ctx context.Context, m *Manifest, e Entry) *RollbackResult {
	result := &RollbackResult{}
	branch := sessionBranch(m.SessionID)
	postSquash := m.Status == StatusCommitted

	if !h.git.BranchExists(ctx, branch) {
		result.FailedCount = 1
		result.Errors = append(result.Errors,
			fmt.Sprintf("history line for session %s no longer exists", m.SessionID))
		return result
	}

	if err := h.git.switchLine(ctx, branch); err != nil {
		result.FailedCount = 1
		result.Errors = append(result.Errors, err.Error())
		return result
	}

	start := time.Now()
	res, err := h.git.Run(ctx, []string{"revert", "--no-commit", "--no-edit", e.EntryID}, false)
	recordGitOp(ctx, "revert", time.Since(start), err)
	if err != nil || res.Code != 0 {
		conflicts := h.git.conflictedPaths(ctx)
		if len(conflicts) == 0 {
			conflicts = overwrittenPaths(stderrOf(res))
		}
		_, _ = h.git.Run(ctx, []string{"revert", "--abort"}, false)
		if postSquash {
			_ = h.git.switchLine(ctx, mainLine)
		}
		result.FailedCount = 1
		result.Conflicts = conflicts
		result.Errors = append(result.Errors,
			fmt.Sprintf("revert of %s could not be applied cleanly", e.EntryID))
		h.logger.Warn("change revert conflicted",
			"entry_id", e.EntryID,
			"conflicts", conflicts)
		return result
	}

	// Paths the reversal touches, staged by revert --no-commit.
	affected := []string{}
	if out, err := h.git.output(ctx, "diff", "--cached", "--name-only"); err == nil && out != "" {
		affected = strings.Split(out, "\n")
	}

	message := fmt.Sprintf("%srevert %s (%s)", summaryPrefix, e.EntryID, e.ItemName)
	if err := h.timed(ctx, "commit", "commit", "--quiet", "--allow-empty", "-m", message); err != nil {
		result.FailedCount = 1
		result.Errors = append(result.Errors, err.Error())
		return result
	}

	if postSquash {
		if err := h.resquash(ctx, m, e, affected); err != nil {
			result.FailedCount = 1
			result.Errors = append(result.Errors, err.Error())
			return result
		}
	}

	result.Success = true
	result.RestoredCount = len(affected)
	h.logger.Info("change reverted",
		"entry_id", e.EntryID,
		"session_id", m.SessionID,
		"post_squash", postSquash,
		"files", len(affected))
	return result
}

// resquash regenerates the main-line squash after a revert on the detailed
// session line. The work tree already holds the reverted content (the
// revert wrote it), so main only needs the affected paths staged and a new
// squash-equivalent unit committed.
func (h *gitHistory) resquash(ctx context.Context, m *Manifest, e Entry, affected []string) error {
	if err := h.git.switchLine(ctx, mainLine); err != nil {
		return err
	}

	if len(affected) > 0 {
		args := append([]string{"add", "--"}, affected...)
		if err := h.timed(ctx, "add", args...); err != nil {
			return fmt.Errorf("staging reverted paths: %w", err)
		}
	}

	origin := m.GitCommitSHA
	if origin == "" {
		origin = "unknown"
	}
	message := fmt.Sprintf("%sre-squash session %s after revert of %s (original squash %s)",
		summaryPrefix, m.SessionID, e.EntryID, origin)
	if err := h.timed(ctx, "commit", "commit", "--quiet", "--allow-empty", "-m", message); err != nil {
		return fmt.Errorf("re-squash commit: %w", err)
	}
	return nil
}

// diff returns the unit's textual diff for human review. Read-only.
func (h *gitHistory) diff(ctx context.Context, entryID string) (string, error) {
	out, err := h.git.output(ctx, "show", entryID)
	if err != nil {
		return "", fmt.Errorf("%w: %s", ErrEntryNotFound, entryID)
	}
	return out, nil
}

// findEntry scans every session line for a unit matching the ID prefix.
//
// Used when no on-disk manifest mentions the entry (manifest lost, or
// backend is the only source of truth). Returns the owning session ID so
// the caller can synthesize a manifest view.
func (h *gitHistory) findEntry(ctx context.Context, idPrefix string) (string, *Entry, error) {
	out, err := h.git.output(ctx, "for-each-ref", "--format=%(refname:short)",
		"refs/heads/"+sessionBranchPrefix+"*")
	if err != nil || out == "" {
		return "", nil, fmt.Errorf("%w: %s", ErrEntryNotFound, idPrefix)
	}

	var (
		foundSession string
		foundEntry   *Entry
	)
	for _, branch := range strings.Split(out, "\n") {
		sessionID := strings.TrimPrefix(branch, sessionBranchPrefix)
		entries, err := h.listChanges(ctx, sessionID)
		if err != nil {
			continue
		}
		for i := range entries {
			if !strings.HasPrefix(entries[i].EntryID, idPrefix) {
				continue
			}
			if foundEntry != nil && foundEntry.EntryID != entries[i].EntryID {
				return "", nil, fmt.Errorf("%w: %s", ErrAmbiguousEntryID, idPrefix)
			}
			foundSession = sessionID
			foundEntry = &entries[i]
		}
	}

	if foundEntry == nil {
		return "", nil, fmt.Errorf("%w: %s", ErrEntryNotFound, idPrefix)
	}
	return foundSession, foundEntry, nil
}

// timed runs a git command and records its duration as a git-op metric.
func (h *gitHistory) timed(ctx context.Context, op string, args ...string) error {
	start := time.Now()
	err := h.git.silent(ctx, args...)
	recordGitOp(ctx, op, time.Since(start), err)
	return err
}

// isNothingToCommit detects git's empty-commit refusal.
func isNothingToCommit(res *CommandResult) bool {
	combined := res.Stdout + res.Stderr
	return strings.Contains(combined, "nothing to commit") ||
		strings.Contains(combined, "nothing added to commit")
}

// overwrittenPaths extracts file paths from git's "local changes would be
// overwritten" refusal, which lists each path on an indented line.
func overwrittenPaths(stderr string) []string {
	var paths []string
	for _, line := range strings.Split(stderr, "\n") {
		if strings.HasPrefix(line, "\t") {
			paths = append(paths, strings.TrimSpace(line))
		}
	}
	return paths
}
