// Copyright (C) 2025 Quill Docs (maintainers@quilldocs.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package transaction tracks documentation edits as atomically-revertible
// units with a side-car git history store isolated from the user's own
// repository.
//
// Every improve session maps to one Manifest. In backend mode each recorded
// edit becomes one commit on a preserved per-session branch inside
// <root>/.quill/state; committing a session squash-merges that branch onto
// the store's main line while keeping the branch alive, which is what makes
// post-squash rollback of individual entries possible (the re-squash
// strategy). When git is not installed the Manager degrades to a JSON-only
// fallback with the same external contract.
//
// # Isolation
//
// Every mutating git command pins both --git-dir and --work-tree explicitly.
// The shadow store must never be discovered ambiently: an ambient lookup
// from a nested working directory could resolve to the user's own .git one
// level up and corrupt it.
//
// # Concurrency
//
// The Manager is safe for concurrent use within one process. Two processes
// operating on the same project root are NOT coordinated; the shadow store
// has no lock file and concurrent access fails loudly on git's own ref
// locks. This is a documented limitation, not a guarantee.
package transaction

import "errors"

// Sentinel errors for transaction operations.
var (
	// ErrInvalidTransition is returned when an operation is attempted on a
	// manifest in a state that forbids it, e.g. rolling back a committed
	// session. The operation has no side effects.
	ErrInvalidTransition = errors.New("invalid manifest state transition")

	// ErrSessionNotFound is returned when neither a manifest file nor a
	// backend session branch exists for the requested session ID.
	ErrSessionNotFound = errors.New("session not found")

	// ErrEntryNotFound is returned when no recorded change matches the
	// requested entry ID (full or partial).
	ErrEntryNotFound = errors.New("entry not found")

	// ErrAmbiguousEntryID is returned when a partial entry ID matches more
	// than one recorded change. The caller must disambiguate.
	ErrAmbiguousEntryID = errors.New("entry ID is ambiguous")

	// ErrBackendUnavailable is returned by operations that strictly require
	// the git backend (e.g. post-commit individual rollback) when the
	// Manager is running in JSON fallback mode.
	ErrBackendUnavailable = errors.New("history backend unavailable")

	// ErrDiffUnavailable is returned when no content history exists for an
	// entry, which is the case for fallback-mode entries.
	ErrDiffUnavailable = errors.New("no content history for entry")
)
