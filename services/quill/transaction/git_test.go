// Copyright (C) 2025 Quill Docs (maintainers@quilldocs.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package transaction

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewShadowGit_RejectsRelativePaths(t *testing.T) {
	_, err := NewShadowGit("relative", "/abs/state", time.Second)
	assert.Error(t, err)

	_, err = NewShadowGit("/abs/root", "relative", time.Second)
	assert.Error(t, err)
}

func TestNewShadowGit_DefaultsTimeout(t *testing.T) {
	g, err := NewShadowGit("/abs/root", "/abs/root/.quill/state", 0)
	require.NoError(t, err)
	assert.Equal(t, 30*time.Second, g.timeout)
}

func TestSessionBranch(t *testing.T) {
	assert.Equal(t, "quill/session-abc", sessionBranch("abc"))
}

func TestFirstArg_SkipsPinningFlags(t *testing.T) {
	args := []string{
		"--git-dir", "/root/.quill/state/.git",
		"--work-tree", "/root",
		"-c", "commit.gpgsign=false",
		"commit", "-m", "msg",
	}
	assert.Equal(t, "commit", firstArg(args))
	assert.Equal(t, "git", firstArg(nil))
}

func TestStderrOf(t *testing.T) {
	assert.Equal(t, "", stderrOf(nil))
	assert.Equal(t, "fatal: boom", stderrOf(&CommandResult{Stderr: "fatal: boom\n"}))
}

func TestIsNothingToCommit(t *testing.T) {
	assert.True(t, isNothingToCommit(&CommandResult{
		Stdout: "On branch main\nnothing to commit, working tree clean\n",
	}))
	assert.False(t, isNothingToCommit(&CommandResult{
		Stderr: "fatal: unable to write new index file\n",
	}))
}

func TestOverwrittenPaths(t *testing.T) {
	stderr := "error: your local changes to the following files would be overwritten by revert:\n" +
		"\tpkg/parser.go\n" +
		"\tinternal/config/config.go\n" +
		"Please commit your changes or stash them before you revert.\n"
	paths := overwrittenPaths(stderr)
	assert.Equal(t, []string{"pkg/parser.go", "internal/config/config.go"}, paths)

	assert.Empty(t, overwrittenPaths("fatal: bad revision 'zzz'\n"))
}

func TestTruncateForTrace(t *testing.T) {
	assert.Equal(t, "short", truncateForTrace("short", 10))
	assert.Equal(t, "abcdefg...", truncateForTrace("abcdefghijklmnop", 10))
	assert.Equal(t, "ab", truncateForTrace("abcdef", 2))
	assert.Equal(t, "", truncateForTrace("abcdef", 0))
}
