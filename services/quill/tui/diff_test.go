// Copyright (C) 2025 Quill Docs (maintainers@quilldocs.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package tui

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

const sampleShow = `commit abc1234
Author: quill <quill@localhost>
Date:   Sun Aug 31 10:00:00 2026 +0000

    quill: document function Save in store.go

diff --git a/store.go b/store.go
index 1111111..2222222 100644
--- a/store.go
+++ b/store.go
@@ -1,3 +1,4 @@
 package store

+// Save persists the manifest.
 func Save() error {
`

func TestRenderDiff_ParsesGitShowOutput(t *testing.T) {
	out := RenderDiff(sampleShow)
	assert.Contains(t, out, "store.go")
	assert.Contains(t, out, "Save persists the manifest.")
	assert.Contains(t, out, "@@ -1,3 +1,4 @@")
	assert.Contains(t, out, "quill: document function Save")
}

func TestRenderDiff_FallsBackOnGarbage(t *testing.T) {
	raw := "diff --git not actually parseable"
	out := RenderDiff(raw)
	assert.Contains(t, out, "not actually parseable")
}

func TestRenderDiff_HeaderOnly(t *testing.T) {
	out := RenderDiff("commit abc\n\n    quill: squash session x (0 changes)\n")
	assert.Contains(t, out, "squash session x")
}

func TestSplitDiffHeader(t *testing.T) {
	header, body := splitDiffHeader(sampleShow)
	assert.Contains(t, header, "commit abc1234")
	assert.Contains(t, body, "diff --git a/store.go")

	header, body = splitDiffHeader("--- a/x\n+++ b/x\n")
	assert.Empty(t, header)
	assert.NotEmpty(t, body)
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 10))
	assert.Equal(t, "longer...", truncate("longer-than-max", 9))
}
