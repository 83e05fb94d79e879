// Copyright (C) 2025 Quill Docs (maintainers@quilldocs.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/QuillDocs/quill/services/quill/scanner"
	"github.com/QuillDocs/quill/services/quill/scoring"
)

func TestItemSource(t *testing.T) {
	content := "line1\nline2\nline3\nline4"

	assert.Equal(t, "line2\nline3", itemSource(content, 2, 3))
	assert.Equal(t, content, itemSource(content, 1, 4))

	// Out-of-range bounds clamp instead of panicking.
	assert.Equal(t, "line1", itemSource(content, 0, 1))
	assert.Equal(t, "line4", itemSource(content, 4, 99))
	assert.Equal(t, "line2", itemSource(content, 2, 1))
}

func TestNeedsDoc(t *testing.T) {
	undocumented := scoring.ScoredItem{CodeItem: scanner.CodeItem{HasDoc: false}}
	assert.True(t, needsDoc(undocumented))

	thin := scoring.ScoredItem{CodeItem: scanner.CodeItem{HasDoc: true, DocLength: 5}}
	assert.True(t, needsDoc(thin))

	documented := scoring.ScoredItem{CodeItem: scanner.CodeItem{HasDoc: true, DocLength: 80}}
	assert.False(t, needsDoc(documented))
}
