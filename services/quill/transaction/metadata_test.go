// Copyright (C) 2025 Quill Docs (maintainers@quilldocs.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package transaction

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleMetadata() changeMetadata {
	return changeMetadata{
		ItemName:   "ParseConfig",
		ItemType:   "function",
		Language:   "go",
		Filepath:   "/project/internal/config/config.go",
		BackupPath: "/project/.quill/backups/config.go.bak",
		Timestamp:  "2026-08-31T10:00:00Z",
	}
}

func TestEncodeChangeMessage_Format(t *testing.T) {
	msg := encodeChangeMessage("document function ParseConfig in config.go", sampleMetadata())

	lines := strings.Split(msg, "\n")
	require.GreaterOrEqual(t, len(lines), 9)

	assert.Equal(t, "quill: document function ParseConfig in config.go", lines[0])
	assert.Equal(t, "", lines[1])
	assert.Equal(t, "Metadata-Version: 1", lines[2])
	assert.Equal(t, "Metadata:", lines[3])
	assert.Equal(t, "  item_name: ParseConfig", lines[4])
	assert.Equal(t, "  item_type: function", lines[5])
	assert.Equal(t, "  language: go", lines[6])
}

func TestEncodeChangeMessage_SanitizesNewlines(t *testing.T) {
	md := sampleMetadata()
	md.ItemName = "evil\nMetadata-Version: 9"
	msg := encodeChangeMessage("multi\nline summary", md)

	lines := strings.Split(msg, "\n")
	assert.Equal(t, "quill: multi", lines[0])
	assert.Contains(t, msg, "  item_name: evil Metadata-Version: 9")
}

func TestParseChangeMessage_RoundTrip(t *testing.T) {
	md := sampleMetadata()
	msg := encodeChangeMessage("document function ParseConfig in config.go", md)

	summary, parsed, ok := parseChangeMessage(msg)
	require.True(t, ok)
	assert.Equal(t, "document function ParseConfig in config.go", summary)
	assert.Equal(t, md, parsed)
}

func TestParseChangeMessage_ForeignCommit(t *testing.T) {
	_, _, ok := parseChangeMessage("fix: handle nil pointer in parser\n\nSome body text.")
	assert.False(t, ok, "commits without the quill prefix must be skipped")
}

func TestParseChangeMessage_SquashUnit(t *testing.T) {
	// Squash and revert units carry the prefix but no Metadata section.
	_, _, ok := parseChangeMessage("quill: squash session abc123 (4 changes)")
	assert.False(t, ok, "quill commits without a Metadata section are not change records")
}

func TestParseChangeMessage_V1MissingFieldRejected(t *testing.T) {
	msg := "quill: document function Foo in foo.go\n\n" +
		"Metadata-Version: 1\n" +
		"Metadata:\n" +
		"  item_name: Foo\n" +
		"  item_type: function\n"
	_, _, ok := parseChangeMessage(msg)
	assert.False(t, ok, "v1 records missing required fields must be rejected")
}

func TestParseChangeMessage_V0Lenient(t *testing.T) {
	// No Metadata-Version marker: legacy format, missing fields default empty.
	msg := "quill: document function Foo in foo.go\n\n" +
		"Metadata:\n" +
		"  item_name: Foo\n" +
		"  filepath: /project/foo.go\n"
	summary, md, ok := parseChangeMessage(msg)
	require.True(t, ok)
	assert.Equal(t, "document function Foo in foo.go", summary)
	assert.Equal(t, "Foo", md.ItemName)
	assert.Equal(t, "/project/foo.go", md.Filepath)
	assert.Empty(t, md.Language)
	assert.Empty(t, md.BackupPath)
}

func TestParseChangeMessage_ValueWithColon(t *testing.T) {
	msg := "quill: document method Run in runner.go\n\n" +
		"Metadata-Version: 1\n" +
		"Metadata:\n" +
		"  item_name: Runner.Run\n" +
		"  item_type: method\n" +
		"  language: go\n" +
		"  filepath: C:/project/runner.go\n" +
		"  backup_path: C:/project/.quill/runner.go.bak\n" +
		"  timestamp: 2026-08-31T10:00:00Z\n"
	_, md, ok := parseChangeMessage(msg)
	require.True(t, ok)
	assert.Equal(t, "C:/project/runner.go", md.Filepath)
	assert.Equal(t, "2026-08-31T10:00:00Z", md.Timestamp)
}

func TestParseChangeMessage_GarbageVersion(t *testing.T) {
	msg := "quill: document function Foo in foo.go\n\n" +
		"Metadata-Version: banana\n" +
		"Metadata:\n" +
		"  item_name: Foo\n"
	_, _, ok := parseChangeMessage(msg)
	assert.False(t, ok)
}
