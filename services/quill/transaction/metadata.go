// Copyright (C) 2025 Quill Docs (maintainers@quilldocs.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package transaction

import (
	"fmt"
	"strconv"
	"strings"
)

// metadataVersion is the schema version written into new records.
//
// Version 0 (no Metadata-Version marker) is the legacy format and is parsed
// leniently: missing fields default to empty. Version 1 and above require
// every field; a record missing one is treated as unparseable and skipped
// during history reconstruction, never a hard failure.
const metadataVersion = 1

// summaryPrefix marks a commit as a quill record. Commits whose summary
// line does not carry it belong to someone else and are silently skipped.
const summaryPrefix = "quill: "

// changeMetadata is the structured payload embedded in each change unit's
// commit message.
type changeMetadata struct {
	ItemName   string
	ItemType   string
	Language   string
	Filepath   string
	BackupPath string
	Timestamp  string
}

// metadataFields lists the required v1 field keys in serialization order.
var metadataFields = []string{
	"item_name", "item_type", "language", "filepath", "backup_path", "timestamp",
}

// encodeChangeMessage builds the full commit message for one change unit.
//
// Wire format:
//
//	quill: <one-line summary>
//
//	Metadata-Version: 1
//	Metadata:
//	  item_name: <string>
//	  ...
func encodeChangeMessage(summary string, md changeMetadata) string {
	var b strings.Builder
	b.WriteString(summaryPrefix)
	b.WriteString(sanitizeSummary(summary))
	b.WriteString("\n\n")
	fmt.Fprintf(&b, "Metadata-Version: %d\n", metadataVersion)
	b.WriteString("Metadata:\n")
	for _, key := range metadataFields {
		fmt.Fprintf(&b, "  %s: %s\n", key, sanitizeValue(md.field(key)))
	}
	return b.String()
}

// parseChangeMessage extracts the metadata payload from a commit message.
//
// # Description
//
// Returns ok=false for anything that is not a quill change record: foreign
// commits, quill commits without a Metadata section (squash and revert
// units), and version>=1 records with missing fields. Version-0 records
// (no Metadata-Version marker) parse leniently with missing fields left
// empty.
func parseChangeMessage(message string) (summary string, md changeMetadata, ok bool) {
	lines := strings.Split(message, "\n")
	if len(lines) == 0 || !strings.HasPrefix(lines[0], summaryPrefix) {
		return "", changeMetadata{}, false
	}
	summary = strings.TrimPrefix(lines[0], summaryPrefix)

	version := 0
	inMetadata := false
	seen := map[string]string{}

	for _, line := range lines[1:] {
		switch {
		case strings.HasPrefix(line, "Metadata-Version:"):
			v, err := strconv.Atoi(strings.TrimSpace(strings.TrimPrefix(line, "Metadata-Version:")))
			if err != nil {
				return "", changeMetadata{}, false
			}
			version = v
		case strings.TrimRight(line, " ") == "Metadata:":
			inMetadata = true
		case inMetadata && strings.HasPrefix(line, "  "):
			key, value, found := strings.Cut(strings.TrimSpace(line), ":")
			if !found {
				continue
			}
			seen[strings.TrimSpace(key)] = strings.TrimSpace(value)
		case inMetadata && strings.TrimSpace(line) != "":
			inMetadata = false
		}
	}

	// No Metadata section at all: not a change record.
	if len(seen) == 0 && !containsMetadataHeader(lines) {
		return "", changeMetadata{}, false
	}

	if version >= 1 {
		for _, key := range metadataFields {
			if _, present := seen[key]; !present {
				return "", changeMetadata{}, false
			}
		}
	}

	md = changeMetadata{
		ItemName:   seen["item_name"],
		ItemType:   seen["item_type"],
		Language:   seen["language"],
		Filepath:   seen["filepath"],
		BackupPath: seen["backup_path"],
		Timestamp:  seen["timestamp"],
	}
	return summary, md, true
}

func containsMetadataHeader(lines []string) bool {
	for _, line := range lines {
		if strings.TrimRight(line, " ") == "Metadata:" {
			return true
		}
	}
	return false
}

func (m changeMetadata) field(key string) string {
	switch key {
	case "item_name":
		return m.ItemName
	case "item_type":
		return m.ItemType
	case "language":
		return m.Language
	case "filepath":
		return m.Filepath
	case "backup_path":
		return m.BackupPath
	case "timestamp":
		return m.Timestamp
	}
	return ""
}

// sanitizeSummary keeps the summary on one line.
func sanitizeSummary(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	return s
}

// sanitizeValue strips newlines so a value cannot break the line format.
func sanitizeValue(s string) string {
	return strings.ReplaceAll(s, "\n", " ")
}
