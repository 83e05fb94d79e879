// Copyright (C) 2025 Quill Docs (maintainers@quilldocs.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package tui

import (
	"fmt"
	"strings"

	"github.com/sourcegraph/go-diff/diff"
)

// RenderDiff colorizes a unified diff for terminal display.
//
// # Description
//
// The input is raw `git show` output: a commit header followed by one or
// more file diffs. The header is rendered dimmed; each file diff is parsed
// with go-diff and colorized per line. Unparseable input falls back to the
// raw text so the user always sees something.
func RenderDiff(raw string) string {
	header, body := splitDiffHeader(raw)

	var b strings.Builder
	if header != "" {
		b.WriteString(dimStyle.Render(header))
		b.WriteString("\n")
	}
	if body == "" {
		return b.String()
	}

	// ParseMultiFileDiff reports garbage as zero file diffs with a nil
	// error, so an empty result falls back to the raw text too.
	fileDiffs, err := diff.ParseMultiFileDiff([]byte(body))
	if err != nil || len(fileDiffs) == 0 {
		b.WriteString(body)
		return b.String()
	}

	for i, fd := range fileDiffs {
		if i > 0 {
			b.WriteString("\n")
		}
		b.WriteString(renderFileDiff(fd))
	}
	return b.String()
}

// splitDiffHeader separates the commit header from the first file diff.
func splitDiffHeader(raw string) (header, body string) {
	if i := strings.Index(raw, "diff --git"); i >= 0 {
		return strings.TrimRight(raw[:i], "\n"), raw[i:]
	}
	if strings.HasPrefix(raw, "--- ") || strings.HasPrefix(raw, "diff ") {
		return "", raw
	}
	return strings.TrimRight(raw, "\n"), ""
}

func renderFileDiff(fd *diff.FileDiff) string {
	var b strings.Builder

	name := strings.TrimPrefix(fd.NewName, "b/")
	if name == "/dev/null" {
		name = strings.TrimPrefix(fd.OrigName, "a/") + " (deleted)"
	}
	added, removed := fileDiffStats(fd)
	b.WriteString(fmt.Sprintf("%s  %s %s\n",
		titleStyle.Render(name),
		addedStyle.Render(fmt.Sprintf("+%d", added)),
		removedStyle.Render(fmt.Sprintf("-%d", removed))))

	for _, hunk := range fd.Hunks {
		b.WriteString(hunkHeaderStyle.Render(fmt.Sprintf("@@ -%d,%d +%d,%d @@",
			hunk.OrigStartLine, hunk.OrigLines, hunk.NewStartLine, hunk.NewLines)))
		b.WriteString("\n")

		for _, line := range strings.Split(strings.TrimRight(string(hunk.Body), "\n"), "\n") {
			switch {
			case strings.HasPrefix(line, "+"):
				b.WriteString(addedStyle.Render(line))
			case strings.HasPrefix(line, "-"):
				b.WriteString(removedStyle.Render(line))
			default:
				b.WriteString(contextStyle.Render(line))
			}
			b.WriteString("\n")
		}
	}
	return b.String()
}

func fileDiffStats(fd *diff.FileDiff) (added, removed int) {
	for _, hunk := range fd.Hunks {
		for _, line := range strings.Split(string(hunk.Body), "\n") {
			switch {
			case strings.HasPrefix(line, "+"):
				added++
			case strings.HasPrefix(line, "-"):
				removed++
			}
		}
	}
	return added, removed
}
