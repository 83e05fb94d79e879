// Copyright (C) 2025 Quill Docs (maintainers@quilldocs.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package tui

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/QuillDocs/quill/services/quill/scoring"
	"github.com/QuillDocs/quill/services/quill/transaction"
)

// RenderPlan formats the ranked worklist as a table.
func RenderPlan(items []scoring.ScoredItem, limit int) string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("Documentation Plan"))
	b.WriteString("\n\n")
	b.WriteString(headerStyle.Render(fmt.Sprintf("%-7s %-10s %-40s %-8s %s",
		"SCORE", "KIND", "ITEM", "LINE", "FILE")))
	b.WriteString("\n")

	shown := 0
	for _, item := range items {
		if limit > 0 && shown >= limit {
			b.WriteString(dimStyle.Render(fmt.Sprintf("... and %d more\n", len(items)-shown)))
			break
		}
		b.WriteString(fmt.Sprintf("%s %-10s %-40s %-8d %s\n",
			scoreStyle.Render(fmt.Sprintf("%-7.1f", item.Score)),
			item.Kind,
			truncate(item.Name, 40),
			item.Line,
			item.File))
		shown++
	}
	return b.String()
}

// RenderCoverage formats repo and per-file coverage.
func RenderCoverage(cov scoring.Coverage) string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("Documentation Coverage"))
	b.WriteString("\n\n")

	pctStyle := addedStyle
	switch {
	case cov.Percent < 40:
		pctStyle = removedStyle
	case cov.Percent < 75:
		pctStyle = warnStyle
	}
	b.WriteString(fmt.Sprintf("Overall: %s  (%d of %d items documented)\n\n",
		pctStyle.Render(fmt.Sprintf("%.1f%%", cov.Percent)),
		cov.Documented, cov.Total))

	files := make([]string, 0, len(cov.PerFile))
	for f := range cov.PerFile {
		files = append(files, f)
	}
	sort.Strings(files)

	for _, f := range files {
		fc := cov.PerFile[f]
		b.WriteString(fmt.Sprintf("  %-50s %d/%d\n", truncate(f, 50), fc.Documented, fc.Total))
	}
	return b.String()
}

// RenderSessions formats the session list.
func RenderSessions(manifests []*transaction.Manifest) string {
	var b strings.Builder
	b.WriteString(headerStyle.Render(fmt.Sprintf("%-38s %-20s %-9s %s",
		"SESSION", "STARTED", "CHANGES", "STATUS")))
	b.WriteString("\n")

	for _, m := range manifests {
		status := string(m.Status)
		switch m.Status {
		case transaction.StatusInProgress:
			status = warnStyle.Render(status)
		case transaction.StatusCommitted:
			status = addedStyle.Render(status)
		default:
			status = removedStyle.Render(status)
		}
		b.WriteString(fmt.Sprintf("%-38s %-20s %-9d %s\n",
			m.SessionID,
			m.StartedAt.Local().Format(time.DateTime),
			m.EntryCount(),
			status))
	}
	return b.String()
}

// RenderChanges formats a session's change list.
func RenderChanges(entries []transaction.Entry) string {
	var b strings.Builder
	b.WriteString(headerStyle.Render(fmt.Sprintf("%-12s %-10s %-30s %s",
		"ENTRY", "KIND", "ITEM", "FILE")))
	b.WriteString("\n")

	for _, e := range entries {
		b.WriteString(fmt.Sprintf("%-12s %-10s %-30s %s\n",
			e.EntryID, e.ItemType, truncate(e.ItemName, 30), e.Filepath))
	}
	return b.String()
}

// RenderRollbackResult formats a rollback outcome, keeping partial results
// and conflicts visible.
func RenderRollbackResult(result *transaction.RollbackResult) string {
	var b strings.Builder
	if result.Success {
		b.WriteString(addedStyle.Render(fmt.Sprintf("✓ Restored %d file(s)", result.RestoredCount)))
	} else {
		b.WriteString(removedStyle.Render(fmt.Sprintf("✗ Rollback failed (%d restored, %d failed)",
			result.RestoredCount, result.FailedCount)))
	}
	b.WriteString("\n")

	if len(result.Conflicts) > 0 {
		b.WriteString(warnStyle.Render("Conflicting files:"))
		b.WriteString("\n")
		for _, path := range result.Conflicts {
			b.WriteString("  • " + path + "\n")
		}
	}
	for _, msg := range result.Errors {
		b.WriteString(dimStyle.Render("  " + msg))
		b.WriteString("\n")
	}
	return b.String()
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	if max < 4 {
		return s[:max]
	}
	return s[:max-3] + "..."
}
