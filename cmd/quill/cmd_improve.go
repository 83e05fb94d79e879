// Copyright (C) 2025 Quill Docs (maintainers@quilldocs.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/QuillDocs/quill/services/quill/config"
	"github.com/QuillDocs/quill/services/quill/insert"
	"github.com/QuillDocs/quill/services/quill/llm"
	"github.com/QuillDocs/quill/services/quill/scoring"
	"github.com/QuillDocs/quill/services/quill/session"
	"github.com/QuillDocs/quill/services/quill/transaction"
	"github.com/QuillDocs/quill/services/quill/tui"
)

// =============================================================================
// COMMAND FLAGS
// =============================================================================

var (
	improveLimit    int  // Max items to document this run (0 = config default)
	improveDryRun   bool // Show what would be documented without writing
	improveNoCommit bool // Leave the session open for review
)

func init() {
	improveCmd.Flags().IntVarP(&improveLimit, "limit", "n", 0,
		"Document at most this many items (default: max_items_per_run from config)")
	improveCmd.Flags().BoolVar(&improveDryRun, "dry-run", false,
		"Show the selected items without generating or writing anything")
	improveCmd.Flags().BoolVar(&improveNoCommit, "no-commit", false,
		"Leave the session in progress so it can be reviewed and rolled back wholesale")
}

// =============================================================================
// COMMAND IMPLEMENTATION
// =============================================================================

// runImproveCommand documents the highest-impact gaps inside a session.
//
// # Description
//
// Consumes the latest plan snapshot (or scans fresh when none matches the
// project), selects the top items, and for each one generates documentation
// and inserts it into the source file. Every write is preceded by a backup
// and recorded in the transaction manifest, so the whole run can be rolled
// back while in progress and individual changes can be reverted after
// commit. Generation failures skip the item; they never abort the run.
func runImproveCommand(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	root := mustRoot()
	cfg, err := loadConfig(root)
	if err != nil {
		return err
	}

	worklist, coverage, err := loadWorklist(ctx, root, cfg)
	if err != nil {
		return err
	}
	if len(worklist) == 0 {
		fmt.Println("Nothing to document: coverage is complete.")
		return nil
	}

	limit := improveLimit
	if limit <= 0 || limit > cfg.MaxItemsPerRun {
		limit = cfg.MaxItemsPerRun
	}
	if len(worklist) > limit {
		worklist = worklist[:limit]
	}

	if improveDryRun {
		fmt.Print(tui.RenderPlan(worklist, 0))
		fmt.Printf("\nDry run: %d item(s) selected, nothing written.\n", len(worklist))
		return nil
	}

	generator, err := llm.NewClient(
		llm.WithModel(cfg.Model),
		llm.WithRateLimit(cfg.RequestsPerSecond),
	)
	if err != nil {
		return err
	}

	manager, err := newManager(ctx, root, cfg)
	if err != nil {
		return fmt.Errorf("initializing transaction manager: %w", err)
	}
	if !manager.BackendMode() {
		fmt.Println(tui.Warn("git unavailable: falling back to JSON backups " +
			"(session rollback only, no per-change revert)"))
	}

	manifest, err := manager.Begin(ctx, "")
	if err != nil {
		return fmt.Errorf("beginning session: %w", err)
	}
	fmt.Printf("Session %s started (%d item(s) selected)\n\n",
		manifest.SessionID, len(worklist))

	documented := documentItems(ctx, root, manager, manifest, generator, worklist)

	snap := &session.Snapshot{
		ID:        "improve-" + manifest.SessionID,
		Phase:     session.PhaseImprove,
		CreatedAt: time.Now().UTC(),
		Root:      root,
		Items:     worklist,
		Done:      documented,
		Coverage:  coverage,
	}
	if err := session.NewStore(reportsDirFor(root)).Save(snap); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: saving improve snapshot: %v\n", err)
	}

	if improveNoCommit {
		fmt.Printf("\nSession %s left in progress (%d/%d documented).\n",
			manifest.SessionID, len(documented), len(worklist))
		fmt.Printf("Review with `quill changes %s`, then roll back with "+
			"`quill rollback session %s` if unwanted.\n",
			manifest.SessionID, manifest.SessionID)
		return nil
	}

	if err := manager.Commit(ctx, manifest); err != nil {
		return fmt.Errorf("committing session %s: %w", manifest.SessionID, err)
	}
	fmt.Printf("\nSession %s committed: %d/%d item(s) documented.\n",
		manifest.SessionID, len(documented), len(worklist))
	if len(documented) > 0 {
		fmt.Printf("Individual changes can still be reverted: `quill changes %s`.\n",
			manifest.SessionID)
	}
	return nil
}

// loadWorklist returns the items to document, preferring the latest plan
// snapshot for this project over a fresh scan. A snapshot for a different
// root is stale and ignored.
func loadWorklist(ctx context.Context, root string, cfg config.Config) ([]scoring.ScoredItem, scoring.Coverage, error) {
	store := session.NewStore(reportsDirFor(root))
	if snap, err := store.Latest(session.PhasePlan); err == nil && snap.Root == root {
		return snap.Items, snap.Coverage, nil
	} else if err != nil && !errors.Is(err, session.ErrSnapshotNotFound) {
		return nil, scoring.Coverage{}, err
	}

	ranked, coverage, err := scanAndRank(ctx, root, cfg)
	if err != nil {
		return nil, scoring.Coverage{}, fmt.Errorf("scanning %s: %w", root, err)
	}
	var worklist []scoring.ScoredItem
	for _, item := range ranked {
		if needsDoc(item) {
			worklist = append(worklist, item)
		}
	}
	return worklist, coverage, nil
}

// documentItems generates and writes documentation for each selected item,
// returning the worklist indexes that succeeded.
//
// Items are grouped per file and inserted bottom-up so earlier insertions
// never shift the line numbers of later ones.
func documentItems(ctx context.Context, root string, manager *transaction.Manager,
	manifest *transaction.Manifest, generator llm.Generator,
	worklist []scoring.ScoredItem) []int {

	byFile := map[string][]int{}
	for i, item := range worklist {
		byFile[item.File] = append(byFile[item.File], i)
	}
	files := make([]string, 0, len(byFile))
	for f := range byFile {
		files = append(files, f)
	}
	sort.Strings(files)

	var documented []int
	seq := 0
	for _, file := range files {
		indexes := byFile[file]
		sort.Slice(indexes, func(a, b int) bool {
			return worklist[indexes[a]].Line > worklist[indexes[b]].Line
		})

		for _, i := range indexes {
			if ctx.Err() != nil {
				return documented
			}
			seq++
			item := worklist[i]
			if err := documentOne(ctx, root, manager, manifest, generator, item, seq); err != nil {
				fmt.Fprintf(os.Stderr, "  skip %s (%s): %v\n", item.Name, item.File, err)
				continue
			}
			fmt.Printf("  %s %s %s  %s:%d\n",
				tui.Success("✓"), item.Kind, item.Name, item.File, item.Line)
			documented = append(documented, i)
		}
	}
	return documented
}

// documentOne generates documentation for a single item and writes it under
// transactional protection: backup first, then the new content, then the
// manifest record.
func documentOne(ctx context.Context, root string, manager *transaction.Manager,
	manifest *transaction.Manifest, generator llm.Generator,
	item scoring.ScoredItem, seq int) error {

	absPath := filepath.Join(root, item.File)
	content, err := os.ReadFile(absPath)
	if err != nil {
		return fmt.Errorf("reading source: %w", err)
	}

	doc, err := generator.GenerateDoc(ctx, llm.DocRequest{
		ItemName: item.Name,
		ItemType: string(item.Kind),
		Language: item.Language,
		Source:   itemSource(string(content), item.Line, item.EndLine),
	})
	if err != nil {
		return fmt.Errorf("generating doc: %w", err)
	}

	var result *insert.Result
	switch item.Language {
	case "python":
		result, err = insert.PythonDoc(string(content), item.Line, doc)
	default:
		result, err = insert.GoDoc(string(content), item.Line, doc)
	}
	if err != nil {
		return fmt.Errorf("inserting doc: %w", err)
	}

	backupPath := filepath.Join(backupDirFor(root, manifest.SessionID),
		fmt.Sprintf("%04d-%s", seq, filepath.Base(item.File)))
	if err := os.MkdirAll(filepath.Dir(backupPath), 0755); err != nil {
		return fmt.Errorf("creating backup directory: %w", err)
	}
	if err := os.WriteFile(backupPath, []byte(result.OldContent), 0644); err != nil {
		return fmt.Errorf("writing backup: %w", err)
	}
	if err := os.WriteFile(absPath, []byte(result.NewContent), 0644); err != nil {
		return fmt.Errorf("writing source: %w", err)
	}

	_, err = manager.RecordWrite(ctx, manifest, item.File, backupPath,
		item.Name, string(item.Kind), item.Language)
	if err != nil {
		return fmt.Errorf("recording change: %w", err)
	}
	return nil
}

// itemSource slices the item's declaration out of the file content for the
// generation prompt. Lines are 1-based and inclusive.
func itemSource(content string, line, endLine int) string {
	lines := strings.Split(content, "\n")
	if line < 1 {
		line = 1
	}
	if endLine > len(lines) {
		endLine = len(lines)
	}
	if endLine < line {
		endLine = line
	}
	return strings.Join(lines[line-1:endLine], "\n")
}
