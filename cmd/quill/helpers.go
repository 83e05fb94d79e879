// Copyright (C) 2025 Quill Docs (maintainers@quilldocs.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/QuillDocs/quill/services/quill/config"
	"github.com/QuillDocs/quill/services/quill/scanner"
	"github.com/QuillDocs/quill/services/quill/scoring"
	"github.com/QuillDocs/quill/services/quill/transaction"
)

// mustRoot resolves the project root from the --root flag or the working
// directory, always as an absolute path.
func mustRoot() string {
	root := projectRoot
	if root == "" {
		cwd, err := os.Getwd()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: cannot determine working directory: %v\n", err)
			os.Exit(1)
		}
		root = cwd
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: invalid project root %q: %v\n", root, err)
		os.Exit(1)
	}
	return abs
}

func logDirFor(root string) string {
	return filepath.Join(root, ".quill", "logs")
}

func reportsDirFor(root string) string {
	return filepath.Join(root, ".quill", "session-reports")
}

func backupDirFor(root, sessionID string) string {
	return filepath.Join(root, ".quill", "backups", sessionID)
}

// loadConfig reads the project config with defaults.
func loadConfig(root string) (config.Config, error) {
	return config.Load(root)
}

// newManager builds the transaction manager for a project, selecting the
// git backend when available and falling back to JSON backups otherwise.
func newManager(ctx context.Context, root string, cfg config.Config) (*transaction.Manager, error) {
	tc := transaction.DefaultConfig()
	tc.ProjectRoot = root
	tc.GitTimeout = cfg.GitTimeout
	tc.MetricsEnabled = cfg.MetricsEnabled
	tc.TracingEnabled = cfg.TracingEnabled
	return transaction.NewManager(ctx, tc)
}

// scanAndRank walks the project and returns items ranked by impact,
// with repo-wide coverage.
func scanAndRank(ctx context.Context, root string, cfg config.Config) ([]scoring.ScoredItem, scoring.Coverage, error) {
	result, err := scanner.NewScanner().Scan(ctx, root)
	if err != nil {
		return nil, scoring.Coverage{}, err
	}

	items := result.Items()
	if cfg.OnlyExported {
		filtered := items[:0]
		for _, item := range items {
			if item.Exported {
				filtered = append(filtered, item)
			}
		}
		items = filtered
	}

	return scoring.Rank(items, scoring.DefaultWeights()), scoring.Summarize(items), nil
}

// needsDoc reports whether an item is worth documenting: no doc at all,
// or one thinner than the scoring threshold.
func needsDoc(item scoring.ScoredItem) bool {
	if !item.HasDoc {
		return true
	}
	return item.DocLength < scoring.DefaultWeights().ThinDocLength
}
