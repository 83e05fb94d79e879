// Copyright (C) 2025 Quill Docs (maintainers@quilldocs.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package scanner

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"
)

// Extractor is one language's item extraction strategy.
type Extractor interface {
	Language() string
	Extensions() []string
	Extract(ctx context.Context, content []byte, filePath string) (*FileResult, error)
}

// defaultSkipDirs are directory names never descended into.
var defaultSkipDirs = map[string]bool{
	".git":         true,
	".quill":       true,
	"node_modules": true,
	"vendor":       true,
	"venv":         true,
	".venv":        true,
	"__pycache__":  true,
	"dist":         true,
	"build":        true,
}

// Scanner walks a project tree and extracts documentable items.
//
// # Thread Safety
//
// Safe for concurrent use; each Scan call is independent.
type Scanner struct {
	extractors  map[string]Extractor // keyed by extension
	concurrency int
	logger      *slog.Logger
}

// NewScanner creates a scanner with the Go and Python extractors registered.
func NewScanner() *Scanner {
	s := &Scanner{
		extractors:  map[string]Extractor{},
		concurrency: 8,
		logger:      slog.Default().With("component", "scanner.Scanner"),
	}
	s.Register(NewGoExtractor())
	s.Register(NewPythonExtractor())
	return s
}

// Register adds an extractor for its extensions.
func (s *Scanner) Register(e Extractor) {
	for _, ext := range e.Extensions() {
		s.extractors[ext] = e
	}
}

// Scan extracts items from every supported file under root.
//
// # Description
//
// Files are processed concurrently with a bounded errgroup. Unreadable or
// unparseable files are skipped with a warning, never failing the scan;
// only the walk itself or context cancellation aborts.
//
// Test files (_test.go, test_*.py, *_test.py) are skipped: documenting
// tests is not the audit's job.
func (s *Scanner) Scan(ctx context.Context, root string) (*ScanResult, error) {
	var paths []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != root && (defaultSkipDirs[d.Name()] || strings.HasPrefix(d.Name(), ".")) {
				return filepath.SkipDir
			}
			return nil
		}
		if _, ok := s.extractors[filepath.Ext(path)]; !ok {
			return nil
		}
		if isTestFile(d.Name()) {
			return nil
		}
		paths = append(paths, path)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walking %s: %w", root, err)
	}

	result := &ScanResult{Root: root}
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for _, path := range paths {
		g.Go(func() error {
			fr, err := s.scanFile(gctx, root, path)
			if err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				s.logger.Warn("skipping file",
					"path", path,
					"error", err)
				mu.Lock()
				result.Skipped++
				mu.Unlock()
				return nil
			}
			mu.Lock()
			result.Files = append(result.Files, *fr)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	// Deterministic output regardless of goroutine scheduling.
	sort.Slice(result.Files, func(i, j int) bool {
		return result.Files[i].File < result.Files[j].File
	})

	s.logger.Info("scan complete",
		"root", root,
		"files", len(result.Files),
		"items", len(result.Items()),
		"skipped", result.Skipped)
	return result, nil
}

func (s *Scanner) scanFile(ctx context.Context, root, path string) (*FileResult, error) {
	extractor := s.extractors[filepath.Ext(path)]

	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading file: %w", err)
	}
	if len(content) > WarnFileSize {
		s.logger.Warn("scanning large file",
			"path", path,
			"size_bytes", len(content))
	}

	rel, err := filepath.Rel(root, path)
	if err != nil {
		rel = path
	}
	return extractor.Extract(ctx, content, filepath.ToSlash(rel))
}

func isTestFile(name string) bool {
	return strings.HasSuffix(name, "_test.go") ||
		strings.HasPrefix(name, "test_") && strings.HasSuffix(name, ".py") ||
		strings.HasSuffix(name, "_test.py")
}
