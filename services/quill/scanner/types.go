// Copyright (C) 2025 Quill Docs (maintainers@quilldocs.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package scanner extracts documentable code items from Go and Python
// sources using tree-sitter, tolerating syntax errors with partial results.
package scanner

import "errors"

// File size limits mirroring the parser's security validation.
const (
	// DefaultMaxFileSize is the maximum file size the scanner will accept (10MB).
	DefaultMaxFileSize = 10 * 1024 * 1024

	// WarnFileSize is the threshold at which a warning is logged (1MB).
	WarnFileSize = 1 * 1024 * 1024
)

var (
	// ErrFileTooLarge is returned when input content exceeds the size limit.
	ErrFileTooLarge = errors.New("file exceeds maximum size limit")

	// ErrInvalidContent is returned when content is not valid UTF-8.
	ErrInvalidContent = errors.New("content is not valid UTF-8")

	// ErrUnsupportedLanguage is returned for files no extractor handles.
	ErrUnsupportedLanguage = errors.New("unsupported language")
)

// ItemKind classifies a documentable code item.
type ItemKind string

const (
	KindFunction ItemKind = "function"
	KindMethod   ItemKind = "method"
	KindClass    ItemKind = "class"
)

// CodeItem is one documentable symbol found in a source file.
type CodeItem struct {
	// Name is the symbol name. Methods are qualified: "Receiver.Name" in Go,
	// "Class.name" in Python.
	Name string `json:"name"`

	// Kind is the item classification: function, method or class.
	Kind ItemKind `json:"kind"`

	// Language is "go" or "python".
	Language string `json:"language"`

	// File is the path of the source file, relative to the scan root.
	File string `json:"file"`

	// Line and EndLine are 1-based source positions of the declaration.
	Line    int `json:"line"`
	EndLine int `json:"end_line"`

	// Complexity is a cyclomatic-style branch count, minimum 1.
	Complexity int `json:"complexity"`

	// HasDoc reports whether the item already carries documentation.
	HasDoc bool `json:"has_doc"`

	// DocLength is the length in characters of the existing documentation.
	DocLength int `json:"doc_length"`

	// Exported reports whether the item is part of the public surface
	// (capitalized in Go, no leading underscore in Python).
	Exported bool `json:"exported"`
}

// FileResult holds the items extracted from one file.
type FileResult struct {
	File     string     `json:"file"`
	Language string     `json:"language"`
	Items    []CodeItem `json:"items"`

	// Errors lists non-fatal extraction problems (e.g. syntax errors in
	// the source). Partial items are still returned.
	Errors []string `json:"errors,omitempty"`
}

// ScanResult aggregates a directory scan.
type ScanResult struct {
	Root    string       `json:"root"`
	Files   []FileResult `json:"files"`
	Skipped int          `json:"skipped"`
}

// Items flattens all file results.
func (r *ScanResult) Items() []CodeItem {
	var items []CodeItem
	for _, f := range r.Files {
		items = append(items, f.Items...)
	}
	return items
}
