// Copyright (C) 2025 Quill Docs (maintainers@quilldocs.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package insert performs documentation insertion into source text,
// preserving indentation and replacing existing doc blocks in place.
package insert

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

var (
	// ErrLineOutOfRange is returned when the declaration line does not exist.
	ErrLineOutOfRange = errors.New("declaration line out of range")

	// ErrNoHeaderEnd is returned when a Python definition header never
	// terminates with a colon.
	ErrNoHeaderEnd = errors.New("definition header has no terminating colon")
)

// Result holds both sides of an insertion so the caller can snapshot the
// old content for transactional rollback before writing the new one.
type Result struct {
	OldContent string
	NewContent string
}

var (
	goCommentLine   = regexp.MustCompile(`^\s*//`)
	pyDocstringOpen = regexp.MustCompile(`^\s*[rbuRBU]*("""|''')`)
)

// GoDoc inserts or replaces the doc comment above the declaration at line
// (1-based). The doc text is bare prose; the comment markers and the
// declaration's indentation are applied here.
func GoDoc(content string, line int, doc string) (*Result, error) {
	lines := strings.Split(content, "\n")
	idx := line - 1
	if idx < 0 || idx >= len(lines) {
		return nil, fmt.Errorf("%w: %d", ErrLineOutOfRange, line)
	}

	indent := leadingWhitespace(lines[idx])
	var block []string
	for _, docLine := range strings.Split(strings.TrimSpace(doc), "\n") {
		docLine = strings.TrimRight(docLine, " \t")
		if docLine == "" {
			block = append(block, indent+"//")
		} else {
			block = append(block, indent+"// "+docLine)
		}
	}

	// Replace a directly-attached existing comment block.
	start := idx
	for start > 0 && goCommentLine.MatchString(lines[start-1]) {
		start--
	}

	updated := make([]string, 0, len(lines)+len(block))
	updated = append(updated, lines[:start]...)
	updated = append(updated, block...)
	updated = append(updated, lines[idx:]...)

	return &Result{OldContent: content, NewContent: strings.Join(updated, "\n")}, nil
}

// PythonDoc inserts or replaces the docstring of the def/class whose
// header starts at line (1-based). Multi-line headers are followed to the
// terminating colon; the docstring is indented one level past the header.
func PythonDoc(content string, line int, doc string) (*Result, error) {
	lines := strings.Split(content, "\n")
	idx := line - 1
	if idx < 0 || idx >= len(lines) {
		return nil, fmt.Errorf("%w: %d", ErrLineOutOfRange, line)
	}

	headerEnd, err := findHeaderEnd(lines, idx)
	if err != nil {
		return nil, err
	}

	headerIndent := leadingWhitespace(lines[idx])
	bodyIndent := headerIndent + "    "
	// Prefer the real body indentation when a body line exists.
	for i := headerEnd + 1; i < len(lines); i++ {
		if strings.TrimSpace(lines[i]) == "" {
			continue
		}
		if ws := leadingWhitespace(lines[i]); len(ws) > len(headerIndent) {
			bodyIndent = ws
		}
		break
	}

	block := buildPythonDocstring(doc, bodyIndent)

	// Replace an existing docstring when the first body statement is one.
	insertAt := headerEnd + 1
	removeTo := insertAt
	if insertAt < len(lines) && pyDocstringOpen.MatchString(lines[insertAt]) {
		removeTo = docstringEnd(lines, insertAt) + 1
	}

	updated := make([]string, 0, len(lines)+len(block))
	updated = append(updated, lines[:insertAt]...)
	updated = append(updated, block...)
	updated = append(updated, lines[removeTo:]...)

	return &Result{OldContent: content, NewContent: strings.Join(updated, "\n")}, nil
}

// findHeaderEnd locates the line index where the def/class header's colon
// closes, tracking bracket depth for multi-line signatures.
func findHeaderEnd(lines []string, start int) (int, error) {
	depth := 0
	for i := start; i < len(lines); i++ {
		for _, r := range lines[i] {
			switch r {
			case '(', '[', '{':
				depth++
			case ')', ']', '}':
				depth--
			}
		}
		trimmed := strings.TrimRight(lines[i], " \t")
		if depth <= 0 && strings.HasSuffix(trimmed, ":") {
			return i, nil
		}
	}
	return 0, fmt.Errorf("%w: line %d", ErrNoHeaderEnd, start+1)
}

// docstringEnd finds the closing line of a docstring starting at idx.
func docstringEnd(lines []string, idx int) int {
	m := pyDocstringOpen.FindStringSubmatch(lines[idx])
	quote := m[1]
	// Single-line docstring: opening and closing quotes on one line.
	rest := lines[idx][strings.Index(lines[idx], quote)+len(quote):]
	if strings.Contains(rest, quote) {
		return idx
	}
	for i := idx + 1; i < len(lines); i++ {
		if strings.Contains(lines[i], quote) {
			return i
		}
	}
	return idx
}

func buildPythonDocstring(doc, indent string) []string {
	doc = strings.TrimSpace(doc)
	docLines := strings.Split(doc, "\n")
	if len(docLines) == 1 {
		return []string{indent + `"""` + docLines[0] + `"""`}
	}

	block := []string{indent + `"""` + docLines[0]}
	for _, l := range docLines[1:] {
		l = strings.TrimRight(l, " \t")
		if l == "" {
			block = append(block, "")
		} else {
			block = append(block, indent+l)
		}
	}
	return append(block, indent+`"""`)
}

func leadingWhitespace(s string) string {
	return s[:len(s)-len(strings.TrimLeft(s, " \t"))]
}
