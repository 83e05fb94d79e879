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
	"strings"
	"unicode/utf8"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/python"
)

// PythonExtractor extracts documentable items from Python source files.
//
// # Thread Safety
//
// Safe for concurrent use. Each Extract call creates its own tree-sitter
// parser instance internally.
type PythonExtractor struct {
	maxFileSize int64
}

// NewPythonExtractor creates a Python extractor with the default size limit.
func NewPythonExtractor() *PythonExtractor {
	return &PythonExtractor{maxFileSize: DefaultMaxFileSize}
}

func (e *PythonExtractor) Language() string     { return "python" }
func (e *PythonExtractor) Extensions() []string { return []string{".py"} }

// Extract parses Python source and returns its documentable items:
// top-level functions, classes, and methods nested one level inside a
// class body. Error-tolerant like the Go extractor.
func (e *PythonExtractor) Extract(ctx context.Context, content []byte, filePath string) (*FileResult, error) {
	if int64(len(content)) > e.maxFileSize {
		return nil, fmt.Errorf("%w: size %d exceeds limit %d", ErrFileTooLarge, len(content), e.maxFileSize)
	}
	if !utf8.Valid(content) {
		return nil, fmt.Errorf("%w: %s", ErrInvalidContent, filePath)
	}

	parser := sitter.NewParser()
	parser.SetLanguage(python.GetLanguage())

	tree, err := parser.ParseCtx(ctx, nil, content)
	if err != nil {
		return nil, fmt.Errorf("tree-sitter parse failed: %w", err)
	}
	defer tree.Close()

	result := &FileResult{File: filePath, Language: "python", Items: []CodeItem{}}
	root := tree.RootNode()
	if root == nil {
		result.Errors = append(result.Errors, "tree-sitter returned nil root node")
		return result, nil
	}
	if root.HasError() {
		result.Errors = append(result.Errors, "source contains syntax errors")
	}

	e.walkScope(root, content, result, "", 0)
	return result, nil
}

// walkScope collects definitions in one scope. className is non-empty when
// walking a class body, which turns function definitions into methods.
func (e *PythonExtractor) walkScope(scope *sitter.Node, content []byte, result *FileResult, className string, depth int) {
	for i := 0; i < int(scope.ChildCount()); i++ {
		child := scope.Child(i)
		node := child
		// async def wraps the function_definition in a decorated/async node.
		if child.Type() == "decorated_definition" {
			if def := child.ChildByFieldName("definition"); def != nil {
				node = def
			}
		}

		switch node.Type() {
		case "function_definition":
			e.processFunction(node, content, result, className)
		case "class_definition":
			// Methods beyond one class level are out of scope.
			if className != "" || depth > 0 {
				continue
			}
			e.processClass(node, content, result)
		}
	}
}

func (e *PythonExtractor) processFunction(node *sitter.Node, content []byte, result *FileResult, className string) {
	nameNode := node.ChildByFieldName("name")
	if nameNode == nil {
		return
	}
	name := string(content[nameNode.StartByte():nameNode.EndByte()])

	kind := KindFunction
	qualified := name
	if className != "" {
		kind = KindMethod
		qualified = className + "." + name
	}

	doc := bodyDocstring(node.ChildByFieldName("body"), content)
	result.Items = append(result.Items, CodeItem{
		Name:       qualified,
		Kind:       kind,
		Language:   "python",
		File:       result.File,
		Line:       int(node.StartPoint().Row + 1),
		EndLine:    int(node.EndPoint().Row + 1),
		Complexity: branchComplexity(node.ChildByFieldName("body"), pythonBranchTypes),
		HasDoc:     doc != "",
		DocLength:  len(doc),
		Exported:   isPythonPublic(name),
	})
}

func (e *PythonExtractor) processClass(node *sitter.Node, content []byte, result *FileResult) {
	nameNode := node.ChildByFieldName("name")
	if nameNode == nil {
		return
	}
	name := string(content[nameNode.StartByte():nameNode.EndByte()])
	body := node.ChildByFieldName("body")

	doc := bodyDocstring(body, content)
	result.Items = append(result.Items, CodeItem{
		Name:       name,
		Kind:       KindClass,
		Language:   "python",
		File:       result.File,
		Line:       int(node.StartPoint().Row + 1),
		EndLine:    int(node.EndPoint().Row + 1),
		Complexity: 1,
		HasDoc:     doc != "",
		DocLength:  len(doc),
		Exported:   isPythonPublic(name),
	})

	if body != nil {
		e.walkScope(body, content, result, name, 1)
	}
}

// pythonBranchTypes are the node types that add a decision point.
var pythonBranchTypes = map[string]bool{
	"if_statement":           true,
	"elif_clause":            true,
	"for_statement":          true,
	"while_statement":        true,
	"try_statement":          true,
	"except_clause":          true,
	"conditional_expression": true,
	"match_statement":        true,
	"case_clause":            true,
}

// bodyDocstring returns the docstring when the body's first statement is a
// bare string literal.
func bodyDocstring(body *sitter.Node, content []byte) string {
	if body == nil || body.ChildCount() == 0 {
		return ""
	}
	first := body.Child(0)
	if first.Type() != "expression_statement" || first.ChildCount() == 0 {
		return ""
	}
	expr := first.Child(0)
	if expr.Type() != "string" {
		return ""
	}
	text := string(content[expr.StartByte():expr.EndByte()])
	return strings.Trim(text, "\"'rbuRBU")
}

// isPythonPublic treats leading-underscore names as private. Dunder methods
// count as private too: documenting __init__ is rarely the gap that matters.
func isPythonPublic(name string) bool {
	return !strings.HasPrefix(name, "_")
}
