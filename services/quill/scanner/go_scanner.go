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
	"unicode"
	"unicode/utf8"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/golang"
)

// GoExtractor extracts documentable items from Go source files.
//
// # Thread Safety
//
// Safe for concurrent use. Each Extract call creates its own tree-sitter
// parser instance internally.
type GoExtractor struct {
	maxFileSize int64
}

// NewGoExtractor creates a Go extractor with the default size limit.
func NewGoExtractor() *GoExtractor {
	return &GoExtractor{maxFileSize: DefaultMaxFileSize}
}

func (e *GoExtractor) Language() string     { return "go" }
func (e *GoExtractor) Extensions() []string { return []string{".go"} }

// Extract parses Go source and returns its documentable items.
//
// Error-tolerant: syntactically invalid code yields partial results with
// the problem noted in FileResult.Errors rather than a hard failure.
func (e *GoExtractor) Extract(ctx context.Context, content []byte, filePath string) (*FileResult, error) {
	if int64(len(content)) > e.maxFileSize {
		return nil, fmt.Errorf("%w: size %d exceeds limit %d", ErrFileTooLarge, len(content), e.maxFileSize)
	}
	if !utf8.Valid(content) {
		return nil, fmt.Errorf("%w: %s", ErrInvalidContent, filePath)
	}

	parser := sitter.NewParser()
	parser.SetLanguage(golang.GetLanguage())

	tree, err := parser.ParseCtx(ctx, nil, content)
	if err != nil {
		return nil, fmt.Errorf("tree-sitter parse failed: %w", err)
	}
	defer tree.Close()

	result := &FileResult{File: filePath, Language: "go", Items: []CodeItem{}}
	root := tree.RootNode()
	if root == nil {
		result.Errors = append(result.Errors, "tree-sitter returned nil root node")
		return result, nil
	}
	if root.HasError() {
		result.Errors = append(result.Errors, "source contains syntax errors")
	}

	for i := 0; i < int(root.ChildCount()); i++ {
		child := root.Child(i)
		switch child.Type() {
		case "function_declaration":
			e.processFunction(root, child, content, result)
		case "method_declaration":
			e.processMethod(root, child, content, result)
		}
	}
	return result, nil
}

func (e *GoExtractor) processFunction(root, node *sitter.Node, content []byte, result *FileResult) {
	nameNode := node.ChildByFieldName("name")
	if nameNode == nil {
		return
	}
	name := string(content[nameNode.StartByte():nameNode.EndByte()])
	doc := precedingComment(root, node, content)

	result.Items = append(result.Items, CodeItem{
		Name:       name,
		Kind:       KindFunction,
		Language:   "go",
		File:       result.File,
		Line:       int(node.StartPoint().Row + 1),
		EndLine:    int(node.EndPoint().Row + 1),
		Complexity: branchComplexity(node.ChildByFieldName("body"), goBranchTypes),
		HasDoc:     doc != "",
		DocLength:  len(doc),
		Exported:   isGoExported(name),
	})
}

func (e *GoExtractor) processMethod(root, node *sitter.Node, content []byte, result *FileResult) {
	nameNode := node.ChildByFieldName("name")
	if nameNode == nil {
		return
	}
	name := string(content[nameNode.StartByte():nameNode.EndByte()])
	qualified := name
	if recv := receiverTypeName(node, content); recv != "" {
		qualified = recv + "." + name
	}
	doc := precedingComment(root, node, content)

	result.Items = append(result.Items, CodeItem{
		Name:       qualified,
		Kind:       KindMethod,
		Language:   "go",
		File:       result.File,
		Line:       int(node.StartPoint().Row + 1),
		EndLine:    int(node.EndPoint().Row + 1),
		Complexity: branchComplexity(node.ChildByFieldName("body"), goBranchTypes),
		HasDoc:     doc != "",
		DocLength:  len(doc),
		Exported:   isGoExported(name),
	})
}

// receiverTypeName resolves the receiver's base type name, stripping
// pointers and type parameters: "(s *Store[T])" yields "Store".
func receiverTypeName(node *sitter.Node, content []byte) string {
	recv := node.ChildByFieldName("receiver")
	if recv == nil {
		return ""
	}
	text := string(content[recv.StartByte():recv.EndByte()])
	text = strings.Trim(text, "()")
	fields := strings.Fields(text)
	if len(fields) == 0 {
		return ""
	}
	typ := fields[len(fields)-1]
	typ = strings.TrimLeft(typ, "*")
	if i := strings.IndexByte(typ, '['); i >= 0 {
		typ = typ[:i]
	}
	return typ
}

// goBranchTypes are the node types that add a decision point.
var goBranchTypes = map[string]bool{
	"if_statement":                true,
	"for_statement":               true,
	"expression_switch_statement": true,
	"type_switch_statement":       true,
	"select_statement":            true,
	"expression_case":             true,
	"type_case":                   true,
	"communication_case":          true,
}

// precedingComment finds a comment ending on the line directly above node.
func precedingComment(root, node *sitter.Node, content []byte) string {
	if node == nil {
		return ""
	}
	nodeStartLine := int(node.StartPoint().Row)

	var doc []string
	// Walk preceding comment siblings upward to capture multi-line // blocks.
	wantLine := nodeStartLine - 1
	for i := int(root.ChildCount()) - 1; i >= 0; i-- {
		sibling := root.Child(i)
		if sibling.Type() != "comment" {
			continue
		}
		endLine := int(sibling.EndPoint().Row)
		if endLine != wantLine {
			continue
		}
		doc = append([]string{strings.TrimSpace(string(content[sibling.StartByte():sibling.EndByte()]))}, doc...)
		wantLine = int(sibling.StartPoint().Row) - 1
	}
	return strings.Join(doc, "\n")
}

// branchComplexity counts decision points in a subtree, minimum 1.
func branchComplexity(body *sitter.Node, branchTypes map[string]bool) int {
	if body == nil {
		return 1
	}
	count := 1
	var walk func(n *sitter.Node)
	walk = func(n *sitter.Node) {
		if branchTypes[n.Type()] {
			count++
		}
		for i := 0; i < int(n.ChildCount()); i++ {
			walk(n.Child(i))
		}
	}
	walk(body)
	return count
}

func isGoExported(name string) bool {
	r, _ := utf8.DecodeRuneInString(name)
	return unicode.IsUpper(r)
}
