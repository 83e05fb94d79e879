// Copyright (C) 2025 Quill Docs (maintainers@quilldocs.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package insert

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGoDoc_InsertAboveFunction(t *testing.T) {
	src := "package lib\n\nfunc Save() error {\n\treturn nil\n}\n"

	res, err := GoDoc(src, 3, "Save persists the manifest.")
	require.NoError(t, err)
	assert.Equal(t, src, res.OldContent)
	assert.Equal(t,
		"package lib\n\n// Save persists the manifest.\nfunc Save() error {\n\treturn nil\n}\n",
		res.NewContent)
}

func TestGoDoc_MultiLineWithBlank(t *testing.T) {
	src := "package lib\n\nfunc Save() error {\n\treturn nil\n}\n"

	res, err := GoDoc(src, 3, "Save persists the manifest.\n\nIt is atomic.")
	require.NoError(t, err)
	assert.Contains(t, res.NewContent,
		"// Save persists the manifest.\n//\n// It is atomic.\nfunc Save()")
}

func TestGoDoc_ReplacesExistingComment(t *testing.T) {
	src := "package lib\n\n// old doc\n// second line\nfunc Save() error {\n\treturn nil\n}\n"

	res, err := GoDoc(src, 5, "Save persists the manifest.")
	require.NoError(t, err)
	assert.NotContains(t, res.NewContent, "old doc")
	assert.Contains(t, res.NewContent, "// Save persists the manifest.\nfunc Save()")
}

func TestGoDoc_PreservesIndentation(t *testing.T) {
	src := "package lib\n\ntype T struct{}\n\n\tfunc indentedOddly() {}\n"

	res, err := GoDoc(src, 5, "indentedOddly exists.")
	require.NoError(t, err)
	assert.Contains(t, res.NewContent, "\t// indentedOddly exists.\n\tfunc indentedOddly()")
}

func TestGoDoc_LineOutOfRange(t *testing.T) {
	_, err := GoDoc("package lib\n", 99, "doc")
	assert.ErrorIs(t, err, ErrLineOutOfRange)
}

func TestPythonDoc_InsertIntoFunction(t *testing.T) {
	src := "def save(path):\n    return path\n"

	res, err := PythonDoc(src, 1, "Persist the manifest.")
	require.NoError(t, err)
	assert.Equal(t,
		"def save(path):\n    \"\"\"Persist the manifest.\"\"\"\n    return path\n",
		res.NewContent)
}

func TestPythonDoc_NestedMethodIndentation(t *testing.T) {
	src := "class Store:\n    def save(self, path):\n        return path\n"

	res, err := PythonDoc(src, 2, "Persist the manifest.")
	require.NoError(t, err)
	assert.Contains(t, res.NewContent,
		"    def save(self, path):\n        \"\"\"Persist the manifest.\"\"\"\n        return path")
}

func TestPythonDoc_MultiLineHeader(t *testing.T) {
	src := "def save(\n    path,\n    force=False,\n):\n    return path\n"

	res, err := PythonDoc(src, 1, "Persist the manifest.")
	require.NoError(t, err)
	assert.Contains(t, res.NewContent, "):\n    \"\"\"Persist the manifest.\"\"\"\n    return path")
}

func TestPythonDoc_MultiLineDocstring(t *testing.T) {
	src := "def save(path):\n    return path\n"

	res, err := PythonDoc(src, 1, "Persist the manifest.\n\nArgs:\n    path: Destination.")
	require.NoError(t, err)
	assert.Contains(t, res.NewContent, "    \"\"\"Persist the manifest.\n")
	assert.Contains(t, res.NewContent, "    Args:\n        path: Destination.\n    \"\"\"\n    return path")
}

func TestPythonDoc_ReplacesExistingDocstring(t *testing.T) {
	src := "def save(path):\n    \"\"\"Old doc.\"\"\"\n    return path\n"

	res, err := PythonDoc(src, 1, "New doc.")
	require.NoError(t, err)
	assert.NotContains(t, res.NewContent, "Old doc")
	assert.Contains(t, res.NewContent, "\"\"\"New doc.\"\"\"\n    return path")
}

func TestPythonDoc_ReplacesMultiLineDocstring(t *testing.T) {
	src := "def save(path):\n    \"\"\"Old doc.\n\n    Details.\n    \"\"\"\n    return path\n"

	res, err := PythonDoc(src, 1, "New doc.")
	require.NoError(t, err)
	assert.NotContains(t, res.NewContent, "Old doc")
	assert.NotContains(t, res.NewContent, "Details.")
	assert.Contains(t, res.NewContent, "\"\"\"New doc.\"\"\"\n    return path")
}

func TestPythonDoc_ClassDocstring(t *testing.T) {
	src := "class Store:\n    def save(self):\n        pass\n"

	res, err := PythonDoc(src, 1, "A manifest store.")
	require.NoError(t, err)
	assert.Contains(t, res.NewContent, "class Store:\n    \"\"\"A manifest store.\"\"\"\n    def save(self):")
}

func TestPythonDoc_NoColon(t *testing.T) {
	_, err := PythonDoc("def broken(\n", 1, "doc")
	assert.ErrorIs(t, err, ErrNoHeaderEnd)
}
