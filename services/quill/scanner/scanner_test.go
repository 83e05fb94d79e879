// Copyright (C) 2025 Quill Docs (maintainers@quilldocs.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package scanner

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const goSample = `package sample

// Documented returns a constant.
func Documented() int {
	return 1
}

func undocumented(n int) int {
	if n > 0 {
		return n
	}
	for i := 0; i < n; i++ {
		n += i
	}
	return 0
}

type Thing struct{}

// Process handles one thing.
func (t *Thing) Process() error {
	return nil
}

func (t *Thing) helper() {}
`

const pySample = `class Widget:
    """A widget."""

    def render(self):
        if self.ready:
            return "ok"
        return "no"

    def _internal(self):
        pass

def make_widget(name):
    """Builds a widget."""
    return Widget()

def orphan():
    pass
`

func findItem(t *testing.T, items []CodeItem, name string) CodeItem {
	t.Helper()
	for _, item := range items {
		if item.Name == name {
			return item
		}
	}
	t.Fatalf("item %q not found in %+v", name, items)
	return CodeItem{}
}

func TestGoExtractor_FunctionsAndMethods(t *testing.T) {
	result, err := NewGoExtractor().Extract(context.Background(), []byte(goSample), "sample.go")
	require.NoError(t, err)
	require.Len(t, result.Items, 4)

	documented := findItem(t, result.Items, "Documented")
	assert.Equal(t, KindFunction, documented.Kind)
	assert.True(t, documented.HasDoc)
	assert.True(t, documented.Exported)
	assert.Positive(t, documented.DocLength)

	undoc := findItem(t, result.Items, "undocumented")
	assert.False(t, undoc.HasDoc)
	assert.False(t, undoc.Exported)
	assert.GreaterOrEqual(t, undoc.Complexity, 3, "if + for add decision points")

	process := findItem(t, result.Items, "Thing.Process")
	assert.Equal(t, KindMethod, process.Kind)
	assert.True(t, process.HasDoc)
	assert.True(t, process.Exported)

	helper := findItem(t, result.Items, "Thing.helper")
	assert.False(t, helper.HasDoc)
	assert.False(t, helper.Exported)
}

func TestGoExtractor_LineNumbers(t *testing.T) {
	result, err := NewGoExtractor().Extract(context.Background(), []byte(goSample), "sample.go")
	require.NoError(t, err)

	documented := findItem(t, result.Items, "Documented")
	assert.Equal(t, 4, documented.Line)
	assert.Equal(t, 6, documented.EndLine)
}

func TestGoExtractor_SyntaxErrorsArePartial(t *testing.T) {
	src := "package broken\n\nfunc Valid() {}\n\nfunc broken( {\n"
	result, err := NewGoExtractor().Extract(context.Background(), []byte(src), "broken.go")
	require.NoError(t, err, "syntax errors must not fail extraction")
	assert.NotEmpty(t, result.Errors)
	assert.NotEmpty(t, result.Items, "valid declarations still extract")
}

func TestGoExtractor_RejectsOversizeAndBinary(t *testing.T) {
	e := &GoExtractor{maxFileSize: 10}
	_, err := e.Extract(context.Background(), []byte("package way_too_long"), "big.go")
	assert.ErrorIs(t, err, ErrFileTooLarge)

	_, err = NewGoExtractor().Extract(context.Background(), []byte{0xff, 0xfe, 0x00}, "bin.go")
	assert.ErrorIs(t, err, ErrInvalidContent)
}

func TestPythonExtractor_ClassesMethodsFunctions(t *testing.T) {
	result, err := NewPythonExtractor().Extract(context.Background(), []byte(pySample), "sample.py")
	require.NoError(t, err)
	require.Len(t, result.Items, 5)

	widget := findItem(t, result.Items, "Widget")
	assert.Equal(t, KindClass, widget.Kind)
	assert.True(t, widget.HasDoc)
	assert.True(t, widget.Exported)

	render := findItem(t, result.Items, "Widget.render")
	assert.Equal(t, KindMethod, render.Kind)
	assert.False(t, render.HasDoc)
	assert.GreaterOrEqual(t, render.Complexity, 2)

	internal := findItem(t, result.Items, "Widget._internal")
	assert.False(t, internal.Exported)

	maker := findItem(t, result.Items, "make_widget")
	assert.Equal(t, KindFunction, maker.Kind)
	assert.True(t, maker.HasDoc)

	orphan := findItem(t, result.Items, "orphan")
	assert.False(t, orphan.HasDoc)
	assert.Zero(t, orphan.DocLength)
}

func TestScanner_WalksTree(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "pkg"), 0755))
	require.NoError(t, os.MkdirAll(filepath.Join(root, ".quill"), 0755))
	require.NoError(t, os.MkdirAll(filepath.Join(root, "vendor"), 0755))

	write := func(name, content string) {
		require.NoError(t, os.WriteFile(filepath.Join(root, name), []byte(content), 0644))
	}
	write("pkg/lib.go", goSample)
	write("app.py", pySample)
	write("pkg/lib_test.go", "package sample\n\nfunc TestX(t *testing.T) {}\n")
	write(".quill/skip.go", "package skip\n\nfunc Hidden() {}\n")
	write("vendor/dep.go", "package dep\n\nfunc Dep() {}\n")
	write("notes.txt", "not source")

	result, err := NewScanner().Scan(context.Background(), root)
	require.NoError(t, err)
	require.Len(t, result.Files, 2)
	assert.Equal(t, "app.py", result.Files[0].File)
	assert.Equal(t, "pkg/lib.go", result.Files[1].File)

	names := map[string]bool{}
	for _, item := range result.Items() {
		names[item.Name] = true
	}
	assert.True(t, names["Documented"])
	assert.True(t, names["Widget.render"])
	assert.False(t, names["Hidden"], "tool state dir must be skipped")
	assert.False(t, names["Dep"], "vendor must be skipped")
}

func TestScanner_UnreadableFileSkipped(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "bin.go"), []byte{0xff, 0xfe}, 0644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "ok.go"), []byte("package ok\n\nfunc OK() {}\n"), 0644))

	result, err := NewScanner().Scan(context.Background(), root)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Skipped)
	require.Len(t, result.Files, 1)
	assert.Equal(t, "ok.go", result.Files[0].File)
}
