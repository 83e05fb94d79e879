// Copyright (C) 2025 Quill Docs (maintainers@quilldocs.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package scoring

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/QuillDocs/quill/services/quill/scanner"
)

func item(name string, exported, hasDoc bool, docLen, complexity int) scanner.CodeItem {
	return scanner.CodeItem{
		Name:       name,
		Kind:       scanner.KindFunction,
		Language:   "go",
		File:       "lib.go",
		Complexity: complexity,
		HasDoc:     hasDoc,
		DocLength:  docLen,
		Exported:   exported,
	}
}

func TestScore_Ordering(t *testing.T) {
	w := DefaultWeights()

	worst := Score(item("ExportedUndocComplex", true, false, 0, 10), w)
	middle := Score(item("privateUndoc", false, false, 0, 2), w)
	best := Score(item("ExportedWellDoc", true, true, 100, 1), w)

	assert.Greater(t, worst, middle)
	assert.Greater(t, middle, best)
}

func TestScore_ThinDocPenalty(t *testing.T) {
	w := DefaultWeights()
	thin := Score(item("Thin", true, true, 5, 3), w)
	full := Score(item("Full", true, true, 80, 3), w)
	assert.Greater(t, thin, full)
}

func TestRank_StableTieBreak(t *testing.T) {
	a := item("A", true, false, 0, 3)
	a.File = "a.go"
	a.Line = 10
	b := item("B", true, false, 0, 3)
	b.File = "a.go"
	b.Line = 5
	c := item("C", true, false, 0, 3)
	c.File = "b.go"
	c.Line = 1

	ranked := Rank([]scanner.CodeItem{c, a, b}, DefaultWeights())
	require.Len(t, ranked, 3)
	assert.Equal(t, "B", ranked[0].Name)
	assert.Equal(t, "A", ranked[1].Name)
	assert.Equal(t, "C", ranked[2].Name)
}

func TestSummarize(t *testing.T) {
	items := []scanner.CodeItem{
		item("A", true, true, 30, 1),
		item("B", true, false, 0, 1),
		func() scanner.CodeItem {
			i := item("C", false, true, 10, 1)
			i.File = "other.go"
			return i
		}(),
	}

	cov := Summarize(items)
	assert.Equal(t, 3, cov.Total)
	assert.Equal(t, 2, cov.Documented)
	assert.InDelta(t, 66.67, cov.Percent, 0.01)
	assert.Equal(t, FileCoverage{Total: 2, Documented: 1}, cov.PerFile["lib.go"])
	assert.Equal(t, FileCoverage{Total: 1, Documented: 1}, cov.PerFile["other.go"])
}

func TestSummarize_Empty(t *testing.T) {
	cov := Summarize(nil)
	assert.Zero(t, cov.Total)
	assert.Zero(t, cov.Percent)
}
