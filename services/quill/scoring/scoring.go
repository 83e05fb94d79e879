// Copyright (C) 2025 Quill Docs (maintainers@quilldocs.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package scoring ranks documentable items by how much a missing or thin
// doc hurts, and summarizes documentation coverage.
package scoring

import (
	"math"
	"sort"

	"github.com/QuillDocs/quill/services/quill/scanner"
)

// Weights tune the impact score. Zero value is unusable; use DefaultWeights.
type Weights struct {
	// Complexity scales the log of the item's branch count.
	Complexity float64

	// Exported is added for public-surface items.
	Exported float64

	// MissingDoc is added when the item has no documentation at all.
	MissingDoc float64

	// ThinDoc is added when documentation exists but is shorter than
	// ThinDocLength characters.
	ThinDoc float64

	// ThinDocLength is the threshold below which a doc counts as thin.
	ThinDocLength int
}

// DefaultWeights returns the standard scoring weights.
func DefaultWeights() Weights {
	return Weights{
		Complexity:    2.0,
		Exported:      3.0,
		MissingDoc:    5.0,
		ThinDoc:       1.5,
		ThinDocLength: 20,
	}
}

// ScoredItem pairs a code item with its impact score.
type ScoredItem struct {
	scanner.CodeItem
	Score float64 `json:"score"`
}

// Score computes the impact score of one item.
//
// A fully documented private one-liner scores near zero; an undocumented
// exported branchy function scores highest. Already well-documented items
// still earn a small complexity-driven score so staleness reviews can use
// the same ordering.
func Score(item scanner.CodeItem, w Weights) float64 {
	score := w.Complexity * math.Log2(float64(item.Complexity)+1)
	if item.Exported {
		score += w.Exported
	}
	if !item.HasDoc {
		score += w.MissingDoc
	} else if item.DocLength < w.ThinDocLength {
		score += w.ThinDoc
	}
	return score
}

// Rank scores and orders items, highest impact first. Ties break by file
// then line so output is stable.
func Rank(items []scanner.CodeItem, w Weights) []ScoredItem {
	scored := make([]ScoredItem, 0, len(items))
	for _, item := range items {
		scored = append(scored, ScoredItem{CodeItem: item, Score: Score(item, w)})
	}
	sort.Slice(scored, func(i, j int) bool {
		if scored[i].Score != scored[j].Score {
			return scored[i].Score > scored[j].Score
		}
		if scored[i].File != scored[j].File {
			return scored[i].File < scored[j].File
		}
		return scored[i].Line < scored[j].Line
	})
	return scored
}

// Coverage summarizes documentation state for a set of items.
type Coverage struct {
	Total      int     `json:"total"`
	Documented int     `json:"documented"`
	Percent    float64 `json:"percent"`

	// PerFile maps each file to its own coverage.
	PerFile map[string]FileCoverage `json:"per_file"`
}

// FileCoverage is one file's documentation tally.
type FileCoverage struct {
	Total      int `json:"total"`
	Documented int `json:"documented"`
}

// Summarize computes repo-wide and per-file coverage.
func Summarize(items []scanner.CodeItem) Coverage {
	cov := Coverage{PerFile: map[string]FileCoverage{}}
	for _, item := range items {
		cov.Total++
		fc := cov.PerFile[item.File]
		fc.Total++
		if item.HasDoc {
			cov.Documented++
			fc.Documented++
		}
		cov.PerFile[item.File] = fc
	}
	if cov.Total > 0 {
		cov.Percent = 100 * float64(cov.Documented) / float64(cov.Total)
	}
	return cov
}
