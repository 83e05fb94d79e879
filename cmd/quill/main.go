// Copyright (C) 2025 Quill Docs (maintainers@quilldocs.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Command quill audits and improves source documentation.
//
// Quill scans Go and Python projects for undocumented or thinly documented
// functions, methods and classes, ranks them by impact, and writes
// LLM-generated documentation under transactional protection: every improve
// run is a session that can be committed, rolled back wholesale, or have
// individual changes reverted after the fact.
//
// Usage:
//
//	quill audit                     # coverage report
//	quill plan                      # ranked worklist
//	quill improve --limit 10        # document the top 10 items
//	quill sessions list             # past and in-progress sessions
//	quill changes <session>         # changes recorded in a session
//	quill rollback session <id>     # restore an uncommitted session
//	quill rollback change <entry>   # revert one change, even post-commit
//	quill diff <entry>              # show what a change did
//
// Doc generation requires OPENAI_API_KEY (or QUILL_OPENAI_API_KEY).
// Change-level rollback and diffs require git on PATH; without it quill
// falls back to a JSON backup mode with session-level rollback only.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
