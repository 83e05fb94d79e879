// Copyright (C) 2025 Quill Docs (maintainers@quilldocs.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package transaction

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"
)

// mainLine is the name of the shadow store's main history line.
const mainLine = "main"

// ShadowGit executes git commands against the private history store.
//
// # Description
//
// Every command carries --git-dir and --work-tree explicitly so the store
// can never be confused with, or mutate, the user's own repository metadata.
// The work tree is always the project root, regardless of the process
// current directory.
//
// # Thread Safety
//
// All methods are safe for concurrent use.
type ShadowGit struct {
	root    string // project root, used as the work tree
	gitDir  string // <StateDir>/.git
	stateDir string
	timeout time.Duration
	logger  *slog.Logger
}

// NewShadowGit creates a client for the store under stateDir.
//
// # Inputs
//
//   - root: Absolute path to the project root (the work tree).
//   - stateDir: Absolute path to the store root (holds .git and .gitignore).
//   - timeout: Maximum duration for each git operation.
//
// # Outputs
//
//   - *ShadowGit: Ready-to-use client.
//   - error: Non-nil if root or stateDir is not absolute.
func NewShadowGit(root, stateDir string, timeout time.Duration) (*ShadowGit, error) {
	if !filepath.IsAbs(root) {
		return nil, fmt.Errorf("project root must be absolute: %s", root)
	}
	if !filepath.IsAbs(stateDir) {
		return nil, fmt.Errorf("state dir must be absolute: %s", stateDir)
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	return &ShadowGit{
		root:     root,
		gitDir:   filepath.Join(stateDir, ".git"),
		stateDir: stateDir,
		timeout:  timeout,
		logger:   slog.Default().With("component", "transaction.ShadowGit"),
	}, nil
}

// Available reports whether the git executable is reachable.
//
// # Description
//
// Pure capability probe with no side effects. An unavailable backend is an
// expected condition, not an error: it selects JSON fallback mode. Checked
// once per Manager construction.
func (g *ShadowGit) Available() bool {
	_, err := exec.LookPath("git")
	return err == nil
}

// InitStore idempotently creates the private history store.
//
// # Description
//
// Creates the store directory, initializes the repository if absent, pins a
// repo-local committer identity, writes an "ignore everything" .gitignore
// that scopes the store to itself, and creates the main line with an empty
// root commit. Calling it twice leaves an identically-usable store.
//
// # Outputs
//
//   - bool: False when git is unavailable or initialization failed. This is
//     a capability signal for the caller, never an error.
func (g *ShadowGit) InitStore(ctx context.Context) bool {
	if !g.Available() {
		return false
	}

	if err := os.MkdirAll(g.stateDir, 0755); err != nil {
		g.logger.Warn("creating store directory failed", "error", err)
		return false
	}

	// One-time repository creation. init and config are the only commands
	// allowed to run without the full --git-dir/--work-tree pinning.
	if _, err := os.Stat(g.gitDir); os.IsNotExist(err) {
		if _, err := g.runIn(ctx, g.stateDir, "init", "--quiet"); err != nil {
			g.logger.Warn("store init failed", "error", err)
			return false
		}
		if _, err := g.runIn(ctx, g.stateDir, "symbolic-ref", "HEAD", "refs/heads/"+mainLine); err != nil {
			g.logger.Warn("setting main line failed", "error", err)
			return false
		}
		if _, err := g.runIn(ctx, g.stateDir, "config", "user.name", "quill"); err != nil {
			return false
		}
		if _, err := g.runIn(ctx, g.stateDir, "config", "user.email", "quill@localhost"); err != nil {
			return false
		}
	}

	// Scope the store to itself so the user's own repository ignores it.
	ignorePath := filepath.Join(g.stateDir, ".gitignore")
	if _, err := os.Stat(ignorePath); os.IsNotExist(err) {
		if err := os.WriteFile(ignorePath, []byte("*\n"), 0644); err != nil {
			g.logger.Warn("writing store .gitignore failed", "error", err)
			return false
		}
	}

	// Root commit so the main line always resolves.
	if res, _ := g.Run(ctx, []string{"rev-parse", "--verify", "--quiet", "HEAD"}, false); res != nil && res.Code == 0 {
		return true
	}
	res, err := g.Run(ctx, []string{"commit", "--quiet", "--allow-empty", "-m", "quill: initialize history store"}, false)
	if err != nil || res.Code != 0 {
		g.logger.Warn("creating root commit failed",
			"error", err,
			"stderr", stderrOf(res))
		return false
	}

	g.logger.Debug("history store initialized", "state_dir", g.stateDir)
	return true
}

// Run executes one git command against the store.
//
// # Description
//
// The store location and the project-root work tree are pinned on every
// invocation. When check is true a non-zero exit becomes an error; when
// false the caller inspects the CommandResult.
//
// # Inputs
//
//   - ctx: Context for timeout and cancellation.
//   - args: Git arguments, e.g. ["commit", "-m", "msg"].
//   - check: Whether a non-zero exit code is an error.
//
// # Outputs
//
//   - *CommandResult: Exit code plus captured stdout/stderr. Non-nil even
//     when the command exited non-zero.
//   - error: Command failure when check is true, or spawn/timeout failure.
func (g *ShadowGit) Run(ctx context.Context, args []string, check bool) (*CommandResult, error) {
	full := append([]string{
		"--git-dir", g.gitDir,
		"--work-tree", g.root,
		"-c", "commit.gpgsign=false",
	}, args...)
	return g.exec(ctx, g.root, full, check)
}

// runIn executes a command with cwd-based discovery, for store creation only.
func (g *ShadowGit) runIn(ctx context.Context, dir string, args ...string) (*CommandResult, error) {
	return g.exec(ctx, dir, args, true)
}

func (g *ShadowGit) exec(ctx context.Context, dir string, args []string, check bool) (*CommandResult, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = dir

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	res := &CommandResult{
		Code:   -1,
		Stdout: stdout.String(),
		Stderr: stderr.String(),
	}
	if cmd.ProcessState != nil {
		res.Code = cmd.ProcessState.ExitCode()
	}

	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return res, fmt.Errorf("git %s: timeout after %v", firstArg(args), g.timeout)
		}
		if _, ok := err.(*exec.ExitError); !ok {
			return res, fmt.Errorf("git %s: %w", firstArg(args), err)
		}
		if check {
			return res, fmt.Errorf("git %s: exit %d: %s",
				firstArg(args), res.Code, strings.TrimSpace(stderr.String()))
		}
	}

	return res, nil
}

// output runs a command and returns trimmed stdout, failing on non-zero exit.
func (g *ShadowGit) output(ctx context.Context, args ...string) (string, error) {
	res, err := g.Run(ctx, args, true)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(res.Stdout), nil
}

// silent runs a command and returns only success or failure.
func (g *ShadowGit) silent(ctx context.Context, args ...string) error {
	_, err := g.Run(ctx, args, true)
	return err
}

// RefExists reports whether a ref resolves in the store.
func (g *ShadowGit) RefExists(ctx context.Context, ref string) bool {
	res, err := g.Run(ctx, []string{"show-ref", "--verify", "--quiet", ref}, false)
	return err == nil && res.Code == 0
}

// BranchExists reports whether a branch exists in the store.
func (g *ShadowGit) BranchExists(ctx context.Context, name string) bool {
	return g.RefExists(ctx, "refs/heads/"+name)
}

// switchLine moves HEAD to a branch without touching the work tree.
//
// # Description
//
// A plain checkout would rewrite project files to match the target line,
// which is never acceptable for the shadow store: the work tree is the
// user's live project. symbolic-ref plus a mixed reset moves HEAD and the
// index only.
func (g *ShadowGit) switchLine(ctx context.Context, branch string) error {
	if err := g.silent(ctx, "symbolic-ref", "HEAD", "refs/heads/"+branch); err != nil {
		return fmt.Errorf("switching to %s: %w", branch, err)
	}
	if err := g.silent(ctx, "reset", "--quiet", branch, "--"); err != nil {
		return fmt.Errorf("resetting index to %s: %w", branch, err)
	}
	return nil
}

// conflictedPaths lists unmerged paths after a failed revert or merge.
func (g *ShadowGit) conflictedPaths(ctx context.Context) []string {
	out, err := g.output(ctx, "diff", "--name-only", "--diff-filter=U")
	if err != nil || out == "" {
		return nil
	}
	return strings.Split(out, "\n")
}

func firstArg(args []string) string {
	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "--git-dir", "--work-tree", "-c":
			i++ // skip option value
		default:
			return args[i]
		}
	}
	return "git"
}

func stderrOf(res *CommandResult) string {
	if res == nil {
		return ""
	}
	return strings.TrimSpace(res.Stderr)
}
