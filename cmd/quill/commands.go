// Copyright (C) 2025 Quill Docs (maintainers@quilldocs.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"github.com/spf13/cobra"

	"github.com/QuillDocs/quill/pkg/logging"
)

// --- Global Command Variables ---
var (
	projectRoot string // CLI override for the project root (default: CWD)
	logLevel    string // debug/info/warn/error
	logToFile   bool   // also write JSON logs under <root>/.quill/logs

	rootCmd = &cobra.Command{
		Use:   "quill",
		Short: "Audit and improve source documentation with transactional safety",
		Long: `Quill scans a project for undocumented code, ranks the gaps by
impact, and fills them with LLM-generated documentation. Every write
happens inside a session that can be rolled back: wholesale while
in progress, or change-by-change after commit.`,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			cfg := logging.Config{Level: logging.ParseLevel(logLevel)}
			if logToFile {
				cfg.LogDir = logDirFor(mustRoot())
			}
			logging.New(cfg).Install()
		},
	}

	// --- Workflow ---
	initCmd = &cobra.Command{
		Use:   "init",
		Short: "Write a default .quill/config.yaml into the project",
		RunE:  runInitCommand, // Defined in cmd_init.go
	}
	auditCmd = &cobra.Command{
		Use:   "audit",
		Short: "Report documentation coverage for the project",
		RunE:  runAuditCommand, // Defined in cmd_audit.go
	}
	planCmd = &cobra.Command{
		Use:   "plan",
		Short: "Rank undocumented items by impact and save the worklist",
		RunE:  runPlanCommand, // Defined in cmd_plan.go
	}
	improveCmd = &cobra.Command{
		Use:   "improve",
		Short: "Generate and write documentation inside a rollback-safe session",
		RunE:  runImproveCommand, // Defined in cmd_improve.go
	}

	// --- Session Inspection ---
	sessionsCmd = &cobra.Command{
		Use:   "sessions",
		Short: "Inspect and maintain documentation sessions",
	}
	sessionsListCmd = &cobra.Command{
		Use:   "list",
		Short: "List all recorded sessions, newest first",
		RunE:  runSessionsList, // Defined in cmd_sessions.go
	}
	sessionsCleanupCmd = &cobra.Command{
		Use:   "cleanup",
		Short: "Delete old completed session manifests beyond the retention window",
		RunE:  runSessionsCleanup, // Defined in cmd_sessions.go
	}
	changesCmd = &cobra.Command{
		Use:   "changes [session-id]",
		Short: "List the changes recorded in a session",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runChangesCommand, // Defined in cmd_changes.go
	}
	diffCmd = &cobra.Command{
		Use:   "diff <entry-id>",
		Short: "Show the diff of one recorded change",
		Args:  cobra.ExactArgs(1),
		RunE:  runDiffCommand, // Defined in cmd_diff.go
	}

	// --- Rollback ---
	rollbackCmd = &cobra.Command{
		Use:   "rollback",
		Short: "Undo documentation changes",
	}
	rollbackSessionCmd = &cobra.Command{
		Use:   "session [session-id]",
		Short: "Restore every file an in-progress session touched",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runRollbackSession, // Defined in cmd_rollback.go
	}
	rollbackChangeCmd = &cobra.Command{
		Use:   "change [entry-id...]",
		Short: "Revert individual changes, including after session commit",
		RunE:  runRollbackChange, // Defined in cmd_rollback.go
	}
)

func init() {
	rootCmd.PersistentFlags().StringVarP(&projectRoot, "root", "r", "",
		"Project root to operate on (default: current directory)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info",
		"Log level: debug, info, warn, error")
	rootCmd.PersistentFlags().BoolVar(&logToFile, "log-file", false,
		"Also write JSON logs under <root>/.quill/logs")

	sessionsCmd.AddCommand(sessionsListCmd, sessionsCleanupCmd)
	rollbackCmd.AddCommand(rollbackSessionCmd, rollbackChangeCmd)
	rootCmd.AddCommand(
		initCmd,
		auditCmd,
		planCmd,
		improveCmd,
		sessionsCmd,
		changesCmd,
		diffCmd,
		rollbackCmd,
	)
}
