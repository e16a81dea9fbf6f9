package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"

	"github.com/spf13/cobra"

	"github.com/nodesync/nodesync/internal/reconcile"
)

func newAuditCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "audit",
		Short: "Report local/remote/database differences without changing anything",
		Long: `Run the three-view comparison (local filesystem, database, remote
service) and print what the next "nodesync sync" would do, without
enqueueing or executing any operation. Read-only.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cc := mustCLIContext(cmd.Context())
			return runAudit(cmd.Context(), cc)
		},
	}
}

func runAudit(ctx context.Context, cc *CLIContext) error {
	env, cleanup, err := setupEnvironment(ctx, cc, true)
	if err != nil {
		return err
	}
	defer cleanup()

	result, err := env.auditor.Audit(ctx)
	if err != nil {
		return fmt.Errorf("auditing: %w", err)
	}

	if cc.Flags.JSON {
		return printAuditJSON(result)
	}

	printAuditText(result)

	return nil
}

type auditJSONEntry struct {
	Path      string `json:"path"`
	Side      string `json:"side"`
	EventType string `json:"event_type"`
	Directory bool   `json:"directory"`
}

func printAuditJSON(result *reconcile.AuditResult) error {
	entries := auditEntries(result)

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")

	return enc.Encode(entries)
}

func printAuditText(result *reconcile.AuditResult) {
	entries := auditEntries(result)

	if len(entries) == 0 {
		fmt.Println("Already in sync.")
		return
	}

	for _, e := range entries {
		fmt.Printf("%-7s %-7s %s\n", e.Side, e.EventType, e.Path)
	}
}

func auditEntries(result *reconcile.AuditResult) []auditJSONEntry {
	var entries []auditJSONEntry

	for path, ev := range result.Local {
		entries = append(entries, auditJSONEntry{Path: path, Side: "local", EventType: ev.EventType.String(), Directory: ev.IsDirectory})
	}

	for path, ev := range result.Remote {
		entries = append(entries, auditJSONEntry{Path: path, Side: "remote", EventType: ev.EventType.String(), Directory: ev.IsDirectory})
	}

	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Path != entries[j].Path {
			return entries[i].Path < entries[j].Path
		}

		return entries[i].Side < entries[j].Side
	})

	return entries
}
