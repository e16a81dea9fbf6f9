package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/nodesync/nodesync/internal/reconcile"
)

func newConflictsCmd() *cobra.Command {
	var flagAll bool

	cmd := &cobra.Command{
		Use:   "conflicts",
		Short: "List recorded conflicts",
		Long: `List entries from the conflict ledger. By default only open (unresolved)
conflicts are shown; --all includes ones already auto-resolved.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cc := mustCLIContext(cmd.Context())
			return runConflicts(cmd.Context(), cc, flagAll)
		},
	}

	cmd.Flags().BoolVar(&flagAll, "all", false, "include already-resolved conflicts")

	return cmd
}

func runConflicts(ctx context.Context, cc *CLIContext, all bool) error {
	db, err := openStore(ctx, cc)
	if err != nil {
		return err
	}
	defer db.Close()

	records, err := db.ListConflicts(ctx)
	if err != nil {
		return fmt.Errorf("listing conflicts: %w", err)
	}

	if !all {
		records = filterOpen(records)
	}

	if cc.Flags.JSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")

		return enc.Encode(records)
	}

	printConflictsText(records)

	return nil
}

func filterOpen(records []reconcile.ConflictRecord) []reconcile.ConflictRecord {
	var open []reconcile.ConflictRecord

	for _, r := range records {
		if r.ResolvedAt == 0 {
			open = append(open, r)
		}
	}

	return open
}

func printConflictsText(records []reconcile.ConflictRecord) {
	if len(records) == 0 {
		fmt.Println("No conflicts.")
		return
	}

	headers := []string{"ID", "PATH", "TYPE", "DETECTED", "STATUS"}

	rows := make([][]string, 0, len(records))
	for _, r := range records {
		status := "open"
		if r.ResolvedAt != 0 {
			status = "resolved"
		}

		rows = append(rows, []string{
			shortID(r.ID), r.Path, r.ConflictType,
			time.Unix(0, r.DetectedAt).Format("Jan _2 15:04"), status,
		})
	}

	printTable(os.Stdout, headers, rows)
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}

	return id
}
