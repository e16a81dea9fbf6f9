package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/nodesync/nodesync/internal/reconcile"
)

func newResolveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "resolve <conflict-id>",
		Short: "Mark a conflict as resolved",
		Long: `Mark a conflict ledger entry resolved after manually reconciling it.
Conflicts are auto-resolved (keep-both / restore-folder) at detection
time by default; this command is for acknowledging that ledger entry,
or for entries left open by a future interactive Broker callback.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cc := mustCLIContext(cmd.Context())
			return runResolve(cmd.Context(), cc, args[0])
		},
	}

	return cmd
}

func runResolve(ctx context.Context, cc *CLIContext, idPrefix string) error {
	db, err := openStore(ctx, cc)
	if err != nil {
		return err
	}
	defer db.Close()

	records, err := db.ListConflicts(ctx)
	if err != nil {
		return fmt.Errorf("listing conflicts: %w", err)
	}

	fullID, err := matchConflictID(records, idPrefix)
	if err != nil {
		return err
	}

	if err := db.ResolveConflict(ctx, fullID); err != nil {
		return fmt.Errorf("resolving conflict %s: %w", fullID, err)
	}

	statusf("conflict %s marked resolved\n", shortID(fullID))

	return nil
}

func matchConflictID(records []reconcile.ConflictRecord, prefix string) (string, error) {
	var matches []string

	for _, r := range records {
		if strings.HasPrefix(r.ID, prefix) {
			matches = append(matches, r.ID)
		}
	}

	switch len(matches) {
	case 0:
		return "", fmt.Errorf("no conflict found matching id %q", prefix)
	case 1:
		return matches[0], nil
	default:
		return "", fmt.Errorf("id %q is ambiguous, matches %d conflicts", prefix, len(matches))
	}
}
