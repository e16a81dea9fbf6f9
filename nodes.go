package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/nodesync/nodesync/internal/config"
	"github.com/nodesync/nodesync/internal/reconcile"
	"github.com/nodesync/nodesync/internal/store"
)

func newNodesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "nodes",
		Short: "List and select projects to sync",
	}

	cmd.AddCommand(newNodesListCmd())
	cmd.AddCommand(newNodesSetCmd())

	return cmd
}

func newNodesListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List projects selected for sync",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cc := mustCLIContext(cmd.Context())
			return runNodesList(cmd.Context(), cc)
		},
	}
}

func newNodesSetCmd() *cobra.Command {
	var flagRelPath string

	cmd := &cobra.Command{
		Use:   "set <node-id> <title> <on|off>",
		Short: "Select or deselect a project for sync",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			cc := mustCLIContext(cmd.Context())
			return runNodesSet(cmd.Context(), cc, args[0], args[1], args[2], flagRelPath)
		},
	}

	cmd.Flags().StringVar(&flagRelPath, "path", "", "local directory name under the sync root (default: the node id)")

	return cmd
}

func runNodesList(ctx context.Context, cc *CLIContext) error {
	db, err := openStore(ctx, cc)
	if err != nil {
		return err
	}
	defer db.Close()

	nodes, err := db.ListSyncedNodes(ctx)
	if err != nil {
		return fmt.Errorf("listing nodes: %w", err)
	}

	if cc.Flags.JSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")

		return enc.Encode(nodes)
	}

	if len(nodes) == 0 {
		fmt.Println("No projects selected for sync. Use 'nodesync nodes set <id> <title> on'.")
		return nil
	}

	headers := []string{"ID", "TITLE", "REL PATH"}

	rows := make([][]string, 0, len(nodes))
	for _, n := range nodes {
		rows = append(rows, []string{n.ID, n.Title, n.RelPath})
	}

	printTable(os.Stdout, headers, rows)

	return nil
}

func runNodesSet(ctx context.Context, cc *CLIContext, id, title, onOff, relPath string) error {
	var sync bool

	switch onOff {
	case "on":
		sync = true
	case "off":
		sync = false
	default:
		return fmt.Errorf("expected \"on\" or \"off\", got %q", onOff)
	}

	if relPath == "" {
		relPath = id
	}

	db, err := openStore(ctx, cc)
	if err != nil {
		return err
	}
	defer db.Close()

	existing, err := db.GetNode(ctx, id)
	parentID := ""

	if err == nil {
		parentID = existing.ParentID
	}

	node := reconcile.Node{ID: id, Title: title, ParentID: parentID, Sync: sync, RelPath: relPath}

	if err := db.UpsertNode(ctx, node); err != nil {
		return fmt.Errorf("updating node %s: %w", id, err)
	}

	state := "enabled"
	if !sync {
		state = "disabled"
	}

	statusf("sync %s for %q (%s)\n", state, title, id)

	return nil
}

func openStore(ctx context.Context, cc *CLIContext) (*store.SQLiteStore, error) {
	dbPath := cc.Cfg.DatabasePath
	if dbPath == "" {
		dbPath = config.DefaultDatabasePath()
	}

	db, err := store.Open(ctx, dbPath, cc.Logger)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	return db, nil
}
