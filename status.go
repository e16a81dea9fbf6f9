package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/nodesync/nodesync/internal/config"
)

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:         "status",
		Short:       "Show sync root, database, and conflict status",
		Annotations: map[string]string{skipConfigAnnotation: "true"},
		RunE: func(cmd *cobra.Command, _ []string) error {
			cc := mustCLIContext(cmd.Context())
			return runStatus(cmd.Context(), cc)
		},
	}
}

type statusReport struct {
	SyncRoot      string `json:"sync_root"`
	DatabasePath  string `json:"database_path"`
	SyncedNodes   int    `json:"synced_nodes"`
	OpenConflicts int    `json:"open_conflicts"`
	DaemonRunning bool   `json:"daemon_running"`
}

func runStatus(ctx context.Context, cc *CLIContext) error {
	dbPath := cc.Cfg.DatabasePath
	if dbPath == "" {
		dbPath = config.DefaultDatabasePath()
	}

	report := statusReport{SyncRoot: cc.Cfg.SyncRoot, DatabasePath: dbPath}

	db, err := openStore(ctx, cc)
	if err != nil {
		return err
	}
	defer db.Close()

	nodes, err := db.ListSyncedNodes(ctx)
	if err != nil {
		return fmt.Errorf("listing synced nodes: %w", err)
	}
	report.SyncedNodes = len(nodes)

	conflicts, err := db.ListConflicts(ctx)
	if err != nil {
		return fmt.Errorf("listing conflicts: %w", err)
	}
	report.OpenConflicts = len(filterOpen(conflicts))

	pidPath := config.DefaultPIDPath()
	if pid, err := readPIDFile(pidPath); err == nil {
		if proc, perr := os.FindProcess(pid); perr == nil && proc.Signal(syscall.Signal(0)) == nil {
			report.DaemonRunning = true
		}
	}

	if cc.Flags.JSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")

		return enc.Encode(report)
	}

	fmt.Printf("Sync root:      %s\n", report.SyncRoot)
	fmt.Printf("Database:       %s\n", report.DatabasePath)
	fmt.Printf("Synced nodes:   %d\n", report.SyncedNodes)
	fmt.Printf("Open conflicts: %d\n", report.OpenConflicts)

	state := "not running"
	if report.DaemonRunning {
		state = "running"
	}

	fmt.Printf("Daemon:         %s\n", state)

	return nil
}
