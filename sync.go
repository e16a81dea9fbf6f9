package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/nodesync/nodesync/internal/config"
	"github.com/nodesync/nodesync/internal/reconcile"
	"github.com/nodesync/nodesync/internal/store"
)

func newSyncCmd() *cobra.Command {
	var flagWatch, flagDryRun bool

	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Reconcile the local tree with the remote service",
		Long: `Run one reconciliation pass (audit + dispatch). With --watch, run as a
daemon: an initial audit followed by continuous local-filesystem
watching, re-auditing on every debounced batch of changes, until
interrupted.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cc := mustCLIContext(cmd.Context())
			return runSync(cmd.Context(), cc, flagWatch, flagDryRun || cc.Cfg.Dry)
		},
	}

	cmd.Flags().BoolVar(&flagWatch, "watch", false, "run continuously, re-auditing on local filesystem changes")
	cmd.Flags().BoolVar(&flagDryRun, "dry-run", false, "log intended operations without executing them")

	return cmd
}

func runSync(ctx context.Context, cc *CLIContext, watch, dryRun bool) error {
	env, cleanup, err := setupEnvironment(ctx, cc, dryRun)
	if err != nil {
		return err
	}
	defer cleanup()

	if !watch {
		return runOneShotSync(ctx, env)
	}

	pidPath := config.DefaultPIDPath()
	releasePID, err := writePIDFile(pidPath)
	if err != nil {
		return err
	}
	defer releasePID()

	runCtx := shutdownContext(ctx, cc.Logger)

	return runWatchLoop(runCtx, env, cc)
}

// syncEnv bundles the store, remote client, and reconciliation
// collaborators one invocation of sync/audit needs — built once and
// shared between the one-shot and --watch code paths.
type syncEnv struct {
	db       *store.SQLiteStore
	remote   reconcile.RemoteClient
	auditor  *reconcile.Auditor
	coord    *reconcile.Coordinator
	queue    *reconcile.OperationQueue
	ignore   *reconcile.IgnoreSet
	deps     reconcile.Deps
}

func setupEnvironment(ctx context.Context, cc *CLIContext, dryRun bool) (*syncEnv, func(), error) {
	dbPath := cc.Cfg.DatabasePath
	if dbPath == "" {
		dbPath = config.DefaultDatabasePath()
	}

	db, err := store.Open(ctx, dbPath, cc.Logger)
	if err != nil {
		return nil, nil, fmt.Errorf("opening database: %w", err)
	}

	remoteClient, err := newRemoteClient(cc)
	if err != nil {
		db.Close()
		return nil, nil, err
	}

	ignore := reconcile.NewIgnoreSet(cc.Cfg.IgnoredNames, cc.Cfg.IgnoredGlobs)

	deps := reconcile.Deps{
		Store:    db,
		Remote:   remoteClient,
		SyncRoot: cc.Cfg.SyncRoot,
		Dry:      dryRun,
		Logger:   cc.Logger,
	}

	notifier := reconcile.NotifierFunc(func(msg string) {
		cc.Logger.Warn("operation notification", "message", msg)
	})

	queue := reconcile.NewOperationQueue(deps, notifier, 256)
	broker := reconcile.NewBroker(nil, cc.Logger) // no interactive UI attached; defaults apply
	coord := reconcile.NewCoordinator(queue, broker, db, cc.Cfg.SyncRoot, cc.Cfg.StorageFolder, cc.Logger)
	auditor := reconcile.NewAuditor(db, remoteClient, cc.Cfg.SyncRoot, cc.Cfg.StorageFolder, ignore, cc.Logger)

	env := &syncEnv{db: db, remote: remoteClient, auditor: auditor, coord: coord, queue: queue, ignore: ignore, deps: deps}

	cleanup := func() {
		env.queue.Stop()
		env.queue.Join()
		db.Close()
	}

	return env, cleanup, nil
}

func runOneShotSync(ctx context.Context, env *syncEnv) error {
	result, err := env.auditor.Audit(ctx)
	if err != nil {
		return fmt.Errorf("auditing: %w", err)
	}

	if err := env.coord.Dispatch(ctx, result.Local, result.Remote); err != nil {
		return fmt.Errorf("dispatching operations: %w", err)
	}

	env.queue.Join()

	statusf("audit complete: %d local change(s), %d remote change(s), queue depth %d\n",
		len(result.Local), len(result.Remote), env.queue.Depth())

	return nil
}

func runWatchLoop(ctx context.Context, env *syncEnv, cc *CLIContext) error {
	fsw, err := reconcile.NewFsWatcher()
	if err != nil {
		return fmt.Errorf("starting filesystem watcher: %w", err)
	}

	watcher := reconcile.NewWatcher(cc.Cfg.SyncRoot, parseDebounce(cc.Cfg.EventDebounce),
		fsw, env.ignore, reconcile.NewWakeClassifier(), cc.Logger)

	go func() {
		if err := watcher.Watch(ctx); err != nil {
			cc.Logger.Error("watcher stopped", "error", err)
		}
	}()

	// Run an immediate audit on startup, then again on every wakeup, on a
	// periodic ticker (remote-only changes never produce a local fsnotify
	// event), and on demand via SIGHUP (`nodesync reload`).
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()

	reloadOnSIGHUP(ctx, cc.Logger, func() {
		if err := runOneShotSync(ctx, env); err != nil {
			cc.Logger.Error("reload audit failed", "error", err)
		}
	})

	if err := runOneShotSync(ctx, env); err != nil {
		cc.Logger.Error("initial audit failed", "error", err)
	}

	for {
		select {
		case <-ctx.Done():
			return nil

		case <-watcher.Events():
			if err := runOneShotSync(ctx, env); err != nil {
				cc.Logger.Error("audit failed", "error", err)
			}

		case <-ticker.C:
			if err := runOneShotSync(ctx, env); err != nil {
				cc.Logger.Error("periodic audit failed", "error", err)
			}
		}
	}
}

func parseDebounce(s string) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil {
		return reconcile.DefaultEventDebounce
	}

	return d
}
