package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/oauth2"

	"github.com/nodesync/nodesync/internal/config"
	"github.com/nodesync/nodesync/internal/remote"
	"github.com/nodesync/nodesync/internal/tokenfile"
)

// cliFlags holds the persistent flags every subcommand reads, mirroring
// the teacher's root.go flag set (--config, --json, verbosity) scaled to
// this domain's single-root/single-account model — no --account/--drive.
type cliFlags struct {
	ConfigPath string
	TokenPath  string
	JSON       bool
	Verbose    bool
	Debug      bool
	Quiet      bool
}

// CLIContext carries the loaded config and logger through a command
// invocation, the same role the teacher's CLIContext{Cfg, Logger} plays.
type CLIContext struct {
	Cfg    *config.Config
	Logger *slog.Logger
	Flags  cliFlags
}

type cliContextKeyType struct{}

var cliContextKey = cliContextKeyType{}

func cliContextFrom(ctx context.Context) (*CLIContext, bool) {
	cc, ok := ctx.Value(cliContextKey).(*CLIContext)
	return cc, ok
}

func mustCLIContext(ctx context.Context) *CLIContext {
	cc, ok := cliContextFrom(ctx)
	if !ok {
		panic("nodesync: command ran without a CLIContext — PersistentPreRunE did not run")
	}

	return cc
}

// skipConfigAnnotation marks commands that fall back to the default config
// when the config file exists but fails to load (mirrors the teacher's use
// on login/status commands).
const skipConfigAnnotation = "skipConfigLoad"

func newRootCmd() *cobra.Command {
	var flags cliFlags

	root := &cobra.Command{
		Use:   "nodesync",
		Short: "Two-way file sync between a local directory and hosted projects",
		Long: `nodesync reconciles a local filesystem tree with a remote projects
host, keeping both sides in agreement without clobbering concurrent edits.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return loadCLIContext(cmd, flags)
		},
	}

	root.PersistentFlags().StringVar(&flags.ConfigPath, "config", "", "path to config.toml (default: platform config dir)")
	root.PersistentFlags().StringVar(&flags.TokenPath, "token-file", "", "path to the API token file (default: platform config dir)")
	root.PersistentFlags().BoolVar(&flags.JSON, "json", false, "emit machine-readable JSON output")
	root.PersistentFlags().BoolVarP(&flags.Verbose, "verbose", "v", false, "verbose (debug-level) logging")
	root.PersistentFlags().BoolVar(&flags.Debug, "debug", false, "alias for --verbose")
	root.PersistentFlags().BoolVarP(&flags.Quiet, "quiet", "q", false, "suppress status output")
	root.MarkFlagsMutuallyExclusive("verbose", "debug", "quiet")

	root.AddCommand(newSyncCmd())
	root.AddCommand(newReloadCmd())
	root.AddCommand(newAuditCmd())
	root.AddCommand(newConflictsCmd())
	root.AddCommand(newResolveCmd())
	root.AddCommand(newStatusCmd())
	root.AddCommand(newNodesCmd())
	root.AddCommand(newConfigCmd())

	return root
}

func loadCLIContext(cmd *cobra.Command, flags cliFlags) error {
	bootstrapLogger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))

	env := config.ReadEnvOverrides()
	path := config.ResolveConfigPath(env, flags.ConfigPath, bootstrapLogger)

	cfg, err := config.LoadOrDefault(path, bootstrapLogger)
	if err != nil {
		if cmd.Annotations[skipConfigAnnotation] == "true" {
			bootstrapLogger.Warn("ignoring invalid config file for this command", "path", path, "error", err)
			cfg = config.DefaultConfig()
		} else {
			return fmt.Errorf("loading config: %w", err)
		}
	}

	logger := buildLogger(cfg, flags)
	flagQuiet = flags.Quiet

	cc := &CLIContext{Cfg: cfg, Logger: logger, Flags: flags}
	cmd.SetContext(context.WithValue(cmd.Context(), cliContextKey, cc))

	return nil
}

// buildLogger builds the process logger honoring config log_level/log_format
// and the mutually-exclusive CLI overrides, the way the teacher's
// root.go buildLogger does.
func buildLogger(cfg *config.Config, flags cliFlags) *slog.Logger {
	level := slog.LevelInfo

	switch cfg.LogLevel {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}

	switch {
	case flags.Verbose || flags.Debug:
		level = slog.LevelDebug
	case flags.Quiet:
		level = slog.LevelError
	}

	opts := &slog.HandlerOptions{Level: level}

	if cfg.LogFormat == "json" {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts))
	}

	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}

// newRemoteClient builds a remote.Client from the CLIContext's config and
// token file. The token itself is never obtained here — login/OAuth flow
// is out of scope (spec.md §1) — callers are expected to have populated
// the token file out of band.
func newRemoteClient(cc *CLIContext) (*remote.Client, error) {
	tokenPath := cc.Flags.TokenPath
	if tokenPath == "" {
		tokenPath = config.DefaultTokenPath()
	}

	tok, _, err := tokenfile.Load(tokenPath)
	if err != nil {
		return nil, fmt.Errorf("loading API token: %w", err)
	}

	if tok == nil {
		return nil, fmt.Errorf("no API token found at %s — obtain a personal access token "+
			"and save it there before running commands that reach the remote service", tokenPath)
	}

	ts := oauth2.StaticTokenSource(tok)

	httpClient := &http.Client{Timeout: 60 * time.Second}

	return remote.NewClient(cc.Cfg.APIBaseURL, httpClient, ts, cc.Logger), nil
}

func exitOnError(err error) {
	if err == nil {
		return
	}

	fmt.Fprintln(os.Stderr, "error:", err)
	os.Exit(1)
}
