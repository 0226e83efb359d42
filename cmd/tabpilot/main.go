// CLAUDE:SUMMARY CLI entry point for tabpilot: global flags, logger, config loading, and pilot construction shared by subcommands.
// Command tabpilot drives a Chrome instance to automate the task website.
//
// Usage:
//
//	tabpilot open                        # run first when runOnClick is set
//	tabpilot run                         # save the task id, then capture feedback
//	tabpilot save-task-id
//	tabpilot capture
//	tabpilot settings show|set|reset
//	tabpilot session
//	tabpilot runs [--status error]
//	tabpilot serve [--mcp] [--grant storage,downloads]
//	tabpilot token --client ci           # bearer token for the HTTP API
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	_ "modernc.org/sqlite"

	"github.com/hazyhaar/tabpilot/pilot"
)

var (
	configPath  string
	logLevel    string
	remoteURL   string
	headless    bool
	dbPath      string
	downloadDir string
	traceSQL    bool
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, errorStyle.Render("Error: "+err.Error()))
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "tabpilot",
		Short: "Automate the task website through a real Chrome tab",
		Long: `tabpilot brings task and QA feedback pages to front in Chrome, extracts the
task id from the task tab, captures the feedback page and keeps a small
session record. Connect to your own Chrome with --remote, or let tabpilot
launch one.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := root.PersistentFlags()
	pf.StringVar(&configPath, "config", "", "path to tabpilot.yaml")
	pf.StringVar(&logLevel, "log-level", "info", "log level: debug, info, warn, error")
	pf.StringVar(&remoteURL, "remote", "", "DevTools URL or host:port of a running Chrome")
	pf.BoolVar(&headless, "headless", false, "launch Chrome headless (ignored with --remote)")
	pf.StringVar(&dbPath, "db", "", "settings database path")
	pf.StringVar(&downloadDir, "download-dir", "", "directory for downloaded captures")
	pf.BoolVar(&traceSQL, "trace-sql", false, "log every SQL statement at debug level")

	root.AddCommand(
		newOpenCmd(),
		newRunCmd(),
		newSaveTaskIDCmd(),
		newCaptureCmd(),
		newSettingsCmd(),
		newSessionCmd(),
		newRunsCmd(),
		newServeCmd(),
		newTokenCmd(),
	)
	return root
}

func newLogger() *slog.Logger {
	var level slog.Level
	switch logLevel {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// loadConfig reads --config when given and applies flag overrides.
func loadConfig() (*pilot.Config, error) {
	cfg := pilot.DefaultConfig()
	if configPath != "" {
		var err error
		if cfg, err = pilot.LoadConfigFile(configPath); err != nil {
			return nil, fmt.Errorf("load config: %w", err)
		}
	}
	if remoteURL != "" {
		cfg.Browser.Remote = remoteURL
	}
	if headless {
		cfg.Browser.Headless = true
	}
	if dbPath != "" {
		cfg.Storage.Path = dbPath
	}
	if downloadDir != "" {
		cfg.Storage.DownloadDir = downloadDir
	}
	if traceSQL {
		cfg.Storage.TraceSQL = true
	}
	if v := os.Getenv("TABPILOT_TOKEN_SECRET"); v != "" {
		cfg.HTTP.TokenSecret = v
	}
	return cfg, nil
}

func openPilot(ctx context.Context, prompter pilot.Prompter) (*pilot.Pilot, *slog.Logger, error) {
	logger := newLogger()
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}
	p, err := pilot.Open(ctx, cfg, prompter, logger)
	if err != nil {
		return nil, nil, err
	}
	return p, logger, nil
}
