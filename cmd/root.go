// Package cmd wires configuration, storage, fetchers, and services into
// the helpgrid commands.
package cmd

import (
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/helpgrid/helpgrid/internal/config"
	"github.com/helpgrid/helpgrid/internal/log"
)

var rootCmd = &cobra.Command{
	Use:   "helpgrid",
	Short: "helpgrid - multi-tenant ingestion and retrieval backend",
	Long: `helpgrid syncs Jira, Confluence, and GitHub content into a
per-tenant vector index and serves similarity search and grounded
answers over it.

Commands:
  serve    run the HTTP API server
  worker   run the sync job worker and cadence scheduler
  migrate  apply database migrations
  version  show version information`,
	SilenceUsage: true,
}

var verbose bool

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

// newLogger builds the process logger honoring the --verbose flag.
func newLogger() log.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	return log.New(log.Config{Level: level, JSON: true})
}

// loadConfig loads and logs the configuration (secrets masked by
// Config.String).
func loadConfig(logger log.Logger) (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	logger.Debug("configuration loaded", "config", cfg.String())
	return cfg, nil
}
