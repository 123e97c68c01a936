// Package cli implements the tripdesk command line: the MCP server and the
// maintenance commands that drive the engine outside of tool calls.
package cli

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/dshills/tripdesk-mcp/internal/config"
	"github.com/dshills/tripdesk-mcp/internal/engine"
	"github.com/dshills/tripdesk-mcp/internal/logging"
)

var (
	appVersion = "dev"
	appCommit  = "none"
	appDate    = "unknown"
)

// Flags shared by every command
var (
	configPath string
	dbPath     string
	logLevel   string
)

// SetVersionInfo sets the version information injected via ldflags.
func SetVersionInfo(version, commit, date string) {
	appVersion = version
	appCommit = commit
	appDate = date
}

var rootCmd = &cobra.Command{
	Use:   "tripdesk",
	Short: "Trip data consistency and search resolution engine",
	Long: `tripdesk keeps trip records, client assignments and derived trip facts
consistent, and resolves free-text trip references (slugs, client names,
destinations, paraphrases) to trip ids.

Run "tripdesk serve" to expose the engine as MCP tools on stdio.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file (default ./tripdesk.yaml or ~/.tripdesk/tripdesk.yaml)")
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "database path (overrides TRIPDESK_DB_PATH)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level: debug, info, warn, error")
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

// openEngine loads configuration, applies flag overrides and builds the
// engine. The caller closes it.
func openEngine() (*engine.Engine, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	if dbPath != "" {
		cfg.DBPath = dbPath
	}
	if logLevel != "" {
		cfg.Logger.Level = logLevel
	}

	logger, err := logging.New(logging.Config{Level: cfg.Logger.Level, Encoding: cfg.Logger.Encoding})
	if err != nil {
		return nil, fmt.Errorf("building logger: %w", err)
	}

	e, err := engine.New(cfg, logger)
	if err != nil {
		_ = logger.Sync()
		return nil, err
	}
	logger.Debug("engine ready", zap.String("db_path", cfg.DBPath))
	return e, nil
}

// printJSON writes v as indented JSON
func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
