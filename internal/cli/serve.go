package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/dshills/tripdesk-mcp/internal/mcp"
	"github.com/dshills/tripdesk-mcp/internal/storage"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the tripdesk MCP server on stdio",
	Long: `Start the tripdesk MCP server on stdio transport.

Logs go to stderr; stdout is reserved for the MCP protocol.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := openEngine()
		if err != nil {
			return err
		}
		logger := e.Logger
		defer func() { _ = logger.Sync() }()

		logger.Info("tripdesk MCP server starting",
			zap.String("version", appVersion),
			zap.String("build_mode", storage.BuildMode),
			zap.String("driver", storage.DriverName),
		)
		srv := mcp.NewServer(e)

		ctx, cancel := context.WithCancel(cmd.Context())
		defer cancel()

		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
		defer signal.Stop(sigChan)

		errChan := make(chan error, 1)
		go func() {
			logger.Info("MCP server ready, listening on stdio")
			errChan <- srv.Serve(ctx)
		}()

		select {
		case sig := <-sigChan:
			logger.Info("shutting down", zap.String("signal", sig.String()))
			cancel()
		case err := <-errChan:
			if err != nil {
				return err
			}
		}

		logger.Info("server stopped")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
