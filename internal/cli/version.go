package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dshills/tripdesk-mcp/internal/storage"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "tripdesk %s\ncommit: %s\nbuilt:  %s\n", appVersion, appCommit, appDate)
		fmt.Fprintf(out, "build mode: %s\nsqlite driver: %s\nschema: %s\n",
			storage.BuildMode, storage.DriverName, storage.CurrentSchemaVersion)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
