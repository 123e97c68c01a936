package cli

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/dshills/tripdesk-mcp/internal/consistency"
	"github.com/dshills/tripdesk-mcp/pkg/types"
)

var (
	recomputeLimit  int
	reconcileRepair bool
)

var recomputeCmd = &cobra.Command{
	Use:   "recompute",
	Short: "Recompute facts for one batch of dirty trips",
	Long: `Recompute drains up to --limit trips from the dirty queue, oldest first.
A batch that runs out of its time budget prints the partial result and
exits successfully; run the command again to continue.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := openEngine()
		if err != nil {
			return err
		}
		defer e.Close()

		result, err := e.Facts.Recompute(cmd.Context(), recomputeLimit)
		var timeout *types.TimeoutError
		if err != nil && !errors.As(err, &timeout) {
			return fmt.Errorf("recompute failed: %w", err)
		}
		if timeout != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "warning: %v\n", timeout)
		}
		return printJSON(cmd.OutOrStdout(), result)
	},
}

var reconcileCmd = &cobra.Command{
	Use:   "reconcile [trip_id...]",
	Short: "Audit assignment rows against embedded client lists",
	Long: `Reconcile compares each trip's assignment rows with the client list
embedded in its document. With --repair, divergent embedded lists are
rewritten from the assignment rows. Without trip ids every trip is checked.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ids := make([]int64, 0, len(args))
		for _, arg := range args {
			id, err := strconv.ParseInt(arg, 10, 64)
			if err != nil || id <= 0 {
				return fmt.Errorf("invalid trip id %q", arg)
			}
			ids = append(ids, id)
		}

		e, err := openEngine()
		if err != nil {
			return err
		}
		defer e.Close()

		ctx := cmd.Context()
		if len(ids) == 0 {
			report, err := e.Consistency.ReconcileAll(ctx, reconcileRepair)
			if err != nil {
				return fmt.Errorf("reconcile failed: %w", err)
			}
			return printJSON(cmd.OutOrStdout(), report)
		}

		diffs := make([]*consistency.Diff, 0, len(ids))
		for _, id := range ids {
			var diff *consistency.Diff
			if reconcileRepair {
				diff, err = e.Consistency.Repair(ctx, id)
			} else {
				diff, err = e.Consistency.Reconcile(ctx, id)
			}
			if err != nil {
				return fmt.Errorf("trip %d: %w", id, err)
			}
			diffs = append(diffs, diff)
		}
		return printJSON(cmd.OutOrStdout(), diffs)
	},
}

var reindexCmd = &cobra.Command{
	Use:   "reindex",
	Short: "Rebuild search text and semantic components for every trip",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := openEngine()
		if err != nil {
			return err
		}
		defer e.Close()

		stats, err := e.Reindex(cmd.Context())
		if err != nil {
			return fmt.Errorf("reindex failed: %w", err)
		}
		return printJSON(cmd.OutOrStdout(), map[string]interface{}{
			"trips_indexed":      stats.TripsIndexed,
			"trips_failed":       stats.TripsFailed,
			"components_created": stats.ComponentsCreated,
			"duration_ms":        stats.Duration.Milliseconds(),
			"errors":             stats.ErrorMessages,
		})
	},
}

func init() {
	recomputeCmd.Flags().IntVar(&recomputeLimit, "limit", 0, "maximum trips to process (default from config)")
	reconcileCmd.Flags().BoolVar(&reconcileRepair, "repair", false, "rewrite divergent embedded client lists")

	rootCmd.AddCommand(recomputeCmd)
	rootCmd.AddCommand(reconcileCmd)
	rootCmd.AddCommand(reindexCmd)
}
