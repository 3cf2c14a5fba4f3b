// Package enrichcmder provides the enrich command for running the
// summarization worker on demand.
package enrichcmder

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/reveriehq/engram/cmd/engram/runtime"
)

func NewEnrichCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "enrich",
		Short: "Run the enrichment worker",
		Long: `Run the enrichment worker, which compresses each owner's unsummarized
time windows into durable summary rows. Safe to re-run: already-summarized
windows are no-ops.`,
	}

	cmd.AddCommand(newRunCmd())

	return cmd
}

func newRunCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run one enrichment pass",
		RunE: func(cmd *cobra.Command, _ []string) error {
			debug, err := cmd.Flags().GetBool("debug")
			if err != nil {
				return fmt.Errorf("could not get debug flag: %v", err)
			}
			configDir, err := cmd.Flags().GetString("config")
			if err != nil {
				return fmt.Errorf("could not get config flag: %v", err)
			}

			ctx := context.Background()
			rt, err := runtime.New(ctx, configDir, debug)
			if err != nil {
				return err
			}
			defer rt.Close()

			stats, err := rt.Worker.Run(ctx)
			if err != nil {
				return err
			}

			fmt.Printf("Owners: %d\nWindows: %d\nSummarized: %d\nSparse: %d\nDuplicates: %d\nFailed: %d\n",
				stats.Owners, stats.Windows, stats.Summarized, stats.Sparse, stats.Duplicates, stats.Failed)
			return nil
		},
	}
}
