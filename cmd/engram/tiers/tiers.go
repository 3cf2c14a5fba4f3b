// Package tierscmder provides the tiers command for running the lifecycle
// sweep and pruning expired records.
package tierscmder

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/reveriehq/engram/cmd/engram/runtime"
	"github.com/reveriehq/engram/pkg/memory"
)

const tiersLongDesc string = `Manage the memory tier lifecycle.

  engram tiers run     Run one sweep: rescore significance and demote idle records
  engram tiers prune   Delete cold records past retention and below the significance floor`

func NewTiersCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tiers",
		Short: "Manage the memory tier lifecycle",
		Long:  tiersLongDesc,
	}

	cmd.AddCommand(newRunCmd())
	cmd.AddCommand(newPruneCmd())

	return cmd
}

func newRunCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run one tier lifecycle sweep",
		RunE: func(cmd *cobra.Command, _ []string) error {
			debug, configDir, err := globalFlags(cmd)
			if err != nil {
				return err
			}

			ctx := context.Background()
			rt, err := runtime.New(ctx, configDir, debug)
			if err != nil {
				return err
			}
			defer rt.Close()

			stats, err := rt.TierManager.Run(ctx)
			if err != nil {
				return err
			}

			fmt.Printf("Scanned: %d\nRescored: %d\nDemoted: %d\nLocked: %d\nQuarantined: %d\nSkipped: %d\n",
				stats.Scanned, stats.Rescored, stats.Demoted, stats.Locked, stats.Quarantined, stats.Skipped)
			return nil
		},
	}
}

func newPruneCmd() *cobra.Command {
	var userID, agentID string

	cmd := &cobra.Command{
		Use:   "prune",
		Short: "Delete expired cold records",
		Long: `Delete cold records past the retention period whose significance sits below
the retention floor. Locked and superseded records are never pruned. Scopes to
one owner when --user and --agent are given, otherwise prunes all owners.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			debug, configDir, err := globalFlags(cmd)
			if err != nil {
				return err
			}

			owner := ""
			if userID != "" || agentID != "" {
				key, err := memory.NewOwnerKey(userID, agentID)
				if err != nil {
					return err
				}
				owner = key.String()
			}

			ctx := context.Background()
			rt, err := runtime.New(ctx, configDir, debug)
			if err != nil {
				return err
			}
			defer rt.Close()

			pruned, err := rt.TierManager.Prune(ctx, owner)
			if err != nil {
				return err
			}

			fmt.Printf("Pruned: %d\n", pruned)
			return nil
		},
	}

	cmd.Flags().StringVarP(&userID, "user", "u", "", "User ID to scope pruning")
	cmd.Flags().StringVarP(&agentID, "agent", "a", "", "Agent ID to scope pruning")

	return cmd
}

func globalFlags(cmd *cobra.Command) (bool, string, error) {
	debug, err := cmd.Flags().GetBool("debug")
	if err != nil {
		return false, "", fmt.Errorf("could not get debug flag: %v", err)
	}
	configDir, err := cmd.Flags().GetString("config")
	if err != nil {
		return false, "", fmt.Errorf("could not get config flag: %v", err)
	}
	return debug, configDir, nil
}
