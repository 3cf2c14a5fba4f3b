// Package engramcmder
package engramcmder

import (
	"github.com/spf13/cobra"

	enrichcmder "github.com/reveriehq/engram/cmd/engram/enrich"
	recallcmder "github.com/reveriehq/engram/cmd/engram/recall"
	remembercmder "github.com/reveriehq/engram/cmd/engram/remember"
	servecmder "github.com/reveriehq/engram/cmd/engram/serve"
	tierscmder "github.com/reveriehq/engram/cmd/engram/tiers"
	versioncmder "github.com/reveriehq/engram/cmd/version"
)

const engramLongDesc string = `Engram is a long-lived memory core for conversational agents.

Write and recall memories:
  engram remember      Store one memory for a user/agent pair
  engram recall        Search memories by meaning

Run services and jobs:
  engram serve         Run the API server with background jobs
  engram tiers run     Run one tier lifecycle sweep
  engram tiers prune   Delete expired cold records
  engram enrich run    Run one enrichment pass`

const engramShortDesc string = "Engram - Agent Memory Core"

func NewEngramCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "engram",
		Short: engramShortDesc,
		Long:  engramLongDesc,
	}

	// Global flags
	cmd.PersistentFlags().BoolP("debug", "d", false, "Enable debug logging")
	cmd.PersistentFlags().StringP("config", "c", "", "Config directory (default: ./.engram or ~/.engram)")

	// Add subcommands
	cmd.AddCommand(servecmder.NewServeCmd())
	cmd.AddCommand(remembercmder.NewRememberCmd())
	cmd.AddCommand(recallcmder.NewRecallCmd())
	cmd.AddCommand(tierscmder.NewTiersCmd())
	cmd.AddCommand(enrichcmder.NewEnrichCmd())
	cmd.AddCommand(versioncmder.NewVersionCmd())

	return cmd
}
