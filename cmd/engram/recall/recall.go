// Package recallcmder provides the recall command for semantic retrieval.
package recallcmder

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/reveriehq/engram/cmd/engram/runtime"
	"github.com/reveriehq/engram/pkg/memory"
	"github.com/reveriehq/engram/pkg/utils"
)

type RecallCommander struct {
	userID            string
	agentID           string
	perspective       string
	topK              int
	minTier           string
	includeSuperseded bool
	debug             bool
	configDir         string
}

const recallLongDesc string = `Search memories by meaning for a user/agent pair.

Queries embed under one perspective: content (what was said), affect (how it
felt) or topic (what it was about).

Example:
  engram recall --user u1 --agent elena "where do they live"`

func NewRecallCmd() *cobra.Command {
	cmder := &RecallCommander{}

	cmd := &cobra.Command{
		Use:   "recall [query]",
		Short: "Search memories by meaning",
		Long:  recallLongDesc,
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var err error
			cmder.debug, err = cmd.Flags().GetBool("debug")
			if err != nil {
				return fmt.Errorf("could not get debug flag: %v", err)
			}
			cmder.configDir, err = cmd.Flags().GetString("config")
			if err != nil {
				return fmt.Errorf("could not get config flag: %v", err)
			}
			return cmder.run(strings.Join(args, " "))
		},
	}

	cmd.Flags().StringVarP(&cmder.userID, "user", "u", "", "User ID (required)")
	cmd.Flags().StringVarP(&cmder.agentID, "agent", "a", "", "Agent ID (required)")
	cmd.Flags().StringVarP(&cmder.perspective, "perspective", "p", "", "Perspective: content, affect or topic")
	cmd.Flags().IntVarP(&cmder.topK, "top-k", "k", 10, "Number of results")
	cmd.Flags().StringVar(&cmder.minTier, "min-tier", "", "Lowest tier to search: hot, warm or cold")
	cmd.Flags().BoolVar(&cmder.includeSuperseded, "include-superseded", false, "Return superseded records as-is")
	_ = cmd.MarkFlagRequired("user")
	_ = cmd.MarkFlagRequired("agent")

	return cmd
}

func (c *RecallCommander) run(query string) error {
	ctx := context.Background()

	rt, err := runtime.New(ctx, c.configDir, c.debug)
	if err != nil {
		return err
	}
	defer rt.Close()

	owner, err := memory.NewOwnerKey(c.userID, c.agentID)
	if err != nil {
		return err
	}

	var minTier memory.Tier
	if c.minTier != "" {
		minTier, err = memory.ParseTier(c.minTier)
		if err != nil {
			return err
		}
	}

	records, err := rt.Manager.Retrieve(ctx, memory.RetrieveQuery{
		Owner:             owner,
		Text:              query,
		Perspective:       c.perspective,
		TopK:              c.topK,
		MinTier:           minTier,
		IncludeSuperseded: c.includeSuperseded,
	})
	if err != nil {
		return err
	}

	if len(records) == 0 {
		fmt.Println("No memories found.")
		return nil
	}

	for _, rec := range records {
		fmt.Printf("%s  [%s/%s]  %s\n", rec.ID, rec.Tier, rec.Source, utils.Truncate(rec.Content, 96))
	}
	return nil
}
