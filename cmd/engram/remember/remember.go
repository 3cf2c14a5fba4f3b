// Package remembercmder provides the remember command for storing one memory.
package remembercmder

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/reveriehq/engram/cmd/engram/runtime"
	"github.com/reveriehq/engram/pkg/memory"
)

type RememberCommander struct {
	userID     string
	agentID    string
	source     string
	confidence float64
	emotion    float64
	debug      bool
	configDir  string
}

const rememberLongDesc string = `Store one memory for a user/agent pair.

The content is embedded under every perspective and checked against prior
memories; a contradicted prior memory is marked superseded, never deleted.

Example:
  engram remember --user u1 --agent elena "I moved to Lisbon last month"`

func NewRememberCmd() *cobra.Command {
	cmder := &RememberCommander{}

	cmd := &cobra.Command{
		Use:   "remember [content]",
		Short: "Store one memory",
		Long:  rememberLongDesc,
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
	cmd.Flags().StringVarP(&cmder.source, "source", "s", string(memory.SourceDirectStatement), "Source type")
	cmd.Flags().Float64Var(&cmder.confidence, "confidence", 1.0, "Extraction confidence in [0,1]")
	cmd.Flags().Float64Var(&cmder.emotion, "emotion", 0, "Emotional intensity in [0,1]")
	_ = cmd.MarkFlagRequired("user")
	_ = cmd.MarkFlagRequired("agent")

	return cmd
}

func (c *RememberCommander) run(content string) error {
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
	source, err := memory.ParseSourceType(c.source)
	if err != nil {
		return err
	}

	rec, err := rt.Manager.Write(ctx, memory.WriteInput{
		Owner:              owner,
		Content:            content,
		Source:             source,
		Confidence:         c.confidence,
		EmotionalIntensity: c.emotion,
	})
	if err != nil {
		return err
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(rec)
}
