// Package servecmder provides the serve command: the API server plus the
// background lifecycle and enrichment jobs in one process.
package servecmder

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/reveriehq/engram/api"
	"github.com/reveriehq/engram/cmd/engram/runtime"
	"github.com/reveriehq/engram/pkg/scheduler"
)

type ServeCommander struct {
	listen    string
	noJobs    bool
	debug     bool
	configDir string
}

const serveLongDesc string = `Run the engram API server.

The server also runs the background jobs on their configured intervals:
the tier lifecycle sweep and the enrichment worker. Use --no-jobs to run
the API alone (e.g. when jobs run in a separate process).`

func NewServeCmd() *cobra.Command {
	cmder := &ServeCommander{}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the API server with background jobs",
		Long:  serveLongDesc,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var err error
			cmder.debug, err = cmd.Flags().GetBool("debug")
			if err != nil {
				return fmt.Errorf("could not get debug flag: %v", err)
			}
			cmder.configDir, err = cmd.Flags().GetString("config")
			if err != nil {
				return fmt.Errorf("could not get config flag: %v", err)
			}
			return cmder.run()
		},
	}

	cmd.Flags().StringVarP(&cmder.listen, "listen", "l", "", "Address for the API server (overrides config)")
	cmd.Flags().BoolVar(&cmder.noJobs, "no-jobs", false, "Run the API server without background jobs")

	return cmd
}

func (c *ServeCommander) run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	rt, err := runtime.New(ctx, c.configDir, c.debug)
	if err != nil {
		return err
	}
	defer rt.Close()

	listen := c.listen
	if listen == "" {
		listen = rt.Config.API.Listen
	}
	server := api.NewServer(api.Config{ListenAddr: listen}, rt.Manager, rt.Summaries, rt.Logger)

	sched := scheduler.NewScheduler(rt.Logger)
	if !c.noJobs {
		sched.Add(scheduler.Job{
			Name:     "tier-sweep",
			Interval: rt.Config.Tiers.SweepInterval,
			Run: func(ctx context.Context) error {
				_, err := rt.TierManager.Run(ctx)
				return err
			},
		})
		sched.Add(scheduler.Job{
			Name:     "enrichment",
			Interval: rt.Config.Enrichment.Interval,
			Run: func(ctx context.Context) error {
				_, err := rt.Worker.Run(ctx)
				return err
			},
		})
	}
	sched.Start(ctx)

	errChan := make(chan error, 1)
	go func() {
		if err := server.Run(); err != nil {
			errChan <- fmt.Errorf("API server error: %w", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errChan:
		cancel()
		sched.Wait()
		return err
	case sig := <-sigChan:
		rt.Logger.Info("received signal, shutting down", zap.String("signal", sig.String()))
		cancel()
		sched.Wait()
		return server.Shutdown()
	}
}
