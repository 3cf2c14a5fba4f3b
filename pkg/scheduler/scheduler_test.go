package scheduler_test

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/zap"

	"github.com/reveriehq/engram/pkg/scheduler"
)

var _ = Describe("Scheduler", func() {
	It("runs each job immediately and then on its interval", func() {
		var runs atomic.Int32

		sched := scheduler.NewScheduler(zap.NewNop())
		sched.Add(scheduler.Job{
			Name:     "counter",
			Interval: 10 * time.Millisecond,
			Run: func(_ context.Context) error {
				runs.Add(1)
				return nil
			},
		})

		ctx, cancel := context.WithCancel(context.Background())
		sched.Start(ctx)

		Eventually(func() int32 { return runs.Load() }).Should(BeNumerically(">=", 3))

		cancel()
		sched.Wait()
	})

	It("keeps ticking after a failed run", func() {
		var runs atomic.Int32

		sched := scheduler.NewScheduler(zap.NewNop())
		sched.Add(scheduler.Job{
			Name:     "flaky",
			Interval: 10 * time.Millisecond,
			Run: func(_ context.Context) error {
				if runs.Add(1) == 1 {
					return errors.New("transient")
				}
				return nil
			},
		})

		ctx, cancel := context.WithCancel(context.Background())
		sched.Start(ctx)

		Eventually(func() int32 { return runs.Load() }).Should(BeNumerically(">=", 2))

		cancel()
		sched.Wait()
	})

	It("runs jobs independently", func() {
		var fast, slow atomic.Int32

		sched := scheduler.NewScheduler(zap.NewNop())
		sched.Add(scheduler.Job{
			Name:     "fast",
			Interval: 5 * time.Millisecond,
			Run: func(_ context.Context) error {
				fast.Add(1)
				return nil
			},
		})
		sched.Add(scheduler.Job{
			Name:     "slow",
			Interval: time.Hour,
			Run: func(_ context.Context) error {
				slow.Add(1)
				return nil
			},
		})

		ctx, cancel := context.WithCancel(context.Background())
		sched.Start(ctx)

		Eventually(func() int32 { return fast.Load() }).Should(BeNumerically(">=", 3))
		Expect(slow.Load()).To(Equal(int32(1)))

		cancel()
		sched.Wait()
	})

	It("stops all jobs when the context is canceled", func() {
		sched := scheduler.NewScheduler(zap.NewNop())
		sched.Add(scheduler.Job{
			Name:     "noop",
			Interval: time.Millisecond,
			Run:      func(_ context.Context) error { return nil },
		})

		ctx, cancel := context.WithCancel(context.Background())
		sched.Start(ctx)
		cancel()

		done := make(chan struct{})
		go func() {
			sched.Wait()
			close(done)
		}()
		Eventually(done).Should(BeClosed())
	})
})
