package jobs_test

import (
	"context"
	"io"
	"log/slog"
	"sync/atomic"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/frahmantamala/payroll-admin/internal/jobs"
)

var _ = Describe("Scheduler", func() {
	var logger *slog.Logger

	BeforeEach(func() {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	})

	It("runs each job on its interval until cancelled", func() {
		var runs atomic.Int32
		s := jobs.NewScheduler(logger, jobs.Job{
			Name:     "tick",
			Interval: 5 * time.Millisecond,
			Run: func(context.Context) (string, error) {
				runs.Add(1)
				return "ok", nil
			},
		})

		ctx, cancel := context.WithCancel(context.Background())
		done := make(chan error, 1)
		go func() { done <- s.Run(ctx) }()

		Eventually(runs.Load).Should(BeNumerically(">=", 3))
		cancel()
		Eventually(done).Should(Receive(BeNil()))
	})

	It("never overlaps a slow job with itself", func() {
		var active, maxActive, runs atomic.Int32
		s := jobs.NewScheduler(logger, jobs.Job{
			Name:     "slow",
			Interval: time.Millisecond,
			Run: func(context.Context) (string, error) {
				n := active.Add(1)
				for {
					m := maxActive.Load()
					if n <= m || maxActive.CompareAndSwap(m, n) {
						break
					}
				}
				time.Sleep(10 * time.Millisecond)
				active.Add(-1)
				runs.Add(1)
				return "ok", nil
			},
		})

		s.Start(context.Background())
		Eventually(runs.Load).Should(BeNumerically(">=", 3))
		s.Shutdown()

		Expect(maxActive.Load()).To(Equal(int32(1)))
	})

	It("leaves jobs without an interval idle", func() {
		var runs atomic.Int32
		s := jobs.NewScheduler(logger, jobs.Job{
			Name: "off",
			Run: func(context.Context) (string, error) {
				runs.Add(1)
				return "", nil
			},
		})

		s.Start(context.Background())
		Consistently(runs.Load, 30*time.Millisecond).Should(BeZero())
		s.Shutdown()
	})
})
