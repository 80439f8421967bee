package job

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/robfig/cron"
	"github.com/rs/zerolog/log"
)

type PassRunner interface {
	RunPass(ctx context.Context) (PassResult, error)
}

// Scheduler runs poll passes on a fixed interval. Passes never overlap: a
// tick that fires while a pass is still running is dropped.
type Scheduler struct {
	job      PassRunner
	interval time.Duration
	running  sync.Mutex
}

func NewScheduler(job PassRunner, interval time.Duration) *Scheduler {
	return &Scheduler{job: job, interval: interval}
}

// Run executes a pass immediately and then every interval until ctx is
// cancelled or a pass fails. A failed pass stops the scheduler and its error
// is returned; cancellation returns nil once the pass in flight has finished.
func (s *Scheduler) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	errCh := make(chan error, 1)
	tick := func() {
		if !s.running.TryLock() {
			log.Debug().Msg("Previous pass still running, skipping tick")
			return
		}
		defer s.running.Unlock()
		if ctx.Err() != nil {
			return
		}

		if _, err := s.job.RunPass(ctx); err != nil {
			if ctx.Err() != nil {
				return
			}
			sentry.CaptureException(err)
			select {
			case errCh <- err:
			default:
			}
			cancel()
		}
	}

	tick()
	select {
	case err := <-errCh:
		return err
	default:
	}

	c := cron.New()
	if err := c.AddFunc(fmt.Sprintf("@every %s", s.interval), tick); err != nil {
		return fmt.Errorf("schedule poll pass: %w", err)
	}
	c.Start()
	log.Info().Dur("interval", s.interval).Msg("Watcher started")

	<-ctx.Done()
	c.Stop()

	// Let the pass in flight finish before returning.
	s.running.Lock()
	s.running.Unlock()

	select {
	case err := <-errCh:
		return err
	default:
		log.Info().Msg("Watcher stopped")
		return nil
	}
}
