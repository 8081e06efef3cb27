package scheduler

import (
	"context"
	"sync"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/recall/pkg/utils/logging"
	"github.com/robfig/cron/v3"
)

// Scheduler runs maintenance jobs of the engines on cron schedules
type Scheduler struct {
	cron *cron.Cron

	mu      sync.Mutex
	ctx     context.Context
	cancel  context.CancelFunc
	running map[string]bool
}

type Option func(*Scheduler)

// WithSeconds accepts schedules with a leading seconds field
func WithSeconds() Option {
	return func(s *Scheduler) {
		s.cron = cron.New(cron.WithSeconds())
	}
}

func New(opts ...Option) *Scheduler {
	s := &Scheduler{
		cron:    cron.New(),
		running: make(map[string]bool),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Add registers fn under spec. A run is skipped while the previous run of
// the same job has not returned.
func (s *Scheduler) Add(name, spec string, fn func(ctx context.Context)) error {
	_, err := s.cron.AddFunc(spec, func() {
		s.mu.Lock()
		ctx := s.ctx
		if ctx == nil || s.running[name] {
			s.mu.Unlock()
			return
		}
		s.running[name] = true
		s.mu.Unlock()

		defer func() {
			s.mu.Lock()
			delete(s.running, name)
			s.mu.Unlock()
		}()

		logging.From(ctx).Debug("scheduled job started", "job", name)
		fn(ctx)
	})
	if err != nil {
		return goerr.Wrap(err, "invalid schedule", goerr.V("job", name), goerr.V("spec", spec))
	}

	logging.Default().Info("job scheduled", "job", name, "spec", spec)
	return nil
}

// Start runs the jobs in the background. ctx is passed to every run and
// its cancellation aborts runs in flight.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	s.ctx, s.cancel = context.WithCancel(ctx)
	s.mu.Unlock()
	s.cron.Start()
}

// Stop stops scheduling, cancels runs in flight and waits for them
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if s.cancel != nil {
		s.cancel()
	}
	s.mu.Unlock()
	<-s.cron.Stop().Done()
}
