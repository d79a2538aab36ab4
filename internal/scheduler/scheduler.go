// Package scheduler runs recurring jobs on cron schedules.
//
// Each job loops on its own goroutine: compute the next activation from
// the schedule, wait on the clock, run. A failing or panicking job is
// logged and retried at its next activation; it never stops the loop or
// the other jobs. Runs of the same job never overlap.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/robfig/cron/v3"
)

// ErrUnknownJob is returned by RunNow for a name that was never added.
var ErrUnknownJob = errors.New("scheduler: unknown job")

// Job is one unit of recurring work.
type Job interface {
	Name() string
	Run(ctx context.Context) error
}

// Event describes one job run for the observability hooks.
type Event struct {
	Job      string
	Started  time.Time
	Duration time.Duration
	Err      error
}

type Options struct {
	Clock    clockwork.Clock
	Location *time.Location
	Logger   *slog.Logger

	// OnStart and OnFinish are called around every run, scheduled or
	// manual. OnStart's Event has no Duration or Err.
	OnStart  func(Event)
	OnFinish func(Event)
}

type entry struct {
	spec     string
	schedule cron.Schedule
	job      Job
	mu       sync.Mutex
}

type Scheduler struct {
	opts Options

	mu      sync.Mutex
	entries []*entry
	running bool
}

func New(opts Options) *Scheduler {
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	if opts.Location == nil {
		opts.Location = time.Local
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Scheduler{opts: opts}
}

// Add registers job on a standard 5-field cron spec. Jobs must be added
// before Run.
func (s *Scheduler) Add(spec string, job Job) error {
	schedule, err := cron.ParseStandard(spec)
	if err != nil {
		return fmt.Errorf("scheduler: job %s: %w", job.Name(), err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return fmt.Errorf("scheduler: job %s added after Run", job.Name())
	}
	for _, e := range s.entries {
		if e.job.Name() == job.Name() {
			return fmt.Errorf("scheduler: duplicate job %s", job.Name())
		}
	}
	s.entries = append(s.entries, &entry{spec: spec, schedule: schedule, job: job})
	return nil
}

// Run drives every job until ctx is cancelled, then waits for in-flight
// runs to return.
func (s *Scheduler) Run(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return errors.New("scheduler: already running")
	}
	s.running = true
	entries := append([]*entry(nil), s.entries...)
	s.mu.Unlock()

	var wg sync.WaitGroup
	for _, e := range entries {
		wg.Add(1)
		go func(e *entry) {
			defer wg.Done()
			s.loop(ctx, e)
		}(e)
		s.opts.Logger.Info("job scheduled", "job", e.job.Name(), "spec", e.spec)
	}
	wg.Wait()
	return nil
}

// RunNow runs the named job immediately and returns its error.
func (s *Scheduler) RunNow(ctx context.Context, name string) error {
	s.mu.Lock()
	var target *entry
	for _, e := range s.entries {
		if e.job.Name() == name {
			target = e
			break
		}
	}
	s.mu.Unlock()

	if target == nil {
		return fmt.Errorf("%w: %s", ErrUnknownJob, name)
	}
	return s.execute(ctx, target)
}

func (s *Scheduler) loop(ctx context.Context, e *entry) {
	for {
		now := s.opts.Clock.Now().In(s.opts.Location)
		next := e.schedule.Next(now)
		if next.IsZero() {
			s.opts.Logger.Error("job has no future activation", "job", e.job.Name(), "spec", e.spec)
			return
		}

		timer := s.opts.Clock.NewTimer(next.Sub(now))
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.Chan():
		}

		_ = s.execute(ctx, e)
	}
}

func (s *Scheduler) execute(ctx context.Context, e *entry) (err error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	name := e.job.Name()
	started := s.opts.Clock.Now()
	if s.opts.OnStart != nil {
		s.opts.OnStart(Event{Job: name, Started: started})
	}

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("job %s panicked: %v", name, r)
		}
		event := Event{Job: name, Started: started, Duration: s.opts.Clock.Since(started), Err: err}
		if err != nil {
			s.opts.Logger.Error("job failed", "job", name, "duration", event.Duration, "error", err)
		} else {
			s.opts.Logger.Info("job finished", "job", name, "duration", event.Duration)
		}
		if s.opts.OnFinish != nil {
			s.opts.OnFinish(event)
		}
	}()

	return e.job.Run(ctx)
}
