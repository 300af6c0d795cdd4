package watch

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// Resyncer reloads rules on a cron schedule.
//
// Common schedules:
//   - "*/5 * * * *" - every five minutes
//   - "@hourly"     - at the start of every hour
//   - "@every 30s"  - every thirty seconds
type Resyncer struct {
	schedule string
	fn       ReloadFunc
	opts     options
	cron     *cron.Cron

	mu      sync.Mutex
	running bool
	started bool
}

// NewResyncer validates schedule and returns a stopped Resyncer.
func NewResyncer(schedule string, fn ReloadFunc, opts ...Option) (*Resyncer, error) {
	if _, err := cron.ParseStandard(schedule); err != nil {
		return nil, fmt.Errorf("invalid cron schedule %q: %w", schedule, err)
	}
	return &Resyncer{
		schedule: schedule,
		fn:       fn,
		opts:     buildOptions("store", opts),
		cron:     cron.New(),
	}, nil
}

// Start schedules reloads until Stop is called or ctx is done.
// Scheduled reloads run with ctx. A Resyncer can be started once.
func (r *Resyncer) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.started {
		return ErrRunning
	}
	r.started = true

	if _, err := r.cron.AddFunc(r.schedule, func() {
		_ = r.opts.reload(ctx, r.fn)
	}); err != nil {
		return fmt.Errorf("schedule resync: %w", err)
	}

	r.cron.Start()
	r.running = true

	if r.opts.logger != nil {
		r.opts.logger.Info("rule resync scheduled",
			"schedule", r.schedule,
			"source", r.opts.source,
		)
	}

	go func() {
		<-ctx.Done()
		r.Stop()
	}()
	return nil
}

// Stop stops the schedule and waits for a running reload to finish.
func (r *Resyncer) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.running {
		return
	}
	<-r.cron.Stop().Done()
	r.running = false
}

// RunNow reloads immediately, outside the schedule.
func (r *Resyncer) RunNow(ctx context.Context) error {
	return r.opts.reload(ctx, r.fn)
}

// IsRunning reports whether the schedule is active.
func (r *Resyncer) IsRunning() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.running
}

// NextRun returns the next scheduled reload, or the zero time when stopped.
func (r *Resyncer) NextRun() time.Time {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.running {
		return time.Time{}
	}
	entries := r.cron.Entries()
	if len(entries) == 0 {
		return time.Time{}
	}
	return entries[0].Next
}
