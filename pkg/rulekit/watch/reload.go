package watch

import (
	"context"
	"log/slog"
	"time"

	"github.com/randalmurphal/rulekit/pkg/rulekit"
	"github.com/randalmurphal/rulekit/pkg/rulekit/observability"
	"github.com/randalmurphal/rulekit/pkg/rulekit/ruleset"
	"github.com/randalmurphal/rulekit/pkg/rulekit/store"
)

// ReloadFunc rebuilds a rule set and reports how many rules it loaded.
type ReloadFunc func(ctx context.Context) (int, error)

// DirReloader loads every rule file in dir into engine.
func DirReloader(engine *rulekit.Engine, dir string) ReloadFunc {
	return func(context.Context) (int, error) {
		defs, err := ruleset.LoadDir(dir)
		if err != nil {
			return 0, err
		}
		if err := ruleset.Reload(engine, defs); err != nil {
			return 0, err
		}
		return len(defs), nil
	}
}

// StoreReloader loads every source in s into engine.
func StoreReloader(engine *rulekit.Engine, s store.Store) ReloadFunc {
	return func(context.Context) (int, error) {
		defs, err := ruleset.FromStore(s)
		if err != nil {
			return 0, err
		}
		if err := ruleset.Reload(engine, defs); err != nil {
			return 0, err
		}
		return len(defs), nil
	}
}

// options shared by DirWatcher and Resyncer.
type options struct {
	logger   *slog.Logger
	metrics  observability.MetricsRecorder
	source   string
	debounce time.Duration
}

// Option configures a DirWatcher or Resyncer.
type Option func(*options)

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithMetrics records each reload. Default: observability.NoopMetrics{}.
func WithMetrics(m observability.MetricsRecorder) Option {
	return func(o *options) {
		if m != nil {
			o.metrics = m
		}
	}
}

// WithSource sets the source label used in logs and metrics.
// Default: the watched directory, or "store" for a Resyncer.
func WithSource(source string) Option {
	return func(o *options) {
		o.source = source
	}
}

// WithDebounce sets how long a DirWatcher waits after the last change
// before reloading. Default: 100ms.
func WithDebounce(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.debounce = d
		}
	}
}

func buildOptions(source string, opts []Option) options {
	o := options{
		logger:   slog.Default(),
		metrics:  observability.NoopMetrics{},
		source:   source,
		debounce: DefaultDebounce,
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// reload runs fn and reports the outcome.
func (o *options) reload(ctx context.Context, fn ReloadFunc) error {
	n, err := fn(ctx)
	observability.LogReload(o.logger, o.source, n, err)
	o.metrics.RecordReload(ctx, o.source, n, err)
	return err
}
