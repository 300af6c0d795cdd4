package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/randalmurphal/rulekit/pkg/rulekit"
	"github.com/randalmurphal/rulekit/pkg/rulekit/observability"
	"github.com/randalmurphal/rulekit/pkg/rulekit/store"
	"github.com/randalmurphal/rulekit/pkg/rulekit/watch"
	"github.com/robfig/cron/v3"
)

// Store drivers.
const (
	StoreMemory = "memory"
	StoreSQLite = "sqlite"
	StoreBolt   = "bolt"
)

// Metrics backends.
const (
	MetricsNone       = "none"
	MetricsOTel       = "otel"
	MetricsPrometheus = "prometheus"
)

// MetricsNamespace prefixes Prometheus metric names.
const MetricsNamespace = "rulekit"

// ErrInvalidSettings indicates a settings value outside its allowed set.
var ErrInvalidSettings = errors.New("invalid settings")

// EngineSettings configures an engine and its surroundings.
type EngineSettings struct {
	// StrictComments strips comments in a separate pass before lexing.
	StrictComments bool
	// MaxConcurrency bounds concurrent rule evaluation; 0 is unbounded.
	MaxConcurrency int
	// FailFast cancels sibling evaluations on the first error.
	FailFast bool

	// RulesDir is the directory of rule files. Empty disables watching.
	RulesDir string
	// ReloadDebounce delays a directory reload after the last change.
	ReloadDebounce time.Duration
	// ResyncSchedule is a cron spec for reloading from the store.
	// Empty disables resync.
	ResyncSchedule string

	// Store is StoreMemory, StoreSQLite or StoreBolt.
	Store string
	// StorePath is the database file for sqlite and bolt.
	StorePath string

	// Metrics is MetricsNone, MetricsOTel or MetricsPrometheus.
	Metrics string
	// Tracing enables OpenTelemetry spans.
	Tracing bool
}

// DefaultSettings returns settings for an in-memory engine without
// metrics or tracing.
func DefaultSettings() EngineSettings {
	return EngineSettings{
		FailFast:       true,
		ReloadDebounce: watch.DefaultDebounce,
		Store:          StoreMemory,
		Metrics:        MetricsNone,
	}
}

// LoadSettings reads settings from c, falling back to DefaultSettings
// for missing keys, and validates them.
func LoadSettings(c Config) (EngineSettings, error) {
	d := DefaultSettings()
	s := EngineSettings{
		StrictComments: c.Bool("engine.strict_comments", d.StrictComments),
		MaxConcurrency: c.Int("engine.max_concurrency", d.MaxConcurrency),
		FailFast:       c.Bool("engine.fail_fast", d.FailFast),
		RulesDir:       c.String("rules.dir", d.RulesDir),
		ReloadDebounce: c.Duration("rules.reload_debounce", d.ReloadDebounce),
		ResyncSchedule: c.String("rules.resync_schedule", d.ResyncSchedule),
		Store:          strings.ToLower(c.String("store.driver", d.Store)),
		StorePath:      c.String("store.path", d.StorePath),
		Metrics:        strings.ToLower(c.String("observability.metrics", d.Metrics)),
		Tracing:        c.Bool("observability.tracing", d.Tracing),
	}
	if err := s.Validate(); err != nil {
		return EngineSettings{}, err
	}
	return s, nil
}

// Validate checks enumerated values, limits and the resync schedule.
func (s EngineSettings) Validate() error {
	var errs []error
	if s.MaxConcurrency < 0 {
		errs = append(errs, fmt.Errorf("%w: max_concurrency %d is negative", ErrInvalidSettings, s.MaxConcurrency))
	}
	if s.ReloadDebounce < 0 {
		errs = append(errs, fmt.Errorf("%w: reload_debounce %s is negative", ErrInvalidSettings, s.ReloadDebounce))
	}
	switch s.Store {
	case StoreMemory:
	case StoreSQLite, StoreBolt:
		if s.StorePath == "" {
			errs = append(errs, fmt.Errorf("%w: store %s needs a path", ErrInvalidSettings, s.Store))
		}
	default:
		errs = append(errs, fmt.Errorf("%w: unknown store %q", ErrInvalidSettings, s.Store))
	}
	switch s.Metrics {
	case MetricsNone, MetricsOTel, MetricsPrometheus:
	default:
		errs = append(errs, fmt.Errorf("%w: unknown metrics backend %q", ErrInvalidSettings, s.Metrics))
	}
	if s.ResyncSchedule != "" {
		if _, err := cron.ParseStandard(s.ResyncSchedule); err != nil {
			errs = append(errs, fmt.Errorf("%w: resync_schedule: %v", ErrInvalidSettings, err))
		}
	}
	return errors.Join(errs...)
}

// NewMetrics builds the configured metrics recorder. Prometheus metrics are
// registered with reg, or the default registerer when reg is nil.
func (s EngineSettings) NewMetrics(reg prometheus.Registerer) observability.MetricsRecorder {
	switch s.Metrics {
	case MetricsOTel:
		return observability.NewMetricsRecorder()
	case MetricsPrometheus:
		if reg == nil {
			reg = prometheus.DefaultRegisterer
		}
		return observability.NewPrometheusMetrics(MetricsNamespace, reg)
	default:
		return observability.NoopMetrics{}
	}
}

// EngineOptions returns the rulekit options for these settings.
func (s EngineSettings) EngineOptions(logger *slog.Logger, metrics observability.MetricsRecorder) []rulekit.Option {
	opts := []rulekit.Option{
		rulekit.WithLogger(logger),
		rulekit.WithMetrics(metrics),
		rulekit.WithMaxConcurrency(s.MaxConcurrency),
		rulekit.WithFailFast(s.FailFast),
	}
	if s.StrictComments {
		opts = append(opts, rulekit.WithStrictComments())
	}
	if s.Tracing {
		opts = append(opts, rulekit.WithSpanManager(observability.NewSpanManager()))
	}
	return opts
}

// WatchOptions returns the watcher options for these settings.
func (s EngineSettings) WatchOptions(logger *slog.Logger, metrics observability.MetricsRecorder) []watch.Option {
	opts := []watch.Option{
		watch.WithLogger(logger),
		watch.WithMetrics(metrics),
	}
	if s.ReloadDebounce > 0 {
		opts = append(opts, watch.WithDebounce(s.ReloadDebounce))
	}
	return opts
}

// OpenStore opens the configured rule store.
func (s EngineSettings) OpenStore() (store.Store, error) {
	switch s.Store {
	case StoreMemory:
		return store.NewMemoryStore(), nil
	case StoreSQLite:
		st, err := store.NewSQLiteStore(s.StorePath)
		if err != nil {
			return nil, err
		}
		return st, nil
	case StoreBolt:
		st, err := store.NewBoltStore(s.StorePath)
		if err != nil {
			return nil, err
		}
		return st, nil
	default:
		return nil, fmt.Errorf("%w: unknown store %q", ErrInvalidSettings, s.Store)
	}
}
