package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/randalmurphal/rulekit/pkg/rulekit"
	"github.com/randalmurphal/rulekit/pkg/rulekit/watch"
	"github.com/spf13/cobra"
)

// WatchOptions holds flags for the watch command.
type WatchOptions struct {
	Dir        string
	Store      bool
	Schedule   string
	Input      string
	Concurrent bool
}

// NewWatchCommand creates the watch command.
func NewWatchCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &WatchOptions{}

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Reload rules on change and re-evaluate an input",
		Long: `Load rules, evaluate the input, and repeat after every reload until
interrupted.

With --rules, the directory is watched for rule file changes. With --store,
rules are reloaded from the rule store on a cron schedule (--schedule, or
the config's rules.resync_schedule).

Examples:
  rulectl watch --rules ./rules --input order.json
  rulectl watch --store --schedule "@every 30s" --config rulekit.yaml --input order.json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWatch(rootOpts, opts, cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.Dir, "rules", "r", "", "rules directory to watch")
	cmd.Flags().BoolVar(&opts.Store, "store", false, "resync rules from the configured rule store")
	cmd.Flags().StringVar(&opts.Schedule, "schedule", "", "cron schedule for --store resyncs")
	cmd.Flags().StringVarP(&opts.Input, "input", "i", "", "JSON input file")
	cmd.Flags().BoolVar(&opts.Concurrent, "concurrent", false, "evaluate rules concurrently")

	return cmd
}

func runWatch(rootOpts *RootOptions, opts *WatchOptions, cmd *cobra.Command) error {
	f := rootOpts.formatter(cmd)
	ctx := cmd.Context()

	s, err := rootOpts.settings()
	if err != nil {
		return f.Fail(ExitCommandError, ErrCodeConfig, "load config", err)
	}
	input, err := readInput(cmd, opts.Input)
	if err != nil {
		return f.Fail(ExitCommandError, ErrCodeInput, "read input", err)
	}

	engine, metrics := rootOpts.newEngine(cmd, s)
	var flower rulekit.Flower = engine
	if opts.Concurrent {
		flower = rulekit.NewDispatcher(engine)
	}

	// Reloads from the watcher and the resyncer may overlap with output.
	var mu sync.Mutex
	report := func(ctx context.Context) {
		mu.Lock()
		defer mu.Unlock()
		out, err := flower.Flow(ctx, input)
		if err != nil {
			f.VerboseLog("evaluate: %v", err)
			_ = f.Success(map[string]any{"error": err.Error()}, func(w io.Writer) error {
				_, err := fmt.Fprintf(w, "error: %v\n", err)
				return err
			})
			return
		}
		_ = f.Success(EvalResult{Output: out, Rules: engine.Len()}, func(w io.Writer) error {
			return writeJSON(w, out)
		})
	}
	reporting := func(fn watch.ReloadFunc) watch.ReloadFunc {
		return func(ctx context.Context) (int, error) {
			n, err := fn(ctx)
			if err == nil {
				report(ctx)
			}
			return n, err
		}
	}

	wopts := s.WatchOptions(rootOpts.logger(cmd.ErrOrStderr()), metrics)

	switch {
	case opts.Store:
		schedule := opts.Schedule
		if schedule == "" {
			schedule = s.ResyncSchedule
		}
		if schedule == "" {
			return f.Fail(ExitCommandError, ErrCodeConfig, "resync", errors.New("no schedule: pass --schedule or set rules.resync_schedule"))
		}
		st, err := s.OpenStore()
		if err != nil {
			return f.Fail(ExitCommandError, ErrCodeStore, "open store", err)
		}
		defer func() { _ = st.Close() }()

		r, err := watch.NewResyncer(schedule, reporting(watch.StoreReloader(engine, st)), wopts...)
		if err != nil {
			return f.Fail(ExitCommandError, ErrCodeConfig, "resync", err)
		}
		if err := r.RunNow(ctx); err != nil {
			return failLoad(f, err)
		}
		if err := r.Start(ctx); err != nil {
			return f.Fail(ExitCommandError, ErrCodeStore, "resync", err)
		}
		<-ctx.Done()
		r.Stop()
		return nil

	default:
		dir := opts.Dir
		if dir == "" {
			dir = s.RulesDir
		}
		if dir == "" {
			return f.Fail(ExitCommandError, ErrCodeLoad, "watch", errors.New("no rules directory: pass --rules or set rules.dir"))
		}
		w, err := watch.NewDirWatcher(dir, reporting(watch.DirReloader(engine, dir)), wopts...)
		if err != nil {
			return f.Fail(ExitCommandError, ErrCodeLoad, "watch", err)
		}
		if err := w.Reload(ctx); err != nil {
			return failLoad(f, err)
		}
		return w.Run(ctx)
	}
}
