package cli

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/randalmurphal/rulekit/pkg/rulekit"
	"github.com/randalmurphal/rulekit/pkg/rulekit/config"
	"github.com/randalmurphal/rulekit/pkg/rulekit/observability"
	"github.com/randalmurphal/rulekit/pkg/rulekit/stdlib"
	"github.com/spf13/cobra"
)

// Output formats.
const (
	FormatText = "text"
	FormatJSON = "json"
)

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{FormatText, FormatJSON}

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose bool
	Format  string
	Config  string
}

// NewRootCommand creates the root command for rulectl.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "rulectl",
		Short: "rulectl - evaluate and check business rules",
		Long: `rulectl compiles rule files, evaluates them against JSON input,
and manages rule sources kept in a rule store.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !slices.Contains(ValidFormats, opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", FormatText, "output format (json|text)")
	cmd.PersistentFlags().StringVarP(&opts.Config, "config", "c", "", "config file (yaml or json)")

	cmd.AddCommand(NewEvalCommand(opts))
	cmd.AddCommand(NewCheckCommand(opts))
	cmd.AddCommand(NewASTCommand(opts))
	cmd.AddCommand(NewStoreCommand(opts))
	cmd.AddCommand(NewWatchCommand(opts))

	return cmd
}

// formatter returns the output formatter for cmd.
func (o *RootOptions) formatter(cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:    o.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   o.Verbose,
	}
}

// settings loads the config file, or defaults when none is given.
func (o *RootOptions) settings() (config.EngineSettings, error) {
	if o.Config == "" {
		return config.DefaultSettings(), nil
	}
	cfg, err := config.FromFile(o.Config)
	if err != nil {
		return config.EngineSettings{}, err
	}
	return config.LoadSettings(cfg)
}

// logger writes engine logs to w: debug and up when verbose, warnings
// and up otherwise.
func (o *RootOptions) logger(w io.Writer) *slog.Logger {
	level := slog.LevelWarn
	if o.Verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

// newEngine builds an engine from settings with the standard library and
// a snapshot of the process environment registered.
func (o *RootOptions) newEngine(cmd *cobra.Command, s config.EngineSettings) (*rulekit.Engine, observability.MetricsRecorder) {
	logger := o.logger(cmd.ErrOrStderr())
	// Each command gets its own registry; commands may run many times per process in tests.
	metrics := s.NewMetrics(prometheus.NewRegistry())
	engine := rulekit.New(s.EngineOptions(logger, metrics)...)
	stdlib.Register(engine)
	engine.RegisterFunction("env", stdlib.NewEnv(environ()))
	return engine, metrics
}

// environ returns the process environment as a map.
func environ() map[string]string {
	env := make(map[string]string)
	for _, kv := range os.Environ() {
		if k, v, ok := strings.Cut(kv, "="); ok {
			env[k] = v
		}
	}
	return env
}
