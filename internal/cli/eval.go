package cli

import (
	"io"
	"os"

	"github.com/randalmurphal/rulekit/pkg/rulekit"
	"github.com/randalmurphal/rulekit/pkg/rulekit/observability"
	"github.com/randalmurphal/rulekit/pkg/rulekit/ruleset"
	"github.com/randalmurphal/rulekit/pkg/rulekit/script"
	"github.com/spf13/cobra"
)

// EvalOptions holds flags for the eval command.
type EvalOptions struct {
	rules          ruleSource
	Input          string
	Script         string
	Concurrent     bool
	StrictComments bool
}

// EvalResult is the JSON payload of a successful eval.
type EvalResult struct {
	Output     map[string]any `json:"output"`
	Rules      int            `json:"rules"`
	Engine     string         `json:"engine"`
	DurationMs float64        `json:"duration_ms"`
}

// NewEvalCommand creates the eval command.
func NewEvalCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &EvalOptions{}

	cmd := &cobra.Command{
		Use:   "eval",
		Short: "Evaluate rules against a JSON input",
		Long: `Evaluate rules against a JSON input document and print the output object.

Rules come from --rules (a file or directory), --store (the rule store named
in the config), or the config's rules.dir. With --script, a JavaScript file
defining flow(input) runs instead, with the standard functions available.

Examples:
  rulectl eval --rules ./rules --input order.json
  rulectl eval --rules order.rule --input - --concurrent < order.json
  rulectl eval --script order.js --input order.json --format json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runEval(rootOpts, opts, cmd)
		},
	}

	opts.rules.addFlags(cmd)
	cmd.Flags().StringVarP(&opts.Input, "input", "i", "", `JSON input file, or "-" for stdin`)
	cmd.Flags().StringVar(&opts.Script, "script", "", "JavaScript rule file defining flow(input)")
	cmd.Flags().BoolVar(&opts.Concurrent, "concurrent", false, "evaluate rules concurrently")
	cmd.Flags().BoolVar(&opts.StrictComments, "strict-comments", false, "strip comments in a separate pass")

	return cmd
}

func runEval(rootOpts *RootOptions, opts *EvalOptions, cmd *cobra.Command) error {
	f := rootOpts.formatter(cmd)

	s, err := rootOpts.settings()
	if err != nil {
		return f.Fail(ExitCommandError, ErrCodeConfig, "load config", err)
	}
	if opts.StrictComments {
		s.StrictComments = true
	}

	input, err := readInput(cmd, opts.Input)
	if err != nil {
		return f.Fail(ExitCommandError, ErrCodeInput, "read input", err)
	}

	engine, metrics := rootOpts.newEngine(cmd, s)

	var flower rulekit.Flower
	name := rulekit.EngineSequential
	if opts.Script != "" {
		src, err := os.ReadFile(opts.Script)
		if err != nil {
			return f.Fail(ExitCommandError, ErrCodeLoad, "read script", err)
		}
		eng, err := script.New(string(src),
			script.WithFunctions(engine.Functions()),
			script.WithLogger(rootOpts.logger(cmd.ErrOrStderr())),
			script.WithMetrics(metrics),
		)
		if err != nil {
			return f.Fail(ExitFailure, ErrCodeCompile, "compile script", err)
		}
		defer func() { _ = eng.Close() }()
		flower, name = eng, script.EngineScript
	} else {
		defs, err := opts.rules.definitions(s)
		if err != nil {
			return failLoad(f, err)
		}
		if err := ruleset.Apply(engine, defs); err != nil {
			return failLoad(f, err)
		}
		f.VerboseLog("loaded %d rule(s)", engine.Len())

		flower = engine
		if opts.Concurrent {
			flower, name = rulekit.NewDispatcher(engine), rulekit.EngineConcurrent
		}
	}

	done := observability.TimedOperation()
	out, err := flower.Flow(cmd.Context(), input)
	durationMs := done()
	if err != nil {
		return f.Fail(ExitFailure, ErrCodeEval, "evaluate", err)
	}
	f.VerboseLog("%s flow took %.3fms", name, durationMs)

	result := EvalResult{Output: out, Rules: engine.Len(), Engine: name, DurationMs: durationMs}
	return f.Success(result, func(w io.Writer) error {
		return writeJSON(w, out)
	})
}
