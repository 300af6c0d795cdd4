package cli

import (
	"fmt"
	"io"

	"github.com/randalmurphal/rulekit/pkg/rulekit/ruleset"
	"github.com/spf13/cobra"
)

// CheckResult is the JSON payload of a successful check.
type CheckResult struct {
	Valid bool        `json:"valid"`
	Rules []CheckRule `json:"rules"`
}

// CheckRule describes one compiled rule.
type CheckRule struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Source      string `json:"source,omitempty"`
	Conditions  int    `json:"conditions"`
}

// NewCheckCommand creates the check command.
func NewCheckCommand(rootOpts *RootOptions) *cobra.Command {
	var rules ruleSource
	var strict bool

	cmd := &cobra.Command{
		Use:   "check",
		Short: "Compile rules and report errors",
		Long: `Parse and compile rules without evaluating them.

Exits 1 and names the failing rule and file if any rule does not compile.

Examples:
  rulectl check --rules ./rules
  rulectl check --store --config rulekit.yaml --format json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCheck(rootOpts, &rules, strict, cmd)
		},
	}

	rules.addFlags(cmd)
	cmd.Flags().BoolVar(&strict, "strict-comments", false, "strip comments in a separate pass")

	return cmd
}

func runCheck(rootOpts *RootOptions, rules *ruleSource, strict bool, cmd *cobra.Command) error {
	f := rootOpts.formatter(cmd)

	s, err := rootOpts.settings()
	if err != nil {
		return f.Fail(ExitCommandError, ErrCodeConfig, "load config", err)
	}
	if strict {
		s.StrictComments = true
	}

	defs, err := rules.definitions(s)
	if err != nil {
		return failLoad(f, err)
	}

	// Register into an engine so duplicate names are caught too.
	engine, _ := rootOpts.newEngine(cmd, s)
	if err := ruleset.Apply(engine, defs); err != nil {
		return failLoad(f, err)
	}

	result := CheckResult{Valid: true, Rules: make([]CheckRule, 0, len(defs))}
	for _, def := range defs {
		result.Rules = append(result.Rules, CheckRule{
			Name:        def.Name,
			Description: def.Description,
			Source:      def.Source,
			Conditions:  len(def.When),
		})
	}

	return f.Success(result, func(w io.Writer) error {
		for _, r := range result.Rules {
			f.VerboseLog("%s (%s): %d condition(s)", r.Name, r.Source, r.Conditions)
		}
		_, err := fmt.Fprintf(w, "✓ %d rule(s) compiled\n", len(result.Rules))
		return err
	})
}
