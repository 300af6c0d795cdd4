package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/randalmurphal/rulekit/pkg/rulekit"
	"github.com/randalmurphal/rulekit/pkg/rulekit/config"
	"github.com/randalmurphal/rulekit/pkg/rulekit/ruleset"
	"github.com/spf13/cobra"
)

// ruleSource says where a command reads its rules from.
type ruleSource struct {
	path      string
	fromStore bool
}

func (r *ruleSource) addFlags(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&r.path, "rules", "r", "", "rule file or directory")
	cmd.Flags().BoolVar(&r.fromStore, "store", false, "load rules from the configured rule store")
}

// definitions reads rule definitions from the file, directory or store.
func (r *ruleSource) definitions(s config.EngineSettings) ([]ruleset.Definition, error) {
	switch {
	case r.fromStore && r.path != "":
		return nil, errors.New("--rules and --store are mutually exclusive")
	case r.fromStore:
		st, err := s.OpenStore()
		if err != nil {
			return nil, fmt.Errorf("open store: %w", err)
		}
		defer func() { _ = st.Close() }()
		return ruleset.FromStore(st)
	case r.path != "":
		return ruleset.LoadPath(r.path)
	case s.RulesDir != "":
		return ruleset.LoadDir(s.RulesDir)
	default:
		return nil, errors.New("no rules: pass --rules, --store, or set rules.dir in the config")
	}
}

// failLoad reports a rule loading failure with the matching error code.
func failLoad(f *OutputFormatter, err error) error {
	var ruleErr *rulekit.RuleError
	if errors.As(err, &ruleErr) || errors.Is(err, ruleset.ErrEngine) || errors.Is(err, rulekit.ErrDuplicateRule) {
		return f.Fail(ExitFailure, ErrCodeCompile, "compile rules", err)
	}
	return f.Fail(ExitFailure, ErrCodeLoad, "load rules", err)
}

// readInput decodes a JSON document from path, or stdin for "-".
// Integers stay integers.
func readInput(cmd *cobra.Command, path string) (any, error) {
	var r io.Reader
	switch path {
	case "":
		return nil, errors.New("--input is required")
	case "-":
		r = cmd.InOrStdin()
	default:
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		defer func() { _ = f.Close() }()
		r = f
	}

	dec := json.NewDecoder(r)
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, fmt.Errorf("decode input: %w", err)
	}
	return v, nil
}
