package ruleset

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/randalmurphal/rulekit/pkg/rulekit"
	"github.com/randalmurphal/rulekit/pkg/rulekit/expr"
	"github.com/randalmurphal/rulekit/pkg/rulekit/store"
)

// ErrUnsupportedFile indicates a file extension ParseFile does not read.
var ErrUnsupportedFile = errors.New("unsupported rule file")

// ParseSource parses data in the format implied by name's extension:
// .yaml and .yml are YAML; anything else is the rule grammar.
func ParseSource(name string, data []byte) ([]Definition, error) {
	var defs []Definition
	var err error
	switch strings.ToLower(filepath.Ext(name)) {
	case ".yaml", ".yml":
		defs, err = ParseYAML(data)
	default:
		defs, err = Parse(string(data))
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	for i := range defs {
		defs[i].Source = name
	}
	return defs, nil
}

// ParseFile reads a .rule, .rules, .yaml or .yml file.
func ParseFile(path string) ([]Definition, error) {
	if !IsRuleFile(path) {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFile, path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read rule file: %w", err)
	}
	return ParseSource(path, data)
}

// IsRuleFile reports whether path has an extension ParseFile reads.
func IsRuleFile(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".rule", ".rules", ".yaml", ".yml":
		return true
	}
	return false
}

// LoadDir parses every rule file directly inside dir, in file name order.
// Other files and subdirectories are ignored.
func LoadDir(dir string) ([]Definition, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read rules dir: %w", err)
	}

	var defs []Definition
	for _, e := range entries {
		if e.IsDir() || !IsRuleFile(e.Name()) {
			continue
		}
		fileDefs, err := ParseFile(filepath.Join(dir, e.Name()))
		if err != nil {
			return nil, err
		}
		defs = append(defs, fileDefs...)
	}
	return defs, nil
}

// LoadPath parses a single rule file or a directory of them.
func LoadPath(path string) ([]Definition, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat rules: %w", err)
	}
	if info.IsDir() {
		return LoadDir(path)
	}
	return ParseFile(path)
}

// FromStore parses every source in s, in store order.
func FromStore(s store.Store) ([]Definition, error) {
	infos, err := s.List()
	if err != nil {
		return nil, fmt.Errorf("list rule sources: %w", err)
	}

	var defs []Definition
	for _, info := range infos {
		data, err := s.Get(info.Name)
		if errors.Is(err, store.ErrNotFound) {
			// Deleted between List and Get.
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("get %s: %w", info.Name, err)
		}
		srcDefs, err := ParseSource(info.Name, data)
		if err != nil {
			return nil, err
		}
		defs = append(defs, srcDefs...)
	}
	return defs, nil
}

// Build compiles definitions into rules. opts are usually the target
// engine's CompileOptions.
func Build(defs []Definition, opts ...expr.Option) ([]*rulekit.Rule, error) {
	rules := make([]*rulekit.Rule, 0, len(defs))
	for _, def := range defs {
		if def.Engine != "" && def.Engine != EngineExpr {
			return nil, fmt.Errorf("rule %s: %w: %s", def.Name, ErrEngine, def.Engine)
		}
		r, err := rulekit.NewRule(def.Name, def.When, def.Then, opts...)
		if err != nil {
			if def.Source != "" {
				return nil, fmt.Errorf("%s: %w", def.Source, err)
			}
			return nil, err
		}
		r.Description = def.Description
		rules = append(rules, r)
	}
	return rules, nil
}

// Apply compiles definitions and adds them to engine as one change.
// If any definition fails, engine is unchanged.
func Apply(engine *rulekit.Engine, defs []Definition) error {
	rules, err := Build(defs, engine.CompileOptions()...)
	if err != nil {
		return err
	}
	return engine.Register(rules...)
}

// Reload compiles definitions and replaces engine's whole rule set with
// them. If any definition fails, engine keeps its previous rules.
func Reload(engine *rulekit.Engine, defs []Definition) error {
	rules, err := Build(defs, engine.CompileOptions()...)
	if err != nil {
		return err
	}
	return engine.Replace(rules...)
}

// LoadStore compiles every source in s and adds the rules to engine.
func LoadStore(engine *rulekit.Engine, s store.Store) error {
	defs, err := FromStore(s)
	if err != nil {
		return err
	}
	return Apply(engine, defs)
}
