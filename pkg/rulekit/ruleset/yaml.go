package ruleset

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// yamlRule is the file form of a Definition.
type yamlRule struct {
	Name        string      `yaml:"name"`
	Description string      `yaml:"description"`
	Engine      string      `yaml:"engine"`
	When        []string    `yaml:"when"`
	Then        yamlActions `yaml:"then"`
}

// yamlActions is an ordered path -> expression mapping, or a plain
// assignment string.
type yamlActions struct {
	source string
}

// UnmarshalYAML keeps the mapping's key order.
func (a *yamlActions) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		a.source = node.Value
		return nil
	case yaml.MappingNode:
		clauses := make([]string, 0, len(node.Content)/2)
		for i := 0; i+1 < len(node.Content); i += 2 {
			key, val := node.Content[i], node.Content[i+1]
			if val.Kind != yaml.ScalarNode {
				return fmt.Errorf("line %d: then.%s must be an expression string", val.Line, key.Value)
			}
			clauses = append(clauses, key.Value+" = "+val.Value)
		}
		a.source = strings.Join(clauses, "; ")
		return nil
	default:
		return fmt.Errorf("line %d: then must be a mapping or a string", node.Line)
	}
}

// ParseYAML reads a YAML list of rules.
func ParseYAML(data []byte) ([]Definition, error) {
	var rules []yamlRule
	if err := yaml.Unmarshal(data, &rules); err != nil {
		return nil, fmt.Errorf("parse yaml: %w", err)
	}

	defs := make([]Definition, 0, len(rules))
	for i, r := range rules {
		if r.Name == "" {
			return nil, &SyntaxError{Msg: fmt.Sprintf("rule %d has no name", i+1)}
		}
		engine := strings.ToLower(r.Engine)
		if engine == "" {
			engine = EngineExpr
		}
		defs = append(defs, Definition{
			Name:        r.Name,
			Description: r.Description,
			Engine:      engine,
			When:        r.When,
			Then:        r.Then.source,
		})
	}
	return defs, nil
}
