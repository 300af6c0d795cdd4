package rulekit

import (
	"errors"
	"fmt"

	"github.com/randalmurphal/rulekit/pkg/rulekit/expr"
)

// Predicate is one conjunct of a rule's condition.
//
// A predicate may report expr.ErrFieldNotFound; the rule treats that as
// false. Any other error aborts the flow.
type Predicate interface {
	Test(fns expr.Functions, input any) (bool, error)
}

// PredicateFunc adapts a function to the Predicate interface.
type PredicateFunc func(fns expr.Functions, input any) (bool, error)

// Test calls f.
func (f PredicateFunc) Test(fns expr.Functions, input any) (bool, error) {
	return f(fns, input)
}

// Action writes a matched rule's results into the shared output object.
type Action interface {
	Apply(fns expr.Functions, input any, output map[string]any) error
}

// ActionFunc adapts a function to the Action interface.
type ActionFunc func(fns expr.Functions, input any, output map[string]any) error

// Apply calls f.
func (f ActionFunc) Apply(fns expr.Functions, input any, output map[string]any) error {
	return f(fns, input, output)
}

// Condition is a Predicate backed by a compiled expression.
type Condition struct {
	// Source is the expression text the condition was compiled from.
	Source string
	// Node is the compiled tree.
	Node expr.Node
}

// CompileCondition compiles src into a Condition.
func CompileCondition(src string, opts ...expr.Option) (Condition, error) {
	n, err := expr.Compile(src, opts...)
	if err != nil {
		return Condition{}, fmt.Errorf("compile %q: %w", src, err)
	}
	return Condition{Source: src, Node: n}, nil
}

// Test evaluates the condition in boolean mode. A missing input field
// makes the condition false.
func (c Condition) Test(fns expr.Functions, input any) (bool, error) {
	return expr.When(c.Node, fns, input)
}

// String returns the condition's source text.
func (c Condition) String() string {
	return c.Source
}

// Rule is a named conjunction of predicates with one action.
// An empty condition list always matches.
type Rule struct {
	Name        string
	Description string
	When        []Predicate
	Then        Action
}

// NewRule compiles a rule from condition sources and an assignment
// source ("path = expr; path = expr"). Compilation errors are returned as
// *RuleError naming the failing half.
//
// Example:
//
//	r, err := rulekit.NewRule("ADULT", []string{"age > 18"}, "stage = 'adult'")
func NewRule(name string, when []string, then string, opts ...expr.Option) (*Rule, error) {
	preds := make([]Predicate, 0, len(when))
	for _, src := range when {
		c, err := CompileCondition(src, opts...)
		if err != nil {
			return nil, &RuleError{Rule: name, Phase: PhaseWhen, Err: err}
		}
		preds = append(preds, c)
	}

	action, err := ParseAssignment(then, opts...)
	if err != nil {
		return nil, &RuleError{Rule: name, Phase: PhaseThen, Err: err}
	}

	return &Rule{Name: name, When: preds, Then: action}, nil
}

// Match evaluates the predicates in order. The first false or missing
// field stops the rule without error; any other error is returned.
func (r *Rule) Match(fns expr.Functions, input any) (bool, error) {
	for _, p := range r.When {
		ok, err := p.Test(fns, input)
		if errors.Is(err, expr.ErrFieldNotFound) {
			return false, nil
		}
		if err != nil {
			return false, err
		}
		if !ok {
			return false, nil
		}
	}
	return true, nil
}

func (r *Rule) validate() error {
	if r.Name == "" {
		return ErrEmptyRuleName
	}
	for i, p := range r.When {
		if p == nil {
			return &RuleError{Rule: r.Name, Phase: PhaseWhen, Err: fmt.Errorf("%w at index %d", ErrNilPredicate, i)}
		}
	}
	if r.Then == nil {
		return &RuleError{Rule: r.Name, Phase: PhaseThen, Err: ErrNilAction}
	}
	return nil
}
