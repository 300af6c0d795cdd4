package rulekit

import (
	"errors"
	"fmt"
	"strings"
	"unicode"

	"github.com/randalmurphal/rulekit/pkg/rulekit/expr"
)

// Assignment writes the value of an expression to a dotted output path.
type Assignment struct {
	// Path is the dotted output key, like "data.message".
	Path string
	// Expr computes the value.
	Expr expr.Node
}

// Assignments is an Action that applies each assignment in order.
// Later writes to the same path win.
type Assignments []Assignment

// Apply evaluates every expression against input and writes the results
// into output. Values are copied, so output never aliases input.
func (as Assignments) Apply(fns expr.Functions, input any, output map[string]any) error {
	for _, a := range as {
		v, err := expr.Value(a.Expr, fns, input)
		if err != nil {
			return fmt.Errorf("assign %s: %w", a.Path, err)
		}
		if err := SetPath(output, a.Path, expr.Clone(v)); err != nil {
			return err
		}
	}
	return nil
}

// ParseAssignment parses "path = expr; path = expr" into Assignments.
// Blank clauses are skipped, so an empty source yields a no-op action.
// The separator is the first '=' that is not part of ==, !=, <= or >=;
// semicolons and '=' inside string literals are ignored.
func ParseAssignment(src string, opts ...expr.Option) (Assignments, error) {
	var out Assignments
	for _, clause := range SplitClauses(src) {
		clause = strings.TrimSpace(clause)
		if clause == "" {
			continue
		}

		eq := assignIndex(clause)
		if eq < 0 {
			return nil, fmt.Errorf("%w: missing '=' in %q", ErrAssignment, clause)
		}

		path := strings.TrimSpace(clause[:eq])
		if err := validatePath(path); err != nil {
			return nil, fmt.Errorf("%w: %q: %v", ErrAssignment, clause, err)
		}

		rhs := strings.TrimSpace(clause[eq+1:])
		n, err := expr.Compile(rhs, opts...)
		if err != nil {
			return nil, fmt.Errorf("assign %s: compile %q: %w", path, rhs, err)
		}
		out = append(out, Assignment{Path: path, Expr: n})
	}
	return out, nil
}

// SetPath writes v at the dotted path in output, creating intermediate
// objects as needed. Writing through an existing non-object value fails.
func SetPath(output map[string]any, path string, v any) error {
	keys := strings.Split(path, ".")
	cur := output
	for i, key := range keys[:len(keys)-1] {
		next, ok := cur[key]
		if !ok || next == nil {
			m := make(map[string]any)
			cur[key] = m
			cur = m
			continue
		}
		m, ok := next.(map[string]any)
		if !ok {
			return fmt.Errorf("%w: %s is %s", ErrOutputPath,
				strings.Join(keys[:i+1], "."), expr.TypeName(next))
		}
		cur = m
	}
	cur[keys[len(keys)-1]] = v
	return nil
}

// SplitClauses splits src on ';' outside quoted strings. The parts are
// not trimmed and may be empty.
func SplitClauses(src string) []string {
	var parts []string
	var quote rune
	start := 0
	for i, r := range src {
		switch {
		case quote != 0:
			if r == quote {
				quote = 0
			}
		case r == '"' || r == '\'':
			quote = r
		case r == ';':
			parts = append(parts, src[start:i])
			start = i + 1
		}
	}
	return append(parts, src[start:])
}

// assignIndex returns the byte offset of the assignment '=' or -1.
func assignIndex(clause string) int {
	var quote byte
	for i := 0; i < len(clause); i++ {
		c := clause[i]
		switch {
		case quote != 0:
			if c == quote {
				quote = 0
			}
		case c == '"' || c == '\'':
			quote = c
		case c == '=':
			if i+1 < len(clause) && clause[i+1] == '=' {
				i++
				continue
			}
			if i > 0 && strings.IndexByte("=!<>", clause[i-1]) >= 0 {
				continue
			}
			return i
		}
	}
	return -1
}

func validatePath(path string) error {
	if path == "" {
		return errors.New("empty path")
	}
	for _, key := range strings.Split(path, ".") {
		if key == "" {
			return fmt.Errorf("empty segment in path %q", path)
		}
		if strings.IndexFunc(key, unicode.IsSpace) >= 0 {
			return fmt.Errorf("whitespace in path segment %q", key)
		}
	}
	return nil
}
