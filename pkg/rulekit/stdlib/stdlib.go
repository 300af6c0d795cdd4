// Package stdlib provides the standard rulekit function library.
//
// Functions:
//   - contain(array, x): x is an element of array; if x is an array, every
//     element of x is. Floats never match.
//   - sub(a, b): some element of a equals some element of b.
//   - env(key): value of key in an environment snapshot, or "".
//   - len(x): length of a string (in runes), array or object.
//   - str_len(s): length of a string in runes.
//   - abs(n): absolute value of a number.
package stdlib

import (
	"errors"
	"fmt"
	"maps"
	"unicode/utf8"

	"github.com/randalmurphal/rulekit/pkg/rulekit/expr"
)

// ErrArgument indicates a function called with the wrong number or kind
// of arguments.
var ErrArgument = errors.New("invalid argument")

// Registrar accepts named functions. *rulekit.Engine implements it.
type Registrar interface {
	RegisterFunction(name string, fn expr.Function)
}

// Functions returns the standard library keyed by name, with an empty
// environment for env.
func Functions() map[string]expr.Function {
	return map[string]expr.Function{
		"contain": expr.FunctionFunc(Contain),
		"sub":     expr.FunctionFunc(Sub),
		"env":     NewEnv(nil),
		"len":     expr.FunctionFunc(Len),
		"str_len": expr.FunctionFunc(StrLen),
		"abs":     expr.FunctionFunc(Abs),
	}
}

// Register installs every standard function into r.
func Register(r Registrar) {
	for name, fn := range Functions() {
		r.RegisterFunction(name, fn)
	}
}

// Contain reports whether args[0], an array, contains args[1].
func Contain(_ expr.Functions, args []any) (any, error) {
	if len(args) < 2 {
		return nil, fmt.Errorf("contain: %w: want 2 arguments, got %d", ErrArgument, len(args))
	}
	array, ok := args[0].([]any)
	if !ok {
		return nil, fmt.Errorf("contain: %w: first argument is %s, want array", ErrArgument, expr.TypeName(args[0]))
	}
	return contains(array, args[1]), nil
}

func contains(array []any, x any) bool {
	switch want := x.(type) {
	case float64, map[string]any:
		return false
	case []any:
		for _, item := range want {
			if !contains(array, item) {
				return false
			}
		}
		return true
	default:
		for _, item := range array {
			if _, isFloat := item.(float64); isFloat {
				continue
			}
			if expr.Equal(item, want) {
				return true
			}
		}
		return false
	}
}

// Sub reports whether arrays args[0] and args[1] share an element.
func Sub(_ expr.Functions, args []any) (any, error) {
	if len(args) < 2 {
		return nil, fmt.Errorf("sub: %w: want 2 arguments, got %d", ErrArgument, len(args))
	}
	left, ok := args[0].([]any)
	if !ok {
		return nil, fmt.Errorf("sub: %w: first argument is %s, want array", ErrArgument, expr.TypeName(args[0]))
	}
	right, ok := args[1].([]any)
	if !ok {
		return nil, fmt.Errorf("sub: %w: second argument is %s, want array", ErrArgument, expr.TypeName(args[1]))
	}
	for _, l := range left {
		for _, r := range right {
			if expr.Equal(l, r) {
				return true, nil
			}
		}
	}
	return false, nil
}

// NewEnv returns an env function over a copy of vars. Later changes to
// vars are not seen.
func NewEnv(vars map[string]string) expr.Function {
	snapshot := maps.Clone(vars)
	return expr.FunctionFunc(func(_ expr.Functions, args []any) (any, error) {
		if len(args) < 1 {
			return nil, fmt.Errorf("env: %w: want 1 argument", ErrArgument)
		}
		key, _ := args[0].(string)
		return snapshot[key], nil
	})
}

// Len returns the length of a string, array or object.
func Len(_ expr.Functions, args []any) (any, error) {
	if len(args) != 1 {
		return nil, fmt.Errorf("len: %w: want 1 argument, got %d", ErrArgument, len(args))
	}
	switch v := args[0].(type) {
	case string:
		return int64(utf8.RuneCountInString(v)), nil
	case []any:
		return int64(len(v)), nil
	case map[string]any:
		return int64(len(v)), nil
	default:
		return nil, fmt.Errorf("len: %w: %s has no length", ErrArgument, expr.TypeName(v))
	}
}

// StrLen returns the number of runes in a string.
func StrLen(_ expr.Functions, args []any) (any, error) {
	if len(args) != 1 {
		return nil, fmt.Errorf("str_len: %w: want 1 argument, got %d", ErrArgument, len(args))
	}
	s, ok := args[0].(string)
	if !ok {
		return nil, fmt.Errorf("str_len: %w: argument is %s, want string", ErrArgument, expr.TypeName(args[0]))
	}
	return int64(utf8.RuneCountInString(s)), nil
}

// Abs returns the absolute value of a number.
func Abs(_ expr.Functions, args []any) (any, error) {
	if len(args) != 1 {
		return nil, fmt.Errorf("abs: %w: want 1 argument, got %d", ErrArgument, len(args))
	}
	switch n := args[0].(type) {
	case int64:
		if n < 0 {
			return -n, nil
		}
		return n, nil
	case float64:
		if n < 0 {
			return -n, nil
		}
		return n, nil
	default:
		return nil, fmt.Errorf("abs: %w: argument is %s, want number", ErrArgument, expr.TypeName(n))
	}
}
