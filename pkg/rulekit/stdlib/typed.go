package stdlib

import (
	"encoding/json"
	"fmt"

	"github.com/randalmurphal/rulekit/pkg/rulekit/expr"
)

// Func1 adapts a typed one-argument function. The argument is decoded
// from its dynamic value through encoding/json, so A may be a struct,
// slice or map with json tags. The result is normalized by the caller.
//
// Example:
//
//	total := stdlib.Func1(func(items []Item) (int64, error) { ... })
//	engine.RegisterFunction("total", total)
func Func1[A, R any](fn func(A) (R, error)) expr.Function {
	return expr.FunctionFunc(func(_ expr.Functions, args []any) (any, error) {
		if len(args) != 1 {
			return nil, fmt.Errorf("%w: want 1 argument, got %d", ErrArgument, len(args))
		}
		a, err := decode[A](args[0], 0)
		if err != nil {
			return nil, err
		}
		return fn(a)
	})
}

// Func2 adapts a typed two-argument function. See Func1.
func Func2[A, B, R any](fn func(A, B) (R, error)) expr.Function {
	return expr.FunctionFunc(func(_ expr.Functions, args []any) (any, error) {
		if len(args) != 2 {
			return nil, fmt.Errorf("%w: want 2 arguments, got %d", ErrArgument, len(args))
		}
		a, err := decode[A](args[0], 0)
		if err != nil {
			return nil, err
		}
		b, err := decode[B](args[1], 1)
		if err != nil {
			return nil, err
		}
		return fn(a, b)
	})
}

// Variadic adapts a function taking any number of arguments of one type.
func Variadic[A, R any](fn func(...A) (R, error)) expr.Function {
	return expr.FunctionFunc(func(_ expr.Functions, args []any) (any, error) {
		typed := make([]A, len(args))
		for i, arg := range args {
			a, err := decode[A](arg, i)
			if err != nil {
				return nil, err
			}
			typed[i] = a
		}
		return fn(typed...)
	})
}

func decode[T any](v any, index int) (T, error) {
	var out T
	if direct, ok := v.(T); ok {
		return direct, nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return out, fmt.Errorf("%w: argument %d: %v", ErrArgument, index, err)
	}
	if err := json.Unmarshal(data, &out); err != nil {
		return out, fmt.Errorf("%w: argument %d is %s, want %T", ErrArgument, index, expr.TypeName(v), out)
	}
	return out, nil
}
