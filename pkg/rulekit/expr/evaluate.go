package expr

import (
	"errors"
	"fmt"
	"math"
	"strings"
)

// Function is a host capability callable from expressions. It receives
// the registry it was resolved from so it can call other functions.
type Function interface {
	Call(fns Functions, args []any) (any, error)
}

// FunctionFunc adapts an ordinary function to Function.
type FunctionFunc func(fns Functions, args []any) (any, error)

// Call implements Function.
func (f FunctionFunc) Call(fns Functions, args []any) (any, error) {
	return f(fns, args)
}

// Functions resolves function names. A nil Functions resolves nothing.
type Functions interface {
	Get(name string) (Function, bool)
}

// Value evaluates n against input and returns a dynamic value.
//
// A path that names a missing key yields an error matching
// ErrFieldNotFound. That error passes through operators unchanged so that
// a predicate such as "country == 'CA'" can be treated as false when
// country is absent. Inside function arguments and array elements it is
// converted to an ordinary evaluation error.
func Value(n Node, fns Functions, input any) (any, error) {
	switch x := n.(type) {
	case Null:
		return nil, nil
	case Field:
		return resolveField(x.Path, input)
	case StringLit:
		return x.Value, nil
	case IntLit:
		return x.Value, nil
	case FloatLit:
		if math.IsNaN(x.Value) {
			return nil, &EvalError{Op: "literal", Err: ErrNaN}
		}
		return x.Value, nil
	case BoolLit:
		return x.Value, nil
	case Array:
		out := make([]any, len(x.Elems))
		for i, e := range x.Elems {
			v, err := Value(e, fns, input)
			if err != nil {
				return nil, harden(fmt.Sprintf("array element %d", i), err)
			}
			out[i] = v
		}
		return out, nil
	case Call:
		return call(x, fns, input)
	case Operator:
		return operate(x, fns, input)
	case nil:
		return nil, &EvalError{Op: "value", Err: ErrEmptyExpression}
	default:
		return nil, &EvalError{Op: "value", Err: fmt.Errorf("unsupported node %T", n)}
	}
}

// Number evaluates n and coerces the result to int64 or float64.
func Number(n Node, fns Functions, input any) (any, error) {
	v, err := Value(n, fns, input)
	if err != nil {
		return nil, err
	}
	return ToNumber(v)
}

// Bool evaluates n and coerces the result with IsTruthy.
func Bool(n Node, fns Functions, input any) (bool, error) {
	v, err := Value(n, fns, input)
	if err != nil {
		return false, err
	}
	return IsTruthy(v), nil
}

// When evaluates n as a rule predicate. It is Bool, except that a missing
// field reports false instead of an error.
func When(n Node, fns Functions, input any) (bool, error) {
	ok, err := Bool(n, fns, input)
	if errors.Is(err, ErrFieldNotFound) {
		return false, nil
	}
	return ok, err
}

// Eval compiles src and evaluates it against input with no functions.
func Eval(src string, input any, opts ...Option) (any, error) {
	n, err := Compile(src, opts...)
	if err != nil {
		return nil, err
	}
	return Value(n, nil, input)
}

func resolveField(path string, input any) (any, error) {
	cur := input
	for _, key := range strings.Split(path, ".") {
		obj, ok := cur.(map[string]any)
		if !ok {
			return nil, &EvalError{
				Op:  "field " + path,
				Err: fmt.Errorf("%w: cannot read %q from %s", ErrNotObject, key, TypeName(cur)),
			}
		}
		v, ok := obj[key]
		if !ok {
			return nil, &FieldNotFoundError{Path: path, Field: key}
		}
		cur = v
	}
	return cur, nil
}

func call(c Call, fns Functions, input any) (any, error) {
	op := "call " + c.Name
	args := make([]any, len(c.Args))
	for i, a := range c.Args {
		v, err := Value(a, fns, input)
		if err != nil {
			return nil, harden(fmt.Sprintf("%s argument %d", op, i+1), err)
		}
		args[i] = v
	}

	var fn Function
	ok := false
	if fns != nil {
		fn, ok = fns.Get(c.Name)
	}
	if !ok || fn == nil {
		return nil, &EvalError{Op: op, Err: fmt.Errorf("%w: %s", ErrUnknownFunction, c.Name)}
	}

	out, err := fn.Call(fns, args)
	if err != nil {
		return nil, &EvalError{Op: op, Err: err}
	}
	v, err := Normalize(out)
	if err != nil {
		return nil, &EvalError{Op: op, Err: err}
	}
	return v, nil
}

func operate(o Operator, fns Functions, input any) (any, error) {
	switch len(o.Operands) {
	case 1:
		return unary(o.Op, o.Operands[0], fns, input)
	case 2:
		return binary(o.Op, o.Operands[0], o.Operands[1], fns, input)
	default:
		return nil, &EvalError{Op: o.Op.String(), Err: fmt.Errorf("%w: %d operands", ErrType, len(o.Operands))}
	}
}

func unary(op Op, operand Node, fns Functions, input any) (any, error) {
	switch op {
	case OpSub:
		v, err := Number(operand, fns, input)
		if err != nil {
			return nil, err
		}
		if i, ok := v.(int64); ok {
			return -i, nil
		}
		return -v.(float64), nil
	case OpNot:
		b, err := Bool(operand, fns, input)
		if err != nil {
			return nil, err
		}
		return !b, nil
	case OpBitNot:
		v, err := Number(operand, fns, input)
		if err != nil {
			return nil, err
		}
		i, ok := v.(int64)
		if !ok {
			return nil, &EvalError{Op: op.String(), Err: fmt.Errorf("%w: ~ requires an integer, got %s", ErrType, TypeName(v))}
		}
		return ^i, nil
	default:
		return nil, &EvalError{Op: op.String(), Err: fmt.Errorf("%w: not a prefix operator", ErrType)}
	}
}

func binary(op Op, l, r Node, fns Functions, input any) (any, error) {
	switch op {
	case OpAnd:
		// Both sides are evaluated.
		lb, err := Bool(l, fns, input)
		if err != nil {
			return nil, err
		}
		rb, err := Bool(r, fns, input)
		if err != nil {
			return nil, err
		}
		return lb && rb, nil

	case OpOr:
		lb, err := Bool(l, fns, input)
		if err != nil {
			return nil, err
		}
		if lb {
			return true, nil
		}
		return Bool(r, fns, input)

	case OpEq, OpNe:
		lv, err := Value(l, fns, input)
		if err != nil {
			return nil, err
		}
		rv, err := Value(r, fns, input)
		if err != nil {
			return nil, err
		}
		eq := Equal(lv, rv)
		if op == OpNe {
			return !eq, nil
		}
		return eq, nil
	}

	ln, err := Number(l, fns, input)
	if err != nil {
		return nil, err
	}
	rn, err := Number(r, fns, input)
	if err != nil {
		return nil, err
	}

	switch op {
	case OpAdd, OpSub, OpMul, OpDiv, OpRem:
		return arithmetic(op, ln, rn)
	case OpBitAnd, OpBitOr, OpBitXor, OpShl, OpShr:
		return bitwise(op, ln, rn)
	case OpGt, OpGe, OpLt, OpLe:
		return relational(op, ln, rn)
	default:
		return nil, &EvalError{Op: op.String(), Err: fmt.Errorf("%w: not an infix operator", ErrType)}
	}
}
