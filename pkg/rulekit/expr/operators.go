package expr

import (
	"fmt"
	"math"
)

// Op identifies an operator of the expression language.
type Op uint8

// Operators, grouped by precedence class.
const (
	OpAdd    Op = iota + 1 // +
	OpSub                  // -
	OpMul                  // *
	OpDiv                  // /
	OpRem                  // %
	OpBitAnd               // &
	OpBitOr                // |
	OpBitXor               // ^
	OpShl                  // <<
	OpShr                  // >>
	OpNot                  // !
	OpBitNot               // ~

	OpGt // >
	OpGe // >=
	OpLt // <
	OpLe // <=
	OpEq // ==
	OpNe // !=

	OpAnd // &&
	OpOr  // ||
)

// Class is an operator precedence class. A higher class binds looser, so
// in "a > b || c < d" the || (ClassLogical) is the root of the tree.
// Operators of the same class associate left to right.
type Class uint8

const (
	ClassArithmetic Class = iota
	ClassRelational
	ClassLogical
)

var opSymbols = [...]string{
	OpAdd:    "+",
	OpSub:    "-",
	OpMul:    "*",
	OpDiv:    "/",
	OpRem:    "%",
	OpBitAnd: "&",
	OpBitOr:  "|",
	OpBitXor: "^",
	OpShl:    "<<",
	OpShr:    ">>",
	OpNot:    "!",
	OpBitNot: "~",
	OpGt:     ">",
	OpGe:     ">=",
	OpLt:     "<",
	OpLe:     "<=",
	OpEq:     "==",
	OpNe:     "!=",
	OpAnd:    "&&",
	OpOr:     "||",
}

// String returns the operator symbol.
func (o Op) String() string {
	if int(o) < len(opSymbols) && opSymbols[o] != "" {
		return opSymbols[o]
	}
	return fmt.Sprintf("Op(%d)", uint8(o))
}

// Class returns the precedence class of the operator.
func (o Op) Class() Class {
	switch {
	case o >= OpAnd:
		return ClassLogical
	case o >= OpGt:
		return ClassRelational
	default:
		return ClassArithmetic
	}
}

// Prefix reports whether the operator can appear without a left operand.
func (o Op) Prefix() bool {
	return o == OpSub || o == OpNot || o == OpBitNot
}

// Infix reports whether the operator can join two operands.
func (o Op) Infix() bool {
	return o != OpNot && o != OpBitNot
}

// Two-character operators are matched before single characters so that
// "<=" never lexes as "<" followed by "=".
var twoCharOps = []struct {
	sym string
	op  Op
}{
	{"&&", OpAnd},
	{"||", OpOr},
	{">=", OpGe},
	{"<=", OpLe},
	{"==", OpEq},
	{"!=", OpNe},
	{"<<", OpShl},
	{">>", OpShr},
}

var oneCharOps = map[byte]Op{
	'<': OpLt,
	'>': OpGt,
	'+': OpAdd,
	'-': OpSub,
	'*': OpMul,
	'/': OpDiv,
	'%': OpRem,
	'&': OpBitAnd,
	'|': OpBitOr,
	'^': OpBitXor,
	'!': OpNot,
	'~': OpBitNot,
}

// matchOperator returns the operator at the start of s and its length,
// or 0 if s does not start with an operator.
func matchOperator(s string) (Op, int) {
	if len(s) >= 2 {
		for _, candidate := range twoCharOps {
			if s[:2] == candidate.sym {
				return candidate.op, 2
			}
		}
	}
	if len(s) >= 1 {
		if op, ok := oneCharOps[s[0]]; ok {
			return op, 1
		}
	}
	return 0, 0
}

// arithmetic applies +, -, *, / or % to two coerced numbers. Integer
// operands stay integers; a float on either side promotes both.
func arithmetic(op Op, left, right any) (any, error) {
	li, lInt := left.(int64)
	ri, rInt := right.(int64)
	if lInt && rInt {
		switch op {
		case OpAdd:
			return li + ri, nil
		case OpSub:
			return li - ri, nil
		case OpMul:
			return li * ri, nil
		case OpDiv:
			if ri == 0 {
				return nil, &EvalError{Op: op.String(), Err: ErrDivideByZero}
			}
			return li / ri, nil
		case OpRem:
			if ri == 0 {
				return nil, &EvalError{Op: op.String(), Err: ErrDivideByZero}
			}
			return li % ri, nil
		}
		return nil, &EvalError{Op: op.String(), Err: fmt.Errorf("%w: not an arithmetic operator", ErrType)}
	}

	lf, rf := toFloat(left), toFloat(right)
	var result float64
	switch op {
	case OpAdd:
		result = lf + rf
	case OpSub:
		result = lf - rf
	case OpMul:
		result = lf * rf
	case OpDiv:
		result = lf / rf
	case OpRem:
		result = math.Mod(lf, rf)
	default:
		return nil, &EvalError{Op: op.String(), Err: fmt.Errorf("%w: not an arithmetic operator", ErrType)}
	}
	if math.IsNaN(result) {
		return nil, &EvalError{Op: op.String(), Err: ErrNaN}
	}
	return result, nil
}

// bitwise applies &, |, ^, << or >>. Both operands must be integers;
// floats are rejected rather than truncated.
func bitwise(op Op, left, right any) (any, error) {
	li, lok := left.(int64)
	ri, rok := right.(int64)
	if !lok || !rok {
		return nil, &EvalError{
			Op:  op.String(),
			Err: fmt.Errorf("%w: %s %s %s requires integers", ErrType, TypeName(left), op, TypeName(right)),
		}
	}
	switch op {
	case OpBitAnd:
		return li & ri, nil
	case OpBitOr:
		return li | ri, nil
	case OpBitXor:
		return li ^ ri, nil
	case OpShl, OpShr:
		if ri < 0 {
			return nil, &EvalError{Op: op.String(), Err: fmt.Errorf("%w: negative shift count %d", ErrType, ri)}
		}
		if op == OpShl {
			return li << uint64(ri), nil
		}
		return li >> uint64(ri), nil
	}
	return nil, &EvalError{Op: op.String(), Err: fmt.Errorf("%w: not a bitwise operator", ErrType)}
}

// relational compares two coerced numbers, promoting an integer side
// when the other side is a float.
func relational(op Op, left, right any) (bool, error) {
	li, lInt := left.(int64)
	ri, rInt := right.(int64)
	if lInt && rInt {
		switch op {
		case OpGt:
			return li > ri, nil
		case OpGe:
			return li >= ri, nil
		case OpLt:
			return li < ri, nil
		case OpLe:
			return li <= ri, nil
		}
	} else {
		lf, rf := toFloat(left), toFloat(right)
		switch op {
		case OpGt:
			return lf > rf, nil
		case OpGe:
			return lf >= rf, nil
		case OpLt:
			return lf < rf, nil
		case OpLe:
			return lf <= rf, nil
		}
	}
	return false, &EvalError{Op: op.String(), Err: fmt.Errorf("%w: not a relational operator", ErrType)}
}

func toFloat(v any) float64 {
	switch n := v.(type) {
	case int64:
		return float64(n)
	case float64:
		return n
	}
	return 0
}
