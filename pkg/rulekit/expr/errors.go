package expr

import (
	"errors"
	"fmt"
)

// Sentinel errors for compilation.
var (
	// ErrCommentMismatch indicates an unterminated or unpaired block comment.
	ErrCommentMismatch = errors.New("/* and */ mismatch")

	// ErrEmptyExpression indicates a source or sub-expression with no value.
	ErrEmptyExpression = errors.New("expression is null")

	// ErrReserved indicates use of reserved syntax ('{', '}' or a leading '_').
	ErrReserved = errors.New("reserved syntax")
)

// Sentinel errors for evaluation.
var (
	// ErrFieldNotFound indicates a dotted path named a key the input lacks.
	// Predicates treat it as false; everywhere else it is a failure.
	ErrFieldNotFound = errors.New("field not found")

	// ErrNotObject indicates a path walked through a non-object value.
	ErrNotObject = errors.New("not an object")

	// ErrUnknownFunction indicates a call to a name missing from the registry.
	ErrUnknownFunction = errors.New("unknown function")

	// ErrType indicates an operand of the wrong kind.
	ErrType = errors.New("type mismatch")

	// ErrNaN indicates a float operation produced NaN.
	ErrNaN = errors.New("result is NaN")

	// ErrDivideByZero indicates integer division or remainder by zero.
	ErrDivideByZero = errors.New("division by zero")
)

// LexError reports a failure to tokenize source text.
type LexError struct {
	// Pos is the byte offset of the offending input.
	Pos int
	// Msg describes the failure.
	Msg string
	// Err is an optional sentinel.
	Err error
}

// Error implements the error interface.
func (e *LexError) Error() string {
	return fmt.Sprintf("lex error at offset %d: %s", e.Pos, e.Msg)
}

// Unwrap returns the underlying error for errors.Is/As support.
func (e *LexError) Unwrap() error {
	return e.Err
}

// ParseError reports a token stream that does not reduce to one expression.
type ParseError struct {
	// Pos is the byte offset of the offending token, or -1 when unknown.
	Pos int
	// Msg describes the failure.
	Msg string
	// Err is an optional sentinel.
	Err error
}

// Error implements the error interface.
func (e *ParseError) Error() string {
	if e.Pos < 0 {
		return "parse error: " + e.Msg
	}
	return fmt.Sprintf("parse error at offset %d: %s", e.Pos, e.Msg)
}

// Unwrap returns the underlying error for errors.Is/As support.
func (e *ParseError) Unwrap() error {
	return e.Err
}

// FieldNotFoundError names the missing segment of a field path.
type FieldNotFoundError struct {
	// Path is the full dotted path being resolved.
	Path string
	// Field is the segment that was missing.
	Field string
}

// Error implements the error interface.
func (e *FieldNotFoundError) Error() string {
	return fmt.Sprintf("field %q not found (path %q)", e.Field, e.Path)
}

// Unwrap returns ErrFieldNotFound.
func (e *FieldNotFoundError) Unwrap() error {
	return ErrFieldNotFound
}

// EvalError wraps a failure raised while evaluating a tree.
type EvalError struct {
	// Op names what was being evaluated ("+", "call abs", "field a.b").
	Op string
	// Err is the underlying error.
	Err error
}

// Error implements the error interface.
func (e *EvalError) Error() string {
	return fmt.Sprintf("eval %s: %v", e.Op, e.Err)
}

// Unwrap returns the underlying error for errors.Is/As support.
func (e *EvalError) Unwrap() error {
	return e.Err
}

// harden turns a missing-field condition into an ordinary evaluation
// failure so it no longer matches ErrFieldNotFound.
func harden(op string, err error) error {
	if errors.Is(err, ErrFieldNotFound) {
		return &EvalError{Op: op, Err: errors.New(err.Error())}
	}
	return err
}
