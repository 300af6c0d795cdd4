package rulekit

import (
	"errors"
	"fmt"
)

// Sentinel errors for rule registration.
var (
	// ErrDuplicateRule indicates a rule name that is already registered.
	ErrDuplicateRule = errors.New("duplicate rule")

	// ErrRuleNotFound indicates a rule name that is not registered.
	ErrRuleNotFound = errors.New("rule not found")

	// ErrEmptyRuleName indicates a rule registered without a name.
	ErrEmptyRuleName = errors.New("rule name is empty")

	// ErrNilRule indicates a nil *Rule passed for registration.
	ErrNilRule = errors.New("nil rule")

	// ErrNilPredicate indicates a rule with a nil entry in its condition list.
	ErrNilPredicate = errors.New("nil predicate")

	// ErrNilAction indicates a rule without an action.
	ErrNilAction = errors.New("nil action")
)

// Sentinel errors for flows and assignments.
var (
	// ErrNilContext indicates Flow was called with a nil context.
	ErrNilContext = errors.New("context cannot be nil")

	// ErrAssignment indicates a malformed "path = expression" clause.
	ErrAssignment = errors.New("invalid assignment")

	// ErrOutputPath indicates a write through a non-object output value.
	ErrOutputPath = errors.New("output path crosses a non-object value")
)

// Rule phases reported by RuleError.
const (
	PhaseWhen = "when"
	PhaseThen = "then"
)

// RuleError wraps an error with rule context.
// Compile failures and evaluation failures both surface as RuleError;
// Phase tells which half of the rule failed.
type RuleError struct {
	// Rule is the name of the rule that failed.
	Rule string
	// Phase is PhaseWhen or PhaseThen.
	Phase string
	// Err is the underlying error.
	Err error
}

// Error implements the error interface.
func (e *RuleError) Error() string {
	return fmt.Sprintf("rule %s: %s: %v", e.Rule, e.Phase, e.Err)
}

// Unwrap returns the underlying error for errors.Is/As support.
func (e *RuleError) Unwrap() error {
	return e.Err
}

// DispatchError reports the task failure that aborted a concurrent flow.
type DispatchError struct {
	// Rule is the rule whose task failed first.
	Rule string
	// Cancelled is the number of sibling tasks stopped before evaluating.
	Cancelled int
	// Err is the task's error.
	Err error
}

// Error implements the error interface.
func (e *DispatchError) Error() string {
	return fmt.Sprintf("dispatch %s (%d cancelled): %v", e.Rule, e.Cancelled, e.Err)
}

// Unwrap returns the underlying error for errors.Is/As support.
func (e *DispatchError) Unwrap() error {
	return e.Err
}

// PanicError captures a panic raised by a predicate, action or function.
// It includes the stack trace for debugging.
type PanicError struct {
	// Rule is the rule being evaluated when the panic occurred.
	Rule string
	// Value is the value passed to panic().
	Value any
	// Stack is the full stack trace at the point of panic.
	Stack string
}

// Error implements the error interface.
func (e *PanicError) Error() string {
	return fmt.Sprintf("rule %s panicked: %v", e.Rule, e.Value)
}

// CancellationError reports a flow stopped by its context.
type CancellationError struct {
	// Rule is the rule that was about to be evaluated.
	Rule string
	// Phase is PhaseWhen or PhaseThen.
	Phase string
	// Cause is context.Canceled or context.DeadlineExceeded.
	Cause error
}

// Error implements the error interface.
func (e *CancellationError) Error() string {
	return fmt.Sprintf("cancelled before rule %s (%s): %v", e.Rule, e.Phase, e.Cause)
}

// Unwrap returns the underlying cause for errors.Is/As support.
func (e *CancellationError) Unwrap() error {
	return e.Cause
}
