package rulekit

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"runtime/debug"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/randalmurphal/rulekit/pkg/rulekit/expr"
	"github.com/randalmurphal/rulekit/pkg/rulekit/observability"
	"github.com/randalmurphal/rulekit/pkg/rulekit/registry"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Engine names reported to metrics, spans and logs.
const (
	EngineSequential = "sequential"
	EngineConcurrent = "concurrent"
)

// Engine holds named rules and a function registry and evaluates them
// against one input per Flow call.
//
// Rules and functions live in copy-on-write snapshots: a Flow call works
// against the snapshots current when it started, so registration,
// deletion and Replace never disturb flows in progress. Engine is safe
// for concurrent use.
//
// Rules are evaluated and applied in registration order. When two matched
// rules write the same output path, the later rule wins.
type Engine struct {
	rules *registry.Registry[string, *Rule]
	fns   *registry.Registry[string, expr.Function]
	cfg   engineConfig
}

// New creates an empty engine.
//
// Example:
//
//	engine := rulekit.New(rulekit.WithLogger(logger))
//	err := engine.AddRule("ADULT", []string{"age > 18"}, "stage = 'adult'")
//	out, err := engine.Flow(ctx, map[string]any{"age": 19})
func New(opts ...Option) *Engine {
	cfg := defaultEngineConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	e := &Engine{
		rules: registry.New[string, *Rule](),
		fns:   registry.New[string, expr.Function](),
		cfg:   cfg,
	}
	if len(cfg.functions) > 0 {
		e.RegisterFunctions(cfg.functions)
	}
	return e
}

// RegisterFunction adds or replaces a function. Flows already running
// keep the function set they started with.
func (e *Engine) RegisterFunction(name string, fn expr.Function) {
	e.fns.Register(name, fn)
}

// RegisterFunctions adds or replaces several functions as one change.
func (e *Engine) RegisterFunctions(fns map[string]expr.Function) {
	entries := make([]registry.Entry[string, expr.Function], 0, len(fns))
	for _, name := range slices.Sorted(maps.Keys(fns)) {
		entries = append(entries, registry.Entry[string, expr.Function]{Key: name, Value: fns[name]})
	}
	e.fns.RegisterMany(entries...)
}

// DeleteFunction removes a function. It reports whether it was present.
func (e *Engine) DeleteFunction(name string) bool {
	return e.fns.Delete(name)
}

// Functions returns the current function snapshot. It satisfies
// expr.Functions.
func (e *Engine) Functions() *registry.Snapshot[string, expr.Function] {
	return e.fns.Snapshot()
}

// Register adds rules as one change. If any rule is invalid or its name
// is already registered, nothing is added.
func (e *Engine) Register(rules ...*Rule) error {
	entries, err := ruleEntries(rules)
	if err != nil {
		return err
	}
	if name, ok := e.rules.AddMany(entries...); !ok {
		return fmt.Errorf("%w: %s", ErrDuplicateRule, name)
	}
	return nil
}

// AddRule compiles and registers a rule. See NewRule for the format.
func (e *Engine) AddRule(name string, when []string, then string) error {
	r, err := NewRule(name, when, then, e.cfg.compileOptions()...)
	if err != nil {
		return err
	}
	return e.Register(r)
}

// Replace swaps the whole rule set in one change. Flows in progress
// finish against the previous set.
func (e *Engine) Replace(rules ...*Rule) error {
	entries, err := ruleEntries(rules)
	if err != nil {
		return err
	}
	e.rules.Reset(entries...)
	return nil
}

// Delete removes a rule. It reports whether the rule was present.
func (e *Engine) Delete(name string) bool {
	return e.rules.Delete(name)
}

// Rule returns a registered rule by name.
func (e *Engine) Rule(name string) (*Rule, bool) {
	return e.rules.Get(name)
}

// Rules returns the registered rule names in evaluation order.
func (e *Engine) Rules() []string {
	return e.rules.Keys()
}

// Has reports whether a rule is registered.
func (e *Engine) Has(name string) bool {
	return e.rules.Has(name)
}

// Len returns the number of registered rules.
func (e *Engine) Len() int {
	return e.rules.Len()
}

// CompileOptions returns the expression options this engine compiles
// rules with, for callers building rules themselves.
func (e *Engine) CompileOptions() []expr.Option {
	return e.cfg.compileOptions()
}

// Flow evaluates every rule against input and applies the actions of the
// matching rules to a new output object.
//
// A rule whose predicate is false, or references a missing input field,
// is skipped. Any other evaluation error aborts the whole flow and is
// returned as *RuleError (or *PanicError if user code panicked).
//
// input may be any value encodable as JSON; it is normalized once per
// call and never modified.
func (e *Engine) Flow(ctx context.Context, input any) (map[string]any, error) {
	out, _, err := e.flow(ctx, EngineSequential, input, e.matchSequential, true)
	return out, err
}

// Match returns the names of the rules whose conditions hold for input,
// in registration order, without applying any action.
func (e *Engine) Match(ctx context.Context, input any) ([]string, error) {
	_, matched, err := e.flow(ctx, EngineSequential, input, e.matchSequential, false)
	return ruleNames(matched), err
}

// Execute applies the actions of the named rules, in the given order,
// without evaluating their conditions.
func (e *Engine) Execute(ctx context.Context, input any, names ...string) (map[string]any, error) {
	snap := e.rules.Snapshot()
	rules := make([]*Rule, 0, len(names))
	for _, name := range names {
		r, ok := snap.Get(name)
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrRuleNotFound, name)
		}
		rules = append(rules, r)
	}

	pick := func(context.Context, *flowRun) ([]*Rule, error) {
		return rules, nil
	}
	out, _, err := e.flow(ctx, EngineSequential, input, pick, true)
	return out, err
}

// flowRun is the per-call view of the engine.
type flowRun struct {
	id     string
	logger *slog.Logger
	rules  []*Rule
	fns    *registry.Snapshot[string, expr.Function]
	input  any
}

// matchFunc selects the matched rules of a run.
type matchFunc func(ctx context.Context, run *flowRun) ([]*Rule, error)

// flow runs one call with observability: match, then optionally apply.
func (e *Engine) flow(ctx context.Context, engine string, input any, match matchFunc, apply bool) (output map[string]any, matched []*Rule, flowErr error) {
	if ctx == nil {
		return nil, nil, ErrNilContext
	}

	normalized, err := expr.Normalize(input)
	if err != nil {
		return nil, nil, fmt.Errorf("normalize input: %w", err)
	}

	snap := e.rules.Snapshot()
	rules := make([]*Rule, 0, snap.Len())
	snap.Range(func(_ string, r *Rule) bool {
		rules = append(rules, r)
		return true
	})

	runID := uuid.NewString()
	run := &flowRun{
		id:     runID,
		logger: observability.EnrichLogger(e.cfg.logger, runID, engine),
		rules:  rules,
		fns:    e.fns.Snapshot(),
		input:  normalized,
	}

	start := time.Now()
	observability.LogFlowStart(run.logger, run.id, len(run.rules))

	if e.cfg.tracingEnabled {
		var span trace.Span
		ctx, span = e.cfg.spans.StartFlowSpan(ctx, engine, run.id)
		defer func() {
			e.cfg.spans.EndSpanWithError(span, flowErr)
		}()
	}

	matched, flowErr = match(ctx, run)
	if flowErr == nil && apply {
		output, flowErr = e.apply(ctx, run, matched)
	}

	duration := time.Since(start)
	e.cfg.metrics.RecordFlow(ctx, engine, flowErr == nil, len(matched), duration)

	if flowErr != nil {
		observability.LogFlowError(run.logger, run.id, flowErr, milliseconds(duration), failedRule(flowErr))
		return nil, nil, flowErr
	}
	observability.LogFlowComplete(run.logger, run.id, milliseconds(duration), len(matched))
	return output, matched, nil
}

// matchSequential evaluates rules one after another on the caller's
// goroutine.
func (e *Engine) matchSequential(ctx context.Context, run *flowRun) ([]*Rule, error) {
	var matched []*Rule
	for _, r := range run.rules {
		select {
		case <-ctx.Done():
			return nil, &CancellationError{Rule: r.Name, Phase: PhaseWhen, Cause: ctx.Err()}
		default:
		}

		ok, err := e.evaluate(ctx, run, r)
		if err != nil {
			return nil, err
		}
		if ok {
			matched = append(matched, r)
		}
	}
	return matched, nil
}

// evaluate runs one rule's conditions with tracing, metrics and logging.
func (e *Engine) evaluate(ctx context.Context, run *flowRun, r *Rule) (bool, error) {
	ruleCtx := ctx
	var span trace.Span
	if e.cfg.tracingEnabled {
		ruleCtx, span = e.cfg.spans.StartRuleSpan(ctx, r.Name)
	}

	start := time.Now()
	matched, err := matchRule(r, run.fns, run.input)
	duration := time.Since(start)

	e.cfg.metrics.RecordRuleEvaluation(ruleCtx, r.Name, matched, duration, err)

	if e.cfg.tracingEnabled {
		if matched {
			e.cfg.spans.AddSpanEvent(ruleCtx, "rule_matched",
				attribute.String("rule", r.Name),
				attribute.Int("predicates", len(r.When)),
			)
		}
		e.cfg.spans.EndSpanWithError(span, err)
	}

	switch {
	case err != nil:
		observability.LogRuleError(run.logger, r.Name, PhaseWhen, err)
	case matched:
		observability.LogRuleMatched(run.logger, r.Name, milliseconds(duration))
	default:
		observability.LogRuleSkipped(run.logger, r.Name, milliseconds(duration))
	}
	return matched, err
}

// apply runs the actions of matched rules in order against a new output.
func (e *Engine) apply(ctx context.Context, run *flowRun, rules []*Rule) (map[string]any, error) {
	output := make(map[string]any)
	for _, r := range rules {
		select {
		case <-ctx.Done():
			return nil, &CancellationError{Rule: r.Name, Phase: PhaseThen, Cause: ctx.Err()}
		default:
		}

		if err := applyRule(r, run.fns, run.input, output); err != nil {
			observability.LogRuleError(run.logger, r.Name, PhaseThen, err)
			return nil, err
		}
	}
	return output, nil
}

// matchRule evaluates a rule's conditions with panic recovery.
func matchRule(r *Rule, fns expr.Functions, input any) (matched bool, err error) {
	defer func() {
		if v := recover(); v != nil {
			matched = false
			err = &PanicError{
				Rule:  r.Name,
				Value: v,
				Stack: string(debug.Stack()),
			}
		}
	}()

	matched, err = r.Match(fns, input)
	if err != nil {
		return false, &RuleError{Rule: r.Name, Phase: PhaseWhen, Err: err}
	}
	return matched, nil
}

// applyRule runs a rule's action with panic recovery.
func applyRule(r *Rule, fns expr.Functions, input any, output map[string]any) (err error) {
	defer func() {
		if v := recover(); v != nil {
			err = &PanicError{
				Rule:  r.Name,
				Value: v,
				Stack: string(debug.Stack()),
			}
		}
	}()

	if err := r.Then.Apply(fns, input, output); err != nil {
		return &RuleError{Rule: r.Name, Phase: PhaseThen, Err: err}
	}
	return nil
}

// failedRule extracts the rule name from a flow error for logging.
func failedRule(err error) string {
	var ruleErr *RuleError
	if errors.As(err, &ruleErr) {
		return ruleErr.Rule
	}
	var panicErr *PanicError
	if errors.As(err, &panicErr) {
		return panicErr.Rule
	}
	var cancelErr *CancellationError
	if errors.As(err, &cancelErr) {
		return cancelErr.Rule
	}
	return ""
}

func milliseconds(d time.Duration) float64 {
	return float64(d.Microseconds()) / 1000
}

// ruleEntries validates rules and rejects names repeated among them.
func ruleEntries(rules []*Rule) ([]registry.Entry[string, *Rule], error) {
	entries := make([]registry.Entry[string, *Rule], 0, len(rules))
	seen := make(map[string]bool, len(rules))
	for i, r := range rules {
		if r == nil {
			return nil, fmt.Errorf("%w at index %d", ErrNilRule, i)
		}
		if err := r.validate(); err != nil {
			return nil, err
		}
		if seen[r.Name] {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateRule, r.Name)
		}
		seen[r.Name] = true
		entries = append(entries, registry.Entry[string, *Rule]{Key: r.Name, Value: r})
	}
	return entries, nil
}

func ruleNames(rules []*Rule) []string {
	if rules == nil {
		return nil
	}
	names := make([]string, len(rules))
	for i, r := range rules {
		names[i] = r.Name
	}
	return names
}
