package script

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	"github.com/dop251/goja"
	"github.com/google/uuid"
	"github.com/randalmurphal/rulekit/pkg/rulekit"
	"github.com/randalmurphal/rulekit/pkg/rulekit/expr"
	"github.com/randalmurphal/rulekit/pkg/rulekit/observability"
)

// EngineScript is the engine name reported to metrics and logs.
const EngineScript = "script"

// DefaultQueueSize is the number of Flow calls that may wait for the worker.
const DefaultQueueSize = 64

// FlowFunction is the global the script must define.
const FlowFunction = "flow"

// Sentinel errors for script engines.
var (
	// ErrClosed indicates Flow was called after Close.
	ErrClosed = errors.New("script engine closed")

	// ErrNoFlow indicates a script that does not define a flow function.
	ErrNoFlow = errors.New("script does not define function flow")

	// ErrResult indicates flow returned something other than an object.
	ErrResult = errors.New("flow must return an object")

	// ErrInterrupted indicates a script stopped by its context.
	ErrInterrupted = errors.New("script interrupted")
)

// FunctionSet is a function registry whose names can be listed.
// *registry.Snapshot[string, expr.Function] satisfies it.
type FunctionSet interface {
	expr.Functions
	Keys() []string
}

// Engine evaluates a compiled script on a dedicated worker goroutine.
// It is safe for concurrent use.
type Engine struct {
	tasks chan task
	quit  chan struct{}
	done  chan struct{}
	once  sync.Once
	cfg   config
}

// Compile-time interface check.
var _ rulekit.Flower = (*Engine)(nil)

type task struct {
	ctx   context.Context
	input any
	reply chan result
}

type result struct {
	output map[string]any
	err    error
}

type config struct {
	queueSize int
	functions FunctionSet
	logger    *slog.Logger
	metrics   observability.MetricsRecorder
}

// Option configures an Engine.
type Option func(*config)

// WithQueueSize bounds the number of queued Flow calls. A Flow call that
// finds the queue full waits for room or for its context.
// Default: DefaultQueueSize.
func WithQueueSize(n int) Option {
	return func(c *config) {
		if n > 0 {
			c.queueSize = n
		}
	}
}

// WithFunctions exposes every function in fns as a script global.
// Arguments and results are converted like expression values.
func WithFunctions(fns FunctionSet) Option {
	return func(c *config) {
		c.functions = fns
	}
}

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(c *config) {
		c.logger = logger
	}
}

// WithMetrics records each flow. Default: observability.NoopMetrics{}.
func WithMetrics(m observability.MetricsRecorder) Option {
	return func(c *config) {
		if m != nil {
			c.metrics = m
		}
	}
}

// New compiles src, runs its top level once and starts the worker.
// It fails if the script does not compile, throws at top level, or
// does not define flow.
func New(src string, opts ...Option) (*Engine, error) {
	cfg := config{
		queueSize: DefaultQueueSize,
		logger:    slog.Default(),
		metrics:   observability.NoopMetrics{},
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	prog, err := goja.Compile("rules.js", src, true)
	if err != nil {
		return nil, fmt.Errorf("compile script: %w", err)
	}

	e := &Engine{
		tasks: make(chan task, cfg.queueSize),
		quit:  make(chan struct{}),
		done:  make(chan struct{}),
		cfg:   cfg,
	}

	ready := make(chan error, 1)
	go e.work(prog, ready)
	if err := <-ready; err != nil {
		return nil, err
	}
	return e, nil
}

// Flow runs the script's flow function on input and returns its result.
func (e *Engine) Flow(ctx context.Context, input any) (map[string]any, error) {
	if ctx == nil {
		return nil, rulekit.ErrNilContext
	}
	normalized, err := expr.Normalize(input)
	if err != nil {
		return nil, fmt.Errorf("normalize input: %w", err)
	}

	t := task{ctx: ctx, input: normalized, reply: make(chan result, 1)}
	select {
	case e.tasks <- t:
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-e.quit:
		return nil, ErrClosed
	}

	select {
	case r := <-t.reply:
		return r.output, r.err
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-e.done:
		// The worker may have replied just before exiting.
		select {
		case r := <-t.reply:
			return r.output, r.err
		default:
			return nil, ErrClosed
		}
	}
}

// Close stops the worker after the call in progress, if any. Queued
// calls fail with ErrClosed. Close is idempotent.
func (e *Engine) Close() error {
	e.once.Do(func() {
		close(e.quit)
	})
	<-e.done
	return nil
}

// work owns the runtime for the engine's lifetime.
func (e *Engine) work(prog *goja.Program, ready chan<- error) {
	defer close(e.done)

	vm := goja.New()
	flow, err := e.setup(vm, prog)
	ready <- err
	if err != nil {
		return
	}

	for {
		select {
		case <-e.quit:
			e.drain()
			return
		case t := <-e.tasks:
			t.reply <- e.run(vm, flow, t)
		}
	}
}

// drain fails every queued call.
func (e *Engine) drain() {
	for {
		select {
		case t := <-e.tasks:
			t.reply <- result{err: ErrClosed}
		default:
			return
		}
	}
}

// setup installs functions, runs the program and finds flow.
func (e *Engine) setup(vm *goja.Runtime, prog *goja.Program) (goja.Callable, error) {
	if fns := e.cfg.functions; fns != nil {
		for _, name := range fns.Keys() {
			if err := vm.Set(name, hostFunction(vm, fns, name)); err != nil {
				return nil, fmt.Errorf("install function %s: %w", name, err)
			}
		}
	}

	if _, err := runSafely(func() (goja.Value, error) { return vm.RunProgram(prog) }); err != nil {
		return nil, fmt.Errorf("run script: %w", err)
	}

	flow, ok := goja.AssertFunction(vm.Get(FlowFunction))
	if !ok {
		return nil, ErrNoFlow
	}
	return flow, nil
}

// run executes one call with observability.
func (e *Engine) run(vm *goja.Runtime, flow goja.Callable, t task) (res result) {
	runID := uuid.NewString()
	logger := observability.EnrichLogger(e.cfg.logger, runID, EngineScript)
	start := time.Now()
	observability.LogFlowStart(logger, runID, 1)

	defer func() {
		duration := time.Since(start)
		e.cfg.metrics.RecordFlow(t.ctx, EngineScript, res.err == nil, 0, duration)
		ms := float64(duration.Microseconds()) / 1000
		if res.err != nil {
			observability.LogFlowError(logger, runID, res.err, ms, FlowFunction)
			return
		}
		observability.LogFlowComplete(logger, runID, ms, 0)
	}()

	if err := t.ctx.Err(); err != nil {
		return result{err: err}
	}

	// Interrupt the runtime if the caller gives up mid-call.
	fired := make(chan struct{})
	stop := context.AfterFunc(t.ctx, func() {
		vm.Interrupt(ErrInterrupted)
		close(fired)
	})
	defer func() {
		if !stop() {
			// The interrupt may have landed after flow returned.
			<-fired
			vm.ClearInterrupt()
		}
	}()

	v, err := runSafely(func() (goja.Value, error) {
		return flow(goja.Undefined(), vm.ToValue(t.input))
	})
	if err != nil {
		var interrupted *goja.InterruptedError
		if errors.As(err, &interrupted) {
			return result{err: fmt.Errorf("%w: %w", ErrInterrupted, t.ctx.Err())}
		}
		return result{err: err}
	}

	out, err := exportObject(v)
	return result{output: out, err: err}
}

// exportObject converts flow's return value to a normalized object.
// undefined and null become an empty object.
func exportObject(v goja.Value) (map[string]any, error) {
	if v == nil || goja.IsUndefined(v) || goja.IsNull(v) {
		return map[string]any{}, nil
	}
	normalized, err := expr.Normalize(v.Export())
	if err != nil {
		return nil, fmt.Errorf("export result: %w", err)
	}
	m, ok := normalized.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("%w, got %s", ErrResult, expr.TypeName(normalized))
	}
	return m, nil
}

// hostFunction wraps a registry function as a script global.
func hostFunction(vm *goja.Runtime, fns FunctionSet, name string) func(goja.FunctionCall) goja.Value {
	return func(call goja.FunctionCall) goja.Value {
		fn, ok := fns.Get(name)
		if !ok {
			panic(vm.NewGoError(fmt.Errorf("%w: %s", expr.ErrUnknownFunction, name)))
		}
		args := make([]any, len(call.Arguments))
		for i, a := range call.Arguments {
			v, err := expr.Normalize(a.Export())
			if err != nil {
				panic(vm.NewGoError(fmt.Errorf("%s argument %d: %w", name, i+1, err)))
			}
			args[i] = v
		}
		out, err := fn.Call(fns, args)
		if err != nil {
			panic(vm.NewGoError(fmt.Errorf("%s: %w", name, err)))
		}
		return vm.ToValue(out)
	}
}

// runSafely converts a Go panic escaping the runtime into an error.
func runSafely(fn func() (goja.Value, error)) (v goja.Value, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &rulekit.PanicError{Rule: FlowFunction, Value: r, Stack: string(debug.Stack())}
		}
	}()
	return fn()
}
