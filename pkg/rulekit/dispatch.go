package rulekit

import (
	"context"
	"sync"
)

// Dispatcher evaluates an engine's rules concurrently, one goroutine per
// rule, then applies the matched rules' actions sequentially in
// registration order. For the same rules and input it produces the same
// output as Engine.Flow.
//
// The first hard error cancels sibling tasks that have not started
// evaluating (unless WithFailFast(false) was given). Every task is joined
// before Flow returns.
type Dispatcher struct {
	engine *Engine
}

// NewDispatcher returns a concurrent front end for engine. Concurrency
// limits and fail-fast behavior come from the engine's options.
func NewDispatcher(engine *Engine) *Dispatcher {
	return &Dispatcher{engine: engine}
}

// Engine returns the wrapped engine.
func (d *Dispatcher) Engine() *Engine {
	return d.engine
}

// Flow is the concurrent counterpart of Engine.Flow. A task failure is
// returned as *DispatchError wrapping the rule's error.
func (d *Dispatcher) Flow(ctx context.Context, input any) (map[string]any, error) {
	out, _, err := d.engine.flow(ctx, EngineConcurrent, input, d.match, true)
	return out, err
}

// Match is the concurrent counterpart of Engine.Match.
func (d *Dispatcher) Match(ctx context.Context, input any) ([]string, error) {
	_, matched, err := d.engine.flow(ctx, EngineConcurrent, input, d.match, false)
	return ruleNames(matched), err
}

// outcome is the single message each task sends.
type outcome struct {
	index     int
	matched   bool
	cancelled bool
	err       error
}

// match fans rule evaluation out to goroutines and joins them.
func (d *Dispatcher) match(parent context.Context, run *flowRun) ([]*Rule, error) {
	if len(run.rules) == 0 {
		return nil, nil
	}
	e := d.engine

	ctx, cancel := context.WithCancel(parent)
	defer cancel()

	// Set up concurrency control
	var sem chan struct{}
	if e.cfg.maxConcurrency > 0 {
		sem = make(chan struct{}, e.cfg.maxConcurrency)
	}

	outcomes := make(chan outcome, len(run.rules))
	var wg sync.WaitGroup

	for i, r := range run.rules {
		wg.Add(1)
		go func(index int, r *Rule) {
			defer wg.Done()

			// Acquire semaphore if concurrency is limited
			if sem != nil {
				select {
				case sem <- struct{}{}:
					defer func() { <-sem }()
				case <-ctx.Done():
					outcomes <- outcome{index: index, cancelled: true}
					return
				}
			}

			if ctx.Err() != nil {
				outcomes <- outcome{index: index, cancelled: true}
				return
			}

			ok, err := e.evaluate(ctx, run, r)
			outcomes <- outcome{index: index, matched: ok, err: err}
		}(i, r)
	}

	// Close once every task has reported
	go func() {
		wg.Wait()
		close(outcomes)
	}()

	hits := make([]bool, len(run.rules))
	first := -1
	var firstErr error
	cancelled, firstCancelled := 0, len(run.rules)

	for o := range outcomes {
		switch {
		case o.cancelled:
			cancelled++
			firstCancelled = min(firstCancelled, o.index)
		case o.err != nil:
			if firstErr == nil {
				first, firstErr = o.index, o.err
				if e.cfg.failFast {
					cancel()
				}
			}
		default:
			hits[o.index] = o.matched
		}
	}

	if firstErr != nil {
		return nil, &DispatchError{
			Rule:      run.rules[first].Name,
			Cancelled: cancelled,
			Err:       firstErr,
		}
	}
	if cancelled > 0 {
		return nil, &CancellationError{Rule: run.rules[firstCancelled].Name, Phase: PhaseWhen, Cause: parent.Err()}
	}

	var matched []*Rule
	for i, r := range run.rules {
		if hits[i] {
			matched = append(matched, r)
		}
	}
	return matched, nil
}
