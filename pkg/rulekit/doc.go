/*
Package rulekit provides an embeddable business-rule evaluator.

# Overview

A rule has a name, a list of conditions and a list of assignments.
Conditions and assignment values are written in a small expression
language (see package expr). A flow evaluates every rule's conditions
against one input value and applies the assignments of the rules that
match, building one output object:

	engine := rulekit.New()
	err := engine.AddRule("ADULT",
	    []string{"age > 18"},
	    "stage = 'adult'; data.message = 'ok'")
	if err != nil {
	    log.Fatal(err)
	}

	out, err := engine.Flow(ctx, map[string]any{"age": 19})
	// out: {"stage": "adult", "data": {"message": "ok"}}

# Matching

Conditions are a conjunction evaluated in order. The first false
condition, or the first condition that reads a field the input does not
have, skips the rule without error. Any other evaluation error (a type
mismatch, an unknown function, a missing field used as a function
argument) aborts the flow and is returned as *RuleError.

Rules are evaluated and applied in registration order, so flows are
reproducible: when two matched rules assign the same path, the later
rule wins.

# Functions

Functions are registered by name and called from expressions:

	engine.RegisterFunction("twice", expr.FunctionFunc(
	    func(fns expr.Functions, args []any) (any, error) {
	        n, _ := args[0].(int64)
	        return n * 2, nil
	    }))

Package stdlib provides contain, sub, env, len, str_len and abs.

# Concurrency

Engine is safe for concurrent use. Rules and functions are held in
copy-on-write snapshots; a flow works against the snapshots current when
it started.

Dispatcher evaluates each rule's conditions on its own goroutine and then
applies actions sequentially, producing the same output as Engine.Flow:

	d := rulekit.NewDispatcher(engine)
	out, err := d.Flow(ctx, input)

The first hard error cancels sibling tasks that have not started and is
returned as *DispatchError after every task has finished. Use
WithMaxConcurrency to bound the goroutines that evaluate at once.

# Observability

Flows log through slog, and record metrics and spans when configured:

	engine := rulekit.New(
	    rulekit.WithLogger(logger),
	    rulekit.WithMetrics(observability.NewMetricsRecorder()),
	    rulekit.WithSpanManager(observability.NewSpanManager()),
	)

Each flow gets a run ID that appears on its log lines and span.

# Typed Output

FlowInto decodes the output object into a Go type:

	res, err := rulekit.FlowInto[Result](ctx, engine, input)

# Rule Files

Package ruleset parses rule files and loads them into an engine; package
watch reloads them when they change; package store persists rule sources.
*/
package rulekit
