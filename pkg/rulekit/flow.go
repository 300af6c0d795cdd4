package rulekit

import (
	"context"
	"encoding/json"
	"fmt"
)

// Flower maps one input to one output through a rule set. Engine,
// Dispatcher and script.Engine implement it.
type Flower interface {
	Flow(ctx context.Context, input any) (map[string]any, error)
}

// Compile-time interface checks.
var (
	_ Flower = (*Engine)(nil)
	_ Flower = (*Dispatcher)(nil)
)

// FlowInto runs f and decodes the output object into T through
// encoding/json, so T may be a struct with json tags.
//
// Example:
//
//	type Result struct {
//	    Stage string `json:"stage"`
//	}
//	res, err := rulekit.FlowInto[Result](ctx, engine, Person{Age: 19})
func FlowInto[T any](ctx context.Context, f Flower, input any) (T, error) {
	var result T
	out, err := f.Flow(ctx, input)
	if err != nil {
		return result, err
	}

	data, err := json.Marshal(out)
	if err != nil {
		return result, fmt.Errorf("encode output: %w", err)
	}
	if err := json.Unmarshal(data, &result); err != nil {
		return result, fmt.Errorf("decode output into %T: %w", result, err)
	}
	return result, nil
}
