package rulekit

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/randalmurphal/rulekit/pkg/rulekit/expr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFlow_SimpleRule(t *testing.T) {
	e := New()
	require.NoError(t, e.AddRule("ADULT", []string{"age > 18"}, "stage = '成人'"))

	out, err := e.Flow(context.Background(), map[string]any{"age": 19})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"stage": "成人"}, out)

	out, err = e.Flow(context.Background(), map[string]any{"age": 18})
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestFlow_MissingFieldSkipsRule(t *testing.T) {
	e := New()
	require.NoError(t, e.AddRule("US", []string{"country == '美国'"}, "region = 'NA'"))

	out, err := e.Flow(context.Background(), map[string]any{"age": 17})
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestFlow_MissingFieldInFunctionArgumentFails(t *testing.T) {
	e := New()
	e.RegisterFunction("rev", strRev)
	require.NoError(t, e.AddRule("REV", []string{"rev(country) == 'x'"}, "ok = true"))

	_, err := e.Flow(context.Background(), map[string]any{"age": 17})
	require.Error(t, err)
	assert.NotErrorIs(t, err, expr.ErrFieldNotFound)

	var ruleErr *RuleError
	require.ErrorAs(t, err, &ruleErr)
	assert.Equal(t, "REV", ruleErr.Rule)
	assert.Equal(t, PhaseWhen, ruleErr.Phase)
}

func TestFlow_EmptyConditionsAlwaysMatch(t *testing.T) {
	t.Run("empty action gives empty output", func(t *testing.T) {
		e := New()
		require.NoError(t, e.AddRule("NULL_EXPR_RULE", nil, ""))

		out, err := e.Flow(context.Background(), nil)
		require.NoError(t, err)
		assert.Equal(t, map[string]any{}, out)
	})

	t.Run("action runs", func(t *testing.T) {
		e := New()
		require.NoError(t, e.AddRule("NULL_WHEN_ONE_EXEC", nil, "message = 'success'"))

		out, err := e.Flow(context.Background(), nil)
		require.NoError(t, err)
		assert.Equal(t, map[string]any{"message": "success"}, out)
	})
}

func TestFlow_Assignment(t *testing.T) {
	e := New()
	require.NoError(t, e.AddRule("R", nil, "data.message = 'success'"))

	out, err := e.Flow(context.Background(), map[string]any{})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"data": map[string]any{"message": "success"}}, out)
}

func TestFlow_RegistrationOrderLastWriteWins(t *testing.T) {
	e := New()
	require.NoError(t, e.AddRule("first", nil, "level = 1; first = true"))
	require.NoError(t, e.AddRule("second", nil, "level = 2"))

	out, err := e.Flow(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"level": int64(2), "first": true}, out)
}

func TestFlow_PredicatesStopAtFirstFalse(t *testing.T) {
	calls := 0
	counting := PredicateFunc(func(expr.Functions, any) (bool, error) {
		calls++
		return true, nil
	})
	never := PredicateFunc(func(expr.Functions, any) (bool, error) {
		return false, nil
	})

	e := New()
	require.NoError(t, e.Register(&Rule{
		Name: "R",
		When: []Predicate{counting, never, counting},
		Then: Assignments{},
	}))

	_, err := e.Flow(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestFlow_CustomPredicateFieldNotFoundIsFalse(t *testing.T) {
	missing := PredicateFunc(func(expr.Functions, any) (bool, error) {
		return false, &expr.FieldNotFoundError{Path: "a.b", Field: "b"}
	})

	e := New()
	require.NoError(t, e.Register(&Rule{Name: "R", When: []Predicate{missing}, Then: Assignments{}}))

	matched, err := e.Match(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, matched)
}

func TestFlow_EvaluationErrorAbortsFlow(t *testing.T) {
	e := New()
	require.NoError(t, e.AddRule("ok", nil, "a = 1"))
	require.NoError(t, e.AddRule("bad", []string{"1 / zero > 0"}, "b = 1"))

	out, err := e.Flow(context.Background(), map[string]any{"zero": 0})
	assert.Nil(t, out)
	assert.ErrorIs(t, err, expr.ErrDivideByZero)

	var ruleErr *RuleError
	require.ErrorAs(t, err, &ruleErr)
	assert.Equal(t, "bad", ruleErr.Rule)
}

func TestFlow_ActionErrorAbortsFlow(t *testing.T) {
	boom := errors.New("boom")
	e := New()
	e.RegisterFunction("fail", makeFailingFunction(boom))
	require.NoError(t, e.AddRule("R", nil, "x = fail()"))

	_, err := e.Flow(context.Background(), nil)
	assert.ErrorIs(t, err, boom)

	var ruleErr *RuleError
	require.ErrorAs(t, err, &ruleErr)
	assert.Equal(t, PhaseThen, ruleErr.Phase)
}

func TestFlow_PanicRecovery(t *testing.T) {
	t.Run("in condition", func(t *testing.T) {
		e := New()
		e.RegisterFunction("explode", makePanicFunction("kaboom"))
		require.NoError(t, e.AddRule("CRASH", []string{"explode()"}, ""))

		_, err := e.Flow(context.Background(), nil)

		var panicErr *PanicError
		require.ErrorAs(t, err, &panicErr)
		assert.Equal(t, "CRASH", panicErr.Rule)
		assert.Equal(t, "kaboom", panicErr.Value)
		assert.Contains(t, panicErr.Stack, "goroutine")
	})

	t.Run("in action", func(t *testing.T) {
		e := New()
		require.NoError(t, e.Register(&Rule{
			Name: "CRASH",
			Then: ActionFunc(func(expr.Functions, any, map[string]any) error {
				panic("in action")
			}),
		}))

		_, err := e.Flow(context.Background(), nil)

		var panicErr *PanicError
		require.ErrorAs(t, err, &panicErr)
		assert.Equal(t, "in action", panicErr.Value)
	})
}

func TestFlow_NilContext(t *testing.T) {
	e := New()
	_, err := e.Flow(nil, nil)
	assert.ErrorIs(t, err, ErrNilContext)
}

func TestFlow_CancelledContext(t *testing.T) {
	e := New()
	require.NoError(t, e.AddRule("R", nil, "x = 1"))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := e.Flow(ctx, nil)
	assert.ErrorIs(t, err, context.Canceled)

	var cancelErr *CancellationError
	require.ErrorAs(t, err, &cancelErr)
	assert.Equal(t, "R", cancelErr.Rule)
	assert.Equal(t, PhaseWhen, cancelErr.Phase)
}

func TestFlow_InputIsNotModified(t *testing.T) {
	e := New()
	require.NoError(t, e.AddRule("R", nil, "copy = items"))

	items := []any{int64(1)}
	input := map[string]any{"items": items}

	out, err := e.Flow(context.Background(), input)
	require.NoError(t, err)
	out["copy"].([]any)[0] = int64(2)

	assert.Equal(t, int64(1), items[0])
}

func TestFlow_StructInput(t *testing.T) {
	type person struct {
		Age     int    `json:"age"`
		Country string `json:"country"`
	}

	e := New()
	require.NoError(t, e.AddRule("ADULT", []string{"age > 18", "country == 'CA'"}, "ok = true"))

	out, err := e.Flow(context.Background(), person{Age: 30, Country: "CA"})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"ok": true}, out)
}

func TestFlow_UnsupportedInput(t *testing.T) {
	e := New()
	_, err := e.Flow(context.Background(), make(chan int))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "normalize input")
}

func TestMatch(t *testing.T) {
	e := New()
	require.NoError(t, e.AddRule("a", []string{"x > 1"}, "a = 1"))
	require.NoError(t, e.AddRule("b", []string{"x > 5"}, "b = 1"))
	require.NoError(t, e.AddRule("c", []string{"x > 0"}, "c = 1"))

	matched, err := e.Match(context.Background(), map[string]any{"x": 3})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "c"}, matched)
}

func TestExecute(t *testing.T) {
	e := New()
	require.NoError(t, e.AddRule("a", []string{"false"}, "v = 'a'"))
	require.NoError(t, e.AddRule("b", []string{"false"}, "v = 'b'"))

	out, err := e.Execute(context.Background(), nil, "b", "a")
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"v": "a"}, out)

	_, err = e.Execute(context.Background(), nil, "missing")
	assert.ErrorIs(t, err, ErrRuleNotFound)
}

func TestRegister(t *testing.T) {
	t.Run("duplicate name", func(t *testing.T) {
		e := New()
		require.NoError(t, e.AddRule("R", nil, ""))

		err := e.AddRule("R", nil, "")
		assert.ErrorIs(t, err, ErrDuplicateRule)
	})

	t.Run("batch is all or nothing", func(t *testing.T) {
		e := New()
		require.NoError(t, e.AddRule("R", nil, ""))

		err := e.Register(mustRule(t, "S", nil, ""), mustRule(t, "R", nil, ""))
		assert.ErrorIs(t, err, ErrDuplicateRule)
		assert.False(t, e.Has("S"))
	})

	t.Run("validation", func(t *testing.T) {
		e := New()
		assert.ErrorIs(t, e.Register(nil), ErrNilRule)
		assert.ErrorIs(t, e.Register(&Rule{Then: Assignments{}}), ErrEmptyRuleName)
		assert.ErrorIs(t, e.Register(&Rule{Name: "R"}), ErrNilAction)
		assert.ErrorIs(t, e.Register(&Rule{Name: "R", When: []Predicate{nil}, Then: Assignments{}}), ErrNilPredicate)
		assert.Equal(t, 0, e.Len())
	})

	t.Run("compile errors name the rule", func(t *testing.T) {
		e := New()

		err := e.AddRule("BAD_WHEN", []string{"a >"}, "")
		var ruleErr *RuleError
		require.ErrorAs(t, err, &ruleErr)
		assert.Equal(t, "BAD_WHEN", ruleErr.Rule)
		assert.Equal(t, PhaseWhen, ruleErr.Phase)
		assert.Contains(t, err.Error(), `"a >"`)

		err = e.AddRule("BAD_THEN", nil, "x = _reserved")
		require.ErrorAs(t, err, &ruleErr)
		assert.Equal(t, PhaseThen, ruleErr.Phase)
		assert.ErrorIs(t, err, expr.ErrReserved)

		assert.Equal(t, 0, e.Len())
	})
}

func TestRulesDeleteReplace(t *testing.T) {
	e := New()
	require.NoError(t, e.AddRule("a", nil, "a = 1"))
	require.NoError(t, e.AddRule("b", nil, "b = 1"))
	require.NoError(t, e.AddRule("c", nil, "c = 1"))

	assert.Equal(t, []string{"a", "b", "c"}, e.Rules())
	assert.True(t, e.Delete("b"))
	assert.False(t, e.Delete("b"))
	assert.Equal(t, []string{"a", "c"}, e.Rules())

	r, ok := e.Rule("a")
	require.True(t, ok)
	assert.Equal(t, "a", r.Name)

	require.NoError(t, e.Replace(mustRule(t, "z", nil, "z = 1")))
	assert.Equal(t, []string{"z"}, e.Rules())

	out, err := e.Flow(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"z": int64(1)}, out)

	err = e.Replace(mustRule(t, "x", nil, ""), mustRule(t, "x", nil, ""))
	assert.ErrorIs(t, err, ErrDuplicateRule)
	assert.Equal(t, []string{"z"}, e.Rules())
}

func TestFunctions(t *testing.T) {
	e := New(WithFunctions(map[string]expr.Function{"rev": strRev}))
	require.NoError(t, e.AddRule("R", nil, "v = rev('abc')"))

	out, err := e.Flow(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, "cba", out["v"])

	before := e.Functions()
	assert.True(t, e.DeleteFunction("rev"))
	assert.False(t, e.DeleteFunction("rev"))
	assert.True(t, before.Has("rev"), "old snapshots keep their functions")

	_, err = e.Flow(context.Background(), nil)
	assert.ErrorIs(t, err, expr.ErrUnknownFunction)
}

func TestFunctions_CallThroughRegistry(t *testing.T) {
	e := New()
	e.RegisterFunctions(map[string]expr.Function{
		"rev": strRev,
		"rev_twice": expr.FunctionFunc(func(fns expr.Functions, args []any) (any, error) {
			rev, ok := fns.Get("rev")
			if !ok {
				return nil, errors.New("rev not registered")
			}
			once, err := rev.Call(fns, args)
			if err != nil {
				return nil, err
			}
			return rev.Call(fns, []any{once})
		}),
	})
	require.NoError(t, e.AddRule("R", nil, "v = rev_twice('abc')"))

	out, err := e.Flow(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, "abc", out["v"])
}

func TestFlow_ConcurrentCallsWithRegistration(t *testing.T) {
	e := New()
	require.NoError(t, e.AddRule("ADULT", []string{"age > 18"}, "adult = true"))

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if i%5 == 0 {
				e.RegisterFunction("rev", strRev)
			}
			out, err := e.Flow(context.Background(), map[string]any{"age": 30})
			assert.NoError(t, err)
			assert.Equal(t, true, out["adult"])
		}(i)
	}
	wg.Wait()
}

func TestFlowInto(t *testing.T) {
	type revenue struct {
		Avg int64 `json:"avg"`
	}
	type resp struct {
		Message string  `json:"message"`
		Revenue revenue `json:"revenue"`
	}

	e := New()
	require.NoError(t, e.AddRule("R", []string{"x > 0"}, "message = 'hi'; revenue.avg = x * 2"))

	got, err := FlowInto[resp](context.Background(), e, map[string]any{"x": 21})
	require.NoError(t, err)
	assert.Equal(t, resp{Message: "hi", Revenue: revenue{Avg: 42}}, got)

	got, err = FlowInto[resp](context.Background(), e, map[string]any{"x": 0})
	require.NoError(t, err)
	assert.Equal(t, resp{}, got)

	_, err = FlowInto[[]string](context.Background(), e, map[string]any{"x": 1})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decode output")
}
