package rulekit

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/randalmurphal/rulekit/pkg/rulekit/expr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// tieredEngine registers rules that match different slices of "score"
// and write overlapping output paths.
func tieredEngine(t *testing.T, opts ...Option) *Engine {
	t.Helper()
	e := New(opts...)
	for i := 0; i < 50; i++ {
		require.NoError(t, e.AddRule(
			fmt.Sprintf("tier_%02d", i),
			[]string{fmt.Sprintf("score %% %d == 0", i+1), "active"},
			fmt.Sprintf("last = %d; tiers.t%02d = score / %d", i, i, i+1),
		))
	}
	return e
}

func TestDispatcher_MatchesSequential(t *testing.T) {
	e := tieredEngine(t)
	d := NewDispatcher(e)
	ctx := context.Background()

	for _, score := range []int{0, 1, 12, 60, 97, 720} {
		input := map[string]any{"score": score, "active": true}

		want, err := e.Flow(ctx, input)
		require.NoError(t, err)
		wantMatched, err := e.Match(ctx, input)
		require.NoError(t, err)

		// Repeat to shake out scheduling-order dependence.
		for i := 0; i < 20; i++ {
			got, err := d.Flow(ctx, input)
			require.NoError(t, err)
			assert.Equal(t, want, got, "score %d", score)

			gotMatched, err := d.Match(ctx, input)
			require.NoError(t, err)
			assert.Equal(t, wantMatched, gotMatched, "score %d", score)
		}
	}
}

func TestDispatcher_MaxConcurrency(t *testing.T) {
	var inflight, peak atomic.Int32
	tracked := PredicateFunc(func(expr.Functions, any) (bool, error) {
		n := inflight.Add(1)
		defer inflight.Add(-1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(2 * time.Millisecond)
		return true, nil
	})

	e := New(WithMaxConcurrency(2))
	for i := 0; i < 10; i++ {
		require.NoError(t, e.Register(&Rule{
			Name: fmt.Sprintf("r%d", i),
			When: []Predicate{tracked},
			Then: Assignments{},
		}))
	}

	matched, err := NewDispatcher(e).Match(context.Background(), nil)
	require.NoError(t, err)
	assert.Len(t, matched, 10)
	assert.LessOrEqual(t, peak.Load(), int32(2))
}

func TestDispatcher_FirstErrorCancelsAndJoins(t *testing.T) {
	boom := errors.New("boom")
	var started, finished atomic.Int32

	slow := PredicateFunc(func(expr.Functions, any) (bool, error) {
		started.Add(1)
		defer finished.Add(1)
		time.Sleep(time.Millisecond)
		return true, nil
	})
	failing := PredicateFunc(func(expr.Functions, any) (bool, error) {
		return false, boom
	})

	e := New(WithMaxConcurrency(1))
	require.NoError(t, e.Register(&Rule{Name: "bad", When: []Predicate{failing}, Then: Assignments{}}))
	for i := 0; i < 20; i++ {
		require.NoError(t, e.Register(&Rule{Name: fmt.Sprintf("slow%d", i), When: []Predicate{slow}, Then: Assignments{}}))
	}

	_, err := NewDispatcher(e).Flow(context.Background(), nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)

	var dispatchErr *DispatchError
	require.ErrorAs(t, err, &dispatchErr)
	assert.Equal(t, "bad", dispatchErr.Rule)
	assert.GreaterOrEqual(t, dispatchErr.Cancelled, 0)
	assert.LessOrEqual(t, dispatchErr.Cancelled, 20)

	// Every task that started has finished before Flow returned.
	assert.Equal(t, started.Load(), finished.Load())
	assert.Equal(t, int32(20)-int32(dispatchErr.Cancelled), started.Load())
}

func TestDispatcher_WithoutFailFast(t *testing.T) {
	boom := errors.New("boom")
	var evaluated atomic.Int32

	ok := PredicateFunc(func(expr.Functions, any) (bool, error) {
		evaluated.Add(1)
		return true, nil
	})
	failing := PredicateFunc(func(expr.Functions, any) (bool, error) {
		return false, boom
	})

	e := New(WithMaxConcurrency(1), WithFailFast(false))
	require.NoError(t, e.Register(&Rule{Name: "bad", When: []Predicate{failing}, Then: Assignments{}}))
	for i := 0; i < 10; i++ {
		require.NoError(t, e.Register(&Rule{Name: fmt.Sprintf("ok%d", i), When: []Predicate{ok}, Then: Assignments{}}))
	}

	_, err := NewDispatcher(e).Flow(context.Background(), nil)

	var dispatchErr *DispatchError
	require.ErrorAs(t, err, &dispatchErr)
	assert.Equal(t, 0, dispatchErr.Cancelled)
	assert.Equal(t, int32(10), evaluated.Load())
}

func TestDispatcher_MissingFieldSkipsRule(t *testing.T) {
	e := New()
	require.NoError(t, e.AddRule("US", []string{"country == '美国'"}, "region = 'NA'"))
	require.NoError(t, e.AddRule("ADULT", []string{"age > 16"}, "adult = true"))

	out, err := NewDispatcher(e).Flow(context.Background(), map[string]any{"age": 17})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"adult": true}, out)
}

func TestDispatcher_CancelledContext(t *testing.T) {
	e := tieredEngine(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewDispatcher(e).Flow(ctx, map[string]any{"score": 1, "active": true})
	assert.ErrorIs(t, err, context.Canceled)

	var cancelErr *CancellationError
	require.ErrorAs(t, err, &cancelErr)
	assert.Equal(t, "tier_00", cancelErr.Rule)
}

func TestDispatcher_EmptyEngine(t *testing.T) {
	d := NewDispatcher(New())

	out, err := d.Flow(context.Background(), map[string]any{"a": 1})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{}, out)
	assert.NotNil(t, d.Engine())
}

func TestDispatcher_PanicRecovery(t *testing.T) {
	e := New()
	e.RegisterFunction("explode", makePanicFunction("kaboom"))
	require.NoError(t, e.AddRule("CRASH", []string{"explode()"}, ""))
	require.NoError(t, e.AddRule("FINE", nil, "x = 1"))

	_, err := NewDispatcher(e).Flow(context.Background(), nil)

	var panicErr *PanicError
	require.ErrorAs(t, err, &panicErr)
	assert.Equal(t, "CRASH", panicErr.Rule)
}
