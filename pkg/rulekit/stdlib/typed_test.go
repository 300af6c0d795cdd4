package stdlib

import (
	"errors"
	"testing"

	"github.com/randalmurphal/rulekit/pkg/rulekit/expr"
	"github.com/randalmurphal/rulekit/pkg/rulekit/registry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type product struct {
	Name     string `json:"name"`
	Quantity int64  `json:"quantity"`
	Price    int64  `json:"price"`
}

func TestFunc1_DecodesStructs(t *testing.T) {
	total := Func1(func(ps []product) (int64, error) {
		var sum int64
		for _, p := range ps {
			sum += p.Quantity * p.Price
		}
		return sum, nil
	})

	r := registry.New[string, expr.Function]()
	r.Register("product_total_amount", total)

	input := map[string]any{
		"products": []any{
			map[string]any{"name": "latte", "quantity": int64(2), "price": int64(250)},
			map[string]any{"name": "pineapple", "quantity": int64(1), "price": int64(500)},
		},
	}
	v, err := expr.Value(expr.MustCompile("product_total_amount(products)"), r.Snapshot(), input)
	require.NoError(t, err)
	assert.Equal(t, int64(1000), v)
}

func TestFunc1_Errors(t *testing.T) {
	abs := Func1(func(i int64) (int64, error) {
		if i < 0 {
			return -i, nil
		}
		return i, nil
	})

	_, err := abs.Call(nil, []any{"x"})
	assert.ErrorIs(t, err, ErrArgument)

	_, err = abs.Call(nil, []any{int64(1), int64(2)})
	assert.ErrorIs(t, err, ErrArgument)

	boom := errors.New("boom")
	failing := Func1(func(string) (string, error) { return "", boom })
	_, err = failing.Call(nil, []any{"x"})
	assert.ErrorIs(t, err, boom)
}

func TestFunc2(t *testing.T) {
	join := Func2(func(a, b string) (string, error) { return a + " " + b, nil })

	v, err := join.Call(nil, []any{"加拿大", "多伦多"})
	require.NoError(t, err)
	assert.Equal(t, "加拿大 多伦多", v)

	_, err = join.Call(nil, []any{"a", int64(1)})
	assert.ErrorIs(t, err, ErrArgument)
}

func TestVariadic(t *testing.T) {
	sum := Variadic(func(ns ...float64) (float64, error) {
		var total float64
		for _, n := range ns {
			total += n
		}
		return total, nil
	})

	v, err := sum.Call(nil, []any{int64(1), 2.5})
	require.NoError(t, err)
	assert.Equal(t, 3.5, v)

	v, err = sum.Call(nil, nil)
	require.NoError(t, err)
	assert.Equal(t, 0.0, v)
}
