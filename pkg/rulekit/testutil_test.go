package rulekit

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/randalmurphal/rulekit/pkg/rulekit/expr"
	"github.com/stretchr/testify/require"
)

// Test fixtures shared across tests.

// orderJSON is a paid dine-in order with two products and one coupon.
const orderJSON = `{"order_id":"78135346576251344","shop_channel":"eleme","status":2,"logistic_type":"堂食","store_id":"78135346875149325","mobile":"187****1234","remark":"不放糖","payment":{"total_amount":1000,"real_pay_amount":800,"discount_amount":200},"products":[{"name":"酱香拿铁","spu_id":"78135346576987856","sku_id":"78135346587513154","quantity":2,"price":250},{"name":"黑凤梨","spu_id":"78135346658764184","sku_id":"78135346784318321","quantity":1,"price":500}],"coupons":[{"name":"会员专属八折券","code":"DE34-DFAS-13KD-XX34","quantity":1,"price":200}]}`

// decodeJSON decodes src with json.Number so integers stay integers.
func decodeJSON(t *testing.T, src string) any {
	t.Helper()
	var v any
	dec := json.NewDecoder(strings.NewReader(src))
	dec.UseNumber()
	require.NoError(t, dec.Decode(&v))
	return v
}

// mustRule compiles a rule or fails the test.
func mustRule(t *testing.T, name string, when []string, then string) *Rule {
	t.Helper()
	r, err := NewRule(name, when, then)
	require.NoError(t, err)
	return r
}

// Helper functions

// strRev reverses a string by runes.
var strRev = expr.FunctionFunc(func(_ expr.Functions, args []any) (any, error) {
	s, _ := args[0].(string)
	runes := []rune(s)
	for i, j := 0, len(runes)-1; i < j; i, j = i+1, j-1 {
		runes[i], runes[j] = runes[j], runes[i]
	}
	return string(runes), nil
})

// strSplice joins its string arguments with sep, skipping non-strings.
func strSplice(sep string) expr.Function {
	return expr.FunctionFunc(func(_ expr.Functions, args []any) (any, error) {
		out := ""
		for _, a := range args {
			if out != "" {
				out += sep
			}
			if s, ok := a.(string); ok {
				out += s
			}
		}
		return out, nil
	})
}

// makePanicFunction creates a function that panics with the given value.
func makePanicFunction(value any) expr.Function {
	return expr.FunctionFunc(func(expr.Functions, []any) (any, error) {
		panic(value)
	})
}

// makeFailingFunction creates a function that returns the given error.
func makeFailingFunction(err error) expr.Function {
	return expr.FunctionFunc(func(expr.Functions, []any) (any, error) {
		return nil, err
	})
}
