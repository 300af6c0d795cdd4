package benchmarks

import (
	"testing"

	"github.com/randalmurphal/rulekit/pkg/rulekit/expr"
	"github.com/randalmurphal/rulekit/pkg/rulekit/registry"
	"github.com/randalmurphal/rulekit/pkg/rulekit/stdlib"
)

const orderExpr = "payment.total_amount == payment.real_pay_amount + payment.discount_amount && status == 2 && contain([1,2,3,4], status)"

var orderInput = map[string]any{
	"status": int64(2),
	"payment": map[string]any{
		"total_amount":    int64(1000),
		"real_pay_amount": int64(800),
		"discount_amount": int64(200),
	},
}

// BenchmarkLex measures tokenizing.
func BenchmarkLex(b *testing.B) {
	for i := 0; i < b.N; i++ {
		_, _ = expr.Lex(orderExpr)
	}
}

// BenchmarkCompile measures lexing plus tree building.
func BenchmarkCompile(b *testing.B) {
	for i := 0; i < b.N; i++ {
		_, _ = expr.Compile(orderExpr)
	}
}

// BenchmarkCompile_StrictComments adds the comment stripping pass.
func BenchmarkCompile_StrictComments(b *testing.B) {
	src := orderExpr + " /* paid in full */"
	for i := 0; i < b.N; i++ {
		_, _ = expr.Compile(src, expr.WithStrictComments())
	}
}

// BenchmarkEvaluate measures evaluating a compiled tree.
func BenchmarkEvaluate(b *testing.B) {
	n := expr.MustCompile(orderExpr)
	fns := functions()
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = expr.Bool(n, fns, orderInput)
	}
}

// BenchmarkNormalize measures converting Go input to dynamic values.
func BenchmarkNormalize(b *testing.B) {
	type payment struct {
		Total int `json:"total_amount"`
		Paid  int `json:"real_pay_amount"`
	}
	in := struct {
		Status  int     `json:"status"`
		Payment payment `json:"payment"`
	}{Status: 2, Payment: payment{Total: 1000, Paid: 800}}
	for i := 0; i < b.N; i++ {
		_, _ = expr.Normalize(in)
	}
}

func functions() *registry.Snapshot[string, expr.Function] {
	r := registry.New[string, expr.Function]()
	for name, fn := range stdlib.Functions() {
		r.Register(name, fn)
	}
	return r.Snapshot()
}
