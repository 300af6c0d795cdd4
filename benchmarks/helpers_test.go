package benchmarks

import (
	"fmt"

	"github.com/randalmurphal/rulekit/pkg/rulekit"
	"github.com/randalmurphal/rulekit/pkg/rulekit/stdlib"
)

// ruleName returns a stable rule name for index i.
func ruleName(i int) string {
	return fmt.Sprintf("tier_%03d", i)
}

// tieredEngine registers n rules; rule i matches when score is divisible by i+1.
func tieredEngine(n int, opts ...rulekit.Option) *rulekit.Engine {
	opts = append([]rulekit.Option{rulekit.WithLogger(nil), rulekit.WithFunctions(stdlib.Functions())}, opts...)
	e := rulekit.New(opts...)
	for i := 0; i < n; i++ {
		err := e.AddRule(ruleName(i),
			[]string{fmt.Sprintf("score %% %d == 0", i+1), "active", "contain([1,2,3], level)"},
			fmt.Sprintf("last = %d; tiers.t%03d = score / %d", i, i, i+1),
		)
		if err != nil {
			panic(err)
		}
	}
	return e
}

// scoreInput is the input document for tieredEngine.
func scoreInput(score int) map[string]any {
	return map[string]any{"score": score, "active": true, "level": 2}
}
