package rulekit

import (
	"testing"

	"github.com/randalmurphal/rulekit/pkg/rulekit/expr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAssignment(t *testing.T) {
	tests := []struct {
		name  string
		src   string
		paths []string
		exprs []string
	}{
		{name: "single", src: "data.message = 'success'", paths: []string{"data.message"}, exprs: []string{`"success"`}},
		{name: "several", src: "a = 1; b.c = a + 1;", paths: []string{"a", "b.c"}, exprs: []string{"1", "(a + 1)"}},
		{name: "blank clauses", src: " ; a = 1 ;; ", paths: []string{"a"}, exprs: []string{"1"}},
		{name: "empty", src: "", paths: nil, exprs: nil},
		{name: "comparison on right", src: "ok = a == b", paths: []string{"ok"}, exprs: []string{"(a == b)"}},
		{name: "less equal on right", src: "ok = a <= b", paths: []string{"ok"}, exprs: []string{"(a <= b)"}},
		{name: "quoted semicolon", src: "msg = 'a;b'; n = 1", paths: []string{"msg", "n"}, exprs: []string{`"a;b"`, "1"}},
		{name: "quoted equals", src: `msg = "x = y"`, paths: []string{"msg"}, exprs: []string{`"x = y"`}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			as, err := ParseAssignment(tt.src)
			require.NoError(t, err)
			require.Len(t, as, len(tt.paths))
			for i, a := range as {
				assert.Equal(t, tt.paths[i], a.Path)
				assert.Equal(t, tt.exprs[i], a.Expr.String())
			}
		})
	}
}

func TestParseAssignment_Errors(t *testing.T) {
	tests := []struct {
		name string
		src  string
	}{
		{name: "missing equals", src: "a == b"},
		{name: "empty path", src: "= 1"},
		{name: "empty segment", src: "a..b = 1"},
		{name: "space in path", src: "a b = 1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseAssignment(tt.src)
			assert.ErrorIs(t, err, ErrAssignment)
		})
	}

	t.Run("bad expression", func(t *testing.T) {
		_, err := ParseAssignment("a = 1 +")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "assign a")
	})
}

func TestAssignments_Apply(t *testing.T) {
	as, err := ParseAssignment("data.message = 'success'")
	require.NoError(t, err)

	out := map[string]any{}
	require.NoError(t, as.Apply(nil, nil, out))
	assert.Equal(t, map[string]any{"data": map[string]any{"message": "success"}}, out)
}

func TestAssignments_ApplyInOrder(t *testing.T) {
	as, err := ParseAssignment("x = 1; x = 2; y.z = x")
	require.NoError(t, err)

	out := map[string]any{}
	require.NoError(t, as.Apply(nil, map[string]any{"x": int64(9)}, out))
	// Later writes win; expressions read input, not output.
	assert.Equal(t, map[string]any{"x": int64(2), "y": map[string]any{"z": int64(9)}}, out)
}

func TestAssignments_ApplyCopiesValues(t *testing.T) {
	as, err := ParseAssignment("list = items")
	require.NoError(t, err)

	items := []any{int64(1), int64(2)}
	out := map[string]any{}
	require.NoError(t, as.Apply(nil, map[string]any{"items": items}, out))

	out["list"].([]any)[0] = int64(99)
	assert.Equal(t, int64(1), items[0])
}

func TestAssignments_ApplyMissingField(t *testing.T) {
	as, err := ParseAssignment("x = missing")
	require.NoError(t, err)

	err = as.Apply(nil, map[string]any{}, map[string]any{})
	assert.ErrorIs(t, err, expr.ErrFieldNotFound)
	assert.Contains(t, err.Error(), "assign x")
}

func TestSetPath(t *testing.T) {
	out := map[string]any{"a": map[string]any{"keep": true}, "n": nil}

	require.NoError(t, SetPath(out, "a.b.c", int64(1)))
	require.NoError(t, SetPath(out, "n.x", "y"))
	require.NoError(t, SetPath(out, "top", 1.5))

	assert.Equal(t, map[string]any{
		"a":   map[string]any{"keep": true, "b": map[string]any{"c": int64(1)}},
		"n":   map[string]any{"x": "y"},
		"top": 1.5,
	}, out)
}

func TestSetPath_ThroughNonObject(t *testing.T) {
	out := map[string]any{"a": map[string]any{"b": "text"}}

	err := SetPath(out, "a.b.c", int64(1))
	assert.ErrorIs(t, err, ErrOutputPath)
	assert.Contains(t, err.Error(), "a.b is string")
}

func TestSplitClauses(t *testing.T) {
	tests := []struct {
		src  string
		want []string
	}{
		{src: "", want: []string{""}},
		{src: "a = 1", want: []string{"a = 1"}},
		{src: "a = 1; b = 2;", want: []string{"a = 1", " b = 2", ""}},
		{src: `msg = 'a;b'; c = "x;'y"`, want: []string{`msg = 'a;b'`, ` c = "x;'y"`}},
		{src: ";;", want: []string{"", "", ""}},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, SplitClauses(tt.src), tt.src)
	}
}
