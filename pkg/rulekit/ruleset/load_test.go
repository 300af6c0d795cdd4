package ruleset

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/randalmurphal/rulekit/pkg/rulekit"
	"github.com/randalmurphal/rulekit/pkg/rulekit/stdlib"
	"github.com/randalmurphal/rulekit/pkg/rulekit/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const arrayRule = `
rule ARRAY_RULE
when
    contain([1,2,3,4],status) && !contain([5],status);
    contain([2,3.1,'hello',true,2>>1],1) && !contain([2,3.1,'hello',true,2>>1],3.1) /* floats never match */;
    sub([1,2,3,4],[1]) && !sub([1,2,3,4],[5]);
    sub([2,3.1,'hello',true,2>>1],[1,'world']) && !contain([2,3.1,'hello',true,2>>1],[3.1]);
then
    message = 'success'
`

const envRules = `
rule ENV_RULE_DISCOUNT
when
    env('ACTIVITY_DISCOUNT_TYPE') == type
then
    type = '打折活动'

rule ENV_RULE_COUPON
when
    env('ACTIVITY_COUPON_TYPE') == type
then
    type = '卡券活动'
`

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestApply_ArrayRule(t *testing.T) {
	defs, err := Parse(arrayRule)
	require.NoError(t, err)

	e := rulekit.New(rulekit.WithLogger(nil), rulekit.WithFunctions(stdlib.Functions()))
	require.NoError(t, Apply(e, defs))

	out, err := e.Flow(context.Background(), map[string]any{"status": 2})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"message": "success"}, out)
}

func TestApply_EnvRules(t *testing.T) {
	defs, err := Parse(envRules)
	require.NoError(t, err)

	e := rulekit.New(rulekit.WithLogger(nil))
	e.RegisterFunction("env", stdlib.NewEnv(map[string]string{
		"ACTIVITY_DISCOUNT_TYPE": "discount",
		"ACTIVITY_COUPON_TYPE":   "coupon",
	}))
	require.NoError(t, Apply(e, defs))
	assert.Equal(t, []string{"ENV_RULE_DISCOUNT", "ENV_RULE_COUPON"}, e.Rules())

	out, err := e.Flow(context.Background(), map[string]any{"type": "discount"})
	require.NoError(t, err)
	assert.Equal(t, "打折活动", out["type"])

	out, err = e.Flow(context.Background(), map[string]any{"type": "coupon"})
	require.NoError(t, err)
	assert.Equal(t, "卡券活动", out["type"])
}

func TestApply_Description(t *testing.T) {
	e := rulekit.New(rulekit.WithLogger(nil))
	require.NoError(t, Apply(e, []Definition{{Name: "A", Description: "first", Engine: EngineExpr}}))

	r, ok := e.Rule("A")
	require.True(t, ok)
	assert.Equal(t, "first", r.Description)
}

func TestApply_AllOrNothing(t *testing.T) {
	e := rulekit.New(rulekit.WithLogger(nil))

	err := Apply(e, []Definition{
		{Name: "GOOD", When: []string{"a > 1"}, Then: "b = 1"},
		{Name: "BAD", When: []string{"a >"}, Then: "b = 1", Source: "bad.rule"},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad.rule")

	var ruleErr *rulekit.RuleError
	require.ErrorAs(t, err, &ruleErr)
	assert.Equal(t, "BAD", ruleErr.Rule)
	assert.Equal(t, rulekit.PhaseWhen, ruleErr.Phase)
	assert.Zero(t, e.Len())
}

func TestApply_Duplicate(t *testing.T) {
	e := rulekit.New(rulekit.WithLogger(nil))
	defs := []Definition{{Name: "A"}, {Name: "A"}}

	assert.ErrorIs(t, Apply(e, defs), rulekit.ErrDuplicateRule)
	assert.Zero(t, e.Len())
}

func TestBuild_RejectsOtherEngines(t *testing.T) {
	_, err := Build([]Definition{{Name: "S", Engine: "lua"}})
	assert.ErrorIs(t, err, ErrEngine)
}

func TestReload(t *testing.T) {
	e := rulekit.New(rulekit.WithLogger(nil))
	require.NoError(t, Apply(e, []Definition{{Name: "OLD"}}))

	require.NoError(t, Reload(e, []Definition{{Name: "NEW1"}, {Name: "NEW2"}}))
	assert.Equal(t, []string{"NEW1", "NEW2"}, e.Rules())

	err := Reload(e, []Definition{{Name: "BROKEN", When: []string{"(("}}})
	require.Error(t, err)
	assert.Equal(t, []string{"NEW1", "NEW2"}, e.Rules(), "failed reload keeps previous rules")
}

func TestLoadDir(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "20-env.rules", envRules)
	writeFile(t, dir, "10-adult.rule", "rule ADULT when age > 18 then stage = 'adult'")
	writeFile(t, dir, "30-extra.yaml", "- name: YAML_RULE\n  when: [age > 60]\n  then:\n    stage: \"'senior'\"\n")
	writeFile(t, dir, "README.md", "not rules")
	require.NoError(t, os.Mkdir(filepath.Join(dir, "nested.rule"), 0o755))

	defs, err := LoadDir(dir)
	require.NoError(t, err)

	names := make([]string, len(defs))
	for i, d := range defs {
		names[i] = d.Name
	}
	assert.Equal(t, []string{"ADULT", "ENV_RULE_DISCOUNT", "ENV_RULE_COUPON", "YAML_RULE"}, names)
	assert.Equal(t, filepath.Join(dir, "10-adult.rule"), defs[0].Source)

	e := rulekit.New(rulekit.WithLogger(nil))
	e.RegisterFunction("env", stdlib.NewEnv(nil))
	require.NoError(t, Apply(e, defs))

	out, err := e.Flow(context.Background(), map[string]any{"age": 70, "type": "x"})
	require.NoError(t, err)
	assert.Equal(t, "senior", out["stage"], "later rule wins")
}

func TestLoadDir_Errors(t *testing.T) {
	_, err := LoadDir(filepath.Join(t.TempDir(), "missing"))
	assert.Error(t, err)

	dir := t.TempDir()
	writeFile(t, dir, "bad.rule", "when a then b")
	_, err = LoadDir(dir)
	assert.ErrorIs(t, err, ErrSyntax)
	assert.Contains(t, err.Error(), "bad.rule")
}

func TestParseFile_Unsupported(t *testing.T) {
	path := writeFile(t, t.TempDir(), "rules.txt", "rule A when then")
	_, err := ParseFile(path)
	assert.ErrorIs(t, err, ErrUnsupportedFile)
}

func TestLoadPath(t *testing.T) {
	dir := t.TempDir()
	file := writeFile(t, dir, "a.rule", "rule A when then")

	defs, err := LoadPath(file)
	require.NoError(t, err)
	require.Len(t, defs, 1)

	defs, err = LoadPath(dir)
	require.NoError(t, err)
	require.Len(t, defs, 1)

	_, err = LoadPath(filepath.Join(dir, "missing.rule"))
	assert.Error(t, err)
}

func TestLoadStore(t *testing.T) {
	s := store.NewMemoryStore()
	require.NoError(t, s.Put("z-adult.rule", []byte("rule ADULT when age > 18 then stage = 'adult'")))
	require.NoError(t, s.Put("a-senior.yaml", []byte("- name: SENIOR\n  when: [age > 64]\n  then: \"stage = 'senior'\"\n")))

	e := rulekit.New(rulekit.WithLogger(nil))
	require.NoError(t, LoadStore(e, s))
	assert.Equal(t, []string{"ADULT", "SENIOR"}, e.Rules(), "store order, not name order")

	out, err := e.Flow(context.Background(), map[string]any{"age": 70})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"stage": "senior"}, out)
}

func TestLoadStore_Errors(t *testing.T) {
	s := store.NewMemoryStore()
	require.NoError(t, s.Put("bad.rule", []byte("rule")))

	e := rulekit.New(rulekit.WithLogger(nil))
	err := LoadStore(e, s)
	assert.ErrorIs(t, err, ErrSyntax)

	require.NoError(t, s.Close())
	assert.ErrorIs(t, LoadStore(e, s), store.ErrStoreClosed)
}
