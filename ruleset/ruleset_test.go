package ruleset

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lbastigk/nebulite/document"
	"github.com/lbastigk/nebulite/document/scope"
)

type recordingDispatcher struct {
	calls []string
}

func (d *recordingDispatcher) Dispatch(call string, self, other *scope.View) {
	d.calls = append(d.calls, call)
}

type recordingQueue struct {
	calls []string
}

func (q *recordingQueue) Enqueue(call string, self, other *scope.View) {
	q.calls = append(q.calls, call)
}

func newSelfOtherGlobal() (*scope.View, *scope.View, *scope.View) {
	self := scope.New(document.New())
	other := scope.New(document.New())
	global := scope.New(document.New())
	return self, other, global
}

// TestCompileInlineSetAssignment covers an unconditional `self.`
// assignment from a JSON ruleset literal (spec 4.6).
func TestCompileInlineSetAssignment(t *testing.T) {
	self, other, global := newSelfOtherGlobal()
	document.Set(self.Doc(), "hp", 1.0)

	rulesets, err := Compile(7, []any{
		map[string]any{
			"topic": "",
			"exprs": []any{"self.hp = $f(10)"},
		},
	}, nil)
	require.NoError(t, err)
	require.Len(t, rulesets, 1)
	r := rulesets[0]
	assert.True(t, r.Local())
	assert.EqualValues(t, 7, r.OwnerID)

	r.Bind(self, global)
	r.Apply(self, other, global, nil, nil, nil)

	assert.Equal(t, 10.0, document.Get(self.Doc(), "hp", 0.0))
}

// TestConditionGatesAssignment covers logicalArg short-circuiting the
// whole ruleset when false.
func TestConditionGatesAssignment(t *testing.T) {
	self, other, global := newSelfOtherGlobal()
	document.Set(self.Doc(), "hp", 1.0)
	document.Set(other.Doc(), "alive", 0.0)

	rulesets, err := Compile(1, []any{
		map[string]any{
			"logicalArg": "gt({Other.alive}, 0)",
			"exprs":      []any{"self.hp = $f(99)"},
		},
	}, nil)
	require.NoError(t, err)
	r := rulesets[0]
	r.Bind(self, global)
	r.Apply(self, other, global, nil, nil, nil)
	assert.Equal(t, 1.0, document.Get(self.Doc(), "hp", 0.0), "condition false, assignment should not run")

	document.Set(other.Doc(), "alive", 1.0)
	r.Apply(self, other, global, nil, nil, nil)
	assert.Equal(t, 99.0, document.Get(self.Doc(), "hp", 0.0))
}

// TestAddAndMultiplyAssignments covers the `+=`/`*=` operators
// dispatching through the resolved-pointer fast path.
func TestAddAndMultiplyAssignments(t *testing.T) {
	self, other, global := newSelfOtherGlobal()
	document.Set(self.Doc(), "hp", 10.0)

	rulesets, err := Compile(1, []any{
		map[string]any{"exprs": []any{"self.hp += $f(5)"}},
	}, nil)
	require.NoError(t, err)
	r := rulesets[0]
	r.Bind(self, global)
	r.Apply(self, other, global, nil, nil, nil)
	assert.Equal(t, 15.0, document.Get(self.Doc(), "hp", 0.0))

	rulesets2, err := Compile(1, []any{
		map[string]any{"exprs": []any{"self.hp *= $f(2)"}},
	}, nil)
	require.NoError(t, err)
	r2 := rulesets2[0]
	r2.Bind(self, global)
	r2.Apply(self, other, global, nil, nil, nil)
	assert.Equal(t, 30.0, document.Get(self.Doc(), "hp", 0.0))
}

// TestConcatAssignment covers the `|=` string-append operator.
func TestConcatAssignment(t *testing.T) {
	self, other, global := newSelfOtherGlobal()
	document.Set(self.Doc(), "log", "a")

	rulesets, err := Compile(1, []any{
		map[string]any{"exprs": []any{"self.log |= b"}},
	}, nil)
	require.NoError(t, err)
	r := rulesets[0]
	r.Bind(self, global)
	r.Apply(self, other, global, nil, nil, nil)
	assert.Equal(t, "ab", document.Get(self.Doc(), "log", ""))
}

// TestFunctionCallsDispatch covers functioncalls.self/other/global
// routing to the Dispatcher and GlobalQueue.
func TestFunctionCallsDispatch(t *testing.T) {
	self, other, global := newSelfOtherGlobal()

	rulesets, err := Compile(1, []any{
		map[string]any{
			"functioncalls": map[string]any{
				"self":   []any{"heal 5"},
				"other":  []any{"damage 3"},
				"global": []any{"spawn-effect boom"},
			},
		},
	}, nil)
	require.NoError(t, err)
	r := rulesets[0]
	r.Bind(self, global)

	dispatcher := &recordingDispatcher{}
	queue := &recordingQueue{}
	r.Apply(self, other, global, nil, dispatcher, queue)

	assert.Equal(t, []string{"heal 5", "damage 3"}, dispatcher.calls)
	assert.Equal(t, []string{"spawn-effect boom"}, queue.calls)
}

// TestStaticRulesetRegistryLookup covers the "::name" invoke form.
func TestStaticRulesetRegistryLookup(t *testing.T) {
	Register("test.heal-to-full", "", func(self, other, global *scope.View) {
		scope.Set(self, "hp", 100.0)
	})

	rulesets, err := Compile(1, []any{"::test.heal-to-full"}, nil)
	require.NoError(t, err)
	r := rulesets[0]

	self, other, global := newSelfOtherGlobal()
	r.Bind(self, global)
	r.Apply(self, other, global, nil, nil, nil)
	assert.Equal(t, 100.0, document.Get(self.Doc(), "hp", 0.0))
}

// TestEstimatedCostAccumulates covers spec 4.6's cost estimate: more
// variables and calls should never decrease the cost.
func TestEstimatedCostAccumulates(t *testing.T) {
	self, _, global := newSelfOtherGlobal()

	small, err := Compile(1, []any{
		map[string]any{"exprs": []any{"self.hp = $f(1)"}},
	}, nil)
	require.NoError(t, err)
	small[0].Bind(self, global)

	big, err := Compile(1, []any{
		map[string]any{
			"exprs": []any{
				"self.hp = $f({Self.hp} + {Self.mp})",
				"self.mp = $f({Self.mp} * 2)",
			},
			"functioncalls": map[string]any{"self": []any{"noop"}},
		},
	}, nil)
	require.NoError(t, err)
	big[0].Bind(self, global)

	assert.Greater(t, big[0].EstimatedCost, small[0].EstimatedCost)
}
