package expression

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lbastigk/nebulite/document"
	"github.com/lbastigk/nebulite/document/scope"
)

func newSelfOther(t *testing.T) (*scope.View, *scope.View) {
	t.Helper()
	self := scope.New(document.New())
	other := scope.New(document.New())
	return self, other
}

// TestEvalTextAndVariable covers a Text component next to a Variable
// component reading a remanent Self binding.
func TestEvalTextAndVariable(t *testing.T) {
	t.Parallel()

	self, other := newSelfOther(t)
	document.Set(self.Doc(), "hp", 42.0)

	expr, err := Parse("hp is {Self.hp}")
	require.NoError(t, err)
	expr.Bind(self, self)

	assert.Equal(t, "hp is 42", expr.Eval(other, nil))
}

// TestEvalArithmeticWithFormat covers a single Eval component with an
// integer format spec.
func TestEvalArithmeticWithFormat(t *testing.T) {
	t.Parallel()

	self, other := newSelfOther(t)
	document.Set(self.Doc(), "hp", 10.0)

	expr, err := Parse("$i({Self.hp} + 5)")
	require.NoError(t, err)
	expr.Bind(self, self)

	assert.Equal(t, "15", expr.Eval(other, nil))

	v, ok := expr.EvalAsDouble(other, nil)
	require.True(t, ok)
	assert.Equal(t, 15.0, v)
}

// TestEvalZeroPadWidth covers the `$05.3f` zero-padded width+precision
// form from spec 3.3/6.
func TestEvalZeroPadWidth(t *testing.T) {
	t.Parallel()

	self, other := newSelfOther(t)

	expr, err := Parse("$05.3f(1 / 4)")
	require.NoError(t, err)
	expr.Bind(self, self)

	assert.Equal(t, "0.250", expr.Eval(other, nil))
}

// TestRemanentSelfPointerStaysStable verifies a Self binding's
// VirtualDouble reads through the document's stable pointer (spec
// 4.3), so a later document-side mutation is observed without
// re-parsing.
func TestRemanentSelfPointerStaysStable(t *testing.T) {
	t.Parallel()

	self, other := newSelfOther(t)
	document.Set(self.Doc(), "hp", 1.0)

	expr, err := Parse("$f({Self.hp})")
	require.NoError(t, err)
	expr.Bind(self, self)

	document.Set(self.Doc(), "hp", 99.0)
	v, ok := expr.EvalAsDouble(other, nil)
	require.True(t, ok)
	assert.Equal(t, 99.0, v)
}

// TestOtherBindingRefreshesPerCall verifies a non-remanent Other
// binding picks up a different Other document's value across two
// calls (spec 4.3's Other-cache optimisation).
func TestOtherBindingRefreshesPerCall(t *testing.T) {
	t.Parallel()

	self, other1 := newSelfOther(t)
	other2 := scope.New(document.New())
	document.Set(other1.Doc(), "hp", 5.0)
	document.Set(other2.Doc(), "hp", 50.0)

	expr, err := Parse("$f({Other.hp})")
	require.NoError(t, err)
	expr.Bind(self, self)

	v1, _ := expr.EvalAsDouble(other1, nil)
	v2, _ := expr.EvalAsDouble(other2, nil)
	assert.Equal(t, 5.0, v1)
	assert.Equal(t, 50.0, v2)
}

// TestCompileErrorYieldsNaN covers spec 4.3: a malformed Eval body
// still parses into a component, always yielding NaN.
func TestCompileErrorYieldsNaN(t *testing.T) {
	t.Parallel()

	self, other := newSelfOther(t)
	expr, err := Parse("$f(gt(1))")
	require.NoError(t, err)
	expr.Bind(self, self)

	v, ok := expr.EvalAsDouble(other, nil)
	require.True(t, ok)
	assert.True(t, v != v, "expected NaN from a malformed eval body")
}

// TestEvalAsBoolThreshold covers spec 4.3: |result| > epsilon and not
// NaN.
func TestEvalAsBoolThreshold(t *testing.T) {
	t.Parallel()

	assert.True(t, EvalAsBool("$f(gt(3, 2))"))
	assert.False(t, EvalAsBool("$f(gt(1, 2))"))
}
