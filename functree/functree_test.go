package functree

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lbastigk/nebulite/document"
	"github.com/lbastigk/nebulite/document/scope"
	"github.com/lbastigk/nebulite/internal/errs"
)

func newSelf() *scope.View {
	return scope.New(document.New())
}

func TestParseStrDispatchesRegisteredCommand(t *testing.T) {
	tree := New()
	var gotArgs []string
	tree.Register("spawn", "spawn an entity", func(self *scope.View, args []string) *errs.Error {
		gotArgs = args
		return nil
	})

	err := tree.ParseStr(newSelf(), "spawn enemy.jsonc x=5")
	assert.Nil(t, err)
	assert.Equal(t, []string{"enemy.jsonc", "x=5"}, gotArgs)
}

func TestParseStrLongestPrefixWins(t *testing.T) {
	tree := New()
	var called string
	tree.Register("debug", "debug root", func(self *scope.View, args []string) *errs.Error {
		called = "debug"
		return nil
	})
	tree.Register("debug print-src-rect", "print source rect", func(self *scope.View, args []string) *errs.Error {
		called = "debug print-src-rect"
		return nil
	})

	err := tree.ParseStr(newSelf(), "debug print-src-rect 1")
	assert.Nil(t, err)
	assert.Equal(t, "debug print-src-rect", called)

	err = tree.ParseStr(newSelf(), "debug other-thing")
	assert.Nil(t, err)
	assert.Equal(t, "debug", called)
}

func TestParseStrRespectsQuotedTokens(t *testing.T) {
	tree := New()
	var gotArgs []string
	tree.Register("echo", "echo args", func(self *scope.View, args []string) *errs.Error {
		gotArgs = args
		return nil
	})

	err := tree.ParseStr(newSelf(), `echo "hello world"`)
	assert.Nil(t, err)
	assert.Equal(t, []string{"hello world"}, gotArgs)
}

func TestParseStrUnclosedQuoteIsFunctionalError(t *testing.T) {
	tree := New()
	tree.Register("echo", "", func(self *scope.View, args []string) *errs.Error { return nil })

	err := tree.ParseStr(newSelf(), `echo "never closed`)
	require.NotNil(t, err)
	assert.False(t, err.IsCritical())
}

func TestParseStrUnknownCommandSuggestsClosestMatch(t *testing.T) {
	tree := New()
	tree.Register("spawn", "", func(self *scope.View, args []string) *errs.Error { return nil })

	err := tree.ParseStr(newSelf(), "spwn enemy.jsonc")
	require.NotNil(t, err)
	assert.Equal(t, "spawn", err.Hint)
}

func TestInheritExposesChildCommands(t *testing.T) {
	parent := New()
	child := New()
	called := false
	child.Register("jump", "", func(self *scope.View, args []string) *errs.Error {
		called = true
		return nil
	})
	parent.Inherit(child)

	err := parent.ParseStr(newSelf(), "jump")
	assert.Nil(t, err)
	assert.True(t, called)
}

func TestLocalCommandShadowsInheritedOfSameName(t *testing.T) {
	parent := New()
	child := New()
	var which string
	child.Register("reset", "", func(self *scope.View, args []string) *errs.Error {
		which = "child"
		return nil
	})
	parent.Inherit(child)
	parent.Register("reset", "", func(self *scope.View, args []string) *errs.Error {
		which = "parent"
		return nil
	})

	err := parent.ParseStr(newSelf(), "reset")
	assert.Nil(t, err)
	assert.Equal(t, "parent", which)
}

func TestPreParseCriticalErrorAbortsCommand(t *testing.T) {
	tree := New()
	called := false
	tree.Register("spawn", "", func(self *scope.View, args []string) *errs.Error {
		called = true
		return nil
	})
	tree.SetPreParse(func(self *scope.View, tokens []string) *errs.Error {
		return errs.UserCritical("not ready")
	})

	err := tree.ParseStr(newSelf(), "spawn x")
	require.NotNil(t, err)
	assert.True(t, err.IsCritical())
	assert.False(t, called)
}

func TestPreParseNonCriticalErrorDoesNotAbort(t *testing.T) {
	tree := New()
	called := false
	tree.Register("spawn", "", func(self *scope.View, args []string) *errs.Error {
		called = true
		return nil
	})
	tree.SetPreParse(func(self *scope.View, tokens []string) *errs.Error {
		return errs.Warn("lazy init ran")
	})

	err := tree.ParseStr(newSelf(), "spawn x")
	assert.Nil(t, err)
	assert.True(t, called)
}

func TestHelpListsEveryVisibleCommandSorted(t *testing.T) {
	parent := New()
	child := New()
	child.Register("b-cmd", "does b", func(self *scope.View, args []string) *errs.Error { return nil })
	parent.Inherit(child)
	parent.Register("a-cmd", "does a", func(self *scope.View, args []string) *errs.Error { return nil })

	help := parent.Help()
	require.Len(t, help, 2)
	assert.Contains(t, help[0], "a-cmd")
	assert.Contains(t, help[1], "b-cmd")
}
