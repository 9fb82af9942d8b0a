package scope

import (
	"testing"

	"github.com/lbastigk/nebulite/document"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestSubViewResolvesRelativeToPrefix verifies that a nested View
// translates its keys against the concatenation of every ancestor
// prefix (3.2: "Scoped Views may be nested").
func TestSubViewResolvesRelativeToPrefix(t *testing.T) {
	t.Parallel()

	doc := document.New()
	root := New(doc)
	player := root.Sub("player")
	pos := player.Sub("pos")

	Set(pos, "x", 5.0)
	assert.Equal(t, 5.0, Get(pos, "x", 0.0))
	assert.Equal(t, 5.0, document.Get(doc, "player.pos.x", 0.0))
}

// TestResolveChildScopeRejectsForeignPrefix verifies the containment
// rule from 3.2: a child scope must start with its parent's prefix.
func TestResolveChildScopeRejectsForeignPrefix(t *testing.T) {
	t.Parallel()

	doc := document.New()
	root := New(doc)
	player := root.Sub("player")

	_, err := player.ResolveChildScope("enemy.pos", "x")
	require.Error(t, err)

	full, err := player.ResolveChildScope("player.pos", "x")
	require.NoError(t, err)
	assert.Equal(t, "player.pos.x", full)
}

// TestShareScopeKeepsViewUsableAfterCreatingCall verifies that a view
// returned from ShareScope keeps working against the same Document
// for as long as it's referenced, the GC-backed substitute for a
// reference-counted lifetime.
func TestShareScopeKeepsViewUsableAfterCreatingCall(t *testing.T) {
	t.Parallel()

	doc := document.New()
	root := New(doc)

	var captured *View
	func() {
		captured = root.ShareScope("enemy")
		Set(captured, "hp", 30.0)
	}()

	assert.Equal(t, 30.0, Get(captured, "hp", 0.0))
	assert.Equal(t, 30.0, document.Get(doc, "enemy.hp", 0.0))
}
