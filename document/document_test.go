package document

import (
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestBasicSetGetAndPointer covers scenario 1: a stable double pointer
// observes writes made through Set without ever being reallocated.
func TestBasicSetGetAndPointer(t *testing.T) {
	t.Parallel()

	doc := New()
	Set(doc, "player.hp", 100.0)

	ptr := doc.GetStableDoublePointer("player.hp")
	require.NotNil(t, ptr)
	assert.Equal(t, 100.0, *ptr)

	Set(doc, "player.hp", 42.0)
	same := doc.GetStableDoublePointer("player.hp")
	assert.Same(t, ptr, same)
	assert.Equal(t, 42.0, *same)

	assert.Equal(t, 42.0, Get(doc, "player.hp", 0.0))
}

// TestSetAddWritesThroughPointerFirst verifies that once a key is
// cached, SetAdd mutates the pointer directly rather than rewriting
// the tree through setVariantLocked (4.1/9).
func TestSetAddWritesThroughPointerFirst(t *testing.T) {
	t.Parallel()

	doc := New()
	Set(doc, "score", 10.0)
	ptr := doc.GetStableDoublePointer("score")

	doc.SetAdd("score", 5)
	assert.Equal(t, 15.0, *ptr)
	assert.Equal(t, 15.0, Get(doc, "score", 0.0))
}

// TestTransformationPipeline covers scenario 6: "arr|length" and
// "arr|at 1|add 0.5|toInt" resolve through transformPipelineLocked.
func TestTransformationPipeline(t *testing.T) {
	t.Parallel()

	doc := New()
	Set(doc, "arr[0]", 1.0)
	Set(doc, "arr[1]", 2.0)
	Set(doc, "arr[2]", 3.0)

	assert.Equal(t, 3, Get(doc, "arr|length", 0))
	assert.Equal(t, 2, Get(doc, "arr|at 1|add 0.5|toInt", 0))
}

// TestTransformationPipelineMalformedFallsBackToDefault verifies that
// a pipeline stage that cannot apply (bad arity, unknown index)
// produces a Malformed entry and the zero/default fallback (I-5).
func TestTransformationPipelineMalformedFallsBackToDefault(t *testing.T) {
	t.Parallel()

	doc := New()
	Set(doc, "arr[0]", 1.0)

	got := Get(doc, "arr|at 9", -1.0)
	assert.Equal(t, -1.0, got)

	ptr := doc.GetStableDoublePointer("arr|at 9")
	require.NotNil(t, ptr)
	assert.Equal(t, 0.0, *ptr)
}

// TestStructuralWriteInvalidatesDescendants covers I-4: removing an
// object wholesale marks every previously cached descendant key
// Deleted, so a stale pointer never silently resurrects.
func TestStructuralWriteInvalidatesDescendants(t *testing.T) {
	t.Parallel()

	doc := New()
	Set(doc, "player.pos.x", 1.0)
	Set(doc, "player.pos.y", 2.0)

	xPtr := doc.GetStableDoublePointer("player.pos.x")
	_ = xPtr

	doc.RemoveKey("player.pos")
	_, ok := doc.GetVariant("player.pos.x")
	assert.False(t, ok)
}

// TestMemberSizeMatchesIndexProbing covers P-7: MemberSize equals the
// count of indices whose MemberType is non-null.
func TestMemberSizeMatchesIndexProbing(t *testing.T) {
	t.Parallel()

	doc := New()
	Set(doc, "arr[0]", "a")
	Set(doc, "arr[1]", "b")
	Set(doc, "arr[2]", "c")

	assert.Equal(t, 3, doc.MemberSize("arr"))
	for i := 0; i < 3; i++ {
		assert.NotEqual(t, MemberNull, doc.MemberType("arr["+strconv.Itoa(i)+"]"))
	}
	assert.Equal(t, MemberNull, doc.MemberType("arr[3]"))
}

// TestSerializeDeserializeRoundTrip exercises JSONC stripping on the
// way in and stable JSON text on the way out.
func TestSerializeDeserializeRoundTrip(t *testing.T) {
	t.Parallel()

	doc := New()
	err := doc.Deserialize(`{
		// a comment
		"name": "hero", /* block */ "hp": 100
	}`)
	require.NoError(t, err)

	assert.Equal(t, "hero", Get(doc, "name", ""))
	assert.Equal(t, 100.0, Get(doc, "hp", 0.0))

	out, err := doc.Serialize("")
	require.NoError(t, err)
	assert.Contains(t, out, `"hero"`)
}
