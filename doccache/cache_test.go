package doccache

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTempFile(t *testing.T, name, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

// TestGetDocStringMemoizesUntilReload verifies that a second
// GetDocString call returns the memoized text even after the
// underlying file changes, until Reload is called (spec 4.4:
// "Loads are lazy and memoized; reloads are explicit").
func TestGetDocStringMemoizesUntilReload(t *testing.T) {
	t.Parallel()

	c, err := New()
	require.NoError(t, err)
	defer c.Close()

	path := writeTempFile(t, "scene.json", `{"name": "one"}`)

	raw, loadErr := c.GetDocString(path)
	require.Nil(t, loadErr)
	assert.Contains(t, raw, "one")

	require.NoError(t, os.WriteFile(path, []byte(`{"name": "two"}`), 0o644))

	raw, loadErr = c.GetDocString(path)
	require.Nil(t, loadErr)
	assert.Contains(t, raw, "one", "memoized read should not observe the on-disk change yet")

	c.Reload(path)
	raw, loadErr = c.GetDocString(path)
	require.Nil(t, loadErr)
	assert.Contains(t, raw, "two", "an explicit Reload should force a re-read")
}

// TestGetReadsSubDocumentKey covers spec 4.4's `get<T>(path.key,
// default)` form.
func TestGetReadsSubDocumentKey(t *testing.T) {
	t.Parallel()

	c, err := New()
	require.NoError(t, err)
	defer c.Close()

	path := writeTempFile(t, "entity.json", `{"hp": 42, "name": "hero"}`)

	assert.Equal(t, 42.0, Get(c, path, "hp", 0.0))
	assert.Equal(t, "hero", Get(c, path, "name", ""))
	assert.Equal(t, "fallback", Get(c, path, "missing", "fallback"))
}

// TestGetMissingFileReturnsDefault verifies a nonexistent path
// produces the caller's default rather than an error leaking upward.
func TestGetMissingFileReturnsDefault(t *testing.T) {
	t.Parallel()

	c, err := New()
	require.NoError(t, err)
	defer c.Close()

	assert.Equal(t, -1.0, Get(c, "/nonexistent/path.json", "hp", -1.0))
}

// TestRefCountAndDeload covers spec 4.4's "reference-counted by the
// expressions that registered a VirtualDouble" and the explicit
// deload path.
func TestRefCountAndDeload(t *testing.T) {
	t.Parallel()

	c, err := New()
	require.NoError(t, err)
	defer c.Close()

	path := writeTempFile(t, "entity.json", `{"hp": 1}`)
	_ = Get(c, path, "hp", 0.0)
	_ = Get(c, path, "hp", 0.0)
	assert.Equal(t, 2, c.RefCount(path))

	deErr := c.Deload(path, false)
	require.NotNil(t, deErr)

	c.Release(path)
	c.Release(path)
	deErr = c.Deload(path, false)
	assert.Nil(t, deErr)
	assert.Equal(t, 0, c.RefCount(path))
}

// TestSchemaValidationNonStrictKeepsLoading verifies a schema
// violation under non-strict mode is non-fatal.
func TestSchemaValidationNonStrictKeepsLoading(t *testing.T) {
	t.Parallel()

	c, err := New()
	require.NoError(t, err)
	defer c.Close()

	schema, err := CompileSchema(`{
		"type": "object",
		"required": ["hp"],
		"properties": {"hp": {"type": "number"}}
	}`, t.TempDir())
	require.NoError(t, err)
	c.SetSchema(schema, false)

	path := writeTempFile(t, "entity.json", `{"name": "hero"}`)
	raw, loadErr := c.GetDocString(path)
	require.Nil(t, loadErr)
	assert.Contains(t, raw, "hero")
}

// TestSchemaValidationStrictFailsLoad verifies --strict-schema
// promotes a violation to a Critical error.
func TestSchemaValidationStrictFailsLoad(t *testing.T) {
	t.Parallel()

	c, err := New()
	require.NoError(t, err)
	defer c.Close()

	schema, err := CompileSchema(`{
		"type": "object",
		"required": ["hp"],
		"properties": {"hp": {"type": "number"}}
	}`, t.TempDir())
	require.NoError(t, err)
	c.SetSchema(schema, true)

	path := writeTempFile(t, "entity.json", `{"name": "hero"}`)
	_, loadErr := c.GetDocString(path)
	require.NotNil(t, loadErr)
	assert.True(t, loadErr.IsCritical())
}
