package shell

import (
	"encoding/json"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"github.com/lbastigk/nebulite/config"
	"github.com/lbastigk/nebulite/internal/nbllog"
)

func newTestShell(t *testing.T) *Shell {
	t.Helper()
	cfg := &config.Config{
		ResolutionX:       16,
		ResolutionY:       16,
		TargetFPS:         60,
		LogLevel:          "error",
		BatchCostGoal:     1000,
		ThreadRunnerCount: 2,
		SweepProbability:  0.01,
	}
	sh, err := New(cfg, nbllog.New(nil, nbllog.CriticalLevel))
	require.NoError(t, err)
	t.Cleanup(func() { _ = sh.Close() })
	return sh
}

// TestSetMoveCopyDelete exercises the direct store commands against
// the global view and diffs the resulting document against the
// expected shape (spec 6).
func TestSetMoveCopyDelete(t *testing.T) {
	t.Parallel()
	sh := newTestShell(t)

	require.Nil(t, sh.Dispatch("set player.hp 100"))
	require.Nil(t, sh.Dispatch("copy player.hp player.maxHp"))
	require.Nil(t, sh.Dispatch("move player.hp player.currentHp"))
	require.Nil(t, sh.Dispatch("delete player.maxHp"))

	raw, err := sh.globalDoc.Serialize("")
	require.NoError(t, err)

	var got map[string]any
	require.NoError(t, json.Unmarshal([]byte(raw), &got))

	want := map[string]any{
		"player": map[string]any{
			"currentHp": 100.0,
		},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("global store mismatch (-want +got):\n%s", diff)
	}
}

// TestPushPopArrayOrdering exercises the array-shift commands, which
// only operate on scalar elements (spec 6's Non-goals exclude nested
// array/object push targets).
func TestPushPopArrayOrdering(t *testing.T) {
	t.Parallel()
	sh := newTestShell(t)

	require.Nil(t, sh.Dispatch("ensureArray queue"))
	require.Nil(t, sh.Dispatch("push_back queue 1"))
	require.Nil(t, sh.Dispatch("push_back queue 2"))
	require.Nil(t, sh.Dispatch("push_front queue 0"))
	require.Nil(t, sh.Dispatch("pop_back queue"))

	raw, err := sh.globalDoc.Serialize("")
	require.NoError(t, err)

	var got map[string]any
	require.NoError(t, json.Unmarshal([]byte(raw), &got))

	want := map[string]any{
		"queue": []any{0.0, 1.0},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("array mismatch (-want +got):\n%s", diff)
	}
}

// TestForLoopAssignsEachIteration confirms `for` dispatches once per
// value in [lo, hi] inclusive (spec 6).
func TestForLoopAssignsEachIteration(t *testing.T) {
	t.Parallel()
	sh := newTestShell(t)

	require.Nil(t, sh.Dispatch(`for i 1 3 "eval set last {Self.i}"`))

	v, ok := sh.global.GetVariant("last")
	require.True(t, ok)
	require.Equal(t, 3.0, v.AsDouble())
}

// TestAssertFailureIsCritical confirms a false condition returns a
// critical error (spec 6: assert stops script execution).
func TestAssertFailureIsCritical(t *testing.T) {
	t.Parallel()
	sh := newTestShell(t)

	err := sh.Dispatch(`assert "1 == 2"`)
	require.NotNil(t, err)
	require.True(t, err.IsCritical())
}

// TestCamSetMove confirms the camera commands update both the
// shell's tracked position and the scene's camera tile.
func TestCamSetMove(t *testing.T) {
	t.Parallel()
	sh := newTestShell(t)

	require.Nil(t, sh.Dispatch("cam set 10 20"))
	require.Nil(t, sh.Dispatch("cam move 5 5"))
	require.Equal(t, 15.0, sh.camX)
	require.Equal(t, 25.0, sh.camY)
}
