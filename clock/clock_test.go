package clock

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/lbastigk/nebulite/document"
	"github.com/lbastigk/nebulite/document/scope"
)

func newView() *scope.View {
	return scope.New(document.New())
}

func TestTimeTicksTrackRealDelta(t *testing.T) {
	tm := New()
	tm.Tick(0.5)
	tm.Tick(0.25)

	v := newView()
	tm.WriteTo(v)

	assert.InDelta(t, 0.75, document.Get(v.Doc(), "runtime.t", 0.0), 1e-9)
	assert.InDelta(t, 0.25, document.Get(v.Doc(), "runtime.dt", 0.0), 1e-9)
	assert.InDelta(t, 0.75, document.Get(v.Doc(), "time.t", 0.0), 1e-9)
	assert.InDelta(t, 0.25, document.Get(v.Doc(), "time.dt", 0.0), 1e-9)
	assert.InDelta(t, 250.0, document.Get(v.Doc(), "time.dt_ms", 0.0), 1e-9)
	assert.Equal(t, uint64(2), document.Get(v.Doc(), "frameCount", uint64(0)))
}

func TestTimeFixedDeltaOverridesSimulationDelta(t *testing.T) {
	tm := New()
	tm.SetFixedDeltaTime(0.1)
	tm.Tick(0.5)

	v := newView()
	tm.WriteTo(v)

	assert.InDelta(t, 0.5, document.Get(v.Doc(), "runtime.dt", 0.0), 1e-9)
	assert.InDelta(t, 0.1, document.Get(v.Doc(), "time.dt", 0.0), 1e-9)
	assert.InDelta(t, 0.1, document.Get(v.Doc(), "time.t", 0.0), 1e-9)
}

func TestTimeLockFreezesSimulationTime(t *testing.T) {
	tm := New()
	tm.Tick(0.1)
	tm.Lock()
	tm.Tick(0.1)
	tm.Tick(0.1)
	tm.Unlock()
	tm.Tick(0.1)

	v := newView()
	tm.WriteTo(v)

	assert.InDelta(t, 0.4, document.Get(v.Doc(), "runtime.t", 0.0), 1e-9)
	assert.InDelta(t, 0.2, document.Get(v.Doc(), "time.t", 0.0), 1e-9)
	assert.InDelta(t, 0.1, document.Get(v.Doc(), "time.dt", 0.0), 1e-9)
}

func TestTimeLockIsIdempotentBelowZero(t *testing.T) {
	tm := New()
	tm.Unlock()
	assert.False(t, tm.Locked())
}

func TestClocksFireOnIntervalAndStayDriftFree(t *testing.T) {
	c := NewClocks()
	c.Add("tick", 100)
	v := newView()

	c.Tick(50, v)
	assert.Equal(t, 0.0, document.Get(v.Doc(), "clock.tick", -1.0))

	c.Tick(120, v)
	assert.Equal(t, 1.0, document.Get(v.Doc(), "clock.tick", -1.0))

	c.Tick(150, v)
	assert.Equal(t, 0.0, document.Get(v.Doc(), "clock.tick", -1.0))

	// 340ms since start: the 120ms firing left the last trigger on the
	// 100ms grid point, and two whole 100ms intervals (200 and 300)
	// have passed since, so this fires again and the last trigger moves
	// to 300, not 340.
	c.Tick(340, v)
	assert.Equal(t, 1.0, document.Get(v.Doc(), "clock.tick", -1.0))
}

func TestClocksRemoveStopsFiring(t *testing.T) {
	c := NewClocks()
	c.Add("tick", 10)
	c.Remove("tick")
	v := newView()
	c.Tick(1000, v)
	assert.Equal(t, 0.0, document.Get(v.Doc(), "clock.tick", 0.0))
}

func TestStreamIsDeterministicForSameLabel(t *testing.T) {
	a := NewStream("enemy-7")
	b := NewStream("enemy-7")
	assert.Equal(t, a.Float64(), b.Float64())
}

func TestStreamDiffersAcrossLabels(t *testing.T) {
	a := NewStream("enemy-7")
	b := NewStream("enemy-8")
	assert.NotEqual(t, a.Float64(), b.Float64())
}

func TestStreamRollbackRestoresSequence(t *testing.T) {
	s := NewStream("player-1")
	first := s.Float64()
	s.Float64()
	s.Rollback()
	assert.Equal(t, first, s.Float64())
}

func TestRNGStreamsAreIndependent(t *testing.T) {
	r := NewRNG("scene-main")
	assert.NotEqual(t, r.Rand.Float64(), r.RRand.Float64())
}

func TestRNGRollbackResetsBothStreams(t *testing.T) {
	r := NewRNG("scene-main")
	firstRand := r.Rand.Float64()
	firstRRand := r.RRand.Float64()
	r.Rand.Float64()
	r.RRand.Float64()
	r.Rollback()
	assert.Equal(t, firstRand, r.Rand.Float64())
	assert.Equal(t, firstRRand, r.RRand.Float64())
}
