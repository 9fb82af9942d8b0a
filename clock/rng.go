package clock

import (
	"encoding/binary"
	"math/rand/v2"
	"sync"

	"golang.org/x/crypto/blake2b"

	"github.com/lbastigk/nebulite/document/scope"
)

// Stream is one seeded RNG stream. Seeding a stream from a string
// label, rather than a numeric seed, lets two otherwise unrelated
// processes agree on the same sequence as long as they agree on the
// label - the blake2b-256 digest of the label is folded into the two
// 64-bit words math/rand/v2's PCG generator wants.
type Stream struct {
	mu           sync.Mutex
	rng          *rand.Rand
	seed1, seed2 uint64
}

// NewStream seeds a Stream from label.
func NewStream(label string) *Stream {
	s1, s2 := seedFromLabel(label)
	return &Stream{rng: rand.New(rand.NewPCG(s1, s2)), seed1: s1, seed2: s2}
}

func seedFromLabel(label string) (uint64, uint64) {
	digest := blake2b.Sum256([]byte(label))
	return binary.LittleEndian.Uint64(digest[0:8]), binary.LittleEndian.Uint64(digest[8:16])
}

// Float64 draws the stream's next value in [0, 1).
func (s *Stream) Float64() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rng.Float64()
}

// Rollback resets the stream to its seeded initial state, so a
// command that inspected the stream without committing to its draw
// (spec 4.12's rollback operation) leaves no trace on the sequence
// later draws see.
func (s *Stream) Rollback() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rng = rand.New(rand.NewPCG(s.seed1, s.seed2))
}

// RNG bundles the two named streams spec 4.12 requires: rand, the
// general-purpose stream, and rrand, a second independent stream kept
// separate so consuming one never perturbs the other's sequence.
type RNG struct {
	Rand  *Stream
	RRand *Stream
}

// NewRNG seeds both streams off label, distinguished by a suffix so
// they never collide even though they share a base label.
func NewRNG(label string) *RNG {
	return &RNG{
		Rand:  NewStream(label + "/rand"),
		RRand: NewStream(label + "/rrand"),
	}
}

// WriteTo draws one value from each stream and exposes them at the
// store keys spec 4.12 names.
func (r *RNG) WriteTo(v *scope.View) {
	scope.Set(v, "rand", r.Rand.Float64())
	scope.Set(v, "rrand", r.RRand.Float64())
}

// Rollback resets both streams.
func (r *RNG) Rollback() {
	r.Rand.Rollback()
	r.RRand.Rollback()
}
