// Package entropy provides the single pseudorandom stream a simulation run
// draws from. Every stochastic choice in a run goes through one Stream, so a
// run is reproducible from its seed and its fixed agent update order.
package entropy

import (
	"crypto/rand"
	"encoding/binary"
	mrand "math/rand"

	"github.com/gomlx/exceptions"
)

// Stream is a seeded pseudorandom stream. It is not safe for concurrent use;
// parallel runs each own their own Stream.
type Stream struct {
	seed int64
	rng  *mrand.Rand
}

// NewStream creates a stream from seed. A zero seed is replaced with one
// drawn from crypto/rand; Seed reports the value actually used.
func NewStream(seed int64) *Stream {
	if seed == 0 {
		seed = CryptoSeed()
	}
	return &Stream{
		seed: seed,
		rng:  mrand.New(mrand.NewSource(seed)),
	}
}

// Seed returns the seed the stream was created with.
func (s *Stream) Seed() int64 {
	return s.seed
}

// EventOccurs reports whether an event of the given probability happens on
// this draw. Probabilities 0 and 1 consume no randomness.
func (s *Stream) EventOccurs(probability float64) bool {
	if probability < 0 || probability > 1 {
		exceptions.Panicf("entropy: probability out of range (0 <= %g <= 1)", probability)
	}
	switch probability {
	case 0:
		return false
	case 1:
		return true
	}
	return s.rng.Float64() <= probability
}

// IntN returns a uniform int in [0, n). Panics if n <= 0.
func (s *Stream) IntN(n int) int {
	if n <= 0 {
		exceptions.Panicf("entropy: IntN called with n=%d", n)
	}
	return s.rng.Intn(n)
}

// Float64 returns a uniform float64 in [0, 1).
func (s *Stream) Float64() float64 {
	return s.rng.Float64()
}

// Normal returns a draw from N(mean, stdDev).
func (s *Stream) Normal(mean, stdDev float64) float64 {
	return mean + s.rng.NormFloat64()*stdDev
}

// CryptoSeed returns a non-zero seed from crypto/rand.
func CryptoSeed() int64 {
	var buf [8]byte
	if _, err := rand.Read(buf[:]); err != nil {
		// crypto/rand does not fail on supported platforms.
		return 1
	}
	seed := int64(binary.LittleEndian.Uint64(buf[:]) >> 1)
	if seed == 0 {
		seed = 1
	}
	return seed
}
