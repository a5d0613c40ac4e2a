// Package planner synthesizes plans and produces the per-attempt outcomes and
// findings the engine applies to them.
package planner

import (
	"math/rand/v2"
	"sync"
)

// Source yields pseudo-random numbers for outcome and finding selection.
// Implementations must be safe for concurrent use.
type Source interface {
	// IntN returns a number in [0, n). n must be positive.
	IntN(n int) int
	// Float64 returns a number in [0.0, 1.0).
	Float64() float64
}

// GlobalSource draws from the process-wide math/rand/v2 generator.
type GlobalSource struct{}

// IntN implements Source.
func (GlobalSource) IntN(n int) int { return rand.IntN(n) }

// Float64 implements Source.
func (GlobalSource) Float64() float64 { return rand.Float64() }

// SeededSource is a reproducible Source backed by a PCG generator.
type SeededSource struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewSeededSource creates a reproducible source. Equal seeds yield equal sequences.
func NewSeededSource(seed uint64) *SeededSource {
	return &SeededSource{
		rng: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
	}
}

// IntN implements Source.
func (s *SeededSource) IntN(n int) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rng.IntN(n)
}

// Float64 implements Source.
func (s *SeededSource) Float64() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rng.Float64()
}

func pick(src Source, options []string) string {
	if len(options) == 0 {
		return ""
	}
	return options[src.IntN(len(options))]
}
