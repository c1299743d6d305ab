package util

import (
	"time"

	"golang.org/x/exp/rand"
)

// NewUniform returns a uniform source in [0,1) seeded with seed. Two sources
// with the same seed produce the same sequence.
func NewUniform(seed uint64) *rand.Rand {
	return rand.New(rand.NewSource(seed))
}

// Seed returns a seed taken from the wall clock, for runs that need not be
// reproducible.
func Seed() uint64 {
	return uint64(time.Now().UnixNano())
}
