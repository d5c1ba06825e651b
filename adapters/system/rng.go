package system

import (
	"math/rand"
	"time"
)

// RNG implements ports.RNGPort
type RNG struct{}

// NewRNG creates a random source adapter
func NewRNG() *RNG {
	return &RNG{}
}

// SeededStream creates a deterministic generator for the named operation. A zero
// seed draws one from the clock, so unseeded sessions get a fresh trial order.
func (RNG) SeededStream(name string, seed int64) *rand.Rand {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return rand.New(rand.NewSource(int64(hashString(name)) + seed))
}

// hashString creates a simple hash for deterministic seeding
func hashString(s string) uint32 {
	var hash uint32 = 5381
	for _, c := range s {
		hash = ((hash << 5) + hash) + uint32(c) // djb2
	}
	return hash
}
