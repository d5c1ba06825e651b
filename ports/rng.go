package ports

import "math/rand"

// RNGPort hands out named random streams. The same name and non-zero seed
// always yield the same stream, which makes a target order reproducible.
type RNGPort interface {
	SeededStream(name string, seed int64) *rand.Rand
}
