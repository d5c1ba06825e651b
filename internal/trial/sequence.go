package trial

import (
	"math/rand"

	"emgreach/domain/task"
)

// Sequence is the session's target order. Membership is fixed once built.
type Sequence []task.Direction

// NewSequence lists every direction repetitions times and shuffles the result
// once with rng.
func NewSequence(rng *rand.Rand, repetitions int) Sequence {
	if repetitions < 1 {
		repetitions = 1
	}
	seq := make(Sequence, 0, task.DirectionCount*repetitions)
	for i := 0; i < repetitions; i++ {
		seq = append(seq, task.Directions()...)
	}
	rng.Shuffle(len(seq), func(i, j int) {
		seq[i], seq[j] = seq[j], seq[i]
	})
	return seq
}
