package room

import (
	cryptorand "crypto/rand"
	"encoding/binary"
	"math/rand/v2"

	"github.com/mcdev12/bingo/go/internal/card"
)

// Shuffler permutes the draw pool in place. It is only called with the room
// lock held.
type Shuffler func(pool []int)

// NewShuffler returns an unbiased Fisher-Yates shuffle over a ChaCha8 stream
// seeded from the operating system.
func NewShuffler() Shuffler {
	var seed [32]byte
	if _, err := cryptorand.Read(seed[:]); err != nil {
		// unreachable on supported platforms
		binary.LittleEndian.PutUint64(seed[:8], rand.Uint64())
		binary.LittleEndian.PutUint64(seed[8:16], rand.Uint64())
	}
	rng := rand.New(rand.NewChaCha8(seed))
	return func(pool []int) {
		rng.Shuffle(len(pool), func(i, j int) { pool[i], pool[j] = pool[j], pool[i] })
	}
}

func newPool() []int {
	pool := make([]int, card.MaxNumber)
	for i := range pool {
		pool[i] = i + 1
	}
	return pool
}
