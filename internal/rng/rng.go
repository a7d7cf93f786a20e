// Package rng isolates every random draw made during resolution behind a
// seedable source so an action can be replayed exactly.
package rng

import (
	"encoding/binary"
	"math/rand/v2"

	"github.com/zeebo/xxh3"
)

// Source is the random draw surface used by combat and spell resolution.
type Source interface {
	// Roll0to99 returns an integer in [0, 100).
	Roll0to99() int
	// RollProbability returns a float in [0, 1).
	RollProbability() float32
}

// Seeded is a deterministic PCG-backed Source.
type Seeded struct {
	r *rand.Rand
}

// New returns a Source seeded with seed.
func New(seed uint64) *Seeded {
	return &Seeded{r: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))}
}

func (s *Seeded) Roll0to99() int {
	return s.r.IntN(100)
}

func (s *Seeded) RollProbability() float32 {
	return s.r.Float32()
}

// Derive mixes a session seed, an entity id and the action sequence into a
// per-action seed. The same triple always yields the same seed.
func Derive(sessionSeed uint64, entityID string, seq uint64) uint64 {
	buf := make([]byte, 0, len(entityID)+8)
	buf = append(buf, entityID...)
	buf = binary.LittleEndian.AppendUint64(buf, seq)
	return xxh3.HashSeed(buf, sessionSeed)
}

// Factory produces the Source for one action.
type Factory func(entityID string, seq uint64) Source

// SeededFactory returns a Factory deriving every action's source from
// sessionSeed.
func SeededFactory(sessionSeed uint64) Factory {
	return func(entityID string, seq uint64) Source {
		return New(Derive(sessionSeed, entityID, seq))
	}
}

// Fixed returns a Factory that hands out the same Source for every action.
func Fixed(src Source) Factory {
	return func(string, uint64) Source {
		return src
	}
}
