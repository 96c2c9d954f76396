package game

import "math/rand/v2"

// RandomPolicy is the single source of randomness for seating shuffles and
// surprise rolls. Tests inject a scripted implementation to pin outcomes.
type RandomPolicy interface {
	Intn(n int) int
	Shuffle(n int, swap func(i, j int))
}

type mathRandom struct{}

func NewRandomPolicy() RandomPolicy { return mathRandom{} }

func (mathRandom) Intn(n int) int { return rand.IntN(n) }

func (mathRandom) Shuffle(n int, swap func(i, j int)) { rand.Shuffle(n, swap) }
