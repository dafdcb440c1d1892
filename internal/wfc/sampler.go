package wfc

import "math/rand"

// Sampler is the single random stream of one collapse run
type Sampler struct {
	seed  int64
	rng   *rand.Rand
	draws int
}

// NewSampler creates a sampler seeded with seed
func NewSampler(seed int64) *Sampler {
	return &Sampler{
		seed: seed,
		rng:  rand.New(rand.NewSource(seed)),
	}
}

// Int63n returns a uniform value in [0, n). n must be positive.
func (s *Sampler) Int63n(n int64) int64 {
	s.draws++
	return s.rng.Int63n(n)
}

// Seed returns the seed the sampler was created with
func (s *Sampler) Seed() int64 {
	return s.seed
}

// Draws returns how many values have been drawn so far
func (s *Sampler) Draws() int {
	return s.draws
}
