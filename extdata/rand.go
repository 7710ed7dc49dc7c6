package extdata

import "math/rand"

// RandomSource is the scope's rng() dependency (§6), used for
// stochastic distribution-valued attributes. Implementations must be
// deterministic given a seed so that "two back-to-back runs with the
// same seed and inputs produce byte-identical snapshot streams" (§8).
type RandomSource interface {
	Float64() float64
	Intn(n int) int
}

// SeededSource wraps math/rand.Rand, seeded once per replicate.
type SeededSource struct {
	r *rand.Rand
}

// NewSeededSource builds a deterministic source from seed.
func NewSeededSource(seed int64) *SeededSource {
	return &SeededSource{r: rand.New(rand.NewSource(seed))}
}

func (s *SeededSource) Float64() float64 { return s.r.Float64() }
func (s *SeededSource) Intn(n int) int   { return s.r.Intn(n) }
