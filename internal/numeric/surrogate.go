package numeric

import (
	"math"
	"math/rand"
	"sync"

	"gonum.org/v1/gonum/floats"
)

// Surrogate is a linear surrogate model used as the sequential-search
// proposer: it scores candidate points, proposes the most promising one with
// epsilon-greedy exploration, and learns from observed objective values by
// stochastic gradient descent.
type Surrogate struct {
	mu         sync.Mutex
	w          []float64
	bias       float64
	lr         float64
	l2         float64
	exploreP   float64
	warmup     int
	candidates int
	observed   int
	rng        *rand.Rand
}

// NewSurrogate creates a seeded surrogate proposer over dim dimensions.
func NewSurrogate(dim int, seed int64) *Surrogate {
	return &Surrogate{
		w:          make([]float64, dim),
		lr:         0.02,
		l2:         1e-4,
		exploreP:   0.10,
		warmup:     5,
		candidates: 32,
		rng:        rand.New(rand.NewSource(seed)),
	}
}

// Propose returns the next point in the unit hypercube: random during warmup
// or exploration, otherwise the best of a candidate batch under the model.
func (m *Surrogate) Propose() []float64 {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.observed < m.warmup || m.rng.Float64() < m.exploreP {
		return m.randomPoint()
	}

	best := m.randomPoint()
	bestScore := m.predict(best)
	for i := 1; i < m.candidates; i++ {
		candidate := m.randomPoint()
		if score := m.predict(candidate); score > bestScore {
			best, bestScore = candidate, score
		}
	}
	return best
}

// Observe trains the model toward the observed score. Failed evaluations
// (negative infinity) advance exploration without a gradient step.
func (m *Surrogate) Observe(point []float64, score float64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.observed++
	if math.IsInf(score, -1) || math.IsNaN(score) {
		return
	}

	err := m.predict(point) - score
	// Huber-like clamp to avoid huge gradients
	if err > 5 {
		err = 5
	}
	if err < -5 {
		err = -5
	}
	for i := 0; i < len(m.w) && i < len(point); i++ {
		grad := err*point[i] + m.l2*m.w[i]
		m.w[i] -= m.lr * grad
	}
	m.bias -= m.lr * err
}

func (m *Surrogate) predict(point []float64) float64 {
	n := len(m.w)
	if len(point) < n {
		n = len(point)
	}
	return floats.Dot(m.w[:n], point[:n]) + m.bias
}

func (m *Surrogate) randomPoint() []float64 {
	point := make([]float64, len(m.w))
	for i := range point {
		point[i] = m.rng.Float64()
	}
	return point
}
