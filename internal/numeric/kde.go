// Package numeric provides the optional numeric backends the optimizer's
// capability-gated strategies depend on: density estimation, clustering and
// a surrogate-model proposer for sequential search.
package numeric

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat"
)

// minBandwidth keeps degenerate dimensions (zero variance) usable.
const minBandwidth = 1e-3

// KDE is a multivariate Gaussian kernel density estimator with a diagonal
// bandwidth matrix chosen by Silverman's rule per dimension.
type KDE struct{}

// NewKDE creates a density estimator.
func NewKDE() *KDE {
	return &KDE{}
}

// Density fits the estimator on points and evaluates the density at each
// query point. All points must share the same dimensionality.
func (k *KDE) Density(points [][]float64, at [][]float64) ([]float64, error) {
	if len(points) == 0 {
		return nil, fmt.Errorf("kde: no points to fit")
	}
	dims := len(points[0])
	if dims == 0 {
		return nil, fmt.Errorf("kde: zero-dimensional points")
	}
	for _, p := range points {
		if len(p) != dims {
			return nil, fmt.Errorf("kde: inconsistent dimensionality %d != %d", len(p), dims)
		}
	}

	bandwidths := silvermanBandwidths(points, dims)
	densities := make([]float64, len(at))
	norm := 1.0
	for _, h := range bandwidths {
		norm *= h * math.Sqrt(2*math.Pi)
	}

	for qi, q := range at {
		if len(q) != dims {
			return nil, fmt.Errorf("kde: query dimensionality %d != %d", len(q), dims)
		}
		total := 0.0
		for _, p := range points {
			exponent := 0.0
			for d := 0; d < dims; d++ {
				z := (q[d] - p[d]) / bandwidths[d]
				exponent += z * z
			}
			total += math.Exp(-0.5 * exponent)
		}
		densities[qi] = total / (float64(len(points)) * norm)
	}
	return densities, nil
}

func silvermanBandwidths(points [][]float64, dims int) []float64 {
	n := float64(len(points))
	bandwidths := make([]float64, dims)
	column := make([]float64, len(points))
	for d := 0; d < dims; d++ {
		for i, p := range points {
			column[i] = p[d]
		}
		sigma := stat.StdDev(column, nil)
		if math.IsNaN(sigma) || sigma < minBandwidth {
			sigma = minBandwidth
		}
		bandwidths[d] = 1.06 * sigma * math.Pow(n, -0.2)
		if bandwidths[d] < minBandwidth {
			bandwidths[d] = minBandwidth
		}
	}
	return bandwidths
}
