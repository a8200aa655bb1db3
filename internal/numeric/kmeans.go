package numeric

import (
	"fmt"
	"math"
	"math/rand"

	"gonum.org/v1/gonum/floats"
)

const kmeansMaxIterations = 100

// KMeans partitions points by Euclidean distance with k-means++ seeding and
// Lloyd iterations. Seeded runs are reproducible.
type KMeans struct{}

// NewKMeans creates a clusterer.
func NewKMeans() *KMeans {
	return &KMeans{}
}

// Cluster assigns each point to one of k groups and returns the assignments.
func (c *KMeans) Cluster(points [][]float64, k int, seed int64) ([]int, error) {
	if len(points) == 0 {
		return nil, fmt.Errorf("kmeans: no points to cluster")
	}
	if k < 1 {
		return nil, fmt.Errorf("kmeans: k must be at least 1, got %d", k)
	}
	if k > len(points) {
		k = len(points)
	}

	rng := rand.New(rand.NewSource(seed))
	centroids := initialCentroids(points, k, rng)
	assignments := make([]int, len(points))

	for iter := 0; iter < kmeansMaxIterations; iter++ {
		changed := false
		for i, p := range points {
			best := nearestCentroid(p, centroids)
			if assignments[i] != best {
				assignments[i] = best
				changed = true
			}
		}
		if !changed && iter > 0 {
			break
		}
		recomputeCentroids(points, assignments, centroids)
	}
	return assignments, nil
}

// initialCentroids implements k-means++ seeding: each next centroid is drawn
// proportionally to squared distance from the nearest chosen one.
func initialCentroids(points [][]float64, k int, rng *rand.Rand) [][]float64 {
	centroids := make([][]float64, 0, k)
	first := points[rng.Intn(len(points))]
	centroids = append(centroids, append([]float64{}, first...))

	distances := make([]float64, len(points))
	for len(centroids) < k {
		total := 0.0
		for i, p := range points {
			d := math.Inf(1)
			for _, centroid := range centroids {
				d = math.Min(d, floats.Distance(p, centroid, 2))
			}
			distances[i] = d * d
			total += distances[i]
		}
		if total <= 0 {
			// all points coincide with existing centroids
			centroids = append(centroids, append([]float64{}, points[rng.Intn(len(points))]...))
			continue
		}
		target := rng.Float64() * total
		cumulative := 0.0
		chosen := len(points) - 1
		for i, d := range distances {
			cumulative += d
			if cumulative >= target {
				chosen = i
				break
			}
		}
		centroids = append(centroids, append([]float64{}, points[chosen]...))
	}
	return centroids
}

func nearestCentroid(point []float64, centroids [][]float64) int {
	best := 0
	bestDist := math.Inf(1)
	for i, centroid := range centroids {
		if d := floats.Distance(point, centroid, 2); d < bestDist {
			best, bestDist = i, d
		}
	}
	return best
}

func recomputeCentroids(points [][]float64, assignments []int, centroids [][]float64) {
	dims := len(points[0])
	counts := make([]int, len(centroids))
	for i := range centroids {
		for d := 0; d < dims; d++ {
			centroids[i][d] = 0
		}
	}
	for i, p := range points {
		label := assignments[i]
		floats.Add(centroids[label], p)
		counts[label]++
	}
	for i := range centroids {
		if counts[i] == 0 {
			continue
		}
		floats.Scale(1/float64(counts[i]), centroids[i])
	}
}
