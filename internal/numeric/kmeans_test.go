package numeric

import "testing"

func TestKMeansSeparatesClusters(t *testing.T) {
	km := NewKMeans()
	points := [][]float64{
		{0.0, 0.0}, {0.1, 0.0}, {0.0, 0.1},
		{1.0, 1.0}, {0.9, 1.0}, {1.0, 0.9},
	}
	assignments, err := km.Cluster(points, 2, 7)
	if err != nil {
		t.Fatalf("Cluster failed: %v", err)
	}
	if len(assignments) != len(points) {
		t.Fatalf("expected %d assignments, got %d", len(points), len(assignments))
	}
	if assignments[0] != assignments[1] || assignments[1] != assignments[2] {
		t.Fatalf("expected first three points in one cluster, got %v", assignments[:3])
	}
	if assignments[3] != assignments[4] || assignments[4] != assignments[5] {
		t.Fatalf("expected last three points in one cluster, got %v", assignments[3:])
	}
	if assignments[0] == assignments[3] {
		t.Fatalf("expected the two groups to be separated, got %v", assignments)
	}
}

func TestKMeansReproducibleWithSeed(t *testing.T) {
	km := NewKMeans()
	points := [][]float64{
		{0.0}, {0.1}, {0.5}, {0.6}, {1.0}, {0.9},
	}
	a, err := km.Cluster(points, 3, 11)
	if err != nil {
		t.Fatalf("Cluster failed: %v", err)
	}
	b, err := km.Cluster(points, 3, 11)
	if err != nil {
		t.Fatalf("Cluster failed: %v", err)
	}
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("same seed produced different assignments at %d", i)
		}
	}
}

func TestKMeansClampsKToPointCount(t *testing.T) {
	km := NewKMeans()
	assignments, err := km.Cluster([][]float64{{0.1}, {0.9}}, 5, 1)
	if err != nil {
		t.Fatalf("Cluster failed: %v", err)
	}
	if len(assignments) != 2 {
		t.Fatalf("expected 2 assignments, got %d", len(assignments))
	}
	for _, label := range assignments {
		if label < 0 || label > 1 {
			t.Fatalf("assignment out of range: %d", label)
		}
	}
}

func TestKMeansCoincidentPoints(t *testing.T) {
	km := NewKMeans()
	points := [][]float64{{0.5, 0.5}, {0.5, 0.5}, {0.5, 0.5}}
	assignments, err := km.Cluster(points, 2, 3)
	if err != nil {
		t.Fatalf("Cluster failed on coincident points: %v", err)
	}
	if len(assignments) != 3 {
		t.Fatalf("expected 3 assignments, got %d", len(assignments))
	}
}

func TestKMeansErrors(t *testing.T) {
	km := NewKMeans()
	if _, err := km.Cluster(nil, 2, 1); err == nil {
		t.Fatalf("expected error for empty input")
	}
	if _, err := km.Cluster([][]float64{{0.5}}, 0, 1); err == nil {
		t.Fatalf("expected error for k < 1")
	}
}
