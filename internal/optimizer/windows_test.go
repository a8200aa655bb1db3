package optimizer

import (
	"errors"
	"testing"
	"time"
)

func TestWalkForwardCoverage(t *testing.T) {
	start := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 0, 500)

	windows, err := WalkForwardWindows(start, end, 252, 63)
	if err != nil {
		t.Fatalf("WalkForwardWindows failed: %v", err)
	}
	if len(windows) != 1 {
		t.Fatalf("expected 1 window for 500 days at 252/63, got %d", len(windows))
	}

	w := windows[0]
	if !w.TrainStart.Equal(start) {
		t.Fatalf("expected first train to start at range start")
	}
	if got := int(w.TrainEnd.Sub(w.TrainStart).Hours() / 24); got != 252 {
		t.Fatalf("expected 252 train days, got %d", got)
	}
	if !w.TestStart.Equal(w.TrainEnd) {
		t.Fatalf("expected test to start where train ends")
	}
	if got := int(w.TestEnd.Sub(w.TestStart).Hours() / 24); got != 63 {
		t.Fatalf("expected 63 test days, got %d", got)
	}
	if w.TestEnd.After(end) {
		t.Fatalf("window extends past range end")
	}
}

func TestWalkForwardNonOverlapping(t *testing.T) {
	start := time.Date(2018, 1, 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 0, 1000)

	windows, err := WalkForwardWindows(start, end, 252, 63)
	if err != nil {
		t.Fatalf("WalkForwardWindows failed: %v", err)
	}
	if len(windows) != 3 {
		t.Fatalf("expected 3 windows for 1000 days, got %d", len(windows))
	}
	for i := 1; i < len(windows); i++ {
		if !windows[i].TrainStart.Equal(windows[i-1].TestEnd) {
			t.Fatalf("window %d overlaps or gaps against window %d", i, i-1)
		}
	}
}

func TestWalkForwardInsufficientRange(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 0, 100)

	_, err := WalkForwardWindows(start, end, 252, 63)
	var rangeErr *InsufficientRangeError
	if !errors.As(err, &rangeErr) {
		t.Fatalf("expected InsufficientRangeError, got %v", err)
	}
	if rangeErr.RequiredDays != 315 {
		t.Fatalf("expected required days 315 in error, got %d", rangeErr.RequiredDays)
	}
}

func TestWalkForwardInvalidDurations(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	var cfgErr *ConfigurationError
	if _, err := WalkForwardWindows(start, start.AddDate(1, 0, 0), 0, 63); !errors.As(err, &cfgErr) {
		t.Fatalf("expected ConfigurationError for zero train days, got %v", err)
	}
	if _, err := WalkForwardWindows(start, start.AddDate(1, 0, 0), 252, -1); !errors.As(err, &cfgErr) {
		t.Fatalf("expected ConfigurationError for negative test days, got %v", err)
	}
}

func TestSingleWindow(t *testing.T) {
	start := time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2023, 12, 31, 0, 0, 0, 0, time.UTC)

	windows := SingleWindow(start, end)
	if len(windows) != 1 {
		t.Fatalf("expected exactly one window, got %d", len(windows))
	}
	w := windows[0]
	if w.HasTrain() {
		t.Fatalf("single window should not carry a training segment")
	}
	if !w.TestStart.Equal(start) || !w.TestEnd.Equal(end) {
		t.Fatalf("single window should span the full range")
	}
	if w.Key() == "" {
		t.Fatalf("window key should be non-empty")
	}
}
