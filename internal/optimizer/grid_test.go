package optimizer

import (
	"errors"
	"testing"
)

func testGrid(t *testing.T) *GridSpec {
	t.Helper()
	grid, err := NewGridSpec(map[string]ParamSpec{
		"atr_period":         {Values: []interface{}{10, 14, 20}},
		"risk_per_trade_pct": {Values: []interface{}{0.02, 0.03}},
		"universe_size":      {Fixed: 50},
	})
	if err != nil {
		t.Fatalf("NewGridSpec failed: %v", err)
	}
	return grid
}

func TestEnumerateFullProduct(t *testing.T) {
	grid := testGrid(t)
	combos, err := grid.Enumerate(100, 42)
	if err != nil {
		t.Fatalf("Enumerate failed: %v", err)
	}
	if len(combos) != 6 {
		t.Fatalf("expected 6 combinations, got %d", len(combos))
	}

	seen := map[string]bool{}
	for _, c := range combos {
		if seen[c.Key()] {
			t.Fatalf("duplicate combination %s", c.Key())
		}
		seen[c.Key()] = true
		if v, ok := c.Value("universe_size"); !ok || v != 50 {
			t.Fatalf("fixed parameter missing or wrong: %v", v)
		}
	}

	// deterministic lexicographic order: atr_period major, declared value order
	first := combos[0]
	if v, _ := first.Int("atr_period"); v != 10 {
		t.Fatalf("expected first atr_period 10, got %d", v)
	}
	if v, _ := first.Float("risk_per_trade_pct"); v != 0.02 {
		t.Fatalf("expected first risk 0.02, got %v", v)
	}
}

func TestEnumerateSampledReproducible(t *testing.T) {
	grid := testGrid(t)
	a, err := grid.Enumerate(4, 7)
	if err != nil {
		t.Fatalf("Enumerate failed: %v", err)
	}
	b, err := grid.Enumerate(4, 7)
	if err != nil {
		t.Fatalf("Enumerate failed: %v", err)
	}
	if len(a) != 4 || len(b) != 4 {
		t.Fatalf("expected exactly 4 sampled combinations, got %d and %d", len(a), len(b))
	}

	seen := map[string]bool{}
	for i := range a {
		if a[i].Key() != b[i].Key() {
			t.Fatalf("same seed produced different samples at %d: %s vs %s", i, a[i].Key(), b[i].Key())
		}
		if seen[a[i].Key()] {
			t.Fatalf("duplicate sampled combination %s", a[i].Key())
		}
		seen[a[i].Key()] = true
	}
}

func TestEnumerateAllFixed(t *testing.T) {
	grid, err := NewGridSpec(map[string]ParamSpec{
		"atr_period": {Fixed: 14},
		"risk":       {Fixed: 0.02},
	})
	if err != nil {
		t.Fatalf("NewGridSpec failed: %v", err)
	}
	combos, err := grid.Enumerate(10, 1)
	if err != nil {
		t.Fatalf("Enumerate failed: %v", err)
	}
	if len(combos) != 1 {
		t.Fatalf("expected exactly one all-fixed combination, got %d", len(combos))
	}
	if v, _ := combos[0].Int("atr_period"); v != 14 {
		t.Fatalf("expected fixed atr_period 14, got %d", v)
	}
}

func TestEnumerateInvalidCap(t *testing.T) {
	grid := testGrid(t)
	_, err := grid.Enumerate(0, 1)
	var cfgErr *ConfigurationError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("expected ConfigurationError, got %v", err)
	}
}

func TestNewGridSpecEmptyValues(t *testing.T) {
	_, err := NewGridSpec(map[string]ParamSpec{"atr_period": {}})
	var cfgErr *ConfigurationError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("expected ConfigurationError for empty parameter, got %v", err)
	}
}

func TestSnap(t *testing.T) {
	grid := testGrid(t)
	if v := grid.Snap("atr_period", 13.4, nil); v != 14 {
		t.Fatalf("expected snap to 14, got %v", v)
	}
	if v := grid.Snap("atr_period", 15, nil); v != 14 {
		t.Fatalf("expected snap to 14, got %v", v)
	}
	// 12 is equidistant between 10 and 14: prefer wins
	if v := grid.Snap("atr_period", 12, 14); v != 14 {
		t.Fatalf("expected tie to resolve toward 14, got %v", v)
	}
	if v := grid.Snap("atr_period", 12, nil); v != 10 {
		t.Fatalf("expected tie to resolve toward lower index, got %v", v)
	}
}

func TestNormalizedDistance(t *testing.T) {
	grid := testGrid(t)
	a := NewCombination(map[string]interface{}{"atr_period": 10, "risk_per_trade_pct": 0.02, "universe_size": 50})
	b := NewCombination(map[string]interface{}{"atr_period": 20, "risk_per_trade_pct": 0.03, "universe_size": 50})
	d := grid.NormalizedDistance(a, b)
	if d < 1.99 || d > 2.01 {
		t.Fatalf("expected full-range distance 2.0, got %v", d)
	}
	if grid.NormalizedDistance(a, a) != 0 {
		t.Fatalf("expected zero self distance")
	}
}

func TestContains(t *testing.T) {
	grid := testGrid(t)
	on := NewCombination(map[string]interface{}{"atr_period": 14, "risk_per_trade_pct": 0.02, "universe_size": 50})
	off := NewCombination(map[string]interface{}{"atr_period": 13, "risk_per_trade_pct": 0.02, "universe_size": 50})
	if !grid.Contains(on) {
		t.Fatalf("expected on-grid combination to be contained")
	}
	if grid.Contains(off) {
		t.Fatalf("expected off-grid combination to be rejected")
	}
}

func TestCombinationKeyOrderIndependent(t *testing.T) {
	a := NewCombination(map[string]interface{}{"b": 2, "a": 1})
	b := NewCombination(map[string]interface{}{"a": 1, "b": 2})
	if a.Key() != b.Key() {
		t.Fatalf("expected identical canonical keys, got %s vs %s", a.Key(), b.Key())
	}
	if !a.Equal(b) {
		t.Fatalf("expected order-independent equality")
	}
}
