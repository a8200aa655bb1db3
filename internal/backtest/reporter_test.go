package backtest

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/yourusername/gridtune/internal/optimizer"
)

func sampleReport() RunReport {
	best := optimizer.NewCombination(map[string]interface{}{"fast_period": 5, "slow_period": 50})
	second := optimizer.NewCombination(map[string]interface{}{"fast_period": 10, "slow_period": 50})

	return RunReport{
		Symbol: "AAPL",
		Mode:   "walk-forward",
		Selection: optimizer.SelectionResult{
			Combination: best,
			Strategy:    optimizer.SelectBest,
			Score:       1.42,
		},
		Ranked: []*optimizer.EvaluatedCombination{
			{Combination: best, Score: 1.42, Metrics: optimizer.MetricsRecord{"sharpe": 1.42, "max_drawdown": 0.11}},
			{Combination: second, Score: 0.97, Metrics: optimizer.MetricsRecord{"sharpe": 0.97}},
		},
		Stability: &optimizer.StabilityReport{Metric: "sharpe", Mean: 1.3, Std: 0.2},
	}
}

func TestGenerateConsoleReport(t *testing.T) {
	out := GenerateConsoleReport(sampleReport())

	for _, want := range []string{"AAPL", "walk-forward", "fast_period=5", "1.4200", "Validation sharpe"} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected report to contain %q:\n%s", want, out)
		}
	}
}

func TestGenerateCSVExport(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "report.csv")
	if err := GenerateCSVExport(sampleReport(), path); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read export: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 3 {
		t.Fatalf("expected header plus 2 rows, got %d lines", len(lines))
	}
	if !strings.Contains(lines[0], "max_drawdown") || !strings.Contains(lines[0], "sharpe") {
		t.Fatalf("expected metric columns in header: %s", lines[0])
	}
	if !strings.Contains(lines[1], "true") {
		t.Fatalf("expected first row marked selected: %s", lines[1])
	}
	// second combination has no drawdown value, column stays empty
	if !strings.Contains(lines[2], ",,") {
		t.Fatalf("expected empty metric cell: %s", lines[2])
	}
}

func TestGenerateHTMLReport(t *testing.T) {
	path := filepath.Join(t.TempDir(), "report.html")
	if err := GenerateHTMLReport(sampleReport(), path); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read report: %v", err)
	}
	html := string(data)
	if !strings.Contains(html, "AAPL") || !strings.Contains(html, "<table") {
		t.Fatalf("unexpected html output:\n%s", html)
	}
}
