package backtest

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/yourusername/gridtune/internal/optimizer"
)

// RunReport bundles everything worth showing about a finished optimization.
type RunReport struct {
	Symbol     string
	Mode       string
	Selection  optimizer.SelectionResult
	Ranked     []*optimizer.EvaluatedCombination
	Stability  *optimizer.StabilityReport
	MonteCarlo *MonteCarloResult
}

// GenerateConsoleReport formats the run outcome for terminal output
func GenerateConsoleReport(report RunReport) string {
	var builder strings.Builder
	builder.WriteString("Optimization Report\n")
	builder.WriteString("===================\n")
	builder.WriteString(fmt.Sprintf("Symbol: %s\n", report.Symbol))
	builder.WriteString(fmt.Sprintf("Mode: %s\n", report.Mode))
	builder.WriteString(fmt.Sprintf("Evaluated Combinations: %d\n", len(report.Ranked)))
	builder.WriteString(fmt.Sprintf("Selection Strategy: %s\n", report.Selection.Strategy))
	builder.WriteString(fmt.Sprintf("Selected: %s\n", report.Selection.Combination.Key()))
	builder.WriteString(fmt.Sprintf("Selected Score: %.4f\n", report.Selection.Score))

	if report.Stability != nil {
		builder.WriteString(fmt.Sprintf("Validation %s: %.4f (std %.4f over %d windows)\n",
			report.Stability.Metric, report.Stability.Mean, report.Stability.Std, len(report.Stability.Windows)))
	}
	if report.MonteCarlo != nil {
		builder.WriteString(fmt.Sprintf("Monte Carlo Mean Return: %.2f%%\n", report.MonteCarlo.MeanReturn*100))
		builder.WriteString(fmt.Sprintf("Monte Carlo VaR95: %.2f%%\n", report.MonteCarlo.VaR95*100))
		builder.WriteString(fmt.Sprintf("Probability of Profit: %.2f%%\n", report.MonteCarlo.ProbabilityOfProfit*100))
	}

	builder.WriteString("\nTop Combinations\n")
	builder.WriteString("----------------\n")
	for i, ec := range report.Ranked {
		if i >= 10 {
			break
		}
		builder.WriteString(fmt.Sprintf("%2d. %-50s %.4f\n", i+1, ec.Combination.Key(), ec.Score))
	}
	return builder.String()
}

// GenerateCSVExport writes the full ranked population for spreadsheets. Metric
// columns are the union of keys across all records, sorted for a stable
// layout.
func GenerateCSVExport(report RunReport, outputPath string) error {
	if err := os.MkdirAll(filepath.Dir(outputPath), 0o755); err != nil {
		return err
	}

	metricNames := map[string]bool{}
	for _, ec := range report.Ranked {
		for name := range ec.Metrics {
			metricNames[name] = true
		}
	}
	columns := make([]string, 0, len(metricNames))
	for name := range metricNames {
		columns = append(columns, name)
	}
	sort.Strings(columns)

	var builder strings.Builder
	builder.WriteString("rank,combination,score,selected")
	for _, name := range columns {
		builder.WriteString("," + name)
	}
	builder.WriteString("\n")

	selectedKey := report.Selection.Combination.Key()
	for i, ec := range report.Ranked {
		selected := "false"
		if ec.Combination.Key() == selectedKey {
			selected = "true"
		}
		builder.WriteString(fmt.Sprintf("%d,%q,%.6f,%s", i+1, ec.Combination.Key(), ec.Score, selected))
		for _, name := range columns {
			if v, ok := ec.Metrics[name]; ok {
				builder.WriteString(fmt.Sprintf(",%.6f", v))
			} else {
				builder.WriteString(",")
			}
		}
		builder.WriteString("\n")
	}
	return os.WriteFile(outputPath, []byte(builder.String()), 0o644)
}

// GenerateHTMLReport creates a simple HTML summary of the run
func GenerateHTMLReport(report RunReport, outputPath string) error {
	if err := os.MkdirAll(filepath.Dir(outputPath), 0o755); err != nil {
		return err
	}

	var rows strings.Builder
	for i, ec := range report.Ranked {
		if i >= 25 {
			break
		}
		rows.WriteString(fmt.Sprintf("<tr><td>%d</td><td>%s</td><td>%.4f</td></tr>\n",
			i+1, ec.Combination.Key(), ec.Score))
	}

	stability := ""
	if report.Stability != nil {
		stability = fmt.Sprintf("<p><strong>Validation %s:</strong> %.4f (std %.4f)</p>",
			report.Stability.Metric, report.Stability.Mean, report.Stability.Std)
	}

	html := fmt.Sprintf(`<!DOCTYPE html>
<html>
<head><title>Optimization Report - %s</title></head>
<body>
<h1>Optimization Report</h1>
<p><strong>Symbol:</strong> %s</p>
<p><strong>Mode:</strong> %s</p>
<p><strong>Strategy:</strong> %s</p>
<p><strong>Selected:</strong> %s</p>
<p><strong>Score:</strong> %.4f</p>
%s
<table border="1">
<tr><th>Rank</th><th>Combination</th><th>Score</th></tr>
%s</table>
</body>
</html>`,
		report.Symbol,
		report.Symbol,
		report.Mode,
		report.Selection.Strategy,
		report.Selection.Combination.Key(),
		report.Selection.Score,
		stability,
		rows.String(),
	)
	return os.WriteFile(outputPath, []byte(html), 0o644)
}
