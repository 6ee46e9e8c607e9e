package reporter

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"oas-testgen/internal/export"
	"oas-testgen/internal/types"
)

const timestampLayout = "20060102_150405"

// Summary counts results per verdict.
type Summary struct {
	Total   int `json:"total"`
	Passed  int `json:"passed"`
	Failed  int `json:"failed"`
	Skipped int `json:"skipped"`
	Errored int `json:"errored"`
}

// Summarize counts results per verdict.
func Summarize(results []types.TestResult) Summary {
	s := Summary{Total: len(results)}
	for _, r := range results {
		switch r.Verdict {
		case types.VerdictPass:
			s.Passed++
		case types.VerdictFail:
			s.Failed++
		case types.VerdictSkipped:
			s.Skipped++
		case types.VerdictError:
			s.Errored++
		}
	}
	return s
}

// Report represents the test execution report
type Report struct {
	RunID     string             `json:"run_id"`
	Source    string             `json:"source"`
	BaseURL   string             `json:"base_url"`
	Timestamp time.Time          `json:"timestamp"`
	Duration  time.Duration      `json:"duration"`
	Summary   Summary            `json:"summary"`
	Results   []types.TestResult `json:"results"`
}

// NewReport builds a report over results.
func NewReport(runID, source, baseURL string, results []types.TestResult, duration time.Duration) *Report {
	return &Report{
		RunID:     runID,
		Source:    source,
		BaseURL:   baseURL,
		Timestamp: time.Now(),
		Duration:  duration,
		Summary:   Summarize(results),
		Results:   results,
	}
}

// ReportingConfig holds the configuration for reporting
type ReportingConfig struct {
	Format    []string
	OutputDir string
}

// Reporter handles the generation of test reports
type Reporter struct {
	config ReportingConfig
}

// NewReporter creates a new instance of Reporter
func NewReporter(config ReportingConfig) *Reporter {
	return &Reporter{
		config: config,
	}
}

// GenerateReport writes the report in every configured format and returns
// the written paths.
func (r *Reporter) GenerateReport(report *Report) ([]string, error) {
	if err := os.MkdirAll(r.config.OutputDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	stamp := report.Timestamp.Format(timestampLayout)
	if id := filepath.Base(report.RunID); report.RunID != "" && id != "." && id != string(filepath.Separator) {
		stamp += "_" + id
	}
	var paths []string
	for _, format := range r.config.Format {
		switch format {
		case "json":
			path := filepath.Join(r.config.OutputDir, fmt.Sprintf("report_%s.json", stamp))
			if err := writeJSON(path, report); err != nil {
				return paths, fmt.Errorf("failed to generate JSON report: %w", err)
			}
			paths = append(paths, path)
		case "csv":
			path := filepath.Join(r.config.OutputDir, fmt.Sprintf("results_%s.csv", stamp))
			if err := export.WriteCSVFile(path, report.Results); err != nil {
				return paths, fmt.Errorf("failed to generate CSV report: %w", err)
			}
			paths = append(paths, path)
		default:
			return paths, fmt.Errorf("unsupported report format: %s", format)
		}
	}
	return paths, nil
}

func writeJSON(path string, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// RenderTable prints the results and summary as a terminal table.
func RenderTable(w io.Writer, report *Report) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleRounded)
	t.AppendHeader(table.Row{"#", "METHOD", "ENDPOINT", "SCENARIO", "EXPECTED", "ACTUAL", "RESULT"})

	for i, r := range report.Results {
		actual := "-"
		if r.ActualStatus != nil {
			actual = fmt.Sprint(*r.ActualStatus)
		}
		t.AppendRow(table.Row{i + 1, r.Method, r.Endpoint, r.Scenario, r.ExpectedStatus, actual, colorize(r)})
	}

	s := report.Summary
	t.AppendFooter(table.Row{"", "", "", "TOTAL", s.Total, "",
		fmt.Sprintf("%d passed, %d failed, %d skipped, %d errors", s.Passed, s.Failed, s.Skipped, s.Errored)})
	t.Render()
}

func colorize(r types.TestResult) string {
	switch r.Verdict {
	case types.VerdictPass:
		return text.FgGreen.Sprint(r.Result())
	case types.VerdictFail:
		return text.FgRed.Sprint(r.Result())
	case types.VerdictSkipped:
		return text.FgYellow.Sprint(r.Result())
	default:
		return text.FgHiRed.Sprint(r.Result())
	}
}
