package pipeline

import (
	"fmt"
	"io"
	"strings"
	"time"

	"lapdcalls/internal/calls"
)

// Report renders the summary as a markdown run report.
func (s Summary) Report() string {
	lines := []string{
		"# LAPD calls for service run report",
		"",
		"## Run",
		fmt.Sprintf("- Mode: %s", s.Mode),
		fmt.Sprintf("- Datasets: %s", calls.FormatInt(s.Vintages)),
		fmt.Sprintf("- Records fetched: %s", calls.FormatInt(s.Fetched)),
		fmt.Sprintf("- Records dropped without a valid date: %s", calls.FormatInt(s.Dropped)),
		fmt.Sprintf("- Records written: %s", calls.FormatInt(s.Records)),
		fmt.Sprintf("- Duration: %s", s.Duration.Round(time.Millisecond)),
	}
	if len(s.FailedVintages) > 0 {
		lines = append(lines, fmt.Sprintf("- Failed datasets: %s", strings.Join(s.FailedVintages, ", ")))
	}
	if s.Boundary > 0 {
		lines = append(lines,
			fmt.Sprintf("- Boundary year: %d", s.Boundary),
			fmt.Sprintf("- Historical rows replaced: %s", calls.FormatInt(s.Replaced)),
			fmt.Sprintf("- Duplicate incident numbers removed: %s", calls.FormatInt(s.Duplicates)),
		)
	}
	if s.HistoricalFrom != "" {
		lines = append(lines, fmt.Sprintf("- Historical data: %s", s.HistoricalFrom))
	}
	if !s.LastUpdated.IsZero() {
		lines = append(lines, fmt.Sprintf("- Source last updated: %s", s.LastUpdated.Format(time.DateTime)))
	}
	if s.Backup.Parquet != "" || s.Backup.SQLite != "" {
		lines = append(lines, fmt.Sprintf("- Backup: %s %s", s.Backup.Parquet, s.Backup.SQLite))
	}
	lines = append(lines, "")

	if s.Records > 0 {
		lines = append(lines, "## Date range",
			fmt.Sprintf("- min: %s", s.From.Format(time.DateTime)),
			fmt.Sprintf("- max: %s", s.To.Format(time.DateTime)),
			"")
	}
	lines = append(lines, "## Top call types")
	for _, c := range s.TopCallTypes {
		lines = append(lines, fmt.Sprintf("- %s: %s", c.Key, calls.FormatInt(c.N)))
	}
	lines = append(lines, "")
	return strings.Join(lines, "\n")
}

// Print writes the short console summary.
func (s Summary) Print(w io.Writer) {
	fmt.Fprintf(w, "Mode: %s\n", s.Mode)
	fmt.Fprintf(w, "Total records: %d\n", s.Records)
	if s.Records > 0 {
		fmt.Fprintf(w, "Date range: %s to %s\n", s.From.Format(time.DateTime), s.To.Format(time.DateTime))
	}
	years := make([]string, len(s.Years))
	for i, y := range s.Years {
		years[i] = fmt.Sprint(y)
	}
	fmt.Fprintf(w, "Years covered: %s\n", strings.Join(years, ", "))
	if len(s.TopCallTypes) > 0 {
		fmt.Fprintln(w, "Top call types:")
		for _, c := range s.TopCallTypes {
			fmt.Fprintf(w, "  %s: %s\n", c.Key, calls.FormatInt(c.N))
		}
	}
}
