package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	flag "github.com/spf13/pflag"

	"lapdcalls/internal/calls"
	"lapdcalls/internal/config"
	"lapdcalls/internal/fireworks"
	"lapdcalls/internal/logging"
	"lapdcalls/internal/store"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	_ = godotenv.Load()
	cfg, err := config.FromEnv(os.LookupEnv)
	if err != nil {
		return err
	}
	input := flag.String("input", cfg.ParquetPath, "Canonical table Parquet file")
	outDir := flag.String("out-dir", "analysis", "Output directory for the report and chart series")
	reportPath := flag.String("report", "", "Report markdown output path (default <out-dir>/fireworks_report.md)")
	verbose := flag.Bool("verbose", cfg.Verbose, "enable verbose (debug) logging")
	flag.Parse()
	log := logging.New(*verbose)

	outReport := *reportPath
	if outReport == "" {
		outReport = filepath.Join(*outDir, "fireworks_report.md")
	}

	log.Info("loading data", "path", *input)
	t, err := store.ReadParquet(context.Background(), *input)
	if errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("data file %s not found, run process-lapd-calls first", *input)
	}
	if err != nil {
		return err
	}
	from, to, _ := t.DateRange()
	log.Info("loaded records", "records", t.Len(), "from", from, "to", to)

	a, err := fireworks.Analyze(t)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(*outDir, 0o755); err != nil {
		return fmt.Errorf("mkdir outputs: %w", err)
	}
	if err := os.WriteFile(outReport, []byte(fireworks.Report(a, *input)), 0o644); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	series, err := fireworks.WriteSeries(*outDir, a)
	if err != nil {
		return err
	}

	fmt.Printf("Total LAPD calls analyzed: %s\n", calls.FormatInt(a.Total))
	fmt.Printf("Fireworks-related calls: %s\n", calls.FormatInt(a.Calls))
	fmt.Printf("Percentage of total calls: %.3f%%\n", a.Percent)
	fmt.Printf("Date range: %s to %s\n", a.From.Format("2006-01-02"), a.To.Format("2006-01-02"))
	fmt.Printf("Peak year: %d (%s calls)\n", a.PeakYear.Year, calls.FormatInt(a.PeakYear.N))
	fmt.Printf("Peak month: %s (%s calls)\n", a.PeakMonth.Month, calls.FormatInt(a.PeakMonth.Calls))
	fmt.Printf("Report: %s\n", outReport)
	fmt.Printf("Chart series: %d files in %s\n", len(series), *outDir)
	return nil
}
