package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/olekukonko/tablewriter"
	flag "github.com/spf13/pflag"

	"lapdcalls/internal/config"
	"lapdcalls/internal/logging"
	"lapdcalls/internal/raw"
	"lapdcalls/internal/socrata"
)

const usage = `LA City Data Portal Explorer

Usage:
  explore-portal search <keyword>
  explore-portal categories
  explore-portal sample <api_endpoint>

Examples:
  explore-portal search police
  explore-portal sample xjgu-z4ju
`

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
	limit := flag.Int("limit", 20, "Maximum number of results (search) or records (sample, default 5)")
	verbose := flag.Bool("verbose", cfg.Verbose, "enable verbose (debug) logging")
	flag.StringVar(&cfg.Domain, "domain", cfg.Domain, "Open data portal domain (or set LAPD_DOMAIN)")
	flag.Usage = func() { fmt.Fprint(os.Stderr, usage) }
	flag.Parse()

	args := flag.Args()
	if len(args) == 0 {
		fmt.Print(usage)
		return nil
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	client := socrata.New(logging.New(*verbose), cfg.SocrataOptions())

	switch strings.ToLower(args[0]) {
	case "search":
		if len(args) < 2 {
			return fmt.Errorf("please provide a search term")
		}
		query := strings.Join(args[1:], " ")
		fmt.Printf("Searching for '%s' on %s...\n", query, cfg.Domain)
		ds, err := client.Search(ctx, query, *limit)
		if err != nil {
			return fmt.Errorf("search datasets: %w", err)
		}
		printDatasets(os.Stdout, ds)
	case "categories":
		fmt.Printf("Browsing categories on %s...\n", cfg.Domain)
		cats, err := client.Categories(ctx)
		if err != nil {
			return fmt.Errorf("browse categories: %w", err)
		}
		printCategories(os.Stdout, cats)
	case "sample":
		if len(args) < 2 {
			return fmt.Errorf("please provide an API endpoint")
		}
		n := *limit
		if !flag.CommandLine.Changed("limit") {
			n = 5
		}
		fmt.Printf("Fetching sample data from endpoint: %s\n", args[1])
		recs, err := client.Sample(ctx, args[1], n)
		if err != nil {
			return fmt.Errorf("fetch sample: %w", err)
		}
		printSample(os.Stdout, recs)
	default:
		return fmt.Errorf("unknown command %q\n\n%s", args[0], usage)
	}
	return nil
}

func newTable(w io.Writer, header []string) *tablewriter.Table {
	table := tablewriter.NewWriter(w)
	table.SetAutoWrapText(false)
	table.SetHeaderAlignment(tablewriter.ALIGN_CENTER)
	table.SetAutoFormatHeaders(false)
	table.SetBorder(true)
	table.SetRowLine(true)
	table.SetHeader(header)
	return table
}

func printDatasets(w io.Writer, ds []socrata.Dataset) {
	if len(ds) == 0 {
		fmt.Fprintln(w, "No datasets found.")
		return
	}
	fmt.Fprintf(w, "\nFound %d datasets:\n", len(ds))
	table := newTable(w, []string{"#", "Name", "Type", "Updated", "API Endpoint", "URL"})
	for i, d := range ds {
		updated := ""
		if !d.UpdatedAt.IsZero() {
			updated = d.UpdatedAt.Format(time.DateOnly)
		}
		table.Append([]string{fmt.Sprint(i + 1), d.Name, d.Type, updated, d.ID, d.Permalink})
	}
	table.Render()
	for i, d := range ds {
		if d.Description != "" {
			fmt.Fprintf(w, "%d. %s\n", i+1, truncate(d.Description, 200))
		}
	}
}

func printCategories(w io.Writer, cats []socrata.CategoryCount) {
	table := newTable(w, []string{"Category", "Datasets"})
	for _, c := range cats {
		table.Append([]string{c.Category, fmt.Sprint(c.Count)})
	}
	table.Render()
}

func printSample(w io.Writer, recs []raw.Record) {
	if len(recs) == 0 {
		fmt.Fprintln(w, "No data returned")
		return
	}
	cols := raw.Batch{Records: recs}.ColumnNames()
	fmt.Fprintf(w, "%d records, %d columns\n", len(recs), len(cols))
	table := newTable(w, cols)
	for _, r := range recs {
		row := make([]string, len(cols))
		for i, c := range cols {
			if s, ok := r.Get(c).Text(); ok {
				row[i] = truncate(s, 40)
			}
		}
		table.Append(row)
	}
	table.Render()
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
