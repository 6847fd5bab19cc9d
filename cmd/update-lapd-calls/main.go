package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	flag "github.com/spf13/pflag"

	"lapdcalls/internal/config"
	"lapdcalls/internal/logging"
	"lapdcalls/internal/metrics"
	"lapdcalls/internal/pipeline"
	"lapdcalls/internal/publish"
	"lapdcalls/internal/socrata"
	"lapdcalls/internal/store"
)

var (
	// Set by LDFLAGS
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	force := flag.Bool("force", false, "Update even when the source shows no recent changes")
	reportPath := flag.String("report", "", "Optional markdown run report path")
	cfg, err := config.Load(flag.CommandLine, os.Args[1:])
	if err != nil {
		return err
	}
	cfg.Force = cfg.Force || *force
	log := logging.New(cfg.Verbose)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	metrics.BuildInfo.WithLabelValues(version, commit, date).Set(1)
	if cfg.MetricsAddr != "" {
		go func() {
			if err := metrics.Serve(ctx, log, cfg.MetricsAddr); err != nil {
				log.Error("metrics server failed", "error", err)
			}
		}()
	}

	client := socrata.New(log, cfg.SocrataOptions())
	st := store.New(log, cfg.StorePaths())
	p := pipeline.New(log, cfg.Pipeline(), client, st)

	sum, err := p.Update(ctx)
	if errors.Is(err, pipeline.ErrNotFresh) {
		fmt.Println("No recent updates found. Use --force to update anyway.")
		return nil
	}
	if err != nil {
		return fmt.Errorf("update: %w", err)
	}

	fmt.Println("Update completed successfully!")
	sum.Print(os.Stdout)
	if sum.Backup.Parquet != "" {
		fmt.Printf("Backup: %s\n", sum.Backup.Parquet)
	}

	if *reportPath != "" {
		if err := os.MkdirAll(filepath.Dir(*reportPath), 0o755); err != nil {
			return fmt.Errorf("mkdir report dir: %w", err)
		}
		if err := os.WriteFile(*reportPath, []byte(sum.Report()), 0o644); err != nil {
			return fmt.Errorf("write report: %w", err)
		}
	}

	if cfg.Publish.Enabled() {
		pub, err := publish.New(log, cfg.Publish)
		if err != nil {
			return err
		}
		run := publish.Run{ID: time.Now().UTC().Format("20060102T150405Z"), Mode: sum.Mode.String(), Records: sum.Records}
		if _, err := pub.Publish(ctx, run, cfg.ParquetPath, cfg.SQLitePath, *reportPath); err != nil {
			return fmt.Errorf("publish: %w", err)
		}
	}
	return nil
}
