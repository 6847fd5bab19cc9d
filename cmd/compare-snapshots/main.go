package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	flag "github.com/spf13/pflag"

	"lapdcalls/internal/config"
	"lapdcalls/internal/logging"
	"lapdcalls/internal/snapshot"
	"lapdcalls/internal/store"
)

type reportPayload struct {
	Reference string `json:"reference"`
	Candidate string `json:"candidate"`
	snapshot.Report
}

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
	reference := flag.String("reference", "", "Reference Parquet snapshot (default newest backup)")
	candidate := flag.String("candidate", cfg.ParquetPath, "Candidate Parquet snapshot")
	flag.StringVar(&cfg.BackupDir, "backup-dir", cfg.BackupDir, "Backup directory searched for the default reference")
	outputJSON := flag.String("output-json", "", "Optional path to write JSON report")
	verbose := flag.Bool("verbose", cfg.Verbose, "enable verbose (debug) logging")
	flag.Parse()
	log := logging.New(*verbose)

	refPath := *reference
	if refPath == "" {
		st := store.New(log, cfg.StorePaths())
		refPath, err = st.LatestBackup()
		if errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("no backup found in %s, pass --reference", cfg.BackupDir)
		}
		if err != nil {
			return err
		}
	}
	log.Info("comparing snapshots", "reference", refPath, "candidate", *candidate)

	report, err := compareSnapshots(context.Background(), refPath, *candidate)
	if err != nil {
		return err
	}
	payload, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("json encode: %w", err)
	}

	if *outputJSON == "" {
		fmt.Println(string(payload))
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(*outputJSON), 0o755); err != nil {
		return fmt.Errorf("mkdir: %w", err)
	}
	if err := os.WriteFile(*outputJSON, append(payload, '\n'), 0o644); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	al := report.Alignment
	fmt.Printf("Wrote JSON report: %s\n", *outputJSON)
	fmt.Printf("Status: %s\n", report.Status)
	fmt.Printf("Rows (reference/candidate/matched): %d / %d / %d\n", al.ReferenceRows, al.CandidateRows, al.MatchedRows)
	fmt.Printf("Coverage (reference/candidate): %.6f / %.6f\n", al.CoverageReference, al.CoverageCandidate)
	fmt.Printf("Added: %d  Removed: %d  Changed: %d\n", al.Added, al.Removed, report.ChangedRows)
	return nil
}

func compareSnapshots(ctx context.Context, referencePath, candidatePath string) (reportPayload, error) {
	ref, err := store.ReadParquet(ctx, referencePath)
	if err != nil {
		return reportPayload{}, fmt.Errorf("read reference: %w", err)
	}
	cand, err := store.ReadParquet(ctx, candidatePath)
	if err != nil {
		return reportPayload{}, fmt.Errorf("read candidate: %w", err)
	}
	return reportPayload{
		Reference: referencePath,
		Candidate: candidatePath,
		Report:    snapshot.Compare(ref, cand),
	}, nil
}
