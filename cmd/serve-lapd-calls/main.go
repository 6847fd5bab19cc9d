package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	flag "github.com/spf13/pflag"
	_ "modernc.org/sqlite"

	"lapdcalls/internal/config"
	"lapdcalls/internal/logging"
	"lapdcalls/internal/metrics"
)

const defaultAddr = "127.0.0.1:18744"

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
	_ = godotenv.Load()
	cfg, err := config.FromEnv(os.LookupEnv)
	if err != nil {
		return err
	}
	dbPath := flag.String("sqlite", cfg.SQLitePath, "Canonical table SQLite database")
	addr := flag.String("addr", defaultAddr, "HTTP listen address")
	verbose := flag.Bool("verbose", cfg.Verbose, "enable verbose (debug) logging")
	flag.Parse()
	log := logging.New(*verbose)

	if _, err := os.Stat(*dbPath); err != nil {
		return fmt.Errorf("sqlite path error: %w", err)
	}
	db, err := sql.Open("sqlite", *dbPath)
	if err != nil {
		return fmt.Errorf("open sqlite: %w", err)
	}
	defer db.Close()

	s, err := newServer(log, db)
	if err != nil {
		return err
	}
	metrics.BuildInfo.WithLabelValues(version, commit, date).Set(1)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv := &http.Server{Addr: *addr, Handler: s.routes(), ReadHeaderTimeout: 10 * time.Second}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	log.Info("listening", "addr", *addr, "sqlite", *dbPath, "columns", len(s.cols))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
