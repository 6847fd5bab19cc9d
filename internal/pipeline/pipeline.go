// Package pipeline runs the full-history build and the incremental update of
// the canonical table: fetch, normalize, merge, back up and persist.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/jonboulle/clockwork"

	"lapdcalls/internal/calls"
	"lapdcalls/internal/merge"
	"lapdcalls/internal/metrics"
	"lapdcalls/internal/normalize"
	"lapdcalls/internal/raw"
	"lapdcalls/internal/socrata"
	"lapdcalls/internal/store"
)

var (
	// ErrNoData ends a run that has nothing to persist. No file is touched.
	ErrNoData = errors.New("no data fetched")
	// ErrNotFresh ends an update whose source has not changed recently.
	ErrNotFresh = errors.New("no recent updates")
)

// Fetcher is the open-data source.
type Fetcher interface {
	Datasets(ctx context.Context, query string) ([]raw.Vintage, error)
	Metadata(ctx context.Context, id string) (socrata.Dataset, error)
	FetchAll(ctx context.Context, v raw.Vintage) (raw.Batch, error)
}

// Storage persists the canonical table.
type Storage interface {
	LoadHistorical(ctx context.Context) (*calls.Table, string, error)
	Backup(now time.Time) (store.Backup, error)
	Write(ctx context.Context, t *calls.Table) error
}

type Config struct {
	// BoundaryYear is the incremental cut year; 0 derives it from the
	// current vintage's name.
	BoundaryYear  int
	FreshnessDays int
	Force         bool

	CurrentEndpoint    string
	CurrentVintageName string
	CatalogQuery       string

	// MetadataTries bounds the attempts of the freshness lookup.
	MetadataTries uint
}

type Pipeline struct {
	cfg        Config
	fetch      Fetcher
	store      Storage
	clock      clockwork.Clock
	log        *slog.Logger
	newBackOff func() backoff.BackOff
}

type Option func(*Pipeline)

func WithClock(c clockwork.Clock) Option { return func(p *Pipeline) { p.clock = c } }

func WithBackOff(f func() backoff.BackOff) Option { return func(p *Pipeline) { p.newBackOff = f } }

func New(log *slog.Logger, cfg Config, fetch Fetcher, st Storage, opts ...Option) *Pipeline {
	if cfg.MetadataTries == 0 {
		cfg.MetadataTries = 3
	}
	p := &Pipeline{
		cfg:   cfg,
		fetch: fetch,
		store: st,
		clock: clockwork.NewRealClock(),
		log:   log,
		newBackOff: func() backoff.BackOff {
			return backoff.NewExponentialBackOff()
		},
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

// Summary describes one completed run.
type Summary struct {
	Mode       merge.Mode
	Records    int
	Fetched    int
	Dropped    int
	Duplicates int
	Replaced   int
	Boundary   int

	Vintages       int
	FailedVintages []string
	HistoricalFrom string
	LastUpdated    time.Time
	Backup         store.Backup

	From, To     time.Time
	Years        []int
	TopCallTypes []calls.Count
	Duration     time.Duration
}

func (s *Summary) describe(t *calls.Table) {
	s.Records = t.Len()
	s.From, s.To, _ = t.DateRange()
	s.Years = t.Years()
	s.TopCallTypes = t.TopCallTypes(5)
}

// Build fetches every calls-for-service vintage and rebuilds the table from
// scratch. A vintage that fails to fetch is skipped with a warning.
func (p *Pipeline) Build(ctx context.Context) (Summary, error) {
	start := p.clock.Now()
	sum, err := p.build(ctx)
	p.observe(merge.ModeFullRebuild, start, err)
	sum.Duration = p.clock.Since(start)
	return sum, err
}

func (p *Pipeline) build(ctx context.Context) (Summary, error) {
	var sum Summary
	vintages, err := p.fetch.Datasets(ctx, p.cfg.CatalogQuery)
	if err != nil {
		return sum, fmt.Errorf("list datasets: %w", err)
	}
	sum.Vintages = len(vintages)
	p.log.Info("found datasets", "count", len(vintages))
	for _, v := range vintages {
		p.log.Info("dataset", "name", v.Name, "endpoint", v.Endpoint, "year", v.Year)
	}

	var batches [][]calls.Record
	for _, v := range vintages {
		b, err := p.fetch.FetchAll(ctx, v)
		if err != nil {
			if ctx.Err() != nil {
				return sum, ctx.Err()
			}
			p.log.Warn("skipping dataset after fetch error", "name", v.Name, "error", err)
			sum.FailedVintages = append(sum.FailedVintages, v.Name)
			continue
		}
		if len(b.Records) == 0 {
			p.log.Warn("dataset returned no records", "name", v.Name)
			continue
		}
		sum.Fetched += len(b.Records)
		res := p.normalize(b)
		sum.Dropped += res.Dropped
		batches = append(batches, res.Records)
	}
	if sum.Fetched == 0 {
		return sum, ErrNoData
	}

	merged := merge.Build(batches...)
	sum.Mode = merged.Mode
	if merged.Table.Len() == 0 {
		return sum, fmt.Errorf("%w: every record lacked a valid date", ErrNoData)
	}
	p.log.Info("concatenated datasets", "batches", len(batches), "records", merged.Table.Len())

	if err := p.persist(ctx, &sum, &merged.Table); err != nil {
		return sum, err
	}
	return sum, nil
}

// Update refreshes the current rolling vintage and merges it into the
// persisted table. Without a persisted table it degrades to a full rebuild
// of the current vintage alone.
func (p *Pipeline) Update(ctx context.Context) (Summary, error) {
	start := p.clock.Now()
	sum, err := p.update(ctx)
	if !errors.Is(err, ErrNotFresh) {
		p.observe(sum.Mode, start, err)
	}
	sum.Duration = p.clock.Since(start)
	return sum, err
}

func (p *Pipeline) update(ctx context.Context) (Summary, error) {
	var sum Summary
	v := raw.Vintage{
		Name:     p.cfg.CurrentVintageName,
		Endpoint: p.cfg.CurrentEndpoint,
		Year:     socrata.YearFromName(p.cfg.CurrentVintageName),
	}

	updatedAt, fresh := p.checkFreshness(ctx)
	sum.LastUpdated = updatedAt
	v.UpdatedAt = updatedAt
	if !fresh && !p.cfg.Force {
		return sum, ErrNotFresh
	}

	b, err := p.fetch.FetchAll(ctx, v)
	if err != nil {
		return sum, fmt.Errorf("fetch current dataset: %w", err)
	}
	if len(b.Records) == 0 {
		return sum, ErrNoData
	}
	sum.Vintages = 1
	sum.Fetched = len(b.Records)

	historical, from, err := p.store.LoadHistorical(ctx)
	switch {
	case errors.Is(err, store.ErrNotFound):
		p.log.Warn("no historical data found, rebuilding from the current dataset only")
		historical = nil
	case err != nil:
		return sum, fmt.Errorf("load historical data: %w", err)
	default:
		sum.HistoricalFrom = from
		p.log.Info("loaded historical data", "path", from, "records", historical.Len())
	}

	res := p.normalize(b)
	sum.Dropped = res.Dropped
	if len(res.Records) == 0 {
		return sum, fmt.Errorf("%w: every current record lacked a valid date", ErrNoData)
	}

	boundary := merge.ResolveBoundary(p.cfg.BoundaryYear, v.Year)
	merged, err := merge.Update(historical, res.Records, merge.UpdateOptions{BoundaryYear: boundary})
	if err != nil {
		return sum, err
	}
	sum.Mode = merged.Mode
	sum.Boundary = merged.Boundary
	sum.Replaced = merged.Replaced
	sum.Duplicates = merged.Duplicates
	metrics.DuplicatesRemovedTotal.Add(float64(merged.Duplicates))
	p.log.Info("merged current dataset",
		"mode", merged.Mode, "boundary", merged.Boundary, "replaced", merged.Replaced,
		"current", len(res.Records), "duplicates", merged.Duplicates)

	if err := p.persist(ctx, &sum, &merged.Table); err != nil {
		return sum, err
	}
	return sum, nil
}

// checkFreshness reports when the current vintage was last updated and
// whether that is within the freshness window. A failed lookup counts as
// not fresh.
func (p *Pipeline) checkFreshness(ctx context.Context) (time.Time, bool) {
	d, err := backoff.Retry(ctx, func() (socrata.Dataset, error) {
		d, err := p.fetch.Metadata(ctx, p.cfg.CurrentEndpoint)
		if errors.Is(err, socrata.ErrDatasetNotFound) {
			return d, backoff.Permanent(err)
		}
		return d, err
	}, backoff.WithBackOff(p.newBackOff()), backoff.WithMaxTries(p.cfg.MetadataTries))
	if err != nil {
		p.log.Warn("could not check for updates", "endpoint", p.cfg.CurrentEndpoint, "error", err)
		return time.Time{}, false
	}
	days := int(p.clock.Since(d.UpdatedAt).Hours() / 24)
	p.log.Info("dataset last updated", "updated_at", d.UpdatedAt.Format(time.DateTime), "days_since_update", days)
	return d.UpdatedAt, days < p.cfg.FreshnessDays
}

func (p *Pipeline) normalize(b raw.Batch) normalize.Result {
	res := normalize.Normalize(b)
	metrics.RecordsDroppedTotal.WithLabelValues(b.Vintage.Name).Add(float64(res.Dropped))
	p.log.Info("normalized dataset",
		"name", b.Vintage.Name, "records", len(res.Records), "dropped", res.Dropped,
		"primary_date_from", res.Schema.PrimaryFrom, "hour_from", res.Schema.HourFrom)
	if r := res.Schema.Renamed(); len(r) > 0 {
		p.log.Debug("renamed columns", "name", b.Vintage.Name, "renamed", r)
	}
	return res
}

// persist moves the previous files aside and writes the new table.
func (p *Pipeline) persist(ctx context.Context, sum *Summary, t *calls.Table) error {
	bk, err := p.store.Backup(p.clock.Now())
	if err != nil {
		return fmt.Errorf("backup existing data: %w", err)
	}
	sum.Backup = bk
	if err := p.store.Write(ctx, t); err != nil {
		return err
	}
	sum.describe(t)
	return nil
}

func (p *Pipeline) observe(mode merge.Mode, start time.Time, err error) {
	result := "success"
	switch {
	case errors.Is(err, ErrNoData):
		result = "no_data"
	case err != nil:
		result = "error"
	}
	metrics.RunDuration.WithLabelValues(mode.String(), result).Observe(p.clock.Since(start).Seconds())
}
