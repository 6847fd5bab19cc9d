package pipeline

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/require"

	"lapdcalls/internal/logging"
	"lapdcalls/internal/merge"
	"lapdcalls/internal/raw"
	"lapdcalls/internal/socrata"
	"lapdcalls/internal/store"
)

var now = time.Date(2024, 7, 10, 12, 0, 0, 0, time.UTC)

type fakeFetcher struct {
	mu        sync.Mutex
	vintages  []raw.Vintage
	records   map[string][]raw.Record
	fetchErr  map[string]error
	meta      socrata.Dataset
	metaErr   error
	metaCalls int
	fetched   []string
}

func (f *fakeFetcher) Datasets(ctx context.Context, query string) ([]raw.Vintage, error) {
	return f.vintages, nil
}

func (f *fakeFetcher) Metadata(ctx context.Context, id string) (socrata.Dataset, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.metaCalls++
	return f.meta, f.metaErr
}

func (f *fakeFetcher) FetchAll(ctx context.Context, v raw.Vintage) (raw.Batch, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fetched = append(f.fetched, v.Endpoint)
	if err := f.fetchErr[v.Endpoint]; err != nil {
		return raw.Batch{}, err
	}
	return raw.Batch{Vintage: v, Records: f.records[v.Endpoint]}, nil
}

func call(incident, date, callType string) raw.Record {
	return raw.Record{
		"incident_number": raw.String(incident),
		"dispatch_date":   raw.String(date),
		"call_type_text":  raw.String(callType),
	}
}

func newTestPipeline(t *testing.T, f *fakeFetcher, mutate func(*Config)) (*Pipeline, *store.Store) {
	t.Helper()
	dir := t.TempDir()
	st := store.New(logging.Discard(), store.Paths{
		Parquet:   filepath.Join(dir, "calls.parquet"),
		SQLite:    filepath.Join(dir, "calls.db"),
		BackupDir: filepath.Join(dir, "backups"),
	})
	cfg := Config{
		FreshnessDays:      7,
		CurrentEndpoint:    "xjgu-z4ju",
		CurrentVintageName: "LAPD Calls for Service 2024 to Present",
		CatalogQuery:       "LAPD calls for service",
	}
	if mutate != nil {
		mutate(&cfg)
	}
	p := New(logging.Discard(), cfg, f, st,
		WithClock(clockwork.NewFakeClockAt(now)),
		WithBackOff(func() backoff.BackOff { return &backoff.ZeroBackOff{} }),
	)
	return p, st
}

func historicalFetcher() *fakeFetcher {
	return &fakeFetcher{
		vintages: []raw.Vintage{
			{Name: "LAPD Calls for Service 2022", Endpoint: "v2022", Year: 2022},
			{Name: "LAPD Calls for Service 2023", Endpoint: "v2023", Year: 2023},
			{Name: "LAPD Calls for Service 2024 to Present", Endpoint: "xjgu-z4ju", Year: 2024},
		},
		records: map[string][]raw.Record{
			"v2022": {call("A1", "2022-07-04T21:00:00.000", "FIREWORKS"), call("A2", "bad", "ALARM")},
			"v2023": {call("B1", "2023-01-01T00:05:00.000", "SHOTS FIRED")},
			"xjgu-z4ju": {
				call("C1", "2024-07-04T22:00:00.000", "FIREWORKS"),
				call("C2", "2024-07-05T01:00:00.000", "PARTY"),
			},
		},
		meta: socrata.Dataset{ID: "xjgu-z4ju", UpdatedAt: now.Add(-48 * time.Hour)},
	}
}

func TestPipeline_Build(t *testing.T) {
	t.Parallel()

	f := historicalFetcher()
	f.fetchErr = map[string]error{"v2023": errors.New("boom")}
	p, st := newTestPipeline(t, f, nil)

	sum, err := p.Build(context.Background())
	require.NoError(t, err)
	require.Equal(t, merge.ModeFullRebuild, sum.Mode)
	require.Equal(t, 3, sum.Vintages)
	require.Equal(t, []string{"LAPD Calls for Service 2023"}, sum.FailedVintages)
	require.Equal(t, 4, sum.Fetched)
	require.Equal(t, 1, sum.Dropped)
	require.Equal(t, 3, sum.Records)
	require.Equal(t, []int{2022, 2024}, sum.Years)
	require.Equal(t, "FIREWORKS", sum.TopCallTypes[0].Key)
	require.Equal(t, time.Date(2022, 7, 4, 21, 0, 0, 0, time.UTC), sum.From)

	tbl, from, err := st.LoadHistorical(context.Background())
	require.NoError(t, err)
	require.Equal(t, st.Paths().Parquet, from)
	require.Equal(t, 3, tbl.Len())
	require.Equal(t, "LAPD Calls for Service 2022", tbl.Records[0].SourceDataset)
	require.Equal(t, 2022, tbl.Records[0].SourceYear)
	require.FileExists(t, st.Paths().SQLite)
}

func TestPipeline_BuildNoData(t *testing.T) {
	t.Parallel()

	f := historicalFetcher()
	f.fetchErr = map[string]error{"v2022": errors.New("a"), "v2023": errors.New("b"), "xjgu-z4ju": errors.New("c")}
	p, st := newTestPipeline(t, f, nil)

	_, err := p.Build(context.Background())
	require.ErrorIs(t, err, ErrNoData)
	require.NoFileExists(t, st.Paths().Parquet)
	require.NoFileExists(t, st.Paths().SQLite)
}

func TestPipeline_UpdateSkipsWhenNotFresh(t *testing.T) {
	t.Parallel()

	f := historicalFetcher()
	f.meta.UpdatedAt = now.Add(-10 * 24 * time.Hour)
	p, _ := newTestPipeline(t, f, nil)

	sum, err := p.Update(context.Background())
	require.ErrorIs(t, err, ErrNotFresh)
	require.Equal(t, f.meta.UpdatedAt, sum.LastUpdated)
	require.Empty(t, f.fetched)
}

func TestPipeline_UpdateForcedAfterMetadataFailure(t *testing.T) {
	t.Parallel()

	f := historicalFetcher()
	f.metaErr = errors.New("catalog down")
	p, _ := newTestPipeline(t, f, func(c *Config) { c.Force = true })

	sum, err := p.Update(context.Background())
	require.NoError(t, err)
	require.Equal(t, 3, f.metaCalls)
	require.Equal(t, []string{"xjgu-z4ju"}, f.fetched)
	require.Equal(t, 2, sum.Records)
}

func TestPipeline_UpdateWithoutHistoricalFallsBack(t *testing.T) {
	t.Parallel()

	p, st := newTestPipeline(t, historicalFetcher(), nil)

	sum, err := p.Update(context.Background())
	require.NoError(t, err)
	require.Equal(t, merge.ModeFullRebuild, sum.Mode)
	require.Equal(t, 2, sum.Records)
	require.Empty(t, sum.HistoricalFrom)
	require.FileExists(t, st.Paths().Parquet)
}

func TestPipeline_UpdateMergesIntoHistorical(t *testing.T) {
	t.Parallel()

	f := historicalFetcher()
	p, st := newTestPipeline(t, f, nil)
	_, err := p.Build(context.Background())
	require.NoError(t, err)

	// the rolling vintage corrects C1 and adds C3
	f.records["xjgu-z4ju"] = []raw.Record{
		call("C1", "2024-07-04T22:00:00.000", "FIREWORKS - CORRECTED"),
		call("C2", "2024-07-05T01:00:00.000", "PARTY"),
		call("C3", "2024-07-06T01:00:00.000", "PARTY"),
	}
	sum, err := p.Update(context.Background())
	require.NoError(t, err)
	require.Equal(t, merge.ModeIncremental, sum.Mode)
	require.Equal(t, 2024, sum.Boundary)
	require.Equal(t, 2, sum.Replaced)
	require.Equal(t, 5, sum.Records)
	require.Equal(t, st.Paths().Parquet, sum.HistoricalFrom)
	require.NotEmpty(t, sum.Backup.Parquet)
	require.FileExists(t, sum.Backup.Parquet)

	tbl, _, err := st.LoadHistorical(context.Background())
	require.NoError(t, err)
	seen := map[string]string{}
	for _, r := range tbl.Records {
		_, dup := seen[r.IncidentNumber]
		require.False(t, dup, r.IncidentNumber)
		seen[r.IncidentNumber] = r.CallType
	}
	require.Equal(t, "FIREWORKS - CORRECTED", seen["C1"])
	require.Contains(t, seen, "A1")
	require.Contains(t, seen, "B1")
}

func TestPipeline_UpdateLeavesFilesOnEmptyFetch(t *testing.T) {
	t.Parallel()

	f := historicalFetcher()
	p, st := newTestPipeline(t, f, nil)
	_, err := p.Build(context.Background())
	require.NoError(t, err)
	before, err := os.ReadFile(st.Paths().Parquet)
	require.NoError(t, err)

	f.records["xjgu-z4ju"] = nil
	_, err = p.Update(context.Background())
	require.ErrorIs(t, err, ErrNoData)

	after, err := os.ReadFile(st.Paths().Parquet)
	require.NoError(t, err)
	require.Equal(t, before, after)
	_, err = st.LatestBackup()
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestPipeline_UpdateFromBackup(t *testing.T) {
	t.Parallel()

	f := historicalFetcher()
	p, st := newTestPipeline(t, f, nil)
	_, err := p.Build(context.Background())
	require.NoError(t, err)
	bk, err := st.Backup(now.Add(-time.Hour))
	require.NoError(t, err)

	sum, err := p.Update(context.Background())
	require.NoError(t, err)
	require.Equal(t, merge.ModeIncremental, sum.Mode)
	require.Equal(t, bk.Parquet, sum.HistoricalFrom)
	require.Equal(t, 4, sum.Records)
}

func TestPipeline_SummaryReport(t *testing.T) {
	t.Parallel()

	p, _ := newTestPipeline(t, historicalFetcher(), nil)
	sum, err := p.Build(context.Background())
	require.NoError(t, err)

	md := sum.Report()
	require.Contains(t, md, "- Mode: full-rebuild")
	require.Contains(t, md, "- Records written: 4")
	require.Contains(t, md, "- min: 2022-07-04 21:00:00")

	var buf strings.Builder
	sum.Print(&buf)
	require.Contains(t, buf.String(), "Total records: 4\n")
	require.Contains(t, buf.String(), "Years covered: 2022, 2023, 2024\n")
}
