package socrata

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/require"

	"lapdcalls/internal/logging"
	"lapdcalls/internal/raw"
)

func newTestClient(t *testing.T, h http.Handler, mutate func(*Options)) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	opts := Options{
		Domain:      "data.example.org",
		CatalogURL:  srv.URL + "/api/catalog/v1",
		ResourceURL: srv.URL + "/resource",
		PageSize:    2,
		RetryCount:  2,
		RetryWait:   time.Millisecond,
	}
	if mutate != nil {
		mutate(&opts)
	}
	return New(logging.Discard(), opts)
}

// pagedRecords serves total records in pages, numbering incidents from 1.
func pagedRecords(t *testing.T, total int, fail func(offset int) int) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/resource/abcd-1234.json", r.URL.Path)
		limit, _ := strconv.Atoi(r.URL.Query().Get("$limit"))
		offset, _ := strconv.Atoi(r.URL.Query().Get("$offset"))
		if fail != nil {
			if code := fail(offset); code != 0 {
				w.WriteHeader(code)
				return
			}
		}
		var rows []map[string]any
		for i := offset; i < total && i < offset+limit; i++ {
			rows = append(rows, map[string]any{"incident_number": fmt.Sprintf("PD%03d", i+1), "rpt_dist": i})
		}
		if rows == nil {
			rows = []map[string]any{}
		}
		_ = json.NewEncoder(w).Encode(rows)
	}
}

func TestSocrata_FetchAllPagesUntilEmpty(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	h := pagedRecords(t, 5, func(int) int { calls.Add(1); return 0 })
	c := newTestClient(t, h, nil)

	v := raw.Vintage{Name: "LAPD Calls for Service 2019", Endpoint: "abcd-1234", Year: 2019}
	b, err := c.FetchAll(context.Background(), v)
	require.NoError(t, err)
	require.Equal(t, v, b.Vintage)
	require.Len(t, b.Records, 5)
	require.Equal(t, int32(4), calls.Load())
	id, _ := b.Records[4].Get("incident_number").Text()
	require.Equal(t, "PD005", id)
}

func TestSocrata_FetchAllAbortsOnPageError(t *testing.T) {
	t.Parallel()

	h := pagedRecords(t, 10, func(offset int) int {
		if offset == 4 {
			return http.StatusBadRequest
		}
		return 0
	})
	c := newTestClient(t, h, nil)

	b, err := c.FetchAll(context.Background(), raw.Vintage{Name: "x", Endpoint: "abcd-1234"})
	require.Error(t, err)
	require.Contains(t, err.Error(), "offset 4")
	require.Empty(t, b.Records)
}

func TestSocrata_RetriesServerErrors(t *testing.T) {
	t.Parallel()

	var failures atomic.Int32
	h := pagedRecords(t, 1, func(offset int) int {
		if offset == 0 && failures.Add(1) == 1 {
			return http.StatusServiceUnavailable
		}
		return 0
	})
	c := newTestClient(t, h, nil)

	b, err := c.FetchAll(context.Background(), raw.Vintage{Name: "x", Endpoint: "abcd-1234"})
	require.NoError(t, err)
	require.Len(t, b.Records, 1)
	require.Equal(t, int32(2), failures.Load())
}

func TestSocrata_AppTokenHeader(t *testing.T) {
	t.Parallel()

	var token atomic.Value
	h := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token.Store(r.Header.Get("X-App-Token"))
		_, _ = w.Write([]byte(`[]`))
	})
	c := newTestClient(t, h, func(o *Options) { o.AppToken = "secret" })

	_, err := c.Sample(context.Background(), "abcd-1234", 5)
	require.NoError(t, err)
	require.Equal(t, "secret", token.Load())
}

func TestSocrata_PageDelayUsesClock(t *testing.T) {
	t.Parallel()

	clk := clockwork.NewFakeClock()
	c := newTestClient(t, pagedRecords(t, 4, nil), func(o *Options) {
		o.Clock = clk
		o.PageDelay = 100 * time.Millisecond
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	type result struct {
		b   raw.Batch
		err error
	}
	done := make(chan result, 1)
	go func() {
		b, err := c.FetchAll(ctx, raw.Vintage{Name: "x", Endpoint: "abcd-1234"})
		done <- result{b, err}
	}()

	for i := 0; i < 2; i++ {
		require.NoError(t, clk.BlockUntilContext(ctx, 1))
		clk.Advance(100 * time.Millisecond)
	}
	res := <-done
	require.NoError(t, res.err)
	require.Len(t, res.b.Records, 4)
}
