// Package socrata talks to the Socrata discovery (catalog) API and to the
// resource endpoints of one open-data domain.
package socrata

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/jonboulle/clockwork"

	"lapdcalls/internal/metrics"
	"lapdcalls/internal/raw"
)

const (
	DefaultCatalogURL = "https://api.us.socrata.com/api/catalog/v1"
	DefaultDomain     = "data.lacity.org"
	DefaultPageSize   = 50000
	DefaultPageDelay  = 100 * time.Millisecond
)

type Options struct {
	Domain     string
	CatalogURL string
	// ResourceURL is the base of /<id>.json resource endpoints; defaults to
	// https://<Domain>/resource.
	ResourceURL string
	AppToken    string
	PageSize    int
	PageDelay   time.Duration
	RetryCount  int
	RetryWait   time.Duration
	Timeout     time.Duration
	Clock       clockwork.Clock
}

func (o *Options) applyDefaults() {
	if o.Domain == "" {
		o.Domain = DefaultDomain
	}
	if o.CatalogURL == "" {
		o.CatalogURL = DefaultCatalogURL
	}
	if o.ResourceURL == "" {
		o.ResourceURL = "https://" + o.Domain + "/resource"
	}
	if o.PageSize <= 0 {
		o.PageSize = DefaultPageSize
	}
	if o.RetryCount == 0 {
		o.RetryCount = 3
	}
	if o.RetryWait == 0 {
		o.RetryWait = 2 * time.Second
	}
	if o.Timeout == 0 {
		o.Timeout = 60 * time.Second
	}
	if o.Clock == nil {
		o.Clock = clockwork.NewRealClock()
	}
}

type Client struct {
	opts Options
	http *resty.Client
	log  *slog.Logger
}

func New(log *slog.Logger, opts Options) *Client {
	opts.applyDefaults()
	hc := resty.New().
		SetTimeout(opts.Timeout).
		SetRetryCount(opts.RetryCount).
		SetRetryWaitTime(opts.RetryWait).
		SetRetryMaxWaitTime(4*opts.RetryWait).
		SetHeader("Accept", "application/json").
		SetHeader("User-Agent", "lapdcalls/1.0").
		AddRetryCondition(func(r *resty.Response, err error) bool {
			if err != nil {
				return true
			}
			return r.StatusCode() == http.StatusTooManyRequests || r.StatusCode() >= 500
		})
	if opts.AppToken != "" {
		hc.SetHeader("X-App-Token", opts.AppToken)
	}
	return &Client{opts: opts, http: hc, log: log}
}

// get issues one GET and returns the body of a 2xx response. endpoint labels
// the request in metrics.
func (c *Client) get(ctx context.Context, endpoint, url string, params map[string]string) ([]byte, error) {
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParams(params).
		Get(url)
	if err != nil {
		metrics.APIRequestsTotal.WithLabelValues(endpoint, "error").Inc()
		return nil, fmt.Errorf("get %s: %w", url, err)
	}
	metrics.APIRequestsTotal.WithLabelValues(endpoint, strconv.Itoa(resp.StatusCode())).Inc()
	if resp.IsError() {
		return nil, fmt.Errorf("get %s: http %d: %s", url, resp.StatusCode(), truncate(resp.String(), 200))
	}
	return resp.Body(), nil
}

// FetchAll pages through a vintage's resource endpoint until an empty page.
// Any page failure aborts the vintage: the caller gets no partial batch.
func (c *Client) FetchAll(ctx context.Context, v raw.Vintage) (raw.Batch, error) {
	url := fmt.Sprintf("%s/%s.json", c.opts.ResourceURL, v.Endpoint)
	batch := raw.Batch{Vintage: v}
	for offset := 0; ; offset += c.opts.PageSize {
		body, err := c.get(ctx, "resource", url, map[string]string{
			"$limit":  strconv.Itoa(c.opts.PageSize),
			"$offset": strconv.Itoa(offset),
		})
		if err != nil {
			return raw.Batch{}, fmt.Errorf("fetch %s at offset %d: %w", v.Endpoint, offset, err)
		}
		page, err := raw.DecodeRecords(body)
		if err != nil {
			return raw.Batch{}, fmt.Errorf("fetch %s at offset %d: %w", v.Endpoint, offset, err)
		}
		if len(page) == 0 {
			break
		}
		batch.Records = append(batch.Records, page...)
		metrics.RecordsFetchedTotal.WithLabelValues(v.Name).Add(float64(len(page)))
		c.log.Info("fetched page", "vintage", v.Name, "offset", offset, "records", len(batch.Records))
		if err := c.pause(ctx); err != nil {
			return raw.Batch{}, err
		}
	}
	c.log.Info("fetched vintage", "vintage", v.Name, "records", len(batch.Records))
	return batch, nil
}

// Sample returns the first limit records of a resource.
func (c *Client) Sample(ctx context.Context, id string, limit int) ([]raw.Record, error) {
	url := fmt.Sprintf("%s/%s.json", c.opts.ResourceURL, id)
	body, err := c.get(ctx, "resource", url, map[string]string{"$limit": strconv.Itoa(limit)})
	if err != nil {
		return nil, err
	}
	return raw.DecodeRecords(body)
}

func (c *Client) pause(ctx context.Context) error {
	if c.opts.PageDelay <= 0 {
		return nil
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-c.opts.Clock.After(c.opts.PageDelay):
		return nil
	}
}

func decodeJSON(body []byte, v any) error {
	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func truncate(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
