package socrata

import (
	"context"
	"errors"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"lapdcalls/internal/raw"
)

// ErrDatasetNotFound is returned by Metadata when the catalog has no entry
// for the requested id.
var ErrDatasetNotFound = errors.New("dataset not found in catalog")

var reYear = regexp.MustCompile(`20\d{2}`)

// Dataset is one catalog entry.
type Dataset struct {
	ID          string
	Name        string
	Description string
	Type        string
	Category    string
	Permalink   string
	UpdatedAt   time.Time
}

type catalogResponse struct {
	Results []struct {
		Resource struct {
			ID          string `json:"id"`
			Name        string `json:"name"`
			Description string `json:"description"`
			Type        string `json:"type"`
			Category    string `json:"category"`
			UpdatedAt   string `json:"updatedAt"`
		} `json:"resource"`
		Classification struct {
			DomainCategory string `json:"domain_category"`
		} `json:"classification"`
		Permalink string `json:"permalink"`
	} `json:"results"`
}

func (c *Client) catalog(ctx context.Context, params map[string]string) ([]Dataset, error) {
	params["domains"] = c.opts.Domain
	body, err := c.get(ctx, "catalog", c.opts.CatalogURL, params)
	if err != nil {
		return nil, err
	}
	var resp catalogResponse
	if err := decodeJSON(body, &resp); err != nil {
		return nil, err
	}
	out := make([]Dataset, 0, len(resp.Results))
	for _, r := range resp.Results {
		d := Dataset{
			ID:          r.Resource.ID,
			Name:        r.Resource.Name,
			Description: r.Resource.Description,
			Type:        r.Resource.Type,
			Category:    r.Classification.DomainCategory,
			Permalink:   r.Permalink,
		}
		if d.Category == "" {
			d.Category = r.Resource.Category
		}
		if t, err := time.Parse(time.RFC3339Nano, r.Resource.UpdatedAt); err == nil {
			d.UpdatedAt = t.UTC()
		}
		out = append(out, d)
	}
	return out, nil
}

// Datasets lists the calls-for-service vintages of the domain, oldest year
// first. Vintages without a year in their name sort before all others.
func (c *Client) Datasets(ctx context.Context, query string) ([]raw.Vintage, error) {
	ds, err := c.catalog(ctx, map[string]string{"q": query})
	if err != nil {
		return nil, err
	}
	var out []raw.Vintage
	for _, d := range ds {
		if !IsCallsForService(d.Name) {
			continue
		}
		out = append(out, raw.Vintage{
			Name:      d.Name,
			Endpoint:  d.ID,
			Year:      YearFromName(d.Name),
			UpdatedAt: d.UpdatedAt,
		})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Year < out[j].Year })
	return out, nil
}

// Metadata looks a dataset up by id.
func (c *Client) Metadata(ctx context.Context, id string) (Dataset, error) {
	ds, err := c.catalog(ctx, map[string]string{"ids": id})
	if err != nil {
		return Dataset{}, err
	}
	for _, d := range ds {
		if d.ID == id {
			return d, nil
		}
	}
	return Dataset{}, ErrDatasetNotFound
}

func (c *Client) Search(ctx context.Context, query string, limit int) ([]Dataset, error) {
	return c.catalog(ctx, map[string]string{"q": query, "limit": strconv.Itoa(limit)})
}

type CategoryCount struct {
	Category string
	Count    int
}

// Categories counts the first 100 catalog entries of the domain by
// category, sorted by name.
func (c *Client) Categories(ctx context.Context) ([]CategoryCount, error) {
	ds, err := c.catalog(ctx, map[string]string{"limit": "100"})
	if err != nil {
		return nil, err
	}
	counts := map[string]int{}
	for _, d := range ds {
		cat := d.Category
		if cat == "" {
			cat = "Uncategorized"
		}
		counts[cat]++
	}
	out := make([]CategoryCount, 0, len(counts))
	for k, v := range counts {
		out = append(out, CategoryCount{k, v})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Category < out[j].Category })
	return out, nil
}

// IsCallsForService reports whether a dataset name denotes a full
// calls-for-service vintage rather than a count or summary view.
func IsCallsForService(name string) bool {
	n := strings.ToLower(name)
	if !strings.Contains(n, "calls for service") {
		return false
	}
	for _, skip := range []string{"count", "summary", "excluding ambulance"} {
		if strings.Contains(n, skip) {
			return false
		}
	}
	return true
}

// YearFromName returns the first 20xx year in a dataset name, or 0.
func YearFromName(name string) int {
	m := reYear.FindString(name)
	if m == "" {
		return 0
	}
	y, _ := strconv.Atoi(m)
	return y
}
