package calls

import (
	"sort"
	"strconv"
	"strings"
	"time"
)

// Table is the canonical table: every canonical record in concatenation order.
type Table struct {
	Records []Record
}

func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.Records)
}

// DateRange returns the earliest and latest primary dates. ok is false for an
// empty table.
func (t *Table) DateRange() (min, max time.Time, ok bool) {
	for i, r := range t.Records {
		if i == 0 || r.PrimaryDate.Before(min) {
			min = r.PrimaryDate
		}
		if i == 0 || r.PrimaryDate.After(max) {
			max = r.PrimaryDate
		}
	}
	return min, max, len(t.Records) > 0
}

// YearCounts counts records per year, ordered by year.
func (t *Table) YearCounts() []YearCount {
	counts := map[int]int{}
	for _, r := range t.Records {
		counts[r.Year]++
	}
	out := make([]YearCount, 0, len(counts))
	for y, n := range counts {
		out = append(out, YearCount{Year: y, N: n})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Year < out[j].Year })
	return out
}

func (t *Table) Years() []int {
	yc := t.YearCounts()
	out := make([]int, len(yc))
	for i, y := range yc {
		out[i] = y.Year
	}
	return out
}

// TopCallTypes returns the n most frequent call types. Records without a call
// type are counted under "<NA>".
func (t *Table) TopCallTypes(n int) []Count {
	counts := map[string]int{}
	for _, r := range t.Records {
		k := r.CallType
		if k == "" {
			k = "<NA>"
		}
		counts[k]++
	}
	return TopN(counts, n)
}

type YearCount struct {
	Year int
	N    int
}

type Count struct {
	Key string
	N   int
}

// TopN sorts counts descending, ties broken by key, and keeps the first n.
// n <= 0 keeps all.
func TopN(counts map[string]int, n int) []Count {
	items := make([]Count, 0, len(counts))
	for k, v := range counts {
		items = append(items, Count{k, v})
	}
	sort.Slice(items, func(i, j int) bool {
		if items[i].N == items[j].N {
			return items[i].Key < items[j].Key
		}
		return items[i].N > items[j].N
	})
	if n > 0 && len(items) > n {
		items = items[:n]
	}
	return items
}

// FormatInt renders v with comma thousands separators.
func FormatInt(v int) string {
	s := strconv.Itoa(v)
	neg := strings.HasPrefix(s, "-")
	if neg {
		s = s[1:]
	}
	var parts []string
	for len(s) > 3 {
		parts = append([]string{s[len(s)-3:]}, parts...)
		s = s[:len(s)-3]
	}
	parts = append([]string{s}, parts...)
	out := strings.Join(parts, ",")
	if neg {
		out = "-" + out
	}
	return out
}
