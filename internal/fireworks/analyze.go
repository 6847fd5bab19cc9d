package fireworks

import (
	"errors"
	"sort"
	"strings"
	"time"

	"lapdcalls/internal/calls"
)

// ErrNoCalls means the table holds no fireworks call to analyze.
var ErrNoCalls = errors.New("no fireworks calls found")

const (
	topAreas     = 15
	topCallTypes = 5
	topCodes     = 20
	holidaySpan  = 3
)

type Holiday struct {
	Name  string
	Month time.Month
	Day   int
}

// Holidays are the dates whose +-3 day windows are counted.
var Holidays = []Holiday{
	{"New Year", time.January, 1},
	{"Independence Day", time.July, 4},
	{"New Year Eve", time.December, 31},
}

var weekdays = []time.Weekday{
	time.Monday, time.Tuesday, time.Wednesday, time.Thursday, time.Friday, time.Saturday, time.Sunday,
}

// YearShare is the fireworks count of one year against all calls that year.
type YearShare struct {
	Year    int
	Calls   int
	Total   int
	Percent float64
}

type MonthCount struct {
	Month time.Month
	Calls int
}

type DayCount struct {
	Day   string
	Calls int
}

type HolidayStats struct {
	Holiday
	Calls      int
	ByYear     []calls.YearCount
	AvgPerYear float64
	Peak       calls.YearCount
}

// KeywordStats summarizes the text heuristic. MissingYears are years of the
// table in which it matched nothing.
type KeywordStats struct {
	Calls        int
	ByYear       []calls.YearCount
	MissingYears []int
}

// CodeDiagnostics lists call type codes that may hide fireworks calls from
// the exact code match.
type CodeDiagnostics struct {
	Delimited []calls.Count
	Variants  []calls.Count
}

type Analysis struct {
	Total     int
	Calls     int
	Percent   float64
	From, To  time.Time
	PeakYear  calls.YearCount
	PeakMonth MonthCount

	ByYear       []YearShare
	ByMonth      []MonthCount
	ByDay        []DayCount
	TopAreas     []calls.Count
	Holidays     []HolidayStats
	JulyFourth   []calls.YearCount
	TopCallTypes []calls.Count

	Keywords    KeywordStats
	Diagnostics CodeDiagnostics
}

// Analyze classifies t and computes every fireworks statistic. It returns
// ErrNoCalls when no record carries the fireworks code.
func Analyze(t *calls.Table) (Analysis, error) {
	a := Analysis{
		Total:       t.Len(),
		Keywords:    keywordStats(t),
		Diagnostics: diagnose(t),
	}
	fw := Select(t)
	a.Calls = len(fw)
	if len(fw) == 0 {
		return a, ErrNoCalls
	}
	a.Percent = percent(a.Calls, a.Total)
	sel := &calls.Table{Records: fw}
	a.From, a.To, _ = sel.DateRange()

	a.ByYear = byYear(sel, t)
	a.PeakYear = peak(sel.YearCounts())
	a.ByMonth = byMonth(fw)
	for _, m := range a.ByMonth {
		if m.Calls > a.PeakMonth.Calls {
			a.PeakMonth = m
		}
	}
	a.ByDay = byDay(fw)
	a.TopAreas = topText(fw, func(r calls.Record) string { return r.AreaOcc }, topAreas)
	a.TopCallTypes = topText(fw, func(r calls.Record) string { return r.CallType }, topCallTypes)
	for _, h := range Holidays {
		a.Holidays = append(a.Holidays, holidayStats(fw, h))
	}
	a.JulyFourth = yearCounts(fw, func(r calls.Record) bool {
		d := r.PrimaryDate
		return d.Month() == time.July && d.Day() >= 1 && d.Day() <= 5
	})
	return a, nil
}

func byYear(fw, all *calls.Table) []YearShare {
	totals := map[int]int{}
	for _, yc := range all.YearCounts() {
		totals[yc.Year] = yc.N
	}
	var out []YearShare
	for _, yc := range fw.YearCounts() {
		out = append(out, YearShare{
			Year:    yc.Year,
			Calls:   yc.N,
			Total:   totals[yc.Year],
			Percent: percent(yc.N, totals[yc.Year]),
		})
	}
	return out
}

func byMonth(fw []calls.Record) []MonthCount {
	out := make([]MonthCount, 12)
	for i := range out {
		out[i].Month = time.Month(i + 1)
	}
	for _, r := range fw {
		if r.Month >= 1 && r.Month <= 12 {
			out[r.Month-1].Calls++
		}
	}
	return out
}

func byDay(fw []calls.Record) []DayCount {
	counts := map[string]int{}
	for _, r := range fw {
		counts[r.DayOfWeek]++
	}
	out := make([]DayCount, len(weekdays))
	for i, d := range weekdays {
		out[i] = DayCount{Day: d.String(), Calls: counts[d.String()]}
	}
	return out
}

func holidayStats(fw []calls.Record, h Holiday) HolidayStats {
	hs := HolidayStats{Holiday: h}
	hs.ByYear = yearCounts(fw, func(r calls.Record) bool {
		return r.PrimaryDate.Month() == h.Month &&
			r.PrimaryDate.Day() >= h.Day-holidaySpan && r.PrimaryDate.Day() <= h.Day+holidaySpan
	})
	for _, yc := range hs.ByYear {
		hs.Calls += yc.N
	}
	if len(hs.ByYear) > 0 {
		hs.AvgPerYear = float64(hs.Calls) / float64(len(hs.ByYear))
		hs.Peak = peak(hs.ByYear)
	}
	return hs
}

// yearCounts counts the records accepted by keep per year, omitting years
// without any.
func yearCounts(recs []calls.Record, keep func(calls.Record) bool) []calls.YearCount {
	var sel []calls.Record
	for _, r := range recs {
		if keep(r) {
			sel = append(sel, r)
		}
	}
	if len(sel) == 0 {
		return nil
	}
	return (&calls.Table{Records: sel}).YearCounts()
}

// peak returns the year with the most calls; ties go to the earliest year.
func peak(ycs []calls.YearCount) calls.YearCount {
	var best calls.YearCount
	for _, yc := range ycs {
		if yc.N > best.N {
			best = yc
		}
	}
	return best
}

// topText counts non-empty values of field and keeps the n most frequent.
func topText(recs []calls.Record, field func(calls.Record) string, n int) []calls.Count {
	counts := map[string]int{}
	for _, r := range recs {
		if v := field(r); v != "" {
			counts[v]++
		}
	}
	return calls.TopN(counts, n)
}

func keywordStats(t *calls.Table) KeywordStats {
	matched := SelectByKeywords(t)
	ks := KeywordStats{Calls: len(matched)}
	if len(matched) > 0 {
		ks.ByYear = (&calls.Table{Records: matched}).YearCounts()
	}
	hit := map[int]bool{}
	for _, yc := range ks.ByYear {
		hit[yc.Year] = true
	}
	for _, y := range t.Years() {
		if !hit[y] {
			ks.MissingYears = append(ks.MissingYears, y)
		}
	}
	return ks
}

func diagnose(t *calls.Table) CodeDiagnostics {
	delimited := map[string]int{}
	variants := map[string]int{}
	for _, r := range t.Records {
		c := r.CallTypeCode
		if strings.ContainsAny(c, " ,/") {
			delimited[c]++
		}
		if c != Code && strings.Contains(c, Code) {
			variants[c]++
		}
	}
	return CodeDiagnostics{
		Delimited: calls.TopN(delimited, topCodes),
		Variants:  calls.TopN(variants, topCodes),
	}
}

func percent(n, total int) float64 {
	if total == 0 {
		return 0
	}
	return float64(n) / float64(total) * 100
}

// MonthName is the three-letter month label used in the report and series.
func MonthName(m time.Month) string { return m.String()[:3] }

// sortedYears is used by the report to align series by year.
func sortedYears(ycs ...[]calls.YearCount) []int {
	seen := map[int]bool{}
	var out []int
	for _, s := range ycs {
		for _, yc := range s {
			if !seen[yc.Year] {
				seen[yc.Year] = true
				out = append(out, yc.Year)
			}
		}
	}
	sort.Ints(out)
	return out
}
