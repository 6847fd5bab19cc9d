package fireworks

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"lapdcalls/internal/calls"
)

const dateLayout = "2006-01-02"

// Report renders the analysis as a markdown document.
func Report(a Analysis, source string) string {
	lines := []string{
		"# LAPD fireworks calls analysis",
		"",
		"## Summary",
		fmt.Sprintf("- Source: %s", source),
		fmt.Sprintf("- Total LAPD calls analyzed: %s", calls.FormatInt(a.Total)),
		fmt.Sprintf("- Fireworks-related calls (%s, excluding Code 6): %s", Code, calls.FormatInt(a.Calls)),
		fmt.Sprintf("- Percentage of total calls: %.3f%%", a.Percent),
	}
	if a.Calls > 0 {
		lines = append(lines,
			fmt.Sprintf("- Date range: %s to %s", a.From.Format(dateLayout), a.To.Format(dateLayout)),
			fmt.Sprintf("- Peak year: %d (%s calls)", a.PeakYear.Year, calls.FormatInt(a.PeakYear.N)),
			fmt.Sprintf("- Peak month: %s (%s calls)", a.PeakMonth.Month, calls.FormatInt(a.PeakMonth.Calls)),
		)
	}
	lines = append(lines, "")

	lines = append(lines, "## Most common call types")
	for _, c := range a.TopCallTypes {
		lines = append(lines, fmt.Sprintf("- %s: %s", c.Key, calls.FormatInt(c.N)))
	}
	lines = append(lines, "")

	lines = append(lines, "## By year", "", "| year | fireworks calls | total calls | % |", "|---|---:|---:|---:|")
	for _, y := range a.ByYear {
		lines = append(lines, fmt.Sprintf("| %d | %s | %s | %.2f |", y.Year, calls.FormatInt(y.Calls), calls.FormatInt(y.Total), y.Percent))
	}
	lines = append(lines, "")

	lines = append(lines, "## By month (all years)")
	for _, m := range a.ByMonth {
		lines = append(lines, fmt.Sprintf("- %s: %s", MonthName(m.Month), calls.FormatInt(m.Calls)))
	}
	lines = append(lines, "")

	lines = append(lines, "## By day of week")
	for _, d := range a.ByDay {
		lines = append(lines, fmt.Sprintf("- %s: %s", d.Day, calls.FormatInt(d.Calls)))
	}
	lines = append(lines, "")

	lines = append(lines, fmt.Sprintf("## Top %d LAPD areas", topAreas))
	for _, c := range a.TopAreas {
		lines = append(lines, fmt.Sprintf("- %s: %s", c.Key, calls.FormatInt(c.N)))
	}
	lines = append(lines, "")

	lines = append(lines, fmt.Sprintf("## Major holidays (+-%d days)", holidaySpan))
	for _, h := range a.Holidays {
		lines = append(lines, fmt.Sprintf("### %s (%s %d)", h.Name, h.Month, h.Day))
		lines = append(lines, fmt.Sprintf("- calls: %s", calls.FormatInt(h.Calls)))
		if len(h.ByYear) > 0 {
			lines = append(lines,
				fmt.Sprintf("- average per year: %.1f", h.AvgPerYear),
				fmt.Sprintf("- peak year: %d (%s calls)", h.Peak.Year, calls.FormatInt(h.Peak.N)),
			)
		}
		lines = append(lines, "")
	}

	lines = append(lines, "## July 1-5 by year")
	if len(a.JulyFourth) == 0 {
		lines = append(lines, "- no fireworks calls between July 1 and 5 in any year")
	}
	for _, yc := range a.JulyFourth {
		lines = append(lines, fmt.Sprintf("- %d: %s", yc.Year, calls.FormatInt(yc.N)))
	}
	lines = append(lines, "")

	lines = append(lines, "## Keyword heuristic")
	lines = append(lines, fmt.Sprintf("- matched calls: %s", calls.FormatInt(a.Keywords.Calls)))
	for _, yc := range a.Keywords.ByYear {
		lines = append(lines, fmt.Sprintf("- %d: %s", yc.Year, calls.FormatInt(yc.N)))
	}
	if len(a.Keywords.MissingYears) > 0 {
		ys := make([]string, len(a.Keywords.MissingYears))
		for i, y := range a.Keywords.MissingYears {
			ys[i] = strconv.Itoa(y)
		}
		lines = append(lines, fmt.Sprintf("- years without a match: %s", strings.Join(ys, ", ")))
	}
	lines = append(lines, "")

	lines = append(lines, "## Call type code diagnostics")
	lines = append(lines, "### codes with delimiters")
	lines = appendCounts(lines, a.Diagnostics.Delimited)
	lines = append(lines, fmt.Sprintf("### codes containing %s", Code))
	lines = appendCounts(lines, a.Diagnostics.Variants)
	return strings.Join(lines, "\n")
}

func appendCounts(lines []string, cs []calls.Count) []string {
	if len(cs) == 0 {
		lines = append(lines, "- none")
	}
	for _, c := range cs {
		lines = append(lines, fmt.Sprintf("- `%s`: %s", c.Key, calls.FormatInt(c.N)))
	}
	return append(lines, "")
}

// WriteSeries writes one CSV file per chart into dir and returns their paths.
func WriteSeries(dir string, a Analysis) ([]string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	series := []struct {
		name string
		rows [][]string
	}{
		{"fireworks_by_year.csv", yearRows(a)},
		{"fireworks_by_month.csv", monthRows(a)},
		{"fireworks_by_day_of_week.csv", dayRows(a)},
		{"fireworks_by_area.csv", countRows("area_occ", a.TopAreas)},
		{"fireworks_by_holiday.csv", holidayRows(a)},
		{"fireworks_holiday_by_year.csv", holidayYearRows(a)},
		{"fireworks_july_4th_by_year.csv", yearCountRows(a.JulyFourth)},
	}
	var paths []string
	for _, s := range series {
		p := filepath.Join(dir, s.name)
		if err := writeCSV(p, s.rows); err != nil {
			return paths, fmt.Errorf("write %s: %w", s.name, err)
		}
		paths = append(paths, p)
	}
	return paths, nil
}

func yearRows(a Analysis) [][]string {
	rows := [][]string{{"year", "fireworks_calls", "total_calls", "percentage"}}
	for _, y := range a.ByYear {
		rows = append(rows, []string{
			strconv.Itoa(y.Year), strconv.Itoa(y.Calls), strconv.Itoa(y.Total),
			strconv.FormatFloat(y.Percent, 'f', 4, 64),
		})
	}
	return rows
}

func monthRows(a Analysis) [][]string {
	rows := [][]string{{"month", "month_name", "calls"}}
	for _, m := range a.ByMonth {
		rows = append(rows, []string{strconv.Itoa(int(m.Month)), MonthName(m.Month), strconv.Itoa(m.Calls)})
	}
	return rows
}

func dayRows(a Analysis) [][]string {
	rows := [][]string{{"day_of_week", "calls"}}
	for _, d := range a.ByDay {
		rows = append(rows, []string{d.Day, strconv.Itoa(d.Calls)})
	}
	return rows
}

func countRows(key string, cs []calls.Count) [][]string {
	rows := [][]string{{key, "calls"}}
	for _, c := range cs {
		rows = append(rows, []string{c.Key, strconv.Itoa(c.N)})
	}
	return rows
}

func holidayRows(a Analysis) [][]string {
	rows := [][]string{{"holiday", "calls", "avg_per_year", "peak_year", "peak_calls"}}
	for _, h := range a.Holidays {
		peakYear := ""
		if h.Peak.N > 0 {
			peakYear = strconv.Itoa(h.Peak.Year)
		}
		rows = append(rows, []string{
			h.Name, strconv.Itoa(h.Calls), strconv.FormatFloat(h.AvgPerYear, 'f', 1, 64),
			peakYear, strconv.Itoa(h.Peak.N),
		})
	}
	return rows
}

func holidayYearRows(a Analysis) [][]string {
	header := []string{"year"}
	byName := make([]map[int]int, len(a.Holidays))
	var all [][]calls.YearCount
	for i, h := range a.Holidays {
		header = append(header, h.Name)
		byName[i] = map[int]int{}
		for _, yc := range h.ByYear {
			byName[i][yc.Year] = yc.N
		}
		all = append(all, h.ByYear)
	}
	rows := [][]string{header}
	for _, y := range sortedYears(all...) {
		row := []string{strconv.Itoa(y)}
		for i := range a.Holidays {
			row = append(row, strconv.Itoa(byName[i][y]))
		}
		rows = append(rows, row)
	}
	return rows
}

func yearCountRows(ycs []calls.YearCount) [][]string {
	rows := [][]string{{"year", "calls"}}
	for _, yc := range ycs {
		rows = append(rows, []string{strconv.Itoa(yc.Year), strconv.Itoa(yc.N)})
	}
	return rows
}

func writeCSV(path string, rows [][]string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	w := csv.NewWriter(f)
	if err := w.WriteAll(rows); err != nil {
		return err
	}
	return f.Close()
}
