package normalize

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"lapdcalls/internal/calls"
	"lapdcalls/internal/raw"
)

var vintage2023 = raw.Vintage{Name: "LAPD Calls for Service 2023", Endpoint: "aaaa-2023", Year: 2023}

func s(v string) raw.Value { return raw.String(v) }

func TestNormalize_DatePriority(t *testing.T) {
	t.Parallel()

	res := Normalize(raw.Batch{Vintage: vintage2023, Records: []raw.Record{{
		"incident_number": s("PD23070400001"),
		"date_occ":        s("2023-07-04T00:00:00.000"),
		"date_rptd":       s("2023-07-05T00:00:00.000"),
		"dispatch_date":   s("2023-07-06T00:00:00.000"),
	}}})
	require.Len(t, res.Records, 1)
	r := res.Records[0]
	require.Equal(t, "occurrence_date", res.Schema.PrimaryFrom)
	require.True(t, r.PrimaryDate.Equal(*r.OccurrenceDate))
	require.Equal(t, time.Date(2023, 7, 4, 0, 0, 0, 0, time.UTC), r.PrimaryDate)
	require.Equal(t, time.Date(2023, 7, 5, 0, 0, 0, 0, time.UTC), *r.ReportDate)
	require.Equal(t, 2023, r.Year)
	require.Equal(t, 7, r.Month)
	require.Equal(t, "Tuesday", r.DayOfWeek)
	require.Equal(t, []string{"date_occ->occurrence_date", "date_rptd->report_date"}, res.Schema.Renamed())
}

func TestNormalize_DatePriorityIsPerColumn(t *testing.T) {
	t.Parallel()

	// occurrence_date exists as a column, so a record whose occurrence date is
	// unparseable is dropped even though it has a report date.
	res := Normalize(raw.Batch{Vintage: vintage2023, Records: []raw.Record{
		{"occurrence_date": s("2023-01-02"), "report_date": s("2023-01-03")},
		{"occurrence_date": s("not a date"), "report_date": s("2023-01-03")},
		{"report_date": s("2023-01-04")},
	}})
	require.Len(t, res.Records, 1)
	require.Equal(t, 2, res.Dropped)

	res = Normalize(raw.Batch{Vintage: vintage2023, Records: []raw.Record{
		{"dispatch_date": s("2023-01-02T10:00:00.000"), "report_date": s("2023-01-01")},
	}})
	require.Equal(t, "report_date", res.Schema.PrimaryFrom)
	require.Equal(t, time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC), res.Records[0].PrimaryDate)
}

func TestNormalize_Completeness(t *testing.T) {
	t.Parallel()

	in := []raw.Record{
		{"dispatch_date": s("2024-01-01T00:00:00.000")},
		{"dispatch_date": s("")},
		{"dispatch_date": raw.Absent()},
		{"dispatch_date": raw.Number(20240101)},
		{"dispatch_date": s("01/15/2024 11:30:00 PM")},
		{"dispatch_date": s("2024-02-30")},
	}
	res := Normalize(raw.Batch{Vintage: vintage2023, Records: in})
	require.Len(t, res.Records, 2)
	require.Equal(t, len(in)-len(res.Records), res.Dropped)
	for _, r := range res.Records {
		require.False(t, r.PrimaryDate.IsZero())
	}
	require.Equal(t, 23, res.Records[1].PrimaryDate.Hour())
}

func TestNormalize_NoDateColumns(t *testing.T) {
	t.Parallel()

	res := Normalize(raw.Batch{Vintage: vintage2023, Records: []raw.Record{
		{"incident_number": s("A")},
		{"incident_number": s("B")},
	}})
	require.Empty(t, res.Records)
	require.Equal(t, 2, res.Dropped)
	require.Equal(t, "", res.Schema.PrimaryFrom)

	res = Normalize(raw.Batch{Vintage: vintage2023})
	require.Empty(t, res.Records)
	require.Zero(t, res.Dropped)
}

func TestNormalize_CallTypePrecedence(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		rec  raw.Record
		want string
	}{
		{"text wins", raw.Record{"call_type_text": s("FIREWORKS"), "call_type_description": s("OTHER")}, "FIREWORKS"},
		{"description fallback", raw.Record{"call_type_description": s("  SHOTS FIRED ")}, "SHOTS FIRED"},
		{"absent", raw.Record{}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			rec := raw.Record{"dispatch_date": s("2024-07-04T21:00:00.000")}
			for k, v := range tt.rec {
				rec[k] = v
			}
			res := Normalize(raw.Batch{Vintage: vintage2023, Records: []raw.Record{rec}})
			require.Len(t, res.Records, 1)
			require.Equal(t, tt.want, res.Records[0].CallType)
		})
	}
}

func TestNormalize_TextAndProvenance(t *testing.T) {
	t.Parallel()

	res := Normalize(raw.Batch{Vintage: vintage2023, Records: []raw.Record{{
		"incident_number": s(" PD23070400009 "),
		"area_occ":        s("  Hollywood "),
		"rpt_dist":        raw.Number(645),
		"call_type_code":  s("507F"),
		"dispatch_date":   s("2023-07-04T00:00:00.000"),
	}}})
	r := res.Records[0]
	require.Equal(t, "PD23070400009", r.IncidentNumber)
	require.Equal(t, "Hollywood", r.AreaOcc)
	require.Equal(t, "645", r.RptDist)
	require.Equal(t, "507F", r.CallTypeCode)
	require.Equal(t, "LAPD Calls for Service 2023", r.SourceDataset)
	require.Equal(t, 2023, r.SourceYear)
}

func TestNormalize_HourFallback(t *testing.T) {
	t.Parallel()

	// occurrence_time yields nothing for the batch, so dispatch_time is used.
	res := Normalize(raw.Batch{Vintage: vintage2023, Records: []raw.Record{
		{"dispatch_date": s("2023-01-01"), "time_occ": s("n/a"), "dispatch_time": s("21:15:00")},
		{"dispatch_date": s("2023-01-01"), "time_occ": raw.Absent(), "dispatch_time": s("bad")},
	}})
	require.Equal(t, "dispatch_time", res.Schema.HourFrom)
	require.Equal(t, calls.IntPtr(21), res.Records[0].Hour)
	require.Nil(t, res.Records[1].Hour)

	// occurrence_time yields a value for one record, so it is used for all.
	res = Normalize(raw.Batch{Vintage: vintage2023, Records: []raw.Record{
		{"dispatch_date": s("2023-01-01"), "time_occ": raw.Number(2130), "dispatch_time": s("01:00:00")},
		{"dispatch_date": s("2023-01-01"), "time_occ": s("??"), "dispatch_time": s("02:00:00")},
	}})
	require.Equal(t, "occurrence_time", res.Schema.HourFrom)
	require.Equal(t, calls.IntPtr(21), res.Records[0].Hour)
	require.Nil(t, res.Records[1].Hour)
	require.Equal(t, "2130", res.Records[0].OccurrenceTime)
}

func TestNormalize_Idempotent(t *testing.T) {
	t.Parallel()

	first := Normalize(raw.Batch{Vintage: vintage2023, Records: []raw.Record{
		{
			"incident_number":       s("PD23070400001"),
			"call_type_text":        s(" FIREWORKS "),
			"call_type_description": s("OTHER"),
			"call_type_code":        s("507F"),
			"area_occ":              s(" Central"),
			"rpt_dist":              s("0145"),
			"date_occ":              s("2023-07-04T00:00:00.000"),
			"date_rptd":             s("2023-07-05T00:00:00.000"),
			"time_occ":              s("2145"),
			"dispatch_time":         s("22:01:09"),
		},
		{
			"incident_number": s("PD23070400002"),
			"date_occ":        s("2023-07-04T12:00:00Z"),
			"time_occ":        s("bogus"),
		},
		{
			"incident_number": s("PD23070400003"),
			"date_occ":        s("garbage"),
		},
	}})
	require.Len(t, first.Records, 2)

	second := Normalize(Batch(vintage2023, first.Records))
	require.Zero(t, second.Dropped)
	if diff := cmp.Diff(first.Records, second.Records); diff != "" {
		t.Fatalf("re-normalization changed records (-first +second):\n%s", diff)
	}

	// a table carried without its time columns keeps its stored hour
	stripped := Batch(vintage2023, first.Records)
	for _, r := range stripped.Records {
		delete(r, "occurrence_time")
		delete(r, "dispatch_time")
	}
	third := Normalize(stripped)
	require.Equal(t, "hour", third.Schema.HourFrom)
	require.Equal(t, first.Records[0].Hour, third.Records[0].Hour)
}

func TestParseHour(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   raw.Value
		want int
		ok   bool
	}{
		{s("21:30:00"), 21, true},
		{s("07:05"), 7, true},
		{s("0930"), 9, true},
		{raw.Number(30), 0, true},
		{raw.Number(2130), 21, true},
		{s("2460"), 0, false},
		{s("25:00:00"), 0, false},
		{s(""), 0, false},
		{raw.Absent(), 0, false},
		{raw.Time(time.Date(2024, 1, 1, 13, 0, 0, 0, time.UTC)), 13, true},
	}
	for _, tt := range tests {
		got, ok := ParseHour(tt.in)
		require.Equal(t, tt.ok, ok, tt.in.String())
		if ok {
			require.Equal(t, tt.want, got, tt.in.String())
		}
	}
}

func TestParseDate_ZonedToUTC(t *testing.T) {
	t.Parallel()

	got, ok := ParseDate(s("2024-07-04T21:00:00-07:00"))
	require.True(t, ok)
	require.Equal(t, time.Date(2024, 7, 5, 4, 0, 0, 0, time.UTC), got)

	_, ok = ParseDate(raw.Number(1720000000))
	require.False(t, ok)
}
