// Package calls defines the canonical calls-for-service record and table
// produced by the normalizer and persisted by the store.
package calls

import (
	"time"

	"lapdcalls/internal/raw"
)

// Record is one normalized call for service. PrimaryDate is always set.
// Empty strings stand for missing text values.
type Record struct {
	IncidentNumber string
	PrimaryDate    time.Time
	Year           int
	Month          int
	DayOfWeek      string
	Hour           *int

	CallType     string
	CallTypeCode string
	AreaOcc      string
	RptDist      string

	ReportDate     *time.Time
	OccurrenceDate *time.Time
	DispatchDate   *time.Time
	OccurrenceTime string
	DispatchTime   string

	SourceDataset string
	SourceYear    int // 0 when the vintage declares no year
}

// Raw renders the record back into a raw record under canonical field
// names, so that a normalized batch can be run through the normalizer again.
func (r Record) Raw() raw.Record {
	out := raw.Record{
		"primary_date": raw.Time(r.PrimaryDate),
		"year":         raw.Int(r.Year),
		"month":        raw.Int(r.Month),
		"day_of_week":  raw.String(r.DayOfWeek),
	}
	putText(out, "incident_number", r.IncidentNumber)
	putText(out, "call_type", r.CallType)
	putText(out, "call_type_code", r.CallTypeCode)
	putText(out, "area_occ", r.AreaOcc)
	putText(out, "rpt_dist", r.RptDist)
	putText(out, "occurrence_time", r.OccurrenceTime)
	putText(out, "dispatch_time", r.DispatchTime)
	putText(out, "source_dataset", r.SourceDataset)
	if r.Hour != nil {
		out["hour"] = raw.Int(*r.Hour)
	}
	if r.ReportDate != nil {
		out["report_date"] = raw.Time(*r.ReportDate)
	}
	if r.OccurrenceDate != nil {
		out["occurrence_date"] = raw.Time(*r.OccurrenceDate)
	}
	if r.DispatchDate != nil {
		out["dispatch_date"] = raw.Time(*r.DispatchDate)
	}
	if r.SourceYear != 0 {
		out["source_year"] = raw.Int(r.SourceYear)
	}
	return out
}

func putText(r raw.Record, key, v string) {
	if v != "" {
		r[key] = raw.String(v)
	}
}

// SetDate fills PrimaryDate and the fields derived from it.
func (r *Record) SetDate(t time.Time) {
	r.PrimaryDate = t
	r.Year = t.Year()
	r.Month = int(t.Month())
	r.DayOfWeek = t.Weekday().String()
}

func IntPtr(v int) *int { return &v }

func TimePtr(t time.Time) *time.Time { return &t }
