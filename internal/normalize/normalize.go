package normalize

import (
	"strings"
	"time"

	"lapdcalls/internal/calls"
	"lapdcalls/internal/raw"
)

// Result is the normalized form of one batch.
type Result struct {
	Records []calls.Record
	// Dropped counts input records removed for lacking a primary date.
	Dropped int
	Schema  Schema
}

// Normalize reconciles the batch's column variants and validates each record
// into a canonical record. Malformed values become nulls; records left without
// a primary date are dropped. A batch without any parseable date yields an
// empty result, not an error.
func Normalize(batch raw.Batch) Result {
	schema := DetectSchema(batch.Columns())

	type partial struct {
		rec   calls.Record
		dates map[string]*time.Time
	}
	parts := make([]partial, len(batch.Records))
	for i, r := range batch.Records {
		p := partial{dates: map[string]*time.Time{}}
		p.rec.IncidentNumber = strings.TrimSpace(schema.text(r, "incident_number"))
		p.rec.CallType = strings.TrimSpace(schema.text(r, "call_type"))
		p.rec.CallTypeCode = schema.text(r, "call_type_code")
		p.rec.AreaOcc = strings.TrimSpace(schema.text(r, "area_occ"))
		p.rec.RptDist = schema.text(r, "rpt_dist")
		p.rec.OccurrenceTime = schema.text(r, "occurrence_time")
		p.rec.DispatchTime = schema.text(r, "dispatch_time")

		for _, f := range dateFields {
			if src, ok := schema.Source(f); ok {
				if t, ok := ParseDate(r.Get(src)); ok {
					p.dates[f] = calls.TimePtr(t)
				}
			}
		}
		p.rec.ReportDate = p.dates["report_date"]
		p.rec.OccurrenceDate = p.dates["occurrence_date"]
		p.rec.DispatchDate = p.dates["dispatch_date"]

		p.rec.SourceDataset = schema.text(r, "source_dataset")
		if p.rec.SourceDataset == "" {
			p.rec.SourceDataset = batch.Vintage.Name
		}
		if src, ok := schema.Source("source_year"); ok {
			if n, ok := r.Get(src).Number(); ok {
				p.rec.SourceYear = int(n)
			}
		}
		if p.rec.SourceYear == 0 {
			p.rec.SourceYear = batch.Vintage.Year
		}
		parts[i] = p
	}

	kept := make([]int, 0, len(parts))
	for i := range parts {
		if schema.PrimaryFrom == "" {
			break
		}
		if d := parts[i].dates[schema.PrimaryFrom]; d != nil {
			parts[i].rec.SetDate(*d)
			kept = append(kept, i)
		}
	}

	// hour comes from the first candidate field that yields any value among
	// the kept records, decided for the batch rather than per record.
	for _, f := range hourPriority {
		src, ok := schema.Source(f)
		if !ok {
			continue
		}
		found := false
		for _, i := range kept {
			if h, ok := parseHourField(f, batch.Records[i].Get(src)); ok {
				parts[i].rec.Hour = calls.IntPtr(h)
				found = true
			}
		}
		if found {
			schema.HourFrom = f
			break
		}
	}

	out := make([]calls.Record, len(kept))
	for j, i := range kept {
		out[j] = parts[i].rec
	}
	return Result{
		Records: out,
		Dropped: len(batch.Records) - len(out),
		Schema:  schema,
	}
}

func (s Schema) text(r raw.Record, field string) string {
	src, ok := s.sources[field]
	if !ok {
		return ""
	}
	v, _ := r.Get(src).Text()
	return v
}

func parseHourField(field string, v raw.Value) (int, bool) {
	if field != "hour" {
		return ParseHour(v)
	}
	n, ok := v.Number()
	if !ok || n < 0 || n > 23 || n != float64(int(n)) {
		return 0, false
	}
	return int(n), true
}

// Batch re-renders normalized records as a raw batch under canonical names.
func Batch(v raw.Vintage, recs []calls.Record) raw.Batch {
	b := raw.Batch{Vintage: v, Records: make([]raw.Record, len(recs))}
	for i, r := range recs {
		b.Records[i] = r.Raw()
	}
	return b
}
