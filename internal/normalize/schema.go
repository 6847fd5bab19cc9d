// Package normalize validates one raw vintage batch into canonical records.
package normalize

import "sort"

// sourceFields declares every canonical field the normalizer fills from a
// batch and the source columns that may carry it, most preferred first.
// A canonical name listed after its variants is only used when the batch
// carries no variant, which is the case for already-normalized input.
var sourceFields = []struct {
	field   string
	sources []string
}{
	{"incident_number", []string{"incident_number"}},
	{"call_type", []string{"call_type_text", "call_type_description", "call_type"}},
	{"call_type_code", []string{"call_type_code"}},
	{"area_occ", []string{"area_occ"}},
	{"rpt_dist", []string{"rpt_dist"}},
	{"report_date", []string{"report_date", "date_rptd"}},
	{"occurrence_date", []string{"occurrence_date", "date_occ"}},
	{"dispatch_date", []string{"dispatch_date"}},
	{"occurrence_time", []string{"occurrence_time", "time_occ"}},
	{"dispatch_time", []string{"dispatch_time"}},
	{"primary_date", []string{"primary_date"}},
	{"hour", []string{"hour"}},
	{"source_dataset", []string{"source_dataset"}},
	{"source_year", []string{"source_year"}},
}

// datePriority orders the date fields primary_date may be taken from.
var datePriority = []string{"occurrence_date", "report_date", "dispatch_date"}

var dateFields = []string{"occurrence_date", "report_date", "dispatch_date", "primary_date"}

// hourPriority orders the fields hour may be derived from. The stored hour
// field is the last resort so that canonical input keeps its hour.
var hourPriority = []string{"occurrence_time", "dispatch_time", "hour"}

// Schema is the column layout of one batch, resolved once before any record
// is read.
type Schema struct {
	sources map[string]string

	// PrimaryFrom is the canonical field primary_date is taken from, or ""
	// when the batch has no date column at all.
	PrimaryFrom string
	// HourFrom is the field hour was derived from, or "" when no candidate
	// yielded a value.
	HourFrom string
}

// DetectSchema resolves which source column feeds each canonical field.
func DetectSchema(columns map[string]struct{}) Schema {
	s := Schema{sources: map[string]string{}}
	for _, f := range sourceFields {
		for _, src := range f.sources {
			if _, ok := columns[src]; ok {
				s.sources[f.field] = src
				break
			}
		}
	}
	for _, f := range datePriority {
		if s.Has(f) {
			s.PrimaryFrom = f
			break
		}
	}
	if s.PrimaryFrom == "" && s.Has("primary_date") {
		s.PrimaryFrom = "primary_date"
	}
	return s
}

// Source returns the source column of a canonical field.
func (s Schema) Source(field string) (string, bool) {
	src, ok := s.sources[field]
	return src, ok
}

func (s Schema) Has(field string) bool {
	_, ok := s.sources[field]
	return ok
}

// Renamed lists the variant columns that were mapped onto a different
// canonical name, as "source->field".
func (s Schema) Renamed() []string {
	var out []string
	for f, src := range s.sources {
		if f != src {
			out = append(out, src+"->"+f)
		}
	}
	sort.Strings(out)
	return out
}
