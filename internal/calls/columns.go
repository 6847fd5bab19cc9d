package calls

import (
	"fmt"
	"time"
)

type ColumnType int

const (
	Text ColumnType = iota
	Integer
	Timestamp
)

func (t ColumnType) SQLType() string {
	switch t {
	case Integer:
		return "INTEGER"
	case Timestamp:
		return "TIMESTAMP"
	default:
		return "TEXT"
	}
}

type Column struct {
	Name     string
	Type     ColumnType
	Nullable bool
}

// Columns is the persisted column order of the canonical table.
var Columns = []Column{
	{"incident_number", Text, true},
	{"primary_date", Timestamp, false},
	{"year", Integer, false},
	{"month", Integer, false},
	{"day_of_week", Text, false},
	{"hour", Integer, true},
	{"call_type", Text, true},
	{"call_type_code", Text, true},
	{"area_occ", Text, true},
	{"rpt_dist", Text, true},
	{"report_date", Timestamp, true},
	{"occurrence_date", Timestamp, true},
	{"dispatch_date", Timestamp, true},
	{"occurrence_time", Text, true},
	{"dispatch_time", Text, true},
	{"source_dataset", Text, true},
	{"source_year", Integer, true},
}

func ColumnNames() []string {
	out := make([]string, len(Columns))
	for i, c := range Columns {
		out[i] = c.Name
	}
	return out
}

// Value returns the named field as nil, string, int or time.Time.
func (r Record) Value(col string) any {
	switch col {
	case "incident_number":
		return textOrNil(r.IncidentNumber)
	case "primary_date":
		return r.PrimaryDate
	case "year":
		return r.Year
	case "month":
		return r.Month
	case "day_of_week":
		return r.DayOfWeek
	case "hour":
		if r.Hour == nil {
			return nil
		}
		return *r.Hour
	case "call_type":
		return textOrNil(r.CallType)
	case "call_type_code":
		return textOrNil(r.CallTypeCode)
	case "area_occ":
		return textOrNil(r.AreaOcc)
	case "rpt_dist":
		return textOrNil(r.RptDist)
	case "report_date":
		return timeOrNil(r.ReportDate)
	case "occurrence_date":
		return timeOrNil(r.OccurrenceDate)
	case "dispatch_date":
		return timeOrNil(r.DispatchDate)
	case "occurrence_time":
		return textOrNil(r.OccurrenceTime)
	case "dispatch_time":
		return textOrNil(r.DispatchTime)
	case "source_dataset":
		return textOrNil(r.SourceDataset)
	case "source_year":
		if r.SourceYear == 0 {
			return nil
		}
		return r.SourceYear
	default:
		return nil
	}
}

// Set assigns a field from a value of the column's Go type. A nil value
// clears the field.
func (r *Record) Set(col string, v any) error {
	switch col {
	case "primary_date":
		t, ok := v.(time.Time)
		if !ok {
			return fmt.Errorf("column %s: want time.Time, got %T", col, v)
		}
		r.PrimaryDate = t
	case "year", "month", "hour", "source_year":
		var n *int
		switch t := v.(type) {
		case nil:
		case int:
			n = IntPtr(t)
		case int32:
			n = IntPtr(int(t))
		case int64:
			n = IntPtr(int(t))
		default:
			return fmt.Errorf("column %s: want int, got %T", col, v)
		}
		switch col {
		case "year":
			r.Year = deref(n)
		case "month":
			r.Month = deref(n)
		case "hour":
			r.Hour = n
		case "source_year":
			r.SourceYear = deref(n)
		}
	case "report_date", "occurrence_date", "dispatch_date":
		var p *time.Time
		switch t := v.(type) {
		case nil:
		case time.Time:
			p = TimePtr(t)
		default:
			return fmt.Errorf("column %s: want time.Time, got %T", col, v)
		}
		switch col {
		case "report_date":
			r.ReportDate = p
		case "occurrence_date":
			r.OccurrenceDate = p
		case "dispatch_date":
			r.DispatchDate = p
		}
	default:
		s := ""
		switch t := v.(type) {
		case nil:
		case string:
			s = t
		default:
			return fmt.Errorf("column %s: want string, got %T", col, v)
		}
		switch col {
		case "incident_number":
			r.IncidentNumber = s
		case "day_of_week":
			r.DayOfWeek = s
		case "call_type":
			r.CallType = s
		case "call_type_code":
			r.CallTypeCode = s
		case "area_occ":
			r.AreaOcc = s
		case "rpt_dist":
			r.RptDist = s
		case "occurrence_time":
			r.OccurrenceTime = s
		case "dispatch_time":
			r.DispatchTime = s
		case "source_dataset":
			r.SourceDataset = s
		default:
			return fmt.Errorf("unknown column %q", col)
		}
	}
	return nil
}

func textOrNil(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func timeOrNil(t *time.Time) any {
	if t == nil {
		return nil
	}
	return *t
}

func deref(n *int) int {
	if n == nil {
		return 0
	}
	return *n
}
