package raw

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"time"
)

// Record maps a source field name to its value. A key that is present with
// an absent value still counts as a column for the batch it belongs to.
type Record map[string]Value

func (r Record) Get(name string) Value { return r[name] }

func (r Record) Has(name string) bool {
	_, ok := r[name]
	return ok
}

// Vintage identifies one source dataset.
type Vintage struct {
	Name      string
	Endpoint  string
	Year      int // 0 when the dataset name carries no year
	UpdatedAt time.Time
}

func (v Vintage) String() string {
	if v.Year == 0 {
		return v.Name
	}
	return fmt.Sprintf("%s (%d)", v.Name, v.Year)
}

// Batch is every record fetched from one vintage.
type Batch struct {
	Vintage Vintage
	Records []Record
}

// Columns returns the set of field names present in at least one record.
func (b Batch) Columns() map[string]struct{} {
	cols := make(map[string]struct{})
	for _, r := range b.Records {
		for k := range r {
			cols[k] = struct{}{}
		}
	}
	return cols
}

func (b Batch) ColumnNames() []string {
	cols := b.Columns()
	out := make([]string, 0, len(cols))
	for k := range cols {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// FromJSON converts a decoded JSON scalar into a Value. Objects and arrays
// are kept as their JSON text.
func FromJSON(v any) Value {
	switch t := v.(type) {
	case nil:
		return Absent()
	case string:
		return String(t)
	case json.Number:
		f, err := t.Float64()
		if err != nil {
			return String(t.String())
		}
		return Number(f)
	case float64:
		return Number(t)
	case int:
		return Int(t)
	case int64:
		return Number(float64(t))
	case bool:
		if t {
			return String("true")
		}
		return String("false")
	default:
		b, err := json.Marshal(t)
		if err != nil {
			return String(fmt.Sprint(t))
		}
		return String(string(b))
	}
}

// DecodeRecords parses a JSON array of objects, as returned by a resource
// page, into records.
func DecodeRecords(data []byte) ([]Record, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var rows []map[string]any
	if err := dec.Decode(&rows); err != nil {
		return nil, fmt.Errorf("decode records: %w", err)
	}
	out := make([]Record, 0, len(rows))
	for _, row := range rows {
		r := make(Record, len(row))
		for k, v := range row {
			r[k] = FromJSON(v)
		}
		out = append(out, r)
	}
	return out, nil
}
