// Package snapshot compares two versions of the canonical table, aligning
// rows by incident number.
package snapshot

import (
	"fmt"
	"sort"
	"time"

	"lapdcalls/internal/calls"
)

const (
	StatusIdentical = "identical"
	StatusChanged   = "changed"
	StatusNoOverlap = "no_overlap"
)

type Alignment struct {
	Complete          bool    `json:"complete"`
	MatchedRows       int     `json:"matched_rows"`
	ReferenceRows     int     `json:"reference_rows"`
	CandidateRows     int     `json:"candidate_rows"`
	CoverageReference float64 `json:"coverage_reference"`
	CoverageCandidate float64 `json:"coverage_candidate"`

	Added                     int `json:"added"`
	Removed                   int `json:"removed"`
	DuplicateReferenceKeys    int `json:"duplicate_reference_keys,omitempty"`
	DuplicateCandidateMatches int `json:"duplicate_candidate_matches,omitempty"`
	UnkeyedReference          int `json:"unkeyed_reference,omitempty"`
	UnkeyedCandidate          int `json:"unkeyed_candidate,omitempty"`

	Pairs [][2]int `json:"-"`
}

type ColumnDiff struct {
	Column     string  `json:"column"`
	Changed    int     `json:"changed"`
	Similarity float64 `json:"similarity"`
}

type YearDelta struct {
	Year      int `json:"year"`
	Reference int `json:"reference"`
	Candidate int `json:"candidate"`
}

type Report struct {
	Status      string       `json:"status"`
	Alignment   Alignment    `json:"row_alignment"`
	ChangedRows int          `json:"changed_rows"`
	Columns     []ColumnDiff `json:"columns"`
	Years       []YearDelta  `json:"years"`
}

// Compare aligns cand against ref and counts differences per column over the
// matched rows.
func Compare(ref, cand *calls.Table) Report {
	al := alignRowsByKey(ref, cand)
	rep := Report{Alignment: al, Years: yearDeltas(ref, cand)}

	changedRow := make([]bool, len(al.Pairs))
	for _, c := range calls.Columns {
		d := ColumnDiff{Column: c.Name}
		for i, p := range al.Pairs {
			a := canonicalValue(ref.Records[p[0]].Value(c.Name))
			b := canonicalValue(cand.Records[p[1]].Value(c.Name))
			if a != b {
				d.Changed++
				changedRow[i] = true
			}
		}
		d.Similarity = 1
		if len(al.Pairs) > 0 {
			d.Similarity = 1 - float64(d.Changed)/float64(len(al.Pairs))
		}
		rep.Columns = append(rep.Columns, d)
	}
	for _, c := range changedRow {
		if c {
			rep.ChangedRows++
		}
	}

	switch {
	case al.MatchedRows == 0 && (al.ReferenceRows > 0 || al.CandidateRows > 0):
		rep.Status = StatusNoOverlap
	case al.Complete && rep.ChangedRows == 0:
		rep.Status = StatusIdentical
	default:
		rep.Status = StatusChanged
	}
	return rep
}

// alignRowsByKey pairs reference and candidate rows sharing an incident
// number. The first reference row per key wins; rows without a key are
// never paired.
func alignRowsByKey(ref, cand *calls.Table) Alignment {
	refIndex := make(map[string]int, ref.Len())
	al := Alignment{ReferenceRows: ref.Len(), CandidateRows: cand.Len()}
	for i, r := range ref.Records {
		k := r.IncidentNumber
		if k == "" {
			al.UnkeyedReference++
			continue
		}
		if _, exists := refIndex[k]; exists {
			al.DuplicateReferenceKeys++
			continue
		}
		refIndex[k] = i
	}

	pairs := make([][2]int, 0, cand.Len())
	seenRef := make(map[int]struct{}, cand.Len())
	for ci, r := range cand.Records {
		k := r.IncidentNumber
		if k == "" {
			al.UnkeyedCandidate++
			continue
		}
		ri, ok := refIndex[k]
		if !ok {
			al.Added++
			continue
		}
		if _, exists := seenRef[ri]; exists {
			al.DuplicateCandidateMatches++
			continue
		}
		seenRef[ri] = struct{}{}
		pairs = append(pairs, [2]int{ri, ci})
	}
	al.Removed = len(refIndex) - len(seenRef)
	sort.Slice(pairs, func(i, j int) bool { return pairs[i][0] < pairs[j][0] })

	al.Pairs = pairs
	al.MatchedRows = len(pairs)
	al.CoverageReference = coverage(al.MatchedRows, al.ReferenceRows)
	al.CoverageCandidate = coverage(al.MatchedRows, al.CandidateRows)
	al.Complete = al.DuplicateReferenceKeys == 0 && al.DuplicateCandidateMatches == 0 &&
		al.UnkeyedReference == 0 && al.UnkeyedCandidate == 0 &&
		al.MatchedRows == al.ReferenceRows && al.MatchedRows == al.CandidateRows
	return al
}

func yearDeltas(ref, cand *calls.Table) []YearDelta {
	byYear := map[int]*YearDelta{}
	get := func(y int) *YearDelta {
		d, ok := byYear[y]
		if !ok {
			d = &YearDelta{Year: y}
			byYear[y] = d
		}
		return d
	}
	for _, yc := range ref.YearCounts() {
		get(yc.Year).Reference = yc.N
	}
	for _, yc := range cand.YearCounts() {
		get(yc.Year).Candidate = yc.N
	}
	out := make([]YearDelta, 0, len(byYear))
	for _, d := range byYear {
		out = append(out, *d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Year < out[j].Year })
	return out
}

func canonicalValue(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case time.Time:
		return t.UTC().Format(time.RFC3339Nano)
	default:
		return fmt.Sprint(t)
	}
}

// coverage is 1 for an empty side.
func coverage(a, b int) float64 {
	if b == 0 {
		return 1
	}
	return float64(a) / float64(b)
}
