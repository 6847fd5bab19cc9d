// Package merge combines normalized batches into the canonical table.
package merge

import (
	"fmt"

	"lapdcalls/internal/calls"
)

// Mode records which merge path produced a table.
type Mode int

const (
	ModeFullRebuild Mode = iota
	ModeIncremental
)

func (m Mode) String() string {
	switch m {
	case ModeIncremental:
		return "incremental"
	default:
		return "full-rebuild"
	}
}

// Result is a merged canonical table with the counts behind it.
type Result struct {
	Table calls.Table
	Mode  Mode
	// Boundary is the year cut applied to the historical table; 0 in full
	// rebuild mode.
	Boundary int
	// Replaced counts historical rows removed by the boundary cut.
	Replaced int
	// Duplicates counts rows removed by incident-number deduplication.
	Duplicates int
}

// Build concatenates batches in order into a full-history table. Vintages
// are assumed to cover disjoint periods, so nothing is deduplicated.
func Build(batches ...[]calls.Record) Result {
	n := 0
	for _, b := range batches {
		n += len(b)
	}
	recs := make([]calls.Record, 0, n)
	for _, b := range batches {
		recs = append(recs, b...)
	}
	return Result{Table: calls.Table{Records: recs}, Mode: ModeFullRebuild}
}

type UpdateOptions struct {
	// BoundaryYear is the first year covered by the refreshed vintage.
	// Historical rows from that year on are replaced by the fresh batch.
	BoundaryYear int
}

// Update replaces the rolling vintage's rows in historical with fresh and
// deduplicates the result by incident number, keeping the last occurrence.
// A nil historical table falls back to a full rebuild of fresh alone; the
// fresh batch is still deduplicated.
func Update(historical *calls.Table, fresh []calls.Record, opts UpdateOptions) (Result, error) {
	if historical == nil {
		recs := make([]calls.Record, len(fresh))
		copy(recs, fresh)
		recs, dups := DedupeLast(recs)
		return Result{Table: calls.Table{Records: recs}, Mode: ModeFullRebuild, Duplicates: dups}, nil
	}
	if opts.BoundaryYear <= 0 {
		return Result{}, fmt.Errorf("incremental merge needs a boundary year, got %d", opts.BoundaryYear)
	}

	recs := make([]calls.Record, 0, len(historical.Records)+len(fresh))
	for _, r := range historical.Records {
		if r.Year < opts.BoundaryYear {
			recs = append(recs, r)
		}
	}
	replaced := len(historical.Records) - len(recs)
	recs = append(recs, fresh...)
	recs, dups := DedupeLast(recs)
	return Result{
		Table:      calls.Table{Records: recs},
		Mode:       ModeIncremental,
		Boundary:   opts.BoundaryYear,
		Replaced:   replaced,
		Duplicates: dups,
	}, nil
}

// DedupeLast keeps the last record per incident number, preserving the
// relative order of the survivors. Records without an incident number are
// never treated as duplicates.
func DedupeLast(recs []calls.Record) ([]calls.Record, int) {
	lastByIncident := make(map[string]int, len(recs))
	for i, r := range recs {
		if r.IncidentNumber != "" {
			lastByIncident[r.IncidentNumber] = i
		}
	}
	out := make([]calls.Record, 0, len(lastByIncident))
	for i, r := range recs {
		if r.IncidentNumber == "" || lastByIncident[r.IncidentNumber] == i {
			out = append(out, r)
		}
	}
	return out, len(recs) - len(out)
}

// ResolveBoundary picks the incremental cut year: the configured value when
// set, else the year the refreshed vintage declares. 0 means neither is known.
func ResolveBoundary(configured, vintageYear int) int {
	if configured > 0 {
		return configured
	}
	return vintageYear
}
