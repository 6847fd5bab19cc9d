package snapshot

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"lapdcalls/internal/calls"
)

func rec(incident string, year int, callType string) calls.Record {
	r := calls.Record{IncidentNumber: incident, CallType: callType}
	r.SetDate(time.Date(year, time.July, 4, 21, 0, 0, 0, time.UTC))
	return r
}

func changed(rep Report, col string) int {
	for _, c := range rep.Columns {
		if c.Column == col {
			return c.Changed
		}
	}
	return -1
}

func TestSnapshot_Identical(t *testing.T) {
	t.Parallel()

	tbl := &calls.Table{Records: []calls.Record{rec("A", 2022, "FIREWORKS"), rec("B", 2023, "PARTY")}}
	rep := Compare(tbl, tbl)
	require.Equal(t, StatusIdentical, rep.Status)
	require.True(t, rep.Alignment.Complete)
	require.Equal(t, 2, rep.Alignment.MatchedRows)
	require.Equal(t, 0, rep.ChangedRows)
	require.Len(t, rep.Columns, len(calls.Columns))
	for _, c := range rep.Columns {
		require.Equal(t, 1.0, c.Similarity, c.Column)
	}
}

func TestSnapshot_UpdateAgainstBackup(t *testing.T) {
	t.Parallel()

	backup := &calls.Table{Records: []calls.Record{
		rec("A", 2022, "FIREWORKS"),
		rec("B", 2024, "PARTY"),
		rec("C", 2024, "ALARM"),
		rec("", 2024, "UNKNOWN"),
	}}
	current := &calls.Table{Records: []calls.Record{
		rec("A", 2022, "FIREWORKS"),
		rec("B", 2024, "PARTY - LOUD"),
		rec("D", 2024, "FIREWORKS"),
		rec("D", 2024, "FIREWORKS"),
	}}

	rep := Compare(backup, current)
	require.Equal(t, StatusChanged, rep.Status)

	al := rep.Alignment
	require.False(t, al.Complete)
	require.Equal(t, 2, al.MatchedRows)
	require.Equal(t, [][2]int{{0, 0}, {1, 1}}, al.Pairs)
	require.Equal(t, 2, al.Added)
	require.Equal(t, 1, al.Removed)
	require.Equal(t, 1, al.UnkeyedReference)
	require.InDelta(t, 0.5, al.CoverageReference, 1e-9)
	require.InDelta(t, 0.5, al.CoverageCandidate, 1e-9)

	require.Equal(t, 1, rep.ChangedRows)
	require.Equal(t, 1, changed(rep, "call_type"))
	require.Equal(t, 0, changed(rep, "primary_date"))

	require.Equal(t, []YearDelta{
		{Year: 2022, Reference: 1, Candidate: 1},
		{Year: 2024, Reference: 3, Candidate: 3},
	}, rep.Years)
}

func TestSnapshot_NoOverlap(t *testing.T) {
	t.Parallel()

	rep := Compare(
		&calls.Table{Records: []calls.Record{rec("A", 2022, "X")}},
		&calls.Table{Records: []calls.Record{rec("B", 2022, "X")}},
	)
	require.Equal(t, StatusNoOverlap, rep.Status)
	require.Equal(t, 1, rep.Alignment.Added)
	require.Equal(t, 1, rep.Alignment.Removed)
}
