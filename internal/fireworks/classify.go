// Package fireworks isolates fireworks-related calls from the canonical table
// and computes the descriptive statistics behind the fireworks report.
package fireworks

import (
	"strings"

	"lapdcalls/internal/calls"
)

const (
	// Code is the dispatch code LAPD assigns to illegal fireworks calls.
	Code = "507F"

	code6     = "006"
	code6Text = "CODE 6"
)

// IsCode6 reports whether the record is an officer-initiated "Code 6" call,
// which never counts as a fireworks call whatever its other fields say.
func IsCode6(r calls.Record) bool {
	if r.CallTypeCode == code6 {
		return true
	}
	return len(r.CallType) >= len(code6Text) && strings.EqualFold(r.CallType[:len(code6Text)], code6Text)
}

// IsFireworks reports whether the record is a fireworks call by code.
func IsFireworks(r calls.Record) bool {
	return !IsCode6(r) && r.CallTypeCode == Code
}

// Select returns the fireworks calls of t in table order.
func Select(t *calls.Table) []calls.Record {
	return filter(t, IsFireworks)
}

var (
	keywords = []string{
		"firework", "firecracker", "roman candle", "bottle rocket", "sparkler",
		"cherry bomb", "m-80", "pyrotechnic", "explosive", "loud noise", "noise complaint",
	}
	keywordCallTypes = []string{
		"fireworks", "noise complaint", "loud noise", "disturbing the peace", "pyrotechnic",
	}
)

// MatchesKeywords is the text heuristic for vintages that carry no usable
// call type code: the call type mentions fireworks or a related noise
// complaint. It is broader than IsFireworks and reported separately.
func MatchesKeywords(r calls.Record) bool {
	if r.CallType == "" || IsCode6(r) {
		return false
	}
	text := strings.ToLower(r.CallType)
	for _, k := range keywords {
		if strings.Contains(text, k) {
			return true
		}
	}
	for _, k := range keywordCallTypes {
		if strings.Contains(text, k) {
			return true
		}
	}
	return false
}

// SelectByKeywords returns the records matched by MatchesKeywords.
func SelectByKeywords(t *calls.Table) []calls.Record {
	return filter(t, MatchesKeywords)
}

func filter(t *calls.Table, keep func(calls.Record) bool) []calls.Record {
	var out []calls.Record
	for _, r := range t.Records {
		if keep(r) {
			out = append(out, r)
		}
	}
	return out
}
