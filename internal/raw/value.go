// Package raw holds the loosely typed records received from an open-data
// vintage before they are validated into canonical records.
package raw

import (
	"strconv"
	"strings"
	"time"
)

type Kind uint8

const (
	KindAbsent Kind = iota
	KindString
	KindNumber
	KindTime
)

func (k Kind) String() string {
	switch k {
	case KindString:
		return "string"
	case KindNumber:
		return "number"
	case KindTime:
		return "time"
	default:
		return "absent"
	}
}

// Value is a single field value: a string, a number, a timestamp, or absent.
// The zero Value is absent.
type Value struct {
	kind Kind
	s    string
	n    float64
	t    time.Time
}

func String(s string) Value { return Value{kind: KindString, s: s} }
func Number(n float64) Value { return Value{kind: KindNumber, n: n} }
func Time(t time.Time) Value { return Value{kind: KindTime, t: t} }
func Int(n int) Value { return Number(float64(n)) }
func Absent() Value { return Value{} }
func (v Value) Kind() Kind { return v.kind }
func (v Value) IsAbsent() bool { return v.kind == KindAbsent }

// Text returns the value as text. Numbers are formatted without a trailing
// ".0" so that codes delivered as numbers compare equal to their string form.
func (v Value) Text() (string, bool) {
	switch v.kind {
	case KindString:
		return v.s, true
	case KindNumber:
		return strconv.FormatFloat(v.n, 'f', -1, 64), true
	case KindTime:
		return v.t.Format(time.RFC3339Nano), true
	default:
		return "", false
	}
}

func (v Value) Number() (float64, bool) {
	switch v.kind {
	case KindNumber:
		return v.n, true
	case KindString:
		f, err := strconv.ParseFloat(strings.TrimSpace(v.s), 64)
		if err != nil {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}

func (v Value) Time() (time.Time, bool) {
	if v.kind != KindTime {
		return time.Time{}, false
	}
	return v.t, true
}

func (v Value) Equal(o Value) bool {
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case KindString:
		return v.s == o.s
	case KindNumber:
		return v.n == o.n
	case KindTime:
		return v.t.Equal(o.t)
	default:
		return true
	}
}

func (v Value) String() string {
	if s, ok := v.Text(); ok {
		return s
	}
	return "<absent>"
}
