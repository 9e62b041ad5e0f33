// pkg/model/value.go
package model

import (
	"time"
)

// ValueKind identifies the canonical type held by a Value.
type ValueKind int

const (
	KindMissing ValueKind = iota // explicit "no value" marker
	KindString                   // free text
	KindInt                      // whole number (quantity, delivery days)
	KindFloat                    // decimal amount (price, rating, discount)
	KindBool                     // normalized boolean flag
	KindDate                     // calendar date, no time-of-day component
)

// String returns a human-readable name for the kind
func (k ValueKind) String() string {
	switch k {
	case KindMissing:
		return "missing"
	case KindString:
		return "string"
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindBool:
		return "bool"
	case KindDate:
		return "date"
	default:
		return "unknown"
	}
}

// Value is a single cleaned cell: exactly one of the typed slots is
// meaningful, selected by Kind. Build values through the constructors
// below so the Kind and slot never disagree.
type Value struct {
	Kind  ValueKind
	Str   string
	Int   int64
	Float float64
	Bool  bool
	Date  time.Time
}

// MissingValue returns the explicit "no value" marker
func MissingValue() Value {
	return Value{Kind: KindMissing}
}

// StringValue wraps free text
func StringValue(s string) Value {
	return Value{Kind: KindString, Str: s}
}

// IntValue wraps a whole number
func IntValue(i int64) Value {
	return Value{Kind: KindInt, Int: i}
}

// FloatValue wraps a decimal amount
func FloatValue(f float64) Value {
	return Value{Kind: KindFloat, Float: f}
}

// BoolValue wraps a normalized flag
func BoolValue(b bool) Value {
	return Value{Kind: KindBool, Bool: b}
}

// DateValue wraps a calendar date; the time-of-day portion is discarded
func DateValue(t time.Time) Value {
	y, m, d := t.Date()
	return Value{Kind: KindDate, Date: time.Date(y, m, d, 0, 0, 0, 0, time.UTC)}
}

// IsMissing reports whether the value is the explicit missing marker
func (v Value) IsMissing() bool {
	return v.Kind == KindMissing
}
