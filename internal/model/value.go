package model

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Kind enumerates the value kinds a spreadsheet cell can hold.
type Kind int

const (
	// KindEmpty is a blank cell.
	KindEmpty Kind = iota
	// KindString is free text.
	KindString
	// KindNumber is a numeric cell, kept as an exact decimal.
	KindNumber
	// KindDate is a calendar date.
	KindDate
)

// String returns the kind's name.
func (k Kind) String() string {
	switch k {
	case KindEmpty:
		return "empty"
	case KindString:
		return "string"
	case KindNumber:
		return "number"
	case KindDate:
		return "date"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// DateLayout is the canonical layout used when rendering date values.
const DateLayout = "2006-01-02"

// Value is a tagged spreadsheet cell value.
type Value struct {
	Date time.Time
	Num  decimal.Decimal
	Str  string
	Kind Kind
}

// EmptyValue returns a blank value.
func EmptyValue() Value { return Value{Kind: KindEmpty} }

// StringValue wraps free text. Whitespace-only text is treated as empty.
func StringValue(s string) Value {
	if strings.TrimSpace(s) == "" {
		return EmptyValue()
	}
	return Value{Kind: KindString, Str: s}
}

// NumberValue wraps a decimal.
func NumberValue(d decimal.Decimal) Value { return Value{Kind: KindNumber, Num: d} }

// DateValue wraps a date.
func DateValue(t time.Time) Value { return Value{Kind: KindDate, Date: t} }

// IsEmpty reports whether the value is blank.
func (v Value) IsEmpty() bool { return v.Kind == KindEmpty }

// Decimal returns the numeric reading of the value. Strings are parsed with
// ParseAmount so "₹1,250.00" still counts as a number.
func (v Value) Decimal() (decimal.Decimal, bool) {
	switch v.Kind {
	case KindNumber:
		return v.Num, true
	case KindString:
		return ParseAmount(v.Str)
	case KindEmpty, KindDate:
		return decimal.Zero, false
	default:
		return decimal.Zero, false
	}
}

// String renders the value the way it would appear in a sheet.
func (v Value) String() string {
	switch v.Kind {
	case KindString:
		return v.Str
	case KindNumber:
		return v.Num.String()
	case KindDate:
		return v.Date.Format(DateLayout)
	case KindEmpty:
		return ""
	default:
		return ""
	}
}

// ParseAmount parses a money-like string, ignoring currency symbols,
// thousands separators and surrounding spaces. Parenthesised amounts are negative.
func ParseAmount(s string) (decimal.Decimal, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, false
	}

	negative := false
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		negative = true
		s = s[1 : len(s)-1]
	}

	var b strings.Builder
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9', r == '.', r == '-', r == '+':
			b.WriteRune(r)
		case r == ',', r == ' ', r == '\u00a0', r == '_':
			// separators
		case strings.ContainsRune("$€£¥₹₨", r):
			// currency marks
		default:
			return decimal.Zero, false
		}
	}

	d, err := decimal.NewFromString(b.String())
	if err != nil {
		return decimal.Zero, false
	}
	if negative {
		d = d.Neg()
	}
	return d, true
}

// Attribute is one named column value from the source row.
type Attribute struct {
	Key   string
	Value Value
}

// Attributes is an ordered key→value mapping that preserves column order.
type Attributes []Attribute

// Get returns the value stored under exactly key.
func (a Attributes) Get(key string) (Value, bool) {
	for _, attr := range a {
		if attr.Key == key {
			return attr.Value, true
		}
	}
	return EmptyValue(), false
}

// Keys returns the attribute keys in column order.
func (a Attributes) Keys() []string {
	keys := make([]string, len(a))
	for i, attr := range a {
		keys[i] = attr.Key
	}
	return keys
}

// Clone returns a copy that shares no backing array with a.
func (a Attributes) Clone() Attributes {
	if a == nil {
		return nil
	}
	out := make(Attributes, len(a))
	copy(out, a)
	return out
}

type attributeJSON struct {
	Key   string `json:"key"`
	Kind  string `json:"kind"`
	Value string `json:"value,omitempty"`
}

// MarshalJSON encodes attributes as an ordered array.
func (a Attributes) MarshalJSON() ([]byte, error) {
	out := make([]attributeJSON, len(a))
	for i, attr := range a {
		out[i] = attributeJSON{Key: attr.Key, Kind: attr.Value.Kind.String(), Value: attr.Value.String()}
	}
	return json.Marshal(out)
}

// UnmarshalJSON decodes the array form written by MarshalJSON.
func (a *Attributes) UnmarshalJSON(data []byte) error {
	var raw []attributeJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	out := make(Attributes, 0, len(raw))
	for _, r := range raw {
		var v Value
		switch r.Kind {
		case "string":
			v = Value{Kind: KindString, Str: r.Value}
		case "number":
			d, err := decimal.NewFromString(r.Value)
			if err != nil {
				return fmt.Errorf("attribute %q: %w", r.Key, err)
			}
			v = NumberValue(d)
		case "date":
			t, err := time.Parse(DateLayout, r.Value)
			if err != nil {
				return fmt.Errorf("attribute %q: %w", r.Key, err)
			}
			v = DateValue(t)
		case "empty":
			v = EmptyValue()
		default:
			return fmt.Errorf("attribute %q: unknown kind %q", r.Key, r.Kind)
		}
		out = append(out, Attribute{Key: r.Key, Value: v})
	}
	*a = out
	return nil
}
