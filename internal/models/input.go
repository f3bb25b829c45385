package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// GSTIncluding marks prices that already contain tax
const GSTIncluding = "including"

// GST is a tax rate in percent, or the literal "including"
type GST string

// UnmarshalJSON accepts both numbers and strings
func (g *GST) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*g = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*g = GST(strings.TrimSpace(s))
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("gst: %w", err)
	}
	*g = GST(n.String())
	return nil
}

// Valid reports whether the value is "including" or a non-negative number
func (g GST) Valid() bool {
	if strings.EqualFold(string(g), GSTIncluding) {
		return true
	}
	d, err := decimal.NewFromString(string(g))
	return err == nil && !d.IsNegative()
}

// Rate returns the percentage applied on top of the unit price
func (g GST) Rate() decimal.Decimal {
	if strings.EqualFold(string(g), GSTIncluding) {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(string(g))
	if err != nil {
		return decimal.Zero
	}
	return d
}

// FlexDecimal decodes numbers sent as JSON numbers, numeric strings or blanks
type FlexDecimal struct {
	Value decimal.Decimal
	Set   bool
}

// UnmarshalJSON implements json.Unmarshaler
func (f *FlexDecimal) UnmarshalJSON(b []byte) error {
	*f = FlexDecimal{}
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		return nil
	}
	raw := string(b)
	if len(b) > 0 && b[0] == '"' {
		if err := json.Unmarshal(b, &raw); err != nil {
			return err
		}
	}
	d, ok, err := ParseDecimal(raw)
	if err != nil {
		return err
	}
	f.Value, f.Set = d, ok
	return nil
}

// MarshalJSON implements json.Marshaler
func (f FlexDecimal) MarshalJSON() ([]byte, error) {
	if !f.Set {
		return []byte("null"), nil
	}
	return []byte(f.Value.String()), nil
}

// OrZero returns the value or zero when unset
func (f FlexDecimal) OrZero() decimal.Decimal {
	if !f.Set {
		return decimal.Zero
	}
	return f.Value
}

// ParseDecimal parses a numeric string. Blank or "N/A" input reports ok=false without error.
func ParseDecimal(s string) (decimal.Decimal, bool, error) {
	s = strings.TrimSpace(s)
	if s == "" || strings.EqualFold(s, "N/A") {
		return decimal.Zero, false, nil
	}
	d, err := decimal.NewFromString(strings.ReplaceAll(s, ",", ""))
	if err != nil {
		return decimal.Zero, false, fmt.Errorf("%q is not a number", s)
	}
	return d, true, nil
}

// StringList decodes either a JSON array or a comma separated string
type StringList []string

// UnmarshalJSON implements json.Unmarshaler
func (l *StringList) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	switch {
	case bytes.Equal(b, []byte("null")):
		*l = nil
	case len(b) > 0 && b[0] == '[':
		var items []string
		if err := json.Unmarshal(b, &items); err != nil {
			return err
		}
		*l = StringList(items)
	case len(b) > 0 && b[0] == '"':
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*l = SplitList(s)
	default:
		*l = StringList{string(b)}
	}
	return nil
}

// SplitList splits on commas, trimming blanks away
func SplitList(s string) StringList {
	out := StringList{}
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// FlexInt decodes integers sent as numbers or numeric strings
type FlexInt struct {
	Value int
	Set   bool
}

// UnmarshalJSON implements json.Unmarshaler
func (f *FlexInt) UnmarshalJSON(b []byte) error {
	*f = FlexInt{}
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		return nil
	}
	raw := string(b)
	if len(b) > 0 && b[0] == '"' {
		if err := json.Unmarshal(b, &raw); err != nil {
			return err
		}
	}
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return fmt.Errorf("%q is not a number", raw)
	}
	n, err := WholeNumber(d)
	if err != nil {
		return err
	}
	f.Value, f.Set = n, true
	return nil
}

var (
	minWhole = decimal.NewFromInt(math.MinInt32)
	maxWhole = decimal.NewFromInt(math.MaxInt32)
)

// WholeNumber converts d to an int, rejecting fractions and values outside the int32 range
func WholeNumber(d decimal.Decimal) (int, error) {
	if !d.Equal(d.Truncate(0)) {
		return 0, fmt.Errorf("%s is not a whole number", d.String())
	}
	if d.LessThan(minWhole) || d.GreaterThan(maxWhole) {
		return 0, fmt.Errorf("%s is out of range", d.String())
	}
	return int(d.IntPart()), nil
}

var dateLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02",
	"02-01-2006",
	"02/01/2006",
	"01/02/2006",
	"2006/01/02",
}

// ParseDate parses the date formats clients and spreadsheets send
func ParseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// FlexDate decodes a date, leaving it unset when blank or unparsable
type FlexDate struct {
	Value time.Time
	Set   bool
}

// UnmarshalJSON implements json.Unmarshaler
func (f *FlexDate) UnmarshalJSON(b []byte) error {
	*f = FlexDate{}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return nil
	}
	f.Value, f.Set = ParseDate(s)
	return nil
}

// Ptr returns nil for an unset date
func (f FlexDate) Ptr() *time.Time {
	if !f.Set {
		return nil
	}
	t := f.Value
	return &t
}

// Text decodes strings, numbers and booleans into a trimmed string
type Text string

// UnmarshalJSON implements json.Unmarshaler
func (t *Text) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	switch {
	case bytes.Equal(b, []byte("null")):
		*t = ""
	case len(b) > 0 && b[0] == '"':
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*t = Text(strings.TrimSpace(s))
	case len(b) > 0 && (b[0] == '{' || b[0] == '['):
		return fmt.Errorf("expected text, got %s", b)
	default:
		*t = Text(b)
	}
	return nil
}

// String returns the plain value
func (t Text) String() string {
	return string(t)
}

// Flag decodes booleans sent as true/false, "true"/"false" or "Yes"/"No"
type Flag bool

// UnmarshalJSON implements json.Unmarshaler
func (f *Flag) UnmarshalJSON(b []byte) error {
	var t Text
	if err := t.UnmarshalJSON(b); err != nil {
		return err
	}
	*f = Flag(ParseFlag(string(t)))
	return nil
}

// ParseFlag reports whether s spells yes
func ParseFlag(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "true", "yes", "y", "1":
		return true
	}
	return false
}
