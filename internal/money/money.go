// Package money parses loosely formatted amounts and adds them up without
// floating point drift.
package money

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"unicode"

	"github.com/shopspring/decimal"
)

// ErrNotANumber is returned when an amount cannot be read as a number.
var ErrNotANumber = errors.New("not a number")

// Amount is a float64 that accepts JSON numbers, numeric strings and null.
// Vision models and HTML forms both tend to send "1,200" or "¥980" where a
// number is expected.
type Amount float64

// Float64 returns the amount as a plain float64.
func (a Amount) Float64() float64 {
	return float64(a)
}

// UnmarshalJSON implements json.Unmarshaler.
func (a *Amount) UnmarshalJSON(b []byte) error {
	raw := strings.TrimSpace(string(b))
	if raw == "null" {
		*a = 0
		return nil
	}

	if strings.HasPrefix(raw, `"`) {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return fmt.Errorf("decoding amount: %w", err)
		}
		v, err := Parse(s)
		if err != nil {
			return err
		}
		*a = Amount(v)
		return nil
	}

	d, err := decimal.NewFromString(raw)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrNotANumber, raw)
	}
	*a = Amount(d.InexactFloat64())
	return nil
}

// Parse converts user or model supplied text into a number. Blank input is 0.
// Currency symbols, the yen suffix, thousands separators and spaces are
// ignored.
func Parse(s string) (float64, error) {
	cleaned := strings.TrimSpace(s)
	cleaned = strings.TrimSuffix(cleaned, "円")
	cleaned = strings.Map(func(r rune) rune {
		switch {
		case r == ',' || r == '_':
			return -1
		case unicode.IsSpace(r):
			return -1
		case unicode.Is(unicode.Sc, r):
			return -1
		}
		return r
	}, cleaned)

	if cleaned == "" {
		return 0, nil
	}

	d, err := decimal.NewFromString(cleaned)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrNotANumber, s)
	}
	return d.InexactFloat64(), nil
}

// Total accumulates amounts exactly. The zero value is ready to use.
type Total struct {
	sum decimal.Decimal
}

// Add adds v to the running total.
func (t *Total) Add(v float64) {
	t.sum = t.sum.Add(decimal.NewFromFloat(v))
}

// Float64 returns the running total.
func (t Total) Float64() float64 {
	return t.sum.InexactFloat64()
}

// Decimal returns the running total as a decimal.
func (t Total) Decimal() decimal.Decimal {
	return t.sum
}

// Sum adds values exactly and returns the result as a float64.
func Sum(values ...float64) float64 {
	var t Total
	for _, v := range values {
		t.Add(v)
	}
	return t.Float64()
}
