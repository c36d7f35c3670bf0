// Package dashboard aggregates expenses over a calendar month or year and
// renders the breakdown as a chart.
package dashboard

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jinzhu/now"
)

const (
	dateLayout  = "2006-01-02"
	monthLayout = "2006-01"
	yearLayout  = "2006"
)

// ErrInvalidRange is returned for unknown views and malformed periods.
var ErrInvalidRange = errors.New("invalid dashboard range")

// View selects the granularity of the dashboard.
type View string

const (
	ViewMonth View = "month"
	ViewYear  View = "year"
)

// Range is one calendar month or year.
type Range struct {
	View  View
	Start time.Time
}

// ParseRange builds a range from a view ("month" by default) and a period
// ("YYYY-MM" for months, "YYYY" for years). An empty period means the period
// containing today.
func ParseRange(view, period string, today time.Time) (Range, error) {
	v := View(strings.ToLower(strings.TrimSpace(view)))
	if v == "" {
		v = ViewMonth
	}
	period = strings.TrimSpace(period)

	var layout string
	switch v {
	case ViewMonth:
		layout = monthLayout
	case ViewYear:
		layout = yearLayout
	default:
		return Range{}, fmt.Errorf("%w: unknown view %q", ErrInvalidRange, view)
	}

	anchor := today
	if period != "" {
		t, err := time.ParseInLocation(layout, period, today.Location())
		if err != nil {
			return Range{}, fmt.Errorf("%w: period %q must be %s", ErrInvalidRange, period, layout)
		}
		anchor = t
	}
	return Range{View: v, Start: beginning(v, anchor)}, nil
}

func beginning(v View, t time.Time) time.Time {
	if v == ViewYear {
		return now.With(t).BeginningOfYear()
	}
	return now.With(t).BeginningOfMonth()
}

// Shift moves the range by n months or years.
func (r Range) Shift(n int) Range {
	if r.View == ViewYear {
		return Range{View: r.View, Start: r.Start.AddDate(n, 0, 0)}
	}
	return Range{View: r.View, Start: r.Start.AddDate(0, n, 0)}
}

// Period is the range in the form ParseRange accepts.
func (r Range) Period() string {
	if r.View == ViewYear {
		return r.Start.Format(yearLayout)
	}
	return r.Start.Format(monthLayout)
}

// Bounds returns the first and last day of the range as YYYY-MM-DD.
func (r Range) Bounds() (from, to string) {
	n := now.With(r.Start)
	end := n.EndOfMonth()
	if r.View == ViewYear {
		end = n.EndOfYear()
	}
	return r.Start.Format(dateLayout), end.Format(dateLayout)
}

// Contains reports whether a YYYY-MM-DD date falls within the range.
func (r Range) Contains(date string) bool {
	if _, err := time.Parse(dateLayout, date); err != nil {
		return false
	}
	from, to := r.Bounds()
	return date >= from && date <= to
}

func (r Range) String() string {
	return string(r.View) + " " + r.Period()
}
