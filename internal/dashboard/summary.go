package dashboard

import (
	"cmp"
	"slices"
	"strings"
	"time"

	"github.com/zombor/kakeibo/internal/money"
)

const otherCategory = "Other"

// Entry is the part of an expense the dashboard aggregates.
type Entry struct {
	Date     string
	Category string
	Amount   float64
}

// CategoryTotal is the spending of one category.
type CategoryTotal struct {
	Category string  `json:"category"`
	Amount   float64 `json:"amount"`
	Count    int     `json:"count"`
}

// Summary is the aggregate of a range. Months is only set for year views and
// holds January at index 0.
type Summary struct {
	View       View            `json:"view"`
	Period     string          `json:"period"`
	From       string          `json:"from"`
	To         string          `json:"to"`
	Total      float64         `json:"total"`
	Count      int             `json:"count"`
	Categories []CategoryTotal `json:"categories"`
	Months     []float64       `json:"months,omitempty"`
}

// Summarize totals the entries dated within r. Entries outside r or with an
// unparseable date are ignored.
func Summarize(r Range, entries []Entry) Summary {
	from, to := r.Bounds()
	s := Summary{
		View:       r.View,
		Period:     r.Period(),
		From:       from,
		To:         to,
		Categories: []CategoryTotal{},
	}

	var total money.Total
	byCategory := make(map[string]*money.Total)
	counts := make(map[string]int)
	var months [12]money.Total

	for _, e := range entries {
		day, err := time.Parse(dateLayout, e.Date)
		if err != nil || !r.Contains(e.Date) {
			continue
		}
		category := strings.TrimSpace(e.Category)
		if category == "" {
			category = otherCategory
		}

		total.Add(e.Amount)
		s.Count++

		t, ok := byCategory[category]
		if !ok {
			t = &money.Total{}
			byCategory[category] = t
		}
		t.Add(e.Amount)
		counts[category]++

		if r.View == ViewYear {
			months[day.Month()-1].Add(e.Amount)
		}
	}

	s.Total = total.Float64()
	for category, t := range byCategory {
		s.Categories = append(s.Categories, CategoryTotal{
			Category: category,
			Amount:   t.Float64(),
			Count:    counts[category],
		})
	}
	slices.SortFunc(s.Categories, func(a, b CategoryTotal) int {
		if c := cmp.Compare(b.Amount, a.Amount); c != 0 {
			return c
		}
		return strings.Compare(a.Category, b.Category)
	})

	if r.View == ViewYear {
		s.Months = make([]float64, len(months))
		for i := range months {
			s.Months[i] = months[i].Float64()
		}
	}
	return s
}
