package dashboard

import (
	"errors"
	"fmt"

	"github.com/go-analyze/charts"
)

// ErrNoData is returned when there is nothing to chart.
var ErrNoData = errors.New("no expenses to chart")

// RenderChart draws the summary as a PNG: a category pie for months, a
// spending-per-month bar chart for years.
func RenderChart(s Summary) ([]byte, error) {
	if s.Count == 0 {
		return nil, ErrNoData
	}

	var (
		p   *charts.Painter
		err error
	)
	if s.View == ViewYear {
		p, err = charts.BarRender(
			[][]float64{s.Months},
			charts.TitleOptionFunc(charts.TitleOption{
				Text: fmt.Sprintf("Spending by Month - %s", s.Period),
			}),
			charts.LegendLabelsOptionFunc([]string{"Spending"}),
		)
	} else {
		values := make([]float64, len(s.Categories))
		names := make([]string, len(s.Categories))
		for i, c := range s.Categories {
			values[i] = c.Amount
			names[i] = c.Category
		}
		p, err = charts.PieRender(
			values,
			charts.TitleOptionFunc(charts.TitleOption{
				Text: fmt.Sprintf("Expense Breakdown - %s", s.Period),
			}),
			charts.LegendLabelsOptionFunc(names),
		)
	}
	if err != nil {
		return nil, fmt.Errorf("creating chart: %w", err)
	}

	buf, err := p.Bytes()
	if err != nil {
		return nil, fmt.Errorf("rendering chart: %w", err)
	}
	return buf, nil
}
