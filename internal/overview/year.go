package overview

import (
	"github.com/shopspring/decimal"

	"github.com/Tiliavir/tally/internal/model"
)

// Year is the year-to-date balance over the working days before a date.
type Year struct {
	Year         int     `json:"year"`
	Through      string  `json:"through"`
	Months       int     `json:"months"`
	MonthsCached int     `json:"months_cached"`
	TargetHours  float64 `json:"target_hours"`
	ActualHours  float64 `json:"actual_hours"`
	Balance      float64 `json:"balance"`
}

// AddDays folds days dated strictly before y.Through into the totals.
// Weekends are skipped.
func (y *Year) AddDays(days []model.DayOverview) {
	target := decimal.NewFromFloat(y.TargetHours)
	actual := decimal.NewFromFloat(y.ActualHours)
	balance := decimal.NewFromFloat(y.Balance)
	for _, d := range days {
		if d.IsWeekend || d.Date >= y.Through {
			continue
		}
		target = target.Add(decimal.NewFromFloat(d.RequiredHours))
		actual = actual.Add(decimal.NewFromFloat(d.Totals.Actual))
		balance = balance.Add(decimal.NewFromFloat(d.Balance))
	}
	y.TargetHours = round2(target)
	y.ActualHours = round2(actual)
	y.Balance = round2(balance)
}
