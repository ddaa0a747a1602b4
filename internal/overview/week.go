package overview

import (
	"github.com/shopspring/decimal"

	"github.com/Tiliavir/tally/internal/model"
	"github.com/Tiliavir/tally/internal/timecalc"
)

// Week is the Monday-to-Sunday roll-up of seven day overviews.
type Week struct {
	WeekNumber    int                 `json:"week_number"`
	Year          int                 `json:"year"`
	StartDate     string              `json:"start_date"`
	EndDate       string              `json:"end_date"`
	Days          []model.DayOverview `json:"days"`
	RequiredHours float64             `json:"required_hours"`
	BilledHours   float64             `json:"billed_hours"`
	Balance       float64             `json:"balance"`
}

// BuildWeek builds the overview of the ISO week containing date.
func BuildWeek(date string, entries model.SourceEntries, s Settings, absences AbsenceLookup, presences PresenceLookup) (Week, error) {
	from, to, err := timecalc.WeekRange(date)
	if err != nil {
		return Week{}, err
	}
	dates, err := timecalc.DatesBetween(from, to)
	if err != nil {
		return Week{}, err
	}
	start, _ := timecalc.ParseDate(from)
	year, week := start.ISOWeek()

	w := Week{WeekNumber: week, Year: year, StartDate: from, EndDate: to}
	required, billed := decimal.Zero, decimal.Zero
	for _, d := range dates {
		day := BuildDayOverview(d, entries, s, absences, presences)
		w.Days = append(w.Days, day)
		required = required.Add(decimal.NewFromFloat(day.RequiredHours))
		billed = billed.Add(decimal.NewFromFloat(day.Totals.Billing))
	}
	w.RequiredHours = round2(required)
	w.BilledHours = round2(billed)
	w.Balance = round2(billed.Sub(required))
	return w, nil
}

// Days returns the overviews for every date in [from, to].
func Days(from, to string, entries model.SourceEntries, s Settings, absences AbsenceLookup, presences PresenceLookup) ([]model.DayOverview, error) {
	dates, err := timecalc.DatesBetween(from, to)
	if err != nil {
		return nil, err
	}
	out := make([]model.DayOverview, 0, len(dates))
	for _, d := range dates {
		out = append(out, BuildDayOverview(d, entries, s, absences, presences))
	}
	return out, nil
}
