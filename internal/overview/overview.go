// Package overview computes a day's required hours, booked hours and balance.
// Live and cached entry sets both go through BuildDayOverview so a past day
// and today are always computed the same way.
package overview

import (
	"github.com/shopspring/decimal"

	"github.com/Tiliavir/tally/internal/model"
	"github.com/Tiliavir/tally/internal/timecalc"
)

// DefaultWeekdayHours is the target table used when none is configured,
// indexed Monday=0 to Sunday=6.
var DefaultWeekdayHours = [7]float64{8, 8, 8, 8, 8, 0, 0}

// Settings holds the booking targets.
type Settings struct {
	WeekdayHours [7]float64
}

// AbsenceLookup returns the absence in effect on a date, or nil.
type AbsenceLookup interface {
	AbsenceFor(date string) *model.Absence
}

// PresenceLookup returns the aggregated attendance of a date, or nil.
type PresenceLookup interface {
	PresenceFor(date string) *model.Presence
}

// BuildDayOverview combines the entries of date with its absence and
// presence. Either lookup may be nil. An unparseable date yields an
// overview holding only Date, with no target and no entries.
//
// Presence never raises the target: only the weekday table is the booking
// goal, and presence is reported as PresenceBalance next to it.
func BuildDayOverview(date string, entries model.SourceEntries, s Settings, absences AbsenceLookup, presences PresenceLookup) model.DayOverview {
	idx, err := timecalc.WeekdayIndex(date)
	if err != nil {
		return model.DayOverview{Date: date}
	}
	day := entries.ForDate(date)
	target := s.WeekdayHours[idx]

	var absence *model.Absence
	if absences != nil {
		absence = absences.AbsenceFor(date)
	}
	var presence *model.Presence
	if presences != nil {
		presence = presences.PresenceFor(date)
	}

	billing := sum(day.Billing)
	required := RequiredHours(target, absence, date)

	ov := model.DayOverview{
		Date:          date,
		DayOfWeek:     idx,
		IsWeekend:     timecalc.IsWeekend(idx),
		TargetHours:   target,
		RequiredHours: required,
		Absence:       absence,
		Presence:      presence,
		Entries:       day,
		Totals: model.DayTotals{
			Billing:  round2(billing),
			Issues:   round2(sum(day.Issues)),
			Calendar: round2(sum(day.Calendar)),
			Actual:   round2(billing),
		},
		Balance: round2(billing.Sub(decimal.NewFromFloat(required))),
	}
	if presence != nil {
		pb := round2(billing.Sub(decimal.NewFromFloat(presence.Hours)))
		ov.PresenceBalance = &pb
	}
	return ov
}

// RequiredHours reduces target by half for a half-day absence on date and to
// zero for a full-day one. The result is never negative.
func RequiredHours(target float64, absence *model.Absence, date string) float64 {
	if target < 0 {
		target = 0
	}
	if absence == nil || !absence.Covers(date) {
		return target
	}
	if absence.HalfDayOn(date) {
		return target / 2
	}
	return 0
}

func sum(entries []model.UnifiedEntry) decimal.Decimal {
	total := decimal.Zero
	for _, e := range entries {
		total = total.Add(decimal.NewFromFloat(e.Hours))
	}
	return total
}

// round2 rounds to cents with halves going up, so -0.125 becomes -0.12.
func round2(d decimal.Decimal) float64 {
	f, _ := d.Shift(2).Add(decimal.NewFromFloat(0.5)).Floor().Shift(-2).Float64()
	return f
}
