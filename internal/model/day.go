package model

import "time"

// AbsenceOrigin distinguishes HR-system absences from user-entered ones.
type AbsenceOrigin string

const (
	AbsenceHR     AbsenceOrigin = "hr"
	AbsenceManual AbsenceOrigin = "manual"
)

// AbsenceType classifies an absence.
type AbsenceType string

const (
	AbsenceVacation AbsenceType = "vacation"
	AbsenceSick     AbsenceType = "sick"
	AbsenceHoliday  AbsenceType = "holiday"
	AbsenceOther    AbsenceType = "other"
)

// Absence is a full- or half-day non-working period over [StartDate, EndDate].
type Absence struct {
	ID        string        `json:"id"`
	Origin    AbsenceOrigin `json:"origin"`
	Type      AbsenceType   `json:"type"`
	StartDate string        `json:"start_date"`
	EndDate   string        `json:"end_date"`
	HalfDay   bool          `json:"half_day"`
	// HalfDayStart and HalfDayEnd mark only the first or last day as half.
	HalfDayStart bool      `json:"half_day_start,omitempty"`
	HalfDayEnd   bool      `json:"half_day_end,omitempty"`
	Status       string    `json:"status,omitempty"`
	Note         string    `json:"note,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

// Covers reports whether date falls inside the absence.
func (a Absence) Covers(date string) bool {
	return date >= a.StartDate && date <= a.EndDate
}

// HalfDayOn reports whether the absence only takes half of date.
func (a Absence) HalfDayOn(date string) bool {
	if a.HalfDay {
		return true
	}
	if a.HalfDayStart && date == a.StartDate {
		return true
	}
	return a.HalfDayEnd && date == a.EndDate
}

// Presence is the attendance aggregated over one day.
type Presence struct {
	From         string  `json:"from"`
	To           string  `json:"to,omitempty"`
	Hours        float64 `json:"hours"`
	IsHomeOffice bool    `json:"is_home_office"`
}

// DayTotals are the summed hours per source.
type DayTotals struct {
	Billing  float64 `json:"billing"`
	Issues   float64 `json:"issues"`
	Calendar float64 `json:"calendar"`
	Actual   float64 `json:"actual"`
}

// DayOverview is the per-day balance picture. It is computed on every call
// and never cached.
type DayOverview struct {
	Date          string        `json:"date"`
	DayOfWeek     int           `json:"day_of_week"`
	IsWeekend     bool          `json:"is_weekend"`
	TargetHours   float64       `json:"target_hours"`
	RequiredHours float64       `json:"required_hours"`
	Absence       *Absence      `json:"absence,omitempty"`
	Presence      *Presence     `json:"presence,omitempty"`
	Entries       SourceEntries `json:"entries"`
	Totals        DayTotals     `json:"totals"`
	Balance       float64       `json:"balance"`
	// PresenceBalance is billed hours minus presence hours; nil without presence.
	PresenceBalance *float64 `json:"presence_balance,omitempty"`
}
