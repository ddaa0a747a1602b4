package timecalc

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// DateLayout is the calendar date format used for every entry date.
const DateLayout = "2006-01-02"

// ErrInvalidDate is returned for strings that are not YYYY-MM-DD dates.
var ErrInvalidDate = errors.New("invalid date")

// ParseDate parses a YYYY-MM-DD string as midnight UTC.
func ParseDate(s string) (time.Time, error) {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w %q", ErrInvalidDate, s)
	}
	return t, nil
}

// FormatDate formats t as YYYY-MM-DD.
func FormatDate(t time.Time) string {
	return t.Format(DateLayout)
}

// Today returns the local date as YYYY-MM-DD.
func Today() string {
	return FormatDate(time.Now())
}

// DatePart returns the leading YYYY-MM-DD of an ISO timestamp, or "" if the
// string is too short to contain one.
func DatePart(ts string) string {
	if len(ts) < len(DateLayout) {
		return ""
	}
	return ts[:len(DateLayout)]
}

// MonthStart returns the first day of the month containing date.
func MonthStart(date string) (string, error) {
	t, err := ParseDate(date)
	if err != nil {
		return "", err
	}
	return FormatDate(time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)), nil
}

// ParseMonth turns a YYYY-MM month into its first day. A full date is
// accepted too and yields the start of its month.
func ParseMonth(s string) (string, error) {
	if len(s) == len("2006-01") {
		s += "-01"
	}
	return MonthStart(s)
}

// MonthEnd returns the last day of the month containing date.
func MonthEnd(date string) (string, error) {
	t, err := ParseDate(date)
	if err != nil {
		return "", err
	}
	return FormatDate(time.Date(t.Year(), t.Month()+1, 0, 0, 0, 0, 0, time.UTC)), nil
}

// MonthRange returns the first and last day of the month containing date.
func MonthRange(date string) (string, string, error) {
	from, err := MonthStart(date)
	if err != nil {
		return "", "", err
	}
	to, err := MonthEnd(date)
	if err != nil {
		return "", "", err
	}
	return from, to, nil
}

// YearMonths returns the first day of every month from January of date's
// year through the month containing date.
func YearMonths(date string) ([]string, error) {
	t, err := ParseDate(date)
	if err != nil {
		return nil, err
	}
	months := make([]string, 0, int(t.Month()))
	for m := time.January; m <= t.Month(); m++ {
		months = append(months, FormatDate(time.Date(t.Year(), m, 1, 0, 0, 0, 0, time.UTC)))
	}
	return months, nil
}

// WeekdayIndex returns 0 for Monday through 6 for Sunday.
func WeekdayIndex(date string) (int, error) {
	t, err := ParseDate(date)
	if err != nil {
		return 0, err
	}
	// Go's weekday: Sunday=0, Monday=1, …, Saturday=6
	return (int(t.Weekday()) + 6) % 7, nil
}

// IsWeekend reports whether a weekday index is Saturday or Sunday.
func IsWeekend(index int) bool {
	return index >= 5
}

// WeekRange returns the Monday and Sunday of the ISO week containing date.
func WeekRange(date string) (string, string, error) {
	idx, err := WeekdayIndex(date)
	if err != nil {
		return "", "", err
	}
	t, _ := ParseDate(date)
	monday := t.AddDate(0, 0, -idx)
	return FormatDate(monday), FormatDate(monday.AddDate(0, 0, 6)), nil
}

// DatesBetween lists every date in [from, to].
func DatesBetween(from, to string) ([]string, error) {
	start, err := ParseDate(from)
	if err != nil {
		return nil, err
	}
	end, err := ParseDate(to)
	if err != nil {
		return nil, err
	}
	var out []string
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		out = append(out, FormatDate(d))
	}
	return out, nil
}

// ClockMinutes parses "HH:MM" (seconds are ignored) into minutes past midnight.
func ClockMinutes(clock string) (int, error) {
	parts := strings.SplitN(clock, ":", 3)
	if len(parts) < 2 {
		return 0, fmt.Errorf("invalid clock time %q", clock)
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil {
		return 0, fmt.Errorf("invalid clock time %q: %w", clock, err)
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil {
		return 0, fmt.Errorf("invalid clock time %q: %w", clock, err)
	}
	return h*60 + m, nil
}

// ClockHours returns the hours between two "HH:MM" clock times, clamped at zero.
func ClockHours(from, to string) (float64, error) {
	f, err := ClockMinutes(from)
	if err != nil {
		return 0, err
	}
	t, err := ClockMinutes(to)
	if err != nil {
		return 0, err
	}
	return math.Max(0, float64(t-f)/60), nil
}

// ParseHours reads a positive duration given as decimal hours ("1.5") or as
// hours and minutes ("1:30").
func ParseHours(s string) (float64, error) {
	s = strings.TrimSpace(s)
	var hours float64
	if strings.Contains(s, ":") {
		m, err := ClockMinutes(s)
		if err != nil {
			return 0, fmt.Errorf("invalid hours %q", s)
		}
		hours = float64(m) / 60
	} else {
		h, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, fmt.Errorf("invalid hours %q", s)
		}
		hours = h
	}
	if hours <= 0 || math.IsNaN(hours) || math.IsInf(hours, 0) {
		return 0, fmt.Errorf("hours must be positive, got %q", s)
	}
	return hours, nil
}

// FormatHours formats decimal hours like "1h 30m" or "45m".
func FormatHours(hours float64) string {
	sign := ""
	if hours < 0 {
		sign = "-"
		hours = -hours
	}
	total := int64(math.Round(hours * 60))
	h := total / 60
	m := total % 60
	if h > 0 {
		return fmt.Sprintf("%s%dh %dm", sign, h, m)
	}
	return fmt.Sprintf("%s%dm", sign, m)
}
