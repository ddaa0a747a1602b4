package msgraph

import (
	"fmt"
	"time"
)

// FilterOptions selects which calendar events are kept for display.
type FilterOptions struct {
	ShowDeclined  bool
	ShowFree      bool
	ShowCancelled bool
	ShowPrivate   bool
}

func loadLocation(tz string) *time.Location {
	if tz != "" {
		if l, err := time.LoadLocation(tz); err == nil {
			return l
		}
	}
	return time.UTC
}

// ParseTime parses a Graph API dateTime string in the given timezone.
// Graph returns times like "2026-02-27T09:00:00.0000000" without a zone suffix
// when a Prefer: outlook.timezone header is set.
func ParseTime(dt, tz string) (time.Time, error) {
	// Try RFC3339 first (includes timezone offset).
	if t, err := time.Parse(time.RFC3339, dt); err == nil {
		return t, nil
	}
	// Try RFC3339Nano.
	if t, err := time.Parse(time.RFC3339Nano, dt); err == nil {
		return t, nil
	}

	loc := loadLocation(tz)

	// Graph returns fractional seconds: "2026-02-27T09:00:00.0000000"
	for _, layout := range []string{
		"2006-01-02T15:04:05.0000000",
		"2006-01-02T15:04:05",
	} {
		if t, err := time.ParseInLocation(layout, dt, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("cannot parse graph time %q", dt)
}

// keep reports whether the event passes the filter.
func keep(event CalendarEvent, opts FilterOptions) bool {
	if event.IsCancelled && !opts.ShowCancelled {
		return false
	}
	if event.ShowAs == "free" && !opts.ShowFree {
		return false
	}
	if event.ResponseStatus.Response == "declined" && !opts.ShowDeclined {
		return false
	}
	if event.Sensitivity == "private" && !opts.ShowPrivate {
		return false
	}
	return event.Start.DateTime != ""
}

// FilterEvents drops the events hidden by opts, preserving order.
func FilterEvents(events []CalendarEvent, opts FilterOptions) []CalendarEvent {
	out := make([]CalendarEvent, 0, len(events))
	for _, e := range events {
		if keep(e, opts) {
			out = append(out, e)
		}
	}
	return out
}
