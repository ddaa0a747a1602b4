package match

import "github.com/Tiliavir/tally/internal/model"

// MatchableEvent is a calendar event that could be booked as billing time.
type MatchableEvent struct {
	EventID string  `json:"event_id"`
	Title   string  `json:"title"`
	Hours   float64 `json:"hours"`
	// Booked is set when a billing entry already links the event, by
	// external id or by a description equal to the event title.
	Booked bool `json:"booked"`
}

// defaultEventHours is proposed for events whose duration is zero.
const defaultEventHours = 0.25

// MatchableEvents lists the calendar events of a day with their booked state.
// Inputs are expected to be the entries of one date.
func MatchableEvents(billing, calendar []model.UnifiedEntry) []MatchableEvent {
	bookedIDs := map[string]bool{}
	bookedText := map[string]bool{}
	for _, e := range billing {
		if id := externalID(e); id != "" {
			bookedIDs[id] = true
		}
		if d := trimmedDescription(e); d != "" {
			bookedText[d] = true
		}
	}

	out := make([]MatchableEvent, 0, len(calendar))
	for _, e := range calendar {
		if m := e.Metadata.Calendar; m != nil && m.IsAllDay {
			continue
		}
		hours := e.Hours
		if hours == 0 {
			hours = defaultEventHours
		}
		id := eventID(e)
		out = append(out, MatchableEvent{
			EventID: id,
			Title:   e.Title,
			Hours:   hours,
			Booked:  bookedIDs[id] || bookedText[trimmedTitle(e)],
		})
	}
	return out
}

// HasUnbooked reports whether any event still needs booking.
func HasUnbooked(events []MatchableEvent) bool {
	for _, e := range events {
		if !e.Booked {
			return true
		}
	}
	return false
}
