package match_test

import (
	"testing"

	"github.com/Tiliavir/tally/internal/match"
	"github.com/Tiliavir/tally/internal/model"
)

func TestMatchableEvents(t *testing.T) {
	b := []model.UnifiedEntry{
		billing("b1", 1, "", "evt-1", ""),
		billing("b2", 0.5, "", "", " Team Standup "),
	}
	allDay := calendar("c4", 8, "evt-4", "Offsite")
	allDay.Metadata.Calendar.IsAllDay = true
	c := []model.UnifiedEntry{
		calendar("c1", 1, "evt-1", "Planning"),
		calendar("c2", 0.25, "evt-2", "Team Standup"),
		calendar("c3", 0, "evt-3", "Quick sync"),
		allDay,
	}

	got := match.MatchableEvents(b, c)
	want := []match.MatchableEvent{
		{EventID: "evt-1", Title: "Planning", Hours: 1, Booked: true},
		{EventID: "evt-2", Title: "Team Standup", Hours: 0.25, Booked: true},
		{EventID: "evt-3", Title: "Quick sync", Hours: 0.25, Booked: false},
	}
	if len(got) != len(want) {
		t.Fatalf("MatchableEvents = %+v, want %+v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("event[%d] = %+v, want %+v", i, got[i], want[i])
		}
	}
	if !match.HasUnbooked(got) {
		t.Error("HasUnbooked = false, want true")
	}
	if match.HasUnbooked(got[:2]) {
		t.Error("HasUnbooked(booked only) = true")
	}
}
