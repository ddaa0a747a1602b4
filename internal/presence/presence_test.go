package presence_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Tiliavir/tally/internal/moco"
	"github.com/Tiliavir/tally/internal/presence"
)

type fakeFetcher struct {
	calls     int
	presences []moco.Presence
	err       error
}

func (f *fakeFetcher) GetPresences(_ context.Context, from, to string) ([]moco.Presence, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.presences, nil
}

func TestAggregate(t *testing.T) {
	now := time.Date(2025, 3, 3, 17, 30, 0, 0, time.Local)
	tests := []struct {
		name      string
		in        []moco.Presence
		wantFrom  string
		wantTo    string
		wantHours float64
		wantHome  bool
	}{
		{
			name:      "single",
			in:        []moco.Presence{{From: "08:00", To: "16:30"}},
			wantFrom:  "08:00",
			wantTo:    "16:30",
			wantHours: 8.5,
		},
		{
			name: "split with break and home office",
			in: []moco.Presence{
				{From: "13:00", To: "17:00", IsHomeOffice: true},
				{From: "08:00", To: "12:00", Break: 30},
			},
			wantFrom:  "08:00",
			wantTo:    "17:00",
			wantHours: 7.5,
			wantHome:  true,
		},
		{
			name:      "open presence runs until now",
			in:        []moco.Presence{{From: "09:00"}},
			wantFrom:  "09:00",
			wantTo:    "",
			wantHours: 8.5,
		},
		{
			name:      "break longer than presence",
			in:        []moco.Presence{{From: "09:00", To: "09:15", Break: 60}},
			wantFrom:  "09:00",
			wantTo:    "09:15",
			wantHours: 0,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := presence.Aggregate(tt.in, now)
			if got == nil {
				t.Fatal("Aggregate = nil")
			}
			if got.From != tt.wantFrom || got.To != tt.wantTo || got.Hours != tt.wantHours || got.IsHomeOffice != tt.wantHome {
				t.Errorf("Aggregate = %+v, want from=%s to=%s hours=%v home=%v", got, tt.wantFrom, tt.wantTo, tt.wantHours, tt.wantHome)
			}
		})
	}
	if got := presence.Aggregate(nil, now); got != nil {
		t.Errorf("Aggregate(nil) = %+v, want nil", got)
	}
}

func TestCache_TTLAndCoverage(t *testing.T) {
	f := &fakeFetcher{presences: []moco.Presence{{Date: "2025-03-03", From: "08:00", To: "12:00"}}}
	c := presence.New(f, nil)
	now := time.Date(2025, 3, 3, 12, 0, 0, 0, time.UTC)
	c.SetClock(func() time.Time { return now })
	ctx := context.Background()

	if err := c.Fetch(ctx, "2025-03-01", "2025-03-31"); err != nil {
		t.Fatal(err)
	}
	if err := c.Fetch(ctx, "2025-03-03", "2025-03-09"); err != nil {
		t.Fatal(err)
	}
	if f.calls != 1 {
		t.Errorf("calls after covered fetch = %d, want 1", f.calls)
	}

	if err := c.Fetch(ctx, "2025-02-24", "2025-03-02"); err != nil {
		t.Fatal(err)
	}
	if f.calls != 2 {
		t.Errorf("calls after uncovered fetch = %d, want 2", f.calls)
	}

	now = now.Add(presence.TTL)
	if err := c.Fetch(ctx, "2025-02-24", "2025-03-02"); err != nil {
		t.Fatal(err)
	}
	if f.calls != 3 {
		t.Errorf("calls after TTL = %d, want 3", f.calls)
	}
}

func TestCache_PresenceFor(t *testing.T) {
	f := &fakeFetcher{presences: []moco.Presence{
		{Date: "2025-03-03", From: "08:00", To: "12:00"},
		{Date: "2025-03-03", From: "12:30", To: "16:30"},
	}}
	c := presence.New(f, nil)
	if err := c.Fetch(context.Background(), "2025-03-01", "2025-03-31"); err != nil {
		t.Fatal(err)
	}
	p := c.PresenceFor("2025-03-03")
	if p == nil || p.Hours != 8 {
		t.Errorf("PresenceFor = %+v, want 8 hours", p)
	}
	if c.PresenceFor("2025-03-04") != nil {
		t.Error("PresenceFor day without records should be nil")
	}

	c.Invalidate()
	if c.PresenceFor("2025-03-03") != nil {
		t.Error("PresenceFor after Invalidate should be nil")
	}
}

func TestCache_FetchErrorKeepsData(t *testing.T) {
	f := &fakeFetcher{presences: []moco.Presence{{Date: "2025-03-03", From: "08:00", To: "10:00"}}}
	c := presence.New(f, nil)
	ctx := context.Background()
	if err := c.Fetch(ctx, "2025-03-01", "2025-03-31"); err != nil {
		t.Fatal(err)
	}
	f.err = errors.New("boom")
	if err := c.Fetch(ctx, "2025-04-01", "2025-04-30"); err == nil {
		t.Fatal("expected error")
	}
	if c.PresenceFor("2025-03-03") == nil {
		t.Error("previous data lost after failed fetch")
	}
}
