package timecalc_test

import (
	"errors"
	"reflect"
	"testing"

	"github.com/Tiliavir/tally/internal/timecalc"
)

func TestFormatHours(t *testing.T) {
	tests := []struct {
		hours float64
		want  string
	}{
		{0, "0m"},
		{0.25, "15m"},
		{1, "1h 0m"},
		{1.5, "1h 30m"},
		{7.75, "7h 45m"},
		{-2.5, "-2h 30m"},
	}
	for _, tt := range tests {
		got := timecalc.FormatHours(tt.hours)
		if got != tt.want {
			t.Errorf("FormatHours(%v) = %q, want %q", tt.hours, got, tt.want)
		}
	}
}

func TestMonthRange(t *testing.T) {
	tests := []struct {
		date     string
		from, to string
	}{
		{"2025-01-10", "2025-01-01", "2025-01-31"},
		{"2024-02-29", "2024-02-01", "2024-02-29"},
		{"2025-02-01", "2025-02-01", "2025-02-28"},
		{"2025-12-31", "2025-12-01", "2025-12-31"},
	}
	for _, tt := range tests {
		from, to, err := timecalc.MonthRange(tt.date)
		if err != nil {
			t.Fatalf("MonthRange(%q): %v", tt.date, err)
		}
		if from != tt.from || to != tt.to {
			t.Errorf("MonthRange(%q) = %s..%s, want %s..%s", tt.date, from, to, tt.from, tt.to)
		}
	}
}

func TestWeekdayIndex(t *testing.T) {
	tests := []struct {
		date string
		want int
	}{
		{"2025-03-03", 0}, // Monday
		{"2025-03-07", 4},
		{"2025-03-08", 5},
		{"2025-03-09", 6}, // Sunday
	}
	for _, tt := range tests {
		got, err := timecalc.WeekdayIndex(tt.date)
		if err != nil {
			t.Fatalf("WeekdayIndex(%q): %v", tt.date, err)
		}
		if got != tt.want {
			t.Errorf("WeekdayIndex(%q) = %d, want %d", tt.date, got, tt.want)
		}
	}
}

func TestWeekRange(t *testing.T) {
	// 2026-02-27 is a Friday (week 9).
	monday, sunday, err := timecalc.WeekRange("2026-02-27")
	if err != nil {
		t.Fatalf("WeekRange: %v", err)
	}
	if monday != "2026-02-23" {
		t.Errorf("WeekRange monday = %s, want 2026-02-23", monday)
	}
	if sunday != "2026-03-01" {
		t.Errorf("WeekRange sunday = %s, want 2026-03-01", sunday)
	}
}

func TestParseDate_Invalid(t *testing.T) {
	for _, s := range []string{"", "2025-13-01", "10.01.2025", "2025-02-30"} {
		if _, err := timecalc.ParseDate(s); !errors.Is(err, timecalc.ErrInvalidDate) {
			t.Errorf("ParseDate(%q) err = %v, want ErrInvalidDate", s, err)
		}
	}
}

func TestClockHours(t *testing.T) {
	tests := []struct {
		from, to string
		want     float64
	}{
		{"08:00", "12:30", 4.5},
		{"09:15", "09:45", 0.5},
		{"17:00", "08:00", 0},
		{"08:00:00", "10:00:00", 2},
	}
	for _, tt := range tests {
		got, err := timecalc.ClockHours(tt.from, tt.to)
		if err != nil {
			t.Fatalf("ClockHours(%q, %q): %v", tt.from, tt.to, err)
		}
		if got != tt.want {
			t.Errorf("ClockHours(%q, %q) = %v, want %v", tt.from, tt.to, got, tt.want)
		}
	}
	if _, err := timecalc.ClockHours("noon", "13:00"); err == nil {
		t.Error("ClockHours: expected error for malformed clock")
	}
}

func TestDatesBetween(t *testing.T) {
	got, err := timecalc.DatesBetween("2025-01-30", "2025-02-02")
	if err != nil {
		t.Fatalf("DatesBetween: %v", err)
	}
	want := []string{"2025-01-30", "2025-01-31", "2025-02-01", "2025-02-02"}
	if len(got) != len(want) {
		t.Fatalf("DatesBetween len = %d, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("DatesBetween[%d] = %s, want %s", i, got[i], want[i])
		}
	}
}

func TestDatePart(t *testing.T) {
	if got := timecalc.DatePart("2025-01-10T09:00:00.000+0000"); got != "2025-01-10" {
		t.Errorf("DatePart = %q, want 2025-01-10", got)
	}
	if got := timecalc.DatePart("2025"); got != "" {
		t.Errorf("DatePart short = %q, want empty", got)
	}
}

func TestParseMonth(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"2025-03", "2025-03-01", false},
		{"2025-03-17", "2025-03-01", false},
		{"2025-13", "", true},
		{"march", "", true},
	}
	for _, tt := range tests {
		got, err := timecalc.ParseMonth(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseMonth(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseMonth(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestYearMonths(t *testing.T) {
	got, err := timecalc.YearMonths("2025-03-17")
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"2025-01-01", "2025-02-01", "2025-03-01"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("YearMonths = %v, want %v", got, want)
	}
	if got, _ := timecalc.YearMonths("2025-01-31"); len(got) != 1 {
		t.Errorf("YearMonths(2025-01-31) = %v, want one month", got)
	}
	if _, err := timecalc.YearMonths("2025-13-01"); err == nil {
		t.Error("YearMonths(2025-13-01): expected error")
	}
}

func TestParseHours(t *testing.T) {
	tests := []struct {
		in      string
		want    float64
		wantErr bool
	}{
		{"1.5", 1.5, false},
		{" 2 ", 2, false},
		{"1:30", 1.5, false},
		{"0:45", 0.75, false},
		{"0", 0, true},
		{"-1", 0, true},
		{"abc", 0, true},
		{"1:xx", 0, true},
	}
	for _, tt := range tests {
		got, err := timecalc.ParseHours(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseHours(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseHours(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}
