package reconcile_test

import (
	"testing"

	"github.com/Tiliavir/tally/internal/model"
	"github.com/Tiliavir/tally/internal/reconcile"
)

func billing(id, date string, hours float64, ticket, title, desc string) model.UnifiedEntry {
	return model.UnifiedEntry{
		ID: id, Source: model.SourceBilling, Date: date, Hours: hours, Title: title, Description: desc,
		Metadata: model.Metadata{Billing: &model.BillingMeta{TicketKey: ticket}},
	}
}

func worklog(id, date string, hours float64, key string) model.UnifiedEntry {
	return model.UnifiedEntry{
		ID: id, Source: model.SourceIssues, Date: date, Hours: hours,
		Metadata: model.Metadata{Issue: &model.IssueMeta{IssueKey: key, IssueSummary: "Summary of " + key}},
	}
}

func TestExtractIssueKey(t *testing.T) {
	tests := []struct {
		name     string
		entry    model.UnifiedEntry
		wantKey  string
		wantConf reconcile.Confidence
		wantOK   bool
	}{
		{"structured", billing("b", "2025-01-10", 1, "WEB-12", "", "mentions API-3"), "WEB-12", reconcile.ConfidenceHigh, true},
		{"description", billing("b", "2025-01-10", 1, "", "Website – OPS-1", "fixed API-3 and API-4"), "API-3", reconcile.ConfidenceMedium, true},
		{"title", billing("b", "2025-01-10", 1, "", "Website – OPS-1", "no key"), "OPS-1", reconcile.ConfidenceMedium, true},
		{"lowercase ignored", billing("b", "2025-01-10", 1, "", "", "web-12"), "", "", false},
		{"none", billing("b", "2025-01-10", 1, "", "Website – Dev", ""), "", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			key, conf, ok := reconcile.ExtractIssueKey(tt.entry)
			if key != tt.wantKey || conf != tt.wantConf || ok != tt.wantOK {
				t.Errorf("ExtractIssueKey = (%q, %q, %v), want (%q, %q, %v)", key, conf, ok, tt.wantKey, tt.wantConf, tt.wantOK)
			}
		})
	}
}

func TestReconcile_StructuredMatch(t *testing.T) {
	r := reconcile.Reconcile(
		[]model.UnifiedEntry{billing("b1", "2025-01-10", 2, "WEB-12", "", "")},
		[]model.UnifiedEntry{worklog("i1", "2025-01-10", 2, "WEB-12")},
	)
	if len(r.Units) != 1 {
		t.Fatalf("units = %d, want 1", len(r.Units))
	}
	u := r.Units[0]
	if u.Status != reconcile.StatusMatched || u.Confidence != reconcile.ConfidenceHigh || u.HoursDiff != 0 {
		t.Errorf("unit = %+v", u)
	}
	if u.ID != "2025-01-10-WEB-12" || u.IssueSummary != "Summary of WEB-12" {
		t.Errorf("unit id/summary = %q / %q", u.ID, u.IssueSummary)
	}
}

func TestReconcile_ConfidenceEscalates(t *testing.T) {
	r := reconcile.Reconcile(
		[]model.UnifiedEntry{
			billing("b1", "2025-01-10", 1, "", "", "WEB-12 review"),
			billing("b2", "2025-01-10", 1.5, "WEB-12", "", ""),
		},
		[]model.UnifiedEntry{worklog("i1", "2025-01-10", 2, "WEB-12")},
	)
	if len(r.Units) != 1 {
		t.Fatalf("units = %d, want 1", len(r.Units))
	}
	u := r.Units[0]
	if u.Confidence != reconcile.ConfidenceHigh {
		t.Errorf("Confidence = %q, want high", u.Confidence)
	}
	if u.BillingHours != 2.5 || u.IssueHours != 2 || u.HoursDiff != 0.5 {
		t.Errorf("hours = %v/%v/%v", u.BillingHours, u.IssueHours, u.HoursDiff)
	}
}

func TestReconcile_RoundsHalfUp(t *testing.T) {
	r := reconcile.Reconcile(
		[]model.UnifiedEntry{billing("b1", "2025-01-10", 1, "WEB-12", "", "")},
		[]model.UnifiedEntry{worklog("i1", "2025-01-10", 1.125, "WEB-12")},
	)
	if len(r.Units) != 1 {
		t.Fatalf("units = %d, want 1", len(r.Units))
	}
	u := r.Units[0]
	if u.IssueHours != 1.13 || u.HoursDiff != -0.12 {
		t.Errorf("IssueHours/HoursDiff = %v/%v, want 1.13/-0.12", u.IssueHours, u.HoursDiff)
	}
	if r.Summary.TotalHoursDiff != -0.12 {
		t.Errorf("TotalHoursDiff = %v, want -0.12", r.Summary.TotalHoursDiff)
	}
}

func TestReconcile_MediumConfidenceAndUnmatchedHasNone(t *testing.T) {
	r := reconcile.Reconcile(
		[]model.UnifiedEntry{
			billing("b1", "2025-01-10", 1, "", "", "API-3 fix"),
			billing("b2", "2025-01-10", 1, "", "", "OPS-7 deploy"),
		},
		[]model.UnifiedEntry{worklog("i1", "2025-01-10", 1, "API-3")},
	)
	byID := map[string]reconcile.Unit{}
	for _, u := range r.Units {
		byID[u.ID] = u
	}
	if u := byID["2025-01-10-API-3"]; u.Status != reconcile.StatusMatched || u.Confidence != reconcile.ConfidenceMedium {
		t.Errorf("API-3 unit = %+v", u)
	}
	if u := byID["2025-01-10-OPS-7"]; u.Status != reconcile.StatusBillingOnly || u.Confidence != "" {
		t.Errorf("OPS-7 unit = %+v", u)
	}
}

func TestReconcile_SortOrder(t *testing.T) {
	r := reconcile.Reconcile(
		[]model.UnifiedEntry{
			billing("b1", "2025-01-11", 1, "A-1", "", ""),
			billing("b2", "2025-01-10", 1, "A-1", "", ""),
			billing("b3", "2025-01-10", 1, "", "", "nothing"),
		},
		[]model.UnifiedEntry{
			worklog("i1", "2025-01-10", 1, "A-1"),
			worklog("i2", "2025-01-10", 1, "B-2"),
			worklog("i3", "2025-01-11", 1, "A-1"),
		},
	)
	type row struct {
		date   string
		status reconcile.Status
	}
	want := []row{
		{"2025-01-10", reconcile.StatusIssuesOnly},
		{"2025-01-10", reconcile.StatusBillingOnly},
		{"2025-01-10", reconcile.StatusMatched},
		{"2025-01-11", reconcile.StatusMatched},
	}
	if len(r.Units) != len(want) {
		t.Fatalf("units = %d, want %d", len(r.Units), len(want))
	}
	for i, w := range want {
		if r.Units[i].Date != w.date || r.Units[i].Status != w.status {
			t.Errorf("unit[%d] = %s/%s, want %s/%s", i, r.Units[i].Date, r.Units[i].Status, w.date, w.status)
		}
	}
}

func TestReconcile_Completeness(t *testing.T) {
	billingEntries := []model.UnifiedEntry{
		billing("b1", "2025-01-10", 1, "A-1", "", ""),
		billing("b2", "2025-01-10", 1, "", "", "A-1 again"),
		billing("b3", "2025-01-11", 1, "", "", "C-3"),
		billing("b4", "2025-01-11", 1, "", "", "plain"),
	}
	issueEntries := []model.UnifiedEntry{
		worklog("i1", "2025-01-10", 1, "A-1"),
		worklog("i2", "2025-01-10", 2, "A-1"),
		worklog("i3", "2025-01-11", 1, "A-1"),
		worklog("i4", "2025-01-12", 1, "D-4"),
	}
	r := reconcile.Reconcile(billingEntries, issueEntries)

	seen := map[string]int{}
	for _, u := range r.Units {
		for _, e := range u.BillingEntries {
			seen[e.ID]++
		}
		for _, e := range u.IssueEntries {
			seen[e.ID]++
		}
	}
	for _, e := range append(append([]model.UnifiedEntry{}, billingEntries...), issueEntries...) {
		if seen[e.ID] != 1 {
			t.Errorf("%s appears in %d units, want 1", e.ID, seen[e.ID])
		}
	}
}

func TestSummarize_MatchRate(t *testing.T) {
	units := []reconcile.Unit{
		{Status: reconcile.StatusMatched, BillingHours: 1, IssueHours: 1},
		{Status: reconcile.StatusMatched, BillingHours: 2, IssueHours: 1.5},
		{Status: reconcile.StatusMatched},
		{Status: reconcile.StatusIssuesOnly, IssueHours: 0.1},
		{Status: reconcile.StatusBillingOnly, BillingHours: 0.2},
		{Status: reconcile.StatusBillingOnly},
	}
	s := reconcile.Summarize(units)
	if s.MatchRate != 75 {
		t.Errorf("MatchRate = %d, want 75", s.MatchRate)
	}
	if s.TotalUnits != 6 || s.TotalMatched != 3 || s.TotalIssuesOnly != 1 || s.TotalBillingOnly != 2 {
		t.Errorf("counts = %+v", s)
	}
	if s.TotalBillingHours != 3.2 || s.TotalIssueHours != 2.6 || s.TotalHoursDiff != 0.6 {
		t.Errorf("hours = %v/%v/%v", s.TotalBillingHours, s.TotalIssueHours, s.TotalHoursDiff)
	}

	if got := reconcile.Summarize(nil).MatchRate; got != 0 {
		t.Errorf("empty MatchRate = %d, want 0", got)
	}
	onlyBilling := []reconcile.Unit{{Status: reconcile.StatusBillingOnly}}
	if got := reconcile.Summarize(onlyBilling).MatchRate; got != 0 {
		t.Errorf("billing-only MatchRate = %d, want 0", got)
	}
}

func TestFilter(t *testing.T) {
	units := []reconcile.Unit{
		{ID: "a", Status: reconcile.StatusMatched},
		{ID: "b", Status: reconcile.StatusMatched, HoursDiff: -0.5},
		{ID: "c", Status: reconcile.StatusIssuesOnly, HoursDiff: -1},
		{ID: "d", Status: reconcile.StatusBillingOnly, HoursDiff: 1},
	}
	tests := []struct {
		filter string
		want   []string
	}{
		{"", []string{"a", "b", "c", "d"}},
		{"matched", []string{"a", "b"}},
		{"issues-only", []string{"c"}},
		{"billing-only", []string{"d"}},
		{"hours-diff", []string{"b"}},
	}
	for _, tt := range tests {
		f, err := reconcile.ParseFilter(tt.filter)
		if err != nil {
			t.Fatalf("ParseFilter(%q): %v", tt.filter, err)
		}
		got := f.Apply(units)
		if len(got) != len(tt.want) {
			t.Errorf("%q: got %d units, want %d", tt.filter, len(got), len(tt.want))
			continue
		}
		for i := range got {
			if got[i].ID != tt.want[i] {
				t.Errorf("%q: unit[%d] = %s, want %s", tt.filter, i, got[i].ID, tt.want[i])
			}
		}
	}
	if _, err := reconcile.ParseFilter("nope"); err == nil {
		t.Error("ParseFilter: expected error")
	}
}
