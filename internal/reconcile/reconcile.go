// Package reconcile diffs billing entries against issue-tracker worklogs per
// day and issue key.
package reconcile

import (
	"regexp"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/Tiliavir/tally/internal/model"
)

// Status classifies a reconciliation unit.
type Status string

const (
	StatusMatched     Status = "matched"
	StatusIssuesOnly  Status = "issues-only"
	StatusBillingOnly Status = "billing-only"
)

// statusRank orders units within a day so problems come first.
var statusRank = map[Status]int{
	StatusIssuesOnly:  0,
	StatusBillingOnly: 1,
	StatusMatched:     2,
}

// Confidence tells how a billing entry was linked to its issue key.
// The zero value means the unit is not matched.
type Confidence string

const (
	ConfidenceHigh   Confidence = "high"
	ConfidenceMedium Confidence = "medium"
)

var issueKeyPattern = regexp.MustCompile(`\b[A-Z][A-Z0-9]+-\d+\b`)

// Unit is one row of the billing versus issue-tracker report.
type Unit struct {
	ID             string               `json:"id"`
	IssueKey       string               `json:"issue_key,omitempty"`
	IssueSummary   string               `json:"issue_summary,omitempty"`
	Date           string               `json:"date"`
	Status         Status               `json:"status"`
	Confidence     Confidence           `json:"confidence,omitempty"`
	BillingEntries []model.UnifiedEntry `json:"billing_entries"`
	IssueEntries   []model.UnifiedEntry `json:"issue_entries"`
	BillingHours   float64              `json:"billing_hours"`
	IssueHours     float64              `json:"issue_hours"`
	HoursDiff      float64              `json:"hours_diff"`
}

// Summary aggregates a report.
type Summary struct {
	TotalUnits        int     `json:"total_units"`
	TotalMatched      int     `json:"total_matched"`
	TotalIssuesOnly   int     `json:"total_issues_only"`
	TotalBillingOnly  int     `json:"total_billing_only"`
	TotalBillingHours float64 `json:"total_billing_hours"`
	TotalIssueHours   float64 `json:"total_issue_hours"`
	TotalHoursDiff    float64 `json:"total_hours_diff"`
	// MatchRate is matched / (matched + issues-only) in whole percent.
	MatchRate int `json:"match_rate"`
}

// Report is the result of Reconcile.
type Report struct {
	Units   []Unit  `json:"units"`
	Summary Summary `json:"summary"`
}

// ExtractIssueKey returns the issue key a billing entry refers to. A
// structured ticket key gives high confidence; a key found in the
// description, then the title, gives medium confidence.
func ExtractIssueKey(e model.UnifiedEntry) (string, Confidence, bool) {
	if m := e.Metadata.Billing; m != nil && m.TicketKey != "" {
		return m.TicketKey, ConfidenceHigh, true
	}
	for _, text := range []string{e.Description, e.Title} {
		if k := issueKeyPattern.FindString(text); k != "" {
			return k, ConfidenceMedium, true
		}
	}
	return "", "", false
}

type accumulator struct {
	unit       Unit
	confidence Confidence
}

// Reconcile builds the day-by-day diff between billing and issue entries.
// Every issue entry, and every billing entry, lands in exactly one unit.
func Reconcile(billing, issues []model.UnifiedEntry) Report {
	issuesByKey := map[string][]model.UnifiedEntry{}
	var issueKeys []string
	for _, e := range issues {
		k := e.Date + "-" + issueKeyOf(e)
		if _, ok := issuesByKey[k]; !ok {
			issueKeys = append(issueKeys, k)
		}
		issuesByKey[k] = append(issuesByKey[k], e)
	}

	acc := map[string]*accumulator{}
	var order []string
	add := func(id string, a *accumulator) {
		acc[id] = a
		order = append(order, id)
	}

	for _, e := range billing {
		key, conf, ok := ExtractIssueKey(e)
		if !ok {
			add("billing-only-"+e.ID, &accumulator{unit: Unit{
				ID:             "billing-only-" + e.ID,
				Date:           e.Date,
				BillingEntries: []model.UnifiedEntry{e},
			}})
			continue
		}
		id := e.Date + "-" + key
		if a, exists := acc[id]; exists {
			a.unit.BillingEntries = append(a.unit.BillingEntries, e)
			a.confidence = higher(a.confidence, conf)
			continue
		}
		matched := issuesByKey[id]
		u := Unit{
			ID:             id,
			IssueKey:       key,
			Date:           e.Date,
			BillingEntries: []model.UnifiedEntry{e},
			IssueEntries:   append([]model.UnifiedEntry{}, matched...),
		}
		if len(matched) > 0 {
			u.IssueSummary = summaryOf(matched[0])
		}
		add(id, &accumulator{unit: u, confidence: conf})
	}

	for _, k := range issueKeys {
		if _, exists := acc[k]; exists {
			continue
		}
		group := issuesByKey[k]
		add(k, &accumulator{unit: Unit{
			ID:           k,
			IssueKey:     issueKeyOf(group[0]),
			IssueSummary: summaryOf(group[0]),
			Date:         group[0].Date,
			IssueEntries: group,
		}})
	}

	units := make([]Unit, 0, len(order))
	for _, id := range order {
		a := acc[id]
		u := a.unit
		if u.BillingEntries == nil {
			u.BillingEntries = []model.UnifiedEntry{}
		}
		if u.IssueEntries == nil {
			u.IssueEntries = []model.UnifiedEntry{}
		}
		u.Status = status(u)
		if u.Status == StatusMatched {
			u.Confidence = a.confidence
		}
		billingHours := sum(u.BillingEntries)
		issueHours := sum(u.IssueEntries)
		u.BillingHours = round2(billingHours)
		u.IssueHours = round2(issueHours)
		u.HoursDiff = round2(billingHours.Sub(issueHours))
		units = append(units, u)
	}

	sort.SliceStable(units, func(i, j int) bool {
		if units[i].Date != units[j].Date {
			return units[i].Date < units[j].Date
		}
		return statusRank[units[i].Status] < statusRank[units[j].Status]
	})

	return Report{Units: units, Summary: Summarize(units)}
}

// Summarize computes the summary statistics of a set of units.
func Summarize(units []Unit) Summary {
	var s Summary
	billingHours, issueHours := decimal.Zero, decimal.Zero
	for _, u := range units {
		switch u.Status {
		case StatusMatched:
			s.TotalMatched++
		case StatusIssuesOnly:
			s.TotalIssuesOnly++
		case StatusBillingOnly:
			s.TotalBillingOnly++
		}
		billingHours = billingHours.Add(decimal.NewFromFloat(u.BillingHours))
		issueHours = issueHours.Add(decimal.NewFromFloat(u.IssueHours))
	}
	s.TotalUnits = len(units)
	s.TotalBillingHours = round2(billingHours)
	s.TotalIssueHours = round2(issueHours)
	s.TotalHoursDiff = round2(billingHours.Sub(issueHours))

	if denom := s.TotalMatched + s.TotalIssuesOnly; denom > 0 {
		rate := decimal.NewFromInt(int64(s.TotalMatched * 100)).Div(decimal.NewFromInt(int64(denom)))
		s.MatchRate = int(rate.Round(0).IntPart())
	}
	return s
}

func status(u Unit) Status {
	switch {
	case len(u.BillingEntries) > 0 && len(u.IssueEntries) > 0:
		return StatusMatched
	case len(u.IssueEntries) > 0:
		return StatusIssuesOnly
	default:
		return StatusBillingOnly
	}
}

func higher(a, b Confidence) Confidence {
	if a == ConfidenceHigh || b == ConfidenceHigh {
		return ConfidenceHigh
	}
	return ConfidenceMedium
}

func issueKeyOf(e model.UnifiedEntry) string {
	if m := e.Metadata.Issue; m != nil {
		return m.IssueKey
	}
	return ""
}

func summaryOf(e model.UnifiedEntry) string {
	if m := e.Metadata.Issue; m != nil {
		return m.IssueSummary
	}
	return ""
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
