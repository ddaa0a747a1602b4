package reconcile

import "fmt"

// Filter selects a subset of units for display.
type Filter string

const (
	FilterAll         Filter = "all"
	FilterMatched     Filter = "matched"
	FilterIssuesOnly  Filter = "issues-only"
	FilterBillingOnly Filter = "billing-only"
	FilterHoursDiff   Filter = "hours-diff"
)

// ParseFilter validates a filter name; "" means FilterAll.
func ParseFilter(s string) (Filter, error) {
	switch f := Filter(s); f {
	case "":
		return FilterAll, nil
	case FilterAll, FilterMatched, FilterIssuesOnly, FilterBillingOnly, FilterHoursDiff:
		return f, nil
	}
	return "", fmt.Errorf("unknown filter %q (want all, matched, issues-only, billing-only, hours-diff)", s)
}

// Apply returns the units passing f, preserving order.
func (f Filter) Apply(units []Unit) []Unit {
	out := make([]Unit, 0, len(units))
	for _, u := range units {
		if f.keep(u) {
			out = append(out, u)
		}
	}
	return out
}

func (f Filter) keep(u Unit) bool {
	switch f {
	case FilterMatched:
		return u.Status == StatusMatched
	case FilterIssuesOnly:
		return u.Status == StatusIssuesOnly
	case FilterBillingOnly:
		return u.Status == StatusBillingOnly
	case FilterHoursDiff:
		return u.Status == StatusMatched && u.HoursDiff != 0
	}
	return true
}
