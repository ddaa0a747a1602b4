// Package match groups same-day entries from different sources into work units.
//
// Strategies run in priority order and each only sees entries no earlier
// strategy claimed:
//
//  1. billing ticket key = issue key            -> "issues:<key>"
//  2. billing external id = calendar event id   -> "calendar:<id>"
//  3. trimmed billing description = event title -> "text:<description>"
//
// Group ids are namespaced by strategy so equal natural keys never collide.
package match

import (
	"sort"
	"strings"

	"github.com/Tiliavir/tally/internal/model"
)

const (
	prefixIssues   = "issues:"
	prefixCalendar = "calendar:"
	prefixText     = "text:"
)

// Result holds the per-source lists with grouped entries first, and the
// group id of every matched entry.
type Result struct {
	Billing  []model.UnifiedEntry `json:"billing"`
	Issues   []model.UnifiedEntry `json:"issues"`
	Calendar []model.UnifiedEntry `json:"calendar"`
	// GroupOf maps entry id to group id; unmatched ids are absent.
	GroupOf map[string]string `json:"group_of"`
}

// Group returns the group id of an entry and whether it was matched.
func (r Result) Group(entryID string) (string, bool) {
	g, ok := r.GroupOf[entryID]
	return g, ok
}

// builder accumulates output lists and claims while strategies run.
type builder struct {
	res     Result
	claimed map[string]bool
}

// Build matches billing, issue and calendar entries of one date window.
// Output is deterministic for a given input: groups are emitted in strategy
// order then ascending key order, each side of a group sorted by descending
// hours, and unmatched entries follow in their original order.
func Build(billing, issues, calendar []model.UnifiedEntry) Result {
	b := &builder{
		res: Result{
			Billing:  make([]model.UnifiedEntry, 0, len(billing)),
			Issues:   make([]model.UnifiedEntry, 0, len(issues)),
			Calendar: make([]model.UnifiedEntry, 0, len(calendar)),
			GroupOf:  map[string]string{},
		},
		claimed: map[string]bool{},
	}

	b.join(prefixIssues,
		b.index(billing, ticketKey), b.index(issues, issueKey),
		func(r *Result, e model.UnifiedEntry) { r.Issues = append(r.Issues, e) })
	b.join(prefixCalendar,
		b.index(billing, externalID), b.index(calendar, eventID),
		func(r *Result, e model.UnifiedEntry) { r.Calendar = append(r.Calendar, e) })
	b.join(prefixText,
		b.index(billing, trimmedDescription), b.index(calendar, trimmedTitle),
		func(r *Result, e model.UnifiedEntry) { r.Calendar = append(r.Calendar, e) })

	b.res.Billing = b.appendUnclaimed(b.res.Billing, billing)
	b.res.Issues = b.appendUnclaimed(b.res.Issues, issues)
	b.res.Calendar = b.appendUnclaimed(b.res.Calendar, calendar)
	return b.res
}

// index buckets the unclaimed entries by key, skipping empty keys.
func (b *builder) index(entries []model.UnifiedEntry, key func(model.UnifiedEntry) string) map[string][]model.UnifiedEntry {
	out := map[string][]model.UnifiedEntry{}
	for _, e := range entries {
		if b.claimed[e.ID] {
			continue
		}
		if k := key(e); k != "" {
			out[k] = append(out[k], e)
		}
	}
	return out
}

// join creates one group per key present on both sides. Every entry sharing
// the key joins the group, so ambiguous matches stay visible together.
func (b *builder) join(prefix string, left, right map[string][]model.UnifiedEntry, appendRight func(*Result, model.UnifiedEntry)) {
	keys := make([]string, 0, len(left))
	for k := range left {
		if _, ok := right[k]; ok {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	for _, k := range keys {
		group := prefix + k
		for _, e := range byHoursDesc(left[k]) {
			b.res.Billing = append(b.res.Billing, e)
			b.claim(e, group)
		}
		for _, e := range byHoursDesc(right[k]) {
			appendRight(&b.res, e)
			b.claim(e, group)
		}
	}
}

func (b *builder) claim(e model.UnifiedEntry, group string) {
	b.claimed[e.ID] = true
	b.res.GroupOf[e.ID] = group
}

func (b *builder) appendUnclaimed(dst, src []model.UnifiedEntry) []model.UnifiedEntry {
	for _, e := range src {
		if !b.claimed[e.ID] {
			dst = append(dst, e)
		}
	}
	return dst
}

func byHoursDesc(in []model.UnifiedEntry) []model.UnifiedEntry {
	out := append([]model.UnifiedEntry(nil), in...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Hours > out[j].Hours })
	return out
}

func ticketKey(e model.UnifiedEntry) string {
	if m := e.Metadata.Billing; m != nil {
		return m.TicketKey
	}
	return ""
}

func issueKey(e model.UnifiedEntry) string {
	if m := e.Metadata.Issue; m != nil {
		return m.IssueKey
	}
	return ""
}

func externalID(e model.UnifiedEntry) string {
	if m := e.Metadata.Billing; m != nil {
		return m.ExternalID
	}
	return ""
}

func eventID(e model.UnifiedEntry) string {
	if m := e.Metadata.Calendar; m != nil {
		return m.EventID
	}
	return ""
}

func trimmedDescription(e model.UnifiedEntry) string {
	return strings.TrimSpace(e.Description)
}

func trimmedTitle(e model.UnifiedEntry) string {
	return strings.TrimSpace(e.Title)
}
