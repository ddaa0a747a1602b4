package model

// Source identifies which upstream system produced an entry.
type Source string

const (
	SourceBilling  Source = "billing"
	SourceIssues   Source = "issues"
	SourceCalendar Source = "calendar"
)

// Sources lists every entry source in display order.
var Sources = []Source{SourceBilling, SourceIssues, SourceCalendar}

// UnifiedEntry is the common shape every source record is mapped into.
// ID has the form "<source>-<nativeId>" and is stable across refetches.
type UnifiedEntry struct {
	ID          string   `json:"id"`
	Source      Source   `json:"source"`
	Date        string   `json:"date"`
	Hours       float64  `json:"hours"`
	StartTime   string   `json:"start_time,omitempty"`
	EndTime     string   `json:"end_time,omitempty"`
	Title       string   `json:"title"`
	Description string   `json:"description,omitempty"`
	Category    string   `json:"category,omitempty"`
	Metadata    Metadata `json:"metadata"`
}

// Metadata is a tagged union: exactly one variant is set, matching the
// entry's Source.
type Metadata struct {
	Billing  *BillingMeta  `json:"billing,omitempty"`
	Issue    *IssueMeta    `json:"issue,omitempty"`
	Calendar *CalendarMeta `json:"calendar,omitempty"`
}

// Kind reports which variant is populated. An empty Metadata reports "".
func (m Metadata) Kind() Source {
	switch {
	case m.Billing != nil:
		return SourceBilling
	case m.Issue != nil:
		return SourceIssues
	case m.Calendar != nil:
		return SourceCalendar
	}
	return ""
}

// BillingMeta carries the identifiers of a billing activity.
type BillingMeta struct {
	ActivityID    int64  `json:"activity_id"`
	ProjectID     int64  `json:"project_id"`
	TaskID        int64  `json:"task_id"`
	ProjectName   string `json:"project_name"`
	TaskName      string `json:"task_name"`
	CustomerName  string `json:"customer_name"`
	Billable      bool   `json:"billable"`
	Billed        bool   `json:"billed"`
	RemoteService string `json:"remote_service,omitempty"`
	RemoteID      string `json:"remote_id,omitempty"`
	// TicketKey is the structured issue key linked to the activity, if any.
	TicketKey string `json:"ticket_key,omitempty"`
	// ExternalID is the calendar event id the activity was booked from, if any.
	ExternalID string `json:"external_id,omitempty"`
}

// IssueMeta carries the identifiers of an issue-tracker worklog.
type IssueMeta struct {
	WorklogID    string `json:"worklog_id"`
	IssueKey     string `json:"issue_key"`
	IssueSummary string `json:"issue_summary"`
	IssueType    string `json:"issue_type,omitempty"`
	ProjectKey   string `json:"project_key,omitempty"`
	Author       string `json:"author,omitempty"`
}

// CalendarMeta carries the identifiers of a calendar event.
type CalendarMeta struct {
	EventID         string `json:"event_id"`
	IsAllDay        bool   `json:"is_all_day"`
	ShowAs          string `json:"show_as"`
	ResponseStatus  string `json:"response_status"`
	AttendeeCount   int    `json:"attendee_count"`
	IsOnlineMeeting bool   `json:"is_online_meeting"`
	WebLink         string `json:"web_link,omitempty"`
}

// SourceEntries groups the entries of one date window by source.
type SourceEntries struct {
	Billing  []UnifiedEntry `json:"billing"`
	Issues   []UnifiedEntry `json:"issues"`
	Calendar []UnifiedEntry `json:"calendar"`
}

// ForDate returns the entries dated date, preserving order.
func (s SourceEntries) ForDate(date string) SourceEntries {
	return SourceEntries{
		Billing:  FilterDate(s.Billing, date),
		Issues:   FilterDate(s.Issues, date),
		Calendar: FilterDate(s.Calendar, date),
	}
}

// FilterDate returns the entries whose Date equals date. The result is never nil.
func FilterDate(entries []UnifiedEntry, date string) []UnifiedEntry {
	out := []UnifiedEntry{}
	for _, e := range entries {
		if e.Date == date {
			out = append(out, e)
		}
	}
	return out
}
