// Package mapper normalizes native source records into model.UnifiedEntry.
//
// Every mapping is total: a record missing optional fields maps to an entry
// with empty strings or zero hours rather than an error, since upstream API
// shapes drift.
package mapper

import (
	"fmt"
	"math"
	"strconv"

	"github.com/Tiliavir/tally/internal/jira"
	"github.com/Tiliavir/tally/internal/model"
	"github.com/Tiliavir/tally/internal/moco"
	"github.com/Tiliavir/tally/internal/msgraph"
	"github.com/Tiliavir/tally/internal/timecalc"
)

// calendarRemoteService is the remote_service value of billing activities
// that were booked from a calendar event.
const calendarRemoteService = "outlook"

// Mapper holds the settings that mapping depends on.
type Mapper struct {
	// WeekdayHours gives the length of an all-day calendar event, Monday first.
	WeekdayHours [7]float64
	// Timezone interprets zone-less calendar times ("" for UTC).
	Timezone string
}

// New returns a Mapper using weekdayHours for all-day events.
func New(weekdayHours [7]float64, timezone string) *Mapper {
	return &Mapper{WeekdayHours: weekdayHours, Timezone: timezone}
}

// Map dispatches a native record of the given source to its mapping function.
func (m *Mapper) Map(source model.Source, record any) (model.UnifiedEntry, error) {
	switch source {
	case model.SourceBilling:
		if a, ok := record.(moco.Activity); ok {
			return MapActivity(a), nil
		}
	case model.SourceIssues:
		if w, ok := record.(jira.WorklogWithIssue); ok {
			return MapWorklog(w), nil
		}
	case model.SourceCalendar:
		if e, ok := record.(msgraph.CalendarEvent); ok {
			return m.MapEvent(e), nil
		}
	default:
		return model.UnifiedEntry{}, fmt.Errorf("unknown source %q", source)
	}
	return model.UnifiedEntry{}, fmt.Errorf("record %T is not a %s record", record, source)
}

// MapActivity maps a billing activity.
func MapActivity(a moco.Activity) model.UnifiedEntry {
	meta := &model.BillingMeta{
		ActivityID:    a.ID,
		ProjectID:     a.Project.ID,
		TaskID:        a.Task.ID,
		ProjectName:   a.Project.Name,
		TaskName:      a.Task.Name,
		CustomerName:  a.Customer.Name,
		Billable:      a.Billable,
		Billed:        a.Billed,
		RemoteService: a.RemoteService,
		RemoteID:      a.RemoteID,
	}
	if a.RemoteID != "" {
		if a.RemoteService == calendarRemoteService {
			meta.ExternalID = a.RemoteID
		} else {
			meta.TicketKey = a.RemoteID
		}
	}

	return model.UnifiedEntry{
		ID:          "billing-" + strconv.FormatInt(a.ID, 10),
		Source:      model.SourceBilling,
		Date:        a.Date,
		Hours:       math.Max(0, a.Hours),
		Title:       a.Project.Name + " – " + a.Task.Name,
		Description: a.Description,
		Category:    a.Customer.Name,
		Metadata:    model.Metadata{Billing: meta},
	}
}

// MapWorklog maps an issue-tracker worklog.
func MapWorklog(w jira.WorklogWithIssue) model.UnifiedEntry {
	return model.UnifiedEntry{
		ID:          "issues-" + w.Worklog.ID,
		Source:      model.SourceIssues,
		Date:        timecalc.DatePart(w.Worklog.Started),
		Hours:       math.Max(0, float64(w.Worklog.TimeSpentSeconds)/3600),
		StartTime:   clock(w.Worklog.Started),
		Title:       w.IssueKey + " – " + w.IssueSummary,
		Description: jira.CommentText(w.Worklog.Comment),
		Category:    w.ProjectKey,
		Metadata: model.Metadata{Issue: &model.IssueMeta{
			WorklogID:    w.Worklog.ID,
			IssueKey:     w.IssueKey,
			IssueSummary: w.IssueSummary,
			IssueType:    w.IssueType,
			ProjectKey:   w.ProjectKey,
			Author:       w.Worklog.Author.DisplayName,
		}},
	}
}

// MapEvent maps a calendar event. All-day events last as long as the
// configured working day; timed events last end minus start, never below zero.
func (m *Mapper) MapEvent(e msgraph.CalendarEvent) model.UnifiedEntry {
	date := timecalc.DatePart(e.Start.DateTime)
	entry := model.UnifiedEntry{
		ID:          "calendar-" + e.ID,
		Source:      model.SourceCalendar,
		Date:        date,
		Title:       e.Subject,
		Description: e.Organizer.EmailAddress.Name,
		Category:    e.ShowAs,
		Metadata: model.Metadata{Calendar: &model.CalendarMeta{
			EventID:         e.ID,
			IsAllDay:        e.IsAllDay,
			ShowAs:          e.ShowAs,
			ResponseStatus:  e.ResponseStatus.Response,
			AttendeeCount:   len(e.Attendees),
			IsOnlineMeeting: e.IsOnlineMeeting,
			WebLink:         e.WebLink,
		}},
	}
	if entry.Title == "" {
		entry.Title = "(No subject)"
	}

	if e.IsAllDay {
		if idx, err := timecalc.WeekdayIndex(date); err == nil {
			entry.Hours = m.WeekdayHours[idx]
		}
		return entry
	}

	entry.StartTime = clock(e.Start.DateTime)
	entry.EndTime = clock(e.End.DateTime)
	start, err1 := msgraph.ParseTime(e.Start.DateTime, m.Timezone)
	end, err2 := msgraph.ParseTime(e.End.DateTime, m.Timezone)
	if err1 == nil && err2 == nil {
		entry.Hours = math.Max(0, end.Sub(start).Hours())
	}
	return entry
}

// MapActivities maps a batch of billing activities, preserving order.
func MapActivities(in []moco.Activity) []model.UnifiedEntry {
	out := make([]model.UnifiedEntry, 0, len(in))
	for _, a := range in {
		out = append(out, MapActivity(a))
	}
	return out
}

// MapWorklogs maps a batch of worklogs, preserving order.
func MapWorklogs(in []jira.WorklogWithIssue) []model.UnifiedEntry {
	out := make([]model.UnifiedEntry, 0, len(in))
	for _, w := range in {
		out = append(out, MapWorklog(w))
	}
	return out
}

// MapEvents maps a batch of calendar events, preserving order.
func (m *Mapper) MapEvents(in []msgraph.CalendarEvent) []model.UnifiedEntry {
	out := make([]model.UnifiedEntry, 0, len(in))
	for _, e := range in {
		out = append(out, m.MapEvent(e))
	}
	return out
}

// clock extracts "HH:MM" from an ISO timestamp, or "" if absent.
func clock(ts string) string {
	if len(ts) < 16 || ts[10] != 'T' {
		return ""
	}
	return ts[11:16]
}
