// Package tracker owns the live day state and drives the source clients, the
// month cache and the background refreshes. Callers never mutate cache or
// day state directly; they go through the Tracker's operations.
package tracker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/Tiliavir/tally/internal/jira"
	"github.com/Tiliavir/tally/internal/mapper"
	"github.com/Tiliavir/tally/internal/match"
	"github.com/Tiliavir/tally/internal/model"
	"github.com/Tiliavir/tally/internal/moco"
	"github.com/Tiliavir/tally/internal/monthcache"
	"github.com/Tiliavir/tally/internal/msgraph"
	"github.com/Tiliavir/tally/internal/overview"
	"github.com/Tiliavir/tally/internal/reconcile"
	"github.com/Tiliavir/tally/internal/timecalc"
)

// ErrNotConnected is returned when an operation needs a source that has no
// credentials configured.
var ErrNotConnected = errors.New("source not connected")

// BillingSource reads and writes billing activities.
type BillingSource interface {
	GetActivities(ctx context.Context, from, to string) ([]moco.Activity, error)
	CreateActivity(ctx context.Context, in moco.ActivityInput) (moco.Activity, error)
	UpdateActivity(ctx context.Context, id int64, in moco.ActivityInput) (moco.Activity, error)
	DeleteActivity(ctx context.Context, id int64) error
}

// IssueSource reads issue-tracker worklogs.
type IssueSource interface {
	GetWorklogs(ctx context.Context, from, to string) ([]jira.WorklogWithIssue, error)
}

// CalendarSource reads calendar events.
type CalendarSource interface {
	GetEvents(ctx context.Context, from, to string) ([]msgraph.CalendarEvent, error)
}

// PresenceSource refreshes attendance data and answers per-date lookups.
type PresenceSource interface {
	overview.PresenceLookup
	Fetch(ctx context.Context, from, to string) error
	Invalidate()
}

// AbsenceSource refreshes HR absences and answers per-date lookups.
type AbsenceSource interface {
	overview.AbsenceLookup
	RefreshHR(ctx context.Context, from, to string) error
}

// Deps wires a Tracker. Nil sources are treated as not connected.
type Deps struct {
	Billing  BillingSource
	Issues   IssueSource
	Calendar CalendarSource
	Presence PresenceSource
	Absences AbsenceSource

	Mapper         *mapper.Mapper
	Settings       overview.Settings
	CalendarFilter msgraph.FilterOptions
	Log            *slog.Logger
}

// SourceState is the fetch state of one source for the live day.
type SourceState struct {
	Connected bool                 `json:"connected"`
	Loading   bool                 `json:"loading"`
	Err       error                `json:"-"`
	Entries   []model.UnifiedEntry `json:"entries"`
}

// ErrText returns the error text, or "".
func (s SourceState) ErrText() string {
	if s.Err == nil {
		return ""
	}
	return s.Err.Error()
}

// DayState is the live, just-fetched picture of one date.
type DayState struct {
	Date     string      `json:"date"`
	Billing  SourceState `json:"billing"`
	Issues   SourceState `json:"issues"`
	Calendar SourceState `json:"calendar"`
}

// Entries returns the fetched entries of every source.
func (d DayState) Entries() model.SourceEntries {
	return model.SourceEntries{
		Billing:  nonNil(d.Billing.Entries),
		Issues:   nonNil(d.Issues.Entries),
		Calendar: nonNil(d.Calendar.Entries),
	}
}

// Tracker is safe for concurrent use.
type Tracker struct {
	d     Deps
	cache *monthcache.Cache
	log   *slog.Logger

	mu  sync.RWMutex
	day DayState
}

// New returns a Tracker whose billing month fetches go through cache.
// Use BillingFetcher to build the cache's fetcher from the same deps.
func New(d Deps, cache *monthcache.Cache) *Tracker {
	if d.Log == nil {
		d.Log = slog.Default()
	}
	if d.Mapper == nil {
		d.Mapper = mapper.New(d.Settings.WeekdayHours, "")
	}
	return &Tracker{
		d:     d,
		cache: cache,
		log:   d.Log.With(slog.String("component", "tracker")),
	}
}

// BillingFetcher adapts a billing source to the month cache.
type BillingFetcher struct {
	Source BillingSource
}

// FetchBilling loads and maps the activities of [from, to].
func (f BillingFetcher) FetchBilling(ctx context.Context, from, to string) ([]model.UnifiedEntry, error) {
	if f.Source == nil {
		return nil, fmt.Errorf("billing: %w", ErrNotConnected)
	}
	activities, err := f.Source.GetActivities(ctx, from, to)
	if err != nil {
		return nil, err
	}
	return mapper.MapActivities(activities), nil
}

// Cache returns the month cache.
func (t *Tracker) Cache() *monthcache.Cache { return t.cache }

// Settings returns the booking targets.
func (t *Tracker) Settings() overview.Settings { return t.d.Settings }

// Day returns a snapshot of the live day state.
func (t *Tracker) Day() DayState {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.day
}

// FetchDay loads date from every connected source unless it is already the
// live day. See RefreshDay.
func (t *Tracker) FetchDay(ctx context.Context, date string) (DayState, error) {
	t.mu.RLock()
	same := t.day.Date == date
	t.mu.RUnlock()
	if same {
		return t.Day(), nil
	}
	return t.RefreshDay(ctx, date)
}

// RefreshDay loads date from every connected source concurrently. A failing
// source is recorded in its SourceState and does not affect the others;
// entries from its previous successful fetch of the same date stay visible.
// A successful billing fetch also replaces that day in the month cache.
func (t *Tracker) RefreshDay(ctx context.Context, date string) (DayState, error) {
	if _, err := timecalc.ParseDate(date); err != nil {
		return DayState{}, err
	}

	t.mu.Lock()
	if t.day.Date != date {
		t.day = DayState{Date: date}
	}
	t.day.Billing.Connected = t.d.Billing != nil
	t.day.Issues.Connected = t.d.Issues != nil
	t.day.Calendar.Connected = t.d.Calendar != nil
	t.day.Billing.Loading = t.d.Billing != nil
	t.day.Issues.Loading = t.d.Issues != nil
	t.day.Calendar.Loading = t.d.Calendar != nil
	t.mu.Unlock()

	var wg sync.WaitGroup
	run := func(src model.Source, fetch func() ([]model.UnifiedEntry, error)) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			entries, err := fetch()
			t.storeResult(date, src, entries, err)
		}()
	}

	if t.d.Billing != nil {
		run(model.SourceBilling, func() ([]model.UnifiedEntry, error) {
			activities, err := t.d.Billing.GetActivities(ctx, date, date)
			if err != nil {
				return nil, err
			}
			entries := mapper.MapActivities(activities)
			if t.cache != nil {
				t.cache.UpdateDay(ctx, date, entries)
			}
			return entries, nil
		})
	}
	if t.d.Issues != nil {
		run(model.SourceIssues, func() ([]model.UnifiedEntry, error) {
			worklogs, err := t.d.Issues.GetWorklogs(ctx, date, date)
			if err != nil {
				return nil, err
			}
			return model.FilterDate(mapper.MapWorklogs(worklogs), date), nil
		})
	}
	if t.d.Calendar != nil {
		run(model.SourceCalendar, func() ([]model.UnifiedEntry, error) {
			events, err := t.d.Calendar.GetEvents(ctx, date, date)
			if err != nil {
				return nil, err
			}
			events = msgraph.FilterEvents(events, t.d.CalendarFilter)
			return model.FilterDate(t.d.Mapper.MapEvents(events), date), nil
		})
	}
	wg.Wait()

	return t.Day(), nil
}

func (t *Tracker) storeResult(date string, src model.Source, entries []model.UnifiedEntry, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.day.Date != date {
		// a fetch for another day superseded this one
		return
	}
	var st *SourceState
	switch src {
	case model.SourceBilling:
		st = &t.day.Billing
	case model.SourceIssues:
		st = &t.day.Issues
	case model.SourceCalendar:
		st = &t.day.Calendar
	default:
		return
	}
	st.Loading = false
	st.Err = err
	if err != nil {
		t.log.Warn("fetch failed", slog.String("source", string(src)), slog.String("date", date), slog.Any("error", err))
		return
	}
	st.Entries = entries
	t.log.Debug("fetched", slog.String("source", string(src)), slog.String("date", date), slog.Int("entries", len(entries)))
}

// DayOverview returns the overview of date from the live day when date is
// the live day, otherwise from the month cache.
func (t *Tracker) DayOverview(date string) model.DayOverview {
	day := t.Day()
	if day.Date == date {
		return overview.BuildDayOverview(date, day.Entries(), t.d.Settings, t.absences(), t.presences())
	}
	return t.CachedDayOverview(date)
}

// CachedDayOverview returns the overview of date built from the month cache.
func (t *Tracker) CachedDayOverview(date string) model.DayOverview {
	var entries model.SourceEntries
	if t.cache != nil {
		if key, err := monthcache.MonthKey(date); err == nil {
			entries = t.cache.EntriesForDate(date, key)
		}
	}
	return overview.BuildDayOverview(date, entries, t.d.Settings, t.absences(), t.presences())
}

// CachedDays returns the overviews of every date in [from, to] built from
// the month cache.
func (t *Tracker) CachedDays(from, to string) ([]model.DayOverview, error) {
	return overview.Days(from, to, t.cachedEntries(from, to), t.d.Settings, t.absences(), t.presences())
}

// CachedWeek returns the ISO week containing date built from the month cache.
func (t *Tracker) CachedWeek(date string) (overview.Week, error) {
	from, to, err := timecalc.WeekRange(date)
	if err != nil {
		return overview.Week{}, err
	}
	return overview.BuildWeek(date, t.cachedEntries(from, to), t.d.Settings, t.absences(), t.presences())
}

func (t *Tracker) cachedEntries(from, to string) model.SourceEntries {
	e := model.SourceEntries{Issues: []model.UnifiedEntry{}, Calendar: []model.UnifiedEntry{}}
	if t.cache != nil {
		e.Billing = t.cache.EntriesBetween(from, to)
	}
	return e
}

// MatchDay groups the live day's entries into work units.
func (t *Tracker) MatchDay() match.Result {
	e := t.Day().Entries()
	return match.Build(e.Billing, e.Issues, e.Calendar)
}

// MatchableEvents lists the live day's calendar events with their booked state.
func (t *Tracker) MatchableEvents() []match.MatchableEvent {
	e := t.Day().Entries()
	return match.MatchableEvents(e.Billing, e.Calendar)
}

// Reconcile fetches billing and issue entries of [from, to] concurrently
// and diffs them. Both sources must be connected.
func (t *Tracker) Reconcile(ctx context.Context, from, to string) (reconcile.Report, error) {
	if t.d.Billing == nil {
		return reconcile.Report{}, fmt.Errorf("billing: %w", ErrNotConnected)
	}
	if t.d.Issues == nil {
		return reconcile.Report{}, fmt.Errorf("issues: %w", ErrNotConnected)
	}

	var (
		wg                    sync.WaitGroup
		billing, issues       []model.UnifiedEntry
		billingErr, issuesErr error
	)
	wg.Add(2)
	go func() {
		defer wg.Done()
		billing, billingErr = BillingFetcher{Source: t.d.Billing}.FetchBilling(ctx, from, to)
	}()
	go func() {
		defer wg.Done()
		var worklogs []jira.WorklogWithIssue
		worklogs, issuesErr = t.d.Issues.GetWorklogs(ctx, from, to)
		issues = mapper.MapWorklogs(worklogs)
	}()
	wg.Wait()

	if err := errors.Join(billingErr, issuesErr); err != nil {
		return reconcile.Report{}, fmt.Errorf("reconcile %s..%s: %w", from, to, err)
	}
	return reconcile.Reconcile(billing, issues), nil
}

// LoggedHoursForTask sums the cached billing hours booked on taskID.
func (t *Tracker) LoggedHoursForTask(taskID int64) float64 {
	if t.cache == nil {
		return 0
	}
	return t.cache.LoggedHoursForTask(taskID)
}

func (t *Tracker) absences() overview.AbsenceLookup {
	if t.d.Absences == nil {
		return nil
	}
	return t.d.Absences
}

func (t *Tracker) presences() overview.PresenceLookup {
	if t.d.Presence == nil {
		return nil
	}
	return t.d.Presence
}

func nonNil(entries []model.UnifiedEntry) []model.UnifiedEntry {
	if entries == nil {
		return []model.UnifiedEntry{}
	}
	return entries
}
