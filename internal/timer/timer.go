// Package timer keeps a single stopwatch and the draft entries it produces.
// A draft is booked to the billing system once it carries a project and a
// task.
package timer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/Tiliavir/tally/internal/model"
	"github.com/Tiliavir/tally/internal/moco"
	"github.com/Tiliavir/tally/internal/storage"
	"github.com/Tiliavir/tally/internal/timecalc"
)

// Storage keys of the timer and its drafts.
const (
	StateKey  = "timer"
	DraftsKey = "timer-drafts"
)

// MinDraftSeconds is the shortest run that is kept as a draft on Stop.
const MinDraftSeconds = 60

var (
	ErrNotRunning    = errors.New("timer is not running")
	ErrNotPaused     = errors.New("timer is not paused")
	ErrIdle          = errors.New("timer is idle")
	ErrUnknownDraft  = errors.New("unknown draft")
	ErrNoBooking     = errors.New("draft has no project and task")
	ErrInvalidAmount = errors.New("hours must be positive")
)

// Status is the stopwatch state.
type Status string

const (
	StatusIdle    Status = "idle"
	StatusRunning Status = "running"
	StatusPaused  Status = "paused"
)

// Booking is the billing project and task a timer run is meant for.
type Booking struct {
	ProjectID int64 `json:"project_id"`
	TaskID    int64 `json:"task_id"`
}

// State is the persisted stopwatch. While running, the elapsed time is
// AccumulatedSeconds plus the time since StartedAt.
type State struct {
	Status             Status     `json:"status"`
	StartedAt          *time.Time `json:"started_at,omitempty"`
	PausedAt           *time.Time `json:"paused_at,omitempty"`
	AccumulatedSeconds int64      `json:"accumulated_seconds"`
	Booking            *Booking   `json:"booking,omitempty"`
	Note               string     `json:"note"`
}

// Draft is a finished run that has not been booked yet.
type Draft struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"created_at"`
	Date      string    `json:"date"`
	Hours     float64   `json:"hours"`
	Note      string    `json:"note"`
	Booking   *Booking  `json:"booking,omitempty"`
}

// Booker creates billing activities.
type Booker interface {
	CreateActivity(ctx context.Context, in moco.ActivityInput) (model.UnifiedEntry, error)
}

// Timer is safe for concurrent use.
type Timer struct {
	store storage.Store
	log   *slog.Logger
	now   func() time.Time

	mu     sync.Mutex
	state  State
	drafts []Draft
}

// New returns an idle timer with no drafts. Call Load to restore both.
func New(store storage.Store, log *slog.Logger) *Timer {
	if log == nil {
		log = slog.Default()
	}
	return &Timer{
		store: store,
		log:   log.With(slog.String("component", "timer")),
		now:   time.Now,
		state: State{Status: StatusIdle},
	}
}

// SetClock replaces the time source.
func (t *Timer) SetClock(now func() time.Time) { t.now = now }

// Load restores the persisted timer and drafts. Missing documents leave the
// defaults in place.
func (t *Timer) Load(ctx context.Context) error {
	var st State
	if err := t.store.Get(ctx, StateKey, &st); err != nil && !errors.Is(err, storage.ErrNotFound) {
		return fmt.Errorf("load timer: %w", err)
	}
	var drafts []Draft
	if err := t.store.Get(ctx, DraftsKey, &drafts); err != nil && !errors.Is(err, storage.ErrNotFound) {
		return fmt.Errorf("load drafts: %w", err)
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if st.Status != "" {
		t.state = st
	}
	t.drafts = drafts
	t.log.Debug("loaded", slog.String("status", string(t.state.Status)), slog.Int("drafts", len(drafts)))
	return nil
}

// State returns a copy of the stopwatch.
func (t *Timer) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// Elapsed returns the seconds counted so far. It is 0 when idle.
func (t *Timer) Elapsed() int64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.elapsedLocked()
}

func (t *Timer) elapsedLocked() int64 {
	switch t.state.Status {
	case StatusRunning:
		if t.state.StartedAt == nil {
			return t.state.AccumulatedSeconds
		}
		return t.state.AccumulatedSeconds + int64(t.now().Sub(*t.state.StartedAt).Seconds())
	case StatusPaused:
		return t.state.AccumulatedSeconds
	}
	return 0
}

// Start begins a new run. A run that is still going is stopped first and
// returned as a draft when it is long enough.
func (t *Timer) Start(ctx context.Context, booking *Booking, note string) (*Draft, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	var prev *Draft
	if t.state.Status != StatusIdle {
		d, err := t.stopLocked(ctx)
		if err != nil {
			return nil, err
		}
		prev = d
	}

	now := t.now().UTC()
	t.state = State{Status: StatusRunning, StartedAt: &now, Booking: booking, Note: note}
	if err := t.persistStateLocked(ctx); err != nil {
		return prev, err
	}
	t.log.Info("started", slog.Bool("booking", booking != nil))
	return prev, nil
}

// Pause stops counting and keeps the elapsed time.
func (t *Timer) Pause(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state.Status != StatusRunning {
		return ErrNotRunning
	}
	now := t.now().UTC()
	t.state.AccumulatedSeconds = t.elapsedLocked()
	t.state.Status = StatusPaused
	t.state.StartedAt = nil
	t.state.PausedAt = &now
	t.log.Info("paused", slog.Int64("seconds", t.state.AccumulatedSeconds))
	return t.persistStateLocked(ctx)
}

// Resume continues a paused run.
func (t *Timer) Resume(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state.Status != StatusPaused {
		return ErrNotPaused
	}
	now := t.now().UTC()
	t.state.Status = StatusRunning
	t.state.StartedAt = &now
	t.state.PausedAt = nil
	t.log.Info("resumed")
	return t.persistStateLocked(ctx)
}

// SetNote replaces the note of the current run.
func (t *Timer) SetNote(ctx context.Context, note string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state.Status == StatusIdle {
		return ErrIdle
	}
	t.state.Note = note
	return t.persistStateLocked(ctx)
}

// Stop ends the run and returns its elapsed seconds. Runs of at least
// MinDraftSeconds become a draft dated today; shorter ones are dropped and
// the returned draft is nil.
func (t *Timer) Stop(ctx context.Context) (int64, *Draft, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state.Status == StatusIdle {
		return 0, nil, ErrIdle
	}
	seconds := t.elapsedLocked()
	d, err := t.stopLocked(ctx)
	return seconds, d, err
}

func (t *Timer) stopLocked(ctx context.Context) (*Draft, error) {
	seconds := t.elapsedLocked()
	run := t.state
	t.state = State{Status: StatusIdle}
	if err := t.persistStateLocked(ctx); err != nil {
		return nil, err
	}
	t.log.Info("stopped", slog.Int64("seconds", seconds))
	if seconds < MinDraftSeconds {
		t.log.Debug("run too short for a draft", slog.Int64("seconds", seconds))
		return nil, nil
	}
	d, err := t.addDraftLocked(ctx, timecalc.FormatDate(t.now()), secondsToHours(seconds), run.Note, run.Booking)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

// AddDraft stores a draft for date. An empty date means today.
func (t *Timer) AddDraft(ctx context.Context, date string, hours float64, note string, booking *Booking) (Draft, error) {
	if date == "" {
		date = timecalc.FormatDate(t.now())
	}
	if _, err := timecalc.ParseDate(date); err != nil {
		return Draft{}, err
	}
	if hours <= 0 {
		return Draft{}, ErrInvalidAmount
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.addDraftLocked(ctx, date, hours, note, booking)
}

func (t *Timer) addDraftLocked(ctx context.Context, date string, hours float64, note string, booking *Booking) (Draft, error) {
	d := Draft{
		ID:        uuid.New().String(),
		CreatedAt: t.now().UTC(),
		Date:      date,
		Hours:     hours,
		Note:      note,
		Booking:   booking,
	}
	next := append(append([]Draft{}, t.drafts...), d)
	if err := t.store.Set(ctx, DraftsKey, next); err != nil {
		return Draft{}, fmt.Errorf("save drafts: %w", err)
	}
	t.drafts = next
	t.log.Info("draft added", slog.String("id", d.ID), slog.Float64("hours", d.Hours))
	return d, nil
}

// Drafts returns every draft, newest first.
func (t *Timer) Drafts() []Draft {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := append([]Draft{}, t.drafts...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out
}

// DraftsForDate returns the drafts dated date.
func (t *Timer) DraftsForDate(date string) []Draft {
	out := []Draft{}
	for _, d := range t.Drafts() {
		if d.Date == date {
			out = append(out, d)
		}
	}
	return out
}

// RemoveDraft deletes the draft with id.
func (t *Timer) RemoveDraft(ctx context.Context, id string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.removeDraftLocked(ctx, id)
}

func (t *Timer) removeDraftLocked(ctx context.Context, id string) error {
	next := make([]Draft, 0, len(t.drafts))
	for _, d := range t.drafts {
		if d.ID != id {
			next = append(next, d)
		}
	}
	if len(next) == len(t.drafts) {
		return fmt.Errorf("%w %q", ErrUnknownDraft, id)
	}
	if err := t.store.Set(ctx, DraftsKey, next); err != nil {
		return fmt.Errorf("save drafts: %w", err)
	}
	t.drafts = next
	t.log.Info("draft removed", slog.String("id", id))
	return nil
}

// ClearDrafts deletes every draft.
func (t *Timer) ClearDrafts(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := t.store.Delete(ctx, DraftsKey); err != nil {
		return fmt.Errorf("clear drafts: %w", err)
	}
	t.drafts = nil
	t.log.Info("drafts cleared")
	return nil
}

// BookDraft creates a billing activity from the draft with id and removes
// the draft once the activity exists. A failed booking keeps the draft.
func (t *Timer) BookDraft(ctx context.Context, id string, b Booker) (model.UnifiedEntry, error) {
	t.mu.Lock()
	var draft *Draft
	for i := range t.drafts {
		if t.drafts[i].ID == id {
			d := t.drafts[i]
			draft = &d
			break
		}
	}
	t.mu.Unlock()
	if draft == nil {
		return model.UnifiedEntry{}, fmt.Errorf("%w %q", ErrUnknownDraft, id)
	}
	if draft.Booking == nil || draft.Booking.ProjectID == 0 || draft.Booking.TaskID == 0 {
		return model.UnifiedEntry{}, ErrNoBooking
	}

	entry, err := b.CreateActivity(ctx, moco.ActivityInput{
		Date:        draft.Date,
		ProjectID:   draft.Booking.ProjectID,
		TaskID:      draft.Booking.TaskID,
		Hours:       draft.Hours,
		Description: draft.Note,
	})
	if err != nil {
		return model.UnifiedEntry{}, err
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if err := t.removeDraftLocked(ctx, id); err != nil && !errors.Is(err, ErrUnknownDraft) {
		return entry, err
	}
	return entry, nil
}

func (t *Timer) persistStateLocked(ctx context.Context) error {
	if err := t.store.Set(ctx, StateKey, t.state); err != nil {
		return fmt.Errorf("save timer: %w", err)
	}
	return nil
}

// secondsToHours converts to hours rounded to cents.
func secondsToHours(seconds int64) float64 {
	h, _ := decimal.NewFromInt(seconds).Div(decimal.NewFromInt(3600)).Round(2).Float64()
	return h
}
