// Package absence keeps manual and HR-system absences and answers which one
// applies to a date.
package absence

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Tiliavir/tally/internal/model"
	"github.com/Tiliavir/tally/internal/personio"
	"github.com/Tiliavir/tally/internal/storage"
	"github.com/Tiliavir/tally/internal/timecalc"
)

// StorageKey is the key manual absences are persisted under.
const StorageKey = "absences"

// ErrUnknownAbsence is returned when removing an id that does not exist.
var ErrUnknownAbsence = errors.New("unknown absence")

// HRFetcher loads the HR absence periods overlapping [from, to].
type HRFetcher interface {
	GetAbsences(ctx context.Context, from, to string) ([]personio.AbsencePeriod, error)
}

// Input describes a new manual absence.
type Input struct {
	Type      model.AbsenceType
	StartDate string
	EndDate   string
	HalfDay   bool
	Note      string
}

// Book holds both kinds of absences. It is safe for concurrent use.
type Book struct {
	store storage.Store
	hr    HRFetcher
	log   *slog.Logger
	now   func() time.Time

	mu     sync.RWMutex
	manual []model.Absence
	fromHR []model.Absence
}

// New returns an empty book. hr may be nil when no HR system is connected.
func New(store storage.Store, hr HRFetcher, log *slog.Logger) *Book {
	if log == nil {
		log = slog.Default()
	}
	return &Book{
		store: store,
		hr:    hr,
		log:   log.With(slog.String("component", "absence")),
		now:   time.Now,
	}
}

// Load restores the persisted manual absences.
func (b *Book) Load(ctx context.Context) error {
	var stored []model.Absence
	err := b.store.Get(ctx, StorageKey, &stored)
	if errors.Is(err, storage.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("load absences: %w", err)
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.manual = stored
	b.log.Debug("loaded", slog.Int("count", len(stored)))
	return nil
}

// Add validates and stores a manual absence.
func (b *Book) Add(ctx context.Context, in Input) (model.Absence, error) {
	if in.EndDate == "" {
		in.EndDate = in.StartDate
	}
	if _, err := timecalc.ParseDate(in.StartDate); err != nil {
		return model.Absence{}, err
	}
	if _, err := timecalc.ParseDate(in.EndDate); err != nil {
		return model.Absence{}, err
	}
	if in.EndDate < in.StartDate {
		return model.Absence{}, fmt.Errorf("absence ends (%s) before it starts (%s)", in.EndDate, in.StartDate)
	}
	typ, err := ParseType(string(in.Type))
	if err != nil {
		return model.Absence{}, err
	}

	a := model.Absence{
		ID:        uuid.New().String(),
		Origin:    model.AbsenceManual,
		Type:      typ,
		StartDate: in.StartDate,
		EndDate:   in.EndDate,
		HalfDay:   in.HalfDay,
		Note:      in.Note,
		CreatedAt: b.now().UTC(),
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	next := append(append([]model.Absence{}, b.manual...), a)
	if err := b.store.Set(ctx, StorageKey, next); err != nil {
		return model.Absence{}, fmt.Errorf("save absences: %w", err)
	}
	b.manual = next
	b.log.Info("absence added", slog.String("id", a.ID), slog.String("type", string(a.Type)))
	return a, nil
}

// Remove deletes the manual absence with id.
func (b *Book) Remove(ctx context.Context, id string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	next := make([]model.Absence, 0, len(b.manual))
	for _, a := range b.manual {
		if a.ID != id {
			next = append(next, a)
		}
	}
	if len(next) == len(b.manual) {
		return fmt.Errorf("%w %q", ErrUnknownAbsence, id)
	}
	if err := b.store.Set(ctx, StorageKey, next); err != nil {
		return fmt.Errorf("save absences: %w", err)
	}
	b.manual = next
	b.log.Info("absence removed", slog.String("id", id))
	return nil
}

// Manual returns the manual absences sorted by start date.
func (b *Book) Manual() []model.Absence {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := append([]model.Absence{}, b.manual...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].StartDate < out[j].StartDate })
	return out
}

// InRange returns every absence overlapping [from, to], HR ones first.
func (b *Book) InRange(from, to string) []model.Absence {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := []model.Absence{}
	for _, list := range [][]model.Absence{b.fromHR, b.manual} {
		for _, a := range list {
			if a.StartDate <= to && a.EndDate >= from {
				out = append(out, a)
			}
		}
	}
	return out
}

// RefreshHR replaces the HR absences overlapping [from, to] with a fresh
// fetch. It does nothing without an HR system.
func (b *Book) RefreshHR(ctx context.Context, from, to string) error {
	if b.hr == nil {
		return nil
	}
	periods, err := b.hr.GetAbsences(ctx, from, to)
	if err != nil {
		return fmt.Errorf("fetch HR absences %s..%s: %w", from, to, err)
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	kept := make([]model.Absence, 0, len(b.fromHR)+len(periods))
	for _, a := range b.fromHR {
		if a.StartDate > to || a.EndDate < from {
			kept = append(kept, a)
		}
	}
	for _, p := range periods {
		a := personio.ToAbsence(p)
		if rejected(a.Status) {
			continue
		}
		kept = append(kept, a)
	}
	b.fromHR = kept
	b.log.Debug("HR absences refreshed", slog.String("from", from), slog.String("to", to), slog.Int("count", len(periods)))
	return nil
}

// AbsenceFor returns the absence applying to date. HR absences win over
// manual ones on the same date.
func (b *Book) AbsenceFor(date string) *model.Absence {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, list := range [][]model.Absence{b.fromHR, b.manual} {
		for _, a := range list {
			if a.Covers(date) {
				found := a
				return &found
			}
		}
	}
	return nil
}

// ParseType validates an absence type name; "" means vacation.
func ParseType(s string) (model.AbsenceType, error) {
	switch t := model.AbsenceType(strings.ToLower(s)); t {
	case "":
		return model.AbsenceVacation, nil
	case model.AbsenceVacation, model.AbsenceSick, model.AbsenceHoliday, model.AbsenceOther:
		return t, nil
	}
	return "", fmt.Errorf("unknown absence type %q (want vacation, sick, holiday or other)", s)
}

func rejected(status string) bool {
	switch strings.ToLower(status) {
	case "rejected", "canceled", "cancelled":
		return true
	}
	return false
}
