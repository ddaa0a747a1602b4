package monthcache_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"reflect"
	"sync"
	"testing"

	"github.com/Tiliavir/tally/internal/model"
	"github.com/Tiliavir/tally/internal/monthcache"
	"github.com/Tiliavir/tally/internal/storage"
)

type fakeFetcher struct {
	mu      sync.Mutex
	calls   int
	ranges  [][2]string
	entries []model.UnifiedEntry
	err     error
	block   chan struct{}
}

func (f *fakeFetcher) FetchBilling(_ context.Context, from, to string) ([]model.UnifiedEntry, error) {
	f.mu.Lock()
	f.calls++
	f.ranges = append(f.ranges, [2]string{from, to})
	block := f.block
	f.mu.Unlock()
	if block != nil {
		<-block
	}
	if f.err != nil {
		return nil, f.err
	}
	var out []model.UnifiedEntry
	for _, e := range f.entries {
		if e.Date >= from && e.Date <= to {
			out = append(out, e)
		}
	}
	return out, nil
}

func (f *fakeFetcher) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func billing(id, date string, hours float64, taskID int64) model.UnifiedEntry {
	return model.UnifiedEntry{
		ID: id, Source: model.SourceBilling, Date: date, Hours: hours,
		Metadata: model.Metadata{Billing: &model.BillingMeta{TaskID: taskID}},
	}
}

var quiet = slog.New(slog.NewTextHandler(io.Discard, nil))

func newCache(t *testing.T, f *fakeFetcher) (*monthcache.Cache, storage.Store) {
	t.Helper()
	store := storage.NewFileStore(t.TempDir())
	return monthcache.New(store, f, quiet), store
}

func januaryFetcher() *fakeFetcher {
	return &fakeFetcher{entries: []model.UnifiedEntry{
		billing("billing-1", "2025-01-09", 1, 10),
		billing("billing-2", "2025-01-10", 2, 10),
		billing("billing-3", "2025-01-10", 0.5, 11),
		billing("billing-4", "2025-01-11", 3, 10),
		billing("billing-5", "2025-02-03", 4, 10),
	}}
}

func TestFetchMonth_PopulatesOnce(t *testing.T) {
	f := januaryFetcher()
	c, _ := newCache(t, f)
	ctx := context.Background()

	if !c.FetchMonth(ctx, "2025-01-01") {
		t.Fatal("first FetchMonth did not populate")
	}
	if c.FetchMonth(ctx, "2025-01-01") {
		t.Error("second FetchMonth populated again")
	}
	if f.callCount() != 1 {
		t.Errorf("fetch calls = %d, want 1", f.callCount())
	}
	if got := c.State("2025-01-01"); got != monthcache.StatePopulated {
		t.Errorf("State = %v, want populated", got)
	}
	if got := c.CachedMonthCount(); got != 1 {
		t.Errorf("CachedMonthCount = %d, want 1", got)
	}
	got := c.EntriesForDate("2025-01-10", "2025-01-01")
	if len(got.Billing) != 2 || len(got.Issues) != 0 || len(got.Calendar) != 0 {
		t.Errorf("EntriesForDate = %+v", got)
	}
}

func TestFetchMonth_MidMonthDateLoadsWholeMonth(t *testing.T) {
	f := januaryFetcher()
	c, _ := newCache(t, f)
	ctx := context.Background()

	if !c.FetchMonth(ctx, "2025-01-10") {
		t.Fatal("FetchMonth(2025-01-10) did not populate")
	}
	if c.FetchMonth(ctx, "2025-01-01") {
		t.Error("FetchMonth(2025-01-01) populated again")
	}
	if want := [][2]string{{"2025-01-01", "2025-01-31"}}; !reflect.DeepEqual(f.ranges, want) {
		t.Errorf("fetched ranges = %v, want %v", f.ranges, want)
	}
	if got := c.EntriesForDate("2025-01-09", "2025-01-01").Billing; len(got) != 1 {
		t.Errorf("2025-01-09 entries = %d, want 1", len(got))
	}
	if got := c.DatesWithData("2025-01-01"); !reflect.DeepEqual(got, []string{"2025-01-09", "2025-01-10", "2025-01-11"}) {
		t.Errorf("DatesWithData = %v", got)
	}
}

func TestFetchMonth_InvalidDate(t *testing.T) {
	f := januaryFetcher()
	c, _ := newCache(t, f)
	if c.FetchMonth(context.Background(), "2025-13-01") {
		t.Error("FetchMonth(2025-13-01) reported success")
	}
	if f.callCount() != 0 {
		t.Errorf("fetch calls = %d, want 0", f.callCount())
	}
}

func TestRefreshMonth(t *testing.T) {
	f := januaryFetcher()
	c, _ := newCache(t, f)
	ctx := context.Background()
	c.FetchMonth(ctx, "2025-01-01")

	f.mu.Lock()
	f.entries = append(f.entries, billing("billing-6", "2025-01-20", 1, 10))
	f.err = errors.New("502 bad gateway")
	f.mu.Unlock()
	if c.RefreshMonth(ctx, "2025-01-15") {
		t.Error("RefreshMonth reported success on error")
	}
	if got := c.DatesWithData("2025-01-01"); len(got) != 3 {
		t.Errorf("DatesWithData after failed refresh = %v, want the previous 3 dates", got)
	}

	f.mu.Lock()
	f.err = nil
	f.mu.Unlock()
	if !c.RefreshMonth(ctx, "2025-01-15") {
		t.Fatal("RefreshMonth did not replace the month")
	}
	if !c.HasDataForDate("2025-01-20") {
		t.Error("refreshed month misses 2025-01-20")
	}
	if f.callCount() != 3 {
		t.Errorf("fetch calls = %d, want 3", f.callCount())
	}
}

func TestFetchMonth_FailureLeavesAbsent(t *testing.T) {
	f := &fakeFetcher{err: errors.New("502 bad gateway")}
	c, _ := newCache(t, f)
	ctx := context.Background()

	if c.FetchMonth(ctx, "2025-01-01") {
		t.Fatal("FetchMonth reported success on error")
	}
	if got := c.State("2025-01-01"); got != monthcache.StateAbsent {
		t.Errorf("State = %v, want absent", got)
	}
	if got := c.EntriesForDate("2025-01-10", "2025-01-01"); len(got.Billing) != 0 || got.Billing == nil {
		t.Errorf("EntriesForDate on miss = %#v, want empty non-nil", got.Billing)
	}

	f.err = nil
	if !c.FetchMonth(ctx, "2025-01-01") {
		t.Error("retry after failure did not populate")
	}
}

func TestFetchMonth_NoOpWhileLoading(t *testing.T) {
	f := januaryFetcher()
	f.block = make(chan struct{})
	c, _ := newCache(t, f)
	ctx := context.Background()

	done := make(chan bool)
	go func() { done <- c.FetchMonth(ctx, "2025-01-01") }()

	for c.State("2025-01-01") != monthcache.StateLoading {
	}
	if c.FetchMonth(ctx, "2025-01-01") {
		t.Error("FetchMonth while loading populated")
	}
	close(f.block)
	if !<-done {
		t.Error("blocked FetchMonth did not populate")
	}
	if f.callCount() != 1 {
		t.Errorf("fetch calls = %d, want 1", f.callCount())
	}
}

func TestUpdateDay_OnlyTouchesThatDay(t *testing.T) {
	c, _ := newCache(t, januaryFetcher())
	ctx := context.Background()
	c.FetchMonth(ctx, "2025-01-01")

	before9 := c.EntriesForDate("2025-01-09", "2025-01-01").Billing
	before11 := c.EntriesForDate("2025-01-11", "2025-01-01").Billing

	fresh := []model.UnifiedEntry{billing("billing-9", "2025-01-10", 6, 12)}
	c.UpdateDay(ctx, "2025-01-10", fresh)

	if got := c.EntriesForDate("2025-01-10", "2025-01-01").Billing; !reflect.DeepEqual(got, fresh) {
		t.Errorf("updated day = %+v, want %+v", got, fresh)
	}
	if got := c.EntriesForDate("2025-01-09", "2025-01-01").Billing; !reflect.DeepEqual(got, before9) {
		t.Errorf("2025-01-09 changed: %+v", got)
	}
	if got := c.EntriesForDate("2025-01-11", "2025-01-01").Billing; !reflect.DeepEqual(got, before11) {
		t.Errorf("2025-01-11 changed: %+v", got)
	}

	c.UpdateDay(ctx, "2025-01-10", nil)
	if got := c.DatesWithData("2025-01-01"); !reflect.DeepEqual(got, []string{"2025-01-09", "2025-01-11"}) {
		t.Errorf("DatesWithData = %v", got)
	}
}

func TestUpdateDay_NoOpWhenMonthMissing(t *testing.T) {
	c, store := newCache(t, januaryFetcher())
	ctx := context.Background()
	c.UpdateDay(ctx, "2025-03-10", []model.UnifiedEntry{billing("billing-1", "2025-03-10", 1, 1)})

	if c.CachedMonthCount() != 0 || c.HasDataForDate("2025-03-10") {
		t.Error("UpdateDay created a month")
	}
	var m map[string]monthcache.Month
	if err := store.Get(ctx, monthcache.StorageKey, &m); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("store written on no-op: %v", err)
	}
}

func TestInvalidateAndPersistence(t *testing.T) {
	f := januaryFetcher()
	c, store := newCache(t, f)
	ctx := context.Background()
	c.FetchMonth(ctx, "2025-01-01")
	c.FetchMonth(ctx, "2025-02-01")

	reloaded := monthcache.New(store, f, quiet)
	if err := reloaded.Load(ctx); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got := reloaded.Months(); !reflect.DeepEqual(got, []string{"2025-01-01", "2025-02-01"}) {
		t.Errorf("reloaded Months = %v", got)
	}

	c.Invalidate(ctx, "2025-01-01")
	if c.State("2025-01-01") != monthcache.StateAbsent {
		t.Error("month still cached after Invalidate")
	}
	reloaded = monthcache.New(store, f, quiet)
	if err := reloaded.Load(ctx); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got := reloaded.Months(); !reflect.DeepEqual(got, []string{"2025-02-01"}) {
		t.Errorf("Months after Invalidate = %v", got)
	}

	c.ClearAll(ctx)
	if c.CachedMonthCount() != 0 {
		t.Errorf("CachedMonthCount after ClearAll = %d", c.CachedMonthCount())
	}
}

func TestLoggedHoursForTask(t *testing.T) {
	c, _ := newCache(t, januaryFetcher())
	ctx := context.Background()
	c.FetchMonth(ctx, "2025-01-01")
	c.FetchBillingOnly(ctx, "2025-02-01")

	if got := c.LoggedHoursForTask(10); got != 10 {
		t.Errorf("LoggedHoursForTask(10) = %v, want 10", got)
	}
	if got := c.LoggedHoursForTask(11); got != 0.5 {
		t.Errorf("LoggedHoursForTask(11) = %v, want 0.5", got)
	}
	if got := c.LoggedHoursForTask(99); got != 0 {
		t.Errorf("LoggedHoursForTask(99) = %v, want 0", got)
	}
}

func TestHasDataForDateAndRange(t *testing.T) {
	c, _ := newCache(t, januaryFetcher())
	ctx := context.Background()
	c.FetchMonth(ctx, "2025-01-01")

	if !c.HasDataForDate("2025-01-10") {
		t.Error("HasDataForDate(2025-01-10) = false")
	}
	if c.HasDataForDate("2025-01-12") {
		t.Error("HasDataForDate(2025-01-12) = true")
	}
	if got := len(c.EntriesBetween("2025-01-10", "2025-01-11")); got != 3 {
		t.Errorf("EntriesBetween = %d entries, want 3", got)
	}
}
