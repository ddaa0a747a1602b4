// Package monthcache keeps mapped billing entries per calendar month.
//
// Months move absent -> loading -> populated. A populated month never expires;
// it only returns to absent through Invalidate or ClearAll. Single days are
// refreshed in place with UpdateDay.
package monthcache

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Tiliavir/tally/internal/model"
	"github.com/Tiliavir/tally/internal/storage"
	"github.com/Tiliavir/tally/internal/timecalc"
)

// StorageKey is the key the cache is persisted under.
const StorageKey = "month-cache"

// State is the lifecycle state of one month.
type State int

const (
	StateAbsent State = iota
	StateLoading
	StatePopulated
)

func (s State) String() string {
	switch s {
	case StateLoading:
		return "loading"
	case StatePopulated:
		return "populated"
	}
	return "absent"
}

// Month is the cached billing data of one month.
type Month struct {
	Entries     []model.UnifiedEntry `json:"entries"`
	LastFetched time.Time            `json:"last_fetched"`
}

// Fetcher loads the mapped billing entries of [from, to].
type Fetcher interface {
	FetchBilling(ctx context.Context, from, to string) ([]model.UnifiedEntry, error)
}

// Cache is safe for concurrent use.
type Cache struct {
	store   storage.Store
	fetcher Fetcher
	log     *slog.Logger
	now     func() time.Time

	mu      sync.RWMutex
	months  map[string]Month
	loading map[string]bool
}

// New returns an empty cache. Call Load to restore the persisted months.
func New(store storage.Store, fetcher Fetcher, log *slog.Logger) *Cache {
	if log == nil {
		log = slog.Default()
	}
	return &Cache{
		store:   store,
		fetcher: fetcher,
		log:     log.With(slog.String("component", "monthcache")),
		now:     time.Now,
		months:  map[string]Month{},
		loading: map[string]bool{},
	}
}

// Load restores the persisted months. A missing document is an empty cache.
func (c *Cache) Load(ctx context.Context) error {
	var months map[string]Month
	err := c.store.Get(ctx, StorageKey, &months)
	if errors.Is(err, storage.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("load month cache: %w", err)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if months == nil {
		months = map[string]Month{}
	}
	c.months = months
	c.log.Debug("loaded", slog.Int("months", len(months)))
	return nil
}

// MonthKey returns the key of the month containing date: its first day.
func MonthKey(date string) (string, error) {
	return timecalc.MonthStart(date)
}

// State reports the lifecycle state of monthKey.
func (c *Cache) State(monthKey string) State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if _, ok := c.months[monthKey]; ok {
		return StatePopulated
	}
	if c.loading[monthKey] {
		return StateLoading
	}
	return StateAbsent
}

// FetchMonth populates the whole calendar month containing date. It is a
// no-op when the month is already populated or loading. A failed fetch leaves
// the month absent and is logged, never returned: callers treat it as a cache
// miss. It reports whether this call populated the month.
func (c *Cache) FetchMonth(ctx context.Context, date string) bool {
	return c.load(ctx, date, false)
}

// RefreshMonth fetches the month containing date again and replaces the
// cached copy. A failed fetch keeps the previous copy. It is a no-op while
// the month is loading.
func (c *Cache) RefreshMonth(ctx context.Context, date string) bool {
	return c.load(ctx, date, true)
}

func (c *Cache) load(ctx context.Context, date string, replace bool) bool {
	from, to, err := timecalc.MonthRange(date)
	if err != nil {
		c.log.Error("fetch month", slog.String("date", date), slog.Any("error", err))
		return false
	}
	key := from

	c.mu.Lock()
	if _, ok := c.months[key]; (ok && !replace) || c.loading[key] {
		c.mu.Unlock()
		return false
	}
	c.loading[key] = true
	c.mu.Unlock()

	entries, err := c.fetcher.FetchBilling(ctx, from, to)

	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.loading, key)
	if err != nil {
		c.log.Error("fetch month failed", slog.String("month", key), slog.Any("error", err))
		return false
	}
	if entries == nil {
		entries = []model.UnifiedEntry{}
	}
	c.months[key] = Month{Entries: entries, LastFetched: c.now()}
	c.persistLocked(ctx)
	c.log.Info("month cached", slog.String("month", key), slog.Int("entries", len(entries)))
	return true
}

// FetchBillingOnly backfills the month starting at monthKey without any of
// the side effects a user-driven month fetch triggers.
func (c *Cache) FetchBillingOnly(ctx context.Context, monthKey string) bool {
	return c.FetchMonth(ctx, monthKey)
}

// UpdateDay replaces every entry dated date with fresh. Entries of other
// days are kept unchanged and in order. Readers see either the old or the
// new day, never a mix. It is a no-op when the month is not cached.
func (c *Cache) UpdateDay(ctx context.Context, date string, fresh []model.UnifiedEntry) {
	key, err := MonthKey(date)
	if err != nil {
		c.log.Error("update day", slog.String("date", date), slog.Any("error", err))
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	month, ok := c.months[key]
	if !ok {
		return
	}
	updated := make([]model.UnifiedEntry, 0, len(month.Entries)+len(fresh))
	for _, e := range month.Entries {
		if e.Date != date {
			updated = append(updated, e)
		}
	}
	updated = append(updated, fresh...)
	month.Entries = updated
	c.months[key] = month
	c.persistLocked(ctx)
	c.log.Debug("day updated", slog.String("date", date), slog.Int("entries", len(fresh)))
}

// Invalidate drops monthKey and persists the removal.
func (c *Cache) Invalidate(ctx context.Context, monthKey string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.months[monthKey]; !ok {
		return
	}
	delete(c.months, monthKey)
	c.persistLocked(ctx)
	c.log.Info("month invalidated", slog.String("month", monthKey))
}

// ClearAll drops every month.
func (c *Cache) ClearAll(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.months = map[string]Month{}
	c.persistLocked(ctx)
	c.log.Info("cache cleared")
}

// CachedMonthCount returns the number of populated months.
func (c *Cache) CachedMonthCount() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.months)
}

// Months returns the populated month keys in ascending order.
func (c *Cache) Months() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return sortedKeys(c.months)
}

// EntriesForDate returns the cached entries of date inside monthKey. A
// missing month yields empty lists.
func (c *Cache) EntriesForDate(date, monthKey string) model.SourceEntries {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return model.SourceEntries{
		Billing:  model.FilterDate(c.months[monthKey].Entries, date),
		Issues:   []model.UnifiedEntry{},
		Calendar: []model.UnifiedEntry{},
	}
}

// EntriesBetween returns every cached entry dated within [from, to].
func (c *Cache) EntriesBetween(from, to string) []model.UnifiedEntry {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := []model.UnifiedEntry{}
	for _, k := range sortedKeys(c.months) {
		for _, e := range c.months[k].Entries {
			if e.Date >= from && e.Date <= to {
				out = append(out, e)
			}
		}
	}
	return out
}

// DatesWithData returns the distinct dates with entries in monthKey, ascending.
func (c *Cache) DatesWithData(monthKey string) []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	seen := map[string]bool{}
	dates := []string{}
	for _, e := range c.months[monthKey].Entries {
		if !seen[e.Date] {
			seen[e.Date] = true
			dates = append(dates, e.Date)
		}
	}
	sort.Strings(dates)
	return dates
}

// HasDataForDate reports whether the owning month holds entries for date.
func (c *Cache) HasDataForDate(date string) bool {
	key, err := MonthKey(date)
	if err != nil {
		return false
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, e := range c.months[key].Entries {
		if e.Date == date {
			return true
		}
	}
	return false
}

// LoggedHoursForTask sums the hours of every cached entry booked on taskID.
// It scans all cached months.
func (c *Cache) LoggedHoursForTask(taskID int64) float64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	total := decimal.Zero
	for _, m := range c.months {
		for _, e := range m.Entries {
			if b := e.Metadata.Billing; b != nil && b.TaskID == taskID {
				total = total.Add(decimal.NewFromFloat(e.Hours))
			}
		}
	}
	f, _ := total.Round(2).Float64()
	return f
}

// persistLocked writes the months to storage. A storage failure is logged;
// the in-memory cache stays authoritative.
func (c *Cache) persistLocked(ctx context.Context) {
	if err := c.store.Set(ctx, StorageKey, c.months); err != nil {
		c.log.Error("persist failed", slog.Any("error", err))
	}
}

func sortedKeys(m map[string]Month) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
