// Package presence caches clock-in/clock-out records and aggregates them per day.
package presence

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Tiliavir/tally/internal/model"
	"github.com/Tiliavir/tally/internal/moco"
	"github.com/Tiliavir/tally/internal/timecalc"
)

// TTL is how long a fetched range is served without refetching.
const TTL = 5 * time.Minute

// Fetcher loads the presences of [from, to].
type Fetcher interface {
	GetPresences(ctx context.Context, from, to string) ([]moco.Presence, error)
}

// Cache holds the presences of the last fetched range. It is safe for
// concurrent use.
type Cache struct {
	fetcher Fetcher
	log     *slog.Logger
	now     func() time.Time

	mu      sync.RWMutex
	byDate  map[string][]moco.Presence
	from    string
	to      string
	fetched time.Time
}

// New returns an empty cache backed by f.
func New(f Fetcher, log *slog.Logger) *Cache {
	if log == nil {
		log = slog.Default()
	}
	return &Cache{
		fetcher: f,
		log:     log.With(slog.String("component", "presence")),
		now:     time.Now,
		byDate:  map[string][]moco.Presence{},
	}
}

// SetClock replaces the time source.
func (c *Cache) SetClock(now func() time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = now
}

// Fetch loads [from, to] unless the cached range covers it and is younger
// than TTL. On error the previous data stays in place.
func (c *Cache) Fetch(ctx context.Context, from, to string) error {
	c.mu.RLock()
	fresh := !c.fetched.IsZero() && c.now().Sub(c.fetched) < TTL && c.from <= from && c.to >= to
	c.mu.RUnlock()
	if fresh {
		return nil
	}

	presences, err := c.fetcher.GetPresences(ctx, from, to)
	if err != nil {
		return fmt.Errorf("fetch presences %s..%s: %w", from, to, err)
	}

	byDate := map[string][]moco.Presence{}
	for _, p := range presences {
		byDate[p.Date] = append(byDate[p.Date], p)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.byDate = byDate
	c.from, c.to = from, to
	c.fetched = c.now()
	c.log.Debug("presences loaded", slog.String("from", from), slog.String("to", to), slog.Int("count", len(presences)))
	return nil
}

// Invalidate forgets the cached range.
func (c *Cache) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.byDate = map[string][]moco.Presence{}
	c.from, c.to = "", ""
	c.fetched = time.Time{}
}

// PresenceFor returns the aggregated presence of date, or nil without records.
func (c *Cache) PresenceFor(date string) *model.Presence {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return Aggregate(c.byDate[date], c.now())
}

// Aggregate combines the presences of one day: earliest start, the end of
// the latest-starting record, total hours minus breaks, and whether any of
// them was home office. A record without an end counts until now.
func Aggregate(presences []moco.Presence, now time.Time) *model.Presence {
	if len(presences) == 0 {
		return nil
	}
	sorted := append([]moco.Presence(nil), presences...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].From < sorted[j].From })

	nowClock := now.Format("15:04")
	total := decimal.Zero
	out := &model.Presence{From: sorted[0].From, To: sorted[len(sorted)-1].To}
	for _, p := range sorted {
		to := p.To
		if to == "" {
			to = nowClock
		}
		hours, err := timecalc.ClockHours(p.From, to)
		if err != nil {
			continue
		}
		h := decimal.NewFromFloat(hours).Sub(decimal.NewFromInt(int64(p.Break)).Div(decimal.NewFromInt(60)))
		if h.IsPositive() {
			total = total.Add(h)
		}
		if p.IsHomeOffice {
			out.IsHomeOffice = true
		}
	}
	out.Hours, _ = total.Round(2).Float64()
	return out
}
