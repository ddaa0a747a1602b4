package tracker

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/Tiliavir/tally/internal/monthcache"
	"github.com/Tiliavir/tally/internal/overview"
	"github.com/Tiliavir/tally/internal/timecalc"
)

// yearBatch is how many months are backfilled at once.
const yearBatch = 3

// YearBalance backfills every month of today's year through the current one
// into the month cache, then sums the working days before today. Months
// that fail to load are left out of the totals and show up as a gap between
// Months and MonthsCached.
func (t *Tracker) YearBalance(ctx context.Context, today string) (overview.Year, error) {
	start, err := timecalc.ParseDate(today)
	if err != nil {
		return overview.Year{}, err
	}
	months, err := timecalc.YearMonths(today)
	if err != nil {
		return overview.Year{}, err
	}
	if t.cache == nil {
		return overview.Year{}, fmt.Errorf("month cache: %w", ErrNotConnected)
	}

	if t.d.Billing != nil {
		t.backfill(ctx, months)
	}

	y := overview.Year{Year: start.Year(), Through: today, Months: len(months)}
	for _, m := range months {
		if t.cache.State(m) != monthcache.StatePopulated {
			continue
		}
		y.MonthsCached++
		from, to, err := timecalc.MonthRange(m)
		if err != nil {
			return overview.Year{}, err
		}
		days, err := t.CachedDays(from, to)
		if err != nil {
			return overview.Year{}, err
		}
		y.AddDays(days)
	}
	return y, nil
}

// backfill loads the months missing from the cache, yearBatch at a time.
func (t *Tracker) backfill(ctx context.Context, months []string) {
	var missing []string
	for _, m := range months {
		if t.cache.State(m) != monthcache.StatePopulated {
			missing = append(missing, m)
		}
	}
	for i := 0; i < len(missing); i += yearBatch {
		if ctx.Err() != nil {
			return
		}
		batch := missing[i:min(i+yearBatch, len(missing))]
		var wg sync.WaitGroup
		for _, m := range batch {
			wg.Add(1)
			go func() {
				defer wg.Done()
				t.cache.FetchBillingOnly(ctx, m)
			}()
		}
		wg.Wait()
		t.log.Debug("year backfill", slog.Int("loaded", len(months)-len(missing)+i+len(batch)), slog.Int("months", len(months)))
	}
}
