package tracker

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// AutoRefresh refreshes the live day and its month every interval until ctx
// is cancelled. The live day is the date last fetched, or today() when no
// day has been fetched yet. A zero or negative interval disables it.
func (t *Tracker) AutoRefresh(ctx context.Context, every time.Duration, today func() string) {
	if every <= 0 {
		return
	}
	t.log.Info("auto refresh started", slog.Duration("every", every))
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			t.log.Info("auto refresh stopped")
			return
		case <-ticker.C:
			date := t.Day().Date
			if date == "" {
				date = today()
			}
			t.refreshLive(ctx, date)
		}
	}
}

// refreshLive refreshes date and its cached month side by side. Failures
// are logged; the previous data stays in place.
func (t *Tracker) refreshLive(ctx context.Context, date string) {
	t.log.Debug("auto refresh", slog.String("date", date))
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		if _, err := t.RefreshDay(ctx, date); err != nil {
			t.log.Warn("auto refresh day failed", slog.String("date", date), slog.Any("error", err))
		}
	}()
	if t.cache != nil && t.d.Billing != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			t.cache.RefreshMonth(ctx, date)
		}()
	}
	wg.Wait()
}
