package tracker

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/Tiliavir/tally/internal/mapper"
	"github.com/Tiliavir/tally/internal/model"
	"github.com/Tiliavir/tally/internal/moco"
	"github.com/Tiliavir/tally/internal/monthcache"
	"github.com/Tiliavir/tally/internal/timecalc"
)

// Task is a secondary refresh triggered by a month fetch. Tasks run
// independently of the month cache and of each other.
type Task struct {
	Name string
	Run  func(ctx context.Context) error
}

// BackgroundTasks lists the refreshes that accompany a month fetch of
// [from, to]. Sources that are not connected contribute no task.
func (t *Tracker) BackgroundTasks(from, to string) []Task {
	var tasks []Task
	if t.d.Presence != nil && t.d.Billing != nil {
		tasks = append(tasks, Task{Name: "presences", Run: func(ctx context.Context) error {
			return t.d.Presence.Fetch(ctx, from, to)
		}})
	}
	if t.d.Absences != nil {
		tasks = append(tasks, Task{Name: "absences", Run: func(ctx context.Context) error {
			return t.d.Absences.RefreshHR(ctx, from, to)
		}})
	}
	return tasks
}

// FetchMonth populates the month cache for the month containing date and
// runs the background tasks for the same window. All run concurrently and
// it returns only when all are done, so presences and absences are current
// once it returns and the caller can build overviews from them straight
// away. Callers that must not wait run it in their own goroutine. Failures
// are logged, not returned: a month that failed to load is simply absent
// from the cache.
func (t *Tracker) FetchMonth(ctx context.Context, date string) error {
	from, to, err := timecalc.MonthRange(date)
	if err != nil {
		return err
	}

	var wg sync.WaitGroup
	if t.cache != nil && t.d.Billing != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			t.cache.FetchMonth(ctx, from)
		}()
	}
	for _, task := range t.BackgroundTasks(from, to) {
		wg.Add(1)
		go func(task Task) {
			defer wg.Done()
			if err := task.Run(ctx); err != nil {
				t.log.Warn("background task failed", slog.String("task", task.Name), slog.Any("error", err))
			}
		}(task)
	}
	wg.Wait()
	return nil
}

// RefetchMonth drops the cached month containing date and the presence
// cache, then fetches both again.
func (t *Tracker) RefetchMonth(ctx context.Context, date string) error {
	key, err := monthcache.MonthKey(date)
	if err != nil {
		return err
	}
	if t.cache != nil {
		t.cache.Invalidate(ctx, key)
	}
	if t.d.Presence != nil {
		t.d.Presence.Invalidate()
	}
	return t.FetchMonth(ctx, date)
}

// CreateActivity books a new billing activity, then refreshes its day and
// makes sure its month is cached. A failed create leaves every cache as it was.
func (t *Tracker) CreateActivity(ctx context.Context, in moco.ActivityInput) (model.UnifiedEntry, error) {
	if t.d.Billing == nil {
		return model.UnifiedEntry{}, fmt.Errorf("billing: %w", ErrNotConnected)
	}
	a, err := t.d.Billing.CreateActivity(ctx, in)
	if err != nil {
		return model.UnifiedEntry{}, fmt.Errorf("create activity: %w", err)
	}
	t.afterMutation(ctx, a.Date)
	return mapper.MapActivity(a), nil
}

// UpdateActivity changes a billing activity. When the activity moves to
// another date, both the old and the new day are refreshed.
func (t *Tracker) UpdateActivity(ctx context.Context, id int64, previousDate string, in moco.ActivityInput) (model.UnifiedEntry, error) {
	if t.d.Billing == nil {
		return model.UnifiedEntry{}, fmt.Errorf("billing: %w", ErrNotConnected)
	}
	a, err := t.d.Billing.UpdateActivity(ctx, id, in)
	if err != nil {
		return model.UnifiedEntry{}, fmt.Errorf("update activity %d: %w", id, err)
	}
	if previousDate != "" && previousDate != a.Date {
		t.afterMutation(ctx, previousDate)
	}
	t.afterMutation(ctx, a.Date)
	return mapper.MapActivity(a), nil
}

// DeleteActivity removes a billing activity booked on date.
func (t *Tracker) DeleteActivity(ctx context.Context, id int64, date string) error {
	if t.d.Billing == nil {
		return fmt.Errorf("billing: %w", ErrNotConnected)
	}
	if err := t.d.Billing.DeleteActivity(ctx, id); err != nil {
		return fmt.Errorf("delete activity %d: %w", id, err)
	}
	t.afterMutation(ctx, date)
	return nil
}

// afterMutation refreshes the billing entries of date, which replaces the
// day inside a cached month, then ensures the month itself is cached.
func (t *Tracker) afterMutation(ctx context.Context, date string) {
	if _, err := timecalc.ParseDate(date); err != nil {
		t.log.Warn("mutation returned invalid date", slog.String("date", date))
		return
	}
	activities, err := t.d.Billing.GetActivities(ctx, date, date)
	if err != nil {
		t.log.Warn("refresh after mutation failed", slog.String("date", date), slog.Any("error", err))
	} else {
		entries := mapper.MapActivities(activities)
		if t.cache != nil {
			t.cache.UpdateDay(ctx, date, entries)
		}
		t.mu.Lock()
		if t.day.Date == date {
			t.day.Billing.Entries = entries
			t.day.Billing.Err = nil
		}
		t.mu.Unlock()
	}
	if t.cache != nil {
		t.cache.FetchMonth(ctx, date)
	}
}

// InvalidateMonth drops the cached month containing date without refetching.
func (t *Tracker) InvalidateMonth(ctx context.Context, date string) error {
	key, err := monthcache.MonthKey(date)
	if err != nil {
		return err
	}
	if t.cache != nil {
		t.cache.Invalidate(ctx, key)
	}
	return nil
}
