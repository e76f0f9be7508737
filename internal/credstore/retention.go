package credstore

import (
	"context"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/storrsec/internal/domain"
)

// Purger is implemented by stores that need an explicit job to drop
// abandoned visitor storage
type Purger interface {
	PurgeBefore(ctx context.Context, cutoff time.Time) (int, error)
}

// Purge removes items of store not written within retention. Stores that
// are not a Purger, and a zero retention, purge nothing.
func Purge(ctx context.Context, store domain.KeyValueStore, retention time.Duration, now time.Time) (int, error) {
	p, ok := store.(Purger)
	if !ok || retention <= 0 {
		return 0, nil
	}
	return p.PurgeBefore(ctx, now.Add(-retention))
}

// ScheduleRetention registers Purge on c. It reports false when store has
// nothing to purge on a schedule.
func ScheduleRetention(c *cron.Cron, spec string, store domain.KeyValueStore, retention time.Duration) (bool, error) {
	if _, ok := store.(Purger); !ok || retention <= 0 {
		return false, nil
	}
	_, err := c.AddFunc(spec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()
		removed, err := Purge(ctx, store, retention, time.Now())
		if err != nil {
			slog.Error("failed to purge abandoned visitor storage", "error", err)
			return
		}
		if removed > 0 {
			slog.Info("purged abandoned visitor storage", "items", removed, "retention", retention)
		}
	})
	if err != nil {
		return false, err
	}
	return true, nil
}
