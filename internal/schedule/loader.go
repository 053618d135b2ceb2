package schedule

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/prerace-cli/internal/model"
	"github.com/sells-group/prerace-cli/internal/resilience"
	"github.com/sells-group/prerace-cli/internal/source"
)

// DefaultCacheTTL keeps a day's schedule long enough to cover the racing day.
const DefaultCacheTTL = 18 * time.Hour

// ErrEventNotFound is returned when an event id is not on the day's card.
var ErrEventNotFound = eris.New("event not found in schedule")

// Cache is the key/value store the loader persists schedules in.
type Cache interface {
	// Get returns the value for key and whether it was present and fresh.
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Put(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// Loader returns the event list for a date, reading through the cache.
type Loader struct {
	client source.ScheduleClient
	cache  Cache
	ttl    time.Duration
	retry  resilience.RetryConfig
}

// NewLoader creates a Loader. A nil cache disables caching.
func NewLoader(client source.ScheduleClient, cache Cache, ttl time.Duration, retry resilience.RetryConfig) *Loader {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &Loader{client: client, cache: cache, ttl: ttl, retry: retry}
}

// CacheKey is the cache key for a date's schedule.
func CacheKey(date time.Time) string {
	return "schedule:" + date.Format(source.DateLayout)
}

// EventsFor returns the events scheduled on date, sorted by start time.
func (l *Loader) EventsFor(ctx context.Context, date time.Time) ([]model.Event, error) {
	key := CacheKey(date)
	log := zap.L().With(zap.String("key", key))

	if l.cache != nil {
		data, ok, err := l.cache.Get(ctx, key)
		switch {
		case err != nil:
			log.Warn("schedule: cache read failed, fetching", zap.Error(err))
		case ok:
			var events []model.Event
			if err := json.Unmarshal(data, &events); err == nil {
				log.Debug("schedule: cache hit", zap.Int("events", len(events)))
				return events, nil
			}
			log.Warn("schedule: cached value corrupt, fetching")
		}
	}

	cfg := l.retry
	if cfg.OnRetry == nil {
		cfg.OnRetry = resilience.RetryLogger("schedule", "events")
	}
	events, err := resilience.DoVal(ctx, cfg, func(ctx context.Context) ([]model.Event, error) {
		return l.client.Events(ctx, date)
	})
	if err != nil {
		return nil, eris.Wrapf(err, "schedule: load %s", date.Format(source.DateLayout))
	}

	if l.cache != nil {
		data, err := json.Marshal(events)
		if err != nil {
			return nil, eris.Wrap(err, "schedule: marshal events")
		}
		if err := l.cache.Put(ctx, key, data, l.ttl); err != nil {
			log.Warn("schedule: cache write failed", zap.Error(err))
		}
	}
	log.Info("schedule: loaded", zap.Int("events", len(events)))
	return events, nil
}

// Event returns the event with id on date.
func (l *Loader) Event(ctx context.Context, date time.Time, id string) (model.Event, error) {
	events, err := l.EventsFor(ctx, date)
	if err != nil {
		return model.Event{}, err
	}
	for _, ev := range events {
		if ev.ID == id {
			return ev, nil
		}
	}
	return model.Event{}, eris.Wrapf(ErrEventNotFound, "schedule: event %s on %s", id, date.Format(source.DateLayout))
}

// Upcoming returns the events on date whose start is after now.
func (l *Loader) Upcoming(ctx context.Context, date, now time.Time) ([]model.Event, error) {
	events, err := l.EventsFor(ctx, date)
	if err != nil {
		return nil, err
	}
	var out []model.Event
	for _, ev := range events {
		if ev.StartTime.After(now) {
			out = append(out, ev)
		}
	}
	return out, nil
}
