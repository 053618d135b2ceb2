// Package source talks to the upstream race data providers: the race card
// and index source, the past-performance source, the odds source and the
// daily schedule.
package source

import (
	"context"
	"time"

	"github.com/sells-group/prerace-cli/internal/model"
)

// Client fetches one source's view of an event. Implementations return
// resilience.TransientError or resilience.PermanentError as the outermost
// error so the fetcher can classify without guessing.
type Client interface {
	Kind() model.SourceKind
	Fetch(ctx context.Context, eventID string) (*model.SourceRecord, error)
}

// ScheduleClient lists the events scheduled on a date.
type ScheduleClient interface {
	Events(ctx context.Context, date time.Time) ([]model.Event, error)
}
