// Package store persists capture runs and the daily schedule cache.
package store

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/prerace-cli/internal/model"
)

// ErrRunNotFound is returned when a run id does not exist.
var ErrRunNotFound = eris.New("run not found")

// RunFilter specifies criteria for listing runs.
type RunFilter struct {
	Status  model.RunStatus `json:"status,omitempty"`
	EventID string          `json:"event_id,omitempty"`
	Limit   int             `json:"limit,omitempty"`
	Offset  int             `json:"offset,omitempty"`

	// CreatedAfter keeps runs created at or after this instant when non-zero.
	CreatedAfter time.Time `json:"created_after,omitempty"`
}

// Store defines the persistence interface for capture runs. It also serves
// as the schedule cache (see schedule.Cache).
type Store interface {
	// Runs
	CreateRun(ctx context.Context, event model.Event) (*model.Run, error)
	UpdateRunStatus(ctx context.Context, runID string, status model.RunStatus) error
	// FinishRun stores the result and a terminal status. errMsg is empty on
	// success.
	FinishRun(ctx context.Context, runID string, status model.RunStatus, result *model.RunResult, errMsg string) error
	GetRun(ctx context.Context, runID string) (*model.Run, error)
	ListRuns(ctx context.Context, filter RunFilter) ([]model.Run, error)

	// Key/value cache with expiry
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Put(ctx context.Context, key string, value []byte, ttl time.Duration) error
	DeleteExpired(ctx context.Context) (int, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}

const defaultListLimit = 100

func listLimit(n int) int {
	if n <= 0 {
		return defaultListLimit
	}
	return n
}
