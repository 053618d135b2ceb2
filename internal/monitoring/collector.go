// Package monitoring summarizes recent capture runs.
package monitoring

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/prerace-cli/internal/collect"
	"github.com/sells-group/prerace-cli/internal/model"
	"github.com/sells-group/prerace-cli/internal/store"
)

// maxRuns caps how many runs one snapshot reads.
const maxRuns = 10000

// MetricsSnapshot is a point-in-time view of capture health.
type MetricsSnapshot struct {
	Total      int     `json:"total"`
	Complete   int     `json:"complete"`
	Failed     int     `json:"failed"`
	Cancelled  int     `json:"cancelled"`
	InProgress int     `json:"in_progress"`
	FailRate   float64 `json:"fail_rate"`

	// Grades counts complete runs by confidence grade.
	Grades   map[model.Grade]int `json:"grades"`
	Featured int                 `json:"featured"`

	// SourceFailures counts runs in which each source failed or missed the
	// collection deadline.
	SourceFailures map[model.SourceKind]int `json:"source_failures"`
	// Excluded is the total of records withheld from the model.
	Excluded int `json:"excluded"`

	AvgDuration time.Duration `json:"avg_duration"`

	Lookback    time.Duration `json:"lookback"`
	CollectedAt time.Time     `json:"collected_at"`
}

// RunLister is the part of store.Store the collector reads.
type RunLister interface {
	ListRuns(ctx context.Context, filter store.RunFilter) ([]model.Run, error)
}

// Collector gathers metrics from the run store.
type Collector struct {
	runs RunLister
	now  func() time.Time
}

// NewCollector creates a new metrics collector.
func NewCollector(runs RunLister) *Collector {
	return &Collector{runs: runs, now: func() time.Time { return time.Now().UTC() }}
}

// Collect summarizes the runs created within lookback.
func (c *Collector) Collect(ctx context.Context, lookback time.Duration) (*MetricsSnapshot, error) {
	now := c.now()
	snap := &MetricsSnapshot{
		Grades:         make(map[model.Grade]int),
		SourceFailures: make(map[model.SourceKind]int),
		Lookback:       lookback,
		CollectedAt:    now,
	}

	filter := store.RunFilter{Limit: maxRuns}
	if lookback > 0 {
		filter.CreatedAfter = now.Add(-lookback)
	}
	runs, err := c.runs.ListRuns(ctx, filter)
	if err != nil {
		return nil, eris.Wrap(err, "monitoring: list runs")
	}

	snap.Total = len(runs)
	var totalDur time.Duration
	for _, r := range runs {
		switch r.Status {
		case model.RunStatusComplete:
			snap.Complete++
			totalDur += r.UpdatedAt.Sub(r.CreatedAt)
		case model.RunStatusFailed:
			snap.Failed++
		case model.RunStatusCancelled:
			snap.Cancelled++
		default:
			snap.InProgress++
		}

		if r.Result == nil {
			continue
		}
		for _, o := range r.Result.Sources {
			if o.Status != collect.StatusOK {
				snap.SourceFailures[o.Source]++
			}
		}
		for _, rec := range r.Result.Records {
			if rec.Flags.Excluded {
				snap.Excluded++
			}
		}
		if g := r.Result.Confidence; g != nil {
			snap.Grades[g.Grade]++
			if g.Featured {
				snap.Featured++
			}
		}
	}

	if finished := snap.Complete + snap.Failed; finished > 0 {
		snap.FailRate = float64(snap.Failed) / float64(finished)
	}
	if snap.Complete > 0 {
		snap.AvgDuration = totalDur / time.Duration(snap.Complete)
	}
	return snap, nil
}
