// Package integrate merges the per-source records of one event into a single
// record per entrant, derives continuity and interaction features, validates
// completeness and encodes model input rows.
package integrate

import (
	"context"
	"sort"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/prerace-cli/internal/model"
	"github.com/sells-group/prerace-cli/internal/resolve"
)

// ErrIncompleteRecord is returned when no record is fit for the model.
var ErrIncompleteRecord = eris.New("no complete records")

// Config controls integration.
type Config struct {
	// ExcludeIncomplete drops flagged rows instead of passing them with a
	// low-confidence marker.
	ExcludeIncomplete bool
	// HistoryDepth is how many past starts produce per-start features (max 3).
	HistoryDepth int
	// MinSimilarity is the horse-name alignment threshold.
	MinSimilarity float64
}

// Result is the integration output for one event.
type Result struct {
	Records []model.MergedRecord
	Report  QualityReport
}

// Eligible returns the records that may be sent to the model.
func (r *Result) Eligible() []model.MergedRecord {
	var out []model.MergedRecord
	for _, rec := range r.Records {
		if rec.Eligible() {
			out = append(out, rec)
		}
	}
	return out
}

// Engine integrates source records.
type Engine struct {
	cfg Config
}

// New creates an Engine, filling unset options with defaults.
func New(cfg Config) *Engine {
	if cfg.HistoryDepth <= 0 {
		cfg.HistoryDepth = 3
	}
	if cfg.MinSimilarity <= 0 {
		cfg.MinSimilarity = resolve.DefaultMinSimilarity
	}
	return &Engine{cfg: cfg}
}

// Merge aligns and merges records without deriving features or validating.
// The output does not depend on the order of records.
func (e *Engine) Merge(event model.Event, records []*model.SourceRecord) ([]model.MergedRecord, []int, error) {
	ordered, err := orderRecords(records)
	if err != nil {
		return nil, nil, err
	}
	a := newAligner(e.cfg.MinSimilarity)
	for _, rec := range ordered {
		for _, row := range rec.Rows {
			a.add(rec.Source, row)
		}
	}
	entries := a.sortedEntries()
	out := make([]model.MergedRecord, 0, len(entries))
	for _, en := range entries {
		out = append(out, mergeEntry(event.ID, en))
	}
	var dups []int
	for pn := range a.duplicates {
		dups = append(dups, pn)
	}
	sort.Ints(dups)
	return out, dups, nil
}

// Integrate runs the full integration for one event. Jockey names are
// resolved through names, which may be nil. When no record is eligible the
// result is still returned together with ErrIncompleteRecord.
func (e *Engine) Integrate(ctx context.Context, event model.Event, records []*model.SourceRecord, names *resolve.Cache) (*Result, error) {
	merged, dups, err := e.Merge(event, records)
	if err != nil {
		return nil, err
	}

	for i := range merged {
		if err := resolveJockeys(ctx, names, &merged[i]); err != nil {
			return nil, eris.Wrap(err, "integrate: resolve jockeys")
		}
		continuity(&merged[i])
	}

	res := &Result{Report: QualityReport{EventID: event.ID, DuplicateProgramNumbers: dups}}
	validate(event, merged, e.cfg.ExcludeIncomplete, &res.Report)

	for i := range merged {
		interactions(event, &merged[i])
		features(event, &merged[i], e.cfg.HistoryDepth)
	}
	deviationScores(merged)
	res.Records = merged

	zap.L().Info("integrate: complete",
		zap.String("event_id", event.ID),
		zap.Int("records", res.Report.TotalRows),
		zap.Int("eligible", res.Report.Eligible),
		zap.Int("excluded", res.Report.Excluded),
		zap.Bool("field_size_mismatch", res.Report.FieldSizeMismatch),
	)

	if res.Report.Eligible == 0 {
		return res, eris.Wrapf(ErrIncompleteRecord, "integrate: %s: %d of %d records excluded",
			event.ID, res.Report.Excluded, res.Report.TotalRows)
	}
	return res, nil
}
