// Package pipeline runs one capture for one event: wait, collect,
// integrate, predict and grade, persisting the run as it goes.
package pipeline

import (
	"context"
	"errors"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/prerace-cli/internal/collect"
	"github.com/sells-group/prerace-cli/internal/confidence"
	"github.com/sells-group/prerace-cli/internal/integrate"
	"github.com/sells-group/prerace-cli/internal/model"
	"github.com/sells-group/prerace-cli/internal/predict"
	"github.com/sells-group/prerace-cli/internal/resolve"
	"github.com/sells-group/prerace-cli/internal/schedule"
	"github.com/sells-group/prerace-cli/internal/store"
)

// Phase names.
const (
	PhaseWait       = "1_wait"
	PhaseCollect    = "2_collect"
	PhaseIntegrate  = "3_integrate"
	PhasePredict    = "4_predict"
	PhaseConfidence = "5_confidence"
)

// Waiter blocks until capture should begin.
type Waiter interface {
	Wait(ctx context.Context, start time.Time) (schedule.Outcome, error)
}

// Collector gathers the source records for an event.
type Collector interface {
	Collect(ctx context.Context, event model.Event, names *resolve.Cache) (*collect.Collection, error)
}

// Integrator merges source records into model-ready records.
type Integrator interface {
	Integrate(ctx context.Context, event model.Event, records []*model.SourceRecord, names *resolve.Cache) (*integrate.Result, error)
}

// Deps are the Runner's collaborators. Names may be nil, in which case
// jockeys are compared by normalized name only.
type Deps struct {
	Store         store.Store
	Waiter        Waiter
	Collector     Collector
	Integrator    Integrator
	Model         predict.Model
	Evaluator     *confidence.Evaluator
	Names         *resolve.Index
	MinSimilarity float64
}

// Options control a single run.
type Options struct {
	// NoWait skips the wait and starts collecting immediately.
	NoWait bool
}

// Runner executes capture runs.
type Runner struct {
	deps Deps
}

// New creates a Runner.
func New(deps Deps) (*Runner, error) {
	switch {
	case deps.Store == nil:
		return nil, eris.New("pipeline: store is required")
	case deps.Waiter == nil:
		return nil, eris.New("pipeline: waiter is required")
	case deps.Collector == nil:
		return nil, eris.New("pipeline: collector is required")
	case deps.Integrator == nil:
		return nil, eris.New("pipeline: integrator is required")
	case deps.Model == nil:
		return nil, eris.New("pipeline: model is required")
	case deps.Evaluator == nil:
		return nil, eris.New("pipeline: evaluator is required")
	}
	if deps.MinSimilarity <= 0 {
		deps.MinSimilarity = resolve.DefaultMinSimilarity
	}
	return &Runner{deps: deps}, nil
}

// Run captures event. The returned Run is non-nil once the run record
// exists, including on failure, and carries whatever was gathered. A
// terminal failure is also returned as the error: model.ErrCancelled,
// collect.ErrInsufficientData, integrate.ErrIncompleteRecord or a model
// error.
func (r *Runner) Run(ctx context.Context, event model.Event, opts Options) (*model.Run, error) {
	log := zap.L().With(zap.String("event_id", event.ID), zap.Time("start_time", event.StartTime))
	log.Info("pipeline: starting capture")

	run, err := r.deps.Store.CreateRun(ctx, event)
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: create run")
	}
	result := &model.RunResult{EventID: event.ID}
	run.Result = result

	// Terminal writes must land even when ctx is cancelled.
	persistCtx := context.WithoutCancel(ctx)

	setStatus := func(status model.RunStatus) {
		run.Status = status
		if statusErr := r.deps.Store.UpdateRunStatus(ctx, run.ID, status); statusErr != nil {
			log.Warn("pipeline: failed to update status", zap.String("status", string(status)), zap.Error(statusErr))
		}
	}

	finish := func(status model.RunStatus, runErr error) (*model.Run, error) {
		run.Status = status
		msg := ""
		if runErr != nil {
			msg = runErr.Error()
			run.Error = msg
		}
		if storeErr := r.deps.Store.FinishRun(persistCtx, run.ID, status, result, msg); storeErr != nil {
			log.Error("pipeline: failed to persist run", zap.Error(storeErr))
		}
		if runErr != nil {
			log.Error("pipeline: capture ended", zap.String("status", string(status)), zap.Error(runErr))
		} else {
			log.Info("pipeline: capture complete",
				zap.String("grade", string(result.Confidence.Grade)),
				zap.Bool("featured", result.Confidence.Featured),
			)
		}
		return run, runErr
	}

	trackPhase := func(name string, fn func() (map[string]any, error)) error {
		start := time.Now()
		meta, fnErr := fn()
		duration := time.Since(start).Milliseconds()

		pr := model.PhaseResult{Name: name, Duration: duration, Metadata: meta}
		if fnErr != nil {
			pr.Status = model.PhaseStatusFailed
			pr.Error = fnErr.Error()
			log.Error("pipeline: phase failed",
				zap.String("phase", name),
				zap.Int64("duration_ms", duration),
				zap.Error(fnErr),
			)
		} else {
			pr.Status = model.PhaseStatusComplete
			log.Info("pipeline: phase complete",
				zap.String("phase", name),
				zap.Int64("duration_ms", duration),
			)
		}
		result.Phases = append(result.Phases, pr)
		return fnErr
	}

	skipPhase := func(name, reason string) {
		result.Phases = append(result.Phases, model.PhaseResult{
			Name:     name,
			Status:   model.PhaseStatusSkipped,
			Metadata: map[string]any{"reason": reason},
		})
	}

	// ===== Phase 1: Wait =====
	if opts.NoWait {
		skipPhase(PhaseWait, "no-wait")
	} else {
		err := trackPhase(PhaseWait, func() (map[string]any, error) {
			outcome, err := r.deps.Waiter.Wait(ctx, event.StartTime)
			meta := map[string]any{"outcome": outcome.String()}
			if outcome == schedule.DeadlinePassed {
				// Late capture beats no capture.
				log.Warn("pipeline: wake time already passed, collecting now")
				return meta, nil
			}
			return meta, err
		})
		if err != nil {
			if errors.Is(err, model.ErrCancelled) {
				return finish(model.RunStatusCancelled, err)
			}
			return finish(model.RunStatusFailed, eris.Wrap(err, "pipeline: wait"))
		}
	}

	var names *resolve.Cache
	if r.deps.Names != nil {
		names = resolve.NewCache(r.deps.Names, r.deps.MinSimilarity)
	}

	// ===== Phase 2: Collect =====
	setStatus(model.RunStatusCollecting)
	var coll *collect.Collection
	err = trackPhase(PhaseCollect, func() (map[string]any, error) {
		var cerr error
		coll, cerr = r.deps.Collector.Collect(ctx, event, names)
		if coll == nil {
			return nil, cerr
		}
		result.Sources = coll.Outcomes
		return map[string]any{
			"available":  len(coll.Available()),
			"elapsed_ms": coll.Elapsed.Milliseconds(),
		}, cerr
	})
	if err != nil {
		if errors.Is(err, model.ErrCancelled) {
			return finish(model.RunStatusCancelled, err)
		}
		return finish(model.RunStatusFailed, err)
	}

	records := make([]*model.SourceRecord, 0, len(coll.Records))
	for _, k := range coll.Available() {
		records = append(records, coll.Records[k])
	}

	// ===== Phase 3: Integrate =====
	setStatus(model.RunStatusIntegrating)
	var integrated *integrate.Result
	err = trackPhase(PhaseIntegrate, func() (map[string]any, error) {
		var ierr error
		integrated, ierr = r.deps.Integrator.Integrate(ctx, event, records, names)
		if integrated == nil {
			return nil, ierr
		}
		result.Records = integrated.Records
		rep := integrated.Report
		return map[string]any{
			"records":             rep.TotalRows,
			"eligible":            rep.Eligible,
			"excluded":            rep.Excluded,
			"low_confidence":      rep.LowConfidence,
			"field_size_mismatch": rep.FieldSizeMismatch,
		}, ierr
	})
	if err != nil {
		if ctx.Err() != nil {
			return finish(model.RunStatusCancelled, eris.Wrap(model.ErrCancelled, err.Error()))
		}
		return finish(model.RunStatusFailed, err)
	}

	// ===== Phase 4: Predict =====
	setStatus(model.RunStatusPredicting)
	err = trackPhase(PhasePredict, func() (map[string]any, error) {
		pred, perr := r.deps.Model.Predict(ctx, event, integrated.Eligible())
		if perr != nil {
			return nil, eris.Wrap(perr, "pipeline: predict")
		}
		result.Prediction = pred
		return map[string]any{"scored": len(pred.Scores)}, nil
	})
	if err != nil {
		if ctx.Err() != nil {
			return finish(model.RunStatusCancelled, eris.Wrap(model.ErrCancelled, err.Error()))
		}
		return finish(model.RunStatusFailed, err)
	}

	// ===== Phase 5: Confidence =====
	_ = trackPhase(PhaseConfidence, func() (map[string]any, error) {
		g := r.deps.Evaluator.Evaluate(result.Prediction, integrated.Eligible())
		result.Confidence = &g
		return map[string]any{
			"grade":      string(g.Grade),
			"featured":   g.Featured,
			"separation": g.Separation,
		}, nil
	})

	return finish(model.RunStatusComplete, nil)
}

// RunAll captures events one after another in the order given. A failed
// event does not stop the rest; cancellation does. The returned runs align
// with the events that were attempted.
func (r *Runner) RunAll(ctx context.Context, events []model.Event, opts Options) ([]*model.Run, error) {
	var runs []*model.Run
	var failed int
	for _, ev := range events {
		if ctx.Err() != nil {
			return runs, model.ErrCancelled
		}
		run, err := r.Run(ctx, ev, opts)
		if run != nil {
			runs = append(runs, run)
		}
		if errors.Is(err, model.ErrCancelled) {
			return runs, err
		}
		if err != nil {
			failed++
		}
	}
	if failed > 0 {
		return runs, eris.Errorf("pipeline: %d of %d captures failed", failed, len(events))
	}
	return runs, nil
}
