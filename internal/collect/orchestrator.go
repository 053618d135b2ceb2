// Package collect runs the source fetchers for one event concurrently under a
// collection deadline and decides whether enough data arrived to continue.
package collect

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/prerace-cli/internal/clock"
	"github.com/sells-group/prerace-cli/internal/fetch"
	"github.com/sells-group/prerace-cli/internal/model"
	"github.com/sells-group/prerace-cli/internal/resolve"
)

// ErrInsufficientData is matched by InsufficientDataError.
var ErrInsufficientData = eris.New("insufficient data")

// Source outcome statuses.
const (
	StatusOK      = "ok"
	StatusFailed  = "failed"
	StatusMissing = "missing"
)

// InsufficientDataError names the sources that did not deliver and why.
type InsufficientDataError struct {
	EventID   string
	Available []model.SourceKind
	Missing   []model.SourceKind
	Reasons   map[model.SourceKind]string
	// Required lists required sources that did not deliver.
	Required   []model.SourceKind
	MinSources int
}

func (e *InsufficientDataError) Error() string {
	parts := make([]string, 0, len(e.Missing))
	for _, k := range e.Missing {
		parts = append(parts, fmt.Sprintf("%s: %s", k, e.Reasons[k]))
	}
	msg := fmt.Sprintf("insufficient data for %s: %d of %d sources (min %d)",
		e.EventID, len(e.Available), len(e.Available)+len(e.Missing), e.MinSources)
	if len(e.Required) > 0 {
		msg += fmt.Sprintf(", required %v unavailable", e.Required)
	}
	if len(parts) > 0 {
		msg += ": " + strings.Join(parts, "; ")
	}
	return msg
}

// Is lets errors.Is(err, ErrInsufficientData) match.
func (e *InsufficientDataError) Is(target error) bool {
	return target == ErrInsufficientData
}

// Fetcher is one source's retrying fetcher.
type Fetcher interface {
	Kind() model.SourceKind
	Fetch(ctx context.Context, eventID string) fetch.Result
}

// Config is the data sufficiency policy.
type Config struct {
	// Deadline bounds the whole collection. Zero means no deadline.
	Deadline time.Duration
	// MinSources is how many sources must deliver. Default 2.
	MinSources int
	// RequiredSources must deliver regardless of MinSources.
	RequiredSources []model.SourceKind
	// Clock times the collection. Default clock.Real.
	Clock clock.Clock
}

// Collection is everything gathered for one event.
type Collection struct {
	EventID  string
	Records  map[model.SourceKind]*model.SourceRecord
	Outcomes []model.SourceOutcome
	Elapsed  time.Duration
}

// Available returns the kinds that delivered a record, in canonical order.
func (c *Collection) Available() []model.SourceKind {
	var out []model.SourceKind
	for _, k := range model.AllSources {
		if c.Records[k] != nil {
			out = append(out, k)
		}
	}
	return out
}

// Orchestrator fans out to the fetchers.
type Orchestrator struct {
	fetchers []Fetcher
	cfg      Config
}

// New creates an Orchestrator. At most one fetcher per source kind is used.
func New(fetchers []Fetcher, cfg Config) (*Orchestrator, error) {
	if cfg.MinSources <= 0 {
		cfg.MinSources = 2
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.Real{}
	}
	seen := make(map[model.SourceKind]bool, len(fetchers))
	for _, f := range fetchers {
		if seen[f.Kind()] {
			return nil, eris.Errorf("collect: duplicate fetcher for %s", f.Kind())
		}
		seen[f.Kind()] = true
	}
	if cfg.MinSources > len(fetchers) {
		return nil, eris.Errorf("collect: min sources %d exceeds %d fetchers", cfg.MinSources, len(fetchers))
	}
	for _, k := range cfg.RequiredSources {
		if !seen[k] {
			return nil, eris.Errorf("collect: required source %s has no fetcher", k)
		}
	}
	return &Orchestrator{fetchers: fetchers, cfg: cfg}, nil
}

type arrival struct {
	res  fetch.Result
	late bool
}

// Collect fetches every source for event. Jockey names in arriving records
// are resolved through names as they come in, so the cache is warm by the
// time integration runs. names may be nil.
//
// The returned Collection is non-nil whenever err is an InsufficientDataError,
// so callers can persist per-source outcomes. Cancellation of ctx returns
// model.ErrCancelled.
func (o *Orchestrator) Collect(ctx context.Context, event model.Event, names *resolve.Cache) (*Collection, error) {
	start := o.cfg.Clock.Now()
	log := zap.L().With(zap.String("event_id", event.ID))

	dctx, cancel := ctx, context.CancelFunc(func() {})
	if o.cfg.Deadline > 0 {
		dctx, cancel = context.WithTimeout(ctx, o.cfg.Deadline)
	}
	defer cancel()

	var (
		mu       sync.Mutex
		arrivals = make(map[model.SourceKind]arrival, len(o.fetchers))
	)

	g, gctx := errgroup.WithContext(dctx)
	for _, f := range o.fetchers {
		g.Go(func() error {
			res := f.Fetch(gctx, event.ID)
			late := dctx.Err() != nil
			if res.OK() && !late && names != nil {
				warmNames(gctx, names, res.Record)
			}
			mu.Lock()
			arrivals[res.Kind] = arrival{res: res, late: late}
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	if ctx.Err() != nil {
		log.Info("collect: cancelled")
		return nil, model.ErrCancelled
	}

	coll := &Collection{
		EventID: event.ID,
		Records: make(map[model.SourceKind]*model.SourceRecord, len(o.fetchers)),
		Elapsed: o.cfg.Clock.Now().Sub(start),
	}
	reasons := make(map[model.SourceKind]string)
	for _, f := range o.fetchersInOrder() {
		a := arrivals[f.Kind()]
		out := model.SourceOutcome{Source: f.Kind(), Attempts: a.res.Attempts}
		switch {
		case a.late:
			out.Status = StatusMissing
			out.Error = "collection deadline exceeded"
		case a.res.OK():
			out.Status = StatusOK
			out.Rows = len(a.res.Record.Rows)
			coll.Records[f.Kind()] = a.res.Record
		default:
			out.Status = StatusFailed
			out.Class = string(a.res.Failure.Class)
			out.Error = a.res.Failure.Err.Error()
		}
		if out.Status != StatusOK {
			reasons[f.Kind()] = out.Status + " (" + out.Error + ")"
		}
		log.Info("collect: source outcome",
			zap.String("source", string(out.Source)),
			zap.String("status", out.Status),
			zap.Int("attempts", out.Attempts),
			zap.Int("rows", out.Rows),
		)
		coll.Outcomes = append(coll.Outcomes, out)
	}

	if err := o.sufficient(event.ID, coll, reasons); err != nil {
		log.Warn("collect: insufficient data", zap.Error(err))
		return coll, err
	}
	return coll, nil
}

func (o *Orchestrator) sufficient(eventID string, coll *Collection, reasons map[model.SourceKind]string) error {
	available := coll.Available()
	var missing []model.SourceKind
	for _, f := range o.fetchersInOrder() {
		if coll.Records[f.Kind()] == nil {
			missing = append(missing, f.Kind())
		}
	}
	var required []model.SourceKind
	for _, k := range o.cfg.RequiredSources {
		if coll.Records[k] == nil {
			required = append(required, k)
		}
	}
	if len(available) >= o.cfg.MinSources && len(required) == 0 {
		return nil
	}
	return &InsufficientDataError{
		EventID:    eventID,
		Available:  available,
		Missing:    missing,
		Reasons:    reasons,
		Required:   required,
		MinSources: o.cfg.MinSources,
	}
}

func (o *Orchestrator) fetchersInOrder() []Fetcher {
	rank := make(map[model.SourceKind]int, len(model.AllSources))
	for i, k := range model.AllSources {
		rank[k] = i
	}
	out := make([]Fetcher, len(o.fetchers))
	copy(out, o.fetchers)
	sort.SliceStable(out, func(i, j int) bool { return rank[out[i].Kind()] < rank[out[j].Kind()] })
	return out
}

// warmNames resolves every jockey name in rec through the shared cache.
func warmNames(ctx context.Context, names *resolve.Cache, rec *model.SourceRecord) {
	for _, row := range rec.Rows {
		if row.JockeyName != "" {
			if _, err := names.Resolve(ctx, row.JockeyName); err != nil {
				return
			}
		}
		for _, h := range row.History {
			if h.JockeyName == "" {
				continue
			}
			if _, err := names.Resolve(ctx, h.JockeyName); err != nil {
				return
			}
		}
	}
}
