package main

import (
	"context"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/prerace-cli/internal/collect"
	"github.com/sells-group/prerace-cli/internal/config"
	"github.com/sells-group/prerace-cli/internal/confidence"
	"github.com/sells-group/prerace-cli/internal/fetch"
	"github.com/sells-group/prerace-cli/internal/integrate"
	"github.com/sells-group/prerace-cli/internal/model"
	"github.com/sells-group/prerace-cli/internal/pipeline"
	"github.com/sells-group/prerace-cli/internal/predict"
	"github.com/sells-group/prerace-cli/internal/resolve"
	"github.com/sells-group/prerace-cli/internal/schedule"
	"github.com/sells-group/prerace-cli/internal/source"
	"github.com/sells-group/prerace-cli/internal/store"
)

// openStore opens and migrates the configured store.
func openStore(ctx context.Context, c *config.Config) (store.Store, error) {
	var (
		st  store.Store
		err error
	)
	switch c.Store.Driver {
	case "sqlite":
		st, err = store.NewSQLite(c.Store.DatabaseURL)
	case "postgres":
		st, err = store.NewPostgres(ctx, c.Store.DatabaseURL, nil)
	default:
		return nil, eris.Errorf("unsupported store driver: %s", c.Store.Driver)
	}
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, err
	}
	return st, nil
}

func newScheduleLoader(c *config.Config, st store.Store) (*schedule.Loader, error) {
	client, err := source.NewScheduleClient(c.Sources.ScheduleURL,
		source.WithUserAgent(c.Sources.UserAgent),
		source.WithHTTPClient(&http.Client{Timeout: time.Duration(c.Retry.AttemptTimeoutSecs) * time.Second}),
	)
	if err != nil {
		return nil, eris.Wrap(err, "init schedule client")
	}
	ttl := time.Duration(c.Schedule.CacheTTLHours) * time.Hour
	return schedule.NewLoader(client, st, ttl, c.Retry.Policy()), nil
}

// captureEnv holds everything a capture needs.
type captureEnv struct {
	Store    store.Store
	Schedule *schedule.Loader
	Runner   *pipeline.Runner
}

func (e *captureEnv) Close() {
	if e.Store != nil {
		_ = e.Store.Close()
	}
}

func initCapture(ctx context.Context, c *config.Config) (*captureEnv, error) {
	st, err := openStore(ctx, c)
	if err != nil {
		return nil, err
	}
	env := &captureEnv{Store: st}

	env.Schedule, err = newScheduleLoader(c, st)
	if err != nil {
		env.Close()
		return nil, err
	}
	env.Runner, err = buildRunner(c, st)
	if err != nil {
		env.Close()
		return nil, err
	}
	return env, nil
}

// buildRunner wires the capture pipeline from configuration.
func buildRunner(c *config.Config, st store.Store) (*pipeline.Runner, error) {
	masters, err := resolve.LoadMasterList(c.Resolver.MasterListPath)
	if err != nil {
		return nil, eris.Wrap(err, "load jockey master list")
	}
	zap.L().Info("loaded jockey master list", zap.Int("jockeys", masters.Len()))

	policy := c.Retry.Policy()
	fetchers := make([]collect.Fetcher, 0, len(model.AllSources))
	for _, kind := range model.AllSources {
		client, err := source.NewClient(kind, c.Sources.URL(kind), source.WithUserAgent(c.Sources.UserAgent))
		if err != nil {
			return nil, eris.Wrapf(err, "init %s client", kind)
		}
		fetchers = append(fetchers, fetch.New(client, policy, fetch.WithMinSpacing(c.RateLimit.MinSpacing())))
	}

	required := make([]model.SourceKind, 0, len(c.Collect.RequiredSources))
	for _, s := range c.Collect.RequiredSources {
		required = append(required, model.SourceKind(s))
	}
	orch, err := collect.New(fetchers, collect.Config{
		Deadline:        c.Capture.CollectionDeadline,
		MinSources:      c.Collect.MinSources,
		RequiredSources: required,
	})
	if err != nil {
		return nil, err
	}

	scorer, err := predict.NewHTTPModel(c.Model.URL,
		predict.WithTimeout(time.Duration(c.Model.TimeoutSecs)*time.Second),
		predict.WithRetry(policy),
	)
	if err != nil {
		return nil, err
	}

	eval, err := confidence.New(c.Confidence.Evaluator())
	if err != nil {
		return nil, err
	}

	waiter := schedule.NewWaiter(c.Capture.LeadInterval, c.Capture.ProgressInterval)
	waiter.OnProgress = progressLogger(time.Minute)

	return pipeline.New(pipeline.Deps{
		Store:     st,
		Waiter:    waiter,
		Collector: orch,
		Integrator: integrate.New(integrate.Config{
			ExcludeIncomplete: c.Integrate.ExcludeIncomplete,
			HistoryDepth:      c.Integrate.HistoryDepth,
			MinSimilarity:     c.Resolver.MinSimilarity,
		}),
		Model:         scorer,
		Evaluator:     eval,
		Names:         masters.Index(),
		MinSimilarity: c.Resolver.MinSimilarity,
	})
}

// progressLogger logs the remaining wait at most once per every.
func progressLogger(every time.Duration) func(schedule.Progress) {
	var last time.Time
	return func(p schedule.Progress) {
		if !last.IsZero() && p.Now.Sub(last) < every {
			return
		}
		last = p.Now
		zap.L().Info("waiting for capture window",
			zap.Time("wake_at", p.WakeAt),
			zap.Duration("remaining", p.Remaining.Round(time.Second)),
		)
	}
}
