package source

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/prerace-cli/internal/model"
	"github.com/sells-group/prerace-cli/internal/resilience"
)

var fixedNow = time.Date(2026, 10, 18, 6, 30, 0, 0, time.UTC)

func newTestClient(t *testing.T, kind model.SourceKind, handler http.HandlerFunc) Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	c, err := NewClient(kind, srv.URL, WithNow(func() time.Time { return fixedNow }))
	require.NoError(t, err)
	return c
}

func TestFetch_Success(t *testing.T) {
	c := newTestClient(t, model.SourceOdds, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/events/202610180511/odds", r.URL.Path)
		assert.Equal(t, defaultUserAgent, r.Header.Get("User-Agent"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"event_id":"202610180511","rows":[
			{"program_number":1,"horse_name":"Sunny Road","odds":3.4,"popularity":1},
			{"program_number":2,"horse_name":"Blue Lagoon","odds":12.8,"popularity":5}
		]}`))
	})

	rec, err := c.Fetch(context.Background(), "202610180511")
	require.NoError(t, err)
	assert.Equal(t, model.SourceOdds, rec.Source)
	assert.Equal(t, "202610180511", rec.EventID)
	assert.Equal(t, fixedNow, rec.FetchedAt)
	require.Len(t, rec.Rows, 2)
	assert.Equal(t, 1, *rec.Rows[0].ProgramNumber)
	assert.InDelta(t, 12.8, *rec.Rows[1].Odds, 1e-9)
	assert.Equal(t, model.SourceOdds, c.Kind())
}

func TestFetch_HistoryRows(t *testing.T) {
	c := newTestClient(t, model.SourceHistory, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"rows":[{"program_number":3,"horse_name":"Iron Gate","history":[
			{"date":"2026-09-20T00:00:00Z","finish_raw":"２","jockey_name":"Ｊ．スミス","venue":"Tokyo","distance":1600}
		]}]}`))
	})

	rec, err := c.Fetch(context.Background(), "ev1")
	require.NoError(t, err)
	require.Len(t, rec.Rows[0].History, 1)
	assert.Equal(t, "Ｊ．スミス", rec.Rows[0].History[0].JockeyName)
	assert.Equal(t, 1600, *rec.Rows[0].History[0].Distance)
}

func TestFetch_StatusClassification(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		transient bool
	}{
		{"service unavailable", http.StatusServiceUnavailable, true},
		{"too many requests", http.StatusTooManyRequests, true},
		{"gateway timeout", http.StatusGatewayTimeout, true},
		{"not found", http.StatusNotFound, false},
		{"bad request", http.StatusBadRequest, false},
		{"forbidden", http.StatusForbidden, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, model.SourceInfo, func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte("nope"))
			})

			_, err := c.Fetch(context.Background(), "ev1")
			require.Error(t, err)
			assert.Equal(t, tt.transient, resilience.IsTransient(err))
			if tt.transient {
				var te *resilience.TransientError
				require.True(t, errors.As(err, &te))
				assert.Equal(t, tt.status, te.StatusCode)
			} else {
				var pe *resilience.PermanentError
				require.True(t, errors.As(err, &pe))
				assert.Equal(t, tt.status, pe.StatusCode)
			}
		})
	}
}

func TestFetch_MalformedBodyIsPermanent(t *testing.T) {
	c := newTestClient(t, model.SourceInfo, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"rows": [`))
	})

	_, err := c.Fetch(context.Background(), "ev1")
	require.Error(t, err)
	assert.False(t, resilience.IsTransient(err))
	assert.ErrorIs(t, err, resilience.ErrPermanentSource)
}

func TestFetch_WrongEventIsPermanent(t *testing.T) {
	c := newTestClient(t, model.SourceInfo, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"event_id":"other","rows":[]}`))
	})

	_, err := c.Fetch(context.Background(), "ev1")
	require.Error(t, err)
	assert.Equal(t, resilience.ClassPermanent, resilience.Classify(err))
}

func TestFetch_RowWithoutIdentityIsPermanent(t *testing.T) {
	c := newTestClient(t, model.SourceInfo, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"rows":[{"horse_name":"  ","draw":2}]}`))
	})

	_, err := c.Fetch(context.Background(), "ev1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "neither program number nor horse name")
}

func TestFetch_ConnectionErrorIsTransient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	url := srv.URL
	srv.Close()

	c, err := NewClient(model.SourceOdds, url)
	require.NoError(t, err)

	_, err = c.Fetch(context.Background(), "ev1")
	require.Error(t, err)
	assert.True(t, resilience.IsTransient(err))
}

func TestFetch_AttemptDeadlineIsTransient(t *testing.T) {
	release := make(chan struct{})
	c := newTestClient(t, model.SourceOdds, func(_ http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	})
	defer close(release)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := c.Fetch(ctx, "ev1")
	require.Error(t, err)
	assert.True(t, resilience.IsTransient(err))
}

func TestNewClient_Validation(t *testing.T) {
	_, err := NewClient("weather", "http://example.test")
	assert.Error(t, err)

	_, err = NewClient(model.SourceInfo, "")
	assert.Error(t, err)
}

func TestWithUserAgent(t *testing.T) {
	c := newHTTPClient(model.SourceInfo, "http://example.test/", []Option{WithUserAgent("custom/2.0"), WithUserAgent("")})
	assert.Equal(t, "custom/2.0", c.userAgent)
	assert.Equal(t, "http://example.test", c.baseURL)
}
