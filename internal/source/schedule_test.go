package source

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/prerace-cli/internal/resilience"
)

func TestScheduleEvents_SortsByStart(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/schedule/2026-10-18", r.URL.Path)
		_, _ = w.Write([]byte(`{"date":"2026-10-18","events":[
			{"id":"r2","venue":"Kyoto","race_number":2,"start_time":"2026-10-18T01:30:00Z","distance":1800,"class":"G3","surface":"turf"},
			{"id":"r1","venue":"Kyoto","race_number":1,"start_time":"2026-10-18T01:00:00Z","distance":1200,"class":"Maiden","surface":"dirt"}
		]}`))
	}))
	defer srv.Close()

	c, err := NewScheduleClient(srv.URL)
	require.NoError(t, err)

	events, err := c.Events(context.Background(), time.Date(2026, 10, 18, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, "r1", events[0].ID)
	assert.Equal(t, "r2", events[1].ID)
	assert.Equal(t, "2026-10-18", events[0].Date)
}

func TestScheduleEvents_MissingStartIsPermanent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"events":[{"id":"r1"}]}`))
	}))
	defer srv.Close()

	c, err := NewScheduleClient(srv.URL)
	require.NoError(t, err)

	_, err = c.Events(context.Background(), time.Now())
	require.Error(t, err)
	assert.Equal(t, resilience.ClassPermanent, resilience.Classify(err))
}

func TestScheduleEvents_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	c, err := NewScheduleClient(srv.URL)
	require.NoError(t, err)

	_, err = c.Events(context.Background(), time.Now())
	require.Error(t, err)
	assert.True(t, resilience.IsTransient(err))
}

func TestNewScheduleClient_EmptyURL(t *testing.T) {
	_, err := NewScheduleClient("")
	assert.Error(t, err)
}
