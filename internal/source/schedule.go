package source

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/prerace-cli/internal/model"
	"github.com/sells-group/prerace-cli/internal/resilience"
)

// DateLayout is the calendar-date format used in schedule URLs and cache keys.
const DateLayout = "2006-01-02"

type schedulePayload struct {
	Date   string        `json:"date"`
	Events []model.Event `json:"events"`
}

type scheduleClient struct {
	*httpClient
}

// NewScheduleClient creates an HTTP client for the daily schedule source.
func NewScheduleClient(baseURL string, opts ...Option) (ScheduleClient, error) {
	if baseURL == "" {
		return nil, eris.New("source: schedule base url is empty")
	}
	return &scheduleClient{httpClient: newHTTPClient("schedule", baseURL, opts)}, nil
}

// Events GETs {base}/schedule/{date} and returns events sorted by start time.
func (c *scheduleClient) Events(ctx context.Context, date time.Time) ([]model.Event, error) {
	day := date.Format(DateLayout)
	reqURL := fmt.Sprintf("%s/schedule/%s", c.baseURL, day)

	var payload schedulePayload
	if err := c.getJSON(ctx, reqURL, &payload); err != nil {
		return nil, err
	}

	events := make([]model.Event, 0, len(payload.Events))
	for i, ev := range payload.Events {
		if strings.TrimSpace(ev.ID) == "" || ev.StartTime.IsZero() {
			return nil, resilience.NewPermanentError(
				eris.Errorf("source: schedule event %d missing id or start time", i), http.StatusOK)
		}
		if ev.Date == "" {
			ev.Date = day
		}
		events = append(events, ev)
	}
	sort.SliceStable(events, func(i, j int) bool {
		return events[i].StartTime.Before(events[j].StartTime)
	})
	return events, nil
}
