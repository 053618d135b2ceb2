package source

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/prerace-cli/internal/model"
	"github.com/sells-group/prerace-cli/internal/resilience"
)

const defaultUserAgent = "prerace-cli/1.0"

// maxBodyBytes bounds a single response body.
const maxBodyBytes = 8 << 20

// Option configures an HTTP source client.
type Option func(*httpClient)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

// WithUserAgent overrides the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(c *httpClient) {
		if ua != "" {
			c.userAgent = ua
		}
	}
}

// WithNow overrides the clock used to stamp FetchedAt (for testing).
func WithNow(now func() time.Time) Option {
	return func(c *httpClient) {
		c.now = now
	}
}

type httpClient struct {
	kind      model.SourceKind
	baseURL   string
	userAgent string
	http      *http.Client
	now       func() time.Time
}

func newHTTPClient(kind model.SourceKind, baseURL string, opts []Option) *httpClient {
	c := &httpClient{
		kind:      kind,
		baseURL:   strings.TrimRight(baseURL, "/"),
		userAgent: defaultUserAgent,
		http: &http.Client{
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 4,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		now: time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// NewClient creates an HTTP JSON client for the given source. The per-request
// deadline comes from the caller's context.
func NewClient(kind model.SourceKind, baseURL string, opts ...Option) (Client, error) {
	if !kind.Valid() {
		return nil, eris.Errorf("source: unknown kind %q", kind)
	}
	if baseURL == "" {
		return nil, eris.Errorf("source: %s base url is empty", kind)
	}
	return newHTTPClient(kind, baseURL, opts), nil
}

// eventPayload is the wire form served by every entrant source.
type eventPayload struct {
	EventID string            `json:"event_id"`
	Rows    []model.SourceRow `json:"rows"`
}

func (c *httpClient) Kind() model.SourceKind { return c.kind }

// Fetch GETs {base}/events/{id}/{kind}.
func (c *httpClient) Fetch(ctx context.Context, eventID string) (*model.SourceRecord, error) {
	reqURL := fmt.Sprintf("%s/events/%s/%s", c.baseURL, url.PathEscape(eventID), c.kind)

	var payload eventPayload
	if err := c.getJSON(ctx, reqURL, &payload); err != nil {
		return nil, err
	}

	if payload.EventID != "" && payload.EventID != eventID {
		return nil, resilience.NewPermanentError(
			eris.Errorf("source: %s returned event %q, want %q", c.kind, payload.EventID, eventID), http.StatusOK)
	}
	for i, row := range payload.Rows {
		if row.ProgramNumber == nil && strings.TrimSpace(row.HorseName) == "" {
			return nil, resilience.NewPermanentError(
				eris.Errorf("source: %s row %d has neither program number nor horse name", c.kind, i), http.StatusOK)
		}
	}

	return &model.SourceRecord{
		Source:    c.kind,
		EventID:   eventID,
		FetchedAt: c.now().UTC(),
		Rows:      payload.Rows,
	}, nil
}

// getJSON performs a GET and decodes the body into out. Errors are returned
// with their transient/permanent class as the outermost type.
func (c *httpClient) getJSON(ctx context.Context, reqURL string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return resilience.NewPermanentError(eris.Wrap(err, "source: create request"), 0)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.http.Do(req)
	if err != nil {
		return resilience.NewTransientError(eris.Wrapf(err, "source: %s request", c.kind), 0)
	}
	defer resp.Body.Close() //nolint:errcheck

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return resilience.NewTransientError(eris.Wrapf(err, "source: %s read body", c.kind), resp.StatusCode)
	}

	if resp.StatusCode != http.StatusOK {
		msg := eris.Errorf("source: %s unexpected status %d: %s", c.kind, resp.StatusCode, truncate(string(body), 200))
		if resilience.IsTransientHTTPStatus(resp.StatusCode) {
			return resilience.NewTransientError(msg, resp.StatusCode)
		}
		return resilience.NewPermanentError(msg, resp.StatusCode)
	}

	if err := json.Unmarshal(body, out); err != nil {
		return resilience.NewPermanentError(eris.Wrapf(err, "source: %s decode body", c.kind), resp.StatusCode)
	}
	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
