package predict

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"math"
	"net/http"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/prerace-cli/internal/integrate"
	"github.com/sells-group/prerace-cli/internal/model"
	"github.com/sells-group/prerace-cli/internal/resilience"
)

const maxBodyBytes = 4 << 20

// ErrNoRows is returned when there is nothing to score.
var ErrNoRows = eris.New("predict: no eligible rows")

// Option configures the HTTP model client.
type Option func(*httpModel)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(m *httpModel) {
		m.http = hc
	}
}

// WithTimeout sets the client-wide request timeout.
func WithTimeout(d time.Duration) Option {
	return func(m *httpModel) {
		if d > 0 {
			m.http.Timeout = d
		}
	}
}

// WithRetry retries transient scoring failures.
func WithRetry(cfg resilience.RetryConfig) Option {
	return func(m *httpModel) {
		m.retry = &cfg
	}
}

type httpModel struct {
	url   string
	http  *http.Client
	retry *resilience.RetryConfig
}

// NewHTTPModel creates a Model that POSTs encoded rows to {url}/predict.
func NewHTTPModel(url string, opts ...Option) (Model, error) {
	if url == "" {
		return nil, eris.New("predict: model url is empty")
	}
	m := &httpModel{
		url:  strings.TrimRight(url, "/"),
		http: &http.Client{Timeout: 10 * time.Second},
	}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

type request struct {
	EventID      string          `json:"event_id"`
	Columns      []string        `json:"columns"`
	Categoricals []string        `json:"categoricals"`
	Rows         []integrate.Row `json:"rows"`
}

type scoredRow struct {
	ProgramNumber int     `json:"program_number"`
	Score         float64 `json:"score"`
}

type response struct {
	Scores []scoredRow `json:"scores"`
}

// Predict encodes the eligible records and returns the model's scores.
// Every returned program number is one that was sent.
func (m *httpModel) Predict(ctx context.Context, event model.Event, records []model.MergedRecord) (*model.Prediction, error) {
	rows, err := integrate.Encode(records)
	if err != nil {
		return nil, eris.Wrap(err, "predict: encode")
	}
	if len(rows) == 0 {
		return nil, ErrNoRows
	}
	body, err := json.Marshal(request{
		EventID:      event.ID,
		Columns:      integrate.ColumnNames(),
		Categoricals: integrate.Categoricals,
		Rows:         rows,
	})
	if err != nil {
		return nil, eris.Wrap(err, "predict: marshal request")
	}

	call := func(ctx context.Context) (*response, error) { return m.post(ctx, body) }
	var resp *response
	if m.retry != nil {
		cfg := *m.retry
		cfg.OnRetry = resilience.RetryLogger("model", "predict")
		resp, err = resilience.DoVal(ctx, cfg, call)
	} else {
		resp, err = call(ctx)
	}
	if err != nil {
		return nil, err
	}

	sent := make(map[int]bool, len(rows))
	for _, r := range rows {
		sent[r.ProgramNumber] = true
	}
	pred := &model.Prediction{EventID: event.ID, Scores: make(map[int]float64, len(resp.Scores))}
	for _, s := range resp.Scores {
		if !sent[s.ProgramNumber] {
			return nil, eris.Errorf("predict: score for unknown program number %d", s.ProgramNumber)
		}
		if math.IsNaN(s.Score) || math.IsInf(s.Score, 0) {
			return nil, eris.Errorf("predict: score for #%d is not finite", s.ProgramNumber)
		}
		pred.Scores[s.ProgramNumber] = s.Score
	}

	zap.L().Debug("predict: scored",
		zap.String("event_id", event.ID),
		zap.Int("rows", len(rows)),
		zap.Int("scores", len(pred.Scores)),
	)
	return pred, nil
}

func (m *httpModel) post(ctx context.Context, body []byte) (*response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.url+"/predict", bytes.NewReader(body))
	if err != nil {
		return nil, resilience.NewPermanentError(eris.Wrap(err, "predict: create request"), 0)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := m.http.Do(req)
	if err != nil {
		return nil, resilience.NewTransientError(eris.Wrap(err, "predict: request"), 0)
	}
	defer resp.Body.Close() //nolint:errcheck

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, resilience.NewTransientError(eris.Wrap(err, "predict: read body"), resp.StatusCode)
	}
	if resp.StatusCode != http.StatusOK {
		msg := eris.Errorf("predict: unexpected status %d: %s", resp.StatusCode, truncate(string(data), 200))
		if resilience.IsTransientHTTPStatus(resp.StatusCode) {
			return nil, resilience.NewTransientError(msg, resp.StatusCode)
		}
		return nil, resilience.NewPermanentError(msg, resp.StatusCode)
	}

	var out response
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, resilience.NewPermanentError(eris.Wrap(err, "predict: decode body"), resp.StatusCode)
	}
	return &out, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
