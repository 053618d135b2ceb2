// Package confidence grades a race prediction and flags value picks.
package confidence

import (
	"sort"

	"github.com/rotisserie/eris"

	"github.com/sells-group/prerace-cli/internal/model"
)

// Default thresholds.
const (
	DefaultTopThreshold  = 0.5
	DefaultMidThreshold  = 0.3
	DefaultBaseThreshold = 0.15
	DefaultOddsThreshold = 10.0
)

// Reasons attached to a grade.
const (
	ReasonMissingOdds  = "missing odds"
	ReasonNoScores     = "no scored entrants"
	ReasonBelowBase    = "separation below threshold"
	ReasonSingleScored = "single scored entrant"
)

// Config holds the band thresholds. Bands are inclusive lower bounds on
// separation.
type Config struct {
	TopThreshold  float64
	MidThreshold  float64
	BaseThreshold float64
	// OddsThreshold marks the top pick as featured when its odds exceed it.
	OddsThreshold float64
}

// DefaultConfig returns the standard thresholds.
func DefaultConfig() Config {
	return Config{
		TopThreshold:  DefaultTopThreshold,
		MidThreshold:  DefaultMidThreshold,
		BaseThreshold: DefaultBaseThreshold,
		OddsThreshold: DefaultOddsThreshold,
	}
}

// Validate checks that the bands are ordered.
func (c Config) Validate() error {
	if !(c.TopThreshold >= c.MidThreshold && c.MidThreshold >= c.BaseThreshold) {
		return eris.Errorf("confidence: thresholds must satisfy top >= mid >= base (got %.3f, %.3f, %.3f)",
			c.TopThreshold, c.MidThreshold, c.BaseThreshold)
	}
	if c.BaseThreshold < 0 {
		return eris.New("confidence: base threshold must not be negative")
	}
	if c.OddsThreshold <= 0 {
		return eris.New("confidence: odds threshold must be positive")
	}
	return nil
}

// Evaluator grades predictions. It is pure and safe for concurrent use.
type Evaluator struct {
	cfg Config
}

// New creates an Evaluator.
func New(cfg Config) (*Evaluator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Evaluator{cfg: cfg}, nil
}

// Rank orders the scored entrants by score descending, breaking ties by
// program number. Records without a score are left out.
func Rank(pred *model.Prediction, records []model.MergedRecord) []model.RankedEntrant {
	if pred == nil {
		return nil
	}
	// Unmatched and excluded rows can repeat a scored program number. Only
	// the eligible matched record speaks for an entrant.
	byPN := make(map[int]*model.MergedRecord, len(records))
	for i := range records {
		r := &records[i]
		if r.Flags.Unmatched || !r.Eligible() {
			continue
		}
		byPN[r.ProgramNumber] = r
	}
	out := make([]model.RankedEntrant, 0, len(pred.Scores))
	for pn, score := range pred.Scores {
		e := model.RankedEntrant{ProgramNumber: pn, Score: score}
		if r, ok := byPN[pn]; ok {
			e.HorseName = r.Entrant.HorseName
			e.Odds = r.Odds
		}
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].ProgramNumber < out[j].ProgramNumber
	})
	for i := range out {
		out[i].Rank = i + 1
	}
	return out
}

// Separation is (top - second) / (max - min) over the ranked scores. A
// single entrant or zero spread gives 0.
func Separation(ranked []model.RankedEntrant) float64 {
	if len(ranked) < 2 {
		return 0
	}
	spread := ranked[0].Score - ranked[len(ranked)-1].Score
	if spread <= 0 {
		return 0
	}
	return (ranked[0].Score - ranked[1].Score) / spread
}

// Band maps a separation onto a grade.
func (e *Evaluator) Band(sep float64) model.Grade {
	switch {
	case sep >= e.cfg.TopThreshold:
		return model.GradeTop
	case sep >= e.cfg.MidThreshold:
		return model.GradeMid
	case sep >= e.cfg.BaseThreshold:
		return model.GradeBase
	default:
		return model.GradeNone
	}
}

// Evaluate grades one race. When the top pick has no odds the race cannot be
// judged for value and is graded none with ReasonMissingOdds.
func (e *Evaluator) Evaluate(pred *model.Prediction, records []model.MergedRecord) model.ConfidenceGrade {
	ranked := Rank(pred, records)
	g := model.ConfidenceGrade{Grade: model.GradeNone, Ranking: ranked}
	if len(ranked) == 0 {
		g.Reason = ReasonNoScores
		return g
	}

	g.Separation = Separation(ranked)
	top := ranked[0]
	if top.Odds == nil {
		g.Reason = ReasonMissingOdds
		return g
	}

	g.Grade = e.Band(g.Separation)
	g.Featured = *top.Odds > e.cfg.OddsThreshold
	switch {
	case len(ranked) == 1:
		g.Reason = ReasonSingleScored
	case g.Grade == model.GradeNone:
		g.Reason = ReasonBelowBase
	}
	return g
}
