package integrate

import (
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/sells-group/prerace-cli/internal/model"
	"github.com/sells-group/prerace-cli/internal/resolve"
)

// Plausible value ranges. Values outside are treated as not reported.
const (
	minBodyWeight = 300
	maxBodyWeight = 700
	minOdds       = 1.0
	maxOdds       = 999.9
	minDistance   = 800
	maxDistance   = 4000
)

// Required model fields.
const (
	fieldProgramNumber = "program_number"
	fieldHorseKey      = "horse_key"
	fieldWeightCarried = "weight_carried"
	fieldDraw          = "draw"
	fieldBodyWeight    = "body_weight"
	fieldDistance      = "distance"
)

// QualityReport summarises data problems found while integrating one event.
type QualityReport struct {
	EventID                 string         `json:"event_id"`
	TotalRows               int            `json:"total_rows"`
	Eligible                int            `json:"eligible"`
	Excluded                int            `json:"excluded"`
	LowConfidence           int            `json:"low_confidence"`
	Unmatched               int            `json:"unmatched"`
	Incomplete              int            `json:"incomplete"`
	DuplicateProgramNumbers []int          `json:"duplicate_program_numbers,omitempty"`
	DeclaredFieldSize       int            `json:"declared_field_size"`
	ObservedFieldSize       int            `json:"observed_field_size"`
	FieldSizeMismatch       bool           `json:"field_size_mismatch"`
	Outliers                []string       `json:"outliers,omitempty"`
	Missing                 map[string]int `json:"missing,omitempty"`
	Imputed                 map[string]int `json:"imputed,omitempty"`
}

func medianInt(vals []int) (int, bool) {
	if len(vals) == 0 {
		return 0, false
	}
	s := append([]int(nil), vals...)
	sort.Ints(s)
	n := len(s)
	if n%2 == 1 {
		return s[n/2], true
	}
	return (s[n/2-1] + s[n/2] + 1) / 2, true
}

func medianFloat(vals []float64) (float64, bool) {
	if len(vals) == 0 {
		return 0, false
	}
	s := append([]float64(nil), vals...)
	sort.Float64s(s)
	n := len(s)
	if n%2 == 1 {
		return s[n/2], true
	}
	return (s[n/2-1] + s[n/2]) / 2, true
}

// dropOutliers clears implausible values and notes them in the report.
func dropOutliers(ev model.Event, records []model.MergedRecord, rep *QualityReport) {
	for i := range records {
		r := &records[i]
		if bw := r.Entrant.BodyWeight; bw != nil && (*bw < minBodyWeight || *bw > maxBodyWeight) {
			rep.Outliers = append(rep.Outliers, fmt.Sprintf("#%d body_weight %d", r.ProgramNumber, *bw))
			r.Entrant.BodyWeight = nil
		}
		if o := r.Odds; o != nil && (*o < minOdds || *o > maxOdds) {
			rep.Outliers = append(rep.Outliers, fmt.Sprintf("#%d odds %.1f", r.ProgramNumber, *o))
			r.Odds = nil
		}
	}
	if ev.Distance != 0 && !distanceOK(ev.Distance) {
		rep.Outliers = append(rep.Outliers, fmt.Sprintf("event distance %d", ev.Distance))
	}
}

func distanceOK(d int) bool {
	return d >= minDistance && d <= maxDistance
}

// validate imputes documented defaults and decides, per record, whether it
// may be sent to the model:
//
//	body_weight    -> race median
//	weight_carried -> race median
//	draw           -> program number
//
// Program number, horse key and distance cannot be imputed. A record missing
// a program number is always excluded, as is an unmatched row whose program
// number is already held by another eligible record. Other problems (missing
// required fields, unmatched or single-source rows) exclude the record when
// excludeIncomplete is set and otherwise mark it LowConfidenceJoin.
func validate(ev model.Event, records []model.MergedRecord, excludeIncomplete bool, rep *QualityReport) {
	dropOutliers(ev, records, rep)

	var bws []int
	var wcs []float64
	for _, r := range records {
		if r.Flags.Unmatched {
			continue
		}
		if r.Entrant.BodyWeight != nil {
			bws = append(bws, *r.Entrant.BodyWeight)
		}
		if r.Entrant.WeightCarried != nil {
			wcs = append(wcs, *r.Entrant.WeightCarried)
		}
	}
	bwMedian, haveBW := medianInt(bws)
	wcMedian, haveWC := medianFloat(wcs)

	rep.Missing = make(map[string]int)
	rep.Imputed = make(map[string]int)

	// Matched records have distinct program numbers. An unmatched row that
	// repeats one must not reach the model under it.
	held := make(map[int]bool, len(records))
	for _, r := range records {
		if !r.Flags.Unmatched && r.ProgramNumber > 0 {
			held[r.ProgramNumber] = true
		}
	}

	for i := range records {
		r := &records[i]
		var missing []string

		if r.ProgramNumber <= 0 {
			missing = append(missing, fieldProgramNumber)
		}
		if r.Entrant.HorseName == "" {
			missing = append(missing, fieldHorseKey)
		}
		if !distanceOK(ev.Distance) {
			missing = append(missing, fieldDistance)
		}

		if r.Entrant.WeightCarried == nil {
			rep.Missing[fieldWeightCarried]++
			if haveWC {
				r.Entrant.WeightCarried = model.Ptr(wcMedian)
				r.Imputed = append(r.Imputed, fieldWeightCarried)
			} else {
				missing = append(missing, fieldWeightCarried)
			}
		}
		if r.Entrant.Draw == nil {
			rep.Missing[fieldDraw]++
			if r.ProgramNumber > 0 {
				r.Entrant.Draw = model.Ptr(r.ProgramNumber)
				r.Imputed = append(r.Imputed, fieldDraw)
			} else {
				missing = append(missing, fieldDraw)
			}
		}
		if r.Entrant.BodyWeight == nil {
			rep.Missing[fieldBodyWeight]++
			if haveBW {
				r.Entrant.BodyWeight = model.Ptr(bwMedian)
				r.Imputed = append(r.Imputed, fieldBodyWeight)
			} else {
				missing = append(missing, fieldBodyWeight)
			}
		}
		for _, f := range missing {
			if f == fieldProgramNumber || f == fieldHorseKey || f == fieldDistance {
				rep.Missing[f]++
			}
		}
		for _, f := range r.Imputed {
			rep.Imputed[f]++
		}

		var reasons []string
		if len(missing) > 0 {
			reasons = append(reasons, "missing "+strings.Join(missing, ","))
		}
		taken := false
		if r.Flags.Unmatched {
			reasons = append(reasons, resolve.ErrUnmatchedEntity.Error()+" across sources")
			rep.Unmatched++
			if r.ProgramNumber > 0 && held[r.ProgramNumber] {
				reasons = append(reasons, fmt.Sprintf("program number %d held by another entrant", r.ProgramNumber))
				taken = true
			}
		}
		if r.Flags.Incomplete {
			reasons = append(reasons, "reported by one source only")
			rep.Incomplete++
		}
		if len(reasons) == 0 {
			continue
		}

		reason := strings.Join(reasons, "; ")
		if r.ProgramNumber <= 0 || taken || excludeIncomplete {
			r.Flags.Excluded = true
			r.ExclusionReason = reason
			zap.L().Warn("integrate: record excluded",
				zap.String("event_id", r.EventID),
				zap.Int("program_number", r.ProgramNumber),
				zap.String("horse_key", r.HorseKey),
				zap.String("reason", reason),
			)
			continue
		}
		r.Flags.LowConfidenceJoin = true
		zap.L().Info("integrate: low-confidence join",
			zap.String("event_id", r.EventID),
			zap.Int("program_number", r.ProgramNumber),
			zap.String("reason", reason),
		)
	}

	maxPN := 0
	for _, r := range records {
		if !r.Flags.Unmatched && r.ProgramNumber > maxPN {
			maxPN = r.ProgramNumber
		}
	}
	rep.DeclaredFieldSize = ev.FieldSize
	rep.ObservedFieldSize = maxPN
	rep.FieldSizeMismatch = ev.FieldSize > 0 && ev.FieldSize != maxPN

	rep.TotalRows = len(records)
	for _, r := range records {
		switch {
		case r.Flags.Excluded:
			rep.Excluded++
		case r.Flags.LowConfidenceJoin:
			rep.LowConfidence++
			rep.Eligible++
		default:
			rep.Eligible++
		}
	}
}
