package integrate

import (
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/sells-group/prerace-cli/internal/model"
)

// startPrefixes name the per-start feature groups, most recent first.
var startPrefixes = []string{"last", "second_last", "third_last"}

// deviationBase lists numeric features converted to per-race deviation
// scores. Analyst indices ("index_*") are added dynamically.
var deviationBase = []string{
	"age", "body_weight", "weight_burden_ratio",
	"last_corner3", "last_corner4", "last_final_furlong_rank", "last_body_weight",
	"second_last_corner3", "second_last_corner4", "second_last_final_furlong_rank", "second_last_body_weight",
	"third_last_corner3", "third_last_corner4", "third_last_final_furlong_rank", "third_last_body_weight",
}

// missingRank stands in for an unreported corner or final-furlong rank.
const missingRank = 18

func join(parts ...string) string {
	return strings.Join(parts, "_")
}

// interactions derives the categorical cross features for one record.
func interactions(ev model.Event, rec *model.MergedRecord) {
	dist := strconv.Itoa(ev.Distance)
	m := map[string]string{
		"venue_distance":       join(ev.Venue, dist),
		"venue_class":          join(ev.Venue, ev.Class),
		"distance_class":       join(dist, ev.Class),
		"venue_distance_class": join(ev.Venue, dist, ev.Class),
	}
	if len(rec.History) > 0 {
		last := rec.History[0]
		if last.Class != "" {
			m["class_progression"] = join(ev.Class, last.Class)
		}
		if last.Venue != "" {
			m["venue_last_venue"] = join(ev.Venue, last.Venue)
		}
	}
	if !ev.StartTime.IsZero() && rec.Entrant.Sex != "" {
		m["month_sex"] = join(strconv.Itoa(int(ev.StartTime.Month())), rec.Entrant.Sex)
	}
	rec.Interactions = m
}

func setInt(f map[string]float64, key string, v *int) {
	if v != nil {
		f[key] = float64(*v)
	}
}

// features derives the numeric features for one record. depth bounds how many
// past starts contribute per-start features.
func features(ev model.Event, rec *model.MergedRecord, depth int) {
	f := make(map[string]float64)
	ent := rec.Entrant

	setInt(f, "age", ent.Age)
	setInt(f, "body_weight", ent.BodyWeight)
	setInt(f, "draw", ent.Draw)
	if ent.WeightCarried != nil {
		f["weight_carried"] = *ent.WeightCarried
		if ent.BodyWeight != nil && *ent.BodyWeight > 0 {
			f["weight_burden_ratio"] = *ent.WeightCarried / float64(*ent.BodyWeight) * 100
		}
	}
	if rec.Odds != nil {
		f["odds"] = *rec.Odds
	}
	setInt(f, "popularity", rec.Popularity)
	if !ev.StartTime.IsZero() {
		f["race_month"] = float64(ev.StartTime.Month())
	}
	f["jockey_changed_today"] = jockeyChangedToday(rec).Float()
	for i, t := range rec.JockeyChanged {
		f["jockey_changed_"+strconv.Itoa(i)] = t.Float()
	}
	for k, v := range rec.Indices {
		f["index_"+k] = v
	}

	if depth > len(startPrefixes) {
		depth = len(startPrefixes)
	}
	for i := 0; i < depth && i < len(rec.History); i++ {
		h := rec.History[i]
		p := startPrefixes[i]
		setInt(f, p+"_finish", h.FinishPosition)
		setInt(f, p+"_field_size", h.FieldSize)
		setInt(f, p+"_popularity", h.Popularity)
		setInt(f, p+"_body_weight", h.BodyWeight)
		setInt(f, p+"_distance", h.Distance)
		setInt(f, p+"_corner3", h.Corner3)
		setInt(f, p+"_corner4", h.Corner4)
		setInt(f, p+"_final_furlong_rank", h.FinalFurlongRank)
		if !h.Date.IsZero() {
			f[p+"_month"] = float64(h.Date.Month())
		}
		if h.Corner3 != nil || h.FinalFurlongRank != nil {
			c3, ff := missingRank, missingRank
			if h.Corner3 != nil && *h.Corner3 > 0 {
				c3 = *h.Corner3
			}
			if h.FinalFurlongRank != nil && *h.FinalFurlongRank > 0 {
				ff = *h.FinalFurlongRank
			}
			f[p+"_corner3_uphill"] = float64(c3)*0.8 + float64(ff)
		}
	}

	if len(rec.History) > 0 {
		last := rec.History[0]
		if last.Distance != nil && ev.Distance > 0 {
			f["distance_change"] = float64(ev.Distance - *last.Distance)
		}
		if last.FieldSize != nil && ev.FieldSize > 0 {
			f["field_size_change"] = float64(ev.FieldSize - *last.FieldSize)
		}
		if last.Popularity != nil && last.FinishPosition != nil && last.FieldSize != nil && *last.FieldSize > 0 {
			f["popularity_gap"] = float64(*last.Popularity-*last.FinishPosition) / float64(*last.FieldSize)
		}
	}
	rec.Features = f
}

// deviationKeys returns deviationBase plus every index feature present.
func deviationKeys(records []model.MergedRecord) []string {
	keys := append([]string(nil), deviationBase...)
	idx := make(map[string]bool)
	for _, r := range records {
		for k := range r.Features {
			if strings.HasPrefix(k, "index_") {
				idx[k] = true
			}
		}
	}
	extra := make([]string, 0, len(idx))
	for k := range idx {
		extra = append(extra, k)
	}
	sort.Strings(extra)
	return append(keys, extra...)
}

// deviationScores adds "dev_<key>" features: (x-mean)/sd*10+50 over the
// eligible records of the race, using the sample standard deviation. Missing
// values, fewer than two observations and zero spread all score 50.
func deviationScores(records []model.MergedRecord) {
	for _, key := range deviationKeys(records) {
		var vals []float64
		for _, r := range records {
			if !r.Eligible() {
				continue
			}
			if v, ok := r.Features[key]; ok {
				vals = append(vals, v)
			}
		}
		mean, sd := meanSD(vals)
		for i := range records {
			if records[i].Features == nil {
				records[i].Features = make(map[string]float64)
			}
			score := 50.0
			if v, ok := records[i].Features[key]; ok && sd > 0 {
				score = (v-mean)/sd*10 + 50
			}
			records[i].Features["dev_"+key] = score
		}
	}
}

func meanSD(vals []float64) (float64, float64) {
	n := len(vals)
	if n < 2 {
		return 0, 0
	}
	var sum float64
	for _, v := range vals {
		sum += v
	}
	mean := sum / float64(n)
	var ss float64
	for _, v := range vals {
		ss += (v - mean) * (v - mean)
	}
	sd := math.Sqrt(ss / float64(n-1))
	if math.IsNaN(sd) || math.IsInf(sd, 0) {
		return mean, 0
	}
	return mean, sd
}
