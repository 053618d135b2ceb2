package integrate

import (
	"sort"
	"strconv"

	"github.com/rotisserie/eris"

	"github.com/sells-group/prerace-cli/internal/model"
	"github.com/sells-group/prerace-cli/internal/resolve"
)

// identityOrder is the field priority for identity fields. It is also the
// order sources are aligned in, which makes the merge independent of the
// order records are supplied in.
var identityOrder = []model.SourceKind{model.SourceInfo, model.SourceOdds, model.SourceHistory}

// bodyWeightOrder is the field priority for body weight.
var bodyWeightOrder = []model.SourceKind{model.SourceInfo, model.SourceOdds}

// entry accumulates the rows that align to one entrant.
type entry struct {
	pn        int
	name      string
	rows      map[model.SourceKind]model.SourceRow
	unmatched bool
}

// aligner assigns source rows to entrants.
type aligner struct {
	minSimilarity float64
	entries       []*entry
	byPN          map[int]*entry
	duplicates    map[int]bool
	unmatched     int
}

func newAligner(minSimilarity float64) *aligner {
	return &aligner{
		minSimilarity: minSimilarity,
		byPN:          make(map[int]*entry),
		duplicates:    make(map[int]bool),
	}
}

// orderRecords returns records in identity priority order and rejects two
// records from the same source.
func orderRecords(records []*model.SourceRecord) ([]*model.SourceRecord, error) {
	byKind := make(map[model.SourceKind]*model.SourceRecord, len(records))
	for _, r := range records {
		if r == nil {
			continue
		}
		if !r.Source.Valid() {
			return nil, eris.Errorf("integrate: unknown source %q", r.Source)
		}
		if byKind[r.Source] != nil {
			return nil, eris.Errorf("integrate: two records from %s", r.Source)
		}
		byKind[r.Source] = r
	}
	out := make([]*model.SourceRecord, 0, len(byKind))
	for _, k := range identityOrder {
		if r := byKind[k]; r != nil {
			out = append(out, r)
		}
	}
	return out, nil
}

// add aligns one row. A row with a program number attaches to that entrant
// when the horse names agree; otherwise it is aligned by horse name. A row
// that cannot be aligned without guessing is kept on its own and flagged.
func (a *aligner) add(kind model.SourceKind, row model.SourceRow) {
	if row.ProgramNumber != nil {
		pn := *row.ProgramNumber
		if e, ok := a.byPN[pn]; ok {
			if _, taken := e.rows[kind]; taken {
				if e2 := a.alignByName(kind, row.HorseName); e2 != nil {
					a.attach(e2, kind, row)
					return
				}
				a.duplicates[pn] = true
				a.addUnmatched(kind, row)
				return
			}
			if a.namesAgree(e.name, row.HorseName) {
				a.attach(e, kind, row)
				return
			}
			if e2 := a.alignByName(kind, row.HorseName); e2 != nil {
				a.attach(e2, kind, row)
				return
			}
			a.addUnmatched(kind, row)
			return
		}
		if e := a.alignByName(kind, row.HorseName); e != nil {
			a.attach(e, kind, row)
			return
		}
		e := &entry{pn: pn, name: row.HorseName, rows: map[model.SourceKind]model.SourceRow{}}
		a.entries = append(a.entries, e)
		a.byPN[pn] = e
		a.attach(e, kind, row)
		return
	}

	if e := a.alignByName(kind, row.HorseName); e != nil {
		a.attach(e, kind, row)
		return
	}
	a.addUnmatched(kind, row)
}

func (a *aligner) attach(e *entry, kind model.SourceKind, row model.SourceRow) {
	e.rows[kind] = row
	if e.name == "" {
		e.name = row.HorseName
	}
}

func (a *aligner) addUnmatched(kind model.SourceKind, row model.SourceRow) {
	pn := 0
	if row.ProgramNumber != nil {
		pn = *row.ProgramNumber
	}
	a.unmatched++
	a.entries = append(a.entries, &entry{
		pn:        pn,
		name:      row.HorseName,
		rows:      map[model.SourceKind]model.SourceRow{kind: row},
		unmatched: true,
	})
}

func (a *aligner) namesAgree(have, got string) bool {
	if resolve.Normalize(have) == "" || resolve.Normalize(got) == "" {
		return true
	}
	return resolve.Similarity(have, got) >= a.minSimilarity
}

// alignByName finds the single matched entrant whose horse name best matches
// name and has no row from kind yet. Ties between entrants are not guessed.
func (a *aligner) alignByName(kind model.SourceKind, name string) *entry {
	if resolve.Normalize(name) == "" {
		return nil
	}
	var cands []resolve.Candidate
	var pool []*entry
	for _, e := range a.entries {
		if e.unmatched || e.name == "" {
			continue
		}
		if _, taken := e.rows[kind]; taken {
			continue
		}
		cands = append(cands, resolve.Candidate{ID: strconv.Itoa(len(pool)), Name: e.name})
		pool = append(pool, e)
	}
	if len(cands) == 0 {
		return nil
	}
	m := resolve.Resolve(name, cands, a.minSimilarity)
	if !m.Found() || m.Ambiguous {
		return nil
	}
	i, _ := strconv.Atoi(m.ID)
	return pool[i]
}

// sortedEntries returns matched entrants by program number, then unmatched
// rows by normalized horse name.
func (a *aligner) sortedEntries() []*entry {
	out := make([]*entry, len(a.entries))
	copy(out, a.entries)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].unmatched != out[j].unmatched {
			return !out[i].unmatched
		}
		if out[i].pn != out[j].pn {
			return out[i].pn < out[j].pn
		}
		return resolve.Normalize(out[i].name) < resolve.Normalize(out[j].name)
	})
	return out
}

// firstString returns the first non-empty value in priority order.
func firstString(rows map[model.SourceKind]model.SourceRow, order []model.SourceKind, get func(model.SourceRow) string) string {
	for _, k := range order {
		if r, ok := rows[k]; ok {
			if v := get(r); v != "" {
				return v
			}
		}
	}
	return ""
}

// firstPtr returns the first non-nil value in priority order.
func firstPtr[T any](rows map[model.SourceKind]model.SourceRow, order []model.SourceKind, get func(model.SourceRow) *T) *T {
	for _, k := range order {
		if r, ok := rows[k]; ok {
			if v := get(r); v != nil {
				c := *v
				return &c
			}
		}
	}
	return nil
}

// mergeEntry builds the record for one entrant from its aligned rows.
func mergeEntry(eventID string, e *entry) model.MergedRecord {
	rows := e.rows
	ent := model.Entrant{
		EventID:       eventID,
		ProgramNumber: e.pn,
		HorseName:     firstString(rows, identityOrder, func(r model.SourceRow) string { return r.HorseName }),
		JockeyName:    firstString(rows, identityOrder, func(r model.SourceRow) string { return r.JockeyName }),
		Trainer:       firstString(rows, identityOrder, func(r model.SourceRow) string { return r.Trainer }),
		Sex:           firstString(rows, identityOrder, func(r model.SourceRow) string { return r.Sex }),
		WeightCarried: firstPtr(rows, identityOrder, func(r model.SourceRow) *float64 { return r.WeightCarried }),
		Draw:          firstPtr(rows, identityOrder, func(r model.SourceRow) *int { return r.Draw }),
		Age:           firstPtr(rows, identityOrder, func(r model.SourceRow) *int { return r.Age }),
		BodyWeight:    firstPtr(rows, bodyWeightOrder, func(r model.SourceRow) *int { return r.BodyWeight }),
	}

	seen := map[string]bool{resolve.Normalize(ent.HorseName): true}
	for _, k := range identityOrder {
		if r, ok := rows[k]; ok {
			if n := resolve.Normalize(r.HorseName); n != "" && !seen[n] {
				seen[n] = true
				ent.HorseNameVariants = append(ent.HorseNameVariants, r.HorseName)
			}
		}
	}

	rec := model.MergedRecord{
		EventID:       eventID,
		ProgramNumber: e.pn,
		HorseKey:      horseKey(ent.HorseName, e.pn),
		Entrant:       ent,
	}
	oddsOnly := []model.SourceKind{model.SourceOdds}
	rec.Odds = firstPtr(rows, oddsOnly, func(r model.SourceRow) *float64 { return r.Odds })
	rec.Popularity = firstPtr(rows, oddsOnly, func(r model.SourceRow) *int { return r.Popularity })
	if r, ok := rows[model.SourceInfo]; ok && len(r.Indices) > 0 {
		rec.Indices = make(map[string]float64, len(r.Indices))
		for k, v := range r.Indices {
			rec.Indices[k] = v
		}
	}
	if r, ok := rows[model.SourceHistory]; ok {
		rec.History = sortHistory(r.History)
	}
	for _, k := range model.AllSources {
		if _, ok := rows[k]; ok {
			rec.Sources = append(rec.Sources, k)
		}
	}
	rec.Flags.Unmatched = e.unmatched
	rec.Flags.Incomplete = len(rec.Sources) <= 1
	return rec
}

func horseKey(name string, pn int) string {
	if k := resolve.Normalize(name); k != "" {
		return k
	}
	return "#" + strconv.Itoa(pn)
}

// sortHistory copies starts most recent first. Starts with equal dates keep
// their source order.
func sortHistory(in []model.HistoricalStart) []model.HistoricalStart {
	if len(in) == 0 {
		return nil
	}
	out := make([]model.HistoricalStart, len(in))
	copy(out, in)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Date.After(out[j].Date) })
	for i := range out {
		if out[i].FinishPosition == nil {
			out[i].FinishPosition = ParseFinish(out[i].FinishRaw)
		}
	}
	return out
}
