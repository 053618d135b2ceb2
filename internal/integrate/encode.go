package integrate

import (
	"math"

	"github.com/rotisserie/eris"

	"github.com/sells-group/prerace-cli/internal/model"
)

// Column is one numeric model input. Default is used when the record has no
// value for the feature.
type Column struct {
	Name    string
	Default float64
}

// Columns is the fixed model input order. Unset tri-state flags and absent
// ranks encode as -1, absent changes as 0 and absent deviation scores as 50.
var Columns = []Column{
	{"program_number", 0},
	{"draw", 0},
	{"age", 0},
	{"body_weight", 0},
	{"weight_carried", 0},
	{"weight_burden_ratio", 0},
	{"odds", -1},
	{"popularity", -1},
	{"race_month", 0},
	{"jockey_changed_today", -1},
	{"jockey_changed_0", -1},
	{"jockey_changed_1", -1},
	{"jockey_changed_2", -1},
	{"last_finish", -1},
	{"second_last_finish", -1},
	{"third_last_finish", -1},
	{"last_month", 0},
	{"last_corner3_uphill", -1},
	{"second_last_corner3_uphill", -1},
	{"third_last_corner3_uphill", -1},
	{"distance_change", 0},
	{"field_size_change", 0},
	{"popularity_gap", 0},
	{"index_leading", -1},
	{"index_pace", -1},
	{"index_uphill", -1},
	{"index_speed", -1},
	{"dev_age", 50},
	{"dev_body_weight", 50},
	{"dev_weight_burden_ratio", 50},
	{"dev_last_corner3", 50},
	{"dev_last_final_furlong_rank", 50},
	{"dev_index_leading", 50},
	{"dev_index_pace", 50},
	{"dev_index_uphill", 50},
	{"dev_index_speed", 50},
}

// Categoricals are the string model inputs, passed alongside the numeric row.
var Categoricals = []string{
	"venue_distance", "venue_class", "distance_class", "venue_distance_class",
	"class_progression", "venue_last_venue", "month_sex",
}

// Row is one encoded model input.
type Row struct {
	EventID       string            `json:"event_id"`
	ProgramNumber int               `json:"program_number"`
	Values        []float64         `json:"values"`
	Categories    map[string]string `json:"categories"`
}

// ColumnNames returns the names of Columns in order.
func ColumnNames() []string {
	names := make([]string, len(Columns))
	for i, c := range Columns {
		names[i] = c.Name
	}
	return names
}

// Encode converts the eligible records into model rows in input order.
// Excluded records are skipped. Every value is finite and every program
// number appears at most once, since scores are keyed by it.
func Encode(records []model.MergedRecord) ([]Row, error) {
	rows := make([]Row, 0, len(records))
	seen := make(map[int]bool, len(records))
	for _, r := range records {
		if !r.Eligible() {
			continue
		}
		if seen[r.ProgramNumber] {
			return nil, eris.Errorf("integrate: program number %d encoded twice", r.ProgramNumber)
		}
		seen[r.ProgramNumber] = true
		vals := make([]float64, len(Columns))
		for i, c := range Columns {
			v, ok := r.Features[c.Name]
			if c.Name == "program_number" {
				v, ok = float64(r.ProgramNumber), true
			}
			if !ok {
				v = c.Default
			}
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return nil, eris.Errorf("integrate: #%d %s is not finite", r.ProgramNumber, c.Name)
			}
			vals[i] = v
		}
		cats := make(map[string]string, len(Categoricals))
		for _, name := range Categoricals {
			cats[name] = r.Interactions[name]
		}
		rows = append(rows, Row{EventID: r.EventID, ProgramNumber: r.ProgramNumber, Values: vals, Categories: cats})
	}
	return rows, nil
}
