package model

import "encoding/json"

// Tri is a three-valued flag: a continuity feature can be unknown (unset)
// as well as true or false.
type Tri int8

const (
	TriUnset Tri = iota
	TriFalse
	TriTrue
)

// TriOf converts a bool into a set Tri.
func TriOf(b bool) Tri {
	if b {
		return TriTrue
	}
	return TriFalse
}

// IsSet reports whether t carries a value.
func (t Tri) IsSet() bool { return t != TriUnset }

// Float encodes t for the model: unset -1, false 0, true 1.
func (t Tri) Float() float64 {
	switch t {
	case TriTrue:
		return 1
	case TriFalse:
		return 0
	default:
		return -1
	}
}

func (t Tri) String() string {
	switch t {
	case TriTrue:
		return "true"
	case TriFalse:
		return "false"
	default:
		return "unset"
	}
}

// MarshalJSON renders unset as null.
func (t Tri) MarshalJSON() ([]byte, error) {
	switch t {
	case TriTrue:
		return []byte("true"), nil
	case TriFalse:
		return []byte("false"), nil
	default:
		return []byte("null"), nil
	}
}

// UnmarshalJSON accepts true, false or null.
func (t *Tri) UnmarshalJSON(b []byte) error {
	var v *bool
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	if v == nil {
		*t = TriUnset
		return nil
	}
	*t = TriOf(*v)
	return nil
}

// ContinuityDepth is the number of jockey-change transitions tracked per entrant.
const ContinuityDepth = 3

// RecordFlags marks data-quality conditions found during integration.
type RecordFlags struct {
	// Incomplete is set when the entrant was missing from two of three sources.
	Incomplete bool `json:"incomplete"`
	// Unmatched is set when the row could not be aligned across sources.
	Unmatched bool `json:"unmatched"`
	// LowConfidenceJoin is set when the row is passed to the model despite
	// an unmatched or incomplete condition.
	LowConfidenceJoin bool `json:"low_confidence_join"`
	// Excluded rows are kept for reporting but never sent to the model.
	Excluded bool `json:"excluded"`
}

// MergedRecord is the canonical per-entrant row produced by integration.
// ProgramNumber and HorseKey are always populated.
type MergedRecord struct {
	EventID       string `json:"event_id"`
	ProgramNumber int    `json:"program_number"`
	HorseKey      string `json:"horse_key"`

	Entrant    Entrant            `json:"entrant"`
	Odds       *float64           `json:"odds,omitempty"`
	Popularity *int               `json:"popularity,omitempty"`
	Indices    map[string]float64 `json:"indices,omitempty"`
	History    []HistoricalStart  `json:"history,omitempty"`

	Sources         []SourceKind `json:"sources"`
	Flags           RecordFlags  `json:"flags"`
	ExclusionReason string       `json:"exclusion_reason,omitempty"`
	Imputed         []string     `json:"imputed,omitempty"`

	// JockeyChanged[i] compares start i with start i+1, most recent first.
	JockeyChanged [ContinuityDepth]Tri `json:"jockey_changed"`
	Interactions  map[string]string    `json:"interactions,omitempty"`
	Features      map[string]float64   `json:"features,omitempty"`
}

// HasSource reports whether k contributed to the record.
func (r *MergedRecord) HasSource(k SourceKind) bool {
	for _, s := range r.Sources {
		if s == k {
			return true
		}
	}
	return false
}

// Eligible reports whether the record may be sent to the model.
func (r *MergedRecord) Eligible() bool {
	return !r.Flags.Excluded
}
