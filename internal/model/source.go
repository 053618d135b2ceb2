package model

import (
	"time"
)

// SourceKind identifies one of the three external data sources.
type SourceKind string

const (
	// SourceInfo is the race-card and analyst index source.
	SourceInfo SourceKind = "info"
	// SourceHistory is the past-performance source.
	SourceHistory SourceKind = "history"
	// SourceOdds is the official odds source.
	SourceOdds SourceKind = "odds"
)

// AllSources lists the sources in their canonical order.
var AllSources = []SourceKind{SourceInfo, SourceHistory, SourceOdds}

// Valid reports whether k names a known source.
func (k SourceKind) Valid() bool {
	switch k {
	case SourceInfo, SourceHistory, SourceOdds:
		return true
	default:
		return false
	}
}

// SourceRecord is the raw output of one source for one event. It is never
// mutated after the fetch that produced it.
type SourceRecord struct {
	Source    SourceKind  `json:"source"`
	EventID   string      `json:"event_id"`
	FetchedAt time.Time   `json:"fetched_at"`
	Rows      []SourceRow `json:"rows"`
}

// SourceRow is a single entrant row as reported by one source. Optional
// values are pointers so that "not reported" stays distinguishable from zero.
type SourceRow struct {
	ProgramNumber *int     `json:"program_number,omitempty"`
	HorseName     string   `json:"horse_name"`
	JockeyName    string   `json:"jockey_name,omitempty"`
	Trainer       string   `json:"trainer,omitempty"`
	WeightCarried *float64 `json:"weight_carried,omitempty"`
	Draw          *int     `json:"draw,omitempty"`
	BodyWeight    *int     `json:"body_weight,omitempty"`
	Age           *int     `json:"age,omitempty"`
	Sex           string   `json:"sex,omitempty"`

	// Odds source.
	Odds       *float64 `json:"odds,omitempty"`
	Popularity *int     `json:"popularity,omitempty"`

	// Info source.
	Indices map[string]float64 `json:"indices,omitempty"`

	// History source.
	History []HistoricalStart `json:"history,omitempty"`
}
