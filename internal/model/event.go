// Package model defines the race, entrant and run types shared by every stage
// of the capture pipeline.
package model

import "time"

// Event is a single scheduled race. It is created by the schedule source and
// never modified afterwards.
type Event struct {
	ID             string    `json:"id"`
	Date           string    `json:"date"` // YYYY-MM-DD, local to the venue
	Venue          string    `json:"venue"`
	RaceNumber     int       `json:"race_number"`
	Name           string    `json:"name,omitempty"`
	StartTime      time.Time `json:"start_time"`
	Distance       int       `json:"distance"` // metres
	Class          string    `json:"class"`
	Surface        string    `json:"surface"`
	TrackCondition string    `json:"track_condition,omitempty"`
	Weather        string    `json:"weather,omitempty"`
	FieldSize      int       `json:"field_size,omitempty"`
}

// Entrant is one competitor in an Event.
type Entrant struct {
	EventID           string   `json:"event_id"`
	ProgramNumber     int      `json:"program_number"`
	HorseName         string   `json:"horse_name"`
	HorseNameVariants []string `json:"horse_name_variants,omitempty"`
	JockeyName        string   `json:"jockey_name,omitempty"`
	JockeyID          string   `json:"jockey_id,omitempty"`
	Trainer           string   `json:"trainer,omitempty"`
	WeightCarried     *float64 `json:"weight_carried,omitempty"`
	Draw              *int     `json:"draw,omitempty"`
	BodyWeight        *int     `json:"body_weight,omitempty"`
	Age               *int     `json:"age,omitempty"`
	Sex               string   `json:"sex,omitempty"`
}

// HistoricalStart is one past start of an entrant. Read-only once ingested.
type HistoricalStart struct {
	Date             time.Time `json:"date"`
	FinishRaw        string    `json:"finish_raw,omitempty"`
	FinishPosition   *int      `json:"finish_position,omitempty"`
	JockeyName       string    `json:"jockey_name,omitempty"`
	JockeyID         string    `json:"jockey_id,omitempty"`
	Venue            string    `json:"venue,omitempty"`
	Distance         *int      `json:"distance,omitempty"`
	Class            string    `json:"class,omitempty"`
	FieldSize        *int      `json:"field_size,omitempty"`
	Popularity       *int      `json:"popularity,omitempty"`
	Corner3          *int      `json:"corner3,omitempty"`
	Corner4          *int      `json:"corner4,omitempty"`
	FinalFurlongRank *int      `json:"final_furlong_rank,omitempty"`
	BodyWeight       *int      `json:"body_weight,omitempty"`
}

// Ptr returns a pointer to v. Handy for optional fields in literals.
func Ptr[T any](v T) *T {
	return &v
}
