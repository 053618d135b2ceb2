package model

// Prediction maps program number to the model score for one event. Higher
// scores rank better.
type Prediction struct {
	EventID string          `json:"event_id"`
	Scores  map[int]float64 `json:"scores"`
}

// Grade is the discrete per-race confidence band.
type Grade string

const (
	GradeTop  Grade = "top"
	GradeMid  Grade = "mid"
	GradeBase Grade = "base"
	GradeNone Grade = "none"
)

// RankedEntrant is one line of the ranked prediction.
type RankedEntrant struct {
	Rank          int      `json:"rank"`
	ProgramNumber int      `json:"program_number"`
	HorseName     string   `json:"horse_name"`
	Score         float64  `json:"score"`
	Odds          *float64 `json:"odds,omitempty"`
}

// ConfidenceGrade summarises how reliable a race prediction looks. It has no
// lifecycle of its own and is recomputed on every run.
type ConfidenceGrade struct {
	Grade      Grade           `json:"grade"`
	Featured   bool            `json:"featured"`
	Separation float64         `json:"separation"`
	Reason     string          `json:"reason,omitempty"`
	Ranking    []RankedEntrant `json:"ranking"`
}
