package integrate

import (
	"time"

	"github.com/sells-group/prerace-cli/internal/model"
)

var testEvent = model.Event{
	ID:         "202610180511",
	Date:       "2026-10-18",
	Venue:      "Tokyo",
	RaceNumber: 11,
	StartTime:  time.Date(2026, 10, 18, 6, 40, 0, 0, time.UTC),
	Distance:   2000,
	Class:      "G1",
	Surface:    "turf",
	FieldSize:  3,
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func infoRecord() *model.SourceRecord {
	return &model.SourceRecord{Source: model.SourceInfo, EventID: testEvent.ID, Rows: []model.SourceRow{
		{ProgramNumber: model.Ptr(1), HorseName: "Sunny Road", JockeyName: "J.スミス", Trainer: "Kato",
			WeightCarried: model.Ptr(57.0), Draw: model.Ptr(1), BodyWeight: model.Ptr(480), Age: model.Ptr(4), Sex: "M",
			Indices: map[string]float64{"speed": 92, "pace": 48}},
		{ProgramNumber: model.Ptr(2), HorseName: "Blue Lagoon", JockeyName: "C.ルメール", Trainer: "Ito",
			WeightCarried: model.Ptr(55.0), Draw: model.Ptr(2), Age: model.Ptr(3), Sex: "F",
			Indices: map[string]float64{"speed": 88, "pace": 51}},
		{ProgramNumber: model.Ptr(3), HorseName: "Iron Gate", JockeyName: "武豊", Trainer: "Mori",
			WeightCarried: model.Ptr(57.0), Draw: model.Ptr(3), BodyWeight: model.Ptr(502), Age: model.Ptr(5), Sex: "G",
			Indices: map[string]float64{"speed": 85, "pace": 55}},
	}}
}

func oddsRecord() *model.SourceRecord {
	return &model.SourceRecord{Source: model.SourceOdds, EventID: testEvent.ID, Rows: []model.SourceRow{
		{ProgramNumber: model.Ptr(1), HorseName: "SUNNY ROAD", Odds: model.Ptr(2.4), Popularity: model.Ptr(1), BodyWeight: model.Ptr(470)},
		{ProgramNumber: model.Ptr(2), HorseName: "Blue Lagoon", Odds: model.Ptr(14.2), Popularity: model.Ptr(3), BodyWeight: model.Ptr(452)},
		{ProgramNumber: model.Ptr(3), HorseName: "Iron Gate", Odds: model.Ptr(5.1), Popularity: model.Ptr(2)},
	}}
}

func historyRecord() *model.SourceRecord {
	return &model.SourceRecord{Source: model.SourceHistory, EventID: testEvent.ID, Rows: []model.SourceRow{
		// No program numbers: aligned by horse name.
		{HorseName: "Ｓｕｎｎｙ　Ｒｏａｄ", History: []model.HistoricalStart{
			{Date: day(2026, 8, 1), FinishRaw: "３", JockeyName: "Ｊ．スミス", Venue: "Niigata", Distance: model.Ptr(1800), Class: "G3",
				FieldSize: model.Ptr(16), Popularity: model.Ptr(2), Corner3: model.Ptr(4), FinalFurlongRank: model.Ptr(2)},
			{Date: day(2026, 9, 10), FinishRaw: "1", JockeyName: "J.スミス", Venue: "Nakayama", Distance: model.Ptr(2000), Class: "G2",
				FieldSize: model.Ptr(14), Popularity: model.Ptr(3), Corner3: model.Ptr(5), FinalFurlongRank: model.Ptr(1)},
		}},
		{HorseName: "Blue Lagoon", History: []model.HistoricalStart{
			{Date: day(2026, 9, 20), FinishRaw: "外", JockeyName: "C.ルメール"},
			{Date: day(2026, 7, 1), FinishRaw: "2", JockeyName: "横山武史"},
			{Date: day(2026, 5, 1), FinishRaw: "4", JockeyName: "横山武史"},
			{Date: day(2026, 3, 1), FinishRaw: "1", JockeyName: "C.ルメール"},
		}},
		{ProgramNumber: model.Ptr(3), HorseName: "Iron Gate", History: []model.HistoricalStart{
			{Date: day(2026, 9, 1), FinishRaw: "5", JockeyName: "武豊"},
		}},
	}}
}
