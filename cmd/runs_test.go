package main

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/sells-group/prerace-cli/internal/model"
	"github.com/sells-group/prerace-cli/internal/monitoring"
)

func TestFormatRunsList(t *testing.T) {
	now := time.Date(2026, 10, 18, 6, 35, 0, 0, time.UTC)
	runs := []model.Run{
		{
			ID:     "abc12345-6789-0000-0000-000000000000",
			Event:  model.Event{ID: "202610180511", Venue: "Tokyo", RaceNumber: 11},
			Status: model.RunStatusComplete,
			Result: &model.RunResult{Confidence: &model.ConfidenceGrade{Grade: model.GradeTop, Featured: true}},

			CreatedAt: now,
			UpdatedAt: now.Add(2 * time.Minute),
		},
		{
			ID:        "def12345-6789-0000-0000-000000000000",
			Event:     model.Event{ID: "202610180512", Venue: "Tokyo", RaceNumber: 12},
			Status:    model.RunStatusCollecting,
			CreatedAt: now.Add(-1 * time.Hour),
			UpdatedAt: now.Add(-30 * time.Minute),
		},
	}

	var buf bytes.Buffer
	formatRunsList(&buf, runs)

	output := buf.String()
	assert.Contains(t, output, "EVENT")
	assert.Contains(t, output, "GRADE")
	assert.Contains(t, output, "202610180511")
	assert.Contains(t, output, "Tokyo R11")
	assert.Contains(t, output, "top*")
	assert.Contains(t, output, "collecting")
	assert.Contains(t, output, "2026-10-18 06:35")
	assert.Contains(t, output, "abc12345")
	assert.NotContains(t, output, "abc12345-")
}

func TestFormatRunsList_FailedRun(t *testing.T) {
	now := time.Date(2026, 10, 18, 6, 35, 0, 0, time.UTC)
	runs := []model.Run{{
		ID:        "abc12345",
		Event:     model.Event{ID: "202610180501", Venue: "Nakayama", RaceNumber: 1},
		Status:    model.RunStatusFailed,
		Error:     "insufficient data for 202610180501",
		CreatedAt: now,
		UpdatedAt: now.Add(30 * time.Second),
	}}

	var buf bytes.Buffer
	formatRunsList(&buf, runs)

	assert.Contains(t, buf.String(), "failed")
	assert.Contains(t, buf.String(), "30s")
}

func TestFormatRunStats(t *testing.T) {
	snap := &monitoring.MetricsSnapshot{
		Total:          4,
		Complete:       2,
		Failed:         2,
		FailRate:       0.5,
		Grades:         map[model.Grade]int{model.GradeTop: 1, model.GradeNone: 1},
		Featured:       1,
		SourceFailures: map[model.SourceKind]int{model.SourceOdds: 3},
		AvgDuration:    150 * time.Second,
	}

	var buf bytes.Buffer
	formatRunStats(&buf, snap)

	out := buf.String()
	assert.Contains(t, out, "Total runs:")
	assert.Contains(t, out, "50.0%")
	assert.Contains(t, out, "Grade top:")
	assert.Contains(t, out, "odds source failures:")
	assert.Contains(t, out, "2m30s")
}

func TestTruncateID(t *testing.T) {
	assert.Equal(t, "abc12345", truncateID("abc12345-6789"))
	assert.Equal(t, "short", truncateID("short"))
}
