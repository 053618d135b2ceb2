// Package predict scores integrated records with an external ranking model.
package predict

import (
	"context"

	"github.com/sells-group/prerace-cli/internal/model"
)

// Model scores the eligible records of one event. Higher scores rank better.
// Implementations must not mutate records.
type Model interface {
	Predict(ctx context.Context, event model.Event, records []model.MergedRecord) (*model.Prediction, error)
}
