package storage

import (
	"context"

	"itsch/internal/model"
)

// Store defines persistence operations for trained predictors and their
// evaluation results.
type Store interface {
	Init(ctx context.Context) error
	SaveSnapshot(ctx context.Context, snapshot model.PredictorSnapshot) error
	GetSnapshot(ctx context.Context, id string) (model.PredictorSnapshot, bool, error)
	SaveTrainingMetrics(ctx context.Context, runID string, metrics []model.TrainingMetric) error
	GetTrainingMetrics(ctx context.Context, runID string) ([]model.TrainingMetric, bool, error)
	SaveEvaluation(ctx context.Context, record model.EvaluationRecord) error
	GetEvaluation(ctx context.Context, id string) (model.EvaluationRecord, bool, error)
	ListEvaluations(ctx context.Context, dataset string) ([]model.EvaluationRecord, error)
}

// Resetter is implemented by stores that can drop all persisted state.
type Resetter interface {
	Reset(ctx context.Context) error
}
