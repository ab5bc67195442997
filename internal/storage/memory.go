package storage

import (
	"context"
	"sort"
	"sync"

	"itsch/internal/model"
)

type MemoryStore struct {
	mu          sync.RWMutex
	initialized bool
	snapshots   map[string]model.PredictorSnapshot
	metrics     map[string][]model.TrainingMetric
	evaluations map[string]model.EvaluationRecord
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Init(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.initialized = true
	s.snapshots = make(map[string]model.PredictorSnapshot)
	s.metrics = make(map[string][]model.TrainingMetric)
	s.evaluations = make(map[string]model.EvaluationRecord)
	return nil
}

func (s *MemoryStore) Reset(ctx context.Context) error {
	return s.Init(ctx)
}

func (s *MemoryStore) SaveSnapshot(_ context.Context, snapshot model.PredictorSnapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.snapshots[snapshot.ID] = snapshot
	return nil
}

func (s *MemoryStore) GetSnapshot(_ context.Context, id string) (model.PredictorSnapshot, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snapshot, ok := s.snapshots[id]
	return snapshot, ok, nil
}

func (s *MemoryStore) SaveTrainingMetrics(_ context.Context, runID string, metrics []model.TrainingMetric) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	copied := make([]model.TrainingMetric, len(metrics))
	copy(copied, metrics)
	s.metrics[runID] = copied
	return nil
}

func (s *MemoryStore) GetTrainingMetrics(_ context.Context, runID string) ([]model.TrainingMetric, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	metrics, ok := s.metrics[runID]
	if !ok {
		return nil, false, nil
	}
	copied := make([]model.TrainingMetric, len(metrics))
	copy(copied, metrics)
	return copied, true, nil
}

func (s *MemoryStore) SaveEvaluation(_ context.Context, record model.EvaluationRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.evaluations[record.ID] = record
	return nil
}

func (s *MemoryStore) GetEvaluation(_ context.Context, id string) (model.EvaluationRecord, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	record, ok := s.evaluations[id]
	return record, ok, nil
}

func (s *MemoryStore) ListEvaluations(_ context.Context, dataset string) ([]model.EvaluationRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]model.EvaluationRecord, 0, len(s.evaluations))
	for _, record := range s.evaluations {
		if dataset == "" || record.Dataset == dataset {
			out = append(out, record)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}
