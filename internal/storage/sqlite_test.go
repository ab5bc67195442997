//go:build sqlite

package storage

import (
	"context"
	"path/filepath"
	"testing"

	"itsch/internal/model"
)

func TestSQLiteStoreSnapshotRoundTrip(t *testing.T) {
	ctx := context.Background()
	dbPath := filepath.Join(t.TempDir(), "itsch.db")

	store := NewSQLiteStore(dbPath)
	if err := store.Init(ctx); err != nil {
		t.Fatalf("init: %v", err)
	}
	t.Cleanup(func() {
		_ = store.Close()
	})

	snapshot := model.PredictorSnapshot{
		VersionedRecord: model.VersionedRecord{SchemaVersion: CurrentSchemaVersion, CodecVersion: CurrentCodecVersion},
		ID:              "suburb-max",
		Dataset:         "suburb",
		Policy:          "max",
		PenaltyWeight:   0.55,
		Norm:            model.NormStats{Mean: -70.1, Std: 12.4},
		Payload:         "{}",
	}
	if err := store.SaveSnapshot(ctx, snapshot); err != nil {
		t.Fatalf("save snapshot: %v", err)
	}

	loaded, ok, err := store.GetSnapshot(ctx, snapshot.ID)
	if err != nil {
		t.Fatalf("get snapshot: %v", err)
	}
	if !ok {
		t.Fatalf("expected snapshot %s", snapshot.ID)
	}
	if loaded.Policy != "max" || loaded.Norm.Mean != -70.1 {
		t.Fatalf("unexpected snapshot loaded: %+v", loaded)
	}

	// Saving again with the same ID upserts rather than failing.
	snapshot.PenaltyWeight = 0.6
	if err := store.SaveSnapshot(ctx, snapshot); err != nil {
		t.Fatalf("upsert snapshot: %v", err)
	}
	loaded, _, err = store.GetSnapshot(ctx, snapshot.ID)
	if err != nil {
		t.Fatalf("get upserted snapshot: %v", err)
	}
	if loaded.PenaltyWeight != 0.6 {
		t.Fatalf("upsert did not replace payload: %+v", loaded)
	}
}

func TestSQLiteStoreMetricsAndEvaluations(t *testing.T) {
	ctx := context.Background()
	dbPath := filepath.Join(t.TempDir(), "itsch.db")

	store := NewSQLiteStore(dbPath)
	if err := store.Init(ctx); err != nil {
		t.Fatalf("init: %v", err)
	}
	t.Cleanup(func() {
		_ = store.Close()
	})

	metrics := []model.TrainingMetric{{Iteration: 1, CrossEntropy: 0.5, Penalty: 0.2, Total: 0.51}}
	if err := store.SaveTrainingMetrics(ctx, "run-1", metrics); err != nil {
		t.Fatalf("save metrics: %v", err)
	}
	loadedMetrics, ok, err := store.GetTrainingMetrics(ctx, "run-1")
	if err != nil {
		t.Fatalf("get metrics: %v", err)
	}
	if !ok || len(loadedMetrics) != 1 || loadedMetrics[0].Iteration != 1 {
		t.Fatalf("unexpected metrics: %+v", loadedMetrics)
	}

	versioned := model.VersionedRecord{SchemaVersion: CurrentSchemaVersion, CodecVersion: CurrentCodecVersion}
	records := []model.EvaluationRecord{
		{VersionedRecord: versioned, ID: "a", Dataset: "suburb", Variant: "standard", PRR: 0.9},
		{VersionedRecord: versioned, ID: "b", Dataset: "downtown", Variant: "standard", PRR: 0.8},
	}
	for _, record := range records {
		if err := store.SaveEvaluation(ctx, record); err != nil {
			t.Fatalf("save evaluation %s: %v", record.ID, err)
		}
	}
	listed, err := store.ListEvaluations(ctx, "suburb")
	if err != nil {
		t.Fatalf("list evaluations: %v", err)
	}
	if len(listed) != 1 || listed[0].ID != "a" {
		t.Fatalf("unexpected listing: %+v", listed)
	}

	if err := store.Reset(ctx); err != nil {
		t.Fatalf("reset: %v", err)
	}
	listed, err = store.ListEvaluations(ctx, "")
	if err != nil {
		t.Fatalf("list after reset: %v", err)
	}
	if len(listed) != 0 {
		t.Fatalf("reset left %d evaluations", len(listed))
	}
}
