package platform

import (
	"context"
	"math/rand"
	"strings"
	"testing"

	"itsch/internal/sched"
	"itsch/internal/series"
	"itsch/internal/storage"
)

func testLabConfig(store storage.Store) Config {
	return Config{
		Store:             store,
		SampleRate:        2,
		TargetRate:        1,
		PowerDBm:          -10,
		Alpha:             3.5,
		DistanceM:         3,
		PacketLengthBytes: 133,
		PastWindowSec:     25,
		FutureWindowSec:   25,
		TrainSplitSec:     100,
		MetricWindowSec:   150,
		ExclusionBudget:   8,
	}
}

func testLabSeries(t *testing.T, timesteps int) series.Series {
	t.Helper()
	data, err := series.Generate(rand.New(rand.NewSource(7)), series.GenerateConfig{
		Timesteps:  timesteps,
		Sequences:  2,
		Channels:   16,
		QuietDBm:   -100,
		BurstDBm:   -45,
		MeanBurst:  20,
		MeanIdle:   40,
		ChannelSet: 4,
	})
	if err != nil {
		t.Fatalf("generate series: %v", err)
	}
	return data
}

func testTrainingRequest(data series.Series) TrainingRequest {
	return TrainingRequest{
		Dataset:      "bench",
		Data:         data,
		Layers:       2,
		Neurons:      8,
		Iterations:   2,
		BatchSize:    2,
		LearningRate: 1e-3,
		Seed:         11,
	}
}

func TestLabTrainThenEvaluate(t *testing.T) {
	store := storage.NewMemoryStore()
	lab, err := NewLab(testLabConfig(store))
	if err != nil {
		t.Fatalf("NewLab: %v", err)
	}
	ctx := context.Background()
	if err := lab.Init(ctx); err != nil {
		t.Fatalf("Init: %v", err)
	}

	data := testLabSeries(t, 400)
	result, err := lab.RunTraining(ctx, testTrainingRequest(data))
	if err != nil {
		t.Fatalf("RunTraining: %v", err)
	}
	wantIDs := []string{"bench-mean", "bench-max"}
	if len(result.SnapshotIDs) != len(wantIDs) {
		t.Fatalf("snapshot ids = %v, want %v", result.SnapshotIDs, wantIDs)
	}
	for i, id := range wantIDs {
		if result.SnapshotIDs[i] != id {
			t.Errorf("snapshot id %d = %q, want %q", i, result.SnapshotIDs[i], id)
		}
		if _, ok, err := store.GetSnapshot(ctx, id); err != nil || !ok {
			t.Errorf("snapshot %q not persisted (ok=%v, err=%v)", id, ok, err)
		}
	}
	for policy, metrics := range result.Metrics {
		if len(metrics) != 2 {
			t.Errorf("%s metrics length = %d, want 2", policy, len(metrics))
		}
	}

	records, err := lab.RunEvaluation(ctx, EvaluationRequest{
		RunID:        "run-1",
		Dataset:      "bench",
		Data:         data,
		Layers:       2,
		Neurons:      8,
		LearningRate: 1e-3,
		KeepSeries:   true,
	})
	if err != nil {
		t.Fatalf("RunEvaluation: %v", err)
	}
	wantVariants := []string{"standard", "enhanced", "itsch-mean", "itsch-max"}
	if len(records) != len(wantVariants) {
		t.Fatalf("got %d records, want %d", len(records), len(wantVariants))
	}
	for i, record := range records {
		if record.Variant != wantVariants[i] {
			t.Errorf("record %d variant = %q, want %q", i, record.Variant, wantVariants[i])
		}
		if record.ID != "run-1-"+wantVariants[i] {
			t.Errorf("record %d id = %q", i, record.ID)
		}
		if record.PRR <= 0 || record.PRR > 1 {
			t.Errorf("%s PRR = %v, want in (0, 1]", record.Variant, record.PRR)
		}
		if record.EnergyMicroJ <= 0 {
			t.Errorf("%s energy = %v, want positive", record.Variant, record.EnergyMicroJ)
		}
		if len(record.Receptions) != data.Sequences() {
			t.Errorf("%s kept %d reception series, want %d", record.Variant, len(record.Receptions), data.Sequences())
		}
	}

	persisted, err := store.ListEvaluations(ctx, "bench")
	if err != nil {
		t.Fatalf("ListEvaluations: %v", err)
	}
	if len(persisted) != len(wantVariants) {
		t.Errorf("persisted %d evaluations, want %d", len(persisted), len(wantVariants))
	}
}

func TestLabEvaluateWithoutTraining(t *testing.T) {
	lab, err := NewLab(testLabConfig(storage.NewMemoryStore()))
	if err != nil {
		t.Fatalf("NewLab: %v", err)
	}
	ctx := context.Background()
	if err := lab.Init(ctx); err != nil {
		t.Fatalf("Init: %v", err)
	}
	_, err = lab.RunEvaluation(ctx, EvaluationRequest{
		RunID:        "run-1",
		Dataset:      "bench",
		Data:         testLabSeries(t, 400),
		Layers:       2,
		Neurons:      8,
		LearningRate: 1e-3,
	})
	if err == nil || !strings.Contains(err.Error(), "train first") {
		t.Fatalf("expected missing-snapshot error, got %v", err)
	}
}

func TestLabReset(t *testing.T) {
	store := storage.NewMemoryStore()
	lab, err := NewLab(testLabConfig(store))
	if err != nil {
		t.Fatalf("NewLab: %v", err)
	}
	ctx := context.Background()
	if err := lab.Init(ctx); err != nil {
		t.Fatalf("Init: %v", err)
	}
	data := testLabSeries(t, 400)
	if _, err := lab.RunTraining(ctx, testTrainingRequest(data)); err != nil {
		t.Fatalf("RunTraining: %v", err)
	}
	if err := lab.Reset(ctx); err != nil {
		t.Fatalf("Reset: %v", err)
	}
	if _, ok, err := store.GetSnapshot(ctx, "bench-mean"); err != nil || ok {
		t.Errorf("snapshot survived reset (ok=%v, err=%v)", ok, err)
	}
}

func TestLabConfigValidation(t *testing.T) {
	base := testLabConfig(storage.NewMemoryStore())
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"missing store", func(c *Config) { c.Store = nil }},
		{"zero sample rate", func(c *Config) { c.SampleRate = 0 }},
		{"target above sample", func(c *Config) { c.TargetRate = c.SampleRate + 1 }},
		{"zero past window", func(c *Config) { c.PastWindowSec = 0 }},
		{"zero future window", func(c *Config) { c.FutureWindowSec = 0 }},
		{"zero train split", func(c *Config) { c.TrainSplitSec = 0 }},
		{"zero packet length", func(c *Config) { c.PacketLengthBytes = 0 }},
		{"zero exclusion budget", func(c *Config) { c.ExclusionBudget = 0 }},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := base
			tc.mutate(&cfg)
			if _, err := NewLab(cfg); err == nil {
				t.Errorf("expected error for %s", tc.name)
			}
		})
	}
}

func TestLabTrainingRequiresDataset(t *testing.T) {
	lab, err := NewLab(testLabConfig(storage.NewMemoryStore()))
	if err != nil {
		t.Fatalf("NewLab: %v", err)
	}
	req := testTrainingRequest(testLabSeries(t, 400))
	req.Dataset = ""
	if _, err := lab.RunTraining(context.Background(), req); err == nil {
		t.Fatal("expected error for empty dataset name")
	}

	if _, err := lab.RunEvaluation(context.Background(), EvaluationRequest{}); err == nil {
		t.Fatal("expected error for empty evaluation dataset")
	}
}

func TestSnapshotID(t *testing.T) {
	if got := SnapshotID("office", sched.PolicyMax); got != "office-max" {
		t.Errorf("SnapshotID = %q, want office-max", got)
	}
}
