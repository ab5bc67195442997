package itsch

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"itsch/internal/stats"
)

func testClient(t *testing.T) *Client {
	t.Helper()
	base := t.TempDir()
	client, err := New(Options{
		BenchmarksDir: filepath.Join(base, "benchmarks"),
		ExportsDir:    filepath.Join(base, "exports"),
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { client.Close() })
	return client
}

func testParams() Params {
	return Params{
		SampleRate:      2,
		TargetRate:      1,
		PastWindowSec:   25,
		FutureWindowSec: 25,
		TrainSplitSec:   100,
		MetricWindowSec: 150,
		Layers:          2,
		Neurons:         8,
		LearningRate:    1e-3,
	}
}

func generateTestDataset(t *testing.T, client *Client) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "trace.csv")
	err := client.Generate(context.Background(), GenerateRequest{
		Path:       path,
		Timesteps:  400,
		Sequences:  2,
		Channels:   16,
		BurstDBm:   -45,
		MeanBurst:  20,
		MeanIdle:   40,
		ChannelSet: 4,
		Seed:       7,
	})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	return path
}

func TestClientRunEndToEnd(t *testing.T) {
	client := testClient(t)
	ctx := context.Background()
	if err := client.Init(ctx); err != nil {
		t.Fatalf("Init: %v", err)
	}
	dataPath := generateTestDataset(t, client)

	summary, err := client.Run(ctx, RunRequest{
		Dataset:    "bench",
		DataPath:   dataPath,
		Iterations: 2,
		BatchSize:  2,
		Seed:       11,
		Params:     testParams(),
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !strings.HasPrefix(summary.RunID, "bench-11-") {
		t.Errorf("run id = %q, want bench-11- prefix", summary.RunID)
	}
	wantVariants := []string{"standard", "enhanced", "itsch-mean", "itsch-max"}
	if len(summary.Variants) != len(wantVariants) {
		t.Fatalf("got %d variants, want %d", len(summary.Variants), len(wantVariants))
	}
	for i, v := range summary.Variants {
		if v.Variant != wantVariants[i] {
			t.Errorf("variant %d = %q, want %q", i, v.Variant, wantVariants[i])
		}
		if v.PRR <= 0 || v.PRR > 1 {
			t.Errorf("%s PRR = %v, want in (0, 1]", v.Variant, v.PRR)
		}
	}
	if summary.BestPRR <= 0 {
		t.Errorf("best PRR = %v, want positive", summary.BestPRR)
	}

	for _, name := range []string{
		"config.json", "evaluations.json",
		"metrics-mean.csv", "metrics-max.csv",
		"loss-mean.png", "loss-max.png", "reception.png",
	} {
		if _, err := os.Stat(filepath.Join(summary.ArtifactsDir, name)); err != nil {
			t.Errorf("missing artifact %s: %v", name, err)
		}
	}

	runs, err := client.Runs(ctx, RunsRequest{})
	if err != nil {
		t.Fatalf("Runs: %v", err)
	}
	if len(runs) != 1 || runs[0].RunID != summary.RunID {
		t.Fatalf("runs = %+v, want single entry for %s", runs, summary.RunID)
	}
	if runs[0].BestPRR != summary.BestPRR {
		t.Errorf("indexed best PRR = %v, want %v", runs[0].BestPRR, summary.BestPRR)
	}

	report, err := client.ReportRun(ctx, ReportRequest{Latest: true})
	if err != nil {
		t.Fatalf("ReportRun: %v", err)
	}
	if report.RunID != summary.RunID || report.Dataset != "bench" {
		t.Errorf("report = %+v", report)
	}
	if len(report.Variants) != len(wantVariants) {
		t.Errorf("report has %d variants, want %d", len(report.Variants), len(wantVariants))
	}

	export, err := client.Export(ctx, ExportRequest{RunID: summary.RunID})
	if err != nil {
		t.Fatalf("Export: %v", err)
	}
	if _, err := os.Stat(filepath.Join(export.Directory, "config.json")); err != nil {
		t.Errorf("exported config missing: %v", err)
	}
}

func TestClientTrainThenEvaluate(t *testing.T) {
	client := testClient(t)
	ctx := context.Background()
	if err := client.Init(ctx); err != nil {
		t.Fatalf("Init: %v", err)
	}
	dataPath := generateTestDataset(t, client)

	trained, err := client.Train(ctx, TrainRequest{
		Dataset:    "bench",
		DataPath:   dataPath,
		Iterations: 2,
		BatchSize:  2,
		Seed:       11,
		Params:     testParams(),
	})
	if err != nil {
		t.Fatalf("Train: %v", err)
	}
	if !strings.HasPrefix(trained.RunID, "bench-train-") {
		t.Errorf("train run id = %q", trained.RunID)
	}
	if len(trained.SnapshotIDs) != 2 {
		t.Fatalf("snapshot ids = %v", trained.SnapshotIDs)
	}
	if len(trained.FinalLoss) != 2 {
		t.Errorf("final loss = %v", trained.FinalLoss)
	}
	for _, name := range []string{"config.json", "metrics-mean.csv", "metrics-max.csv", "loss-mean.png", "loss-max.png"} {
		if _, err := os.Stat(filepath.Join(trained.ArtifactsDir, name)); err != nil {
			t.Errorf("missing train artifact %s: %v", name, err)
		}
	}
	cfg, ok, err := stats.ReadRunConfig(client.benchmarksDir, trained.RunID)
	if err != nil || !ok {
		t.Fatalf("ReadRunConfig: ok=%v err=%v", ok, err)
	}
	if cfg.StoreKind != "memory" {
		t.Errorf("persisted store kind = %q, want memory", cfg.StoreKind)
	}

	evaluated, err := client.Evaluate(ctx, EvaluateRequest{
		Dataset:  "bench",
		DataPath: dataPath,
		Seed:     11,
		Params:   testParams(),
	})
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if len(evaluated.Variants) != 4 {
		t.Fatalf("variants = %+v", evaluated.Variants)
	}
	for _, name := range []string{"config.json", "evaluations.json", "reception.png"} {
		if _, err := os.Stat(filepath.Join(evaluated.ArtifactsDir, name)); err != nil {
			t.Errorf("missing evaluate artifact %s: %v", name, err)
		}
	}

	runs, err := client.Runs(ctx, RunsRequest{})
	if err != nil {
		t.Fatalf("Runs: %v", err)
	}
	if len(runs) != 1 || runs[0].RunID != evaluated.RunID {
		t.Errorf("runs = %+v, want evaluation run only", runs)
	}
}

func TestClientEvaluateWithoutTraining(t *testing.T) {
	client := testClient(t)
	ctx := context.Background()
	if err := client.Init(ctx); err != nil {
		t.Fatalf("Init: %v", err)
	}
	dataPath := generateTestDataset(t, client)
	_, err := client.Evaluate(ctx, EvaluateRequest{
		Dataset:  "bench",
		DataPath: dataPath,
		Params:   testParams(),
	})
	if err == nil || !strings.Contains(err.Error(), "train first") {
		t.Fatalf("expected missing-snapshot error, got %v", err)
	}
}

func TestClientRunValidation(t *testing.T) {
	client := testClient(t)
	ctx := context.Background()

	if _, err := client.Run(ctx, RunRequest{DataPath: "x.csv"}); err == nil {
		t.Error("expected error for missing dataset name")
	}
	if _, err := client.Run(ctx, RunRequest{Dataset: "bench"}); err == nil {
		t.Error("expected error for missing dataset path")
	}
	if _, err := client.Run(ctx, RunRequest{
		Dataset:  "bench",
		DataPath: "x.csv",
		Policies: []string{"median"},
	}); err == nil {
		t.Error("expected error for unknown policy")
	}
}

func TestClientGenerateValidation(t *testing.T) {
	client := testClient(t)
	if err := client.Generate(context.Background(), GenerateRequest{}); err == nil {
		t.Error("expected error for missing output path")
	}
}

func TestClientExportSelector(t *testing.T) {
	client := testClient(t)
	ctx := context.Background()

	if _, err := client.Export(ctx, ExportRequest{RunID: "a", Latest: true}); err == nil {
		t.Error("expected error for run id with latest")
	}
	if _, err := client.Export(ctx, ExportRequest{}); err == nil {
		t.Error("expected error for neither run id nor latest")
	}
	if _, err := client.Export(ctx, ExportRequest{Latest: true}); err == nil {
		t.Error("expected error when no runs exist")
	}
}

func TestParamsDefaults(t *testing.T) {
	p := Params{}.withDefaults()
	if p.SampleRate != 2000 || p.TargetRate != 10 {
		t.Errorf("rates = %d/%d, want 2000/10", p.SampleRate, p.TargetRate)
	}
	if p.PowerDBm != -10 || p.Alpha != 3.5 || p.DistanceM != 3 {
		t.Errorf("channel model = %v/%v/%v", p.PowerDBm, p.Alpha, p.DistanceM)
	}
	if p.ExclusionBudget != 8 || p.Layers != 2 || p.Neurons != 50 {
		t.Errorf("model shape = %d/%d/%d", p.ExclusionBudget, p.Layers, p.Neurons)
	}
	if p.LearningRate != 1e-4 {
		t.Errorf("learning rate = %v", p.LearningRate)
	}
}
