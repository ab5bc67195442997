//go:build sqlite

package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"itsch/internal/stats"
)

func TestTrainThenEvaluateSQLite(t *testing.T) {
	workdir := chdirTemp(t)
	dbPath := filepath.Join(workdir, "itsch.db")
	dataPath := filepath.Join(workdir, "trace.csv")

	if err := run(context.Background(), []string{
		"generate",
		"-out", dataPath,
		"-timesteps", "400",
		"-sequences", "2",
		"-burst-dbm", "-45",
		"-mean-burst", "20",
		"-mean-idle", "40",
		"-seed", "7",
	}); err != nil {
		t.Fatalf("generate command: %v", err)
	}

	shared := []string{
		"-store", "sqlite",
		"-db-path", dbPath,
		"-dataset", "bench",
		"-data", dataPath,
		"-sample-rate", "2",
		"-target-rate", "1",
		"-past-window", "25",
		"-future-window", "25",
		"-train-split", "100",
		"-metric-window", "150",
		"-layers", "2",
		"-neurons", "8",
		"-learning-rate", "0.001",
	}

	trainArgs := append([]string{"train", "-quiet", "-iterations", "2", "-batch", "2", "-seed", "11"}, shared...)
	if err := run(context.Background(), trainArgs); err != nil {
		t.Fatalf("train command: %v", err)
	}
	if _, err := os.Stat(dbPath); err != nil {
		t.Fatalf("expected sqlite db at %s: %v", dbPath, err)
	}

	evaluateArgs := append([]string{"evaluate", "-seed", "11"}, shared...)
	if err := run(context.Background(), evaluateArgs); err != nil {
		t.Fatalf("evaluate command: %v", err)
	}

	entries, err := stats.ListRunIndex(benchmarksDir)
	if err != nil {
		t.Fatalf("list run index: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected one indexed run, got %d", len(entries))
	}
	for _, file := range []string{"config.json", "evaluations.json", "reception.png"} {
		if _, err := os.Stat(filepath.Join(benchmarksDir, entries[0].RunID, file)); err != nil {
			t.Errorf("missing artifact %s: %v", file, err)
		}
	}
}
