package predictor

import (
	"testing"

	"itsch/internal/series"
)

func TestConfigValidation(t *testing.T) {
	bad := []func(*Config){
		func(c *Config) { c.Layers = 0 },
		func(c *Config) { c.Neurons = 0 },
		func(c *Config) { c.SeqLen = -1 },
		func(c *Config) { c.Channels = 0 },
		func(c *Config) { c.LearningRate = 0 },
	}
	for i, mutate := range bad {
		cfg := DefaultConfig()
		mutate(&cfg)
		if _, err := New(cfg); err == nil {
			t.Errorf("case %d: expected config error", i)
		}
	}
	if _, err := New(DefaultConfig()); err != nil {
		t.Errorf("default config rejected: %v", err)
	}
}

func TestScoreRejectsShapeMismatch(t *testing.T) {
	cfg := DefaultConfig()
	cfg.SeqLen = 10
	cfg.Channels = 4
	cfg.Neurons = 8
	net, err := New(cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	wrongLen, err := series.New(5, 1, 4)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := net.Score(wrongLen); err == nil {
		t.Error("expected timestep mismatch error")
	}
	wrongChannels, err := series.New(10, 1, 3)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := net.Score(wrongChannels); err == nil {
		t.Error("expected channel mismatch error")
	}
}

func TestUpdateRejectsGradientMismatch(t *testing.T) {
	cfg := DefaultConfig()
	cfg.SeqLen = 10
	cfg.Channels = 4
	cfg.Neurons = 8
	net, err := New(cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	past, err := series.New(10, 2, 4)
	if err != nil {
		t.Fatal(err)
	}
	if err := net.Update(past, [][]float64{{0, 0, 0, 0}}); err == nil {
		t.Error("expected gradient row mismatch error")
	}
	if err := net.Update(past, [][]float64{{0}, {0}}); err == nil {
		t.Error("expected gradient channel mismatch error")
	}
}

func TestScoreShapeAndRange(t *testing.T) {
	cfg := DefaultConfig()
	cfg.SeqLen = 10
	cfg.Channels = 4
	cfg.Neurons = 8
	net, err := New(cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	past, err := series.New(10, 3, 4)
	if err != nil {
		t.Fatal(err)
	}
	scores, err := net.Score(past)
	if err != nil {
		t.Fatalf("Score: %v", err)
	}
	if len(scores) != 3 {
		t.Fatalf("got %d rows, want 3", len(scores))
	}
	for r, row := range scores {
		if len(row) != 4 {
			t.Fatalf("row %d has %d channels, want 4", r, len(row))
		}
		for c, v := range row {
			if v < 0 || v > 1 {
				t.Errorf("score[%d][%d] = %v outside [0, 1]", r, c, v)
			}
		}
	}
}

func TestSnapshotRestoreRoundTrip(t *testing.T) {
	cfg := DefaultConfig()
	cfg.SeqLen = 10
	cfg.Channels = 4
	cfg.Neurons = 8
	net, err := New(cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	payload, err := net.Snapshot()
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	restored, err := Restore(cfg, payload)
	if err != nil {
		t.Fatalf("Restore: %v", err)
	}

	past, err := series.New(10, 1, 4)
	if err != nil {
		t.Fatal(err)
	}
	for ts := 0; ts < 10; ts++ {
		for c := 0; c < 4; c++ {
			past.Set(ts, 0, c, float64(ts-c)/10)
		}
	}
	want, err := net.Score(past)
	if err != nil {
		t.Fatal(err)
	}
	got, err := restored.Score(past)
	if err != nil {
		t.Fatal(err)
	}
	for c := range want[0] {
		if want[0][c] != got[0][c] {
			t.Fatalf("channel %d: restored score %v, original %v", c, got[0][c], want[0][c])
		}
	}
}
