package sched

import (
	"testing"

	"itsch/internal/model"
	"itsch/internal/radio"
)

func testEvaluatorConfig() EvaluatorConfig {
	return EvaluatorConfig{
		PastLen:         50,
		FutureLen:       50,
		SampleRate:      2,
		TargetRate:      1,
		ExclusionBudget: 8,
		ErrorModel:      radio.BitErrorProb{PowerDBm: -10, Alpha: 3.5, DistanceM: 3},
		Reception:       radio.PacketReceptionProb{PacketLengthBytes: 133},
	}
}

func TestEvaluatorStitchLengthAndPrefix(t *testing.T) {
	data := noisySeries(t, 200, 2, 5)
	eval, err := NewEvaluator(testEvaluatorConfig())
	if err != nil {
		t.Fatalf("NewEvaluator: %v", err)
	}
	norm := model.NormStats{Mean: -70, Std: 20}
	scorer := &stubScorer{channels: radio.DefaultChannels}

	receptions, err := eval.Run(data, norm, scorer)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(receptions) != 2 {
		t.Fatalf("got %d sequences, want 2", len(receptions))
	}
	// Grid pivots are 50, 100, 150: stitched length 50 + 3*50.
	for s, row := range receptions {
		if len(row) != 200 {
			t.Fatalf("sequence %d length %d, want 200", s, len(row))
		}
	}

	// The first pastLen samples must come verbatim from the blind baseline.
	standard := eval.Standard(data)
	for s := range receptions {
		for ts := 0; ts < 50; ts++ {
			if receptions[s][ts] != standard[s][ts] {
				t.Fatalf("sequence %d sample %d diverges from baseline prefix", s, ts)
			}
		}
	}
}

func TestEvaluatorIdempotent(t *testing.T) {
	data := noisySeries(t, 200, 1, 6)
	eval, err := NewEvaluator(testEvaluatorConfig())
	if err != nil {
		t.Fatalf("NewEvaluator: %v", err)
	}
	norm := model.NormStats{Mean: -70, Std: 20}
	scorer := &stubScorer{channels: radio.DefaultChannels}

	first, err := eval.Run(data, norm, scorer)
	if err != nil {
		t.Fatalf("first Run: %v", err)
	}
	second, err := eval.Run(data, norm, scorer)
	if err != nil {
		t.Fatalf("second Run: %v", err)
	}
	for ts := range first[0] {
		if first[0][ts] != second[0][ts] {
			t.Fatalf("sample %d differs between identical runs", ts)
		}
	}
}

func TestEvaluatorVariantsCoverFullSeries(t *testing.T) {
	data := noisySeries(t, 120, 1, 7)
	eval, err := NewEvaluator(testEvaluatorConfig())
	if err != nil {
		t.Fatalf("NewEvaluator: %v", err)
	}
	standard := eval.Standard(data)
	if len(standard[0]) != 120 {
		t.Errorf("standard series length %d, want 120", len(standard[0]))
	}
	enhanced, err := eval.Enhanced(data)
	if err != nil {
		t.Fatalf("Enhanced: %v", err)
	}
	if len(enhanced[0]) != 120 {
		t.Errorf("enhanced series length %d, want 120", len(enhanced[0]))
	}
	for ts := range standard[0] {
		if standard[0][ts] <= 0 || standard[0][ts] > 1 {
			t.Fatalf("reception %v outside (0, 1]", standard[0][ts])
		}
	}
}

func TestEvaluatorTooShortSeries(t *testing.T) {
	data := noisySeries(t, 60, 1, 8)
	eval, err := NewEvaluator(testEvaluatorConfig())
	if err != nil {
		t.Fatalf("NewEvaluator: %v", err)
	}
	if _, err := eval.Run(data, model.NormStats{Mean: -70, Std: 20}, &stubScorer{channels: radio.DefaultChannels}); err == nil {
		t.Error("expected error for series shorter than one pivot")
	}
}
