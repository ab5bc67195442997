package sched

import (
	"fmt"

	"itsch/internal/model"
	"itsch/internal/radio"
	"itsch/internal/series"
)

// EvaluatorConfig fixes one evaluation pass. ExclusionBudget is the k of
// the top-k availability threshold.
type EvaluatorConfig struct {
	PastLen         int
	FutureLen       int
	SampleRate      int
	TargetRate      int
	ExclusionBudget int
	ErrorModel      radio.BitErrorProb
	Reception       radio.PacketReceptionProb
}

// Evaluator replays a trained scorer over the deterministic pivot grid in
// one batched pass, with no parameter updates and no random state. Running
// it twice on the same snapshot yields identical output.
type Evaluator struct {
	cfg EvaluatorConfig
	sim radio.Simulator
}

func NewEvaluator(cfg EvaluatorConfig) (*Evaluator, error) {
	if cfg.PastLen <= 0 || cfg.FutureLen <= 0 {
		return nil, fmt.Errorf("window lengths must be positive: %d/%d", cfg.PastLen, cfg.FutureLen)
	}
	if cfg.TargetRate <= 0 || cfg.SampleRate < cfg.TargetRate {
		return nil, fmt.Errorf("rates must satisfy 0 < target <= sample: %d/%d", cfg.TargetRate, cfg.SampleRate)
	}
	if cfg.ExclusionBudget <= 0 {
		return nil, fmt.Errorf("exclusion budget must be positive, got %d", cfg.ExclusionBudget)
	}
	return &Evaluator{cfg: cfg, sim: radio.NewSimulator()}, nil
}

// Run scores every grid pivot, hard-masks the channels, simulates the
// masked schedule over each future window, and stitches one reception
// series per sequence: the first PastLen samples come from the blind
// baseline (no decision history yet), the rest from the masked schedule in
// pivot order.
func (e *Evaluator) Run(full series.Series, norm model.NormStats, scorer Scorer) ([][]float64, error) {
	pivots := series.EvaluationPivots(full.Timesteps(), e.cfg.PastLen, e.cfg.FutureLen)
	if len(pivots) == 0 {
		return nil, fmt.Errorf("series of %d timesteps fits no evaluation pivot", full.Timesteps())
	}
	past, future, err := series.ExtractWindows(full, pivots, e.cfg.PastLen, e.cfg.FutureLen)
	if err != nil {
		return nil, err
	}
	down, err := series.Downsample(past, e.cfg.PastLen*e.cfg.TargetRate/e.cfg.SampleRate)
	if err != nil {
		return nil, fmt.Errorf("downsample past windows: %w", err)
	}
	scores, err := scorer.Score(series.Normalize(down, norm))
	if err != nil {
		return nil, fmt.Errorf("score past windows: %w", err)
	}
	mask, err := AvailabilityMask(scores, e.cfg.ExclusionBudget)
	if err != nil {
		return nil, err
	}
	maskedPower, err := e.sim.Masked(future, mask)
	if err != nil {
		return nil, fmt.Errorf("masked schedule: %w", err)
	}
	maskedErrors := e.cfg.ErrorModel.Apply(maskedPower)

	prefix, err := full.SliceTime(0, e.cfg.PastLen)
	if err != nil {
		return nil, err
	}
	prefixPower, _ := e.sim.Baseline(prefix)
	prefixErrors := e.cfg.ErrorModel.Apply(prefixPower)

	out := make([][]float64, full.Sequences())
	for s := 0; s < full.Sequences(); s++ {
		ber := make([]float64, 0, e.cfg.PastLen+len(pivots)*e.cfg.FutureLen)
		for t := 0; t < e.cfg.PastLen; t++ {
			ber = append(ber, prefixErrors[t][s])
		}
		for i := range pivots {
			row := i*full.Sequences() + s
			for t := 0; t < e.cfg.FutureLen; t++ {
				ber = append(ber, maskedErrors[t][row])
			}
		}
		out[s] = e.cfg.Reception.Apply1D(ber)
	}
	return out, nil
}

// Standard replays the blind hopping baseline over the whole series,
// returning one full-length reception series per sequence.
func (e *Evaluator) Standard(full series.Series) [][]float64 {
	power, _ := e.sim.Baseline(full)
	return e.receptionsBySequence(e.cfg.ErrorModel.Apply(power), full.Sequences())
}

// Enhanced replays the energy-detecting variant, sensing at the decimated
// target rate.
func (e *Evaluator) Enhanced(full series.Series) ([][]float64, error) {
	power, err := e.sim.Adaptive(full, float64(e.cfg.TargetRate)/float64(e.cfg.SampleRate))
	if err != nil {
		return nil, err
	}
	return e.receptionsBySequence(e.cfg.ErrorModel.Apply(power), full.Sequences()), nil
}

func (e *Evaluator) receptionsBySequence(errs [][]float64, sequences int) [][]float64 {
	out := make([][]float64, sequences)
	for s := 0; s < sequences; s++ {
		ber := make([]float64, len(errs))
		for t := range errs {
			ber[t] = errs[t][s]
		}
		out[s] = e.cfg.Reception.Apply1D(ber)
	}
	return out
}
