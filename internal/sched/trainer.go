package sched

import (
	"fmt"
	"math/rand"

	"itsch/internal/model"
	"itsch/internal/radio"
	"itsch/internal/series"
)

// TrainerConfig fixes one training run. Window lengths are in samples at
// SampleRate; the scorer sees past windows decimated to TargetRate and
// standardized with statistics computed over the training prefix.
type TrainerConfig struct {
	Policy     Policy
	Iterations int
	BatchSize  int
	PastLen    int
	FutureLen  int
	SampleRate int
	TargetRate int
	Seed       int64
	ErrorModel radio.BitErrorProb
	Logf       func(format string, args ...any)
}

// Trainer drives the iterative training loop: sample pivots, score the
// past, simulate the future, compose the loss, push the gradient back.
type Trainer struct {
	cfg TrainerConfig
	sim radio.Simulator
	obj Objective
	rng *rand.Rand
}

func NewTrainer(cfg TrainerConfig) (*Trainer, error) {
	if cfg.Iterations <= 0 || cfg.BatchSize <= 0 {
		return nil, fmt.Errorf("iterations and batch size must be positive: %d/%d", cfg.Iterations, cfg.BatchSize)
	}
	if cfg.PastLen <= 0 || cfg.FutureLen <= 0 {
		return nil, fmt.Errorf("window lengths must be positive: %d/%d", cfg.PastLen, cfg.FutureLen)
	}
	if cfg.TargetRate <= 0 || cfg.SampleRate < cfg.TargetRate {
		return nil, fmt.Errorf("rates must satisfy 0 < target <= sample: %d/%d", cfg.TargetRate, cfg.SampleRate)
	}
	return &Trainer{
		cfg: cfg,
		sim: radio.NewSimulator(),
		obj: Objective{PenaltyWeight: cfg.Policy.PenaltyWeight()},
		rng: rand.New(rand.NewSource(cfg.Seed)),
	}, nil
}

// Run trains the scorer on the training portion of the series and returns
// the per-iteration loss terms. Any failure aborts the run with enough
// context to reproduce it.
func (t *Trainer) Run(train series.Series, norm model.NormStats, scorer TrainableScorer) ([]model.TrainingMetric, error) {
	metrics := make([]model.TrainingMetric, 0, t.cfg.Iterations)
	for iteration := 1; iteration <= t.cfg.Iterations; iteration++ {
		pivots, err := series.TrainingPivots(t.rng, t.cfg.BatchSize, train.Timesteps(), t.cfg.PastLen, t.cfg.FutureLen)
		if err != nil {
			return metrics, fmt.Errorf("iteration %d: %w", iteration, err)
		}
		terms, err := t.step(pivots, train, norm, scorer)
		if err != nil {
			lo, hi := pivotRange(pivots)
			return metrics, fmt.Errorf("iteration %d (pivots %d..%d): %w", iteration, lo, hi, err)
		}
		metrics = append(metrics, model.TrainingMetric{
			Iteration:    iteration,
			CrossEntropy: terms.CrossEntropy,
			Penalty:      terms.Penalty,
			Total:        terms.Total,
		})
		if t.cfg.Logf != nil {
			t.cfg.Logf("iteration %d/%d cross-entropy %.4f penalty %.4f total %.4f",
				iteration, t.cfg.Iterations, terms.CrossEntropy, terms.Penalty, terms.Total)
		}
	}
	return metrics, nil
}

func (t *Trainer) step(pivots []int, train series.Series, norm model.NormStats, scorer TrainableScorer) (LossTerms, error) {
	past, future, err := series.ExtractWindows(train, pivots, t.cfg.PastLen, t.cfg.FutureLen)
	if err != nil {
		return LossTerms{}, err
	}
	down, err := series.Downsample(past, t.cfg.PastLen*t.cfg.TargetRate/t.cfg.SampleRate)
	if err != nil {
		return LossTerms{}, fmt.Errorf("downsample past windows: %w", err)
	}
	normalized := series.Normalize(down, norm)

	scores, err := scorer.Score(normalized)
	if err != nil {
		return LossTerms{}, fmt.Errorf("score past windows: %w", err)
	}

	power, attribution := t.sim.Baseline(future)
	reduced, err := Reduce(t.cfg.Policy, t.cfg.ErrorModel.Apply(power), attribution)
	if err != nil {
		return LossTerms{}, fmt.Errorf("reduce simulated errors: %w", err)
	}

	terms, err := t.obj.Loss(reduced, scores)
	if err != nil {
		return LossTerms{}, err
	}
	grad, err := t.obj.Gradient(reduced, scores)
	if err != nil {
		return LossTerms{}, err
	}
	if err := scorer.Update(normalized, grad); err != nil {
		return LossTerms{}, fmt.Errorf("apply gradient: %w", err)
	}
	return terms, nil
}

func pivotRange(pivots []int) (lo, hi int) {
	lo, hi = pivots[0], pivots[0]
	for _, p := range pivots[1:] {
		if p < lo {
			lo = p
		}
		if p > hi {
			hi = p
		}
	}
	return lo, hi
}
