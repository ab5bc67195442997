package sched

import "itsch/internal/series"

// Scorer maps a normalized past-window batch to per-channel reliability
// scores in [0, 1], shaped rows x channels. Higher means less reliable.
type Scorer interface {
	Score(past series.Series) ([][]float64, error)
}

// TrainableScorer additionally accepts a loss gradient with respect to its
// scores and updates its parameters. Update must see the same batch the
// gradient was computed from.
type TrainableScorer interface {
	Scorer
	Update(past series.Series, grad [][]float64) error
}
