package sched

import (
	"fmt"
	"math"
)

// bceEps clamps log arguments away from zero.
const bceEps = 1e-12

// LossTerms breaks the training loss into its logged components.
type LossTerms struct {
	CrossEntropy float64
	Penalty      float64
	Total        float64
}

// Objective composes the training loss. Scores stay continuous here; the
// hard availability mask exists only on the evaluation path. Collapsing
// the two would change the optimization target.
type Objective struct {
	PenaltyWeight float64
}

func (o Objective) check(reduced, scores [][]float64) (int, int, error) {
	if len(reduced) == 0 || len(reduced) != len(scores) {
		return 0, 0, fmt.Errorf("row axes disagree: %d reduced vs %d scores", len(reduced), len(scores))
	}
	channels := len(reduced[0])
	for r := range reduced {
		if len(reduced[r]) != channels || len(scores[r]) != channels {
			return 0, 0, fmt.Errorf("row %d channel axes disagree", r)
		}
	}
	return len(reduced), channels, nil
}

// Loss evaluates the objective: predicted failure is reducedError scaled by
// the continuous whitelist (1 - score), driven toward an all-zero target by
// binary cross entropy, plus the mean score weighted by PenaltyWeight.
func (o Objective) Loss(reduced, scores [][]float64) (LossTerms, error) {
	rows, channels, err := o.check(reduced, scores)
	if err != nil {
		return LossTerms{}, err
	}
	n := float64(rows * channels)
	var bce, penalty float64
	for r := 0; r < rows; r++ {
		for c := 0; c < channels; c++ {
			p := reduced[r][c] * (1 - scores[r][c])
			q := 1 - p
			if q < bceEps {
				q = bceEps
			}
			bce -= math.Log(q)
			penalty += scores[r][c]
		}
	}
	bce /= n
	penalty /= n
	return LossTerms{CrossEntropy: bce, Penalty: penalty, Total: bce + o.PenaltyWeight*penalty}, nil
}

// Gradient returns d(total loss)/d(score) for every cell. With
// p = e*(1-s) the cross-entropy term contributes -e/(1-p) and the penalty
// contributes PenaltyWeight, both averaged over the matrix.
func (o Objective) Gradient(reduced, scores [][]float64) ([][]float64, error) {
	rows, channels, err := o.check(reduced, scores)
	if err != nil {
		return nil, err
	}
	n := float64(rows * channels)
	grad := make([][]float64, rows)
	for r := 0; r < rows; r++ {
		grad[r] = make([]float64, channels)
		for c := 0; c < channels; c++ {
			e := reduced[r][c]
			q := 1 - e*(1-scores[r][c])
			if q < bceEps {
				q = bceEps
			}
			grad[r][c] = (o.PenaltyWeight - e/q) / n
		}
	}
	return grad, nil
}
