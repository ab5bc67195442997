package sched

import (
	"errors"
	"fmt"
)

// ErrZeroAttribution marks a (row, channel) cell whose attribution weights
// sum to zero under the mean policy. The dataset must attribute every
// active channel at least once; a silent zero here would corrupt training.
var ErrZeroAttribution = errors.New("zero attribution weight sum")

// Reduce collapses per-slot error values into one effective error per
// channel. errs is indexed [slot][row], attribution [slot][row][channel];
// the per-channel contribution of a slot is errs[t][r]*attribution[t][r][c].
// PolicyMean divides the contribution sum by the attribution sum and fails
// on a zero divisor; PolicyMax keeps the largest contribution, where a
// never-attributed channel reduces to zero.
func Reduce(policy Policy, errs [][]float64, attribution [][][]float64) ([][]float64, error) {
	if len(errs) == 0 || len(errs) != len(attribution) {
		return nil, fmt.Errorf("slot axes disagree: %d errors vs %d attributions", len(errs), len(attribution))
	}
	rows := len(errs[0])
	if rows == 0 || len(attribution[0]) != rows {
		return nil, fmt.Errorf("row axes disagree: %d vs %d", rows, len(attribution[0]))
	}
	channels := len(attribution[0][0])

	sums := make([][]float64, rows)
	weights := make([][]float64, rows)
	for r := 0; r < rows; r++ {
		sums[r] = make([]float64, channels)
		weights[r] = make([]float64, channels)
	}
	for t := range errs {
		for r := 0; r < rows; r++ {
			for c := 0; c < channels; c++ {
				w := attribution[t][r][c]
				v := errs[t][r] * w
				weights[r][c] += w
				switch policy {
				case PolicyMean:
					sums[r][c] += v
				case PolicyMax:
					if v > sums[r][c] {
						sums[r][c] = v
					}
				default:
					return nil, fmt.Errorf("unknown policy %v", policy)
				}
			}
		}
	}
	if policy == PolicyMean {
		for r := 0; r < rows; r++ {
			for c := 0; c < channels; c++ {
				if weights[r][c] == 0 {
					return nil, fmt.Errorf("row %d channel %d: %w", r, c, ErrZeroAttribution)
				}
				sums[r][c] /= weights[r][c]
			}
		}
	}
	return sums, nil
}
