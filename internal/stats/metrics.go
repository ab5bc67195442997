package stats

import (
	"fmt"

	"gonum.org/v1/gonum/stat"
)

// MeanReception reports the headline packet reception ratio: the mean of
// the reception series over [from, to), averaged across sequences. The
// range is clamped to the shortest sequence.
func MeanReception(receptions [][]float64, from, to int) (float64, error) {
	if len(receptions) == 0 {
		return 0, fmt.Errorf("no reception series")
	}
	shortest := len(receptions[0])
	for _, row := range receptions[1:] {
		if len(row) < shortest {
			shortest = len(row)
		}
	}
	if to <= 0 || to > shortest {
		to = shortest
	}
	if from < 0 || from >= to {
		return 0, fmt.Errorf("reception window [%d, %d) is empty over %d samples", from, to, shortest)
	}
	means := make([]float64, len(receptions))
	for i, row := range receptions {
		means[i] = stat.Mean(row[from:to], nil)
	}
	return stat.Mean(means, nil), nil
}
