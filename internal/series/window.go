package series

import (
	"errors"
	"fmt"
	"math/rand"
)

// ErrPivotOutOfRange marks a pivot that violates the window boundary
// invariant. Pivot generation is supposed to prevent this by construction,
// so hitting it means a caller bug, not a recoverable runtime condition.
var ErrPivotOutOfRange = errors.New("pivot outside valid window range")

// ExtractWindows slices the series at each pivot into a past window
// [pivot-pastLen, pivot) and a future window [pivot, pivot+futureLen),
// concatenating the per-pivot slices along the sequence axis. Row ordering
// is pivot-major: all sequences of the first pivot come first.
func ExtractWindows(src Series, pivots []int, pastLen, futureLen int) (past, future Series, err error) {
	if len(pivots) == 0 {
		return Series{}, Series{}, fmt.Errorf("no pivots given")
	}
	if pastLen <= 0 || futureLen <= 0 {
		return Series{}, Series{}, fmt.Errorf("window lengths must be positive: past=%d future=%d", pastLen, futureLen)
	}
	for _, pivot := range pivots {
		if pivot < pastLen || pivot+futureLen > src.timesteps {
			return Series{}, Series{}, fmt.Errorf("pivot %d with windows %d/%d over %d timesteps: %w",
				pivot, pastLen, futureLen, src.timesteps, ErrPivotOutOfRange)
		}
	}

	rows := len(pivots) * src.sequences
	past = Series{data: make([]float64, pastLen*rows*src.channels), timesteps: pastLen, sequences: rows, channels: src.channels}
	future = Series{data: make([]float64, futureLen*rows*src.channels), timesteps: futureLen, sequences: rows, channels: src.channels}

	for i, pivot := range pivots {
		for t := 0; t < pastLen; t++ {
			for s := 0; s < src.sequences; s++ {
				for c := 0; c < src.channels; c++ {
					past.Set(t, i*src.sequences+s, c, src.At(pivot-pastLen+t, s, c))
				}
			}
		}
		for t := 0; t < futureLen; t++ {
			for s := 0; s < src.sequences; s++ {
				for c := 0; c < src.channels; c++ {
					future.Set(t, i*src.sequences+s, c, src.At(pivot+t, s, c))
				}
			}
		}
	}
	return past, future, nil
}

// TrainingPivots draws n pivots uniformly with replacement from
// [pastLen, datapoints - futureLen). datapoints is the length of the
// training region; the train/eval split is the caller's cut, so no
// further reservation happens here. The draw order carries no meaning and
// the range is never covered exhaustively.
func TrainingPivots(rng *rand.Rand, n, datapoints, pastLen, futureLen int) ([]int, error) {
	lo := pastLen
	hi := datapoints - futureLen
	if hi <= lo {
		return nil, fmt.Errorf("training pivot range [%d, %d) is empty for %d datapoints", lo, hi, datapoints)
	}
	pivots := make([]int, n)
	for i := range pivots {
		pivots[i] = lo + rng.Intn(hi-lo)
	}
	return pivots, nil
}

// EvaluationPivots builds the deterministic evaluation grid: start at
// pastLen, stride futureLen, stopping while the future window still fits.
// Consecutive future windows tile the tail of the series with no gaps and
// no overlap.
func EvaluationPivots(datapoints, pastLen, futureLen int) []int {
	pivots := make([]int, 0, (datapoints-pastLen)/futureLen+1)
	for pivot := pastLen; pivot+futureLen <= datapoints; pivot += futureLen {
		pivots = append(pivots, pivot)
	}
	return pivots
}
