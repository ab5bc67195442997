package series

import (
	"fmt"

	"gonum.org/v1/gonum/stat"

	"itsch/internal/model"
)

// Series is a dense (time, sequence, channel) block of interference power
// samples in dBm. The time axis is a fixed-rate sample index, sequences are
// independent recorded traces, and channels index the frequency channels of
// the band. The backing slice is row-major with time outermost.
type Series struct {
	data      []float64
	timesteps int
	sequences int
	channels  int
}

func New(timesteps, sequences, channels int) (Series, error) {
	if timesteps <= 0 || sequences <= 0 || channels <= 0 {
		return Series{}, fmt.Errorf("series dimensions must be positive: %dx%dx%d", timesteps, sequences, channels)
	}
	return Series{
		data:      make([]float64, timesteps*sequences*channels),
		timesteps: timesteps,
		sequences: sequences,
		channels:  channels,
	}, nil
}

func (s Series) Timesteps() int { return s.timesteps }
func (s Series) Sequences() int { return s.sequences }
func (s Series) Channels() int  { return s.channels }

func (s Series) At(t, seq, ch int) float64 {
	return s.data[(t*s.sequences+seq)*s.channels+ch]
}

func (s Series) Set(t, seq, ch int, v float64) {
	s.data[(t*s.sequences+seq)*s.channels+ch] = v
}

// SliceTime copies the [lo, hi) range of the time axis into a new Series.
func (s Series) SliceTime(lo, hi int) (Series, error) {
	if lo < 0 || hi > s.timesteps || lo >= hi {
		return Series{}, fmt.Errorf("time slice [%d, %d) outside series of %d timesteps", lo, hi, s.timesteps)
	}
	out := Series{
		data:      make([]float64, (hi-lo)*s.sequences*s.channels),
		timesteps: hi - lo,
		sequences: s.sequences,
		channels:  s.channels,
	}
	copy(out.data, s.data[lo*s.sequences*s.channels:hi*s.sequences*s.channels])
	return out, nil
}

// ComputeNormStats derives the shared normalization statistics from the first
// trainTimesteps samples of the series. The result is immutable and must be
// reused for every window normalization; recomputing it per batch would let
// the decision boundary drift between training and evaluation.
func ComputeNormStats(s Series, trainTimesteps int) (model.NormStats, error) {
	if trainTimesteps < 2 || trainTimesteps > s.timesteps {
		return model.NormStats{}, fmt.Errorf("training prefix of %d timesteps outside series of %d", trainTimesteps, s.timesteps)
	}
	values := s.data[:trainTimesteps*s.sequences*s.channels]
	mean := stat.Mean(values, nil)
	std := stat.StdDev(values, nil)
	if std == 0 {
		return model.NormStats{}, fmt.Errorf("training prefix has zero variance")
	}
	return model.NormStats{Mean: mean, Std: std}, nil
}

// Normalize standardizes every sample with the given statistics.
func Normalize(s Series, norm model.NormStats) Series {
	out := Series{
		data:      make([]float64, len(s.data)),
		timesteps: s.timesteps,
		sequences: s.sequences,
		channels:  s.channels,
	}
	for i, v := range s.data {
		out.data[i] = (v - norm.Mean) / norm.Std
	}
	return out
}
