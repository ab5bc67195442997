package series

import "fmt"

// Downsample resamples the time axis from src.Timesteps() samples to
// outTimesteps using linear interpolation between sample midpoints. The
// mapping treats samples as centered in their intervals, so the first and
// last output samples clamp to the edges rather than extrapolating.
func Downsample(src Series, outTimesteps int) (Series, error) {
	if outTimesteps <= 0 {
		return Series{}, fmt.Errorf("output timesteps must be positive, got %d", outTimesteps)
	}
	if outTimesteps > src.timesteps {
		return Series{}, fmt.Errorf("cannot downsample %d timesteps to %d", src.timesteps, outTimesteps)
	}
	if outTimesteps == src.timesteps {
		return src.SliceTime(0, src.timesteps)
	}

	out, err := New(outTimesteps, src.sequences, src.channels)
	if err != nil {
		return Series{}, err
	}
	ratio := float64(src.timesteps) / float64(outTimesteps)
	for t := 0; t < outTimesteps; t++ {
		x := (float64(t)+0.5)*ratio - 0.5
		if x < 0 {
			x = 0
		}
		if x > float64(src.timesteps-1) {
			x = float64(src.timesteps - 1)
		}
		lo := int(x)
		hi := lo + 1
		if hi >= src.timesteps {
			hi = src.timesteps - 1
		}
		frac := x - float64(lo)
		for s := 0; s < src.sequences; s++ {
			for c := 0; c < src.channels; c++ {
				v := (1-frac)*src.At(lo, s, c) + frac*src.At(hi, s, c)
				out.Set(t, s, c, v)
			}
		}
	}
	return out, nil
}
