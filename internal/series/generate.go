package series

import (
	"fmt"
	"math/rand"
)

// GenerateConfig controls the synthetic interference generator. Each
// sequence models one co-located interferer emitting in bursts on a
// subset of channels; quiet slots fall back to QuietDBm.
type GenerateConfig struct {
	Timesteps  int
	Sequences  int
	Channels   int
	QuietDBm   float64
	BurstDBm   float64
	MeanBurst  int
	MeanIdle   int
	ChannelSet int
}

// DefaultGenerateConfig mirrors a busy 2.4 GHz environment sampled at the
// raw sensing rate: bursts around -40 dBm over a quiet floor below the
// clear-channel threshold.
func DefaultGenerateConfig() GenerateConfig {
	return GenerateConfig{
		Timesteps:  600000,
		Sequences:  1,
		Channels:   16,
		QuietDBm:   -100,
		BurstDBm:   -40,
		MeanBurst:  400,
		MeanIdle:   1200,
		ChannelSet: 4,
	}
}

// Generate builds a bursty interference power series. Each sequence picks
// ChannelSet channels; an interferer alternates between idle and burst
// phases with geometric durations, raising the power on its channels
// during bursts with small per-slot jitter.
func Generate(rng *rand.Rand, cfg GenerateConfig) (Series, error) {
	if cfg.ChannelSet <= 0 || cfg.ChannelSet > cfg.Channels {
		return Series{}, fmt.Errorf("channel set size %d outside [1, %d]", cfg.ChannelSet, cfg.Channels)
	}
	if cfg.MeanBurst <= 0 || cfg.MeanIdle <= 0 {
		return Series{}, fmt.Errorf("burst and idle durations must be positive")
	}
	out, err := New(cfg.Timesteps, cfg.Sequences, cfg.Channels)
	if err != nil {
		return Series{}, err
	}

	for seq := 0; seq < cfg.Sequences; seq++ {
		active := rng.Perm(cfg.Channels)[:cfg.ChannelSet]
		bursting := false
		remaining := 1 + rng.Intn(2*cfg.MeanIdle)
		for t := 0; t < cfg.Timesteps; t++ {
			if remaining == 0 {
				bursting = !bursting
				if bursting {
					remaining = 1 + rng.Intn(2*cfg.MeanBurst)
				} else {
					remaining = 1 + rng.Intn(2*cfg.MeanIdle)
				}
			}
			remaining--
			for c := 0; c < cfg.Channels; c++ {
				out.Set(t, seq, c, cfg.QuietDBm+rng.Float64())
			}
			if bursting {
				for _, c := range active {
					out.Set(t, seq, c, cfg.BurstDBm+2*rng.Float64()-1)
				}
			}
		}
	}
	return out, nil
}
