package radio

import (
	"errors"
	"fmt"

	"itsch/internal/series"
)

// ErrNoAvailableChannel marks a mask row that excludes every channel; a
// link cannot hop over an empty set.
var ErrNoAvailableChannel = errors.New("mask leaves no available channel")

// Simulator replays a link's hopping schedule over a recorded interference
// series. SenseThresholdDBm is the clear-channel assessment level for the
// energy-detecting variant; MaxProbes caps its probes per slot.
type Simulator struct {
	SenseThresholdDBm float64
	MaxProbes         int
}

func NewSimulator() Simulator {
	return Simulator{SenseThresholdDBm: -85, MaxProbes: 3}
}

// Baseline hops blindly through the shared sequence. It returns the
// interference power the link experiences per slot and row, plus the
// one-hot channel attribution of each transmission.
func (sim Simulator) Baseline(s series.Series) (power [][]float64, attribution [][][]float64) {
	power = make([][]float64, s.Timesteps())
	attribution = make([][][]float64, s.Timesteps())
	for t := 0; t < s.Timesteps(); t++ {
		power[t] = make([]float64, s.Sequences())
		attribution[t] = make([][]float64, s.Sequences())
		for r := 0; r < s.Sequences(); r++ {
			ch := HopChannel(t, r, s.Channels())
			power[t][r] = s.At(t, r, ch)
			attribution[t][r] = make([]float64, s.Channels())
			attribution[t][r][ch] = 1
		}
	}
	return power, attribution
}

// Adaptive hops with energy detection: before transmitting it probes up to
// MaxProbes consecutive hop channels against the sensing threshold and
// takes the first clear one, falling back to the last probe when all are
// busy. Sensing sees the series at the decimated rate given by rateRatio,
// so probe readings can be stale relative to the transmission slot.
func (sim Simulator) Adaptive(s series.Series, rateRatio float64) ([][]float64, error) {
	if rateRatio <= 0 || rateRatio > 1 {
		return nil, fmt.Errorf("rate ratio %v outside (0, 1]", rateRatio)
	}
	step := int(1 / rateRatio)
	if step < 1 {
		step = 1
	}
	power := make([][]float64, s.Timesteps())
	for t := 0; t < s.Timesteps(); t++ {
		senseT := (t / step) * step
		power[t] = make([]float64, s.Sequences())
		for r := 0; r < s.Sequences(); r++ {
			ch := HopChannel(t, r, s.Channels())
			for probe := 1; probe < sim.MaxProbes; probe++ {
				if s.At(senseT, r, ch) <= sim.SenseThresholdDBm {
					break
				}
				ch = HopChannel(t+probe, r, s.Channels())
			}
			power[t][r] = s.At(t, r, ch)
		}
	}
	return power, nil
}

// Masked hops over each row's available channels only. mask is indexed
// [row][channel]; the hop sequence indexes into the row's available list,
// so the schedule stays deterministic under any mask.
func (sim Simulator) Masked(s series.Series, mask [][]bool) ([][]float64, error) {
	if len(mask) != s.Sequences() {
		return nil, fmt.Errorf("mask has %d rows, series has %d", len(mask), s.Sequences())
	}
	available := make([][]int, len(mask))
	for r, row := range mask {
		if len(row) != s.Channels() {
			return nil, fmt.Errorf("mask row %d has %d channels, series has %d", r, len(row), s.Channels())
		}
		for c, ok := range row {
			if ok {
				available[r] = append(available[r], c)
			}
		}
		if len(available[r]) == 0 {
			return nil, fmt.Errorf("row %d: %w", r, ErrNoAvailableChannel)
		}
	}
	power := make([][]float64, s.Timesteps())
	for t := 0; t < s.Timesteps(); t++ {
		power[t] = make([]float64, s.Sequences())
		for r := 0; r < s.Sequences(); r++ {
			avail := available[r]
			ch := avail[HopChannel(t, r, DefaultChannels)%len(avail)]
			power[t][r] = s.At(t, r, ch)
		}
	}
	return power, nil
}
