package radio

import "math"

// noiseFloorDBm is the thermal noise floor assumed at the receiver.
const noiseFloorDBm = -95.0

// BitErrorProb maps interference power at the receiver to a per-slot bit
// error probability: log-distance path loss on the transmitter's power,
// SINR against interference plus the noise floor, then a complementary
// error function demodulation model.
type BitErrorProb struct {
	PowerDBm  float64
	Alpha     float64
	DistanceM float64
}

func dbmToMilliwatts(dbm float64) float64 {
	return math.Pow(10, dbm/10)
}

// At returns the bit error probability for a single interference sample.
func (b BitErrorProb) At(interferenceDBm float64) float64 {
	signalDBm := b.PowerDBm - 10*b.Alpha*math.Log10(b.DistanceM)
	sinr := dbmToMilliwatts(signalDBm) / (dbmToMilliwatts(interferenceDBm) + dbmToMilliwatts(noiseFloorDBm))
	return 0.5 * math.Erfc(math.Sqrt(sinr/2))
}

// Apply maps a slot-by-row interference power matrix to bit error
// probabilities, preserving shape.
func (b BitErrorProb) Apply(interferenceDBm [][]float64) [][]float64 {
	out := make([][]float64, len(interferenceDBm))
	for t, row := range interferenceDBm {
		out[t] = make([]float64, len(row))
		for r, v := range row {
			out[t][r] = b.At(v)
		}
	}
	return out
}

// PacketReceptionProb maps bit error probabilities to whole-packet
// reception probabilities assuming independent bit errors.
type PacketReceptionProb struct {
	PacketLengthBytes int
}

// At1 converts a single bit error probability.
func (p PacketReceptionProb) At1(ber float64) float64 {
	return math.Pow(1-ber, float64(8*p.PacketLengthBytes))
}

// Apply converts a slot-by-row bit error matrix, preserving shape.
func (p PacketReceptionProb) Apply(ber [][]float64) [][]float64 {
	out := make([][]float64, len(ber))
	for t, row := range ber {
		out[t] = make([]float64, len(row))
		for r, v := range row {
			out[t][r] = p.At1(v)
		}
	}
	return out
}

// Apply1D converts a flat bit error series.
func (p PacketReceptionProb) Apply1D(ber []float64) []float64 {
	out := make([]float64, len(ber))
	for i, v := range ber {
		out[i] = p.At1(v)
	}
	return out
}
