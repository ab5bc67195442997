package sched

import (
	"fmt"
	"sort"
)

// AvailabilityMask thresholds a score matrix into per-row channel
// availability under a fixed exclusion budget k: each row's threshold is
// its (k+1)-th smallest score, and a channel is available when its score
// is strictly below that. Ties at the threshold round toward exclusion, so
// a row never has more than N-k available channels.
func AvailabilityMask(scores [][]float64, k int) ([][]bool, error) {
	mask := make([][]bool, len(scores))
	for r, row := range scores {
		if k < 0 || k >= len(row) {
			return nil, fmt.Errorf("exclusion budget %d outside [0, %d)", k, len(row))
		}
		sorted := append([]float64(nil), row...)
		sort.Float64s(sorted)
		threshold := sorted[k]
		mask[r] = make([]bool, len(row))
		for c, v := range row {
			mask[r][c] = v < threshold
		}
	}
	return mask, nil
}
