package signalgen

import "math"

// Normalize computes a cross-sectional z-score for value against the set of
// comparable values on the same date, clips it to [-3, 3] and maps it into
// [-1, 1]. Degenerate cross-sections (fewer than 2 values, or zero spread)
// normalize to exactly 0.
func Normalize(value float64, crossSection []float64) float64 {
	if len(crossSection) < 2 {
		return 0
	}

	var sum float64
	for _, v := range crossSection {
		sum += v
	}
	mean := sum / float64(len(crossSection))

	var variance float64
	for _, v := range crossSection {
		d := v - mean
		variance += d * d
	}
	std := math.Sqrt(variance / float64(len(crossSection)))
	if std == 0 {
		return 0
	}

	z := (value - mean) / std
	if z > 3 {
		z = 3
	} else if z < -3 {
		z = -3
	}
	return z / 3
}
