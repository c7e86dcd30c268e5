package blend

import (
	"math"
	"sort"
)

// Spearman computes the Spearman rank correlation of two equal-length
// samples. Ties receive average ranks. Returns 0 for degenerate inputs
// (short samples or zero variance in either ranking).
func Spearman(xs, ys []float64) float64 {
	if len(xs) != len(ys) || len(xs) < 2 {
		return 0
	}
	return pearson(avgRanks(xs), avgRanks(ys))
}

// avgRanks returns 1-based ranks with ties assigned the mean of the ranks
// they span.
func avgRanks(xs []float64) []float64 {
	n := len(xs)
	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}
	sort.Slice(idx, func(a, b int) bool { return xs[idx[a]] < xs[idx[b]] })

	ranks := make([]float64, n)
	for i := 0; i < n; {
		j := i
		for j+1 < n && xs[idx[j+1]] == xs[idx[i]] {
			j++
		}
		// Positions i..j hold equal values; rank them all at the average.
		avg := float64(i+j)/2 + 1
		for k := i; k <= j; k++ {
			ranks[idx[k]] = avg
		}
		i = j + 1
	}
	return ranks
}

func pearson(xs, ys []float64) float64 {
	n := float64(len(xs))
	var sumX, sumY float64
	for i := range xs {
		sumX += xs[i]
		sumY += ys[i]
	}
	meanX, meanY := sumX/n, sumY/n

	var cov, varX, varY float64
	for i := range xs {
		dx, dy := xs[i]-meanX, ys[i]-meanY
		cov += dx * dy
		varX += dx * dx
		varY += dy * dy
	}
	if varX == 0 || varY == 0 {
		return 0
	}
	r := cov / math.Sqrt(varX*varY)
	if math.IsNaN(r) {
		return 0
	}
	return r
}
