package blend

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSpearman_PerfectMonotonic(t *testing.T) {
	xs := []float64{1, 2, 3, 4, 5}
	ys := []float64{10, 20, 30, 40, 50}
	assert.InDelta(t, 1.0, Spearman(xs, ys), 1e-12)

	// Non-linear but monotonic still correlates perfectly by rank.
	ys = []float64{1, 8, 27, 64, 125}
	assert.InDelta(t, 1.0, Spearman(xs, ys), 1e-12)
}

func TestSpearman_PerfectInverse(t *testing.T) {
	xs := []float64{1, 2, 3, 4}
	ys := []float64{9, 7, 5, 3}
	assert.InDelta(t, -1.0, Spearman(xs, ys), 1e-12)
}

func TestSpearman_Uncorrelated(t *testing.T) {
	xs := []float64{1, 2, 3, 4}
	ys := []float64{1, -1, -1, 1}
	assert.InDelta(t, 0.0, Spearman(xs, ys), 1e-12)
}

func TestSpearman_TiesGetAverageRanks(t *testing.T) {
	ranks := avgRanks([]float64{3, 1, 1, 2})
	assert.Equal(t, []float64{4, 1.5, 1.5, 3}, ranks)
}

func TestSpearman_Degenerate(t *testing.T) {
	assert.Equal(t, 0.0, Spearman(nil, nil))
	assert.Equal(t, 0.0, Spearman([]float64{1}, []float64{1}))
	assert.Equal(t, 0.0, Spearman([]float64{1, 2}, []float64{1, 2, 3}))
	// Constant sample has zero rank variance.
	assert.Equal(t, 0.0, Spearman([]float64{5, 5, 5}, []float64{1, 2, 3}))
}
