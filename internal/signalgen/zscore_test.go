package signalgen

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize_BasicCrossSection(t *testing.T) {
	xs := []float64{1, 2, 3, 4, 5}
	// mean 3, population std sqrt(2)
	got := Normalize(5, xs)
	want := (5.0 - 3.0) / math.Sqrt(2) / 3
	assert.InDelta(t, want, got, 1e-12)
}

func TestNormalize_MeanValueIsZero(t *testing.T) {
	xs := []float64{1, 2, 3}
	assert.Equal(t, 0.0, Normalize(2, xs))
}

func TestNormalize_SymmetricAroundMean(t *testing.T) {
	xs := []float64{-2, -1, 0, 1, 2}
	assert.InDelta(t, -Normalize(2, xs), Normalize(-2, xs), 1e-12)
}

func TestNormalize_OutlierClipped(t *testing.T) {
	// An extreme value clips at z=3, so the output saturates at 1.
	xs := []float64{0, 0, 0, 0, 1000}
	assert.Equal(t, 1.0, Normalize(1e9, xs))
	assert.Equal(t, -1.0, Normalize(-1e9, xs))
}

func TestNormalize_OutputBounded(t *testing.T) {
	xs := []float64{-5, 0.3, 2, 7, 11, -8}
	for _, v := range []float64{-100, -1, 0, 0.5, 42, 1e6} {
		got := Normalize(v, xs)
		assert.GreaterOrEqual(t, got, -1.0)
		assert.LessOrEqual(t, got, 1.0)
	}
}

func TestNormalize_DegenerateCrossSections(t *testing.T) {
	assert.Equal(t, 0.0, Normalize(1, nil))
	assert.Equal(t, 0.0, Normalize(1, []float64{1}))
	// zero spread
	assert.Equal(t, 0.0, Normalize(7, []float64{4, 4, 4}))
}
