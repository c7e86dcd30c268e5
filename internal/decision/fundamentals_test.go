package decision

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/quantforge/signal-engine/internal/models"
)

func TestScoreFundamentals_NoData(t *testing.T) {
	assert.Equal(t, 0.5, ScoreFundamentals(nil))
	assert.Equal(t, 0.5, ScoreFundamentals(&models.Fundamentals{}))
}

func TestScoreFundamentals_PERatioBands(t *testing.T) {
	assert.InDelta(t, 0.7, ScoreFundamentals(&models.Fundamentals{PERatio: ptr(10)}), 1e-12)
	assert.InDelta(t, 0.6, ScoreFundamentals(&models.Fundamentals{PERatio: ptr(15)}), 1e-12)
	assert.InDelta(t, 0.6, ScoreFundamentals(&models.Fundamentals{PERatio: ptr(25)}), 1e-12)
	// 25 < PE <= 40 is neutral.
	assert.InDelta(t, 0.5, ScoreFundamentals(&models.Fundamentals{PERatio: ptr(30)}), 1e-12)
	assert.InDelta(t, 0.3, ScoreFundamentals(&models.Fundamentals{PERatio: ptr(50)}), 1e-12)
	// Non-positive PE carries no information.
	assert.InDelta(t, 0.5, ScoreFundamentals(&models.Fundamentals{PERatio: ptr(-5)}), 1e-12)
}

func TestScoreFundamentals_MarginBands(t *testing.T) {
	assert.InDelta(t, 0.7, ScoreFundamentals(&models.Fundamentals{ProfitMargins: ptr(0.20)}), 1e-12)
	assert.InDelta(t, 0.6, ScoreFundamentals(&models.Fundamentals{ProfitMargins: ptr(0.10)}), 1e-12)
	// Thin margins penalize; a present-but-bad value is not neutral.
	assert.InDelta(t, 0.4, ScoreFundamentals(&models.Fundamentals{ProfitMargins: ptr(0.01)}), 1e-12)
}

func TestScoreFundamentals_DebtAndROE(t *testing.T) {
	assert.InDelta(t, 0.6, ScoreFundamentals(&models.Fundamentals{DebtToEquity: ptr(0.1)}), 1e-12)
	assert.InDelta(t, 0.3, ScoreFundamentals(&models.Fundamentals{DebtToEquity: ptr(1.5)}), 1e-12)
	assert.InDelta(t, 0.6, ScoreFundamentals(&models.Fundamentals{ReturnOnEquity: ptr(0.20)}), 1e-12)
	assert.InDelta(t, 0.4, ScoreFundamentals(&models.Fundamentals{ReturnOnEquity: ptr(0.02)}), 1e-12)
}

func TestScoreFundamentals_ClampedToUnitInterval(t *testing.T) {
	best := &models.Fundamentals{
		PERatio:        ptr(10),
		ProfitMargins:  ptr(0.30),
		DebtToEquity:   ptr(0.1),
		ReturnOnEquity: ptr(0.25),
	}
	assert.Equal(t, 1.0, ScoreFundamentals(best))

	worst := &models.Fundamentals{
		PERatio:        ptr(80),
		ProfitMargins:  ptr(-0.10),
		DebtToEquity:   ptr(3.0),
		ReturnOnEquity: ptr(0.01),
	}
	assert.Equal(t, 0.0, ScoreFundamentals(worst))
}
