package signalgen

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/quantforge/signal-engine/internal/config"
	"github.com/quantforge/signal-engine/internal/horizon"
	"github.com/quantforge/signal-engine/internal/models"
)

type mockFeatureRepo struct {
	features map[string]map[string]float64 // symbol -> name -> value
	earnings map[string]bool
	bars     map[string][]models.Bar // newest first
}

func (m *mockFeatureRepo) GetFeatures(_ context.Context, symbol string, _ time.Time, names []string) (map[string]float64, error) {
	all := m.features[symbol]
	out := make(map[string]float64)
	for _, name := range names {
		if v, ok := all[name]; ok {
			out[name] = v
		}
	}
	return out, nil
}

func (m *mockFeatureRepo) HasEarningsWithin(_ context.Context, symbol string, _ time.Time, _ int) (bool, error) {
	return m.earnings[symbol], nil
}

func (m *mockFeatureRepo) GetBars(_ context.Context, symbol string, _ time.Time, lookback int) ([]models.Bar, error) {
	bars := m.bars[symbol]
	if len(bars) > lookback {
		bars = bars[:lookback]
	}
	return bars, nil
}

type mockSignalStore struct {
	upserted map[string][]models.RawSignal // signal name -> rows
}

func (m *mockSignalStore) UpsertSignals(_ context.Context, signals []models.RawSignal) error {
	if m.upserted == nil {
		m.upserted = make(map[string][]models.RawSignal)
	}
	for _, s := range signals {
		m.upserted[s.SignalName] = append(m.upserted[s.SignalName], s)
	}
	return nil
}

func testConfig() config.SignalsConfig {
	return config.SignalsConfig{
		EarningsWindowDays: 2,
		VolatilityGate:     2.5,
		GapFillGate:        0.70,
	}
}

func newTestGenerator(repo *mockFeatureRepo, store *mockSignalStore) *Generator {
	return NewGenerator(repo, store, horizon.New(), testConfig(), zap.NewNop())
}

func momentumFeatures(ret20, ret120 float64) map[string]float64 {
	return map[string]float64{
		models.FeatureRet20:  ret20,
		models.FeatureRet120: ret120,
	}
}

func TestMomentum20120_WeightsAndCrossSection(t *testing.T) {
	repo := &mockFeatureRepo{
		features: map[string]map[string]float64{
			"AAA": momentumFeatures(0.10, 0.20),
			"BBB": momentumFeatures(-0.10, -0.20),
			"CCC": momentumFeatures(0.0, 0.0),
		},
	}
	g := newTestGenerator(repo, &mockSignalStore{})

	scores, feats, err := g.Momentum20120(context.Background(), []string{"AAA", "BBB", "CCC"}, time.Now())
	require.NoError(t, err)
	require.Len(t, scores, 3)
	require.Len(t, feats, 3)

	// Cross-sections are symmetric, so expected score is
	// 0.6*z(ret20) + 0.4*z(ret120) with matching z per leg.
	z20 := Normalize(0.10, []float64{0.10, -0.10, 0})
	z120 := Normalize(0.20, []float64{0.20, -0.20, 0})
	assert.InDelta(t, 0.6*z20+0.4*z120, scores["AAA"], 1e-12)
	assert.InDelta(t, -scores["AAA"], scores["BBB"], 1e-12)
	assert.InDelta(t, 0.0, scores["CCC"], 1e-12)
}

func TestMomentum20120_EarningsGateZeroesScore(t *testing.T) {
	repo := &mockFeatureRepo{
		features: map[string]map[string]float64{
			"AAA": momentumFeatures(0.30, 0.10),
			"BBB": momentumFeatures(-0.05, 0.02),
			"CCC": momentumFeatures(0.08, -0.01),
		},
		earnings: map[string]bool{"AAA": true},
	}
	g := newTestGenerator(repo, &mockSignalStore{})

	scores, _, err := g.Momentum20120(context.Background(), []string{"AAA", "BBB", "CCC"}, time.Now())
	require.NoError(t, err)

	// Gated symbol scores exactly 0 and is excluded from the others'
	// cross-section.
	assert.Equal(t, 0.0, scores["AAA"])
	z20 := Normalize(-0.05, []float64{-0.05, 0.08})
	z120 := Normalize(0.02, []float64{0.02, -0.01})
	assert.InDelta(t, 0.6*z20+0.4*z120, scores["BBB"], 1e-12)
}

func TestMomentum20120_MissingFeaturesDropsSymbol(t *testing.T) {
	repo := &mockFeatureRepo{
		features: map[string]map[string]float64{
			"AAA": momentumFeatures(0.10, 0.20),
			"BBB": {models.FeatureRet20: 0.05}, // no ret_120
		},
	}
	g := newTestGenerator(repo, &mockSignalStore{})

	scores, _, err := g.Momentum20120(context.Background(), []string{"AAA", "BBB"}, time.Now())
	require.NoError(t, err)

	_, present := scores["BBB"]
	assert.False(t, present)
	// AAA is alone in the cross-section, so both z-scores degenerate to 0.
	assert.Equal(t, 0.0, scores["AAA"])
}

func meanrevBars(closes []float64) []models.Bar {
	// newest first
	bars := make([]models.Bar, len(closes))
	for i, c := range closes {
		bars[len(closes)-1-i] = models.Bar{Close: c}
	}
	return bars
}

func flatCloses(n int, level float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = level
	}
	return out
}

func TestMeanrevBollinger_StretchedAboveBandScoresShort(t *testing.T) {
	// AAA closed well above its SMA, BBB well below, CCC at it.
	aaa := flatCloses(20, 100)
	aaa[19] = 110
	bbb := flatCloses(20, 100)
	bbb[19] = 90
	ccc := flatCloses(20, 100)
	ccc[19] = 100.5

	repo := &mockFeatureRepo{
		features: map[string]map[string]float64{
			"AAA": {models.FeatureSMA20: 100.5, models.FeatureVol20: 0.2},
			"BBB": {models.FeatureSMA20: 99.5, models.FeatureVol20: 0.2},
			"CCC": {models.FeatureSMA20: 100.025, models.FeatureVol20: 0.2},
		},
		bars: map[string][]models.Bar{
			"AAA": meanrevBars(aaa),
			"BBB": meanrevBars(bbb),
			"CCC": meanrevBars(ccc),
		},
	}
	g := newTestGenerator(repo, &mockSignalStore{})

	scores, err := g.MeanrevBollinger(context.Background(), []string{"AAA", "BBB", "CCC"}, time.Now())
	require.NoError(t, err)
	require.Len(t, scores, 3)

	// Sign flip: the symbol stretched above its band scores negative.
	assert.Negative(t, scores["AAA"])
	assert.Positive(t, scores["BBB"])
}

func TestMeanrevBollinger_VolatilityGateZeroesScore(t *testing.T) {
	closes := flatCloses(20, 100)
	closes[19] = 108
	repo := &mockFeatureRepo{
		features: map[string]map[string]float64{
			"AAA": {models.FeatureSMA20: 100.4, models.FeatureVol20: 3.0},
		},
		bars: map[string][]models.Bar{"AAA": meanrevBars(closes)},
	}
	g := newTestGenerator(repo, &mockSignalStore{})

	scores, err := g.MeanrevBollinger(context.Background(), []string{"AAA"}, time.Now())
	require.NoError(t, err)
	assert.Equal(t, 0.0, scores["AAA"])
}

func TestMeanrevBollinger_InsufficientBarsDropsSymbol(t *testing.T) {
	repo := &mockFeatureRepo{
		features: map[string]map[string]float64{
			"AAA": {models.FeatureSMA20: 100, models.FeatureVol20: 0.2},
		},
		bars: map[string][]models.Bar{"AAA": meanrevBars(flatCloses(10, 100))},
	}
	g := newTestGenerator(repo, &mockSignalStore{})

	scores, err := g.MeanrevBollinger(context.Background(), []string{"AAA"}, time.Now())
	require.NoError(t, err)
	assert.Empty(t, scores)
}

func gapBars(open, high, low, close, volume, priorClose float64) []models.Bar {
	return []models.Bar{
		{Open: open, High: high, Low: low, Close: close, Volume: volume},
		{Close: priorClose},
	}
}

func TestGapBreakaway_GapDownFlipsSign(t *testing.T) {
	repo := &mockFeatureRepo{
		bars: map[string][]models.Bar{
			// 5% gap up, barely retraced
			"UP": gapBars(105, 106, 104.9, 105.5, 2e6, 100),
			// 5% gap down, barely retraced
			"DOWN": gapBars(95, 95.1, 94, 94.5, 1e6, 100),
			// small gap
			"FLAT": gapBars(100.1, 100.6, 100.05, 100.4, 1.5e6, 100),
		},
	}
	g := newTestGenerator(repo, &mockSignalStore{})

	scores, err := g.GapBreakaway(context.Background(), []string{"UP", "DOWN", "FLAT"}, time.Now())
	require.NoError(t, err)
	require.Len(t, scores, 3)

	assert.Positive(t, scores["UP"])
	assert.Negative(t, scores["DOWN"])
}

func TestGapBreakaway_FilledGapZeroesScore(t *testing.T) {
	repo := &mockFeatureRepo{
		bars: map[string][]models.Bar{
			// Gapped up to 105 but traded back down to 100.5: 90% filled.
			"FILLED": gapBars(105, 105.2, 100.5, 101, 2e6, 100),
			"AAA":    gapBars(103, 103.5, 102.9, 103.2, 1e6, 100),
			"BBB":    gapBars(101, 101.5, 100.95, 101.2, 1e6, 100),
		},
	}
	g := newTestGenerator(repo, &mockSignalStore{})

	scores, err := g.GapBreakaway(context.Background(), []string{"FILLED", "AAA", "BBB"}, time.Now())
	require.NoError(t, err)
	assert.Equal(t, 0.0, scores["FILLED"])
	assert.NotEqual(t, 0.0, scores["AAA"])
}

func TestGenerateAll_PersistsRankedNonZeroScores(t *testing.T) {
	repo := &mockFeatureRepo{
		features: map[string]map[string]float64{
			"AAA": momentumFeatures(0.10, 0.20),
			"BBB": momentumFeatures(-0.10, -0.20),
			"CCC": momentumFeatures(0.0, 0.0),
		},
	}
	store := &mockSignalStore{}
	g := newTestGenerator(repo, store)

	date := time.Date(2026, 8, 28, 0, 0, 0, 0, time.UTC)
	results, err := g.GenerateAll(context.Background(), []string{"AAA", "BBB", "CCC"}, date)
	require.NoError(t, err)
	require.Contains(t, results, models.SignalMomentum20120)

	rows := store.upserted[models.SignalMomentum20120]
	// CCC scores 0 and must not be persisted.
	require.Len(t, rows, 2)
	assert.Equal(t, "AAA", rows[0].Symbol)
	require.NotNil(t, rows[0].Rank)
	assert.Equal(t, 1, *rows[0].Rank)
	assert.Equal(t, "BBB", rows[1].Symbol)
	require.NotNil(t, rows[1].Rank)
	assert.Equal(t, 2, *rows[1].Rank)
	require.NotNil(t, rows[0].Horizon)
	assert.True(t, rows[0].Horizon.Valid())
}
