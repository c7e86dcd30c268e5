package signalgen

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/markcheno/go-talib"
	"go.uber.org/zap"

	"github.com/quantforge/signal-engine/internal/config"
	"github.com/quantforge/signal-engine/internal/horizon"
	"github.com/quantforge/signal-engine/internal/models"
)

// FeatureRepository defines the read-only feature and market-data queries the
// generator needs.
type FeatureRepository interface {
	GetFeatures(ctx context.Context, symbol string, asOf time.Time, names []string) (map[string]float64, error)
	HasEarningsWithin(ctx context.Context, symbol string, d time.Time, windowDays int) (bool, error)
	GetBars(ctx context.Context, symbol string, asOf time.Time, lookback int) ([]models.Bar, error)
}

// SignalStore persists scored signals.
type SignalStore interface {
	UpsertSignals(ctx context.Context, signals []models.RawSignal) error
}

// Generator computes the rule-based raw signals for a universe of symbols on
// a target date. Missing input data drops a symbol from a recipe; a failed
// gate keeps the symbol with score 0. Only storage errors propagate.
type Generator struct {
	features   FeatureRepository
	store      SignalStore
	classifier *horizon.Classifier
	cfg        config.SignalsConfig
	log        *zap.Logger
}

// NewGenerator creates a signal generator.
func NewGenerator(features FeatureRepository, store SignalStore, classifier *horizon.Classifier, cfg config.SignalsConfig, log *zap.Logger) *Generator {
	return &Generator{
		features:   features,
		store:      store,
		classifier: classifier,
		cfg:        cfg,
		log:        log,
	}
}

// GenerateAll computes every recipe for the given symbols and date, persists
// the ranked results and returns the scores keyed by signal name.
func (g *Generator) GenerateAll(ctx context.Context, symbols []string, date time.Time) (map[string]map[string]float64, error) {
	results := make(map[string]map[string]float64, 3)

	momentum, momentumFeats, err := g.Momentum20120(ctx, symbols, date)
	if err != nil {
		return nil, fmt.Errorf("momentum signal failed: %w", err)
	}
	results[models.SignalMomentum20120] = momentum

	meanrev, err := g.MeanrevBollinger(ctx, symbols, date)
	if err != nil {
		return nil, fmt.Errorf("mean reversion signal failed: %w", err)
	}
	results[models.SignalMeanrevBollinger] = meanrev

	gap, err := g.GapBreakaway(ctx, symbols, date)
	if err != nil {
		return nil, fmt.Errorf("gap signal failed: %w", err)
	}
	results[models.SignalGapBreakaway] = gap

	if err := g.persist(ctx, models.SignalMomentum20120, date, momentum, momentumFeats); err != nil {
		return nil, err
	}
	if err := g.persist(ctx, models.SignalMeanrevBollinger, date, meanrev, nil); err != nil {
		return nil, err
	}
	if err := g.persist(ctx, models.SignalGapBreakaway, date, gap, nil); err != nil {
		return nil, err
	}

	g.log.Info("generated raw signals",
		zap.Time("date", date),
		zap.Int("universe", len(symbols)),
		zap.Int("momentum", len(momentum)),
		zap.Int("meanrev", len(meanrev)),
		zap.Int("gap", len(gap)),
	)
	return results, nil
}

// Momentum20120 scores 0.6*z(ret_20) + 0.4*z(ret_120) across the subset of
// symbols that pass the earnings gate. Gated symbols score 0. The per-symbol
// feature maps are returned for horizon classification.
func (g *Generator) Momentum20120(ctx context.Context, symbols []string, date time.Time) (map[string]float64, map[string]map[string]float64, error) {
	scores := make(map[string]float64)
	feats := make(map[string]map[string]float64)

	type candidate struct {
		symbol string
		ret20  float64
		ret120 float64
	}
	var candidates []candidate
	var ret20s, ret120s []float64

	for _, symbol := range symbols {
		f, err := g.features.GetFeatures(ctx, symbol, date,
			[]string{models.FeatureRet20, models.FeatureRet120, models.FeatureVol20})
		if err != nil {
			return nil, nil, err
		}
		ret20, ok20 := f[models.FeatureRet20]
		ret120, ok120 := f[models.FeatureRet120]
		if !ok20 || !ok120 {
			continue
		}
		feats[symbol] = f

		hasEarnings, err := g.features.HasEarningsWithin(ctx, symbol, date, g.cfg.EarningsWindowDays)
		if err != nil {
			return nil, nil, err
		}
		if hasEarnings {
			scores[symbol] = 0
			continue
		}
		candidates = append(candidates, candidate{symbol, ret20, ret120})
		ret20s = append(ret20s, ret20)
		ret120s = append(ret120s, ret120)
	}

	// z-scores are computed across the gated subset only.
	for _, c := range candidates {
		scores[c.symbol] = 0.6*Normalize(c.ret20, ret20s) + 0.4*Normalize(c.ret120, ret120s)
	}
	return scores, feats, nil
}

// MeanrevBollinger scores -z(bollinger position) for symbols whose z-scored
// 20-day volatility is below the gate. The Bollinger position is the distance
// of the last close from the 20-day SMA in units of two standard deviations
// of the last 20 closes.
func (g *Generator) MeanrevBollinger(ctx context.Context, symbols []string, date time.Time) (map[string]float64, error) {
	scores := make(map[string]float64)

	type candidate struct {
		symbol    string
		bollinger float64
	}
	var candidates []candidate
	var bollingers []float64

	for _, symbol := range symbols {
		f, err := g.features.GetFeatures(ctx, symbol, date,
			[]string{models.FeatureSMA20, models.FeatureVol20})
		if err != nil {
			return nil, err
		}
		sma20, okSMA := f[models.FeatureSMA20]
		vol20, okVol := f[models.FeatureVol20]
		if !okSMA || !okVol {
			continue
		}

		bars, err := g.features.GetBars(ctx, symbol, date, 20)
		if err != nil {
			return nil, err
		}
		if len(bars) < 20 {
			continue
		}

		closes := closesAscending(bars)
		std := talib.StdDev(closes, 20, 1.0)
		lastStd := std[len(std)-1]
		if lastStd <= 0 {
			continue
		}
		bollinger := (closes[len(closes)-1] - sma20) / (2 * lastStd)

		if vol20 >= g.cfg.VolatilityGate {
			scores[symbol] = 0
			continue
		}
		candidates = append(candidates, candidate{symbol, bollinger})
		bollingers = append(bollingers, bollinger)
	}

	for _, c := range candidates {
		// Negative sign: stretched-above-band symbols score as shorts.
		scores[c.symbol] = -Normalize(c.bollinger, bollingers)
	}
	return scores, nil
}

// GapBreakaway scores overnight gaps confirmed by volume, skipping gaps the
// market has already mostly retraced intraday.
func (g *Generator) GapBreakaway(ctx context.Context, symbols []string, date time.Time) (map[string]float64, error) {
	scores := make(map[string]float64)

	type candidate struct {
		symbol string
		gap    float64
		volume float64
	}
	var candidates []candidate
	var absGaps, volumes []float64

	for _, symbol := range symbols {
		bars, err := g.features.GetBars(ctx, symbol, date, 2)
		if err != nil {
			return nil, err
		}
		if len(bars) < 2 {
			continue
		}
		today, prior := bars[0], bars[1]
		if prior.Close <= 0 {
			continue
		}

		gap := (today.Open - prior.Close) / prior.Close
		if fillRatio(today, prior.Close, gap) >= g.cfg.GapFillGate {
			scores[symbol] = 0
			continue
		}
		candidates = append(candidates, candidate{symbol, gap, today.Volume})
		absGaps = append(absGaps, math.Abs(gap))
		volumes = append(volumes, today.Volume)
	}

	for _, c := range candidates {
		score := Normalize(math.Abs(c.gap), absGaps) + 0.5*Normalize(c.volume, volumes)
		if c.gap < 0 {
			score = -score
		}
		scores[c.symbol] = score
	}
	return scores, nil
}

// fillRatio estimates how much of the overnight gap the session has retraced,
// using the intraday extreme on the gap's far side of the open.
func fillRatio(today models.Bar, priorClose, gap float64) float64 {
	switch {
	case gap > 0 && today.Low < today.Open:
		return (today.Open - today.Low) / (today.Open - priorClose)
	case gap < 0 && today.High > today.Open:
		return (today.High - today.Open) / (priorClose - today.Open)
	default:
		return 0
	}
}

// persist ranks the non-zero scores (descending, ties by symbol), classifies
// each instance's horizon and upserts the rows. Gated and zero-score symbols
// are not written.
func (g *Generator) persist(ctx context.Context, signalName string, date time.Time, scores map[string]float64, feats map[string]map[string]float64) error {
	type item struct {
		symbol string
		score  float64
	}
	items := make([]item, 0, len(scores))
	for symbol, score := range scores {
		if score != 0 {
			items = append(items, item{symbol, score})
		}
	}
	sort.Slice(items, func(i, j int) bool {
		if items[i].score != items[j].score {
			return items[i].score > items[j].score
		}
		return items[i].symbol < items[j].symbol
	})

	signals := make([]models.RawSignal, 0, len(items))
	for i, it := range items {
		rank := i + 1
		h := g.classifier.Classify(signalName, it.score, feats[it.symbol])
		signals = append(signals, models.RawSignal{
			Symbol:     it.symbol,
			Date:       date,
			SignalName: signalName,
			Score:      it.score,
			Rank:       &rank,
			Horizon:    &h,
			Rationale:  rationale(signalName),
		})
	}
	if err := g.store.UpsertSignals(ctx, signals); err != nil {
		return fmt.Errorf("failed to persist %s signals: %w", signalName, err)
	}
	return nil
}

func rationale(signalName string) string {
	switch signalName {
	case models.SignalMomentum20120:
		return "blend of 20d and 120d return momentum"
	case models.SignalMeanrevBollinger:
		return "mean reversion against the 20d Bollinger band"
	case models.SignalGapBreakaway:
		return "unfilled overnight gap with volume confirmation"
	default:
		return ""
	}
}

func closesAscending(bars []models.Bar) []float64 {
	closes := make([]float64, len(bars))
	for i, b := range bars {
		closes[len(bars)-1-i] = b.Close
	}
	return closes
}
