package blend

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/quantforge/signal-engine/internal/config"
	"github.com/quantforge/signal-engine/internal/models"
)

// SignalStore provides persisted signal history and accepts the composite.
type SignalStore interface {
	UpsertSignals(ctx context.Context, signals []models.RawSignal) error
	GetSignalHistory(ctx context.Context, signalName string, from, to time.Time) ([]models.RawSignal, error)
	GetSignalsForDate(ctx context.Context, d time.Time) ([]models.RawSignal, error)
}

// PriceRepository provides close-price history for forward returns and
// report pricing.
type PriceRepository interface {
	GetClosePrices(ctx context.Context, symbol string, from, to time.Time) ([]models.ClosePrice, error)
	CloseAsOf(ctx context.Context, symbol string, asOf time.Time) (float64, error)
}

// InstrumentRepository resolves sector metadata for report entries.
type InstrumentRepository interface {
	GetInstrument(ctx context.Context, symbol string) (*models.Instrument, error)
}

// Blender turns raw per-signal scores into one IC-weighted composite per
// symbol, constructs the ranked long/short target portfolio and builds the
// daily report consumed by the decision engine.
type Blender struct {
	signals     SignalStore
	prices      PriceRepository
	instruments InstrumentRepository
	cfg         config.SignalsConfig
	log         *zap.Logger
}

// NewBlender creates a signal blender.
func NewBlender(signals SignalStore, prices PriceRepository, instruments InstrumentRepository, cfg config.SignalsConfig, log *zap.Logger) *Blender {
	return &Blender{
		signals:     signals,
		prices:      prices,
		instruments: instruments,
		cfg:         cfg,
		log:         log,
	}
}

// Run executes the full blend for one date: rolling ICs, weights, composite,
// portfolio construction, composite persistence and report assembly.
func (b *Blender) Run(ctx context.Context, date time.Time, rawScores map[string]map[string]float64) (*models.Report, *models.TargetPortfolio, error) {
	ics := make(map[string]float64, len(rawScores))
	for name := range rawScores {
		ic, err := b.InformationCoefficient(ctx, name, date)
		if err != nil {
			return nil, nil, fmt.Errorf("IC for %s failed: %w", name, err)
		}
		ics[name] = ic
	}

	weights := Weights(ics)
	composite := Composite(rawScores, weights)

	if err := b.persistComposite(ctx, date, composite, weights); err != nil {
		return nil, nil, err
	}

	portfolio := b.ConstructPortfolio(date, composite)
	report, err := b.buildReport(ctx, date, composite, portfolio)
	if err != nil {
		return nil, nil, err
	}

	b.log.Info("blended signals",
		zap.Time("date", date),
		zap.Any("ic", ics),
		zap.Any("weights", weights),
		zap.Int("long", len(portfolio.Long)),
		zap.Int("short", len(portfolio.Short)),
	)
	return report, portfolio, nil
}

// InformationCoefficient computes the Spearman rank correlation between a
// signal's historical scores and the forward return over the configured
// horizon, pooled across the rolling lookback window. Fewer observations
// than the minimum yield IC 0.
func (b *Blender) InformationCoefficient(ctx context.Context, signalName string, asOf time.Time) (float64, error) {
	from := asOf.AddDate(0, 0, -b.cfg.ICLookbackDays)
	history, err := b.signals.GetSignalHistory(ctx, signalName, from, asOf)
	if err != nil {
		return 0, err
	}
	if len(history) == 0 {
		return 0, nil
	}

	bySymbol := make(map[string][]models.RawSignal)
	for _, s := range history {
		bySymbol[s.Symbol] = append(bySymbol[s.Symbol], s)
	}

	// Extra calendar days past asOf so the horizon-forward price exists for
	// signals near the window's end.
	to := asOf.AddDate(0, 0, b.cfg.ICHorizonDays*2+4)

	var scores, returns []float64
	for symbol, sigs := range bySymbol {
		prices, err := b.prices.GetClosePrices(ctx, symbol, from, to)
		if err != nil {
			return 0, err
		}
		index := make(map[string]int, len(prices))
		for i, p := range prices {
			index[p.Date.Format("2006-01-02")] = i
		}
		for _, s := range sigs {
			i, ok := index[s.Date.Format("2006-01-02")]
			if !ok || i+b.cfg.ICHorizonDays >= len(prices) || prices[i].Close <= 0 {
				continue
			}
			fwd := (prices[i+b.cfg.ICHorizonDays].Close - prices[i].Close) / prices[i].Close
			scores = append(scores, s.Score)
			returns = append(returns, fwd)
		}
	}

	if len(scores) < b.cfg.MinObservations {
		return 0, nil
	}
	return Spearman(scores, returns), nil
}

// Weights derives non-negative blend weights from per-signal ICs:
// w_i = max(IC_i, 0) / sum(max(IC_j, 0)). When no signal carries a positive
// IC the blend degrades to equal weights rather than zeroing everything out.
func Weights(ics map[string]float64) map[string]float64 {
	weights := make(map[string]float64, len(ics))
	var total float64
	for name, ic := range ics {
		w := ic
		if w < 0 {
			w = 0
		}
		weights[name] = w
		total += w
	}

	if total == 0 {
		equal := 1.0 / float64(len(ics))
		for name := range weights {
			weights[name] = equal
		}
		return weights
	}
	for name := range weights {
		weights[name] /= total
	}
	return weights
}

// Composite averages each symbol's available signals, renormalizing by the
// weights actually present so a symbol missing a signal is not penalized.
// Symbols with no signals at all score 0 and drop out downstream.
func Composite(rawScores map[string]map[string]float64, weights map[string]float64) map[string]float64 {
	composite := make(map[string]float64)
	present := make(map[string]float64)

	for name, scores := range rawScores {
		w := weights[name]
		for symbol, score := range scores {
			if score == 0 {
				continue
			}
			composite[symbol] += w * score
			present[symbol] += w
		}
	}
	for symbol := range composite {
		if present[symbol] > 0 {
			composite[symbol] /= present[symbol]
		} else {
			composite[symbol] = 0
		}
	}
	return composite
}

// ConstructPortfolio ranks non-zero composite scores and assigns uniform
// per-side weights of min(max_position, 1/n). The long side always takes at
// least one name when any candidate exists; a symbol never appears on both
// sides.
func (b *Blender) ConstructPortfolio(date time.Time, composite map[string]float64) *models.TargetPortfolio {
	portfolio := &models.TargetPortfolio{
		Date:  date,
		Long:  make(map[string]float64),
		Short: make(map[string]float64),
	}

	ranked := rankedSymbols(composite)
	if len(ranked) == 0 {
		return portfolio
	}

	longCount := int(float64(len(ranked)) * b.cfg.LongPct)
	if longCount < 1 {
		longCount = 1
	}
	shortCount := int(float64(len(ranked)) * b.cfg.ShortPct)
	if shortCount < 1 {
		shortCount = 1
	}

	longWeight := b.cfg.MaxPosition
	if w := 1.0 / float64(longCount); w < longWeight {
		longWeight = w
	}
	for _, symbol := range ranked[:longCount] {
		portfolio.Long[symbol] = longWeight
	}

	var shorts []string
	for i := len(ranked) - 1; i >= 0 && len(shorts) < shortCount; i-- {
		if _, isLong := portfolio.Long[ranked[i]]; !isLong {
			shorts = append(shorts, ranked[i])
		}
	}
	if len(shorts) > 0 {
		shortWeight := b.cfg.MaxPosition
		if w := 1.0 / float64(len(shorts)); w < shortWeight {
			shortWeight = w
		}
		for _, symbol := range shorts {
			portfolio.Short[symbol] = -shortWeight
		}
	}
	return portfolio
}

// persistComposite writes the combined signal with ranks assigned like the
// raw signals.
func (b *Blender) persistComposite(ctx context.Context, date time.Time, composite map[string]float64, weights map[string]float64) error {
	ranked := rankedSymbols(composite)
	rationale := fmt.Sprintf("IC-weighted blend of %d signals", len(weights))

	signals := make([]models.RawSignal, 0, len(ranked))
	for i, symbol := range ranked {
		rank := i + 1
		signals = append(signals, models.RawSignal{
			Symbol:     symbol,
			Date:       date,
			SignalName: models.SignalCombined,
			Score:      composite[symbol],
			Rank:       &rank,
			Rationale:  rationale,
		})
	}
	if err := b.signals.UpsertSignals(ctx, signals); err != nil {
		return fmt.Errorf("failed to persist composite signal: %w", err)
	}
	return nil
}

// buildReport assembles the daily report: one entry per target position with
// the composite score, last close, sizing hint, sector and the horizon of the
// symbol's strongest raw signal.
func (b *Blender) buildReport(ctx context.Context, date time.Time, composite map[string]float64, portfolio *models.TargetPortfolio) (*models.Report, error) {
	horizons, err := b.dominantHorizons(ctx, date)
	if err != nil {
		return nil, err
	}

	report := &models.Report{Date: date}
	report.TopLong, err = b.reportEntries(ctx, date, portfolio.Long, composite, horizons)
	if err != nil {
		return nil, err
	}
	report.TopShort, err = b.reportEntries(ctx, date, portfolio.Short, composite, horizons)
	if err != nil {
		return nil, err
	}

	// Strongest candidates first, mirroring the composite ranking.
	sort.Slice(report.TopLong, func(i, j int) bool { return report.TopLong[i].Score > report.TopLong[j].Score })
	sort.Slice(report.TopShort, func(i, j int) bool { return report.TopShort[i].Score < report.TopShort[j].Score })
	return report, nil
}

// reportEntries prices each entry at the report date's close so a catch-up
// run for a past date books trades at the prices of that date, not today's.
func (b *Blender) reportEntries(ctx context.Context, date time.Time, side map[string]float64, composite map[string]float64, horizons map[string]models.Horizon) ([]models.ReportEntry, error) {
	entries := make([]models.ReportEntry, 0, len(side))
	for symbol, weight := range side {
		price, err := b.prices.CloseAsOf(ctx, symbol, date)
		if err != nil {
			// No price means the engine could not size the trade anyway.
			b.log.Warn("skipping report entry without price", zap.String("symbol", symbol), zap.Error(err))
			continue
		}

		var sector string
		if inst, err := b.instruments.GetInstrument(ctx, symbol); err == nil {
			sector = inst.Sector
		}

		h, ok := horizons[symbol]
		if !ok {
			h = models.HorizonMid
		}

		absWeight := weight
		if absWeight < 0 {
			absWeight = -absWeight
		}
		entries = append(entries, models.ReportEntry{
			Symbol:       symbol,
			Score:        composite[symbol],
			Price:        decimal.NewFromFloat(price),
			PositionSize: absWeight * 100,
			Sector:       sector,
			Rationale:    fmt.Sprintf("composite score %.3f (%s horizon)", composite[symbol], h),
			Horizon:      h,
		})
	}
	return entries, nil
}

// dominantHorizons maps each symbol to the horizon of its highest-|score| raw
// signal on the date.
func (b *Blender) dominantHorizons(ctx context.Context, date time.Time) (map[string]models.Horizon, error) {
	signals, err := b.signals.GetSignalsForDate(ctx, date)
	if err != nil {
		return nil, err
	}
	best := make(map[string]float64)
	horizons := make(map[string]models.Horizon)
	for _, s := range signals {
		if s.SignalName == models.SignalCombined || s.Horizon == nil {
			continue
		}
		abs := s.Score
		if abs < 0 {
			abs = -abs
		}
		if abs > best[s.Symbol] {
			best[s.Symbol] = abs
			horizons[s.Symbol] = *s.Horizon
		}
	}
	return horizons, nil
}

// rankedSymbols sorts non-zero scores descending, ties broken by symbol.
func rankedSymbols(scores map[string]float64) []string {
	symbols := make([]string, 0, len(scores))
	for symbol, score := range scores {
		if score != 0 {
			symbols = append(symbols, symbol)
		}
	}
	sort.Slice(symbols, func(i, j int) bool {
		if scores[symbols[i]] != scores[symbols[j]] {
			return scores[symbols[i]] > scores[symbols[j]]
		}
		return symbols[i] < symbols[j]
	})
	return symbols
}
