package pipeline

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/quantforge/signal-engine/internal/decision"
	"github.com/quantforge/signal-engine/internal/kafka"
	"github.com/quantforge/signal-engine/internal/metrics"
	"github.com/quantforge/signal-engine/internal/models"
)

// SymbolSource lists the tradable universe for a cycle.
type SymbolSource interface {
	GetActiveSymbols(ctx context.Context) ([]string, error)
}

// SignalGenerator produces per-recipe raw scores for a date.
type SignalGenerator interface {
	GenerateAll(ctx context.Context, symbols []string, date time.Time) (map[string]map[string]float64, error)
}

// Blender turns raw scores into the daily report and target portfolio.
type Blender interface {
	Run(ctx context.Context, date time.Time, rawScores map[string]map[string]float64) (*models.Report, *models.TargetPortfolio, error)
}

// DecisionEngine consumes the report and maintains the portfolio ledger.
type DecisionEngine interface {
	ProcessReport(ctx context.Context, report *models.Report) (*decision.CycleResult, error)
}

// EventPublisher emits trade and cycle events. Publishing is best-effort; a
// broker outage never fails a cycle.
type EventPublisher interface {
	PublishTradeExecuted(ctx context.Context, trade models.Trade) error
	PublishCycleCompleted(ctx context.Context, data kafka.CycleCompletedData) error
}

// Result bundles everything one cycle produced.
type Result struct {
	Date      time.Time               `json:"date"`
	Symbols   int                     `json:"symbols"`
	Report    *models.Report          `json:"report"`
	Portfolio *models.TargetPortfolio `json:"portfolio"`
	Cycle     *decision.CycleResult   `json:"cycle"`
}

// Runner wires the daily cycle end to end: signal generation, blending and
// portfolio construction, then trade decisions.
type Runner struct {
	symbols   SymbolSource
	generator SignalGenerator
	blender   Blender
	engine    DecisionEngine
	publisher EventPublisher
	metrics   *metrics.Metrics
	log       *zap.Logger
}

// NewRunner creates a cycle runner. publisher may be nil when Kafka is not
// configured.
func NewRunner(symbols SymbolSource, generator SignalGenerator, blender Blender, engine DecisionEngine, publisher EventPublisher, m *metrics.Metrics, log *zap.Logger) *Runner {
	return &Runner{
		symbols:   symbols,
		generator: generator,
		blender:   blender,
		engine:    engine,
		publisher: publisher,
		metrics:   m,
		log:       log,
	}
}

// RunCycle executes one full cycle for the given date.
func (r *Runner) RunCycle(ctx context.Context, date time.Time) (*Result, error) {
	start := time.Now()
	r.log.Info("starting cycle", zap.Time("date", date))

	result, err := r.runCycle(ctx, date)
	r.metrics.CycleDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		r.metrics.CyclesTotal.WithLabelValues("error").Inc()
		return nil, err
	}
	if result.Cycle.AlreadyRan {
		r.metrics.CyclesTotal.WithLabelValues("skipped").Inc()
	} else {
		r.metrics.CyclesTotal.WithLabelValues("success").Inc()
	}

	r.log.Info("cycle complete",
		zap.Time("date", date),
		zap.Int("symbols", result.Symbols),
		zap.Int("trades", len(result.Cycle.Executed)),
		zap.Int("skipped", len(result.Cycle.Skipped)),
		zap.Duration("elapsed", time.Since(start)))
	return result, nil
}

func (r *Runner) runCycle(ctx context.Context, date time.Time) (*Result, error) {
	symbols, err := r.symbols.GetActiveSymbols(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing active symbols: %w", err)
	}
	if len(symbols) == 0 {
		return nil, fmt.Errorf("no active symbols for %s", date.Format("2006-01-02"))
	}

	rawScores, err := r.generator.GenerateAll(ctx, symbols, date)
	if err != nil {
		return nil, fmt.Errorf("generating signals: %w", err)
	}
	for name, scores := range rawScores {
		r.metrics.SignalsGenerated.WithLabelValues(name).Add(float64(len(scores)))
	}

	report, portfolio, err := r.blender.Run(ctx, date, rawScores)
	if err != nil {
		return nil, fmt.Errorf("blending signals: %w", err)
	}

	cycle, err := r.engine.ProcessReport(ctx, report)
	if err != nil {
		return nil, fmt.Errorf("processing report: %w", err)
	}

	if !cycle.AlreadyRan {
		r.recordCycle(ctx, cycle)
	}

	return &Result{
		Date:      cycle.Date,
		Symbols:   len(symbols),
		Report:    report,
		Portfolio: portfolio,
		Cycle:     cycle,
	}, nil
}

func (r *Runner) recordCycle(ctx context.Context, cycle *decision.CycleResult) {
	for _, trade := range cycle.Executed {
		r.metrics.TradesExecuted.WithLabelValues(trade.Action).Inc()
	}
	r.metrics.TradesSkipped.Add(float64(len(cycle.Skipped)))
	value, _ := cycle.ValueAfter.Float64()
	r.metrics.PortfolioValue.Set(value)
	r.metrics.OpenPositions.Set(float64(cycle.OpenPositions))

	if r.publisher == nil {
		return
	}
	for _, trade := range cycle.Executed {
		if err := r.publisher.PublishTradeExecuted(ctx, trade); err != nil {
			r.log.Warn("failed to publish trade event",
				zap.String("symbol", trade.Symbol), zap.Error(err))
		}
	}
	data := kafka.CycleCompletedData{
		Date:           cycle.Date.Format("2006-01-02"),
		TradesExecuted: len(cycle.Executed),
		TradesSkipped:  len(cycle.Skipped),
		PortfolioValue: cycle.ValueAfter.StringFixed(2),
		OpenPositions:  cycle.OpenPositions,
	}
	if err := r.publisher.PublishCycleCompleted(ctx, data); err != nil {
		r.log.Warn("failed to publish cycle event", zap.Error(err))
	}
}
