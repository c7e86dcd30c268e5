package decision

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/quantforge/signal-engine/internal/config"
	"github.com/quantforge/signal-engine/internal/marketdata"
	"github.com/quantforge/signal-engine/internal/models"
)

// PortfolioStore persists the ledger between cycles.
type PortfolioStore interface {
	LoadPortfolioState(ctx context.Context) (*models.PortfolioState, error)
	SavePortfolioState(ctx context.Context, state *models.PortfolioState) error
}

// SkippedTrade records a buy candidate the engine declined, with the reason
// from whichever gate rejected it.
type SkippedTrade struct {
	Symbol string `json:"symbol"`
	Reason string `json:"reason"`
}

// CycleResult summarizes one decision cycle.
type CycleResult struct {
	Date          time.Time       `json:"date"`
	AlreadyRan    bool            `json:"already_ran,omitempty"`
	Executed      []models.Trade  `json:"executed"`
	Skipped       []SkippedTrade  `json:"skipped"`
	ValueBefore   decimal.Decimal `json:"value_before"`
	ValueAfter    decimal.Decimal `json:"value_after"`
	DailyReturn   float64         `json:"daily_return"`
	OpenPositions int             `json:"open_positions"`
}

// Engine turns daily signal reports into executed simulated trades against a
// persistent portfolio ledger. All money math is decimal; float64 appears only
// in scores, thresholds, and ratios.
type Engine struct {
	store  PortfolioStore
	market marketdata.Source
	cfg    config.TradingConfig
	log    *zap.Logger

	state *models.PortfolioState
}

// NewEngine creates a decision engine. Call Init before the first cycle.
func NewEngine(store PortfolioStore, market marketdata.Source, cfg config.TradingConfig, log *zap.Logger) *Engine {
	return &Engine{store: store, market: market, cfg: cfg, log: log}
}

// Init loads the persisted ledger, or seeds a fresh one with the configured
// initial capital if none exists yet.
func (e *Engine) Init(ctx context.Context) error {
	state, err := e.store.LoadPortfolioState(ctx)
	if err != nil {
		return fmt.Errorf("loading portfolio state: %w", err)
	}
	if state == nil {
		state = models.NewPortfolioState(decimal.NewFromFloat(e.cfg.InitialCapital), dateOnly(time.Now().UTC()))
		e.log.Info("initialized fresh portfolio",
			zap.String("initial_capital", state.InitialCapital.String()))
	}
	e.state = state
	return nil
}

// State exposes the in-memory ledger for read-only API access.
func (e *Engine) State() *models.PortfolioState {
	return e.state
}

// ProcessReport runs one full decision cycle against the report: buy gates
// over the long side, then risk rules over every open position. The cycle is
// idempotent per report date; a repeat call is a no-op.
func (e *Engine) ProcessReport(ctx context.Context, report *models.Report) (*CycleResult, error) {
	if e.state == nil {
		if err := e.Init(ctx); err != nil {
			return nil, err
		}
	}
	date := dateOnly(report.Date)

	if last := e.state.LastProcessedDate; last != nil && !last.Before(date) {
		e.log.Info("report date already processed, skipping cycle",
			zap.Time("date", date), zap.Time("last_processed", *last))
		return &CycleResult{Date: date, AlreadyRan: true}, nil
	}

	result := &CycleResult{Date: date}
	result.ValueBefore = e.PortfolioValue(ctx)

	e.processBuys(ctx, report, result)
	e.processSells(ctx, report, result)

	result.ValueAfter = e.PortfolioValue(ctx)
	result.OpenPositions = len(e.state.Positions)
	e.closeCycle(date, result)

	if err := e.store.SavePortfolioState(ctx, e.state); err != nil {
		// The in-memory ledger stays authoritative for this process; the
		// next successful save catches it up.
		e.log.Error("failed to persist portfolio state", zap.Error(err), zap.Time("date", date))
	}
	return result, nil
}

func (e *Engine) processBuys(ctx context.Context, report *models.Report, result *CycleResult) {
	value := result.ValueBefore
	for _, entry := range report.TopLong {
		if !entry.Price.IsPositive() {
			result.Skipped = append(result.Skipped, SkippedTrade{entry.Symbol, "no price available"})
			continue
		}

		frac := entry.PositionSize / 100
		if frac > e.cfg.MaxPositionSize {
			frac = e.cfg.MaxPositionSize
		}
		target := value.Mul(decimal.NewFromFloat(frac))

		size, fund, reason := e.applyBuyGates(ctx, entry, target, value)
		if reason != "" {
			e.log.Debug("buy rejected",
				zap.String("symbol", entry.Symbol), zap.String("reason", reason))
			result.Skipped = append(result.Skipped, SkippedTrade{entry.Symbol, reason})
			continue
		}

		// Quality-scaled sizing: strong signal plus strong fundamentals
		// buys the full target, weaker conviction buys less.
		quality := (entry.Score + fund) / 2
		sized := size.Mul(decimal.NewFromFloat(quality))
		shares := sized.Div(entry.Price).Floor()
		if !shares.IsPositive() {
			result.Skipped = append(result.Skipped, SkippedTrade{entry.Symbol, "sized below one share"})
			continue
		}
		e.executeBuy(entry, shares, report.Date, result)
	}
}

// applyBuyGates runs the ordered pre-trade checks. It returns the (possibly
// downsized) dollar target and the fundamental score on approval, or a
// non-empty rejection reason.
func (e *Engine) applyBuyGates(ctx context.Context, entry models.ReportEntry, target, value decimal.Decimal) (decimal.Decimal, float64, string) {
	minTrade := decimal.NewFromFloat(e.cfg.MinTradeSize)
	if target.LessThan(minTrade) {
		return decimal.Zero, 0, fmt.Sprintf("target $%s below minimum trade size $%s", target.StringFixed(2), minTrade.StringFixed(2))
	}

	if len(e.state.Positions) >= e.cfg.MaxPositions {
		return decimal.Zero, 0, fmt.Sprintf("position limit reached (%d)", e.cfg.MaxPositions)
	}

	if pos, held := e.state.Positions[entry.Symbol]; held && value.IsPositive() {
		weight, _ := pos.Shares.Mul(entry.Price).Div(value).Float64()
		if weight >= 0.8*e.cfg.MaxPositionSize {
			return decimal.Zero, 0, fmt.Sprintf("existing position at %.1f%% of portfolio, near cap", weight*100)
		}
	}

	if entry.Score < e.cfg.MinSignalScore {
		return decimal.Zero, 0, fmt.Sprintf("signal score %.2f below threshold %.2f", entry.Score, e.cfg.MinSignalScore)
	}

	fund := e.fundamentalScore(ctx, entry.Symbol)
	if fund < e.cfg.MinFundamental {
		return decimal.Zero, 0, fmt.Sprintf("fundamental score %.2f below threshold %.2f", fund, e.cfg.MinFundamental)
	}

	fee := decimal.NewFromFloat(e.cfg.TradingFee)
	if target.Add(fee).GreaterThan(e.state.CashBalance) {
		affordable := e.state.CashBalance.Sub(fee)
		if affordable.LessThan(minTrade) {
			return decimal.Zero, 0, fmt.Sprintf("insufficient cash: $%s available", e.state.CashBalance.StringFixed(2))
		}
		target = affordable
	}
	return target, fund, ""
}

func (e *Engine) executeBuy(entry models.ReportEntry, shares decimal.Decimal, date time.Time, result *CycleResult) {
	cost := shares.Mul(entry.Price)
	fee := decimal.NewFromFloat(e.cfg.TradingFee)
	if cost.Add(fee).GreaterThan(e.state.CashBalance) {
		result.Skipped = append(result.Skipped, SkippedTrade{entry.Symbol, "insufficient cash at execution"})
		return
	}

	if pos, held := e.state.Positions[entry.Symbol]; held {
		total := pos.Shares.Add(shares)
		pos.EntryPrice = pos.Shares.Mul(pos.EntryPrice).Add(cost).Div(total)
		pos.Shares = total
		pos.CostBasis = pos.CostBasis.Add(cost)
	} else {
		e.state.Positions[entry.Symbol] = &models.Position{
			Symbol:     entry.Symbol,
			Shares:     shares,
			EntryPrice: entry.Price,
			EntryDate:  date,
			CostBasis:  cost,
			Horizon:    entry.Horizon,
		}
	}
	e.state.CashBalance = e.state.CashBalance.Sub(cost).Sub(fee)

	trade := models.Trade{
		Date:   date,
		Action: models.ActionBuy,
		Symbol: entry.Symbol,
		Shares: shares,
		Price:  entry.Price,
		Fee:    fee,
		Reason: entry.Rationale,
	}
	e.state.TradeHistory = append(e.state.TradeHistory, trade)
	result.Executed = append(result.Executed, trade)
	e.log.Info("bought",
		zap.String("symbol", entry.Symbol),
		zap.String("shares", shares.String()),
		zap.String("price", entry.Price.String()))
}

// processSells re-evaluates every open position each cycle, not just the ones
// the report flags. Report shorts carry a fresh price and score; everything
// else falls back to the latest market price and a nil score.
func (e *Engine) processSells(ctx context.Context, report *models.Report, result *CycleResult) {
	shorts := make(map[string]models.ReportEntry, len(report.TopShort))
	for _, entry := range report.TopShort {
		shorts[entry.Symbol] = entry
	}

	for _, symbol := range e.openSymbols() {
		pos, held := e.state.Positions[symbol]
		if !held {
			continue
		}
		var (
			price = e.currentPrice(ctx, pos)
			score *float64
		)
		if entry, flagged := shorts[symbol]; flagged {
			if entry.Price.IsPositive() {
				price = entry.Price
			}
			score = &entry.Score
		}
		reason := e.sellReason(ctx, pos, price, score, report.Date)
		if reason == "" {
			continue
		}
		e.executeSell(pos, pos.Shares, price, reason, report.Date, result)
	}
}

// sellReason applies the risk rules in priority order and returns the reason
// for the first one that fires, or "" to hold.
func (e *Engine) sellReason(ctx context.Context, pos *models.Position, price decimal.Decimal, score *float64, date time.Time) string {
	if pos.CostBasis.IsPositive() {
		pnlPct, _ := pos.Shares.Mul(price).Sub(pos.CostBasis).Div(pos.CostBasis).Float64()
		if pnlPct < e.cfg.StopLossPct {
			return fmt.Sprintf("stop loss triggered: %.1f%%", pnlPct*100)
		}
		if pnlPct > e.cfg.TakeProfitPct {
			return fmt.Sprintf("take profit triggered: +%.1f%%", pnlPct*100)
		}
	}

	if score != nil && *score < e.cfg.ReversalScore {
		return fmt.Sprintf("signal reversal: score %.2f", *score)
	}

	if fund := e.fundamentalScore(ctx, pos.Symbol); fund < e.cfg.SellFundamental {
		return fmt.Sprintf("deteriorating fundamentals: score %.2f", fund)
	}

	if maxDays := e.maxHoldDays(pos.Horizon); maxDays > 0 {
		if held := int(dateOnly(date).Sub(dateOnly(pos.EntryDate)).Hours() / 24); held > maxDays {
			return fmt.Sprintf("max holding period exceeded: %d days (%s horizon)", held, pos.Horizon)
		}
	}
	return ""
}

func (e *Engine) executeSell(pos *models.Position, shares, price decimal.Decimal, reason string, date time.Time, result *CycleResult) {
	if shares.GreaterThan(pos.Shares) {
		shares = pos.Shares
	}
	if !shares.IsPositive() || !price.IsPositive() {
		return
	}

	fee := decimal.NewFromFloat(e.cfg.TradingFee)
	proceeds := shares.Mul(price)
	net := proceeds.Sub(fee)
	costBasisSold := shares.Div(pos.Shares).Mul(pos.CostBasis)
	realized := net.Sub(costBasisSold)
	var realizedPct float64
	if costBasisSold.IsPositive() {
		realizedPct, _ = realized.Div(costBasisSold).Float64()
	}

	e.state.CashBalance = e.state.CashBalance.Add(net)
	if shares.Equal(pos.Shares) {
		delete(e.state.Positions, pos.Symbol)
	} else {
		pos.Shares = pos.Shares.Sub(shares)
		pos.CostBasis = pos.CostBasis.Sub(costBasisSold)
	}

	trade := models.Trade{
		Date:           dateOnly(date),
		Action:         models.ActionSell,
		Symbol:         pos.Symbol,
		Shares:         shares,
		Price:          price,
		Fee:            fee,
		RealizedPnL:    realized,
		RealizedPnLPct: realizedPct,
		Reason:         reason,
	}
	e.state.TradeHistory = append(e.state.TradeHistory, trade)
	result.Executed = append(result.Executed, trade)
	e.log.Info("sold",
		zap.String("symbol", pos.Symbol),
		zap.String("shares", shares.String()),
		zap.String("price", price.String()),
		zap.String("reason", reason))
}

// closeCycle books the day's return, updates the drawdown high-water mark,
// and stamps the date for the idempotency guard.
func (e *Engine) closeCycle(date time.Time, result *CycleResult) {
	if result.ValueBefore.IsPositive() {
		result.DailyReturn, _ = result.ValueAfter.Sub(result.ValueBefore).Div(result.ValueBefore).Float64()
	}
	e.state.DailyReturns = append(e.state.DailyReturns, result.DailyReturn)

	if result.ValueAfter.GreaterThan(e.state.PeakValue) {
		e.state.PeakValue = result.ValueAfter
	} else if e.state.PeakValue.IsPositive() {
		dd, _ := e.state.PeakValue.Sub(result.ValueAfter).Div(e.state.PeakValue).Float64()
		if dd > e.state.MaxDrawdown {
			e.state.MaxDrawdown = dd
		}
	}

	stamped := date
	e.state.LastProcessedDate = &stamped
}

// PortfolioValue is cash plus the marked value of every open position. A
// position with no available market price is marked at its entry price.
func (e *Engine) PortfolioValue(ctx context.Context) decimal.Decimal {
	value := e.state.CashBalance
	for _, pos := range e.state.Positions {
		value = value.Add(pos.Shares.Mul(e.currentPrice(ctx, pos)))
	}
	return value
}

func (e *Engine) currentPrice(ctx context.Context, pos *models.Position) decimal.Decimal {
	price, err := e.market.CurrentPrice(ctx, pos.Symbol)
	if err != nil || !price.IsPositive() {
		e.log.Warn("no market price, marking at entry",
			zap.String("symbol", pos.Symbol), zap.Error(err))
		return pos.EntryPrice
	}
	return price
}

func (e *Engine) fundamentalScore(ctx context.Context, symbol string) float64 {
	f, err := e.market.Fundamentals(ctx, symbol)
	if err != nil {
		e.log.Debug("fundamentals unavailable, using neutral score",
			zap.String("symbol", symbol), zap.Error(err))
		return 0.5
	}
	return ScoreFundamentals(f)
}

func (e *Engine) maxHoldDays(h models.Horizon) int {
	switch h {
	case models.HorizonShort:
		return e.cfg.MaxHoldShortDays
	case models.HorizonLong:
		return e.cfg.MaxHoldLongDays
	default:
		return e.cfg.MaxHoldMidDays
	}
}

func (e *Engine) openSymbols() []string {
	symbols := make([]string, 0, len(e.state.Positions))
	for symbol := range e.state.Positions {
		symbols = append(symbols, symbol)
	}
	sort.Strings(symbols)
	return symbols
}

func dateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
