package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Trade actions.
const (
	ActionBuy  = "BUY"
	ActionSell = "SELL"
)

// TargetPortfolio is the output of portfolio construction: per-symbol target
// weights. Long weights are in (0, max_position], short weights in
// [-max_position, 0).
type TargetPortfolio struct {
	Date  time.Time          `json:"date"`
	Long  map[string]float64 `json:"long"`
	Short map[string]float64 `json:"short"`
}

// Position is an open holding, owned exclusively by the decision engine.
// On repeated buys EntryPrice becomes the share-weighted average and
// CostBasis accumulates; on partial sells CostBasis shrinks pro-rata.
type Position struct {
	Symbol     string          `json:"symbol"`
	Shares     decimal.Decimal `json:"shares"`
	EntryPrice decimal.Decimal `json:"entry_price"`
	EntryDate  time.Time       `json:"entry_date"`
	CostBasis  decimal.Decimal `json:"cost_basis"`
	Horizon    Horizon         `json:"horizon,omitempty"`
}

// Trade is an immutable, append-only execution record.
type Trade struct {
	Date           time.Time       `json:"date"`
	Action         string          `json:"action"`
	Symbol         string          `json:"symbol"`
	Shares         decimal.Decimal `json:"shares"`
	Price          decimal.Decimal `json:"price"`
	Fee            decimal.Decimal `json:"fee"`
	RealizedPnL    decimal.Decimal `json:"realized_pnl,omitempty"`
	RealizedPnLPct float64         `json:"realized_pnl_pct,omitempty"`
	Reason         string          `json:"reason,omitempty"`
}

// PortfolioState is the single mutable ledger document. It is loaded at cycle
// start, mutated once per cycle, and fully overwritten on save.
type PortfolioState struct {
	InitialCapital    decimal.Decimal      `json:"initial_capital"`
	CashBalance       decimal.Decimal      `json:"cash_balance"`
	Positions         map[string]*Position `json:"positions"`
	TradeHistory      []Trade              `json:"trade_history"`
	DailyReturns      []float64            `json:"daily_returns"`
	MaxDrawdown       float64              `json:"max_drawdown"`
	PeakValue         decimal.Decimal      `json:"peak_value"`
	StartDate         time.Time            `json:"start_date"`
	LastProcessedDate *time.Time           `json:"last_processed_date,omitempty"`
}

// NewPortfolioState returns a fresh state with all capital in cash.
func NewPortfolioState(initialCapital decimal.Decimal, startDate time.Time) *PortfolioState {
	return &PortfolioState{
		InitialCapital: initialCapital,
		CashBalance:    initialCapital,
		Positions:      make(map[string]*Position),
		PeakValue:      initialCapital,
		StartDate:      startDate,
	}
}

// ReportEntry is one candidate row in a daily signal report.
type ReportEntry struct {
	Symbol       string          `json:"symbol"`
	Score        float64         `json:"score"`
	Price        decimal.Decimal `json:"price"`
	PositionSize float64         `json:"position_size"` // percent of portfolio hint
	Sector       string          `json:"sector,omitempty"`
	Rationale    string          `json:"rationale,omitempty"`
	Horizon      Horizon         `json:"horizon,omitempty"`
}

// Report is the daily signal report consumed by the decision engine.
type Report struct {
	Date     time.Time     `json:"date"`
	TopLong  []ReportEntry `json:"top_long"`
	TopShort []ReportEntry `json:"top_short"`
}
