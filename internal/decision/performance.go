package decision

import (
	"context"
	"math"
	"time"

	"github.com/shopspring/decimal"

	"github.com/quantforge/signal-engine/internal/models"
)

// PerformanceSummary is a point-in-time snapshot of portfolio performance.
type PerformanceSummary struct {
	AsOf             time.Time       `json:"as_of"`
	InitialCapital   decimal.Decimal `json:"initial_capital"`
	PortfolioValue   decimal.Decimal `json:"portfolio_value"`
	CashBalance      decimal.Decimal `json:"cash_balance"`
	TotalReturn      float64         `json:"total_return"`
	AnnualizedReturn float64         `json:"annualized_return"`
	MaxDrawdown      float64         `json:"max_drawdown"`
	WinRate          float64         `json:"win_rate"`
	TotalTrades      int             `json:"total_trades"`
	OpenPositions    int             `json:"open_positions"`
	DaysActive       int             `json:"days_active"`
}

// Performance computes the summary from the current ledger. The annualized
// figure compounds the to-date return over the days since inception.
func (e *Engine) Performance(ctx context.Context, asOf time.Time) *PerformanceSummary {
	value := e.PortfolioValue(ctx)
	summary := &PerformanceSummary{
		AsOf:           dateOnly(asOf),
		InitialCapital: e.state.InitialCapital,
		PortfolioValue: value,
		CashBalance:    e.state.CashBalance,
		MaxDrawdown:    e.state.MaxDrawdown,
		TotalTrades:    len(e.state.TradeHistory),
		OpenPositions:  len(e.state.Positions),
	}

	days := int(dateOnly(asOf).Sub(dateOnly(e.state.StartDate)).Hours() / 24)
	if days < 1 {
		days = 1
	}
	summary.DaysActive = days

	if e.state.InitialCapital.IsPositive() {
		growth, _ := value.Div(e.state.InitialCapital).Float64()
		summary.TotalReturn = growth - 1
		if growth > 0 {
			summary.AnnualizedReturn = math.Pow(growth, 365/float64(days)) - 1
		}
	}

	var sells, wins int
	for _, trade := range e.state.TradeHistory {
		if trade.Action != models.ActionSell {
			continue
		}
		sells++
		if trade.RealizedPnL.IsPositive() {
			wins++
		}
	}
	if sells > 0 {
		summary.WinRate = float64(wins) / float64(sells)
	}
	return summary
}
