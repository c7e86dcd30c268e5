package decision

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/quantforge/signal-engine/internal/models"
)

func TestPerformance_ReturnsAndWinRate(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	state := models.NewPortfolioState(decimal.NewFromInt(100000), start)
	state.CashBalance = decimal.NewFromInt(110000)
	state.TradeHistory = []models.Trade{
		{Action: models.ActionBuy, Symbol: "AAA"},
		{Action: models.ActionSell, Symbol: "AAA", RealizedPnL: decimal.NewFromInt(500)},
		{Action: models.ActionSell, Symbol: "BBB", RealizedPnL: decimal.NewFromInt(-200)},
		{Action: models.ActionSell, Symbol: "CCC", RealizedPnL: decimal.NewFromInt(300)},
	}
	store := &mockPortfolioStore{state: state}
	e := NewEngine(store, &mockMarket{}, tradingConfig(), zap.NewNop())
	require.NoError(t, e.Init(context.Background()))

	asOf := start.AddDate(0, 0, 100)
	summary := e.Performance(context.Background(), asOf)

	assert.InDelta(t, 0.10, summary.TotalReturn, 1e-12)
	assert.InDelta(t, math.Pow(1.10, 365.0/100)-1, summary.AnnualizedReturn, 1e-9)
	assert.Equal(t, 100, summary.DaysActive)
	// 2 of 3 sells were winners; buys do not count.
	assert.InDelta(t, 2.0/3, summary.WinRate, 1e-12)
	assert.Equal(t, 4, summary.TotalTrades)
}

func TestPerformance_FirstDayUsesOneDayFloor(t *testing.T) {
	start := time.Date(2026, 8, 28, 0, 0, 0, 0, time.UTC)
	state := models.NewPortfolioState(decimal.NewFromInt(100000), start)
	store := &mockPortfolioStore{state: state}
	e := NewEngine(store, &mockMarket{}, tradingConfig(), zap.NewNop())
	require.NoError(t, e.Init(context.Background()))

	summary := e.Performance(context.Background(), start)
	assert.Equal(t, 1, summary.DaysActive)
	assert.Equal(t, 0.0, summary.TotalReturn)
	assert.Equal(t, 0.0, summary.WinRate)
}
