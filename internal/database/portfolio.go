package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/quantforge/signal-engine/internal/models"
)

// The portfolio ledger is a single overwritable row. Position, trade and
// return data live in JSONB columns because the document is always read and
// written whole, never queried piecemeal.
const portfolioStateID = 1

// LoadPortfolioState reads the persisted ledger. It returns (nil, nil) when
// no state has been saved yet; the caller seeds a fresh state in that case.
func (db *DB) LoadPortfolioState(ctx context.Context) (*models.PortfolioState, error) {
	query := `
		SELECT initial_capital, cash_balance, max_drawdown, peak_value,
		       start_date, last_processed_date,
		       positions, trade_history, daily_returns
		FROM portfolio_state
		WHERE id = $1
	`
	var state models.PortfolioState
	var lastProcessed sql.NullTime
	var positions, trades, returns []byte

	err := db.conn.QueryRowContext(ctx, query, portfolioStateID).Scan(
		&state.InitialCapital, &state.CashBalance, &state.MaxDrawdown, &state.PeakValue,
		&state.StartDate, &lastProcessed,
		&positions, &trades, &returns,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load portfolio state: %w", err)
	}

	if lastProcessed.Valid {
		t := lastProcessed.Time
		state.LastProcessedDate = &t
	}
	if err := json.Unmarshal(positions, &state.Positions); err != nil {
		return nil, fmt.Errorf("failed to decode positions: %w", err)
	}
	if err := json.Unmarshal(trades, &state.TradeHistory); err != nil {
		return nil, fmt.Errorf("failed to decode trade history: %w", err)
	}
	if err := json.Unmarshal(returns, &state.DailyReturns); err != nil {
		return nil, fmt.Errorf("failed to decode daily returns: %w", err)
	}
	if state.Positions == nil {
		state.Positions = make(map[string]*models.Position)
	}
	return &state, nil
}

// SavePortfolioState overwrites the entire ledger row.
func (db *DB) SavePortfolioState(ctx context.Context, state *models.PortfolioState) error {
	positions, err := json.Marshal(state.Positions)
	if err != nil {
		return fmt.Errorf("failed to encode positions: %w", err)
	}
	trades, err := json.Marshal(state.TradeHistory)
	if err != nil {
		return fmt.Errorf("failed to encode trade history: %w", err)
	}
	returns, err := json.Marshal(state.DailyReturns)
	if err != nil {
		return fmt.Errorf("failed to encode daily returns: %w", err)
	}

	var lastProcessed sql.NullTime
	if state.LastProcessedDate != nil {
		lastProcessed = sql.NullTime{Time: *state.LastProcessedDate, Valid: true}
	}

	query := `
		INSERT INTO portfolio_state (
			id, initial_capital, cash_balance, max_drawdown, peak_value,
			start_date, last_processed_date,
			positions, trade_history, daily_returns, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (id) DO UPDATE SET
			initial_capital = $2, cash_balance = $3, max_drawdown = $4, peak_value = $5,
			start_date = $6, last_processed_date = $7,
			positions = $8, trade_history = $9, daily_returns = $10, updated_at = $11
	`
	_, err = db.conn.ExecContext(ctx, query,
		portfolioStateID, state.InitialCapital, state.CashBalance,
		state.MaxDrawdown, state.PeakValue,
		state.StartDate, lastProcessed,
		positions, trades, returns, time.Now(),
	)
	if err != nil {
		return fmt.Errorf("failed to save portfolio state: %w", err)
	}
	return nil
}
