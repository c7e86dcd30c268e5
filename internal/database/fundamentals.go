package database

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/quantforge/signal-engine/internal/models"
)

// GetFundamentals returns the latest stored vendor fundamentals for a symbol.
// Missing columns come back as nil pointers; a missing row is an error the
// caller downgrades to the neutral score.
func (db *DB) GetFundamentals(ctx context.Context, symbol string) (*models.Fundamentals, error) {
	query := `
		SELECT pe_ratio, profit_margins, debt_to_equity, return_on_equity
		FROM fundamentals
		WHERE symbol = $1
		ORDER BY updated_at DESC
		LIMIT 1
	`
	var pe, margins, debt, roe sql.NullFloat64

	err := db.conn.QueryRowContext(ctx, query, symbol).Scan(&pe, &margins, &debt, &roe)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("no fundamentals for symbol: %s", symbol)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get fundamentals: %w", err)
	}

	f := &models.Fundamentals{}
	if pe.Valid {
		f.PERatio = &pe.Float64
	}
	if margins.Valid {
		f.ProfitMargins = &margins.Float64
	}
	if debt.Valid {
		f.DebtToEquity = &debt.Float64
	}
	if roe.Valid {
		f.ReturnOnEquity = &roe.Float64
	}
	return f, nil
}
