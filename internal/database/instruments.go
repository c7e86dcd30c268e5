package database

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/quantforge/signal-engine/internal/models"
)

// GetInstrument retrieves reference data for a symbol.
func (db *DB) GetInstrument(ctx context.Context, symbol string) (*models.Instrument, error) {
	query := `
		SELECT symbol, name, sector, industry
		FROM instruments
		WHERE symbol = $1
	`
	var inst models.Instrument
	var sector, industry sql.NullString

	err := db.conn.QueryRowContext(ctx, query, symbol).Scan(&inst.Symbol, &inst.Name, &sector, &industry)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("instrument not found: %s", symbol)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get instrument: %w", err)
	}

	if sector.Valid {
		inst.Sector = sector.String
	}
	if industry.Valid {
		inst.Industry = industry.String
	}
	return &inst, nil
}

// GetActiveSymbols returns the trading universe: every instrument that has at
// least one computed feature row.
func (db *DB) GetActiveSymbols(ctx context.Context) ([]string, error) {
	query := `
		SELECT DISTINCT i.symbol
		FROM instruments i
		WHERE i.symbol IN (SELECT DISTINCT symbol FROM features_daily)
		ORDER BY i.symbol
	`
	rows, err := db.conn.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to get active symbols: %w", err)
	}
	defer rows.Close()

	var symbols []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, fmt.Errorf("failed to scan symbol row: %w", err)
		}
		symbols = append(symbols, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read symbol rows: %w", err)
	}
	return symbols, nil
}

// UpsertInstrument inserts or refreshes one instrument row.
func (db *DB) UpsertInstrument(ctx context.Context, inst *models.Instrument) error {
	query := `
		INSERT INTO instruments (symbol, name, sector, industry)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (symbol) DO UPDATE SET
			name = EXCLUDED.name,
			sector = EXCLUDED.sector,
			industry = EXCLUDED.industry
	`
	_, err := db.conn.ExecContext(ctx, query, inst.Symbol, inst.Name,
		nullIfEmpty(inst.Sector), nullIfEmpty(inst.Industry))
	if err != nil {
		return fmt.Errorf("failed to upsert instrument %s: %w", inst.Symbol, err)
	}
	return nil
}

func nullIfEmpty(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
