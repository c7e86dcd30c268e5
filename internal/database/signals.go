package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/quantforge/signal-engine/internal/models"
)

// UpsertSignals writes signal rows keyed by (symbol, d, signal_name),
// overwriting score, rank, horizon and rationale on conflict. All rows are
// written in one transaction so a partially generated day never persists.
func (db *DB) UpsertSignals(ctx context.Context, signals []models.RawSignal) error {
	if len(signals) == 0 {
		return nil
	}

	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	query := `
		INSERT INTO signals_daily (symbol, d, signal_name, score, rank, horizon, rationale)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (symbol, d, signal_name)
		DO UPDATE SET score = $4, rank = $5, horizon = $6, rationale = $7
	`
	for _, s := range signals {
		var rank sql.NullInt64
		if s.Rank != nil {
			rank = sql.NullInt64{Int64: int64(*s.Rank), Valid: true}
		}
		var horizon sql.NullString
		if s.Horizon != nil {
			horizon = sql.NullString{String: string(*s.Horizon), Valid: true}
		}
		if _, err := tx.ExecContext(ctx, query,
			s.Symbol, s.Date, s.SignalName, s.Score, rank, horizon, s.Rationale,
		); err != nil {
			return fmt.Errorf("failed to upsert signal %s/%s: %w", s.Symbol, s.SignalName, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit signal upsert: %w", err)
	}
	return nil
}

// GetSignalHistory returns all rows for one signal name between from and to
// inclusive, ordered by date then symbol.
func (db *DB) GetSignalHistory(ctx context.Context, signalName string, from, to time.Time) ([]models.RawSignal, error) {
	query := `
		SELECT symbol, d, signal_name, score, rank, horizon, rationale
		FROM signals_daily
		WHERE signal_name = $1 AND d BETWEEN $2 AND $3
		ORDER BY d ASC, symbol ASC
	`
	rows, err := db.conn.QueryContext(ctx, query, signalName, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to get signal history for %s: %w", signalName, err)
	}
	defer rows.Close()

	return scanSignals(rows)
}

// GetSignalsForDate returns every signal row stored for one date.
func (db *DB) GetSignalsForDate(ctx context.Context, d time.Time) ([]models.RawSignal, error) {
	query := `
		SELECT symbol, d, signal_name, score, rank, horizon, rationale
		FROM signals_daily
		WHERE d = $1
		ORDER BY signal_name ASC, rank ASC NULLS LAST, symbol ASC
	`
	rows, err := db.conn.QueryContext(ctx, query, d)
	if err != nil {
		return nil, fmt.Errorf("failed to get signals for %s: %w", d.Format("2006-01-02"), err)
	}
	defer rows.Close()

	return scanSignals(rows)
}

func scanSignals(rows *sql.Rows) ([]models.RawSignal, error) {
	var signals []models.RawSignal
	for rows.Next() {
		var s models.RawSignal
		var rank sql.NullInt64
		var horizon, rationale sql.NullString

		if err := rows.Scan(&s.Symbol, &s.Date, &s.SignalName, &s.Score, &rank, &horizon, &rationale); err != nil {
			return nil, fmt.Errorf("failed to scan signal row: %w", err)
		}
		if rank.Valid {
			r := int(rank.Int64)
			s.Rank = &r
		}
		if horizon.Valid {
			h := models.Horizon(horizon.String)
			s.Horizon = &h
		}
		if rationale.Valid {
			s.Rationale = rationale.String
		}
		signals = append(signals, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read signal rows: %w", err)
	}
	return signals, nil
}
