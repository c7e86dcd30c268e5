package database

import (
	"context"
	"fmt"
	"time"

	"github.com/lib/pq"
	"github.com/quantforge/signal-engine/internal/models"
)

// GetFeatures returns the most recent value at or before asOf for each of the
// requested feature names. Names with no stored value are simply absent from
// the result map.
func (db *DB) GetFeatures(ctx context.Context, symbol string, asOf time.Time, names []string) (map[string]float64, error) {
	query := `
		SELECT feature_name, value
		FROM features_daily
		WHERE symbol = $1 AND d <= $2 AND feature_name = ANY($3)
		ORDER BY d DESC, feature_name
	`
	rows, err := db.conn.QueryContext(ctx, query, symbol, asOf, pq.Array(names))
	if err != nil {
		return nil, fmt.Errorf("failed to get features for %s: %w", symbol, err)
	}
	defer rows.Close()

	features := make(map[string]float64, len(names))
	for rows.Next() {
		var name string
		var value float64
		if err := rows.Scan(&name, &value); err != nil {
			return nil, fmt.Errorf("failed to scan feature row: %w", err)
		}
		// Rows are newest-first; keep the first value seen per name.
		if _, seen := features[name]; !seen {
			features[name] = value
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read feature rows: %w", err)
	}
	return features, nil
}

// HasEarningsWithin reports whether the symbol has an earnings event within
// +/- windowDays calendar days of d.
func (db *DB) HasEarningsWithin(ctx context.Context, symbol string, d time.Time, windowDays int) (bool, error) {
	query := `
		SELECT COUNT(*)
		FROM earnings
		WHERE symbol = $1
		AND event_time::date BETWEEN $2::date - $3 AND $2::date + $3
	`
	var count int
	if err := db.conn.QueryRowContext(ctx, query, symbol, d, windowDays).Scan(&count); err != nil {
		return false, fmt.Errorf("failed to check earnings window for %s: %w", symbol, err)
	}
	return count > 0, nil
}

// GetBars returns up to lookback daily bars at or before asOf, newest first.
func (db *DB) GetBars(ctx context.Context, symbol string, asOf time.Time, lookback int) ([]models.Bar, error) {
	query := `
		SELECT symbol, t, adj_o, adj_h, adj_l, adj_c, adj_v
		FROM bars_1d
		WHERE symbol = $1 AND t <= $2
		ORDER BY t DESC
		LIMIT $3
	`
	rows, err := db.conn.QueryContext(ctx, query, symbol, asOf, lookback)
	if err != nil {
		return nil, fmt.Errorf("failed to get bars for %s: %w", symbol, err)
	}
	defer rows.Close()

	var bars []models.Bar
	for rows.Next() {
		var b models.Bar
		if err := rows.Scan(&b.Symbol, &b.Date, &b.Open, &b.High, &b.Low, &b.Close, &b.Volume); err != nil {
			return nil, fmt.Errorf("failed to scan bar row: %w", err)
		}
		bars = append(bars, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read bar rows: %w", err)
	}
	return bars, nil
}

// GetClosePrices returns (date, adjusted close) pairs for the symbol between
// from and to inclusive, oldest first.
func (db *DB) GetClosePrices(ctx context.Context, symbol string, from, to time.Time) ([]models.ClosePrice, error) {
	query := `
		SELECT t, adj_c
		FROM bars_1d
		WHERE symbol = $1 AND t BETWEEN $2 AND $3
		ORDER BY t ASC
	`
	rows, err := db.conn.QueryContext(ctx, query, symbol, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to get close prices for %s: %w", symbol, err)
	}
	defer rows.Close()

	var prices []models.ClosePrice
	for rows.Next() {
		var p models.ClosePrice
		if err := rows.Scan(&p.Date, &p.Close); err != nil {
			return nil, fmt.Errorf("failed to scan close price row: %w", err)
		}
		prices = append(prices, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read close price rows: %w", err)
	}
	return prices, nil
}

// LatestClose returns the most recent adjusted close for a symbol.
func (db *DB) LatestClose(ctx context.Context, symbol string) (float64, error) {
	query := `
		SELECT adj_c
		FROM bars_1d
		WHERE symbol = $1
		ORDER BY t DESC
		LIMIT 1
	`
	var close float64
	if err := db.conn.QueryRowContext(ctx, query, symbol).Scan(&close); err != nil {
		return 0, fmt.Errorf("no close price for %s: %w", symbol, err)
	}
	return close, nil
}

// CloseAsOf returns the latest adjusted close at or before the given date.
func (db *DB) CloseAsOf(ctx context.Context, symbol string, asOf time.Time) (float64, error) {
	query := `
		SELECT adj_c
		FROM bars_1d
		WHERE symbol = $1 AND t <= $2
		ORDER BY t DESC
		LIMIT 1
	`
	var close float64
	if err := db.conn.QueryRowContext(ctx, query, symbol, asOf).Scan(&close); err != nil {
		return 0, fmt.Errorf("no close price for %s as of %s: %w", symbol, asOf.Format("2006-01-02"), err)
	}
	return close, nil
}
