package database

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetFeatures_KeepsNewestValuePerName(t *testing.T) {
	db, mock := newMockDB(t)
	asOf := time.Date(2026, 8, 28, 0, 0, 0, 0, time.UTC)

	// Newest-first rows; the second momentum_ret_20 row is stale.
	rows := sqlmock.NewRows([]string{"feature_name", "value"}).
		AddRow("momentum_ret_20", 0.12).
		AddRow("momentum_ret_120", 0.30).
		AddRow("momentum_ret_20", 0.99)
	mock.ExpectQuery("SELECT feature_name, value").
		WithArgs("AAPL", asOf, sqlmock.AnyArg()).
		WillReturnRows(rows)

	features, err := db.GetFeatures(context.Background(), "AAPL", asOf,
		[]string{"momentum_ret_20", "momentum_ret_120"})
	require.NoError(t, err)

	assert.Equal(t, 0.12, features["momentum_ret_20"])
	assert.Equal(t, 0.30, features["momentum_ret_120"])
}

func TestGetFeatures_MissingNamesAbsent(t *testing.T) {
	db, mock := newMockDB(t)
	mock.ExpectQuery("SELECT feature_name, value").
		WillReturnRows(sqlmock.NewRows([]string{"feature_name", "value"}))

	features, err := db.GetFeatures(context.Background(), "AAPL", time.Now(), []string{"momentum_ret_20"})
	require.NoError(t, err)
	assert.Empty(t, features)
}

func TestHasEarningsWithin(t *testing.T) {
	db, mock := newMockDB(t)
	d := time.Date(2026, 8, 28, 0, 0, 0, 0, time.UTC)

	mock.ExpectQuery("SELECT COUNT").
		WithArgs("AAPL", d, 2).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	has, err := db.HasEarningsWithin(context.Background(), "AAPL", d, 2)
	require.NoError(t, err)
	assert.True(t, has)

	mock.ExpectQuery("SELECT COUNT").
		WithArgs("MSFT", d, 2).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
	has, err = db.HasEarningsWithin(context.Background(), "MSFT", d, 2)
	require.NoError(t, err)
	assert.False(t, has)
}

func TestGetBars_NewestFirst(t *testing.T) {
	db, mock := newMockDB(t)
	asOf := time.Date(2026, 8, 28, 0, 0, 0, 0, time.UTC)

	rows := sqlmock.NewRows([]string{"symbol", "t", "adj_o", "adj_h", "adj_l", "adj_c", "adj_v"}).
		AddRow("AAPL", asOf, 100.0, 102.0, 99.0, 101.0, 1e6).
		AddRow("AAPL", asOf.AddDate(0, 0, -1), 98.0, 100.5, 97.5, 100.0, 9e5)
	mock.ExpectQuery("SELECT symbol, t, adj_o").
		WithArgs("AAPL", asOf, 2).
		WillReturnRows(rows)

	bars, err := db.GetBars(context.Background(), "AAPL", asOf, 2)
	require.NoError(t, err)
	require.Len(t, bars, 2)
	assert.Equal(t, 101.0, bars[0].Close)
	assert.Equal(t, 100.0, bars[1].Close)
}

func TestGetClosePrices_AscendingPairs(t *testing.T) {
	db, mock := newMockDB(t)
	from := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2026, 8, 28, 0, 0, 0, 0, time.UTC)

	rows := sqlmock.NewRows([]string{"t", "adj_c"}).
		AddRow(from, 95.0).
		AddRow(from.AddDate(0, 0, 1), 96.5)
	mock.ExpectQuery("SELECT t, adj_c").
		WithArgs("AAPL", from, to).
		WillReturnRows(rows)

	prices, err := db.GetClosePrices(context.Background(), "AAPL", from, to)
	require.NoError(t, err)
	require.Len(t, prices, 2)
	assert.Equal(t, 95.0, prices[0].Close)
	assert.True(t, prices[0].Date.Before(prices[1].Date))
}

func TestLatestClose(t *testing.T) {
	db, mock := newMockDB(t)

	mock.ExpectQuery("SELECT adj_c").
		WithArgs("AAPL").
		WillReturnRows(sqlmock.NewRows([]string{"adj_c"}).AddRow(187.33))
	price, err := db.LatestClose(context.Background(), "AAPL")
	require.NoError(t, err)
	assert.Equal(t, 187.33, price)

	mock.ExpectQuery("SELECT adj_c").
		WithArgs("NOPE").
		WillReturnRows(sqlmock.NewRows([]string{"adj_c"}))
	_, err = db.LatestClose(context.Background(), "NOPE")
	require.Error(t, err)
}

func TestCloseAsOf(t *testing.T) {
	db, mock := newMockDB(t)
	asOf := time.Date(2026, 8, 14, 0, 0, 0, 0, time.UTC)

	mock.ExpectQuery(`SELECT adj_c`).
		WithArgs("AAPL", asOf).
		WillReturnRows(sqlmock.NewRows([]string{"adj_c"}).AddRow(181.20))
	price, err := db.CloseAsOf(context.Background(), "AAPL", asOf)
	require.NoError(t, err)
	assert.Equal(t, 181.20, price)

	// No bar at or before the date.
	mock.ExpectQuery(`SELECT adj_c`).
		WithArgs("AAPL", asOf).
		WillReturnRows(sqlmock.NewRows([]string{"adj_c"}))
	_, err = db.CloseAsOf(context.Background(), "AAPL", asOf)
	require.Error(t, err)
}
