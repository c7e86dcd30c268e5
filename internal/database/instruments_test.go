package database

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantforge/signal-engine/internal/models"
)

func TestGetInstrument_NullSectorAndIndustry(t *testing.T) {
	db, mock := newMockDB(t)

	mock.ExpectQuery("SELECT symbol, name, sector, industry").
		WithArgs("AAPL").
		WillReturnRows(sqlmock.NewRows([]string{"symbol", "name", "sector", "industry"}).
			AddRow("AAPL", "Apple Inc.", nil, nil))

	inst, err := db.GetInstrument(context.Background(), "AAPL")
	require.NoError(t, err)
	assert.Equal(t, "Apple Inc.", inst.Name)
	assert.Empty(t, inst.Sector)
	assert.Empty(t, inst.Industry)
}

func TestGetInstrument_NotFound(t *testing.T) {
	db, mock := newMockDB(t)

	mock.ExpectQuery("SELECT symbol, name, sector, industry").
		WithArgs("NOPE").
		WillReturnRows(sqlmock.NewRows([]string{"symbol", "name", "sector", "industry"}))

	_, err := db.GetInstrument(context.Background(), "NOPE")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestGetActiveSymbols(t *testing.T) {
	db, mock := newMockDB(t)

	mock.ExpectQuery("SELECT DISTINCT i.symbol").
		WillReturnRows(sqlmock.NewRows([]string{"symbol"}).
			AddRow("AAPL").AddRow("MSFT"))

	symbols, err := db.GetActiveSymbols(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"AAPL", "MSFT"}, symbols)
}

func TestUpsertInstrument_EmptyStringsStoredAsNull(t *testing.T) {
	db, mock := newMockDB(t)

	mock.ExpectExec("INSERT INTO instruments").
		WithArgs("AAPL", "Apple Inc.", "Technology", nil).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := db.UpsertInstrument(context.Background(), &models.Instrument{
		Symbol: "AAPL",
		Name:   "Apple Inc.",
		Sector: "Technology",
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetFundamentals_PartialColumns(t *testing.T) {
	db, mock := newMockDB(t)

	mock.ExpectQuery("SELECT pe_ratio, profit_margins").
		WithArgs("AAPL").
		WillReturnRows(sqlmock.NewRows([]string{"pe_ratio", "profit_margins", "debt_to_equity", "return_on_equity"}).
			AddRow(22.5, nil, 0.8, nil))

	f, err := db.GetFundamentals(context.Background(), "AAPL")
	require.NoError(t, err)
	require.NotNil(t, f.PERatio)
	assert.Equal(t, 22.5, *f.PERatio)
	assert.Nil(t, f.ProfitMargins)
	require.NotNil(t, f.DebtToEquity)
	assert.Equal(t, 0.8, *f.DebtToEquity)
	assert.Nil(t, f.ReturnOnEquity)
}

func TestGetFundamentals_NoRowIsError(t *testing.T) {
	db, mock := newMockDB(t)

	mock.ExpectQuery("SELECT pe_ratio, profit_margins").
		WithArgs("NOPE").
		WillReturnRows(sqlmock.NewRows([]string{"pe_ratio"}))

	_, err := db.GetFundamentals(context.Background(), "NOPE")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no fundamentals")
}
