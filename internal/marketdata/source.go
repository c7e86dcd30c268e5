package marketdata

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/quantforge/signal-engine/internal/models"
)

// Source provides the live-ish lookups the decision engine cannot derive from
// its own ledger: current prices and vendor fundamentals. Lookups may fail;
// callers fall back to last known values instead of aborting.
type Source interface {
	CurrentPrice(ctx context.Context, symbol string) (decimal.Decimal, error)
	Fundamentals(ctx context.Context, symbol string) (*models.Fundamentals, error)
}

// PriceStore is the storage-side price lookup.
type PriceStore interface {
	LatestClose(ctx context.Context, symbol string) (float64, error)
}

// FundamentalsStore is the storage-side fundamentals lookup.
type FundamentalsStore interface {
	GetFundamentals(ctx context.Context, symbol string) (*models.Fundamentals, error)
}

// StoreSource serves Source lookups from the ingested bars and fundamentals
// tables. The ingestion pipeline that fills those tables is external.
type StoreSource struct {
	prices       PriceStore
	fundamentals FundamentalsStore
}

// NewStoreSource creates a storage-backed market data source.
func NewStoreSource(prices PriceStore, fundamentals FundamentalsStore) *StoreSource {
	return &StoreSource{prices: prices, fundamentals: fundamentals}
}

// CurrentPrice returns the most recent stored close for the symbol.
func (s *StoreSource) CurrentPrice(ctx context.Context, symbol string) (decimal.Decimal, error) {
	price, err := s.prices.LatestClose(ctx, symbol)
	if err != nil {
		return decimal.Zero, err
	}
	return decimal.NewFromFloat(price), nil
}

// Fundamentals returns the most recent stored fundamentals for the symbol.
func (s *StoreSource) Fundamentals(ctx context.Context, symbol string) (*models.Fundamentals, error) {
	return s.fundamentals.GetFundamentals(ctx, symbol)
}
