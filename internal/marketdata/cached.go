package marketdata

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/quantforge/signal-engine/internal/models"
)

// Cache is the subset of the Redis client the cached source uses.
type Cache interface {
	GetStockPrice(ctx context.Context, symbol string) (float64, error)
	SetStockPrice(ctx context.Context, symbol string, price float64, ttl time.Duration) error
	GetFundamentals(ctx context.Context, symbol string) (*models.Fundamentals, error)
	SetFundamentals(ctx context.Context, symbol string, f *models.Fundamentals, ttl time.Duration) error
}

// CachedSource fronts another Source with a Redis cache. Cache failures are
// logged and treated as misses; the underlying source remains authoritative.
type CachedSource struct {
	source Source
	cache  Cache
	ttl    time.Duration
	log    *zap.Logger
}

// NewCachedSource wraps source with a cache using the given entry TTL.
func NewCachedSource(source Source, cache Cache, ttl time.Duration, log *zap.Logger) *CachedSource {
	return &CachedSource{source: source, cache: cache, ttl: ttl, log: log}
}

// CurrentPrice returns the cached price when fresh, otherwise looks it up and
// refreshes the cache.
func (c *CachedSource) CurrentPrice(ctx context.Context, symbol string) (decimal.Decimal, error) {
	if price, err := c.cache.GetStockPrice(ctx, symbol); err == nil {
		return decimal.NewFromFloat(price), nil
	}

	price, err := c.source.CurrentPrice(ctx, symbol)
	if err != nil {
		return decimal.Zero, err
	}
	if err := c.cache.SetStockPrice(ctx, symbol, price.InexactFloat64(), c.ttl); err != nil {
		c.log.Warn("failed to cache price", zap.String("symbol", symbol), zap.Error(err))
	}
	return price, nil
}

// Fundamentals returns cached fundamentals when fresh, otherwise looks them
// up and refreshes the cache.
func (c *CachedSource) Fundamentals(ctx context.Context, symbol string) (*models.Fundamentals, error) {
	if f, err := c.cache.GetFundamentals(ctx, symbol); err == nil {
		return f, nil
	}

	f, err := c.source.Fundamentals(ctx, symbol)
	if err != nil {
		return nil, err
	}
	if err := c.cache.SetFundamentals(ctx, symbol, f, c.ttl); err != nil {
		c.log.Warn("failed to cache fundamentals", zap.String("symbol", symbol), zap.Error(err))
	}
	return f, nil
}
