package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/quantforge/signal-engine/internal/config"
	"github.com/quantforge/signal-engine/internal/models"
)

// Client wraps the Redis client with the market-data caching operations the
// decision engine uses between external lookups.
type Client struct {
	rdb *redis.Client
}

// New creates a new Redis client
func New(cfg config.RedisConfig) (*Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Address(),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &Client{rdb: rdb}, nil
}

// Close closes the Redis connection
func (c *Client) Close() error {
	return c.rdb.Close()
}

// Ping checks if Redis is reachable
func (c *Client) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

// SetStockPrice caches a stock price with TTL
func (c *Client) SetStockPrice(ctx context.Context, symbol string, price float64, ttl time.Duration) error {
	key := fmt.Sprintf("stock:%s:price", symbol)
	return c.rdb.Set(ctx, key, price, ttl).Err()
}

// GetStockPrice retrieves a cached stock price
func (c *Client) GetStockPrice(ctx context.Context, symbol string) (float64, error) {
	key := fmt.Sprintf("stock:%s:price", symbol)
	return c.rdb.Get(ctx, key).Float64()
}

// SetFundamentals caches vendor fundamentals with TTL.
func (c *Client) SetFundamentals(ctx context.Context, symbol string, f *models.Fundamentals, ttl time.Duration) error {
	key := fmt.Sprintf("stock:%s:fundamentals", symbol)
	jsonData, err := json.Marshal(f)
	if err != nil {
		return fmt.Errorf("failed to marshal fundamentals: %w", err)
	}
	return c.rdb.Set(ctx, key, jsonData, ttl).Err()
}

// GetFundamentals retrieves cached fundamentals.
func (c *Client) GetFundamentals(ctx context.Context, symbol string) (*models.Fundamentals, error) {
	key := fmt.Sprintf("stock:%s:fundamentals", symbol)
	jsonData, err := c.rdb.Get(ctx, key).Bytes()
	if err != nil {
		return nil, err
	}

	var f models.Fundamentals
	if err := json.Unmarshal(jsonData, &f); err != nil {
		return nil, fmt.Errorf("failed to unmarshal fundamentals: %w", err)
	}
	return &f, nil
}
