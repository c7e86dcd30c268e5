package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/quantforge/signal-engine/internal/config"
	"github.com/quantforge/signal-engine/internal/models"
)

// InstrumentRepository is the storage side of universe updates.
type InstrumentRepository interface {
	UpsertInstrument(ctx context.Context, inst *models.Instrument) error
}

// UniverseEvent is an instrument-universe event published by the ingestion
// pipeline.
type UniverseEvent struct {
	EventType string            `json:"event_type"`
	Source    string            `json:"source"`
	Timestamp string            `json:"timestamp"`
	Data      UniverseEventData `json:"data"`
}

// UniverseEventData holds the payloads for the universe event types.
type UniverseEventData struct {
	// For UNIVERSE_UPDATED events
	AddedSymbols   []string             `json:"added_symbols,omitempty"`
	RemovedSymbols []string             `json:"removed_symbols,omitempty"`
	TotalCount     int                  `json:"total_count,omitempty"`
	Instruments    []UniverseInstrument `json:"instruments,omitempty"`

	// For UNIVERSE_SYMBOL_ADDED/REMOVED events
	Symbol   string `json:"symbol,omitempty"`
	Name     string `json:"name,omitempty"`
	Sector   string `json:"sector,omitempty"`
	Industry string `json:"industry,omitempty"`
}

// UniverseInstrument carries instrument details in UNIVERSE_UPDATED events.
type UniverseInstrument struct {
	Symbol   string `json:"symbol"`
	Name     string `json:"name"`
	Sector   string `json:"sector,omitempty"`
	Industry string `json:"industry,omitempty"`
}

// UniverseConsumer keeps the instruments table in sync with universe events
// from the ingestion pipeline.
type UniverseConsumer struct {
	reader *kafka.Reader
	repo   InstrumentRepository
	log    *zap.Logger
}

// NewUniverseConsumer creates a Kafka consumer for the universe topic.
func NewUniverseConsumer(cfg config.KafkaConfig, repo InstrumentRepository, log *zap.Logger) *UniverseConsumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        cfg.Brokers,
		Topic:          cfg.UniverseTopic,
		GroupID:        cfg.GroupID + "-universe",
		MinBytes:       10e3, // 10KB
		MaxBytes:       10e6, // 10MB
		MaxWait:        1 * time.Second,
		StartOffset:    kafka.FirstOffset,
		CommitInterval: time.Second,
	})

	return &UniverseConsumer{
		reader: reader,
		repo:   repo,
		log:    log,
	}
}

// Start consumes messages until the context is cancelled.
func (c *UniverseConsumer) Start(ctx context.Context) error {
	c.log.Info("starting universe consumer", zap.String("topic", c.reader.Config().Topic))

	for {
		select {
		case <-ctx.Done():
			c.log.Info("universe consumer shutting down")
			return c.reader.Close()
		default:
			msg, err := c.reader.ReadMessage(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return nil
				}
				c.log.Error("error reading universe message", zap.Error(err))
				continue
			}

			if err := c.processMessage(ctx, msg); err != nil {
				c.log.Error("error processing universe message", zap.Error(err))
				// Continue processing other messages
			}
		}
	}
}

func (c *UniverseConsumer) processMessage(ctx context.Context, msg kafka.Message) error {
	var event UniverseEvent
	if err := json.Unmarshal(msg.Value, &event); err != nil {
		return fmt.Errorf("failed to unmarshal universe event: %w", err)
	}

	c.log.Debug("processing universe event",
		zap.String("event_type", event.EventType),
		zap.Int("partition", msg.Partition),
		zap.Int64("offset", msg.Offset))

	switch event.EventType {
	case "UNIVERSE_UPDATED":
		return c.handleUniverseUpdated(ctx, event)

	case "UNIVERSE_SYMBOL_ADDED":
		return c.handleSymbolAdded(ctx, event)

	case "UNIVERSE_SYMBOL_REMOVED":
		// Removed symbols stay in the database; their signal history and
		// any open position may still reference them.
		c.log.Info("symbol removed from universe, keeping instrument",
			zap.String("symbol", event.Data.Symbol))
		return nil

	default:
		c.log.Debug("ignoring unknown universe event type",
			zap.String("event_type", event.EventType))
		return nil
	}
}

func (c *UniverseConsumer) handleUniverseUpdated(ctx context.Context, event UniverseEvent) error {
	c.log.Info("processing universe update",
		zap.Int("added", len(event.Data.AddedSymbols)),
		zap.Int("removed", len(event.Data.RemovedSymbols)),
		zap.Int("total", event.Data.TotalCount))

	for _, symbol := range event.Data.AddedSymbols {
		symbol = strings.ToUpper(symbol)
		inst := &models.Instrument{Symbol: symbol, Name: symbol}

		for _, detail := range event.Data.Instruments {
			if strings.ToUpper(detail.Symbol) == symbol {
				if detail.Name != "" {
					inst.Name = detail.Name
				}
				inst.Sector = detail.Sector
				inst.Industry = detail.Industry
				break
			}
		}

		if err := c.repo.UpsertInstrument(ctx, inst); err != nil {
			c.log.Error("error upserting instrument",
				zap.String("symbol", symbol), zap.Error(err))
			continue
		}
	}

	return nil
}

func (c *UniverseConsumer) handleSymbolAdded(ctx context.Context, event UniverseEvent) error {
	inst := &models.Instrument{
		Symbol:   strings.ToUpper(event.Data.Symbol),
		Name:     event.Data.Name,
		Sector:   event.Data.Sector,
		Industry: event.Data.Industry,
	}
	if inst.Name == "" {
		inst.Name = inst.Symbol
	}

	if err := c.repo.UpsertInstrument(ctx, inst); err != nil {
		return fmt.Errorf("failed to upsert instrument %s: %w", inst.Symbol, err)
	}

	c.log.Info("instrument added from universe",
		zap.String("symbol", inst.Symbol), zap.String("name", inst.Name))
	return nil
}

// Close closes the underlying reader.
func (c *UniverseConsumer) Close() error {
	return c.reader.Close()
}
