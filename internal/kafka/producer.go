package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/quantforge/signal-engine/internal/config"
	"github.com/quantforge/signal-engine/internal/models"
)

const eventSource = "signal-engine"

// Event is the envelope every published message uses.
type Event struct {
	EventType string      `json:"event_type"`
	Source    string      `json:"source"`
	Timestamp string      `json:"timestamp"`
	Data      interface{} `json:"data"`
}

// CycleCompletedData summarizes a finished decision cycle for downstream
// consumers.
type CycleCompletedData struct {
	Date           string `json:"date"`
	TradesExecuted int    `json:"trades_executed"`
	TradesSkipped  int    `json:"trades_skipped"`
	PortfolioValue string `json:"portfolio_value"`
	OpenPositions  int    `json:"open_positions"`
}

// Producer publishes trade and cycle events. It is safe for concurrent use.
type Producer struct {
	trades *kafka.Writer
	cycles *kafka.Writer
	log    *zap.Logger
}

// NewProducer creates writers for the trade and cycle topics.
func NewProducer(cfg config.KafkaConfig, log *zap.Logger) *Producer {
	newWriter := func(topic string) *kafka.Writer {
		return &kafka.Writer{
			Addr:         kafka.TCP(cfg.Brokers...),
			Topic:        topic,
			Balancer:     &kafka.LeastBytes{},
			RequiredAcks: kafka.RequireOne,
			BatchTimeout: 50 * time.Millisecond,
		}
	}
	return &Producer{
		trades: newWriter(cfg.TradesTopic),
		cycles: newWriter(cfg.CyclesTopic),
		log:    log,
	}
}

// PublishTradeExecuted emits a TRADE_EXECUTED event keyed by symbol.
func (p *Producer) PublishTradeExecuted(ctx context.Context, trade models.Trade) error {
	return p.publish(ctx, p.trades, trade.Symbol, Event{
		EventType: "TRADE_EXECUTED",
		Source:    eventSource,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Data:      trade,
	})
}

// PublishCycleCompleted emits a CYCLE_COMPLETED event keyed by cycle date.
func (p *Producer) PublishCycleCompleted(ctx context.Context, data CycleCompletedData) error {
	return p.publish(ctx, p.cycles, data.Date, Event{
		EventType: "CYCLE_COMPLETED",
		Source:    eventSource,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Data:      data,
	})
}

func (p *Producer) publish(ctx context.Context, writer *kafka.Writer, key string, event Event) error {
	value, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshaling %s event: %w", event.EventType, err)
	}
	if err := writer.WriteMessages(ctx, kafka.Message{Key: []byte(key), Value: value}); err != nil {
		return fmt.Errorf("publishing %s event: %w", event.EventType, err)
	}
	p.log.Debug("published event",
		zap.String("event_type", event.EventType), zap.String("key", key))
	return nil
}

// Close flushes and closes both writers.
func (p *Producer) Close() error {
	if err := p.trades.Close(); err != nil {
		return err
	}
	return p.cycles.Close()
}
