package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Kafka    KafkaConfig
	Redis    RedisConfig
	Trading  TradingConfig
	Signals  SignalsConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port string
	Host string
}

// DatabaseConfig holds PostgreSQL configuration
type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
}

// KafkaConfig holds Kafka/Redpanda configuration
type KafkaConfig struct {
	Brokers       []string
	TradesTopic   string
	CyclesTopic   string
	UniverseTopic string
	GroupID       string
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
}

// TradingConfig holds the decision engine's risk parameters.
type TradingConfig struct {
	InitialCapital   float64
	MaxPositionSize  float64 // fraction of portfolio per symbol
	MaxPositions     int
	MinTradeSize     float64 // dollars
	TradingFee       float64 // flat fee per trade, dollars
	MinSignalScore   float64
	MinFundamental   float64
	StopLossPct      float64 // negative fraction, e.g. -0.15
	TakeProfitPct    float64
	ReversalScore    float64 // sell-side signal threshold, e.g. -0.6
	SellFundamental  float64
	MaxHoldShortDays int // 0 disables the holding-period exit
	MaxHoldMidDays   int
	MaxHoldLongDays  int
}

// SignalsConfig holds signal generation and blending parameters.
type SignalsConfig struct {
	EarningsWindowDays int
	VolatilityGate     float64 // z-scored vol ceiling for the mean-reversion recipe
	GapFillGate        float64 // gap-fill ratio ceiling for the gap recipe
	ICHorizonDays      int     // forward-return horizon for IC
	ICLookbackDays     int     // rolling IC window
	MinObservations    int     // minimum (score, return) pairs for a non-zero IC
	LongPct            float64
	ShortPct           float64
	MaxPosition        float64 // per-position weight cap in the target portfolio
}

// Load reads configuration from environment variables. A .env file in the
// working directory is applied first when present.
func Load() *Config {
	_ = godotenv.Load()

	return &Config{
		Server: ServerConfig{
			Port: getEnv("SERVER_PORT", "8082"),
			Host: getEnv("SERVER_HOST", "0.0.0.0"),
		},
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "postgres"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "quant"),
			Password: getEnv("DB_PASSWORD", "quant"),
			DBName:   getEnv("DB_NAME", "signal_engine"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		Kafka: KafkaConfig{
			Brokers:       parseBrokers(getEnv("KAFKA_BROKERS", "localhost:19092")),
			TradesTopic:   getEnv("KAFKA_TRADES_TOPIC", "trading.trades"),
			CyclesTopic:   getEnv("KAFKA_CYCLES_TOPIC", "trading.cycles"),
			UniverseTopic: getEnv("KAFKA_UNIVERSE_TOPIC", "trading.universe"),
			GroupID:       getEnv("KAFKA_GROUP_ID", "signal-engine"),
		},
		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnv("REDIS_PORT", "6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       0,
		},
		Trading: TradingConfig{
			InitialCapital:   getEnvFloat("INITIAL_CAPITAL", 100000),
			MaxPositionSize:  getEnvFloat("MAX_POSITION_SIZE", 0.05),
			MaxPositions:     getEnvInt("MAX_POSITIONS", 20),
			MinTradeSize:     getEnvFloat("MIN_TRADE_SIZE", 1000),
			TradingFee:       getEnvFloat("TRADING_FEE", 0),
			MinSignalScore:   getEnvFloat("MIN_SIGNAL_SCORE", 0.6),
			MinFundamental:   getEnvFloat("MIN_FUNDAMENTAL_SCORE", 0.4),
			StopLossPct:      getEnvFloat("STOP_LOSS_PCT", -0.15),
			TakeProfitPct:    getEnvFloat("TAKE_PROFIT_PCT", 0.30),
			ReversalScore:    getEnvFloat("REVERSAL_SCORE", -0.6),
			SellFundamental:  getEnvFloat("SELL_FUNDAMENTAL_SCORE", 0.3),
			MaxHoldShortDays: getEnvInt("MAX_HOLD_SHORT_DAYS", 14),
			MaxHoldMidDays:   getEnvInt("MAX_HOLD_MID_DAYS", 90),
			MaxHoldLongDays:  getEnvInt("MAX_HOLD_LONG_DAYS", 365),
		},
		Signals: SignalsConfig{
			EarningsWindowDays: getEnvInt("EARNINGS_WINDOW_DAYS", 2),
			VolatilityGate:     getEnvFloat("VOLATILITY_GATE", 2.5),
			GapFillGate:        getEnvFloat("GAP_FILL_GATE", 0.70),
			ICHorizonDays:      getEnvInt("IC_HORIZON_DAYS", 5),
			ICLookbackDays:     getEnvInt("IC_LOOKBACK_DAYS", 120),
			MinObservations:    getEnvInt("IC_MIN_OBSERVATIONS", 20),
			LongPct:            getEnvFloat("PORTFOLIO_LONG_PCT", 0.2),
			ShortPct:           getEnvFloat("PORTFOLIO_SHORT_PCT", 0.2),
			MaxPosition:        getEnvFloat("PORTFOLIO_MAX_POSITION", 0.03),
		},
	}
}

// ConnectionString returns the PostgreSQL connection string
func (d *DatabaseConfig) ConnectionString() string {
	return "postgres://" + d.User + ":" + d.Password + "@" + d.Host + ":" + d.Port + "/" + d.DBName + "?sslmode=" + d.SSLMode
}

// Address returns the Redis address in host:port format
func (r *RedisConfig) Address() string {
	return r.Host + ":" + r.Port
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

// parseBrokers splits a comma-separated broker list
func parseBrokers(brokers string) []string {
	parts := strings.Split(brokers, ",")
	result := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}
