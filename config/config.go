package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Config holds all process configuration for the bot.
type Config struct {
	// Mode
	DryRun bool
	Debug  bool

	// Trading
	Symbols       []string
	InitialEquity decimal.Decimal

	// Fees and slippage (per side)
	TakerFeeRate decimal.Decimal // e.g. 0.0005 = 0.05%
	MakerFeeRate decimal.Decimal // e.g. 0.0002 = 0.02%
	SlippageRate decimal.Decimal // e.g. 0.0001 = 0.01%

	// Engine
	SignalEveryTicks int           // signal generator cadence, in ticks
	TickBufferSize   int           // per-symbol ring capacity
	TickChanCapacity int           // per-symbol channel, live mode
	LookbackSeconds  int           // indicator window
	MarketDeadline   time.Duration // per market order
	LimitDeadline    time.Duration // per limit order

	// Coin parameters
	CoinParamsPath string

	// Binance futures stream
	StreamURL string

	// Database
	DatabasePath string

	// Telegram
	TelegramToken  string
	TelegramChatID int64
}

// Load loads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{
		DryRun: getEnvBool("DRY_RUN", true),
		Debug:  getEnvBool("DEBUG", false),

		Symbols:       splitSymbols(getEnv("SYMBOLS", "BTCUSDT,ETHUSDT,SOLUSDT")),
		InitialEquity: getEnvDecimal("INITIAL_EQUITY", decimal.NewFromInt(10000)),

		TakerFeeRate: getEnvDecimal("TAKER_FEE_RATE", decimal.NewFromFloat(0.0005)),
		MakerFeeRate: getEnvDecimal("MAKER_FEE_RATE", decimal.NewFromFloat(0.0002)),
		SlippageRate: getEnvDecimal("SLIPPAGE_RATE", decimal.NewFromFloat(0.0001)),

		SignalEveryTicks: getEnvInt("SIGNAL_EVERY_TICKS", 10),
		TickBufferSize:   getEnvInt("TICK_BUFFER_SIZE", 10000),
		TickChanCapacity: getEnvInt("TICK_CHAN_CAPACITY", 1024),
		LookbackSeconds:  getEnvInt("LOOKBACK_SECONDS", 600),
		MarketDeadline:   getEnvDuration("MARKET_ORDER_DEADLINE", 5*time.Second),
		LimitDeadline:    getEnvDuration("LIMIT_ORDER_DEADLINE", 30*time.Second),

		CoinParamsPath: getEnv("COIN_PARAMS_PATH", "coin_params.yaml"),

		StreamURL: getEnv("BINANCE_STREAM_URL", "wss://fstream.binance.com/stream"),

		DatabasePath: getEnv("DATABASE_PATH", "data/straddlebot.db"),

		TelegramToken: os.Getenv("TELEGRAM_BOT_TOKEN"),
	}

	if chatID := os.Getenv("TELEGRAM_CHAT_ID"); chatID != "" {
		id, err := strconv.ParseInt(chatID, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid TELEGRAM_CHAT_ID: %w", err)
		}
		cfg.TelegramChatID = id
	}

	if len(cfg.Symbols) == 0 {
		return nil, fmt.Errorf("SYMBOLS must list at least one symbol")
	}
	if cfg.InitialEquity.LessThanOrEqual(decimal.Zero) {
		return nil, fmt.Errorf("INITIAL_EQUITY must be positive")
	}
	if cfg.SignalEveryTicks < 1 {
		return nil, fmt.Errorf("SIGNAL_EVERY_TICKS must be >= 1")
	}

	return cfg, nil
}

func splitSymbols(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(strings.ToUpper(p))
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Helper functions

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return value == "true" || value == "1" || value == "yes"
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getEnvDecimal(key string, defaultValue decimal.Decimal) decimal.Decimal {
	if value := os.Getenv(key); value != "" {
		if d, err := decimal.NewFromString(value); err == nil {
			return d
		}
	}
	return defaultValue
}
