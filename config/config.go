package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	MarketDataConfig MarketDataConfig `json:"marketdata"`
	AnalysisConfig   AnalysisConfig   `json:"analysis"`
	ServerConfig     ServerConfig     `json:"server"`
	RedisConfig      RedisConfig      `json:"redis"`
	LoggingConfig    LoggingConfig    `json:"logging"`
	FeedConfig       FeedConfig       `json:"feed"`
}

// MarketDataConfig holds exchange REST settings.
type MarketDataConfig struct {
	BaseURL        string        `json:"base_url"`
	RequestTimeout time.Duration `json:"request_timeout"`
	MockMode       bool          `json:"mock_mode"`    // use simulated data when the exchange is unreachable
	MockSymbols    []string      `json:"mock_symbols"` // symbols the mock provider is seeded with
}

// AnalysisConfig holds the pipeline defaults the API falls back to.
type AnalysisConfig struct {
	DefaultInterval  string  `json:"default_interval"` // e.g. "15m", "1h"
	DefaultLimit     int     `json:"default_limit"`    // candles fetched per analysis
	SwingWindow      int     `json:"swing_window"`
	ClusterTolerance float64 `json:"cluster_tolerance"` // percent, for support/resistance merging
	ATRPeriod        int     `json:"atr_period"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port            int      `json:"port"`
	Host            string   `json:"host"`
	ProductionMode  bool     `json:"production_mode"`
	AllowedOrigins  []string `json:"allowed_origins"`
	ShutdownTimeout int      `json:"shutdown_timeout"` // seconds
}

// RedisConfig holds Redis settings for the market data cache.
type RedisConfig struct {
	Enabled  bool   `json:"enabled"`
	Address  string `json:"address"`
	Password string `json:"password"`
	DB       int    `json:"db"`
	PoolSize int    `json:"pool_size"`
}

type LoggingConfig struct {
	Level  string `json:"level"`  // debug, info, warn, error
	Output string `json:"output"` // stdout, stderr, or file path
	Pretty bool   `json:"pretty"` // console writer instead of JSON
}

// FeedConfig holds live tick stream settings.
type FeedConfig struct {
	Enabled        bool          `json:"enabled"`
	StreamURL      string        `json:"stream_url"`
	Symbol         string        `json:"symbol"`
	ReconnectDelay time.Duration `json:"reconnect_delay"`
}

func Load() (*Config, error) {
	// First try to load base config from file
	cfg, err := loadFromFile("config.json")
	if err != nil {
		// If no config file, start with empty config
		cfg = &Config{}
	}

	// Apply environment variable overrides (these take precedence)
	applyEnvOverrides(cfg)

	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	// Market data config
	cfg.MarketDataConfig.BaseURL = getEnvOrDefault("EXCHANGE_BASE_URL", cfg.MarketDataConfig.BaseURL)
	if cfg.MarketDataConfig.BaseURL == "" {
		cfg.MarketDataConfig.BaseURL = "https://api.binance.com"
	}
	cfg.MarketDataConfig.RequestTimeout = getEnvDurationOrDefault("EXCHANGE_REQUEST_TIMEOUT", 10*time.Second)
	cfg.MarketDataConfig.MockMode = getEnvOrDefault("MOCK_MODE", "false") == "true"
	if symbols := os.Getenv("MOCK_SYMBOLS"); symbols != "" {
		cfg.MarketDataConfig.MockSymbols = strings.Split(symbols, ",")
	}
	if len(cfg.MarketDataConfig.MockSymbols) == 0 {
		cfg.MarketDataConfig.MockSymbols = []string{"BTCUSDT"}
	}

	// Analysis config
	cfg.AnalysisConfig.DefaultInterval = getEnvOrDefault("ANALYSIS_DEFAULT_INTERVAL", "1h")
	cfg.AnalysisConfig.DefaultLimit = getEnvIntOrDefault("ANALYSIS_DEFAULT_LIMIT", 500)
	cfg.AnalysisConfig.SwingWindow = getEnvIntOrDefault("ANALYSIS_SWING_WINDOW", 5)
	cfg.AnalysisConfig.ClusterTolerance = getEnvFloatOrDefault("ANALYSIS_CLUSTER_TOLERANCE", 1.0)
	cfg.AnalysisConfig.ATRPeriod = getEnvIntOrDefault("ANALYSIS_ATR_PERIOD", 14)

	// Server config
	cfg.ServerConfig.Port = getEnvIntOrDefault("WEB_PORT", 8080)
	cfg.ServerConfig.Host = getEnvOrDefault("WEB_HOST", "0.0.0.0")
	cfg.ServerConfig.ProductionMode = getEnvOrDefault("PRODUCTION_MODE", "false") == "true"
	if origins := os.Getenv("SERVER_ALLOWED_ORIGINS"); origins != "" {
		cfg.ServerConfig.AllowedOrigins = strings.Split(origins, ",")
	}
	cfg.ServerConfig.ShutdownTimeout = getEnvIntOrDefault("SERVER_SHUTDOWN_TIMEOUT", 10)

	// Redis config
	cfg.RedisConfig.Enabled = getEnvOrDefault("REDIS_ENABLED", strconv.FormatBool(cfg.RedisConfig.Enabled)) == "true"
	cfg.RedisConfig.Address = getEnvOrDefault("REDIS_ADDRESS", cfg.RedisConfig.Address)
	if cfg.RedisConfig.Address == "" {
		cfg.RedisConfig.Address = "localhost:6379"
	}
	cfg.RedisConfig.Password = getEnvOrDefault("REDIS_PASSWORD", cfg.RedisConfig.Password)
	cfg.RedisConfig.DB = getEnvIntOrDefault("REDIS_DB", cfg.RedisConfig.DB)
	cfg.RedisConfig.PoolSize = getEnvIntOrDefault("REDIS_POOL_SIZE", 10)

	// Logging config
	cfg.LoggingConfig.Level = getEnvOrDefault("LOG_LEVEL", "info")
	cfg.LoggingConfig.Output = getEnvOrDefault("LOG_OUTPUT", "stdout")
	cfg.LoggingConfig.Pretty = getEnvOrDefault("LOG_PRETTY", "false") == "true"

	// Feed config
	cfg.FeedConfig.Enabled = getEnvOrDefault("FEED_ENABLED", strconv.FormatBool(cfg.FeedConfig.Enabled)) == "true"
	cfg.FeedConfig.StreamURL = getEnvOrDefault("FEED_STREAM_URL", cfg.FeedConfig.StreamURL)
	cfg.FeedConfig.Symbol = getEnvOrDefault("FEED_SYMBOL", cfg.FeedConfig.Symbol)
	cfg.FeedConfig.ReconnectDelay = getEnvDurationOrDefault("FEED_RECONNECT_DELAY", 5*time.Second)
}

func loadFromFile(filename string) (*Config, error) {
	file, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	var config Config
	if err := json.Unmarshal(file, &config); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}

	return &config, nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvFloatOrDefault(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}

func getEnvDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
