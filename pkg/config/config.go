package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application
// ⭐ SSOT: 모든 환경변수는 여기서만 읽음
type Config struct {
	Env string // development, staging, production

	// Database
	Database DatabaseConfig

	// Redis
	Redis RedisConfig

	// External APIs
	MarketData MarketDataConfig
	Macro      MacroConfig
	Research   ResearchConfig

	// Fetch gateway
	Gateway GatewayConfig

	// Results API
	APIPort string

	// Logging
	LogLevel  string
	LogFormat string
}

// DatabaseConfig holds PostgreSQL configuration
type DatabaseConfig struct {
	URL string

	// Connection Pool
	MaxConns        int
	MinConns        int
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
}

// RedisConfig holds Redis configuration (snapshot cache)
type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
	Enabled  bool
}

// MarketDataConfig holds the options/quote/fundamentals provider settings
type MarketDataConfig struct {
	APIKey  string
	BaseURL string
}

// MacroConfig holds the macro series provider settings
type MacroConfig struct {
	APIKey    string
	BaseURL   string
	SeriesIDs []string // 기본: CPI, FEDFUNDS, DGS10
}

// ResearchConfig holds the text/news search provider settings
type ResearchConfig struct {
	APIKey  string
	BaseURL string
}

// GatewayConfig bounds all outbound calls
// ⭐ SSOT: 동시성/호출 속도 한도는 여기서만 정의
type GatewayConfig struct {
	MaxInFlight    int     // 동시 호출 상한 (기본: 2)
	CallsPerSecond float64 // 초당 호출 상한 (기본: 2)
	MaxRetries     int     // 재시도 예산 (기본: 3)
	InitialDelay   time.Duration
	MaxDelay       time.Duration
}

// Load reads configuration from environment variables
// ⭐ SSOT: 이 함수만 os.Getenv()를 호출함
func Load() (*Config, error) {
	loadEnvFile()

	cfg := &Config{
		Env: getEnv("ENV", "development"),

		Database: DatabaseConfig{
			URL:             getEnv("DATABASE_URL", ""),
			MaxConns:        getEnvAsInt("DB_MAX_CONNS", 10),
			MinConns:        getEnvAsInt("DB_MIN_CONNS", 2),
			MaxConnLifetime: getEnvAsDuration("DB_MAX_CONN_LIFETIME", "1h"),
			MaxConnIdleTime: getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", "30m"),
		},

		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnv("REDIS_PORT", "6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
			Enabled:  getEnvAsBool("REDIS_ENABLED", false),
		},

		MarketData: MarketDataConfig{
			APIKey:  getEnv("MARKETDATA_API_KEY", ""),
			BaseURL: getEnv("MARKETDATA_BASE_URL", "https://api.marketdata.example.com"),
		},

		Macro: MacroConfig{
			APIKey:  getEnv("MACRO_API_KEY", ""),
			BaseURL: getEnv("MACRO_BASE_URL", "https://api.macroseries.example.com"),
			SeriesIDs: []string{
				getEnv("MACRO_SERIES_CPI", "CPIAUCSL"),
				getEnv("MACRO_SERIES_FEDFUNDS", "FEDFUNDS"),
				getEnv("MACRO_SERIES_10Y", "DGS10"),
			},
		},

		Research: ResearchConfig{
			APIKey:  getEnv("RESEARCH_API_KEY", ""),
			BaseURL: getEnv("RESEARCH_BASE_URL", "https://api.research.example.com"),
		},

		Gateway: GatewayConfig{
			MaxInFlight:    getEnvAsInt("GATEWAY_MAX_IN_FLIGHT", 2),
			CallsPerSecond: getEnvAsFloat("GATEWAY_CALLS_PER_SECOND", 2.0),
			MaxRetries:     getEnvAsInt("GATEWAY_MAX_RETRIES", 3),
			InitialDelay:   getEnvAsDuration("GATEWAY_INITIAL_DELAY", "1s"),
			MaxDelay:       getEnvAsDuration("GATEWAY_MAX_DELAY", "10s"),
		},

		APIPort: getEnv("API_PORT", "8090"),

		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "json"),
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// validate checks if required configuration values are set
func (c *Config) validate() error {
	if c.Env != "development" && c.Env != "staging" && c.Env != "production" {
		return fmt.Errorf("ENV must be one of: development, staging, production")
	}
	if c.Gateway.MaxInFlight < 1 {
		return fmt.Errorf("GATEWAY_MAX_IN_FLIGHT must be >= 1")
	}
	if c.Gateway.CallsPerSecond <= 0 {
		return fmt.Errorf("GATEWAY_CALLS_PER_SECOND must be > 0")
	}
	return nil
}

// Helper functions (private, only used within this file)

// loadEnvFile tries to load .env from multiple locations
func loadEnvFile() {
	paths := []string{
		".env",
	}

	// Also try relative to executable
	if exe, err := os.Executable(); err == nil {
		exeDir := filepath.Dir(exe)
		paths = append(paths,
			filepath.Join(exeDir, ".env"),
			filepath.Join(exeDir, "..", ".env"),
		)
	}

	for _, path := range paths {
		if _, err := os.Stat(path); err == nil {
			_ = godotenv.Load(path)
			return
		}
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}

	return value
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return defaultValue
	}

	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}

	return value
}

func getEnvAsDuration(key string, defaultValue string) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		valueStr = defaultValue
	}

	duration, err := time.ParseDuration(valueStr)
	if err != nil {
		duration, _ = time.ParseDuration(defaultValue)
	}

	return duration
}
