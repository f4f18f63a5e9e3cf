// Package config loads and validates process-wide configuration for the
// trading engine. Configuration is read once from the environment (and an
// optional .env file) at process start and handed out as an immutable
// value; nothing in this package mutates a Config after Load returns it.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"

	"github.com/aristath/strikewindow/internal/codes"
)

// Mode is the trading mode the process runs in.
type Mode string

const (
	ModePaper Mode = "PAPER"
	ModeLive  Mode = "LIVE"
)

// Credentials holds venue authentication material. Never logged directly;
// always pass through codes.Redact before any log/error surface.
type Credentials struct {
	APIKey         string
	APISecret      string
	Passphrase     string
	PrivateKey     string
	FunderAddress  string
}

// Config is the validated, immutable process configuration.
type Config struct {
	Mode        Mode
	DatabaseURL string
	Credentials Credentials
	StartingCapital decimal.Decimal
	LogLevel    string

	TickIntervalMs         int
	MinTimeRemainingMs     int
	InflightTimeoutMs      int
	GracefulTimeoutMs      int
	ModuleInitTimeoutMs    int
	StateUpdateIntervalMs  int
	QueryTimeoutMs         int
	SettlementGraceMs      int

	MaxExposureDollars  decimal.Decimal
	PositionSizeDollars decimal.Decimal
	MaxDrawdownPct      decimal.Decimal
	MaxDailyLossDollars decimal.Decimal
}

// Load reads configuration from the environment (and .env file, if
// present), applies defaults, and validates it. Any validation failure is a
// fatal startup error per spec.md §7.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Mode:        Mode(strings.ToUpper(getEnv("TRADING_MODE", "PAPER"))),
		DatabaseURL: getEnv("DATABASE_URL", ""),
		Credentials: Credentials{
			APIKey:        getEnv("POLYMARKET_API_KEY", ""),
			APISecret:     getEnv("POLYMARKET_API_SECRET", ""),
			Passphrase:    getEnv("POLYMARKET_PASSPHRASE", ""),
			PrivateKey:    getEnv("POLYMARKET_PRIVATE_KEY", ""),
			FunderAddress: getEnv("POLYMARKET_FUNDER_ADDRESS", ""),
		},
		StartingCapital: getEnvAsDecimal("STARTING_CAPITAL", decimal.NewFromInt(1000)),
		LogLevel:        getEnv("LOG_LEVEL", "info"),

		TickIntervalMs:        getEnvAsInt("TICK_INTERVAL_MS", 1000),
		MinTimeRemainingMs:    getEnvAsInt("MIN_TIME_REMAINING_MS", 30_000),
		InflightTimeoutMs:     getEnvAsInt("INFLIGHT_TIMEOUT_MS", 10_000),
		GracefulTimeoutMs:     getEnvAsInt("GRACEFUL_TIMEOUT_MS", 3000),
		ModuleInitTimeoutMs:   getEnvAsInt("MODULE_INIT_TIMEOUT_MS", 10_000),
		StateUpdateIntervalMs: getEnvAsInt("STATE_UPDATE_INTERVAL_MS", 5000),
		QueryTimeoutMs:        getEnvAsInt("QUERY_TIMEOUT_MS", 5000),
		SettlementGraceMs:     getEnvAsInt("SETTLEMENT_GRACE_MS", 15_000),

		MaxExposureDollars:  getEnvAsDecimal("MAX_EXPOSURE_DOLLARS", decimal.NewFromInt(500)),
		PositionSizeDollars: getEnvAsDecimal("POSITION_SIZE_DOLLARS", decimal.NewFromInt(50)),
		MaxDrawdownPct:      getEnvAsDecimal("MAX_DRAWDOWN_PCT", decimal.NewFromFloat(0.2)),
		MaxDailyLossDollars: getEnvAsDecimal("MAX_DAILY_LOSS_DOLLARS", decimal.NewFromInt(200)),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate enforces every startup constraint in spec.md §6. It never
// includes credential values in the returned error.
func (c *Config) Validate() error {
	if c.Mode != ModePaper && c.Mode != ModeLive {
		return codes.New(codes.ConfigInvalid, "TRADING_MODE must be PAPER or LIVE", map[string]any{"value": string(c.Mode)})
	}

	if c.Mode == ModeLive && getEnv("CONFIRM_LIVE_TRADING", "") != "true" {
		return codes.New(codes.ConfigInvalid, "LIVE mode requires CONFIRM_LIVE_TRADING=true", nil)
	}

	if !strings.HasPrefix(c.DatabaseURL, "postgres://") && !strings.HasPrefix(c.DatabaseURL, "postgresql://") {
		return codes.New(codes.ConfigInvalid, "DATABASE_URL must use postgres:// or postgresql://", nil)
	}

	if c.Mode == ModeLive {
		if !hasSecureSSLMode(c.DatabaseURL) {
			return codes.New(codes.ConfigInvalid, "LIVE mode requires sslmode=require|verify-ca|verify-full or ssl=true", nil)
		}
		if c.Credentials.APIKey == "" || c.Credentials.APISecret == "" ||
			c.Credentials.Passphrase == "" || c.Credentials.PrivateKey == "" ||
			c.Credentials.FunderAddress == "" {
			return codes.New(codes.CredentialsMissing, "LIVE mode requires all POLYMARKET_* credentials", nil)
		}
	}

	if c.StartingCapital.IsNegative() {
		return codes.New(codes.ConfigInvalid, "STARTING_CAPITAL must be >= 0", nil)
	}

	if c.MaxExposureDollars.LessThanOrEqual(c.PositionSizeDollars) {
		return codes.New(codes.ConfigInvalid, "MAX_EXPOSURE_DOLLARS must exceed POSITION_SIZE_DOLLARS", nil)
	}

	return nil
}

func hasSecureSSLMode(dbURL string) bool {
	lower := strings.ToLower(dbURL)
	for _, mode := range []string{"sslmode=require", "sslmode=verify-ca", "sslmode=verify-full", "ssl=true"} {
		if strings.Contains(lower, mode) {
			return true
		}
	}
	return false
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsDecimal(key string, defaultValue decimal.Decimal) decimal.Decimal {
	if value := os.Getenv(key); value != "" {
		if d, err := decimal.NewFromString(value); err == nil {
			return d
		}
	}
	return defaultValue
}

// Durations converts the millisecond config fields to time.Duration for
// convenience at call sites.
func (c *Config) TickInterval() time.Duration      { return time.Duration(c.TickIntervalMs) * time.Millisecond }
func (c *Config) MinTimeRemaining() time.Duration   { return time.Duration(c.MinTimeRemainingMs) * time.Millisecond }
func (c *Config) InflightTimeout() time.Duration    { return time.Duration(c.InflightTimeoutMs) * time.Millisecond }
func (c *Config) GracefulTimeout() time.Duration    { return time.Duration(c.GracefulTimeoutMs) * time.Millisecond }
func (c *Config) ModuleInitTimeout() time.Duration  { return time.Duration(c.ModuleInitTimeoutMs) * time.Millisecond }
func (c *Config) StateUpdateInterval() time.Duration { return time.Duration(c.StateUpdateIntervalMs) * time.Millisecond }
func (c *Config) QueryTimeout() time.Duration       { return time.Duration(c.QueryTimeoutMs) * time.Millisecond }
func (c *Config) SettlementGrace() time.Duration    { return time.Duration(c.SettlementGraceMs) * time.Millisecond }
