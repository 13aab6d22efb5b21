// Package config consolidates every tunable of the pipeline into one
// immutable record loaded once at process start. Derived values are
// computed here and cached rather than recomputed on every access.
package config

import (
	"math"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"optionsdesk/apperrors"
	"optionsdesk/logger"
)

// Config is the single immutable configuration record. Nothing outside
// Load mutates it.
type Config struct {
	Environment string

	// Exchange time zone; every hours/cron check goes through this.
	Location *time.Location

	// Market hours (local to Location).
	MarketOpen         time.Duration // offset from local midnight
	MarketClose        time.Duration
	OpeningRangeEnd    time.Duration
	NewEntriesCutoff   time.Duration
	EODFinalization    time.Duration

	// Tunables, with documented defaults.
	TradingCapital       float64
	MaxRiskPerTradePct   float64
	MaxDailyLossPct      float64
	MaxTradesPerDay      int
	MaxConsecutiveLosses int
	DataBufferSize       int
	MinBufferFillPct     float64
	MaxDataStalenessSec  float64
	MaxLatencyMs         float64
	MinConfluenceScore   float64
	MinRiskReward         float64
	LotSize              int

	// Derived, cached once.
	MaxRiskAmount       float64 // TradingCapital * MaxRiskPerTradePct/100
	MaxDailyLossAmount  float64 // TradingCapital * MaxDailyLossPct/100
	MinBufferFillCount  int     // ceil(DataBufferSize * MinBufferFillPct/100)

	// API auth.
	JWTSigningKey        string
	TOTPIssuer           string
	TOTPSecret           string
	OperatorUser         string
	OperatorPasswordHash string // bcrypt

	DatabasePath string
	HTTPAddr     string
	MetricsAddr  string
}

// Load reads a .env file if present (development convenience), then
// environment variables, falling back to the documented defaults.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		logger.Debugf("no .env file loaded: %v", err)
	}

	loc, err := time.LoadLocation("Asia/Kolkata")
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		Environment:          getEnv("APP_ENV", "development"),
		Location:             loc,
		MarketOpen:           9*time.Hour + 15*time.Minute,
		MarketClose:          15*time.Hour + 30*time.Minute,
		OpeningRangeEnd:      9*time.Hour + 30*time.Minute,
		NewEntriesCutoff:     15 * time.Hour,
		EODFinalization:      15*time.Hour + 35*time.Minute,
		TradingCapital:       getEnvFloat("TRADING_CAPITAL", 500000),
		MaxRiskPerTradePct:   getEnvFloat("MAX_RISK_PER_TRADE_PCT", 1.0),
		MaxDailyLossPct:      getEnvFloat("MAX_DAILY_LOSS_PCT", 1.5),
		MaxTradesPerDay:      getEnvInt("MAX_TRADES_PER_DAY", 2),
		MaxConsecutiveLosses: getEnvInt("MAX_CONSECUTIVE_LOSSES", 2),
		DataBufferSize:       getEnvInt("DATA_BUFFER_SIZE", 100),
		MinBufferFillPct:     getEnvFloat("MIN_BUFFER_FILL_PCT", 80),
		MaxDataStalenessSec:  getEnvFloat("MAX_DATA_STALENESS_SECONDS", 5),
		MaxLatencyMs:         getEnvFloat("MAX_LATENCY_MS", 500),
		MinConfluenceScore:   getEnvFloat("MIN_CONFLUENCE_SCORE", 7.0),
		MinRiskReward:        getEnvFloat("MIN_RISK_REWARD", 2.0),
		LotSize:              getEnvInt("LOT_SIZE", 15),
		JWTSigningKey:        getEnv("JWT_SIGNING_KEY", "dev-signing-key-change-me"),
		TOTPIssuer:           getEnv("TOTP_ISSUER", "optionsdesk"),
		TOTPSecret:           getEnv("TOTP_SECRET", ""),
		OperatorUser:         getEnv("OPERATOR_USER", "operator"),
		OperatorPasswordHash: getEnv("OPERATOR_PASSWORD_HASH", ""),
		DatabasePath:         getEnv("DATABASE_PATH", "optionsdesk.db"),
		HTTPAddr:             getEnv("HTTP_ADDR", ":8080"),
		MetricsAddr:          getEnv("METRICS_ADDR", ":9090"),
	}

	cfg.MaxRiskAmount = cfg.TradingCapital * cfg.MaxRiskPerTradePct / 100
	cfg.MaxDailyLossAmount = cfg.TradingCapital * cfg.MaxDailyLossPct / 100
	cfg.MinBufferFillCount = int(math.Ceil(float64(cfg.DataBufferSize) * cfg.MinBufferFillPct / 100))

	return cfg, cfg.validate()
}

func (c *Config) validate() error {
	switch {
	case c.TradingCapital <= 0:
		return apperrors.New(apperrors.ConfigInvalid, "trading-capital must be positive")
	case c.DataBufferSize <= 0:
		return apperrors.New(apperrors.ConfigInvalid, "data-buffer-size must be positive")
	case c.MinBufferFillPct <= 0 || c.MinBufferFillPct > 100:
		return apperrors.New(apperrors.ConfigInvalid, "min-buffer-fill-pct must be in (0,100]")
	case c.LotSize <= 0:
		return apperrors.New(apperrors.ConfigInvalid, "lot-size must be positive")
	case c.MaxTradesPerDay <= 0:
		return apperrors.New(apperrors.ConfigInvalid, "max-trades-per-day must be positive")
	}
	return nil
}

func getEnv(key, def string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return def
}

func getEnvFloat(key string, def float64) float64 {
	if v, ok := os.LookupEnv(key); ok {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func getEnvInt(key string, def int) int {
	if v, ok := os.LookupEnv(key); ok {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

// Now returns the current time in the exchange's configured time zone.
// Every scheduling/hours decision must go through this, never
// time.Now() directly.
func (c *Config) Now() time.Time {
	return time.Now().In(c.Location)
}
