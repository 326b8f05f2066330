package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Environment string
	Server      ServerConfig
	Gate        GateConfig
	RateLimit   RateLimitConfig
	Ledger      LedgerConfig
	Session     SessionConfig
	Database    DatabaseConfig
	Redis       RedisConfig
	Log         LogConfig
}

type ServerConfig struct {
	Port         int
	Host         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	// Ceiling for auxiliary endpoints (leaderboard, mock login), per client IP.
	AuxRequestsPerMinute int
}

// GateConfig holds the plausibility and session thresholds.
type GateConfig struct {
	MinSessionAge time.Duration
	MaxSessionAge time.Duration

	MaxScore              int64
	MinDuration           time.Duration
	MaxDuration           time.Duration
	MaxScoreRate          float64 // points per second
	MaxTxPerSubmission    int64
	MaxTimestampSkew      time.Duration
	VictoryKinds          []string
	ScoreFormulaTolerance float64

	// ExposeValidationDetails echoes exact thresholds back to the client.
	ExposeValidationDetails bool
}

type RateLimitRuleConfig struct {
	Requests   int
	Window     time.Duration
	MinSpacing time.Duration
}

type RateLimitConfig struct {
	Origin RateLimitRuleConfig
	Wallet RateLimitRuleConfig
	// TrustedProxies is passed to gin; when empty, X-Forwarded-For is ignored.
	TrustedProxies []string
}

type LedgerConfig struct {
	RPCURL          string
	ContractAddress string
	PrivateKey      string
	ChainID         int64
	SubmitTimeout   time.Duration
	ReadTimeout     time.Duration
	MaxTPS          float64
	LookbackBlocks  uint64
	MaxScanPlayers  int
	LeaderboardSize int
	LeaderboardTTL  time.Duration
}

type SessionConfig struct {
	Secret        string
	Issuer        string
	TTL           time.Duration
	RequireSigned bool
	EnableMock    bool
}

type DatabaseConfig struct {
	DSN            string
	MaxConnections int
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	Prefix   string
	StatsTTL time.Duration
}

type LogConfig struct {
	Level string
}

func Load() (*Config, error) {
	// Загрузка .env файла (если существует)
	_ = godotenv.Load()

	env := getEnv("ENVIRONMENT", "development")
	dev := env != "production"

	cfg := &Config{
		Environment: env,
		Server: ServerConfig{
			Port:                 getEnvAsInt("SERVER_PORT", 8080),
			Host:                 getEnv("SERVER_HOST", "0.0.0.0"),
			ReadTimeout:          getEnvAsDuration("SERVER_READ_TIMEOUT", 15*time.Second),
			WriteTimeout:         getEnvAsDuration("SERVER_WRITE_TIMEOUT", 45*time.Second),
			AuxRequestsPerMinute: getEnvAsInt("AUX_REQUESTS_PER_MINUTE", 100),
		},
		Gate: GateConfig{
			MinSessionAge:           getEnvAsDuration("MIN_SESSION_AGE", 30*time.Second),
			MaxSessionAge:           getEnvAsDuration("MAX_SESSION_AGE", 24*time.Hour),
			MaxScore:                int64(getEnvAsInt("MAX_SCORE", 10000)),
			MinDuration:             getEnvAsDuration("MIN_DURATION", 5*time.Second),
			MaxDuration:             getEnvAsDuration("MAX_DURATION", 5*time.Minute),
			MaxScoreRate:            getEnvAsFloat("MAX_SCORE_RATE", 1000),
			MaxTxPerSubmission:      int64(getEnvAsInt("MAX_TX_PER_SUBMISSION", 10)),
			MaxTimestampSkew:        getEnvAsDuration("MAX_TIMESTAMP_SKEW", 5*time.Minute),
			VictoryKinds:            getEnvAsList("VICTORY_KINDS", []string{"boss_clear"}),
			ScoreFormulaTolerance:   getEnvAsFloat("SCORE_FORMULA_TOLERANCE", 0),
			ExposeValidationDetails: getEnvAsBool("EXPOSE_VALIDATION_DETAILS", dev),
		},
		RateLimit: RateLimitConfig{
			Origin: RateLimitRuleConfig{
				Requests:   getEnvAsInt("ORIGIN_RATE_LIMIT", 3),
				Window:     getEnvAsDuration("ORIGIN_RATE_WINDOW", time.Minute),
				MinSpacing: getEnvAsDuration("ORIGIN_MIN_SPACING", 10*time.Second),
			},
			Wallet: RateLimitRuleConfig{
				Requests:   getEnvAsInt("WALLET_RATE_LIMIT", 5),
				Window:     getEnvAsDuration("WALLET_RATE_WINDOW", time.Minute),
				MinSpacing: getEnvAsDuration("WALLET_MIN_SPACING", 0),
			},
			TrustedProxies: getEnvAsList("TRUSTED_PROXIES", nil),
		},
		Ledger: LedgerConfig{
			RPCURL:          getEnv("LEDGER_RPC_URL", "https://testnet-rpc.monad.xyz"),
			ContractAddress: getEnv("LEDGER_CONTRACT_ADDRESS", "0xceCBFF203C8B6044F52CE23D914A1bfD997541A4"),
			PrivateKey:      getEnv("GAME_SERVER_PRIVATE_KEY", ""),
			ChainID:         int64(getEnvAsInt("LEDGER_CHAIN_ID", 10143)),
			SubmitTimeout:   getEnvAsDuration("LEDGER_SUBMIT_TIMEOUT", 20*time.Second),
			ReadTimeout:     getEnvAsDuration("LEDGER_READ_TIMEOUT", 15*time.Second),
			MaxTPS:          getEnvAsFloat("LEDGER_MAX_TPS", 5),
			LookbackBlocks:  uint64(getEnvAsInt("LEDGER_LOOKBACK_BLOCKS", 1000)),
			MaxScanPlayers:  getEnvAsInt("LEADERBOARD_MAX_SCAN", 100),
			LeaderboardSize: getEnvAsInt("LEADERBOARD_SIZE", 50),
			LeaderboardTTL:  getEnvAsDuration("LEADERBOARD_CACHE_TTL", 15*time.Second),
		},
		Session: SessionConfig{
			Secret:        getEnv("SESSION_SECRET", ""),
			Issuer:        getEnv("SESSION_ISSUER", "score-gate"),
			TTL:           getEnvAsDuration("SESSION_TTL", 24*time.Hour),
			RequireSigned: getEnvAsBool("REQUIRE_SIGNED_SESSION", false),
			EnableMock:    getEnvAsBool("ENABLE_MOCK_AUTH", dev),
		},
		Database: DatabaseConfig{
			DSN:            getEnv("DATABASE_DSN", ""),
			MaxConnections: getEnvAsInt("DATABASE_MAX_CONNECTIONS", 10),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", ""),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
			Prefix:   getEnv("REDIS_PREFIX", "gate"),
			StatsTTL: getEnvAsDuration("REDIS_STATS_TTL", 24*time.Hour),
		},
		Log: LogConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

func (c *Config) validate() error {
	if c.RateLimit.Origin.Requests <= 0 || c.RateLimit.Origin.Window <= 0 {
		return fmt.Errorf("origin rate limit must have positive values")
	}
	if c.RateLimit.Wallet.Requests <= 0 || c.RateLimit.Wallet.Window <= 0 {
		return fmt.Errorf("wallet rate limit must have positive values")
	}
	if c.Gate.MinDuration > c.Gate.MaxDuration {
		return fmt.Errorf("MIN_DURATION must not exceed MAX_DURATION")
	}
	if c.Gate.MaxScore < 0 || c.Gate.MaxTxPerSubmission < 0 {
		return fmt.Errorf("score and tx ceilings must be >= 0")
	}
	if c.Gate.ScoreFormulaTolerance < 0 {
		return fmt.Errorf("SCORE_FORMULA_TOLERANCE must be >= 0")
	}
	if c.Session.RequireSigned && c.Session.Secret == "" {
		return fmt.Errorf("SESSION_SECRET is required when REQUIRE_SIGNED_SESSION=true")
	}
	if c.IsProduction() && c.Session.EnableMock {
		return fmt.Errorf("mock auth cannot be enabled in production")
	}
	if c.Ledger.SubmitTimeout <= 0 {
		return fmt.Errorf("LEDGER_SUBMIT_TIMEOUT must be > 0")
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseFloat(valueStr, 64); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsList(key string, defaultValue []string) []string {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	var out []string
	for _, item := range strings.Split(valueStr, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
