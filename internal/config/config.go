package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const (
	defaultAppName        = "MNEEChat"
	defaultAppEnv         = "development"
	defaultPort           = "3000"
	defaultLogLevel       = "info"
	defaultNetwork        = "base-sepolia"
	defaultShutdownDelay  = 10 * time.Second
	defaultKeeperInterval = 60 * time.Second
	defaultReceiptTimeout = 30 * time.Second
	defaultRateLimit      = 10
	defaultRateWindow     = 60 * time.Second
	defaultFaucetAmount   = "10"
)

// Config captures application runtime configuration loaded from environment
// variables. DATABASE_URL and REDIS_URL are optional: without them the
// engine degrades to in-memory identity persistence and rate limiting.
type Config struct {
	AppName  string
	AppEnv   string
	Port     string
	LogLevel string

	DatabaseURL string
	RedisURL    string

	// Ledger endpoint and contract addresses. Empty request/lock/schedule
	// addresses disable the matching feature.
	RPCURL          string
	Network         string
	TokenAddress    string
	RequestAddress  string
	LockAddress     string
	ScheduleAddress string
	ExplorerBaseURL string
	ReceiptTimeout  time.Duration

	// Custody: a provider URL selects the remote backend, otherwise keys are
	// derived locally from WalletSalt.
	CustodyURL    string
	CustodyAPIKey string
	WalletSalt    string

	// SponsorIdentity is the phone identity whose wallet funds keeper
	// executions and the fallback faucet.
	SponsorIdentity string
	FaucetAmount    decimal.Decimal

	TwilioAccountSID string
	TwilioAuthToken  string
	TwilioFrom       string

	GeminiAPIKey string
	GeminiModel  string

	KeeperInterval  time.Duration
	RateLimit       int
	RateLimitWindow time.Duration
	ShutdownPeriod  time.Duration
}

// Load reads configuration values from the environment.
func Load() (Config, error) {
	cfg := Config{
		AppName:  getEnv("APP_NAME", defaultAppName),
		AppEnv:   getEnv("APP_ENV", defaultAppEnv),
		Port:     getEnv("PORT", defaultPort),
		LogLevel: strings.ToLower(getEnv("LOG_LEVEL", defaultLogLevel)),

		DatabaseURL: os.Getenv("DATABASE_URL"),
		RedisURL:    os.Getenv("REDIS_URL"),

		RPCURL:          os.Getenv("RPC_URL"),
		Network:         getEnv("NETWORK", defaultNetwork),
		TokenAddress:    os.Getenv("MNEE_TOKEN_ADDRESS"),
		RequestAddress:  os.Getenv("PAYMENT_REQUEST_ADDRESS"),
		LockAddress:     os.Getenv("SAVINGS_LOCK_ADDRESS"),
		ScheduleAddress: os.Getenv("SCHEDULED_PAYMENT_ADDRESS"),
		ExplorerBaseURL: os.Getenv("EXPLORER_BASE_URL"),
		ReceiptTimeout:  defaultReceiptTimeout,

		CustodyURL:    os.Getenv("CUSTODY_API_URL"),
		CustodyAPIKey: os.Getenv("CUSTODY_API_KEY"),
		WalletSalt:    os.Getenv("WALLET_SALT"),

		SponsorIdentity: os.Getenv("SPONSOR_IDENTITY"),

		TwilioAccountSID: os.Getenv("TWILIO_ACCOUNT_SID"),
		TwilioAuthToken:  os.Getenv("TWILIO_AUTH_TOKEN"),
		TwilioFrom:       os.Getenv("TWILIO_WHATSAPP_FROM"),

		GeminiAPIKey: os.Getenv("GEMINI_API_KEY"),
		GeminiModel:  os.Getenv("GEMINI_MODEL"),

		KeeperInterval:  defaultKeeperInterval,
		RateLimit:       defaultRateLimit,
		RateLimitWindow: defaultRateWindow,
		ShutdownPeriod:  defaultShutdownDelay,
	}

	var err error
	if cfg.KeeperInterval, err = secondsEnv("KEEPER_INTERVAL_SECONDS", defaultKeeperInterval); err != nil {
		return Config{}, err
	}
	if cfg.ReceiptTimeout, err = secondsEnv("RECEIPT_TIMEOUT_SECONDS", defaultReceiptTimeout); err != nil {
		return Config{}, err
	}
	if cfg.RateLimitWindow, err = secondsEnv("RATE_LIMIT_WINDOW_SECONDS", defaultRateWindow); err != nil {
		return Config{}, err
	}
	if cfg.ShutdownPeriod, err = secondsEnv("SHUTDOWN_TIMEOUT_SECONDS", defaultShutdownDelay); err != nil {
		return Config{}, err
	}

	if v := os.Getenv("RATE_LIMIT"); v != "" {
		limit, err := strconv.Atoi(v)
		if err != nil || limit <= 0 {
			return Config{}, fmt.Errorf("invalid RATE_LIMIT: %q", v)
		}
		cfg.RateLimit = limit
	}

	amount := getEnv("FAUCET_AMOUNT", defaultFaucetAmount)
	if cfg.FaucetAmount, err = decimal.NewFromString(amount); err != nil {
		return Config{}, fmt.Errorf("invalid FAUCET_AMOUNT: %w", err)
	}

	if cfg.RPCURL == "" {
		return Config{}, fmt.Errorf("RPC_URL must be set")
	}
	if cfg.TokenAddress == "" {
		return Config{}, fmt.Errorf("MNEE_TOKEN_ADDRESS must be set")
	}
	if cfg.CustodyURL == "" && cfg.WalletSalt == "" {
		return Config{}, fmt.Errorf("either CUSTODY_API_URL or WALLET_SALT must be set")
	}

	return cfg, nil
}

// Address returns the listen address in the format Fiber expects.
func (c Config) Address() string {
	if strings.HasPrefix(c.Port, ":") {
		return c.Port
	}
	return fmt.Sprintf(":%s", c.Port)
}

// TwilioConfigured reports whether outbound messages can use the Twilio
// channel instead of the logging notifier.
func (c Config) TwilioConfigured() bool {
	return c.TwilioAccountSID != "" && c.TwilioAuthToken != "" && c.TwilioFrom != ""
}

func secondsEnv(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	seconds, err := strconv.Atoi(v)
	if err != nil || seconds <= 0 {
		return 0, fmt.Errorf("invalid %s: %q", key, v)
	}
	return time.Duration(seconds) * time.Second, nil
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}
