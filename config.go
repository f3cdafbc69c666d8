package main

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config is the process configuration, read once at startup from the
// environment. A .env file is honored when present.
type Config struct {
	Port         string
	DatabasePath string
	RedisURL     string
	JWTSecret    string
	IsDebug      bool

	RiotAPIKey  string
	RiotBaseURL string
	RiotTimeout time.Duration

	ChainNetwork        string
	WalletRPCHost       string
	WalletRPCUser       string
	WalletRPCPass       string
	WalletRPCCert       string
	AnchorFeeAtoms      int64
	AnchorConfirmations int64
	AnchorPollInterval  time.Duration
	ExplorerURL         string

	LogSamplingTick  time.Duration
	LogSamplingAfter time.Duration
}

func envOr(key, def string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return def
}

func envInt64(key string, def int64) int64 {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseInt(value, 10, 64); err == nil {
			return parsed
		}
	}
	return def
}

func envDurationMs(key string, def time.Duration) time.Duration {
	if ms := envInt64(key, 0); ms > 0 {
		return time.Duration(ms) * time.Millisecond
	}
	return def
}

// ParseConfig loads the environment, tolerating a missing .env file.
func ParseConfig() Config {
	_ = godotenv.Load()

	return Config{
		Port:         envOr("PORT", "8090"),
		DatabasePath: envOr("DATABASE_PATH", "riftlink.db"),
		RedisURL:     envOr("REDIS_URL", ""),
		JWTSecret:    envOr("JWT_SECRET", ""),
		IsDebug:      os.Getenv("DEBUG") == "1" || os.Getenv("DEBUG") == "true",

		RiotAPIKey:  envOr("RIOT_API_KEY", ""),
		RiotBaseURL: envOr("RIOT_BASE_URL", ""),
		RiotTimeout: envDurationMs("RIOT_TIMEOUT_MS", 10*time.Second),

		ChainNetwork:        envOr("CHAIN_NETWORK", "testnet3"),
		WalletRPCHost:       envOr("WALLET_RPC_HOST", ""),
		WalletRPCUser:       envOr("WALLET_RPC_USER", ""),
		WalletRPCPass:       envOr("WALLET_RPC_PASS", ""),
		WalletRPCCert:       envOr("WALLET_RPC_CERT", ""),
		AnchorFeeAtoms:      envInt64("ANCHOR_FEE_ATOMS", 20000),
		AnchorConfirmations: envInt64("ANCHOR_CONFIRMATIONS", 2),
		AnchorPollInterval:  envDurationMs("ANCHOR_POLL_INTERVAL_MS", 15*time.Second),
		ExplorerURL:         envOr("EXPLORER_URL", "https://testnet.dcrdata.org/tx"),

		LogSamplingTick:  envDurationMs("LOG_SAMPLING_TICK_MS", 5*time.Second),
		LogSamplingAfter: envDurationMs("LOG_SAMPLING_AFTER_MS", 2*time.Second),
	}
}

// WalletConfigured reports whether every wallet RPC parameter was supplied.
// Partial wallet config is treated as absent; anchoring will refuse politely.
func (c Config) WalletConfigured() bool {
	return c.WalletRPCHost != "" && c.WalletRPCUser != "" && c.WalletRPCPass != "" && c.WalletRPCCert != ""
}
