// Package params carries the host-supplied constants the exchange core
// treats as external: storage pricing, default market parameters, and
// the view/API server's bind address.
package params

import (
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Host carries the constants the spec's "environment" section treats
// as supplied by the runtime rather than hardcoded.
type Host struct {
	// StorageByteCost is the native-balance cost per persisted byte,
	// used throughout the storage-balance discipline.
	StorageByteCost uint64
	// OwnerAccountID/ContractAccountID are hex addresses (types.AccountID's
	// underlying go-ethereum representation), not NEAR-style account
	// strings, since the exchange's AccountID is common.Address.
	OwnerAccountID    string
	ContractAccountID string
}

// Market carries the defaults applied to a newly created market before
// its owner overrides them via set_market_bid_window / ask_window.
type Market struct {
	DefaultTakerFeeBps     uint16
	DefaultMakerRebateBps  uint16
	DefaultMinimumBidBps   uint32
	DefaultMaximumAskBps   uint32
	DefaultMaxOrdersPerAcc uint8
}

// Server carries the view/API server's bind address and the data
// directory for the Pebble store.
type Server struct {
	ListenAddr string
	DBPath     string
}

type Config struct {
	Host   Host
	Market Market
	Server Server
}

func Default() Config {
	return Config{
		Host: Host{
			StorageByteCost:   10_000_000_000_000_000_000, // yoctoNEAR per byte
			OwnerAccountID:    "0x000000000000000000000000000000000000A1",
			ContractAccountID: "0x000000000000000000000000000000000000Ad",
		},
		Market: Market{
			DefaultTakerFeeBps:     30, // 0.3%
			DefaultMakerRebateBps:  5,  // 0.05%
			DefaultMinimumBidBps:   1_000,
			DefaultMaximumAskBps:   300_000,
			DefaultMaxOrdersPerAcc: 20,
		},
		Server: Server{
			ListenAddr: ":8089",
			DBPath:     "./data/exchange.db",
		},
	}
}

// LoadFromEnv loads configuration from a .env file (if present) and
// environment variables. Priority: ENV > .env file > defaults.
func LoadFromEnv(envPath string) Config {
	cfg := Default()

	// Try to load .env file (optional, won't fail if missing).
	if envPath != "" {
		_ = godotenv.Load(envPath)
	} else {
		_ = godotenv.Load()
	}

	if v := os.Getenv("STORAGE_BYTE_COST"); v != "" {
		if n, err := strconv.ParseUint(v, 10, 64); err == nil {
			cfg.Host.StorageByteCost = n
		}
	}
	cfg.Host.OwnerAccountID = getEnv("OWNER_ACCOUNT_ID", cfg.Host.OwnerAccountID)
	cfg.Host.ContractAccountID = getEnv("CONTRACT_ACCOUNT_ID", cfg.Host.ContractAccountID)

	if v := os.Getenv("MARKET_DEFAULT_TAKER_FEE_BPS"); v != "" {
		if n, err := strconv.ParseUint(v, 10, 16); err == nil {
			cfg.Market.DefaultTakerFeeBps = uint16(n)
		}
	}
	if v := os.Getenv("MARKET_DEFAULT_MAKER_REBATE_BPS"); v != "" {
		if n, err := strconv.ParseUint(v, 10, 16); err == nil {
			cfg.Market.DefaultMakerRebateBps = uint16(n)
		}
	}
	if v := os.Getenv("MARKET_DEFAULT_MIN_BID_BPS"); v != "" {
		if n, err := strconv.ParseUint(v, 10, 32); err == nil {
			cfg.Market.DefaultMinimumBidBps = uint32(n)
		}
	}
	if v := os.Getenv("MARKET_DEFAULT_MAX_ASK_BPS"); v != "" {
		if n, err := strconv.ParseUint(v, 10, 32); err == nil {
			cfg.Market.DefaultMaximumAskBps = uint32(n)
		}
	}

	cfg.Server.ListenAddr = getEnv("LISTEN_ADDR", cfg.Server.ListenAddr)
	cfg.Server.DBPath = getEnv("DB_PATH", cfg.Server.DBPath)

	return cfg
}

// getEnv returns environment variable value or default.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
