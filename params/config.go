package params

import (
	"os"
	"strconv"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/joho/godotenv"
)

// Engine holds the escrow engine's deployment parameters.
// These were hardcoded constants in the first deployment; they live here so
// the same binary can run against any asset pair without a rebuild.
type Engine struct {
	// MinOrderAmount is the smallest escrowable amount, in base units.
	MinOrderAmount uint64

	// MaxExpiryWindow bounds how far ahead (in ticks) an order expiration
	// may be set. With the default 400ms tick this is roughly 24 hours.
	MaxExpiryWindow uint64

	// OrderDeposit is charged from the maker at creation to back the order
	// record, and refunded when the order is filled or cancelled.
	OrderDeposit uint64

	// TokenMint identifies the one fungible token the engine tracks.
	// Token transfers against any other mint are rejected.
	TokenMint string
}

type Node struct {
	DBPath  string
	APIAddr string
	LogFile string

	// TickInterval maps wall time to the logical tick clock.
	TickInterval time.Duration

	// Treasury receives usage charges collected by the metering service.
	Treasury common.Address
}

type Config struct {
	Engine Engine
	Node   Node
}

func Default() Config {
	return Config{
		Engine: Engine{
			MinOrderAmount:  100_000,
			MaxExpiryWindow: 216_000,
			OrderDeposit:    2_000,
			TokenMint:       "sGOR",
		},
		Node: Node{
			DBPath:       "data/swapd.db",
			APIAddr:      ":8080",
			LogFile:      "data/swapd.log",
			TickInterval: 400 * time.Millisecond,
			Treasury:     common.HexToAddress("0x7E00000000000000000000000000000000000001"),
		},
	}
}

// LoadFromEnv loads configuration from a .env file (if present) and
// environment variables. Priority: ENV > .env file > defaults.
func LoadFromEnv(envPath string) Config {
	cfg := Default()

	if envPath != "" {
		_ = godotenv.Load(envPath)
	} else {
		_ = godotenv.Load()
	}

	if v := os.Getenv("MIN_ORDER_AMOUNT"); v != "" {
		if n, err := strconv.ParseUint(v, 10, 64); err == nil {
			cfg.Engine.MinOrderAmount = n
		}
	}
	if v := os.Getenv("MAX_EXPIRY_WINDOW"); v != "" {
		if n, err := strconv.ParseUint(v, 10, 64); err == nil {
			cfg.Engine.MaxExpiryWindow = n
		}
	}
	if v := os.Getenv("ORDER_DEPOSIT"); v != "" {
		if n, err := strconv.ParseUint(v, 10, 64); err == nil {
			cfg.Engine.OrderDeposit = n
		}
	}
	if v := os.Getenv("TOKEN_MINT"); v != "" {
		cfg.Engine.TokenMint = v
	}

	if v := os.Getenv("DB_PATH"); v != "" {
		cfg.Node.DBPath = v
	}
	if v := os.Getenv("API_ADDR"); v != "" {
		cfg.Node.APIAddr = v
	}
	if v := os.Getenv("LOG_FILE"); v != "" {
		cfg.Node.LogFile = v
	}
	if v := os.Getenv("TICK_INTERVAL_MS"); v != "" {
		if ms, err := strconv.Atoi(v); err == nil && ms > 0 {
			cfg.Node.TickInterval = time.Duration(ms) * time.Millisecond
		}
	}
	if v := os.Getenv("TREASURY"); v != "" && common.IsHexAddress(v) {
		cfg.Node.Treasury = common.HexToAddress(v)
	}

	return cfg
}
