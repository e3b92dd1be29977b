package config

// Package config loads node configuration from the environment (and an
// optional .env file loaded by the caller) into one typed struct. Every
// knob has a compiled-in default; environment variables override.

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config is the unified configuration for a Dytallix node process.
type Config struct {
	DataDir         string `mapstructure:"data_dir" json:"data_dir"`
	ChainID         string `mapstructure:"chain_id" json:"chain_id"`
	BlockIntervalMS int    `mapstructure:"block_interval_ms" json:"block_interval_ms"`
	EmptyBlocks     bool   `mapstructure:"empty_blocks" json:"empty_blocks"`
	BlockMaxTx      int    `mapstructure:"block_max_tx" json:"block_max_tx"`
	ProducerID      string `mapstructure:"producer_id" json:"producer_id"`

	MempoolMaxTx    int    `mapstructure:"mempool_max_tx" json:"mempool_max_tx"`
	MempoolMaxBytes int    `mapstructure:"mempool_max_bytes" json:"mempool_max_bytes"`
	MinGasPrice     uint64 `mapstructure:"min_gas_price" json:"min_gas_price"`
	MaxTxBytes      int    `mapstructure:"max_tx_bytes" json:"max_tx_bytes"`

	RPCBind  string `mapstructure:"rpc_bind" json:"rpc_bind"`
	LogLevel string `mapstructure:"log_level" json:"log_level"`

	EmissionPerBlock string `mapstructure:"emission_per_block" json:"emission_per_block"`
}

// envKeys lists every environment variable the loader binds, one per
// Config field, lowercase-matched to the mapstructure tags above.
var envKeys = []string{
	"DATA_DIR", "CHAIN_ID", "BLOCK_INTERVAL_MS", "EMPTY_BLOCKS",
	"BLOCK_MAX_TX", "PRODUCER_ID", "MEMPOOL_MAX_TX", "MEMPOOL_MAX_BYTES",
	"MIN_GAS_PRICE", "MAX_TX_BYTES", "RPC_BIND", "LOG_LEVEL",
	"EMISSION_PER_BLOCK",
}

// Load builds a Config from defaults plus environment overrides.
func Load() (*Config, error) {
	v := viper.New()

	v.SetDefault("data_dir", "./data")
	v.SetDefault("chain_id", "dyt-local-1")
	v.SetDefault("block_interval_ms", 5000)
	v.SetDefault("empty_blocks", false)
	v.SetDefault("block_max_tx", 500)
	v.SetDefault("producer_id", "")
	v.SetDefault("mempool_max_tx", 10000)
	v.SetDefault("mempool_max_bytes", 64<<20)
	v.SetDefault("min_gas_price", 1)
	v.SetDefault("max_tx_bytes", 1<<20)
	v.SetDefault("rpc_bind", ":8545")
	v.SetDefault("log_level", "info")
	v.SetDefault("emission_per_block", "1000000")

	v.AutomaticEnv()
	for _, key := range envKeys {
		if err := v.BindEnv(keyToField(key), key); err != nil {
			return nil, fmt.Errorf("config: bind %s: %w", key, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}
	if cfg.ChainID == "" {
		return nil, fmt.Errorf("config: CHAIN_ID must not be empty")
	}
	if cfg.BlockIntervalMS <= 0 {
		return nil, fmt.Errorf("config: BLOCK_INTERVAL_MS must be positive, got %d", cfg.BlockIntervalMS)
	}
	return &cfg, nil
}

// keyToField maps an env var name to its viper key (the mapstructure
// tag), e.g. BLOCK_INTERVAL_MS -> block_interval_ms.
func keyToField(envKey string) string {
	out := make([]byte, len(envKey))
	for i := 0; i < len(envKey); i++ {
		c := envKey[i]
		if c >= 'A' && c <= 'Z' {
			c += 'a' - 'A'
		}
		out[i] = c
	}
	return string(out)
}

// BlockInterval returns the producer tick period as a duration.
func (c *Config) BlockInterval() time.Duration {
	return time.Duration(c.BlockIntervalMS) * time.Millisecond
}
