// Package config holds the rollup parameters and node settings.
package config

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/colorfulnotion/nftrollup/rolluperrors"
	"github.com/colorfulnotion/nftrollup/types"
)

const EnvPrefix = "NFTROLLUP_"

// Merge strategies.
const (
	MergeFold = "fold"
	MergeTree = "tree"
)

type Config struct {
	// Ledger shape
	TreeHeight        int    `json:"treeHeight" env:"TREE_HEIGHT" envDefault:"20"`
	Supply            uint64 `json:"supply" env:"SUPPLY" envDefault:"1000"`
	BatchSize         int    `json:"batchSize" env:"BATCH_SIZE" envDefault:"5"`
	MaxActionsPerCall int    `json:"maxActionsPerCall" env:"MAX_ACTIONS_PER_CALL" envDefault:"100"`
	HashScheme        string `json:"hashScheme" env:"HASH_SCHEME" envDefault:"blake2b"`

	// Proving
	MergeStrategy    string        `json:"mergeStrategy" env:"MERGE_STRATEGY" envDefault:"fold"`
	ProveConcurrency int           `json:"proveConcurrency" env:"PROVE_CONCURRENCY" envDefault:"4"`
	ProveTimeout     time.Duration `json:"proveTimeout" env:"PROVE_TIMEOUT" envDefault:"2m"`
	ProverKey        string        `json:"-" env:"PROVER_KEY" envDefault:"nftrollup-dev-prover"`

	// Node
	DataPath       string        `json:"dataPath" env:"DATA_PATH"`
	RPCPort        int           `json:"rpcPort" env:"RPC_PORT" envDefault:"8645"`
	LogLevel       string        `json:"logLevel" env:"LOG_LEVEL" envDefault:"info"`
	LogModules     string        `json:"logModules" env:"LOG_MODULES"`
	OTelEndpoint   string        `json:"otelEndpoint" env:"OTEL_ENDPOINT"`
	AssetCacheSize int           `json:"assetCacheSize" env:"ASSET_CACHE_SIZE" envDefault:"1024"`
	SyncInterval   time.Duration `json:"syncInterval" env:"SYNC_INTERVAL" envDefault:"10s"`
}

// Default returns the configuration with every envDefault applied and no
// environment consulted.
func Default() Config {
	var c Config
	if err := env.ParseWithOptions(&c, env.Options{Environment: map[string]string{}, Prefix: EnvPrefix}); err != nil {
		panic(fmt.Sprintf("config defaults: %v", err))
	}
	return c
}

// Load reads NFTROLLUP_* variables over the defaults and validates the result.
func Load() (Config, error) {
	var c Config
	if err := env.ParseWithOptions(&c, env.Options{Prefix: EnvPrefix}); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

// Validate checks the ledger parameters against each other. Index 0 is the
// sentinel leaf so at most 2^height-1 assets fit.
func (c Config) Validate() error {
	if c.TreeHeight < 1 || c.TreeHeight > 63 {
		return fmt.Errorf("%w: got %d", rolluperrors.ErrCTreeHeight, c.TreeHeight)
	}
	if c.Supply == 0 || c.Supply >= uint64(1)<<c.TreeHeight {
		return fmt.Errorf("%w: supply %d, height %d", rolluperrors.ErrCSupply, c.Supply, c.TreeHeight)
	}
	if c.BatchSize <= 0 {
		return fmt.Errorf("%w: got %d", rolluperrors.ErrCBatchSize, c.BatchSize)
	}
	if c.MaxActionsPerCall < c.BatchSize {
		return fmt.Errorf("%w: %d < %d", rolluperrors.ErrCMaxActions, c.MaxActionsPerCall, c.BatchSize)
	}
	switch c.HashScheme {
	case types.Blake2b, types.Keccak, types.MiMC:
	default:
		return fmt.Errorf("%w: %q", rolluperrors.ErrCHashScheme, c.HashScheme)
	}
	switch c.MergeStrategy {
	case MergeFold, MergeTree:
	default:
		return fmt.Errorf("%w: %q", rolluperrors.ErrCMergeStrategy, c.MergeStrategy)
	}
	return nil
}

// String method returns the Config as a formatted JSON string
func (c Config) String() string {
	jsonData, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Sprintf("Error marshaling JSON: %v", err)
	}
	return string(jsonData)
}
