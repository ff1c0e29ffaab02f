package types

import "time"

// Environment represents the deployment environment.
type Environment string

const (
	EnvironmentDevelopment Environment = "development"
	EnvironmentTestnet     Environment = "testnet"
	EnvironmentMainnet     Environment = "mainnet"
)

// NetworkKind distinguishes the address/hashing scheme a destination chain uses.
// The validator never dials a Solana RPC endpoint: Solana only appears as a
// destination whose packed hash and recipient address are computed locally.
type NetworkKind string

const (
	NetworkKindEVM    NetworkKind = "evm"
	NetworkKindSolana NetworkKind = "solana"
)

// ChainConfig describes one EVM chain the scanner polls for bridge events.
type ChainConfig struct {
	Name               string   `mapstructure:"name"`
	ChainID            string   `mapstructure:"chain_id"`
	Environment         string  `mapstructure:"environment"`
	RPCEndpoints       []string `mapstructure:"rpc_endpoints"`
	BridgeContract     string   `mapstructure:"bridge_contract"`
	StartBlock         uint64   `mapstructure:"start_block"`
	BlockRange         uint64   `mapstructure:"block_range"`
	ConfirmationBlocks uint64   `mapstructure:"confirmation_blocks"`
	PollInterval       string   `mapstructure:"poll_interval"`
	Enabled            bool     `mapstructure:"enabled"`
}

// PollIntervalDuration returns the configured poll interval, defaulting to 5s.
func (c *ChainConfig) PollIntervalDuration() time.Duration {
	if c.PollInterval == "" {
		return 5 * time.Second
	}
	d, err := time.ParseDuration(c.PollInterval)
	if err != nil {
		return 5 * time.Second
	}
	return d
}
