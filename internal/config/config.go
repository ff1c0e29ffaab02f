// Package config loads and validates the validator's runtime configuration,
// trimmed from the teacher's internal/config.Config down to the sections
// this validator actually needs: the outward-facing Server/Queue/Cache/
// Security/Alerting blocks the teacher carried for its API and relayer
// binaries have no home here (see DESIGN.md), but the Viper-based loading
// shape, mapstructure tags, and env-override convention are unchanged.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/chainbridge-validator/core/internal/store"
	"github.com/chainbridge-validator/core/internal/types"
)

// ScannerConfig tunes the block-window algorithm shared by every chain
// Worker; BlockRange and MinConfirmationBlocks are overridable per chain via
// ChainConfig's block_range and confirmation_blocks fields.
type ScannerConfig struct {
	BlockRange            uint64 `mapstructure:"block_range"`
	MinConfirmationBlocks uint64 `mapstructure:"min_confirmation_blocks"`
	FastTimeout           string `mapstructure:"fast_timeout"`
	SlowTimeout           string `mapstructure:"slow_timeout"`
	RestartBackoff        string `mapstructure:"restart_backoff"`
}

// FastTimeoutDuration parses FastTimeout, defaulting to 5s.
func (c ScannerConfig) FastTimeoutDuration() time.Duration { return parseDurationOr(c.FastTimeout, 5*time.Second) }

// SlowTimeoutDuration parses SlowTimeout, defaulting to 30s.
func (c ScannerConfig) SlowTimeoutDuration() time.Duration { return parseDurationOr(c.SlowTimeout, 30*time.Second) }

// RestartBackoffDuration parses RestartBackoff, defaulting to 15s.
func (c ScannerConfig) RestartBackoffDuration() time.Duration {
	return parseDurationOr(c.RestartBackoff, 15*time.Second)
}

// RelayerConfig points the Dispatcher at the relayer's signature endpoint.
type RelayerConfig struct {
	URL          string `mapstructure:"url"`
	Password     string `mapstructure:"password"`
	Workers      int    `mapstructure:"workers"`
	TickInterval string `mapstructure:"tick_interval"`
}

// TickIntervalDuration parses TickInterval, defaulting to 10s.
func (c RelayerConfig) TickIntervalDuration() time.Duration { return parseDurationOr(c.TickInterval, 10*time.Second) }

// NotifierConfig points at the operator alert webhook.
type NotifierConfig struct {
	WebhookURL    string `mapstructure:"webhook_url"`
	QueueCapacity int    `mapstructure:"queue_capacity"`
	Workers       int    `mapstructure:"workers"`
}

// CryptoConfig carries the validator's signing key material.
type CryptoConfig struct {
	PrivateKeyHex string `mapstructure:"private_key"`
}

// MonitoringConfig exposes the Prometheus scrape port.
type MonitoringConfig struct {
	MetricsPort int `mapstructure:"metrics_port"`
}

// Config is the root configuration document.
type Config struct {
	Environment        string              `mapstructure:"environment"`
	ValidatorName      string              `mapstructure:"validator_name"`
	Chains             []types.ChainConfig `mapstructure:"chains"`
	Database           store.Config        `mapstructure:"database"`
	Scanner            ScannerConfig       `mapstructure:"scanner"`
	Relayer            RelayerConfig       `mapstructure:"relayer"`
	Notifier           NotifierConfig      `mapstructure:"notifier"`
	Crypto             CryptoConfig        `mapstructure:"crypto"`
	Monitoring         MonitoringConfig    `mapstructure:"monitoring"`
	SixDecimalChainIDs []uint64            `mapstructure:"six_decimal_chain_ids"`
}

// LoadConfig reads configPath (or an environment-selected default) through
// Viper, applying VALIDATOR_-prefixed environment overrides on top, matching
// LoadConfig's SetEnvPrefix("BRIDGE") / AutomaticEnv shape.
func LoadConfig(configPath string) (*Config, error) {
	v := viper.New()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("validator")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		v.AddConfigPath("/etc/chainbridge-validator")
	}

	v.SetEnvPrefix("VALIDATOR")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("config: read config file: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshal config: %w", err)
	}

	if err := ValidateConfig(&cfg); err != nil {
		return nil, fmt.Errorf("config: invalid configuration: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("environment", "development")
	v.SetDefault("scanner.block_range", 500)
	v.SetDefault("scanner.min_confirmation_blocks", 12)
	v.SetDefault("scanner.fast_timeout", "5s")
	v.SetDefault("scanner.slow_timeout", "30s")
	v.SetDefault("scanner.restart_backoff", "15s")
	v.SetDefault("relayer.workers", 4)
	v.SetDefault("relayer.tick_interval", "10s")
	v.SetDefault("notifier.queue_capacity", 1000)
	v.SetDefault("notifier.workers", 2)
	v.SetDefault("monitoring.metrics_port", 9100)
	v.SetDefault("database.max_open_conns", 20)
	v.SetDefault("database.max_idle_conns", 5)
}

// ValidateConfig applies the same fail-fast checks ValidateConfig enforces:
// at least one enabled chain, every chain minimally populated, a non-empty
// database host, a sane relayer worker count, and a non-empty signing key
// (on mainnet additionally full-length, with no loopback RPC endpoints).
func ValidateConfig(cfg *Config) error {
	if len(cfg.Chains) == 0 {
		return fmt.Errorf("at least one chain must be configured")
	}

	enabled := 0
	for _, c := range cfg.Chains {
		if err := validateChainConfig(c); err != nil {
			return fmt.Errorf("chain %q: %w", c.Name, err)
		}
		if c.Enabled {
			enabled++
		}
	}
	if enabled == 0 {
		return fmt.Errorf("at least one chain must be enabled")
	}

	if cfg.Database.Host == "" {
		return fmt.Errorf("database host is required")
	}

	if cfg.Relayer.Workers < 1 || cfg.Relayer.Workers > 50 {
		return fmt.Errorf("relayer workers must be between 1 and 50, got %d", cfg.Relayer.Workers)
	}

	if cfg.Crypto.PrivateKeyHex == "" {
		return fmt.Errorf("crypto.private_key is required")
	}

	if cfg.Environment == string(types.EnvironmentMainnet) {
		if err := validateMainnetSecurity(cfg); err != nil {
			return err
		}
	}

	return nil
}

func validateChainConfig(c types.ChainConfig) error {
	if c.Name == "" {
		return fmt.Errorf("name is required")
	}
	if len(c.RPCEndpoints) == 0 {
		return fmt.Errorf("at least one RPC endpoint is required")
	}
	if c.BridgeContract == "" {
		return fmt.Errorf("bridge_contract is required")
	}
	return nil
}

// validateMainnetSecurity mirrors validateMainnetSecurity's extra scrutiny
// for production deployments: a development-looking private key or a
// loopback RPC endpoint is a configuration mistake worth failing fast on.
func validateMainnetSecurity(cfg *Config) error {
	if len(cfg.Crypto.PrivateKeyHex) < 64 {
		return fmt.Errorf("mainnet requires a full-length signing key")
	}
	for _, c := range cfg.Chains {
		if !c.Enabled {
			continue
		}
		for _, ep := range c.RPCEndpoints {
			if strings.Contains(ep, "localhost") || strings.Contains(ep, "127.0.0.1") {
				return fmt.Errorf("chain %q: mainnet must not use a loopback RPC endpoint", c.Name)
			}
		}
	}
	return nil
}

// GetChainConfig returns the named chain's configuration.
func (c *Config) GetChainConfig(name string) (types.ChainConfig, bool) {
	for _, chain := range c.Chains {
		if chain.Name == name {
			return chain, true
		}
	}
	return types.ChainConfig{}, false
}

// EnabledChains returns only the chains marked enabled.
func (c *Config) EnabledChains() []types.ChainConfig {
	var out []types.ChainConfig
	for _, chain := range c.Chains {
		if chain.Enabled {
			out = append(out, chain)
		}
	}
	return out
}

func parseDurationOr(s string, fallback time.Duration) time.Duration {
	if s == "" {
		return fallback
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return fallback
	}
	return d
}
