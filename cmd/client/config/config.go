package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/defistate/stellar-pool-client-go/pkg/amount"
	"github.com/defistate/stellar-pool-client-go/pkg/chains"
	"github.com/defistate/stellar-pool-client-go/pkg/deposit"
	"github.com/defistate/stellar-pool-client-go/pkg/txn"
	"github.com/defistate/stellar-pool-client-go/protocols/liquiditypool"
	"gopkg.in/yaml.v3"
)

const (
	DefaultCachePath = "pools.json"
	DefaultLogFile   = "client.log"
)

type ClientConfig struct {
	// Network names a preset (testnet, public, futurenet). The fields below
	// override the preset; with no preset, rpc_url and network_passphrase
	// are required.
	Network           string `yaml:"network"`
	RPCURL            string `yaml:"rpc_url"`
	NetworkPassphrase string `yaml:"network_passphrase"`
	ExplorerURL       string `yaml:"explorer_url"`

	BaseFee      uint32        `yaml:"base_fee"`
	TxTimeout    time.Duration `yaml:"tx_timeout"`
	PollInterval time.Duration `yaml:"poll_interval"`
	ConfirmGrace time.Duration `yaml:"confirm_grace"`

	// PoolType names the pool kind, e.g. "constant_product".
	PoolType string `yaml:"pool_type"`
	// FeeBps is the pool fee in basis points. Nil means the network default.
	FeeBps *int32 `yaml:"fee_bps"`
	// MinPrice and MaxPrice are the default deposit price band, "n/d".
	MinPrice string `yaml:"min_price"`
	MaxPrice string `yaml:"max_price"`

	CachePath string `yaml:"cache_path"`
	LogFile   string `yaml:"log_file"`
}

// LoadConfig reads a configuration file from the given path, unmarshals it
// into a ClientConfig struct, fills in defaults and validates the result.
func LoadConfig(path string) (*ClientConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg ClientConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	if err := cfg.applyDefaults(); err != nil {
		return nil, err
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns the configuration used when no file is given.
func Default() *ClientConfig {
	cfg := &ClientConfig{Network: chains.Testnet.Name}
	// The testnet preset always resolves.
	_ = cfg.applyDefaults()
	return cfg
}

func (c *ClientConfig) applyDefaults() error {
	if c.Network == "" && c.RPCURL == "" && c.NetworkPassphrase == "" {
		c.Network = chains.Testnet.Name
	}
	if c.Network != "" {
		preset, err := chains.Lookup(c.Network)
		if err != nil {
			return fmt.Errorf("config: network: %w", err)
		}
		if c.RPCURL == "" {
			c.RPCURL = preset.RPCURL
		}
		if c.NetworkPassphrase == "" {
			c.NetworkPassphrase = preset.Passphrase
		}
		if c.ExplorerURL == "" {
			c.ExplorerURL = preset.ExplorerURL
		}
	}
	if c.BaseFee == 0 {
		c.BaseFee = txn.BaseFee
	}
	if c.TxTimeout == 0 {
		c.TxTimeout = deposit.DefaultTxTimeout
	}
	if c.PollInterval == 0 {
		c.PollInterval = deposit.DefaultPollInterval
	}
	if c.ConfirmGrace == 0 {
		c.ConfirmGrace = deposit.DefaultConfirmGrace
	}
	if c.PoolType == "" {
		c.PoolType = liquiditypool.ConstantProduct.String()
	}
	if c.FeeBps == nil {
		fee := liquiditypool.DefaultFeeBasisPoints
		c.FeeBps = &fee
	}
	if c.MinPrice == "" {
		c.MinPrice = amount.OneToOne.String()
	}
	if c.MaxPrice == "" {
		c.MaxPrice = amount.OneToOne.String()
	}
	if c.CachePath == "" {
		c.CachePath = DefaultCachePath
	}
	if c.LogFile == "" {
		c.LogFile = DefaultLogFile
	}
	return nil
}

func (c *ClientConfig) validate() error {
	if c.RPCURL == "" {
		return errors.New("config: rpc_url is required")
	}
	if c.NetworkPassphrase == "" {
		return errors.New("config: network_passphrase is required")
	}
	if c.BaseFee < txn.BaseFee {
		return fmt.Errorf("config: base_fee must be at least %d", txn.BaseFee)
	}
	if c.TxTimeout < 0 || c.PollInterval < 0 || c.ConfirmGrace < 0 {
		return errors.New("config: tx_timeout, poll_interval and confirm_grace must not be negative")
	}
	if _, err := liquiditypool.ParsePoolType(c.PoolType); err != nil {
		return fmt.Errorf("config: pool_type: %w", err)
	}
	if *c.FeeBps < 0 || *c.FeeBps >= 10000 {
		return fmt.Errorf("config: fee_bps %d outside [0, 10000)", *c.FeeBps)
	}
	if _, _, err := c.PriceBand(); err != nil {
		return err
	}
	return nil
}

// ChainNetwork returns the network with the configured overrides applied.
func (c *ClientConfig) ChainNetwork() chains.Network {
	return chains.Network{
		Name:        c.Network,
		Passphrase:  c.NetworkPassphrase,
		RPCURL:      c.RPCURL,
		ExplorerURL: c.ExplorerURL,
	}
}

// Pool returns the configured pool type and fee.
func (c *ClientConfig) Pool() (liquiditypool.PoolType, int32, error) {
	poolType, err := liquiditypool.ParsePoolType(c.PoolType)
	if err != nil {
		return 0, 0, fmt.Errorf("config: pool_type: %w", err)
	}
	return poolType, *c.FeeBps, nil
}

// PriceBand parses the default deposit price band.
func (c *ClientConfig) PriceBand() (minPrice, maxPrice amount.Price, err error) {
	if minPrice, err = amount.ParsePrice(c.MinPrice); err != nil {
		return amount.Price{}, amount.Price{}, fmt.Errorf("config: min_price: %w", err)
	}
	if maxPrice, err = amount.ParsePrice(c.MaxPrice); err != nil {
		return amount.Price{}, amount.Price{}, fmt.Errorf("config: max_price: %w", err)
	}
	if minPrice.Cmp(maxPrice) > 0 {
		return amount.Price{}, amount.Price{}, fmt.Errorf("config: min_price %s is above max_price %s", minPrice, maxPrice)
	}
	return minPrice, maxPrice, nil
}
