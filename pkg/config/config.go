// Package config provides configuration management for the unum node.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/tyler-smith/go-bip39"
)

// Default values.
var (
	DefaultHost         = "127.0.0.1"
	DefaultPort         = 8560
	DefaultBaseSymbol   = "ETH"
	DefaultFeeBps       = int64(5)
	DefaultAccountCount = 10
	DefaultBalance      = new(big.Int).Mul(big.NewInt(10000), big.NewInt(1e18)) // 10000 ETH
	DefaultMnemonic     = "test test test test test test test test test test test junk"
)

// SeedToken describes a collateral token registered at startup, with an
// optional initial oracle price in USD (fixed-point 10^18).
type SeedToken struct {
	Symbol   string   `json:"symbol"`
	PriceUSD *big.Int `json:"priceUsd,omitempty"`
}

// Config defines the node configuration.
type Config struct {
	// Server configuration
	Host string `json:"host"`
	Port int    `json:"port"`

	// Fee configuration, in basis points
	FeeBps int64 `json:"feeBps"`

	// Base collateral symbol
	BaseSymbol string `json:"baseSymbol"`

	// Dev account configuration
	AccountCount   int      `json:"accountCount"`
	DefaultBalance *big.Int `json:"defaultBalance"`
	Mnemonic       string   `json:"mnemonic"`

	// Collateral seeded at startup
	SeedTokens []SeedToken `json:"seedTokens,omitempty"`

	// Base-asset price pushed into the oracle at startup (optional)
	BasePriceUSD *big.Int `json:"basePriceUsd,omitempty"`
}

// Default returns a configuration with default values.
func Default() *Config {
	return &Config{
		Host:           DefaultHost,
		Port:           DefaultPort,
		FeeBps:         DefaultFeeBps,
		BaseSymbol:     DefaultBaseSymbol,
		AccountCount:   DefaultAccountCount,
		DefaultBalance: new(big.Int).Set(DefaultBalance),
		Mnemonic:       DefaultMnemonic,
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	var errs []string

	if c.Port <= 0 || c.Port > 65535 {
		errs = append(errs, "port must be between 1 and 65535")
	}

	if c.FeeBps < 0 || c.FeeBps > 10000 {
		errs = append(errs, "feeBps must be between 0 and 10000")
	}

	if c.BaseSymbol == "" {
		errs = append(errs, "baseSymbol cannot be empty")
	}

	if c.AccountCount <= 0 {
		errs = append(errs, "accountCount must be greater than 0")
	}

	if c.Mnemonic != "" && !bip39.IsMnemonicValid(c.Mnemonic) {
		errs = append(errs, "mnemonic is invalid")
	}

	seen := make(map[string]bool)
	for _, token := range c.SeedTokens {
		if token.Symbol == "" {
			errs = append(errs, "seed token symbol cannot be empty")
			continue
		}
		if token.Symbol == c.BaseSymbol {
			errs = append(errs, fmt.Sprintf("seed token %s collides with the base symbol", token.Symbol))
		}
		if seen[token.Symbol] {
			errs = append(errs, fmt.Sprintf("seed token %s listed twice", token.Symbol))
		}
		seen[token.Symbol] = true
	}

	if len(errs) > 0 {
		return errors.New(strings.Join(errs, "; "))
	}

	return nil
}

// LoadFromFile loads configuration from a JSON file, merged over defaults.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return MergeWithDefaults(&cfg), nil
}

// MergeWithDefaults merges a partial config with default values.
func MergeWithDefaults(partial *Config) *Config {
	def := Default()

	if partial.Host != "" {
		def.Host = partial.Host
	}
	if partial.Port != 0 {
		def.Port = partial.Port
	}
	if partial.FeeBps != 0 {
		def.FeeBps = partial.FeeBps
	}
	if partial.BaseSymbol != "" {
		def.BaseSymbol = partial.BaseSymbol
	}
	if partial.AccountCount != 0 {
		def.AccountCount = partial.AccountCount
	}
	if partial.DefaultBalance != nil {
		def.DefaultBalance = partial.DefaultBalance
	}
	if partial.Mnemonic != "" {
		def.Mnemonic = partial.Mnemonic
	}
	def.SeedTokens = partial.SeedTokens
	def.BasePriceUSD = partial.BasePriceUSD

	return def
}

// ApplyEnv overlays environment variables onto the config. A .env file in
// the working directory is loaded first if present; missing files are not
// an error.
func (c *Config) ApplyEnv() error {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to load .env: %w", err)
	}

	if host := os.Getenv("UNUM_HOST"); host != "" {
		c.Host = host
	}
	if port := os.Getenv("UNUM_PORT"); port != "" {
		p, err := strconv.Atoi(port)
		if err != nil {
			return fmt.Errorf("invalid UNUM_PORT: %w", err)
		}
		c.Port = p
	}
	if mnemonic := os.Getenv("UNUM_MNEMONIC"); mnemonic != "" {
		c.Mnemonic = mnemonic
	}
	if feeBps := os.Getenv("UNUM_FEE_BPS"); feeBps != "" {
		f, err := strconv.ParseInt(feeBps, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid UNUM_FEE_BPS: %w", err)
		}
		c.FeeBps = f
	}

	return nil
}

// ServerAddr returns the server address string.
func (c *Config) ServerAddr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// Copy creates a deep copy of the configuration.
func (c *Config) Copy() *Config {
	copied := *c

	if c.DefaultBalance != nil {
		copied.DefaultBalance = new(big.Int).Set(c.DefaultBalance)
	}
	if c.BasePriceUSD != nil {
		copied.BasePriceUSD = new(big.Int).Set(c.BasePriceUSD)
	}
	if c.SeedTokens != nil {
		copied.SeedTokens = make([]SeedToken, len(c.SeedTokens))
		copy(copied.SeedTokens, c.SeedTokens)
		for i, token := range c.SeedTokens {
			if token.PriceUSD != nil {
				copied.SeedTokens[i].PriceUSD = new(big.Int).Set(token.PriceUSD)
			}
		}
	}

	return &copied
}
