package config

import (
	"math/big"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.Equal(t, DefaultHost, cfg.Host)
	assert.Equal(t, DefaultPort, cfg.Port)
	assert.Equal(t, DefaultFeeBps, cfg.FeeBps)
	assert.Equal(t, DefaultBaseSymbol, cfg.BaseSymbol)
	assert.Equal(t, DefaultMnemonic, cfg.Mnemonic)
	require.NoError(t, cfg.Validate())
}

func TestConfig_Validate(t *testing.T) {
	cfg := Default()
	cfg.Port = 0
	assert.Error(t, cfg.Validate())

	cfg = Default()
	cfg.FeeBps = 10001
	assert.Error(t, cfg.Validate())

	cfg = Default()
	cfg.BaseSymbol = ""
	assert.Error(t, cfg.Validate())

	cfg = Default()
	cfg.Mnemonic = "definitely not a valid mnemonic"
	assert.Error(t, cfg.Validate())

	cfg = Default()
	cfg.SeedTokens = []SeedToken{{Symbol: "ETH"}}
	assert.Error(t, cfg.Validate(), "seed token colliding with base symbol")

	cfg = Default()
	cfg.SeedTokens = []SeedToken{{Symbol: "OMG"}, {Symbol: "OMG"}}
	assert.Error(t, cfg.Validate(), "duplicate seed token")

	cfg = Default()
	cfg.SeedTokens = []SeedToken{{Symbol: "OMG"}, {Symbol: "EOS"}}
	assert.NoError(t, cfg.Validate())
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	data := `{
		"port": 9000,
		"feeBps": 10,
		"seedTokens": [{"symbol": "OMG", "priceUsd": 7560000000000000000}]
	}`
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)

	// Provided fields override, the rest keep defaults.
	assert.Equal(t, 9000, cfg.Port)
	assert.Equal(t, int64(10), cfg.FeeBps)
	assert.Equal(t, DefaultHost, cfg.Host)
	assert.Equal(t, DefaultMnemonic, cfg.Mnemonic)

	require.Len(t, cfg.SeedTokens, 1)
	assert.Equal(t, "OMG", cfg.SeedTokens[0].Symbol)
	assert.Equal(t, new(big.Int).Mul(big.NewInt(756), big.NewInt(1e16)), cfg.SeedTokens[0].PriceUSD)
}

func TestLoadFromFile_Missing(t *testing.T) {
	_, err := LoadFromFile(filepath.Join(t.TempDir(), "absent.json"))
	assert.Error(t, err)
}

func TestConfig_ApplyEnv(t *testing.T) {
	t.Setenv("UNUM_HOST", "0.0.0.0")
	t.Setenv("UNUM_PORT", "9123")
	t.Setenv("UNUM_FEE_BPS", "7")

	cfg := Default()
	require.NoError(t, cfg.ApplyEnv())

	assert.Equal(t, "0.0.0.0", cfg.Host)
	assert.Equal(t, 9123, cfg.Port)
	assert.Equal(t, int64(7), cfg.FeeBps)
	assert.Equal(t, "0.0.0.0:9123", cfg.ServerAddr())
}

func TestConfig_ApplyEnv_BadPort(t *testing.T) {
	t.Setenv("UNUM_PORT", "not-a-port")

	cfg := Default()
	assert.Error(t, cfg.ApplyEnv())
}

func TestConfig_Copy(t *testing.T) {
	cfg := Default()
	cfg.SeedTokens = []SeedToken{{Symbol: "OMG", PriceUSD: big.NewInt(100)}}
	cfg.BasePriceUSD = big.NewInt(200)

	copied := cfg.Copy()
	copied.DefaultBalance.SetInt64(1)
	copied.SeedTokens[0].PriceUSD.SetInt64(1)
	copied.BasePriceUSD.SetInt64(1)

	// Deep copy: mutations do not leak back.
	assert.NotEqual(t, big.NewInt(1), cfg.DefaultBalance)
	assert.Equal(t, big.NewInt(100), cfg.SeedTokens[0].PriceUSD)
	assert.Equal(t, big.NewInt(200), cfg.BasePriceUSD)
}
