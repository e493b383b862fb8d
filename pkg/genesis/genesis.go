// Package genesis bootstraps a dev node: deterministic accounts, funded
// native balances, seeded collateral tokens and initial oracle prices.
package genesis

import (
	"crypto/ecdsa"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/tyler-smith/go-bip39"

	"github.com/UnumOne/unum/pkg/asset"
	"github.com/UnumOne/unum/pkg/config"
	"github.com/UnumOne/unum/pkg/engine"
	"github.com/UnumOne/unum/pkg/events"
	"github.com/UnumOne/unum/pkg/oracle"
)

// Account represents a dev account with its private key. The first derived
// account owns the engine and the oracle.
type Account struct {
	Address    common.Address
	PrivateKey *ecdsa.PrivateKey
}

// GenerateAccounts generates deterministic accounts from a mnemonic.
func GenerateAccounts(mnemonic string, count int) ([]*Account, error) {
	if !bip39.IsMnemonicValid(mnemonic) {
		return nil, fmt.Errorf("invalid mnemonic")
	}

	seed := bip39.NewSeed(mnemonic, "")
	accounts := make([]*Account, count)

	for i := 0; i < count; i++ {
		key, err := deriveKey(seed, uint32(i))
		if err != nil {
			return nil, fmt.Errorf("failed to derive key %d: %w", i, err)
		}

		accounts[i] = &Account{
			Address:    crypto.PubkeyToAddress(key.PublicKey),
			PrivateKey: key,
		}
	}

	return accounts, nil
}

// deriveKey derives a private key from seed at the given index by hashing
// seed + index. Deterministic and sufficient for dev accounts.
func deriveKey(seed []byte, index uint32) (*ecdsa.PrivateKey, error) {
	indexBytes := make([]byte, 4)
	indexBytes[0] = byte(index >> 24)
	indexBytes[1] = byte(index >> 16)
	indexBytes[2] = byte(index >> 8)
	indexBytes[3] = byte(index)

	combined := append(seed, indexBytes...)
	hash := crypto.Keccak256(combined)

	return crypto.ToECDSA(hash)
}

// EngineAddress is the custody account holding all collateral.
var EngineAddress = common.HexToAddress("0x0000000000000000000000000000000000000d01")

// OracleAddress identifies the price oracle in the event log.
var OracleAddress = common.HexToAddress("0x0000000000000000000000000000000000000d02")

// tokenAddress derives a stable pseudo-address for a seeded token symbol.
func tokenAddress(symbol string) common.Address {
	return common.BytesToAddress(crypto.Keccak256([]byte("unum/token/" + symbol))[12:])
}

// World is a fully bootstrapped node state.
type World struct {
	Engine   *engine.Engine
	Oracle   *oracle.PriceInUSDOracle
	Log      *events.Log
	Base     *asset.NativeAsset
	Tokens   map[string]*asset.TokenAsset
	Accounts []*Account
}

// Build constructs the engine, oracle and seed assets described by cfg. The
// first derived account becomes owner of both the engine and the oracle;
// every account is funded with the configured native balance.
func Build(cfg *config.Config) (*World, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	accounts, err := GenerateAccounts(cfg.Mnemonic, cfg.AccountCount)
	if err != nil {
		return nil, fmt.Errorf("failed to generate accounts: %w", err)
	}
	owner := accounts[0].Address

	log := events.NewLog()
	base := asset.NewNativeAsset()
	for _, acc := range accounts {
		base.Credit(acc.Address, cfg.DefaultBalance)
	}

	eng := engine.New(owner, EngineAddress, cfg.BaseSymbol, base, cfg.FeeBps, log)
	orc := oracle.New(owner, log)
	if err := eng.SetOracle(owner, orc, OracleAddress); err != nil {
		return nil, err
	}

	now := time.Now()

	if err := orc.AddItem(owner, cfg.BaseSymbol); err != nil {
		return nil, err
	}
	if cfg.BasePriceUSD != nil {
		if err := orc.SetPriceInUSD(owner, cfg.BaseSymbol, cfg.BasePriceUSD, now); err != nil {
			return nil, err
		}
	}

	tokens := make(map[string]*asset.TokenAsset, len(cfg.SeedTokens))
	for _, seed := range cfg.SeedTokens {
		token := asset.NewTokenAsset(seed.Symbol)
		if err := eng.AddToken(owner, seed.Symbol, token, tokenAddress(seed.Symbol)); err != nil {
			return nil, fmt.Errorf("failed to seed token %s: %w", seed.Symbol, err)
		}
		if err := orc.AddItem(owner, seed.Symbol); err != nil {
			return nil, err
		}
		if seed.PriceUSD != nil {
			if err := orc.SetPriceInUSD(owner, seed.Symbol, seed.PriceUSD, now); err != nil {
				return nil, err
			}
		}
		tokens[seed.Symbol] = token
	}

	return &World{
		Engine:   eng,
		Oracle:   orc,
		Log:      log,
		Base:     base,
		Tokens:   tokens,
		Accounts: accounts,
	}, nil
}
