// Package reserve provides the per-symbol collateral and fee vaults backing
// circulating Unum.
package reserve

import (
	"errors"
	"math/big"
	"sync"
)

// Reserve errors.
var (
	ErrInsufficientReserve = errors.New("insufficient reserve")
	ErrInvalidAmount       = errors.New("amount must be positive")
)

// holdings tracks one symbol's backing collateral and accrued fees.
type holdings struct {
	collateral *big.Int
	fees       *big.Int
}

// Vault tracks collateral and fee holdings per collateral symbol. Neither
// balance ever goes negative: a withdrawal that would overdraw is rejected
// in full.
type Vault struct {
	bySymbol map[string]*holdings

	mu sync.RWMutex
}

// NewVault creates an empty vault.
func NewVault() *Vault {
	return &Vault{bySymbol: make(map[string]*holdings)}
}

// get returns the holdings for a symbol, creating them on first touch.
// Caller holds the lock.
func (v *Vault) get(symbol string) *holdings {
	h, ok := v.bySymbol[symbol]
	if !ok {
		h = &holdings{collateral: big.NewInt(0), fees: big.NewInt(0)}
		v.bySymbol[symbol] = h
	}
	return h
}

// AddCollateral credits backing collateral for a symbol.
func (v *Vault) AddCollateral(symbol string, amount *big.Int) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	if amount.Sign() < 0 {
		return ErrInvalidAmount
	}

	h := v.get(symbol)
	h.collateral = new(big.Int).Add(h.collateral, amount)
	return nil
}

// SubCollateral debits backing collateral for a symbol. Fails if the debit
// would overdraw the vault.
func (v *Vault) SubCollateral(symbol string, amount *big.Int) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	h := v.get(symbol)
	if h.collateral.Cmp(amount) < 0 {
		return ErrInsufficientReserve
	}
	h.collateral = new(big.Int).Sub(h.collateral, amount)
	return nil
}

// Collateral returns the backing collateral held for a symbol.
func (v *Vault) Collateral(symbol string) *big.Int {
	v.mu.RLock()
	defer v.mu.RUnlock()

	if h, ok := v.bySymbol[symbol]; ok {
		return new(big.Int).Set(h.collateral)
	}
	return big.NewInt(0)
}

// AddFee credits accrued fees for a symbol.
func (v *Vault) AddFee(symbol string, amount *big.Int) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	if amount.Sign() < 0 {
		return ErrInvalidAmount
	}

	h := v.get(symbol)
	h.fees = new(big.Int).Add(h.fees, amount)
	return nil
}

// SubFee debits accrued fees for a symbol. Fails if the debit would
// overdraw the fee pool.
func (v *Vault) SubFee(symbol string, amount *big.Int) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	h := v.get(symbol)
	if h.fees.Cmp(amount) < 0 {
		return ErrInsufficientReserve
	}
	h.fees = new(big.Int).Sub(h.fees, amount)
	return nil
}

// Fees returns the accrued fee holdings for a symbol.
func (v *Vault) Fees(symbol string) *big.Int {
	v.mu.RLock()
	defer v.mu.RUnlock()

	if h, ok := v.bySymbol[symbol]; ok {
		return new(big.Int).Set(h.fees)
	}
	return big.NewInt(0)
}
