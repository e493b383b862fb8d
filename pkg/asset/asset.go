// Package asset provides the transferable-balance capability shared by the
// native base asset and registered external token accounts.
package asset

import (
	"errors"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
)

// Common errors.
var (
	ErrInsufficientBalance   = errors.New("insufficient balance")
	ErrInsufficientAllowance = errors.New("insufficient allowance")
	ErrInvalidAmount         = errors.New("amount must be positive")
)

// Asset is the capability the issuance engine needs from any collateral
// asset: balance lookup, a total-supply liveness probe, a direct transfer,
// and an allowance-gated pull.
type Asset interface {
	TotalSupply() (*big.Int, error)
	BalanceOf(addr common.Address) *big.Int
	Transfer(from, to common.Address, amount *big.Int) error
	TransferFrom(spender, from, to common.Address, amount *big.Int) error
}

// NativeAsset tracks native base-asset balances. A native buy carries its
// value with the call, so TransferFrom does not consult an allowance.
type NativeAsset struct {
	balances map[common.Address]*big.Int
	supply   *big.Int

	mu sync.RWMutex
}

// NewNativeAsset creates an empty native balance book.
func NewNativeAsset() *NativeAsset {
	return &NativeAsset{
		balances: make(map[common.Address]*big.Int),
		supply:   big.NewInt(0),
	}
}

// Credit adds native balance to an address. Used by genesis funding.
func (a *NativeAsset) Credit(addr common.Address, amount *big.Int) {
	a.mu.Lock()
	defer a.mu.Unlock()

	balance := a.balances[addr]
	if balance == nil {
		balance = big.NewInt(0)
	}
	a.balances[addr] = new(big.Int).Add(balance, amount)
	a.supply = new(big.Int).Add(a.supply, amount)
}

// TotalSupply returns the total native balance in circulation.
func (a *NativeAsset) TotalSupply() (*big.Int, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	return new(big.Int).Set(a.supply), nil
}

// BalanceOf returns the native balance of an address.
func (a *NativeAsset) BalanceOf(addr common.Address) *big.Int {
	a.mu.RLock()
	defer a.mu.RUnlock()

	if balance, ok := a.balances[addr]; ok {
		return new(big.Int).Set(balance)
	}
	return big.NewInt(0)
}

// Transfer moves native balance between two addresses.
func (a *NativeAsset) Transfer(from, to common.Address, amount *big.Int) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	return a.move(from, to, amount)
}

// TransferFrom moves native balance on behalf of a spender. Native value
// accompanies the call itself, so no allowance check applies.
func (a *NativeAsset) TransferFrom(spender, from, to common.Address, amount *big.Int) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	return a.move(from, to, amount)
}

// move performs the balance update. Caller holds the lock.
func (a *NativeAsset) move(from, to common.Address, amount *big.Int) error {
	if amount.Sign() <= 0 {
		return ErrInvalidAmount
	}

	balance := a.balances[from]
	if balance == nil || balance.Cmp(amount) < 0 {
		return ErrInsufficientBalance
	}

	a.balances[from] = new(big.Int).Sub(balance, amount)

	toBalance := a.balances[to]
	if toBalance == nil {
		toBalance = big.NewInt(0)
	}
	a.balances[to] = new(big.Int).Add(toBalance, amount)

	return nil
}

// TokenAsset is an in-memory external token account with ERC20-like
// balance, allowance, mint and transfer semantics.
type TokenAsset struct {
	symbol     string
	balances   map[common.Address]*big.Int
	allowances map[common.Address]map[common.Address]*big.Int
	supply     *big.Int

	mu sync.RWMutex
}

// NewTokenAsset creates an empty token account for a symbol.
func NewTokenAsset(symbol string) *TokenAsset {
	return &TokenAsset{
		symbol:     symbol,
		balances:   make(map[common.Address]*big.Int),
		allowances: make(map[common.Address]map[common.Address]*big.Int),
		supply:     big.NewInt(0),
	}
}

// Symbol returns the token's ticker.
func (a *TokenAsset) Symbol() string {
	return a.symbol
}

// Mint creates new token balance for an address.
func (a *TokenAsset) Mint(to common.Address, amount *big.Int) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if amount.Sign() <= 0 {
		return ErrInvalidAmount
	}

	balance := a.balances[to]
	if balance == nil {
		balance = big.NewInt(0)
	}
	a.balances[to] = new(big.Int).Add(balance, amount)
	a.supply = new(big.Int).Add(a.supply, amount)

	return nil
}

// Approve sets the spender's allowance over the owner's balance.
func (a *TokenAsset) Approve(owner, spender common.Address, amount *big.Int) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.allowances[owner] == nil {
		a.allowances[owner] = make(map[common.Address]*big.Int)
	}
	a.allowances[owner][spender] = new(big.Int).Set(amount)
}

// Allowance returns the spender's remaining allowance over the owner's balance.
func (a *TokenAsset) Allowance(owner, spender common.Address) *big.Int {
	a.mu.RLock()
	defer a.mu.RUnlock()

	if approved, ok := a.allowances[owner]; ok {
		if amount, ok := approved[spender]; ok {
			return new(big.Int).Set(amount)
		}
	}
	return big.NewInt(0)
}

// TotalSupply returns the token's total supply.
func (a *TokenAsset) TotalSupply() (*big.Int, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	return new(big.Int).Set(a.supply), nil
}

// BalanceOf returns the token balance of an address.
func (a *TokenAsset) BalanceOf(addr common.Address) *big.Int {
	a.mu.RLock()
	defer a.mu.RUnlock()

	if balance, ok := a.balances[addr]; ok {
		return new(big.Int).Set(balance)
	}
	return big.NewInt(0)
}

// Transfer moves token balance between two addresses.
func (a *TokenAsset) Transfer(from, to common.Address, amount *big.Int) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	return a.move(from, to, amount)
}

// TransferFrom moves token balance on behalf of a spender, consuming the
// spender's allowance over the owner's balance.
func (a *TokenAsset) TransferFrom(spender, from, to common.Address, amount *big.Int) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if amount.Sign() <= 0 {
		return ErrInvalidAmount
	}

	allowance := big.NewInt(0)
	if approved, ok := a.allowances[from]; ok {
		if current, ok := approved[spender]; ok {
			allowance = current
		}
	}
	if allowance.Cmp(amount) < 0 {
		return ErrInsufficientAllowance
	}

	if err := a.move(from, to, amount); err != nil {
		return err
	}

	a.allowances[from][spender] = new(big.Int).Sub(allowance, amount)
	return nil
}

// move performs the balance update. Caller holds the lock.
func (a *TokenAsset) move(from, to common.Address, amount *big.Int) error {
	if amount.Sign() <= 0 {
		return ErrInvalidAmount
	}

	balance := a.balances[from]
	if balance == nil || balance.Cmp(amount) < 0 {
		return ErrInsufficientBalance
	}

	a.balances[from] = new(big.Int).Sub(balance, amount)

	toBalance := a.balances[to]
	if toBalance == nil {
		toBalance = big.NewInt(0)
	}
	a.balances[to] = new(big.Int).Add(toBalance, amount)

	return nil
}

// deadAsset always fails its supply probe. Used in tests for registration
// validation.
type deadAsset struct{}

// NewDeadAsset returns an asset whose total-supply probe always fails.
func NewDeadAsset() Asset {
	return deadAsset{}
}

func (deadAsset) TotalSupply() (*big.Int, error) {
	return nil, errors.New("no contract at address")
}

func (deadAsset) BalanceOf(common.Address) *big.Int { return big.NewInt(0) }

func (deadAsset) Transfer(common.Address, common.Address, *big.Int) error {
	return errors.New("no contract at address")
}

func (deadAsset) TransferFrom(common.Address, common.Address, common.Address, *big.Int) error {
	return errors.New("no contract at address")
}
