// Package ledger provides balance, allowance and supply bookkeeping for the
// issued Unum currency.
package ledger

import (
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
)

// Token metadata.
const (
	Name     = "Unum Dollar"
	Symbol   = "UD1"
	Decimals = 18
)

// Ledger tracks per-account balances and allowances alongside the two
// supply counters: TotalSupply shrinks when units are burned on redemption,
// TotalCreated is a high-water mark of everything ever minted and never
// decreases.
type Ledger struct {
	balances     map[common.Address]*big.Int
	allowances   map[common.Address]map[common.Address]*big.Int
	totalSupply  *big.Int
	totalCreated *big.Int

	mu sync.RWMutex
}

// New creates an empty ledger.
func New() *Ledger {
	return &Ledger{
		balances:     make(map[common.Address]*big.Int),
		allowances:   make(map[common.Address]map[common.Address]*big.Int),
		totalSupply:  big.NewInt(0),
		totalCreated: big.NewInt(0),
	}
}

// BalanceOf returns the Unum balance of an address.
func (l *Ledger) BalanceOf(addr common.Address) *big.Int {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if balance, ok := l.balances[addr]; ok {
		return new(big.Int).Set(balance)
	}
	return big.NewInt(0)
}

// TotalSupply returns the circulating supply.
func (l *Ledger) TotalSupply() *big.Int {
	l.mu.RLock()
	defer l.mu.RUnlock()

	return new(big.Int).Set(l.totalSupply)
}

// TotalCreated returns the cumulative amount of Unum ever minted. Burns do
// not decrement it.
func (l *Ledger) TotalCreated() *big.Int {
	l.mu.RLock()
	defer l.mu.RUnlock()

	return new(big.Int).Set(l.totalCreated)
}

// Transfer moves Unum between two addresses.
func (l *Ledger) Transfer(from, to common.Address, amount *big.Int) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	return l.move(from, to, amount)
}

// Approve sets the spender's allowance over the owner's balance.
func (l *Ledger) Approve(owner, spender common.Address, amount *big.Int) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.allowances[owner] == nil {
		l.allowances[owner] = make(map[common.Address]*big.Int)
	}
	l.allowances[owner][spender] = new(big.Int).Set(amount)
}

// Allowance returns the spender's remaining allowance over the owner's balance.
func (l *Ledger) Allowance(owner, spender common.Address) *big.Int {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if approved, ok := l.allowances[owner]; ok {
		if amount, ok := approved[spender]; ok {
			return new(big.Int).Set(amount)
		}
	}
	return big.NewInt(0)
}

// TransferFrom moves Unum on behalf of a spender, consuming allowance.
func (l *Ledger) TransferFrom(spender, from, to common.Address, amount *big.Int) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	allowance := big.NewInt(0)
	if approved, ok := l.allowances[from]; ok {
		if current, ok := approved[spender]; ok {
			allowance = current
		}
	}
	if allowance.Cmp(amount) < 0 {
		return ErrInsufficientAllowance
	}

	if err := l.move(from, to, amount); err != nil {
		return err
	}

	l.allowances[from][spender] = new(big.Int).Sub(allowance, amount)
	return nil
}

// Mint creates new Unum for an address. Privileged: only the issuance
// engine calls this, it is never exposed to external callers.
func (l *Ledger) Mint(to common.Address, amount *big.Int) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if amount.Sign() < 0 {
		return ErrInvalidAmount
	}

	balance := l.balances[to]
	if balance == nil {
		balance = big.NewInt(0)
	}
	l.balances[to] = new(big.Int).Add(balance, amount)
	l.totalSupply = new(big.Int).Add(l.totalSupply, amount)
	l.totalCreated = new(big.Int).Add(l.totalCreated, amount)

	return nil
}

// Burn destroys Unum held by an address. Privileged, engine-only.
// TotalCreated is left untouched.
func (l *Ledger) Burn(from common.Address, amount *big.Int) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	balance := l.balances[from]
	if balance == nil || balance.Cmp(amount) < 0 {
		return ErrInsufficientBalance
	}

	l.balances[from] = new(big.Int).Sub(balance, amount)
	l.totalSupply = new(big.Int).Sub(l.totalSupply, amount)

	return nil
}

// Holders returns every address with a recorded balance. Used by tests to
// check the supply invariant.
func (l *Ledger) Holders() []common.Address {
	l.mu.RLock()
	defer l.mu.RUnlock()

	addrs := make([]common.Address, 0, len(l.balances))
	for addr := range l.balances {
		addrs = append(addrs, addr)
	}
	return addrs
}

// move performs the balance update. Caller holds the lock.
func (l *Ledger) move(from, to common.Address, amount *big.Int) error {
	if amount.Sign() <= 0 {
		return ErrInvalidAmount
	}

	balance := l.balances[from]
	if balance == nil || balance.Cmp(amount) < 0 {
		return ErrInsufficientBalance
	}

	l.balances[from] = new(big.Int).Sub(balance, amount)

	toBalance := l.balances[to]
	if toBalance == nil {
		toBalance = big.NewInt(0)
	}
	l.balances[to] = new(big.Int).Add(toBalance, amount)

	return nil
}
