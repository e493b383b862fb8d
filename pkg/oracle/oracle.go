// Package oracle provides the owner-curated USD price feed the issuance
// engine converts against.
package oracle

import (
	"errors"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/UnumOne/unum/pkg/events"
)

// Oracle errors.
var (
	ErrUnauthorized     = errors.New("unauthorized operation")
	ErrAlreadyListed    = errors.New("item already listed")
	ErrPriceUnavailable = errors.New("price unavailable")
	ErrInvalidPrice     = errors.New("price must be positive")
)

// PriceSource is the read-only contract the issuance engine consumes.
// Prices are USD per 1.0 of the asset, fixed-point scaled by 10^18.
type PriceSource interface {
	HasPrice(symbol string) bool
	PriceOf(symbol string) (*big.Int, time.Time, error)
}

// priceEntry holds a listed item's current price and update time.
type priceEntry struct {
	priceUSD    *big.Int
	lastUpdated time.Time
	priced      bool
}

// PriceInUSDOracle maps symbols to owner-written USD prices.
type PriceInUSDOracle struct {
	owner   common.Address
	entries map[string]*priceEntry
	log     *events.Log

	mu sync.RWMutex
}

// New creates an oracle owned by the given address.
func New(owner common.Address, log *events.Log) *PriceInUSDOracle {
	return &PriceInUSDOracle{
		owner:   owner,
		entries: make(map[string]*priceEntry),
		log:     log,
	}
}

// Owner returns the current oracle owner.
func (o *PriceInUSDOracle) Owner() common.Address {
	o.mu.RLock()
	defer o.mu.RUnlock()

	return o.owner
}

// TransferOwnership hands the oracle to a new owner. The previous owner's
// authority is fully replaced.
func (o *PriceInUSDOracle) TransferOwnership(caller, newOwner common.Address) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if caller != o.owner {
		return ErrUnauthorized
	}

	previous := o.owner
	o.owner = newOwner
	o.log.Append(events.OwnershipTransferred{Previous: previous, New: newOwner})
	return nil
}

// AddItem lists a new symbol. The symbol has no price until SetPriceInUSD
// is called for it.
func (o *PriceInUSDOracle) AddItem(caller common.Address, symbol string) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if caller != o.owner {
		return ErrUnauthorized
	}
	if _, exists := o.entries[symbol]; exists {
		return ErrAlreadyListed
	}

	o.entries[symbol] = &priceEntry{}
	o.log.Append(events.ItemAdded{Symbol: symbol})
	return nil
}

// SetPriceInUSD writes a listed symbol's USD price.
func (o *PriceInUSDOracle) SetPriceInUSD(caller common.Address, symbol string, price *big.Int, now time.Time) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if caller != o.owner {
		return ErrUnauthorized
	}
	entry, exists := o.entries[symbol]
	if !exists {
		return ErrPriceUnavailable
	}
	if price == nil || price.Sign() <= 0 {
		return ErrInvalidPrice
	}

	entry.priceUSD = new(big.Int).Set(price)
	entry.lastUpdated = now
	entry.priced = true
	o.log.Append(events.ItemPriceSet{Symbol: symbol, Price: new(big.Int).Set(price)})
	return nil
}

// HasItem reports whether a symbol is listed, priced or not.
func (o *PriceInUSDOracle) HasItem(symbol string) bool {
	o.mu.RLock()
	defer o.mu.RUnlock()

	_, exists := o.entries[symbol]
	return exists
}

// HasPrice reports whether a symbol has a usable price.
func (o *PriceInUSDOracle) HasPrice(symbol string) bool {
	o.mu.RLock()
	defer o.mu.RUnlock()

	entry, exists := o.entries[symbol]
	return exists && entry.priced
}

// PriceOf returns a symbol's USD price and its last update time.
func (o *PriceInUSDOracle) PriceOf(symbol string) (*big.Int, time.Time, error) {
	o.mu.RLock()
	defer o.mu.RUnlock()

	entry, exists := o.entries[symbol]
	if !exists || !entry.priced {
		return nil, time.Time{}, ErrPriceUnavailable
	}
	return new(big.Int).Set(entry.priceUSD), entry.lastUpdated, nil
}

// LastUpdated returns the time a symbol's price was last written.
func (o *PriceInUSDOracle) LastUpdated(symbol string) (time.Time, error) {
	_, updated, err := o.PriceOf(symbol)
	return updated, err
}
