// Package registry provides the owner-curated set of collateral symbols the
// issuance engine accepts.
package registry

import (
	"errors"
	"sort"
	"sync"

	"github.com/UnumOne/unum/pkg/asset"
)

// Registry errors.
var (
	ErrAlreadyRegistered = errors.New("symbol already registered")
	ErrUnsupportedSymbol = errors.New("symbol not supported")
	ErrInvalidAsset      = errors.New("asset handle is not a live token account")
)

// entry holds one registered collateral symbol.
type entry struct {
	asset          asset.Asset
	buyingDisabled bool
}

// Registry maps collateral symbols to their asset accounts. Symbols are
// never removed once registered; the base-asset symbol is registered at
// construction and always present.
type Registry struct {
	baseSymbol string
	entries    map[string]*entry

	mu sync.RWMutex
}

// New creates a registry with the base asset pre-registered under
// baseSymbol.
func New(baseSymbol string, base asset.Asset) *Registry {
	r := &Registry{
		baseSymbol: baseSymbol,
		entries:    make(map[string]*entry),
	}
	r.entries[baseSymbol] = &entry{asset: base}
	return r
}

// BaseSymbol returns the base asset's symbol.
func (r *Registry) BaseSymbol() string {
	return r.baseSymbol
}

// Register adds an external collateral token. The handle must answer a
// total-supply probe, otherwise it is rejected as a dead account.
func (r *Registry) Register(symbol string, a asset.Asset) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.entries[symbol]; exists {
		return ErrAlreadyRegistered
	}
	if a == nil {
		return ErrInvalidAsset
	}
	if _, err := a.TotalSupply(); err != nil {
		return ErrInvalidAsset
	}

	r.entries[symbol] = &entry{asset: a}
	return nil
}

// IsSupported reports whether a symbol is registered.
func (r *Registry) IsSupported(symbol string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, exists := r.entries[symbol]
	return exists
}

// Asset returns the asset account backing a symbol.
func (r *Registry) Asset(symbol string) (asset.Asset, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, exists := r.entries[symbol]
	if !exists {
		return nil, ErrUnsupportedSymbol
	}
	return e.asset, nil
}

// SetBuyingDisabled toggles buy eligibility for a symbol. Selling is never
// gated by this flag.
func (r *Registry) SetBuyingDisabled(symbol string, disabled bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, exists := r.entries[symbol]
	if !exists {
		return ErrUnsupportedSymbol
	}
	e.buyingDisabled = disabled
	return nil
}

// BuyingDisabled reports whether buying with a symbol is disabled.
func (r *Registry) BuyingDisabled(symbol string) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, exists := r.entries[symbol]
	if !exists {
		return false, ErrUnsupportedSymbol
	}
	return e.buyingDisabled, nil
}

// Symbols returns every registered symbol in sorted order.
func (r *Registry) Symbols() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	symbols := make([]string, 0, len(r.entries))
	for symbol := range r.entries {
		symbols = append(symbols, symbol)
	}
	sort.Strings(symbols)
	return symbols
}
