// Package events provides the append-only event log emitted by the issuance
// engine and its collaborators. Clients reconstruct reserve, fee, supply and
// sale state from these entries plus current reads.
package events

import (
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
)

// Event is a typed log payload.
type Event interface {
	Name() string
}

// Entry is one immutable log record.
type Entry struct {
	Seq   uint64
	Event Event
}

// Buy records an issuance: amountIn of the collateral came in, numUnum
// units of currency were minted to the buyer.
type Buy struct {
	Symbol   string
	AmountIn *big.Int
	NumUnum  *big.Int
}

func (Buy) Name() string { return "Buy" }

// Sell records a redemption: numUnum units came in, amountOut of the
// collateral went back to the seller.
type Sell struct {
	Symbol    string
	NumUnum   *big.Int
	AmountOut *big.Int
}

func (Sell) Name() string { return "Sell" }

// BonusSale records the start of a promotional sale.
type BonusSale struct {
	StartTime int64
	EndTime   int64
	UnumCap   *big.Int
}

func (BonusSale) Name() string { return "BonusSale" }

// TokenSupportAdded records a new collateral token registration.
type TokenSupportAdded struct {
	Symbol string
	Asset  common.Address
}

func (TokenSupportAdded) Name() string { return "TokenSupportAdded" }

// OracleAddressSet records the engine switching price oracles.
type OracleAddressSet struct {
	Address common.Address
}

func (OracleAddressSet) Name() string { return "OracleAddressSet" }

// OwnershipTransferred records an ownership handover.
type OwnershipTransferred struct {
	Previous common.Address
	New      common.Address
}

func (OwnershipTransferred) Name() string { return "OwnershipTransferred" }

// ItemAdded records a symbol listed on the oracle.
type ItemAdded struct {
	Symbol string
}

func (ItemAdded) Name() string { return "ItemAdded" }

// ItemPriceSet records an oracle price write.
type ItemPriceSet struct {
	Symbol string
	Price  *big.Int
}

func (ItemPriceSet) Name() string { return "ItemPriceSet" }

// symboled is implemented by events tied to one collateral symbol.
type symboled interface {
	symbol() string
}

func (e Buy) symbol() string               { return e.Symbol }
func (e Sell) symbol() string              { return e.Symbol }
func (e TokenSupportAdded) symbol() string { return e.Symbol }
func (e ItemAdded) symbol() string         { return e.Symbol }
func (e ItemPriceSet) symbol() string      { return e.Symbol }

// Log is an append-only, sequence-numbered event log.
type Log struct {
	entries []Entry
	nextSeq uint64

	mu sync.RWMutex
}

// NewLog creates an empty log.
func NewLog() *Log {
	return &Log{entries: make([]Entry, 0)}
}

// Append records an event and returns its sequence number.
func (l *Log) Append(ev Event) uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()

	seq := l.nextSeq
	l.entries = append(l.entries, Entry{Seq: seq, Event: ev})
	l.nextSeq++
	return seq
}

// All returns every entry in append order.
func (l *Log) All() []Entry {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make([]Entry, len(l.entries))
	copy(out, l.entries)
	return out
}

// Len returns the number of entries.
func (l *Log) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()

	return len(l.entries)
}

// ByName returns entries whose event carries the given name.
func (l *Log) ByName(name string) []Entry {
	l.mu.RLock()
	defer l.mu.RUnlock()

	var out []Entry
	for _, entry := range l.entries {
		if entry.Event.Name() == name {
			out = append(out, entry)
		}
	}
	return out
}

// BySymbol returns entries for events indexed by a collateral symbol.
func (l *Log) BySymbol(symbol string) []Entry {
	l.mu.RLock()
	defer l.mu.RUnlock()

	var out []Entry
	for _, entry := range l.entries {
		if s, ok := entry.Event.(symboled); ok && s.symbol() == symbol {
			out = append(out, entry)
		}
	}
	return out
}

// Last returns the most recent entry with the given name, if any.
func (l *Log) Last(name string) (Entry, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	for i := len(l.entries) - 1; i >= 0; i-- {
		if l.entries[i].Event.Name() == name {
			return l.entries[i], true
		}
	}
	return Entry{}, false
}
