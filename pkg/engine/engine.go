// Package engine provides the issuance engine, the single access-controlled
// façade over the ledger, reserve vault, collateral registry, price oracle
// and bonus-sale controller. Every public operation commits all of its state
// changes or none of them.
package engine

import (
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/UnumOne/unum/pkg/asset"
	"github.com/UnumOne/unum/pkg/bonussale"
	"github.com/UnumOne/unum/pkg/events"
	"github.com/UnumOne/unum/pkg/ledger"
	"github.com/UnumOne/unum/pkg/oracle"
	"github.com/UnumOne/unum/pkg/registry"
	"github.com/UnumOne/unum/pkg/reserve"
)

// DefaultFeeBasisPoints is the conversion fee charged on both buys and
// sells: 5 bp = 0.05%.
const DefaultFeeBasisPoints = 5

// wad is the fixed-point scale: every monetary quantity is an integer
// number of 10^-18 units.
var wad = big.NewInt(1e18)

// Engine orchestrates buy and sell operations. One mutex serializes every
// public operation, so each executes as a single atomic step with all reads
// and writes consistent at one logical instant.
type Engine struct {
	owner      common.Address
	self       common.Address // custody account holding all collateral
	feeBps     *big.Int
	oracleAddr common.Address

	prices oracle.PriceSource
	tokens *registry.Registry
	book   *ledger.Ledger
	vault  *reserve.Vault
	sale   *bonussale.Controller
	log    *events.Log

	now func() time.Time

	mu sync.Mutex
}

// New creates an engine owned by owner, holding collateral custody at self,
// with the base asset registered under baseSymbol. The price oracle is
// attached afterwards via SetOracle.
func New(owner, self common.Address, baseSymbol string, base asset.Asset, feeBps int64, log *events.Log) *Engine {
	return &Engine{
		owner:  owner,
		self:   self,
		feeBps: big.NewInt(feeBps),
		tokens: registry.New(baseSymbol, base),
		book:   ledger.New(),
		vault:  reserve.NewVault(),
		sale:   bonussale.NewController(),
		log:    log,
		now:    time.Now,
	}
}

// SetClock replaces the engine's time source. Tests use this to drive the
// bonus-sale state machine with synthetic timestamps.
func (e *Engine) SetClock(now func() time.Time) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.now = now
}

// Owner returns the current owner.
func (e *Engine) Owner() common.Address {
	e.mu.Lock()
	defer e.mu.Unlock()

	return e.owner
}

// requireOwner is the single authorization predicate guarding every
// owner-gated operation. Caller holds the lock.
func (e *Engine) requireOwner(caller common.Address) error {
	if caller != e.owner {
		return ErrUnauthorized
	}
	return nil
}

// TransferOwnership hands the engine to a new owner, fully replacing the
// previous owner's authority.
func (e *Engine) TransferOwnership(caller, newOwner common.Address) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.requireOwner(caller); err != nil {
		return err
	}

	previous := e.owner
	e.owner = newOwner
	e.log.Append(events.OwnershipTransferred{Previous: previous, New: newOwner})
	return nil
}

// SetOracle attaches the price oracle the engine converts against.
func (e *Engine) SetOracle(caller common.Address, src oracle.PriceSource, addr common.Address) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.requireOwner(caller); err != nil {
		return err
	}

	e.prices = src
	e.oracleAddr = addr
	e.log.Append(events.OracleAddressSet{Address: addr})
	return nil
}

// AddToken registers an external collateral token under symbol. The handle
// must answer a total-supply probe or registration fails.
func (e *Engine) AddToken(caller common.Address, symbol string, a asset.Asset, addr common.Address) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.requireOwner(caller); err != nil {
		return err
	}
	if err := e.tokens.Register(symbol, a); err != nil {
		return err
	}

	e.log.Append(events.TokenSupportAdded{Symbol: symbol, Asset: addr})
	return nil
}

// SupportsToken reports whether a symbol is accepted as collateral.
func (e *Engine) SupportsToken(symbol string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	return e.tokens.IsSupported(symbol)
}

// SetBuyingDisabled toggles buy eligibility for a symbol. Selling is never
// gated.
func (e *Engine) SetBuyingDisabled(caller common.Address, symbol string, disabled bool) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.requireOwner(caller); err != nil {
		return err
	}
	return e.tokens.SetBuyingDisabled(symbol, disabled)
}

// StartBonusSale begins a promotional sale lasting durationDays with the
// given cumulative minted-units cap.
func (e *Engine) StartBonusSale(caller common.Address, durationDays int, cap *big.Int) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.requireOwner(caller); err != nil {
		return err
	}
	if cap == nil || cap.Sign() <= 0 {
		return ErrInvalidAmount
	}

	start, end, err := e.sale.Start(e.now(), durationDays, cap)
	if err != nil {
		return err
	}

	e.log.Append(events.BonusSale{StartTime: start, EndTime: end, UnumCap: new(big.Int).Set(cap)})
	return nil
}

// IsBonusSaleRunning reports whether a sale is live.
func (e *Engine) IsBonusSaleRunning() bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	return e.sale.IsRunning(e.now())
}

// BonusRatePercent returns the bonus percentage a mint would receive right
// now, measured against the current TotalCreated.
func (e *Engine) BonusRatePercent() int {
	e.mu.Lock()
	defer e.mu.Unlock()

	return e.sale.RatePercent(e.now(), e.book.TotalCreated())
}

// Buy converts amountIn of a collateral symbol into freshly minted Unum for
// the caller. The conversion fee stays in the fee pool, the remainder backs
// the mint, and a running bonus sale tops the mint up.
func (e *Engine) Buy(caller common.Address, symbol string, amountIn *big.Int) (*big.Int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if amountIn == nil || amountIn.Sign() <= 0 {
		return nil, ErrInvalidAmount
	}

	a, err := e.tokens.Asset(symbol)
	if err != nil {
		return nil, err
	}
	disabled, err := e.tokens.BuyingDisabled(symbol)
	if err != nil {
		return nil, err
	}
	if disabled {
		return nil, ErrBuyingDisabled
	}

	price, err := e.priceOf(symbol)
	if err != nil {
		return nil, err
	}

	fee := e.conversionFee(amountIn)
	net := new(big.Int).Sub(amountIn, fee)
	usdValue := mulPrice(net, price)

	minted := new(big.Int).Set(usdValue)
	if pct := e.sale.RatePercent(e.now(), e.book.TotalCreated()); pct > 0 {
		bonus := new(big.Int).Mul(usdValue, big.NewInt(int64(pct)))
		bonus.Div(bonus, big.NewInt(100))
		minted.Add(minted, bonus)
	}

	// Pull the collateral into custody first. Nothing is mutated on a
	// failed pull, and the bookkeeping below cannot fail after it.
	if err := a.TransferFrom(e.self, caller, e.self, amountIn); err != nil {
		switch err {
		case asset.ErrInsufficientBalance, asset.ErrInsufficientAllowance:
			return nil, err
		default:
			return nil, ErrTransferFailed
		}
	}

	_ = e.vault.AddCollateral(symbol, net)
	_ = e.vault.AddFee(symbol, fee)
	_ = e.book.Mint(caller, minted)

	e.log.Append(events.Buy{
		Symbol:   symbol,
		AmountIn: new(big.Int).Set(amountIn),
		NumUnum:  new(big.Int).Set(minted),
	})
	return minted, nil
}

// Sell redeems unumIn of the caller's Unum for the collateral symbol. The
// conversion fee accrues to the fee pool; the reserve-deficit penalty stays
// in the vault as un-withdrawn collateral, strengthening the backing of the
// remaining supply.
func (e *Engine) Sell(caller common.Address, symbol string, unumIn *big.Int) (*big.Int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if unumIn == nil || unumIn.Sign() <= 0 {
		return nil, ErrInvalidAmount
	}

	a, err := e.tokens.Asset(symbol)
	if err != nil {
		return nil, err
	}
	if e.book.BalanceOf(caller).Cmp(unumIn) < 0 {
		return nil, ledger.ErrInsufficientBalance
	}

	price, err := e.priceOf(symbol)
	if err != nil {
		return nil, err
	}

	fee := e.conversionFee(unumIn)
	penalty, err := e.deficitPenalty(unumIn)
	if err != nil {
		return nil, err
	}

	sellable := new(big.Int).Sub(unumIn, fee)
	sellable.Sub(sellable, penalty)
	currencyOut := divPrice(sellable, price)

	if e.vault.Collateral(symbol).Cmp(currencyOut) < 0 {
		return nil, reserve.ErrInsufficientReserve
	}

	// Pay the collateral out first; the checks above guarantee the
	// bookkeeping below succeeds, so a failed payout leaves no effects.
	// A dust sell can floor to a zero payout: nothing to move, but the
	// burn and fee accrual still commit.
	if currencyOut.Sign() > 0 {
		if err := a.Transfer(e.self, caller, currencyOut); err != nil {
			return nil, ErrTransferFailed
		}
	}

	_ = e.book.Burn(caller, unumIn)
	_ = e.vault.AddFee(symbol, fee)
	_ = e.vault.SubCollateral(symbol, currencyOut)

	e.log.Append(events.Sell{
		Symbol:    symbol,
		NumUnum:   new(big.Int).Set(unumIn),
		AmountOut: new(big.Int).Set(currencyOut),
	})
	return currencyOut, nil
}

// CollectFees transfers accrued fees for a symbol to the owner.
func (e *Engine) CollectFees(caller common.Address, symbol string, amount *big.Int) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.requireOwner(caller); err != nil {
		return err
	}
	if amount == nil || amount.Sign() <= 0 {
		return ErrInvalidAmount
	}

	a, err := e.tokens.Asset(symbol)
	if err != nil {
		return err
	}
	if e.vault.Fees(symbol).Cmp(amount) < 0 {
		return reserve.ErrInsufficientReserve
	}

	if err := a.Transfer(e.self, e.owner, amount); err != nil {
		return ErrTransferFailed
	}
	_ = e.vault.SubFee(symbol, amount)
	return nil
}

// ExpectedBuyReturn quotes the Unum a buy of amountIn would mint right now,
// bonus included. No state is mutated and no authorization applies.
func (e *Engine) ExpectedBuyReturn(symbol string, amountIn *big.Int) (*big.Int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if amountIn == nil || amountIn.Sign() <= 0 {
		return nil, ErrInvalidAmount
	}
	if !e.tokens.IsSupported(symbol) {
		return nil, registry.ErrUnsupportedSymbol
	}
	price, err := e.priceOf(symbol)
	if err != nil {
		return nil, err
	}

	net := new(big.Int).Sub(amountIn, e.conversionFee(amountIn))
	usdValue := mulPrice(net, price)

	minted := new(big.Int).Set(usdValue)
	if pct := e.sale.RatePercent(e.now(), e.book.TotalCreated()); pct > 0 {
		bonus := new(big.Int).Mul(usdValue, big.NewInt(int64(pct)))
		bonus.Div(bonus, big.NewInt(100))
		minted.Add(minted, bonus)
	}
	return minted, nil
}

// ExpectedSellReturn quotes the collateral a sell of unumIn would pay out
// right now, fee and deficit penalty deducted.
func (e *Engine) ExpectedSellReturn(symbol string, unumIn *big.Int) (*big.Int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if unumIn == nil || unumIn.Sign() <= 0 {
		return nil, ErrInvalidAmount
	}
	if !e.tokens.IsSupported(symbol) {
		return nil, registry.ErrUnsupportedSymbol
	}
	price, err := e.priceOf(symbol)
	if err != nil {
		return nil, err
	}

	penalty, err := e.deficitPenalty(unumIn)
	if err != nil {
		return nil, err
	}

	sellable := new(big.Int).Sub(unumIn, e.conversionFee(unumIn))
	sellable.Sub(sellable, penalty)
	return divPrice(sellable, price), nil
}

// ConversionFee returns the flat conversion fee charged on an amount.
// Non-positive amounts carry no fee.
func (e *Engine) ConversionFee(amount *big.Int) *big.Int {
	e.mu.Lock()
	defer e.mu.Unlock()

	if amount == nil || amount.Sign() <= 0 {
		return big.NewInt(0)
	}
	return e.conversionFee(amount)
}

// ReserveDeficitSellPenalty returns the penalty a sell of unumIn would
// incur at the current reserve deficit.
func (e *Engine) ReserveDeficitSellPenalty(unumIn *big.Int) (*big.Int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if unumIn == nil || unumIn.Sign() <= 0 {
		return nil, ErrInvalidAmount
	}
	return e.deficitPenalty(unumIn)
}

// AvailableReserve returns the collateral held for a symbol.
func (e *Engine) AvailableReserve(symbol string) (*big.Int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.tokens.IsSupported(symbol) {
		return nil, registry.ErrUnsupportedSymbol
	}
	return e.vault.Collateral(symbol), nil
}

// AvailableReserveInUSD returns the USD value of all collateral held,
// summed over every registered symbol at current oracle prices.
func (e *Engine) AvailableReserveInUSD() (*big.Int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	return e.reserveValueInUSD()
}

// EthFeeBalance returns the fees accrued in the base asset.
func (e *Engine) EthFeeBalance() *big.Int {
	e.mu.Lock()
	defer e.mu.Unlock()

	return e.vault.Fees(e.tokens.BaseSymbol())
}

// TokenFeeBalance returns the fees accrued in a collateral token.
func (e *Engine) TokenFeeBalance(symbol string) (*big.Int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.tokens.IsSupported(symbol) {
		return nil, registry.ErrUnsupportedSymbol
	}
	return e.vault.Fees(symbol), nil
}

// Currency bookkeeping, delegated to the ledger so external callers only
// ever touch the façade.

// BalanceOf returns the caller-visible Unum balance of an address.
func (e *Engine) BalanceOf(addr common.Address) *big.Int { return e.book.BalanceOf(addr) }

// TotalSupply returns the circulating Unum supply.
func (e *Engine) TotalSupply() *big.Int { return e.book.TotalSupply() }

// TotalCreated returns the cumulative Unum ever minted.
func (e *Engine) TotalCreated() *big.Int { return e.book.TotalCreated() }

// Transfer moves Unum between accounts.
func (e *Engine) Transfer(from, to common.Address, amount *big.Int) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if amount == nil {
		return ErrInvalidAmount
	}
	return e.book.Transfer(from, to, amount)
}

// Approve sets a spender allowance on the caller's Unum. A nil amount
// clears the allowance.
func (e *Engine) Approve(owner, spender common.Address, amount *big.Int) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if amount == nil {
		amount = big.NewInt(0)
	}
	e.book.Approve(owner, spender, amount)
}

// Allowance returns a spender's remaining Unum allowance.
func (e *Engine) Allowance(owner, spender common.Address) *big.Int {
	return e.book.Allowance(owner, spender)
}

// TransferFrom moves Unum on behalf of a spender.
func (e *Engine) TransferFrom(spender, from, to common.Address, amount *big.Int) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if amount == nil {
		return ErrInvalidAmount
	}
	return e.book.TransferFrom(spender, from, to, amount)
}

// Symbols returns every registered collateral symbol.
func (e *Engine) Symbols() []string {
	e.mu.Lock()
	defer e.mu.Unlock()

	return e.tokens.Symbols()
}

// conversionFee computes amount * feeBps / 10000, floor-divided. Caller
// holds the lock.
func (e *Engine) conversionFee(amount *big.Int) *big.Int {
	fee := new(big.Int).Mul(amount, e.feeBps)
	return fee.Div(fee, big.NewInt(10000))
}

// priceOf reads a symbol's USD price from the attached oracle. Caller holds
// the lock.
func (e *Engine) priceOf(symbol string) (*big.Int, error) {
	if e.prices == nil {
		return nil, ErrNoOracle
	}
	if !e.prices.HasPrice(symbol) {
		return nil, oracle.ErrPriceUnavailable
	}
	price, _, err := e.prices.PriceOf(symbol)
	if err != nil {
		return nil, err
	}
	return price, nil
}

// reserveValueInUSD sums collateral holdings across all registered symbols
// at current oracle prices. Symbols holding no collateral are skipped, so a
// missing price only fails the valuation once that symbol actually backs
// supply. Caller holds the lock.
func (e *Engine) reserveValueInUSD() (*big.Int, error) {
	total := big.NewInt(0)
	for _, symbol := range e.tokens.Symbols() {
		held := e.vault.Collateral(symbol)
		if held.Sign() == 0 {
			continue
		}
		price, err := e.priceOf(symbol)
		if err != nil {
			return nil, err
		}
		total.Add(total, mulPrice(held, price))
	}
	return total, nil
}

// deficitPenalty computes the reserve-deficit redemption penalty on unumIn:
// a tenth of the deficit ratio, so a 10% deficit costs 1% of the sale. The
// ratio clamps at 100%, bounding the penalty at 10% of unumIn. Caller holds
// the lock.
func (e *Engine) deficitPenalty(unumIn *big.Int) (*big.Int, error) {
	supply := e.book.TotalSupply()
	if supply.Sign() == 0 {
		return big.NewInt(0), nil
	}

	reserveUSD, err := e.reserveValueInUSD()
	if err != nil {
		return nil, err
	}
	if reserveUSD.Cmp(supply) >= 0 {
		return big.NewInt(0), nil
	}

	deficit := new(big.Int).Sub(supply, reserveUSD)
	ratio := new(big.Int).Mul(deficit, wad)
	ratio.Div(ratio, supply)
	if ratio.Cmp(wad) > 0 {
		ratio.Set(wad)
	}

	penalty := new(big.Int).Mul(unumIn, ratio)
	penalty.Div(penalty, new(big.Int).Mul(wad, big.NewInt(10)))
	return penalty, nil
}

// mulPrice converts an asset amount to USD units: amount * price / 10^18.
func mulPrice(amount, price *big.Int) *big.Int {
	out := new(big.Int).Mul(amount, price)
	return out.Div(out, wad)
}

// divPrice converts a USD amount back to asset units: amount * 10^18 / price.
func divPrice(amount, price *big.Int) *big.Int {
	out := new(big.Int).Mul(amount, wad)
	return out.Div(out, price)
}
