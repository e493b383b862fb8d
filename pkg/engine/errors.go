package engine

import "errors"

// Engine errors. Validation errors from collaborators (registry, oracle,
// ledger, asset, reserve) are surfaced as those packages' sentinels.
var (
	ErrUnauthorized   = errors.New("unauthorized operation")
	ErrInvalidAmount  = errors.New("amount must be positive")
	ErrBuyingDisabled = errors.New("buying with this symbol is disabled")
	ErrTransferFailed = errors.New("collateral transfer failed")
	ErrNoOracle       = errors.New("no price oracle configured")
)
