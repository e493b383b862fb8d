// Package bonussale provides the time-boxed promotional minting-bonus state
// machine layered on top of issuance.
package bonussale

import (
	"errors"
	"math/big"
	"sync"
	"time"
)

// Sale errors.
var (
	ErrInvalidDuration = errors.New("duration must be between 1 and 10 days")
	ErrInvalidCap      = errors.New("cap must be positive")
	ErrCooldown        = errors.New("previous sale started less than 30 days ago")
)

// Duration and cooldown bounds, in seconds.
const (
	SecondsPerDay   = 86400
	CooldownSeconds = 30 * SecondsPerDay
	MaxDurationDays = 10
)

// sale holds one promotional sale record. At most one exists at a time;
// a successful restart overwrites it.
type sale struct {
	startTime int64
	endTime   int64
	unumCap   *big.Int
}

// Controller runs the bonus-sale state machine. Timestamps are passed in
// explicitly so callers stay deterministic under synthetic clocks.
type Controller struct {
	current *sale

	mu sync.RWMutex
}

// NewController creates a controller with no sale on record.
func NewController() *Controller {
	return &Controller{}
}

// Start begins a new sale at now, lasting durationDays with the given
// cumulative minted-units cap. A new sale may not start while the previous
// one's start time is less than 30 days in the past, whether or not that
// sale already ended.
func (c *Controller) Start(now time.Time, durationDays int, cap *big.Int) (start, end int64, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if durationDays < 1 || durationDays > MaxDurationDays {
		return 0, 0, ErrInvalidDuration
	}
	if cap == nil || cap.Sign() <= 0 {
		return 0, 0, ErrInvalidCap
	}

	startTime := now.Unix()
	if c.current != nil && startTime < c.current.startTime+CooldownSeconds {
		return 0, 0, ErrCooldown
	}

	c.current = &sale{
		startTime: startTime,
		endTime:   startTime + int64(durationDays)*SecondsPerDay,
		unumCap:   new(big.Int).Set(cap),
	}
	return c.current.startTime, c.current.endTime, nil
}

// IsRunning reports whether a sale is live at now.
func (c *Controller) IsRunning(now time.Time) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return c.running(now.Unix())
}

// running reports liveness at a unix timestamp. Caller holds the lock.
func (c *Controller) running(at int64) bool {
	return c.current != nil && at >= c.current.startTime && at < c.current.endTime
}

// RatePercent returns the bonus percentage a mint would receive at now,
// given totalCreated as measured immediately before that mint. The rate is
// 0 with no running sale or once totalCreated has reached the cap, and
// otherwise ratchets up one point per elapsed full day of the sale.
func (c *Controller) RatePercent(now time.Time, totalCreated *big.Int) int {
	c.mu.RLock()
	defer c.mu.RUnlock()

	at := now.Unix()
	if !c.running(at) {
		return 0
	}
	if totalCreated.Cmp(c.current.unumCap) >= 0 {
		return 0
	}

	elapsedDays := (at - c.current.startTime) / SecondsPerDay
	return 1 + int(elapsedDays)
}

// Cap returns the current sale's cumulative cap, or nil with no record.
func (c *Controller) Cap() *big.Int {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.current == nil {
		return nil
	}
	return new(big.Int).Set(c.current.unumCap)
}

// Window returns the current sale's start and end times, or false with no
// record.
func (c *Controller) Window() (start, end int64, ok bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.current == nil {
		return 0, 0, false
	}
	return c.current.startTime, c.current.endTime, true
}
