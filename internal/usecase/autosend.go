package usecase

import (
	"strings"
	"sync"
	"time"

	"speakfluent/internal/domain"
	"speakfluent/internal/ports"
)

const (
	DefaultAutoSendDelay = 3 * time.Second
	DefaultSettleDelay   = 100 * time.Millisecond
)

// AutoSendConfig holds the auto-send tunables.
type AutoSendConfig struct {
	// Delay is how long unfocused, unchanged text waits before it is sent.
	Delay time.Duration
	// SettleDelay lets the final transcript land after recording stops.
	SettleDelay time.Duration
}

// AutoSendCoordinator decides when the text of one input field is submitted without an
// explicit send. At most one auto-send timer is live; arming always stops the previous one.
type AutoSendCoordinator struct {
	scheduler ports.Scheduler
	cfg       AutoSendConfig
	send      func(text string)
	observe   func(state domain.AutoSendState)

	mu        sync.Mutex
	state     domain.AutoSendState
	text      string
	armedText string
	focused   bool
	disabled  bool

	timer     ports.Timer
	gen       uint64
	settle    ports.Timer
	settleGen uint64
}

func NewAutoSendCoordinator(
	scheduler ports.Scheduler,
	cfg AutoSendConfig,
	send func(text string),
	observe func(state domain.AutoSendState),
) *AutoSendCoordinator {
	if scheduler == nil {
		scheduler = RealScheduler{}
	}
	if cfg.Delay <= 0 {
		cfg.Delay = DefaultAutoSendDelay
	}
	if cfg.SettleDelay < 0 {
		cfg.SettleDelay = DefaultSettleDelay
	}
	return &AutoSendCoordinator{
		scheduler: scheduler,
		cfg:       cfg,
		send:      send,
		observe:   observe,
		state:     domain.AutoSendIdle,
	}
}

// State returns the current coordinator state.
func (c *AutoSendCoordinator) State() domain.AutoSendState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// TextChanged records a mutation of the field text, typed or transcribed.
func (c *AutoSendCoordinator) TextChanged(text string) {
	c.mu.Lock()
	prev := c.state
	c.text = text
	if c.canArmLocked() {
		c.armLocked()
	} else {
		c.cancelTimerLocked()
	}
	c.unlockAndNotify(prev)
}

// Focus cancels any pending send; nothing is sent while the user edits.
func (c *AutoSendCoordinator) Focus() {
	c.mu.Lock()
	prev := c.state
	c.focused = true
	c.cancelSettleLocked()
	c.cancelTimerLocked()
	c.unlockAndNotify(prev)
}

// Blur arms the timer when the field keeps non-empty text.
func (c *AutoSendCoordinator) Blur() {
	c.mu.Lock()
	prev := c.state
	c.focused = false
	if c.canArmLocked() {
		c.armLocked()
	}
	c.unlockAndNotify(prev)
}

// RecordingStarted drops any pending send and settle; transcript updates arm again.
func (c *AutoSendCoordinator) RecordingStarted() {
	c.mu.Lock()
	prev := c.state
	c.cancelSettleLocked()
	c.cancelTimerLocked()
	c.unlockAndNotify(prev)
}

// RecordingStopped re-arms the timer after the settle delay if the field is still unfocused
// and non-empty at that point, so the deadline counts from the final transcript.
func (c *AutoSendCoordinator) RecordingStopped() {
	c.mu.Lock()
	c.cancelSettleLocked()
	c.settleGen++
	gen := c.settleGen
	c.settle = c.scheduler.AfterFunc(c.cfg.SettleDelay, func() { c.settled(gen) })
	c.mu.Unlock()
}

// RecordingFailed ends the recording without arming. A failed session never auto-sends.
func (c *AutoSendCoordinator) RecordingFailed() {
	c.mu.Lock()
	prev := c.state
	c.cancelSettleLocked()
	c.cancelTimerLocked()
	c.unlockAndNotify(prev)
}

// Cancel stops any pending auto-send unconditionally.
func (c *AutoSendCoordinator) Cancel() {
	c.mu.Lock()
	prev := c.state
	c.cancelSettleLocked()
	c.cancelTimerLocked()
	c.unlockAndNotify(prev)
}

// SetDisabled blocks auto-send, e.g. while a send is in flight.
func (c *AutoSendCoordinator) SetDisabled(disabled bool) {
	c.mu.Lock()
	prev := c.state
	c.disabled = disabled
	if disabled {
		c.cancelSettleLocked()
		c.cancelTimerLocked()
	} else if c.canArmLocked() {
		c.armLocked()
	}
	c.unlockAndNotify(prev)
}

func (c *AutoSendCoordinator) settled(gen uint64) {
	c.mu.Lock()
	if gen != c.settleGen {
		c.mu.Unlock()
		return
	}
	prev := c.state
	c.settle = nil
	if c.canArmLocked() {
		c.armLocked()
	}
	c.unlockAndNotify(prev)
}

func (c *AutoSendCoordinator) fire(gen uint64) {
	c.mu.Lock()
	if gen != c.gen || c.state != domain.AutoSendArmed {
		c.mu.Unlock()
		return
	}
	prev := c.state
	c.timer = nil
	if !c.canArmLocked() || c.text != c.armedText {
		c.state = domain.AutoSendIdle
		c.unlockAndNotify(prev)
		return
	}
	text := c.armedText
	c.state = domain.AutoSendFired
	c.unlockAndNotify(prev)

	if c.send != nil {
		c.send(text)
	}

	c.mu.Lock()
	prev = c.state
	if c.gen == gen && c.state == domain.AutoSendFired {
		c.state = domain.AutoSendIdle
	}
	c.unlockAndNotify(prev)
}

func (c *AutoSendCoordinator) canArmLocked() bool {
	return !c.focused && !c.disabled && strings.TrimSpace(c.text) != ""
}

func (c *AutoSendCoordinator) armLocked() {
	if c.timer != nil {
		c.timer.Stop()
	}
	c.gen++
	gen := c.gen
	c.armedText = c.text
	c.state = domain.AutoSendArmed
	c.timer = c.scheduler.AfterFunc(c.cfg.Delay, func() { c.fire(gen) })
}

func (c *AutoSendCoordinator) cancelTimerLocked() {
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	c.gen++
	c.armedText = ""
	c.state = domain.AutoSendIdle
}

func (c *AutoSendCoordinator) cancelSettleLocked() {
	if c.settle != nil {
		c.settle.Stop()
		c.settle = nil
	}
	c.settleGen++
}

func (c *AutoSendCoordinator) unlockAndNotify(prev domain.AutoSendState) {
	state := c.state
	c.mu.Unlock()
	if state != prev && c.observe != nil {
		c.observe(state)
	}
}
