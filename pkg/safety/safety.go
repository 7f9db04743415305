// Emergency-stop interlock chain
//
// Copyright (C) 2026 Go binding
//
// This file may be distributed under the terms of the GNU GPLv3 license.

// Package safety latches the rack into a safe state: one Trip call
// emergency-stops every registered interlock, records why, and keeps
// motion commands refused until an explicit Release. A heartbeat
// watchdog can trip the chain when the supervising process stalls.
package safety

import (
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// State is the chain's latch state.
type State int

const (
	// StateArmed indicates normal operation.
	StateArmed State = iota

	// StateTripping indicates interlocks are being driven safe.
	StateTripping

	// StateTripped indicates the chain is latched until Release.
	StateTripped
)

func (s State) String() string {
	switch s {
	case StateArmed:
		return "armed"
	case StateTripping:
		return "tripping"
	case StateTripped:
		return "tripped"
	default:
		return "unknown"
	}
}

// Reason describes why the chain tripped.
type Reason string

const (
	ReasonNone         Reason = ""
	ReasonOperator     Reason = "operator"
	ReasonGatewayFault Reason = "gateway_fault"
	ReasonServoAlarm   Reason = "servo_alarm"
	ReasonSoftLimit    Reason = "soft_limit"
	ReasonWatchdog     Reason = "watchdog_timeout"
)

// Interlock is one component the chain drives safe on trip.
type Interlock interface {
	Name() string
	Trip() error
}

// AxisStopper is the motion surface the chain needs from an axis.
type AxisStopper interface {
	EStop() error
	ServoOn(on bool) error
}

type axisInterlock struct {
	name string
	ax   AxisStopper
}

func (a *axisInterlock) Name() string { return a.name }

func (a *axisInterlock) Trip() error {
	if err := a.ax.EStop(); err != nil {
		return err
	}
	return a.ax.ServoOn(false)
}

// OutputClearer is the digital-output surface the chain needs.
type OutputClearer interface {
	WriteOutWord(offset int, value uint32) error
	ContactNum() (inputs, outputs int)
}

type outputInterlock struct {
	name string
	out  OutputClearer
}

func (o *outputInterlock) Name() string { return o.name }

func (o *outputInterlock) Trip() error {
	_, outputs := o.out.ContactNum()
	words := (outputs + 15) / 16
	for w := 0; w < words; w++ {
		if err := o.out.WriteOutWord(w, 0); err != nil {
			return err
		}
	}
	return nil
}

// Chain is the interlock collection and latch.
type Chain struct {
	log *zap.Logger

	mu        sync.Mutex
	state     State
	reason    Reason
	msg       string
	trippedAt time.Time
	locks     []Interlock
	onTrip    []func(Reason, string)

	wdQuit chan struct{}
	wdBeat chan struct{}
}

// NewChain builds an armed, empty chain.
func NewChain(log *zap.Logger) *Chain {
	if log == nil {
		log = zap.NewNop()
	}
	return &Chain{log: log, state: StateArmed}
}

// Register adds an interlock. Registration order is trip order.
func (c *Chain) Register(il Interlock) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.locks = append(c.locks, il)
}

// RegisterAxis adds an axis: trip emergency-stops it and drops the
// servo.
func (c *Chain) RegisterAxis(name string, ax AxisStopper) {
	c.Register(&axisInterlock{name: name, ax: ax})
}

// RegisterOutputs adds a digital module whose outputs are cleared on
// trip.
func (c *Chain) RegisterOutputs(name string, out OutputClearer) {
	c.Register(&outputInterlock{name: name, out: out})
}

// OnTrip registers a callback invoked after the chain latches. The
// callback runs on the tripping goroutine and must not call back into
// the chain.
func (c *Chain) OnTrip(fn func(Reason, string)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onTrip = append(c.onTrip, fn)
}

// Trip drives every interlock safe and latches the chain. A second
// trip while latched is a no-op. Interlock failures are logged and do
// not stop the chain from driving the remaining interlocks.
func (c *Chain) Trip(reason Reason, msg string) {
	c.mu.Lock()
	if c.state != StateArmed {
		c.mu.Unlock()
		return
	}
	c.state = StateTripping
	c.reason = reason
	c.msg = msg
	c.trippedAt = time.Now()
	locks := make([]Interlock, len(c.locks))
	copy(locks, c.locks)
	callbacks := make([]func(Reason, string), len(c.onTrip))
	copy(callbacks, c.onTrip)
	c.mu.Unlock()

	c.log.Warn("safety chain tripping",
		zap.String("reason", string(reason)), zap.String("msg", msg))

	for _, il := range locks {
		if err := il.Trip(); err != nil {
			c.log.Error("interlock trip failed",
				zap.String("interlock", il.Name()), zap.Error(err))
		}
	}

	c.mu.Lock()
	c.state = StateTripped
	c.mu.Unlock()

	for _, fn := range callbacks {
		fn(reason, msg)
	}
}

// Release re-arms a tripped chain. Servos stay off; the operator
// re-enables them explicitly.
func (c *Chain) Release() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch c.state {
	case StateArmed:
		return fmt.Errorf("safety: chain is not tripped")
	case StateTripping:
		return fmt.Errorf("safety: chain is still tripping")
	}
	c.state = StateArmed
	c.reason = ReasonNone
	c.msg = ""
	c.log.Info("safety chain released")
	return nil
}

// State returns the latch state.
func (c *Chain) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Tripped reports whether motion commands should be refused.
func (c *Chain) Tripped() bool { return c.State() != StateArmed }

// Info returns the latch state with its cause.
func (c *Chain) Info() (State, Reason, string, time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state, c.reason, c.msg, c.trippedAt
}

// StartWatchdog trips the chain when Heartbeat is not called within
// timeout. Stop with StopWatchdog.
func (c *Chain) StartWatchdog(timeout time.Duration) error {
	c.mu.Lock()
	if c.wdQuit != nil {
		c.mu.Unlock()
		return fmt.Errorf("safety: watchdog already running")
	}
	quit := make(chan struct{})
	beat := make(chan struct{}, 1)
	c.wdQuit = quit
	c.wdBeat = beat
	c.mu.Unlock()

	go func() {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		for {
			select {
			case <-quit:
				return
			case <-beat:
				if !timer.Stop() {
					<-timer.C
				}
				timer.Reset(timeout)
			case <-timer.C:
				c.Trip(ReasonWatchdog,
					fmt.Sprintf("no heartbeat within %v", timeout))
				return
			}
		}
	}()
	return nil
}

// Heartbeat feeds the watchdog.
func (c *Chain) Heartbeat() {
	c.mu.Lock()
	beat := c.wdBeat
	c.mu.Unlock()
	if beat == nil {
		return
	}
	select {
	case beat <- struct{}{}:
	default:
	}
}

// StopWatchdog stops the watchdog without tripping.
func (c *Chain) StopWatchdog() {
	c.mu.Lock()
	if c.wdQuit != nil {
		close(c.wdQuit)
		c.wdQuit = nil
		c.wdBeat = nil
	}
	c.mu.Unlock()
}
