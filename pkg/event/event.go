// Interrupt flag banks and subscriptions
//
// Copyright (C) 2026 Go binding
//
// This file may be distributed under the terms of the GNU GPLv3 license.

// Package event carries asynchronous hardware notifications to
// application code. Sources latch bits into per-resource flag banks;
// subscriptions deliver masked bits by polling, by callback on a
// dedicated dispatcher goroutine, or over a Go channel. Reading a bank
// clears its latched bits.
package event

import (
	"fmt"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Motion bank flag bits. Limit, soft-limit, alarm, and
// signal-detected keep their hardware bank positions.
const (
	HomeDone       uint32 = 0x00000001
	MotionDone     uint32 = 0x00000002
	MotionStart    uint32 = 0x00000004
	StopDone       uint32 = 0x00000008
	Inposition     uint32 = 0x00000010
	SignalCapture  uint32 = 0x00080000
	FIFOEmpty      uint32 = 0x00400000
	FIFOFull       uint32 = 0x00800000
	TriggerFired   uint32 = 0x01000000
	TriggerTimeout uint32 = 0x02000000
	SoftLimitHit   uint32 = 0x04000000
	EndLimitHit    uint32 = 0x08000000
	ServoAlarm     uint32 = 0x20000000
)

// Analog input buffer flag bits.
const (
	DataEmpty uint32 = 0x00000001
	DataMany  uint32 = 0x00000002
	DataSmall uint32 = 0x00000004
	DataFull  uint32 = 0x00000008
)

// Bank labels per resource family.
func AxisBank(axisNo int) string  { return fmt.Sprintf("axm:%d", axisNo) }
func ChannelBank(chNo int) string { return fmt.Sprintf("axc:%d", chNo) }
func AnalogBank(chNo int) string  { return fmt.Sprintf("axa:%d", chNo) }
func DIOBank(moduleNo int) string { return fmt.Sprintf("axd:%d", moduleNo) }

// Event is one delivered notification.
type Event struct {
	Bank string
	Bits uint32
	Time float64
}

type delivery struct {
	sub *Subscription
	ev  Event
}

// Manager owns the flag banks and the dispatcher goroutine that runs
// callback subscriptions. Raising never blocks the raiser: if the
// dispatch queue is full the notification is dropped and counted.
type Manager struct {
	log *zap.Logger

	mu    sync.Mutex
	banks map[string]*Bank
	subs  map[uuid.UUID]*Subscription

	queue   chan delivery
	quit    chan struct{}
	wg      sync.WaitGroup
	dropped uint64
}

// NewManager starts a manager and its dispatcher goroutine.
func NewManager(log *zap.Logger) *Manager {
	if log == nil {
		log = zap.NewNop()
	}
	m := &Manager{
		log:   log,
		banks: make(map[string]*Bank),
		subs:  make(map[uuid.UUID]*Subscription),
		queue: make(chan delivery, 1024),
		quit:  make(chan struct{}),
	}
	m.wg.Add(1)
	go m.dispatch()
	return m
}

func (m *Manager) dispatch() {
	defer m.wg.Done()
	for {
		select {
		case d := <-m.queue:
			d.sub.deliver(d.ev)
		case <-m.quit:
			return
		}
	}
}

// Bank returns the flag bank for a label, creating it on first use.
func (m *Manager) Bank(label string) *Bank {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.banks[label]
	if !ok {
		b = &Bank{m: m, label: label}
		m.banks[label] = b
	}
	return b
}

// Dropped returns how many notifications were discarded because the
// dispatch queue or a subscription channel was full.
func (m *Manager) Dropped() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.dropped
}

func (m *Manager) drop(label string) {
	m.mu.Lock()
	m.dropped++
	m.mu.Unlock()
	m.log.Debug("event dropped", zap.String("bank", label))
}

// Close detaches every subscription and stops the dispatcher.
func (m *Manager) Close() {
	m.mu.Lock()
	subs := make([]*Subscription, 0, len(m.subs))
	for _, s := range m.subs {
		subs = append(subs, s)
	}
	m.mu.Unlock()
	for _, s := range subs {
		s.Close()
	}
	close(m.quit)
	m.wg.Wait()
}

// Bank is one latched flag register plus its attached subscriptions.
type Bank struct {
	m     *Manager
	label string

	mu    sync.Mutex
	flags uint32
	subs  []*Subscription
}

// Raise latches bits and fans them out to matching subscriptions with
// the given event time.
func (b *Bank) Raise(bits uint32, now float64) {
	if bits == 0 {
		return
	}
	b.mu.Lock()
	b.flags |= bits
	subs := make([]*Subscription, len(b.subs))
	copy(subs, b.subs)
	b.mu.Unlock()

	for _, s := range subs {
		s.notify(Event{Bank: b.label, Bits: bits & s.mask, Time: now})
	}
}

// ReadClear returns the latched bits and clears them.
func (b *Bank) ReadClear() uint32 {
	b.mu.Lock()
	defer b.mu.Unlock()
	flags := b.flags
	b.flags = 0
	return flags
}

// Peek returns the latched bits without clearing.
func (b *Bank) Peek() uint32 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.flags
}

func (b *Bank) attach(s *Subscription) {
	b.mu.Lock()
	b.subs = append(b.subs, s)
	b.mu.Unlock()
}

func (b *Bank) detach(s *Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, x := range b.subs {
		if x == s {
			b.subs = append(b.subs[:i], b.subs[i+1:]...)
			return
		}
	}
}

type subMode int

const (
	modePoll subMode = iota
	modeCallback
	modeChannel
)

// Subscription is one delivery binding to a bank. The three modes
// replace the window-message / callback / event-handle triple of the
// native notification surface.
type Subscription struct {
	id   uuid.UUID
	m    *Manager
	bank *Bank
	mask uint32
	mode subMode

	mu      sync.Mutex
	pending uint32
	closed  bool

	fn func(Event)
	ch chan Event
}

func (m *Manager) subscribe(label string, mask uint32, mode subMode) *Subscription {
	s := &Subscription{
		id:   uuid.New(),
		m:    m,
		bank: m.Bank(label),
		mask: mask,
		mode: mode,
	}
	m.mu.Lock()
	m.subs[s.id] = s
	m.mu.Unlock()
	s.bank.attach(s)
	return s
}

// SubscribePoll accumulates masked bits for Poll to read and clear.
func (m *Manager) SubscribePoll(label string, mask uint32) *Subscription {
	return m.subscribe(label, mask, modePoll)
}

// SubscribeCallback invokes fn on the dispatcher goroutine for every
// masked raise. fn must not block.
func (m *Manager) SubscribeCallback(label string, mask uint32, fn func(Event)) *Subscription {
	s := m.subscribe(label, mask, modeCallback)
	s.fn = fn
	return s
}

// SubscribeChannel delivers masked raises over a channel with the
// given buffer; overflow drops the notification.
func (m *Manager) SubscribeChannel(label string, mask uint32, buf int) *Subscription {
	if buf < 1 {
		buf = 1
	}
	s := m.subscribe(label, mask, modeChannel)
	s.ch = make(chan Event, buf)
	return s
}

// ID returns the subscription identity.
func (s *Subscription) ID() uuid.UUID { return s.id }

// Events returns the delivery channel of a channel-mode subscription,
// nil otherwise.
func (s *Subscription) Events() <-chan Event { return s.ch }

// Poll returns and clears the accumulated masked bits.
func (s *Subscription) Poll() uint32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	bits := s.pending
	s.pending = 0
	return bits
}

func (s *Subscription) notify(ev Event) {
	if ev.Bits == 0 {
		return
	}
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.pending |= ev.Bits
	mode := s.mode
	s.mu.Unlock()

	switch mode {
	case modeCallback:
		select {
		case s.m.queue <- delivery{sub: s, ev: ev}:
		default:
			s.m.drop(ev.Bank)
		}
	case modeChannel:
		select {
		case s.ch <- ev:
		default:
			s.m.drop(ev.Bank)
		}
	}
}

func (s *Subscription) deliver(ev Event) {
	s.mu.Lock()
	closed, fn := s.closed, s.fn
	s.mu.Unlock()
	if closed || fn == nil {
		return
	}
	fn(ev)
}

// Close detaches the subscription. A closed channel-mode subscription
// has its channel closed after detach.
func (s *Subscription) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.mu.Unlock()

	s.bank.detach(s)
	s.m.mu.Lock()
	delete(s.m.subs, s.id)
	s.m.mu.Unlock()
	if s.ch != nil {
		close(s.ch)
	}
}
