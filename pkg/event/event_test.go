// Copyright (C) 2026 Go binding
//
// This file may be distributed under the terms of the GNU GPLv3 license.

package event

import (
	"sync"
	"testing"
	"time"
)

func TestBankReadClear(t *testing.T) {
	m := NewManager(nil)
	defer m.Close()

	b := m.Bank(AxisBank(0))
	b.Raise(MotionDone|Inposition, 1.5)
	b.Raise(ServoAlarm, 1.6)

	if got := b.Peek(); got != MotionDone|Inposition|ServoAlarm {
		t.Errorf("Peek() = %#x, want %#x", got, MotionDone|Inposition|ServoAlarm)
	}
	if got := b.ReadClear(); got != MotionDone|Inposition|ServoAlarm {
		t.Errorf("ReadClear() = %#x, want %#x", got, MotionDone|Inposition|ServoAlarm)
	}
	if got := b.Peek(); got != 0 {
		t.Errorf("Peek() after ReadClear = %#x, want 0", got)
	}
}

func TestBankIdentity(t *testing.T) {
	m := NewManager(nil)
	defer m.Close()

	if m.Bank(AxisBank(3)) != m.Bank(AxisBank(3)) {
		t.Errorf("Bank(%q) not stable across calls", AxisBank(3))
	}
	if m.Bank(AxisBank(3)) == m.Bank(ChannelBank(3)) {
		t.Errorf("axis and channel banks with same number must differ")
	}
}

func TestSubscribePollAccumulates(t *testing.T) {
	m := NewManager(nil)
	defer m.Close()

	sub := m.SubscribePoll(AxisBank(1), MotionDone|HomeDone)
	b := m.Bank(AxisBank(1))

	b.Raise(MotionDone|ServoAlarm, 0.1)
	b.Raise(HomeDone, 0.2)

	if got := sub.Poll(); got != MotionDone|HomeDone {
		t.Errorf("Poll() = %#x, want %#x", got, MotionDone|HomeDone)
	}
	if got := sub.Poll(); got != 0 {
		t.Errorf("second Poll() = %#x, want 0", got)
	}
	// ServoAlarm was outside the mask but stays latched in the bank.
	if got := b.Peek(); got&ServoAlarm == 0 {
		t.Errorf("Peek() = %#x, want ServoAlarm latched", got)
	}
}

func TestSubscribeCallback(t *testing.T) {
	m := NewManager(nil)
	defer m.Close()

	var mu sync.Mutex
	var got []Event
	done := make(chan struct{}, 8)
	sub := m.SubscribeCallback(AxisBank(0), MotionDone, func(ev Event) {
		mu.Lock()
		got = append(got, ev)
		mu.Unlock()
		done <- struct{}{}
	})
	defer sub.Close()

	b := m.Bank(AxisBank(0))
	b.Raise(MotionDone, 2.5)
	b.Raise(ServoAlarm, 2.6) // masked out, no delivery

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("callback not invoked")
	}
	mu.Lock()
	defer mu.Unlock()
	if len(got) != 1 {
		t.Fatalf("callback count = %d, want 1", len(got))
	}
	if got[0].Bits != MotionDone || got[0].Time != 2.5 {
		t.Errorf("callback event = %+v, want bits %#x at 2.5", got[0], MotionDone)
	}
	if got[0].Bank != AxisBank(0) {
		t.Errorf("callback bank = %q, want %q", got[0].Bank, AxisBank(0))
	}
}

func TestSubscribeChannel(t *testing.T) {
	m := NewManager(nil)
	defer m.Close()

	sub := m.SubscribeChannel(ChannelBank(2), TriggerFired|FIFOEmpty, 4)
	b := m.Bank(ChannelBank(2))
	b.Raise(TriggerFired, 1.0)
	b.Raise(TriggerFired|FIFOEmpty, 2.0)

	ev := <-sub.Events()
	if ev.Bits != TriggerFired || ev.Time != 1.0 {
		t.Errorf("first event = %+v, want TriggerFired at 1.0", ev)
	}
	ev = <-sub.Events()
	if ev.Bits != TriggerFired|FIFOEmpty {
		t.Errorf("second event bits = %#x, want %#x", ev.Bits, TriggerFired|FIFOEmpty)
	}

	sub.Close()
	if _, ok := <-sub.Events(); ok {
		t.Errorf("channel still open after Close")
	}
}

func TestChannelOverflowDrops(t *testing.T) {
	m := NewManager(nil)
	defer m.Close()

	sub := m.SubscribeChannel(AxisBank(0), MotionDone, 1)
	defer sub.Close()
	b := m.Bank(AxisBank(0))
	b.Raise(MotionDone, 1.0)
	b.Raise(MotionDone, 2.0)
	b.Raise(MotionDone, 3.0)

	if got := m.Dropped(); got != 2 {
		t.Errorf("Dropped() = %d, want 2", got)
	}
	ev := <-sub.Events()
	if ev.Time != 1.0 {
		t.Errorf("delivered event time = %v, want 1.0", ev.Time)
	}
}

func TestCloseDetaches(t *testing.T) {
	m := NewManager(nil)
	defer m.Close()

	sub := m.SubscribePoll(AxisBank(0), MotionDone)
	b := m.Bank(AxisBank(0))
	b.Raise(MotionDone, 1.0)
	sub.Poll()
	sub.Close()

	b.Raise(MotionDone, 2.0)
	if got := sub.Poll(); got != 0 {
		t.Errorf("Poll() after Close = %#x, want 0", got)
	}
}

func TestManagerCloseClosesSubscriptions(t *testing.T) {
	m := NewManager(nil)
	sub := m.SubscribeChannel(AxisBank(0), MotionDone, 1)
	m.Close()
	if _, ok := <-sub.Events(); ok {
		t.Errorf("channel still open after manager Close")
	}
}

func TestSubscriptionIDsUnique(t *testing.T) {
	m := NewManager(nil)
	defer m.Close()

	a := m.SubscribePoll(AxisBank(0), MotionDone)
	b := m.SubscribePoll(AxisBank(0), MotionDone)
	if a.ID() == b.ID() {
		t.Errorf("subscription IDs collide: %v", a.ID())
	}
}
