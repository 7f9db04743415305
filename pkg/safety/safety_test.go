// Copyright (C) 2026 Go binding
//
// This file may be distributed under the terms of the GNU GPLv3 license.

package safety

import (
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

type fakeAxis struct {
	estops  int
	servo   bool
	failure error
}

func (f *fakeAxis) EStop() error {
	f.estops++
	return f.failure
}

func (f *fakeAxis) ServoOn(on bool) error {
	f.servo = on
	return nil
}

type fakeOutputs struct {
	words map[int]uint32
	bits  int
}

func (f *fakeOutputs) WriteOutWord(offset int, value uint32) error {
	f.words[offset] = value
	return nil
}

func (f *fakeOutputs) ContactNum() (int, int) { return 0, f.bits }

func TestTripDrivesInterlocks(t *testing.T) {
	c := NewChain(nil)
	ax := &fakeAxis{servo: true}
	out := &fakeOutputs{words: map[int]uint32{0: 0xffff, 1: 0xffff}, bits: 32}
	c.RegisterAxis("axis0", ax)
	c.RegisterOutputs("dio2", out)

	var fired atomic.Int32
	c.OnTrip(func(r Reason, msg string) {
		if r != ReasonOperator || msg != "panel" {
			t.Errorf("callback got %q %q", r, msg)
		}
		fired.Add(1)
	})

	c.Trip(ReasonOperator, "panel")

	if c.State() != StateTripped || !c.Tripped() {
		t.Fatalf("state = %v", c.State())
	}
	if ax.estops != 1 || ax.servo {
		t.Errorf("axis: estops=%d servo=%v", ax.estops, ax.servo)
	}
	if out.words[0] != 0 || out.words[1] != 0 {
		t.Errorf("outputs not cleared: %v", out.words)
	}
	if fired.Load() != 1 {
		t.Errorf("callback fired %d times", fired.Load())
	}

	// Latched: second trip is a no-op.
	c.Trip(ReasonSoftLimit, "again")
	if ax.estops != 1 || fired.Load() != 1 {
		t.Errorf("second trip not ignored: estops=%d fired=%d", ax.estops, fired.Load())
	}

	state, reason, msg, at := c.Info()
	if state != StateTripped || reason != ReasonOperator || msg != "panel" || at.IsZero() {
		t.Errorf("Info = %v %q %q %v", state, reason, msg, at)
	}
}

func TestTripContinuesPastFailure(t *testing.T) {
	c := NewChain(nil)
	bad := &fakeAxis{failure: errors.New("wire cut")}
	good := &fakeAxis{servo: true}
	c.RegisterAxis("axis0", bad)
	c.RegisterAxis("axis1", good)

	c.Trip(ReasonServoAlarm, "alarm on axis 0")

	if good.estops != 1 || good.servo {
		t.Error("later interlock skipped after failure")
	}
	if c.State() != StateTripped {
		t.Errorf("state = %v", c.State())
	}
}

func TestRelease(t *testing.T) {
	c := NewChain(nil)
	if err := c.Release(); err == nil {
		t.Fatal("release of armed chain succeeded")
	}
	c.Trip(ReasonOperator, "")
	if err := c.Release(); err != nil {
		t.Fatalf("Release: %v", err)
	}
	if c.Tripped() {
		t.Fatal("still tripped after release")
	}
	_, reason, _, _ := c.Info()
	if reason != ReasonNone {
		t.Errorf("reason not cleared: %q", reason)
	}
}

func TestWatchdogTrips(t *testing.T) {
	c := NewChain(nil)
	ax := &fakeAxis{}
	c.RegisterAxis("axis0", ax)

	tripped := make(chan Reason, 1)
	c.OnTrip(func(r Reason, _ string) { tripped <- r })

	if err := c.StartWatchdog(20 * time.Millisecond); err != nil {
		t.Fatalf("StartWatchdog: %v", err)
	}
	if err := c.StartWatchdog(time.Second); err == nil {
		t.Fatal("double StartWatchdog succeeded")
	}

	// Feed it a few times, then stop feeding.
	for i := 0; i < 3; i++ {
		time.Sleep(5 * time.Millisecond)
		c.Heartbeat()
	}
	select {
	case <-tripped:
		t.Fatal("tripped while fed")
	default:
	}

	select {
	case r := <-tripped:
		if r != ReasonWatchdog {
			t.Errorf("reason = %q", r)
		}
	case <-time.After(time.Second):
		t.Fatal("watchdog never tripped")
	}
	if ax.estops != 1 {
		t.Errorf("estops = %d", ax.estops)
	}
}

func TestWatchdogStop(t *testing.T) {
	c := NewChain(nil)
	if err := c.StartWatchdog(10 * time.Millisecond); err != nil {
		t.Fatalf("StartWatchdog: %v", err)
	}
	c.StopWatchdog()
	time.Sleep(30 * time.Millisecond)
	if c.Tripped() {
		t.Fatal("tripped after StopWatchdog")
	}
	// Heartbeat after stop is harmless.
	c.Heartbeat()
}
