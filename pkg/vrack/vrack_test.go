// Copyright (C) 2026 Go binding
//
// This file may be distributed under the terms of the GNU GPLv3 license.

package vrack

import (
	"math"
	"testing"
	"time"

	"axl-go/pkg/profile"
	"axl-go/pkg/reactor"
)

func oneAxisRack(t *testing.T) *Rack {
	t.Helper()
	r := New(Config{Axes: 2})
	r.SetServo(0, true)
	r.SetServo(1, true)
	return r
}

func stepFor(r *Rack, seconds, dt float64) {
	for t := 0.0; t < seconds-dt/2; t += dt {
		r.Step(dt)
	}
}

func TestStepFollowsProfile(t *testing.T) {
	r := oneAxisRack(t)
	p, err := profile.Move(1000, 100, 1000, 1000, 0)
	if err != nil {
		t.Fatal(err)
	}
	r.StartProfile(0, p)
	if !r.Moving(0) {
		t.Fatal("Moving(0) = false after StartProfile")
	}

	stepFor(r, 5, 0.01)
	wantPos, wantVel := p.At(5)
	st := r.State(0)
	if math.Abs(st.CmdPos-wantPos) > 1e-6 {
		t.Errorf("CmdPos at t=5 = %g, want %g", st.CmdPos, wantPos)
	}
	if math.Abs(st.Vel-wantVel) > 1e-6 {
		t.Errorf("Vel at t=5 = %g, want %g", st.Vel, wantVel)
	}
	if math.Abs(st.ActPos-st.CmdPos) > 1e-9 {
		t.Errorf("ActPos = %g, CmdPos = %g, want equal", st.ActPos, st.CmdPos)
	}

	stepFor(r, 10, 0.01)
	st = r.State(0)
	if st.Moving {
		t.Error("Moving = true after profile end")
	}
	if math.Abs(st.CmdPos-1000) > 1e-6 || st.Vel != 0 {
		t.Errorf("end state = (%g, %g), want (1000, 0)", st.CmdPos, st.Vel)
	}
}

func TestFreezeHoldsPosition(t *testing.T) {
	r := oneAxisRack(t)
	p, _ := profile.Move(1000, 100, 1000, 1000, 0)
	r.StartProfile(0, p)
	stepFor(r, 1, 0.01)

	frozen := r.State(0).CmdPos
	r.Freeze(0)
	if r.Moving(0) {
		t.Error("Moving = true after Freeze")
	}
	stepFor(r, 2, 0.01)
	st := r.State(0)
	if st.CmdPos != frozen {
		t.Errorf("CmdPos moved after Freeze: %g, want %g", st.CmdPos, frozen)
	}
	if st.Vel != 0 {
		t.Errorf("Vel after Freeze = %g, want 0", st.Vel)
	}
}

func TestServoDropCancelsMotion(t *testing.T) {
	r := oneAxisRack(t)
	p, _ := profile.Move(1000, 100, 1000, 1000, 0)
	r.StartProfile(0, p)
	stepFor(r, 1, 0.01)

	r.SetServo(0, false)
	held := r.State(0)
	if held.Moving {
		t.Error("Moving = true after servo drop")
	}
	stepFor(r, 1, 0.01)
	st := r.State(0)
	if st.CmdPos != held.CmdPos || st.ActPos != held.ActPos {
		t.Errorf("axis moved with servo off: (%g, %g), want (%g, %g)",
			st.CmdPos, st.ActPos, held.CmdPos, held.ActPos)
	}
}

func TestActLag(t *testing.T) {
	r := oneAxisRack(t)
	r.SetActLag(0, 3)
	r.SetCmdPos(0, 100)
	st := r.State(0)
	if st.ActPos != 97 {
		t.Errorf("ActPos = %g, want 97", st.ActPos)
	}

	r.SetActPos(0, 100)
	st = r.State(0)
	if st.CmdPos != 100 || st.ActPos != 100 {
		t.Errorf("after SetActPos: (%g, %g), want (100, 100)", st.CmdPos, st.ActPos)
	}
	r.Step(0.01)
	if got := r.State(0).ActPos; got != 100 {
		t.Errorf("ActPos after step = %g, want 100 (lag rebased)", got)
	}
}

func TestLimitAndHomeSensors(t *testing.T) {
	r := oneAxisRack(t)
	r.SetTrack(0, Track{
		NegLimit: -100, PosLimit: 100,
		HomePos: 10, HomeWidth: 5,
	})

	tests := []struct {
		pos    float64
		neg    bool
		poslim bool
		home   bool
	}{
		{0, false, false, false},
		{-100, true, false, false},
		{-150, true, false, false},
		{100, false, true, false},
		{10, false, false, true},
		{14.9, false, false, true},
		{15, false, false, false},
	}
	for _, tc := range tests {
		r.SetCmdPos(0, tc.pos)
		if got := r.NegLimit(0); got != tc.neg {
			t.Errorf("NegLimit at %g = %v, want %v", tc.pos, got, tc.neg)
		}
		if got := r.PosLimit(0); got != tc.poslim {
			t.Errorf("PosLimit at %g = %v, want %v", tc.pos, got, tc.poslim)
		}
		if got := r.HomeSensor(0); got != tc.home {
			t.Errorf("HomeSensor at %g = %v, want %v", tc.pos, got, tc.home)
		}
	}
}

func TestZPhaseWindows(t *testing.T) {
	r := oneAxisRack(t)
	tr := DefaultTrack()
	tr.ZSpacing = 100
	tr.ZWidth = 2
	r.SetTrack(0, tr)

	tests := []struct {
		pos  float64
		want bool
	}{
		{0, true},
		{1.9, true},
		{2, false},
		{50, false},
		{100.5, true},
		{-99.5, true},
		{-0.5, false},
	}
	for _, tc := range tests {
		r.SetCmdPos(0, tc.pos)
		if got := r.ZPhase(0); got != tc.want {
			t.Errorf("ZPhase at %g = %v, want %v", tc.pos, got, tc.want)
		}
	}
}

func TestTickersRunAfterMotors(t *testing.T) {
	r := oneAxisRack(t)
	p, _ := profile.Velocity(0, 100, 1e6, 0)
	r.StartProfile(0, p)

	var order []int
	var seenPos float64
	id1 := r.RegisterTicker(func(now, dt float64) {
		order = append(order, 1)
		seenPos = r.State(0).CmdPos
	})
	id2 := r.RegisterTicker(func(now, dt float64) {
		order = append(order, 2)
	})

	r.Step(0.5)
	if len(order) != 2 || order[0] != 1 || order[1] != 2 {
		t.Errorf("ticker order = %v, want [1 2]", order)
	}
	if seenPos < 49 {
		t.Errorf("ticker saw CmdPos = %g, want post-advance value near 50", seenPos)
	}

	r.UnregisterTicker(id1)
	r.UnregisterTicker(id2)
	order = nil
	r.Step(0.5)
	if len(order) != 0 {
		t.Errorf("tickers ran after unregister: %v", order)
	}
}

func TestStartProfilesSharedLaunchTime(t *testing.T) {
	r := oneAxisRack(t)
	p0, _ := profile.Move(100, 10, 100, 100, 0)
	p1, _ := profile.Move(-100, 10, 100, 100, 0)
	r.StartProfiles(map[int]*profile.Profile{0: p0, 1: p1})

	stepFor(r, 2, 0.01)
	want0, _ := p0.At(2)
	want1, _ := p1.At(2)
	if got := r.State(0).CmdPos; math.Abs(got-want0) > 1e-6 {
		t.Errorf("axis 0 CmdPos = %g, want %g", got, want0)
	}
	if got := r.State(1).CmdPos; math.Abs(got-want1) > 1e-6 {
		t.Errorf("axis 1 CmdPos = %g, want %g", got, want1)
	}
	if math.Abs(r.State(0).CmdPos+r.State(1).CmdPos) > 1e-6 {
		t.Errorf("mirrored moves diverged: %g vs %g",
			r.State(0).CmdPos, r.State(1).CmdPos)
	}
}

func TestStartProfileMidFlightRebases(t *testing.T) {
	r := oneAxisRack(t)
	p, _ := profile.Move(100, 10, 100, 100, 0)
	r.StartProfile(0, p)
	stepFor(r, 2, 0.01)
	base := r.State(0).CmdPos

	q, _ := profile.Move(-50, 10, 100, 100, 0)
	r.StartProfile(0, q)
	stepFor(r, 20, 0.01)
	st := r.State(0)
	if st.Moving {
		t.Error("Moving = true after replacement profile ended")
	}
	if math.Abs(st.CmdPos-(base-50)) > 1e-6 {
		t.Errorf("CmdPos = %g, want %g", st.CmdPos, base-50)
	}
}

func TestUserInputBits(t *testing.T) {
	r := oneAxisRack(t)
	if r.UserInput(0, 3) {
		t.Error("UserInput(0, 3) = true initially")
	}
	r.SetUserInput(0, 3, true)
	if !r.UserInput(0, 3) {
		t.Error("UserInput(0, 3) = false after set")
	}
	if r.UserInput(0, 2) || r.UserInput(1, 3) {
		t.Error("unrelated user input bits set")
	}
	r.SetUserInput(0, 3, false)
	if r.UserInput(0, 3) {
		t.Error("UserInput(0, 3) = true after clear")
	}
}

func TestDIOImages(t *testing.T) {
	r := New(Config{DIO: []DIOSpec{{InBits: 32, OutBits: 32}, {InBits: 16}}})
	in, out := r.DIOWords(0)
	if in != 1 || out != 1 {
		t.Errorf("DIOWords(0) = (%d, %d), want (1, 1)", in, out)
	}
	in, out = r.DIOWords(1)
	if in != 1 || out != 0 {
		t.Errorf("DIOWords(1) = (%d, %d), want (1, 0)", in, out)
	}

	r.SetDIOInWord(0, 0, 0xA5A5)
	if got := r.DIOInWord(0, 0); got != 0xA5A5 {
		t.Errorf("DIOInWord = %#x, want 0xa5a5", got)
	}
	r.SetDIOOutWord(0, 0, 0xFF00FF00)
	if got := r.DIOOutWord(0, 0); got != 0xFF00FF00 {
		t.Errorf("DIOOutWord = %#x, want 0xff00ff00", got)
	}
}

func TestAnalogImages(t *testing.T) {
	r := New(Config{AIO: []AIOSpec{{AI: 16, AO: 4}}})
	r.SetAIVolt(0, 5, 2.5)
	if got := r.AIVolt(0, 5); got != 2.5 {
		t.Errorf("AIVolt = %g, want 2.5", got)
	}
	r.SetAOVolt(0, 3, -7.25)
	if got := r.AOVolt(0, 3); got != -7.25 {
		t.Errorf("AOVolt = %g, want -7.25", got)
	}
}

func TestRegisters(t *testing.T) {
	r := New(Config{})
	if got := r.ReadRegister(0xD000); got != 0 {
		t.Errorf("ReadRegister = %#x, want 0", got)
	}
	r.WriteRegister(0xD000, 0xDEAD)
	if got := r.ReadRegister(0xD000); got != 0xDEAD {
		t.Errorf("ReadRegister = %#x, want 0xdead", got)
	}
}

func TestAttachToReactor(t *testing.T) {
	rt := reactor.New()
	rt.Run()
	defer func() {
		rt.End()
		rt.Wait()
	}()

	r := New(Config{Axes: 1})
	detach := r.Attach(rt, 0.005)
	time.Sleep(60 * time.Millisecond)
	if now := r.Now(); now < 0.02 {
		t.Errorf("Now() = %g after 60ms attached, want >= 0.02", now)
	}

	detach()
	frozen := r.Now()
	time.Sleep(30 * time.Millisecond)
	if got := r.Now(); got != frozen {
		t.Errorf("Now() advanced after detach: %g -> %g", frozen, got)
	}
}
