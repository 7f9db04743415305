// Copyright (C) 2026 Go binding
//
// This file may be distributed under the terms of the GNU GPLv3 license.

package motion

import (
	"bytes"
	"context"
	"math"
	"os"
	"path/filepath"
	"testing"

	"axl-go/pkg/axt"
	"axl-go/pkg/board"
	"axl-go/pkg/event"
	"axl-go/pkg/vrack"
)

type rig struct {
	rack *vrack.Rack
	ev   *event.Manager
	c    *Controller
}

func newRig(t *testing.T) *rig {
	t.Helper()
	topo, err := board.New(board.DefaultLayout())
	if err != nil {
		t.Fatal(err)
	}
	rack := vrack.New(vrack.Config{Axes: topo.AxisCount()})
	ev := event.NewManager(nil)
	c := New(nil, rack, topo, ev)
	t.Cleanup(func() {
		c.Close()
		ev.Close()
	})
	for i := 0; i < topo.AxisCount(); i++ {
		rack.SetServo(i, true)
	}
	return &rig{rack: rack, ev: ev, c: c}
}

func (r *rig) axis(t *testing.T, no int) *Axis {
	t.Helper()
	a, err := r.c.Axis(no)
	if err != nil {
		t.Fatal(err)
	}
	return a
}

// step advances simulated time with 1ms service ticks.
func (r *rig) step(seconds float64) {
	const dt = 0.001
	for t := 0.0; t < seconds-dt/2; t += dt {
		r.rack.Step(dt)
	}
}

// stepUntilIdle steps until the axis reports no motion, bounded.
func (r *rig) stepUntilIdle(t *testing.T, a *Axis, maxSeconds float64) {
	t.Helper()
	const dt = 0.001
	for el := 0.0; el < maxSeconds; el += dt {
		r.rack.Step(dt)
		if busy, _ := a.InMotion(); !busy {
			return
		}
	}
	t.Fatalf("axis %d still moving after %gs", a.No(), maxSeconds)
}

// run steps the rack in the background for blocking calls.
func (r *rig) run() (stop func()) {
	done := make(chan struct{})
	quit := make(chan struct{})
	go func() {
		defer close(done)
		for {
			select {
			case <-quit:
				return
			default:
				r.rack.Step(0.001)
			}
		}
	}()
	return func() {
		close(quit)
		<-done
	}
}

func TestMoveStartPosCompletes(t *testing.T) {
	r := newRig(t)
	a := r.axis(t, 0)

	if err := a.MoveStartPos(100, 200, 1000, 1000); err != nil {
		t.Fatal(err)
	}
	if busy, _ := a.InMotion(); !busy {
		t.Error("InMotion = false right after start")
	}
	r.stepUntilIdle(t, a, 5)

	pos, _ := a.CmdPos()
	if math.Abs(pos-100) > 1e-6 {
		t.Errorf("CmdPos = %g, want 100", pos)
	}
	act, _ := a.ActPos()
	if math.Abs(act-100) > 1e-6 {
		t.Errorf("ActPos = %g, want 100", act)
	}
	cause, _ := a.ReadStopCause()
	if cause != StopNone {
		t.Errorf("ReadStopCause = %v, want %v", cause, StopNone)
	}
	if flags := r.ev.Bank(event.AxisBank(0)).Peek(); flags&event.MotionDone == 0 {
		t.Errorf("event flags = %#x, motion-done not raised", flags)
	}
}

func TestMovePulseScaling(t *testing.T) {
	r := newRig(t)
	a := r.axis(t, 0)

	// 1 user unit per 10 pulses: a 5-unit move is 50 encoder pulses.
	if err := a.SetMoveUnitPerPulse(1, 10); err != nil {
		t.Fatal(err)
	}
	if err := a.MoveStartPos(5, 100, 1000, 1000); err != nil {
		t.Fatal(err)
	}
	r.stepUntilIdle(t, a, 5)

	n, _ := a.DrivePulseCount()
	if n < 49 || n > 51 {
		t.Errorf("DrivePulseCount = %d, want 50 +-1", n)
	}
	pos, _ := a.CmdPos()
	if math.Abs(pos-5) > 1e-6 {
		t.Errorf("CmdPos = %g, want 5", pos)
	}
}

func TestMoveRelativeMode(t *testing.T) {
	r := newRig(t)
	a := r.axis(t, 0)

	if err := a.SetAbsRelMode(axt.PosRelMode); err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 3; i++ {
		if err := a.MoveStartPos(10, 100, 1000, 1000); err != nil {
			t.Fatal(err)
		}
		r.stepUntilIdle(t, a, 5)
	}
	pos, _ := a.CmdPos()
	if math.Abs(pos-30) > 1e-6 {
		t.Errorf("CmdPos after three relative 10-unit moves = %g, want 30", pos)
	}
}

func TestMoveRejects(t *testing.T) {
	r := newRig(t)
	a := r.axis(t, 0)

	tests := []struct {
		name string
		err  error
		code axt.Code
	}{
		{"zero velocity", a.MoveStartPos(100, 0, 1000, 1000), axt.MotionInvalidVelocity},
		{"over max velocity", a.MoveStartPos(100, 1e7, 1000, 1000), axt.MotionVelocityOutOfBound},
		{"zero accel", a.MoveStartPos(100, 200, 0, 1000), axt.MotionInvalidAccelTime},
		{"zero decel", a.MoveStartPos(100, 200, 1000, 0), axt.MotionInvalidAccelTime},
	}
	for _, tt := range tests {
		if !axt.IsCode(tt.err, tt.code) {
			t.Errorf("%s: error = %v, want code %d", tt.name, tt.err, tt.code)
		}
	}

	if err := a.MoveStartPos(1000, 100, 1000, 1000); err != nil {
		t.Fatal(err)
	}
	r.step(0.1)
	if err := a.MoveStartPos(50, 100, 1000, 1000); !axt.IsCode(err, axt.MotionErrorInMotion) {
		t.Errorf("second start while moving: error = %v, want code %d", err, axt.MotionErrorInMotion)
	}
}

func TestMovePosBlocks(t *testing.T) {
	r := newRig(t)
	a := r.axis(t, 0)
	stop := r.run()
	defer stop()

	if err := a.MovePos(context.Background(), 50, 500, 5000, 5000); err != nil {
		t.Fatalf("MovePos: %v", err)
	}
	pos, _ := a.CmdPos()
	if math.Abs(pos-50) > 1e-6 {
		t.Errorf("CmdPos after MovePos = %g, want 50", pos)
	}
}

func TestMovePosContextCancel(t *testing.T) {
	r := newRig(t)
	a := r.axis(t, 0)
	stop := r.run()
	defer stop()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.MovePos(ctx, 1e6, 100, 1000, 1000) }()
	cancel()
	err := <-done
	if err == nil {
		t.Fatal("MovePos returned nil after context cancel")
	}
	if ctx.Err() == nil {
		t.Fatal("context not cancelled")
	}
}

func TestVelocityMoveAndStops(t *testing.T) {
	r := newRig(t)
	a := r.axis(t, 0)

	if err := a.MoveVel(300, 3000, 3000); err != nil {
		t.Fatal(err)
	}
	r.step(0.5)
	vel, _ := a.ReadVel()
	if math.Abs(vel-300) > 1 {
		t.Errorf("ReadVel during velocity move = %g, want 300", vel)
	}

	if err := a.SStop(); err != nil {
		t.Fatal(err)
	}
	r.stepUntilIdle(t, a, 5)
	vel, _ = a.ReadVel()
	if vel != 0 {
		t.Errorf("ReadVel after SStop = %g, want 0", vel)
	}
	cause, _ := a.ReadStopCause()
	if cause != StopUser {
		t.Errorf("ReadStopCause = %v, want %v", cause, StopUser)
	}

	// EStop freezes on the spot.
	if err := a.MoveVel(-300, 3000, 3000); err != nil {
		t.Fatal(err)
	}
	r.step(0.5)
	before, _ := a.CmdPos()
	if err := a.EStop(); err != nil {
		t.Fatal(err)
	}
	r.step(0.01)
	after, _ := a.CmdPos()
	if math.Abs(after-before) > 0.5 {
		t.Errorf("CmdPos moved %g past EStop", after-before)
	}
	cause, _ = a.ReadStopCause()
	if cause != StopEmergency {
		t.Errorf("ReadStopCause = %v, want %v", cause, StopEmergency)
	}
}

func TestSoftLimitRejectsTarget(t *testing.T) {
	r := newRig(t)
	a := r.axis(t, 0)

	if err := a.SetSoftLimit(true, axt.Command, axt.EmergencyStop, -100, 100); err != nil {
		t.Fatal(err)
	}
	if err := a.MoveStartPos(150, 100, 1000, 1000); !axt.IsCode(err, axt.SoftLimitPositive) {
		t.Errorf("target above bound: error = %v, want code %d", err, axt.SoftLimitPositive)
	}
	if err := a.MoveStartPos(-150, 100, 1000, 1000); !axt.IsCode(err, axt.SoftLimitNegative) {
		t.Errorf("target below bound: error = %v, want code %d", err, axt.SoftLimitNegative)
	}
	// In-bounds target admitted.
	if err := a.MoveStartPos(99, 100, 1000, 1000); err != nil {
		t.Errorf("in-bounds target rejected: %v", err)
	}
}

func TestSoftLimitStopsVelocityMove(t *testing.T) {
	r := newRig(t)
	a := r.axis(t, 0)

	if err := a.SetSoftLimit(true, axt.Command, axt.EmergencyStop, -100, 50); err != nil {
		t.Fatal(err)
	}
	if err := a.MoveVel(200, 2000, 2000); err != nil {
		t.Fatalf("velocity move toward soft limit must start: %v", err)
	}
	r.stepUntilIdle(t, a, 5)

	pos, _ := a.CmdPos()
	if pos < 50 || pos > 51 {
		t.Errorf("CmdPos after soft-limit stop = %g, want just past 50", pos)
	}
	cause, _ := a.ReadStopCause()
	if cause != StopSoftLimitPos {
		t.Errorf("ReadStopCause = %v, want %v", cause, StopSoftLimitPos)
	}
	if flags := r.ev.Bank(event.AxisBank(0)).Peek(); flags&event.SoftLimitHit == 0 {
		t.Errorf("event flags = %#x, soft-limit-hit not raised", flags)
	}

	// The escape direction stays allowed.
	if err := a.MoveStartPos(0, 100, 1000, 1000); err != nil {
		t.Errorf("escape move rejected: %v", err)
	}
}

func TestEndLimitStopsMove(t *testing.T) {
	r := newRig(t)
	a := r.axis(t, 0)
	tr := vrack.DefaultTrack()
	tr.PosLimit = 80
	r.rack.SetTrack(0, tr)

	if err := a.MoveVel(100, 1000, 1000); err != nil {
		t.Fatal(err)
	}
	r.stepUntilIdle(t, a, 5)

	cause, _ := a.ReadStopCause()
	if cause != StopEndLimitPos {
		t.Errorf("ReadStopCause = %v, want %v", cause, StopEndLimitPos)
	}
	_, pos, _ := a.ReadLimitStatus()
	if pos != axt.SignalActive {
		t.Errorf("positive limit level = %v, want active", pos)
	}
	if flags := r.ev.Bank(event.AxisBank(0)).Peek(); flags&event.EndLimitHit == 0 {
		t.Errorf("event flags = %#x, end-limit-hit not raised", flags)
	}
}

func TestServoOffAbandonsMove(t *testing.T) {
	r := newRig(t)
	a := r.axis(t, 0)

	if err := a.MoveVel(200, 2000, 2000); err != nil {
		t.Fatal(err)
	}
	r.step(0.2)
	if err := a.ServoOn(false); err != nil {
		t.Fatal(err)
	}
	r.step(0.01)
	if on, _ := a.IsServoOn(); on {
		t.Error("IsServoOn = true after ServoOn(false)")
	}
	if busy, _ := a.InMotion(); busy {
		t.Error("InMotion = true after servo off")
	}
}

func TestAlarmLatchAndReset(t *testing.T) {
	r := newRig(t)
	a := r.axis(t, 0)

	if err := a.MoveVel(200, 2000, 2000); err != nil {
		t.Fatal(err)
	}
	r.step(0.2)
	r.rack.SetAlarm(0, true)
	r.step(0.01)

	if busy, _ := a.InMotion(); busy {
		t.Error("InMotion = true after servo alarm")
	}
	if lvl, _ := a.ReadServoAlarm(); lvl != axt.SignalActive {
		t.Errorf("ReadServoAlarm = %v, want active", lvl)
	}
	if err := a.MoveStartPos(10, 100, 1000, 1000); !axt.IsCode(err, axt.MotionError) {
		t.Errorf("move with latched alarm: error = %v, want code %d", err, axt.MotionError)
	}
	if flags := r.ev.Bank(event.AxisBank(0)).Peek(); flags&event.ServoAlarm == 0 {
		t.Errorf("event flags = %#x, servo-alarm not raised", flags)
	}

	if err := a.AlarmReset(); err != nil {
		t.Fatal(err)
	}
	if err := a.MoveStartPos(10, 100, 1000, 1000); err != nil {
		t.Errorf("move after alarm reset rejected: %v", err)
	}
}

func TestSignalSearchCapturesPosition(t *testing.T) {
	r := newRig(t)
	a := r.axis(t, 0)
	tr := vrack.DefaultTrack()
	tr.HomePos = 500
	tr.HomeWidth = 100
	r.rack.SetTrack(0, tr)

	err := a.MoveSignalSearch(axt.HomeSensor, axt.SignalUpEdge, axt.EmergencyStop, 200, 2000)
	if err != nil {
		t.Fatal(err)
	}
	r.stepUntilIdle(t, a, 10)

	cause, _ := a.ReadStopCause()
	if cause != StopSignalFound {
		t.Errorf("ReadStopCause = %v, want %v", cause, StopSignalFound)
	}
	pos, valid, err := a.MoveGetCapturePos()
	if err != nil || !valid {
		t.Fatalf("MoveGetCapturePos: valid=%v err=%v", valid, err)
	}
	if pos < 500 || pos > 501 {
		t.Errorf("captured position = %g, want just past 500", pos)
	}
	if _, _, err := a.MoveGetCapturePos(); !axt.IsCode(err, axt.NotCaptured) {
		t.Errorf("second capture read: error = %v, want code %d", err, axt.NotCaptured)
	}
	if flags := r.ev.Bank(event.AxisBank(0)).Peek(); flags&event.SignalCapture == 0 {
		t.Errorf("event flags = %#x, signal-capture not raised", flags)
	}
}

func TestInpositionRead(t *testing.T) {
	r := newRig(t)
	a := r.axis(t, 0)
	if err := a.SetInpositionRange(0.5); err != nil {
		t.Fatal(err)
	}
	if lvl, _ := a.ReadInposition(); lvl != axt.SignalActive {
		t.Errorf("ReadInposition at rest = %v, want active", lvl)
	}
	r.rack.SetActLag(0, 2)
	if lvl, _ := a.ReadInposition(); lvl != axt.SignalInactive {
		t.Errorf("ReadInposition with 2-pulse lag = %v, want inactive", lvl)
	}
}

func TestParamSaveLoadRoundTrip(t *testing.T) {
	r := newRig(t)
	a := r.axis(t, 0)

	if err := a.SetMoveUnitPerPulse(2.5, 1000); err != nil {
		t.Fatal(err)
	}
	if err := a.SetMaxVelocity(123456.75); err != nil {
		t.Fatal(err)
	}
	if err := a.SetHomeVel(950, 90, 18, 2, 350, 360); err != nil {
		t.Fatal(err)
	}

	dir := t.TempDir()
	first := filepath.Join(dir, "axes.mot")
	second := filepath.Join(dir, "axes2.mot")
	if err := r.c.SaveAllParameters(first); err != nil {
		t.Fatal(err)
	}

	// Disturb, reload, and confirm the file wins.
	if err := a.SetMaxVelocity(700000); err != nil {
		t.Fatal(err)
	}
	if err := r.c.LoadAllParameters(first); err != nil {
		t.Fatal(err)
	}
	if v, _ := a.GetMaxVelocity(); v != 123456.75 {
		t.Errorf("MaxVelocity after load = %g, want 123456.75", v)
	}
	unit, pulse, _ := a.GetMoveUnitPerPulse()
	if unit != 2.5 || pulse != 1000 {
		t.Errorf("unit/pulse after load = %g/%d, want 2.5/1000", unit, pulse)
	}

	// A second save of the loaded state is byte-identical.
	if err := r.c.SaveAllParameters(second); err != nil {
		t.Fatal(err)
	}
	b1, err := os.ReadFile(first)
	if err != nil {
		t.Fatal(err)
	}
	b2, err := os.ReadFile(second)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(b1, b2) {
		t.Error("save-load-save produced a different file")
	}
}

func TestOverrideVelMidMove(t *testing.T) {
	r := newRig(t)
	a := r.axis(t, 0)

	if err := a.MoveStartPos(10000, 100, 500, 500); err != nil {
		t.Fatal(err)
	}
	r.step(1)
	posAt, _ := a.CmdPos()
	tAt := r.rack.Now()
	if err := a.OverrideVel(200); err != nil {
		t.Fatal(err)
	}
	r.stepUntilIdle(t, a, 120)

	pos, _ := a.CmdPos()
	if math.Abs(pos-10000) > 1e-6 {
		t.Fatalf("CmdPos = %g, want 10000", pos)
	}
	mean := (10000 - posAt) / (r.rack.Now() - tAt)
	if mean < 190 || mean > 205 {
		t.Errorf("mean velocity over remaining distance = %g, want ~200", mean)
	}
}

func TestOverridePosRetargets(t *testing.T) {
	r := newRig(t)
	a := r.axis(t, 0)

	if err := a.MoveStartPos(100, 100, 1000, 1000); err != nil {
		t.Fatal(err)
	}
	r.step(0.3)
	if err := a.OverridePos(40); err != nil {
		t.Fatal(err)
	}
	r.stepUntilIdle(t, a, 10)
	pos, _ := a.CmdPos()
	if math.Abs(pos-40) > 1e-6 {
		t.Errorf("CmdPos after retarget = %g, want 40", pos)
	}
}

func TestOverrideVelAtMultiPos(t *testing.T) {
	r := newRig(t)
	a := r.axis(t, 0)

	if err := a.MoveStartPos(300, 300, 3000, 3000); err != nil {
		t.Fatal(err)
	}
	err := a.OverrideVelAtPos(100, axt.Command, 150)
	if err != nil {
		t.Fatal(err)
	}
	if n := a.OverridePending(); n != 1 {
		t.Fatalf("OverridePending = %d, want 1", n)
	}
	var sawSlow bool
	const dt = 0.001
	for el := 0.0; el < 20; el += dt {
		r.rack.Step(dt)
		pos, _ := a.CmdPos()
		vel, _ := a.ReadVel()
		if pos > 150 && pos < 250 && math.Abs(vel-150) < 1 {
			sawSlow = true
		}
		if busy, _ := a.InMotion(); !busy {
			break
		}
	}
	if !sawSlow {
		t.Error("velocity never settled at 150 after the armed threshold")
	}
	if n := a.OverridePending(); n != 0 {
		t.Errorf("OverridePending after crossing = %d, want 0", n)
	}
	pos, _ := a.CmdPos()
	if math.Abs(pos-300) > 1e-6 {
		t.Errorf("CmdPos = %g, want 300", pos)
	}
}

func TestLatchedOverrideAppliesAtNextStart(t *testing.T) {
	r := newRig(t)
	a := r.axis(t, 0)

	if err := a.SetOverrideMode(1); err != nil {
		t.Fatal(err)
	}
	if err := a.OverrideVel(400); err != nil {
		t.Fatal(err)
	}
	if err := a.MoveStartPos(400, 100, 4000, 4000); err != nil {
		t.Fatal(err)
	}
	var peak float64
	const dt = 0.001
	for el := 0.0; el < 10; el += dt {
		r.rack.Step(dt)
		if vel, _ := a.ReadVel(); vel > peak {
			peak = vel
		}
		if busy, _ := a.InMotion(); !busy {
			break
		}
	}
	if math.Abs(peak-400) > 2 {
		t.Errorf("peak velocity = %g, want 400 from the latched override", peak)
	}
}

func TestBacklashTakeUp(t *testing.T) {
	r := newRig(t)
	a := r.axis(t, 0)

	if _, err := a.GetBacklash(); !axt.IsCode(err, axt.CompensationBacklashNoInit) {
		t.Errorf("GetBacklash before set: error = %v, want code %d", err, axt.CompensationBacklashNoInit)
	}
	if err := a.SetBacklash(1); err != nil {
		t.Fatal(err)
	}
	if err := a.BacklashEnable(true); err != nil {
		t.Fatal(err)
	}

	if err := a.MoveStartPos(10, 100, 1000, 1000); err != nil {
		t.Fatal(err)
	}
	r.stepUntilIdle(t, a, 5)
	if err := a.MoveStartPos(5, 100, 1000, 1000); err != nil {
		t.Fatal(err)
	}
	r.stepUntilIdle(t, a, 5)

	// The reversal inserted one unit of slack: logical 5, physical 4.
	pos, _ := a.CmdPos()
	if math.Abs(pos-5) > 1e-6 {
		t.Errorf("CmdPos = %g, want 5", pos)
	}
	n, _ := a.DrivePulseCount()
	if n != 4 {
		t.Errorf("DrivePulseCount = %d, want 4 after backlash take-up", n)
	}
}

func TestCompensationTable(t *testing.T) {
	r := newRig(t)
	a := r.axis(t, 0)

	if _, err := a.GetCompensation(0); !axt.IsCode(err, axt.CompensationNotInit) {
		t.Errorf("GetCompensation before set: error = %v, want code %d", err, axt.CompensationNotInit)
	}
	entries := []CompEntry{{Pos: 0, Corr: 0}, {Pos: 100, Corr: 2}}
	if err := a.SetCompensationTable(entries, true); err != nil {
		t.Fatal(err)
	}
	if got, _ := a.GetCompensation(50); math.Abs(got-1) > 1e-9 {
		t.Errorf("GetCompensation(50) = %g, want 1", got)
	}

	bad := []CompEntry{{Pos: 10, Corr: 0}, {Pos: 10, Corr: 1}}
	if err := a.SetCompensationTable(bad, true); !axt.IsCode(err, axt.CompensationInvalidEntry) {
		t.Errorf("non-increasing table: error = %v, want code %d", err, axt.CompensationInvalidEntry)
	}

	if err := a.MoveStartPos(100, 200, 2000, 2000); err != nil {
		t.Fatal(err)
	}
	r.stepUntilIdle(t, a, 5)
	pos, _ := a.CmdPos()
	if math.Abs(pos-100) > 1e-6 {
		t.Errorf("CmdPos = %g, want 100", pos)
	}
	n, _ := a.DrivePulseCount()
	if n != 102 {
		t.Errorf("DrivePulseCount = %d, want 102 with +2 correction", n)
	}
}

func TestTorqueMove(t *testing.T) {
	r := newRig(t)
	a := r.axis(t, 0)

	if err := a.MoveStartTorque(50, 120); err != nil {
		t.Fatal(err)
	}
	r.step(1)
	vel, _ := a.ReadVel()
	if math.Abs(vel-120) > 1 {
		t.Errorf("ReadVel in torque mode = %g, want 120", vel)
	}
	pct, lim, err := a.GetTorque()
	if err != nil || pct != 50 || lim != 120 {
		t.Errorf("GetTorque = (%g, %g, %v), want (50, 120, nil)", pct, lim, err)
	}
	if err := a.MoveTorqueStop(100); err != nil {
		t.Fatal(err)
	}
	r.stepUntilIdle(t, a, 5)
	if _, _, err := a.GetTorque(); !axt.IsCode(err, axt.MotionErrorInNonmotion) {
		t.Errorf("GetTorque after stop: error = %v, want code %d", err, axt.MotionErrorInNonmotion)
	}
}
