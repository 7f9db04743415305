// Copyright (C) 2026 Go binding
//
// This file may be distributed under the terms of the GNU GPLv3 license.

package motion

import (
	"math"
	"testing"

	"axl-go/pkg/axt"
)

func TestMultiStartReachesAllTargets(t *testing.T) {
	r := newRig(t)
	a0, a1, a2 := r.axis(t, 0), r.axis(t, 1), r.axis(t, 2)

	axes := []int{0, 1, 2}
	pos := []float64{100, 50, -30}
	vel := []float64{100, 100, 100}
	ramp := []float64{500, 500, 500}
	if err := r.c.MultiStart(axes, pos, vel, ramp, ramp, SyncStartTogether); err != nil {
		t.Fatal(err)
	}
	r.step(0.05)
	for i, a := range []*Axis{a0, a1, a2} {
		if busy, _ := a.InMotion(); !busy {
			t.Fatalf("axis %d not moving after batch start", i)
		}
	}
	r.stepUntilIdle(t, a0, 5)
	r.stepUntilIdle(t, a1, 5)
	r.stepUntilIdle(t, a2, 5)
	for i, a := range []*Axis{a0, a1, a2} {
		got, _ := a.CmdPos()
		if math.Abs(got-pos[i]) > 1e-6 {
			t.Errorf("axis %d CmdPos = %g, want %g", i, got, pos[i])
		}
	}
}

func TestMultiStartAdmitsAllOrNone(t *testing.T) {
	r := newRig(t)
	a0, a1 := r.axis(t, 0), r.axis(t, 1)

	ramp := []float64{500, 500}
	err := r.c.MultiStart([]int{0, 1}, []float64{100}, []float64{100, 100}, ramp, ramp, SyncStartTogether)
	if !axt.IsCode(err, axt.BadParameter) {
		t.Errorf("short pos array: error = %v, want code %d", err, axt.BadParameter)
	}

	// One member with an inadmissible target keeps the whole batch
	// from launching.
	if err := a1.SetSoftLimit(true, axt.Command, axt.EmergencyStop, -10, 10); err != nil {
		t.Fatal(err)
	}
	err = r.c.MultiStart([]int{0, 1}, []float64{100, 50}, []float64{100, 100}, ramp, ramp, SyncStartTogether)
	if !axt.IsCode(err, axt.SoftLimitPositive) {
		t.Errorf("batch with limited member: error = %v, want code %d", err, axt.SoftLimitPositive)
	}
	r.step(0.05)
	if busy, _ := a0.InMotion(); busy {
		t.Error("axis 0 launched despite batch admission failure")
	}
	if got, _ := a0.CmdPos(); got != 0 {
		t.Errorf("axis 0 CmdPos = %g after failed batch, want 0", got)
	}
}

func TestMultiStopTogetherCouplesStops(t *testing.T) {
	r := newRig(t)
	a0, a1 := r.axis(t, 0), r.axis(t, 1)

	ramp := []float64{500, 500}
	err := r.c.MultiStart([]int{0, 1}, []float64{1000, 1000}, []float64{100, 100}, ramp, ramp, SyncStopTogether)
	if err != nil {
		t.Fatal(err)
	}
	r.step(0.3)
	if err := a0.SStop(); err != nil {
		t.Fatal(err)
	}
	r.stepUntilIdle(t, a0, 5)
	r.stepUntilIdle(t, a1, 5)

	for i, a := range []*Axis{a0, a1} {
		cause, _ := a.ReadStopCause()
		if cause != StopUser {
			t.Errorf("axis %d stop cause = %v, want %v", i, cause, StopUser)
		}
		pos, _ := a.CmdPos()
		if pos >= 1000 {
			t.Errorf("axis %d ran to target despite coupled stop", i)
		}
	}
}

func TestGearSlaveFollowsMaster(t *testing.T) {
	r := newRig(t)
	a0, a1 := r.axis(t, 0), r.axis(t, 1)

	if err := r.c.GearSet(0, []int{1}, []float64{2}); err != nil {
		t.Fatal(err)
	}
	slaves, ratios, engaged, err := r.c.GearGet(0)
	if err != nil {
		t.Fatal(err)
	}
	if len(slaves) != 1 || slaves[0] != 1 || ratios[0] != 2 || engaged {
		t.Fatalf("GearGet = (%v, %v, %v), want ([1], [2], false)", slaves, ratios, engaged)
	}
	if err := r.c.GearEnable(0, true); err != nil {
		t.Fatal(err)
	}

	if err := a1.MoveStartPos(10, 100, 500, 500); !axt.IsCode(err, axt.MotionError) {
		t.Errorf("move on engaged slave: error = %v, want code %d", err, axt.MotionError)
	}

	if err := a0.MoveStartPos(50, 100, 500, 500); err != nil {
		t.Fatal(err)
	}
	r.stepUntilIdle(t, a0, 5)
	if got, _ := a0.CmdPos(); math.Abs(got-50) > 1e-6 {
		t.Errorf("master CmdPos = %g, want 50", got)
	}
	if got, _ := a1.CmdPos(); math.Abs(got-100) > 0.01 {
		t.Errorf("slave CmdPos = %g, want 100 at ratio 2", got)
	}
	if got, _ := a1.ActPos(); math.Abs(got-100) > 0.01 {
		t.Errorf("slave ActPos = %g, want 100", got)
	}

	if err := r.c.GearEnable(0, false); err != nil {
		t.Fatal(err)
	}
	if err := a1.MoveStartPos(110, 100, 500, 500); err != nil {
		t.Errorf("move on released slave: %v", err)
	}
	r.stepUntilIdle(t, a1, 5)
}

func TestGearSetRejects(t *testing.T) {
	r := newRig(t)
	a1 := r.axis(t, 1)

	cases := []struct {
		name   string
		master int
		slaves []int
		ratios []float64
		code   axt.Code
	}{
		{"self slave", 0, []int{0}, []float64{1}, axt.MotionErrorMasterSlaveSame},
		{"no slaves", 0, nil, nil, axt.BadParameter},
		{"length mismatch", 0, []int{1, 2}, []float64{1}, axt.BadParameter},
		{"duplicate slave", 0, []int{1, 1}, []float64{1, 1}, axt.BadParameter},
		{"zero ratio", 0, []int{1}, []float64{0}, axt.BadParameter},
	}
	for _, tc := range cases {
		if err := r.c.GearSet(tc.master, tc.slaves, tc.ratios); !axt.IsCode(err, tc.code) {
			t.Errorf("%s: error = %v, want code %d", tc.name, err, tc.code)
		}
	}

	if _, _, _, err := r.c.GearGet(3); !axt.IsCode(err, axt.MotionInvalidSelection) {
		t.Errorf("GearGet unmapped: error = %v, want code %d", err, axt.MotionInvalidSelection)
	}

	if err := r.c.GearSet(0, []int{1}, []float64{2}); err != nil {
		t.Fatal(err)
	}
	if err := a1.MoveStartPos(1000, 100, 500, 500); err != nil {
		t.Fatal(err)
	}
	r.step(0.05)
	if err := r.c.GearEnable(0, true); !axt.IsCode(err, axt.MotionErrorInMotion) {
		t.Errorf("engage with moving member: error = %v, want code %d", err, axt.MotionErrorInMotion)
	}
	if err := a1.EStop(); err != nil {
		t.Fatal(err)
	}
	r.step(0.05)

	if err := r.c.GearEnable(0, true); err != nil {
		t.Fatal(err)
	}
	if err := r.c.GearSet(0, []int{2}, []float64{1}); !axt.IsCode(err, axt.MotionError) {
		t.Errorf("GearSet while engaged: error = %v, want code %d", err, axt.MotionError)
	}
	if err := r.c.GearReset(0); err != nil {
		t.Fatal(err)
	}
	if _, _, _, err := r.c.GearGet(0); !axt.IsCode(err, axt.MotionInvalidSelection) {
		t.Errorf("GearGet after reset: error = %v, want code %d", err, axt.MotionInvalidSelection)
	}
}

func TestGantryPairMirrorsMaster(t *testing.T) {
	r := newRig(t)
	a0, a1 := r.axis(t, 0), r.axis(t, 1)

	if err := r.c.GantrySet(0, 1, GantryHomeTogether, 0, 0); err != nil {
		t.Fatal(err)
	}
	if err := r.c.GantryEnable(0); err != nil {
		t.Fatal(err)
	}

	if err := a1.MoveStartPos(10, 100, 500, 500); !axt.IsCode(err, axt.MotionErrorGantryEnable) {
		t.Errorf("move on gantry slave: error = %v, want code %d", err, axt.MotionErrorGantryEnable)
	}

	if err := a0.MoveStartPos(80, 100, 500, 500); err != nil {
		t.Fatal(err)
	}
	r.step(0.3)
	if busy, _ := a1.InMotion(); !busy {
		t.Error("slave idle while master moves")
	}
	r.stepUntilIdle(t, a0, 5)
	if got, _ := a0.CmdPos(); math.Abs(got-80) > 1e-6 {
		t.Errorf("master CmdPos = %g, want 80", got)
	}
	if got, _ := a1.CmdPos(); math.Abs(got-80) > 1e-6 {
		t.Errorf("slave CmdPos = %g, want 80", got)
	}

	if err := r.c.GantryDisable(0); err != nil {
		t.Fatal(err)
	}
	if err := a1.MoveStartPos(80, 100, 500, 500); err != nil {
		t.Errorf("move on released slave: %v", err)
	}
}

func TestGantryEnableChecksAlignment(t *testing.T) {
	r := newRig(t)
	a1 := r.axis(t, 1)

	if err := r.c.GantrySet(0, 1, GantryHomeTogether, 0, 1); err != nil {
		t.Fatal(err)
	}
	if err := a1.SetCmdPos(50); err != nil {
		t.Fatal(err)
	}
	if err := r.c.GantryEnable(0); !axt.IsCode(err, axt.MotionErrorGantryEnable) {
		t.Errorf("enable misaligned: error = %v, want code %d", err, axt.MotionErrorGantryEnable)
	}
	if err := a1.SetCmdPos(0); err != nil {
		t.Fatal(err)
	}
	if err := r.c.GantryEnable(0); err != nil {
		t.Errorf("enable aligned: %v", err)
	}
}

func TestGantryPairingRejects(t *testing.T) {
	r := newRig(t)

	if err := r.c.GantrySet(0, 0, GantryHomeTogether, 0, 0); !axt.IsCode(err, axt.MotionErrorGantryAxis) {
		t.Errorf("self pair: error = %v, want code %d", err, axt.MotionErrorGantryAxis)
	}
	if err := r.c.GantrySet(0, 1, GantryHomeTogether, 0, 0); err != nil {
		t.Fatal(err)
	}
	if err := r.c.GantrySet(2, 1, GantryHomeTogether, 0, 0); !axt.IsCode(err, axt.MotionErrorGantryAxis) {
		t.Errorf("slave reuse: error = %v, want code %d", err, axt.MotionErrorGantryAxis)
	}
	if _, _, _, _, _, err := r.c.GantryGet(2); !axt.IsCode(err, axt.MotionErrorGantryAxis) {
		t.Errorf("GantryGet unpaired: error = %v, want code %d", err, axt.MotionErrorGantryAxis)
	}

	// A geared axis cannot join a gantry pair.
	if err := r.c.GearSet(2, []int{3}, []float64{1}); err != nil {
		t.Fatal(err)
	}
	if err := r.c.GearEnable(2, true); err != nil {
		t.Fatal(err)
	}
	if err := r.c.GantrySet(2, 4, GantryHomeTogether, 0, 0); !axt.IsCode(err, axt.MotionErrorGantryAxis) {
		t.Errorf("geared master in pair: error = %v, want code %d", err, axt.MotionErrorGantryAxis)
	}
}

func TestGantryDeviationWatchdog(t *testing.T) {
	r := newRig(t)
	a0, a1 := r.axis(t, 0), r.axis(t, 1)

	if err := r.c.GantrySet(0, 1, GantryHomeTogether, 0, 0); err != nil {
		t.Fatal(err)
	}
	if err := r.c.GantryEnable(0); err != nil {
		t.Fatal(err)
	}
	if err := r.c.GantrySetErrorCheck(0, 5, GantryActionEStop); err != nil {
		t.Fatal(err)
	}

	if err := a0.MoveVel(100, 500, 500); err != nil {
		t.Fatal(err)
	}
	r.step(0.3)
	tripped, _, err := r.c.GantryReadErrorStatus(0)
	if err != nil {
		t.Fatal(err)
	}
	if tripped {
		t.Fatal("watchdog tripped before any deviation")
	}

	r.rack.SetActLag(1, 10)
	r.step(0.005)

	tripped, dev, _ := r.c.GantryReadErrorStatus(0)
	if !tripped {
		t.Fatal("watchdog did not trip on 10-unit deviation")
	}
	if math.Abs(dev) < 5 {
		t.Errorf("recorded deviation = %g, want beyond the 5-unit range", dev)
	}
	for i, a := range []*Axis{a0, a1} {
		if busy, _ := a.InMotion(); busy {
			t.Errorf("axis %d still moving after gantry trip", i)
		}
		cause, _ := a.ReadStopCause()
		if cause != StopGantryFault {
			t.Errorf("axis %d stop cause = %v, want %v", i, cause, StopGantryFault)
		}
	}
}

func TestPVTSyncPairSymmetric(t *testing.T) {
	r := newRig(t)
	a0, a1 := r.axis(t, 0), r.axis(t, 1)

	if err := r.c.SyncSet(0, []int{0, 1}); err != nil {
		t.Fatal(err)
	}
	if err := r.c.SyncBegin(0); err != nil {
		t.Fatal(err)
	}
	times := []uint32{0, 1000000, 2000000}
	if err := a0.MovePVT([]float64{0, 100, 200}, []float64{0, 50, 0}, times); err != nil {
		t.Fatal(err)
	}
	if err := a1.MovePVT([]float64{0, -100, -200}, []float64{0, -50, 0}, times); err != nil {
		t.Fatal(err)
	}
	if err := r.c.SyncEnd(0); err != nil {
		t.Fatal(err)
	}
	if err := r.c.SyncStart(0); err != nil {
		t.Fatal(err)
	}

	r.step(1.0)
	p0, _ := a0.CmdPos()
	p1, _ := a1.CmdPos()
	if math.Abs(p0-100) > 0.1 {
		t.Errorf("axis 0 at first knot time = %g, want 100", p0)
	}
	if math.Abs(p1+100) > 0.1 {
		t.Errorf("axis 1 at first knot time = %g, want -100", p1)
	}
	if math.Abs(p0+p1) > 0.2 {
		t.Errorf("pair asymmetric: %g vs %g", p0, p1)
	}

	r.stepUntilIdle(t, a0, 3)
	r.stepUntilIdle(t, a1, 3)
	if got, _ := a0.CmdPos(); math.Abs(got-200) > 1e-6 {
		t.Errorf("axis 0 final = %g, want 200", got)
	}
	if got, _ := a1.CmdPos(); math.Abs(got+200) > 1e-6 {
		t.Errorf("axis 1 final = %g, want -200", got)
	}
}

func TestSyncLifecycleErrors(t *testing.T) {
	r := newRig(t)
	a0 := r.axis(t, 0)

	if err := r.c.SyncSet(16, []int{0}); !axt.IsCode(err, axt.SyncInvalidMapNo) {
		t.Errorf("map out of range: error = %v, want code %d", err, axt.SyncInvalidMapNo)
	}
	if err := r.c.SyncBegin(2); !axt.IsCode(err, axt.SyncInvalidMapNo) {
		t.Errorf("begin unset map: error = %v, want code %d", err, axt.SyncInvalidMapNo)
	}
	if err := a0.MovePVT([]float64{10}, []float64{0}, []uint32{1000000}); !axt.IsCode(err, axt.NotSeqNodeBegin) {
		t.Errorf("PVT outside group: error = %v, want code %d", err, axt.NotSeqNodeBegin)
	}

	if err := r.c.SyncSet(0, []int{0, 1}); err != nil {
		t.Fatal(err)
	}
	if err := r.c.SyncSet(1, []int{1}); !axt.IsCode(err, axt.SyncInvalidAxisNo) {
		t.Errorf("axis in two maps: error = %v, want code %d", err, axt.SyncInvalidAxisNo)
	}
	if err := r.c.SyncBegin(0); err != nil {
		t.Fatal(err)
	}
	if err := r.c.SyncStart(0); !axt.IsCode(err, axt.NotSeqNodeEnd) {
		t.Errorf("start while open: error = %v, want code %d", err, axt.NotSeqNodeEnd)
	}
	err := a0.MovePVT([]float64{10, 20}, []float64{0, 0}, []uint32{1000000, 1000000})
	if !axt.IsCode(err, axt.SyncDuplicatedTime) {
		t.Errorf("duplicate knot time: error = %v, want code %d", err, axt.SyncDuplicatedTime)
	}
	err = a0.MovePVT([]float64{10, 20}, []float64{0, 0}, []uint32{2000000, 1000000})
	if !axt.IsCode(err, axt.MotionInvalidTime) {
		t.Errorf("decreasing knot time: error = %v, want code %d", err, axt.MotionInvalidTime)
	}
	if err := r.c.SyncEnd(0); err != nil {
		t.Fatal(err)
	}
	if err := r.c.SyncEnd(0); !axt.IsCode(err, axt.NotSeqNodeBegin) {
		t.Errorf("end twice: error = %v, want code %d", err, axt.NotSeqNodeBegin)
	}
	if err := r.c.SyncStart(0); !axt.IsCode(err, axt.BadParameter) {
		t.Errorf("start with no tables: error = %v, want code %d", err, axt.BadParameter)
	}
	if err := r.c.SyncClear(0); err != nil {
		t.Fatal(err)
	}
	if err := r.c.SyncClear(0); !axt.IsCode(err, axt.SyncInvalidMapNo) {
		t.Errorf("clear unset map: error = %v, want code %d", err, axt.SyncInvalidMapNo)
	}
}
