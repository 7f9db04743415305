// Copyright (C) 2026 Go binding
//
// This file may be distributed under the terms of the GNU GPLv3 license.

package counter

import (
	"testing"

	"axl-go/pkg/axt"
	"axl-go/pkg/board"
	"axl-go/pkg/event"
	"axl-go/pkg/profile"
	"axl-go/pkg/vrack"
)

type rig struct {
	rack *vrack.Rack
	ev   *event.Manager
	cm   *Manager
}

func newRig(t *testing.T) *rig {
	t.Helper()
	topo, err := board.New(board.DefaultLayout())
	if err != nil {
		t.Fatalf("board.New: %v", err)
	}
	rack := vrack.New(vrack.Config{Axes: topo.AxisCount()})
	ev := event.NewManager(nil)
	cm := New(nil, rack, topo, ev)
	t.Cleanup(func() {
		cm.Close()
		ev.Close()
	})
	for i := 0; i < topo.AxisCount(); i++ {
		rack.SetServo(i, true)
	}
	return &rig{rack: rack, ev: ev, cm: cm}
}

func (r *rig) chn(t *testing.T, no int) *Channel {
	t.Helper()
	c, err := r.cm.Channel(no)
	if err != nil {
		t.Fatalf("Channel(%d): %v", no, err)
	}
	return c
}

func (r *rig) tbl(t *testing.T, moduleNo, pos int) *Table {
	t.Helper()
	tb, err := r.cm.Table(moduleNo, pos)
	if err != nil {
		t.Fatalf("Table(%d, %d): %v", moduleNo, pos, err)
	}
	return tb
}

func (r *rig) step(seconds float64) {
	const dt = 0.001
	for t := 0.0; t < seconds-dt/2; t += dt {
		r.rack.Step(dt)
	}
}

// moveAxis sweeps an axis by delta pulses over dur seconds with a
// triangular velocity profile and steps the rack through it.
func (r *rig) moveAxis(t *testing.T, axisNo int, delta, dur float64) {
	t.Helper()
	peak := 2 * delta / dur
	p, err := profile.PVTFrom(0,
		[]float64{dur / 2, dur},
		[]float64{delta / 2, delta},
		[]float64{peak, 0})
	if err != nil {
		t.Fatalf("PVTFrom: %v", err)
	}
	r.rack.StartProfile(axisNo, p)
	r.step(dur + 0.01)
}

func wantCode(t *testing.T, err error, code axt.Code, op string) {
	t.Helper()
	if err == nil {
		t.Fatalf("%s: no error, want code %d", op, code)
	}
	if !axt.IsCode(err, code) {
		t.Fatalf("%s: error %v, want code %d", op, err, code)
	}
}

func TestChannelFollowsAxis(t *testing.T) {
	r := newRig(t)
	c0 := r.chn(t, 0)
	if err := c0.BindAxis(0); err != nil {
		t.Fatalf("BindAxis: %v", err)
	}
	r.moveAxis(t, 0, 1000, 0.5)
	if got := c0.Read(); got != 1000 {
		t.Errorf("count after sweep = %v, want 1000", got)
	}

	c1 := r.chn(t, 1)
	c1.SetEncReverse(true)
	if err := c1.BindAxis(1); err != nil {
		t.Fatalf("BindAxis: %v", err)
	}
	r.moveAxis(t, 1, 500, 0.5)
	if got := c1.Read(); got != -500 {
		t.Errorf("reversed count = %v, want -500", got)
	}

	// unit scaling applies on top of the raw count
	c2 := r.chn(t, 2)
	if err := c2.SetMoveUnitPerPulse(0.5); err != nil {
		t.Fatalf("SetMoveUnitPerPulse: %v", err)
	}
	if err := c2.BindAxis(0); err != nil {
		t.Fatalf("BindAxis: %v", err)
	}
	r.moveAxis(t, 0, 100, 0.2)
	if got := c2.Read(); got != 50 {
		t.Errorf("scaled count = %v, want 50", got)
	}

	// a preset is a register load, not travel
	if err := c0.Write(42); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if got := c0.Read(); got != 42 {
		t.Errorf("preset count = %v, want 42", got)
	}
	c0.Clear()
	if got := c0.Read(); got != 0 {
		t.Errorf("cleared count = %v, want 0", got)
	}

	c0.Unbind()
	r.moveAxis(t, 0, 300, 0.2)
	if got := c0.Read(); got != 0 {
		t.Errorf("unbound count = %v, want 0", got)
	}
}

func TestChannelConfigValidation(t *testing.T) {
	r := newRig(t)
	if _, err := r.cm.Channel(10); !axt.IsCode(err, axt.CNTInvalidChannelNo) {
		t.Errorf("Channel(10) err = %v, want CNT_INVALID_CHANNEL_NO", err)
	}
	if _, err := r.cm.Channel(-1); !axt.IsCode(err, axt.CNTInvalidChannelNo) {
		t.Errorf("Channel(-1) err = %v, want CNT_INVALID_CHANNEL_NO", err)
	}

	hpc := r.chn(t, 0)  // SIO_HPC4
	cn := r.chn(t, 4)   // SIO_CN2CH
	lcm := r.chn(t, 6)  // SIO_LCM4
	if err := hpc.SetEncInputMethod(0); err != nil {
		t.Errorf("HPC4 method 0: %v", err)
	}
	wantCode(t, hpc.SetEncInputMethod(4), axt.CNTInvalidMode, "HPC4 method 4")
	wantCode(t, lcm.SetEncInputMethod(0), axt.CNTInvalidMode, "LCM4 method 0")
	if err := lcm.SetEncInputMethod(2); err != nil {
		t.Errorf("LCM4 method 2: %v", err)
	}
	wantCode(t, hpc.SetMoveUnitPerPulse(0), axt.CNTInvalidValue, "unit 0")
	wantCode(t, hpc.SetMoveUnitPerPulse(-1), axt.CNTInvalidValue, "unit -1")

	// notch compare exists on HPC4 but not on CN2CH
	if err := hpc.SetTriggerFunction(TriggerNotch); err != nil {
		t.Errorf("HPC4 notch: %v", err)
	}
	wantCode(t, cn.SetTriggerFunction(TriggerNotch), axt.CNTInvalidMode, "CN2CH notch")
	if err := cn.SetTriggerFunction(TriggerAbs); err != nil {
		t.Errorf("CN2CH abs: %v", err)
	}

	wantCode(t, hpc.SetNotchPos(200, 100), axt.CNTInvalidRange, "inverted notch")
	wantCode(t, hpc.SetBlockRange(10, 5), axt.CNTInvalidRange, "inverted block")
	wantCode(t, hpc.SetPosPeriod(0), axt.CNTInvalidValue, "zero period")
	wantCode(t, hpc.SetFreq(0.5), axt.CNTInvalidValue, "0.5 Hz")
	wantCode(t, hpc.SetFreq(600e3), axt.CNTInvalidValue, "600 kHz")
	wantCode(t, hpc.SetTriggerLevel(axt.LevelUnused), axt.CNTInvalidLevel, "level unused")
	wantCode(t, hpc.SetTriggerTime(0), axt.CNTInvalidValue, "zero width")
	wantCode(t, hpc.BindAxis(99), axt.CNTInvalidValue, "axis 99")
}

func TestNotchTrigger(t *testing.T) {
	r := newRig(t)
	c := r.chn(t, 0)
	if err := c.BindAxis(0); err != nil {
		t.Fatalf("BindAxis: %v", err)
	}
	if err := c.SetTriggerFunction(TriggerNotch); err != nil {
		t.Fatalf("SetTriggerFunction: %v", err)
	}
	if err := c.SetNotchPos(100, 200); err != nil {
		t.Fatalf("SetNotchPos: %v", err)
	}
	c.SetNotchEnable(true)
	c.TriggerEnable(true)

	r.moveAxis(t, 0, 300, 0.3)
	if got := c.ReadTriggerCount(); got != 2 {
		t.Errorf("fires after forward sweep = %d, want 2", got)
	}
	r.moveAxis(t, 0, -300, 0.3)
	if got := c.ReadTriggerCount(); got != 4 {
		t.Errorf("fires after return sweep = %d, want 4", got)
	}

	c.SetNotchEnable(false)
	r.moveAxis(t, 0, 300, 0.3)
	if got := c.ReadTriggerCount(); got != 4 {
		t.Errorf("fires with notch disarmed = %d, want 4", got)
	}
	c.ClearTriggerCount()
	if got := c.ReadTriggerCount(); got != 0 {
		t.Errorf("count after clear = %d, want 0", got)
	}

	if bits := r.ev.Bank(event.ChannelBank(0)).Peek(); bits&event.TriggerFired == 0 {
		t.Errorf("trigger-fired flag not latched, bank = %#x", bits)
	}
}

func TestPeriodicPosTrigger(t *testing.T) {
	r := newRig(t)
	c := r.chn(t, 0)
	if err := c.BindAxis(0); err != nil {
		t.Fatalf("BindAxis: %v", err)
	}
	if err := c.SetTriggerFunction(TriggerPeriodicPos); err != nil {
		t.Fatalf("SetTriggerFunction: %v", err)
	}
	if err := c.SetBlockRange(100, 200); err != nil {
		t.Fatalf("SetBlockRange: %v", err)
	}
	if err := c.SetPosPeriod(10); err != nil {
		t.Fatalf("SetPosPeriod: %v", err)
	}
	if err := c.SetDirectionCheck(DirInc); err != nil {
		t.Fatalf("SetDirectionCheck: %v", err)
	}
	c.TriggerEnable(true)

	// 100, 110, ... 200 inside the block
	r.moveAxis(t, 0, 250, 0.4)
	if got := c.ReadTriggerCount(); got != 11 {
		t.Errorf("increasing fires = %d, want 11", got)
	}
	r.moveAxis(t, 0, -250, 0.4)
	if got := c.ReadTriggerCount(); got != 11 {
		t.Errorf("fires after filtered return = %d, want 11", got)
	}

	if err := c.SetDirectionCheck(DirDec); err != nil {
		t.Fatalf("SetDirectionCheck: %v", err)
	}
	r.moveAxis(t, 0, 250, 0.4)
	if got := c.ReadTriggerCount(); got != 11 {
		t.Errorf("fires after filtered forward = %d, want 11", got)
	}
	r.moveAxis(t, 0, -250, 0.4)
	if got := c.ReadTriggerCount(); got != 22 {
		t.Errorf("decreasing fires = %d, want 22", got)
	}
}

func TestAbsTableTrigger(t *testing.T) {
	r := newRig(t)
	c := r.chn(t, 4) // CN2CH
	if err := c.BindAxis(2); err != nil {
		t.Fatalf("BindAxis: %v", err)
	}
	table := []float64{50, 150, 100} // upload order is free
	if err := c.SetAbsPositions(table, DirBoth); err != nil {
		t.Fatalf("SetAbsPositions: %v", err)
	}
	got := c.AbsPositions()
	if len(got) != 3 || got[0] != 50 || got[1] != 150 || got[2] != 100 {
		t.Fatalf("AbsPositions = %v, want %v", got, table)
	}
	if err := c.SetTriggerFunction(TriggerAbs); err != nil {
		t.Fatalf("SetTriggerFunction: %v", err)
	}
	c.TriggerEnable(true)

	r.moveAxis(t, 2, 200, 0.3)
	if n := c.ReadTriggerCount(); n != 3 {
		t.Errorf("forward fires = %d, want 3", n)
	}
	r.moveAxis(t, 2, -200, 0.3)
	if n := c.ReadTriggerCount(); n != 6 {
		t.Errorf("after return fires = %d, want 6", n)
	}

	if err := c.SetAbsPositions(table, DirInc); err != nil {
		t.Fatalf("SetAbsPositions: %v", err)
	}
	r.moveAxis(t, 2, 200, 0.3)
	r.moveAxis(t, 2, -200, 0.3)
	if n := c.ReadTriggerCount(); n != 9 {
		t.Errorf("direction-filtered fires = %d, want 9", n)
	}

	// HPC4 tables cap at 500 entries either form
	hpc := r.chn(t, 0)
	wantCode(t, hpc.SetAbsPositions(make([]float64, 501), DirBoth),
		axt.CNTInvalidValue, "HPC4 double overflow")
	wantCode(t, hpc.SetAbsPulses(make([]uint32, 501), DirBoth),
		axt.CNTInvalidValue, "HPC4 dword overflow")
	// the CN2CH double form holds far more
	if err := c.SetAbsPositions(make([]float64, 501), DirBoth); err != nil {
		t.Errorf("CN2CH double 501 entries: %v", err)
	}
}

func TestAbsRAMAccess(t *testing.T) {
	r := newRig(t)
	c := r.chn(t, 4)
	if err := c.SetAbsPulses([]uint32{100, 200, 300}, DirBoth); err != nil {
		t.Fatalf("SetAbsPulses: %v", err)
	}
	v, err := c.ReadAbsRAM(1)
	if err != nil || v != 200 {
		t.Errorf("ReadAbsRAM(1) = %d, %v, want 200", v, err)
	}
	if err := c.WriteAbsRAM(1, 250); err != nil {
		t.Fatalf("WriteAbsRAM: %v", err)
	}
	if got := c.AbsPositions(); got[1] != 250 {
		t.Errorf("patched position = %v, want 250", got[1])
	}
	if _, err := c.ReadAbsRAM(5); !axt.IsCode(err, axt.CNTInvalidOffsetNo) {
		t.Errorf("ReadAbsRAM(5) err = %v, want CNT_INVALID_OFFSET_NO", err)
	}
	wantCode(t, c.WriteAbsRAM(7, 1), axt.CNTInvalidOffsetNo, "WriteAbsRAM(7)")
}

func TestPeriodicTimeTrigger(t *testing.T) {
	r := newRig(t)
	c := r.chn(t, 0)
	if err := c.SetTriggerFunction(TriggerPeriodicTime); err != nil {
		t.Fatalf("SetTriggerFunction: %v", err)
	}
	if err := c.SetFreq(1000); err != nil {
		t.Fatalf("SetFreq: %v", err)
	}
	c.TriggerEnable(true)
	r.step(0.5)
	if n := c.ReadTriggerCount(); n != 500 {
		t.Errorf("fires in 0.5s at 1 kHz = %d, want 500", n)
	}
	c.TriggerEnable(false)
	r.step(0.1)
	if n := c.ReadTriggerCount(); n != 500 {
		t.Errorf("fires while disarmed = %d, want 500", n)
	}
}

func TestCaptureAndTimeout(t *testing.T) {
	r := newRig(t)
	c := r.chn(t, 0)
	if err := c.SetCaptureFunction(axt.UpEdge); err != nil {
		t.Fatalf("SetCaptureFunction: %v", err)
	}
	if err := c.SetTimeout(50); err != nil {
		t.Fatalf("SetTimeout: %v", err)
	}
	r.step(0.03)
	if c.Status()&StatusTimeout != 0 {
		t.Fatal("timeout latched before the deadline")
	}
	r.step(0.03)
	if c.Status()&StatusTimeout == 0 {
		t.Fatal("timeout not latched after the deadline")
	}
	if bits := r.ev.Bank(event.ChannelBank(0)).ReadClear(); bits&event.TriggerTimeout == 0 {
		t.Errorf("timeout flag not raised, bank = %#x", bits)
	}

	// a latch inside the window disarms the watchdog
	if err := c.SetTimeout(50); err != nil {
		t.Fatalf("SetTimeout: %v", err)
	}
	if err := c.Write(777); err != nil {
		t.Fatalf("Write: %v", err)
	}
	c.Latch()
	r.step(0.1)
	if bits := r.ev.Bank(event.ChannelBank(0)).ReadClear(); bits&event.TriggerTimeout != 0 {
		t.Error("timeout fired despite the latch")
	} else if bits&event.SignalCapture == 0 {
		t.Errorf("capture flag not raised, bank = %#x", bits)
	}
	pos, ok := c.ReadCapture()
	if !ok || pos != 777 {
		t.Errorf("ReadCapture = %v, %v, want 777, true", pos, ok)
	}
	if _, ok := c.ReadCapture(); ok {
		t.Error("capture latch not cleared by the read")
	}
}

func TestTableSweepFiresEveryPoint(t *testing.T) {
	r := newRig(t)
	tb := r.tbl(t, 4, 0) // HPC4 module
	cx := r.chn(t, 0)
	cy := r.chn(t, 1)
	if err := cx.BindAxis(0); err != nil {
		t.Fatalf("BindAxis: %v", err)
	}
	if err := cy.BindAxis(1); err != nil {
		t.Fatalf("BindAxis: %v", err)
	}

	pts := make([]XYPoint, 100)
	for i := range pts {
		pts[i] = XYPoint{X: float64(10 * (i + 1)), Y: float64(5 * (i + 1)), Count: 1}
	}
	if err := tb.SetErrorRange(1); err != nil {
		t.Fatalf("SetErrorRange: %v", err)
	}
	if err := tb.SetTriggerTime(500); err != nil {
		t.Fatalf("SetTriggerTime: %v", err)
	}
	if err := tb.SetPatternData(pts); err != nil {
		t.Fatalf("SetPatternData: %v", err)
	}
	back := tb.PatternData()
	for i := range pts {
		if back[i] != pts[i] {
			t.Fatalf("point %d readback = %+v, want %+v", i, back[i], pts[i])
		}
	}

	n, empty, full, valid := tb.FIFOStatus()
	if n != 100 || empty || full || !valid {
		t.Fatalf("loaded fifo = (%d, %v, %v, %v), want (100, false, false, true)", n, empty, full, valid)
	}
	if x, y, err := tb.ReadFIFO(); err != nil || x != 10 || y != 5 {
		t.Fatalf("fifo head = (%v, %v, %v), want (10, 5, nil)", x, y, err)
	}

	// sweep the pair along y = x/2 through all hundred points
	px, _ := profile.PVTFrom(0, []float64{1, 2}, []float64{505, 1010}, []float64{1010, 0})
	py, _ := profile.PVTFrom(0, []float64{1, 2}, []float64{252.5, 505}, []float64{505, 0})
	r.rack.StartProfiles(map[int]*profile.Profile{0: px, 1: py})
	r.step(2.1)

	if n := tb.ReadTriggerCount(); n != 100 {
		t.Errorf("trigger count after sweep = %d, want 100", n)
	}
	n, empty, _, valid = tb.FIFOStatus()
	if n != 0 || !empty || valid {
		t.Errorf("drained fifo = (%d, %v, %v), want (0, true, false)", n, empty, valid)
	}
	if _, _, err := tb.ReadFIFO(); !axt.IsCode(err, axt.CNTInvalidUse) {
		t.Errorf("ReadFIFO on empty err = %v, want CNT_INVALID_USE", err)
	}
	if bits := r.ev.Bank(event.ChannelBank(0)).Peek(); bits&event.FIFOEmpty == 0 {
		t.Errorf("fifo-empty flag not raised, bank = %#x", bits)
	}
}

func TestTableShots(t *testing.T) {
	r := newRig(t)
	tb := r.tbl(t, 4, 1)
	if err := tb.SetMode(TablePattern); err != nil {
		t.Fatalf("SetMode: %v", err)
	}
	if err := tb.OneShot(); err != nil {
		t.Fatalf("OneShot: %v", err)
	}
	if got := tb.Mode(); got != TableRange {
		t.Errorf("mode after one-shot = %v, want RANGE_TRIGGER", got)
	}
	if !tb.Enabled() {
		t.Error("one-shot left the table disarmed")
	}
	if n := tb.ReadTriggerCount(); n != 1 {
		t.Errorf("count after one-shot = %d, want 1", n)
	}

	if err := tb.PatternShot(5, 1000); err != nil {
		t.Fatalf("PatternShot: %v", err)
	}
	if got := tb.Mode(); got != TablePattern {
		t.Errorf("mode after pattern-shot = %v, want PATTERN_TRIGGER", got)
	}
	r.step(0.01)
	if n := tb.ReadTriggerCount(); n != 6 {
		t.Errorf("count after 5-shot burst = %d, want 6", n)
	}
	if cnt, freq := tb.PatternShotData(); cnt != 5 || freq != 1000 {
		t.Errorf("shot data = (%d, %v), want (5, 1000)", cnt, freq)
	}

	// disabling stops a burst immediately; re-enabling resumes it
	if err := tb.PatternShot(50, 1000); err != nil {
		t.Fatalf("PatternShot: %v", err)
	}
	r.step(0.002)
	tb.SetEnable(false)
	mid := tb.ReadTriggerCount()
	r.step(0.02)
	if n := tb.ReadTriggerCount(); n != mid {
		t.Errorf("count advanced while disabled: %d -> %d", mid, n)
	}
	tb.SetEnable(true)
	r.step(0.06)
	if n := tb.ReadTriggerCount(); n != 56 {
		t.Errorf("count after resumed burst = %d, want 56", n)
	}

	wantCode(t, tb.PatternShot(0, 1000), axt.CNTInvalidValue, "zero count")
	wantCode(t, tb.PatternShot(5, 0), axt.CNTInvalidValue, "zero frequency")
}

func TestTableConfigValidation(t *testing.T) {
	r := newRig(t)
	tb := r.tbl(t, 4, 0)
	wantCode(t, tb.SetEncoderInput(0, 4), axt.CNTInvalidChannelNo, "encoder 4")
	wantCode(t, tb.SetEncoderInput(2, 2), axt.CNTInvalidValue, "same encoder twice")
	if err := tb.SetEncoderInput(2, 3); err != nil {
		t.Errorf("encoder pair 2,3: %v", err)
	}
	wantCode(t, tb.SetOutport(0x10), axt.CNTInvalidValue, "5-bit outport")
	wantCode(t, tb.SetErrorRange(-1), axt.CNTInvalidValue, "negative range")
	wantCode(t, tb.SetMode(TableMode(2)), axt.CNTInvalidMode, "mode 2")
	wantCode(t, tb.SetTriggerLevel(axt.LevelUsed), axt.CNTInvalidLevel, "level used")
	wantCode(t, tb.SetPatternData(make([]XYPoint, 501)), axt.CNTInvalidValue, "oversized table")
	wantCode(t, tb.SetPatternData([]XYPoint{{X: 1, Y: 1, Count: 0}}),
		axt.CNTInvalidValue, "zero point count")
	wantCode(t, tb.SetPatternData([]XYPoint{{X: 1, Y: 1, Count: 3}}),
		axt.CNTInvalidValue, "burst without frequency")

	if _, err := r.cm.Table(5, 0); !axt.IsCode(err, axt.CNTInvalidUse) {
		t.Errorf("CN2CH table err = %v, want CNT_INVALID_USE", err)
	}
	if _, err := r.cm.Table(4, 4); !axt.IsCode(err, axt.CNTInvalidTablePos) {
		t.Errorf("table 4 err = %v, want CNT_INVALID_TABLE_POS", err)
	}
	if _, err := r.cm.Table(2, 0); !axt.IsCode(err, axt.CNTInvalidModuleNo) {
		t.Errorf("DIO module err = %v, want CNT_INVALID_MODULE_NO", err)
	}
	if _, err := r.cm.Table(99, 0); !axt.IsCode(err, axt.CNTInvalidModuleNo) {
		t.Errorf("module 99 err = %v, want CNT_INVALID_MODULE_NO", err)
	}
}

func TestPWMVelocityPattern(t *testing.T) {
	r := newRig(t)
	c := r.chn(t, 6) // LCM4 channel 0

	// the PWM stage only exists on the LCM4 family
	wantCode(t, r.chn(t, 0).PWMEnable(true), axt.CNTInvalidUse, "HPC4 pwm")

	if err := c.SetPWMVelInfo(0, 1000, 10); err != nil {
		t.Fatalf("SetPWMVelInfo: %v", err)
	}
	wantCode(t, c.SetPWMVelInfo(0, 1000, 0.1), axt.CNTInvalidVelocity, "10000 buckets")
	if err := c.SetPWMPulseControl(PWMDutyRatio); err != nil {
		t.Fatalf("SetPWMPulseControl: %v", err)
	}
	if err := c.SetPWMManualData(5000, 50); err != nil {
		t.Fatalf("SetPWMManualData: %v", err)
	}
	wantCode(t, c.SetPWMManualData(5000, 120), axt.CNTInvalidValue, "duty 120%")

	if err := c.SetPWMPatternData(
		[]float64{100, 305}, []float64{1000, 2000}, []float64{25, 75}); err != nil {
		t.Fatalf("SetPWMPatternData: %v", err)
	}
	wantCode(t, c.SetPWMPatternData([]float64{100}, []float64{1000, 2000}, []float64{25}),
		axt.CNTDimensionError, "ragged pattern")
	wantCode(t, c.SetPWMPatternData([]float64{2000}, []float64{1000}, []float64{25}),
		axt.CNTInvalidVelocity, "velocity outside span")
	if f, d, err := c.PWMData(101); err != nil || f != 1000 || d != 25 {
		t.Errorf("PWMData(101) = (%v, %v, %v), want (1000, 25, nil)", f, d, err)
	}

	// manual emission
	if err := c.PWMEnable(true); err != nil {
		t.Fatalf("PWMEnable: %v", err)
	}
	wantCode(t, c.SetPWMManualData(100, 10), axt.CNTDuringPWMEnable, "write while enabled")
	wantCode(t, c.SetPWMVelInfo(0, 100, 1), axt.CNTDuringPWMEnable, "layout while enabled")
	r.step(0.002)
	if f, d := c.PWMOutput(); f != 5000 || d != 50 {
		t.Errorf("manual output = (%v, %v), want (5000, 50)", f, d)
	}
	if c.Status()&StatusPWMEnabled == 0 {
		t.Error("pwm status bit not set")
	}

	// auto emission follows the live 2-D speed into its bucket
	if err := c.PWMEnable(false); err != nil {
		t.Fatalf("PWMEnable: %v", err)
	}
	if err := c.SetPWMOutMode(PWMAuto); err != nil {
		t.Fatalf("SetPWMOutMode: %v", err)
	}
	if err := c.PWMEnable(true); err != nil {
		t.Fatalf("PWMEnable: %v", err)
	}
	if err := c.BindAxis(3); err != nil {
		t.Fatalf("BindAxis: %v", err)
	}
	steady, err := profile.PVTFrom(305, []float64{1}, []float64{305}, []float64{305})
	if err != nil {
		t.Fatalf("PVTFrom: %v", err)
	}
	r.rack.StartProfile(3, steady)
	r.step(0.5)
	if f, d := c.PWMOutput(); f != 2000 || d != 75 {
		t.Errorf("auto output at 305 u/s = (%v, %v), want (2000, 75)", f, d)
	}
	r.step(0.7)
	if f, d := c.PWMOutput(); f != 0 || d != 0 {
		t.Errorf("auto output at rest = (%v, %v), want unmapped (0, 0)", f, d)
	}
}

func TestChannelPorts(t *testing.T) {
	r := newRig(t)
	c := r.chn(t, 0)
	wantCode(t, c.WriteOutput(0x1F), axt.CNTInvalidValue, "5-bit port write")
	if err := c.WriteOutput(0xA); err != nil {
		t.Fatalf("WriteOutput: %v", err)
	}
	if got := c.ReadOutput(); got != 0xA {
		t.Errorf("output image = %#x, want 0xA", got)
	}
	if err := c.WriteOutputBit(1, false); err != nil {
		t.Fatalf("WriteOutputBit: %v", err)
	}
	if err := c.WriteOutputBit(0, true); err != nil {
		t.Fatalf("WriteOutputBit: %v", err)
	}
	if got := c.ReadOutput(); got != 0x9 {
		t.Errorf("output image = %#x, want 0x9", got)
	}
	wantCode(t, c.WriteOutputBit(4, true), axt.CNTInvalidOffsetNo, "bit 4")
	on, err := c.ReadOutputBit(3)
	if err != nil || !on {
		t.Errorf("ReadOutputBit(3) = %v, %v, want true", on, err)
	}

	c.SetInput(0x5)
	if got := c.ReadInput(); got != 0x5 {
		t.Errorf("input image = %#x, want 0x5", got)
	}
	on, err = c.ReadInputBit(2)
	if err != nil || !on {
		t.Errorf("ReadInputBit(2) = %v, %v, want true", on, err)
	}
	if _, err := c.ReadInputBit(9); !axt.IsCode(err, axt.CNTInvalidOffsetNo) {
		t.Errorf("ReadInputBit(9) err = %v, want CNT_INVALID_OFFSET_NO", err)
	}
}

func TestZSourceCountsIndexPulses(t *testing.T) {
	r := newRig(t)
	tr := vrack.DefaultTrack()
	tr.ZSpacing = 1000
	tr.ZWidth = 50
	r.rack.SetTrack(0, tr)

	c := r.chn(t, 0)
	if err := c.SetEncSource(SourceZ); err != nil {
		t.Fatalf("SetEncSource: %v", err)
	}
	if err := c.BindAxis(0); err != nil {
		t.Fatalf("BindAxis: %v", err)
	}
	r.moveAxis(t, 0, 5000, 2)
	if got := c.Read(); got != 5 {
		t.Errorf("index pulses over 5000 = %v, want 5", got)
	}
}

func TestInfoQueries(t *testing.T) {
	r := newRig(t)
	if got := r.cm.ChannelCount(); got != 10 {
		t.Errorf("ChannelCount = %d, want 10", got)
	}
	if got := r.cm.ModuleCount(); got != 3 {
		t.Errorf("ModuleCount = %d, want 3", got)
	}
	first, err := r.cm.FirstChannelOfModule(5)
	if err != nil || first != 4 {
		t.Errorf("FirstChannelOfModule(5) = %d, %v, want 4", first, err)
	}
	if _, err := r.cm.FirstChannelOfModule(0); !axt.IsCode(err, axt.CNTInvalidModuleNo) {
		t.Errorf("motion module err = %v, want CNT_INVALID_MODULE_NO", err)
	}
	mod, err := r.cm.ModuleOfChannel(9)
	if err != nil || mod != 6 {
		t.Errorf("ModuleOfChannel(9) = %d, %v, want 6", mod, err)
	}
	if _, err := r.cm.ModuleOfChannel(10); !axt.IsCode(err, axt.CNTInvalidChannelNo) {
		t.Errorf("channel 10 err = %v, want CNT_INVALID_CHANNEL_NO", err)
	}
}
