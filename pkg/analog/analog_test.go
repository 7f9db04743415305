// Copyright (C) 2026 Go binding
//
// This file may be distributed under the terms of the GNU GPLv3 license.

package analog

import (
	"testing"

	"axl-go/pkg/axt"
	"axl-go/pkg/board"
	"axl-go/pkg/event"
	"axl-go/pkg/vrack"
)

// aioMod is the analog module number in the default layout.
const aioMod = 3

type rig struct {
	rack *vrack.Rack
	ev   *event.Manager
	am   *Manager
}

func newRig(t *testing.T) *rig {
	t.Helper()
	topo, err := board.New(board.DefaultLayout())
	if err != nil {
		t.Fatalf("board.New: %v", err)
	}
	rack := vrack.New(vrack.Config{Axes: topo.AxisCount()})
	ev := event.NewManager(nil)
	am := New(nil, rack, topo, ev)
	t.Cleanup(func() {
		am.Close()
		ev.Close()
	})
	return &rig{rack: rack, ev: ev, am: am}
}

func (r *rig) in(t *testing.T, no int) *Input {
	t.Helper()
	in, err := r.am.Input(no)
	if err != nil {
		t.Fatalf("Input(%d): %v", no, err)
	}
	return in
}

func (r *rig) out(t *testing.T, no int) *Output {
	t.Helper()
	out, err := r.am.Output(no)
	if err != nil {
		t.Fatalf("Output(%d): %v", no, err)
	}
	return out
}

func (r *rig) step(seconds float64) {
	const dt = 0.001
	for t := 0.0; t < seconds-dt/2; t += dt {
		r.rack.Step(dt)
	}
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

func TestRangeAndConversion(t *testing.T) {
	r := newRig(t)
	in := r.in(t, 0)

	if d := in.VoltToDigit(-10); d != 0 {
		t.Errorf("VoltToDigit(-10) = %d, want 0", d)
	}
	if d := in.VoltToDigit(10); d != 65535 {
		t.Errorf("VoltToDigit(10) = %d, want 65535", d)
	}
	if d := in.VoltToDigit(12); d != 65535 {
		t.Errorf("VoltToDigit(12) = %d, want saturated 65535", d)
	}
	if d := in.VoltToDigit(0); d != 32768 {
		t.Errorf("VoltToDigit(0) = %d, want 32768", d)
	}
	if v := in.DigitToVolt(65535); v != 10 {
		t.Errorf("DigitToVolt(65535) = %v, want 10", v)
	}
	if v := in.DigitToVolt(0); v != -10 {
		t.Errorf("DigitToVolt(0) = %v, want -10", v)
	}

	if err := in.SetRange(0, 10); err != nil {
		t.Fatalf("SetRange: %v", err)
	}
	if v := in.DigitToVolt(13107); v != 2 {
		t.Errorf("DigitToVolt(13107) over 0..10 = %v, want 2", v)
	}
	wantCode(t, in.SetRange(-7, 10), axt.AIOInvalidValue, "min -7")
	wantCode(t, in.SetRange(0, 3), axt.AIOInvalidValue, "max 3")
	wantCode(t, in.SetRange(-5, -10), axt.AIOInvalidValue, "inverted range")

	if err := r.am.SetInputRangeModule(aioMod, -5, 5); err != nil {
		t.Fatalf("SetInputRangeModule: %v", err)
	}
	if lo, hi := r.in(t, 7).Range(); lo != -5 || hi != 5 {
		t.Errorf("channel 7 range = %v..%v, want -5..5", lo, hi)
	}
	wantCode(t, r.am.SetInputRangeModule(0, -10, 10), axt.AIOInvalidModuleNo, "motion module")
}

func TestImmediateReads(t *testing.T) {
	r := newRig(t)
	in := r.in(t, 2)
	in.Inject(3.25)
	v, err := in.ReadVolt()
	if err != nil || v != 3.25 {
		t.Errorf("ReadVolt = %v, %v, want 3.25", v, err)
	}

	// the module offset rides on every conversion
	if err := r.am.SetOffset(aioMod, 250); !axt.IsCode(err, axt.AIOInvalidValue) {
		t.Errorf("offset 250 mV err = %v, want AIO_INVALID_VALUE", err)
	}
	if err := r.am.SetOffset(aioMod, 50); err != nil {
		t.Fatalf("SetOffset: %v", err)
	}
	if v, _ := in.ReadVolt(); v != 3.3 {
		t.Errorf("offset read = %v, want 3.3", v)
	}
	in.Inject(15)
	if v, _ := in.ReadVolt(); v != 10 {
		t.Errorf("saturated read = %v, want 10", v)
	}
	if err := r.am.SetOffset(aioMod, 0); err != nil {
		t.Fatalf("SetOffset: %v", err)
	}
	in.Inject(-10)
	if d, _ := in.ReadDigit(); d != 0 {
		t.Errorf("rail digit = %d, want 0", d)
	}

	// software reads only convert in normal trigger mode
	if err := r.am.SetTriggerMode(aioMod, TriggerTimer); err != nil {
		t.Fatalf("SetTriggerMode: %v", err)
	}
	if _, err := in.ReadVolt(); !axt.IsCode(err, axt.AIOInvalidTrigger) {
		t.Errorf("timer-mode read err = %v, want AIO_INVALID_TRIGGER_MODE", err)
	}
	if _, err := in.ReadDigit(); !axt.IsCode(err, axt.AIOInvalidTrigger) {
		t.Errorf("timer-mode digit err = %v, want AIO_INVALID_TRIGGER_MODE", err)
	}
}

func TestModuleInfo(t *testing.T) {
	r := newRig(t)
	if got := r.am.ModuleCount(); got != 1 {
		t.Errorf("ModuleCount = %d, want 1", got)
	}
	if got := r.am.InputCount(); got != 16 {
		t.Errorf("InputCount = %d, want 16", got)
	}
	if got := r.am.OutputCount(); got != 4 {
		t.Errorf("OutputCount = %d, want 4", got)
	}
	first, err := r.am.FirstInputOfModule(aioMod)
	if err != nil || first != 0 {
		t.Errorf("FirstInputOfModule = %d, %v, want 0", first, err)
	}
	first, err = r.am.FirstOutputOfModule(aioMod)
	if err != nil || first != 0 {
		t.Errorf("FirstOutputOfModule = %d, %v, want 0", first, err)
	}
	if _, err := r.am.FirstInputOfModule(0); !axt.IsCode(err, axt.AIOInvalidModuleNo) {
		t.Errorf("motion module err = %v, want AIO_INVALID_MODULE_NO", err)
	}
	mod, err := r.am.ModuleOfInput(15)
	if err != nil || mod != aioMod {
		t.Errorf("ModuleOfInput(15) = %d, %v, want %d", mod, err, aioMod)
	}
	mod, err = r.am.ModuleOfOutput(3)
	if err != nil || mod != aioMod {
		t.Errorf("ModuleOfOutput(3) = %d, %v, want %d", mod, err, aioMod)
	}
	if _, err := r.am.Input(16); !axt.IsCode(err, axt.AIOInvalidChannelNo) {
		t.Errorf("Input(16) err = %v, want AIO_INVALID_CHANNEL_NO", err)
	}
	if _, err := r.am.Output(4); !axt.IsCode(err, axt.AIOInvalidChannelNo) {
		t.Errorf("Output(4) err = %v, want AIO_INVALID_CHANNEL_NO", err)
	}
	mode, err := r.am.TriggerMode(aioMod)
	if err != nil || mode != TriggerNormal {
		t.Errorf("default TriggerMode = %v, %v, want NORMAL_MODE", mode, err)
	}
}

func TestTimerSampling(t *testing.T) {
	r := newRig(t)
	in := r.in(t, 0)
	in.Inject(1.25)

	// arming requires the timer clock
	wantCode(t, in.StartSampling(100), axt.AIOInvalidTrigger, "normal-mode start")
	if err := r.am.SetTriggerMode(aioMod, TriggerTimer); err != nil {
		t.Fatalf("SetTriggerMode: %v", err)
	}
	wantCode(t, r.am.SetSampleFreq(aioMod, 5), axt.AIOInvalidValue, "5 Hz")
	wantCode(t, r.am.SetSampleFreq(aioMod, 200e3), axt.AIOInvalidValue, "200 kHz")
	if err := r.am.SetSamplePeriod(aioMod, 1000); err != nil {
		t.Fatalf("SetSamplePeriod: %v", err)
	}
	if us, _ := r.am.SamplePeriod(aioMod); us != 1000 {
		t.Errorf("SamplePeriod = %v us, want 1000", us)
	}

	wantCode(t, in.StartSampling(0), axt.AIOInvalidValue, "zero depth")
	if err := in.StartSampling(100); err != nil {
		t.Fatalf("StartSampling: %v", err)
	}
	r.step(0.05)
	if n := in.ReadDataLength(); n != 50 {
		t.Errorf("samples after 50 ms at 1 kHz = %d, want 50", n)
	}
	got := in.ReadSamples(20)
	if len(got) != 20 || got[0] != 1.25 || got[19] != 1.25 {
		t.Errorf("ReadSamples(20) = %d values, first %v", len(got), got[0])
	}
	if n := in.ReadDataLength(); n != 30 {
		t.Errorf("remaining samples = %d, want 30", n)
	}
	if got := in.ReadSamples(100); len(got) != 30 {
		t.Errorf("drain = %d values, want 30", len(got))
	}
	if got := in.ReadSamples(10); got != nil {
		t.Errorf("empty drain = %v, want nil", got)
	}
	if !in.Sampling() {
		t.Error("channel stopped streaming on its own")
	}
	in.StopSampling()
	r.step(0.01)
	if n := in.ReadDataLength(); n != 0 {
		t.Errorf("samples after stop = %d, want 0", n)
	}

	// the multi form arms all channels in one call
	if err := r.am.StartSampling([]int{1, 2}, 10); err != nil {
		t.Fatalf("StartSampling multi: %v", err)
	}
	r.step(0.005)
	if a, b := r.in(t, 1).ReadDataLength(), r.in(t, 2).ReadDataLength(); a != 5 || b != 5 {
		t.Errorf("multi sample counts = %d, %d, want 5, 5", a, b)
	}
	if err := r.am.StopSampling(aioMod); err != nil {
		t.Fatalf("StopSampling: %v", err)
	}
	if r.in(t, 1).Sampling() || r.in(t, 2).Sampling() {
		t.Error("module stop left channels streaming")
	}
}

func TestSamplingFilter(t *testing.T) {
	r := newRig(t)
	in := r.in(t, 0)
	if err := r.am.SetTriggerMode(aioMod, TriggerTimer); err != nil {
		t.Fatalf("SetTriggerMode: %v", err)
	}
	if err := r.am.SetSampleFreq(aioMod, 1000); err != nil {
		t.Fatalf("SetSampleFreq: %v", err)
	}
	wantCode(t, r.am.StartSamplingFilter([]int{0}, 0, 10), axt.AIOInvalidValue, "filter 0")
	if err := r.am.StartSamplingFilter([]int{0}, 4, 10); err != nil {
		t.Fatalf("StartSamplingFilter: %v", err)
	}
	for i := 1; i <= 5; i++ {
		in.Inject(float64(i))
		r.step(0.001)
	}
	want := []float64{1, 1.5, 2, 2.5, 3.5}
	got := in.ReadSamples(10)
	if len(got) != len(want) {
		t.Fatalf("filtered samples = %d values, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("filtered sample %d = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestBufferOverflowAndEvents(t *testing.T) {
	r := newRig(t)
	in := r.in(t, 0)
	if err := r.am.SetTriggerMode(aioMod, TriggerTimer); err != nil {
		t.Fatalf("SetTriggerMode: %v", err)
	}
	if err := r.am.SetSampleFreq(aioMod, 1000); err != nil {
		t.Fatalf("SetSampleFreq: %v", err)
	}
	if err := in.SetLimit(2, 5); err != nil {
		t.Fatalf("SetLimit: %v", err)
	}
	wantCode(t, in.SetLimit(4, 2), axt.AIOInvalidValue, "inverted limits")
	in.SetEventEnable(true)
	if err := in.SetEventMask(EventDataMany); err != nil {
		t.Fatalf("SetEventMask: %v", err)
	}
	wantCode(t, in.SetEventMask(EventKind(9)), axt.AIOInvalidValue, "mask 9")

	if err := in.StartSampling(8); err != nil {
		t.Fatalf("StartSampling: %v", err)
	}
	bank := r.ev.Bank(event.AnalogBank(0))
	for i := 1; i <= 6; i++ {
		in.Inject(float64(i))
		r.step(0.001)
	}
	if bits := bank.ReadClear(); bits&event.DataMany == 0 {
		t.Errorf("upper-watermark flag not raised, bank = %#x", bits)
	}
	if !in.IsBufferUpper() {
		t.Error("IsBufferUpper = false above the watermark")
	}

	if err := in.SetEventMask(EventDataFull); err != nil {
		t.Fatalf("SetEventMask: %v", err)
	}
	for i := 7; i <= 8; i++ {
		in.Inject(float64(i))
		r.step(0.001)
	}
	if bits := bank.ReadClear(); bits&event.DataFull == 0 {
		t.Errorf("full flag not raised, bank = %#x", bits)
	}
	if in.Overrun() {
		t.Error("overrun latched before any loss")
	}

	// default policy drops the oldest sample
	in.Inject(9)
	r.step(0.001)
	if !in.Overrun() {
		t.Error("overrun not latched after drop")
	}
	got := in.ReadSamples(3)
	if len(got) != 3 || got[0] != 2 || got[2] != 4 {
		t.Errorf("post-overflow head = %v, want [2 3 4]", got)
	}

	if err := in.SetEventMask(EventDataSmall); err != nil {
		t.Fatalf("SetEventMask: %v", err)
	}
	if got := in.ReadSamples(4); len(got) != 4 {
		t.Fatalf("drain = %d values, want 4", len(got))
	}
	if bits := bank.ReadClear(); bits&event.DataSmall == 0 {
		t.Errorf("lower-watermark flag not raised, bank = %#x", bits)
	}
	if !in.IsBufferLower() {
		t.Error("IsBufferLower = false below the watermark")
	}
	if err := in.SetEventMask(EventDataEmpty); err != nil {
		t.Fatalf("SetEventMask: %v", err)
	}
	in.ReadSamples(1)
	if bits := bank.ReadClear(); bits&event.DataEmpty == 0 {
		t.Errorf("empty flag not raised, bank = %#x", bits)
	}
	if !in.IsBufferEmpty() {
		t.Error("IsBufferEmpty = false on a drained buffer")
	}

	// the keep-current policy drops the incoming sample instead
	in2 := r.in(t, 1)
	if err := in2.SetBufferOverflowMode(OverflowKeepCurrent); err != nil {
		t.Fatalf("SetBufferOverflowMode: %v", err)
	}
	if err := in2.StartSampling(4); err != nil {
		t.Fatalf("StartSampling: %v", err)
	}
	for i := 1; i <= 6; i++ {
		in2.Inject(float64(i))
		r.step(0.001)
	}
	got = in2.ReadSamples(10)
	if len(got) != 4 || got[0] != 1 || got[3] != 4 {
		t.Errorf("keep-current buffer = %v, want [1 2 3 4]", got)
	}
	if !in2.Overrun() {
		t.Error("overrun not latched on keep-current drop")
	}
}

func TestExternalStrobe(t *testing.T) {
	r := newRig(t)
	wantCode(t, r.am.ExternalStart(aioMod, []int{0}), axt.AIOInvalidTrigger, "normal-mode arm")
	if err := r.am.SetTriggerMode(aioMod, TriggerExternal); err != nil {
		t.Fatalf("SetTriggerMode: %v", err)
	}
	wantCode(t, r.am.ExternalStart(aioMod, []int{16}), axt.AIOInvalidChannelNo, "index 16")
	if err := r.am.ExternalStart(aioMod, []int{0, 2}); err != nil {
		t.Fatalf("ExternalStart: %v", err)
	}

	r.in(t, 0).Inject(1)
	r.in(t, 2).Inject(2)
	for i := 0; i < 3; i++ {
		if err := r.am.ExternalStrobe(aioMod); err != nil {
			t.Fatalf("ExternalStrobe: %v", err)
		}
	}
	status, err := r.am.ExternalFIFOStatus(aioMod)
	if err != nil || status != FIFODataExist {
		t.Errorf("fifo status = %v, %v, want FIFO_DATA_EXIST", status, err)
	}

	data, err := r.am.ExternalRead(aioMod, []int{0, 2}, 10)
	if err != nil {
		t.Fatalf("ExternalRead: %v", err)
	}
	if len(data) != 2 || len(data[0]) != 3 || len(data[1]) != 3 {
		t.Fatalf("read shape = %d channels, %d+%d samples", len(data), len(data[0]), len(data[1]))
	}
	if data[0][0] != 1 || data[1][2] != 2 {
		t.Errorf("read values = %v, %v, want 1s and 2s", data[0], data[1])
	}
	status, err = r.am.ExternalFIFOStatus(aioMod)
	if err != nil || status != FIFODataEmpty {
		t.Errorf("drained status = %v, %v, want FIFO_DATA_EMPTY", status, err)
	}
	if _, err := r.am.ExternalRead(aioMod, []int{0, 2}, 10); !axt.IsCode(err, axt.AIOExternalDataEmpty) {
		t.Errorf("empty read err = %v, want AIO_EXTERNAL_DATA_EMPTY", err)
	}

	if err := r.am.ExternalStop(aioMod); err != nil {
		t.Fatalf("ExternalStop: %v", err)
	}
	if err := r.am.SetTriggerMode(aioMod, TriggerNormal); err != nil {
		t.Fatalf("SetTriggerMode: %v", err)
	}
	wantCode(t, r.am.ExternalStrobe(aioMod), axt.AIOInvalidTrigger, "normal-mode strobe")
}

func TestOutputWriteAndLoopback(t *testing.T) {
	r := newRig(t)
	out := r.out(t, 0)
	if err := out.Write(4.5); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if v := out.Read(); v != 4.5 {
		t.Errorf("Read = %v, want 4.5", v)
	}
	wantCode(t, out.Write(11), axt.AIOInvalidValue, "11 V")
	if err := out.WriteDigit(65535); err != nil {
		t.Fatalf("WriteDigit: %v", err)
	}
	if v := out.Read(); v != 10 {
		t.Errorf("full-scale digit = %v V, want 10", v)
	}
	wantCode(t, out.WriteDigit(70000), axt.AIOInvalidValue, "digit 70000")

	if err := r.am.WriteMultiVolt([]int{0, 1}, []float64{1.5, -2.5}); err != nil {
		t.Fatalf("WriteMultiVolt: %v", err)
	}
	if a, b := out.Read(), r.out(t, 1).Read(); a != 1.5 || b != -2.5 {
		t.Errorf("multi write = %v, %v, want 1.5, -2.5", a, b)
	}
	wantCode(t, r.am.WriteMultiVolt([]int{0}, []float64{1, 2}),
		axt.AIOInvalidValue, "ragged multi write")

	// loopback: an input bound to an output reads its live voltage
	in := r.in(t, 0)
	wantCode(t, in.BindOutput(9), axt.AIOInvalidChannelNo, "output 9")
	if err := in.BindOutput(0); err != nil {
		t.Fatalf("BindOutput: %v", err)
	}
	if v, err := in.ReadVolt(); err != nil || v != 1.5 {
		t.Errorf("loopback read = %v, %v, want 1.5", v, err)
	}
	in.Unbind()
	in.Inject(-3)
	volts, err := r.am.ReadMultiVolt([]int{0, 1})
	if err != nil || volts[0] != -3 || volts[1] != 0 {
		t.Errorf("ReadMultiVolt = %v, %v, want [-3 0]", volts, err)
	}
}

func TestPatternGenerator(t *testing.T) {
	r := newRig(t)
	out := r.out(t, 0)
	wantCode(t, out.SetPatternInterval(300), axt.AIOInvalidValue, "300 us")
	if err := out.SetPatternInterval(1000); err != nil {
		t.Fatalf("SetPatternInterval: %v", err)
	}
	wantCode(t, out.SetPattern(-1, []float64{1}), axt.AIOInvalidValue, "negative loops")
	wantCode(t, out.SetPattern(0, nil), axt.AIOInvalidValue, "empty pattern")
	wantCode(t, out.SetPattern(0, make([]float64, 8193)), axt.AIOInvalidValue, "oversized pattern")
	wantCode(t, out.SetPattern(0, []float64{12}), axt.AIOInvalidValue, "entry out of range")
	wantCode(t, out.SetPatternDigit(0, []uint32{70000}), axt.AIOInvalidValue, "digit entry")

	if err := out.SetPattern(2, []float64{1, 2, 3}); err != nil {
		t.Fatalf("SetPattern: %v", err)
	}
	wantCode(t, r.am.PatternStart([]int{0, 1}), axt.AIOInvalidUse, "start without pattern")
	if err := r.am.PatternStart([]int{0}); err != nil {
		t.Fatalf("PatternStart: %v", err)
	}
	if v := out.Read(); v != 1 {
		t.Errorf("start value = %v, want 1", v)
	}

	// configuration is frozen while the generator runs
	wantCode(t, out.SetPattern(1, []float64{5}), axt.AIOPatternEnabled, "upload while running")
	wantCode(t, out.SetPatternInterval(2000), axt.AIOPatternEnabled, "interval while running")
	wantCode(t, out.Write(0), axt.AIOPatternEnabled, "write while running")
	wantCode(t, out.ResetPattern(), axt.AIOPatternEnabled, "reset while running")
	wantCode(t, r.am.PatternStart([]int{0}), axt.AIOPatternEnabled, "double start")

	r.step(0.001)
	if v := out.Read(); v != 2 {
		t.Errorf("value after one interval = %v, want 2", v)
	}
	r.step(0.002)
	if v := out.Read(); v != 1 {
		t.Errorf("value after wrap = %v, want 1", v)
	}
	r.step(0.003)
	idx, loops, busy := out.PatternStatus()
	if busy || loops != 2 || idx != 2 {
		t.Errorf("final status = (%d, %d, %v), want (2, 2, false)", idx, loops, busy)
	}
	if v := out.Read(); v != 3 {
		t.Errorf("held value = %v, want last entry 3", v)
	}

	// a zero loop count repeats until stopped, and stopping grounds
	// the output
	if err := out.SetPattern(0, []float64{5, 6}); err != nil {
		t.Fatalf("SetPattern: %v", err)
	}
	if err := r.am.PatternStart([]int{0}); err != nil {
		t.Fatalf("PatternStart: %v", err)
	}
	r.step(0.01)
	if _, loops, busy := out.PatternStatus(); !busy || loops < 4 {
		t.Errorf("infinite run status = (%d, %v), want busy with loops", loops, busy)
	}
	if err := r.am.PatternStop([]int{0}); err != nil {
		t.Fatalf("PatternStop: %v", err)
	}
	if v := out.Read(); v != 0 {
		t.Errorf("stopped output = %v, want 0", v)
	}
	if err := out.ResetPattern(); err != nil {
		t.Fatalf("ResetPattern: %v", err)
	}
	wantCode(t, r.am.PatternStart([]int{0}), axt.AIOInvalidUse, "start after reset")
}
