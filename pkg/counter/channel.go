// Per-channel counting, capture, and trigger comparison
//
// Copyright (C) 2026 Go binding
//
// This file may be distributed under the terms of the GNU GPLv3 license.

package counter

import (
	"math"
	"sort"

	"go.uber.org/zap"

	"axl-go/pkg/axt"
	"axl-go/pkg/board"
	"axl-go/pkg/event"
)

// Channel is one counter input with its trigger comparator. All state
// is guarded by the owning manager's lock; methods are safe for
// concurrent use.
type Channel struct {
	m     *Manager
	no    int // global channel number
	mod   *board.Module
	local int // channel index on the module

	method  int // encoder decode method, family-checked
	source  EncSource
	reverse bool
	upp     float64
	capPol  axt.DIOEdge

	srcAxis int // followed rack axis, -1 when unwired
	lastSrc float64
	lastZ   bool

	pulses float64
	pos    float64 // units, after this tick
	prev   float64 // units, before this tick
	vel    float64 // units/s

	capturePos float64
	captured   bool

	fn      TriggerFunc
	enabled bool

	notchOn          bool
	notchLo, notchHi float64

	blockLo, blockHi float64
	period           float64
	dirFilter        Direction

	absTable  []float64 // upload order, for readback
	absSorted []float64
	absDir    Direction
	absRAM    []uint32 // dword-form image, when uploaded that way

	freq    float64
	freqAcc float64

	level      axt.LevelMode
	widthUs    float64
	fired      int64
	pulseUntil float64

	timeoutAt float64 // rack time, 0 when unarmed
	timedOut  bool

	outBits uint32
	inBits  uint32

	pwm *pwmState
}

// No returns the global channel number.
func (c *Channel) No() int { return c.no }

// Module returns the owning module's global number.
func (c *Channel) Module() int { return c.mod.No }

func (c *Channel) bank() *event.Bank {
	return c.m.ev.Bank(event.ChannelBank(c.no))
}

// SetEncInputMethod configures the encoder decode stage. The accepted
// code set depends on the module family.
func (c *Channel) SetEncInputMethod(method int) error {
	const op = "axc.SignalSetEncInputMethod"
	lo := 0
	if c.mod.Info.TypeID == board.SIOLCM4 {
		lo = 1 // LCM4 has no up/down mode
	}
	if method < lo || method > 3 {
		return axt.Errorf(axt.CNTInvalidMode, op,
			"method %d on %s", method, c.mod.Info.Name)
	}
	c.m.mu.Lock()
	defer c.m.mu.Unlock()
	c.method = method
	return nil
}

// EncInputMethod returns the configured decode method.
func (c *Channel) EncInputMethod() int {
	c.m.mu.Lock()
	defer c.m.mu.Unlock()
	return c.method
}

// SetEncSource selects the counted line: quadrature or index pulses.
func (c *Channel) SetEncSource(src EncSource) error {
	if src != SourceAB && src != SourceZ {
		return axt.Errorf(axt.CNTInvalidMode, "axc.SignalSetEncSource", "source %d", src)
	}
	c.m.mu.Lock()
	defer c.m.mu.Unlock()
	c.source = src
	if c.srcAxis >= 0 {
		c.lastSrc = c.m.rack.State(c.srcAxis).ActPos
		c.lastZ = c.m.rack.ZPhase(c.srcAxis)
	}
	return nil
}

// EncSource returns the counted line selection.
func (c *Channel) EncSource() EncSource {
	c.m.mu.Lock()
	defer c.m.mu.Unlock()
	return c.source
}

// SetEncReverse inverts the counting direction.
func (c *Channel) SetEncReverse(on bool) {
	c.m.mu.Lock()
	defer c.m.mu.Unlock()
	c.reverse = on
}

// EncReverse reports whether counting is inverted.
func (c *Channel) EncReverse() bool {
	c.m.mu.Lock()
	defer c.m.mu.Unlock()
	return c.reverse
}

// SetMoveUnitPerPulse scales raw counts into position units.
func (c *Channel) SetMoveUnitPerPulse(u float64) error {
	if u <= 0 || math.IsNaN(u) || math.IsInf(u, 0) {
		return axt.Errorf(axt.CNTInvalidValue, "axc.MotSetMoveUnitPerPulse", "unit %g", u)
	}
	c.m.mu.Lock()
	defer c.m.mu.Unlock()
	c.upp = u
	c.pos = c.pulses * u
	c.prev = c.pos
	return nil
}

// MoveUnitPerPulse returns the unit scale.
func (c *Channel) MoveUnitPerPulse() float64 {
	c.m.mu.Lock()
	defer c.m.mu.Unlock()
	return c.upp
}

// SetCaptureFunction selects the capture input polarity.
func (c *Channel) SetCaptureFunction(pol axt.DIOEdge) error {
	if pol != axt.UpEdge && pol != axt.DownEdge {
		return axt.Errorf(axt.CNTInvalidLevel, "axc.SignalSetCaptureFunction", "polarity %d", pol)
	}
	c.m.mu.Lock()
	defer c.m.mu.Unlock()
	c.capPol = pol
	return nil
}

// CaptureFunction returns the capture polarity.
func (c *Channel) CaptureFunction() axt.DIOEdge {
	c.m.mu.Lock()
	defer c.m.mu.Unlock()
	return c.capPol
}

// Latch injects the external capture edge: the current position is
// latched and any armed trigger timeout is satisfied.
func (c *Channel) Latch() {
	c.m.mu.Lock()
	defer c.m.mu.Unlock()
	now := c.m.rack.Now()
	c.capturePos = c.pos
	c.captured = true
	c.timeoutAt = 0
	c.bank().Raise(event.SignalCapture, now)
}

// ReadCapture returns the latched position and whether a latch arrived
// since the last read. Reading clears the latch.
func (c *Channel) ReadCapture() (float64, bool) {
	c.m.mu.Lock()
	defer c.m.mu.Unlock()
	pos, ok := c.capturePos, c.captured
	c.captured = false
	return pos, ok
}

// Read returns the current position in units.
func (c *Channel) Read() float64 {
	c.m.mu.Lock()
	defer c.m.mu.Unlock()
	return c.pos
}

// Write presets the count to a position. A preset is a register load,
// not travel: it never fires position triggers.
func (c *Channel) Write(pos float64) error {
	if math.IsNaN(pos) || math.IsInf(pos, 0) {
		return axt.Errorf(axt.CNTInvalidValue, "axc.StatusSetActPos", "position %g", pos)
	}
	c.m.mu.Lock()
	defer c.m.mu.Unlock()
	c.pulses = pos / c.upp
	c.pos = pos
	c.prev = pos
	return nil
}

// Clear zeroes the count.
func (c *Channel) Clear() {
	c.m.mu.Lock()
	defer c.m.mu.Unlock()
	c.pulses = 0
	c.pos = 0
	c.prev = 0
}

// BindAxis wires the channel's encoder input to a rack axis, the
// virtual stand-in for the field wiring.
func (c *Channel) BindAxis(axisNo int) error {
	if axisNo < 0 || axisNo >= c.m.rack.AxisCount() {
		return axt.Errorf(axt.CNTInvalidValue, "axc.BindAxis", "axis %d", axisNo)
	}
	c.m.mu.Lock()
	defer c.m.mu.Unlock()
	c.srcAxis = axisNo
	c.lastSrc = c.m.rack.State(axisNo).ActPos
	c.lastZ = c.m.rack.ZPhase(axisNo)
	return nil
}

// Unbind detaches the channel from its axis; the count holds.
func (c *Channel) Unbind() {
	c.m.mu.Lock()
	defer c.m.mu.Unlock()
	c.srcAxis = -1
}

// Velocity returns the channel velocity in units/s, measured across
// the last service tick.
func (c *Channel) Velocity() float64 {
	c.m.mu.Lock()
	defer c.m.mu.Unlock()
	return c.vel
}

// Velocity2D returns the planar speed of the channel and its pair
// partner (channels 0/1 and 2/3 of a module form the pairs).
func (c *Channel) Velocity2D() float64 {
	c.m.mu.Lock()
	defer c.m.mu.Unlock()
	return c.vel2DLocked()
}

func (c *Channel) vel2DLocked() float64 {
	partner := c.local ^ 1
	if partner >= c.mod.Info.Channels {
		return math.Abs(c.vel)
	}
	p := c.m.channelAt(c.mod, partner)
	return math.Hypot(c.vel, p.vel)
}

// SetTriggerFunction selects the comparator mode. Notch compare is not
// available on the CN2CH family.
func (c *Channel) SetTriggerFunction(fn TriggerFunc) error {
	const op = "axc.TriggerSetFunction"
	switch fn {
	case TriggerNone, TriggerPeriodicPos, TriggerAbs, TriggerPeriodicTime:
	case TriggerNotch:
		if c.mod.Info.TypeID == board.SIOCN2CH {
			return axt.Errorf(axt.CNTInvalidMode, op, "notch compare on %s", c.mod.Info.Name)
		}
	default:
		return axt.Errorf(axt.CNTInvalidMode, op, "mode %d", fn)
	}
	c.m.mu.Lock()
	defer c.m.mu.Unlock()
	c.fn = fn
	c.freqAcc = 0
	c.prev = c.pos
	return nil
}

// TriggerFunction returns the comparator mode.
func (c *Channel) TriggerFunction() TriggerFunc {
	c.m.mu.Lock()
	defer c.m.mu.Unlock()
	return c.fn
}

// SetNotchEnable arms or disarms the notch comparator.
func (c *Channel) SetNotchEnable(on bool) {
	c.m.mu.Lock()
	defer c.m.mu.Unlock()
	c.notchOn = on
}

// NotchEnabled reports the notch comparator arm state.
func (c *Channel) NotchEnabled() bool {
	c.m.mu.Lock()
	defer c.m.mu.Unlock()
	return c.notchOn
}

// SetNotchPos places the notch pair.
func (c *Channel) SetNotchPos(lower, upper float64) error {
	const op = "axc.TriggerSetNotchPos"
	if math.IsNaN(lower) || math.IsInf(lower, 0) || math.IsNaN(upper) || math.IsInf(upper, 0) {
		return axt.Errorf(axt.CNTInvalidValue, op, "notch %g..%g", lower, upper)
	}
	if lower > upper {
		return axt.Errorf(axt.CNTInvalidRange, op, "notch %g..%g", lower, upper)
	}
	c.m.mu.Lock()
	defer c.m.mu.Unlock()
	c.notchLo, c.notchHi = lower, upper
	return nil
}

// NotchPos returns the notch pair.
func (c *Channel) NotchPos() (lower, upper float64) {
	c.m.mu.Lock()
	defer c.m.mu.Unlock()
	return c.notchLo, c.notchHi
}

// SetBlockRange bounds the periodic-position comparator.
func (c *Channel) SetBlockRange(lower, upper float64) error {
	const op = "axc.TriggerSetBlockPos"
	if math.IsNaN(lower) || math.IsInf(lower, 0) || math.IsNaN(upper) || math.IsInf(upper, 0) {
		return axt.Errorf(axt.CNTInvalidValue, op, "block %g..%g", lower, upper)
	}
	if lower > upper {
		return axt.Errorf(axt.CNTInvalidRange, op, "block %g..%g", lower, upper)
	}
	c.m.mu.Lock()
	defer c.m.mu.Unlock()
	c.blockLo, c.blockHi = lower, upper
	return nil
}

// BlockRange returns the periodic-position bounds.
func (c *Channel) BlockRange() (lower, upper float64) {
	c.m.mu.Lock()
	defer c.m.mu.Unlock()
	return c.blockLo, c.blockHi
}

// SetPosPeriod sets the periodic-position pitch in units.
func (c *Channel) SetPosPeriod(period float64) error {
	if period <= 0 || math.IsNaN(period) || math.IsInf(period, 0) {
		return axt.Errorf(axt.CNTInvalidValue, "axc.TriggerSetPosPeriod", "period %g", period)
	}
	c.m.mu.Lock()
	defer c.m.mu.Unlock()
	c.period = period
	return nil
}

// PosPeriod returns the periodic-position pitch.
func (c *Channel) PosPeriod() float64 {
	c.m.mu.Lock()
	defer c.m.mu.Unlock()
	return c.period
}

// SetDirectionCheck filters periodic-position fires by travel
// direction.
func (c *Channel) SetDirectionCheck(d Direction) error {
	if d != DirBoth && d != DirInc && d != DirDec {
		return axt.Errorf(axt.CNTInvalidMode, "axc.TriggerSetDirectionCheck", "direction %d", d)
	}
	c.m.mu.Lock()
	defer c.m.mu.Unlock()
	c.dirFilter = d
	return nil
}

// DirectionCheck returns the periodic-position direction filter.
func (c *Channel) DirectionCheck() Direction {
	c.m.mu.Lock()
	defer c.m.mu.Unlock()
	return c.dirFilter
}

// absCap returns the absolute-table entry limit. The CN2CH RAM holds
// 4M double-form entries against 128K in dword form; the other
// families share one capacity.
func (c *Channel) absCap(double bool) int {
	if double && c.mod.Info.TypeID == board.SIOCN2CH {
		return 32 * c.mod.Info.TableCapacity
	}
	return c.mod.Info.TableCapacity
}

// SetAbsPositions uploads the absolute trigger table in units. An
// empty slice clears the table.
func (c *Channel) SetAbsPositions(positions []float64, dir Direction) error {
	const op = "axc.TriggerSetAbsDouble"
	if dir != DirBoth && dir != DirInc && dir != DirDec {
		return axt.Errorf(axt.CNTInvalidMode, op, "direction %d", dir)
	}
	if limit := c.absCap(true); len(positions) > limit {
		return axt.Errorf(axt.CNTInvalidValue, op,
			"%d entries exceed the %s table of %d", len(positions), c.mod.Info.Name, limit)
	}
	for _, p := range positions {
		if math.IsNaN(p) || math.IsInf(p, 0) {
			return axt.Errorf(axt.CNTInvalidValue, op, "position %g", p)
		}
	}
	c.m.mu.Lock()
	defer c.m.mu.Unlock()
	c.absTable = append([]float64(nil), positions...)
	c.absSorted = append([]float64(nil), positions...)
	sort.Float64s(c.absSorted)
	c.absDir = dir
	c.absRAM = nil
	return nil
}

// SetAbsPulses uploads the absolute trigger table as raw dword pulse
// counts, the compact RAM form.
func (c *Channel) SetAbsPulses(pulses []uint32, dir Direction) error {
	const op = "axc.TriggerSetAbs"
	if dir != DirBoth && dir != DirInc && dir != DirDec {
		return axt.Errorf(axt.CNTInvalidMode, op, "direction %d", dir)
	}
	if limit := c.absCap(false); len(pulses) > limit {
		return axt.Errorf(axt.CNTInvalidValue, op,
			"%d entries exceed the %s table of %d", len(pulses), c.mod.Info.Name, limit)
	}
	c.m.mu.Lock()
	defer c.m.mu.Unlock()
	pos := make([]float64, len(pulses))
	for i, p := range pulses {
		pos[i] = float64(p) * c.upp
	}
	c.absTable = pos
	c.absSorted = append([]float64(nil), pos...)
	sort.Float64s(c.absSorted)
	c.absDir = dir
	c.absRAM = append([]uint32(nil), pulses...)
	return nil
}

// AbsPositions returns the uploaded table in upload order.
func (c *Channel) AbsPositions() []float64 {
	c.m.mu.Lock()
	defer c.m.mu.Unlock()
	return append([]float64(nil), c.absTable...)
}

// ReadAbsRAM reads one dword of the table RAM image. Only a dword-form
// upload populates the image.
func (c *Channel) ReadAbsRAM(addr uint32) (uint32, error) {
	c.m.mu.Lock()
	defer c.m.mu.Unlock()
	if int(addr) >= len(c.absRAM) {
		return 0, axt.Errorf(axt.CNTInvalidOffsetNo, "axc.TriggerReadAbsRamData", "address %d", addr)
	}
	return c.absRAM[addr], nil
}

// WriteAbsRAM patches one dword of the table RAM image and the trigger
// position derived from it.
func (c *Channel) WriteAbsRAM(addr, data uint32) error {
	c.m.mu.Lock()
	defer c.m.mu.Unlock()
	if int(addr) >= len(c.absRAM) {
		return axt.Errorf(axt.CNTInvalidOffsetNo, "axc.TriggerWriteAbsRamData", "address %d", addr)
	}
	c.absRAM[addr] = data
	c.absTable[addr] = float64(data) * c.upp
	c.absSorted = append(c.absSorted[:0], c.absTable...)
	sort.Float64s(c.absSorted)
	return nil
}

// SetFreq sets the periodic-time rate in Hz, 1 Hz to 500 kHz.
func (c *Channel) SetFreq(hz float64) error {
	if hz < 1 || hz > 500e3 || math.IsNaN(hz) {
		return axt.Errorf(axt.CNTInvalidValue, "axc.TriggerSetFreq", "frequency %g Hz", hz)
	}
	c.m.mu.Lock()
	defer c.m.mu.Unlock()
	c.freq = hz
	c.freqAcc = 0
	return nil
}

// Freq returns the periodic-time rate.
func (c *Channel) Freq() float64 {
	c.m.mu.Lock()
	defer c.m.mu.Unlock()
	return c.freq
}

// SetTriggerLevel sets the active level of the trigger output.
func (c *Channel) SetTriggerLevel(level axt.LevelMode) error {
	if level != axt.LevelLow && level != axt.LevelHigh {
		return axt.Errorf(axt.CNTInvalidLevel, "axc.TriggerSetLevel", "level %d", level)
	}
	c.m.mu.Lock()
	defer c.m.mu.Unlock()
	c.level = level
	return nil
}

// TriggerLevel returns the trigger output active level.
func (c *Channel) TriggerLevel() axt.LevelMode {
	c.m.mu.Lock()
	defer c.m.mu.Unlock()
	return c.level
}

// SetTriggerTime sets the trigger pulse width in microseconds.
func (c *Channel) SetTriggerTime(us float64) error {
	if us <= 0 || us > 1e6 || math.IsNaN(us) {
		return axt.Errorf(axt.CNTInvalidValue, "axc.TriggerSetTime", "width %g us", us)
	}
	c.m.mu.Lock()
	defer c.m.mu.Unlock()
	c.widthUs = us
	return nil
}

// TriggerTime returns the trigger pulse width in microseconds.
func (c *Channel) TriggerTime() float64 {
	c.m.mu.Lock()
	defer c.m.mu.Unlock()
	return c.widthUs
}

// TriggerEnable arms or disarms the comparator. Arming re-anchors the
// position scan so travel before the enable never fires.
func (c *Channel) TriggerEnable(on bool) {
	c.m.mu.Lock()
	defer c.m.mu.Unlock()
	c.enabled = on
	c.prev = c.pos
	c.freqAcc = 0
}

// TriggerEnabled reports the comparator arm state.
func (c *Channel) TriggerEnabled() bool {
	c.m.mu.Lock()
	defer c.m.mu.Unlock()
	return c.enabled
}

// ReadTriggerCount returns the accumulated fire count.
func (c *Channel) ReadTriggerCount() int64 {
	c.m.mu.Lock()
	defer c.m.mu.Unlock()
	return c.fired
}

// ClearTriggerCount zeroes the accumulated fire count.
func (c *Channel) ClearTriggerCount() {
	c.m.mu.Lock()
	defer c.m.mu.Unlock()
	c.fired = 0
}

// SetTimeout arms a watchdog: if no capture latch arrives within ms
// milliseconds the channel raises a trigger-timeout event. Zero
// disarms.
func (c *Channel) SetTimeout(ms float64) error {
	if ms < 0 || math.IsNaN(ms) || math.IsInf(ms, 0) {
		return axt.Errorf(axt.CNTInvalidValue, "axc.TriggerSetTimeout", "timeout %g ms", ms)
	}
	c.m.mu.Lock()
	defer c.m.mu.Unlock()
	if ms == 0 {
		c.timeoutAt = 0
		return nil
	}
	c.timeoutAt = c.m.rack.Now() + ms/1e3
	c.timedOut = false
	return nil
}

// WriteOutput drives the channel's 4-bit output port.
func (c *Channel) WriteOutput(bits uint32) error {
	if bits > 0xF {
		return axt.Errorf(axt.CNTInvalidValue, "axc.SignalWriteOutput", "port value %#x", bits)
	}
	c.m.mu.Lock()
	defer c.m.mu.Unlock()
	c.outBits = bits
	return nil
}

// ReadOutput returns the output port image.
func (c *Channel) ReadOutput() uint32 {
	c.m.mu.Lock()
	defer c.m.mu.Unlock()
	return c.outBits
}

// WriteOutputBit drives one output port bit.
func (c *Channel) WriteOutputBit(bit int, on bool) error {
	if bit < 0 || bit > 3 {
		return axt.Errorf(axt.CNTInvalidOffsetNo, "axc.SignalWriteOutputBit", "bit %d", bit)
	}
	c.m.mu.Lock()
	defer c.m.mu.Unlock()
	if on {
		c.outBits |= 1 << uint(bit)
	} else {
		c.outBits &^= 1 << uint(bit)
	}
	return nil
}

// ReadOutputBit returns one output port bit.
func (c *Channel) ReadOutputBit(bit int) (bool, error) {
	if bit < 0 || bit > 3 {
		return false, axt.Errorf(axt.CNTInvalidOffsetNo, "axc.SignalReadOutputBit", "bit %d", bit)
	}
	c.m.mu.Lock()
	defer c.m.mu.Unlock()
	return c.outBits&(1<<uint(bit)) != 0, nil
}

// SetInput drives the channel's input port, the virtual stand-in for
// the field wiring.
func (c *Channel) SetInput(bits uint32) {
	c.m.mu.Lock()
	defer c.m.mu.Unlock()
	c.inBits = bits
}

// ReadInput returns the input port image.
func (c *Channel) ReadInput() uint32 {
	c.m.mu.Lock()
	defer c.m.mu.Unlock()
	return c.inBits
}

// ReadInputBit returns one input port bit.
func (c *Channel) ReadInputBit(bit int) (bool, error) {
	if bit < 0 || bit > 3 {
		return false, axt.Errorf(axt.CNTInvalidOffsetNo, "axc.SignalReadInputBit", "bit %d", bit)
	}
	c.m.mu.Lock()
	defer c.m.mu.Unlock()
	return c.inBits&(1<<uint(bit)) != 0, nil
}

// Status assembles the channel status word.
func (c *Channel) Status() uint32 {
	c.m.mu.Lock()
	defer c.m.mu.Unlock()
	now := c.m.rack.Now()
	var s uint32
	if c.enabled {
		s |= StatusTriggerEnabled
	}
	if now < c.pulseUntil {
		s |= StatusOutputActive
	}
	if c.captured {
		s |= StatusCaptured
	}
	if c.timedOut {
		s |= StatusTimeout
	}
	if c.pwm != nil && c.pwm.enabled {
		s |= StatusPWMEnabled
	}
	return s
}

// OneShot emits a single trigger pulse with the configured level and
// width, independent of the comparator.
func (c *Channel) OneShot() error {
	c.m.mu.Lock()
	defer c.m.mu.Unlock()
	now := c.m.rack.Now()
	c.fired++
	c.pulseUntil = now + c.widthUs/1e6
	c.bank().Raise(event.TriggerFired, now)
	c.m.log.Debug("trigger one-shot", zap.Int("channel", c.no))
	return nil
}

// updateLocked advances the count from the wired source, measures
// velocity, and runs the comparator over the travel of this tick.
func (c *Channel) updateLocked(now, dt float64) {
	if c.srcAxis >= 0 {
		switch c.source {
		case SourceAB:
			cur := c.m.rack.State(c.srcAxis).ActPos
			delta := cur - c.lastSrc
			c.lastSrc = cur
			if c.reverse {
				delta = -delta
			}
			c.pulses += delta
		case SourceZ:
			z := c.m.rack.ZPhase(c.srcAxis)
			if z && !c.lastZ {
				if c.reverse {
					c.pulses--
				} else {
					c.pulses++
				}
			}
			c.lastZ = z
		}
	}
	c.prev = c.pos
	c.pos = c.pulses * c.upp
	if dt > 0 {
		c.vel = (c.pos - c.prev) / dt
	}

	if c.enabled && c.fn != TriggerNone {
		if n := c.scanLocked(c.prev, c.pos, dt); n > 0 {
			c.fired += int64(n)
			c.pulseUntil = now + c.widthUs/1e6
			c.bank().Raise(event.TriggerFired, now)
		}
	}

	if c.timeoutAt > 0 && now >= c.timeoutAt {
		c.timeoutAt = 0
		c.timedOut = true
		c.bank().Raise(event.TriggerTimeout, now)
		c.m.log.Warn("trigger timeout", zap.Int("channel", c.no))
	}
}

// scanLocked counts comparator fires across one tick of travel.
func (c *Channel) scanLocked(prev, cur float64, dt float64) int {
	switch c.fn {
	case TriggerNotch:
		if !c.notchOn || prev == cur {
			return 0
		}
		n := 0
		if crossed(prev, cur, c.notchLo) {
			n++
		}
		if c.notchHi != c.notchLo && crossed(prev, cur, c.notchHi) {
			n++
		}
		return n

	case TriggerPeriodicPos:
		if c.period <= 0 || prev == cur {
			return 0
		}
		if cur > prev {
			if c.dirFilter == DirDec {
				return 0
			}
			return gridCount(prev, math.Min(cur, c.blockHi), c.blockLo, c.period)
		}
		if c.dirFilter == DirInc {
			return 0
		}
		return gridCount(cur, math.Min(prev, c.blockHi), c.blockLo, c.period)

	case TriggerAbs:
		if len(c.absSorted) == 0 || prev == cur {
			return 0
		}
		if cur > prev {
			if c.absDir == DirDec {
				return 0
			}
			return countLE(c.absSorted, cur) - countLE(c.absSorted, prev)
		}
		if c.absDir == DirInc {
			return 0
		}
		return countLT(c.absSorted, prev) - countLT(c.absSorted, cur)

	case TriggerPeriodicTime:
		if c.freq <= 0 {
			return 0
		}
		c.freqAcc += dt * c.freq
		n := int(c.freqAcc)
		c.freqAcc -= float64(n)
		return n
	}
	return 0
}

// crossed reports whether travel from prev to cur passed or landed on
// a compare level. Starting exactly on the level does not refire.
func crossed(prev, cur, level float64) bool {
	if prev < cur {
		return prev < level && level <= cur
	}
	return cur <= level && level < prev
}

// gridCount counts grid points anchor + k*pitch, k >= 0, inside
// (lo, hi].
func gridCount(lo, hi, anchor, pitch float64) int {
	if hi <= lo {
		return 0
	}
	k0 := math.Floor((lo-anchor)/pitch) + 1
	if k0 < 0 {
		k0 = 0
	}
	kn := math.Floor((hi - anchor) / pitch)
	if kn < k0 {
		return 0
	}
	return int(kn-k0) + 1
}

// countLE returns how many sorted entries are <= x.
func countLE(tbl []float64, x float64) int {
	return sort.Search(len(tbl), func(i int) bool { return tbl[i] > x })
}

// countLT returns how many sorted entries are < x.
func countLT(tbl []float64, x float64) int {
	return sort.Search(len(tbl), func(i int) bool { return tbl[i] >= x })
}
