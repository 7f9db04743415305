// 2-D absolute trigger tables with hardware FIFO semantics
//
// Copyright (C) 2026 Go binding
//
// This file may be distributed under the terms of the GNU GPLv3 license.

package counter

import (
	"math"
	"strconv"

	"go.uber.org/zap"

	"axl-go/pkg/axt"
	"axl-go/pkg/board"
	"axl-go/pkg/event"
)

// TableMode selects how a 2-D table decides to fire.
type TableMode int

const (
	// TableRange fires when both encoders sit within the error range
	// of the head point.
	TableRange TableMode = 0
	// TableVector additionally requires the travel direction to match
	// the direction toward the head point.
	TableVector TableMode = 1
	// TablePattern ignores position and emits shot bursts only.
	TablePattern TableMode = 3
)

func (m TableMode) String() string {
	switch m {
	case TableRange:
		return "RANGE_TRIGGER"
	case TableVector:
		return "VECTOR_TRIGGER"
	case TablePattern:
		return "PATTERN_TRIGGER"
	}
	return "TABLE_MODE_" + strconv.Itoa(int(m))
}

// XYPoint is one 2-D trigger entry: the position pair, the number of
// pulses to emit on match, and the emission frequency when more than
// one.
type XYPoint struct {
	X, Y  float64
	Count int
	Hz    float64
}

// Table is one 2-D trigger table of a counter module, bound to a pair
// of the module's encoder channels. Uploaded points stream through a
// FIFO: each fires once when the pair passes it, then retires.
type Table struct {
	m   *Manager
	mod *board.Module
	pos int

	level      axt.LevelMode
	timeUs     float64
	enc1, enc2 int // module-local channel indices
	outport    uint32
	errRange   float64
	mode       TableMode
	enabled    bool

	pts  []XYPoint
	head int

	lastX, lastY float64 // last matched point, for vector compare

	fired      int64
	pulseUntil float64

	burstLeft int
	burstFreq float64
	burstAcc  float64
	shotCount int
	shotFreq  float64
}

// Pos returns the table position on its module.
func (t *Table) Pos() int { return t.pos }

// Module returns the owning module's global number.
func (t *Table) Module() int { return t.mod.No }

func (t *Table) bank() *event.Bank {
	return t.m.ev.Bank(event.ChannelBank(t.mod.FirstChannel + t.enc1))
}

// SetTriggerLevel sets the active level of the table's trigger output.
func (t *Table) SetTriggerLevel(level axt.LevelMode) error {
	if level != axt.LevelLow && level != axt.LevelHigh {
		return axt.Errorf(axt.CNTInvalidLevel, "axc.TableSetTriggerLevel", "level %d", level)
	}
	t.m.mu.Lock()
	defer t.m.mu.Unlock()
	t.level = level
	return nil
}

// TriggerLevel returns the trigger output active level.
func (t *Table) TriggerLevel() axt.LevelMode {
	t.m.mu.Lock()
	defer t.m.mu.Unlock()
	return t.level
}

// SetTriggerTime sets the trigger pulse width in microseconds.
func (t *Table) SetTriggerTime(us float64) error {
	if us <= 0 || us > 1e6 || math.IsNaN(us) {
		return axt.Errorf(axt.CNTInvalidValue, "axc.TableSetTriggerTime", "width %g us", us)
	}
	t.m.mu.Lock()
	defer t.m.mu.Unlock()
	t.timeUs = us
	return nil
}

// TriggerTime returns the trigger pulse width in microseconds.
func (t *Table) TriggerTime() float64 {
	t.m.mu.Lock()
	defer t.m.mu.Unlock()
	return t.timeUs
}

// SetEncoderInput binds the table to two distinct encoder channels of
// its module, by module-local index.
func (t *Table) SetEncoderInput(enc1, enc2 int) error {
	const op = "axc.TableSetEncoderInput"
	n := t.mod.Info.Channels
	if enc1 < 0 || enc1 >= n || enc2 < 0 || enc2 >= n {
		return axt.Errorf(axt.CNTInvalidChannelNo, op, "encoder pair %d,%d", enc1, enc2)
	}
	if enc1 == enc2 {
		return axt.Errorf(axt.CNTInvalidValue, op, "encoder pair %d,%d", enc1, enc2)
	}
	t.m.mu.Lock()
	defer t.m.mu.Unlock()
	t.enc1, t.enc2 = enc1, enc2
	return nil
}

// EncoderInput returns the bound encoder pair.
func (t *Table) EncoderInput() (enc1, enc2 int) {
	t.m.mu.Lock()
	defer t.m.mu.Unlock()
	return t.enc1, t.enc2
}

// SetOutport sets the 4-bit output port mask the table pulses.
func (t *Table) SetOutport(mask uint32) error {
	if mask > 0xF {
		return axt.Errorf(axt.CNTInvalidValue, "axc.TableSetTriggerOutport", "port mask %#x", mask)
	}
	t.m.mu.Lock()
	defer t.m.mu.Unlock()
	t.outport = mask
	return nil
}

// Outport returns the output port mask.
func (t *Table) Outport() uint32 {
	t.m.mu.Lock()
	defer t.m.mu.Unlock()
	return t.outport
}

// SetErrorRange widens the acceptable position match around each
// point, in units.
func (t *Table) SetErrorRange(e float64) error {
	if e < 0 || math.IsNaN(e) || math.IsInf(e, 0) {
		return axt.Errorf(axt.CNTInvalidValue, "axc.TableSetErrorRange", "range %g", e)
	}
	t.m.mu.Lock()
	defer t.m.mu.Unlock()
	t.errRange = e
	return nil
}

// ErrorRange returns the match tolerance.
func (t *Table) ErrorRange() float64 {
	t.m.mu.Lock()
	defer t.m.mu.Unlock()
	return t.errRange
}

// SetMode selects the fire decision.
func (t *Table) SetMode(mode TableMode) error {
	if mode != TableRange && mode != TableVector && mode != TablePattern {
		return axt.Errorf(axt.CNTInvalidMode, "axc.TableSetTriggerMode", "mode %d", mode)
	}
	t.m.mu.Lock()
	defer t.m.mu.Unlock()
	t.mode = mode
	return nil
}

// Mode returns the fire decision mode.
func (t *Table) Mode() TableMode {
	t.m.mu.Lock()
	defer t.m.mu.Unlock()
	return t.mode
}

// SetEnable arms or disarms the table. Disabling stops output
// immediately and freezes any burst in flight; re-enabling resumes it.
func (t *Table) SetEnable(on bool) {
	t.m.mu.Lock()
	defer t.m.mu.Unlock()
	t.setEnableLocked(on)
}

func (t *Table) setEnableLocked(on bool) {
	t.enabled = on
	if on {
		x, y := t.pairLocked()
		t.lastX, t.lastY = x, y
	}
}

// Enabled reports the table arm state.
func (t *Table) Enabled() bool {
	t.m.mu.Lock()
	defer t.m.mu.Unlock()
	return t.enabled
}

// SetPatternData uploads the 2-D trigger points in travel order and
// arms the table in range mode. An empty slice clears the queue.
func (t *Table) SetPatternData(points []XYPoint) error {
	const op = "axc.TableSetTriggerData"
	if len(points) > t.mod.Info.TableCapacity {
		return axt.Errorf(axt.CNTInvalidValue, op,
			"%d points exceed the %s table of %d", len(points), t.mod.Info.Name, t.mod.Info.TableCapacity)
	}
	for i, p := range points {
		if math.IsNaN(p.X) || math.IsInf(p.X, 0) || math.IsNaN(p.Y) || math.IsInf(p.Y, 0) {
			return axt.Errorf(axt.CNTInvalidValue, op, "point %d position (%g, %g)", i, p.X, p.Y)
		}
		if p.Count < 1 {
			return axt.Errorf(axt.CNTInvalidValue, op, "point %d count %d", i, p.Count)
		}
		if p.Count > 1 && (p.Hz <= 0 || math.IsNaN(p.Hz)) {
			return axt.Errorf(axt.CNTInvalidValue, op, "point %d frequency %g", i, p.Hz)
		}
	}
	t.m.mu.Lock()
	defer t.m.mu.Unlock()
	t.pts = append([]XYPoint(nil), points...)
	t.head = 0
	t.mode = TableRange
	t.setEnableLocked(len(points) > 0)
	t.m.log.Info("trigger table loaded",
		zap.Int("module", t.mod.No), zap.Int("table", t.pos), zap.Int("points", len(points)))
	return nil
}

// PatternData returns the uploaded points in upload order.
func (t *Table) PatternData() []XYPoint {
	t.m.mu.Lock()
	defer t.m.mu.Unlock()
	return append([]XYPoint(nil), t.pts...)
}

// Clear drops the uploaded points, the FIFO, and any burst in flight.
func (t *Table) Clear() {
	t.m.mu.Lock()
	defer t.m.mu.Unlock()
	t.pts = nil
	t.head = 0
	t.burstLeft = 0
	t.burstAcc = 0
}

// OneShot emits a single trigger with the table's output settings,
// arming the table and leaving pattern mode if needed.
func (t *Table) OneShot() error {
	t.m.mu.Lock()
	defer t.m.mu.Unlock()
	if t.mode == TablePattern {
		t.mode = TableRange
	}
	t.setEnableLocked(true)
	now := t.m.rack.Now()
	t.fired++
	t.pulseUntil = now + t.timeUs/1e6
	t.bank().Raise(event.TriggerFired, now)
	return nil
}

// PatternShot emits count triggers at the given frequency, switching
// the table to pattern mode and arming it.
func (t *Table) PatternShot(count int, freq float64) error {
	const op = "axc.TableTriggerPatternShot"
	if count < 1 {
		return axt.Errorf(axt.CNTInvalidValue, op, "count %d", count)
	}
	if freq <= 0 || freq > 1e6 || math.IsNaN(freq) {
		return axt.Errorf(axt.CNTInvalidValue, op, "frequency %g Hz", freq)
	}
	t.m.mu.Lock()
	defer t.m.mu.Unlock()
	t.mode = TablePattern
	t.setEnableLocked(true)
	t.burstLeft += count
	t.burstFreq = freq
	t.shotCount = count
	t.shotFreq = freq
	return nil
}

// PatternShotData returns the last pattern-shot configuration.
func (t *Table) PatternShotData() (count int, freq float64) {
	t.m.mu.Lock()
	defer t.m.mu.Unlock()
	return t.shotCount, t.shotFreq
}

// ReadTriggerCount returns the accumulated fire count.
func (t *Table) ReadTriggerCount() int64 {
	t.m.mu.Lock()
	defer t.m.mu.Unlock()
	return t.fired
}

// ClearTriggerCount zeroes the accumulated fire count.
func (t *Table) ClearTriggerCount() {
	t.m.mu.Lock()
	defer t.m.mu.Unlock()
	t.fired = 0
}

// FIFOStatus reports the points still queued and the FIFO flag bits.
func (t *Table) FIFOStatus() (count int, empty, full, valid bool) {
	t.m.mu.Lock()
	defer t.m.mu.Unlock()
	count = len(t.pts) - t.head
	empty = count == 0
	full = count >= t.mod.Info.TableCapacity
	valid = !empty
	return count, empty, full, valid
}

// ReadFIFO returns the next queued position pair without consuming it.
func (t *Table) ReadFIFO() (x, y float64, err error) {
	t.m.mu.Lock()
	defer t.m.mu.Unlock()
	if t.head >= len(t.pts) {
		return 0, 0, axt.Errorf(axt.CNTInvalidUse, "axc.TableReadFifoData",
			"module %d table %d fifo empty", t.mod.No, t.pos)
	}
	p := t.pts[t.head]
	return p.X, p.Y, nil
}

// pairLocked reads the bound encoder pair's current positions.
func (t *Table) pairLocked() (x, y float64) {
	cx := t.m.channelAt(t.mod, t.enc1)
	cy := t.m.channelAt(t.mod, t.enc2)
	return cx.pos, cy.pos
}

// tickLocked services burst emission and position matching for one
// rack step.
func (t *Table) tickLocked(now, dt float64) {
	if !t.enabled {
		return
	}
	if t.burstLeft > 0 {
		t.burstAcc += dt * t.burstFreq
		n := int(t.burstAcc)
		if n > t.burstLeft {
			n = t.burstLeft
		}
		if n > 0 {
			t.burstAcc -= float64(n)
			t.burstLeft -= n
			t.fired += int64(n)
			t.pulseUntil = now + t.timeUs/1e6
			t.bank().Raise(event.TriggerFired, now)
		}
	}
	if t.mode == TablePattern || t.head >= len(t.pts) {
		return
	}

	cx := t.m.channelAt(t.mod, t.enc1)
	cy := t.m.channelAt(t.mod, t.enc2)
	matched := false
	for t.head < len(t.pts) {
		p := t.pts[t.head]
		if !spanHits(cx.prev, cx.pos, p.X, t.errRange) || !spanHits(cy.prev, cy.pos, p.Y, t.errRange) {
			break
		}
		if t.mode == TableVector &&
			(!dirAgrees(cx.pos-cx.prev, p.X-t.lastX) || !dirAgrees(cy.pos-cy.prev, p.Y-t.lastY)) {
			break
		}
		t.head++
		t.lastX, t.lastY = p.X, p.Y
		if p.Count <= 1 {
			t.fired++
		} else {
			t.burstLeft += p.Count - 1
			t.burstFreq = p.Hz
			t.fired++
		}
		matched = true
	}
	if matched {
		t.pulseUntil = now + t.timeUs/1e6
		t.bank().Raise(event.TriggerFired, now)
		if t.head == len(t.pts) {
			t.bank().Raise(event.FIFOEmpty, now)
		}
	}
}

// spanHits reports whether the travel span of one tick overlaps the
// tolerance band around a trigger position.
func spanHits(prev, cur, target, e float64) bool {
	lo, hi := prev, cur
	if lo > hi {
		lo, hi = hi, lo
	}
	return lo <= target+e && hi >= target-e
}

// dirAgrees reports whether a travel delta matches the required
// approach direction; a zero on either side passes.
func dirAgrees(delta, want float64) bool {
	if delta == 0 || want == 0 {
		return true
	}
	return (delta > 0) == (want > 0)
}
