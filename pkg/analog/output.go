// Analog output channels and the user pattern generator
//
// Copyright (C) 2026 Go binding
//
// This file may be distributed under the terms of the GNU GPLv3 license.

package analog

import (
	"go.uber.org/zap"

	"axl-go/pkg/axt"
	"axl-go/pkg/board"
)

const (
	maxPatternLen = 8192
	maxLoopCount  = 60000
	minIntervalUs = 500
)

// Output is one analog output channel. A held voltage is replaced by
// the pattern generator while it runs; stopping the generator drops
// the output to zero volts.
type Output struct {
	m     *Manager
	no    int // global output channel number
	mod   *board.Module
	local int

	minV, maxV float64
	volt       float64

	pattern    []float64
	loopCnt    int // 0 repeats forever
	intervalUs float64

	patBusy bool
	patIdx  int
	patLoop int
	patAcc  float64
}

// No returns the global output channel number.
func (o *Output) No() int { return o.no }

// Module returns the owning module number.
func (o *Output) Module() int { return o.mod.No }

// SetRange selects the converter voltage range.
func (o *Output) SetRange(minVolt, maxVolt float64) error {
	if err := checkRange("axao.SetRange", minVolt, maxVolt); err != nil {
		return err
	}
	o.m.mu.Lock()
	defer o.m.mu.Unlock()
	o.minV, o.maxV = minVolt, maxVolt
	return nil
}

// Range returns the converter voltage range.
func (o *Output) Range() (minVolt, maxVolt float64) {
	o.m.mu.Lock()
	defer o.m.mu.Unlock()
	return o.minV, o.maxV
}

// VoltToDigit converts a voltage to the raw count of the channel's
// range, saturating at the rails.
func (o *Output) VoltToDigit(volt float64) uint32 {
	o.m.mu.Lock()
	defer o.m.mu.Unlock()
	return voltToDigit(volt, o.minV, o.maxV)
}

// DigitToVolt converts a raw count to volts under the channel's
// range.
func (o *Output) DigitToVolt(digit uint32) float64 {
	o.m.mu.Lock()
	defer o.m.mu.Unlock()
	return digitToVolt(digit, o.minV, o.maxV)
}

// checkWriteLocked validates a manual voltage write.
func (o *Output) checkWriteLocked(op string, volt float64) error {
	if o.patBusy {
		return axt.Errorf(axt.AIOPatternEnabled, op, "channel %d pattern running", o.no)
	}
	if volt < o.minV || volt > o.maxV {
		return axt.Errorf(axt.AIOInvalidValue, op,
			"%g V outside %g..%g", volt, o.minV, o.maxV)
	}
	return nil
}

// Write drives the output to a voltage.
func (o *Output) Write(volt float64) error {
	o.m.mu.Lock()
	defer o.m.mu.Unlock()
	if err := o.checkWriteLocked("axao.WriteVoltage", volt); err != nil {
		return err
	}
	o.volt = volt
	return nil
}

// Read returns the live output voltage.
func (o *Output) Read() float64 {
	o.m.mu.Lock()
	defer o.m.mu.Unlock()
	return o.volt
}

// WriteDigit drives the output to a raw count.
func (o *Output) WriteDigit(digit uint32) error {
	const op = "axao.WriteDigit"
	if digit > maxDigit {
		return axt.Errorf(axt.AIOInvalidValue, op, "digit %d", digit)
	}
	o.m.mu.Lock()
	defer o.m.mu.Unlock()
	volt := digitToVolt(digit, o.minV, o.maxV)
	if err := o.checkWriteLocked(op, volt); err != nil {
		return err
	}
	o.volt = volt
	return nil
}

// ReadDigit returns the live output as a raw count.
func (o *Output) ReadDigit() uint32 {
	o.m.mu.Lock()
	defer o.m.mu.Unlock()
	return voltToDigit(o.volt, o.minV, o.maxV)
}

// setPatternLocked validates and stores the generator waveform.
func (o *Output) setPatternLocked(op string, loopCnt int, volts []float64) error {
	if o.patBusy {
		return axt.Errorf(axt.AIOPatternEnabled, op, "channel %d pattern running", o.no)
	}
	if loopCnt < 0 || loopCnt > maxLoopCount {
		return axt.Errorf(axt.AIOInvalidValue, op, "loop count %d", loopCnt)
	}
	if len(volts) == 0 || len(volts) > maxPatternLen {
		return axt.Errorf(axt.AIOInvalidValue, op, "%d pattern entries", len(volts))
	}
	for i, v := range volts {
		if v < o.minV || v > o.maxV {
			return axt.Errorf(axt.AIOInvalidValue, op,
				"entry %d: %g V outside %g..%g", i, v, o.minV, o.maxV)
		}
	}
	o.pattern = append([]float64(nil), volts...)
	o.loopCnt = loopCnt
	o.patIdx, o.patLoop = 0, 0
	return nil
}

// SetPattern uploads the generator waveform in volts. A loop count of
// zero repeats forever; a finite count holds the last value when it
// runs out.
func (o *Output) SetPattern(loopCnt int, volts []float64) error {
	o.m.mu.Lock()
	defer o.m.mu.Unlock()
	return o.setPatternLocked("axao.PgSetUserPatternGenerator", loopCnt, volts)
}

// SetPatternDigit uploads the generator waveform as raw counts.
func (o *Output) SetPatternDigit(loopCnt int, digits []uint32) error {
	const op = "axao.PgSetUserPatternGeneratorDigit"
	for i, d := range digits {
		if d > maxDigit {
			return axt.Errorf(axt.AIOInvalidValue, op, "entry %d: digit %d", i, d)
		}
	}
	o.m.mu.Lock()
	defer o.m.mu.Unlock()
	volts := make([]float64, len(digits))
	for i, d := range digits {
		volts[i] = digitToVolt(d, o.minV, o.maxV)
	}
	return o.setPatternLocked(op, loopCnt, volts)
}

// Pattern returns the loop count and the uploaded waveform in volts.
func (o *Output) Pattern() (loopCnt int, volts []float64) {
	o.m.mu.Lock()
	defer o.m.mu.Unlock()
	return o.loopCnt, append([]float64(nil), o.pattern...)
}

// PatternDigit returns the loop count and the waveform as raw counts.
func (o *Output) PatternDigit() (loopCnt int, digits []uint32) {
	o.m.mu.Lock()
	defer o.m.mu.Unlock()
	digits = make([]uint32, len(o.pattern))
	for i, v := range o.pattern {
		digits[i] = voltToDigit(v, o.minV, o.maxV)
	}
	return o.loopCnt, digits
}

// SetPatternInterval sets the generator step interval in
// microseconds, at least 500.
func (o *Output) SetPatternInterval(us float64) error {
	const op = "axao.PgSetUserInterval"
	if us < minIntervalUs {
		return axt.Errorf(axt.AIOInvalidValue, op, "interval %g us", us)
	}
	o.m.mu.Lock()
	defer o.m.mu.Unlock()
	if o.patBusy {
		return axt.Errorf(axt.AIOPatternEnabled, op, "channel %d pattern running", o.no)
	}
	o.intervalUs = us
	return nil
}

// PatternInterval returns the generator step interval in
// microseconds.
func (o *Output) PatternInterval() float64 {
	o.m.mu.Lock()
	defer o.m.mu.Unlock()
	return o.intervalUs
}

// ResetPattern drops the uploaded waveform.
func (o *Output) ResetPattern() error {
	o.m.mu.Lock()
	defer o.m.mu.Unlock()
	if o.patBusy {
		return axt.Errorf(axt.AIOPatternEnabled, "axao.PgSetUserDataReset",
			"channel %d pattern running", o.no)
	}
	o.pattern = nil
	o.patIdx, o.patLoop = 0, 0
	return nil
}

// PatternStatus returns the live waveform index, the completed loop
// count, and whether the generator runs.
func (o *Output) PatternStatus() (index, loops int, busy bool) {
	o.m.mu.Lock()
	defer o.m.mu.Unlock()
	return o.patIdx, o.patLoop, o.patBusy
}

// tickLocked advances the generator by the elapsed step intervals.
func (o *Output) tickLocked(dt float64) {
	if !o.patBusy || len(o.pattern) == 0 {
		return
	}
	o.patAcc += dt * 1e6 / o.intervalUs
	n := int(o.patAcc)
	o.patAcc -= float64(n)
	for i := 0; i < n; i++ {
		o.patIdx++
		if o.patIdx >= len(o.pattern) {
			o.patLoop++
			if o.loopCnt != 0 && o.patLoop >= o.loopCnt {
				o.patBusy = false
				o.patIdx = len(o.pattern) - 1
				o.volt = o.pattern[o.patIdx]
				return
			}
			o.patIdx = 0
		}
	}
	o.volt = o.pattern[o.patIdx]
}

// PatternStart launches the generator on several channels at once.
// Every channel is validated before any starts.
func (m *Manager) PatternStart(channelNos []int) error {
	const op = "axao.PgSetUserStart"
	outs := make([]*Output, len(channelNos))
	for i, no := range channelNos {
		out, err := m.Output(no)
		if err != nil {
			return err
		}
		outs[i] = out
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, o := range outs {
		if o.patBusy {
			return axt.Errorf(axt.AIOPatternEnabled, op, "channel %d pattern running", o.no)
		}
		if len(o.pattern) == 0 {
			return axt.Errorf(axt.AIOInvalidUse, op, "channel %d has no pattern", o.no)
		}
	}
	for _, o := range outs {
		o.patBusy = true
		o.patIdx, o.patLoop, o.patAcc = 0, 0, 0
		o.volt = o.pattern[0]
	}
	m.log.Info("pattern generator started", zap.Ints("channels", channelNos))
	return nil
}

// PatternStop halts the generator on several channels; the outputs
// drop to zero volts.
func (m *Manager) PatternStop(channelNos []int) error {
	outs := make([]*Output, len(channelNos))
	for i, no := range channelNos {
		out, err := m.Output(no)
		if err != nil {
			return err
		}
		outs[i] = out
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, o := range outs {
		o.patBusy = false
		o.volt = 0
	}
	m.log.Info("pattern generator stopped", zap.Ints("channels", channelNos))
	return nil
}
