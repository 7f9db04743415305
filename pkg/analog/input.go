// Analog input channels: conversion, buffered streaming, watermarks
//
// Copyright (C) 2026 Go binding
//
// This file may be distributed under the terms of the GNU GPLv3 license.

package analog

import (
	"math"

	"axl-go/pkg/axt"
	"axl-go/pkg/board"
	"axl-go/pkg/event"
)

// maxDigit is the full-scale raw count of the 16-bit converters.
const maxDigit = 65535

// Input is one analog input channel. All state is guarded by the
// owning manager's lock; methods are safe for concurrent use.
type Input struct {
	m     *Manager
	no    int // global input channel number
	mod   *board.Module
	local int

	minV, maxV float64

	src     float64 // injected source voltage
	boundAO int     // followed output channel, -1 when unwired

	active   bool
	fifo     []float64
	depth    int
	overflow OverflowMode
	overrun  bool

	lowLim, upLim int

	evOn   bool
	evKind EventKind

	filterN   int
	filterWin []float64
}

// No returns the global input channel number.
func (in *Input) No() int { return in.no }

// Module returns the owning module number.
func (in *Input) Module() int { return in.mod.No }

func (in *Input) bank() *event.Bank {
	return in.m.ev.Bank(event.AnalogBank(in.no))
}

// checkRange validates a converter voltage range selection.
func checkRange(op string, minVolt, maxVolt float64) error {
	switch minVolt {
	case -10, -5, 0:
	default:
		return axt.Errorf(axt.AIOInvalidValue, op, "range %g..%g V", minVolt, maxVolt)
	}
	switch maxVolt {
	case 5, 10:
	default:
		return axt.Errorf(axt.AIOInvalidValue, op, "range %g..%g V", minVolt, maxVolt)
	}
	if minVolt >= maxVolt {
		return axt.Errorf(axt.AIOInvalidValue, op, "range %g..%g V", minVolt, maxVolt)
	}
	return nil
}

// SetRange selects the converter voltage range.
func (in *Input) SetRange(minVolt, maxVolt float64) error {
	if err := checkRange("axai.SetRange", minVolt, maxVolt); err != nil {
		return err
	}
	in.m.mu.Lock()
	defer in.m.mu.Unlock()
	in.minV, in.maxV = minVolt, maxVolt
	return nil
}

// Range returns the converter voltage range.
func (in *Input) Range() (minVolt, maxVolt float64) {
	in.m.mu.Lock()
	defer in.m.mu.Unlock()
	return in.minV, in.maxV
}

// VoltToDigit converts a voltage to the raw count the channel's range
// would produce, saturating at the rails.
func (in *Input) VoltToDigit(volt float64) uint32 {
	in.m.mu.Lock()
	defer in.m.mu.Unlock()
	return voltToDigit(volt, in.minV, in.maxV)
}

// DigitToVolt converts a raw count to volts under the channel's
// range.
func (in *Input) DigitToVolt(digit uint32) float64 {
	in.m.mu.Lock()
	defer in.m.mu.Unlock()
	return digitToVolt(digit, in.minV, in.maxV)
}

func voltToDigit(volt, minV, maxV float64) uint32 {
	if volt <= minV {
		return 0
	}
	if volt >= maxV {
		return maxDigit
	}
	return uint32(math.Round((volt - minV) / (maxV - minV) * maxDigit))
}

func digitToVolt(digit uint32, minV, maxV float64) float64 {
	if digit > maxDigit {
		digit = maxDigit
	}
	return minV + float64(digit)/maxDigit*(maxV-minV)
}

// Inject sets the channel's source voltage, the virtual stand-in for
// the field wiring.
func (in *Input) Inject(volt float64) {
	in.m.mu.Lock()
	defer in.m.mu.Unlock()
	in.src = volt
}

// BindOutput wires the channel's source to an analog output channel,
// a loopback of its live voltage.
func (in *Input) BindOutput(aoChannelNo int) error {
	if aoChannelNo < 0 || aoChannelNo >= len(in.m.outs) {
		return axt.Errorf(axt.AIOInvalidChannelNo, "axai.BindOutput", "output channel %d", aoChannelNo)
	}
	in.m.mu.Lock()
	defer in.m.mu.Unlock()
	in.boundAO = aoChannelNo
	return nil
}

// Unbind detaches the channel from its loopback source.
func (in *Input) Unbind() {
	in.m.mu.Lock()
	defer in.m.mu.Unlock()
	in.boundAO = -1
}

// rawLocked converts the current source through the input stage:
// module offset applied, saturated at the range rails.
func (in *Input) rawLocked() float64 {
	v := in.src
	if in.boundAO >= 0 {
		v = in.m.outs[in.boundAO].volt
	}
	v += in.m.mods[in.mod.No].offsetMV / 1000
	return math.Max(in.minV, math.Min(in.maxV, v))
}

// acquireLocked runs one streamed conversion through the channel
// filter.
func (in *Input) acquireLocked() float64 {
	v := in.rawLocked()
	if in.filterN <= 1 {
		return v
	}
	if len(in.filterWin) == in.filterN {
		copy(in.filterWin, in.filterWin[1:])
		in.filterWin[len(in.filterWin)-1] = v
	} else {
		in.filterWin = append(in.filterWin, v)
	}
	sum := 0.0
	for _, w := range in.filterWin {
		sum += w
	}
	return sum / float64(len(in.filterWin))
}

// ReadVolt converts the channel once and returns volts. The module
// must be in software-trigger mode.
func (in *Input) ReadVolt() (float64, error) {
	in.m.mu.Lock()
	defer in.m.mu.Unlock()
	ms := in.m.mods[in.mod.No]
	if ms.trigMode != TriggerNormal {
		return 0, axt.Errorf(axt.AIOInvalidTrigger, "axai.SwReadVoltage",
			"module %d in %v", in.mod.No, ms.trigMode)
	}
	return in.rawLocked(), nil
}

// ReadDigit converts the channel once and returns the raw count.
func (in *Input) ReadDigit() (uint32, error) {
	in.m.mu.Lock()
	defer in.m.mu.Unlock()
	ms := in.m.mods[in.mod.No]
	if ms.trigMode != TriggerNormal {
		return 0, axt.Errorf(axt.AIOInvalidTrigger, "axai.SwReadDigit",
			"module %d in %v", in.mod.No, ms.trigMode)
	}
	return voltToDigit(in.rawLocked(), in.minV, in.maxV), nil
}

// SetBufferOverflowMode selects what a full sample buffer drops.
func (in *Input) SetBufferOverflowMode(mode OverflowMode) error {
	if mode != OverflowKeepNew && mode != OverflowKeepCurrent {
		return axt.Errorf(axt.AIOInvalidValue, "axai.HwSetBufferOverflowMode", "mode %d", mode)
	}
	in.m.mu.Lock()
	defer in.m.mu.Unlock()
	in.overflow = mode
	return nil
}

// BufferOverflowMode returns the full-buffer policy.
func (in *Input) BufferOverflowMode() OverflowMode {
	in.m.mu.Lock()
	defer in.m.mu.Unlock()
	return in.overflow
}

// SetLimit places the buffer watermarks, in sample counts.
func (in *Input) SetLimit(low, up int) error {
	if low < 0 || up < low {
		return axt.Errorf(axt.AIOInvalidValue, "axai.HwSetLimit", "limits %d..%d", low, up)
	}
	in.m.mu.Lock()
	defer in.m.mu.Unlock()
	in.lowLim, in.upLim = low, up
	return nil
}

// Limit returns the buffer watermarks.
func (in *Input) Limit() (low, up int) {
	in.m.mu.Lock()
	defer in.m.mu.Unlock()
	return in.lowLim, in.upLim
}

// SetEventEnable arms or disarms buffer event posting.
func (in *Input) SetEventEnable(on bool) {
	in.m.mu.Lock()
	defer in.m.mu.Unlock()
	in.evOn = on
}

// EventEnabled reports whether buffer events post.
func (in *Input) EventEnabled() bool {
	in.m.mu.Lock()
	defer in.m.mu.Unlock()
	return in.evOn
}

// SetEventMask selects which buffer transition posts.
func (in *Input) SetEventMask(kind EventKind) error {
	switch kind {
	case EventDataEmpty, EventDataMany, EventDataSmall, EventDataFull:
	default:
		return axt.Errorf(axt.AIOInvalidValue, "axai.EventSetChannelMask", "mask %d", kind)
	}
	in.m.mu.Lock()
	defer in.m.mu.Unlock()
	in.evKind = kind
	return nil
}

// EventMask returns the selected buffer transition.
func (in *Input) EventMask() EventKind {
	in.m.mu.Lock()
	defer in.m.mu.Unlock()
	return in.evKind
}

// startLocked arms streaming under the required trigger mode, with a
// fresh buffer.
func (in *Input) startLocked(op string, filterCount, depth int, need TriggerMode) error {
	ms := in.m.mods[in.mod.No]
	if ms.trigMode != need {
		return axt.Errorf(axt.AIOInvalidTrigger, op, "module %d in %v", in.mod.No, ms.trigMode)
	}
	if depth < 1 {
		return axt.Errorf(axt.AIOInvalidValue, op, "buffer depth %d", depth)
	}
	in.active = true
	in.fifo = nil
	in.depth = depth
	in.overrun = false
	in.filterN = filterCount
	in.filterWin = nil
	return nil
}

// StartSampling arms timer-mode streaming into a buffer of the given
// depth.
func (in *Input) StartSampling(depth int) error {
	in.m.mu.Lock()
	defer in.m.mu.Unlock()
	return in.startLocked("axai.HwStartSingleChannelAdc", 1, depth, TriggerTimer)
}

// StopSampling stops streaming; the buffer keeps its samples.
func (in *Input) StopSampling() {
	in.m.mu.Lock()
	defer in.m.mu.Unlock()
	in.active = false
}

// Sampling reports whether the channel is streaming.
func (in *Input) Sampling() bool {
	in.m.mu.Lock()
	defer in.m.mu.Unlock()
	return in.active
}

// Overrun reports whether a sample was lost since streaming started.
func (in *Input) Overrun() bool {
	in.m.mu.Lock()
	defer in.m.mu.Unlock()
	return in.overrun
}

// ReadDataLength returns the buffered sample count.
func (in *Input) ReadDataLength() int {
	in.m.mu.Lock()
	defer in.m.mu.Unlock()
	return len(in.fifo)
}

// IsBufferEmpty reports an empty sample buffer.
func (in *Input) IsBufferEmpty() bool {
	in.m.mu.Lock()
	defer in.m.mu.Unlock()
	return len(in.fifo) == 0
}

// IsBufferUpper reports more buffered samples than the upper
// watermark.
func (in *Input) IsBufferUpper() bool {
	in.m.mu.Lock()
	defer in.m.mu.Unlock()
	return len(in.fifo) > in.upLim
}

// IsBufferLower reports fewer buffered samples than the lower
// watermark.
func (in *Input) IsBufferLower() bool {
	in.m.mu.Lock()
	defer in.m.mu.Unlock()
	return len(in.fifo) < in.lowLim
}

// ReadSamples drains up to max buffered samples, oldest first, in
// volts.
func (in *Input) ReadSamples(max int) []float64 {
	in.m.mu.Lock()
	defer in.m.mu.Unlock()
	return in.drainLocked(max)
}

// ReadSamplesDigit drains up to max buffered samples as raw counts.
func (in *Input) ReadSamplesDigit(max int) []uint32 {
	in.m.mu.Lock()
	defer in.m.mu.Unlock()
	volts := in.drainLocked(max)
	digits := make([]uint32, len(volts))
	for i, v := range volts {
		digits[i] = voltToDigit(v, in.minV, in.maxV)
	}
	return digits
}

// pushLocked admits one streamed sample, applying the full-buffer
// policy, and posts watermark transitions.
func (in *Input) pushLocked(v float64, now float64) {
	prev := len(in.fifo)
	if prev >= in.depth {
		in.overrun = true
		if in.overflow == OverflowKeepCurrent {
			return
		}
		in.fifo = in.fifo[1:]
	}
	in.fifo = append(in.fifo, v)
	n := len(in.fifo)
	if prev < in.depth && n == in.depth {
		in.raiseLocked(EventDataFull, now)
	}
	if prev <= in.upLim && n > in.upLim {
		in.raiseLocked(EventDataMany, now)
	}
}

// drainLocked removes up to max samples and posts watermark
// transitions.
func (in *Input) drainLocked(max int) []float64 {
	if max <= 0 || len(in.fifo) == 0 {
		return nil
	}
	k := max
	if k > len(in.fifo) {
		k = len(in.fifo)
	}
	out := make([]float64, k)
	copy(out, in.fifo[:k])
	prev := len(in.fifo)
	in.fifo = in.fifo[k:]
	n := len(in.fifo)
	now := in.m.rack.Now()
	if prev >= in.lowLim && n < in.lowLim {
		in.raiseLocked(EventDataSmall, now)
	}
	if prev > 0 && n == 0 {
		in.raiseLocked(EventDataEmpty, now)
	}
	return out
}

func (in *Input) raiseLocked(kind EventKind, now float64) {
	if in.evOn && in.evKind == kind {
		in.bank().Raise(kind.flag(), now)
	}
}
