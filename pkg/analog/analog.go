// Analog I/O: module configuration, conversion clocking, channel lookup
//
// Copyright (C) 2026 Go binding
//
// This file may be distributed under the terms of the GNU GPLv3 license.

// Package analog drives the analog input and output channels of the
// rack (AXA family). Inputs convert on demand in software-trigger
// mode, stream into per-channel buffers on the module sample clock in
// timer mode, or convert on an external strobe; outputs hold a
// voltage or replay an uploaded pattern on their own interval. Buffer
// watermark transitions latch event-bank flags.
package analog

import (
	"strconv"
	"sync"

	"go.uber.org/zap"

	"axl-go/pkg/axt"
	"axl-go/pkg/board"
	"axl-go/pkg/event"
	"axl-go/pkg/vrack"
)

// TriggerMode selects how an input module's converter is clocked.
type TriggerMode int

const (
	// TriggerNormal converts when the caller reads.
	TriggerNormal TriggerMode = 1
	// TriggerTimer converts on the module sample clock.
	TriggerTimer TriggerMode = 2
	// TriggerExternal converts on the external strobe input.
	TriggerExternal TriggerMode = 3
)

func (m TriggerMode) String() string {
	switch m {
	case TriggerNormal:
		return "NORMAL_MODE"
	case TriggerTimer:
		return "TIMER_MODE"
	case TriggerExternal:
		return "EXTERNAL_MODE"
	}
	return "TRIGGER_MODE_" + strconv.Itoa(int(m))
}

// OverflowMode selects what a full sample buffer drops.
type OverflowMode int

const (
	// OverflowKeepNew drops the oldest sample to admit the new one.
	OverflowKeepNew OverflowMode = 0
	// OverflowKeepCurrent drops the incoming sample.
	OverflowKeepCurrent OverflowMode = 1
)

func (m OverflowMode) String() string {
	switch m {
	case OverflowKeepNew:
		return "NEW_DATA_KEEP"
	case OverflowKeepCurrent:
		return "CURR_DATA_KEEP"
	}
	return "OVERFLOW_MODE_" + strconv.Itoa(int(m))
}

// EventKind selects which buffer transition a channel reports.
type EventKind int

const (
	EventNone      EventKind = 0
	EventDataEmpty EventKind = 1
	EventDataMany  EventKind = 2
	EventDataSmall EventKind = 3
	EventDataFull  EventKind = 4
)

func (k EventKind) String() string {
	switch k {
	case EventNone:
		return "EVENT_NONE"
	case EventDataEmpty:
		return "DATA_EMPTY"
	case EventDataMany:
		return "DATA_MANY"
	case EventDataSmall:
		return "DATA_SMALL"
	case EventDataFull:
		return "DATA_FULL"
	}
	return "EVENT_KIND_" + strconv.Itoa(int(k))
}

func (k EventKind) flag() uint32 {
	switch k {
	case EventDataEmpty:
		return event.DataEmpty
	case EventDataMany:
		return event.DataMany
	case EventDataSmall:
		return event.DataSmall
	case EventDataFull:
		return event.DataFull
	}
	return 0
}

// FIFOStatus is the external-conversion buffer state of a module.
// The values keep their hardware register encoding.
type FIFOStatus int

const (
	FIFODataExist FIFOStatus = 0
	FIFODataEmpty FIFOStatus = 1
	FIFODataHalf  FIFOStatus = 2
	FIFODataFull  FIFOStatus = 6
)

func (s FIFOStatus) String() string {
	switch s {
	case FIFODataExist:
		return "FIFO_DATA_EXIST"
	case FIFODataEmpty:
		return "FIFO_DATA_EMPTY"
	case FIFODataHalf:
		return "FIFO_DATA_HALF"
	case FIFODataFull:
		return "FIFO_DATA_FULL"
	}
	return "FIFO_STATUS_" + strconv.Itoa(int(s))
}

// hwFIFODepth is the per-channel conversion buffer of the external
// strobe path.
const hwFIFODepth = 512

// moduleState is the per-module converter configuration shared by the
// module's input channels.
type moduleState struct {
	mod      *board.Module
	trigMode TriggerMode
	offsetMV float64
	freq     float64 // timer-mode sample clock, Hz
	clockAcc float64
}

// Manager owns every analog channel in the rack and services timer
// sampling and output patterns from the rack tick.
type Manager struct {
	log  *zap.Logger
	rack *vrack.Rack
	topo *board.Topology
	ev   *event.Manager

	mu     sync.Mutex
	ins    []*Input
	outs   []*Output
	mods   map[int]*moduleState
	tickID int
}

// New builds the channel state for every analog module in the
// topology and attaches the service tick to the rack.
func New(log *zap.Logger, rack *vrack.Rack, topo *board.Topology, ev *event.Manager) *Manager {
	if log == nil {
		log = zap.NewNop()
	}
	m := &Manager{
		log:  log,
		rack: rack,
		topo: topo,
		ev:   ev,
		mods: make(map[int]*moduleState),
	}
	for _, mod := range topo.ModulesOfClass(board.ClassAIO) {
		m.mods[mod.No] = &moduleState{mod: mod, trigMode: TriggerNormal, freq: 1000}
	}
	for no := 0; no < topo.AIChannelCount(); no++ {
		mod, local, _ := topo.AIChannelModule(no)
		m.ins = append(m.ins, &Input{
			m: m, no: no, mod: mod, local: local,
			minV: -10, maxV: 10,
			boundAO: -1,
			filterN: 1,
		})
	}
	for no := 0; no < topo.AOChannelCount(); no++ {
		mod, local, _ := topo.AOChannelModule(no)
		m.outs = append(m.outs, &Output{
			m: m, no: no, mod: mod, local: local,
			minV: -10, maxV: 10,
			intervalUs: 500,
		})
	}
	m.tickID = rack.RegisterTicker(m.tick)
	return m
}

// Close detaches the manager from the rack tick.
func (m *Manager) Close() {
	m.rack.UnregisterTicker(m.tickID)
}

// InputCount returns the number of analog input channels in the rack.
func (m *Manager) InputCount() int { return len(m.ins) }

// OutputCount returns the number of analog output channels.
func (m *Manager) OutputCount() int { return len(m.outs) }

// ModuleCount returns the number of analog modules.
func (m *Manager) ModuleCount() int {
	return m.topo.ClassModuleCount(board.ClassAIO)
}

// Input resolves a global analog input channel number.
func (m *Manager) Input(channelNo int) (*Input, error) {
	if channelNo < 0 || channelNo >= len(m.ins) {
		return nil, axt.Errorf(axt.AIOInvalidChannelNo, "axai.Input", "channel %d", channelNo)
	}
	return m.ins[channelNo], nil
}

// Output resolves a global analog output channel number.
func (m *Manager) Output(channelNo int) (*Output, error) {
	if channelNo < 0 || channelNo >= len(m.outs) {
		return nil, axt.Errorf(axt.AIOInvalidChannelNo, "axao.Output", "channel %d", channelNo)
	}
	return m.outs[channelNo], nil
}

// aioModule resolves a module number to analog module state.
func (m *Manager) aioModule(op string, moduleNo int) (*moduleState, error) {
	ms, ok := m.mods[moduleNo]
	if !ok {
		return nil, axt.Errorf(axt.AIOInvalidModuleNo, op, "module %d", moduleNo)
	}
	return ms, nil
}

// FirstInputOfModule returns the global number of a module's first
// input channel.
func (m *Manager) FirstInputOfModule(moduleNo int) (int, error) {
	ms, err := m.aioModule("axa.InfoGetChannelNoAdc", moduleNo)
	if err != nil {
		return 0, err
	}
	if ms.mod.Info.AIChannels == 0 {
		return 0, axt.Errorf(axt.AIOInvalidUse, "axa.InfoGetChannelNoAdc",
			"module %d (%s) has no inputs", moduleNo, ms.mod.Info.Name)
	}
	return ms.mod.FirstAI, nil
}

// FirstOutputOfModule returns the global number of a module's first
// output channel.
func (m *Manager) FirstOutputOfModule(moduleNo int) (int, error) {
	ms, err := m.aioModule("axa.InfoGetChannelNoDac", moduleNo)
	if err != nil {
		return 0, err
	}
	if ms.mod.Info.AOChannels == 0 {
		return 0, axt.Errorf(axt.AIOInvalidUse, "axa.InfoGetChannelNoDac",
			"module %d (%s) has no outputs", moduleNo, ms.mod.Info.Name)
	}
	return ms.mod.FirstAO, nil
}

// ModuleOfInput returns the global module number owning an input
// channel.
func (m *Manager) ModuleOfInput(channelNo int) (int, error) {
	mod, _, err := m.topo.AIChannelModule(channelNo)
	if err != nil {
		return 0, err
	}
	return mod.No, nil
}

// ModuleOfOutput returns the global module number owning an output
// channel.
func (m *Manager) ModuleOfOutput(channelNo int) (int, error) {
	mod, _, err := m.topo.AOChannelModule(channelNo)
	if err != nil {
		return 0, err
	}
	return mod.No, nil
}

// SetTriggerMode selects a module's converter clocking. Changing the
// mode stops any conversion stream in flight on the module.
func (m *Manager) SetTriggerMode(moduleNo int, mode TriggerMode) error {
	const op = "axai.SetTriggerMode"
	if mode != TriggerNormal && mode != TriggerTimer && mode != TriggerExternal {
		return axt.Errorf(axt.AIOInvalidTrigger, op, "mode %d", mode)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	ms, err := m.aioModule(op, moduleNo)
	if err != nil {
		return err
	}
	ms.trigMode = mode
	ms.clockAcc = 0
	for _, in := range m.moduleInputsLocked(ms.mod) {
		in.active = false
	}
	return nil
}

// TriggerMode returns a module's converter clocking.
func (m *Manager) TriggerMode(moduleNo int) (TriggerMode, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ms, err := m.aioModule("axai.GetTriggerMode", moduleNo)
	if err != nil {
		return 0, err
	}
	return ms.trigMode, nil
}

// SetOffset calibrates a module's input stage offset in millivolts,
// -100 to 100.
func (m *Manager) SetOffset(moduleNo int, mV float64) error {
	const op = "axai.SetModuleOffsetValue"
	if mV < -100 || mV > 100 {
		return axt.Errorf(axt.AIOInvalidValue, op, "offset %g mV", mV)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	ms, err := m.aioModule(op, moduleNo)
	if err != nil {
		return err
	}
	ms.offsetMV = mV
	return nil
}

// Offset returns a module's input stage offset in millivolts.
func (m *Manager) Offset(moduleNo int) (float64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ms, err := m.aioModule("axai.GetModuleOffsetValue", moduleNo)
	if err != nil {
		return 0, err
	}
	return ms.offsetMV, nil
}

// SetSampleFreq sets a module's timer-mode sample clock in Hz, 10 Hz
// to 100 kHz.
func (m *Manager) SetSampleFreq(moduleNo int, hz float64) error {
	const op = "axai.HwSetSampleFreq"
	if hz < 10 || hz > 100e3 {
		return axt.Errorf(axt.AIOInvalidValue, op, "frequency %g Hz", hz)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	ms, err := m.aioModule(op, moduleNo)
	if err != nil {
		return err
	}
	ms.freq = hz
	ms.clockAcc = 0
	return nil
}

// SampleFreq returns a module's timer-mode sample clock in Hz.
func (m *Manager) SampleFreq(moduleNo int) (float64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ms, err := m.aioModule("axai.HwGetSampleFreq", moduleNo)
	if err != nil {
		return 0, err
	}
	return ms.freq, nil
}

// SetSamplePeriod sets the sample clock as a period in microseconds,
// 10 us to 100 ms.
func (m *Manager) SetSamplePeriod(moduleNo int, us float64) error {
	if us < 10 || us > 100e3 {
		return axt.Errorf(axt.AIOInvalidValue, "axai.HwSetSamplePeriod", "period %g us", us)
	}
	return m.SetSampleFreq(moduleNo, 1e6/us)
}

// SamplePeriod returns the sample clock as a period in microseconds.
func (m *Manager) SamplePeriod(moduleNo int) (float64, error) {
	hz, err := m.SampleFreq(moduleNo)
	if err != nil {
		return 0, err
	}
	return 1e6 / hz, nil
}

// SetInputRangeModule applies one voltage range to every input
// channel of a module.
func (m *Manager) SetInputRangeModule(moduleNo int, minVolt, maxVolt float64) error {
	const op = "axai.SetRangeModule"
	if err := checkRange(op, minVolt, maxVolt); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	ms, err := m.aioModule(op, moduleNo)
	if err != nil {
		return err
	}
	for _, in := range m.moduleInputsLocked(ms.mod) {
		in.minV, in.maxV = minVolt, maxVolt
	}
	return nil
}

// ReadMultiVolt converts several input channels in one call.
func (m *Manager) ReadMultiVolt(channelNos []int) ([]float64, error) {
	volts := make([]float64, len(channelNos))
	for i, no := range channelNos {
		in, err := m.Input(no)
		if err != nil {
			return nil, err
		}
		v, err := in.ReadVolt()
		if err != nil {
			return nil, err
		}
		volts[i] = v
	}
	return volts, nil
}

// ReadMultiDigit converts several input channels to raw counts in one
// call.
func (m *Manager) ReadMultiDigit(channelNos []int) ([]uint32, error) {
	digits := make([]uint32, len(channelNos))
	for i, no := range channelNos {
		in, err := m.Input(no)
		if err != nil {
			return nil, err
		}
		d, err := in.ReadDigit()
		if err != nil {
			return nil, err
		}
		digits[i] = d
	}
	return digits, nil
}

// WriteMultiVolt drives several output channels in one call. Every
// value is validated before any channel changes.
func (m *Manager) WriteMultiVolt(channelNos []int, volts []float64) error {
	const op = "axao.WriteMultiVoltage"
	if len(channelNos) != len(volts) {
		return axt.Errorf(axt.AIOInvalidValue, op,
			"%d channels, %d values", len(channelNos), len(volts))
	}
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
	for i, out := range outs {
		if err := out.checkWriteLocked(op, volts[i]); err != nil {
			return err
		}
	}
	for i, out := range outs {
		out.volt = volts[i]
	}
	return nil
}

// StartSampling arms timer-mode streaming on several channels with
// one buffer depth.
func (m *Manager) StartSampling(channelNos []int, depth int) error {
	return m.startSampling("axai.HwStartMultiChannel", channelNos, 1, depth)
}

// StartSamplingFilter arms timer-mode streaming with a moving-average
// filter over filterCount conversions.
func (m *Manager) StartSamplingFilter(channelNos []int, filterCount, depth int) error {
	const op = "axai.HwStartMultiFilter"
	if filterCount < 1 {
		return axt.Errorf(axt.AIOInvalidValue, op, "filter count %d", filterCount)
	}
	return m.startSampling(op, channelNos, filterCount, depth)
}

func (m *Manager) startSampling(op string, channelNos []int, filterCount, depth int) error {
	ins := make([]*Input, len(channelNos))
	for i, no := range channelNos {
		in, err := m.Input(no)
		if err != nil {
			return err
		}
		ins[i] = in
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, in := range ins {
		if err := in.startLocked(op, filterCount, depth, TriggerTimer); err != nil {
			return err
		}
	}
	return nil
}

// StopSampling stops timer-mode streaming on every channel of a
// module.
func (m *Manager) StopSampling(moduleNo int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	ms, err := m.aioModule("axai.HwStopMultiChannel", moduleNo)
	if err != nil {
		return err
	}
	for _, in := range m.moduleInputsLocked(ms.mod) {
		in.active = false
	}
	return nil
}

// ExternalStart arms external-strobe conversion on module-local
// channel indexes.
func (m *Manager) ExternalStart(moduleNo int, channelPos []int) error {
	const op = "axai.ExternalStartADC"
	m.mu.Lock()
	defer m.mu.Unlock()
	ms, err := m.aioModule(op, moduleNo)
	if err != nil {
		return err
	}
	if ms.trigMode != TriggerExternal {
		return axt.Errorf(axt.AIOInvalidTrigger, op, "module %d in %v", moduleNo, ms.trigMode)
	}
	for _, pos := range channelPos {
		if pos < 0 || pos >= ms.mod.Info.AIChannels {
			return axt.Errorf(axt.AIOInvalidChannelNo, op, "channel index %d", pos)
		}
	}
	for _, pos := range channelPos {
		in := m.ins[ms.mod.FirstAI+pos]
		if err := in.startLocked(op, 1, hwFIFODepth, TriggerExternal); err != nil {
			return err
		}
	}
	return nil
}

// ExternalStop disarms external-strobe conversion on a module.
func (m *Manager) ExternalStop(moduleNo int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	ms, err := m.aioModule("axai.ExternalStopADC", moduleNo)
	if err != nil {
		return err
	}
	for _, in := range m.moduleInputsLocked(ms.mod) {
		in.active = false
	}
	return nil
}

// ExternalStrobe drives one external conversion edge: every armed
// channel of the module acquires one sample. It stands in for the
// field convert line.
func (m *Manager) ExternalStrobe(moduleNo int) error {
	const op = "axai.ExternalStrobe"
	m.mu.Lock()
	defer m.mu.Unlock()
	ms, err := m.aioModule(op, moduleNo)
	if err != nil {
		return err
	}
	if ms.trigMode != TriggerExternal {
		return axt.Errorf(axt.AIOInvalidTrigger, op, "module %d in %v", moduleNo, ms.trigMode)
	}
	now := m.rack.Now()
	for _, in := range m.moduleInputsLocked(ms.mod) {
		if in.active {
			in.pushLocked(in.acquireLocked(), now)
		}
	}
	return nil
}

// ExternalFIFOStatus summarizes the armed conversion buffers of a
// module.
func (m *Manager) ExternalFIFOStatus(moduleNo int) (FIFOStatus, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ms, err := m.aioModule("axai.ExternalReadFifoStatus", moduleNo)
	if err != nil {
		return 0, err
	}
	status := FIFODataEmpty
	for _, in := range m.moduleInputsLocked(ms.mod) {
		if !in.active {
			continue
		}
		n := len(in.fifo)
		switch {
		case n >= in.depth:
			return FIFODataFull, nil
		case n >= in.depth/2 && status != FIFODataFull:
			status = FIFODataHalf
		case n > 0 && status == FIFODataEmpty:
			status = FIFODataExist
		}
	}
	return status, nil
}

// ExternalRead drains up to max samples from each armed channel
// index, in volts.
func (m *Manager) ExternalRead(moduleNo int, channelPos []int, max int) ([][]float64, error) {
	const op = "axai.ExternalReadVoltage"
	m.mu.Lock()
	defer m.mu.Unlock()
	ms, err := m.aioModule(op, moduleNo)
	if err != nil {
		return nil, err
	}
	for _, pos := range channelPos {
		if pos < 0 || pos >= ms.mod.Info.AIChannels {
			return nil, axt.Errorf(axt.AIOInvalidChannelNo, op, "channel index %d", pos)
		}
	}
	data := make([][]float64, len(channelPos))
	total := 0
	for i, pos := range channelPos {
		in := m.ins[ms.mod.FirstAI+pos]
		data[i] = in.drainLocked(max)
		total += len(data[i])
	}
	if total == 0 {
		return nil, axt.Errorf(axt.AIOExternalDataEmpty, op, "module %d fifo empty", moduleNo)
	}
	return data, nil
}

// moduleInputsLocked returns the input channels of one module.
func (m *Manager) moduleInputsLocked(mod *board.Module) []*Input {
	return m.ins[mod.FirstAI : mod.FirstAI+mod.Info.AIChannels]
}

// tick advances output patterns first so timer sampling in the same
// step sees fresh loopback voltages.
func (m *Manager) tick(now, dt float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, out := range m.outs {
		out.tickLocked(dt)
	}
	for _, ms := range m.mods {
		if ms.trigMode != TriggerTimer {
			continue
		}
		ms.clockAcc += dt * ms.freq
		n := int(ms.clockAcc)
		if n == 0 {
			continue
		}
		ms.clockAcc -= float64(n)
		for _, in := range m.moduleInputsLocked(ms.mod) {
			if !in.active {
				continue
			}
			for i := 0; i < n; i++ {
				in.pushLocked(in.acquireLocked(), now)
			}
		}
	}
}
