// Counter channels: encoder counting, trigger compare, 2-D tables, PWM
//
// Copyright (C) 2026 Go binding
//
// This file may be distributed under the terms of the GNU GPLv3 license.

package counter

import (
	"strconv"
	"sync"

	"go.uber.org/zap"

	"axl-go/pkg/axt"
	"axl-go/pkg/board"
	"axl-go/pkg/event"
	"axl-go/pkg/vrack"
)

// TriggerFunc selects what a channel's trigger comparator watches.
type TriggerFunc int

const (
	// TriggerNone leaves the comparator idle.
	TriggerNone TriggerFunc = 0
	// TriggerNotch fires when the count crosses either notch position.
	TriggerNotch TriggerFunc = 1
	// TriggerPeriodicPos fires every period units inside the block
	// range, subject to the direction filter.
	TriggerPeriodicPos TriggerFunc = 2
	// TriggerAbs fires at each position of the absolute table, subject
	// to the table's direction filter.
	TriggerAbs TriggerFunc = 3
	// TriggerPeriodicTime fires at the configured frequency regardless
	// of position.
	TriggerPeriodicTime TriggerFunc = 4
)

func (f TriggerFunc) String() string {
	switch f {
	case TriggerNone:
		return "TRIGGER_NONE"
	case TriggerNotch:
		return "TRIGGER_NOTCH"
	case TriggerPeriodicPos:
		return "TRIGGER_PERIODIC_POS"
	case TriggerAbs:
		return "TRIGGER_ABS"
	case TriggerPeriodicTime:
		return "TRIGGER_PERIODIC_TIME"
	}
	return "TRIGGER_FUNC_" + strconv.Itoa(int(f))
}

// Direction filters position triggers by travel direction.
type Direction int

const (
	DirBoth Direction = 0
	DirInc  Direction = 1
	DirDec  Direction = 2
)

func (d Direction) String() string {
	switch d {
	case DirBoth:
		return "DIR_BOTH"
	case DirInc:
		return "DIR_INC"
	case DirDec:
		return "DIR_DEC"
	}
	return "DIR_" + strconv.Itoa(int(d))
}

// EncSource selects which encoder line a channel counts.
type EncSource int

const (
	SourceAB EncSource = 0 // quadrature A/B input
	SourceZ  EncSource = 1 // index (Z) pulses
)

// Channel status word bits.
const (
	StatusTriggerEnabled uint32 = 0x01
	StatusOutputActive   uint32 = 0x02
	StatusCaptured       uint32 = 0x04
	StatusTimeout        uint32 = 0x08
	StatusPWMEnabled     uint32 = 0x10
)

// Manager owns every counter channel and 2-D trigger table in the
// rack and services them from the rack tick.
type Manager struct {
	log  *zap.Logger
	rack *vrack.Rack
	topo *board.Topology
	ev   *event.Manager

	mu       sync.Mutex
	channels []*Channel
	tables   map[int][]*Table // module number -> trigger tables
	tickID   int
}

// New builds the channel and table state for every counter module in
// the topology and attaches the service tick to the rack.
func New(log *zap.Logger, rack *vrack.Rack, topo *board.Topology, ev *event.Manager) *Manager {
	if log == nil {
		log = zap.NewNop()
	}
	m := &Manager{
		log:    log,
		rack:   rack,
		topo:   topo,
		ev:     ev,
		tables: make(map[int][]*Table),
	}
	for no := 0; no < topo.CounterChannelCount(); no++ {
		mod, local, _ := topo.CounterChannelModule(no)
		c := &Channel{
			m:       m,
			no:      no,
			mod:     mod,
			local:   local,
			srcAxis: -1,
			method:  1,
			upp:     1,
		}
		if mod.Info.PWMChannels > 0 {
			c.pwm = &pwmState{}
		}
		m.channels = append(m.channels, c)
	}
	for _, mod := range topo.ModulesOfClass(board.ClassCounter) {
		if mod.Info.TriggerTables == 0 {
			continue
		}
		ts := make([]*Table, mod.Info.TriggerTables)
		for i := range ts {
			ts[i] = &Table{m: m, mod: mod, pos: i, enc1: 0, enc2: 1, timeUs: 500}
		}
		m.tables[mod.No] = ts
	}
	m.tickID = rack.RegisterTicker(m.tick)
	return m
}

// Close detaches the manager from the rack tick.
func (m *Manager) Close() {
	m.rack.UnregisterTicker(m.tickID)
}

// ChannelCount returns the number of counter channels in the rack.
func (m *Manager) ChannelCount() int { return len(m.channels) }

// ModuleCount returns the number of counter modules in the rack.
func (m *Manager) ModuleCount() int {
	return m.topo.ClassModuleCount(board.ClassCounter)
}

// Channel resolves a global counter channel number.
func (m *Manager) Channel(channelNo int) (*Channel, error) {
	if channelNo < 0 || channelNo >= len(m.channels) {
		return nil, axt.Errorf(axt.CNTInvalidChannelNo, "axc.Channel", "channel %d", channelNo)
	}
	return m.channels[channelNo], nil
}

// Table resolves one 2-D trigger table of a counter module.
func (m *Manager) Table(moduleNo, tablePos int) (*Table, error) {
	const op = "axc.Table"
	ts, ok := m.tables[moduleNo]
	if !ok {
		mod, err := m.topo.ModuleByNo(moduleNo)
		if err != nil || mod.Info.Class != board.ClassCounter {
			return nil, axt.Errorf(axt.CNTInvalidModuleNo, op, "module %d", moduleNo)
		}
		return nil, axt.Errorf(axt.CNTInvalidUse, op,
			"module %d (%s) has no trigger tables", moduleNo, mod.Info.Name)
	}
	if tablePos < 0 || tablePos >= len(ts) {
		return nil, axt.Errorf(axt.CNTInvalidTablePos, op, "table %d", tablePos)
	}
	return ts[tablePos], nil
}

// FirstChannelOfModule returns the global number of a counter module's
// first channel.
func (m *Manager) FirstChannelOfModule(moduleNo int) (int, error) {
	mod, err := m.topo.ModuleByNo(moduleNo)
	if err != nil || mod.Info.Class != board.ClassCounter {
		return 0, axt.Errorf(axt.CNTInvalidModuleNo, "axc.Info", "module %d", moduleNo)
	}
	return mod.FirstChannel, nil
}

// ModuleOfChannel returns the global module number owning a channel.
func (m *Manager) ModuleOfChannel(channelNo int) (int, error) {
	mod, _, err := m.topo.CounterChannelModule(channelNo)
	if err != nil {
		return 0, err
	}
	return mod.No, nil
}

// tick runs the per-step service pass: counts and channel triggers
// first, then PWM on the fresh velocities, then the 2-D tables on the
// fresh positions.
func (m *Manager) tick(now, dt float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range m.channels {
		c.updateLocked(now, dt)
	}
	for _, c := range m.channels {
		if c.pwm != nil {
			c.pwmTickLocked()
		}
	}
	for _, ts := range m.tables {
		for _, t := range ts {
			t.tickLocked(now, dt)
		}
	}
}

// channelAt returns a module-local channel without validation; callers
// hold m.mu and have checked the index.
func (m *Manager) channelAt(mod *board.Module, local int) *Channel {
	return m.channels[mod.FirstChannel+local]
}
