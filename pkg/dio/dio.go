// Digital I/O: port images, level inversion, edge interrupts
//
// Copyright (C) 2026 Go binding
//
// This file may be distributed under the terms of the GNU GPLv3 license.

// Package dio drives the digital input and output contacts of the
// rack (AXD family). Each module carries an input image and an output
// image addressed in bit, byte, word, or dword units, with per-bit
// active-level inversion. Enabled input edges latch into the module's
// event bank as a mask of fired contacts. A module can run on the
// local virtual wiring or mirror a remote Modbus-TCP gateway device.
package dio

import (
	"strconv"
	"sync"

	"go.uber.org/zap"

	"axl-go/pkg/axt"
	"axl-go/pkg/board"
	"axl-go/pkg/event"
	"axl-go/pkg/vrack"
)

// EdgeMode selects the input transition an interrupt enable watches.
type EdgeMode int

const (
	// EdgeFalling watches on-to-off transitions.
	EdgeFalling EdgeMode = 0
	// EdgeRising watches off-to-on transitions.
	EdgeRising EdgeMode = 1
)

func (m EdgeMode) String() string {
	switch m {
	case EdgeFalling:
		return "DOWN_EDGE"
	case EdgeRising:
		return "UP_EDGE"
	}
	return "EDGE_" + strconv.Itoa(int(m))
}

// Level is the electrical level a contact reads as active.
type Level int

const (
	// LevelLow inverts the contact: electrically low reads on.
	LevelLow Level = 0
	// LevelHigh is the default direct sense.
	LevelHigh Level = 1
)

func (l Level) String() string {
	switch l {
	case LevelLow:
		return "LOW"
	case LevelHigh:
		return "HIGH"
	}
	return "LEVEL_" + strconv.Itoa(int(l))
}

// Access widths of the port image, in bits.
const (
	widthBit   = 1
	widthByte  = 8
	widthWord  = 16
	widthDword = 32
)

// dwordSlot maps one global dword offset of the whole-rack image onto
// a module-local dword.
type dwordSlot struct {
	mod   *Module
	local int
}

// Manager owns every digital module in the rack and services timed
// output jobs from the rack tick.
type Manager struct {
	log  *zap.Logger
	rack *vrack.Rack
	topo *board.Topology
	ev   *event.Manager

	mu     sync.Mutex
	mods   map[int]*Module
	order  []*Module // global scan order
	inMap  []dwordSlot
	outMap []dwordSlot
	tickID int
}

// New builds the port state for every digital module in the topology
// and attaches the service tick to the rack.
func New(log *zap.Logger, rack *vrack.Rack, topo *board.Topology, ev *event.Manager) *Manager {
	if log == nil {
		log = zap.NewNop()
	}
	m := &Manager{
		log:  log,
		rack: rack,
		topo: topo,
		ev:   ev,
		mods: make(map[int]*Module),
	}
	for _, mod := range topo.ModulesOfClass(board.ClassDIO) {
		d := &Module{
			m:       m,
			no:      mod.No,
			mod:     mod,
			inBits:  mod.Info.DIBits,
			outBits: mod.Info.DOBits,
		}
		m.mods[mod.No] = d
		m.order = append(m.order, d)
		for i := 0; i < (d.inBits+widthDword-1)/widthDword; i++ {
			m.inMap = append(m.inMap, dwordSlot{mod: d, local: i})
		}
		for i := 0; i < (d.outBits+widthDword-1)/widthDword; i++ {
			m.outMap = append(m.outMap, dwordSlot{mod: d, local: i})
		}
	}
	m.tickID = rack.RegisterTicker(m.tick)
	return m
}

// Close detaches the manager from the rack tick and stops any gateway
// refresh loops.
func (m *Manager) Close() {
	m.rack.UnregisterTicker(m.tickID)
	m.mu.Lock()
	gws := make([]*gateway, 0, len(m.order))
	for _, d := range m.order {
		if d.gw != nil {
			gws = append(gws, d.gw)
			d.gw = nil
		}
	}
	m.mu.Unlock()
	for _, gw := range gws {
		gw.stop()
	}
}

// Present reports whether the rack carries any digital module.
func (m *Manager) Present() bool { return len(m.order) > 0 }

// ModuleCount returns the number of digital modules.
func (m *Manager) ModuleCount() int { return len(m.order) }

// Module resolves a global module number to its digital port state.
func (m *Manager) Module(moduleNo int) (*Module, error) {
	d, ok := m.mods[moduleNo]
	if !ok {
		return nil, axt.Errorf(axt.DIOInvalidModuleNo, "axd.Module", "module %d", moduleNo)
	}
	return d, nil
}

// ModuleNo maps a board slot to the global module number of the
// digital module plugged there.
func (m *Manager) ModuleNo(boardNo, modulePos int) (int, error) {
	mod, err := m.topo.Module(boardNo, modulePos)
	if err != nil {
		return 0, err
	}
	if mod.Info.Class != board.ClassDIO {
		return 0, axt.Errorf(axt.DIONotModule, "axd.InfoGetModuleNo",
			"board %d pos %d is %s", boardNo, modulePos, mod.Info.Name)
	}
	return mod.No, nil
}

// ModulePlacement returns a digital module's board slot and type id.
func (m *Manager) ModulePlacement(moduleNo int) (boardNo, modulePos, moduleID int, err error) {
	d, err := m.Module(moduleNo)
	if err != nil {
		return 0, 0, 0, err
	}
	return d.mod.Board, d.mod.Pos, d.mod.Info.TypeID, nil
}

// InputCount returns a module's input contact count.
func (m *Manager) InputCount(moduleNo int) (int, error) {
	d, err := m.Module(moduleNo)
	if err != nil {
		return 0, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return d.inBits, nil
}

// OutputCount returns a module's output contact count.
func (m *Manager) OutputCount(moduleNo int) (int, error) {
	d, err := m.Module(moduleNo)
	if err != nil {
		return 0, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return d.outBits, nil
}

// ReadInport reads one dword of the whole-rack input image. Modules
// occupy dword-aligned slots in scan order.
func (m *Manager) ReadInport(dwordOffset int) (uint32, error) {
	const op = "axdi.ReadInport"
	if dwordOffset < 0 || dwordOffset >= len(m.inMap) {
		return 0, axt.Errorf(axt.DIOInvalidOffsetNo, op, "dword offset %d", dwordOffset)
	}
	slot := m.inMap[dwordOffset]
	m.mu.Lock()
	defer m.mu.Unlock()
	return slot.mod.chunkInLocked(op, slot.local, widthDword)
}

// ReadOutport reads one dword of the whole-rack output image.
func (m *Manager) ReadOutport(dwordOffset int) (uint32, error) {
	const op = "axdo.ReadOutport"
	if dwordOffset < 0 || dwordOffset >= len(m.outMap) {
		return 0, axt.Errorf(axt.DIOInvalidOffsetNo, op, "dword offset %d", dwordOffset)
	}
	slot := m.outMap[dwordOffset]
	m.mu.Lock()
	defer m.mu.Unlock()
	return slot.mod.chunkOutLocked(op, slot.local, widthDword)
}

// WriteOutport writes one dword of the whole-rack output image.
func (m *Manager) WriteOutport(dwordOffset int, value uint32) error {
	const op = "axdo.WriteOutport"
	if dwordOffset < 0 || dwordOffset >= len(m.outMap) {
		return axt.Errorf(axt.DIOInvalidOffsetNo, op, "dword offset %d", dwordOffset)
	}
	slot := m.outMap[dwordOffset]
	m.mu.Lock()
	defer m.mu.Unlock()
	return slot.mod.writeOutLocked(op, slot.local, widthDword, value)
}

// InterruptRead pops the pending edge mask of the first module with
// latched interrupt flags, in scan order.
func (m *Manager) InterruptRead() (moduleNo int, flags uint32, ok bool) {
	for _, d := range m.order {
		if bits := d.bank().ReadClear(); bits != 0 {
			return d.no, bits, true
		}
	}
	return -1, 0, false
}

// tick advances timed output jobs on the rack clock.
func (m *Manager) tick(now, dt float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, d := range m.order {
		d.tickJobsLocked(now)
	}
}
