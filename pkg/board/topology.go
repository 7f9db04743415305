// Rack topology and identifier assignment
//
// Copyright (C) 2026 Go binding
//
// This file may be distributed under the terms of the GNU GPLv3 license.

package board

import (
	"axl-go/pkg/axt"
)

// Module is one plugged module with the numbering assigned at rack
// build time.
type Module struct {
	No    int // global module number, board scan order
	Board int // owning board number
	Pos   int // slot position on the board
	Info  ModuleInfo

	ClassNo int // index among modules of the same class

	FirstAxis    int // first global axis number (motion class)
	AxisCount    int
	FirstChannel int // first global counter channel (counter class)
	FirstAI      int // first global analog input channel
	FirstAO      int // first global analog output channel
}

// Board is one controller card.
type Board struct {
	No      int
	TypeID  int
	Address uint32
	Version string
	Modules []*Module
}

// Topology is the immutable identifier space built from a layout:
// every board, module, axis, and channel number the rest of the
// library accepts.
type Topology struct {
	boards  []*Board
	modules []*Module

	axisOwner []*Module // axis number -> owning module
	cntOwner  []*Module // counter channel -> owning module
	aiOwner   []*Module // analog input channel -> owning module
	aoOwner   []*Module // analog output channel -> owning module

	classCount map[ModuleClass]int
}

// New assigns numbering over a layout. Axis overrides are honored only
// on motion modules.
func New(layout Layout) (*Topology, error) {
	const op = "axl.Open"

	t := &Topology{classCount: make(map[ModuleClass]int)}
	for bi, bl := range layout.Boards {
		b := &Board{
			No:      bi,
			TypeID:  VirtualBoard,
			Address: bl.Address,
			Version: "3.30",
		}
		for pos, ml := range bl.Modules {
			info, ok := Lookup(ml.Type)
			if !ok {
				return nil, axt.Errorf(axt.InvalidHardware, op,
					"board %d pos %d: unknown module type %q", bi, pos, ml.Type)
			}
			if ml.Axes > 0 {
				if info.Class != ClassMotion {
					return nil, axt.Errorf(axt.BadParameter, op,
						"board %d pos %d: axis count on non-motion module %s", bi, pos, ml.Type)
				}
				info.Axes = ml.Axes
			}

			m := &Module{
				No:      len(t.modules),
				Board:   bi,
				Pos:     pos,
				Info:    info,
				ClassNo: t.classCount[info.Class],
			}
			t.classCount[info.Class]++

			switch info.Class {
			case ClassMotion:
				m.FirstAxis = len(t.axisOwner)
				m.AxisCount = info.Axes
				for i := 0; i < info.Axes; i++ {
					t.axisOwner = append(t.axisOwner, m)
				}
			case ClassCounter:
				m.FirstChannel = len(t.cntOwner)
				for i := 0; i < info.Channels; i++ {
					t.cntOwner = append(t.cntOwner, m)
				}
			case ClassAIO:
				m.FirstAI = len(t.aiOwner)
				m.FirstAO = len(t.aoOwner)
				for i := 0; i < info.AIChannels; i++ {
					t.aiOwner = append(t.aiOwner, m)
				}
				for i := 0; i < info.AOChannels; i++ {
					t.aoOwner = append(t.aoOwner, m)
				}
			}

			t.modules = append(t.modules, m)
			b.Modules = append(b.Modules, m)
		}
		t.boards = append(t.boards, b)
	}
	if len(t.boards) == 0 {
		return nil, axt.Errorf(axt.InvalidHardware, op, "layout has no boards")
	}
	return t, nil
}

// BoardCount returns the number of detected boards.
func (t *Topology) BoardCount() int { return len(t.boards) }

func (t *Topology) board(boardNo int) (*Board, error) {
	if boardNo < 0 || boardNo >= len(t.boards) {
		return nil, axt.Errorf(axt.InvalidBoardNo, "axl.GetBoard", "board %d", boardNo)
	}
	return t.boards[boardNo], nil
}

// Board returns one board's descriptor.
func (t *Topology) Board(boardNo int) (*Board, error) {
	return t.board(boardNo)
}

// BoardAddress returns the bus base address of a board.
func (t *Topology) BoardAddress(boardNo int) (uint32, error) {
	b, err := t.board(boardNo)
	if err != nil {
		return 0, err
	}
	return b.Address, nil
}

// BoardID returns the board type identifier.
func (t *Topology) BoardID(boardNo int) (int, error) {
	b, err := t.board(boardNo)
	if err != nil {
		return 0, err
	}
	return b.TypeID, nil
}

// BoardVersion returns the board firmware revision string.
func (t *Topology) BoardVersion(boardNo int) (string, error) {
	b, err := t.board(boardNo)
	if err != nil {
		return "", err
	}
	return b.Version, nil
}

// ModuleCount returns how many modules a board carries.
func (t *Topology) ModuleCount(boardNo int) (int, error) {
	b, err := t.board(boardNo)
	if err != nil {
		return 0, err
	}
	return len(b.Modules), nil
}

// TotalModuleCount returns the module count across all boards.
func (t *Topology) TotalModuleCount() int { return len(t.modules) }

// Module returns the module in a board slot.
func (t *Topology) Module(boardNo, modulePos int) (*Module, error) {
	b, err := t.board(boardNo)
	if err != nil {
		return nil, err
	}
	if modulePos < 0 || modulePos >= len(b.Modules) {
		return nil, axt.Errorf(axt.InvalidModulePos, "axl.GetModule",
			"board %d pos %d", boardNo, modulePos)
	}
	return b.Modules[modulePos], nil
}

// ModuleByNo returns a module by its global number.
func (t *Topology) ModuleByNo(moduleNo int) (*Module, error) {
	if moduleNo < 0 || moduleNo >= len(t.modules) {
		return nil, axt.Errorf(axt.InvalidModuleNo, "axl.GetModule", "module %d", moduleNo)
	}
	return t.modules[moduleNo], nil
}

// ModuleID returns the module type identifier in a board slot.
func (t *Topology) ModuleID(boardNo, modulePos int) (int, error) {
	m, err := t.Module(boardNo, modulePos)
	if err != nil {
		return 0, err
	}
	return m.Info.TypeID, nil
}

// ModuleVersion returns the module revision string.
func (t *Topology) ModuleVersion(boardNo, modulePos int) (string, error) {
	m, err := t.Module(boardNo, modulePos)
	if err != nil {
		return "", err
	}
	return m.Info.Version, nil
}

// ModulesOfClass lists the modules of one class in global scan order.
func (t *Topology) ModulesOfClass(class ModuleClass) []*Module {
	var out []*Module
	for _, m := range t.modules {
		if m.Info.Class == class {
			out = append(out, m)
		}
	}
	return out
}

// ClassModuleCount returns how many modules of a class are present.
func (t *Topology) ClassModuleCount(class ModuleClass) int {
	return t.classCount[class]
}

// AxisCount returns the total number of motion axes.
func (t *Topology) AxisCount() int { return len(t.axisOwner) }

// IsValidAxis reports whether a physical axis number exists.
func (t *Topology) IsValidAxis(axisNo int) bool {
	return axisNo >= 0 && axisNo < len(t.axisOwner)
}

// AxisModule returns the module owning a physical axis.
func (t *Topology) AxisModule(axisNo int) (*Module, error) {
	if !t.IsValidAxis(axisNo) {
		return nil, axt.Errorf(axt.MotionInvalidAxisNo, "axm.InfoGetAxis", "axis %d", axisNo)
	}
	return t.axisOwner[axisNo], nil
}

// AxisInfo maps a physical axis to (board, module position, module
// type ID).
func (t *Topology) AxisInfo(axisNo int) (boardNo, modulePos, moduleID int, err error) {
	m, err := t.AxisModule(axisNo)
	if err != nil {
		return 0, 0, 0, err
	}
	return m.Board, m.Pos, m.Info.TypeID, nil
}

// AxisCountOfBoard returns how many axes a board carries.
func (t *Topology) AxisCountOfBoard(boardNo int) (int, error) {
	b, err := t.board(boardNo)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, m := range b.Modules {
		n += m.AxisCount
	}
	return n, nil
}

// AxisCountOfModule returns how many axes one module slot carries.
func (t *Topology) AxisCountOfModule(boardNo, modulePos int) (int, error) {
	m, err := t.Module(boardNo, modulePos)
	if err != nil {
		return 0, err
	}
	return m.AxisCount, nil
}

// FirstAxisNo returns the first global axis number of a module slot.
func (t *Topology) FirstAxisNo(boardNo, modulePos int) (int, error) {
	m, err := t.Module(boardNo, modulePos)
	if err != nil {
		return 0, err
	}
	if m.Info.Class != ClassMotion || m.AxisCount == 0 {
		return 0, axt.Errorf(axt.MotionNotModule, "axm.InfoGetFirstAxisNo",
			"board %d pos %d is %s", boardNo, modulePos, m.Info.Class)
	}
	return m.FirstAxis, nil
}

// IsMotionModule reports whether a module slot is served by the motion
// surface.
func (t *Topology) IsMotionModule(boardNo, modulePos int) (bool, error) {
	m, err := t.Module(boardNo, modulePos)
	if err != nil {
		return false, err
	}
	return m.Info.Class == ClassMotion, nil
}

// IsDIOModule reports whether a module slot is served by the digital
// I/O surface.
func (t *Topology) IsDIOModule(boardNo, modulePos int) (bool, error) {
	m, err := t.Module(boardNo, modulePos)
	if err != nil {
		return false, err
	}
	return m.Info.Class == ClassDIO, nil
}

// IsAIOModule reports whether a module slot is served by the analog
// surface.
func (t *Topology) IsAIOModule(boardNo, modulePos int) (bool, error) {
	m, err := t.Module(boardNo, modulePos)
	if err != nil {
		return false, err
	}
	return m.Info.Class == ClassAIO, nil
}

// IsCNTModule reports whether a module slot is served by the counter
// surface.
func (t *Topology) IsCNTModule(boardNo, modulePos int) (bool, error) {
	m, err := t.Module(boardNo, modulePos)
	if err != nil {
		return false, err
	}
	return m.Info.Class == ClassCounter, nil
}

// CounterChannelCount returns the total number of counter channels.
func (t *Topology) CounterChannelCount() int { return len(t.cntOwner) }

// CounterChannelModule maps a global counter channel to its module and
// the channel index local to that module.
func (t *Topology) CounterChannelModule(channelNo int) (*Module, int, error) {
	if channelNo < 0 || channelNo >= len(t.cntOwner) {
		return nil, 0, axt.Errorf(axt.CNTInvalidChannelNo, "axc.Info", "channel %d", channelNo)
	}
	m := t.cntOwner[channelNo]
	return m, channelNo - m.FirstChannel, nil
}

// AIChannelCount returns the total number of analog input channels.
func (t *Topology) AIChannelCount() int { return len(t.aiOwner) }

// AIChannelModule maps a global analog input channel to its module and
// local index.
func (t *Topology) AIChannelModule(channelNo int) (*Module, int, error) {
	if channelNo < 0 || channelNo >= len(t.aiOwner) {
		return nil, 0, axt.Errorf(axt.AIOInvalidChannelNo, "axa.Info", "input channel %d", channelNo)
	}
	m := t.aiOwner[channelNo]
	return m, channelNo - m.FirstAI, nil
}

// AOChannelCount returns the total number of analog output channels.
func (t *Topology) AOChannelCount() int { return len(t.aoOwner) }

// AOChannelModule maps a global analog output channel to its module
// and local index.
func (t *Topology) AOChannelModule(channelNo int) (*Module, int, error) {
	if channelNo < 0 || channelNo >= len(t.aoOwner) {
		return nil, 0, axt.Errorf(axt.AIOInvalidChannelNo, "axa.Info", "output channel %d", channelNo)
	}
	m := t.aoOwner[channelNo]
	return m, channelNo - m.FirstAO, nil
}
