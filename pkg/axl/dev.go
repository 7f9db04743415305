// Low-level board diagnostics (AXDev family)
//
// Copyright (C) 2026 Go binding
//
// This file may be distributed under the terms of the GNU GPLv3 license.

package axl

import (
	"axl-go/pkg/board"
)

// DevReadRegister peeks one register of a board's address window. The
// offset is byte-addressed within the board's bus window.
func (l *Library) DevReadRegister(boardNo int, offset uint32) (uint32, error) {
	base, err := l.topo.BoardAddress(boardNo)
	if err != nil {
		return 0, err
	}
	return l.rack.ReadRegister(base + offset), nil
}

// DevWriteRegister pokes one register of a board's address window.
func (l *Library) DevWriteRegister(boardNo int, offset, value uint32) error {
	base, err := l.topo.BoardAddress(boardNo)
	if err != nil {
		return err
	}
	l.rack.WriteRegister(base+offset, value)
	return nil
}

// ModuleDump is one line of the rack inventory.
type ModuleDump struct {
	ModuleNo int
	BoardNo  int
	Pos      int
	TypeID   int
	Name     string
	Class    string
	Version  string
}

// DevModuleDump lists every module of the open rack in scan order.
func (l *Library) DevModuleDump() []ModuleDump {
	var dump []ModuleDump
	for b := 0; b < l.topo.BoardCount(); b++ {
		n, _ := l.topo.ModuleCount(b)
		for pos := 0; pos < n; pos++ {
			mod, err := l.topo.Module(b, pos)
			if err != nil {
				continue
			}
			dump = append(dump, ModuleDump{
				ModuleNo: mod.No,
				BoardNo:  mod.Board,
				Pos:      mod.Pos,
				TypeID:   mod.Info.TypeID,
				Name:     mod.Info.Name,
				Class:    mod.Info.Class.String(),
				Version:  mod.Info.Version,
			})
		}
	}
	return dump
}

// DevBoardVersion reads a board's firmware version string.
func (l *Library) DevBoardVersion(boardNo int) (string, error) {
	return l.topo.BoardVersion(boardNo)
}

// ClassCount returns how many modules of one class the rack carries.
func (l *Library) ClassCount(class board.ModuleClass) int {
	return l.topo.ClassModuleCount(class)
}
