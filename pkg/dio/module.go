// Per-module digital port state and image access
//
// Copyright (C) 2026 Go binding
//
// This file may be distributed under the terms of the GNU GPLv3 license.

package dio

import (
	"axl-go/pkg/axt"
	"axl-go/pkg/board"
	"axl-go/pkg/event"
)

// Module is the digital port state of one rack module. The input and
// output images are logical: active-level inversion is applied between
// them and the physical wiring.
type Module struct {
	m   *Manager
	no  int
	mod *board.Module

	inBits  int // usable input contacts
	outBits int // usable output contacts

	physIn uint32 // last applied field input image
	in     uint32 // logical input image
	out    uint32 // logical output image
	invIn  uint32 // active-low input contacts
	invOut uint32 // active-low output contacts

	intrOn    bool
	riseEn    uint32
	fallEn    uint32
	riseLatch uint32
	fallLatch uint32

	onStreak  map[int]int
	offStreak map[int]int
	pulses    map[int]*pulseJob
	toggles   map[int]*toggleJob

	outDirty bool
	gw       *gateway
}

// No returns the global module number.
func (d *Module) No() int { return d.no }

// Info returns the module's catalog entry.
func (d *Module) Info() board.ModuleInfo { return d.mod.Info }

func (d *Module) bank() *event.Bank {
	return d.m.ev.Bank(event.DIOBank(d.no))
}

func mask(n int) uint32 {
	if n >= widthDword {
		return ^uint32(0)
	}
	return 1<<uint(n) - 1
}

// checkChunk validates an image offset for one access width.
func checkChunk(op string, offset, w, bits int) error {
	if offset < 0 || offset*w >= bits {
		return axt.Errorf(axt.DIOInvalidOffsetNo, op, "offset %d (width %d, %d contacts)", offset, w, bits)
	}
	return nil
}

func (d *Module) chunkInLocked(op string, offset, w int) (uint32, error) {
	if err := checkChunk(op, offset, w, d.inBits); err != nil {
		return 0, err
	}
	return d.in >> uint(offset*w) & mask(w), nil
}

func (d *Module) chunkOutLocked(op string, offset, w int) (uint32, error) {
	if err := checkChunk(op, offset, w, d.outBits); err != nil {
		return 0, err
	}
	return d.out >> uint(offset*w) & mask(w), nil
}

func (d *Module) writeOutLocked(op string, offset, w int, value uint32) error {
	if err := checkChunk(op, offset, w, d.outBits); err != nil {
		return err
	}
	if value > mask(w) {
		return axt.Errorf(axt.DIOInvalidValue, op, "value %#x exceeds width %d", value, w)
	}
	sh := uint(offset * w)
	d.out = (d.out&^(mask(w)<<sh) | value<<sh) & mask(d.outBits)
	d.outDirty = true
	return nil
}

// applyInputLocked admits a new field input image: recomputes the
// logical image, latches edges, and posts enabled ones to the event
// bank.
func (d *Module) applyInputLocked(phys uint32, now float64) {
	d.physIn = phys & mask(d.inBits)
	logical := (d.physIn ^ d.invIn) & mask(d.inBits)
	rising := logical &^ d.in
	falling := d.in &^ logical
	d.in = logical
	d.riseLatch |= rising
	d.fallLatch |= falling
	if d.intrOn {
		if fired := rising&d.riseEn | falling&d.fallEn; fired != 0 {
			d.bank().Raise(fired, now)
		}
	}
}

// Inject drives the module's field input image, the virtual stand-in
// for the wiring or the gateway device.
func (d *Module) Inject(phys uint32) {
	d.m.mu.Lock()
	defer d.m.mu.Unlock()
	d.applyInputLocked(phys, d.m.rack.Now())
}

// ReadInBit reads one logical input contact.
func (d *Module) ReadInBit(offset int) (bool, error) {
	d.m.mu.Lock()
	defer d.m.mu.Unlock()
	v, err := d.chunkInLocked("axdi.ReadInportBit", offset, widthBit)
	return v != 0, err
}

// ReadInByte reads eight input contacts at a byte offset.
func (d *Module) ReadInByte(offset int) (uint32, error) {
	d.m.mu.Lock()
	defer d.m.mu.Unlock()
	return d.chunkInLocked("axdi.ReadInportByte", offset, widthByte)
}

// ReadInWord reads sixteen input contacts at a word offset.
func (d *Module) ReadInWord(offset int) (uint32, error) {
	d.m.mu.Lock()
	defer d.m.mu.Unlock()
	return d.chunkInLocked("axdi.ReadInportWord", offset, widthWord)
}

// ReadInDword reads thirty-two input contacts at a dword offset.
func (d *Module) ReadInDword(offset int) (uint32, error) {
	d.m.mu.Lock()
	defer d.m.mu.Unlock()
	return d.chunkInLocked("axdi.ReadInportDword", offset, widthDword)
}

// WriteOutBit drives one logical output contact.
func (d *Module) WriteOutBit(offset int, on bool) error {
	d.m.mu.Lock()
	defer d.m.mu.Unlock()
	var v uint32
	if on {
		v = 1
	}
	return d.writeOutLocked("axdo.WriteOutportBit", offset, widthBit, v)
}

// WriteOutByte drives eight output contacts at a byte offset.
func (d *Module) WriteOutByte(offset int, value uint32) error {
	d.m.mu.Lock()
	defer d.m.mu.Unlock()
	return d.writeOutLocked("axdo.WriteOutportByte", offset, widthByte, value)
}

// WriteOutWord drives sixteen output contacts at a word offset.
func (d *Module) WriteOutWord(offset int, value uint32) error {
	d.m.mu.Lock()
	defer d.m.mu.Unlock()
	return d.writeOutLocked("axdo.WriteOutportWord", offset, widthWord, value)
}

// WriteOutDword drives thirty-two output contacts at a dword offset.
func (d *Module) WriteOutDword(offset int, value uint32) error {
	d.m.mu.Lock()
	defer d.m.mu.Unlock()
	return d.writeOutLocked("axdo.WriteOutportDword", offset, widthDword, value)
}

// ReadOutBit returns one logical output contact as last written.
func (d *Module) ReadOutBit(offset int) (bool, error) {
	d.m.mu.Lock()
	defer d.m.mu.Unlock()
	v, err := d.chunkOutLocked("axdo.ReadOutportBit", offset, widthBit)
	return v != 0, err
}

// ReadOutByte returns eight output contacts at a byte offset.
func (d *Module) ReadOutByte(offset int) (uint32, error) {
	d.m.mu.Lock()
	defer d.m.mu.Unlock()
	return d.chunkOutLocked("axdo.ReadOutportByte", offset, widthByte)
}

// ReadOutWord returns sixteen output contacts at a word offset.
func (d *Module) ReadOutWord(offset int) (uint32, error) {
	d.m.mu.Lock()
	defer d.m.mu.Unlock()
	return d.chunkOutLocked("axdo.ReadOutportWord", offset, widthWord)
}

// ReadOutDword returns thirty-two output contacts at a dword offset.
func (d *Module) ReadOutDword(offset int) (uint32, error) {
	d.m.mu.Lock()
	defer d.m.mu.Unlock()
	return d.chunkOutLocked("axdo.ReadOutportDword", offset, widthDword)
}

// setLevelChunk updates an inversion mask chunk from a level mask,
// where a set level bit means direct (active-high) sense.
func setLevelChunk(inv *uint32, offset, w int, levels uint32) {
	sh := uint(offset * w)
	*inv = *inv&^(mask(w)<<sh) | (^levels&mask(w))<<sh
}

// SetInLevelBit selects the active level of one input contact.
func (d *Module) SetInLevelBit(offset int, level Level) error {
	const op = "axdi.LevelSetInportBit"
	if level != LevelLow && level != LevelHigh {
		return axt.Errorf(axt.DIOInvalidLevel, op, "level %d", level)
	}
	d.m.mu.Lock()
	defer d.m.mu.Unlock()
	if err := checkChunk(op, offset, widthBit, d.inBits); err != nil {
		return err
	}
	setLevelChunk(&d.invIn, offset, widthBit, uint32(level))
	// re-derive the logical image without treating the sense change
	// as a field edge
	d.in = (d.physIn ^ d.invIn) & mask(d.inBits)
	return nil
}

// SetInLevelByte selects active levels for eight input contacts; a
// set bit keeps direct sense.
func (d *Module) SetInLevelByte(offset int, levels uint32) error {
	return d.setInLevels("axdi.LevelSetInportByte", offset, widthByte, levels)
}

// SetInLevelWord selects active levels for sixteen input contacts.
func (d *Module) SetInLevelWord(offset int, levels uint32) error {
	return d.setInLevels("axdi.LevelSetInportWord", offset, widthWord, levels)
}

// SetInLevelDword selects active levels for thirty-two input contacts.
func (d *Module) SetInLevelDword(offset int, levels uint32) error {
	return d.setInLevels("axdi.LevelSetInportDword", offset, widthDword, levels)
}

func (d *Module) setInLevels(op string, offset, w int, levels uint32) error {
	if levels > mask(w) {
		return axt.Errorf(axt.DIOInvalidValue, op, "levels %#x exceed width %d", levels, w)
	}
	d.m.mu.Lock()
	defer d.m.mu.Unlock()
	if err := checkChunk(op, offset, w, d.inBits); err != nil {
		return err
	}
	setLevelChunk(&d.invIn, offset, w, levels)
	d.in = (d.physIn ^ d.invIn) & mask(d.inBits)
	return nil
}

// InLevelBit returns the active level of one input contact.
func (d *Module) InLevelBit(offset int) (Level, error) {
	d.m.mu.Lock()
	defer d.m.mu.Unlock()
	if err := checkChunk("axdi.LevelGetInportBit", offset, widthBit, d.inBits); err != nil {
		return 0, err
	}
	if d.invIn>>uint(offset)&1 != 0 {
		return LevelLow, nil
	}
	return LevelHigh, nil
}

// InLevelByte returns the active levels of eight input contacts.
func (d *Module) InLevelByte(offset int) (uint32, error) {
	return d.getInLevels("axdi.LevelGetInportByte", offset, widthByte)
}

// InLevelWord returns the active levels of sixteen input contacts.
func (d *Module) InLevelWord(offset int) (uint32, error) {
	return d.getInLevels("axdi.LevelGetInportWord", offset, widthWord)
}

// InLevelDword returns the active levels of thirty-two input contacts.
func (d *Module) InLevelDword(offset int) (uint32, error) {
	return d.getInLevels("axdi.LevelGetInportDword", offset, widthDword)
}

func (d *Module) getInLevels(op string, offset, w int) (uint32, error) {
	d.m.mu.Lock()
	defer d.m.mu.Unlock()
	if err := checkChunk(op, offset, w, d.inBits); err != nil {
		return 0, err
	}
	return ^(d.invIn >> uint(offset*w)) & mask(w), nil
}

// SetOutLevelBit selects the active level of one output contact. The
// logical readback keeps the written value; the gateway image carries
// the inverted drive.
func (d *Module) SetOutLevelBit(offset int, level Level) error {
	const op = "axdo.LevelSetOutportBit"
	if level != LevelLow && level != LevelHigh {
		return axt.Errorf(axt.DIOInvalidLevel, op, "level %d", level)
	}
	d.m.mu.Lock()
	defer d.m.mu.Unlock()
	if err := checkChunk(op, offset, widthBit, d.outBits); err != nil {
		return err
	}
	setLevelChunk(&d.invOut, offset, widthBit, uint32(level))
	d.outDirty = true
	return nil
}

// SetOutLevelByte selects active levels for eight output contacts.
func (d *Module) SetOutLevelByte(offset int, levels uint32) error {
	return d.setOutLevels("axdo.LevelSetOutportByte", offset, widthByte, levels)
}

// SetOutLevelWord selects active levels for sixteen output contacts.
func (d *Module) SetOutLevelWord(offset int, levels uint32) error {
	return d.setOutLevels("axdo.LevelSetOutportWord", offset, widthWord, levels)
}

// SetOutLevelDword selects active levels for thirty-two output
// contacts.
func (d *Module) SetOutLevelDword(offset int, levels uint32) error {
	return d.setOutLevels("axdo.LevelSetOutportDword", offset, widthDword, levels)
}

func (d *Module) setOutLevels(op string, offset, w int, levels uint32) error {
	if levels > mask(w) {
		return axt.Errorf(axt.DIOInvalidValue, op, "levels %#x exceed width %d", levels, w)
	}
	d.m.mu.Lock()
	defer d.m.mu.Unlock()
	if err := checkChunk(op, offset, w, d.outBits); err != nil {
		return err
	}
	setLevelChunk(&d.invOut, offset, w, levels)
	d.outDirty = true
	return nil
}

// OutLevelBit returns the active level of one output contact.
func (d *Module) OutLevelBit(offset int) (Level, error) {
	d.m.mu.Lock()
	defer d.m.mu.Unlock()
	if err := checkChunk("axdo.LevelGetOutportBit", offset, widthBit, d.outBits); err != nil {
		return 0, err
	}
	if d.invOut>>uint(offset)&1 != 0 {
		return LevelLow, nil
	}
	return LevelHigh, nil
}

// OutLevelByte returns the active levels of eight output contacts.
func (d *Module) OutLevelByte(offset int) (uint32, error) {
	return d.getOutLevels("axdo.LevelGetOutportByte", offset, widthByte)
}

// OutLevelWord returns the active levels of sixteen output contacts.
func (d *Module) OutLevelWord(offset int) (uint32, error) {
	return d.getOutLevels("axdo.LevelGetOutportWord", offset, widthWord)
}

// OutLevelDword returns the active levels of thirty-two output
// contacts.
func (d *Module) OutLevelDword(offset int) (uint32, error) {
	return d.getOutLevels("axdo.LevelGetOutportDword", offset, widthDword)
}

func (d *Module) getOutLevels(op string, offset, w int) (uint32, error) {
	d.m.mu.Lock()
	defer d.m.mu.Unlock()
	if err := checkChunk(op, offset, w, d.outBits); err != nil {
		return 0, err
	}
	return ^(d.invOut >> uint(offset*w)) & mask(w), nil
}

// SetInterruptEnable arms or disarms edge interrupt posting for the
// module.
func (d *Module) SetInterruptEnable(on bool) error {
	if d.mod.Info.DIBits == 0 {
		return axt.Errorf(axt.DIONotInterrupt, "axdi.InterruptSetModuleEnable",
			"module %d (%s) has no inputs", d.no, d.mod.Info.Name)
	}
	d.m.mu.Lock()
	defer d.m.mu.Unlock()
	d.intrOn = on
	return nil
}

// InterruptEnabled reports whether edge interrupts post.
func (d *Module) InterruptEnabled() bool {
	d.m.mu.Lock()
	defer d.m.mu.Unlock()
	return d.intrOn
}

// SetEdgeBit arms one input contact for rising or falling edge
// interrupts.
func (d *Module) SetEdgeBit(offset int, mode EdgeMode, on bool) error {
	var v uint32
	if on {
		v = 1
	}
	return d.setEdges("axdi.InterruptEdgeSetBit", offset, widthBit, mode, v)
}

// SetEdgeByte arms eight input contacts from an edge enable mask.
func (d *Module) SetEdgeByte(offset int, mode EdgeMode, enable uint32) error {
	return d.setEdges("axdi.InterruptEdgeSetByte", offset, widthByte, mode, enable)
}

// SetEdgeWord arms sixteen input contacts from an edge enable mask.
func (d *Module) SetEdgeWord(offset int, mode EdgeMode, enable uint32) error {
	return d.setEdges("axdi.InterruptEdgeSetWord", offset, widthWord, mode, enable)
}

// SetEdgeDword arms thirty-two input contacts from an edge enable
// mask.
func (d *Module) SetEdgeDword(offset int, mode EdgeMode, enable uint32) error {
	return d.setEdges("axdi.InterruptEdgeSetDword", offset, widthDword, mode, enable)
}

func (d *Module) setEdges(op string, offset, w int, mode EdgeMode, enable uint32) error {
	if mode != EdgeFalling && mode != EdgeRising {
		return axt.Errorf(axt.DIOInvalidMode, op, "mode %d", mode)
	}
	if enable > mask(w) {
		return axt.Errorf(axt.DIOInvalidValue, op, "mask %#x exceeds width %d", enable, w)
	}
	d.m.mu.Lock()
	defer d.m.mu.Unlock()
	if err := checkChunk(op, offset, w, d.inBits); err != nil {
		return err
	}
	sh := uint(offset * w)
	en := &d.riseEn
	if mode == EdgeFalling {
		en = &d.fallEn
	}
	*en = *en&^(mask(w)<<sh) | enable<<sh
	return nil
}

// EdgeBit returns one contact's edge interrupt enable.
func (d *Module) EdgeBit(offset int, mode EdgeMode) (bool, error) {
	v, err := d.getEdges("axdi.InterruptEdgeGetBit", offset, widthBit, mode)
	return v != 0, err
}

// EdgeByte returns the edge enable mask of eight contacts.
func (d *Module) EdgeByte(offset int, mode EdgeMode) (uint32, error) {
	return d.getEdges("axdi.InterruptEdgeGetByte", offset, widthByte, mode)
}

// EdgeWord returns the edge enable mask of sixteen contacts.
func (d *Module) EdgeWord(offset int, mode EdgeMode) (uint32, error) {
	return d.getEdges("axdi.InterruptEdgeGetWord", offset, widthWord, mode)
}

// EdgeDword returns the edge enable mask of thirty-two contacts.
func (d *Module) EdgeDword(offset int, mode EdgeMode) (uint32, error) {
	return d.getEdges("axdi.InterruptEdgeGetDword", offset, widthDword, mode)
}

func (d *Module) getEdges(op string, offset, w int, mode EdgeMode) (uint32, error) {
	if mode != EdgeFalling && mode != EdgeRising {
		return 0, axt.Errorf(axt.DIOInvalidMode, op, "mode %d", mode)
	}
	d.m.mu.Lock()
	defer d.m.mu.Unlock()
	if err := checkChunk(op, offset, w, d.inBits); err != nil {
		return 0, err
	}
	en := d.riseEn
	if mode == EdgeFalling {
		en = d.fallEn
	}
	return en >> uint(offset*w) & mask(w), nil
}

// ReadInterrupt pops the module's latched edge interrupt mask.
func (d *Module) ReadInterrupt() uint32 {
	return d.bank().ReadClear()
}

// SetContactNum restricts the usable contact counts of a flexible
// module within its catalog width.
func (d *Module) SetContactNum(inputs, outputs int) error {
	const op = "axd.SetContactNum"
	if inputs < 0 || inputs > d.mod.Info.DIBits {
		return axt.Errorf(axt.DIOInvalidValue, op, "%d inputs (module has %d)", inputs, d.mod.Info.DIBits)
	}
	if outputs < 0 || outputs > d.mod.Info.DOBits {
		return axt.Errorf(axt.DIOInvalidValue, op, "%d outputs (module has %d)", outputs, d.mod.Info.DOBits)
	}
	d.m.mu.Lock()
	defer d.m.mu.Unlock()
	d.inBits, d.outBits = inputs, outputs
	d.physIn &= mask(inputs)
	d.in &= mask(inputs)
	d.out &= mask(outputs)
	return nil
}

// ContactNum returns the usable contact counts.
func (d *Module) ContactNum() (inputs, outputs int) {
	d.m.mu.Lock()
	defer d.m.mu.Unlock()
	return d.inBits, d.outBits
}
