// Timed output jobs and input pulse helpers
//
// Copyright (C) 2026 Go binding
//
// This file may be distributed under the terms of the GNU GPLv3 license.

package dio

import (
	"axl-go/pkg/axt"
)

// pulseJob reverts an output contact at a deadline on the rack clock.
type pulseJob struct {
	at    float64
	value bool
}

// toggleJob flips an output contact between timed phases.
type toggleJob struct {
	init    bool
	cur     bool
	onDur   float64
	offDur  float64
	cycles  int // remaining full cycles, -1 forever
	restore bool
	nextAt  float64
}

func checkPulseMs(op string, ms int) error {
	if ms < 1 || ms > 30000 {
		return axt.Errorf(axt.DIOInvalidValue, op, "%d ms", ms)
	}
	return nil
}

func (d *Module) setOutBitLocked(offset int, on bool) {
	if on {
		d.out |= 1 << uint(offset)
	} else {
		d.out &^= 1 << uint(offset)
	}
	d.outDirty = true
}

// IsPulseOn reports and clears whether the input contact saw an
// off-to-on transition since the last call.
func (d *Module) IsPulseOn(offset int) (bool, error) {
	d.m.mu.Lock()
	defer d.m.mu.Unlock()
	if err := checkChunk("axdi.IsPulseOn", offset, widthBit, d.inBits); err != nil {
		return false, err
	}
	bit := uint32(1) << uint(offset)
	fired := d.riseLatch&bit != 0
	d.riseLatch &^= bit
	return fired, nil
}

// IsPulseOff reports and clears whether the input contact saw an
// on-to-off transition since the last call.
func (d *Module) IsPulseOff(offset int) (bool, error) {
	d.m.mu.Lock()
	defer d.m.mu.Unlock()
	if err := checkChunk("axdi.IsPulseOff", offset, widthBit, d.inBits); err != nil {
		return false, err
	}
	bit := uint32(1) << uint(offset)
	fired := d.fallLatch&bit != 0
	d.fallLatch &^= bit
	return fired, nil
}

// IsOn debounces an input contact over repeated calls: it reports
// whether the contact has read on for at least count consecutive
// calls. Passing restart begins a fresh streak.
func (d *Module) IsOn(offset, count int, restart bool) (bool, error) {
	const op = "axdi.IsOn"
	if count < 0 {
		return false, axt.Errorf(axt.DIOInvalidValue, op, "count %d", count)
	}
	d.m.mu.Lock()
	defer d.m.mu.Unlock()
	if err := checkChunk(op, offset, widthBit, d.inBits); err != nil {
		return false, err
	}
	if d.onStreak == nil {
		d.onStreak = make(map[int]int)
	}
	cur := d.in>>uint(offset)&1 != 0
	if restart || !cur {
		d.onStreak[offset] = 0
	}
	if cur {
		d.onStreak[offset]++
	}
	return cur && d.onStreak[offset] >= count, nil
}

// IsOff debounces the off state the same way IsOn debounces on.
func (d *Module) IsOff(offset, count int, restart bool) (bool, error) {
	const op = "axdi.IsOff"
	if count < 0 {
		return false, axt.Errorf(axt.DIOInvalidValue, op, "count %d", count)
	}
	d.m.mu.Lock()
	defer d.m.mu.Unlock()
	if err := checkChunk(op, offset, widthBit, d.inBits); err != nil {
		return false, err
	}
	if d.offStreak == nil {
		d.offStreak = make(map[int]int)
	}
	cur := d.in>>uint(offset)&1 == 0
	if restart || !cur {
		d.offStreak[offset] = 0
	}
	if cur {
		d.offStreak[offset]++
	}
	return cur && d.offStreak[offset] >= count, nil
}

// OutPulseOn drives an output contact on and reverts it to off after
// ms milliseconds of rack time.
func (d *Module) OutPulseOn(offset, ms int) error {
	return d.outPulse("axdo.OutPulseOn", offset, ms, true)
}

// OutPulseOff drives an output contact off and reverts it to on after
// ms milliseconds of rack time.
func (d *Module) OutPulseOff(offset, ms int) error {
	return d.outPulse("axdo.OutPulseOff", offset, ms, false)
}

func (d *Module) outPulse(op string, offset, ms int, on bool) error {
	if err := checkPulseMs(op, ms); err != nil {
		return err
	}
	d.m.mu.Lock()
	defer d.m.mu.Unlock()
	if err := checkChunk(op, offset, widthBit, d.outBits); err != nil {
		return err
	}
	if _, busy := d.toggles[offset]; busy {
		return axt.Errorf(axt.DIOInvalidUse, op, "contact %d is toggling", offset)
	}
	d.setOutBitLocked(offset, on)
	if d.pulses == nil {
		d.pulses = make(map[int]*pulseJob)
	}
	d.pulses[offset] = &pulseJob{
		at:    d.m.rack.Now() + float64(ms)/1000,
		value: !on,
	}
	return nil
}

// ToggleStart flips an output contact between on and off phases of
// msOn and msOff milliseconds, starting from initOn, for count full
// cycles (-1 repeats until stopped). The pre-toggle state is restored
// when the count runs out.
func (d *Module) ToggleStart(offset int, initOn bool, msOn, msOff, count int) error {
	const op = "axdo.ToggleStart"
	if err := checkPulseMs(op, msOn); err != nil {
		return err
	}
	if err := checkPulseMs(op, msOff); err != nil {
		return err
	}
	if count < 1 && count != -1 {
		return axt.Errorf(axt.DIOInvalidValue, op, "count %d", count)
	}
	d.m.mu.Lock()
	defer d.m.mu.Unlock()
	if err := checkChunk(op, offset, widthBit, d.outBits); err != nil {
		return err
	}
	if _, busy := d.toggles[offset]; busy {
		return axt.Errorf(axt.DIOInvalidUse, op, "contact %d is already toggling", offset)
	}
	if _, busy := d.pulses[offset]; busy {
		return axt.Errorf(axt.DIOInvalidUse, op, "contact %d has a pulse pending", offset)
	}
	j := &toggleJob{
		init:    initOn,
		cur:     initOn,
		onDur:   float64(msOn) / 1000,
		offDur:  float64(msOff) / 1000,
		cycles:  count,
		restore: d.out>>uint(offset)&1 != 0,
	}
	now := d.m.rack.Now()
	if initOn {
		j.nextAt = now + j.onDur
	} else {
		j.nextAt = now + j.offDur
	}
	d.setOutBitLocked(offset, initOn)
	if d.toggles == nil {
		d.toggles = make(map[int]*toggleJob)
	}
	d.toggles[offset] = j
	return nil
}

// ToggleStop halts a toggling output contact and drives it to the
// given state.
func (d *Module) ToggleStop(offset int, finalOn bool) error {
	const op = "axdo.ToggleStop"
	d.m.mu.Lock()
	defer d.m.mu.Unlock()
	if err := checkChunk(op, offset, widthBit, d.outBits); err != nil {
		return err
	}
	if _, busy := d.toggles[offset]; !busy {
		return axt.Errorf(axt.DIOInvalidUse, op, "contact %d is not toggling", offset)
	}
	delete(d.toggles, offset)
	d.setOutBitLocked(offset, finalOn)
	return nil
}

// tickJobsLocked retires due pulses and advances toggle phases.
func (d *Module) tickJobsLocked(now float64) {
	for offset, p := range d.pulses {
		if now >= p.at {
			d.setOutBitLocked(offset, p.value)
			delete(d.pulses, offset)
		}
	}
	for offset, j := range d.toggles {
		for now >= j.nextAt {
			j.cur = !j.cur
			if j.cur == j.init && j.cycles > 0 {
				j.cycles--
				if j.cycles == 0 {
					d.setOutBitLocked(offset, j.restore)
					delete(d.toggles, offset)
					break
				}
			}
			d.setOutBitLocked(offset, j.cur)
			if j.cur {
				j.nextAt += j.onDur
			} else {
				j.nextAt += j.offDur
			}
		}
	}
}
