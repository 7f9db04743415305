// Backlash and position-table compensation
//
// Copyright (C) 2026 Go binding
//
// This file may be distributed under the terms of the GNU GPLv3 license.

package motion

import (
	"sort"

	"axl-go/pkg/axt"

	"go.uber.org/zap"
)

// CompEntry maps a logical position to a correction, both in user
// units. A table is a piecewise-linear map over sorted positions.
type CompEntry struct {
	Pos  float64
	Corr float64
}

const maxCompEntries = 512

// compTable holds a sorted correction map. Lookups clamp to the end
// corrections outside the covered span.
type compTable struct {
	entries []CompEntry
	enabled bool
}

func (t *compTable) correct(pos float64) float64 {
	e := t.entries
	if len(e) == 0 {
		return 0
	}
	if pos <= e[0].Pos {
		return e[0].Corr
	}
	last := e[len(e)-1]
	if pos >= last.Pos {
		return last.Corr
	}
	i := sort.Search(len(e), func(k int) bool { return e[k].Pos > pos })
	lo, hi := e[i-1], e[i]
	f := (pos - lo.Pos) / (hi.Pos - lo.Pos)
	return lo.Corr + f*(hi.Corr-lo.Corr)
}

// SetBacklash stores the backlash take-up amount in user units. The
// amount is inserted into the first move after each direction change
// while enabled.
func (a *Axis) SetBacklash(amount float64) error {
	const op = "axm.CompensationSetBacklash"
	if amount < 0 {
		return axt.Errorf(axt.BadParameter, op, "amount %g", amount)
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.backlash = amount
	a.backlashSet = true
	return nil
}

// GetBacklash reads the stored amount; reading before any set reports
// the not-initialized code.
func (a *Axis) GetBacklash() (float64, error) {
	const op = "axm.CompensationGetBacklash"
	a.mu.Lock()
	defer a.mu.Unlock()
	if !a.backlashSet {
		return 0, axt.Errorf(axt.CompensationBacklashNoInit, op, "axis %d backlash not set", a.no)
	}
	return a.backlash, nil
}

// BacklashEnable turns take-up insertion on or off. Enabling requires
// a stored amount.
func (a *Axis) BacklashEnable(on bool) error {
	const op = "axm.CompensationSetBacklash"
	a.mu.Lock()
	defer a.mu.Unlock()
	if on && !a.backlashSet {
		return axt.Errorf(axt.CompensationBacklashNoInit, op, "axis %d backlash not set", a.no)
	}
	a.backlashOn = on
	if !on {
		a.backlashAcc = 0
	}
	return nil
}

// SetCompensationTable installs the position-correction map. Entries
// must be sorted by strictly increasing position.
func (a *Axis) SetCompensationTable(entries []CompEntry, enable bool) error {
	const op = "axm.CompensationSet"
	if len(entries) == 0 || len(entries) > maxCompEntries {
		return axt.Errorf(axt.CompensationInvalidEntry, op, "%d entries", len(entries))
	}
	for i := 1; i < len(entries); i++ {
		if entries[i].Pos <= entries[i-1].Pos {
			return axt.Errorf(axt.CompensationInvalidEntry, op,
				"entry %d position %g not increasing", i, entries[i].Pos)
		}
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.compTable = &compTable{
		entries: append([]CompEntry(nil), entries...),
		enabled: enable,
	}
	a.trace(op, zap.Int("entries", len(entries)), zap.Bool("enable", enable))
	return nil
}

// CompensationEnable toggles table lookup without replacing the map.
func (a *Axis) CompensationEnable(on bool) error {
	const op = "axm.CompensationSet"
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.compTable == nil {
		return axt.Errorf(axt.CompensationNotInit, op, "axis %d table not set", a.no)
	}
	a.compTable.enabled = on
	return nil
}

// GetCompensation evaluates the table correction at a position.
func (a *Axis) GetCompensation(pos float64) (float64, error) {
	const op = "axm.CompensationGet"
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.compTable == nil {
		return 0, axt.Errorf(axt.CompensationNotInit, op, "axis %d table not set", a.no)
	}
	return a.compTable.correct(pos), nil
}

// CompensationTable returns a copy of the installed map.
func (a *Axis) CompensationTable() ([]CompEntry, bool, error) {
	const op = "axm.CompensationGet"
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.compTable == nil {
		return nil, false, axt.Errorf(axt.CompensationNotInit, op, "axis %d table not set", a.no)
	}
	return append([]CompEntry(nil), a.compTable.entries...), a.compTable.enabled, nil
}
