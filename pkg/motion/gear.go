// Electronic gearing
//
// Copyright (C) 2026 Go binding
//
// This file may be distributed under the terms of the GNU GPLv3 license.

package motion

import (
	"axl-go/pkg/axt"

	"go.uber.org/zap"
)

// gearGroup couples slave command positions to a master axis. While
// engaged the supervision tick mirrors the master's command delta,
// scaled per slave, onto each slave's command register.
//
// Lock order is always groupMu before any axis mutex.
type gearGroup struct {
	master   int
	slaves   []int
	ratios   []float64 // user-unit ratios as set
	ratioP   []float64 // pulse-domain ratios, frozen at engage
	engaged  bool
	lastCmdP float64
}

func (g *gearGroup) owns(no int) bool {
	if g.master == no {
		return true
	}
	for _, s := range g.slaves {
		if s == no {
			return true
		}
	}
	return false
}

// GearSet maps slave axes onto a master with per-slave ratios in user
// units (one master unit moves each slave ratio units). The group is
// created disengaged.
func (c *Controller) GearSet(master int, slaves []int, ratios []float64) error {
	const op = "axm.GearSet"
	m, err := c.Axis(master)
	if err != nil {
		return err
	}
	if len(slaves) == 0 || len(slaves) != len(ratios) {
		return axt.Errorf(axt.BadParameter, op, "%d slaves, %d ratios", len(slaves), len(ratios))
	}
	phys := make([]int, 0, len(slaves))
	seen := map[int]bool{m.no: true}
	for i, no := range slaves {
		s, err := c.Axis(no)
		if err != nil {
			return err
		}
		if s.no == m.no {
			return axt.Errorf(axt.MotionErrorMasterSlaveSame, op, "axis %d is its own master", no)
		}
		if seen[s.no] {
			return axt.Errorf(axt.BadParameter, op, "axis %d listed twice", no)
		}
		if ratios[i] == 0 {
			return axt.Errorf(axt.BadParameter, op, "slave %d ratio 0", no)
		}
		seen[s.no] = true
		phys = append(phys, s.no)
	}

	c.groupMu.Lock()
	defer c.groupMu.Unlock()
	for owner, g := range c.gears {
		if owner == m.no {
			if g.engaged {
				return axt.Errorf(axt.MotionError, op, "axis %d gear engaged, reset first", m.no)
			}
			continue
		}
		for no := range seen {
			if g.owns(no) {
				return axt.Errorf(axt.MotionError, op, "axis %d already geared", no)
			}
		}
	}
	for _, g := range c.gantries {
		for no := range seen {
			if no == g.master || no == g.slave {
				return axt.Errorf(axt.MotionErrorGantryAxis, op, "axis %d is in a gantry pair", no)
			}
		}
	}
	c.gears[m.no] = &gearGroup{
		master: m.no,
		slaves: phys,
		ratios: append([]float64(nil), ratios...),
	}
	c.log.Info("gear group set", zap.Int("master", m.no), zap.Ints("slaves", phys))
	return nil
}

// GearGet reports the mapping for a master axis.
func (c *Controller) GearGet(master int) (slaves []int, ratios []float64, engaged bool, err error) {
	const op = "axm.GearGet"
	m, err := c.Axis(master)
	if err != nil {
		return nil, nil, false, err
	}
	c.groupMu.Lock()
	defer c.groupMu.Unlock()
	g, ok := c.gears[m.no]
	if !ok {
		return nil, nil, false, axt.Errorf(axt.MotionInvalidSelection, op, "axis %d has no gear mapping", m.no)
	}
	return append([]int(nil), g.slaves...), append([]float64(nil), g.ratios...), g.engaged, nil
}

// GearEnable engages or disengages the coupling. Engaging requires
// every member idle; the mirror baseline is the master command
// position at that moment. The pulse-domain ratios freeze on engage,
// so re-engage after changing a unit-per-pulse scaling.
func (c *Controller) GearEnable(master int, on bool) error {
	const op = "axm.GearEnable"
	m, err := c.Axis(master)
	if err != nil {
		return err
	}
	c.groupMu.Lock()
	defer c.groupMu.Unlock()
	g, ok := c.gears[m.no]
	if !ok {
		return axt.Errorf(axt.MotionInvalidSelection, op, "axis %d has no gear mapping", m.no)
	}
	if !on {
		c.disengageGearLocked(g)
		return nil
	}
	if g.engaged {
		return nil
	}
	for _, no := range append([]int{g.master}, g.slaves...) {
		if c.rack.Moving(no) {
			return axt.Errorf(axt.MotionErrorInMotion, op, "axis %d busy", no)
		}
	}
	ma := c.axes[g.master]
	ma.mu.Lock()
	uppM := ma.uppLocked()
	ma.mu.Unlock()
	g.ratioP = g.ratioP[:0]
	for i, no := range g.slaves {
		sa := c.axes[no]
		sa.mu.Lock()
		g.ratioP = append(g.ratioP, uppM*g.ratios[i]/sa.uppLocked())
		sa.gearSlave = true
		sa.mu.Unlock()
	}
	g.lastCmdP = c.rack.State(g.master).CmdPos
	g.engaged = true
	c.log.Info("gear group engaged", zap.Int("master", g.master))
	return nil
}

func (c *Controller) disengageGearLocked(g *gearGroup) {
	if !g.engaged {
		return
	}
	g.engaged = false
	for _, no := range g.slaves {
		sa := c.axes[no]
		sa.mu.Lock()
		sa.gearSlave = false
		sa.mu.Unlock()
	}
}

// GearReset disengages and removes the mapping.
func (c *Controller) GearReset(master int) error {
	m, err := c.Axis(master)
	if err != nil {
		return err
	}
	c.groupMu.Lock()
	defer c.groupMu.Unlock()
	if g, ok := c.gears[m.no]; ok {
		c.disengageGearLocked(g)
		delete(c.gears, m.no)
	}
	return nil
}

// tickGears mirrors master command deltas onto engaged slaves.
func (c *Controller) tickGears(now float64) {
	c.groupMu.Lock()
	defer c.groupMu.Unlock()
	for _, g := range c.gears {
		if !g.engaged {
			continue
		}
		curP := c.rack.State(g.master).CmdPos
		dP := curP - g.lastCmdP
		if dP == 0 {
			continue
		}
		g.lastCmdP = curP
		for i, no := range g.slaves {
			c.rack.SetCmdPos(no, c.rack.State(no).CmdPos+dP*g.ratioP[i])
		}
	}
}
