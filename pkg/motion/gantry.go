// Gantry pairing and deviation supervision
//
// Copyright (C) 2026 Go binding
//
// This file may be distributed under the terms of the GNU GPLv3 license.

package motion

import (
	"math"

	"axl-go/pkg/axt"

	"go.uber.org/zap"
)

// GantryHomePolicy selects how the slave follows a master home search.
type GantryHomePolicy int

const (
	GantryHomeNone     GantryHomePolicy = 0 // slave does not follow homing
	GantryHomeTogether GantryHomePolicy = 1 // slave mirrors, both zero
	GantryHomeOffset   GantryHomePolicy = 2 // slave mirrors, zeroes to the pair offset
)

// GantryAction is the deviation watchdog response.
type GantryAction int

const (
	GantryActionLatch GantryAction = 0 // record only
	GantryActionSStop GantryAction = 1
	GantryActionEStop GantryAction = 2
)

// gantryPair rigidly couples two axes. While enabled, every profile
// the master launches also runs on the slave, the slave rejects
// direct commands, and the tick watches command/feedback deviation.
type gantryPair struct {
	master     int
	slave      int
	homePolicy GantryHomePolicy
	offset     float64 // slave user-unit offset from master
	tolerance  float64 // enable-time deviation bound, 0 skips the check
	uppM, uppS float64 // frozen at enable
	enabled    bool
	errRange   float64 // watchdog bound in user units, 0 off
	errAction  GantryAction
	tripped    bool
	lastDev    float64
}

// GantrySet declares a master/slave pair. The pair starts disabled; an
// enabled pair must be disabled before its mapping can change.
func (c *Controller) GantrySet(master, slave int, policy GantryHomePolicy, offset, tolerance float64) error {
	const op = "axm.GantrySetEnable"
	m, err := c.Axis(master)
	if err != nil {
		return err
	}
	s, err := c.Axis(slave)
	if err != nil {
		return err
	}
	if m.no == s.no {
		return axt.Errorf(axt.MotionErrorGantryAxis, op, "axis %d paired with itself", master)
	}
	if policy < GantryHomeNone || policy > GantryHomeOffset {
		return axt.Errorf(axt.BadParameter, op, "home policy %d", policy)
	}
	if tolerance < 0 {
		return axt.Errorf(axt.BadParameter, op, "tolerance %g", tolerance)
	}

	c.groupMu.Lock()
	defer c.groupMu.Unlock()
	for owner, g := range c.gantries {
		if owner == m.no {
			if g.enabled {
				return axt.Errorf(axt.MotionErrorGantryEnable, op, "pair %d enabled, disable first", m.no)
			}
			continue
		}
		if g.master == m.no || g.slave == m.no || g.master == s.no || g.slave == s.no {
			return axt.Errorf(axt.MotionErrorGantryAxis, op, "axis already in pair %d", owner)
		}
	}
	for _, g := range c.gears {
		if g.owns(m.no) || g.owns(s.no) {
			return axt.Errorf(axt.MotionErrorGantryAxis, op, "axis is geared")
		}
	}
	c.gantries[m.no] = &gantryPair{
		master:     m.no,
		slave:      s.no,
		homePolicy: policy,
		offset:     offset,
		tolerance:  tolerance,
	}
	c.log.Info("gantry pair set",
		zap.Int("master", m.no), zap.Int("slave", s.no), zap.Int("homePolicy", int(policy)))
	return nil
}

// GantryGet reports the pair addressed by its master axis.
func (c *Controller) GantryGet(master int) (slave int, policy GantryHomePolicy, offset, tolerance float64, enabled bool, err error) {
	const op = "axm.GantryGetEnable"
	m, err := c.Axis(master)
	if err != nil {
		return 0, 0, 0, 0, false, err
	}
	c.groupMu.Lock()
	defer c.groupMu.Unlock()
	g, ok := c.gantries[m.no]
	if !ok {
		return 0, 0, 0, 0, false, axt.Errorf(axt.MotionErrorGantryAxis, op, "axis %d has no pair", m.no)
	}
	return g.slave, g.homePolicy, g.offset, g.tolerance, g.enabled, nil
}

// GantryEnable couples the pair. Both axes must be idle, and when a
// tolerance is set the present feedback deviation must sit inside it.
func (c *Controller) GantryEnable(master int) error {
	const op = "axm.GantrySetEnable"
	m, err := c.Axis(master)
	if err != nil {
		return err
	}
	c.groupMu.Lock()
	defer c.groupMu.Unlock()
	g, ok := c.gantries[m.no]
	if !ok {
		return axt.Errorf(axt.MotionErrorGantryAxis, op, "axis %d has no pair", m.no)
	}
	if g.enabled {
		return nil
	}
	if c.rack.Moving(g.master) || c.rack.Moving(g.slave) {
		return axt.Errorf(axt.MotionErrorInMotion, op, "pair %d busy", g.master)
	}

	ma, sa := c.axes[g.master], c.axes[g.slave]
	ma.mu.Lock()
	g.uppM = ma.uppLocked()
	ma.mu.Unlock()
	sa.mu.Lock()
	g.uppS = sa.uppLocked()
	sa.mu.Unlock()

	dev := c.gantryDeviation(g)
	if g.tolerance > 0 && math.Abs(dev) > g.tolerance {
		return axt.Errorf(axt.MotionErrorGantryEnable, op,
			"pair %d deviation %g exceeds tolerance %g", g.master, dev, g.tolerance)
	}

	ma.mu.Lock()
	ma.gantryM = g
	ma.mu.Unlock()
	sa.mu.Lock()
	sa.gantrySlave = true
	sa.mu.Unlock()
	g.enabled = true
	g.tripped = false
	g.lastDev = dev
	c.log.Info("gantry enabled", zap.Int("master", g.master), zap.Int("slave", g.slave))
	return nil
}

// GantryDisable decouples the pair.
func (c *Controller) GantryDisable(master int) error {
	m, err := c.Axis(master)
	if err != nil {
		return err
	}
	c.groupMu.Lock()
	defer c.groupMu.Unlock()
	g, ok := c.gantries[m.no]
	if !ok || !g.enabled {
		return nil
	}
	g.enabled = false
	ma, sa := c.axes[g.master], c.axes[g.slave]
	ma.mu.Lock()
	ma.gantryM = nil
	ma.mu.Unlock()
	sa.mu.Lock()
	sa.gantrySlave = false
	sa.mu.Unlock()
	return nil
}

// GantrySetErrorCheck arms the deviation watchdog. A zero range turns
// it off; arming clears a tripped latch.
func (c *Controller) GantrySetErrorCheck(master int, devRange float64, action GantryAction) error {
	const op = "axm.GantrySetErrorCheck"
	m, err := c.Axis(master)
	if err != nil {
		return err
	}
	if devRange < 0 {
		return axt.Errorf(axt.BadParameter, op, "range %g", devRange)
	}
	if action < GantryActionLatch || action > GantryActionEStop {
		return axt.Errorf(axt.BadParameter, op, "action %d", action)
	}
	c.groupMu.Lock()
	defer c.groupMu.Unlock()
	g, ok := c.gantries[m.no]
	if !ok {
		return axt.Errorf(axt.MotionErrorGantryAxis, op, "axis %d has no pair", m.no)
	}
	g.errRange = devRange
	g.errAction = action
	g.tripped = false
	return nil
}

// GantryReadErrorStatus reports the watchdog latch and the deviation
// sampled on the last service tick.
func (c *Controller) GantryReadErrorStatus(master int) (tripped bool, deviation float64, err error) {
	const op = "axm.GantryReadErrorStatus"
	m, err := c.Axis(master)
	if err != nil {
		return false, 0, err
	}
	c.groupMu.Lock()
	defer c.groupMu.Unlock()
	g, ok := c.gantries[m.no]
	if !ok {
		return false, 0, axt.Errorf(axt.MotionErrorGantryAxis, op, "axis %d has no pair", m.no)
	}
	return g.tripped, g.lastDev, nil
}

// gantryDeviation is the feedback disagreement in master user units,
// the slave shifted back by the pair offset.
func (c *Controller) gantryDeviation(g *gantryPair) float64 {
	mAct := c.rack.State(g.master).ActPos * g.uppM
	sAct := c.rack.State(g.slave).ActPos * g.uppS
	return mAct - (sAct - g.offset)
}

// tickGantries runs the deviation watchdog.
func (c *Controller) tickGantries(now float64) {
	c.groupMu.Lock()
	defer c.groupMu.Unlock()
	for _, g := range c.gantries {
		if !g.enabled {
			continue
		}
		dev := c.gantryDeviation(g)
		g.lastDev = dev
		if g.errRange <= 0 || g.tripped || math.Abs(dev) <= g.errRange {
			continue
		}
		g.tripped = true
		c.log.Warn("gantry deviation trip",
			zap.Int("master", g.master), zap.Float64("deviation", dev), zap.Float64("range", g.errRange))
		var mode axt.StopMode
		switch g.errAction {
		case GantryActionSStop:
			mode = axt.SlowdownStop
		case GantryActionEStop:
			mode = axt.EmergencyStop
		default:
			continue
		}
		for _, no := range [2]int{g.master, g.slave} {
			a := c.axes[no]
			a.mu.Lock()
			a.haltLocked(now, mode, a.stopDecelLocked(0), StopGantryFault)
			a.mu.Unlock()
		}
	}
}
