// PVT tables and synchronized group starts
//
// Copyright (C) 2026 Go binding
//
// This file may be distributed under the terms of the GNU GPLv3 license.

package motion

import (
	"sort"

	"axl-go/pkg/axt"
	"axl-go/pkg/profile"

	"go.uber.org/zap"
)

const maxSyncMaps = 16

// pvtStore is a recorded trajectory awaiting a group start: knot
// times in microseconds with target position and velocity per knot,
// all in user units.
type pvtStore struct {
	usec []uint32
	pos  []float64
	vel  []float64
}

// syncGroup brackets PVT recording for a set of axes. Tables record
// only between SyncBegin and SyncEnd; SyncStart launches every
// recorded trajectory from one ordering point.
type syncGroup struct {
	no   int
	axes []int
	open bool
}

func (g *syncGroup) owns(no int) bool {
	for _, a := range g.axes {
		if a == no {
			return true
		}
	}
	return false
}

// SyncSet binds axes to a sync map number. An axis can sit in one map
// at a time.
func (c *Controller) SyncSet(syncNo int, axes []int) error {
	const op = "axm.SyncSet"
	if syncNo < 0 || syncNo >= maxSyncMaps {
		return axt.Errorf(axt.SyncInvalidMapNo, op, "map %d", syncNo)
	}
	if len(axes) == 0 {
		return axt.Errorf(axt.SyncInvalidAxisNo, op, "empty axis list")
	}
	phys := make([]int, 0, len(axes))
	seen := make(map[int]bool, len(axes))
	for _, no := range axes {
		a, err := c.Axis(no)
		if err != nil {
			return axt.Errorf(axt.SyncInvalidAxisNo, op, "axis %d", no)
		}
		if seen[a.no] {
			return axt.Errorf(axt.SyncInvalidAxisNo, op, "axis %d listed twice", no)
		}
		seen[a.no] = true
		phys = append(phys, a.no)
	}
	// Ascending lock order at start time, shared with the other batch
	// launches.
	sort.Ints(phys)
	c.groupMu.Lock()
	defer c.groupMu.Unlock()
	for other, g := range c.syncs {
		if other == syncNo {
			continue
		}
		for _, no := range phys {
			if g.owns(no) {
				return axt.Errorf(axt.SyncInvalidAxisNo, op, "axis %d already in map %d", no, other)
			}
		}
	}
	c.syncs[syncNo] = &syncGroup{no: syncNo, axes: phys}
	c.log.Info("sync map set", zap.Int("map", syncNo), zap.Ints("axes", phys))
	return nil
}

// SyncBegin opens the map for trajectory recording, discarding
// previously recorded tables.
func (c *Controller) SyncBegin(syncNo int) error {
	const op = "axm.SyncBegin"
	c.groupMu.Lock()
	defer c.groupMu.Unlock()
	g, ok := c.syncs[syncNo]
	if !ok {
		return axt.Errorf(axt.SyncInvalidMapNo, op, "map %d not set", syncNo)
	}
	if g.open {
		return axt.Errorf(axt.NotSeqNodeEnd, op, "map %d already recording", syncNo)
	}
	g.open = true
	for _, no := range g.axes {
		a := c.axes[no]
		a.mu.Lock()
		a.pvt = nil
		a.mu.Unlock()
	}
	return nil
}

// SyncEnd closes recording; the tables stay stored for SyncStart.
func (c *Controller) SyncEnd(syncNo int) error {
	const op = "axm.SyncEnd"
	c.groupMu.Lock()
	defer c.groupMu.Unlock()
	g, ok := c.syncs[syncNo]
	if !ok {
		return axt.Errorf(axt.SyncInvalidMapNo, op, "map %d not set", syncNo)
	}
	if !g.open {
		return axt.Errorf(axt.NotSeqNodeBegin, op, "map %d not recording", syncNo)
	}
	g.open = false
	return nil
}

// MovePVT records a trajectory for this axis: absolute knot times in
// microseconds, each with the position and velocity to hit. The axis
// must belong to a sync map that is currently recording.
func (a *Axis) MovePVT(pos, vel []float64, usec []uint32) error {
	const op = "axm.MovePVT"
	n := len(usec)
	if n == 0 || len(pos) != n || len(vel) != n {
		return axt.Errorf(axt.BadParameter, op,
			"%d knots, %d positions, %d velocities", n, len(pos), len(vel))
	}
	for i := 1; i < n; i++ {
		if usec[i] == usec[i-1] {
			return axt.Errorf(axt.SyncDuplicatedTime, op, "knot %d repeats %dus", i, usec[i])
		}
		if usec[i] < usec[i-1] {
			return axt.Errorf(axt.MotionInvalidTime, op, "knot %d time %dus before %dus", i, usec[i], usec[i-1])
		}
	}

	c := a.c
	c.groupMu.Lock()
	defer c.groupMu.Unlock()
	var g *syncGroup
	for _, cand := range c.syncs {
		if cand.owns(a.no) {
			g = cand
			break
		}
	}
	if g == nil || !g.open {
		return axt.Errorf(axt.NotSeqNodeBegin, op, "axis %d has no recording sync map", a.no)
	}
	a.mu.Lock()
	a.pvt = &pvtStore{
		usec: append([]uint32(nil), usec...),
		pos:  append([]float64(nil), pos...),
		vel:  append([]float64(nil), vel...),
	}
	a.mu.Unlock()
	return nil
}

// SyncStart launches every recorded trajectory in the map on one
// service instant. Recording must be closed first.
func (c *Controller) SyncStart(syncNo int) error {
	const op = "axm.SyncStart"
	c.groupMu.Lock()
	defer c.groupMu.Unlock()
	g, ok := c.syncs[syncNo]
	if !ok {
		return axt.Errorf(axt.SyncInvalidMapNo, op, "map %d not set", syncNo)
	}
	if g.open {
		return axt.Errorf(axt.NotSeqNodeEnd, op, "map %d still recording", syncNo)
	}

	type launch struct {
		a *Axis
		m *moveState
	}
	var launches []launch
	profs := make(map[int]*profile.Profile)
	fail := func(err error) error {
		for _, l := range launches {
			l.a.mu.Unlock()
		}
		return err
	}
	for _, no := range g.axes {
		a := c.axes[no]
		a.mu.Lock()
		st := a.pvt
		if st == nil {
			a.mu.Unlock()
			continue
		}
		if err := a.admitLocked(op); err != nil {
			a.mu.Unlock()
			return fail(err)
		}
		// A knot at time zero restates the launch state; drop it.
		times := make([]float64, 0, len(st.usec))
		posP := make([]float64, 0, len(st.pos))
		velP := make([]float64, 0, len(st.vel))
		base := a.c.rack.State(a.no).CmdPos
		for i := range st.usec {
			if st.usec[i] == 0 {
				continue
			}
			times = append(times, float64(st.usec[i])/1e6)
			posP = append(posP, a.toPulse(st.pos[i])+a.compOffset-base)
			velP = append(velP, a.toPulse(st.vel[i]))
		}
		if len(times) == 0 {
			a.mu.Unlock()
			continue
		}
		prof, err := profile.PVT(times, posP, velP)
		if err != nil {
			a.mu.Unlock()
			return fail(axt.Wrap(axt.CodeOf(err), op, err))
		}
		m := &moveState{
			prof:   prof,
			target: st.pos[len(st.pos)-1],
			done:   make(chan error, 1),
		}
		launches = append(launches, launch{a, m})
		profs[a.no] = prof
	}
	if len(launches) == 0 {
		return axt.Errorf(axt.BadParameter, op, "map %d has no recorded trajectories", syncNo)
	}
	for _, l := range launches {
		l.a.move = l.m
		l.a.cause = StopNone
		if gp := l.a.gantryM; gp != nil {
			profs[gp.slave] = l.m.prof
		}
		l.a.mu.Unlock()
	}
	c.rack.StartProfiles(profs)
	c.log.Info("sync start", zap.Int("map", syncNo), zap.Int("axes", len(launches)))
	return nil
}

// SyncClear drops the map and any recorded tables.
func (c *Controller) SyncClear(syncNo int) error {
	const op = "axm.SyncClear"
	c.groupMu.Lock()
	defer c.groupMu.Unlock()
	g, ok := c.syncs[syncNo]
	if !ok {
		return axt.Errorf(axt.SyncInvalidMapNo, op, "map %d not set", syncNo)
	}
	for _, no := range g.axes {
		a := c.axes[no]
		a.mu.Lock()
		a.pvt = nil
		a.mu.Unlock()
	}
	delete(c.syncs, syncNo)
	return nil
}
