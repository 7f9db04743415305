// Point-to-point, velocity, and torque move commands
//
// Copyright (C) 2026 Go binding
//
// This file may be distributed under the terms of the GNU GPLv3 license.

package motion

import (
	"context"
	"math"
	"sort"

	"axl-go/pkg/axt"
	"axl-go/pkg/profile"

	"go.uber.org/zap"
)

// admitLocked rejects commands the axis cannot take right now.
func (a *Axis) admitLocked(op string) error {
	if a.homeSearchingLocked() {
		return axt.Errorf(axt.MotionHomeSearching, op, "home search running")
	}
	if a.pathClaimed {
		return axt.Errorf(axt.MotionInContiInterp, op, "axis %d running continuous interpolation", a.no)
	}
	if a.move != nil || a.c.rack.Moving(a.no) {
		return axt.Errorf(axt.MotionErrorInMotion, op, "axis %d busy", a.no)
	}
	if a.alarmLatched {
		return axt.Errorf(axt.MotionError, op, "axis %d servo alarm latched", a.no)
	}
	if a.gantrySlave {
		return axt.Errorf(axt.MotionErrorGantryEnable, op, "axis %d is a gantry slave", a.no)
	}
	if a.gearSlave {
		return axt.Errorf(axt.MotionError, op, "axis %d is an engaged gear slave", a.no)
	}
	return nil
}

func (a *Axis) checkVelLocked(op string, vel float64) error {
	v := math.Abs(vel)
	if v <= 0 {
		return axt.Errorf(axt.MotionInvalidVelocity, op, "velocity %g", vel)
	}
	if v > a.par.MaxVelocity {
		return axt.Errorf(axt.MotionVelocityOutOfBound, op,
			"velocity %g exceeds max %g", vel, a.par.MaxVelocity)
	}
	return nil
}

// rampRates converts the acceleration arguments to pulse-domain rates
// honoring the acceleration unit. In seconds mode the conversion needs
// the cruise velocity.
func (a *Axis) rampRates(velP, accel, decel float64) (accP, decP float64) {
	if a.accUnit == axt.AccUnitSec {
		return velP / accel, velP / decel
	}
	return a.toPulse(accel), a.toPulse(decel)
}

// buildMoveLocked turns user-unit move arguments into a pulse-domain
// profile. With seconds-unit acceleration and ramp-time priority the
// ramp durations are held and the velocity yields on short moves.
func (a *Axis) buildMoveLocked(op string, distUser, vel, accel, decel float64) (*profile.Profile, error) {
	if err := a.checkVelLocked(op, vel); err != nil {
		return nil, err
	}
	distP := a.toPulse(distUser)
	velP := a.toPulse(vel)
	j := a.jerkLocked()
	if a.accUnit == axt.AccUnitSec && a.priority == PriorityAccelTime {
		return profile.MoveTimePriority(distP, velP, accel, decel, j)
	}
	if accel <= 0 || decel <= 0 {
		return nil, axt.Errorf(axt.MotionInvalidAccelTime, op, "accel %g decel %g", accel, decel)
	}
	accP, decP := a.rampRates(velP, accel, decel)
	return profile.Move(distP, velP, accP, decP, j)
}

// targetLocked resolves a commanded position to an absolute user-unit
// target per the abs/rel mode.
func (a *Axis) targetLocked(pos float64) float64 {
	if a.par.InitAbsRelMode == axt.PosRelMode {
		return a.cmdUserLocked() + pos
	}
	return pos
}

func (a *Axis) checkSoftLimitTarget(op string, target float64) error {
	if !a.par.SoftLimitsArmed() {
		return nil
	}
	if target < a.par.NegSoftLimit {
		return axt.Errorf(axt.SoftLimitNegative, op,
			"target %g below soft limit %g", target, a.par.NegSoftLimit)
	}
	if target > a.par.PosSoftLimit {
		return axt.Errorf(axt.SoftLimitPositive, op,
			"target %g above soft limit %g", target, a.par.PosSoftLimit)
	}
	return nil
}

// launchPosLocked admits and constructs a positional move but does not
// start it; multi-axis starts batch the launches.
func (a *Axis) launchPosLocked(op string, pos, vel, accel, decel float64) (*moveState, error) {
	if err := a.admitLocked(op); err != nil {
		return nil, err
	}
	if lo := a.takeLatchedLocked(); lo != nil {
		if lo.vel > 0 {
			vel = lo.vel
		}
		if lo.accel > 0 {
			accel = lo.accel
		}
		if lo.decel > 0 {
			decel = lo.decel
		}
	}
	target := a.targetLocked(pos)
	if err := a.checkSoftLimitTarget(op, target); err != nil {
		return nil, err
	}

	// Compensators insert extra command pulses; the logical position
	// the readbacks report excludes them.
	dir := 1.0
	if target < a.cmdUserLocked() {
		dir = -1
	}
	backlashAdd := 0.0
	if a.backlashOn && dir != a.lastDir {
		backlashAdd = a.toPulse(a.backlash) * dir
	}
	corrP := 0.0
	if a.compTable != nil && a.compTable.enabled {
		corrP = a.toPulse(a.compTable.correct(target))
	}
	comp := a.backlashAcc + backlashAdd + corrP

	st := a.c.rack.State(a.no)
	distP := a.toPulse(target) + comp - st.CmdPos
	velP := a.toPulse(vel)
	prof, err := a.buildMoveLocked(op, a.toUser(distP), vel, accel, decel)
	if err != nil {
		return nil, err
	}
	accP, decP := a.rampRates(velP, accel, decel)
	m := &moveState{
		prof:   prof,
		target: target,
		vel:    velP,
		accel:  accP,
		decel:  decP,
		jerk:   a.jerkLocked(),
		done:   make(chan error, 1),
	}
	a.compOffset = comp
	a.backlashAcc += backlashAdd
	a.lastDir = dir
	a.moveDir = dir
	a.trace(op, zap.Float64("target", target), zap.Float64("vel", vel))
	return m, nil
}

// MoveStartPos launches a positional move and returns once it is
// accepted. Completion raises the motion-done flag; MovePos blocks for
// it instead.
func (a *Axis) MoveStartPos(pos, vel, accel, decel float64) error {
	const op = "axm.MoveStartPos"
	a.mu.Lock()
	defer a.mu.Unlock()
	m, err := a.launchPosLocked(op, pos, vel, accel, decel)
	if err != nil {
		return err
	}
	a.move = m
	a.cause = StopNone
	a.startRackLocked(m.prof)
	return nil
}

// MovePos runs a positional move to completion. Cancelling the context
// issues a slowdown stop and reports the cancellation.
func (a *Axis) MovePos(ctx context.Context, pos, vel, accel, decel float64) error {
	const op = "axm.MovePos"
	a.mu.Lock()
	m, err := a.launchPosLocked(op, pos, vel, accel, decel)
	if err != nil {
		a.mu.Unlock()
		return err
	}
	a.move = m
	a.cause = StopNone
	a.startRackLocked(m.prof)
	a.mu.Unlock()
	return a.waitMove(ctx, m)
}

func (a *Axis) waitMove(ctx context.Context, m *moveState) error {
	select {
	case err := <-m.done:
		return err
	case <-ctx.Done():
		a.mu.Lock()
		a.haltLocked(a.c.rack.Now(), axt.SlowdownStop, a.toPulse(a.par.InitDecel), StopUserBreak)
		a.mu.Unlock()
		return ctx.Err()
	}
}

// WaitForDone blocks until the in-flight move completes. A move that
// already finalized reports nil; its stop cause stays readable.
func (a *Axis) WaitForDone(ctx context.Context) error {
	a.mu.Lock()
	m := a.move
	a.mu.Unlock()
	if m == nil {
		return nil
	}
	return a.waitMove(ctx, m)
}

// MoveVel runs the axis at a constant velocity until stopped. The sign
// of vel gives the direction.
func (a *Axis) MoveVel(vel, accel, decel float64) error {
	const op = "axm.MoveVel"
	a.mu.Lock()
	defer a.mu.Unlock()
	m, err := a.launchVelLocked(op, vel, accel, decel)
	if err != nil {
		return err
	}
	a.move = m
	a.cause = StopNone
	a.startRackLocked(m.prof)
	return nil
}

func (a *Axis) launchVelLocked(op string, vel, accel, decel float64) (*moveState, error) {
	if err := a.admitLocked(op); err != nil {
		return nil, err
	}
	if err := a.checkVelLocked(op, vel); err != nil {
		return nil, err
	}
	if accel <= 0 {
		return nil, axt.Errorf(axt.MotionInvalidAccelTime, op, "accel %g", accel)
	}
	velP := a.toPulse(vel)
	accP, decP := a.rampRates(math.Abs(velP), accel, decel)
	prof, err := profile.Velocity(0, velP, accP, a.jerkLocked())
	if err != nil {
		return nil, err
	}
	dir := 1.0
	if vel < 0 {
		dir = -1
	}
	a.moveDir = dir
	a.lastDir = dir
	a.trace(op, zap.Float64("vel", vel))
	return &moveState{
		prof:     prof,
		target:   math.NaN(),
		vel:      math.Abs(velP),
		accel:    accP,
		decel:    decP,
		jerk:     a.jerkLocked(),
		velocity: true,
		done:     make(chan error, 1),
	}, nil
}

// torqueRun is the simulated torque-mode drive: constant velocity at
// the limit in the commanded direction.
type torqueRun struct {
	pct      float64
	velLimit float64
}

// MoveStartTorque drives the axis in torque mode: the simulation runs
// at the velocity limit in the sign of the torque command.
func (a *Axis) MoveStartTorque(torquePct, velLimit float64) error {
	const op = "axm.MoveStartTorque"
	if torquePct == 0 || math.Abs(torquePct) > 100 {
		return axt.Errorf(axt.BadParameter, op, "torque %g%%", torquePct)
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	vel := math.Copysign(velLimit, torquePct)
	m, err := a.launchVelLocked(op, vel, a.par.InitAccel, a.par.InitDecel)
	if err != nil {
		return err
	}
	a.move = m
	a.cause = StopNone
	a.torque = &torqueRun{pct: torquePct, velLimit: velLimit}
	a.startRackLocked(m.prof)
	return nil
}

// MoveTorqueStop leaves torque mode, ramping to rest over the settle
// time.
func (a *Axis) MoveTorqueStop(settleTimeMs float64) error {
	const op = "axm.MoveTorqueStop"
	if settleTimeMs < 0 {
		return axt.Errorf(axt.MotionInvalidTime, op, "settle %gms", settleTimeMs)
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.torque == nil {
		return axt.Errorf(axt.MotionErrorInNonmotion, op, "axis %d not in torque mode", a.no)
	}
	a.torque = nil
	if settleTimeMs == 0 {
		a.haltLocked(a.c.rack.Now(), axt.EmergencyStop, 0, StopUser)
		return nil
	}
	st := a.c.rack.State(a.no)
	decel := math.Abs(st.Vel) / (settleTimeMs / 1000)
	a.haltLocked(a.c.rack.Now(), axt.SlowdownStop, decel, StopUser)
	return nil
}

// GetTorque reports the active torque command, zero when not in torque
// mode.
func (a *Axis) GetTorque() (pct, velLimit float64, err error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.torque == nil {
		return 0, 0, axt.Errorf(axt.MotionErrorInNonmotion, "axm.MoveGetTorque", "axis %d not in torque mode", a.no)
	}
	return a.torque.pct, a.torque.velLimit, nil
}

// stopDecelLocked converts a stop-deceleration argument per the
// acceleration unit against the live velocity.
func (a *Axis) stopDecelLocked(decel float64) float64 {
	if decel <= 0 {
		return a.toPulse(a.par.InitDecel)
	}
	if a.accUnit == axt.AccUnitSec {
		st := a.c.rack.State(a.no)
		return math.Abs(st.Vel) / decel
	}
	return a.toPulse(decel)
}

// Stop decelerates the axis to rest. Stopping an idle axis is a
// no-op.
func (a *Axis) Stop(decel float64) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.haltLocked(a.c.rack.Now(), axt.SlowdownStop, a.stopDecelLocked(decel), StopUser)
	return nil
}

// EStop halts the command output on the spot.
func (a *Axis) EStop() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.haltLocked(a.c.rack.Now(), axt.EmergencyStop, 0, StopEmergency)
	return nil
}

// SStop decelerates with the registered deceleration.
func (a *Axis) SStop() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.haltLocked(a.c.rack.Now(), axt.SlowdownStop, a.toPulse(a.par.InitDecel), StopUser)
	return nil
}

// Batch stop forms over axis arrays.

func (c *Controller) StopAxes(axes []int, decel float64) error {
	for _, no := range axes {
		a, err := c.Axis(no)
		if err != nil {
			return err
		}
		if err := a.Stop(decel); err != nil {
			return err
		}
	}
	return nil
}

func (c *Controller) EStopAxes(axes []int) error {
	for _, no := range axes {
		a, err := c.Axis(no)
		if err != nil {
			return err
		}
		if err := a.EStop(); err != nil {
			return err
		}
	}
	return nil
}

func (c *Controller) SStopAxes(axes []int) error {
	for _, no := range axes {
		a, err := c.Axis(no)
		if err != nil {
			return err
		}
		if err := a.SStop(); err != nil {
			return err
		}
	}
	return nil
}

// multiGroup couples a batch start for stop propagation: a stop or
// fault on one member slow-stops the rest.
type multiGroup struct {
	axes    []*Axis
	tripped bool
}

func (c *Controller) tickMultiGroups(now float64) {
	c.groupMu.Lock()
	defer c.groupMu.Unlock()
	live := c.multis[:0]
	for _, g := range c.multis {
		idle := true
		stopHit := false
		for _, a := range g.axes {
			a.mu.Lock()
			if a.move != nil || a.c.rack.Moving(a.no) {
				idle = false
			}
			if a.stopping || (a.move != nil && a.move.stopped) {
				stopHit = true
			}
			a.mu.Unlock()
		}
		if stopHit && !g.tripped {
			g.tripped = true
			for _, a := range g.axes {
				a.mu.Lock()
				if a.move != nil && !a.move.stopped {
					a.haltLocked(now, axt.SlowdownStop, a.toPulse(a.par.InitDecel), StopUser)
				}
				a.mu.Unlock()
			}
		}
		if !idle {
			live = append(live, g)
		}
	}
	c.multis = live
}

// resolveAxes resolves and locks a batch in ascending physical order
// so concurrent batches cannot deadlock. The unlock function releases
// in reverse.
func (c *Controller) resolveAxes(op string, axes []int) ([]*Axis, func(), error) {
	out := make([]*Axis, len(axes))
	seen := make(map[int]bool, len(axes))
	for i, no := range axes {
		a, err := c.Axis(no)
		if err != nil {
			return nil, nil, err
		}
		if seen[a.no] {
			return nil, nil, axt.Errorf(axt.BadParameter, op, "axis %d repeated", no)
		}
		seen[a.no] = true
		out[i] = a
	}
	order := make([]*Axis, len(out))
	copy(order, out)
	sort.Slice(order, func(i, j int) bool { return order[i].no < order[j].no })
	for _, a := range order {
		a.mu.Lock()
	}
	unlock := func() {
		for i := len(order) - 1; i >= 0; i-- {
			order[i].mu.Unlock()
		}
	}
	return out, unlock, nil
}

// multiLaunch admits a whole batch under the axis locks and starts
// every profile on the same instant. Any admission failure starts
// nothing.
func (c *Controller) multiLaunch(op string, axes []int, launch func(a *Axis, i int) (*moveState, error), mode SyncMode) ([]*moveState, error) {
	list, unlock, err := c.resolveAxes(op, axes)
	if err != nil {
		return nil, err
	}
	defer unlock()

	moves := make([]*moveState, len(list))
	profs := make(map[int]*profile.Profile, len(list))
	for i, a := range list {
		m, err := launch(a, i)
		if err != nil {
			return nil, err
		}
		moves[i] = m
		profs[a.no] = m.prof
	}
	for i, a := range list {
		a.move = moves[i]
		a.cause = StopNone
		if g := a.gantryM; g != nil {
			profs[g.slave] = moves[i].prof
		}
	}
	c.rack.StartProfiles(profs)
	if mode == SyncStopTogether {
		c.addMultiGroup(list)
	}
	return moves, nil
}

// MultiStart launches positional moves on several axes from one
// ordering point.
func (c *Controller) MultiStart(axes []int, pos, vel, accel, decel []float64, mode SyncMode) error {
	const op = "axm.MoveMultiStart"
	n := len(axes)
	if n == 0 || len(pos) != n || len(vel) != n || len(accel) != n || len(decel) != n {
		return axt.Errorf(axt.BadParameter, op, "argument arrays mismatch")
	}
	_, err := c.multiLaunch(op, axes, func(a *Axis, i int) (*moveState, error) {
		return a.launchPosLocked(op, pos[i], vel[i], accel[i], decel[i])
	}, mode)
	return err
}

// MultiVel launches velocity moves on several axes together.
func (c *Controller) MultiVel(axes []int, vel, accel, decel []float64, mode SyncMode) error {
	const op = "axm.MoveMultiVel"
	n := len(axes)
	if n == 0 || len(vel) != n || len(accel) != n || len(decel) != n {
		return axt.Errorf(axt.BadParameter, op, "argument arrays mismatch")
	}
	_, err := c.multiLaunch(op, axes, func(a *Axis, i int) (*moveState, error) {
		return a.launchVelLocked(op, vel[i], accel[i], decel[i])
	}, mode)
	return err
}

func (c *Controller) addMultiGroup(list []*Axis) {
	c.groupMu.Lock()
	c.multis = append(c.multis, &multiGroup{axes: list})
	c.groupMu.Unlock()
}

// MultiPos runs a batch positional start to completion on every axis.
// The first member failure is reported after all members settle.
func (c *Controller) MultiPos(ctx context.Context, axes []int, pos, vel, accel, decel []float64, mode SyncMode) error {
	const op = "axm.MoveMultiPos"
	n := len(axes)
	if n == 0 || len(pos) != n || len(vel) != n || len(accel) != n || len(decel) != n {
		return axt.Errorf(axt.BadParameter, op, "argument arrays mismatch")
	}
	moves, err := c.multiLaunch(op, axes, func(a *Axis, i int) (*moveState, error) {
		return a.launchPosLocked(op, pos[i], vel[i], accel[i], decel[i])
	}, mode)
	if err != nil {
		return err
	}
	var first error
	for i, no := range axes {
		a, err := c.Axis(no)
		if err != nil {
			return err
		}
		if err := a.waitMove(ctx, moves[i]); err != nil && first == nil {
			first = err
		}
	}
	return first
}
