// In-flight move overrides
//
// Copyright (C) 2026 Go binding
//
// This file may be distributed under the terms of the GNU GPLv3 license.

package motion

import (
	"math"

	"axl-go/pkg/axt"
	"axl-go/pkg/profile"

	"go.uber.org/zap"
)

// latchedOverride holds override values deferred to the next move
// start; zero fields keep the commanded value.
type latchedOverride struct {
	vel   float64
	accel float64
	decel float64
}

// armedOverride is one pending velocity change applied when the axis
// sweeps past a position.
type armedOverride struct {
	pos float64
	vel float64
}

func (a *Axis) takeLatchedLocked() *latchedOverride {
	lo := a.latchedOvr
	a.latchedOvr = nil
	return lo
}

// SetOverrideMode selects when overrides take effect: 0 interrupts the
// in-flight profile, 1 latches the values for the next start.
func (a *Axis) SetOverrideMode(mode int) error {
	const op = "axm.MotSetOverrideMode"
	if mode != 0 && mode != 1 {
		return axt.Errorf(axt.BadParameter, op, "mode %d", mode)
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.overrideMode = mode
	return nil
}

func (a *Axis) GetOverrideMode() (int, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.overrideMode, nil
}

// OverridePos retargets the in-flight positional move. The axis
// decelerates and reverses when the new target is behind it.
func (a *Axis) OverridePos(newTarget float64) error {
	const op = "axm.OverridePos"
	a.mu.Lock()
	defer a.mu.Unlock()
	m := a.move
	if m == nil || m.stopped || m.velocity {
		return axt.Errorf(axt.MotionErrorInNonmotion, op, "no positional move in flight")
	}
	target := a.targetLocked(newTarget)
	if err := a.checkSoftLimitTarget(op, target); err != nil {
		return err
	}
	corrP := 0.0
	if a.compTable != nil && a.compTable.enabled {
		corrP = a.toPulse(a.compTable.correct(target))
	}
	st := a.c.rack.State(a.no)
	distP := a.toPulse(target) + a.backlashAcc + corrP - st.CmdPos
	prof, err := profile.MoveFrom(st.Vel, distP, m.vel, m.accel, m.decel, m.jerk)
	if err != nil {
		return err
	}
	m.prof = prof
	m.target = target
	a.compOffset = a.backlashAcc + corrP
	if distP < 0 {
		a.moveDir = -1
	} else {
		a.moveDir = 1
	}
	a.startRackLocked(prof)
	a.trace(op, zap.Float64("target", target))
	return nil
}

// OverrideVel changes the cruise velocity of the in-flight move, or
// latches it for the next start when the override mode defers. On
// velocity moves the sign selects the direction; on positional moves
// the magnitude applies.
func (a *Axis) OverrideVel(newVel float64) error {
	const op = "axm.OverrideVel"
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.overrideMode == 1 {
		if err := a.checkVelLocked(op, newVel); err != nil {
			return err
		}
		if a.latchedOvr == nil {
			a.latchedOvr = &latchedOverride{}
		}
		a.latchedOvr.vel = math.Abs(newVel)
		return nil
	}
	return a.applyVelLocked(op, newVel)
}

func (a *Axis) applyVelLocked(op string, newVel float64) error {
	m := a.move
	if m == nil || m.stopped {
		return axt.Errorf(axt.MotionErrorInNonmotion, op, "no move in flight")
	}
	if err := a.checkVelLocked(op, newVel); err != nil {
		return err
	}
	st := a.c.rack.State(a.no)
	velP := a.toPulse(newVel)

	if m.velocity {
		prof, err := profile.Velocity(st.Vel, velP, m.accel, m.jerk)
		if err != nil {
			return err
		}
		m.prof = prof
		m.vel = math.Abs(velP)
		if velP < 0 {
			a.moveDir = -1
		} else {
			a.moveDir = 1
		}
		a.startRackLocked(prof)
		a.trace(op, zap.Float64("vel", newVel))
		return nil
	}

	distP := a.toPulse(m.target) + a.compOffset - st.CmdPos
	prof, err := profile.MoveFrom(st.Vel, distP, math.Abs(velP), m.accel, m.decel, m.jerk)
	if err != nil {
		return err
	}
	m.prof = prof
	m.vel = math.Abs(velP)
	a.startRackLocked(prof)
	a.trace(op, zap.Float64("vel", newVel))
	return nil
}

// OverrideAccelVelDecel replaces the ramps and the cruise velocity of
// the in-flight move together.
func (a *Axis) OverrideAccelVelDecel(accel, newVel, decel float64) error {
	const op = "axm.OverrideAccelVelDecel"
	a.mu.Lock()
	defer a.mu.Unlock()
	if accel <= 0 || decel <= 0 {
		return axt.Errorf(axt.MotionInvalidAccelTime, op, "accel %g decel %g", accel, decel)
	}
	if a.overrideMode == 1 {
		if err := a.checkVelLocked(op, newVel); err != nil {
			return err
		}
		a.latchedOvr = &latchedOverride{vel: math.Abs(newVel), accel: accel, decel: decel}
		return nil
	}
	m := a.move
	if m == nil || m.stopped {
		return axt.Errorf(axt.MotionErrorInNonmotion, op, "no move in flight")
	}
	velP := a.toPulse(math.Abs(newVel))
	m.accel, m.decel = a.rampRates(velP, accel, decel)
	return a.applyVelLocked(op, newVel)
}

// OverrideVelAtPos arms one velocity change applied when the selected
// position register sweeps past the threshold.
func (a *Axis) OverrideVelAtPos(threshold float64, source axt.Selection, newVel float64) error {
	const op = "axm.OverrideVelAtPos"
	if source != axt.Command && source != axt.Actual {
		return axt.Errorf(axt.MotionInvalidSelection, op, "source %d", source)
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if err := a.checkVelLocked(op, newVel); err != nil {
		return err
	}
	a.armedOvr = []armedOverride{{pos: threshold, vel: math.Abs(newVel)}}
	a.armedSource = source
	a.trace(op, zap.Float64("at", threshold), zap.Float64("vel", newVel))
	return nil
}

// OverrideVelAtMultiPos arms up to five sequential position/velocity
// pairs, consumed in order as the axis sweeps.
func (a *Axis) OverrideVelAtMultiPos(positions, velocities []float64, source axt.Selection) error {
	const op = "axm.OverrideVelAtMultiPos"
	n := len(positions)
	if n == 0 || n > 5 || len(velocities) != n {
		return axt.Errorf(axt.BadParameter, op, "%d points (1..5)", n)
	}
	if source != axt.Command && source != axt.Actual {
		return axt.Errorf(axt.MotionInvalidSelection, op, "source %d", source)
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	armed := make([]armedOverride, n)
	for i := range positions {
		if err := a.checkVelLocked(op, velocities[i]); err != nil {
			return err
		}
		armed[i] = armedOverride{pos: positions[i], vel: math.Abs(velocities[i])}
	}
	a.armedOvr = armed
	a.armedSource = source
	return nil
}

// OverridePending reports how many armed position points remain.
func (a *Axis) OverridePending() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.armedOvr)
}

// tickOverrides consumes armed position points the sweep has crossed.
func (a *Axis) tickOverrides(now float64) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.move == nil || a.move.stopped {
		return
	}
	for len(a.armedOvr) > 0 {
		st := a.c.rack.State(a.no)
		pos := st.CmdPos
		if a.armedSource == axt.Actual {
			pos = st.ActPos
		}
		user := a.toUser(pos - a.compOffset)
		next := a.armedOvr[0]
		crossed := (a.moveDir > 0 && user >= next.pos) ||
			(a.moveDir < 0 && user <= next.pos)
		if !crossed {
			return
		}
		a.armedOvr = a.armedOvr[1:]
		if err := a.applyVelLocked("axm.OverrideVelAtPos", next.vel); err != nil {
			a.c.log.Debug("armed override not applied",
				zap.Int("axis", a.no), zap.Error(err))
			return
		}
	}
}
