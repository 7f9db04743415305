// Velocity profile generation
//
// Copyright (C) 2026 Go binding
//
// This file may be distributed under the terms of the GNU GPLv3 license.

// Package profile builds one-dimensional motion profiles: piecewise
// velocity ramps with an optional jerk-limited S shape. A profile maps
// elapsed seconds to signed (position, velocity) in user units; the
// motion layer samples it every service tick and replans it for
// overrides and stops.
package profile

import (
	"math"
	"sort"

	"axl-go/pkg/axt"
)

// phase is one velocity segment. Velocities are signed; j selects the
// ramp shape (0 constant accel, up to 1 fully jerk-limited). A cruise
// phase has v0 == v1 and may be open-ended.
type phase struct {
	t0 float64 // start time
	dt float64 // duration, +Inf for open-ended cruise
	s0 float64 // position at t0
	v0 float64
	v1 float64
	j  float64
}

// Profile is an immutable planned motion. The zero value is a
// completed zero-length move.
type Profile struct {
	phases []phase
	dur    float64
	dist   float64 // signed end position
	endVel float64 // signed velocity at dur
}

// rampShape returns the normalized velocity fraction f and its
// integral F at u in [0,1] for jerk fraction j. f(0)=0, f(1)=1, and
// F(1)=1/2 for every j, so a shaped ramp covers the same distance as a
// constant-accel ramp between the same velocities.
func rampShape(j, u float64) (f, F float64) {
	if j <= 0 {
		return u, u * u / 2
	}
	a := 2 / (2 - j) // peak accel relative to the constant-accel ramp
	h := j / 2
	switch {
	case u <= h:
		return a * u * u / j, a * u * u * u / (3 * j)
	case u <= 1-h:
		fh := a * j / 4
		Fh := a * j * j / 24
		w := u - h
		return fh + a*w, Fh + fh*w + a*w*w/2
	default:
		w := 1 - u
		_, Fw := rampShape(j, w)
		return 1 - a*w*w/j, u - 0.5 + Fw
	}
}

func (ph *phase) at(t float64) (pos, vel float64) {
	tau := t - ph.t0
	if ph.v0 == ph.v1 {
		return ph.s0 + ph.v0*tau, ph.v0
	}
	u := tau / ph.dt
	f, F := rampShape(ph.j, u)
	dv := ph.v1 - ph.v0
	return ph.s0 + ph.dt*(ph.v0*u+dv*F), ph.v0 + dv*f
}

// At samples the profile. Times before 0 clamp to the start, times
// past the end clamp to the final state. Phases are contiguous in
// time, so the lookup can bisect; path plans reach tens of thousands
// of phases and get sampled every service tick.
func (p *Profile) At(t float64) (pos, vel float64) {
	if len(p.phases) == 0 {
		return p.dist, 0
	}
	if t <= 0 {
		return 0, p.phases[0].v0
	}
	i := sort.Search(len(p.phases), func(i int) bool {
		ph := &p.phases[i]
		return t < ph.t0+ph.dt
	})
	if i == len(p.phases) {
		return p.dist, p.endVel
	}
	return p.phases[i].at(t)
}

// Duration returns the profile length in seconds, +Inf for open-ended
// velocity profiles.
func (p *Profile) Duration() float64 { return p.dur }

// Distance returns the signed end position relative to the start.
func (p *Profile) Distance() float64 { return p.dist }

// EndVelocity returns the signed velocity at the end of the profile.
func (p *Profile) EndVelocity() float64 { return p.endVel }

// Done reports whether the profile has finished at time t.
func (p *Profile) Done(t float64) bool { return t >= p.dur }

// Peak returns the largest unsigned position excursion over the whole
// profile. It differs from |Distance| when the profile overshoots.
func (p *Profile) Peak() float64 {
	peak := math.Abs(p.dist)
	for i := range p.phases {
		ph := &p.phases[i]
		if s := math.Abs(ph.s0); s > peak {
			peak = s
		}
		// An extremum inside a phase needs a velocity sign change.
		if ph.v0 == ph.v1 || ph.v0*ph.v1 >= 0 || math.IsInf(ph.dt, 1) {
			continue
		}
		lo, hi := ph.t0, ph.t0+ph.dt
		for k := 0; k < 40; k++ {
			mid := (lo + hi) / 2
			if _, vel := ph.at(mid); vel*ph.v0 > 0 {
				lo = mid
			} else {
				hi = mid
			}
		}
		if pos, _ := ph.at(lo); math.Abs(pos) > peak {
			peak = math.Abs(pos)
		}
	}
	return peak
}

// append concatenates q after p, shifting its time and position base.
func (p *Profile) append(q *Profile) *Profile {
	out := &Profile{
		phases: make([]phase, 0, len(p.phases)+len(q.phases)),
		dur:    p.dur + q.dur,
		dist:   p.dist + q.dist,
		endVel: q.endVel,
	}
	out.phases = append(out.phases, p.phases...)
	for _, ph := range q.phases {
		ph.t0 += p.dur
		ph.s0 += p.dist
		out.phases = append(out.phases, ph)
	}
	return out
}

// Concat joins profiles end to end on one timeline. Continuous-path
// plans build one per-segment profile at a time and chain them here.
func Concat(parts ...*Profile) *Profile {
	n := 0
	for _, p := range parts {
		n += len(p.phases)
	}
	out := &Profile{phases: make([]phase, 0, n)}
	for _, p := range parts {
		for _, ph := range p.phases {
			ph.t0 += out.dur
			ph.s0 += out.dist
			out.phases = append(out.phases, ph)
		}
		out.dur += p.dur
		out.dist += p.dist
		out.endVel = p.endVel
	}
	return out
}

type builder struct {
	p Profile
}

func (b *builder) add(v0, v1, dt, j float64) {
	if dt <= 0 {
		return
	}
	b.p.phases = append(b.p.phases, phase{
		t0: b.p.dur, dt: dt, s0: b.p.dist, v0: v0, v1: v1, j: j,
	})
	if math.IsInf(dt, 1) {
		b.p.dur = math.Inf(1)
		b.p.dist = math.Inf(1)
		if v1 < 0 {
			b.p.dist = math.Inf(-1)
		}
	} else {
		b.p.dur += dt
		b.p.dist += dt * (v0 + v1) / 2
	}
	b.p.endVel = v1
}

func (b *builder) done() *Profile { return &b.p }

func checkVel(op string, vel float64) error {
	if vel <= 0 || math.IsNaN(vel) || math.IsInf(vel, 0) {
		return axt.Errorf(axt.MotionInvalidVelocity, op, "velocity %g", vel)
	}
	return nil
}

func checkAccel(op string, accel, decel float64) error {
	if accel <= 0 || math.IsNaN(accel) || math.IsInf(accel, 0) {
		return axt.Errorf(axt.MotionInvalidAccelTime, op, "accel %g", accel)
	}
	if decel <= 0 || math.IsNaN(decel) || math.IsInf(decel, 0) {
		return axt.Errorf(axt.MotionInvalidAccelTime, op, "decel %g", decel)
	}
	return nil
}

func checkJerk(op string, j float64) error {
	if j < 0 || j > 1 || math.IsNaN(j) {
		return axt.Errorf(axt.MotionProfileInvalid, op, "jerk fraction %g", j)
	}
	return nil
}

// Move plans a rest-to-rest move over a signed distance. When the
// distance is too short to reach vel the peak velocity is clamped so
// the accel and decel slopes are honored.
func Move(dist, vel, accel, decel, j float64) (*Profile, error) {
	const op = "profile.Move"
	if err := checkVel(op, vel); err != nil {
		return nil, err
	}
	if err := checkAccel(op, accel, decel); err != nil {
		return nil, err
	}
	if err := checkJerk(op, j); err != nil {
		return nil, err
	}
	if math.IsNaN(dist) || math.IsInf(dist, 0) {
		return nil, axt.Errorf(axt.BadParameter, op, "distance %g", dist)
	}
	if dist == 0 {
		return &Profile{}, nil
	}

	dir := 1.0
	d := dist
	if d < 0 {
		dir = -1.0
		d = -d
	}
	if peak2 := 2 * d * accel * decel / (accel + decel); peak2 < vel*vel {
		vel = math.Sqrt(peak2)
	}
	accelT := vel / accel
	decelT := vel / decel
	cruiseD := d - vel*accelT/2 - vel*decelT/2
	if cruiseD < 0 {
		cruiseD = 0
	}

	var b builder
	b.add(0, dir*vel, accelT, j)
	b.add(dir*vel, dir*vel, cruiseD/vel, 0)
	b.add(dir*vel, 0, decelT, j)
	return b.done(), nil
}

// MoveTimePriority plans a rest-to-rest move where accel and decel are
// given as ramp times rather than slopes. A move too short to cruise
// keeps the ramp times and lowers the peak velocity instead.
func MoveTimePriority(dist, vel, accelT, decelT, j float64) (*Profile, error) {
	const op = "profile.MoveTimePriority"
	if err := checkVel(op, vel); err != nil {
		return nil, err
	}
	if accelT <= 0 || decelT <= 0 || math.IsNaN(accelT) || math.IsNaN(decelT) {
		return nil, axt.Errorf(axt.MotionInvalidAccelTime, op,
			"accel time %g decel time %g", accelT, decelT)
	}
	if err := checkJerk(op, j); err != nil {
		return nil, err
	}
	if dist == 0 {
		return &Profile{}, nil
	}

	dir := 1.0
	d := dist
	if d < 0 {
		dir = -1.0
		d = -d
	}
	if rampD := vel * (accelT + decelT) / 2; rampD > d {
		vel = 2 * d / (accelT + decelT)
	}
	cruiseD := d - vel*(accelT+decelT)/2
	if cruiseD < 0 {
		cruiseD = 0
	}

	var b builder
	b.add(0, dir*vel, accelT, j)
	b.add(dir*vel, dir*vel, cruiseD/vel, 0)
	b.add(dir*vel, 0, decelT, j)
	return b.done(), nil
}

// MoveFrom plans a move over a signed remaining distance starting at
// signed velocity v0. Overrides replan with it mid-flight. Starts that
// point away from the target, or that carry too much speed to stop
// inside it, decelerate to rest first and approach from the far side.
func MoveFrom(v0, dist, vel, accel, decel, j float64) (*Profile, error) {
	const op = "profile.MoveFrom"
	if v0 == 0 {
		return Move(dist, vel, accel, decel, j)
	}
	if err := checkVel(op, vel); err != nil {
		return nil, err
	}
	if err := checkAccel(op, accel, decel); err != nil {
		return nil, err
	}
	if err := checkJerk(op, j); err != nil {
		return nil, err
	}

	stop, err := Stop(v0, decel, j)
	if err != nil {
		return nil, err
	}
	if dist == 0 {
		back, err := Move(-stop.Distance(), vel, accel, decel, j)
		if err != nil {
			return nil, err
		}
		return stop.append(back), nil
	}

	dir := 1.0
	d := dist
	if d < 0 {
		dir = -1.0
		d = -d
	}
	w0 := v0 * dir // velocity component toward the target
	if w0 < 0 || w0*w0/(2*decel) > d {
		// Wrong direction, or overshoot is unavoidable.
		rest, err := Move(dist-stop.Distance(), vel, accel, decel, j)
		if err != nil {
			return nil, err
		}
		return stop.append(rest), nil
	}

	peak := math.Sqrt((2*d*accel*decel + decel*w0*w0) / (accel + decel))
	cruiseV := math.Min(vel, peak)

	var b builder
	if cruiseV >= w0 {
		b.add(dir*w0, dir*cruiseV, (cruiseV-w0)/accel, j)
		cruiseD := d - (cruiseV*cruiseV-w0*w0)/(2*accel) - cruiseV*cruiseV/(2*decel)
		if cruiseD > 0 {
			b.add(dir*cruiseV, dir*cruiseV, cruiseD/cruiseV, 0)
		}
	} else {
		// Already faster than the requested cruise.
		b.add(dir*w0, dir*cruiseV, (w0-cruiseV)/decel, j)
		cruiseD := d - (w0*w0-cruiseV*cruiseV)/(2*decel) - cruiseV*cruiseV/(2*decel)
		if cruiseD > 0 {
			b.add(dir*cruiseV, dir*cruiseV, cruiseD/cruiseV, 0)
		}
	}
	b.add(dir*cruiseV, 0, cruiseV/decel, j)
	return b.done(), nil
}

// Velocity plans an open-ended velocity move from signed v0 to signed
// target, ramping through zero when the direction reverses. The
// returned profile never completes.
func Velocity(v0, target, accel, j float64) (*Profile, error) {
	const op = "profile.Velocity"
	if accel <= 0 || math.IsNaN(accel) || math.IsInf(accel, 0) {
		return nil, axt.Errorf(axt.MotionInvalidAccelTime, op, "accel %g", accel)
	}
	if math.IsNaN(target) || math.IsInf(target, 0) {
		return nil, axt.Errorf(axt.MotionInvalidVelocity, op, "velocity %g", target)
	}
	if err := checkJerk(op, j); err != nil {
		return nil, err
	}
	if target == 0 {
		return Stop(v0, accel, j)
	}

	var b builder
	b.add(v0, target, math.Abs(target-v0)/accel, j)
	b.add(target, target, math.Inf(1), 0)
	return b.done(), nil
}

// Stop plans a deceleration to rest from signed velocity v0.
func Stop(v0, decel, j float64) (*Profile, error) {
	const op = "profile.Stop"
	if decel <= 0 || math.IsNaN(decel) || math.IsInf(decel, 0) {
		return nil, axt.Errorf(axt.MotionInvalidAccelTime, op, "decel %g", decel)
	}
	if err := checkJerk(op, j); err != nil {
		return nil, err
	}
	if v0 == 0 {
		return &Profile{}, nil
	}

	var b builder
	b.add(v0, 0, math.Abs(v0)/decel, j)
	return b.done(), nil
}

// Constant plans an endless cruise at signed velocity v. Gear slaves
// and torque-mode drives sample it.
func Constant(v float64) *Profile {
	if v == 0 {
		return &Profile{}
	}
	var b builder
	b.add(v, v, math.Inf(1), 0)
	return b.done()
}
