// PVT trajectory construction
//
// Copyright (C) 2026 Go binding
//
// This file may be distributed under the terms of the GNU GPLv3 license.

package profile

import (
	"math"

	"axl-go/pkg/axt"
)

// PVT builds a trajectory through (time, position, velocity) knots,
// starting from rest at the origin. Every knot is met exactly: each
// span runs as two equal-duration velocity ramps through the midpoint
// velocity that preserves the span distance, the integral-preserving
// piecewise-linear reduction of the cubic between the knots.
func PVT(times, pos, vel []float64) (*Profile, error) {
	return PVTFrom(0, times, pos, vel)
}

// PVTFrom is PVT with a nonzero launch velocity, for trajectories that
// take over from a path already in flight.
func PVTFrom(launchVel float64, times, pos, vel []float64) (*Profile, error) {
	const op = "profile.PVT"
	n := len(times)
	if n == 0 || len(pos) != n || len(vel) != n {
		return nil, axt.Errorf(axt.BadParameter, op,
			"%d times, %d positions, %d velocities", n, len(pos), len(vel))
	}
	var b builder
	t0, p0, v0 := 0.0, 0.0, launchVel
	for i := 0; i < n; i++ {
		dt := times[i] - t0
		if dt <= 0 || math.IsNaN(dt) || math.IsInf(dt, 0) {
			return nil, axt.Errorf(axt.MotionInvalidTime, op,
				"knot %d time %g not after %g", i, times[i], t0)
		}
		if math.IsNaN(pos[i]) || math.IsInf(pos[i], 0) || math.IsNaN(vel[i]) || math.IsInf(vel[i], 0) {
			return nil, axt.Errorf(axt.BadParameter, op, "knot %d not finite", i)
		}
		dp := pos[i] - p0
		v1 := vel[i]
		vm := (4*dp/dt - v0 - v1) / 2
		b.add(v0, vm, dt/2, 0)
		b.add(vm, v1, dt/2, 0)
		t0, p0, v0 = times[i], pos[i], v1
	}
	return b.done(), nil
}
