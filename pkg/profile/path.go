// Path-segment profile with boundary velocities
//
// Copyright (C) 2026 Go binding
//
// This file may be distributed under the terms of the GNU GPLv3 license.

package profile

import (
	"math"

	"axl-go/pkg/axt"
)

// Path plans one segment of a continuous path: length dist traversed
// from entry velocity vin to exit velocity vout, cruising at up to
// vmax. All arguments are magnitudes in the path parameter; direction
// lives in the geometry, not here. The caller must pick boundary
// velocities the ramps can actually connect; a lookahead pass that
// clamps each corner to sqrt(v^2 + 2*slope*dist) of its neighbors
// guarantees that. vin may exceed vmax: an override that lowers the
// cruise cap plans its tail from the velocity already reached, and the
// segment then opens with a ramp down to the cap.
func Path(dist, vin, vmax, vout, accel, decel float64) (*Profile, error) {
	const op = "profile.Path"
	if err := checkVel(op, vmax); err != nil {
		return nil, err
	}
	if err := checkAccel(op, accel, decel); err != nil {
		return nil, err
	}
	if dist < 0 || math.IsNaN(dist) || math.IsInf(dist, 0) {
		return nil, axt.Errorf(axt.BadParameter, op, "length %g", dist)
	}
	if vin < 0 || math.IsNaN(vin) || math.IsInf(vin, 0) || vout < 0 || vout > vmax {
		return nil, axt.Errorf(axt.MotionProfileInvalid, op,
			"boundary velocities %g..%g outside 0..%g", vin, vout, vmax)
	}
	if dist == 0 {
		return &Profile{endVel: vout}, nil
	}

	// Shortest length that can connect the boundary velocities.
	minD := (vout*vout - vin*vin) / (2 * accel)
	if vin > vout {
		minD = (vin*vin - vout*vout) / (2 * decel)
	}
	if dist < minD*(1-1e-9) {
		return nil, axt.Errorf(axt.MotionProfileInvalid, op,
			"length %g cannot connect %g to %g", dist, vin, vout)
	}
	if minD > 0 && dist <= minD*(1+1e-9) {
		var b builder
		b.add(vin, vout, 2*dist/(vin+vout), 0)
		return b.done(), nil
	}

	var b builder
	if vin > vmax {
		headT := (vin - vmax) / decel
		headD := (vin + vmax) / 2 * headT
		b.add(vin, vmax, headT, 0)
		dist -= headD
		if dist < 0 {
			dist = 0
		}
		vin = vmax
	}

	peak := math.Sqrt((2*accel*decel*dist + decel*vin*vin + accel*vout*vout) / (accel + decel))
	vp := math.Min(vmax, peak)
	accelT := (vp - vin) / accel
	decelT := (vp - vout) / decel
	cruiseD := dist - (vin+vp)/2*accelT - (vp+vout)/2*decelT
	if cruiseD < 0 {
		cruiseD = 0
	}

	if accelT > 0 {
		b.add(vin, vp, accelT, 0)
	}
	if cruiseD > 0 {
		b.add(vp, vp, cruiseD/vp, 0)
	}
	if decelT > 0 {
		b.add(vp, vout, decelT, 0)
	}
	return b.done(), nil
}
