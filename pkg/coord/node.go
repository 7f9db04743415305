// Motion node kinds and path geometry
//
// Copyright (C) 2026 Go binding
//
// This file may be distributed under the terms of the GNU GPLv3 license.

package coord

import (
	"math"
	"sort"

	"axl-go/pkg/axt"
	"axl-go/pkg/pool"
)

type nodeKind int

const (
	nodeLine nodeKind = iota
	nodeArcCenter
	nodeArcPoint
	nodeArcRadius
	nodeArcAngle
	nodeSpline
	nodeFillet
)

func (k nodeKind) String() string {
	switch k {
	case nodeLine:
		return "line"
	case nodeArcCenter:
		return "arc-center"
	case nodeArcPoint:
		return "arc-point"
	case nodeArcRadius:
		return "arc-radius"
	case nodeArcAngle:
		return "arc-angle"
	case nodeSpline:
		return "spline"
	case nodeFillet:
		return "fillet"
	}
	return "node"
}

// outputCmd is a digital output co-scheduled against node progress.
type outputCmd struct {
	module int
	bit    int
	level  bool
	at     float64 // seconds or travel units past node start
	timed  bool
	fired  bool
}

// pathNode is one queued FIFO entry. Coordinates are raw as pushed;
// absolute/relative interpretation is resolved against the running
// point when the sequence is planned at start.
type pathNode struct {
	kind   nodeKind
	end    []float64
	aux    []float64   // center or through-point
	points [][]float64 // spline
	zEnd   float64
	helix  bool
	sweep  float64 // radians, sign carries direction
	dir    axt.MoveDir
	full   bool
	short  bool
	radius float64
	vel    float64
	accel  float64
	decel  float64
	abs    bool
	outs   []outputCmd
}

// geometry maps path length to absolute axis positions. Implementations
// are immutable once planned. point draws its result from the position
// vector pool; callers that discard the vector may return it with
// pool.PutFloats.
type geometry interface {
	point(s float64) []float64
	dir(s float64) []float64
}

type lineGeom struct {
	from []float64
	u    []float64 // unit direction
	len  float64
}

func (l *lineGeom) point(s float64) []float64 {
	out := pool.GetFloats(len(l.from))
	for i := range out {
		out[i] = l.from[i] + l.u[i]*s
	}
	return out
}

func (l *lineGeom) dir(float64) []float64 { return l.u }

// arcGeom runs in the group's lead plane (first two mapped axes); a
// helical pitch moves the third axis linearly with path fraction.
// Remaining axes hold their entry position.
type arcGeom struct {
	base   []float64 // full-dim position at arc entry
	cx, cy float64
	r      float64
	a0     float64 // entry angle
	sweep  float64 // signed radians
	zDist  float64 // helix travel on axis index 2
	len    float64
}

func newArc(base []float64, cx, cy, a0, r, sweep, zDist float64) *arcGeom {
	planar := r * math.Abs(sweep)
	return &arcGeom{
		base:  append([]float64(nil), base...),
		cx:    cx,
		cy:    cy,
		r:     r,
		a0:    a0,
		sweep: sweep,
		zDist: zDist,
		len:   math.Hypot(planar, zDist),
	}
}

func (a *arcGeom) point(s float64) []float64 {
	f := 0.0
	if a.len > 0 {
		f = s / a.len
	}
	th := a.a0 + a.sweep*f
	out := pool.GetFloats(len(a.base))
	copy(out, a.base)
	out[0] = a.cx + a.r*math.Cos(th)
	out[1] = a.cy + a.r*math.Sin(th)
	if a.zDist != 0 {
		out[2] = a.base[2] + a.zDist*f
	}
	return out
}

func (a *arcGeom) dir(s float64) []float64 {
	f := 0.0
	if a.len > 0 {
		f = s / a.len
	}
	th := a.a0 + a.sweep*f
	w := a.sweep * a.r / a.len
	out := make([]float64, len(a.base))
	out[0] = -math.Sin(th) * w
	out[1] = math.Cos(th) * w
	if a.zDist != 0 {
		out[2] = a.zDist / a.len
	}
	return out
}

// splineGeom is a Catmull-Rom curve through the given points,
// parametrized by arc length over a sampled table.
type splineGeom struct {
	pts  [][]float64
	parU []float64 // sample parameter
	parS []float64 // cumulative length at sample
	len  float64
}

const splineSamples = 32

func newSpline(pts [][]float64) *splineGeom {
	sp := &splineGeom{pts: pts}
	spans := len(pts) - 1
	n := spans*splineSamples + 1
	sp.parU = make([]float64, n)
	sp.parS = make([]float64, n)
	prev := sp.eval(0)
	for i := 1; i < n; i++ {
		u := float64(i) / float64(n-1) * float64(spans)
		p := sp.eval(u)
		d := 0.0
		for k := range p {
			d += (p[k] - prev[k]) * (p[k] - prev[k])
		}
		sp.parU[i] = u
		sp.parS[i] = sp.parS[i-1] + math.Sqrt(d)
		prev = p
	}
	sp.len = sp.parS[n-1]
	return sp
}

// eval evaluates the curve at global parameter u in [0, spans].
func (sp *splineGeom) eval(u float64) []float64 {
	spans := len(sp.pts) - 1
	i := int(u)
	if i >= spans {
		i = spans - 1
	}
	t := u - float64(i)
	p1, p2 := sp.pts[i], sp.pts[i+1]
	p0, p3 := p1, p2
	if i > 0 {
		p0 = sp.pts[i-1]
	}
	if i+2 <= spans {
		p3 = sp.pts[i+2]
	}
	h00 := (1 + 2*t) * (1 - t) * (1 - t)
	h10 := t * (1 - t) * (1 - t)
	h01 := t * t * (3 - 2*t)
	h11 := t * t * (t - 1)
	out := pool.GetFloats(len(p1))
	for k := range out {
		m1 := (p2[k] - p0[k]) / 2
		m2 := (p3[k] - p1[k]) / 2
		out[k] = h00*p1[k] + h10*m1 + h01*p2[k] + h11*m2
	}
	return out
}

func (sp *splineGeom) evalDeriv(u float64) []float64 {
	spans := len(sp.pts) - 1
	i := int(u)
	if i >= spans {
		i = spans - 1
	}
	t := u - float64(i)
	p1, p2 := sp.pts[i], sp.pts[i+1]
	p0, p3 := p1, p2
	if i > 0 {
		p0 = sp.pts[i-1]
	}
	if i+2 <= spans {
		p3 = sp.pts[i+2]
	}
	d00 := 6 * t * (t - 1)
	d10 := (1 - t) * (1 - 3*t)
	d01 := 6 * t * (1 - t)
	d11 := t * (3*t - 2)
	out := make([]float64, len(p1))
	for k := range out {
		m1 := (p2[k] - p0[k]) / 2
		m2 := (p3[k] - p1[k]) / 2
		out[k] = d00*p1[k] + d10*m1 + d01*p2[k] + d11*m2
	}
	return out
}

// paramAt maps arc length to curve parameter via the sample table.
func (sp *splineGeom) paramAt(s float64) float64 {
	if s <= 0 {
		return 0
	}
	if s >= sp.len {
		return sp.parU[len(sp.parU)-1]
	}
	i := sort.SearchFloat64s(sp.parS, s)
	if i == 0 {
		return 0
	}
	s0, s1 := sp.parS[i-1], sp.parS[i]
	u0, u1 := sp.parU[i-1], sp.parU[i]
	if s1 == s0 {
		return u0
	}
	return u0 + (u1-u0)*(s-s0)/(s1-s0)
}

func (sp *splineGeom) point(s float64) []float64 {
	return sp.eval(sp.paramAt(s))
}

func (sp *splineGeom) dir(s float64) []float64 {
	d := sp.evalDeriv(sp.paramAt(s))
	n := 0.0
	for _, v := range d {
		n += v * v
	}
	n = math.Sqrt(n)
	if n == 0 {
		return d
	}
	for i := range d {
		d[i] /= n
	}
	return d
}

func vecLen(v []float64) float64 {
	s := 0.0
	for _, x := range v {
		s += x * x
	}
	return math.Sqrt(s)
}

func vecSub(a, b []float64) []float64 {
	out := make([]float64, len(a))
	for i := range a {
		out[i] = a[i] - b[i]
	}
	return out
}

func vecUnit(v []float64) ([]float64, float64) {
	n := vecLen(v)
	out := make([]float64, len(v))
	if n == 0 {
		return out, 0
	}
	for i := range v {
		out[i] = v[i] / n
	}
	return out, n
}

// sweepTo computes the signed sweep from angle a0 to a1 in the given
// rotation sense, in (0, 2pi] for counterclockwise and [-2pi, 0) for
// clockwise. Coincident angles mean a full circle.
func sweepTo(a0, a1 float64, dir axt.MoveDir) float64 {
	d := math.Mod(a1-a0, 2*math.Pi)
	if dir == axt.DirCCW {
		if d <= 1e-12 {
			d += 2 * math.Pi
		}
		return d
	}
	if d >= -1e-12 {
		d -= 2 * math.Pi
	}
	return d
}
