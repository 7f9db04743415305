// Continuous-path planning and execution
//
// Copyright (C) 2026 Go binding
//
// This file may be distributed under the terms of the GNU GPLv3 license.

package coord

import (
	"math"
	"sort"

	"go.uber.org/zap"

	"axl-go/pkg/axt"
	"axl-go/pkg/event"
	"axl-go/pkg/motion"
	"axl-go/pkg/pool"
	"axl-go/pkg/profile"
	"axl-go/pkg/vrack"
)

const (
	// pathQuantum is the knot spacing used when the path plan is
	// lowered onto per-axis trajectories. Long paths widen it so the
	// knot count stays bounded.
	pathQuantum  = 0.002
	maxPathKnots = 100000

	minSegLen = 1e-9
)

// segment is one planned stretch of geometry and the velocity caps it
// runs under.
type segment struct {
	node   int
	geom   geometry
	length float64
	vel    float64
	accel  float64
	decel  float64
}

// liveOut is a co-scheduled output resolved against the plan.
type liveOut struct {
	node   int
	startS float64
	cmd    outputCmd
}

// pathRun is the execution state of a started sequence. The geometry
// side (segs, segS, outs) is fixed for the life of the run; stops and
// overrides replace only the time plan and its anchor.
type pathRun struct {
	nodes  []*pathNode
	axes   []int
	axs    []*motion.Axis
	claims []func()
	upp    []float64

	segs []segment
	segS []float64 // segS[i] = path length at segs[i] entry, segS[len(segs)] = total

	prof  *profile.Profile // elapsed time -> path length past sBase
	sBase float64
	t0    float64

	mode  ProfileMode
	angle float64 // junction carry threshold, radians

	velCap   float64 // override values; 0 leaves the per-node caps
	accelCap float64
	decelCap float64

	curSeg     int
	curNode    int
	nodeEnterT float64
	outs       []liveOut
	stopping   bool
}

func (r *pathRun) total() float64 { return r.segS[len(r.segs)] }

func (r *pathRun) release() {
	for _, rel := range r.claims {
		rel()
	}
	r.claims = nil
}

// caps returns the effective velocity and ramp rates of a segment with
// any override applied.
func (r *pathRun) caps(i int) (vel, accel, decel float64) {
	s := &r.segs[i]
	vel, accel, decel = s.vel, s.accel, s.decel
	if r.velCap > 0 {
		vel = r.velCap
	}
	if r.accelCap > 0 {
		accel = r.accelCap
	}
	if r.decelCap > 0 {
		decel = r.decelCap
	}
	return vel, accel, decel
}

// Start launches the closed sequence as one continuous interpolation
// across the mapped axes. angleDeg is the junction angle up to which
// the velocity-continuous modes carry speed through a corner.
func (g *Group) Start(mode ProfileMode, angleDeg float64) error {
	const op = "axm.ContiStart"
	if mode < VelContinuous || mode > SpeedOnly {
		return axt.Errorf(axt.BadParameter, op, "profile mode %d", int(mode))
	}
	if angleDeg < 0 || angleDeg > 180 || math.IsNaN(angleDeg) {
		return axt.Errorf(axt.BadParameter, op, "junction angle %g", angleDeg)
	}

	g.m.mu.Lock()
	defer g.m.mu.Unlock()
	if g.run != nil {
		return axt.Errorf(axt.StillContiMotion, op, "coordinate %d running", g.no)
	}
	if g.building {
		return axt.Errorf(axt.NotContiEnd, op, "sequence still open")
	}
	if !g.closed {
		return axt.Errorf(axt.NotContiBegin, op, "no sequence prepared")
	}
	if len(g.nodes) == 0 {
		return axt.Errorf(axt.BadParameter, op, "empty sequence")
	}

	r := &pathRun{
		nodes: g.nodes,
		axes:  append([]int(nil), g.axes...),
		mode:  mode,
		angle: angleDeg * math.Pi / 180,
	}
	for _, no := range r.axes {
		ax, err := g.m.mc.Axis(no)
		if err != nil {
			r.release()
			return err
		}
		rel, err := ax.ClaimForPath(op)
		if err != nil {
			r.release()
			return err
		}
		r.axs = append(r.axs, ax)
		r.claims = append(r.claims, rel)
	}

	start := make([]float64, len(r.axes))
	r.upp = make([]float64, len(r.axes))
	for i, ax := range r.axs {
		start[i], _ = ax.CmdPos()
		unit, pulse, _ := ax.GetMoveUnitPerPulse()
		r.upp[i] = unit / float64(pulse)
	}

	if err := r.resolve(op, start, g.connRadius); err != nil {
		r.release()
		return err
	}
	if err := r.scheduleFrom(0, 0); err != nil {
		r.release()
		return err
	}
	if err := r.launch(g.m.rack, 0); err != nil {
		r.release()
		return err
	}
	r.nodeEnterT = r.t0

	g.run = r
	g.nodes = nil
	g.closed = false
	g.lastTotal = len(r.nodes)
	g.m.log.Info("continuous path started",
		zap.Int("coord", g.no), zap.Int("nodes", len(r.nodes)),
		zap.Int("segments", len(r.segs)), zap.Float64("length", r.total()),
		zap.Float64("duration", r.prof.Duration()))
	return nil
}

// resolve expands the node FIFO into contiguous geometry segments
// anchored at the group's current position.
func (r *pathRun) resolve(op string, start []float64, connRadius float64) error {
	cur := append([]float64(nil), start...)
	for idx, n := range r.nodes {
		var err error
		switch n.kind {
		case nodeLine:
			cur = r.addLine(idx, n, cur)
		case nodeFillet:
			cur, err = r.addFillet(op, idx, n, cur)
		case nodeArcCenter:
			cur, err = r.addArcCenter(op, idx, n, cur)
		case nodeArcPoint:
			cur, err = r.addArcPoint(op, idx, n, cur)
		case nodeArcRadius:
			cur, err = r.addArcRadius(op, idx, n, cur)
		case nodeArcAngle:
			cur, err = r.addArcAngle(op, idx, n, cur)
		case nodeSpline:
			cur = r.addSpline(idx, n, cur)
		}
		if err != nil {
			return err
		}
	}
	if len(r.segs) == 0 {
		return axt.Errorf(axt.MotionProfileInvalid, op, "sequence has no motion")
	}
	if r.mode == AutoBlend && connRadius > 0 {
		r.blendCorners(connRadius)
	}
	r.index()
	return nil
}

// index builds the length table and resolves co-scheduled outputs to
// absolute path positions.
func (r *pathRun) index() {
	r.segS = make([]float64, len(r.segs)+1)
	for i := range r.segs {
		r.segS[i+1] = r.segS[i] + r.segs[i].length
	}
	nodeS := make([]float64, len(r.nodes))
	seg := 0
	for idx := range r.nodes {
		for seg < len(r.segs) && r.segs[seg].node < idx {
			seg++
		}
		nodeS[idx] = r.segS[seg]
	}
	for idx, n := range r.nodes {
		for _, cmd := range n.outs {
			r.outs = append(r.outs, liveOut{node: idx, startS: nodeS[idx], cmd: cmd})
		}
	}
	r.curNode = r.segs[0].node
}

func resolveVec(abs bool, base, v []float64) []float64 {
	out := append([]float64(nil), v...)
	if !abs {
		for i := range out {
			out[i] += base[i]
		}
	}
	return out
}

func (r *pathRun) addLine(idx int, n *pathNode, cur []float64) []float64 {
	end := resolveVec(n.abs, cur, n.end)
	u, l := vecUnit(vecSub(end, cur))
	if l > minSegLen {
		r.segs = append(r.segs, segment{
			node:   idx,
			geom:   &lineGeom{from: append([]float64(nil), cur...), u: u, len: l},
			length: l,
			vel:    n.vel, accel: n.accel, decel: n.decel,
		})
	}
	return end
}

func (r *pathRun) addFillet(op string, idx int, n *pathNode, cur []float64) ([]float64, error) {
	end := resolveVec(n.abs, cur, n.end)
	u2, l2 := vecUnit(vecSub(end, cur))
	if l2 <= minSegLen {
		return nil, axt.Errorf(axt.MotionProfileInvalid, op, "fillet node %d has no travel", idx)
	}
	if len(r.segs) == 0 {
		return nil, axt.Errorf(axt.MotionProfileInvalid, op, "fillet node %d has no preceding line", idx)
	}
	prev := &r.segs[len(r.segs)-1]
	pl, ok := prev.geom.(*lineGeom)
	if !ok {
		return nil, axt.Errorf(axt.MotionProfileInvalid, op,
			"fillet node %d follows a %v node", idx, r.nodes[prev.node].kind)
	}
	if !planar2(pl.u) || !planar2(u2) {
		return nil, axt.Errorf(axt.MotionProfileInvalid, op, "fillet node %d outside the lead plane", idx)
	}
	turn := turnAngle(pl.u[:2], u2[:2])
	if turn < 1e-9 {
		// collinear junction, nothing to round
		return r.addLine(idx, n, cur), nil
	}
	if turn > math.Pi-1e-6 {
		return nil, axt.Errorf(axt.MotionProfileInvalid, op, "fillet node %d reverses direction", idx)
	}
	trim := n.radius * math.Tan(turn/2)
	if trim >= prev.length-minSegLen || trim >= l2-minSegLen {
		return nil, axt.Errorf(axt.MotionProfileInvalid, op,
			"fillet radius %g too large for node %d", n.radius, idx)
	}
	arc, tail := cornerArc(cur, pl.u, u2, n.radius, trim, l2)
	prev.length -= trim
	pl.len = prev.length
	r.segs = append(r.segs,
		segment{node: idx, geom: arc, length: arc.len, vel: n.vel, accel: n.accel, decel: n.decel},
		segment{node: idx, geom: tail, length: tail.len, vel: n.vel, accel: n.accel, decel: n.decel},
	)
	return end, nil
}

func (r *pathRun) addArcCenter(op string, idx int, n *pathNode, cur []float64) ([]float64, error) {
	c := resolveVec(n.abs, cur, n.aux)
	end := resolveVec(n.abs, cur, n.end)
	rad := math.Hypot(cur[0]-c[0], cur[1]-c[1])
	if rad <= minSegLen {
		return nil, axt.Errorf(axt.MotionProfileInvalid, op, "arc node %d starts at its center", idx)
	}
	a0 := math.Atan2(cur[1]-c[1], cur[0]-c[0])
	a1 := math.Atan2(end[1]-c[1], end[0]-c[0])
	return r.addArc(idx, n, cur, c[0], c[1], a0, rad, sweepTo(a0, a1, n.dir)), nil
}

func (r *pathRun) addArcPoint(op string, idx int, n *pathNode, cur []float64) ([]float64, error) {
	mid := resolveVec(n.abs, cur, n.aux)
	end := resolveVec(n.abs, cur, n.end)
	cx, cy, ok := circumcenter(cur, mid, end)
	if !ok {
		return nil, axt.Errorf(axt.MotionProfileInvalid, op, "arc node %d through collinear points", idx)
	}
	rad := math.Hypot(cur[0]-cx, cur[1]-cy)
	a0 := math.Atan2(cur[1]-cy, cur[0]-cx)
	var sweep float64
	if n.full {
		sweep = orient2(cur, mid, end) * 2 * math.Pi
	} else {
		aM := math.Atan2(mid[1]-cy, mid[0]-cx)
		aE := math.Atan2(end[1]-cy, end[0]-cx)
		sweep = sweepTo(a0, aE, axt.DirCCW)
		if sweepTo(a0, aM, axt.DirCCW) > sweep {
			sweep = sweepTo(a0, aE, axt.DirCW)
		}
	}
	return r.addArc(idx, n, cur, cx, cy, a0, rad, sweep), nil
}

func (r *pathRun) addArcRadius(op string, idx int, n *pathNode, cur []float64) ([]float64, error) {
	end := resolveVec(n.abs, cur, n.end)
	dx, dy := end[0]-cur[0], end[1]-cur[1]
	chord := math.Hypot(dx, dy)
	if chord <= minSegLen {
		return nil, axt.Errorf(axt.MotionProfileInvalid, op, "radius arc node %d has no chord", idx)
	}
	if chord > 2*n.radius*(1+1e-9) {
		return nil, axt.Errorf(axt.MotionProfileInvalid, op,
			"radius %g too small for chord %g", n.radius, chord)
	}
	h := 0.0
	if half := chord / 2; n.radius > half {
		h = math.Sqrt(n.radius*n.radius - half*half)
	}
	mx, my := (cur[0]+end[0])/2, (cur[1]+end[1])/2
	px, py := -dy/chord, dx/chord
	cx, cy := mx+px*h, my+py*h
	a0 := math.Atan2(cur[1]-cy, cur[0]-cx)
	sweep := sweepTo(a0, math.Atan2(end[1]-cy, end[0]-cx), n.dir)
	if (math.Abs(sweep) <= math.Pi+1e-12) != n.short {
		cx, cy = mx-px*h, my-py*h
		a0 = math.Atan2(cur[1]-cy, cur[0]-cx)
		sweep = sweepTo(a0, math.Atan2(end[1]-cy, end[0]-cx), n.dir)
	}
	return r.addArc(idx, n, cur, cx, cy, a0, n.radius, sweep), nil
}

func (r *pathRun) addArcAngle(op string, idx int, n *pathNode, cur []float64) ([]float64, error) {
	c := resolveVec(n.abs, cur, n.aux)
	rad := math.Hypot(cur[0]-c[0], cur[1]-c[1])
	if rad <= minSegLen {
		return nil, axt.Errorf(axt.MotionProfileInvalid, op, "arc node %d starts at its center", idx)
	}
	a0 := math.Atan2(cur[1]-c[1], cur[0]-c[0])
	return r.addArc(idx, n, cur, c[0], c[1], a0, rad, n.sweep), nil
}

// addArc appends an arc segment in the lead plane, with the helical
// pitch resolved onto the third mapped axis, and returns the exact
// exit point.
func (r *pathRun) addArc(idx int, n *pathNode, cur []float64, cx, cy, a0, rad, sweep float64) []float64 {
	zd := 0.0
	if n.helix {
		zd = n.zEnd
		if n.abs {
			zd = n.zEnd - cur[2]
		}
	}
	arc := newArc(cur, cx, cy, a0, rad, sweep, zd)
	if arc.len > minSegLen {
		r.segs = append(r.segs, segment{
			node: idx, geom: arc, length: arc.len,
			vel: n.vel, accel: n.accel, decel: n.decel,
		})
	}
	return arc.point(arc.len)
}

func (r *pathRun) addSpline(idx int, n *pathNode, cur []float64) []float64 {
	pts := make([][]float64, 0, len(n.points)+1)
	pts = append(pts, append([]float64(nil), cur...))
	prev := cur
	for _, p := range n.points {
		q := resolveVec(n.abs, prev, p)
		if vecLen(vecSub(q, pts[len(pts)-1])) > minSegLen {
			pts = append(pts, q)
		}
		prev = q
	}
	if len(pts) < 2 {
		return prev
	}
	sp := newSpline(pts)
	if sp.len > minSegLen {
		r.segs = append(r.segs, segment{
			node: idx, geom: sp, length: sp.len,
			vel: n.vel, accel: n.accel, decel: n.decel,
		})
	}
	return append([]float64(nil), pts[len(pts)-1]...)
}

// blendCorners rounds line-line junctions with the connection radius.
// Corners that cannot take the radius stay sharp and fall back to the
// junction-angle rule.
func (r *pathRun) blendCorners(radius float64) {
	out := make([]segment, 0, len(r.segs))
	out = append(out, r.segs[0])
	for i := 1; i < len(r.segs); i++ {
		next := r.segs[i]
		prev := &out[len(out)-1]
		pl, okP := prev.geom.(*lineGeom)
		nl, okN := next.geom.(*lineGeom)
		if !okP || !okN || !planar2(pl.u) || !planar2(nl.u) {
			out = append(out, next)
			continue
		}
		turn := turnAngle(pl.u[:2], nl.u[:2])
		if turn < 1e-9 || turn > math.Pi-1e-6 {
			out = append(out, next)
			continue
		}
		trim := radius * math.Tan(turn/2)
		if trim >= prev.length/2 || trim >= next.length/2 {
			out = append(out, next)
			continue
		}
		arc, tail := cornerArc(pl.point(pl.len), pl.u, nl.u, radius, trim, next.length)
		prev.length -= trim
		pl.len = prev.length
		out = append(out,
			segment{node: next.node, geom: arc, length: arc.len, vel: next.vel, accel: next.accel, decel: next.decel},
			segment{node: next.node, geom: tail, length: tail.len, vel: next.vel, accel: next.accel, decel: next.decel},
		)
	}
	r.segs = out
}

// cornerArc rounds the junction at corner between incoming direction
// d1 and outgoing direction d2, both lines trimmed back by trim. It
// returns the tangent arc and the remaining outgoing line.
func cornerArc(corner, d1, d2 []float64, radius, trim, outLen float64) (*arcGeom, *lineGeom) {
	a := make([]float64, len(corner))
	b := make([]float64, len(corner))
	for i := range corner {
		a[i] = corner[i] - d1[i]*trim
		b[i] = corner[i] + d2[i]*trim
	}
	side := 1.0
	if d1[0]*d2[1]-d1[1]*d2[0] < 0 {
		side = -1
	}
	cx := a[0] - side*d1[1]*radius
	cy := a[1] + side*d1[0]*radius
	a0 := math.Atan2(a[1]-cy, a[0]-cx)
	arc := newArc(a, cx, cy, a0, radius, side*turnAngle(d1[:2], d2[:2]), 0)
	tail := &lineGeom{from: b, u: append([]float64(nil), d2...), len: outLen - trim}
	return arc, tail
}

func planar2(u []float64) bool {
	for k := 2; k < len(u); k++ {
		if math.Abs(u[k]) > 1e-12 {
			return false
		}
	}
	return true
}

// turnAngle is the unsigned angle between two unit directions.
func turnAngle(d1, d2 []float64) float64 {
	dot := 0.0
	for i := range d1 {
		dot += d1[i] * d2[i]
	}
	if dot > 1 {
		dot = 1
	} else if dot < -1 {
		dot = -1
	}
	return math.Acos(dot)
}

func circumcenter(p1, p2, p3 []float64) (cx, cy float64, ok bool) {
	d := 2 * (p1[0]*(p2[1]-p3[1]) + p2[0]*(p3[1]-p1[1]) + p3[0]*(p1[1]-p2[1]))
	span := math.Max(math.Hypot(p2[0]-p1[0], p2[1]-p1[1]), math.Hypot(p3[0]-p1[0], p3[1]-p1[1]))
	if span == 0 || math.Abs(d) <= 1e-12*span*span {
		return 0, 0, false
	}
	q1 := p1[0]*p1[0] + p1[1]*p1[1]
	q2 := p2[0]*p2[0] + p2[1]*p2[1]
	q3 := p3[0]*p3[0] + p3[1]*p3[1]
	cx = (q1*(p2[1]-p3[1]) + q2*(p3[1]-p1[1]) + q3*(p1[1]-p2[1])) / d
	cy = (q1*(p3[0]-p2[0]) + q2*(p1[0]-p3[0]) + q3*(p2[0]-p1[0])) / d
	return cx, cy, true
}

// orient2 is the lead-plane turn sense of the point triple: +1
// counterclockwise, -1 clockwise.
func orient2(p1, p2, p3 []float64) float64 {
	if (p2[0]-p1[0])*(p3[1]-p2[1])-(p2[1]-p1[1])*(p3[0]-p2[0]) < 0 {
		return -1
	}
	return 1
}

// scheduleFrom builds the time plan from absolute path length s with
// entry velocity v: each remaining segment runs under its caps, and
// corners carry velocity per the profile mode, clamped to what the
// ramps on either side can actually connect.
func (r *pathRun) scheduleFrom(s, v float64) error {
	first := r.locate(s)
	local := s - r.segS[first]

	idx := make([]int, 0, len(r.segs)-first)
	lens := make([]float64, 0, len(r.segs)-first)
	for i := first; i < len(r.segs); i++ {
		l := r.segs[i].length
		if i == first {
			l -= local
		}
		if l <= minSegLen {
			continue
		}
		idx = append(idx, i)
		lens = append(lens, l)
	}
	if len(idx) == 0 {
		return axt.Errorf(axt.MotionProfileInvalid, "axm.Conti", "no path remaining")
	}

	m := len(idx)
	c := make([]float64, m+1)
	c[0] = v
	for k := 1; k < m; k++ {
		c[k] = r.cornerVel(idx[k-1], idx[k])
	}
	for k := m - 1; k >= 1; k-- {
		_, _, dec := r.caps(idx[k])
		if w := math.Sqrt(c[k+1]*c[k+1] + 2*dec*lens[k]); w < c[k] {
			c[k] = w
		}
	}
	for k := 0; k < m; k++ {
		_, acc, _ := r.caps(idx[k])
		if w := math.Sqrt(c[k]*c[k] + 2*acc*lens[k]); w < c[k+1] {
			c[k+1] = w
		}
	}

	profs := make([]*profile.Profile, m)
	for k := 0; k < m; k++ {
		vel, acc, dec := r.caps(idx[k])
		p, err := profile.Path(lens[k], c[k], vel, c[k+1], acc, dec)
		if err != nil {
			return err
		}
		profs[k] = p
	}
	r.prof = profile.Concat(profs...)
	r.sBase = s
	return nil
}

// cornerVel is the velocity carried through the junction between
// segments i and j. Reversals always come to rest.
func (r *pathRun) cornerVel(i, j int) float64 {
	d1 := r.segs[i].geom.dir(r.segs[i].length)
	d2 := r.segs[j].geom.dir(0)
	turn := turnAngle(d1, d2)
	if turn > math.Pi-1e-6 {
		return 0
	}
	vi, _, _ := r.caps(i)
	vj, _, _ := r.caps(j)
	carry := math.Min(vi, vj)
	switch r.mode {
	case SpeedOnly:
		return carry
	case ManualNode:
		if r.segs[i].node != r.segs[j].node {
			return 0
		}
		return carry
	}
	if turn <= r.angle+1e-7 {
		return carry
	}
	return 0
}

// locate returns the segment covering absolute path length s.
func (r *pathRun) locate(s float64) int {
	i := sort.Search(len(r.segs), func(i int) bool { return s < r.segS[i+1] })
	if i == len(r.segs) {
		i = len(r.segs) - 1
	}
	return i
}

// at maps absolute path length to axis positions and the unit path
// direction.
func (r *pathRun) at(s float64) (point, dir []float64) {
	i := r.locate(s)
	local := s - r.segS[i]
	if local < 0 {
		local = 0
	} else if local > r.segs[i].length {
		local = r.segs[i].length
	}
	return r.segs[i].geom.point(local), r.segs[i].geom.dir(local)
}

// launch lowers the time plan onto per-axis pulse trajectories and
// starts them on one rack timestamp. v seeds the per-axis launch
// velocities when a replan takes over mid-flight.
func (r *pathRun) launch(rack *vrack.Rack, v float64) error {
	dur := r.prof.Duration()
	if dur <= 0 {
		profs := make(map[int]*profile.Profile, len(r.axes))
		for _, no := range r.axes {
			profs[no] = &profile.Profile{}
		}
		r.t0 = rack.StartProfiles(profs)
		return nil
	}
	q := pathQuantum
	if dur > q*float64(maxPathKnots) {
		q = dur / float64(maxPathKnots)
	}
	kn := int(math.Ceil(dur/q - 1e-9))
	if kn < 1 {
		kn = 1
	}

	base, d0 := r.at(r.sBase)
	times := make([]float64, kn)
	pos := make([][]float64, len(r.axes))
	vel := make([][]float64, len(r.axes))
	for j := range r.axes {
		pos[j] = make([]float64, kn)
		vel[j] = make([]float64, kn)
	}
	for k := 1; k <= kn; k++ {
		t := float64(k) * q
		if k == kn {
			t = dur
		}
		sRel, sv := r.prof.At(t)
		p, d := r.at(r.sBase + sRel)
		times[k-1] = t
		for j := range r.axes {
			pos[j][k-1] = (p[j] - base[j]) / r.upp[j]
			vel[j][k-1] = sv * d[j] / r.upp[j]
		}
		pool.PutFloats(p)
	}

	profs := make(map[int]*profile.Profile, len(r.axes))
	for j, no := range r.axes {
		pv, err := profile.PVTFrom(v*d0[j]/r.upp[j], times, pos[j], vel[j])
		if err != nil {
			return err
		}
		profs[no] = pv
	}
	r.t0 = rack.StartProfiles(profs)
	return nil
}

// advanceLocked is the per-tick service pass for a running group:
// cursor bookkeeping, output firing, fault reaction, completion.
func (g *Group) advanceLocked(now float64) {
	r := g.run
	t := now - r.t0
	sRel, _ := r.prof.At(t)
	s := r.sBase + sRel
	r.moveCursor(now, s)
	g.fireOutputs(now, s, false)

	if t >= r.prof.Duration()-1e-9 {
		if r.stopping {
			node := r.curNode
			g.finishLocked(node)
			for _, no := range r.axes {
				g.m.ev.Bank(event.AxisBank(no)).Raise(event.StopDone, now)
			}
			g.m.log.Info("continuous path stopped", zap.Int("coord", g.no), zap.Int("node", node))
			return
		}
		g.completeLocked(now)
		return
	}

	for i, no := range r.axes {
		if c := r.axs[i].PathFault(); c != motion.StopNone {
			g.abortWithLocked(c)
			return
		}
		if !g.m.rack.Moving(no) {
			g.abortWithLocked(motion.StopEmergency)
			return
		}
	}
}

func (r *pathRun) moveCursor(now, s float64) {
	r.curSeg = r.locate(s)
	if node := r.segs[r.curSeg].node; node != r.curNode {
		r.curNode = node
		r.nodeEnterT = now
	}
}

// fireOutputs writes co-scheduled outputs whose trigger the path has
// crossed. With flush set every remaining output fires, the boundary
// rule for triggers past the end of their node.
func (g *Group) fireOutputs(now, s float64, flush bool) {
	r := g.run
	for i := range r.outs {
		o := &r.outs[i]
		if o.cmd.fired {
			continue
		}
		due := flush || o.node < r.curNode
		if !due && o.node == r.curNode {
			if o.cmd.timed {
				due = now-r.nodeEnterT >= o.cmd.at
			} else {
				due = s-o.startS >= o.cmd.at
			}
		}
		if !due {
			continue
		}
		o.cmd.fired = true
		word := o.cmd.bit / 32
		mask := uint32(1) << (o.cmd.bit % 32)
		img := g.m.rack.DIOOutWord(o.cmd.module, word)
		if o.cmd.level {
			img |= mask
		} else {
			img &^= mask
		}
		g.m.rack.SetDIOOutWord(o.cmd.module, word, img)
	}
}

// completeLocked closes out a path that reached its final node.
func (g *Group) completeLocked(now float64) {
	r := g.run
	g.fireOutputs(now, r.total(), true)
	r.curNode = len(r.nodes) - 1
	r.curSeg = len(r.segs) - 1
	g.finishLocked(r.curNode)
	for _, no := range r.axes {
		g.m.ev.Bank(event.AxisBank(no)).Raise(event.MotionDone, now)
	}
	g.m.log.Info("continuous path done",
		zap.Int("coord", g.no), zap.Int("nodes", len(r.nodes)))
}

// finishLocked freezes the members, releases the axes, and promotes
// any batch staged while the run was executing.
func (g *Group) finishLocked(lastNode int) {
	r := g.run
	for _, no := range r.axes {
		g.m.rack.Freeze(no)
	}
	r.release()
	g.run = nil
	g.lastNode = lastNode
	g.lastTotal = len(r.nodes)
	if g.stagedClosed || g.stagedActive {
		g.nodes = g.staged
		g.staged = nil
		g.building = g.stagedActive
		g.closed = g.stagedClosed
		g.stagedActive, g.stagedClosed = false, false
	}
}

// abortLocked abandons the path where the last tick left it.
func (g *Group) abortLocked(cause motion.StopCause) {
	if g.run == nil {
		return
	}
	g.abortWithLocked(cause)
}

func (g *Group) abortWithLocked(cause motion.StopCause) {
	node := g.run.curNode
	g.finishLocked(node)
	if cause != motion.StopUser {
		g.m.log.Warn("continuous path aborted",
			zap.Int("coord", g.no), zap.Stringer("cause", cause), zap.Int("node", node))
	}
}

// Stop ramps the whole interpolation down along the path and releases
// the axes once it rests.
func (g *Group) Stop(decel float64) error {
	const op = "axm.ContiStop"
	if decel <= 0 || math.IsNaN(decel) || math.IsInf(decel, 0) {
		return axt.Errorf(axt.MotionInvalidAccelTime, op, "decel %g", decel)
	}
	g.m.mu.Lock()
	defer g.m.mu.Unlock()
	r := g.run
	if r == nil {
		return axt.Errorf(axt.MotionNotInContiInterp, op, "coordinate %d not interpolating", g.no)
	}
	now := g.m.rack.Now()
	sRel, v := r.prof.At(now - r.t0)
	s := r.sBase + sRel
	if v <= 1e-9 {
		node := r.curNode
		g.finishLocked(node)
		for _, no := range r.axes {
			g.m.ev.Bank(event.AxisBank(no)).Raise(event.StopDone, now)
		}
		return nil
	}
	remaining := r.total() - s
	tail, err := profile.Stop(v, decel, 0)
	if err != nil {
		return err
	}
	if tail.Distance() > remaining {
		end := math.Sqrt(math.Max(0, v*v-2*decel*remaining))
		if tail, err = profile.Path(remaining, v, v, end, decel, decel); err != nil {
			return err
		}
	}
	r.prof = tail
	r.sBase = s
	r.stopping = true
	if err := r.launch(g.m.rack, v); err != nil {
		return err
	}
	g.m.log.Info("continuous path stopping",
		zap.Int("coord", g.no), zap.Float64("decel", decel))
	return nil
}

// EStop halts the path immediately, freezing every member where the
// last service tick put it.
func (g *Group) EStop() error {
	const op = "axm.ContiEStop"
	g.m.mu.Lock()
	defer g.m.mu.Unlock()
	r := g.run
	if r == nil {
		return axt.Errorf(axt.MotionNotInContiInterp, op, "coordinate %d not interpolating", g.no)
	}
	now := g.m.rack.Now()
	node := r.curNode
	g.finishLocked(node)
	for _, no := range r.axes {
		g.m.ev.Bank(event.AxisBank(no)).Raise(event.StopDone, now)
	}
	g.m.log.Info("continuous path emergency stop",
		zap.Int("coord", g.no), zap.Int("node", node))
	return nil
}

// OverrideLineVel replaces the cruise velocity of the interpolation in
// flight and reports the path length still to run.
func (g *Group) OverrideLineVel(vel float64) (remaining float64, err error) {
	const op = "axm.OverrideLineVel"
	if vel <= 0 || math.IsNaN(vel) || math.IsInf(vel, 0) {
		return 0, axt.Errorf(axt.MotionInvalidVelocity, op, "velocity %g", vel)
	}
	g.m.mu.Lock()
	defer g.m.mu.Unlock()
	return g.overrideLocked(op, vel, 0, 0)
}

// OverrideLineAccelVelDecel replaces the cruise velocity and both ramp
// rates of the interpolation in flight.
func (g *Group) OverrideLineAccelVelDecel(accel, vel, decel float64) (remaining float64, err error) {
	const op = "axm.OverrideLineAccelVelDecel"
	if vel <= 0 || math.IsNaN(vel) || math.IsInf(vel, 0) {
		return 0, axt.Errorf(axt.MotionInvalidVelocity, op, "velocity %g", vel)
	}
	if accel <= 0 || decel <= 0 || math.IsNaN(accel) || math.IsNaN(decel) ||
		math.IsInf(accel, 0) || math.IsInf(decel, 0) {
		return 0, axt.Errorf(axt.MotionInvalidAccelTime, op, "accel %g decel %g", accel, decel)
	}
	g.m.mu.Lock()
	defer g.m.mu.Unlock()
	return g.overrideLocked(op, vel, accel, decel)
}

func (g *Group) overrideLocked(op string, vel, accel, decel float64) (float64, error) {
	r := g.run
	if r == nil {
		return 0, axt.Errorf(axt.MotionNotInContiInterp, op, "coordinate %d not interpolating", g.no)
	}
	if r.stopping {
		return 0, axt.Errorf(axt.MotionErrorInMotion, op, "coordinate %d stopping", g.no)
	}
	now := g.m.rack.Now()
	sRel, v := r.prof.At(now - r.t0)
	s := r.sBase + sRel
	remaining := r.total() - s
	if remaining <= minSegLen {
		return 0, nil
	}
	prevV, prevA, prevD := r.velCap, r.accelCap, r.decelCap
	r.velCap = vel
	if accel > 0 {
		r.accelCap = accel
	}
	if decel > 0 {
		r.decelCap = decel
	}
	if err := r.scheduleFrom(s, v); err != nil {
		r.velCap, r.accelCap, r.decelCap = prevV, prevA, prevD
		return 0, err
	}
	if err := r.launch(g.m.rack, v); err != nil {
		return 0, err
	}
	g.m.log.Info("continuous path override",
		zap.Int("coord", g.no), zap.Float64("velocity", vel), zap.Float64("remaining", remaining))
	return remaining, nil
}

// OverrideLinePos retargets the endpoint of the final line while it
// runs. The interpolation must be inside its last segment, that
// segment must be straight, and the target must lie on its carrier
// line; a target behind the stopping point is reached by ramping down
// and backtracking.
func (g *Group) OverrideLinePos(end []float64) error {
	const op = "axm.OverrideLinePos"
	g.m.mu.Lock()
	defer g.m.mu.Unlock()
	r := g.run
	if r == nil {
		return axt.Errorf(axt.MotionNotInContiInterp, op, "coordinate %d not interpolating", g.no)
	}
	if len(end) != len(r.axes) {
		return axt.Errorf(axt.BadParameter, op, "%d coordinates for %d axes", len(end), len(r.axes))
	}
	for _, x := range end {
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return axt.Errorf(axt.BadParameter, op, "coordinate %g", x)
		}
	}
	if r.stopping {
		return axt.Errorf(axt.MotionErrorInMotion, op, "coordinate %d stopping", g.no)
	}
	now := g.m.rack.Now()
	sRel, v := r.prof.At(now - r.t0)
	s := r.sBase + sRel
	last := len(r.segs) - 1
	lg, straight := r.segs[last].geom.(*lineGeom)
	if r.locate(s) != last || !straight {
		return axt.Errorf(axt.MotionInvalidPosition, op, "interpolation not in its final line")
	}

	p, _ := r.at(s)
	along := 0.0
	for i := range p {
		along += (end[i] - p[i]) * lg.u[i]
	}
	perp := 0.0
	for i := range p {
		d := end[i] - p[i] - lg.u[i]*along
		perp += d * d
	}
	if math.Sqrt(perp) > 1e-6*(1+math.Abs(along)) {
		return axt.Errorf(axt.MotionInvalidPosition, op, "target off the running line")
	}

	node := r.segs[last].node
	tmpl := r.segs[last]
	_, _, dec := r.caps(last)
	stopD := v * v / (2 * dec)
	var pieces []segment
	if along > 0 && along >= stopD*(1-1e-9) {
		pieces = append(pieces, lineSeg(tmpl, node, p, lg.u, along))
	} else {
		if stopD > minSegLen {
			pieces = append(pieces, lineSeg(tmpl, node, p, lg.u, stopD))
		}
		if rev := stopD - along; rev > minSegLen {
			over := make([]float64, len(p))
			back := make([]float64, len(p))
			for i := range p {
				over[i] = p[i] + lg.u[i]*stopD
				back[i] = -lg.u[i]
			}
			pieces = append(pieces, lineSeg(tmpl, node, over, back, rev))
		}
	}
	if len(pieces) == 0 {
		// resting on the target already
		g.completeLocked(now)
		return nil
	}

	newSegs := append(append([]segment(nil), r.segs[:last]...), pieces...)
	newS := make([]float64, len(newSegs)+1)
	copy(newS, r.segS[:last])
	newS[last] = s
	for i := last; i < len(newSegs); i++ {
		newS[i+1] = newS[i] + newSegs[i].length
	}
	oldSegs, oldS := r.segs, r.segS
	r.segs, r.segS = newSegs, newS
	if err := r.scheduleFrom(s, v); err != nil {
		r.segs, r.segS = oldSegs, oldS
		return err
	}
	if err := r.launch(g.m.rack, v); err != nil {
		return err
	}
	g.m.log.Info("continuous path retarget",
		zap.Int("coord", g.no), zap.Float64("along", along), zap.Float64("remaining", r.total()-s))
	return nil
}

func lineSeg(tmpl segment, node int, from, u []float64, length float64) segment {
	return segment{
		node:   node,
		geom:   &lineGeom{from: append([]float64(nil), from...), u: append([]float64(nil), u...), len: length},
		length: length,
		vel:    tmpl.vel, accel: tmpl.accel, decel: tmpl.decel,
	}
}
