// Coordinated-motion groups: node FIFO and continuous-path execution
//
// Copyright (C) 2026 Go binding
//
// This file may be distributed under the terms of the GNU GPLv3 license.

package coord

import (
	"math"
	"sync"

	"go.uber.org/zap"

	"axl-go/pkg/axt"
	"axl-go/pkg/event"
	"axl-go/pkg/motion"
	"axl-go/pkg/vrack"
)

const (
	maxGroups = 8
	maxNodes  = 8192
)

// ProfileMode selects how node boundaries treat velocity at start.
type ProfileMode int

const (
	// VelContinuous carries velocity through corners flatter than the
	// start angle and stops at sharper ones.
	VelContinuous ProfileMode = 0
	// ManualNode brings the path to rest at every node boundary.
	ManualNode ProfileMode = 1
	// AutoBlend rounds line-line corners with the connection radius,
	// then carries velocity like VelContinuous.
	AutoBlend ProfileMode = 2
	// SpeedOnly carries velocity through every corner regardless of
	// angle.
	SpeedOnly ProfileMode = 3
)

func (p ProfileMode) String() string {
	switch p {
	case VelContinuous:
		return "VEL_CONTINUOUS"
	case ManualNode:
		return "MANUAL_NODE"
	case AutoBlend:
		return "AUTO_BLEND"
	case SpeedOnly:
		return "SPEED_ONLY"
	}
	return "PROFILE_MODE"
}

// Manager owns the coordinate groups and drives their execution from
// the rack service tick.
type Manager struct {
	log  *zap.Logger
	rack *vrack.Rack
	mc   *motion.Controller
	ev   *event.Manager

	mu     sync.Mutex
	groups map[int]*Group
	tickID int
}

// New wires the coordinate-group manager to the rack and the axis
// controller it claims axes from.
func New(log *zap.Logger, rack *vrack.Rack, mc *motion.Controller, ev *event.Manager) *Manager {
	if log == nil {
		log = zap.NewNop()
	}
	m := &Manager{
		log:    log,
		rack:   rack,
		mc:     mc,
		ev:     ev,
		groups: make(map[int]*Group),
	}
	m.tickID = rack.RegisterTicker(m.tick)
	return m
}

// Close stops execution on every group and detaches from the rack.
func (m *Manager) Close() {
	m.rack.UnregisterTicker(m.tickID)
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, g := range m.groups {
		g.abortLocked(motion.StopUser)
	}
}

// Group resolves a coordinate number, creating the group on first use.
func (m *Manager) Group(no int) (*Group, error) {
	if no < 0 || no >= maxGroups {
		return nil, axt.Errorf(axt.MotionInvalidContiIndex, "axm.Conti", "coordinate %d out of range", no)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	g, ok := m.groups[no]
	if !ok {
		g = &Group{m: m, no: no, absMode: true, lastNode: -1}
		m.groups[no] = g
	}
	return g, nil
}

func (m *Manager) tick(now, dt float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, g := range m.groups {
		if g.run != nil {
			g.advanceLocked(now)
		}
	}
}

// Group is one coordinate system: an axis map, a node FIFO built
// between BeginNode and EndNode, and at most one running path.
type Group struct {
	m          *Manager
	no         int
	axes       []int
	absMode    bool
	connRadius float64
	prePush    bool

	building bool
	closed   bool
	nodes    []*pathNode

	// staged holds a batch built during execution when pre-push is
	// enabled; it becomes the live queue when the run ends.
	staged        []*pathNode
	stagedClosed  bool
	stagedActive  bool
	run           *pathRun
	lastNode      int
	lastTotal     int
}

// SetAxisMap binds the group to an ordered axis set. The first two
// axes span the arc plane; a third carries helical pitch. Membership
// is exclusive across groups.
func (g *Group) SetAxisMap(axes []int) error {
	const op = "axm.ContiSetAxisMap"
	if len(axes) < 1 || len(axes) > 4 {
		return axt.Errorf(axt.BadParameter, op, "%d axes", len(axes))
	}
	seen := make(map[int]bool, len(axes))
	for _, no := range axes {
		if _, err := g.m.mc.Axis(no); err != nil {
			return err
		}
		if seen[no] {
			return axt.Errorf(axt.BadParameter, op, "axis %d listed twice", no)
		}
		seen[no] = true
	}
	g.m.mu.Lock()
	defer g.m.mu.Unlock()
	if g.run != nil {
		return axt.Errorf(axt.StillContiMotion, op, "coordinate %d running", g.no)
	}
	if g.building || g.closed {
		return axt.Errorf(axt.NotContiEnd, op, "coordinate %d has a pending sequence", g.no)
	}
	for no, other := range g.m.groups {
		if other == g {
			continue
		}
		for _, a := range other.axes {
			if seen[a] {
				return axt.Errorf(axt.BadParameter, op, "axis %d already mapped to coordinate %d", a, no)
			}
		}
	}
	g.axes = append([]int(nil), axes...)
	g.m.log.Info("coordinate map set", zap.Int("coord", g.no), zap.Ints("axes", axes))
	return nil
}

// AxisMap reports the mapped axes in order.
func (g *Group) AxisMap() []int {
	g.m.mu.Lock()
	defer g.m.mu.Unlock()
	return append([]int(nil), g.axes...)
}

// SetAbsRelMode selects how node endpoints are interpreted.
func (g *Group) SetAbsRelMode(mode axt.AbsRelMode) error {
	const op = "axm.ContiSetAbsRelMode"
	if mode != axt.PosAbsMode && mode != axt.PosRelMode {
		return axt.Errorf(axt.BadParameter, op, "mode %v", mode)
	}
	g.m.mu.Lock()
	defer g.m.mu.Unlock()
	g.absMode = mode == axt.PosAbsMode
	return nil
}

// GetAbsRelMode reports the endpoint interpretation.
func (g *Group) GetAbsRelMode() axt.AbsRelMode {
	g.m.mu.Lock()
	defer g.m.mu.Unlock()
	if g.absMode {
		return axt.PosAbsMode
	}
	return axt.PosRelMode
}

// SetConnectionRadius sets the corner radius auto-blend inserts
// between consecutive lines.
func (g *Group) SetConnectionRadius(r float64) error {
	const op = "axm.ContiSetConnectionRadius"
	if r < 0 || math.IsNaN(r) || math.IsInf(r, 0) {
		return axt.Errorf(axt.BadParameter, op, "radius %g", r)
	}
	g.m.mu.Lock()
	defer g.m.mu.Unlock()
	g.connRadius = r
	return nil
}

// SetQueuePrePush allows building the next sequence while the current
// one still runs.
func (g *Group) SetQueuePrePush(on bool) {
	g.m.mu.Lock()
	defer g.m.mu.Unlock()
	g.prePush = on
}

// BeginNode opens a continuous sequence. Node calls are accepted until
// EndNode closes it.
func (g *Group) BeginNode() error {
	const op = "axm.ContiBeginNode"
	g.m.mu.Lock()
	defer g.m.mu.Unlock()
	if len(g.axes) == 0 {
		return axt.Errorf(axt.BadParameter, op, "coordinate %d has no axis map", g.no)
	}
	if g.run != nil {
		if !g.prePush {
			return axt.Errorf(axt.StillContiMotion, op, "coordinate %d running", g.no)
		}
		if g.stagedActive || g.stagedClosed {
			return axt.Errorf(axt.NotContiEnd, op, "staged sequence already open")
		}
		g.stagedActive = true
		g.staged = nil
		return nil
	}
	if g.building {
		return axt.Errorf(axt.NotContiEnd, op, "sequence already open")
	}
	g.building = true
	g.closed = false
	g.nodes = nil
	return nil
}

// EndNode closes the open sequence so it can be started.
func (g *Group) EndNode() error {
	const op = "axm.ContiEndNode"
	g.m.mu.Lock()
	defer g.m.mu.Unlock()
	if g.run != nil && g.prePush {
		if !g.stagedActive {
			return axt.Errorf(axt.NotContiBegin, op, "no open sequence")
		}
		g.stagedActive = false
		g.stagedClosed = true
		return nil
	}
	if !g.building {
		return axt.Errorf(axt.NotContiBegin, op, "no open sequence")
	}
	g.building = false
	g.closed = true
	return nil
}

// WriteClear discards a closed, unstarted sequence.
func (g *Group) WriteClear() error {
	const op = "axm.ContiWriteClear"
	g.m.mu.Lock()
	defer g.m.mu.Unlock()
	if g.run != nil {
		return axt.Errorf(axt.StillContiMotion, op, "coordinate %d running", g.no)
	}
	if g.building || !g.closed {
		return axt.Errorf(axt.NotContiEnd, op, "no closed sequence to clear")
	}
	g.nodes = nil
	g.closed = false
	return nil
}

// push appends a node to whichever queue is open.
func (g *Group) push(op string, n *pathNode) error {
	g.m.mu.Lock()
	defer g.m.mu.Unlock()
	if g.run != nil && g.prePush && g.stagedActive {
		if len(g.staged) >= maxNodes {
			return axt.Errorf(axt.MotionContiQueueFull, op, "coordinate %d queue full", g.no)
		}
		n.abs = g.absMode
		g.staged = append(g.staged, n)
		return nil
	}
	if !g.building {
		return axt.Errorf(axt.NotContiBegin, op, "node outside begin/end")
	}
	if len(g.nodes) >= maxNodes {
		return axt.Errorf(axt.MotionContiQueueFull, op, "coordinate %d queue full", g.no)
	}
	n.abs = g.absMode
	g.nodes = append(g.nodes, n)
	return nil
}

func (g *Group) checkDims(op string, want int, vecs ...[]float64) error {
	if len(g.axes) < want {
		return axt.Errorf(axt.BadParameter, op, "needs %d mapped axes, have %d", want, len(g.axes))
	}
	for _, v := range vecs {
		if len(v) != len(g.axes) {
			return axt.Errorf(axt.BadParameter, op, "%d coordinates for %d axes", len(v), len(g.axes))
		}
		for _, x := range v {
			if math.IsNaN(x) || math.IsInf(x, 0) {
				return axt.Errorf(axt.BadParameter, op, "coordinate %g", x)
			}
		}
	}
	return nil
}

func checkKinematics(op string, vel, accel, decel float64) error {
	if vel <= 0 || math.IsNaN(vel) || math.IsInf(vel, 0) {
		return axt.Errorf(axt.MotionInvalidVelocity, op, "velocity %g", vel)
	}
	if accel <= 0 || decel <= 0 || math.IsNaN(accel) || math.IsNaN(decel) {
		return axt.Errorf(axt.MotionInvalidAccelTime, op, "accel %g decel %g", accel, decel)
	}
	return nil
}

// LineMove queues a straight node to end.
func (g *Group) LineMove(end []float64, vel, accel, decel float64) error {
	const op = "axm.LineMove"
	if err := g.checkDims(op, 1, end); err != nil {
		return err
	}
	if err := checkKinematics(op, vel, accel, decel); err != nil {
		return err
	}
	return g.push(op, &pathNode{
		kind: nodeLine, end: append([]float64(nil), end...),
		vel: vel, accel: accel, decel: decel,
	})
}

// CircleCenterMove queues an arc defined by its center and endpoint.
func (g *Group) CircleCenterMove(center, end []float64, vel, accel, decel float64, dir axt.MoveDir) error {
	const op = "axm.CircleCenterMove"
	if err := g.checkDims(op, 2, center, end); err != nil {
		return err
	}
	if err := checkKinematics(op, vel, accel, decel); err != nil {
		return err
	}
	return g.push(op, &pathNode{
		kind: nodeArcCenter,
		aux:  append([]float64(nil), center...),
		end:  append([]float64(nil), end...),
		dir:  dir, vel: vel, accel: accel, decel: decel,
	})
}

// CirclePointMove queues an arc through a mid point. With full set the
// path runs the whole circle back to its entry point.
func (g *Group) CirclePointMove(mid, end []float64, vel, accel, decel float64, full bool) error {
	const op = "axm.CirclePointMove"
	if err := g.checkDims(op, 2, mid, end); err != nil {
		return err
	}
	if err := checkKinematics(op, vel, accel, decel); err != nil {
		return err
	}
	return g.push(op, &pathNode{
		kind: nodeArcPoint,
		aux:  append([]float64(nil), mid...),
		end:  append([]float64(nil), end...),
		full: full, vel: vel, accel: accel, decel: decel,
	})
}

// CircleRadiusMove queues an arc of the given radius to end; short
// selects the minor arc, otherwise the major one.
func (g *Group) CircleRadiusMove(radius float64, end []float64, vel, accel, decel float64, dir axt.MoveDir, short bool) error {
	const op = "axm.CircleRadiusMove"
	if err := g.checkDims(op, 2, end); err != nil {
		return err
	}
	if err := checkKinematics(op, vel, accel, decel); err != nil {
		return err
	}
	if radius <= 0 || math.IsNaN(radius) || math.IsInf(radius, 0) {
		return axt.Errorf(axt.BadParameter, op, "radius %g", radius)
	}
	return g.push(op, &pathNode{
		kind: nodeArcRadius, radius: radius,
		end: append([]float64(nil), end...),
		dir: dir, short: short, vel: vel, accel: accel, decel: decel,
	})
}

// CircleAngleMove queues an arc swept by the given angle in degrees
// around center.
func (g *Group) CircleAngleMove(center []float64, angleDeg, vel, accel, decel float64, dir axt.MoveDir) error {
	const op = "axm.CircleAngleMove"
	if err := g.checkDims(op, 2, center); err != nil {
		return err
	}
	if err := checkKinematics(op, vel, accel, decel); err != nil {
		return err
	}
	if angleDeg <= 0 || math.IsNaN(angleDeg) || math.IsInf(angleDeg, 0) {
		return axt.Errorf(axt.BadParameter, op, "sweep %g", angleDeg)
	}
	sweep := angleDeg * math.Pi / 180
	if dir == axt.DirCW {
		sweep = -sweep
	}
	return g.push(op, &pathNode{
		kind:  nodeArcAngle,
		aux:   append([]float64(nil), center...),
		sweep: sweep,
		dir:   dir, vel: vel, accel: accel, decel: decel,
	})
}

// HelixCenterMove queues a center-defined arc with the third mapped
// axis moving linearly to zEnd over the sweep.
func (g *Group) HelixCenterMove(center, end []float64, zEnd, vel, accel, decel float64, dir axt.MoveDir) error {
	const op = "axm.HelixCenterMove"
	if err := g.checkDims(op, 3, center, end); err != nil {
		return err
	}
	if err := checkKinematics(op, vel, accel, decel); err != nil {
		return err
	}
	return g.push(op, &pathNode{
		kind: nodeArcCenter, helix: true, zEnd: zEnd,
		aux: append([]float64(nil), center...),
		end: append([]float64(nil), end...),
		dir: dir, vel: vel, accel: accel, decel: decel,
	})
}

// HelixRadiusMove queues a radius-defined arc with helical pitch.
func (g *Group) HelixRadiusMove(radius float64, end []float64, zEnd, vel, accel, decel float64, dir axt.MoveDir, short bool) error {
	const op = "axm.HelixRadiusMove"
	if err := g.checkDims(op, 3, end); err != nil {
		return err
	}
	if err := checkKinematics(op, vel, accel, decel); err != nil {
		return err
	}
	if radius <= 0 || math.IsNaN(radius) || math.IsInf(radius, 0) {
		return axt.Errorf(axt.BadParameter, op, "radius %g", radius)
	}
	return g.push(op, &pathNode{
		kind: nodeArcRadius, helix: true, zEnd: zEnd, radius: radius,
		end: append([]float64(nil), end...),
		dir: dir, short: short, vel: vel, accel: accel, decel: decel,
	})
}

// HelixAngleMove queues an angle-swept arc with helical pitch.
func (g *Group) HelixAngleMove(center []float64, angleDeg, zEnd, vel, accel, decel float64, dir axt.MoveDir) error {
	const op = "axm.HelixAngleMove"
	if err := g.checkDims(op, 3, center); err != nil {
		return err
	}
	if err := checkKinematics(op, vel, accel, decel); err != nil {
		return err
	}
	if angleDeg <= 0 || math.IsNaN(angleDeg) || math.IsInf(angleDeg, 0) {
		return axt.Errorf(axt.BadParameter, op, "sweep %g", angleDeg)
	}
	sweep := angleDeg * math.Pi / 180
	if dir == axt.DirCW {
		sweep = -sweep
	}
	return g.push(op, &pathNode{
		kind:  nodeArcAngle,
		helix: true,
		zEnd:  zEnd,
		aux:   append([]float64(nil), center...),
		sweep: sweep,
		dir:   dir, vel: vel, accel: accel, decel: decel,
	})
}

// SplineMove queues a Catmull-Rom curve through the point list.
func (g *Group) SplineMove(points [][]float64, vel, accel, decel float64) error {
	const op = "axm.SplineMove"
	if len(points) < 2 {
		return axt.Errorf(axt.BadParameter, op, "%d points", len(points))
	}
	if err := g.checkDims(op, 1, points...); err != nil {
		return err
	}
	if err := checkKinematics(op, vel, accel, decel); err != nil {
		return err
	}
	cp := make([][]float64, len(points))
	for i, p := range points {
		cp[i] = append([]float64(nil), p...)
	}
	return g.push(op, &pathNode{
		kind: nodeSpline, points: cp,
		vel: vel, accel: accel, decel: decel,
	})
}

// FilletMove queues a line to end whose junction with the preceding
// line is rounded with the given radius.
func (g *Group) FilletMove(end []float64, vel, accel, decel, radius float64) error {
	const op = "axm.FilletMove"
	if err := g.checkDims(op, 2, end); err != nil {
		return err
	}
	if err := checkKinematics(op, vel, accel, decel); err != nil {
		return err
	}
	if radius <= 0 || math.IsNaN(radius) || math.IsInf(radius, 0) {
		return axt.Errorf(axt.BadParameter, op, "radius %g", radius)
	}
	return g.push(op, &pathNode{
		kind: nodeFillet, radius: radius,
		end: append([]float64(nil), end...),
		vel: vel, accel: accel, decel: decel,
	})
}

// AddOutputAt schedules a digital output write when execution passes
// the given distance, or time with timed set, past the start of the
// most recently queued node.
func (g *Group) AddOutputAt(module, bit int, level bool, at float64, timed bool) error {
	const op = "axm.ContiAddOutputAt"
	if at < 0 || math.IsNaN(at) || math.IsInf(at, 0) {
		return axt.Errorf(axt.BadParameter, op, "trigger %g", at)
	}
	_, words := g.m.rack.DIOWords(module)
	if bit < 0 || bit >= words*32 {
		return axt.Errorf(axt.BadParameter, op, "module %d bit %d", module, bit)
	}
	g.m.mu.Lock()
	defer g.m.mu.Unlock()
	q := g.nodes
	if g.run != nil && g.prePush && g.stagedActive {
		q = g.staged
	} else if !g.building {
		return axt.Errorf(axt.NotContiBegin, op, "node outside begin/end")
	}
	if len(q) == 0 {
		return axt.Errorf(axt.NotContiBegin, op, "no node to attach to")
	}
	n := q[len(q)-1]
	n.outs = append(n.outs, outputCmd{module: module, bit: bit, level: level, at: at, timed: timed})
	return nil
}

// IsMotion reports whether the group path is executing.
func (g *Group) IsMotion() bool {
	g.m.mu.Lock()
	defer g.m.mu.Unlock()
	return g.run != nil
}

// TotalNodeNum reports the node count of the running sequence, or of
// the prepared queue when idle.
func (g *Group) TotalNodeNum() (int, error) {
	g.m.mu.Lock()
	defer g.m.mu.Unlock()
	if g.run != nil {
		return len(g.run.nodes), nil
	}
	if g.closed || g.building {
		return len(g.nodes), nil
	}
	return g.lastTotal, nil
}

// NodeNum reports the FIFO index of the executing node; after a
// completed path it stays on the final node.
func (g *Group) NodeNum() (int, error) {
	g.m.mu.Lock()
	defer g.m.mu.Unlock()
	if g.run != nil {
		return g.run.curNode, nil
	}
	if g.lastNode < 0 {
		return 0, nil
	}
	return g.lastNode, nil
}

// ReadIndex reports the executing segment index in the expanded plan.
func (g *Group) ReadIndex() (int, error) {
	g.m.mu.Lock()
	defer g.m.mu.Unlock()
	if g.run == nil {
		return 0, nil
	}
	return g.run.curSeg, nil
}

// ReadFree reports remaining queue capacity.
func (g *Group) ReadFree() (int, error) {
	g.m.mu.Lock()
	defer g.m.mu.Unlock()
	if g.run != nil && g.prePush {
		return maxNodes - len(g.staged), nil
	}
	return maxNodes - len(g.nodes), nil
}
