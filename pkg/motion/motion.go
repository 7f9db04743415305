// Per-axis motion control over a rack backend
//
// Copyright (C) 2026 Go binding
//
// This file may be distributed under the terms of the GNU GPLv3 license.

// Package motion implements the axis command surface: configuration,
// point-to-point and velocity moves, overrides, signal search and
// capture, home search, electronic gearing, gantry coupling, and PVT
// sync groups. All policy lives here; the rack below only executes
// profiles and reports sensor levels, and every supervision decision
// (limits, alarms, completion, watchdogs) is taken on the rack service
// tick.
package motion

import (
	"math"
	"strconv"
	"sync"

	"axl-go/pkg/axt"
	"axl-go/pkg/board"
	"axl-go/pkg/event"
	"axl-go/pkg/param"
	"axl-go/pkg/profile"
	"axl-go/pkg/vrack"

	"go.uber.org/zap"
)

// StopCause records why the last motion on an axis ended early.
type StopCause int

const (
	StopNone StopCause = iota
	StopUser
	StopEmergency
	StopSoftLimitNeg
	StopSoftLimitPos
	StopEndLimitNeg
	StopEndLimitPos
	StopAlarm
	StopUserBreak
	StopGantryFault
	StopSignalFound
)

var stopCauseNames = map[StopCause]string{
	StopNone:         "NONE",
	StopUser:         "USER_STOP",
	StopEmergency:    "EMERGENCY_STOP",
	StopSoftLimitNeg: "SOFT_LIMIT_NEG",
	StopSoftLimitPos: "SOFT_LIMIT_POS",
	StopEndLimitNeg:  "END_LIMIT_NEG",
	StopEndLimitPos:  "END_LIMIT_POS",
	StopAlarm:        "SERVO_ALARM",
	StopUserBreak:    "USER_BREAK",
	StopGantryFault:  "GANTRY_FAULT",
	StopSignalFound:  "SIGNAL_FOUND",
}

func (s StopCause) String() string {
	if n, ok := stopCauseNames[s]; ok {
		return n
	}
	return "STOP_CAUSE_" + strconv.Itoa(int(s))
}

// SyncMode selects how a multi-axis start couples its members.
type SyncMode int

const (
	SyncStartTogether SyncMode = 0
	SyncHardware      SyncMode = 1
	SyncStopTogether  SyncMode = 2
)

// Profile priority for seconds-unit acceleration: hold the commanded
// velocity or hold the commanded ramp time when a move is too short
// for both.
const (
	PriorityVelocity  = 0
	PriorityAccelTime = 1
)

// moveState is one in-flight commanded move. The supervision tick
// finalizes it and completes the done channel.
type moveState struct {
	prof     *profile.Profile
	target   float64 // absolute target, user units (NaN for velocity moves)
	vel      float64 // cruise, pulses/s
	accel    float64 // pulses/s^2
	decel    float64
	jerk     float64
	velocity bool
	stopped  bool
	cause    StopCause
	done     chan error
}

// Axis is the command surface for one physical axis. All methods are
// safe for concurrent use; per-axis state is serialized by the axis
// lock, distinct axes never contend.
type Axis struct {
	c  *Controller
	no int

	mu  sync.Mutex
	par param.Record

	// runtime knobs outside the parameter record
	accUnit       axt.AccUnit
	priority      int
	jerkAccPct    float64
	jerkDecPct    float64
	inposBand     float64
	limitStopMode axt.StopMode
	traceLog      bool

	move     *moveState
	stopping bool
	cause    StopCause

	alarmLatched bool

	overrideMode  int // 0 apply now, 1 latch for next start
	latchedOvr    *latchedOverride
	armedOvr      []armedOverride
	armedSource   axt.Selection
	moveDir       float64

	capture    *captureArm
	search     bool
	searchStop axt.StopMode
	captured   capturedPos

	home              *homeRun
	homeInterlock     axt.HomeInterlockMode
	homeInterlockDist float64
	homeDogLen        float64
	homeScanTime      float64
	homeFineSearch    bool
	homeClearEncoder  bool

	torque *torqueRun

	// held by a coordinate-group interpolation
	pathClaimed bool

	// group membership, cached here so command admission never takes
	// the controller group lock while holding the axis lock
	gearSlave   bool
	gantrySlave bool
	gantryM     *gantryPair // set while this axis masters an enabled pair

	backlash    float64
	backlashSet bool
	backlashOn  bool
	backlashAcc float64 // inserted slack take-up, pulses
	lastDir     float64
	compTable   *compTable
	compOffset  float64 // extra pulses the compensators have inserted

	pvt *pvtStore
}

type capturedPos struct {
	pos   float64
	valid bool
}

// Controller owns every axis plus the cross-axis couplings (gears,
// gantries, sync groups) and runs as one ticker on the rack.
type Controller struct {
	log  *zap.Logger
	rack *vrack.Rack
	topo *board.Topology
	vmap *board.VirtualMap
	ev   *event.Manager

	axes   []*Axis
	tickID int

	groupMu  sync.Mutex
	gears    map[int]*gearGroup
	gantries map[int]*gantryPair
	multis   []*multiGroup
	syncs    map[int]*syncGroup
}

// New builds the controller over an opened rack and registers its
// supervision ticker. Every axis starts with the power-on parameter
// record.
func New(log *zap.Logger, rack *vrack.Rack, topo *board.Topology, ev *event.Manager) *Controller {
	if log == nil {
		log = zap.NewNop()
	}
	c := &Controller{
		log:      log,
		rack:     rack,
		topo:     topo,
		vmap:     board.NewVirtualMap(topo.AxisCount()),
		ev:       ev,
		gears:    make(map[int]*gearGroup),
		gantries: make(map[int]*gantryPair),
		syncs:    make(map[int]*syncGroup),
	}
	for i := 0; i < topo.AxisCount(); i++ {
		c.axes = append(c.axes, &Axis{
			c:                c,
			no:               i,
			par:              param.Default(i),
			jerkAccPct:       66,
			jerkDecPct:       66,
			limitStopMode:    axt.EmergencyStop,
			moveDir:          1,
			lastDir:          1,
			homeFineSearch:   true,
			homeClearEncoder: true,
		})
	}
	c.tickID = rack.RegisterTicker(c.tick)
	return c
}

// Close detaches the controller from the rack tick.
func (c *Controller) Close() {
	c.rack.UnregisterTicker(c.tickID)
}

// AxisCount returns the number of physical axes.
func (c *Controller) AxisCount() int { return len(c.axes) }

// VirtualMap exposes the axis renumbering table.
func (c *Controller) VirtualMap() *board.VirtualMap { return c.vmap }

// Axis resolves an axis number through the virtual map and returns
// its handle.
func (c *Controller) Axis(axisNo int) (*Axis, error) {
	phys, err := c.vmap.Resolve(axisNo)
	if err != nil {
		return nil, err
	}
	return c.axes[phys], nil
}

// No returns the physical axis number.
func (a *Axis) No() int { return a.no }

// ClaimForPath reserves the axis for an external interpolator. While
// claimed, single-axis commands and home starts are rejected with the
// continuous-interpolation status; safety supervision keeps watching
// the axis. Gantry masters cannot be claimed: path launches go to the
// rack directly and would leave the slave behind. The release function
// gives the axis back.
func (a *Axis) ClaimForPath(op string) (release func(), err error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if err := a.admitLocked(op); err != nil {
		return nil, err
	}
	if a.gantryM != nil {
		return nil, axt.Errorf(axt.MotionErrorGantryEnable, op,
			"axis %d masters an enabled gantry pair", a.no)
	}
	a.pathClaimed = true
	a.cause = StopNone
	return func() {
		a.mu.Lock()
		a.pathClaimed = false
		a.mu.Unlock()
	}, nil
}

// PathFault reports the stop cause safety supervision recorded while
// the axis was claimed, StopNone when the axis is healthy.
func (a *Axis) PathFault() StopCause {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.cause
}

func (c *Controller) bank(axisNo int) *event.Bank {
	return c.ev.Bank(event.AxisBank(axisNo))
}

// tick is the supervision pass, run once per rack service tick after
// the motors have advanced. Safety reactions land within one tick of
// the condition they watch.
func (c *Controller) tick(now, dt float64) {
	for _, a := range c.axes {
		a.tickSafety(now)
	}
	c.tickGears(now)
	c.tickGantries(now)
	for _, a := range c.axes {
		a.tickSignals(now)
	}
	for _, a := range c.axes {
		a.tickHome(now)
	}
	for _, a := range c.axes {
		a.tickOverrides(now)
	}
	for _, a := range c.axes {
		a.tickMove(now)
	}
	c.tickMultiGroups(now)
}

// unit conversion helpers; the rack works in pulses, the API in user
// units.

func (a *Axis) uppLocked() float64 { return a.par.UnitPerPulse() }

func (a *Axis) toPulse(u float64) float64 { return u / a.uppLocked() }

func (a *Axis) toUser(p float64) float64 { return p * a.uppLocked() }

// cmdUserLocked returns the logical command position in user units,
// with inserted compensation pulses removed.
func (a *Axis) cmdUserLocked() float64 {
	st := a.c.rack.State(a.no)
	return a.toUser(st.CmdPos - a.compOffset)
}

func (a *Axis) actUserLocked() float64 {
	st := a.c.rack.State(a.no)
	return a.toUser(st.ActPos - a.compOffset)
}

func (a *Axis) trace(cmd string, fields ...zap.Field) {
	if !a.traceLog {
		return
	}
	fields = append([]zap.Field{zap.Int("axis", a.no)}, fields...)
	a.c.log.Debug(cmd, fields...)
}

// jerkLocked maps the profile mode and jerk percentage onto the
// profile generator's jerk fraction. Trapezoid modes ramp straight,
// quasi-S uses a fixed half-smoothing, the S modes follow the
// configured percentage.
func (a *Axis) jerkLocked() float64 {
	switch a.par.InitProfileMode {
	case axt.QuasiSCurveMode:
		return 0.5
	case axt.SymSCurveMode, axt.AsymSCurveMode, axt.SymSM3SWMode, axt.AsymSM3SWMode:
		j := a.jerkAccPct / 100
		if j < 0 {
			j = 0
		}
		if j > 1 {
			j = 1
		}
		return j
	default:
		return 0
	}
}

// startRackLocked launches a profile on the rack, mirrored to the
// gantry slave while the pair is enabled.
func (a *Axis) startRackLocked(p *profile.Profile) {
	if g := a.gantryM; g != nil {
		a.c.rack.StartProfiles(map[int]*profile.Profile{a.no: p, g.slave: p})
		return
	}
	a.c.rack.StartProfile(a.no, p)
}

func (a *Axis) freezeRackLocked() {
	a.c.rack.Freeze(a.no)
	if g := a.gantryM; g != nil {
		a.c.rack.Freeze(g.slave)
	}
}

// haltLocked brings the axis to rest. Emergency mode freezes the
// command output on the spot; slowdown mode replaces the running
// profile with a deceleration ramp. The cause is recorded for the
// stop-cause readback and for any blocked caller.
func (a *Axis) haltLocked(now float64, mode axt.StopMode, decel float64, cause StopCause) {
	if !a.c.rack.Moving(a.no) {
		return
	}
	st := a.c.rack.State(a.no)
	if mode == axt.EmergencyStop || decel <= 0 || st.Vel == 0 {
		a.freezeRackLocked()
	} else if sp, err := profile.Stop(st.Vel, decel, a.jerkLocked()); err == nil {
		a.startRackLocked(sp)
	} else {
		a.freezeRackLocked()
	}
	if a.move != nil {
		a.move.stopped = true
		a.move.cause = cause
	}
	a.cause = cause
	a.stopping = true
	a.trace("axm.stop", zap.Stringer("cause", cause))
}

// tickSafety watches alarms, end limits, and soft limits.
func (a *Axis) tickSafety(now float64) {
	a.mu.Lock()
	defer a.mu.Unlock()

	st := a.c.rack.State(a.no)

	if st.Alarm && a.par.Alarm != axt.LevelUnused && !a.alarmLatched {
		a.alarmLatched = true
		a.haltLocked(now, axt.EmergencyStop, 0, StopAlarm)
		a.c.bank(a.no).Raise(event.ServoAlarm, now)
	}

	// End limits stop travel in their own direction unless the home
	// sequencer is using that limit as its detect signal.
	if st.Vel < 0 && a.c.rack.NegLimit(a.no) && a.par.NegEndLimit != axt.LevelUnused &&
		!a.homeOnSignalLocked(axt.NegEndLimit) {
		a.haltLocked(now, a.limitStopMode, a.toPulse(a.par.InitDecel), StopEndLimitNeg)
		a.c.bank(a.no).Raise(event.EndLimitHit, now)
	}
	if st.Vel > 0 && a.c.rack.PosLimit(a.no) && a.par.PosEndLimit != axt.LevelUnused &&
		!a.homeOnSignalLocked(axt.PosEndLimit) {
		a.haltLocked(now, a.limitStopMode, a.toPulse(a.par.InitDecel), StopEndLimitPos)
		a.c.bank(a.no).Raise(event.EndLimitHit, now)
	}

	if !a.par.SoftLimitsArmed() || a.stopping {
		return
	}
	pos := st.CmdPos
	if a.par.SoftLimitSel == axt.Actual {
		pos = st.ActPos
	}
	user := a.toUser(pos - a.compOffset)
	if st.Vel < 0 && user <= a.par.NegSoftLimit {
		a.haltLocked(now, a.par.SoftLimitStopMode, a.toPulse(a.par.InitDecel), StopSoftLimitNeg)
		a.c.bank(a.no).Raise(event.SoftLimitHit, now)
	} else if st.Vel > 0 && user >= a.par.PosSoftLimit {
		a.haltLocked(now, a.par.SoftLimitStopMode, a.toPulse(a.par.InitDecel), StopSoftLimitPos)
		a.c.bank(a.no).Raise(event.SoftLimitHit, now)
	}
}

// tickMove finalizes completed moves and raises the completion flags.
func (a *Axis) tickMove(now float64) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.c.rack.Moving(a.no) {
		return
	}
	if a.stopping {
		a.stopping = false
		a.c.bank(a.no).Raise(event.StopDone, now)
	}
	if a.move == nil {
		return
	}
	m := a.move
	a.move = nil
	a.torque = nil

	st := a.c.rack.State(a.no)
	flags := event.MotionDone
	if math.Abs(st.CmdPos-st.ActPos)*a.uppLocked() <= a.inposBand {
		flags |= event.Inposition
	}
	a.c.bank(a.no).Raise(flags, now)

	var err error
	if m.stopped {
		err = stopError("axm.Move", m.cause)
	}
	select {
	case m.done <- err:
	default:
	}
}

// stopError maps a premature stop onto the status code a blocked move
// reports.
func stopError(op string, cause StopCause) error {
	switch cause {
	case StopSoftLimitNeg:
		return axt.Errorf(axt.SoftLimitNegative, op, "stopped: %s", cause)
	case StopSoftLimitPos:
		return axt.Errorf(axt.SoftLimitPositive, op, "stopped: %s", cause)
	case StopSignalFound:
		return nil
	default:
		return axt.Errorf(axt.MotionError, op, "stopped before target: %s", cause)
	}
}
