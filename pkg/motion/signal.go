// Signal search, position capture, and status readbacks
//
// Copyright (C) 2026 Go binding
//
// This file may be distributed under the terms of the GNU GPLv3 license.

package motion

import (
	"math"

	"axl-go/pkg/axt"
	"axl-go/pkg/event"

	"go.uber.org/zap"
)

// captureArm is an armed position latch waiting for a signal
// transition.
type captureArm struct {
	signal axt.HomeDetectSignal
	edge   axt.MotionEdge
	source axt.Selection
	last   bool
	primed bool
}

// signalLevelLocked reads the live level of a detect signal. The
// soft-limit pseudo-signals compare the command position against the
// configured window.
func (a *Axis) signalLevelLocked(sig axt.HomeDetectSignal) bool {
	switch sig {
	case axt.PosEndLimit:
		return a.c.rack.PosLimit(a.no)
	case axt.NegEndLimit:
		return a.c.rack.NegLimit(a.no)
	case axt.PosSloLimit:
		return a.cmdUserLocked() >= a.par.PosSoftLimit
	case axt.NegSloLimit:
		return a.cmdUserLocked() <= a.par.NegSoftLimit
	case axt.HomeSensor:
		return a.c.rack.HomeSensor(a.no)
	case axt.EncodZPhase:
		return a.c.rack.ZPhase(a.no)
	default:
		// UniInput02..05 map onto the rack's user input bits.
		return a.c.rack.UserInput(a.no, int(sig)-int(axt.UniInput02)+2)
	}
}

func checkEdge(op string, edge axt.MotionEdge) error {
	if edge < axt.SignalDownEdge || edge > axt.SignalHighLevel {
		return axt.Errorf(axt.MotionInvalidLevel, op, "edge %d", edge)
	}
	return nil
}

func checkSignal(op string, sig axt.HomeDetectSignal) error {
	if sig < axt.PosEndLimit || sig > axt.UniInput05 {
		return axt.Errorf(axt.BadParameter, op, "signal %d", sig)
	}
	return nil
}

// MoveSignalCapture arms a one-shot position latch on a signal
// transition; MoveGetCapturePos reads and clears the result.
func (a *Axis) MoveSignalCapture(sig axt.HomeDetectSignal, edge axt.MotionEdge, source axt.Selection) error {
	const op = "axm.MoveSignalCapture"
	if err := checkSignal(op, sig); err != nil {
		return err
	}
	if err := checkEdge(op, edge); err != nil {
		return err
	}
	if source != axt.Command && source != axt.Actual {
		return axt.Errorf(axt.MotionInvalidSelection, op, "source %d", source)
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.capture = &captureArm{signal: sig, edge: edge, source: source}
	a.trace(op, zap.Stringer("signal", sig), zap.Stringer("edge", edge))
	return nil
}

// MoveGetCapturePos returns the latched capture position. The latch
// clears on read; a second read reports not-captured.
func (a *Axis) MoveGetCapturePos() (pos float64, valid bool, err error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	got := a.captured
	a.captured = capturedPos{}
	if !got.valid {
		return 0, false, axt.Errorf(axt.NotCaptured, "axm.MoveGetCapturePos", "axis %d", a.no)
	}
	return got.pos, true, nil
}

// MoveSignalSearch runs the axis at vel until the signal transition
// fires, then stops per the stop mode with the position latched. The
// sign of vel gives the search direction.
func (a *Axis) MoveSignalSearch(sig axt.HomeDetectSignal, edge axt.MotionEdge, stop axt.StopMode, vel, accel float64) error {
	const op = "axm.MoveSignalSearch"
	if err := checkSignal(op, sig); err != nil {
		return err
	}
	if err := checkEdge(op, edge); err != nil {
		return err
	}
	if stop != axt.EmergencyStop && stop != axt.SlowdownStop {
		return axt.Errorf(axt.MotionInvalidStopMode, op, "stop mode %d", stop)
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	m, err := a.launchVelLocked(op, vel, accel, accel)
	if err != nil {
		return err
	}
	a.move = m
	a.cause = StopNone
	a.capture = &captureArm{signal: sig, edge: edge, source: axt.Actual}
	a.search = true
	a.searchStop = stop
	a.startRackLocked(m.prof)
	return nil
}

// tickSignals watches armed captures and terminates signal searches.
func (a *Axis) tickSignals(now float64) {
	a.mu.Lock()
	defer a.mu.Unlock()
	arm := a.capture
	if arm == nil {
		return
	}
	cur := a.signalLevelLocked(arm.signal)
	if !arm.primed {
		arm.primed = true
		arm.last = cur
		return
	}
	fired := false
	switch arm.edge {
	case axt.SignalDownEdge:
		fired = arm.last && !cur
	case axt.SignalUpEdge:
		fired = !arm.last && cur
	case axt.SignalLowLevel:
		fired = !cur
	case axt.SignalHighLevel:
		fired = cur
	}
	arm.last = cur
	if !fired {
		return
	}

	st := a.c.rack.State(a.no)
	pos := st.ActPos
	if arm.source == axt.Command {
		pos = st.CmdPos
	}
	a.captured = capturedPos{pos: a.toUser(pos - a.compOffset), valid: true}
	a.capture = nil
	a.c.bank(a.no).Raise(event.SignalCapture, now)
	if a.search {
		a.search = false
		a.haltLocked(now, a.searchStop, a.toPulse(a.par.InitDecel), StopSignalFound)
	}
}

// Status readbacks.

// CmdPos returns the logical command position in user units.
func (a *Axis) CmdPos() (float64, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.cmdUserLocked(), nil
}

// ActPos returns the feedback position in user units.
func (a *Axis) ActPos() (float64, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.actUserLocked(), nil
}

// SetCmdPos rewrites the command register of an idle axis.
func (a *Axis) SetCmdPos(pos float64) error {
	const op = "axm.StatusSetCmdPos"
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.move != nil || a.c.rack.Moving(a.no) {
		return axt.Errorf(axt.MotionErrorInMotion, op, "axis %d busy", a.no)
	}
	a.c.rack.SetCmdPos(a.no, a.toPulse(pos)+a.compOffset)
	return nil
}

// SetActPos rewrites the feedback register.
func (a *Axis) SetActPos(pos float64) error {
	const op = "axm.StatusSetActPos"
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.move != nil || a.c.rack.Moving(a.no) {
		return axt.Errorf(axt.MotionErrorInMotion, op, "axis %d busy", a.no)
	}
	a.c.rack.SetActPos(a.no, a.toPulse(pos)+a.compOffset)
	return nil
}

// InMotion reports whether a commanded move is still running.
func (a *Axis) InMotion() (bool, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.move != nil || a.c.rack.Moving(a.no), nil
}

// ReadVel returns the live command velocity in user units per second,
// signed by direction.
func (a *Axis) ReadVel() (float64, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	st := a.c.rack.State(a.no)
	return a.toUser(st.Vel), nil
}

// DrivePulseCount returns the physical command pulse count, inserted
// compensation included.
func (a *Axis) DrivePulseCount() (int, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	st := a.c.rack.State(a.no)
	return int(math.Round(st.CmdPos)), nil
}

// Info is the combined live status snapshot.
type Info struct {
	CmdPos   float64
	ActPos   float64
	Vel      float64
	InMotion bool
	ServoOn  bool
	Alarm    bool
}

// MotionInfo returns the live status snapshot in user units.
func (a *Axis) MotionInfo() (Info, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	st := a.c.rack.State(a.no)
	return Info{
		CmdPos:   a.toUser(st.CmdPos - a.compOffset),
		ActPos:   a.toUser(st.ActPos - a.compOffset),
		Vel:      a.toUser(st.Vel),
		InMotion: a.move != nil || st.Moving,
		ServoOn:  st.ServoOn,
		Alarm:    st.Alarm,
	}, nil
}

// ReadStopCause reports why the last motion ended early; StopNone
// after a clean completion.
func (a *Axis) ReadStopCause() (StopCause, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.cause, nil
}

// ServoOn switches the servo stage. Dropping the servo mid-move
// abandons the profile and records a user stop.
func (a *Axis) ServoOn(on bool) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if !on && (a.move != nil || a.c.rack.Moving(a.no)) {
		a.haltLocked(a.c.rack.Now(), axt.EmergencyStop, 0, StopUser)
	}
	a.c.rack.SetServo(a.no, on)
	a.trace("axm.SignalServoOn", zap.Bool("on", on))
	return nil
}

// IsServoOn reports the servo stage state.
func (a *Axis) IsServoOn() (bool, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.c.rack.State(a.no).ServoOn, nil
}

// AlarmReset clears the drive alarm and re-arms the alarm watch.
func (a *Axis) AlarmReset() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.c.rack.SetAlarm(a.no, false)
	a.alarmLatched = false
	a.trace("axm.SignalServoAlarmReset")
	return nil
}

// ReadServoAlarm returns the live alarm level; an unused alarm input
// always reads inactive.
func (a *Axis) ReadServoAlarm() (axt.SignalLevel, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.par.Alarm == axt.LevelUnused {
		return axt.SignalInactive, nil
	}
	if a.c.rack.State(a.no).Alarm {
		return axt.SignalActive, nil
	}
	return axt.SignalInactive, nil
}

// ReadLimitStatus returns the live end-limit levels.
func (a *Axis) ReadLimitStatus() (neg, pos axt.SignalLevel, err error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.par.NegEndLimit != axt.LevelUnused && a.c.rack.NegLimit(a.no) {
		neg = axt.SignalActive
	}
	if a.par.PosEndLimit != axt.LevelUnused && a.c.rack.PosLimit(a.no) {
		pos = axt.SignalActive
	}
	return neg, pos, nil
}

// ReadHomeSensor returns the live home dog level.
func (a *Axis) ReadHomeSensor() (axt.SignalLevel, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.c.rack.HomeSensor(a.no) {
		return axt.SignalActive, nil
	}
	return axt.SignalInactive, nil
}

// ReadZPhase returns the live encoder index level.
func (a *Axis) ReadZPhase() (axt.SignalLevel, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.c.rack.ZPhase(a.no) {
		return axt.SignalActive, nil
	}
	return axt.SignalInactive, nil
}

// ReadInposition reports whether the axis sits inside the inposition
// band: servo on, idle, command/actual lag within range.
func (a *Axis) ReadInposition() (axt.SignalLevel, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	st := a.c.rack.State(a.no)
	if st.ServoOn && !st.Moving &&
		math.Abs(st.CmdPos-st.ActPos)*a.uppLocked() <= a.inposBand {
		return axt.SignalActive, nil
	}
	return axt.SignalInactive, nil
}
