// Axis configuration surface
//
// Copyright (C) 2026 Go binding
//
// This file may be distributed under the terms of the GNU GPLv3 license.

package motion

import (
	"axl-go/pkg/axt"
	"axl-go/pkg/param"

	"go.uber.org/zap"
)

// SetPulseOutMethod selects the pulse/direction wiring of the command
// output stage.
func (a *Axis) SetPulseOutMethod(m axt.PulseOutput) error {
	const op = "axm.MotSetPulseOutMethod"
	if m < axt.OneHighLowHigh || m > axt.TwoPhaseReverse {
		return axt.Errorf(axt.MotionInvalidMethod, op, "method %d", m)
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.par.PulseOutMethod = m
	a.trace(op, zap.Stringer("method", m))
	return nil
}

func (a *Axis) GetPulseOutMethod() (axt.PulseOutput, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.par.PulseOutMethod, nil
}

// SetEncInputMethod selects the encoder counting method. 0 disables
// the input, 1..3 are x1/x2/x4 quadrature, 11..13 the reversed-wiring
// variants.
func (a *Axis) SetEncInputMethod(m int) error {
	const op = "axm.MotSetEncInputMethod"
	if m < 0 || m > 13 || (m > 3 && m < 11) {
		return axt.Errorf(axt.MotionInvalidMethod, op, "method %d", m)
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.par.EncInputMethod = m
	return nil
}

func (a *Axis) GetEncInputMethod() (int, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.par.EncInputMethod, nil
}

// SetMoveUnitPerPulse scales every position, velocity, and
// acceleration in the API: unit user units of travel per pulse output
// pulses.
func (a *Axis) SetMoveUnitPerPulse(unit float64, pulse int) error {
	const op = "axm.MotSetMoveUnitPerPulse"
	if unit <= 0 {
		return axt.Errorf(axt.MotionMoveUnitIsZero, op, "unit %g", unit)
	}
	if pulse < 1 {
		return axt.Errorf(axt.MotionInvalidPulseValue, op, "pulse %d", pulse)
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.par.MoveUnit = unit
	a.par.MovePulse = pulse
	a.trace(op, zap.Float64("unit", unit), zap.Int("pulse", pulse))
	return nil
}

func (a *Axis) GetMoveUnitPerPulse() (unit float64, pulse int, err error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.par.MoveUnit, a.par.MovePulse, nil
}

// SetAbsRelMode selects absolute or relative interpretation of move
// targets.
func (a *Axis) SetAbsRelMode(m axt.AbsRelMode) error {
	const op = "axm.MotSetAbsRelMode"
	if m < axt.PosAbsMode || m > axt.PosAbsShortMode {
		return axt.Errorf(axt.BadParameter, op, "mode %d", m)
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.par.InitAbsRelMode = m
	return nil
}

func (a *Axis) GetAbsRelMode() (axt.AbsRelMode, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.par.InitAbsRelMode, nil
}

// SetProfileMode selects the velocity profile shape for subsequent
// moves.
func (a *Axis) SetProfileMode(m axt.ProfileMode) error {
	const op = "axm.MotSetProfileMode"
	if m < axt.SymTrapezoidMode || m > axt.AsymSM3SWMode {
		return axt.Errorf(axt.MotionProfileInvalid, op, "mode %d", m)
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.par.InitProfileMode = m
	return nil
}

func (a *Axis) GetProfileMode() (axt.ProfileMode, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.par.InitProfileMode, nil
}

// SetAccelUnit selects whether acceleration arguments are rates
// (unit/s^2) or ramp times in seconds.
func (a *Axis) SetAccelUnit(u axt.AccUnit) error {
	const op = "axm.MotSetAccelUnit"
	if u != axt.AccUnitSec2 && u != axt.AccUnitSec {
		return axt.Errorf(axt.BadParameter, op, "unit %d", u)
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.accUnit = u
	return nil
}

func (a *Axis) GetAccelUnit() (axt.AccUnit, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.accUnit, nil
}

// SetProfilePriority picks what yields when a move is too short for
// the commanded velocity and ramp time both: PriorityVelocity keeps
// the ramp rate, PriorityAccelTime keeps the ramp time and lowers the
// velocity. Only meaningful with seconds-unit acceleration.
func (a *Axis) SetProfilePriority(p int) error {
	const op = "axm.MotSetProfilePriority"
	if p != PriorityVelocity && p != PriorityAccelTime {
		return axt.Errorf(axt.BadParameter, op, "priority %d", p)
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.priority = p
	return nil
}

func (a *Axis) GetProfilePriority() (int, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.priority, nil
}

// SetAccelJerk sets the S-curve smoothing percentage applied to
// acceleration ramps; 0 ramps straight, 100 is full S.
func (a *Axis) SetAccelJerk(pct float64) error {
	const op = "axm.MotSetAccelJerk"
	if pct < 0 || pct > 100 {
		return axt.Errorf(axt.BadParameter, op, "jerk %g%%", pct)
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.jerkAccPct = pct
	return nil
}

func (a *Axis) GetAccelJerk() (float64, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.jerkAccPct, nil
}

// SetDecelJerk sets the smoothing percentage of deceleration ramps.
func (a *Axis) SetDecelJerk(pct float64) error {
	const op = "axm.MotSetDecelJerk"
	if pct < 0 || pct > 100 {
		return axt.Errorf(axt.BadParameter, op, "jerk %g%%", pct)
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.jerkDecPct = pct
	return nil
}

func (a *Axis) GetDecelJerk() (float64, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.jerkDecPct, nil
}

// SetMaxVelocity caps commanded velocities; exceeding it at move
// admission reports velocity-out-of-bound.
func (a *Axis) SetMaxVelocity(v float64) error {
	const op = "axm.MotSetMaxVel"
	a.mu.Lock()
	defer a.mu.Unlock()
	if v <= 0 || v < a.par.MinVelocity {
		return axt.Errorf(axt.MotionInvalidVelocity, op, "max velocity %g", v)
	}
	a.par.MaxVelocity = v
	return nil
}

func (a *Axis) GetMaxVelocity() (float64, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.par.MaxVelocity, nil
}

func (a *Axis) SetMinVelocity(v float64) error {
	const op = "axm.MotSetMinVel"
	a.mu.Lock()
	defer a.mu.Unlock()
	if v <= 0 || v > a.par.MaxVelocity {
		return axt.Errorf(axt.MotionInvalidVelocity, op, "min velocity %g", v)
	}
	a.par.MinVelocity = v
	return nil
}

func (a *Axis) GetMinVelocity() (float64, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.par.MinVelocity, nil
}

// SetInpositionRange sets the command/actual lag band inside which the
// inposition flag raises at move completion.
func (a *Axis) SetInpositionRange(band float64) error {
	const op = "axm.SignalSetInposRange"
	if band < 0 {
		return axt.Errorf(axt.BadParameter, op, "band %g", band)
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.inposBand = band
	return nil
}

func (a *Axis) GetInpositionRange() (float64, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.inposBand, nil
}

// SetLimit configures the end-limit inputs: the stop mode applied when
// one fires and the active level (or unused) of each side.
func (a *Axis) SetLimit(stop axt.StopMode, neg, pos axt.LevelMode) error {
	const op = "axm.SignalSetLimit"
	if stop != axt.EmergencyStop && stop != axt.SlowdownStop {
		return axt.Errorf(axt.MotionInvalidStopMode, op, "stop mode %d", stop)
	}
	if err := checkLevel(op, neg); err != nil {
		return err
	}
	if err := checkLevel(op, pos); err != nil {
		return err
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.limitStopMode = stop
	a.par.NegEndLimit = neg
	a.par.PosEndLimit = pos
	return nil
}

func (a *Axis) GetLimit() (axt.StopMode, axt.LevelMode, axt.LevelMode, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.limitStopMode, a.par.NegEndLimit, a.par.PosEndLimit, nil
}

// SetStopSignal configures the external stop input: its active level
// and whether it stops with a ramp (0) or immediately (1).
func (a *Axis) SetStopSignal(level axt.LevelMode, mode int) error {
	const op = "axm.SignalSetStop"
	if err := checkLevel(op, level); err != nil {
		return err
	}
	if mode != 0 && mode != 1 {
		return axt.Errorf(axt.MotionInvalidStopMode, op, "mode %d", mode)
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.par.StopSignalLevel = level
	a.par.StopSignalMode = mode
	return nil
}

func (a *Axis) GetStopSignal() (axt.LevelMode, int, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.par.StopSignalLevel, a.par.StopSignalMode, nil
}

func checkLevel(op string, l axt.LevelMode) error {
	if l < axt.LevelLow || l > axt.LevelUsed {
		return axt.Errorf(axt.MotionInvalidLevel, op, "level %d", l)
	}
	return nil
}

// Per-signal level setters.

func (a *Axis) SetServoOnLevel(l axt.LevelMode) error {
	if err := checkLevel("axm.SignalSetServoOnLevel", l); err != nil {
		return err
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.par.SvonLevel = l
	return nil
}

func (a *Axis) GetServoOnLevel() (axt.LevelMode, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.par.SvonLevel, nil
}

func (a *Axis) SetAlarmLevel(l axt.LevelMode) error {
	if err := checkLevel("axm.SignalSetServoAlarm", l); err != nil {
		return err
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.par.Alarm = l
	return nil
}

func (a *Axis) GetAlarmLevel() (axt.LevelMode, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.par.Alarm, nil
}

func (a *Axis) SetAlarmResetLevel(l axt.LevelMode) error {
	if err := checkLevel("axm.SignalSetServoAlarmResetLevel", l); err != nil {
		return err
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.par.AlarmResetLevel = l
	return nil
}

func (a *Axis) GetAlarmResetLevel() (axt.LevelMode, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.par.AlarmResetLevel, nil
}

func (a *Axis) SetInpositionLevel(l axt.LevelMode) error {
	if err := checkLevel("axm.SignalSetInpos", l); err != nil {
		return err
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.par.Inposition = l
	return nil
}

func (a *Axis) GetInpositionLevel() (axt.LevelMode, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.par.Inposition, nil
}

func (a *Axis) SetZPhaseLevel(l axt.LevelMode) error {
	if err := checkLevel("axm.SignalSetZphaseLevel", l); err != nil {
		return err
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.par.ZPhaseLevel = l
	return nil
}

func (a *Axis) GetZPhaseLevel() (axt.LevelMode, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.par.ZPhaseLevel, nil
}

func (a *Axis) SetHomeLevel(l axt.LevelMode) error {
	if err := checkLevel("axm.HomeSetSignalLevel", l); err != nil {
		return err
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.par.HomeLevel = l
	return nil
}

func (a *Axis) GetHomeLevel() (axt.LevelMode, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.par.HomeLevel, nil
}

// SetSoftLimit arms the software travel window. Moves commanded beyond
// a bound are rejected; travel crossing a bound stops per the stop
// mode.
func (a *Axis) SetSoftLimit(enable bool, sel axt.Selection, stop axt.StopMode, neg, pos float64) error {
	const op = "axm.SignalSetSoftLimit"
	if sel != axt.Command && sel != axt.Actual {
		return axt.Errorf(axt.MotionInvalidSelection, op, "selection %d", sel)
	}
	if stop != axt.EmergencyStop && stop != axt.SlowdownStop {
		return axt.Errorf(axt.MotionInvalidStopMode, op, "stop mode %d", stop)
	}
	if neg > pos {
		return axt.Errorf(axt.BadParameter, op, "window %g..%g", neg, pos)
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.par.SoftLimitEnable = enable
	a.par.SoftLimitSel = sel
	a.par.SoftLimitStopMode = stop
	a.par.NegSoftLimit = neg
	a.par.PosSoftLimit = pos
	a.trace(op, zap.Bool("enable", enable), zap.Float64("neg", neg), zap.Float64("pos", pos))
	return nil
}

func (a *Axis) GetSoftLimit() (enable bool, sel axt.Selection, stop axt.StopMode, neg, pos float64, err error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.par.SoftLimitEnable, a.par.SoftLimitSel, a.par.SoftLimitStopMode,
		a.par.NegSoftLimit, a.par.PosSoftLimit, nil
}

// SetHomeMethod configures the home search: travel direction, the
// signal the search terminates on, Z-phase use (0 none, 1 positive
// re-search, 2 negative), the end-clear dwell in milliseconds, and the
// origin offset applied after detection.
func (a *Axis) SetHomeMethod(dir axt.MoveDir, sig axt.HomeDetectSignal, zUse int, clearTimeMs, offset float64) error {
	const op = "axm.HomeSetMethod"
	if dir != axt.DirCCW && dir != axt.DirCW {
		return axt.Errorf(axt.BadParameter, op, "dir %d", dir)
	}
	if sig < axt.PosEndLimit || sig > axt.UniInput05 {
		return axt.Errorf(axt.BadParameter, op, "signal %d", sig)
	}
	if zUse < 0 || zUse > 2 {
		return axt.Errorf(axt.BadParameter, op, "zphase %d", zUse)
	}
	if clearTimeMs < 0 {
		return axt.Errorf(axt.MotionInvalidTime, op, "clear time %g", clearTimeMs)
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.par.HomeDir = dir
	a.par.HomeSignal = sig
	a.par.ZPhaseUse = zUse
	a.par.HomeEndClearTime = clearTimeMs
	a.par.HomeEndOffset = offset
	return nil
}

func (a *Axis) GetHomeMethod() (axt.MoveDir, axt.HomeDetectSignal, int, float64, float64, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.par.HomeDir, a.par.HomeSignal, a.par.ZPhaseUse,
		a.par.HomeEndClearTime, a.par.HomeEndOffset, nil
}

// SetHomeVel sets the four stage velocities and the two ramp
// accelerations of the home search.
func (a *Axis) SetHomeVel(first, second, third, last, acc1, acc2 float64) error {
	const op = "axm.HomeSetVel"
	for _, v := range []float64{first, second, third, last, acc1, acc2} {
		if v <= 0 {
			return axt.Errorf(axt.MotionInvalidVelocity, op, "value %g", v)
		}
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.par.HomeFirstVelocity = first
	a.par.HomeSecondVelocity = second
	a.par.HomeThirdVelocity = third
	a.par.HomeLastVelocity = last
	a.par.HomeFirstAccel = acc1
	a.par.HomeSecondAccel = acc2
	return nil
}

func (a *Axis) GetHomeVel() (first, second, third, last, acc1, acc2 float64, err error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.par.HomeFirstVelocity, a.par.HomeSecondVelocity, a.par.HomeThirdVelocity,
		a.par.HomeLastVelocity, a.par.HomeFirstAccel, a.par.HomeSecondAccel, nil
}

// SetTraceLog toggles per-axis debug tracing of accepted motion
// commands.
func (a *Axis) SetTraceLog(on bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.traceLog = on
}

func (a *Axis) TraceLog() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.traceLog
}

// Parameters returns a copy of the full parameter record.
func (a *Axis) Parameters() (param.Record, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.par, nil
}

// SetParameters replaces the full parameter record after validation.
// The record's axis number is forced to this axis.
func (a *Axis) SetParameters(r param.Record) error {
	r.AxisNo = a.no
	if err := r.Validate(); err != nil {
		return err
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.par = r
	return nil
}

// SaveAllParameters writes every axis's record to one parameter file.
func (c *Controller) SaveAllParameters(path string) error {
	const op = "axm.MotSaveParaAll"
	recs := make([]param.Record, len(c.axes))
	for i, a := range c.axes {
		a.mu.Lock()
		recs[i] = a.par
		a.mu.Unlock()
	}
	if err := param.Save(path, recs); err != nil {
		return axt.Wrap(axt.MotionInvalidFileSave, op, err)
	}
	c.log.Info("parameters saved", zap.String("path", path), zap.Int("axes", len(recs)))
	return nil
}

// LoadAllParameters reads a parameter file and applies each record to
// the axis it names.
func (c *Controller) LoadAllParameters(path string) error {
	const op = "axm.MotLoadParaAll"
	recs, err := param.Load(path)
	if err != nil {
		return axt.Wrap(axt.MotionInvalidFileLoad, op, err)
	}
	for _, r := range recs {
		if r.AxisNo < 0 || r.AxisNo >= len(c.axes) {
			return axt.Errorf(axt.MotionInvalidAxisNo, op, "axis %d", r.AxisNo)
		}
		if err := r.Validate(); err != nil {
			return err
		}
	}
	for _, r := range recs {
		a := c.axes[r.AxisNo]
		a.mu.Lock()
		a.par = r
		a.mu.Unlock()
	}
	c.log.Info("parameters loaded", zap.String("path", path), zap.Int("axes", len(recs)))
	return nil
}
