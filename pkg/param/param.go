// Per-axis parameter records and their keyed-text persistence
//
// Copyright (C) 2026 Go binding
//
// This file may be distributed under the terms of the GNU GPLv3 license.

// Package param holds the 40-entry per-axis parameter record and the
// line-oriented text format the save-all/load-all operations use.
package param

import (
	"axl-go/pkg/axt"
)

// Record is one axis's complete parameter set. Field order follows the
// on-disk key numbering 00..39.
type Record struct {
	AxisNo         int
	PulseOutMethod axt.PulseOutput
	EncInputMethod int // 0 disable, 1..3 x1/x2/x4, 11..13 reversed wiring
	Inposition     axt.LevelMode
	Alarm          axt.LevelMode
	NegEndLimit    axt.LevelMode
	PosEndLimit    axt.LevelMode
	MinVelocity    float64
	MaxVelocity    float64

	HomeSignal      axt.HomeDetectSignal
	HomeLevel       axt.LevelMode
	HomeDir         axt.MoveDir
	ZPhaseLevel     axt.LevelMode
	ZPhaseUse       int // 0 unused, 1 search in +, 2 search in -
	StopSignalMode  int // 0 slowdown, 1 emergency (note: reversed from StopMode)
	StopSignalLevel axt.LevelMode

	HomeFirstVelocity  float64
	HomeSecondVelocity float64
	HomeThirdVelocity  float64
	HomeLastVelocity   float64
	HomeFirstAccel     float64
	HomeSecondAccel    float64
	HomeEndClearTime   float64 // ms to dwell before the end-of-search clear
	HomeEndOffset      float64

	NegSoftLimit float64
	PosSoftLimit float64
	MovePulse    int     // pulses per motor revolution
	MoveUnit     float64 // travel per motor revolution

	InitPosition    float64
	InitVelocity    float64
	InitAccel       float64
	InitDecel       float64
	InitAbsRelMode  axt.AbsRelMode
	InitProfileMode axt.ProfileMode

	SvonLevel       axt.LevelMode
	AlarmResetLevel axt.LevelMode

	EncoderType       axt.EncoderType
	SoftLimitSel      axt.Selection
	SoftLimitStopMode axt.StopMode
	SoftLimitEnable   bool
}

// Default returns the power-on parameter set for one axis. The values
// are the documented library defaults applied when no file is loaded.
func Default(axisNo int) Record {
	return Record{
		AxisNo:         axisNo,
		PulseOutMethod: axt.TwoCcwCwHigh,
		EncInputMethod: 3,
		Inposition:     axt.LevelUnused,
		Alarm:          axt.LevelHigh,
		NegEndLimit:    axt.LevelHigh,
		PosEndLimit:    axt.LevelHigh,
		MinVelocity:    1,
		MaxVelocity:    700000,

		HomeSignal:      axt.HomeSensor,
		HomeLevel:       axt.LevelHigh,
		HomeDir:         axt.DirCCW,
		ZPhaseLevel:     axt.LevelHigh,
		ZPhaseUse:       0,
		StopSignalMode:  0,
		StopSignalLevel: axt.LevelHigh,

		HomeFirstVelocity:  100,
		HomeSecondVelocity: 100,
		HomeThirdVelocity:  20,
		HomeLastVelocity:   1,
		HomeFirstAccel:     400,
		HomeSecondAccel:    400,
		HomeEndClearTime:   1000,
		HomeEndOffset:      0,

		NegSoftLimit: -134217728,
		PosSoftLimit: 134217727,
		MovePulse:    1,
		MoveUnit:     1,

		InitPosition:    1000,
		InitVelocity:    200,
		InitAccel:       400,
		InitDecel:       400,
		InitAbsRelMode:  axt.PosAbsMode,
		InitProfileMode: axt.AsymSCurveMode,

		SvonLevel:       axt.LevelHigh,
		AlarmResetLevel: axt.LevelHigh,

		EncoderType:       axt.EncoderTypeAbsolute,
		SoftLimitSel:      axt.Command,
		SoftLimitStopMode: axt.EmergencyStop,
		SoftLimitEnable:   false,
	}
}

// Validate checks every field against its documented range. The first
// violation is returned as a status error; a valid record returns nil.
func (r *Record) Validate() error {
	const op = "param.Validate"
	if r.AxisNo < 0 {
		return axt.Errorf(axt.MotionInvalidAxisNo, op, "axis %d", r.AxisNo)
	}
	if r.PulseOutMethod < axt.OneHighLowHigh || r.PulseOutMethod > axt.TwoPhaseReverse {
		return axt.Errorf(axt.MotionInvalidMethod, op, "pulse out method %d", r.PulseOutMethod)
	}
	if r.EncInputMethod < 0 || r.EncInputMethod > 13 {
		return axt.Errorf(axt.MotionInvalidMethod, op, "encoder input method %d", r.EncInputMethod)
	}
	for _, l := range []struct {
		name string
		val  axt.LevelMode
	}{
		{"inposition", r.Inposition},
		{"alarm", r.Alarm},
		{"neg end limit", r.NegEndLimit},
		{"pos end limit", r.PosEndLimit},
		{"home level", r.HomeLevel},
		{"zphase level", r.ZPhaseLevel},
		{"stop signal level", r.StopSignalLevel},
		{"svon level", r.SvonLevel},
		{"alarm reset level", r.AlarmResetLevel},
	} {
		if l.val < axt.LevelLow || l.val > axt.LevelUsed {
			return axt.Errorf(axt.MotionInvalidLevel, op, "%s level %d", l.name, l.val)
		}
	}
	if r.MinVelocity <= 0 || r.MaxVelocity < r.MinVelocity {
		return axt.Errorf(axt.MotionInvalidVelocity, op,
			"velocity range %g..%g", r.MinVelocity, r.MaxVelocity)
	}
	if r.HomeSignal < axt.PosEndLimit || r.HomeSignal > axt.UniInput05 {
		return axt.Errorf(axt.BadParameter, op, "home signal %d", r.HomeSignal)
	}
	if r.HomeDir != axt.DirCCW && r.HomeDir != axt.DirCW {
		return axt.Errorf(axt.BadParameter, op, "home dir %d", r.HomeDir)
	}
	if r.ZPhaseUse < 0 || r.ZPhaseUse > 2 {
		return axt.Errorf(axt.BadParameter, op, "zphase use %d", r.ZPhaseUse)
	}
	if r.StopSignalMode != 0 && r.StopSignalMode != 1 {
		return axt.Errorf(axt.MotionInvalidStopMode, op, "stop signal mode %d", r.StopSignalMode)
	}
	for _, v := range []struct {
		name string
		val  float64
	}{
		{"home first velocity", r.HomeFirstVelocity},
		{"home second velocity", r.HomeSecondVelocity},
		{"home third velocity", r.HomeThirdVelocity},
		{"home last velocity", r.HomeLastVelocity},
		{"home first accel", r.HomeFirstAccel},
		{"home second accel", r.HomeSecondAccel},
	} {
		if v.val <= 0 {
			return axt.Errorf(axt.MotionInvalidVelocity, op, "%s %g", v.name, v.val)
		}
	}
	if r.NegSoftLimit > r.PosSoftLimit {
		return axt.Errorf(axt.BadParameter, op,
			"soft limit range %g..%g", r.NegSoftLimit, r.PosSoftLimit)
	}
	if r.MovePulse < 1 {
		return axt.Errorf(axt.BadParameter, op, "move pulse %d", r.MovePulse)
	}
	if r.MoveUnit <= 0 {
		return axt.Errorf(axt.BadParameter, op, "move unit %g", r.MoveUnit)
	}
	if r.InitAbsRelMode < axt.PosAbsMode || r.InitAbsRelMode > axt.PosAbsShortMode {
		return axt.Errorf(axt.BadParameter, op, "absrel mode %d", r.InitAbsRelMode)
	}
	if r.InitProfileMode < axt.SymTrapezoidMode || r.InitProfileMode > axt.AsymSM3SWMode {
		return axt.Errorf(axt.BadParameter, op, "profile mode %d", r.InitProfileMode)
	}
	if r.EncoderType < axt.EncoderTypeIncremental || r.EncoderType > axt.EncoderTypeNone {
		return axt.Errorf(axt.BadParameter, op, "encoder type %d", r.EncoderType)
	}
	if r.SoftLimitSel != axt.Command && r.SoftLimitSel != axt.Actual {
		return axt.Errorf(axt.BadParameter, op, "soft limit select %d", r.SoftLimitSel)
	}
	if r.SoftLimitStopMode != axt.EmergencyStop && r.SoftLimitStopMode != axt.SlowdownStop {
		return axt.Errorf(axt.MotionInvalidStopMode, op, "soft limit stop mode %d", r.SoftLimitStopMode)
	}
	return nil
}

// UnitPerPulse returns the travel represented by one output pulse.
func (r *Record) UnitPerPulse() float64 {
	return r.MoveUnit / float64(r.MovePulse)
}

// SoftLimitsArmed reports whether the soft-limit window is in effect.
// Equal bounds mean the window is disabled regardless of the enable
// flag.
func (r *Record) SoftLimitsArmed() bool {
	return r.SoftLimitEnable && r.NegSoftLimit != r.PosSoftLimit
}
