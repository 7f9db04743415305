// Enumerated hardware values shared by the motion and I/O surfaces
//
// Copyright (C) 2026 Go binding
//
// This file may be distributed under the terms of the GNU GPLv3 license.

package axt

import "strconv"

// StopMode selects how a running axis is brought to rest.
type StopMode int

const (
	EmergencyStop StopMode = 0
	SlowdownStop  StopMode = 1
)

func (m StopMode) String() string {
	switch m {
	case EmergencyStop:
		return "EMERGENCY_STOP"
	case SlowdownStop:
		return "SLOWDOWN_STOP"
	default:
		return "STOP_MODE_" + strconv.Itoa(int(m))
	}
}

// MotionEdge selects the signal transition or level a search or capture
// operation reacts to.
type MotionEdge int

const (
	SignalDownEdge  MotionEdge = 0
	SignalUpEdge    MotionEdge = 1
	SignalLowLevel  MotionEdge = 2
	SignalHighLevel MotionEdge = 3
)

func (e MotionEdge) String() string {
	switch e {
	case SignalDownEdge:
		return "SIGNAL_DOWN_EDGE"
	case SignalUpEdge:
		return "SIGNAL_UP_EDGE"
	case SignalLowLevel:
		return "SIGNAL_LOW_LEVEL"
	case SignalHighLevel:
		return "SIGNAL_HIGH_LEVEL"
	default:
		return "SIGNAL_EDGE_" + strconv.Itoa(int(e))
	}
}

// Selection picks which position register an operation reads or writes.
type Selection int

const (
	Command Selection = 0
	Actual  Selection = 1
)

func (s Selection) String() string {
	switch s {
	case Command:
		return "COMMAND"
	case Actual:
		return "ACTUAL"
	default:
		return "SELECTION_" + strconv.Itoa(int(s))
	}
}

// TriggerMode selects periodic or absolute-position compare output on a
// motion module.
type TriggerMode int

const (
	PeriodMode TriggerMode = 0
	AbsPosMode TriggerMode = 1
)

// LevelMode is the four-state signal configuration used by limit and
// stop inputs: active level when used, or the unused/used pair.
type LevelMode int

const (
	LevelLow    LevelMode = 0
	LevelHigh   LevelMode = 1
	LevelUnused LevelMode = 2
	LevelUsed   LevelMode = 3
)

func (l LevelMode) String() string {
	switch l {
	case LevelLow:
		return "LOW"
	case LevelHigh:
		return "HIGH"
	case LevelUnused:
		return "UNUSED"
	case LevelUsed:
		return "USED"
	default:
		return "LEVEL_" + strconv.Itoa(int(l))
	}
}

// AbsRelMode selects absolute or relative interpretation of target
// positions. The long/short variants resolve ring-counter ambiguity on
// absolute moves within one revolution.
type AbsRelMode int

const (
	PosAbsMode      AbsRelMode = 0
	PosRelMode      AbsRelMode = 1
	PosAbsLongMode  AbsRelMode = 2
	PosAbsShortMode AbsRelMode = 3
)

func (m AbsRelMode) String() string {
	switch m {
	case PosAbsMode:
		return "POS_ABS_MODE"
	case PosRelMode:
		return "POS_REL_MODE"
	case PosAbsLongMode:
		return "POS_ABS_LONG_MODE"
	case PosAbsShortMode:
		return "POS_ABS_SHORT_MODE"
	default:
		return "POS_MODE_" + strconv.Itoa(int(m))
	}
}

// EncoderType describes the feedback device wired to an axis.
type EncoderType int

const (
	EncoderTypeIncremental EncoderType = 0
	EncoderTypeAbsolute    EncoderType = 1
	EncoderTypeNone        EncoderType = 2
)

// ProfileMode selects the velocity profile shape for point-to-point
// moves. The M3 software variants exist only on ML-3 hardware.
type ProfileMode int

const (
	SymTrapezoidMode  ProfileMode = 0
	AsymTrapezoidMode ProfileMode = 1
	QuasiSCurveMode   ProfileMode = 2
	SymSCurveMode     ProfileMode = 3
	AsymSCurveMode    ProfileMode = 4
	SymTrapM3SWMode   ProfileMode = 5
	AsymTrapM3SWMode  ProfileMode = 6
	SymSM3SWMode      ProfileMode = 7
	AsymSM3SWMode     ProfileMode = 8
)

func (p ProfileMode) String() string {
	switch p {
	case SymTrapezoidMode:
		return "SYM_TRAPEZOIDE_MODE"
	case AsymTrapezoidMode:
		return "ASYM_TRAPEZOIDE_MODE"
	case QuasiSCurveMode:
		return "QUASI_S_CURVE_MODE"
	case SymSCurveMode:
		return "SYM_S_CURVE_MODE"
	case AsymSCurveMode:
		return "ASYM_S_CURVE_MODE"
	case SymTrapM3SWMode:
		return "SYM_TRAP_M3_SW_MODE"
	case AsymTrapM3SWMode:
		return "ASYM_TRAP_M3_SW_MODE"
	case SymSM3SWMode:
		return "SYM_S_M3_SW_MODE"
	case AsymSM3SWMode:
		return "ASYM_S_M3_SW_MODE"
	default:
		return "PROFILE_MODE_" + strconv.Itoa(int(p))
	}
}

// SignalLevel is the two-state reading of a single input or output line.
type SignalLevel int

const (
	SignalInactive SignalLevel = 0
	SignalActive   SignalLevel = 1
)

// HomeResult reports the outcome of a home search. The values are the
// documented hardware codes and are returned unchanged.
type HomeResult int

const (
	HomeReserved      HomeResult = 0x00
	HomeSuccess       HomeResult = 0x01
	HomeSearching     HomeResult = 0x02
	HomeErrGntRange   HomeResult = 0x10
	HomeErrUserBreak  HomeResult = 0x11
	HomeErrVelocity   HomeResult = 0x12
	HomeErrAmpFault   HomeResult = 0x13
	HomeErrNegLimit   HomeResult = 0x14
	HomeErrPosLimit   HomeResult = 0x15
	HomeErrNotDetect  HomeResult = 0x16
	HomeErrSetting    HomeResult = 0x17
	HomeErrServoOff   HomeResult = 0x18
	HomeErrInterlock  HomeResult = 0x19
	HomeErrTimeout    HomeResult = 0x20
	HomeErrPosClear   HomeResult = 0x21
	HomeErrFuncall    HomeResult = 0x30
	HomeErrHomeMethod HomeResult = 0x31
	HomeErrCoupling   HomeResult = 0x40
	HomeErrEstop      HomeResult = 0x41
	HomeErrUnknown    HomeResult = 0xFF
)

var homeResultNames = map[HomeResult]string{
	HomeReserved:      "HOME_RESERVED",
	HomeSuccess:       "HOME_SUCCESS",
	HomeSearching:     "HOME_SEARCHING",
	HomeErrGntRange:   "HOME_ERR_GNT_RANGE",
	HomeErrUserBreak:  "HOME_ERR_USER_BREAK",
	HomeErrVelocity:   "HOME_ERR_VELOCITY",
	HomeErrAmpFault:   "HOME_ERR_AMP_FAULT",
	HomeErrNegLimit:   "HOME_ERR_NEG_LIMIT",
	HomeErrPosLimit:   "HOME_ERR_POS_LIMIT",
	HomeErrNotDetect:  "HOME_ERR_NOT_DETECT",
	HomeErrSetting:    "HOME_ERR_SETTING",
	HomeErrServoOff:   "HOME_ERR_SERVO_OFF",
	HomeErrInterlock:  "HOME_ERR_INTERLOCK",
	HomeErrTimeout:    "HOME_ERR_TIMEOUT",
	HomeErrPosClear:   "HOME_ERR_POS_CLEAR",
	HomeErrFuncall:    "HOME_ERR_FUNCALL",
	HomeErrHomeMethod: "HOME_ERR_HOME_METHOD",
	HomeErrCoupling:   "HOME_ERR_COUPLING",
	HomeErrEstop:      "HOME_ERR_ESTOP",
	HomeErrUnknown:    "HOME_ERR_UNKNOWN",
}

func (r HomeResult) String() string {
	if s, ok := homeResultNames[r]; ok {
		return s
	}
	return "HOME_RESULT_0x" + strconv.FormatInt(int64(r), 16)
}

// Failed reports whether the result is one of the error codes, as
// opposed to reserved, success, or still searching.
func (r HomeResult) Failed() bool {
	return r != HomeReserved && r != HomeSuccess && r != HomeSearching
}

// PulseOutput selects the pulse/direction wiring of the command output
// stage. One- and two-pulse methods with either active level, plus the
// two-phase methods.
type PulseOutput int

const (
	OneHighLowHigh  PulseOutput = 0x0
	OneHighHighLow  PulseOutput = 0x1
	OneLowLowHigh   PulseOutput = 0x2
	OneLowHighLow   PulseOutput = 0x3
	TwoCcwCwHigh    PulseOutput = 0x4
	TwoCcwCwLow     PulseOutput = 0x5
	TwoCwCcwHigh    PulseOutput = 0x6
	TwoCwCcwLow     PulseOutput = 0x7
	TwoPhase        PulseOutput = 0x8
	TwoPhaseReverse PulseOutput = 0x9
)

var pulseOutputNames = map[PulseOutput]string{
	OneHighLowHigh:  "OneHighLowHigh",
	OneHighHighLow:  "OneHighHighLow",
	OneLowLowHigh:   "OneLowLowHigh",
	OneLowHighLow:   "OneLowHighLow",
	TwoCcwCwHigh:    "TwoCcwCwHigh",
	TwoCcwCwLow:     "TwoCcwCwLow",
	TwoCwCcwHigh:    "TwoCwCcwHigh",
	TwoCwCcwLow:     "TwoCwCcwLow",
	TwoPhase:        "TwoPhase",
	TwoPhaseReverse: "TwoPhaseReverse",
}

func (p PulseOutput) String() string {
	if s, ok := pulseOutputNames[p]; ok {
		return s
	}
	return "PULSE_OUTPUT_" + strconv.Itoa(int(p))
}

// EncoderInput selects the counting method applied to the encoder input
// stage, obverse or reverse, up/down or quadrature at x1/x2/x4.
type EncoderInput int

const (
	ObverseUpDownMode EncoderInput = 0x0
	ObverseSqr1Mode   EncoderInput = 0x1
	ObverseSqr2Mode   EncoderInput = 0x2
	ObverseSqr4Mode   EncoderInput = 0x3
	ReverseUpDownMode EncoderInput = 0x4
	ReverseSqr1Mode   EncoderInput = 0x5
	ReverseSqr2Mode   EncoderInput = 0x6
	ReverseSqr4Mode   EncoderInput = 0x7
)

// Reversed reports whether the counting direction is inverted.
func (e EncoderInput) Reversed() bool { return e >= ReverseUpDownMode }

// AccUnit selects whether acceleration values are rates (unit/sec^2) or
// ramp times in seconds.
type AccUnit int

const (
	AccUnitSec2 AccUnit = 0
	AccUnitSec  AccUnit = 1
)

// MoveDir is the jog/continuous-move direction.
type MoveDir int

const (
	DirCCW MoveDir = 0
	DirCW  MoveDir = 1
)

func (d MoveDir) String() string {
	switch d {
	case DirCCW:
		return "DIR_CCW"
	case DirCW:
		return "DIR_CW"
	default:
		return "DIR_" + strconv.Itoa(int(d))
	}
}

// RadiusDistance picks the short or long arc solution when a radius
// alone does not determine the path.
type RadiusDistance int

const (
	ShortDistance RadiusDistance = 0
	LongDistance  RadiusDistance = 1
)

// PosType selects absolute-position trigger interpretation: the whole
// travel range, or only within a declared bound.
type PosType int

const (
	PositionLimit PosType = 0
	PositionBound PosType = 1
)

// ContiStartNode selects how velocity is carried across queued
// interpolation nodes.
type ContiStartNode int

const (
	ContiNodeVelocity ContiStartNode = 0
	ContiNodeManual   ContiStartNode = 1
	ContiNodeAuto     ContiStartNode = 2
)

// LineMoveVelMode selects how the commanded velocity applies to a
// multi-axis line segment.
type LineMoveVelMode int

const (
	LineVelModeVector       LineMoveVelMode = 0
	LineVelModeMaster       LineMoveVelMode = 1
	LineVelModeLongDistance LineMoveVelMode = 2
)

// HomeDetectSignal names the input a home search terminates on.
type HomeDetectSignal int

const (
	PosEndLimit HomeDetectSignal = 0x0
	NegEndLimit HomeDetectSignal = 0x1
	PosSloLimit HomeDetectSignal = 0x2
	NegSloLimit HomeDetectSignal = 0x3
	HomeSensor  HomeDetectSignal = 0x4
	EncodZPhase HomeDetectSignal = 0x5
	UniInput02  HomeDetectSignal = 0x6
	UniInput03  HomeDetectSignal = 0x7
	UniInput04  HomeDetectSignal = 0x8
	UniInput05  HomeDetectSignal = 0x9
)

var homeDetectNames = map[HomeDetectSignal]string{
	PosEndLimit: "PosEndLimit",
	NegEndLimit: "NegEndLimit",
	PosSloLimit: "PosSloLimit",
	NegSloLimit: "NegSloLimit",
	HomeSensor:  "HomeSensor",
	EncodZPhase: "EncodZPhase",
	UniInput02:  "UniInput02",
	UniInput03:  "UniInput03",
	UniInput04:  "UniInput04",
	UniInput05:  "UniInput05",
}

func (s HomeDetectSignal) String() string {
	if n, ok := homeDetectNames[s]; ok {
		return n
	}
	return "HOME_SIGNAL_" + strconv.Itoa(int(s))
}

// HomeInterlockMode guards a home search against a limit sensor firing
// where the home sensor should be.
type HomeInterlockMode int

const (
	HomeInterlockUnused      HomeInterlockMode = 0
	HomeInterlockSensorCheck HomeInterlockMode = 1
	HomeInterlockDistance    HomeInterlockMode = 2
)

// DetectDownStartPoint selects where deceleration begins during the
// final low-speed home approach.
type DetectDownStartPoint int

const (
	AutoDetect DetectDownStartPoint = 0
	RestPulse  DetectDownStartPoint = 1
)

// DIOEdge is the transition a digital-input event watches for.
type DIOEdge int

const (
	DownEdge DIOEdge = 0
	UpEdge   DIOEdge = 1
)

func (e DIOEdge) String() string {
	switch e {
	case DownEdge:
		return "DOWN_EDGE"
	case UpEdge:
		return "UP_EDGE"
	default:
		return "EDGE_" + strconv.Itoa(int(e))
	}
}

// DIOState is the logical state of a digital line.
type DIOState int

const (
	OffState DIOState = 0
	OnState  DIOState = 1
)

// AIOTriggerMode selects how analog-input sampling is paced.
type AIOTriggerMode int

const (
	AIOTriggerDisable  AIOTriggerMode = 0
	AIOTriggerNormal   AIOTriggerMode = 1
	AIOTriggerTimer    AIOTriggerMode = 2
	AIOTriggerExternal AIOTriggerMode = 3
)

// AIOFullMode selects what happens to new samples when an input FIFO
// is full: replace oldest, or keep current contents.
type AIOFullMode int

const (
	NewDataKeep  AIOFullMode = 0
	CurrDataKeep AIOFullMode = 1
)

// AIOEventMask is the bit set of FIFO threshold events a channel can
// raise.
type AIOEventMask int

const (
	DataEmpty AIOEventMask = 0x01
	DataMany  AIOEventMask = 0x02
	DataSmall AIOEventMask = 0x04
	DataFull  AIOEventMask = 0x08
)

// AIOFifoStatus is the sampled-FIFO fill state.
type AIOFifoStatus int

const (
	FifoDataExist AIOFifoStatus = 0
	FifoDataEmpty AIOFifoStatus = 1
	FifoDataHalf  AIOFifoStatus = 2
	FifoDataFull  AIOFifoStatus = 6
)

// LogLevel controls library call tracing.
type LogLevel int

const (
	LevelNone     LogLevel = 0
	LevelError    LogLevel = 1
	LevelRunStop  LogLevel = 2
	LevelFunction LogLevel = 3
)

func (l LogLevel) String() string {
	switch l {
	case LevelNone:
		return "LEVEL_NONE"
	case LevelError:
		return "LEVEL_ERROR"
	case LevelRunStop:
		return "LEVEL_RUNSTOP"
	case LevelFunction:
		return "LEVEL_FUNCTION"
	default:
		return "LEVEL_" + strconv.Itoa(int(l))
	}
}
