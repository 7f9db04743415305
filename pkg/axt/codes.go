// Numeric status codes returned by the motion/I-O control surface
//
// Copyright (C) 2026 Go binding
//
// This file may be distributed under the terms of the GNU GPLv3 license.

package axt

import "strconv"

// Code is the unsigned status word every library operation reports.
// Zero is success. The numeric values are part of the external contract
// and are carried through unchanged; nothing in this package or above it
// translates or remaps them.
type Code uint32

// General library codes (1000 range).
const (
	Success           Code = 0
	OpenError         Code = 1001
	OpenAlready       Code = 1002
	NotInitialized    Code = 1052
	NotOpen           Code = 1053
	NotSupportVersion Code = 1054
	LockFileMismatch  Code = 1055
	BadParameter      Code = 1070

	InvalidHardware  Code = 1100
	InvalidBoardNo   Code = 1101
	InvalidModulePos Code = 1102
	InvalidLevel     Code = 1103
	InvalidVariable  Code = 1104
	InvalidModuleNo  Code = 1105
	InvalidNo        Code = 1106

	ErrorVersionRead Code = 1151
	NetworkError     Code = 1152
)

// Positional argument range codes. The Nth argument of the failing call was
// below its minimum or above its maximum.
const (
	Arg1BelowMin  Code = 1160
	Arg1AboveMax  Code = 1161
	Arg2BelowMin  Code = 1170
	Arg2AboveMax  Code = 1171
	Arg3BelowMin  Code = 1180
	Arg3AboveMax  Code = 1181
	Arg4BelowMin  Code = 1190
	Arg4AboveMax  Code = 1191
	Arg5BelowMin  Code = 1200
	Arg5AboveMax  Code = 1201
	Arg6BelowMin  Code = 1210
	Arg6AboveMax  Code = 1211
	Arg7BelowMin  Code = 1220
	Arg7AboveMax  Code = 1221
	Arg8BelowMin  Code = 1230
	Arg8AboveMax  Code = 1231
	Arg9BelowMin  Code = 1240
	Arg9AboveMax  Code = 1241
	Arg10BelowMin Code = 1250
	Arg10AboveMax Code = 1251
	Arg11BelowMin Code = 1252
	Arg11AboveMax Code = 1253
)

// Analog I/O codes (2000 range).
const (
	AIOOpenError         Code = 2001
	AIONotModule         Code = 2051
	AIONotEvent          Code = 2052
	AIOInvalidModuleNo   Code = 2101
	AIOInvalidChannelNo  Code = 2102
	AIOInvalidUse        Code = 2106
	AIOInvalidTrigger    Code = 2107
	AIOExternalDataEmpty Code = 2108
	AIOInvalidValue      Code = 2109
	AIOPatternEnabled    Code = 2110
)

// Digital I/O codes (3000 range).
const (
	DIOOpenError       Code = 3001
	DIONotModule       Code = 3051
	DIONotInterrupt    Code = 3052
	DIOInvalidModuleNo Code = 3101
	DIOInvalidOffsetNo Code = 3102
	DIOInvalidLevel    Code = 3103
	DIOInvalidMode     Code = 3104
	DIOInvalidValue    Code = 3105
	DIOInvalidUse      Code = 3106
	DIOInvalidLink     Code = 3107
)

// Counter codes (3200 range).
const (
	CNTOpenError        Code = 3201
	CNTNotModule        Code = 3251
	CNTNotInterrupt     Code = 3252
	CNTNotTriggerEnable Code = 3253
	CNTInvalidModuleNo  Code = 3301
	CNTInvalidChannelNo Code = 3302
	CNTInvalidOffsetNo  Code = 3303
	CNTInvalidLevel     Code = 3304
	CNTInvalidMode      Code = 3305
	CNTInvalidValue     Code = 3306
	CNTInvalidUse       Code = 3307
	CNTCmdTimeout       Code = 3308
	CNTInvalidVelocity  Code = 3309
	CNTDuringPWMEnable  Code = 3310
	CNTInvalidTablePos  Code = 3311
	CNTDimensionError   Code = 3312
	CNTInvalidRange     Code = 3313
)

// Motion codes (4000 range).
const (
	MotionOpenError        Code = 4001
	MotionNotModule        Code = 4051
	MotionNotInterrupt     Code = 4052
	MotionNotInitialAxisNo Code = 4053
	MotionNotInContiInterp Code = 4054
	MotionNotParaRead      Code = 4055

	MotionInvalidAxisNo       Code = 4101
	MotionInvalidMethod       Code = 4102
	MotionInvalidUse          Code = 4103
	MotionInvalidLevel        Code = 4104
	MotionInvalidBitNo        Code = 4105
	MotionInvalidStopMode     Code = 4106
	MotionInvalidTriggerMode  Code = 4107
	MotionInvalidTriggerLevel Code = 4108
	MotionInvalidSelection    Code = 4109
	MotionInvalidTime         Code = 4110
	MotionInvalidFileLoad     Code = 4111
	MotionInvalidFileSave     Code = 4112
	MotionInvalidVelocity     Code = 4113
	MotionInvalidAccelTime    Code = 4114
	MotionInvalidPulseValue   Code = 4115
	MotionInvalidNodeNumber   Code = 4116

	MotionSStopAlreadyRunning Code = 4150
	MotionErrorInNonmotion    Code = 4151
	MotionErrorInMotion       Code = 4152
	MotionError               Code = 4153
	MotionErrorGantryEnable   Code = 4154
	MotionErrorGantryAxis     Code = 4155
	MotionErrorMasterServoOn  Code = 4156
	MotionErrorSlaveServoOn   Code = 4157
	MotionInvalidPosition     Code = 4158
	NotSameModule             Code = 4159
	NotSameBoard              Code = 4160
	NotSameProduct            Code = 4161
	NotCaptured               Code = 4162
	NotGearMode               Code = 4164
	MoveSensorCheckError      Code = 4169

	MotionInterpolValue Code = 4184
	NotContiBegin       Code = 4185
	NotContiEnd         Code = 4186

	MotionHomeSearching      Code = 4201
	MotionHomeErrorSearching Code = 4202
	MotionHomeErrorStart     Code = 4203
	MotionHomeErrorGantry    Code = 4204

	MotionPositionOutOfBound Code = 4251
	MotionProfileInvalid     Code = 4252
	MotionVelocityOutOfBound Code = 4253
	MotionMoveUnitIsZero     Code = 4254
	MotionSettingError       Code = 4255
	MotionInContiInterp      Code = 4256
	MotionDisableTrigger     Code = 4257
	MotionInvalidContiIndex  Code = 4258
	MotionContiQueueFull     Code = 4259
	DuringServoOn            Code = 4260
	HWAccessError            Code = 4261

	CompensationSetParamFirst  Code = 4300
	CompensationNotInit        Code = 4301
	CompensationPosOutOfBound  Code = 4302
	CompensationBacklashNoInit Code = 4303
	CompensationInvalidEntry   Code = 4304

	SeqNotInService    Code = 4400
	NotSeqNodeBegin    Code = 4403
	NotSeqNodeEnd      Code = 4404
	SeqNoNode          Code = 4405
	SeqStopTimeout     Code = 4406
	SeqInvalidMasterNo Code = 4407

	RingCounterEnable     Code = 4420
	RingCounterOutOfRange Code = 4421
	SoftLimitEnable       Code = 4430
	SoftLimitNegative     Code = 4431
	SoftLimitPositive     Code = 4432

	MotionErrorMasterSlaveSame Code = 4533
	DuringInMotion             Code = 4543
)

// Sync group codes (4600 range).
const (
	SyncInvalidAxisNo  Code = 4600
	SyncInvalidMapNo   Code = 4601
	SyncDuplicatedTime Code = 4602
)

// Internal queue transport codes (5000 range).
const (
	QueueCmdError       Code = 5010
	QueueCmdWaitTimeout Code = 5012
	QueueRspError       Code = 5015
	QueueRspWaitTimeout Code = 5017
	StillContiMotion    Code = 5018
)

// Monitor codes (6600 range).
const (
	MonitorInOperation    Code = 6600
	MonitorNotOperation   Code = 6601
	MonitorEmptyQueue     Code = 6602
	MonitorInvalidTrigger Code = 6603
	MonitorEmptyItem      Code = 6604
)

// UnknownError is reported when a failure reaches the boundary without one
// of the contract codes attached.
const UnknownError Code = 0xFFFFFFFF

var codeNames = map[Code]string{
	Success:           "SUCCESS",
	OpenError:         "OPEN_ERROR",
	OpenAlready:       "OPEN_ALREADY",
	NotInitialized:    "NOT_INITIAL",
	NotOpen:           "NOT_OPEN",
	NotSupportVersion: "NOT_SUPPORT_VERSION",
	LockFileMismatch:  "LOCK_FILE_MISMATCH",
	BadParameter:      "BAD_PARAMETER",

	InvalidHardware:  "INVALID_HARDWARE",
	InvalidBoardNo:   "INVALID_BOARD_NO",
	InvalidModulePos: "INVALID_MODULE_POS",
	InvalidLevel:     "INVALID_LEVEL",
	InvalidVariable:  "INVALID_VARIABLE",
	InvalidModuleNo:  "INVALID_MODULE_NO",
	InvalidNo:        "INVALID_NO",

	ErrorVersionRead: "ERROR_VERSION_READ",
	NetworkError:     "NETWORK_ERROR",

	AIOOpenError:         "AIO_OPEN_ERROR",
	AIONotModule:         "AIO_NOT_MODULE",
	AIONotEvent:          "AIO_NOT_EVENT",
	AIOInvalidModuleNo:   "AIO_INVALID_MODULE_NO",
	AIOInvalidChannelNo:  "AIO_INVALID_CHANNEL_NO",
	AIOInvalidUse:        "AIO_INVALID_USE",
	AIOInvalidTrigger:    "AIO_INVALID_TRIGGER_MODE",
	AIOExternalDataEmpty: "AIO_EXTERNAL_DATA_EMPTY",
	AIOInvalidValue:      "AIO_INVALID_VALUE",
	AIOPatternEnabled:    "AIO_UPG_ALEADY_ENABLED",

	DIOOpenError:       "DIO_OPEN_ERROR",
	DIONotModule:       "DIO_NOT_MODULE",
	DIONotInterrupt:    "DIO_NOT_INTERRUPT",
	DIOInvalidModuleNo: "DIO_INVALID_MODULE_NO",
	DIOInvalidOffsetNo: "DIO_INVALID_OFFSET_NO",
	DIOInvalidLevel:    "DIO_INVALID_LEVEL",
	DIOInvalidMode:     "DIO_INVALID_MODE",
	DIOInvalidValue:    "DIO_INVALID_VALUE",
	DIOInvalidUse:      "DIO_INVALID_USE",
	DIOInvalidLink:     "DIO_INVALID_LINK",

	CNTOpenError:        "CNT_OPEN_ERROR",
	CNTNotModule:        "CNT_NOT_MODULE",
	CNTNotInterrupt:     "CNT_NOT_INTERRUPT",
	CNTNotTriggerEnable: "CNT_NOT_TRIGGER_ENABLE",
	CNTInvalidModuleNo:  "CNT_INVALID_MODULE_NO",
	CNTInvalidChannelNo: "CNT_INVALID_CHANNEL_NO",
	CNTInvalidOffsetNo:  "CNT_INVALID_OFFSET_NO",
	CNTInvalidLevel:     "CNT_INVALID_LEVEL",
	CNTInvalidMode:      "CNT_INVALID_MODE",
	CNTInvalidValue:     "CNT_INVALID_VALUE",
	CNTInvalidUse:       "CNT_INVALID_USE",
	CNTCmdTimeout:       "CNT_CMD_EXE_TIMEOUT",
	CNTInvalidVelocity:  "CNT_INVALID_VELOCITY",
	CNTDuringPWMEnable:  "PROTECTED_DURING_PWMENABLE",
	CNTInvalidTablePos:  "CNT_INVALID_TABLEPOS",
	CNTDimensionError:   "CNT_DIMENSION_ERROR",
	CNTInvalidRange:     "CNT_INVALID_RANGE",

	MotionOpenError:        "MOTION_OPEN_ERROR",
	MotionNotModule:        "MOTION_NOT_MODULE",
	MotionNotInterrupt:     "MOTION_NOT_INTERRUPT",
	MotionNotInitialAxisNo: "MOTION_NOT_INITIAL_AXIS_NO",
	MotionNotInContiInterp: "MOTION_NOT_IN_CONT_INTERPOL",
	MotionNotParaRead:      "MOTION_NOT_PARA_READ",

	MotionInvalidAxisNo:       "MOTION_INVALID_AXIS_NO",
	MotionInvalidMethod:       "MOTION_INVALID_METHOD",
	MotionInvalidUse:          "MOTION_INVALID_USE",
	MotionInvalidLevel:        "MOTION_INVALID_LEVEL",
	MotionInvalidBitNo:        "MOTION_INVALID_BIT_NO",
	MotionInvalidStopMode:     "MOTION_INVALID_STOP_MODE",
	MotionInvalidTriggerMode:  "MOTION_INVALID_TRIGGER_MODE",
	MotionInvalidTriggerLevel: "MOTION_INVALID_TRIGGER_LEVEL",
	MotionInvalidSelection:    "MOTION_INVALID_SELECTION",
	MotionInvalidTime:         "MOTION_INVALID_TIME",
	MotionInvalidFileLoad:     "MOTION_INVALID_FILE_LOAD",
	MotionInvalidFileSave:     "MOTION_INVALID_FILE_SAVE",
	MotionInvalidVelocity:     "MOTION_INVALID_VELOCITY",
	MotionInvalidAccelTime:    "MOTION_INVALID_ACCELTIME",
	MotionInvalidPulseValue:   "MOTION_INVALID_PULSE_VALUE",
	MotionInvalidNodeNumber:   "MOTION_INVALID_NODE_NUMBER",

	MotionSStopAlreadyRunning: "MOTION_SSTOPCMD_ALREADY_IN_EXECUTION",
	MotionErrorInNonmotion:    "MOTION_ERROR_IN_NONMOTION",
	MotionErrorInMotion:       "MOTION_ERROR_IN_MOTION",
	MotionError:               "MOTION_ERROR",
	MotionErrorGantryEnable:   "MOTION_ERROR_GANTRY_ENABLE",
	MotionErrorGantryAxis:     "MOTION_ERROR_GANTRY_AXIS",
	MotionErrorMasterServoOn:  "MOTION_ERROR_MASTER_SERVOON",
	MotionErrorSlaveServoOn:   "MOTION_ERROR_SLAVE_SERVOON",
	MotionInvalidPosition:     "MOTION_INVALID_POSITION",
	NotSameModule:             "ERROR_NOT_SAME_MODULE",
	NotSameBoard:              "ERROR_NOT_SAME_BOARD",
	NotSameProduct:            "ERROR_NOT_SAME_PRODUCT",
	NotCaptured:               "NOT_CAPTURED",
	NotGearMode:               "ERROR_NOT_GEARMODE",
	MoveSensorCheckError:      "ERROR_MOVE_SENSOR_CHECK",

	MotionInterpolValue: "MOTION_INTERPOL_VALUE",
	NotContiBegin:       "ERROR_NOT_CONTIBEGIN",
	NotContiEnd:         "ERROR_NOT_CONTIEND",

	MotionHomeSearching:      "MOTION_HOME_SEARCHING",
	MotionHomeErrorSearching: "MOTION_HOME_ERROR_SEARCHING",
	MotionHomeErrorStart:     "MOTION_HOME_ERROR_START",
	MotionHomeErrorGantry:    "MOTION_HOME_ERROR_GANTRY",

	MotionPositionOutOfBound: "MOTION_POSITION_OUTOFBOUND",
	MotionProfileInvalid:     "MOTION_PROFILE_INVALID",
	MotionVelocityOutOfBound: "MOTION_VELOCITY_OUTOFBOUND",
	MotionMoveUnitIsZero:     "MOTION_MOVE_UNIT_IS_ZERO",
	MotionSettingError:       "MOTION_SETTING_ERROR",
	MotionInContiInterp:      "MOTION_IN_CONT_INTERPOL",
	MotionDisableTrigger:     "MOTION_DISABLE_TRIGGER",
	MotionInvalidContiIndex:  "MOTION_INVALID_CONT_INDEX",
	MotionContiQueueFull:     "MOTION_CONT_QUEUE_FULL",
	DuringServoOn:            "PROTECTED_DURING_SERVOON",
	HWAccessError:            "HW_ACCESS_ERROR",

	CompensationSetParamFirst:  "COMPENSATION_SET_PARAM_FIRST",
	CompensationNotInit:        "COMPENSATION_NOT_INIT",
	CompensationPosOutOfBound:  "COMPENSATION_POS_OUTOFBOUND",
	CompensationBacklashNoInit: "COMPENSATION_BACKLASH_NOT_INIT",
	CompensationInvalidEntry:   "COMPENSATION_INVALID_ENTRY",

	SeqNotInService:    "SEQ_NOT_IN_SERVICE",
	NotSeqNodeBegin:    "ERROR_NOT_SEQ_NODE_BEGIN",
	NotSeqNodeEnd:      "ERROR_NOT_SEQ_NODE_END",
	SeqNoNode:          "ERROR_NO_NODE",
	SeqStopTimeout:     "ERROR_SEQ_STOP_TIMEOUT",
	SeqInvalidMasterNo: "ERROR_INVALID_SEQ_MASTER_AXIS_NO",

	RingCounterEnable:     "ERROR_RING_COUNTER_ENABLE",
	RingCounterOutOfRange: "ERROR_RING_COUNTER_OUT_OF_RANGE",
	SoftLimitEnable:       "ERROR_SOFT_LIMIT_ENABLE",
	SoftLimitNegative:     "ERROR_SOFT_LIMIT_NEGATIVE",
	SoftLimitPositive:     "ERROR_SOFT_LIMIT_POSITIVE",

	MotionErrorMasterSlaveSame: "MOTION_ERROR_MASTER_SLAVE_SAME",
	DuringInMotion:             "PROTECTED_DURING_INMOTION",

	SyncInvalidAxisNo:  "SYNC_INVALID_AXIS_NO",
	SyncInvalidMapNo:   "SYNC_INVALID_MAP_NO",
	SyncDuplicatedTime: "SYNC_DUPLICATED_TIME",

	QueueCmdError:       "QUEUE_CMD_ERROR",
	QueueCmdWaitTimeout: "QUEUE_CMD_WAIT_TIMEOUT",
	QueueRspError:       "QUEUE_RSP_ERROR",
	QueueRspWaitTimeout: "QUEUE_RSP_WAIT_TIMEOUT",
	StillContiMotion:    "MOTION_STILL_CONTI_MOTION",

	MonitorInOperation:    "MONITOR_IN_OPERATION",
	MonitorNotOperation:   "MONITOR_NOT_OPERATION",
	MonitorEmptyQueue:     "MONITOR_EMPTY_QUEUE",
	MonitorInvalidTrigger: "MONITOR_INVALID_TRIGGER_OPTION",
	MonitorEmptyItem:      "MONITOR_EMPTY_ITEM",

	UnknownError: "UNKNOWN_ERROR",
}

// String returns the symbolic name of the code, or its decimal value for
// codes without a registered name.
func (c Code) String() string {
	if s, ok := codeNames[c]; ok {
		return s
	}
	return "CODE_" + strconv.FormatUint(uint64(c), 10)
}

// ArgBelowMin returns the below-minimum range code for the nth (1-based)
// argument of a call, falling back to BAD_PARAMETER beyond the table.
func ArgBelowMin(n int) Code {
	if c, ok := argRange(n); ok {
		return c
	}
	return BadParameter
}

// ArgAboveMax returns the above-maximum range code for the nth (1-based)
// argument of a call.
func ArgAboveMax(n int) Code {
	if c, ok := argRange(n); ok {
		return c + 1
	}
	return BadParameter
}

func argRange(n int) (Code, bool) {
	switch {
	case n >= 1 && n <= 10:
		return Code(1160 + (n-1)*10), true
	case n == 11:
		return Arg11BelowMin, true
	}
	return 0, false
}
