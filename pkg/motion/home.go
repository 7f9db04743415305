// Home search sequencer
//
// Copyright (C) 2026 Go binding
//
// This file may be distributed under the terms of the GNU GPLv3 license.

package motion

import (
	"math"

	"axl-go/pkg/axt"
	"axl-go/pkg/event"
	"axl-go/pkg/profile"

	"go.uber.org/zap"
)

// The home search runs as a state machine advanced by the supervision
// tick, one stage move at a time: approach the detect signal, back off
// the dog, re-approach slowly for the edge, optionally continue to the
// encoder index, apply the origin offset, dwell, zero.
type homeStage int

const (
	stageApproach homeStage = iota
	stageBackOff
	stageFine
	stageZSearch
	stageOffset
	stageDwell
	stageDone
)

type homeRun struct {
	stage     homeStage
	result    axt.HomeResult
	dir       float64
	launched  bool
	reversed  bool
	startPos  float64
	stagePos  float64
	settleEnd float64
	dwellEnd  float64
}

func (a *Axis) homeSearchingLocked() bool {
	return a.home != nil && a.home.result == axt.HomeSearching
}

// homeOnSignalLocked reports whether a running search uses the given
// signal as its detect input, which exempts it from the end-limit
// safety stop.
func (a *Axis) homeOnSignalLocked(sig axt.HomeDetectSignal) bool {
	return a.homeSearchingLocked() && a.par.HomeSignal == sig
}

func dirSign(d axt.MoveDir) float64 {
	if d == axt.DirCW {
		return 1
	}
	return -1
}

// SetHomeInterlock selects the guard against searching past the dog:
// none, auto-reverse on a limit sensor, or a travel-distance bound.
func (a *Axis) SetHomeInterlock(mode axt.HomeInterlockMode, dist float64) error {
	const op = "axm.HomeSetInterlock"
	if mode < axt.HomeInterlockUnused || mode > axt.HomeInterlockDistance {
		return axt.Errorf(axt.BadParameter, op, "mode %d", mode)
	}
	if mode == axt.HomeInterlockDistance && dist <= 0 {
		return axt.Errorf(axt.BadParameter, op, "distance %g", dist)
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.homeInterlock = mode
	a.homeInterlockDist = dist
	return nil
}

func (a *Axis) GetHomeInterlock() (axt.HomeInterlockMode, float64, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.homeInterlock, a.homeInterlockDist, nil
}

// SetHomeFine tunes the detection fine structure: the expected dog
// length, the level-scan dwell, whether the slow edge re-search runs,
// and whether the position registers clear at the end.
func (a *Axis) SetHomeFine(dogLength, scanTimeMs float64, fineSearch, clearEncoder bool) error {
	const op = "axm.HomeSetFine"
	if dogLength < 0 || scanTimeMs < 0 {
		return axt.Errorf(axt.BadParameter, op, "dog %g scan %gms", dogLength, scanTimeMs)
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.homeDogLen = dogLength
	a.homeScanTime = scanTimeMs
	a.homeFineSearch = fineSearch
	a.homeClearEncoder = clearEncoder
	return nil
}

func (a *Axis) GetHomeFine() (dogLength, scanTimeMs float64, fineSearch, clearEncoder bool, err error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.homeDogLen, a.homeScanTime, a.homeFineSearch, a.homeClearEncoder, nil
}

// HomeSetStart launches the home search. The call returns once the
// sequencer is armed; progress and outcome are read with HomeGetRate
// and HomeGetResult.
func (a *Axis) HomeSetStart() error {
	const op = "axm.HomeSetStart"
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.homeSearchingLocked() {
		return axt.Errorf(axt.MotionHomeSearching, op, "axis %d already searching", a.no)
	}
	if a.pathClaimed {
		return axt.Errorf(axt.MotionInContiInterp, op, "axis %d running continuous interpolation", a.no)
	}
	if a.move != nil || a.c.rack.Moving(a.no) {
		return axt.Errorf(axt.MotionErrorInMotion, op, "axis %d busy", a.no)
	}
	if a.gantrySlave {
		return axt.Errorf(axt.MotionHomeErrorGantry, op, "axis %d is a gantry slave", a.no)
	}
	h := &homeRun{
		stage:    stageApproach,
		result:   axt.HomeSearching,
		dir:      dirSign(a.par.HomeDir),
		startPos: a.cmdUserLocked(),
	}
	if !a.c.rack.State(a.no).ServoOn {
		h.result = axt.HomeErrServoOff
		h.stage = stageDone
	}
	if a.alarmLatched {
		h.result = axt.HomeErrAmpFault
		h.stage = stageDone
	}
	a.home = h
	a.cause = StopNone
	a.trace(op, zap.Stringer("signal", a.par.HomeSignal), zap.Stringer("dir", a.par.HomeDir))
	return nil
}

// HomeGetResult reports the search outcome: reserved before any
// search, searching while running, then the terminal code.
func (a *Axis) HomeGetResult() (axt.HomeResult, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.home == nil {
		return axt.HomeReserved, nil
	}
	return a.home.result, nil
}

// HomeGetRate reports coarse progress: main counts stage milestones to
// 100, sub the position within the running stage.
func (a *Axis) HomeGetRate() (main, sub int, err error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	h := a.home
	if h == nil {
		return 0, 0, nil
	}
	switch h.stage {
	case stageApproach:
		main = 10
	case stageBackOff:
		main = 30
	case stageFine:
		main = 50
	case stageZSearch:
		main = 70
	case stageOffset:
		main = 85
	case stageDwell:
		main = 95
	case stageDone:
		main = 100
	}
	sub = 100
	if a.c.rack.Moving(a.no) {
		sub = 50
	}
	return main, sub, nil
}

// HomeStop aborts a running search, reporting user break.
func (a *Axis) HomeStop() error {
	const op = "axm.HomeSetStop"
	a.mu.Lock()
	defer a.mu.Unlock()
	if !a.homeSearchingLocked() {
		return axt.Errorf(axt.MotionHomeErrorSearching, op, "axis %d not searching", a.no)
	}
	a.c.rack.Freeze(a.no)
	a.home.result = axt.HomeErrUserBreak
	a.home.stage = stageDone
	a.cause = StopUserBreak
	return nil
}

// homeLaunchVel starts a stage velocity move, mirrored to the gantry
// slave when the pair homes together. A rejected profile terminates
// the search; the stage would otherwise wait on a move that never ran.
func (a *Axis) homeLaunchVel(vel, accel float64) {
	prof, err := profile.Velocity(0, a.toPulse(vel), a.toPulse(accel), a.jerkLocked())
	if err != nil {
		a.homeAbortLocked(axt.HomeErrVelocity)
		return
	}
	a.homeStart(prof)
}

func (a *Axis) homeLaunchPos(dist, vel, accel float64) {
	prof, err := profile.Move(a.toPulse(dist), a.toPulse(vel), a.toPulse(accel), a.toPulse(accel), a.jerkLocked())
	if err != nil {
		a.homeAbortLocked(axt.HomeErrVelocity)
		return
	}
	a.homeStart(prof)
}

func (a *Axis) homeAbortLocked(result axt.HomeResult) {
	if h := a.home; h != nil {
		h.result = result
		h.stage = stageDone
	}
}

func (a *Axis) homeStart(p *profile.Profile) {
	if g := a.gantryM; g != nil && g.homePolicy != GantryHomeNone {
		a.c.rack.StartProfiles(map[int]*profile.Profile{a.no: p, g.slave: p})
		return
	}
	a.c.rack.StartProfile(a.no, p)
}

// homeFault maps a safety stop onto the terminal home result.
func homeFault(cause StopCause) axt.HomeResult {
	switch cause {
	case StopEndLimitNeg, StopSoftLimitNeg:
		return axt.HomeErrNegLimit
	case StopEndLimitPos, StopSoftLimitPos:
		return axt.HomeErrPosLimit
	case StopAlarm:
		return axt.HomeErrAmpFault
	case StopEmergency:
		return axt.HomeErrEstop
	default:
		return axt.HomeErrUserBreak
	}
}

// advanceLocked moves to the next stage, holding the launch until the
// level-scan settle dwell has passed.
func (a *Axis) advanceLocked(h *homeRun, s homeStage, now float64) {
	h.stage = s
	h.launched = false
	h.stagePos = a.cmdUserLocked()
	h.settleEnd = now + a.homeScanTime/1000
}

// tickHome advances the sequencer one decision per service tick.
func (a *Axis) tickHome(now float64) {
	a.mu.Lock()
	defer a.mu.Unlock()
	h := a.home
	if h == nil || h.result != axt.HomeSearching {
		return
	}

	// A safety stop during the search terminates it, except that the
	// sensor-check interlock turns the first limit hit during approach
	// into a direction reversal.
	if a.cause != StopNone {
		if a.homeInterlock == axt.HomeInterlockSensorCheck && h.stage == stageApproach && !h.reversed &&
			(a.cause == StopEndLimitNeg || a.cause == StopEndLimitPos) {
			h.reversed = true
			h.dir = -h.dir
			h.launched = false
			a.cause = StopNone
		} else {
			h.result = homeFault(a.cause)
			h.stage = stageDone
			a.c.rack.Freeze(a.no)
			return
		}
	}

	if a.homeInterlock == axt.HomeInterlockDistance && h.stage == stageApproach &&
		math.Abs(a.cmdUserLocked()-h.startPos) > a.homeInterlockDist {
		a.c.rack.Freeze(a.no)
		h.result = axt.HomeErrNotDetect
		h.stage = stageDone
		return
	}

	sig := a.signalLevelLocked(a.par.HomeSignal)

	// A known dog length bounds the edge stages: traveling twice it
	// without the level changing means the sensor is stuck.
	stuck := a.homeDogLen > 0 && math.Abs(a.cmdUserLocked()-h.stagePos) > 2*a.homeDogLen

	switch h.stage {
	case stageApproach:
		if !h.launched {
			if now < h.settleEnd {
				return
			}
			a.homeLaunchVel(h.dir*a.par.HomeFirstVelocity, a.par.HomeFirstAccel)
			h.launched = true
			return
		}
		if sig {
			a.c.rack.Freeze(a.no)
			if a.homeFineSearch {
				a.advanceLocked(h, stageBackOff, now)
			} else {
				a.advanceLocked(h, a.afterFineLocked(), now)
			}
		}
	case stageBackOff:
		if !h.launched {
			if now < h.settleEnd {
				return
			}
			a.homeLaunchVel(-h.dir*a.par.HomeSecondVelocity, a.par.HomeSecondAccel)
			h.launched = true
			return
		}
		if !sig {
			a.c.rack.Freeze(a.no)
			a.advanceLocked(h, stageFine, now)
			return
		}
		if stuck {
			a.c.rack.Freeze(a.no)
			h.result = axt.HomeErrNotDetect
			h.stage = stageDone
		}
	case stageFine:
		if !h.launched {
			if now < h.settleEnd {
				return
			}
			a.homeLaunchVel(h.dir*a.par.HomeThirdVelocity, a.par.HomeSecondAccel)
			h.launched = true
			return
		}
		if sig {
			a.c.rack.Freeze(a.no)
			a.advanceLocked(h, a.afterFineLocked(), now)
			return
		}
		if stuck {
			a.c.rack.Freeze(a.no)
			h.result = axt.HomeErrNotDetect
			h.stage = stageDone
		}
	case stageZSearch:
		if !h.launched {
			if now < h.settleEnd {
				return
			}
			zd := 1.0
			if a.par.ZPhaseUse == 2 {
				zd = -1
			}
			a.homeLaunchVel(zd*a.par.HomeLastVelocity, a.par.HomeSecondAccel)
			h.launched = true
			return
		}
		if a.c.rack.ZPhase(a.no) {
			a.c.rack.Freeze(a.no)
			a.advanceLocked(h, stageOffset, now)
		}
	case stageOffset:
		if a.par.HomeEndOffset == 0 {
			a.advanceLocked(h, stageDwell, now)
			return
		}
		if !h.launched {
			if now < h.settleEnd {
				return
			}
			a.homeLaunchPos(a.par.HomeEndOffset, a.par.HomeFirstVelocity, a.par.HomeFirstAccel)
			h.launched = true
			return
		}
		if !a.c.rack.Moving(a.no) {
			a.advanceLocked(h, stageDwell, now)
		}
	case stageDwell:
		if h.dwellEnd == 0 {
			h.dwellEnd = now + a.par.HomeEndClearTime/1000
			return
		}
		if now < h.dwellEnd {
			return
		}
		if a.homeClearEncoder {
			a.homeZeroLocked()
		}
		h.result = axt.HomeSuccess
		h.stage = stageDone
		a.c.bank(a.no).Raise(event.HomeDone, now)
		a.c.log.Info("home search complete", zap.Int("axis", a.no))
	}
}

func (a *Axis) afterFineLocked() homeStage {
	if a.par.ZPhaseUse != 0 {
		return stageZSearch
	}
	return stageOffset
}

// homeZeroLocked clears the position registers, the gantry slave
// included when the pair homes with an offset.
func (a *Axis) homeZeroLocked() {
	a.c.rack.SetCmdPos(a.no, 0)
	a.c.rack.SetActPos(a.no, 0)
	a.compOffset = 0
	a.backlashAcc = 0
	if g := a.gantryM; g != nil && g.homePolicy != GantryHomeNone {
		off := 0.0
		if g.homePolicy == GantryHomeOffset {
			off = g.offset
		}
		sl := a.c.axes[g.slave]
		a.c.rack.SetCmdPos(g.slave, sl.toPulse(off))
		a.c.rack.SetActPos(g.slave, sl.toPulse(off))
	}
}
