// Virtual rack backend
//
// Copyright (C) 2026 Go binding
//
// This file may be distributed under the terms of the GNU GPLv3 license.

// Package vrack simulates the hardware side of the rack: axis motors
// executing velocity profiles, limit/home/Z sensor geometry, digital
// and analog I/O images, and board register space. Time advances only
// through Step(dt), so tests drive the rack deterministically; a
// reactor interval timer can drive it in wall time.
//
// The rack is deliberately dumb: it moves motors and reports sensor
// levels. Policy, such as soft limits, homing sequences, gantry
// supervision, and trigger tables, lives in the packages that poll it
// every tick.
package vrack

import (
	"sync"

	"axl-go/pkg/profile"
	"axl-go/pkg/reactor"
)

// Track is the sensor geometry of one simulated axis, in pulses. The
// limit sensors assert outside [NegLimit, PosLimit]; the home dog
// asserts inside [HomePos, HomePos+HomeWidth); a Z pulse asserts for
// ZWidth pulses every ZSpacing pulses when ZSpacing > 0.
type Track struct {
	NegLimit  float64
	PosLimit  float64
	HomePos   float64
	HomeWidth float64
	ZSpacing  float64
	ZWidth    float64
}

// DefaultTrack places the limits far out and a 1000-pulse home dog at
// the origin.
func DefaultTrack() Track {
	return Track{
		NegLimit:  -1e9,
		PosLimit:  1e9,
		HomePos:   0,
		HomeWidth: 1000,
		ZSpacing:  0,
		ZWidth:    4,
	}
}

// AxisState is a consistent readback snapshot of one simulated axis.
type AxisState struct {
	CmdPos  float64 // commanded position, pulses
	ActPos  float64 // encoder position, pulses
	Vel     float64 // commanded velocity, pulses/s
	Moving  bool
	ServoOn bool
	Alarm   bool
}

type axis struct {
	cmdPos  float64
	actLag  float64 // actPos = cmdPos - actLag while the servo follows
	actPos  float64
	vel     float64
	servoOn bool
	alarm   bool

	prof      *profile.Profile
	profStart float64
	profBase  float64
	moving    bool

	track     Track
	userInput uint32 // per-axis general-purpose input bits
}

// DIOSpec sizes one digital module image.
type DIOSpec struct {
	InBits  int
	OutBits int
}

// AIOSpec sizes one analog module.
type AIOSpec struct {
	AI int
	AO int
}

type dioImage struct {
	in  []uint32
	out []uint32
}

type aioImage struct {
	ai []float64
	ao []float64
}

// Config sizes the simulated rack.
type Config struct {
	Axes int
	DIO  []DIOSpec
	AIO  []AIOSpec
}

// Ticker is called after the motors advance on every Step, with the
// new rack time and the step width in seconds.
type Ticker func(now, dt float64)

// Rack is the simulated hardware. All methods are safe for concurrent
// use; Step serializes against every accessor.
type Rack struct {
	mu   sync.RWMutex
	now  float64
	axes []axis
	dio  []dioImage
	aio  []aioImage
	regs map[uint32]uint32

	TimeScale float64 // simulated seconds per wall second when attached

	tickMu  sync.Mutex
	tickers []tickerEntry
	nextID  int
}

type tickerEntry struct {
	id int
	fn Ticker
}

// New builds an idle rack. All axes start at position zero with servo
// off and the default track.
func New(cfg Config) *Rack {
	r := &Rack{
		axes:      make([]axis, cfg.Axes),
		regs:      make(map[uint32]uint32),
		TimeScale: 1,
	}
	for i := range r.axes {
		r.axes[i].track = DefaultTrack()
	}
	for _, spec := range cfg.DIO {
		r.dio = append(r.dio, dioImage{
			in:  make([]uint32, (spec.InBits+31)/32),
			out: make([]uint32, (spec.OutBits+31)/32),
		})
	}
	for _, spec := range cfg.AIO {
		r.aio = append(r.aio, aioImage{
			ai: make([]float64, spec.AI),
			ao: make([]float64, spec.AO),
		})
	}
	return r
}

// Now returns the current simulated time in seconds.
func (r *Rack) Now() float64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.now
}

// AxisCount returns the number of simulated axes.
func (r *Rack) AxisCount() int { return len(r.axes) }

// Step advances the rack by dt seconds: motors track their profiles,
// then registered tickers run in registration order.
func (r *Rack) Step(dt float64) {
	if dt <= 0 {
		return
	}
	r.mu.Lock()
	r.now += dt
	now := r.now
	for i := range r.axes {
		r.axes[i].advance(now)
	}
	r.mu.Unlock()

	r.tickMu.Lock()
	tickers := make([]tickerEntry, len(r.tickers))
	copy(tickers, r.tickers)
	r.tickMu.Unlock()
	for _, te := range tickers {
		te.fn(now, dt)
	}
}

func (a *axis) advance(now float64) {
	if a.prof == nil {
		a.vel = 0
	} else {
		t := now - a.profStart
		pos, vel := a.prof.At(t)
		a.cmdPos = a.profBase + pos
		a.vel = vel
		if a.prof.Done(t) {
			a.prof = nil
			a.moving = false
			a.vel = 0
		}
	}
	if a.servoOn {
		a.actPos = a.cmdPos - a.actLag
	}
}

// RegisterTicker adds a per-step callback and returns its id.
func (r *Rack) RegisterTicker(fn Ticker) int {
	r.tickMu.Lock()
	defer r.tickMu.Unlock()
	r.nextID++
	r.tickers = append(r.tickers, tickerEntry{id: r.nextID, fn: fn})
	return r.nextID
}

// UnregisterTicker removes a callback registered with RegisterTicker.
func (r *Rack) UnregisterTicker(id int) {
	r.tickMu.Lock()
	defer r.tickMu.Unlock()
	for i, te := range r.tickers {
		if te.id == id {
			r.tickers = append(r.tickers[:i], r.tickers[i+1:]...)
			return
		}
	}
}

// Attach drives the rack from a reactor interval timer with the given
// wall period, scaled by TimeScale. The returned function detaches.
func (r *Rack) Attach(rt *reactor.Reactor, period float64) func() {
	timer := rt.RegisterInterval(period, func(eventtime float64) bool {
		r.Step(period * r.TimeScale)
		return true
	})
	return func() { rt.UnregisterTimer(timer) }
}

// StartProfile launches a profile on one axis at the current rack
// time, replacing any motion in flight.
func (r *Rack) StartProfile(axisNo int, p *profile.Profile) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.startLocked(axisNo, p)
}

// StartProfiles launches several axes on the same rack time, the
// ordering point for synchronized group starts. It returns the rack
// time the profiles were anchored at.
func (r *Rack) StartProfiles(profs map[int]*profile.Profile) float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	for axisNo, p := range profs {
		r.startLocked(axisNo, p)
	}
	return r.now
}

func (r *Rack) startLocked(axisNo int, p *profile.Profile) {
	a := &r.axes[axisNo]
	if p == nil || p.Done(0) {
		a.prof = nil
		a.moving = false
		a.vel = 0
		return
	}
	a.prof = p
	a.profStart = r.now
	a.profBase = a.cmdPos
	a.moving = true
}

// Freeze cancels any profile immediately, leaving the axis where the
// last step put it. Emergency stops and servo drops use it.
func (r *Rack) Freeze(axisNo int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a := &r.axes[axisNo]
	a.prof = nil
	a.moving = false
	a.vel = 0
}

// Sample returns a consistent axis snapshot and the rack time it was
// taken at. Stop replanning reads both in one call.
func (r *Rack) Sample(axisNo int) (AxisState, float64) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.stateLocked(axisNo), r.now
}

// State returns an axis snapshot.
func (r *Rack) State(axisNo int) AxisState {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.stateLocked(axisNo)
}

func (r *Rack) stateLocked(axisNo int) AxisState {
	a := &r.axes[axisNo]
	return AxisState{
		CmdPos:  a.cmdPos,
		ActPos:  a.actPos,
		Vel:     a.vel,
		Moving:  a.moving,
		ServoOn: a.servoOn,
		Alarm:   a.alarm,
	}
}

// Moving reports whether a profile is in flight on the axis.
func (r *Rack) Moving(axisNo int) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.axes[axisNo].moving
}

// SetServo switches the drive. Dropping the servo cancels any motion
// in flight and the encoder stops following the command position.
func (r *Rack) SetServo(axisNo int, on bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a := &r.axes[axisNo]
	if a.servoOn && !on {
		a.prof = nil
		a.moving = false
		a.vel = 0
	}
	a.servoOn = on
	if on {
		a.actLag = a.cmdPos - a.actPos
	}
}

// SetAlarm raises or clears the simulated drive alarm input.
func (r *Rack) SetAlarm(axisNo int, on bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.axes[axisNo].alarm = on
}

// SetCmdPos rewrites the command position of an idle axis.
func (r *Rack) SetCmdPos(axisNo int, pos float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a := &r.axes[axisNo]
	a.cmdPos = pos
	if a.servoOn {
		a.actPos = a.cmdPos - a.actLag
	}
}

// SetActPos rewrites the encoder position, keeping the command
// position and adjusting the follow lag.
func (r *Rack) SetActPos(axisNo int, pos float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a := &r.axes[axisNo]
	a.actPos = pos
	a.actLag = a.cmdPos - pos
}

// SetActLag injects a steady command/encoder deviation, for exercising
// deviation supervision.
func (r *Rack) SetActLag(axisNo int, lag float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a := &r.axes[axisNo]
	a.actLag = lag
	if a.servoOn {
		a.actPos = a.cmdPos - a.actLag
	}
}

// SetTrack replaces the sensor geometry of an axis.
func (r *Rack) SetTrack(axisNo int, tr Track) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.axes[axisNo].track = tr
}

// GetTrack returns the sensor geometry of an axis.
func (r *Rack) GetTrack(axisNo int) Track {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.axes[axisNo].track
}

// NegLimit reports the raw negative end-limit sensor level.
func (r *Rack) NegLimit(axisNo int) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a := &r.axes[axisNo]
	return a.actPos <= a.track.NegLimit
}

// PosLimit reports the raw positive end-limit sensor level.
func (r *Rack) PosLimit(axisNo int) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a := &r.axes[axisNo]
	return a.actPos >= a.track.PosLimit
}

// HomeSensor reports the raw home dog level.
func (r *Rack) HomeSensor(axisNo int) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a := &r.axes[axisNo]
	return a.actPos >= a.track.HomePos && a.actPos < a.track.HomePos+a.track.HomeWidth
}

// ZPhase reports the raw Z pulse level.
func (r *Rack) ZPhase(axisNo int) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a := &r.axes[axisNo]
	if a.track.ZSpacing <= 0 {
		return false
	}
	phase := a.actPos - a.track.ZSpacing*float64(int64(a.actPos/a.track.ZSpacing))
	if phase < 0 {
		phase += a.track.ZSpacing
	}
	return phase < a.track.ZWidth
}

// SetUserInput drives one general-purpose input bit of an axis.
func (r *Rack) SetUserInput(axisNo, bit int, on bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if on {
		r.axes[axisNo].userInput |= 1 << uint(bit)
	} else {
		r.axes[axisNo].userInput &^= 1 << uint(bit)
	}
}

// UserInput reports one general-purpose input bit of an axis.
func (r *Rack) UserInput(axisNo, bit int) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.axes[axisNo].userInput&(1<<uint(bit)) != 0
}

// DIOInWord returns one 32-bit word of a digital module's input image.
func (r *Rack) DIOInWord(module, word int) uint32 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.dio[module].in[word]
}

// SetDIOInWord drives one 32-bit word of a digital module's input
// image. Tests and loopback wiring use it as the field side.
func (r *Rack) SetDIOInWord(module, word int, val uint32) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.dio[module].in[word] = val
}

// DIOOutWord returns one 32-bit word of a digital module's output
// image.
func (r *Rack) DIOOutWord(module, word int) uint32 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.dio[module].out[word]
}

// SetDIOOutWord writes one 32-bit word of a digital module's output
// image.
func (r *Rack) SetDIOOutWord(module, word int, val uint32) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.dio[module].out[word] = val
}

// DIOWords returns the input and output image widths of a module, in
// 32-bit words.
func (r *Rack) DIOWords(module int) (in, out int) {
	return len(r.dio[module].in), len(r.dio[module].out)
}

// AIVolt returns the simulated voltage on an analog input.
func (r *Rack) AIVolt(module, ch int) float64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.aio[module].ai[ch]
}

// SetAIVolt drives a simulated analog input.
func (r *Rack) SetAIVolt(module, ch int, v float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.aio[module].ai[ch] = v
}

// AOVolt returns the last written analog output voltage.
func (r *Rack) AOVolt(module, ch int) float64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.aio[module].ao[ch]
}

// SetAOVolt writes an analog output voltage.
func (r *Rack) SetAOVolt(module, ch int, v float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.aio[module].ao[ch] = v
}

// ReadRegister reads a raw board register.
func (r *Rack) ReadRegister(addr uint32) uint32 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.regs[addr]
}

// WriteRegister writes a raw board register.
func (r *Rack) WriteRegister(addr, val uint32) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.regs[addr] = val
}
