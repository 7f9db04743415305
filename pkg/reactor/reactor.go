// Package reactor schedules timed work on a monotonic float64-second
// clock. It drives the periodic machinery of the library: status
// sampling, watchdog checks, pulse-width timing, and completion of
// long-running operations that finish on a later tick.
package reactor

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// Scheduling sentinels. NOW fires on the next dispatch pass; a timer
// parked at NEVER never fires until rescheduled.
const (
	NOW   = 0.0
	NEVER = 9999999999999999.0
)

// TimerFunc is called when a timer fires. It receives the event time
// and returns the next wake time, or NEVER to park the timer.
type TimerFunc func(eventtime float64) float64

// Timer is a scheduled callback registered with a Reactor.
type Timer struct {
	mu       sync.Mutex
	id       uint64
	fn       TimerFunc
	waketime float64
	running  bool
}

// Waketime returns the timer's next scheduled fire time.
func (t *Timer) Waketime() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.waketime
}

// Completion is a one-shot result slot. One side calls Complete once;
// any number of waiters block on Wait or WaitUntil.
type Completion struct {
	r      *Reactor
	result interface{}
	done   chan struct{}
	once   sync.Once
}

// Test reports whether the completion already holds a result.
func (c *Completion) Test() bool {
	select {
	case <-c.done:
		return true
	default:
		return false
	}
}

// Complete stores the result and releases all waiters. Only the first
// call has any effect.
func (c *Completion) Complete(result interface{}) {
	c.once.Do(func() {
		c.result = result
		close(c.done)
	})
}

// Wait blocks until the result arrives or the timeout expires, in
// which case timeoutResult is returned instead.
func (c *Completion) Wait(timeout time.Duration, timeoutResult interface{}) interface{} {
	select {
	case <-c.done:
		return c.result
	case <-time.After(timeout):
		return timeoutResult
	case <-c.r.ctx.Done():
		return timeoutResult
	}
}

// WaitUntil blocks until the result arrives or the reactor clock
// reaches waketime.
func (c *Completion) WaitUntil(waketime float64, waketimeResult interface{}) interface{} {
	if waketime >= NEVER {
		select {
		case <-c.done:
			return c.result
		case <-c.r.ctx.Done():
			return waketimeResult
		}
	}

	now := c.r.Monotonic()
	if waketime <= now {
		select {
		case <-c.done:
			return c.result
		default:
			return waketimeResult
		}
	}
	return c.Wait(time.Duration((waketime-now)*float64(time.Second)), waketimeResult)
}

// Reactor dispatches timers and cross-goroutine callbacks on one
// internal goroutine.
type Reactor struct {
	mu       sync.Mutex
	timers   []*Timer
	nextID   uint64
	nextWake float64

	async chan func()

	ctx    context.Context
	cancel context.CancelFunc

	running atomic.Bool
	wg      sync.WaitGroup

	start time.Time
}

// New returns a stopped reactor; call Run to start dispatching.
func New() *Reactor {
	ctx, cancel := context.WithCancel(context.Background())
	return &Reactor{
		nextWake: NEVER,
		async:    make(chan func(), 256),
		ctx:      ctx,
		cancel:   cancel,
		start:    time.Now(),
	}
}

// Monotonic returns seconds elapsed since the reactor was created.
// All waketimes are expressed on this clock.
func (r *Reactor) Monotonic() float64 {
	return time.Since(r.start).Seconds()
}

// RegisterTimer schedules fn to fire at waketime.
func (r *Reactor) RegisterTimer(fn TimerFunc, waketime float64) *Timer {
	r.mu.Lock()
	defer r.mu.Unlock()

	t := &Timer{
		id:       atomic.AddUint64(&r.nextID, 1),
		fn:       fn,
		waketime: waketime,
	}
	r.timers = append(r.timers, t)
	if waketime < r.nextWake {
		r.nextWake = waketime
	}
	return t
}

// RegisterInterval runs fn every period seconds, starting one period
// from now, until fn returns false.
func (r *Reactor) RegisterInterval(period float64, fn func(eventtime float64) bool) *Timer {
	return r.RegisterTimer(func(eventtime float64) float64 {
		if !fn(eventtime) {
			return NEVER
		}
		return eventtime + period
	}, r.Monotonic()+period)
}

// UpdateTimer moves a timer's wake time. A timer whose callback is
// mid-flight keeps the callback's return value instead.
func (r *Reactor) UpdateTimer(t *Timer, waketime float64) {
	t.mu.Lock()
	if t.running {
		t.mu.Unlock()
		return
	}
	t.waketime = waketime
	t.mu.Unlock()

	r.mu.Lock()
	if waketime < r.nextWake {
		r.nextWake = waketime
	}
	r.mu.Unlock()
}

// UnregisterTimer removes a timer. Safe to call for a timer that has
// already parked itself.
func (r *Reactor) UnregisterTimer(t *Timer) {
	t.mu.Lock()
	t.waketime = NEVER
	t.mu.Unlock()

	r.mu.Lock()
	defer r.mu.Unlock()
	for i, have := range r.timers {
		if have.id == t.id {
			r.timers = append(r.timers[:i], r.timers[i+1:]...)
			return
		}
	}
}

// Completion returns a fresh unfinished completion bound to this
// reactor's clock.
func (r *Reactor) Completion() *Completion {
	return &Completion{r: r, done: make(chan struct{})}
}

// RegisterCallback runs fn once at waketime and completes the returned
// Completion with its result.
func (r *Reactor) RegisterCallback(fn func(eventtime float64) interface{}, waketime float64) *Completion {
	c := r.Completion()
	r.RegisterTimer(func(eventtime float64) float64 {
		c.Complete(fn(eventtime))
		return NEVER
	}, waketime)
	return c
}

// RegisterAsyncCallback is RegisterCallback callable from any
// goroutine. If the reactor is saturated the completion resolves to
// nil immediately rather than blocking the caller.
func (r *Reactor) RegisterAsyncCallback(fn func(eventtime float64) interface{}, waketime float64) *Completion {
	c := r.Completion()
	select {
	case r.async <- func() {
		r.RegisterTimer(func(eventtime float64) float64 {
			c.Complete(fn(eventtime))
			return NEVER
		}, waketime)
	}:
	default:
		c.Complete(nil)
	}
	return c
}

// AsyncComplete resolves a completion from any goroutine, routing
// through the dispatch queue when possible so waiters wake on the
// reactor's thread ordering.
func (r *Reactor) AsyncComplete(c *Completion, result interface{}) {
	select {
	case r.async <- func() { c.Complete(result) }:
	default:
		c.Complete(result)
	}
}

// Pause sleeps the calling goroutine until waketime and returns the
// clock reading on wake.
func (r *Reactor) Pause(waketime float64) float64 {
	now := r.Monotonic()
	if waketime <= now {
		return now
	}
	if waketime >= NEVER {
		<-r.ctx.Done()
		return r.Monotonic()
	}
	select {
	case <-time.After(time.Duration((waketime - now) * float64(time.Second))):
	case <-r.ctx.Done():
	}
	return r.Monotonic()
}

// Run starts the dispatch goroutine. Calling Run on a running reactor
// is a no-op.
func (r *Reactor) Run() {
	if r.running.Swap(true) {
		return
	}
	r.wg.Add(1)
	go r.dispatch()
}

// End stops dispatching and releases every blocked Pause and Wait.
func (r *Reactor) End() {
	r.running.Store(false)
	r.cancel()
}

// Wait blocks until the dispatch goroutine has exited.
func (r *Reactor) Wait() {
	r.wg.Wait()
}

func (r *Reactor) dispatch() {
	defer r.wg.Done()

	for r.running.Load() {
		r.drainAsync()

		delay := r.runDue(r.Monotonic())
		if delay <= 0 {
			continue
		}
		d := time.Duration(delay * float64(time.Second))
		if d > time.Second {
			d = time.Second
		}
		select {
		case <-time.After(d):
		case fn := <-r.async:
			fn()
		case <-r.ctx.Done():
			return
		}
	}
}

func (r *Reactor) drainAsync() {
	for {
		select {
		case fn := <-r.async:
			fn()
		default:
			return
		}
	}
}

// runDue fires every timer at or past eventtime and returns the delay
// until the earliest remaining waketime.
func (r *Reactor) runDue(eventtime float64) float64 {
	r.mu.Lock()
	if eventtime < r.nextWake {
		delay := r.nextWake - eventtime
		r.mu.Unlock()
		return delay
	}
	due := make([]*Timer, len(r.timers))
	copy(due, r.timers)
	r.nextWake = NEVER
	r.mu.Unlock()

	for _, t := range due {
		t.mu.Lock()
		if eventtime >= t.waketime {
			t.waketime = NEVER
			t.running = true
			t.mu.Unlock()

			next := t.fn(eventtime)

			t.mu.Lock()
			t.running = false
			// An UpdateTimer racing the callback wins only if earlier.
			if next < t.waketime {
				t.waketime = next
			}
		}
		wake := t.waketime
		t.mu.Unlock()

		r.mu.Lock()
		if wake < r.nextWake {
			r.nextWake = wake
		}
		r.mu.Unlock()
	}

	r.mu.Lock()
	delay := r.nextWake - eventtime
	r.mu.Unlock()
	if delay < 0 {
		delay = 0
	}
	return delay
}
