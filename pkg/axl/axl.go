// Library lifecycle: open, close, hardware ownership
//
// Copyright (C) 2026 Go binding
//
// This file may be distributed under the terms of the GNU GPLv3 license.

// Package axl owns the library handle. Open builds the whole stack
// (topology, virtual rack, event dispatcher, and the motion,
// coordinate, counter, analog, and digital services) and claims
// single-process
// ownership of the hardware through an advisory file lock. Every other
// package is reached through the handle.
package axl

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"axl-go/pkg/analog"
	"axl-go/pkg/axt"
	"axl-go/pkg/board"
	"axl-go/pkg/coord"
	"axl-go/pkg/counter"
	"axl-go/pkg/dio"
	"axl-go/pkg/event"
	"axl-go/pkg/motion"
	"axl-go/pkg/reactor"
	"axl-go/pkg/vrack"
)

// Version is the library version string reported to applications.
const Version = "3.0.0.0"

// Config selects the rack to open and how it is clocked.
type Config struct {
	// Layout describes the rack. The default layout is used when it
	// carries no boards.
	Layout board.Layout

	// LockPath is the hardware ownership lock file. A per-user file
	// under the temp directory is used when empty.
	LockPath string

	// TickPeriod drives the rack from the reactor at this wall period
	// in seconds. Zero leaves the rack on manual Step for tests.
	TickPeriod float64

	// TimeScale is simulated seconds per wall second; 1 when zero.
	TimeScale float64

	// Logger receives library logging. When nil a development console
	// logger is built with a runtime-adjustable level.
	Logger *zap.Logger
}

// Library is the process-wide handle over one open rack.
type Library struct {
	log   *zap.Logger
	level *zap.AtomicLevel // non-nil only for the self-built logger
	lock  *os.File

	reactor *reactor.Reactor
	rack    *vrack.Rack
	topo    *board.Topology
	events  *event.Manager
	motion  *motion.Controller
	coord   *coord.Manager
	counter *counter.Manager
	analog  *analog.Manager
	dio     *dio.Manager

	detach func()

	mu     sync.Mutex
	closed bool
}

// One handle per process backs one hardware ecosystem.
var (
	procMu   sync.Mutex
	procOpen bool
)

// DefaultLockPath is the lock file used when Config.LockPath is empty.
func DefaultLockPath() string {
	return filepath.Join(os.TempDir(), fmt.Sprintf("axl-go-%d.lock", os.Getuid()))
}

// Open claims the hardware and builds the service stack. A second open
// in the same process reports code 1002; a lock held by another
// process reports code 1001.
func Open(cfg Config) (*Library, error) {
	const op = "axl.Open"

	procMu.Lock()
	if procOpen {
		procMu.Unlock()
		return nil, axt.Errorf(axt.OpenAlready, op, "library is already open in this process")
	}
	procOpen = true
	procMu.Unlock()

	lib, err := open(op, cfg)
	if err != nil {
		procMu.Lock()
		procOpen = false
		procMu.Unlock()
		return nil, err
	}
	return lib, nil
}

func open(op string, cfg Config) (*Library, error) {
	lib := &Library{}

	if cfg.Logger != nil {
		lib.log = cfg.Logger
	} else {
		level := zap.NewAtomicLevelAt(zapcore.InfoLevel)
		zcfg := zap.NewDevelopmentConfig()
		zcfg.Level = level
		logger, err := zcfg.Build()
		if err != nil {
			return nil, axt.Wrap(axt.OpenError, op, err)
		}
		lib.log = logger
		lib.level = &level
	}

	lockPath := cfg.LockPath
	if lockPath == "" {
		lockPath = DefaultLockPath()
	}
	lock, err := acquireLock(lockPath)
	if err != nil {
		return nil, err
	}
	lib.lock = lock

	layout := cfg.Layout
	if len(layout.Boards) == 0 {
		layout = board.DefaultLayout()
	}
	topo, err := board.New(layout)
	if err != nil {
		releaseLock(lock)
		return nil, err
	}
	lib.topo = topo

	rackCfg := vrack.Config{Axes: topo.AxisCount()}
	for _, m := range topo.ModulesOfClass(board.ClassDIO) {
		rackCfg.DIO = append(rackCfg.DIO, vrack.DIOSpec{
			InBits: m.Info.DIBits, OutBits: m.Info.DOBits,
		})
	}
	for _, m := range topo.ModulesOfClass(board.ClassAIO) {
		rackCfg.AIO = append(rackCfg.AIO, vrack.AIOSpec{
			AI: m.Info.AIChannels, AO: m.Info.AOChannels,
		})
	}
	lib.rack = vrack.New(rackCfg)
	if cfg.TimeScale > 0 {
		lib.rack.TimeScale = cfg.TimeScale
	}

	lib.events = event.NewManager(lib.log)
	lib.motion = motion.New(lib.log, lib.rack, topo, lib.events)
	lib.coord = coord.New(lib.log, lib.rack, lib.motion, lib.events)
	lib.counter = counter.New(lib.log, lib.rack, topo, lib.events)
	lib.analog = analog.New(lib.log, lib.rack, topo, lib.events)
	lib.dio = dio.New(lib.log, lib.rack, topo, lib.events)

	lib.reactor = reactor.New()
	go lib.reactor.Run()
	if cfg.TickPeriod > 0 {
		lib.detach = lib.rack.Attach(lib.reactor, cfg.TickPeriod)
	}

	lib.log.Info("library open",
		zap.String("version", Version),
		zap.Int("boards", topo.BoardCount()),
		zap.Int("axes", topo.AxisCount()))
	return lib, nil
}

// Close releases the hardware and stops every service. The handle is
// unusable afterwards; a second close reports code 1053.
func (l *Library) Close() error {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return axt.Errorf(axt.NotOpen, "axl.Close", "library is not open")
	}
	l.closed = true
	l.mu.Unlock()

	if l.detach != nil {
		l.detach()
	}
	l.coord.Close()
	l.motion.Close()
	l.counter.Close()
	l.analog.Close()
	l.dio.Close()
	l.events.Close()
	l.reactor.End()
	l.reactor.Wait()
	releaseLock(l.lock)

	procMu.Lock()
	procOpen = false
	procMu.Unlock()

	l.log.Info("library closed")
	return nil
}

// IsOpened reports whether the handle is usable.
func (l *Library) IsOpened() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return !l.closed
}

// SetLogLevel adjusts the library's log level at runtime. It has no
// effect when the caller injected its own logger.
func (l *Library) SetLogLevel(level zapcore.Level) {
	if l.level != nil {
		l.level.SetLevel(level)
	}
}

// Logger returns the library logger for use by service shells.
func (l *Library) Logger() *zap.Logger { return l.log }

// Topology returns the identifier space of the open rack.
func (l *Library) Topology() *board.Topology { return l.topo }

// Rack returns the backing virtual rack.
func (l *Library) Rack() *vrack.Rack { return l.rack }

// Reactor returns the library event loop.
func (l *Library) Reactor() *reactor.Reactor { return l.reactor }

// Events returns the interrupt flag banks and subscription surface.
func (l *Library) Events() *event.Manager { return l.events }

// Motion returns the per-axis command surface (AXM family).
func (l *Library) Motion() *motion.Controller { return l.motion }

// Coord returns the coordinated-motion queues.
func (l *Library) Coord() *coord.Manager { return l.coord }

// Counter returns the counter/trigger channels (AXC family).
func (l *Library) Counter() *counter.Manager { return l.counter }

// Analog returns the analog channel service (AXA family).
func (l *Library) Analog() *analog.Manager { return l.analog }

// DIO returns the digital module service (AXD family).
func (l *Library) DIO() *dio.Manager { return l.dio }
