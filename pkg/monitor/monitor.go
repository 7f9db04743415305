// Diagnostic data recorder
//
// Copyright (C) 2026 Go binding
//
// This file may be distributed under the terms of the GNU GPLv3 license.

// Package monitor records diagnostic data series from the running
// rack: axis positions and velocities, digital words, analog volts,
// counter counts. A session samples its item list on the rack tick at
// a configured period into a bounded ring; callers drain the ring with
// ReadData, and an optional Postgres archive copies retired records
// out in batches.
package monitor

import (
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"axl-go/pkg/analog"
	"axl-go/pkg/axt"
	"axl-go/pkg/counter"
	"axl-go/pkg/dio"
	"axl-go/pkg/motion"
	"axl-go/pkg/vrack"
)

// Item is one recorded data source.
type Item struct {
	Name   string
	sample func() float64
}

// AxisCmdPos records an axis's commanded position in user units.
func AxisCmdPos(name string, ax *motion.Axis) Item {
	return Item{Name: name, sample: func() float64 {
		v, _ := ax.CmdPos()
		return v
	}}
}

// AxisActPos records an axis's encoder position in user units.
func AxisActPos(name string, ax *motion.Axis) Item {
	return Item{Name: name, sample: func() float64 {
		v, _ := ax.ActPos()
		return v
	}}
}

// AxisVel records an axis's commanded velocity.
func AxisVel(name string, ax *motion.Axis) Item {
	return Item{Name: name, sample: func() float64 {
		v, _ := ax.ReadVel()
		return v
	}}
}

// DIOInWord records sixteen input contacts of a digital module.
func DIOInWord(name string, d *dio.Module, offset int) Item {
	return Item{Name: name, sample: func() float64 {
		v, _ := d.ReadInWord(offset)
		return float64(v)
	}}
}

// DIOOutWord records sixteen output contacts of a digital module.
func DIOOutWord(name string, d *dio.Module, offset int) Item {
	return Item{Name: name, sample: func() float64 {
		v, _ := d.ReadOutWord(offset)
		return float64(v)
	}}
}

// AnalogVolt records an analog input channel in volts.
func AnalogVolt(name string, in *analog.Input) Item {
	return Item{Name: name, sample: func() float64 {
		v, _ := in.ReadVolt()
		return v
	}}
}

// CounterCount records a counter channel's position count.
func CounterCount(name string, ch *counter.Channel) Item {
	return Item{Name: name, sample: func() float64 {
		return ch.Read()
	}}
}

// Custom records any caller-supplied probe.
func Custom(name string, sample func() float64) Item {
	return Item{Name: name, sample: sample}
}

// Record is one sampling instant: the rack time and one value per
// session item, in item order.
type Record struct {
	Seq    uint64
	Time   float64
	Values []float64
}

// ringCap bounds a session's in-memory backlog; older records are
// dropped first once the ring is full.
const ringCap = 16384

// Session is one recording. Sessions are created stopped.
type Session struct {
	id    uuid.UUID
	log   *zap.Logger
	rack  *vrack.Rack
	items []Item

	mu      sync.Mutex
	running bool
	period  float64
	acc     float64
	seq     uint64
	ring    []Record
	dropped uint64
	tickID  int

	archive *Archive
}

// NewSession builds a recording over the given items.
func NewSession(log *zap.Logger, rack *vrack.Rack, items ...Item) (*Session, error) {
	if log == nil {
		log = zap.NewNop()
	}
	if len(items) == 0 {
		return nil, axt.Errorf(axt.MonitorEmptyItem, "axm.MonitorStart", "no items")
	}
	s := &Session{
		id:    uuid.New(),
		rack:  rack,
		items: items,
	}
	s.log = log.With(zap.String("session", s.id.String()))
	return s, nil
}

// ID returns the session identifier.
func (s *Session) ID() uuid.UUID { return s.id }

// SetArchive attaches a Postgres archive; retired records are copied
// out in batches while the session runs. Must be set before Start.
func (s *Session) SetArchive(a *Archive) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return axt.Errorf(axt.MonitorInOperation, "monitor.SetArchive", "session is recording")
	}
	s.archive = a
	return nil
}

// Start begins sampling every period seconds of rack time.
func (s *Session) Start(period float64) error {
	const op = "axm.MonitorStart"
	if period <= 0 {
		return axt.Errorf(axt.BadParameter, op, "period %g", period)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return axt.Errorf(axt.MonitorInOperation, op, "session is recording")
	}
	s.running = true
	s.period = period
	s.acc = 0
	s.tickID = s.rack.RegisterTicker(s.tick)
	s.log.Info("monitor started",
		zap.Float64("period", period), zap.Int("items", len(s.items)))
	return nil
}

// Stop ends sampling and flushes the archive.
func (s *Session) Stop() error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return axt.Errorf(axt.MonitorNotOperation, "axm.MonitorStop", "session is not recording")
	}
	s.running = false
	tickID := s.tickID
	arch := s.archive
	s.mu.Unlock()

	s.rack.UnregisterTicker(tickID)
	if arch != nil {
		arch.Flush()
	}
	s.log.Info("monitor stopped")
	return nil
}

// IsRunning reports whether the session is sampling.
func (s *Session) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// Close stops a running session and releases it.
func (s *Session) Close() {
	s.mu.Lock()
	running := s.running
	s.mu.Unlock()
	if running {
		s.Stop()
	}
}

// tick accumulates rack time and samples once per elapsed period.
// Oversized steps sample once rather than fabricating backfill.
func (s *Session) tick(now, dt float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return
	}
	s.acc += dt
	if s.acc < s.period {
		return
	}
	s.acc -= s.period
	if s.acc >= s.period {
		s.acc = 0
	}

	rec := Record{
		Seq:    s.seq,
		Time:   now,
		Values: make([]float64, len(s.items)),
	}
	s.seq++
	for i, it := range s.items {
		rec.Values[i] = it.sample()
	}
	if len(s.ring) >= ringCap {
		s.ring = s.ring[1:]
		s.dropped++
	}
	s.ring = append(s.ring, rec)
	if s.archive != nil {
		s.archive.push(s.id, s.itemNamesLocked(), rec)
	}
}

func (s *Session) itemNamesLocked() []string {
	names := make([]string, len(s.items))
	for i, it := range s.items {
		names[i] = it.Name
	}
	return names
}

// Len returns the number of buffered records.
func (s *Session) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.ring)
}

// Dropped returns how many records the ring discarded unread.
func (s *Session) Dropped() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dropped
}

// ReadData drains up to max buffered records, oldest first. Reading
// from an empty buffer of a stopped session reports code 6602.
func (s *Session) ReadData(max int) ([]Record, error) {
	if max <= 0 {
		return nil, axt.Errorf(axt.BadParameter, "axm.MonitorReadData", "max %d", max)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.ring) == 0 {
		if !s.running {
			return nil, axt.Errorf(axt.MonitorEmptyQueue, "axm.MonitorReadData", "no data")
		}
		return nil, nil
	}
	n := max
	if n > len(s.ring) {
		n = len(s.ring)
	}
	out := make([]Record, n)
	copy(out, s.ring[:n])
	s.ring = s.ring[n:]
	return out, nil
}

// ItemNames returns the recorded item names in value order.
func (s *Session) ItemNames() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.itemNamesLocked()
}
