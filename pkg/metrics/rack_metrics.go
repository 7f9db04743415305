// Rack and daemon metric definitions
//
// Copyright (C) 2026 Go binding
//
// This file may be distributed under the terms of the GNU GPLv3 license.

package metrics

import (
	goruntime "runtime"
	"strconv"
	"sync"
	"time"
)

// RackMetrics holds the instruments published by the control daemon:
// motion activity, I/O traffic, monitor throughput, API load and Go
// runtime health.
type RackMetrics struct {
	// Motion
	MovesStarted   *Counter
	MovesCompleted *Counter
	AxesInMotion   *Gauge
	AxisCmdPos     *Gauge
	AxisActPos     *Gauge
	ServoOn        *Gauge
	HomingAttempts *Counter
	HomingResults  *Counter
	EStops         *Counter

	// I/O
	GatewayFaults *Gauge
	EventsDropped *Gauge
	CounterCounts *Gauge
	AnalogSamples *Counter

	// Monitor
	MonitorSessions *Gauge
	MonitorRecords  *Counter
	MonitorDropped  *Gauge

	// API
	WSClients   *Gauge
	APIRequests *Counter
	APILatency  *Histogram

	// System
	RackTime   *Gauge
	Uptime     *Gauge
	Goroutines *Gauge
	HeapBytes  *Gauge
	GCCycles   *Counter

	registry  *Registry
	startTime time.Time

	mu          sync.Mutex
	lastGCCount uint32
}

// NewRackMetrics creates and registers all daemon instruments on the
// given registry (the default registry when nil).
func NewRackMetrics(registry *Registry) *RackMetrics {
	if registry == nil {
		registry = DefaultRegistry()
	}

	m := &RackMetrics{
		MovesStarted: NewCounter("axl_moves_started_total",
			"Point-to-point and velocity moves started"),
		MovesCompleted: NewCounter("axl_moves_completed_total",
			"Moves that reached their target"),
		AxesInMotion: NewGauge("axl_axes_in_motion",
			"Axes currently executing a profile"),
		AxisCmdPos: NewGauge("axl_axis_cmd_position",
			"Commanded axis position in user units"),
		AxisActPos: NewGauge("axl_axis_act_position",
			"Encoder axis position in user units"),
		ServoOn: NewGauge("axl_axis_servo_on",
			"Servo enable state per axis (1 on, 0 off)"),
		HomingAttempts: NewCounter("axl_homing_attempts_total",
			"Home searches started"),
		HomingResults: NewCounter("axl_homing_results_total",
			"Home search terminal results by outcome"),
		EStops: NewCounter("axl_estops_total",
			"Emergency stops issued"),

		GatewayFaults: NewGauge("axl_gateway_faults",
			"Consecutive Modbus gateway refresh failures per module"),
		EventsDropped: NewGauge("axl_events_dropped",
			"Interrupt notifications discarded on overflow"),
		CounterCounts: NewGauge("axl_counter_count",
			"Counter channel position count"),
		AnalogSamples: NewCounter("axl_analog_samples_total",
			"Buffered analog input samples taken"),

		MonitorSessions: NewGauge("axl_monitor_sessions",
			"Monitor sessions currently recording"),
		MonitorRecords: NewCounter("axl_monitor_records_total",
			"Monitor records sampled"),
		MonitorDropped: NewGauge("axl_monitor_dropped",
			"Monitor records discarded unread per session ring"),

		WSClients: NewGauge("axl_ws_clients",
			"Connected WebSocket clients"),
		APIRequests: NewCounter("axl_api_requests_total",
			"REST API requests by method, path and status"),
		APILatency: NewHistogram("axl_api_latency_seconds",
			"REST API request latency", DefaultBuckets()),

		RackTime: NewGauge("axl_rack_time_seconds",
			"Simulated rack clock"),
		Uptime: NewGauge("axl_uptime_seconds",
			"Daemon uptime"),
		Goroutines: NewGauge("axl_go_goroutines",
			"Number of goroutines"),
		HeapBytes: NewGauge("axl_go_heap_bytes",
			"Heap bytes in use"),
		GCCycles: NewCounter("axl_go_gc_cycles_total",
			"Completed GC cycles"),

		registry:  registry,
		startTime: time.Now(),
	}

	registry.MustRegister(m.MovesStarted)
	registry.MustRegister(m.MovesCompleted)
	registry.MustRegister(m.AxesInMotion)
	registry.MustRegister(m.AxisCmdPos)
	registry.MustRegister(m.AxisActPos)
	registry.MustRegister(m.ServoOn)
	registry.MustRegister(m.HomingAttempts)
	registry.MustRegister(m.HomingResults)
	registry.MustRegister(m.EStops)
	registry.MustRegister(m.GatewayFaults)
	registry.MustRegister(m.EventsDropped)
	registry.MustRegister(m.CounterCounts)
	registry.MustRegister(m.AnalogSamples)
	registry.MustRegister(m.MonitorSessions)
	registry.MustRegister(m.MonitorRecords)
	registry.MustRegister(m.MonitorDropped)
	registry.MustRegister(m.WSClients)
	registry.MustRegister(m.APIRequests)
	registry.MustRegister(m.APILatency)
	registry.MustRegister(m.RackTime)
	registry.MustRegister(m.Uptime)
	registry.MustRegister(m.Goroutines)
	registry.MustRegister(m.HeapBytes)
	registry.MustRegister(m.GCCycles)

	return m
}

// Registry returns the registry the instruments live on.
func (m *RackMetrics) Registry() *Registry { return m.registry }

// AxisLabels builds the per-axis label set.
func AxisLabels(axisNo int) Labels {
	return Labels{"axis": strconv.Itoa(axisNo)}
}

// ModuleLabels builds the per-module label set.
func ModuleLabels(moduleNo int) Labels {
	return Labels{"module": strconv.Itoa(moduleNo)}
}

// RequestLabels builds the API request label set.
func RequestLabels(method, path, status string) Labels {
	return Labels{"method": method, "path": path, "status": status}
}

// UpdateSystem refreshes uptime and Go runtime gauges. Call it before
// rendering the registry.
func (m *RackMetrics) UpdateSystem() {
	m.Uptime.Set(nil, time.Since(m.startTime).Seconds())
	m.Goroutines.Set(nil, float64(goruntime.NumGoroutine()))

	var ms goruntime.MemStats
	goruntime.ReadMemStats(&ms)
	m.HeapBytes.Set(nil, float64(ms.HeapInuse))

	m.mu.Lock()
	if ms.NumGC > m.lastGCCount {
		m.GCCycles.Add(nil, uint64(ms.NumGC-m.lastGCCount))
		m.lastGCCount = ms.NumGC
	}
	m.mu.Unlock()
}
