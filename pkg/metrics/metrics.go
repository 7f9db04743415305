// Minimal Prometheus-text instrumentation for the rack daemon
//
// Three instrument kinds cover everything the daemon reports: counters
// for event totals (moves started, gateway faults), gauges for sampled
// state (axis positions, servo flags) and histograms for latency
// distributions. Every instrument keeps one series per label set and
// renders itself in the Prometheus exposition format, so /metrics is a
// single Gather call with no scrape-time allocation beyond the output
// buffer.
//
// Copyright (C) 2026 Go binding
//
// This file may be distributed under the terms of the GNU GPLv3 license.

package metrics

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// MetricType identifies the instrument kind for the TYPE line.
type MetricType int

const (
	TypeCounter MetricType = iota
	TypeGauge
	TypeHistogram
)

func (t MetricType) String() string {
	switch t {
	case TypeCounter:
		return "counter"
	case TypeGauge:
		return "gauge"
	case TypeHistogram:
		return "histogram"
	default:
		return "unknown"
	}
}

// Labels is one label set, e.g. {"axis": "3"}. A nil map is the empty
// set and selects the instrument's unlabeled series.
type Labels map[string]string

// Key returns the canonical series key: label pairs sorted by name.
// Two sets with the same pairs always produce the same key.
func (l Labels) Key() string {
	return seriesKey(l)
}

// String renders the set in exposition format, `{a="1",b="2"}`.
func (l Labels) String() string {
	return promLabels(l)
}

// Clone returns an independent copy of the set.
func (l Labels) Clone() Labels {
	return cloneLabels(l)
}

// Merge returns a new set holding both l and other; on conflict the
// value from other wins.
func (l Labels) Merge(other Labels) Labels {
	out := l.Clone()
	for k, v := range other {
		out[k] = v
	}
	return out
}

func sortedNames(labels Labels) []string {
	names := make([]string, 0, len(labels))
	for k := range labels {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

func seriesKey(labels Labels) string {
	if len(labels) == 0 {
		return ""
	}
	var sb strings.Builder
	for i, k := range sortedNames(labels) {
		if i > 0 {
			sb.WriteByte(',')
		}
		sb.WriteString(k)
		sb.WriteByte('=')
		sb.WriteString(labels[k])
	}
	return sb.String()
}

func promLabels(labels Labels) string {
	if len(labels) == 0 {
		return ""
	}
	var sb strings.Builder
	sb.WriteByte('{')
	for i, k := range sortedNames(labels) {
		if i > 0 {
			sb.WriteByte(',')
		}
		sb.WriteString(k)
		sb.WriteString("=\"")
		sb.WriteString(escapeLabelValue(labels[k]))
		sb.WriteByte('"')
	}
	sb.WriteByte('}')
	return sb.String()
}

// escapeLabelValue escapes backslash, quote and newline per the
// exposition format rules.
func escapeLabelValue(s string) string {
	s = strings.ReplaceAll(s, "\\", "\\\\")
	s = strings.ReplaceAll(s, "\"", "\\\"")
	s = strings.ReplaceAll(s, "\n", "\\n")
	return s
}

func cloneLabels(labels Labels) Labels {
	out := make(Labels, len(labels))
	for k, v := range labels {
		out[k] = v
	}
	return out
}

// Metric is implemented by all instrument kinds. Write appends the
// HELP/TYPE header and every series to the exposition buffer.
type Metric interface {
	Name() string
	Help() string
	Type() MetricType
	Write(sb *strings.Builder)
}

func writeHeader(sb *strings.Builder, name, help string, t MetricType) {
	sb.WriteString("# HELP ")
	sb.WriteString(name)
	sb.WriteByte(' ')
	sb.WriteString(help)
	sb.WriteString("\n# TYPE ")
	sb.WriteString(name)
	sb.WriteByte(' ')
	sb.WriteString(t.String())
	sb.WriteByte('\n')
}

func writeSample(sb *strings.Builder, name, suffix string, labels Labels, value string) {
	sb.WriteString(name)
	sb.WriteString(suffix)
	sb.WriteString(promLabels(labels))
	sb.WriteByte(' ')
	sb.WriteString(value)
	sb.WriteByte('\n')
}

// Counter is a monotonically increasing total. Updates are lock-free:
// each series is an atomic uint64 behind a sync.Map keyed by label set.
type Counter struct {
	name   string
	help   string
	series sync.Map // seriesKey -> *counterSeries
}

type counterSeries struct {
	labels Labels
	total  atomic.Uint64
}

func NewCounter(name, help string) *Counter {
	return &Counter{name: name, help: help}
}

func (c *Counter) Name() string     { return c.name }
func (c *Counter) Help() string     { return c.help }
func (c *Counter) Type() MetricType { return TypeCounter }

// Inc adds 1 to the series selected by labels.
func (c *Counter) Inc(labels Labels) {
	c.Add(labels, 1)
}

// Add adds delta to the series selected by labels, creating the series
// on first use.
func (c *Counter) Add(labels Labels, delta uint64) {
	c.lookup(labels).total.Add(delta)
}

// Get reads the current total; an untouched series reads as 0.
func (c *Counter) Get(labels Labels) uint64 {
	v, ok := c.series.Load(seriesKey(labels))
	if !ok {
		return 0
	}
	return v.(*counterSeries).total.Load()
}

func (c *Counter) lookup(labels Labels) *counterSeries {
	key := seriesKey(labels)
	if v, ok := c.series.Load(key); ok {
		return v.(*counterSeries)
	}
	v, _ := c.series.LoadOrStore(key, &counterSeries{labels: labels})
	return v.(*counterSeries)
}

func (c *Counter) Write(sb *strings.Builder) {
	writeHeader(sb, c.name, c.help, TypeCounter)
	c.series.Range(func(_, v interface{}) bool {
		s := v.(*counterSeries)
		writeSample(sb, c.name, "", s.labels, strconv.FormatUint(s.total.Load(), 10))
		return true
	})
}

// Gauge is a sampled value that moves both ways, such as an axis
// command position or the number of axes in motion.
type Gauge struct {
	name   string
	help   string
	series sync.Map // seriesKey -> *gaugeSeries
}

type gaugeSeries struct {
	labels Labels
	mu     sync.Mutex
	value  float64
}

func NewGauge(name, help string) *Gauge {
	return &Gauge{name: name, help: help}
}

func (g *Gauge) Name() string     { return g.name }
func (g *Gauge) Help() string     { return g.help }
func (g *Gauge) Type() MetricType { return TypeGauge }

// Set replaces the series value.
func (g *Gauge) Set(labels Labels, value float64) {
	s := g.lookup(labels)
	s.mu.Lock()
	s.value = value
	s.mu.Unlock()
}

// Inc adds 1 to the series value.
func (g *Gauge) Inc(labels Labels) {
	g.Add(labels, 1)
}

// Dec subtracts 1 from the series value.
func (g *Gauge) Dec(labels Labels) {
	g.Add(labels, -1)
}

// Add shifts the series value by delta.
func (g *Gauge) Add(labels Labels, delta float64) {
	s := g.lookup(labels)
	s.mu.Lock()
	s.value += delta
	s.mu.Unlock()
}

// Sub shifts the series value by -delta.
func (g *Gauge) Sub(labels Labels, delta float64) {
	g.Add(labels, -delta)
}

// Get reads the current value; an untouched series reads as 0.
func (g *Gauge) Get(labels Labels) float64 {
	v, ok := g.series.Load(seriesKey(labels))
	if !ok {
		return 0
	}
	s := v.(*gaugeSeries)
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.value
}

func (g *Gauge) lookup(labels Labels) *gaugeSeries {
	key := seriesKey(labels)
	if v, ok := g.series.Load(key); ok {
		return v.(*gaugeSeries)
	}
	v, _ := g.series.LoadOrStore(key, &gaugeSeries{labels: labels})
	return v.(*gaugeSeries)
}

func (g *Gauge) Write(sb *strings.Builder) {
	writeHeader(sb, g.name, g.help, TypeGauge)
	g.series.Range(func(_, v interface{}) bool {
		s := v.(*gaugeSeries)
		s.mu.Lock()
		value := s.value
		s.mu.Unlock()
		writeSample(sb, g.name, "", s.labels, formatFloat(value))
		return true
	})
}

// Histogram tracks a distribution over fixed bucket bounds. Per-bucket
// counts are stored non-cumulative and summed into cumulative form only
// when rendered, so Observe touches exactly one bucket slot.
type Histogram struct {
	name   string
	help   string
	bounds []float64
	series sync.Map // seriesKey -> *histogramSeries
}

type histogramSeries struct {
	labels  Labels
	mu      sync.Mutex
	count   uint64
	sum     float64
	buckets []uint64
}

// NewHistogram creates a histogram over the given upper bounds. Bounds
// are sorted so cumulative rendering stays monotonic; the implicit +Inf
// bucket is always present.
func NewHistogram(name, help string, bounds []float64) *Histogram {
	sorted := make([]float64, len(bounds))
	copy(sorted, bounds)
	sort.Float64s(sorted)
	return &Histogram{name: name, help: help, bounds: sorted}
}

// DefaultBuckets returns bounds suited to request and move latencies,
// 5ms through 10s.
func DefaultBuckets() []float64 {
	return []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10}
}

// LinearBuckets returns count bounds spaced width apart from start.
func LinearBuckets(start, width float64, count int) []float64 {
	bounds := make([]float64, count)
	for i := range bounds {
		bounds[i] = start + float64(i)*width
	}
	return bounds
}

// ExponentialBuckets returns count bounds growing by factor from start.
func ExponentialBuckets(start, factor float64, count int) []float64 {
	bounds := make([]float64, count)
	for i := range bounds {
		bounds[i] = start
		start *= factor
	}
	return bounds
}

func (h *Histogram) Name() string     { return h.name }
func (h *Histogram) Help() string     { return h.help }
func (h *Histogram) Type() MetricType { return TypeHistogram }

// Observe records one value into the series selected by labels.
func (h *Histogram) Observe(labels Labels, value float64) {
	s := h.lookup(labels)
	s.mu.Lock()
	s.count++
	s.sum += value
	for i, bound := range h.bounds {
		if value <= bound {
			s.buckets[i]++
			break
		}
	}
	s.mu.Unlock()
}

// Timer starts a stopwatch; the returned func records the elapsed
// seconds when called, usually via defer.
func (h *Histogram) Timer(labels Labels) func() {
	start := time.Now()
	return func() {
		h.Observe(labels, time.Since(start).Seconds())
	}
}

func (h *Histogram) lookup(labels Labels) *histogramSeries {
	key := seriesKey(labels)
	if v, ok := h.series.Load(key); ok {
		return v.(*histogramSeries)
	}
	v, _ := h.series.LoadOrStore(key, &histogramSeries{
		labels:  labels,
		buckets: make([]uint64, len(h.bounds)),
	})
	return v.(*histogramSeries)
}

func (h *Histogram) Write(sb *strings.Builder) {
	writeHeader(sb, h.name, h.help, TypeHistogram)
	h.series.Range(func(_, v interface{}) bool {
		s := v.(*histogramSeries)
		s.mu.Lock()
		count := s.count
		sum := s.sum
		perBucket := make([]uint64, len(s.buckets))
		copy(perBucket, s.buckets)
		s.mu.Unlock()

		cumulative := uint64(0)
		for i, bound := range h.bounds {
			cumulative += perBucket[i]
			bl := cloneLabels(s.labels)
			bl["le"] = formatFloat(bound)
			writeSample(sb, h.name, "_bucket", bl, strconv.FormatUint(cumulative, 10))
		}
		inf := cloneLabels(s.labels)
		inf["le"] = "+Inf"
		writeSample(sb, h.name, "_bucket", inf, strconv.FormatUint(count, 10))
		writeSample(sb, h.name, "_sum", s.labels, formatFloat(sum))
		writeSample(sb, h.name, "_count", s.labels, strconv.FormatUint(count, 10))
		return true
	})
}

// HistogramSnapshot is a point-in-time copy of one series with the
// bucket counts in cumulative form, keyed by upper bound.
type HistogramSnapshot struct {
	Count   uint64
	Sum     float64
	Buckets map[float64]uint64
}

// GetSnapshot copies the series selected by labels; an untouched series
// yields an all-zero snapshot.
func (h *Histogram) GetSnapshot(labels Labels) HistogramSnapshot {
	v, ok := h.series.Load(seriesKey(labels))
	if !ok {
		return HistogramSnapshot{Buckets: make(map[float64]uint64)}
	}
	s := v.(*histogramSeries)
	s.mu.Lock()
	defer s.mu.Unlock()

	buckets := make(map[float64]uint64, len(h.bounds))
	cumulative := uint64(0)
	for i, bound := range h.bounds {
		cumulative += s.buckets[i]
		buckets[bound] = cumulative
	}
	return HistogramSnapshot{Count: s.count, Sum: s.sum, Buckets: buckets}
}

// formatFloat renders a sample value the way the exposition format
// expects (shortest decimal form).
func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

// Registry holds a named set of instruments and renders them in
// registration order, which keeps the /metrics output stable across
// scrapes.
type Registry struct {
	mu      sync.RWMutex
	metrics map[string]Metric
	order   []string
}

func NewRegistry() *Registry {
	return &Registry{metrics: make(map[string]Metric)}
}

// Register adds a metric; a second metric with the same name is an
// error.
func (r *Registry) Register(m Metric) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	name := m.Name()
	if _, exists := r.metrics[name]; exists {
		return fmt.Errorf("metric %q already registered", name)
	}
	r.metrics[name] = m
	r.order = append(r.order, name)
	return nil
}

// MustRegister adds a metric and panics on a name collision. Collisions
// are wiring bugs, so the daemon fails fast at startup.
func (r *Registry) MustRegister(m Metric) {
	if err := r.Register(m); err != nil {
		panic(err)
	}
}

// Unregister removes the metric by name, freeing the name for reuse.
func (r *Registry) Unregister(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.metrics, name)
	for i, n := range r.order {
		if n == name {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
}

// Get returns the metric by name, or nil.
func (r *Registry) Get(name string) Metric {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.metrics[name]
}

// Gather renders every registered metric in exposition format.
func (r *Registry) Gather() string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var sb strings.Builder
	for _, name := range r.order {
		if m, ok := r.metrics[name]; ok {
			m.Write(&sb)
		}
	}
	return sb.String()
}

var defaultRegistry = NewRegistry()

// DefaultRegistry returns the process-wide registry used when no
// explicit registry is wired.
func DefaultRegistry() *Registry {
	return defaultRegistry
}

// Register adds a metric to the default registry.
func Register(m Metric) error {
	return defaultRegistry.Register(m)
}

// MustRegister adds a metric to the default registry, panicking on a
// name collision.
func MustRegister(m Metric) {
	defaultRegistry.MustRegister(m)
}

// Gather renders the default registry in exposition format.
func Gather() string {
	return defaultRegistry.Gather()
}
