package o11y

import (
	"context"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// Snapshot is a point-in-time copy of everything a Recorder has seen.
// Metric names are suffixed with their labels, e.g.
// "parley_ws_requests_total{channel=messages}".
type Snapshot struct {
	Timestamp   time.Time          `json:"timestamp"`
	ServiceName string             `json:"service_name"`
	Counters    map[string]int64   `json:"counters"`
	Histograms  map[string]Summary `json:"histograms"`
	Gauges      map[string]float64 `json:"gauges"`
}

// Summary condenses histogram observations.
type Summary struct {
	Count int64   `json:"count"`
	Sum   float64 `json:"sum"`
	Min   float64 `json:"min"`
	Max   float64 `json:"max"`
}

// Recorder is an in-process MetricsProvider. The stats job logs its
// snapshots when no OpenTelemetry exporter is configured.
type Recorder struct {
	serviceName string

	counters   sync.Map // map[string]*recorderCounter
	histograms sync.Map // map[string]*recorderHistogram
	gauges     sync.Map // map[string]*recorderGauge
}

func NewRecorder(serviceName string) *Recorder {
	if serviceName == "" {
		serviceName = "parley"
	}
	return &Recorder{serviceName: serviceName}
}

func (r *Recorder) Counter(name string) Counter {
	return &labelled[*recorderCounter]{name: name, store: &r.counters, create: func() *recorderCounter { return &recorderCounter{} }}
}

func (r *Recorder) Histogram(name string) Histogram {
	return &labelled[*recorderHistogram]{name: name, store: &r.histograms, create: func() *recorderHistogram { return &recorderHistogram{} }}
}

func (r *Recorder) Gauge(name string) Gauge {
	return &labelled[*recorderGauge]{name: name, store: &r.gauges, create: func() *recorderGauge { return &recorderGauge{} }}
}

// Snapshot copies the current values.
func (r *Recorder) Snapshot() Snapshot {
	snap := Snapshot{
		Timestamp:   time.Now(),
		ServiceName: r.serviceName,
		Counters:    make(map[string]int64),
		Histograms:  make(map[string]Summary),
		Gauges:      make(map[string]float64),
	}

	r.counters.Range(func(key, value any) bool {
		snap.Counters[key.(string)] = value.(*recorderCounter).value.Load()
		return true
	})
	r.histograms.Range(func(key, value any) bool {
		snap.Histograms[key.(string)] = value.(*recorderHistogram).summary()
		return true
	})
	r.gauges.Range(func(key, value any) bool {
		snap.Gauges[key.(string)] = value.(*recorderGauge).get()
		return true
	})

	return snap
}

// labelled resolves the series for a label set on each observation.
type labelled[T any] struct {
	name   string
	store  *sync.Map
	create func() T
}

func (l *labelled[T]) series(labels []Label) T {
	key := seriesKey(l.name, labels)
	if existing, ok := l.store.Load(key); ok {
		return existing.(T)
	}
	actual, _ := l.store.LoadOrStore(key, l.create())
	return actual.(T)
}

func (l *labelled[T]) Add(ctx context.Context, value int64, labels ...Label) {
	if c, ok := any(l.series(labels)).(*recorderCounter); ok {
		c.value.Add(value)
	}
}

func (l *labelled[T]) Record(ctx context.Context, value float64, labels ...Label) {
	if h, ok := any(l.series(labels)).(*recorderHistogram); ok {
		h.record(value)
	}
}

func (l *labelled[T]) Set(ctx context.Context, value float64, labels ...Label) {
	if g, ok := any(l.series(labels)).(*recorderGauge); ok {
		g.set(value)
	}
}

func seriesKey(name string, labels []Label) string {
	if len(labels) == 0 {
		return name
	}

	parts := make([]string, len(labels))
	for i, label := range labels {
		parts[i] = label.Key + "=" + label.Value
	}
	sort.Strings(parts)

	return name + "{" + strings.Join(parts, ",") + "}"
}

type recorderCounter struct {
	value atomic.Int64
}

type recorderHistogram struct {
	mu sync.Mutex
	s  Summary
}

func (h *recorderHistogram) record(value float64) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.s.Count == 0 || value < h.s.Min {
		h.s.Min = value
	}
	if h.s.Count == 0 || value > h.s.Max {
		h.s.Max = value
	}
	h.s.Count++
	h.s.Sum += value
}

func (h *recorderHistogram) summary() Summary {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.s
}

type recorderGauge struct {
	mu    sync.RWMutex
	value float64
}

func (g *recorderGauge) set(value float64) {
	g.mu.Lock()
	g.value = value
	g.mu.Unlock()
}

func (g *recorderGauge) get() float64 {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.value
}
