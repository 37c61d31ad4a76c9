// Package metrics is a small Prometheus-compatible registry built on the
// standard library. Counters, gauges, and histograms register by name and
// render in the text exposition format via an HTTP handler.
package metrics

import (
	"fmt"
	"net/http"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// DefaultBuckets are latency buckets in seconds.
var DefaultBuckets = []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60}

// Counter only goes up.
type Counter struct{ n atomic.Int64 }

func (c *Counter) Inc()         { c.n.Add(1) }
func (c *Counter) Add(d int64)  { c.n.Add(d) }
func (c *Counter) Value() int64 { return c.n.Load() }

// Gauge goes both ways.
type Gauge struct{ n atomic.Int64 }

func (g *Gauge) Set(v int64)  { g.n.Store(v) }
func (g *Gauge) Inc()         { g.n.Add(1) }
func (g *Gauge) Dec()         { g.n.Add(-1) }
func (g *Gauge) Value() int64 { return g.n.Load() }

// Histogram distributes observations over fixed upper bounds.
type Histogram struct {
	mu     sync.Mutex
	bounds []float64
	hits   []uint64
	sum    float64
	total  uint64
}

// Observe records one value.
func (h *Histogram) Observe(v float64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.sum += v
	h.total++
	for i, b := range h.bounds {
		if v <= b {
			h.hits[i]++
			return
		}
	}
}

// Since observes the seconds elapsed from t.
func (h *Histogram) Since(t time.Time) { h.Observe(time.Since(t).Seconds()) }

func (h *Histogram) snapshot() (bounds []float64, hits []uint64, sum float64, total uint64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	hits = make([]uint64, len(h.hits))
	copy(hits, h.hits)
	return h.bounds, hits, h.sum, h.total
}

type kind int

const (
	kindCounter kind = iota
	kindGauge
	kindHistogram
)

func (k kind) String() string {
	switch k {
	case kindGauge:
		return "gauge"
	case kindHistogram:
		return "histogram"
	default:
		return "counter"
	}
}

type entry struct {
	kind kind
	help string
	ctr  *Counter
	gau  *Gauge
	hst  *Histogram
}

// Registry holds named metrics and renders them. Label pairs are baked
// into the name, so each label combination is its own metric entry.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]*entry
}

// New creates an empty Registry.
func New() *Registry {
	return &Registry{entries: make(map[string]*entry)}
}

// Counter returns the counter registered under name, creating it on
// first use.
func (r *Registry) Counter(name, help string) *Counter {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.entries[name]; ok && e.ctr != nil {
		return e.ctr
	}
	c := &Counter{}
	r.entries[name] = &entry{kind: kindCounter, help: help, ctr: c}
	return c
}

// Gauge returns the gauge registered under name.
func (r *Registry) Gauge(name, help string) *Gauge {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.entries[name]; ok && e.gau != nil {
		return e.gau
	}
	g := &Gauge{}
	r.entries[name] = &entry{kind: kindGauge, help: help, gau: g}
	return g
}

// Histogram returns the histogram registered under name. A nil buckets
// slice uses DefaultBuckets.
func (r *Registry) Histogram(name, help string, buckets []float64) *Histogram {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.entries[name]; ok && e.hst != nil {
		return e.hst
	}
	if buckets == nil {
		buckets = DefaultBuckets
	}
	bounds := make([]float64, len(buckets))
	copy(bounds, buckets)
	sort.Float64s(bounds)
	h := &Histogram{bounds: bounds, hits: make([]uint64, len(bounds))}
	r.entries[name] = &entry{kind: kindHistogram, help: help, hst: h}
	return h
}

// WithLabels appends a label set to a metric name, producing
// name{k="v",...}.
func WithLabels(name string, kvs ...string) string {
	if len(kvs) == 0 || len(kvs)%2 != 0 {
		return name
	}
	var b strings.Builder
	b.WriteString(name)
	b.WriteByte('{')
	for i := 0; i < len(kvs); i += 2 {
		if i > 0 {
			b.WriteByte(',')
		}
		fmt.Fprintf(&b, "%s=%q", kvs[i], kvs[i+1])
	}
	b.WriteByte('}')
	return b.String()
}

// baseName strips any label set from a metric name.
func baseName(name string) string {
	if i := strings.IndexByte(name, '{'); i != -1 {
		return name[:i]
	}
	return name
}

// innerLabels returns the label contents of name{k="v"} with a leading
// comma, or the empty string.
func innerLabels(name string) string {
	i := strings.IndexByte(name, '{')
	if i == -1 || i+2 > len(name) {
		return ""
	}
	inner := name[i+1 : len(name)-1]
	if inner == "" {
		return ""
	}
	return "," + inner
}

// Render produces Prometheus text exposition output, sorted by name.
func (r *Registry) Render() string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.entries))
	for n := range r.entries {
		names = append(names, n)
	}
	sort.Strings(names)

	var b strings.Builder
	headered := make(map[string]bool)
	for _, n := range names {
		e := r.entries[n]
		base := baseName(n)
		if !headered[base] {
			headered[base] = true
			if e.help != "" {
				fmt.Fprintf(&b, "# HELP %s %s\n", base, e.help)
			}
			fmt.Fprintf(&b, "# TYPE %s %s\n", base, e.kind)
		}
		switch e.kind {
		case kindCounter:
			fmt.Fprintf(&b, "%s %d\n", n, e.ctr.Value())
		case kindGauge:
			fmt.Fprintf(&b, "%s %d\n", n, e.gau.Value())
		case kindHistogram:
			renderHistogram(&b, base, innerLabels(n), e.hst)
		}
	}
	return b.String()
}

func renderHistogram(b *strings.Builder, base, labels string, h *Histogram) {
	bounds, hits, sum, total := h.snapshot()
	var cum uint64
	for i, bound := range bounds {
		cum += hits[i]
		fmt.Fprintf(b, "%s_bucket{le=\"%g\"%s} %d\n", base, bound, labels, cum)
	}
	fmt.Fprintf(b, "%s_bucket{le=\"+Inf\"%s} %d\n", base, labels, total)
	suffix := ""
	if labels != "" {
		suffix = "{" + labels[1:] + "}"
	}
	fmt.Fprintf(b, "%s_sum%s %g\n", base, suffix, sum)
	fmt.Fprintf(b, "%s_count%s %d\n", base, suffix, total)
}

// Handler serves the registry in text exposition format.
func (r *Registry) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")
		w.Write([]byte(r.Render()))
	})
}
