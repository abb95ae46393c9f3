// Package metrics provides lightweight metrics primitives for the rvbox
// simulator: instruction-category counters, gauges for machine state and
// a process-wide registry the front ends dump on exit. Counter and Gauge
// use atomic operations for lock-free access from a running machine loop.
package metrics

import (
	"fmt"
	"io"
	"sort"
	"sync"
	"sync/atomic"
)

// Counter is a monotonically increasing counter.
type Counter struct {
	name  string
	value atomic.Uint64
}

// NewCounter returns a Counter registered under name in the default
// registry.
func NewCounter(name string) *Counter {
	c := &Counter{name: name}
	DefaultRegistry.register(name, c)
	return c
}

// Inc increments the counter by one.
func (c *Counter) Inc() { c.value.Add(1) }

// Add increments the counter by n.
func (c *Counter) Add(n uint64) { c.value.Add(n) }

// Value returns the current count.
func (c *Counter) Value() uint64 { return c.value.Load() }

// Name returns the metric name.
func (c *Counter) Name() string { return c.name }

// Gauge is a value that can move in both directions, such as the pages
// currently allocated or the budget remaining.
type Gauge struct {
	name  string
	value atomic.Int64
}

// NewGauge returns a Gauge registered under name in the default registry.
func NewGauge(name string) *Gauge {
	g := &Gauge{name: name}
	DefaultRegistry.register(name, g)
	return g
}

// Set replaces the gauge value.
func (g *Gauge) Set(v int64) { g.value.Store(v) }

// Value returns the current gauge value.
func (g *Gauge) Value() int64 { return g.value.Load() }

// Name returns the metric name.
func (g *Gauge) Name() string { return g.name }

// metric is anything the registry can enumerate.
type metric interface{ Name() string }

// Registry is a named collection of metrics.
type Registry struct {
	mu      sync.Mutex
	entries map[string]metric
}

// DefaultRegistry collects every metric created through the package
// constructors.
var DefaultRegistry = &Registry{entries: make(map[string]metric)}

func (r *Registry) register(name string, m metric) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[name] = m
}

// Each calls fn for every registered metric, in name order.
func (r *Registry) Each(fn func(name string, m any)) {
	r.mu.Lock()
	names := make([]string, 0, len(r.entries))
	for n := range r.entries {
		names = append(names, n)
	}
	sort.Strings(names)
	entries := make([]metric, len(names))
	for i, n := range names {
		entries[i] = r.entries[n]
	}
	r.mu.Unlock()
	for i, n := range names {
		fn(n, entries[i])
	}
}

// Dump writes all registered metrics to w, one "name value" line each.
// Zero-valued counters are skipped to keep the report readable.
func (r *Registry) Dump(w io.Writer) {
	r.Each(func(name string, m any) {
		switch v := m.(type) {
		case *Counter:
			if n := v.Value(); n != 0 {
				fmt.Fprintf(w, "%s %d\n", name, n)
			}
		case *Gauge:
			fmt.Fprintf(w, "%s %d\n", name, v.Value())
		}
	})
}
