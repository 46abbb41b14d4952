// Package metrics provides a lightweight Prometheus-compatible counter
// registry for visq queues.
//
// Every counter is keyed by queue name, so one Registry can be shared by
// several queues in the same process.
//
// Calling Registry.Handler() returns an http.Handler that renders all counters
// in the Prometheus exposition format (text/plain; version=0.0.4). Registry.WriteTo
// renders the same text to any io.Writer.
package metrics

import (
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
)

// ─── labelCounter ─────────────────────────────────────────────────────────────

// labelCounter is a lock-free, label-keyed counter map backed by sync.Map and
// atomic.Int64 values.
type labelCounter struct {
	vals sync.Map // key string → *atomic.Int64
}

func (lc *labelCounter) get(key string) *atomic.Int64 {
	v, _ := lc.vals.LoadOrStore(key, new(atomic.Int64))
	return v.(*atomic.Int64)
}

// Inc increments the counter for key by 1.
func (lc *labelCounter) Inc(key string) { lc.get(key).Add(1) }

// Add increments the counter for key by n.
func (lc *labelCounter) Add(key string, n int64) { lc.get(key).Add(n) }

// Value returns the current count for key, or 0 if it was never touched.
func (lc *labelCounter) Value(key string) int64 {
	v, ok := lc.vals.Load(key)
	if !ok {
		return 0
	}
	return v.(*atomic.Int64).Load()
}

// Each calls fn for every key/value pair, sorted by key.
func (lc *labelCounter) Each(fn func(key string, val int64)) {
	type kv struct {
		k string
		v int64
	}
	var all []kv
	lc.vals.Range(func(k, v any) bool {
		all = append(all, kv{k.(string), v.(*atomic.Int64).Load()})
		return true
	})
	sort.Slice(all, func(i, j int) bool { return all[i].k < all[j].k })
	for _, e := range all {
		fn(e.k, e.v)
	}
}

// ─── Registry ─────────────────────────────────────────────────────────────────

// Registry holds all visq counters. The zero value is ready to use.
type Registry struct {
	Pushed       labelCounter
	Pulled       labelCounter
	Deleted      labelCounter
	DeleteMisses labelCounter // delete calls that matched no invisible message
	Reverted     labelCounter // messages made visible again by the sweep
	Sweeps       labelCounter

	// Consumer-side counters, same key.
	Handled        labelCounter
	HandlerFailure labelCounter
}

type family struct {
	name, help string
	c          *labelCounter
}

func (r *Registry) families() []family {
	return []family{
		{"visq_messages_pushed_total", "Total messages pushed", &r.Pushed},
		{"visq_messages_pulled_total", "Total messages delivered by pull", &r.Pulled},
		{"visq_messages_deleted_total", "Total messages deleted by receipt handle", &r.Deleted},
		{"visq_delete_misses_total", "Delete calls whose handle matched no invisible message", &r.DeleteMisses},
		{"visq_messages_reverted_total", "Messages made visible again after their visibility timeout", &r.Reverted},
		{"visq_sweeps_total", "Completed visibility sweeps", &r.Sweeps},
		{"visq_consumer_handled_total", "Deliveries handled successfully by consumers", &r.Handled},
		{"visq_consumer_failures_total", "Deliveries whose handler returned an error", &r.HandlerFailure},
	}
}

// ─── Prometheus text serialisation ────────────────────────────────────────────

// WriteTo renders every non-empty counter family to w.
func (r *Registry) WriteTo(w io.Writer) (int64, error) {
	var b strings.Builder
	for _, f := range r.families() {
		writeFamily(&b, f.name, f.help, "counter", f.c)
	}
	n, err := io.WriteString(w, b.String())
	return int64(n), err
}

// Handler returns an http.Handler that renders all metrics in the Prometheus
// plain-text exposition format.
func (r *Registry) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = r.WriteTo(w)
	})
}

// writeFamily writes a single Prometheus metric family to b. Families with no
// samples are skipped entirely.
func writeFamily(b *strings.Builder, name, help, typ string, c *labelCounter) {
	var lines []string
	c.Each(func(queue string, val int64) {
		lines = append(lines, fmt.Sprintf("%s{queue=%q} %d\n", name, queue, val))
	})
	if len(lines) == 0 {
		return
	}
	fmt.Fprintf(b, "# HELP %s %s\n", name, help)
	fmt.Fprintf(b, "# TYPE %s %s\n", name, typ)
	for _, l := range lines {
		b.WriteString(l)
	}
}
