// Package queue implements an in-process message queue with visibility
// timeouts.
//
// A producer pushes a message; a consumer pulls it and gets a receipt handle.
// The pulled message stays in the queue but is hidden from other consumers
// until its visibility timeout expires. Deleting it with the handle before
// then removes it for good; otherwise a background sweep makes it visible
// again and it is redelivered. Delivery is at-least-once.
package queue

import (
	"container/list"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/snehjoshi/visq/internal/clock"
	"github.com/snehjoshi/visq/internal/metrics"
	"github.com/snehjoshi/visq/internal/receipt"
)

// DefaultSweepInterval is how often an armed queue scans for expired messages.
const DefaultSweepInterval = time.Second

// ─── Options ─────────────────────────────────────────────────────────────────

// Option configures a Queue.
type Option func(*Queue)

// WithName sets the name used in logs and as the metrics label.
func WithName(name string) Option {
	return func(q *Queue) { q.name = name }
}

// WithClock replaces the wall clock used to compute and check expiry.
func WithClock(c clock.Clock) Option {
	return func(q *Queue) { q.clk = c }
}

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(q *Queue) { q.log = l }
}

// WithMetrics makes the queue record its counters in reg.
func WithMetrics(reg *metrics.Registry) Option {
	return func(q *Queue) { q.metrics = reg }
}

// WithSweepInterval overrides DefaultSweepInterval. Non-positive values are ignored.
func WithSweepInterval(d time.Duration) Option {
	return func(q *Queue) {
		if d > 0 {
			q.sweepInterval = d
		}
	}
}

// WithHandleGenerator replaces the receipt handle generator.
func WithHandleGenerator(g receipt.Generator) Option {
	return func(q *Queue) { q.handles = g }
}

// ─── Queue ────────────────────────────────────────────────────────────────────

// Stats is a point-in-time view of a queue.
type Stats struct {
	Total      int
	Visible    int
	Invisible  int
	SweepArmed bool
}

// Queue holds messages in insertion order and tracks their visibility.
//
// Architecture:
//   - "messages" is a linked list of *Message. A message keeps its position
//     for its whole life, so a reverted message is redelivered ahead of newer
//     ones rather than moving to the tail.
//   - One mutex serializes Push, Pull, Delete and the sweep. Every operation
//     scans the list, so it needs the whole list stable for the scan.
//   - The sweep goroutine runs only while the queue is non-empty. It is armed
//     by the Push that makes the queue non-empty and disarmed by the Delete
//     that empties it.
//
// All public methods are safe for concurrent use.
type Queue struct {
	name          string
	clk           clock.Clock
	log           *slog.Logger
	metrics       *metrics.Registry
	handles       receipt.Generator
	sweepInterval time.Duration

	mu       sync.Mutex
	messages *list.List // elements are *Message
	sweeper  *sweeper   // nil when disarmed
	closed   bool

	sweepWG sync.WaitGroup
}

// New returns an empty queue. The sweep is not running until the first Push.
// Call Close when the queue is no longer needed.
func New(opts ...Option) *Queue {
	q := &Queue{
		name:          "default",
		clk:           clock.Real{},
		sweepInterval: DefaultSweepInterval,
		messages:      list.New(),
	}
	for _, opt := range opts {
		opt(q)
	}
	if q.log == nil {
		q.log = slog.Default()
	}
	if q.handles == nil {
		q.handles = receipt.NewULIDGenerator()
	}
	q.log = q.log.With("queue", q.name)
	return q
}

// Name returns the queue's name.
func (q *Queue) Name() string { return q.name }

// ─── Push ────────────────────────────────────────────────────────────────────

// Push appends a visible message carrying body to the tail of the queue and
// returns its receipt handle. If the queue was empty, the sweep is armed.
func (q *Queue) Push(body []byte) (string, error) {
	handle, err := q.handles.NewHandle()
	if err != nil {
		return "", fmt.Errorf("queue %s: push: %w", q.name, err)
	}

	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return "", fmt.Errorf("queue %s: push: %w", q.name, ErrClosed)
	}
	q.messages.PushBack(&Message{
		Body:          body,
		ReceiptHandle: handle,
		EnqueuedAt:    q.clk.Now(),
	})
	if q.messages.Len() == 1 {
		q.armLocked()
	}
	q.mu.Unlock()

	q.count(func(r *metrics.Registry) { r.Pushed.Inc(q.name) })
	return handle, nil
}

// ─── Pull ────────────────────────────────────────────────────────────────────

// Pull delivers the first visible message, hiding it for visibilityTimeout.
// Returns nil, nil if no message is visible.
//
// A zero timeout is allowed: the message becomes visible again on the next
// sweep. A negative timeout returns ErrInvalidVisibilityTimeout.
func (q *Queue) Pull(visibilityTimeout time.Duration) (*Delivery, error) {
	if visibilityTimeout < 0 {
		return nil, fmt.Errorf("queue %s: pull %s: %w", q.name, visibilityTimeout, ErrInvalidVisibilityTimeout)
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return nil, fmt.Errorf("queue %s: pull: %w", q.name, ErrClosed)
	}

	for e := q.messages.Front(); e != nil; e = e.Next() {
		m := e.Value.(*Message)
		if !m.Visible() {
			continue
		}
		m.VisibleAt = deadline(q.clk.Now(), visibilityTimeout)
		m.ReceiveCount++
		q.count(func(r *metrics.Registry) { r.Pulled.Inc(q.name) })
		return m.delivery(), nil
	}
	return nil, nil
}

// maxTimeoutSeconds is the largest whole-second timeout a time.Duration holds.
const maxTimeoutSeconds = math.MaxInt64 / int64(time.Second)

// PullSeconds is Pull with the timeout given in whole seconds. Negative
// values and values too large for a time.Duration (about 292 years) return
// ErrInvalidVisibilityTimeout instead of wrapping around.
func (q *Queue) PullSeconds(seconds int) (*Delivery, error) {
	if seconds < 0 || int64(seconds) > maxTimeoutSeconds {
		return nil, fmt.Errorf("queue %s: pull %ds: %w", q.name, seconds, ErrInvalidVisibilityTimeout)
	}
	return q.Pull(time.Duration(seconds) * time.Second)
}

// deadline returns now+timeout. A zero VisibleAt means "visible", so a result
// that lands exactly on the zero time is nudged forward by a nanosecond.
func deadline(now time.Time, timeout time.Duration) time.Time {
	d := now.Add(timeout)
	if d.IsZero() {
		d = d.Add(time.Nanosecond)
	}
	return d
}

// ─── Delete ──────────────────────────────────────────────────────────────────

// Delete removes the invisible message carrying receiptHandle and reports
// whether it found one. A visible message is never deleted, even when the
// handle matches. If the queue becomes empty, the sweep is disarmed.
//
// A handle the generator rejects as malformed is a miss without a scan.
// Delete keeps working after Close so in-flight consumers can finish.
func (q *Queue) Delete(receiptHandle string) bool {
	if err := q.handles.Validate(receiptHandle); err != nil {
		q.count(func(r *metrics.Registry) { r.DeleteMisses.Inc(q.name) })
		q.log.Debug("delete with malformed handle", "err", err)
		return false
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	deleted := false
	for e := q.messages.Front(); e != nil; e = e.Next() {
		m := e.Value.(*Message)
		if !m.Visible() && m.ReceiptHandle == receiptHandle {
			q.messages.Remove(e)
			deleted = true
			break
		}
	}

	if q.messages.Len() == 0 {
		q.disarmLocked()
	}

	if deleted {
		q.count(func(r *metrics.Registry) { r.Deleted.Inc(q.name) })
	} else {
		q.count(func(r *metrics.Registry) { r.DeleteMisses.Inc(q.name) })
	}
	return deleted
}

// ─── Introspection ───────────────────────────────────────────────────────────

// Size returns the number of messages, visible and invisible.
func (q *Queue) Size() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.messages.Len()
}

// Stats returns visible/invisible counts and whether the sweep is armed.
// Messages whose timeout has passed but which have not been swept yet still
// count as invisible.
func (q *Queue) Stats() Stats {
	q.mu.Lock()
	defer q.mu.Unlock()

	s := Stats{Total: q.messages.Len(), SweepArmed: q.sweeper != nil}
	for e := q.messages.Front(); e != nil; e = e.Next() {
		if e.Value.(*Message).Visible() {
			s.Visible++
		}
	}
	s.Invisible = s.Total - s.Visible
	return s
}

// ─── Close ───────────────────────────────────────────────────────────────────

// Close stops the sweep and waits for it to exit. Push and Pull fail with
// ErrClosed afterwards. Messages still in the queue stay invisible or visible
// as they were; nothing reverts them any more. Close is idempotent.
func (q *Queue) Close() error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return nil
	}
	q.closed = true
	q.disarmLocked()
	q.mu.Unlock()

	q.sweepWG.Wait()
	return nil
}

func (q *Queue) count(fn func(*metrics.Registry)) {
	if q.metrics != nil {
		fn(q.metrics)
	}
}
