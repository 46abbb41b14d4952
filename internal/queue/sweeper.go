package queue

import (
	"time"

	"github.com/snehjoshi/visq/internal/metrics"
)

// sweeper is the handle of one armed sweep goroutine. Each arm creates a new
// one, so a goroutine left over from an earlier arm only ever watches its own
// stop channel.
type sweeper struct {
	stop chan struct{}
}

// armLocked starts the sweep goroutine. Caller holds q.mu.
func (q *Queue) armLocked() {
	if q.sweeper != nil || q.closed {
		return
	}
	s := &sweeper{stop: make(chan struct{})}
	q.sweeper = s
	q.sweepWG.Add(1)
	go q.sweepLoop(s)
	q.log.Debug("sweep armed", "interval", q.sweepInterval)
}

// disarmLocked stops the sweep goroutine without waiting for it. Caller holds
// q.mu, which the goroutine needs before it can mutate anything, so once this
// returns no further pass can start.
func (q *Queue) disarmLocked() {
	if q.sweeper == nil {
		return
	}
	close(q.sweeper.stop)
	q.sweeper = nil
	q.log.Debug("sweep disarmed")
}

// sweepLoop sweeps once immediately and then on every tick until stopped.
func (q *Queue) sweepLoop(s *sweeper) {
	defer q.sweepWG.Done()

	ticker := time.NewTicker(q.sweepInterval)
	defer ticker.Stop()

	q.sweepOnce(s)
	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			q.sweepOnce(s)
		}
	}
}

// sweepOnce runs one pass unless s was disarmed while waiting for the lock.
func (q *Queue) sweepOnce(s *sweeper) {
	q.mu.Lock()
	select {
	case <-s.stop:
		q.mu.Unlock()
		return
	default:
	}
	reverted := q.sweepLocked(q.clk.Now())
	q.mu.Unlock()

	q.count(func(r *metrics.Registry) {
		r.Sweeps.Inc(q.name)
		if reverted > 0 {
			r.Reverted.Add(q.name, int64(reverted))
		}
	})
	if reverted > 0 {
		q.log.Debug("visibility expired", "reverted", reverted)
	}
}

// sweepLocked makes every message whose timeout is before now visible again
// and returns how many it reverted. Caller holds q.mu.
func (q *Queue) sweepLocked(now time.Time) int {
	reverted := 0
	for e := q.messages.Front(); e != nil; e = e.Next() {
		m := e.Value.(*Message)
		if m.expired(now) {
			m.VisibleAt = time.Time{}
			reverted++
		}
	}
	return reverted
}
