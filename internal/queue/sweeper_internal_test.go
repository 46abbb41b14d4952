package queue

import (
	"testing"
	"time"

	"github.com/snehjoshi/visq/internal/clock"
)

var t0 = time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)

func TestSweepLocked_RevertsOnlyExpired(t *testing.T) {
	q := New(WithClock(clock.NewManual(t0)))
	t.Cleanup(func() { _ = q.Close() })

	for _, deadline := range []time.Time{
		{},                       // visible
		t0.Add(-time.Second),     // expired
		t0,                       // at deadline: still invisible
		t0.Add(time.Second),      // in the future
		t0.Add(-time.Nanosecond), // just expired
	} {
		q.messages.PushBack(&Message{VisibleAt: deadline})
	}

	q.mu.Lock()
	reverted := q.sweepLocked(t0)
	q.mu.Unlock()

	if reverted != 2 {
		t.Fatalf("reverted: want 2, got %d", reverted)
	}
	var visible []bool
	for e := q.messages.Front(); e != nil; e = e.Next() {
		visible = append(visible, e.Value.(*Message).Visible())
	}
	want := []bool{true, true, false, false, true}
	for i := range want {
		if visible[i] != want[i] {
			t.Errorf("message %d: want visible=%v, got %v", i, want[i], visible[i])
		}
	}
}

func TestDeadline_NeverZero(t *testing.T) {
	tests := []struct {
		name    string
		now     time.Time
		timeout time.Duration
		want    time.Time
	}{
		{"ordinary", t0, time.Second, t0.Add(time.Second)},
		{"zero clock, zero timeout", time.Time{}, 0, time.Time{}.Add(time.Nanosecond)},
		{"zero clock, positive timeout", time.Time{}, time.Second, time.Time{}.Add(time.Second)},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := deadline(tc.now, tc.timeout)
			if got.IsZero() {
				t.Fatal("deadline is the zero time")
			}
			if !got.Equal(tc.want) {
				t.Errorf("want %v, got %v", tc.want, got)
			}
		})
	}
}

func TestDisarm_StopsLoopBeforeNextPass(t *testing.T) {
	q := New(WithSweepInterval(time.Hour))
	t.Cleanup(func() { _ = q.Close() })

	q.mu.Lock()
	q.armLocked()
	s := q.sweeper
	q.disarmLocked()
	q.mu.Unlock()

	if q.sweeper != nil {
		t.Fatal("sweeper handle not cleared on disarm")
	}
	select {
	case <-s.stop:
	default:
		t.Fatal("stop channel not closed on disarm")
	}

	done := make(chan struct{})
	go func() {
		q.sweepWG.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("sweep goroutine did not exit after disarm")
	}
}

func TestArm_IsIdempotent(t *testing.T) {
	q := New(WithSweepInterval(time.Hour))
	t.Cleanup(func() { _ = q.Close() })

	q.mu.Lock()
	q.armLocked()
	first := q.sweeper
	q.armLocked()
	second := q.sweeper
	q.mu.Unlock()

	if first != second {
		t.Error("second arm replaced a running sweeper")
	}
}
