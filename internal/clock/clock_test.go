package clock_test

import (
	"testing"
	"time"

	"github.com/snehjoshi/visq/internal/clock"
)

func TestManual_Advance(t *testing.T) {
	start := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	c := clock.NewManual(start)

	if !c.Now().Equal(start) {
		t.Fatalf("Now: want %v, got %v", start, c.Now())
	}
	c.Advance(5 * time.Second)
	if want := start.Add(5 * time.Second); !c.Now().Equal(want) {
		t.Errorf("Now after Advance: want %v, got %v", want, c.Now())
	}
	c.Set(start)
	if !c.Now().Equal(start) {
		t.Errorf("Now after Set: want %v, got %v", start, c.Now())
	}
}

func TestReal_IsWallClock(t *testing.T) {
	before := time.Now()
	got := clock.Real{}.Now()
	if got.Before(before) {
		t.Errorf("Real.Now() = %v, earlier than %v", got, before)
	}
}
