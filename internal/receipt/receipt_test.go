package receipt_test

import (
	"sort"
	"sync"
	"testing"

	"github.com/snehjoshi/visq/internal/receipt"
)

func TestNewHandle_IsValidULID(t *testing.T) {
	g := receipt.NewULIDGenerator()
	h, err := g.NewHandle()
	if err != nil {
		t.Fatalf("NewHandle: %v", err)
	}
	if len(h) != 26 {
		t.Errorf("handle should be 26 chars, got %d: %s", len(h), h)
	}
	if err := g.Validate(h); err != nil {
		t.Errorf("Validate(%q): %v", h, err)
	}
}

func TestValidate_RejectsGarbage(t *testing.T) {
	g := receipt.NewULIDGenerator()
	for _, h := range []string{"", "not-a-handle", "01ARZ3NDEKTSV4RRFFQ69G5FA"} {
		if err := g.Validate(h); err == nil {
			t.Errorf("Validate(%q): expected error", h)
		}
	}
}

func TestNewHandle_MonotonicWithinProcess(t *testing.T) {
	g := receipt.NewULIDGenerator()
	var handles []string
	for i := 0; i < 1000; i++ {
		h, err := g.NewHandle()
		if err != nil {
			t.Fatalf("NewHandle: %v", err)
		}
		handles = append(handles, h)
	}
	if !sort.StringsAreSorted(handles) {
		t.Error("handles are not lexicographically increasing")
	}
}

func TestNewHandle_ConcurrentUnique(t *testing.T) {
	g := receipt.NewULIDGenerator()
	const workers, per = 8, 200

	var (
		mu   sync.Mutex
		seen = make(map[string]bool, workers*per)
		wg   sync.WaitGroup
	)
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < per; i++ {
				h, err := g.NewHandle()
				if err != nil {
					t.Errorf("NewHandle: %v", err)
					return
				}
				mu.Lock()
				if seen[h] {
					t.Errorf("duplicate handle %s", h)
				}
				seen[h] = true
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
}
