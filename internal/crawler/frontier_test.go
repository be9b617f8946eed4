package crawler

import (
	"sync"
	"testing"
)

// TestFrontier tests queue order and deduplication.
func TestFrontier(t *testing.T) {
	t.Parallel()

	t.Run("FIFO order", func(t *testing.T) {
		t.Parallel()

		f := NewFrontier()
		if added := f.Push("a", "b", "c"); added != 3 {
			t.Fatalf("expected 3 added, got %d", added)
		}

		for _, want := range []string{"a", "b", "c"} {
			got, ok := f.Next()
			if !ok || got != want {
				t.Errorf("expected %q, got %q (ok=%v)", want, got, ok)
			}
		}
		if _, ok := f.Next(); ok {
			t.Error("expected empty frontier")
		}
	})

	t.Run("push skips known URLs", func(t *testing.T) {
		t.Parallel()

		f := NewFrontier()
		f.Push("a")
		f.MarkVisited("v")
		f.Claim("failed")

		if added := f.Push("a", "v", "failed", "new", "new"); added != 1 {
			t.Errorf("expected 1 added, got %d", added)
		}
		if f.Len() != 2 {
			t.Errorf("expected 2 queued, got %d", f.Len())
		}
	})

	t.Run("failed URL is known but not visited", func(t *testing.T) {
		t.Parallel()

		f := NewFrontier()
		if !f.Claim("x") {
			t.Fatal("expected first claim to succeed")
		}
		if f.Claim("x") {
			t.Error("expected second claim to fail")
		}
		if !f.IsKnown("x") {
			t.Error("expected claimed URL to be known")
		}
		if f.VisitedCount() != 0 {
			t.Errorf("expected 0 visited, got %d", f.VisitedCount())
		}
	})

	t.Run("claim is atomic", func(t *testing.T) {
		t.Parallel()

		f := NewFrontier()
		var wg sync.WaitGroup
		var mu sync.Mutex
		wins := 0
		for range 32 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				if f.Claim("shared") {
					mu.Lock()
					wins++
					mu.Unlock()
				}
			}()
		}
		wg.Wait()

		if wins != 1 {
			t.Errorf("expected exactly one successful claim, got %d", wins)
		}
	})
}
