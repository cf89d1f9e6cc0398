package downloader

import (
	"sync"
	"testing"
)

func TestSharedStateCounterIsMonotonic(t *testing.T) {
	state := newSharedState(100, 0)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 5; j++ {
				state.Add(1)
			}
		}()
	}
	wg.Wait()

	if got := state.Count(); got != 100 {
		t.Fatalf("count = %d, want 100", got)
	}
	if !state.ShouldStop() {
		t.Fatalf("stop flag should be set once the target is reached")
	}

	// Negative additions are ignored; the counter only increases.
	state.Add(-5)
	if got := state.Count(); got != 100 {
		t.Fatalf("count after negative add = %d, want 100", got)
	}
}

func TestSharedStateRemaining(t *testing.T) {
	state := newSharedState(10, 0)
	if got := state.Remaining(); got != 10 {
		t.Fatalf("remaining = %d, want 10", got)
	}
	state.Add(4)
	if got := state.Remaining(); got != 6 {
		t.Fatalf("remaining = %d, want 6", got)
	}
	state.Add(20)
	if got := state.Remaining(); got != 0 {
		t.Fatalf("remaining after overshoot = %d, want 0", got)
	}
}

func TestSharedStateStopIsCooperative(t *testing.T) {
	state := newSharedState(10, 0)
	if state.ShouldStop() {
		t.Fatalf("fresh state should not request stop")
	}
	state.Stop()
	if !state.ShouldStop() {
		t.Fatalf("explicit stop should be visible to workers")
	}
}

func TestNextIndexBlockIsUnique(t *testing.T) {
	state := newSharedState(1000, 40)

	var mu sync.Mutex
	used := make(map[int]struct{})

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 10; j++ {
				start := state.NextIndexBlock(3)
				mu.Lock()
				for k := start; k < start+3; k++ {
					if _, dup := used[k]; dup {
						mu.Unlock()
						panic("duplicate index")
					}
					used[k] = struct{}{}
				}
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if len(used) != 300 {
		t.Fatalf("allocated %d indexes, want 300", len(used))
	}
	if _, ok := used[40]; !ok {
		t.Fatalf("allocation should start at the initial file index")
	}
}
