package vision

import "testing"

func TestArenaAllocAndGet(t *testing.T) {
	a := NewTrackArena(4)

	h, track := a.Alloc()
	track.reset(1, 8)

	got := a.Get(h)
	if got == nil {
		t.Fatal("expected live track")
	}
	if got.ID != 1 {
		t.Errorf("expected ID=1, got %d", got.ID)
	}
	if a.Len() != 1 {
		t.Errorf("expected Len=1, got %d", a.Len())
	}
}

func TestArenaStaleHandleAfterFree(t *testing.T) {
	a := NewTrackArena(4)

	h, track := a.Alloc()
	track.reset(1, 8)
	a.Free(h)

	if a.Get(h) != nil {
		t.Error("freed handle must resolve to nil")
	}
	if a.Len() != 0 {
		t.Errorf("expected Len=0, got %d", a.Len())
	}
}

func TestArenaSlotReuseBumpsGeneration(t *testing.T) {
	a := NewTrackArena(4)

	h1, track := a.Alloc()
	track.reset(1, 8)
	a.Free(h1)

	// The freed slot is reused for the next allocation.
	h2, track2 := a.Alloc()
	track2.reset(2, 8)

	if h1.index != h2.index {
		t.Fatalf("expected slot reuse, got slots %d and %d", h1.index, h2.index)
	}
	if a.Get(h1) != nil {
		t.Error("stale handle must not resolve to the slot's new occupant")
	}
	if got := a.Get(h2); got == nil || got.ID != 2 {
		t.Errorf("fresh handle must resolve to new track, got %+v", got)
	}
}

func TestArenaDoubleFreeIsNoOp(t *testing.T) {
	a := NewTrackArena(4)

	h, track := a.Alloc()
	track.reset(1, 8)
	a.Free(h)
	a.Free(h)

	if a.Len() != 0 {
		t.Errorf("expected Len=0 after double free, got %d", a.Len())
	}

	// The free list must not hand out the same slot twice.
	h2, _ := a.Alloc()
	h3, _ := a.Alloc()
	if h2.index == h3.index {
		t.Errorf("double free corrupted free list: both allocs got slot %d", h2.index)
	}
}

func TestArenaGrowsBeyondInitialCapacity(t *testing.T) {
	a := NewTrackArena(2)

	handles := make([]Handle, 10)
	for i := range handles {
		h, track := a.Alloc()
		track.reset(int64(i+1), 8)
		handles[i] = h
	}

	if a.Len() != 10 {
		t.Fatalf("expected 10 live tracks, got %d", a.Len())
	}
	for i, h := range handles {
		got := a.Get(h)
		if got == nil || got.ID != int64(i+1) {
			t.Errorf("handle %d: expected ID=%d, got %+v", i, i+1, got)
		}
	}
}
