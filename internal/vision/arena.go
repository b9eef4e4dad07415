package vision

// Handle is a generation-checked reference into the track arena. A handle
// taken before a slot was freed and reused resolves to nil rather than to
// the new occupant.
type Handle struct {
	index      int32
	generation uint32
}

type arenaSlot struct {
	track      Track
	generation uint32
	live       bool
}

// TrackArena is a slab allocator for Track structs. Evicted slots go on a
// free list and are reused, so steady-state tracking allocates nothing per
// frame regardless of how many visitors pass through over a day.
type TrackArena struct {
	slots []arenaSlot
	free  []int32
	live  int
}

// NewTrackArena creates an arena with room for capacity tracks before the
// first growth.
func NewTrackArena(capacity int) *TrackArena {
	if capacity < 1 {
		capacity = 1
	}
	return &TrackArena{
		slots: make([]arenaSlot, 0, capacity),
		free:  make([]int32, 0, capacity),
	}
}

// Alloc claims a slot and returns its handle and track. The track is not
// reset; callers initialise it via Track.reset.
func (a *TrackArena) Alloc() (Handle, *Track) {
	var idx int32
	if n := len(a.free); n > 0 {
		idx = a.free[n-1]
		a.free = a.free[:n-1]
	} else {
		a.slots = append(a.slots, arenaSlot{})
		idx = int32(len(a.slots) - 1)
	}

	slot := &a.slots[idx]
	slot.live = true
	a.live++
	return Handle{index: idx, generation: slot.generation}, &slot.track
}

// Get resolves a handle, returning nil for stale or freed handles.
func (a *TrackArena) Get(h Handle) *Track {
	if h.index < 0 || int(h.index) >= len(a.slots) {
		return nil
	}
	slot := &a.slots[h.index]
	if !slot.live || slot.generation != h.generation {
		return nil
	}
	return &slot.track
}

// Free releases a slot back to the free list. The generation bump
// invalidates all outstanding handles to the slot. Freeing a stale handle
// is a no-op.
func (a *TrackArena) Free(h Handle) {
	t := a.Get(h)
	if t == nil {
		return
	}
	slot := &a.slots[h.index]
	slot.live = false
	slot.generation++
	a.live--
	a.free = append(a.free, h.index)
}

// Len returns the number of live tracks.
func (a *TrackArena) Len() int { return a.live }
