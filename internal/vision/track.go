package vision

import "time"

// TrackPoint is a single entry in a track's centroid history.
type TrackPoint struct {
	X         float32
	Y         float32
	Timestamp time.Time
}

// Track is one physically continuous presence in frame. Tracks are owned
// exclusively by the arena; other components read them through the tracker
// and never hold them across frames.
type Track struct {
	// ID is process-unique and monotonically assigned. Arena slots are
	// reused but IDs never are.
	ID int64

	// History holds recent centroids, oldest first, bounded by the
	// configured window.
	History []TrackPoint

	// Disappeared counts consecutive frames with no matching detection.
	Disappeared int

	// Side is the last classification relative to the counting line.
	Side Side

	// Crossed latches after the track's single crossing event. A track
	// cannot cross again without being evicted and re-created.
	Crossed bool

	FirstSeen time.Time
	LastSeen  time.Time
}

// reset prepares a recycled arena slot for a new identity.
func (t *Track) reset(id int64, historyCap int) {
	t.ID = id
	if t.History == nil || cap(t.History) < historyCap {
		t.History = make([]TrackPoint, 0, historyCap)
	} else {
		t.History = t.History[:0]
	}
	t.Disappeared = 0
	t.Side = SideUnset
	t.Crossed = false
	t.FirstSeen = time.Time{}
	t.LastSeen = time.Time{}
}

// Observe appends a centroid to the history, evicting the oldest entry once
// the window is full.
func (t *Track) Observe(p Point, ts time.Time, window int) {
	if window > 0 && len(t.History) >= window {
		copy(t.History, t.History[1:])
		t.History = t.History[:len(t.History)-1]
	}
	t.History = append(t.History, TrackPoint{X: p.X, Y: p.Y, Timestamp: ts})
	if t.FirstSeen.IsZero() {
		t.FirstSeen = ts
	}
	t.LastSeen = ts
	t.Disappeared = 0
}

// Last returns the most recent centroid. It must not be called on a track
// with empty history; the tracker always observes a point at registration.
func (t *Track) Last() TrackPoint {
	return t.History[len(t.History)-1]
}
