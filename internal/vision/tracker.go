package vision

import (
	"sort"
	"time"
)

// Eviction reports a track removed after exceeding the disappearance
// ceiling. The session manager uses it to force-close orphaned sessions.
type Eviction struct {
	TrackID  int64
	LastSeen time.Time
}

// Tracker owns the track arena and performs per-frame association of
// detections to tracks. It is not safe for concurrent use; the engine
// serializes all access behind its frame lock.
type Tracker struct {
	arena  *TrackArena
	order  []Handle // live tracks in registration order
	nextID int64
	cfg    EngineConfig
}

// NewTracker creates a tracker for the given (already validated) config.
func NewTracker(cfg EngineConfig) *Tracker {
	return &Tracker{
		arena:  NewTrackArena(32),
		nextID: 1,
		cfg:    cfg,
	}
}

// Update processes one frame of centroid detections. It returns the handles
// of tracks that were matched or newly registered this frame, in
// deterministic order (existing tracks by registration order, then new
// tracks in detection order), plus any evictions performed.
//
// Unmatched tracks age by one disappearance tick; tracks whose counter
// exceeds the ceiling are evicted. Unmatched detections register new tracks.
func (t *Tracker) Update(dets []Detection, ts time.Time) (updated []Handle, evicted []Eviction) {
	centroids := make([]Point, len(dets))
	for i, d := range dets {
		centroids[i] = d.BBox.Centroid()
	}

	matchedTrack := make([]bool, len(t.order))
	matchedDet := make([]bool, len(dets))

	if len(t.order) > 0 && len(dets) > 0 {
		var pairs [][2]int // [orderIdx, detIdx]
		switch t.cfg.Assignment {
		case AssignOptimal:
			pairs = t.assignOptimal(centroids)
		default:
			pairs = t.assignGreedy(centroids)
		}

		for _, p := range pairs {
			oi, di := p[0], p[1]
			matchedTrack[oi] = true
			matchedDet[di] = true
			track := t.arena.Get(t.order[oi])
			track.Observe(centroids[di], ts, t.cfg.HistorySize)
		}
	}

	// Matched tracks first, in registration order.
	for oi, ok := range matchedTrack {
		if ok {
			updated = append(updated, t.order[oi])
		}
	}

	// Age unmatched tracks and evict past the ceiling.
	evicted = t.ageUnmatched(matchedTrack)

	// Register unmatched detections as new tracks. A zero-detection frame
	// does no registration; the aging above was the entire frame's work.
	for di, ok := range matchedDet {
		if !ok {
			updated = append(updated, t.register(centroids[di], ts))
		}
	}

	return updated, evicted
}

// assignGreedy picks the globally smallest remaining (track, detection)
// distance pair until the gate is exceeded. Ties break by track
// registration order, then detection order, keeping frames deterministic.
func (t *Tracker) assignGreedy(centroids []Point) [][2]int {
	type candidate struct {
		dist float32
		oi   int
		di   int
	}

	cands := make([]candidate, 0, len(t.order)*len(centroids))
	for oi, h := range t.order {
		last := t.arena.Get(h).Last()
		lp := Point{X: last.X, Y: last.Y}
		for di, c := range centroids {
			if d := Distance(lp, c); d <= t.cfg.MaxDistance {
				cands = append(cands, candidate{dist: d, oi: oi, di: di})
			}
		}
	}

	sort.Slice(cands, func(a, b int) bool {
		if cands[a].dist != cands[b].dist {
			return cands[a].dist < cands[b].dist
		}
		if cands[a].oi != cands[b].oi {
			return cands[a].oi < cands[b].oi
		}
		return cands[a].di < cands[b].di
	})

	usedTrack := make([]bool, len(t.order))
	usedDet := make([]bool, len(centroids))
	var pairs [][2]int
	for _, c := range cands {
		if usedTrack[c.oi] || usedDet[c.di] {
			continue
		}
		usedTrack[c.oi] = true
		usedDet[c.di] = true
		pairs = append(pairs, [2]int{c.oi, c.di})
	}
	return pairs
}

// assignOptimal builds the full cost matrix and solves it with the
// Hungarian algorithm. Pairs beyond the gate are forbidden.
func (t *Tracker) assignOptimal(centroids []Point) [][2]int {
	cost := make([][]float32, len(t.order))
	for oi, h := range t.order {
		last := t.arena.Get(h).Last()
		lp := Point{X: last.X, Y: last.Y}
		row := make([]float32, len(centroids))
		for di, c := range centroids {
			d := Distance(lp, c)
			if d > t.cfg.MaxDistance {
				row[di] = hungarianInf
			} else {
				row[di] = d
			}
		}
		cost[oi] = row
	}

	assign := hungarianAssign(cost)
	var pairs [][2]int
	for oi, di := range assign {
		if di >= 0 {
			pairs = append(pairs, [2]int{oi, di})
		}
	}
	return pairs
}

// ageUnmatched increments disappearance counters and evicts tracks whose
// counter exceeds the configured ceiling, compacting the order slice.
func (t *Tracker) ageUnmatched(matched []bool) []Eviction {
	var evictions []Eviction
	keep := t.order[:0]
	for oi, h := range t.order {
		track := t.arena.Get(h)
		if oi < len(matched) && matched[oi] {
			keep = append(keep, h)
			continue
		}
		track.Disappeared++
		if track.Disappeared > t.cfg.MaxDisappeared {
			evictions = append(evictions, Eviction{TrackID: track.ID, LastSeen: track.LastSeen})
			t.arena.Free(h)
			continue
		}
		keep = append(keep, h)
	}
	t.order = keep
	return evictions
}

// register creates a new track for an unmatched detection.
func (t *Tracker) register(c Point, ts time.Time) Handle {
	h, track := t.arena.Alloc()
	track.reset(t.nextID, t.cfg.HistorySize)
	t.nextID++
	track.Observe(c, ts, t.cfg.HistorySize)
	t.order = append(t.order, h)
	return h
}

// Get resolves a handle to its track, or nil if the track was evicted.
func (t *Tracker) Get(h Handle) *Track { return t.arena.Get(h) }

// Len returns the number of live tracks.
func (t *Tracker) Len() int { return t.arena.Len() }

// EvictAll removes every live track, reporting each as an eviction. Used by
// the engine's clean-stop procedure.
func (t *Tracker) EvictAll() []Eviction {
	var evictions []Eviction
	for _, h := range t.order {
		track := t.arena.Get(h)
		evictions = append(evictions, Eviction{TrackID: track.ID, LastSeen: track.LastSeen})
		t.arena.Free(h)
	}
	t.order = t.order[:0]
	return evictions
}
