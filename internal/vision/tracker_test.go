package vision

import (
	"testing"
	"time"
)

func testConfig() EngineConfig {
	cfg := DefaultEngineConfig()
	cfg.LineY = 240
	cfg.MaxDistance = 120
	cfg.MaxDisappeared = 3
	cfg.HistorySize = 10
	return cfg
}

func det(x, y float32) Detection {
	// Centroid lands exactly on (x, y).
	return Detection{BBox: BBox{X: x - 10, Y: y - 20, W: 20, H: 40}, Confidence: 0.9}
}

func TestTrackerRegistersNewTracks(t *testing.T) {
	tracker := NewTracker(testConfig())
	now := time.Now()

	updated, evicted := tracker.Update([]Detection{det(100, 100), det(300, 100)}, now)

	if len(updated) != 2 {
		t.Fatalf("expected 2 updated tracks, got %d", len(updated))
	}
	if len(evicted) != 0 {
		t.Errorf("expected no evictions, got %d", len(evicted))
	}
	if tracker.Len() != 2 {
		t.Errorf("expected 2 live tracks, got %d", tracker.Len())
	}

	// IDs assigned in detection order.
	if id := tracker.Get(updated[0]).ID; id != 1 {
		t.Errorf("expected first track ID=1, got %d", id)
	}
	if id := tracker.Get(updated[1]).ID; id != 2 {
		t.Errorf("expected second track ID=2, got %d", id)
	}
}

func TestTrackerMatchesNearestWithinGate(t *testing.T) {
	tracker := NewTracker(testConfig())
	now := time.Now()

	tracker.Update([]Detection{det(100, 100)}, now)
	updated, _ := tracker.Update([]Detection{det(110, 105)}, now.Add(33*time.Millisecond))

	if len(updated) != 1 {
		t.Fatalf("expected 1 updated track, got %d", len(updated))
	}
	track := tracker.Get(updated[0])
	if track.ID != 1 {
		t.Errorf("expected detection matched to track 1, got %d", track.ID)
	}
	if len(track.History) != 2 {
		t.Errorf("expected history length 2, got %d", len(track.History))
	}
}

func TestTrackerBeyondGateCreatesNewTrack(t *testing.T) {
	tracker := NewTracker(testConfig())
	now := time.Now()

	tracker.Update([]Detection{det(100, 100)}, now)
	tracker.Update([]Detection{det(400, 400)}, now.Add(33*time.Millisecond))

	if tracker.Len() != 2 {
		t.Errorf("expected far detection to create a new track, Len=%d", tracker.Len())
	}
}

func TestTrackerNoSwapOnCloseTracks(t *testing.T) {
	// Two tracks 10px apart must re-match to their own priors, not swap,
	// when same-track distance is smaller than swap distance.
	cfg := testConfig()
	cfg.MaxDistance = 50
	tracker := NewTracker(cfg)
	now := time.Now()

	updated, _ := tracker.Update([]Detection{det(100, 200), det(110, 200)}, now)
	idA := tracker.Get(updated[0]).ID
	idB := tracker.Get(updated[1]).ID

	// Both drift down slightly; each stays closest to its own prior.
	updated, _ = tracker.Update([]Detection{det(101, 203), det(111, 203)}, now.Add(33*time.Millisecond))
	if len(updated) != 2 {
		t.Fatalf("expected 2 updated tracks, got %d", len(updated))
	}

	for _, h := range updated {
		track := tracker.Get(h)
		last := track.Last()
		switch track.ID {
		case idA:
			if last.X != 101 {
				t.Errorf("track %d matched wrong detection: x=%v", idA, last.X)
			}
		case idB:
			if last.X != 111 {
				t.Errorf("track %d matched wrong detection: x=%v", idB, last.X)
			}
		default:
			t.Errorf("unexpected track ID %d", track.ID)
		}
	}
}

func TestTrackerZeroDetectionsAgesAllTracks(t *testing.T) {
	tracker := NewTracker(testConfig())
	now := time.Now()

	tracker.Update([]Detection{det(100, 100), det(300, 100)}, now)
	updated, evicted := tracker.Update(nil, now.Add(33*time.Millisecond))

	if len(updated) != 0 {
		t.Errorf("expected no updated tracks, got %d", len(updated))
	}
	if len(evicted) != 0 {
		t.Errorf("expected no evictions yet, got %d", len(evicted))
	}
	if tracker.Len() != 2 {
		t.Errorf("expected 2 live tracks, got %d", tracker.Len())
	}
}

func TestTrackerEvictionAfterCeiling(t *testing.T) {
	cfg := testConfig()
	cfg.MaxDisappeared = 3
	tracker := NewTracker(cfg)
	now := time.Now()

	tracker.Update([]Detection{det(100, 100)}, now)

	// Ceiling is exceeded, not merely reached: 4 missed frames for 3.
	var evicted []Eviction
	for i := 0; i < 4; i++ {
		now = now.Add(33 * time.Millisecond)
		_, ev := tracker.Update(nil, now)
		evicted = append(evicted, ev...)
	}

	if len(evicted) != 1 {
		t.Fatalf("expected 1 eviction, got %d", len(evicted))
	}
	if evicted[0].TrackID != 1 {
		t.Errorf("expected track 1 evicted, got %d", evicted[0].TrackID)
	}
	if tracker.Len() != 0 {
		t.Errorf("expected empty tracker, got Len=%d", tracker.Len())
	}
}

func TestTrackerIDsNeverReused(t *testing.T) {
	cfg := testConfig()
	cfg.MaxDisappeared = 1
	tracker := NewTracker(cfg)
	now := time.Now()

	tracker.Update([]Detection{det(100, 100)}, now)
	for i := 0; i < 2; i++ {
		now = now.Add(33 * time.Millisecond)
		tracker.Update(nil, now)
	}
	if tracker.Len() != 0 {
		t.Fatal("expected track evicted")
	}

	// New registration reuses the arena slot but must get a fresh ID.
	updated, _ := tracker.Update([]Detection{det(100, 100)}, now.Add(33*time.Millisecond))
	track := tracker.Get(updated[0])
	if track.ID != 2 {
		t.Errorf("expected fresh ID=2 on reused slot, got %d", track.ID)
	}
	if track.Crossed || track.Side != SideUnset || track.Disappeared != 0 {
		t.Errorf("recycled slot not reset: %+v", track)
	}
}

func TestTrackerHistoryBounded(t *testing.T) {
	cfg := testConfig()
	cfg.HistorySize = 5
	tracker := NewTracker(cfg)
	now := time.Now()

	for i := 0; i < 20; i++ {
		tracker.Update([]Detection{det(100+float32(i), 100)}, now.Add(time.Duration(i)*33*time.Millisecond))
	}

	updated, _ := tracker.Update([]Detection{det(120, 100)}, now.Add(time.Second))
	track := tracker.Get(updated[0])
	if len(track.History) != 5 {
		t.Errorf("expected history bounded at 5, got %d", len(track.History))
	}
	if track.Last().X != 120 {
		t.Errorf("expected newest point retained, got x=%v", track.Last().X)
	}
}

func TestTrackerGreedyTakesClosestPairFirst(t *testing.T) {
	tracker := NewTracker(testConfig())
	now := time.Now()

	tracker.Update([]Detection{det(100, 200), det(130, 200)}, now)

	// Globally closest pair is track 2 to x=120 (distance 10), which
	// leaves track 1 the detection at x=160 (distance 60).
	updated, _ := tracker.Update([]Detection{det(120, 200), det(160, 200)}, now.Add(33*time.Millisecond))
	if len(updated) != 2 {
		t.Fatalf("expected 2 updated tracks, got %d", len(updated))
	}

	for _, h := range updated {
		track := tracker.Get(h)
		last := track.Last()
		if track.ID == 1 && last.X != 160 {
			t.Errorf("greedy: track 1 should take x=160, got %v", last.X)
		}
		if track.ID == 2 && last.X != 120 {
			t.Errorf("greedy: track 2 should take x=120, got %v", last.X)
		}
	}
}

func TestTrackerOptimalAssignment(t *testing.T) {
	cfg := testConfig()
	cfg.Assignment = AssignOptimal
	tracker := NewTracker(cfg)
	now := time.Now()

	tracker.Update([]Detection{det(100, 200), det(130, 200)}, now)

	// Greedy matches track 2 to x=120 (total cost 10+60); the optimal
	// solution pairs track 1 with x=120 and track 2 with x=160 (20+30).
	updated, _ := tracker.Update([]Detection{det(120, 200), det(160, 200)}, now.Add(33*time.Millisecond))
	if len(updated) != 2 {
		t.Fatalf("expected 2 updated tracks, got %d", len(updated))
	}

	for _, h := range updated {
		track := tracker.Get(h)
		last := track.Last()
		if track.ID == 1 && last.X != 120 {
			t.Errorf("optimal: track 1 should take x=120, got %v", last.X)
		}
		if track.ID == 2 && last.X != 160 {
			t.Errorf("optimal: track 2 should take x=160, got %v", last.X)
		}
	}
}

func TestTrackerEvictAll(t *testing.T) {
	tracker := NewTracker(testConfig())
	now := time.Now()

	tracker.Update([]Detection{det(100, 100), det(300, 100)}, now)
	evicted := tracker.EvictAll()

	if len(evicted) != 2 {
		t.Fatalf("expected 2 evictions, got %d", len(evicted))
	}
	if tracker.Len() != 0 {
		t.Errorf("expected empty tracker, got %d", tracker.Len())
	}
}
