package vision

import (
	"testing"
	"time"
)

func observePath(t *testing.T, d *CrossingDetector, tracker *Tracker, ys []float32) []Direction {
	t.Helper()
	now := time.Now()

	var crossings []Direction
	for i, y := range ys {
		updated, _ := tracker.Update([]Detection{det(100, y)}, now.Add(time.Duration(i)*33*time.Millisecond))
		if len(updated) != 1 {
			t.Fatalf("frame %d: expected 1 track, got %d", i, len(updated))
		}
		if dir, ok := d.Observe(tracker.Get(updated[0])); ok {
			crossings = append(crossings, dir)
		}
	}
	return crossings
}

func TestCrossingEntryDown(t *testing.T) {
	cfg := testConfig()
	cfg.LineY = 240
	cfg.EntryDirection = EntryDown

	// Three frames above the line, then one below: exactly one entry.
	crossings := observePath(t, NewCrossingDetector(cfg), NewTracker(cfg), []float32{200, 200, 200, 260})
	if len(crossings) != 1 {
		t.Fatalf("expected 1 crossing, got %d", len(crossings))
	}
	if crossings[0] != DirectionEntry {
		t.Errorf("expected entry, got %v", crossings[0])
	}
}

func TestCrossingExitDown(t *testing.T) {
	cfg := testConfig()
	cfg.LineY = 240
	cfg.EntryDirection = EntryDown

	crossings := observePath(t, NewCrossingDetector(cfg), NewTracker(cfg), []float32{300, 300, 200})
	if len(crossings) != 1 || crossings[0] != DirectionExit {
		t.Errorf("expected single exit, got %v", crossings)
	}
}

func TestCrossingEntryUp(t *testing.T) {
	cfg := testConfig()
	cfg.LineY = 240
	cfg.EntryDirection = EntryUp

	// Same movement that is an exit under entry_direction=down.
	crossings := observePath(t, NewCrossingDetector(cfg), NewTracker(cfg), []float32{300, 300, 200})
	if len(crossings) != 1 || crossings[0] != DirectionEntry {
		t.Errorf("expected single entry with entry_direction=up, got %v", crossings)
	}
}

func TestCrossingNoSecondCrossing(t *testing.T) {
	cfg := testConfig()
	cfg.LineY = 240
	cfg.EntryDirection = EntryDown

	// A track lingering on the line oscillates across it; only the first
	// transition counts.
	crossings := observePath(t, NewCrossingDetector(cfg), NewTracker(cfg),
		[]float32{200, 260, 200, 260, 200})
	if len(crossings) != 1 {
		t.Errorf("expected latch to suppress repeat crossings, got %d", len(crossings))
	}
}

func TestCrossingNoTransitionSameSide(t *testing.T) {
	cfg := testConfig()
	cfg.LineY = 240

	crossings := observePath(t, NewCrossingDetector(cfg), NewTracker(cfg),
		[]float32{100, 150, 200, 230})
	if len(crossings) != 0 {
		t.Errorf("track never crossed the line, got %d crossings", len(crossings))
	}
}

func TestCrossingFirstObservationSetsSideOnly(t *testing.T) {
	cfg := testConfig()
	cfg.LineY = 240
	d := NewCrossingDetector(cfg)
	tracker := NewTracker(cfg)

	// A track that first appears below the line must not fire a crossing;
	// there is no previous side to transition from.
	updated, _ := tracker.Update([]Detection{det(100, 300)}, time.Now())
	if _, ok := d.Observe(tracker.Get(updated[0])); ok {
		t.Error("first observation must not fire a crossing")
	}
	if tracker.Get(updated[0]).Side != SideBelow {
		t.Errorf("side not classified on first observation")
	}
}
