package vision

import (
	"fmt"
	"time"
)

// EntryDirection states which side-to-side transition counts as an entry.
type EntryDirection string

const (
	// EntryDown means a centroid moving from above the line to below it
	// is entering the venue (camera above the door looking out).
	EntryDown EntryDirection = "down"
	// EntryUp is the opposite mounting.
	EntryUp EntryDirection = "up"
)

// AssignmentMode selects the detection-to-track association algorithm.
type AssignmentMode string

const (
	// AssignGreedy repeatedly matches the globally closest pair. Matches
	// the original system and is deterministic; the default.
	AssignGreedy AssignmentMode = "greedy"
	// AssignOptimal solves the assignment problem exactly. Worth the
	// O(n³) on crowded doorways where greedy can split tracks.
	AssignOptimal AssignmentMode = "optimal"
)

// EngineConfig holds every tunable of the counting engine. Validate is
// called at startup and any failure is fatal; the engine never runs on
// silently defaulted values.
type EngineConfig struct {
	// Counting line.
	LineY          float32
	FrameHeight    float32
	EntryDirection EntryDirection

	// Association.
	MaxDistance    float32 // pixels
	MaxDisappeared int     // frames before eviction
	HistorySize    int     // centroid history window
	Assignment     AssignmentMode

	// Detection filtering.
	ConfidenceThreshold float32

	// Dwell thresholds.
	WarningThreshold time.Duration
	AlertThreshold   time.Duration
	TargetDwell      time.Duration

	// Periodic work.
	TickInterval     time.Duration // escalation checks
	SnapshotInterval time.Duration // persisted occupancy snapshots
}

// DefaultEngineConfig returns the defaults for a 640x480 doorway camera at
// 30fps. max_disappeared=30 is one second of absence.
func DefaultEngineConfig() EngineConfig {
	return EngineConfig{
		LineY:               300,
		FrameHeight:         480,
		EntryDirection:      EntryDown,
		MaxDistance:         50,
		MaxDisappeared:      30,
		HistorySize:         30,
		Assignment:          AssignGreedy,
		ConfidenceThreshold: 0.4,
		WarningThreshold:    90 * time.Minute,
		AlertThreshold:      120 * time.Minute,
		TargetDwell:         60 * time.Minute,
		TickInterval:        time.Second,
		SnapshotInterval:    60 * time.Second,
	}
}

// Validate checks the configuration. All violations are startup-fatal.
func (c EngineConfig) Validate() error {
	if c.FrameHeight <= 0 {
		return fmt.Errorf("frame_height must be positive, got %v", c.FrameHeight)
	}
	if c.LineY < 0 || c.LineY > c.FrameHeight {
		return fmt.Errorf("line_y %v outside frame bounds [0, %v]", c.LineY, c.FrameHeight)
	}
	if c.EntryDirection != EntryUp && c.EntryDirection != EntryDown {
		return fmt.Errorf("entry_direction must be %q or %q, got %q", EntryUp, EntryDown, c.EntryDirection)
	}
	if c.MaxDistance <= 0 {
		return fmt.Errorf("max_distance must be positive, got %v", c.MaxDistance)
	}
	if c.MaxDisappeared < 1 {
		return fmt.Errorf("max_disappeared must be >= 1, got %d", c.MaxDisappeared)
	}
	if c.HistorySize < 2 {
		return fmt.Errorf("history_size must be >= 2 for direction inference, got %d", c.HistorySize)
	}
	if c.Assignment != AssignGreedy && c.Assignment != AssignOptimal {
		return fmt.Errorf("assignment must be %q or %q, got %q", AssignGreedy, AssignOptimal, c.Assignment)
	}
	if c.ConfidenceThreshold < 0 || c.ConfidenceThreshold > 1 {
		return fmt.Errorf("confidence_threshold must be in [0,1], got %v", c.ConfidenceThreshold)
	}
	if c.WarningThreshold <= 0 || c.AlertThreshold <= 0 {
		return fmt.Errorf("dwell thresholds must be positive (warning=%v alert=%v)", c.WarningThreshold, c.AlertThreshold)
	}
	if c.AlertThreshold < c.WarningThreshold {
		return fmt.Errorf("alert_threshold %v below warning_threshold %v", c.AlertThreshold, c.WarningThreshold)
	}
	if c.TargetDwell < 0 {
		return fmt.Errorf("target_dwell must not be negative, got %v", c.TargetDwell)
	}
	if c.TickInterval <= 0 {
		return fmt.Errorf("tick_interval must be positive, got %v", c.TickInterval)
	}
	if c.SnapshotInterval <= 0 {
		return fmt.Errorf("snapshot_interval must be positive, got %v", c.SnapshotInterval)
	}
	return nil
}
