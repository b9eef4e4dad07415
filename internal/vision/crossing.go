package vision

// CrossingDetector classifies track centroids against the counting line and
// detects directional transitions.
type CrossingDetector struct {
	lineY    float32
	entryDir EntryDirection
}

// NewCrossingDetector creates a detector for the configured line.
func NewCrossingDetector(cfg EngineConfig) *CrossingDetector {
	return &CrossingDetector{lineY: cfg.LineY, entryDir: cfg.EntryDirection}
}

// Observe inspects a track whose history was just extended. It returns the
// crossing direction and true when the track transitioned across the line
// for the first time in its life. The side classification is updated
// unconditionally so it stays current even when no crossing fires.
func (d *CrossingDetector) Observe(t *Track) (Direction, bool) {
	side := SideOfLine(t.Last().Y, d.lineY)
	prev := t.Side
	t.Side = side

	if prev == SideUnset || prev == side || t.Crossed {
		return "", false
	}

	// Latch: one crossing per track lifetime. A person lingering on the
	// line must leave the frame and re-enter to be counted again.
	t.Crossed = true

	movedDown := prev == SideAbove && side == SideBelow
	if (movedDown && d.entryDir == EntryDown) || (!movedDown && d.entryDir == EntryUp) {
		return DirectionEntry, true
	}
	return DirectionExit, true
}
