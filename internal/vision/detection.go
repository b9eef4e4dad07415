package vision

import "time"

// BBox is a person bounding box in pixel coordinates (top-left corner plus
// width and height).
type BBox struct {
	X float32 `json:"x"`
	Y float32 `json:"y"`
	W float32 `json:"w"`
	H float32 `json:"h"`
}

// Centroid returns the center point of the box.
func (b BBox) Centroid() Point {
	return Point{X: b.X + b.W/2, Y: b.Y + b.H/2}
}

// Detection is one person detection delivered by the vision sidecar for a
// single frame. Detections are consumed immediately and never retained.
type Detection struct {
	BBox       BBox      `json:"bbox"`
	Confidence float32   `json:"confidence"`
	Timestamp  time.Time `json:"-"`
}

// FilterByConfidence returns the detections at or above threshold, preserving
// order. The input slice is not modified.
func FilterByConfidence(dets []Detection, threshold float32) []Detection {
	kept := make([]Detection, 0, len(dets))
	for _, d := range dets {
		if d.Confidence >= threshold {
			kept = append(kept, d)
		}
	}
	return kept
}
