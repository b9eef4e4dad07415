package vision

import "math"

// Side classifies a point relative to the counting line.
type Side string

const (
	SideUnset Side = ""
	SideAbove Side = "above"
	SideBelow Side = "below"
)

// Point is a centroid position in pixel coordinates. The origin is the top
// left of the frame, so smaller Y means higher in the image.
type Point struct {
	X float32
	Y float32
}

// Distance returns the Euclidean distance between two points in pixels.
func Distance(a, b Point) float32 {
	dx := float64(a.X - b.X)
	dy := float64(a.Y - b.Y)
	return float32(math.Sqrt(dx*dx + dy*dy))
}

// SideOfLine classifies y against the counting line. Points exactly on the
// line count as below, matching the original camera's convention.
func SideOfLine(y, lineY float32) Side {
	if y < lineY {
		return SideAbove
	}
	return SideBelow
}
