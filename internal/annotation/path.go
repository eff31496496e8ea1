// Package annotation holds the single contour being annotated: an ordered
// list of image-space points that reads as an open polyline until its last
// point returns to the first.
package annotation

import (
	"polygon-annotator/pkg/geometry"
)

// CloseThreshold is the image-space distance under which the last point is
// considered to have returned to the anchor.
const CloseThreshold = 10.0

// MinClosedPoints is the smallest number of points that can form a closed
// contour.
const MinClosedPoints = 3

// Path is an ordered sequence of image-space points. Insertion order is the
// polyline order and the first point is the closure anchor. Points are only
// ever appended or removed from the end.
type Path struct {
	points []geometry.Point2D
}

// New returns an empty path.
func New() *Path {
	return &Path{}
}

// FromPoints returns a path holding a copy of pts, in order.
func FromPoints(pts []geometry.Point2D) *Path {
	p := &Path{points: make([]geometry.Point2D, len(pts))}
	copy(p.points, pts)
	return p
}

// Add appends pt if it lies inside the image bounds [0,w] x [0,h] and
// reports whether it was recorded. Points outside the image are dropped.
func (p *Path) Add(pt geometry.Point2D, bounds geometry.Size) bool {
	if !bounds.Contains(pt) {
		return false
	}
	p.points = append(p.points, pt)
	return true
}

// Undo removes the most recent point. It reports false on an empty path.
func (p *Path) Undo() bool {
	if len(p.points) == 0 {
		return false
	}
	p.points = p.points[:len(p.points)-1]
	return true
}

// Reset removes every point.
func (p *Path) Reset() {
	p.points = nil
}

// Len returns the number of points.
func (p *Path) Len() int {
	return len(p.points)
}

// Points returns a copy of the points in order.
func (p *Path) Points() []geometry.Point2D {
	out := make([]geometry.Point2D, len(p.points))
	copy(out, p.points)
	return out
}

// Anchor returns the first point.
func (p *Path) Anchor() (geometry.Point2D, bool) {
	if len(p.points) == 0 {
		return geometry.Point2D{}, false
	}
	return p.points[0], true
}

// IsClosed reports whether the path has at least three points and its last
// point lies strictly within CloseThreshold of the first.
func (p *Path) IsClosed() bool {
	return IsClosed(p.points)
}

// IsClosed applies the closure rule to an arbitrary point list.
func IsClosed(pts []geometry.Point2D) bool {
	if len(pts) < MinClosedPoints {
		return false
	}
	return pts[0].Distance(pts[len(pts)-1]) < CloseThreshold
}
