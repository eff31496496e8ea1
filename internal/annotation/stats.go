package annotation

import (
	"polygon-annotator/pkg/geometry"

	"gonum.org/v1/gonum/spatial/r2"
)

// Perimeter returns the length of the polyline. For a closed path the
// implicit edge from the last point back to the anchor is included.
func (p *Path) Perimeter() float64 {
	if len(p.points) < 2 {
		return 0
	}

	var total float64
	for i := 1; i < len(p.points); i++ {
		total += r2.Norm(r2.Sub(vec(p.points[i]), vec(p.points[i-1])))
	}
	if p.IsClosed() {
		total += r2.Norm(r2.Sub(vec(p.points[0]), vec(p.points[len(p.points)-1])))
	}
	return total
}

// Area returns the enclosed area in square image pixels, or 0 while the
// path is open.
func (p *Path) Area() float64 {
	if !p.IsClosed() {
		return 0
	}
	return geometry.PolygonArea(p.points)
}

func vec(pt geometry.Point2D) r2.Vec {
	return r2.Vec{X: pt.X, Y: pt.Y}
}
