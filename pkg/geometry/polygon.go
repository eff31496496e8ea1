package geometry

import "math"

// PolygonArea returns the unsigned area of a simple polygon using the
// shoelace formula. The closing edge from the last vertex back to the first
// is implicit. Fewer than three vertices have zero area.
func PolygonArea(polygon []Point2D) float64 {
	if len(polygon) < 3 {
		return 0
	}

	o := polygon[0]
	var twice float64
	for i := 1; i < len(polygon)-1; i++ {
		twice += crossProduct(o, polygon[i], polygon[i+1])
	}
	return math.Abs(twice) / 2
}

// crossProduct computes the cross product of vectors OA and OB.
func crossProduct(o, a, b Point2D) float64 {
	return (a.X-o.X)*(b.Y-o.Y) - (a.Y-o.Y)*(b.X-o.X)
}
