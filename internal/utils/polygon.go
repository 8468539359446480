package utils

import (
	"image"
	"math"
)

// PolygonArea returns the unsigned area enclosed by the closed polygon pts
// using the shoelace formula. Vertices are pixel centres, so a single pixel or
// a straight run of pixels has zero area.
func PolygonArea(pts []image.Point) float64 {
	if len(pts) < 3 {
		return 0
	}
	var sum int64
	prev := pts[len(pts)-1]
	for _, p := range pts {
		sum += int64(prev.X)*int64(p.Y) - int64(p.X)*int64(prev.Y)
		prev = p
	}
	return math.Abs(float64(sum)) / 2
}

// BoundingRect returns the smallest rectangle containing every point of pts.
// The rectangle is half-open, so a single point yields a 1x1 rectangle.
func BoundingRect(pts []image.Point) image.Rectangle {
	if len(pts) == 0 {
		return image.Rectangle{}
	}
	r := image.Rectangle{Min: pts[0], Max: pts[0].Add(image.Pt(1, 1))}
	for _, p := range pts[1:] {
		r = r.Union(image.Rectangle{Min: p, Max: p.Add(image.Pt(1, 1))})
	}
	return r
}
