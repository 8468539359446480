package utils

import (
	"image"
	"image/color"
	"image/draw"
)

// DrawLine plots a line between a and b with Bresenham's algorithm.
// Pixels outside dst are skipped.
func DrawLine(dst draw.Image, a, b image.Point, col color.Color, thickness int) {
	x0, y0 := a.X, a.Y
	x1, y1 := b.X, b.Y
	dx := abs(x1 - x0)
	sx := -1
	if x0 < x1 {
		sx = 1
	}
	dy := -abs(y1 - y0)
	sy := -1
	if y0 < y1 {
		sy = 1
	}
	err := dx + dy
	for {
		drawThickPoint(dst, x0, y0, col, thickness)
		if x0 == x1 && y0 == y1 {
			break
		}
		e2 := 2 * err
		if e2 >= dy {
			err += dy
			x0 += sx
		}
		if e2 <= dx {
			err += dx
			y0 += sy
		}
	}
}

// DrawPolygon outlines the closed polygon pts.
func DrawPolygon(dst draw.Image, pts []image.Point, col color.Color, thickness int) {
	if len(pts) == 0 {
		return
	}
	if len(pts) == 1 {
		drawThickPoint(dst, pts[0].X, pts[0].Y, col, thickness)
		return
	}
	for i := range pts {
		DrawLine(dst, pts[i], pts[(i+1)%len(pts)], col, thickness)
	}
}

func drawThickPoint(dst draw.Image, x, y int, col color.Color, thickness int) {
	if thickness < 1 {
		thickness = 1
	}
	r := (thickness - 1) / 2
	bounds := dst.Bounds()
	for yy := y - r; yy <= y+r; yy++ {
		for xx := x - r; xx <= x+r; xx++ {
			if image.Pt(xx, yy).In(bounds) {
				dst.Set(xx, yy, col)
			}
		}
	}
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
