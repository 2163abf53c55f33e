// Package annotator implements the review-side annotation engine: pointer
// capture, the revision-scoped annotation view model, overlay rendering, and
// workflow transition orchestration against the Lightbox API.
package annotator

import "math"

// Point is a location in percent-of-media space. Both axes are in [0,100].
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Size is a rectangle extent in percent units. Zero for point and freehand
// annotations.
type Size struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Rect is an axis-aligned rectangle in percent space.
type Rect struct {
	X float64
	Y float64
	W float64
	H float64
}

func clampPercent(v float64) float64 {
	if v < 0 || math.IsNaN(v) {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}

// FromPixel maps a pointer offset within a rendered media element to percent
// space. Offsets outside the element clamp rather than extrapolate, so a drag
// that continues past the edge stays in bounds. Degenerate element sizes map
// to the origin.
func FromPixel(px, py, elemW, elemH float64) Point {
	if elemW <= 0 || elemH <= 0 {
		return Point{}
	}
	return Point{
		X: clampPercent(px / elemW * 100),
		Y: clampPercent(py / elemH * 100),
	}
}

// Clamp returns the point forced into [0,100] on both axes.
func (p Point) Clamp() Point {
	return Point{X: clampPercent(p.X), Y: clampPercent(p.Y)}
}

// RectFromCorners builds the normalized rectangle spanned by two points:
// anchored at the min corner with a non-negative extent.
func RectFromCorners(a, b Point) Rect {
	return Rect{
		X: math.Min(a.X, b.X),
		Y: math.Min(a.Y, b.Y),
		W: math.Abs(b.X - a.X),
		H: math.Abs(b.Y - a.Y),
	}
}

// Contains reports whether the point falls inside the rectangle, edges
// inclusive.
func (r Rect) Contains(p Point) bool {
	return p.X >= r.X && p.X <= r.X+r.W && p.Y >= r.Y && p.Y <= r.Y+r.H
}

// BoundingBox returns the axis-aligned bounding box of a path. An empty path
// yields the zero rect.
func BoundingBox(path []Point) Rect {
	if len(path) == 0 {
		return Rect{}
	}
	minX, minY := path[0].X, path[0].Y
	maxX, maxY := minX, minY
	for _, p := range path[1:] {
		minX = math.Min(minX, p.X)
		minY = math.Min(minY, p.Y)
		maxX = math.Max(maxX, p.X)
		maxY = math.Max(maxY, p.Y)
	}
	return Rect{X: minX, Y: minY, W: maxX - minX, H: maxY - minY}
}

// Center returns the rectangle's midpoint.
func (r Rect) Center() Point {
	return Point{X: r.X + r.W/2, Y: r.Y + r.H/2}
}

func distance(a, b Point) float64 {
	return math.Hypot(b.X-a.X, b.Y-a.Y)
}

// distanceToSegment is the shortest distance from p to the segment ab.
func distanceToSegment(p, a, b Point) float64 {
	dx, dy := b.X-a.X, b.Y-a.Y
	lengthSq := dx*dx + dy*dy
	if lengthSq == 0 {
		return distance(p, a)
	}
	t := ((p.X-a.X)*dx + (p.Y-a.Y)*dy) / lengthSq
	if t < 0 {
		t = 0
	} else if t > 1 {
		t = 1
	}
	return distance(p, Point{X: a.X + t*dx, Y: a.Y + t*dy})
}
