package geom

import "math"

// Point is a 2D pixel coordinate
type Point struct {
	X float64
	Y float64
}

// Pt is shorthand for Point{x, y}
func Pt(x, y float64) Point {
	return Point{X: x, Y: y}
}

// Offset returns the point shifted by (dx, dy)
func (p Point) Offset(dx, dy float64) Point {
	return Point{X: p.X + dx, Y: p.Y + dy}
}

// Dist returns the Euclidean distance to q
func (p Point) Dist(q Point) float64 {
	return math.Hypot(p.X-q.X, p.Y-q.Y)
}

// Rect is an axis-aligned rectangle
type Rect struct {
	X      float64
	Y      float64
	Width  float64
	Height float64
}

// RectAt builds a rectangle from origin and size
func RectAt(x, y, w, h float64) Rect {
	return Rect{X: x, Y: y, Width: w, Height: h}
}

// Empty reports whether the rectangle has no area
func (r Rect) Empty() bool {
	return r.Width <= 0 || r.Height <= 0
}

// Right returns the X coordinate of the right edge
func (r Rect) Right() float64 {
	return r.X + r.Width
}

// Bottom returns the Y coordinate of the bottom edge
func (r Rect) Bottom() float64 {
	return r.Y + r.Height
}

// Center returns the midpoint of the rectangle
func (r Rect) Center() Point {
	return Point{X: r.X + r.Width/2, Y: r.Y + r.Height/2}
}

// Area returns Width*Height, or 0 for an empty rectangle
func (r Rect) Area() float64 {
	if r.Empty() {
		return 0
	}
	return r.Width * r.Height
}

// Contains reports whether p lies inside the rectangle (edges included)
func (r Rect) Contains(p Point) bool {
	return p.X >= r.X && p.X <= r.Right() && p.Y >= r.Y && p.Y <= r.Bottom()
}

// Expand grows the rectangle by d pixels on every side.
// A negative d shrinks it; the result may become empty.
func (r Rect) Expand(d float64) Rect {
	return Rect{X: r.X - d, Y: r.Y - d, Width: r.Width + 2*d, Height: r.Height + 2*d}
}

// Intersect returns the overlapping region of two rectangles.
// A zero Rect is returned when they do not overlap.
func (r Rect) Intersect(o Rect) Rect {
	x1 := math.Max(r.X, o.X)
	y1 := math.Max(r.Y, o.Y)
	x2 := math.Min(r.Right(), o.Right())
	y2 := math.Min(r.Bottom(), o.Bottom())
	if x2 <= x1 || y2 <= y1 {
		return Rect{}
	}
	return Rect{X: x1, Y: y1, Width: x2 - x1, Height: y2 - y1}
}

// ClampInto shifts the rectangle so it lies within bounds, preserving its
// size. A rectangle larger than bounds is pinned to the bounds origin.
func (r Rect) ClampInto(bounds Rect) Rect {
	x := r.X
	y := r.Y
	if x+r.Width > bounds.Right() {
		x = bounds.Right() - r.Width
	}
	if y+r.Height > bounds.Bottom() {
		y = bounds.Bottom() - r.Height
	}
	if x < bounds.X {
		x = bounds.X
	}
	if y < bounds.Y {
		y = bounds.Y
	}
	return Rect{X: x, Y: y, Width: r.Width, Height: r.Height}
}

// NearestPoint returns the point on the rectangle's edge closest to p.
// For points outside the rectangle this is the usual clamp; for points
// inside, p is projected onto the nearest side.
func (r Rect) NearestPoint(p Point) Point {
	cx := clamp(p.X, r.X, r.Right())
	cy := clamp(p.Y, r.Y, r.Bottom())
	if cx != p.X || cy != p.Y {
		return Point{X: cx, Y: cy}
	}
	// Inside: project to the closest of the four sides.
	dLeft := p.X - r.X
	dRight := r.Right() - p.X
	dTop := p.Y - r.Y
	dBottom := r.Bottom() - p.Y
	min := dLeft
	out := Point{X: r.X, Y: p.Y}
	if dRight < min {
		min = dRight
		out = Point{X: r.Right(), Y: p.Y}
	}
	if dTop < min {
		min = dTop
		out = Point{X: p.X, Y: r.Y}
	}
	if dBottom < min {
		out = Point{X: p.X, Y: r.Bottom()}
	}
	return out
}

// DistTo returns the distance from p to the rectangle's nearest edge point
func (r Rect) DistTo(p Point) float64 {
	return p.Dist(r.NearestPoint(p))
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
