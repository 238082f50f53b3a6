package domain

import "math"

// Point is a position in page coordinates.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Sub returns p - q.
func (p Point) Sub(q Point) Point {
	return Point{X: p.X - q.X, Y: p.Y - q.Y}
}

// Along returns the coordinate of p on the given axis.
func (p Point) Along(a Axis) float64 {
	if a == AxisX {
		return p.X
	}
	return p.Y
}

// Rect is an axis-aligned rectangle in page coordinates.
type Rect struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Contains reports whether p lies inside r, edges included.
func (r Rect) Contains(p Point) bool {
	return p.X >= r.X && p.X <= r.X+r.Width && p.Y >= r.Y && p.Y <= r.Y+r.Height
}

// Center returns the midpoint of r.
func (r Rect) Center() Point {
	return Point{X: r.X + r.Width/2, Y: r.Y + r.Height/2}
}

// Empty reports whether r has no area.
func (r Rect) Empty() bool {
	return r.Width <= 0 || r.Height <= 0
}

// Axis selects a direction of motion.
type Axis int

const (
	AxisY Axis = iota
	AxisX
)

// Cross returns the perpendicular axis.
func (a Axis) Cross() Axis {
	if a == AxisX {
		return AxisY
	}
	return AxisX
}

func (a Axis) String() string {
	if a == AxisX {
		return "x"
	}
	return "y"
}

// DominantAxis returns the axis carrying most of the motion.
// Vertical wins when both components are equal, which matches block flow.
func DominantAxis(dx, dy float64) Axis {
	if math.Abs(dx) > math.Abs(dy) {
		return AxisX
	}
	return AxisY
}
