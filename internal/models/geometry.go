package models

import (
	"image"
	"math"
)

// Point2 is a 2D point in either pixel or fit-frame coordinates.
type Point2 struct {
	X, Y float64
}

// Add returns the component-wise sum of p and q.
func (p Point2) Add(q Point2) Point2 {
	return Point2{X: p.X + q.X, Y: p.Y + q.Y}
}

// Sub returns the component-wise difference of p and q.
func (p Point2) Sub(q Point2) Point2 {
	return Point2{X: p.X - q.X, Y: p.Y - q.Y}
}

// Dist returns the Euclidean distance between p and q.
func (p Point2) Dist(q Point2) float64 {
	return math.Hypot(p.X-q.X, p.Y-q.Y)
}

// Rect2 is an axis-aligned rectangle in pixel space.
type Rect2 struct {
	X, Y, W, H float64
}

// Contains reports whether the point (x, y) lies inside the rectangle.
func (r Rect2) Contains(x, y float64) bool {
	return x >= r.X && x < r.X+r.W && y >= r.Y && y < r.Y+r.H
}

// Frame is a captured image together with its capture timestamp in seconds.
type Frame struct {
	Image     image.Image
	Timestamp float64
}

// Height returns the pixel height of the frame image, or zero if the frame
// carries no image.
func (f Frame) Height() int {
	if f.Image == nil {
		return 0
	}
	return f.Image.Bounds().Dy()
}
