// Package transform provides the 2D transform attribute carried by entities
// that are positioned in world space.
package transform

import "github.com/go-gl/mathgl/mgl32"

// Key is the world attribute key a Transform is stored under.
const Key = "transform"

// Transform is a 2D position/rotation/scale triple. World-mode render passes
// require every drawable entity to carry one.
type Transform struct {
	Position mgl32.Vec2
	Rotation float32 // radians, counter-clockwise
	Scale    mgl32.Vec2
}

// New creates an identity Transform (origin position, no rotation, unit
// scale).
//
// Returns:
//   - *Transform: the newly created transform
func New() *Transform {
	return &Transform{Scale: mgl32.Vec2{1, 1}}
}

// Matrix composes the transform into a column-major 3x3 matrix applying
// scale, then rotation, then translation.
//
// Returns:
//   - mgl32.Mat3: the local-to-world matrix
func (t *Transform) Matrix() mgl32.Mat3 {
	translate := mgl32.Translate2D(t.Position.X(), t.Position.Y())
	rotate := mgl32.HomogRotate2D(t.Rotation)
	scale := mgl32.Scale2D(t.Scale.X(), t.Scale.Y())
	return translate.Mul3(rotate).Mul3(scale)
}
