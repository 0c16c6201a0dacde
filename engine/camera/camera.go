package camera

import "github.com/go-gl/mathgl/mgl32"

// camera is the implementation of the Camera interface.
type camera struct {
	position mgl32.Vec2
	rotation float32
	zoom     float32
}

// Camera defines the 2D view used to derive the per-pass view transform.
// Zoom is expressed in pixels per world unit; the view maps world space to
// normalized device coordinates for the current viewport size.
type Camera interface {
	// Position returns the camera's world-space position.
	//
	// Returns:
	//   - mgl32.Vec2: the position
	Position() mgl32.Vec2

	// SetPosition moves the camera.
	//
	// Parameters:
	//   - p: the new world-space position
	SetPosition(p mgl32.Vec2)

	// Rotation returns the camera's rotation in radians.
	//
	// Returns:
	//   - float32: the rotation
	Rotation() float32

	// SetRotation rotates the camera.
	//
	// Parameters:
	//   - radians: the new rotation
	SetRotation(radians float32)

	// Zoom returns the camera's zoom in pixels per world unit.
	//
	// Returns:
	//   - float32: the zoom factor
	Zoom() float32

	// SetZoom sets the camera's zoom. Values <= 0 are ignored.
	//
	// Parameters:
	//   - zoom: pixels per world unit
	SetZoom(zoom float32)

	// View composes the world-to-NDC matrix for a viewport of the given
	// pixel size: inverse camera translation, inverse rotation, then the
	// zoom-scaled NDC projection.
	//
	// Parameters:
	//   - width: viewport width in pixels
	//   - height: viewport height in pixels
	//
	// Returns:
	//   - mgl32.Mat3: the view matrix (column-major)
	View(width, height int) mgl32.Mat3
}

var _ Camera = &camera{}

// CameraBuilderOption is a functional option for configuring a Camera.
type CameraBuilderOption func(*camera)

// WithPosition sets the camera's initial world-space position.
//
// Parameters:
//   - p: the position
//
// Returns:
//   - CameraBuilderOption: option function to apply
func WithPosition(p mgl32.Vec2) CameraBuilderOption {
	return func(c *camera) {
		c.position = p
	}
}

// WithZoom sets the camera's initial zoom in pixels per world unit.
// Values <= 0 are ignored.
//
// Parameters:
//   - zoom: pixels per world unit
//
// Returns:
//   - CameraBuilderOption: option function to apply
func WithZoom(zoom float32) CameraBuilderOption {
	return func(c *camera) {
		if zoom > 0 {
			c.zoom = zoom
		}
	}
}

// NewCamera creates a Camera at the origin with a default zoom of 100 pixels
// per world unit.
//
// Parameters:
//   - options: functional options to configure the camera
//
// Returns:
//   - Camera: the newly created camera
func NewCamera(options ...CameraBuilderOption) Camera {
	c := &camera{zoom: 100}
	for _, opt := range options {
		opt(c)
	}
	return c
}

func (c *camera) Position() mgl32.Vec2 {
	return c.position
}

func (c *camera) SetPosition(p mgl32.Vec2) {
	c.position = p
}

func (c *camera) Rotation() float32 {
	return c.rotation
}

func (c *camera) SetRotation(radians float32) {
	c.rotation = radians
}

func (c *camera) Zoom() float32 {
	return c.zoom
}

func (c *camera) SetZoom(zoom float32) {
	if zoom > 0 {
		c.zoom = zoom
	}
}

func (c *camera) View(width, height int) mgl32.Mat3 {
	if width < 1 {
		width = 1
	}
	if height < 1 {
		height = 1
	}
	project := mgl32.Scale2D(2*c.zoom/float32(width), 2*c.zoom/float32(height))
	rotate := mgl32.HomogRotate2D(-c.rotation)
	translate := mgl32.Translate2D(-c.position.X(), -c.position.Y())
	return project.Mul3(rotate).Mul3(translate)
}
