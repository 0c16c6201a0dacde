package renderer

import "fmt"

// PassOption is a functional option applied to a pass during registration via
// CreateRenderPass.
type PassOption func(*pass) error

// WithDrawOrder sets the pass's position in the frame. Lower orders run first;
// passes sharing an order keep registration order. The default is 0.
//
// Parameters:
//   - order: the draw order
//
// Returns:
//   - PassOption: option function to apply
func WithDrawOrder(order int) PassOption {
	return func(p *pass) error {
		p.drawOrder = order
		return nil
	}
}

// WithDepthTest sets the pass's depth comparison. Unknown values are a fatal
// registration error.
//
// Parameters:
//   - t: the DepthTest to use
//
// Returns:
//   - PassOption: option function to apply
func WithDepthTest(t DepthTest) PassOption {
	return func(p *pass) error {
		if !t.valid() {
			return fmt.Errorf("unknown depth test %d", t)
		}
		p.depthTest = t
		return nil
	}
}

// WithDepthWrite controls whether the pass writes the depth attachment.
// The default is true.
//
// Parameters:
//   - write: true to write depth
//
// Returns:
//   - PassOption: option function to apply
func WithDepthWrite(write bool) PassOption {
	return func(p *pass) error {
		p.depthWrite = write
		return nil
	}
}

// WithBlend sets the pass's blend mode. Unknown values are a fatal
// registration error.
//
// Parameters:
//   - m: the BlendMode to use
//
// Returns:
//   - PassOption: option function to apply
func WithBlend(m BlendMode) PassOption {
	return func(p *pass) error {
		if !m.valid() {
			return fmt.Errorf("unknown blend mode %d", m)
		}
		p.blend = m
		return nil
	}
}

// WithPresent marks the pass as the present pass: it targets the default
// framebuffer instead of named render textures and always draws exactly one
// instance.
//
// Returns:
//   - PassOption: option function to apply
func WithPresent() PassOption {
	return func(p *pass) error {
		p.present = true
		return nil
	}
}

// WithTextureOptions configures a named render texture referenced by the
// pass's shader: its resolution scale relative to the surface, whether it
// keeps a history copy for same-frame read/write, and its array layer count.
// Applies registry-wide since textures are shared by name.
//
// Parameters:
//   - name: the render texture name
//   - scale: resolution scale, > 0
//   - swappable: true to double-buffer the texture
//   - layers: array layer count, at least 1
//
// Returns:
//   - PassOption: option function to apply
func WithTextureOptions(name string, scale float64, swappable bool, layers int) PassOption {
	return func(p *pass) error {
		p.pendingTextures = append(p.pendingTextures, textureOptions{
			name:      name,
			scale:     scale,
			swappable: swappable,
			layers:    layers,
		})
		return nil
	}
}
