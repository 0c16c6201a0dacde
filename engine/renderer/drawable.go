package renderer

import "log"

// Key is the world attribute key a Renderer is stored under. Entities carrying
// one are collected by the frame executor every frame.
const Key = "renderer"

// Renderer is the drawable attribute: a pass reference plus the entity's
// per-instance values. Property values default to zero until set.
type Renderer struct {
	pass *pass

	depth      float32
	layer      float32
	properties []float32
}

// NewRenderer creates a drawable attribute bound to a pass. The property
// storage is sized from the pass shader's declared properties.
//
// Parameters:
//   - p: a Pass created by Graphics.CreateRenderPass
//
// Returns:
//   - *Renderer: the newly created attribute
func NewRenderer(p Pass) *Renderer {
	ps, ok := p.(*pass)
	if !ok || ps == nil {
		log.Printf("[Renderer] drawable created without a registered pass; it will never draw")
		return &Renderer{}
	}
	return &Renderer{
		pass:       ps,
		properties: make([]float32, ps.shader.Stride()-ps.customBase()),
	}
}

// Pass returns the pass the drawable is bound to, or nil if it was created
// without one.
//
// Returns:
//   - Pass: the bound pass
func (r *Renderer) Pass() Pass {
	if r.pass == nil {
		return nil
	}
	return r.pass
}

// SetProperty sets one declared per-instance property. Undeclared names and
// wrong component counts log a warning and leave the values unchanged.
// Component counts are 1 for float/int, 2 for vec2, and 9 for mat3
// (column-major).
//
// Parameters:
//   - name: a property declared by the pass's shader
//   - values: the components to store
func (r *Renderer) SetProperty(name string, values ...float32) {
	if r.pass == nil {
		return
	}
	prop, ok := r.pass.shader.Property(name)
	if !ok {
		log.Printf("[Renderer] property %q is not declared by shader %q", name, r.pass.shader.Key())
		return
	}
	if len(values) != prop.Type.Slots() {
		log.Printf("[Renderer] property %q on shader %q expects %d components, got %d", name, r.pass.shader.Key(), prop.Type.Slots(), len(values))
		return
	}
	copy(r.properties[prop.Offset-r.pass.customBase():], values)
}

// SetDepth sets the drawable's depth hint, clamped to [0, 1]. Higher values
// draw behind lower ones.
//
// Parameters:
//   - depth: the depth hint
func (r *Renderer) SetDepth(depth float32) {
	if depth < 0 {
		depth = 0
	}
	if depth > 1 {
		depth = 1
	}
	r.depth = depth
}

// Depth returns the drawable's depth hint.
//
// Returns:
//   - float32: the depth hint in [0, 1]
func (r *Renderer) Depth() float32 {
	return r.depth
}

// SetLayer sets the texture array layer the drawable samples.
//
// Parameters:
//   - layer: the layer index
func (r *Renderer) SetLayer(layer int) {
	r.layer = float32(layer)
}

// Layer returns the drawable's texture array layer.
//
// Returns:
//   - int: the layer index
func (r *Renderer) Layer() int {
	return int(r.layer)
}
