package renderer

import (
	"encoding/binary"
	"log"
	"math"

	"github.com/eswaidner/zen/common"
	"github.com/eswaidner/zen/engine/renderer/shader"
	"github.com/go-gl/mathgl/mgl32"
)

// pass is the implementation of the Pass interface.
type pass struct {
	shader    shader.Shader
	drawOrder int

	depthTest  DepthTest
	depthWrite bool
	blend      BlendMode
	present    bool
	enabled    bool

	pipeline Pipeline
	inputs   []*renderTexture
	outputs  []*renderTexture

	// uniformData is the CPU staging copy of the pass uniform block; uploaded
	// whole at every dispatch.
	uniformData   []byte
	uniformBuffer Buffer

	// instanceData is rebuilt from the batch every frame, one record per
	// collected drawable, in collection order.
	instanceData   []float32
	instanceBuffer Buffer

	batch []instanceRecord

	// pendingTextures holds WithTextureOptions declarations until the pass is
	// registered against the shared texture registry.
	pendingTextures []textureOptions
}

// instanceRecord is one collected drawable, snapshot at collect time.
type instanceRecord struct {
	transform  mgl32.Mat3
	depth      float32
	layer      float32
	properties []float32
}

type textureOptions struct {
	name      string
	scale     float64
	swappable bool
	layers    int
}

// Pass is one node of the render pass graph: a shader bound to resolved input
// and output textures, a draw order, and fixed-function state. Passes run every
// frame in ascending draw order; equal orders keep registration order.
type Pass interface {
	// Shader returns the shader the pass draws with.
	//
	// Returns:
	//   - shader.Shader: the pass shader
	Shader() shader.Shader

	// DrawOrder returns the pass's position in the frame. Lower runs first.
	//
	// Returns:
	//   - int: the draw order
	DrawOrder() int

	// Present reports whether the pass targets the default framebuffer.
	//
	// Returns:
	//   - bool: true for the present pass
	Present() bool

	// Enabled reports whether the pass runs during dispatch.
	//
	// Returns:
	//   - bool: true if enabled
	Enabled() bool

	// SetEnabled toggles the pass. Disabled passes are skipped entirely and
	// keep their textures and buffers alive.
	//
	// Parameters:
	//   - enabled: the new state
	SetEnabled(enabled bool)

	// SetUniform stages a uniform value for upload at the next dispatch.
	// Undeclared names, built-in names, and wrong component counts log a
	// warning and leave the block unchanged. Component counts are 1 for
	// float/int, 2 for vec2, and 9 for mat3 (column-major).
	//
	// Parameters:
	//   - name: a uniform declared by the pass's shader
	//   - values: the components to stage
	SetUniform(name string, values ...float32)
}

var _ Pass = &pass{}

func (p *pass) Shader() shader.Shader {
	return p.shader
}

func (p *pass) DrawOrder() int {
	return p.drawOrder
}

func (p *pass) Present() bool {
	return p.present
}

func (p *pass) Enabled() bool {
	return p.enabled
}

func (p *pass) SetEnabled(enabled bool) {
	p.enabled = enabled
}

func (p *pass) SetUniform(name string, values ...float32) {
	if name == shader.ViewUniform || name == shader.WorldUniform {
		log.Printf("[Renderer] uniform %q on shader %q is built-in and written every frame", name, p.shader.Key())
		return
	}
	u, ok := p.shader.Uniform(name)
	if !ok {
		log.Printf("[Renderer] uniform %q is not declared by shader %q", name, p.shader.Key())
		return
	}
	p.writeUniform(u, values)
}

// writeUniform stores one uniform value into the staging block at its resolved
// offset, converting to the GPU representation where the types differ.
func (p *pass) writeUniform(u shader.Uniform, values []float32) {
	expected := 0
	switch u.Type {
	case shader.UniformFloat, shader.UniformInt:
		expected = 1
	case shader.UniformVec2:
		expected = 2
	case shader.UniformMat3:
		expected = 9
	}
	if len(values) != expected {
		log.Printf("[Renderer] uniform %q on shader %q expects %d components, got %d", u.Name, p.shader.Key(), expected, len(values))
		return
	}

	switch u.Type {
	case shader.UniformFloat:
		putFloat32(p.uniformData, u.Offset, values[0])
	case shader.UniformInt:
		binary.LittleEndian.PutUint32(p.uniformData[u.Offset:], uint32(int32(values[0])))
	case shader.UniformVec2:
		putFloat32(p.uniformData, u.Offset, values[0])
		putFloat32(p.uniformData, u.Offset+4, values[1])
	case shader.UniformMat3:
		var m mgl32.Mat3
		copy(m[:], values)
		gpu := common.Mat3ToGPU(m)
		for i, f := range gpu {
			putFloat32(p.uniformData, u.Offset+i*4, f)
		}
	}
}

// customBase returns the float-slot index where custom properties begin within
// one instance record.
func (p *pass) customBase() int {
	props := p.shader.Properties()
	if len(props) == 0 {
		return p.shader.Stride()
	}
	return props[0].Offset
}

// pack rebuilds the pass's instance data from the current batch: one record of
// stride floats per drawable, transform columns first in world mode, then the
// depth hint, layer index, and custom properties in declared order.
func (p *pass) pack() {
	stride := p.shader.Stride()
	need := len(p.batch) * stride
	if cap(p.instanceData) < need {
		p.instanceData = make([]float32, need)
	}
	p.instanceData = p.instanceData[:need]

	world := p.shader.Mode() == shader.ModeWorld
	base := p.customBase()
	for i, rec := range p.batch {
		out := p.instanceData[i*stride : (i+1)*stride]
		cursor := 0
		if world {
			copy(out, rec.transform[:])
			cursor = 9
		}
		out[cursor] = rec.depth
		out[cursor+1] = rec.layer
		copy(out[base:], rec.properties)
	}
}

// reset clears the batch for the next collect phase.
func (p *pass) reset() {
	p.batch = p.batch[:0]
}

func putFloat32(dst []byte, offset int, v float32) {
	binary.LittleEndian.PutUint32(dst[offset:], math.Float32bits(v))
}
