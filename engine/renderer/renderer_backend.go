package renderer

import "github.com/eswaidner/zen/engine/renderer/shader"

// BackendType identifies the GPU backend implementation used by Graphics.
type BackendType int

const (
	// BackendTypeWGPU selects the WebGPU-based rendering backend.
	BackendTypeWGPU BackendType = iota
)

// DepthTest selects the depth comparison applied to a pass's fragments.
type DepthTest int

const (
	// DepthTestLess passes fragments strictly closer than the stored depth.
	// This is the default for new passes.
	DepthTestLess DepthTest = iota

	// DepthTestLessEqual passes fragments closer than or equal to the stored
	// depth.
	DepthTestLessEqual

	// DepthTestAlways disables depth rejection entirely.
	DepthTestAlways
)

// valid reports whether t is a known DepthTest value.
func (t DepthTest) valid() bool {
	return t >= DepthTestLess && t <= DepthTestAlways
}

// BlendMode selects how a pass's fragments combine with the existing
// attachment contents.
type BlendMode int

const (
	// BlendAlpha is standard source-over alpha blending. This is the default
	// for new passes.
	BlendAlpha BlendMode = iota

	// BlendAdditive sums source and destination colors.
	BlendAdditive

	// BlendNone replaces the destination outright.
	BlendNone
)

// valid reports whether m is a known BlendMode value.
func (m BlendMode) valid() bool {
	return m >= BlendAlpha && m <= BlendNone
}

// Texture is an opaque handle to one backend texture allocation.
type Texture interface {
	// Label returns the debug label the texture was created with.
	//
	// Returns:
	//   - string: the label
	Label() string

	// Size returns the texture's dimensions in texels.
	//
	// Returns:
	//   - int: the width
	//   - int: the height
	Size() (int, int)

	// Layers returns the texture's array layer count.
	//
	// Returns:
	//   - int: the layer count, at least 1
	Layers() int
}

// Buffer is an opaque handle to one backend GPU buffer.
type Buffer interface {
	// Size returns the buffer's capacity in bytes.
	//
	// Returns:
	//   - int: the capacity
	Size() int
}

// Pipeline is an opaque handle to one compiled render pipeline.
type Pipeline interface {
	// Key returns the shader key the pipeline was compiled from.
	//
	// Returns:
	//   - string: the key
	Key() string
}

// PipelineDescriptor carries everything a backend needs to compile one pass
// pipeline. The instance layout and uniform block size come straight from the
// pass's resolved shader.
type PipelineDescriptor struct {
	Key            string
	VertexSource   string
	FragmentSource string

	// InstanceStride is the byte stride of one instance record.
	InstanceStride int

	// InstanceAttributes is the generated per-instance attribute layout.
	InstanceAttributes []shader.Attribute

	// UniformBlockSize is the pass uniform block size in bytes.
	UniformBlockSize int

	// InputCount is how many input texture bindings follow the shared sampler
	// in the pass bind group.
	InputCount int

	// ColorTargetCount is the number of color attachments the fragment stage
	// writes, the implicit first output included.
	ColorTargetCount int

	// SurfaceTarget is true for present pipelines, which render to the
	// swapchain format instead of the internal render texture format.
	SurfaceTarget bool

	// FullscreenQuad selects the NDC quad vertex buffer (corners at ±1)
	// instead of the unit quad (corners at ±0.5).
	FullscreenQuad bool

	DepthTest  DepthTest
	DepthWrite bool
	Blend      BlendMode
}

// Backend is the GPU interface Graphics drives. The frame executor calls it in
// a strict per-frame shape: BeginFrame, then for each pass BeginPass / Draw /
// EndPass plus any CopyTexture sync, then EndFrame and Present. Implementations
// other than the WebGPU backend exist for tests.
type Backend interface {
	// ConfigureSurface (re)configures the presentation surface and the shared
	// depth attachment for a new pixel size.
	//
	// Parameters:
	//   - width: the new surface width in pixels
	//   - height: the new surface height in pixels
	ConfigureSurface(width, height int)

	// SurfaceSize returns the currently configured surface size in pixels.
	//
	// Returns:
	//   - int: the width
	//   - int: the height
	SurfaceSize() (int, int)

	// CreateTexture allocates a render-target texture that can also be
	// sampled as an input.
	//
	// Parameters:
	//   - label: debug label for the allocation
	//   - width: texture width in texels
	//   - height: texture height in texels
	//   - layers: array layer count, at least 1
	//
	// Returns:
	//   - Texture: the allocated texture
	//   - error: an allocation error, or nil
	CreateTexture(label string, width, height, layers int) (Texture, error)

	// DestroyTexture releases a texture created by CreateTexture.
	//
	// Parameters:
	//   - t: the texture to release
	DestroyTexture(t Texture)

	// CreatePipeline compiles the vertex and fragment stages and builds the
	// render pipeline for one pass. Compile and link failures are returned as
	// errors carrying the backend diagnostic.
	//
	// Parameters:
	//   - desc: the pipeline description
	//
	// Returns:
	//   - Pipeline: the compiled pipeline
	//   - error: a compile/link error, or nil
	CreatePipeline(desc PipelineDescriptor) (Pipeline, error)

	// CreateBuffer allocates a GPU buffer writable from the CPU.
	//
	// Parameters:
	//   - label: debug label for the allocation
	//   - size: capacity in bytes
	//
	// Returns:
	//   - Buffer: the allocated buffer
	//   - error: an allocation error, or nil
	CreateBuffer(label string, size int) (Buffer, error)

	// WriteBuffer uploads data into a buffer at the given byte offset.
	//
	// Parameters:
	//   - b: the destination buffer
	//   - offset: destination byte offset
	//   - data: the bytes to upload
	WriteBuffer(b Buffer, offset int, data []byte)

	// BeginFrame acquires the swapchain texture and opens the frame's command
	// encoder. Must be paired with EndFrame.
	//
	// Returns:
	//   - error: an error if the swapchain texture could not be acquired
	BeginFrame() error

	// BeginPass opens one render pass. When surface is true the pass targets
	// the swapchain texture and targets must be empty; otherwise targets are
	// the pass's color attachments in attachment-slot order.
	//
	// Parameters:
	//   - targets: the color attachment textures
	//   - surface: true to target the swapchain instead
	BeginPass(targets []Texture, surface bool)

	// Draw encodes one instanced draw of the shared unit quad within the
	// current pass.
	//
	// Parameters:
	//   - p: the pass pipeline
	//   - instances: the per-instance buffer
	//   - uniforms: the pass uniform buffer
	//   - inputs: input textures bound after the shared sampler
	//   - instanceCount: the number of instances
	Draw(p Pipeline, instances, uniforms Buffer, inputs []Texture, instanceCount int)

	// EndPass closes the current render pass.
	EndPass()

	// CopyTexture encodes a full texture-to-texture copy within the current
	// frame, after the pass that wrote src and before any later pass reads dst.
	//
	// Parameters:
	//   - src: the source texture
	//   - dst: the destination texture, same size and layer count
	CopyTexture(src, dst Texture)

	// EndFrame closes the frame's command encoder and submits it.
	EndFrame()

	// Present presents the swapchain texture to the display.
	Present()
}
