// Package renderer is the render pass graph and its frame executor: an ordered
// list of shader passes sharing named render textures, collected from drawable
// entities each frame and dispatched to a GPU backend as one command stream.
package renderer

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/Carmen-Shannon/automation/tools/worker"
	"github.com/eswaidner/zen/engine/camera"
	"github.com/eswaidner/zen/engine/renderer/shader"
	"github.com/eswaidner/zen/engine/signal"
	"github.com/eswaidner/zen/engine/window"
)

// maxColorOutputs is the attachment limit for one pass, the implicit COLOR
// output included.
const maxColorOutputs = 8

// initialInstanceCapacity sizes a new pass's instance buffer; the buffer grows
// when a frame collects more drawables.
const initialInstanceCapacity = 64

// graphics is the implementation of the Graphics interface.
type graphics struct {
	mu *sync.Mutex

	backend  Backend
	registry *textureRegistry

	shaderCache map[string]shader.Shader
	passes      []*pass

	cam camera.Camera

	// packPool fans out per-pass instance packing during dispatch. Workers
	// persist across frames.
	packPool    worker.DynamicWorkerPool
	packWorkers int

	// Target viewport size; the surface and all render textures are
	// reconfigured lazily at the next dispatch when it changes.
	width, height            int
	configuredW, configuredH int
}

// Graphics owns the GPU backend, the shader cache, the shared render texture
// registry, and the ordered pass list. It produces the frame executor that
// runs the whole graph once per render signal dispatch.
type Graphics interface {
	// CreateShader builds a shader from a contract and caches it by key.
	// Re-using an existing key is an error.
	//
	// Parameters:
	//   - key: unique identifier for the shader
	//   - mode: shader.ModeWorld or shader.ModeFullscreen
	//   - fragmentSource: the user WGSL fragment stage
	//   - options: contract declarations
	//
	// Returns:
	//   - shader.Shader: the resolved shader
	//   - error: a contract error, or nil
	CreateShader(key string, mode shader.Mode, fragmentSource string, options ...shader.Option) (shader.Shader, error)

	// Shader retrieves a cached shader by key, or nil if the key is unknown.
	//
	// Parameters:
	//   - key: the shader key
	//
	// Returns:
	//   - shader.Shader: the cached shader, or nil
	Shader(key string) shader.Shader

	// CreateRenderPass registers a pass for the given shader: compiles its
	// pipeline, resolves its input and output textures in the shared registry,
	// allocates its buffers, and inserts it into the pass list at its draw
	// order. Compile/link failures, more than 8 color outputs, and unknown
	// depth or blend values are fatal for the call.
	//
	// Parameters:
	//   - s: the shader to draw with
	//   - options: pass configuration
	//
	// Returns:
	//   - Pass: the registered pass
	//   - error: a registration error, or nil
	CreateRenderPass(s shader.Shader, options ...PassOption) (Pass, error)

	// Passes returns the registered passes in execution order.
	//
	// Returns:
	//   - []Pass: the ordered pass list
	Passes() []Pass

	// Resize records a new viewport size. The surface, depth attachment, and
	// every render texture are destroyed and recreated at the next dispatch.
	//
	// Parameters:
	//   - width: the new viewport width in pixels
	//   - height: the new viewport height in pixels
	Resize(width, height int)

	// Camera returns the camera the frame executor derives the view transform
	// from.
	//
	// Returns:
	//   - camera.Camera: the camera
	Camera() camera.Camera

	// FrameRunner returns the two-phase frame task: its per-entity phase
	// collects drawables into pass batches and its once phase dispatches the
	// whole graph. Attach it to a signal ordered after gameplay updates.
	//
	// Returns:
	//   - signal.Runner: the frame executor
	FrameRunner() signal.Runner
}

var _ Graphics = &graphics{}

// NewGraphics creates a Graphics instance rendering to the given window, or to
// an injected backend when WithBackend is supplied (the window may then be
// nil).
//
// Parameters:
//   - win: the window providing the surface, or nil with WithBackend
//   - options: functional options to configure the instance
//
// Returns:
//   - Graphics: the newly created instance
func NewGraphics(win window.Window, options ...GraphicsOption) Graphics {
	g := &graphics{
		mu:          &sync.Mutex{},
		shaderCache: make(map[string]shader.Shader),
		packWorkers: 4,
	}
	for _, opt := range options {
		opt(g)
	}

	if g.backend == nil {
		g.backend = newWGPUGraphicsBackend(win.SurfaceDescriptor())
		g.backend.ConfigureSurface(win.Width(), win.Height())
	}
	g.registry = newTextureRegistry(g.backend)

	g.configuredW, g.configuredH = g.backend.SurfaceSize()
	g.width, g.height = g.configuredW, g.configuredH

	if g.cam == nil {
		g.cam = camera.NewCamera()
	}

	// Queue size of 256 leaves headroom over any realistic pass count.
	g.packPool = worker.NewDynamicWorkerPool(g.packWorkers, 256, 1*time.Second)

	return g
}

func (g *graphics) CreateShader(key string, mode shader.Mode, fragmentSource string, options ...shader.Option) (shader.Shader, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if _, exists := g.shaderCache[key]; exists {
		return nil, fmt.Errorf("shader %q already registered", key)
	}
	s, err := shader.New(key, mode, fragmentSource, options...)
	if err != nil {
		return nil, err
	}
	g.shaderCache[key] = s
	return s, nil
}

func (g *graphics) Shader(key string) shader.Shader {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.shaderCache[key]
}

func (g *graphics) CreateRenderPass(s shader.Shader, options ...PassOption) (Pass, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if s == nil {
		return nil, fmt.Errorf("render pass requires a shader")
	}
	if len(s.Outputs()) > maxColorOutputs {
		return nil, fmt.Errorf("shader %q declares %d color outputs, the limit is %d", s.Key(), len(s.Outputs()), maxColorOutputs)
	}

	p := &pass{
		shader:     s,
		depthTest:  DepthTestLess,
		depthWrite: true,
		blend:      BlendAlpha,
		enabled:    true,
	}
	for _, opt := range options {
		if err := opt(p); err != nil {
			return nil, fmt.Errorf("render pass %q: %w", s.Key(), err)
		}
	}

	for _, to := range p.pendingTextures {
		rt := g.registry.acquire(to.name)
		if err := rt.configure(to.scale, to.swappable, to.layers); err != nil {
			return nil, err
		}
	}
	p.pendingTextures = nil

	for _, name := range s.Inputs() {
		rt := g.registry.acquire(name)
		rt.usedAsInput = true
		p.inputs = append(p.inputs, rt)
	}
	if !p.present {
		for _, name := range s.Outputs() {
			rt := g.registry.acquire(name)
			rt.usedAsOutput = true
			p.outputs = append(p.outputs, rt)
		}
	}

	pipeline, err := g.backend.CreatePipeline(PipelineDescriptor{
		Key:                s.Key(),
		VertexSource:       s.VertexSource(),
		FragmentSource:     s.FragmentSource(),
		InstanceStride:     s.Stride() * 4,
		InstanceAttributes: s.InstanceAttributes(),
		UniformBlockSize:   s.UniformBlockSize(),
		InputCount:         len(s.Inputs()),
		ColorTargetCount:   len(s.Outputs()),
		SurfaceTarget:      p.present,
		FullscreenQuad:     s.Mode() == shader.ModeFullscreen,
		DepthTest:          p.depthTest,
		DepthWrite:         p.depthWrite,
		Blend:              p.blend,
	})
	if err != nil {
		return nil, fmt.Errorf("render pass %q: %w", s.Key(), err)
	}
	p.pipeline = pipeline

	p.uniformData = make([]byte, s.UniformBlockSize())
	uniformBuffer, err := g.backend.CreateBuffer(s.Key()+" uniforms", s.UniformBlockSize())
	if err != nil {
		return nil, fmt.Errorf("render pass %q: %w", s.Key(), err)
	}
	p.uniformBuffer = uniformBuffer

	instanceBuffer, err := g.backend.CreateBuffer(s.Key()+" instances", initialInstanceCapacity*s.Stride()*4)
	if err != nil {
		return nil, fmt.Errorf("render pass %q: %w", s.Key(), err)
	}
	p.instanceBuffer = instanceBuffer

	// Ordered insert: strictly-greater keeps registration order for ties.
	idx := sort.Search(len(g.passes), func(i int) bool {
		return g.passes[i].drawOrder > p.drawOrder
	})
	g.passes = append(g.passes, nil)
	copy(g.passes[idx+1:], g.passes[idx:])
	g.passes[idx] = p

	return p, nil
}

func (g *graphics) Passes() []Pass {
	g.mu.Lock()
	defer g.mu.Unlock()

	out := make([]Pass, len(g.passes))
	for i, p := range g.passes {
		out[i] = p
	}
	return out
}

func (g *graphics) Resize(width, height int) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if width < 1 {
		width = 1
	}
	if height < 1 {
		height = 1
	}
	g.width, g.height = width, height
}

func (g *graphics) Camera() camera.Camera {
	return g.cam
}

func (g *graphics) FrameRunner() signal.Runner {
	return &frameRunner{g: g}
}
