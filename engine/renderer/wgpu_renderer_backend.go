package renderer

import (
	"fmt"
	"runtime"
	"sync"

	"github.com/cogentcore/webgpu/wgpu"
	"github.com/eswaidner/zen/common"
	"github.com/eswaidner/zen/engine/renderer/shader"
)

// renderTextureFormat is the format of every offscreen render target.
const renderTextureFormat = wgpu.TextureFormatRGBA8Unorm

// wgpuTexture is the WebGPU implementation of the Texture handle.
type wgpuTexture struct {
	label  string
	width  int
	height int
	layers int

	texture *wgpu.Texture

	// attachView targets the first array layer for rendering; sampleView is a
	// 2D-array view over every layer for input bindings.
	attachView *wgpu.TextureView
	sampleView *wgpu.TextureView
}

func (t *wgpuTexture) Label() string {
	return t.label
}

func (t *wgpuTexture) Size() (int, int) {
	return t.width, t.height
}

func (t *wgpuTexture) Layers() int {
	return t.layers
}

// wgpuBuffer is the WebGPU implementation of the Buffer handle.
type wgpuBuffer struct {
	size   int
	buffer *wgpu.Buffer
}

func (b *wgpuBuffer) Size() int {
	return b.size
}

// wgpuPipeline is the WebGPU implementation of the Pipeline handle. The bind
// group layout is retained so Draw can build the per-draw bind group from the
// frame's current texture views.
type wgpuPipeline struct {
	key        string
	pipeline   *wgpu.RenderPipeline
	layout     *wgpu.BindGroupLayout
	inputCount int
	blockSize  int
	fullscreen bool
}

func (p *wgpuPipeline) Key() string {
	return p.key
}

// wgpuGraphicsBackend is the WebGPU implementation of the Backend interface.
type wgpuGraphicsBackend struct {
	mu *sync.Mutex

	instance *wgpu.Instance
	adapter  *wgpu.Adapter
	device   *wgpu.Device
	queue    *wgpu.Queue
	surface  *wgpu.Surface

	surfaceFormat *wgpu.TextureFormat
	width, height int

	// Shared resources: one filtering sampler for every input binding and the
	// two quad vertex buffers (unit corners for world passes, NDC corners for
	// fullscreen passes).
	sampler  *wgpu.Sampler
	unitQuad *wgpu.Buffer
	ndcQuad  *wgpu.Buffer

	// Depth attachments cached per target size; cleared on surface
	// reconfiguration.
	depthViews map[[2]int]*wgpu.TextureView

	frameEncoder *wgpu.CommandEncoder
	framePass    *wgpu.RenderPassEncoder
	frameSurface *wgpu.Texture
	frameView    *wgpu.TextureView

	// Pipeline bound within the current pass; Draw selects the quad buffer
	// from it.
	currentPipeline *wgpuPipeline
}

var _ Backend = &wgpuGraphicsBackend{}

func newWGPUGraphicsBackend(surfaceDescriptor *wgpu.SurfaceDescriptor) Backend {
	runtime.LockOSThread()
	b := &wgpuGraphicsBackend{
		mu:         &sync.Mutex{},
		instance:   wgpu.CreateInstance(nil),
		depthViews: make(map[[2]int]*wgpu.TextureView),
	}
	b.surface = b.instance.CreateSurface(surfaceDescriptor)

	a, err := b.instance.RequestAdapter(&wgpu.RequestAdapterOptions{
		CompatibleSurface: b.surface,
	})
	if err != nil {
		panic(err)
	}
	b.adapter = a

	d, err := a.RequestDevice(&wgpu.DeviceDescriptor{
		Label: "Main Device",
	})
	if err != nil {
		panic(err)
	}
	b.device = d
	b.queue = d.GetQueue()

	b.sampler, err = d.CreateSampler(&wgpu.SamplerDescriptor{
		Label:         "Shared Input Sampler",
		AddressModeU:  wgpu.AddressModeClampToEdge,
		AddressModeV:  wgpu.AddressModeClampToEdge,
		AddressModeW:  wgpu.AddressModeClampToEdge,
		MagFilter:     wgpu.FilterModeLinear,
		MinFilter:     wgpu.FilterModeLinear,
		MipmapFilter:  wgpu.MipmapFilterModeNearest,
		LodMaxClamp:   32,
		MaxAnisotropy: 1,
	})
	if err != nil {
		panic(err)
	}

	b.unitQuad = b.createQuadBuffer("Unit Quad", 0.5)
	b.ndcQuad = b.createQuadBuffer("NDC Quad", 1)

	return b
}

// createQuadBuffer uploads the shared two-triangle quad with corners at
// ±extent on both axes.
func (b *wgpuGraphicsBackend) createQuadBuffer(label string, extent float32) *wgpu.Buffer {
	e := extent
	corners := []float32{
		-e, -e, e, -e, e, e,
		-e, -e, e, e, -e, e,
	}
	data := common.SliceToBytes(corners)

	buf, err := b.device.CreateBuffer(&wgpu.BufferDescriptor{
		Label: label,
		Size:  uint64(len(data)),
		Usage: wgpu.BufferUsageVertex | wgpu.BufferUsageCopyDst,
	})
	if err != nil {
		panic(err)
	}
	b.queue.WriteBuffer(buf, 0, data)
	return buf
}

func (b *wgpuGraphicsBackend) ConfigureSurface(width, height int) {
	b.mu.Lock()
	defer b.mu.Unlock()

	capabilities := b.surface.GetCapabilities(b.adapter)
	b.surfaceFormat = &capabilities.Formats[0]

	b.surface.Configure(b.adapter, b.device, &wgpu.SurfaceConfiguration{
		Usage:       wgpu.TextureUsageRenderAttachment,
		Format:      *b.surfaceFormat,
		Width:       uint32(width),
		Height:      uint32(height),
		PresentMode: wgpu.PresentModeFifo,
		AlphaMode:   capabilities.AlphaModes[0],
	})
	b.width, b.height = width, height

	// Depth attachments are sized to their targets; drop them all so the next
	// frame recreates what it needs.
	b.depthViews = make(map[[2]int]*wgpu.TextureView)
}

func (b *wgpuGraphicsBackend) SurfaceSize() (int, int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.width, b.height
}

func (b *wgpuGraphicsBackend) CreateTexture(label string, width, height, layers int) (Texture, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	tex, err := b.device.CreateTexture(&wgpu.TextureDescriptor{
		Label: label,
		Size: wgpu.Extent3D{
			Width:              uint32(width),
			Height:             uint32(height),
			DepthOrArrayLayers: uint32(layers),
		},
		MipLevelCount: 1,
		SampleCount:   1,
		Dimension:     wgpu.TextureDimension2D,
		Format:        renderTextureFormat,
		Usage: wgpu.TextureUsageRenderAttachment | wgpu.TextureUsageTextureBinding |
			wgpu.TextureUsageCopySrc | wgpu.TextureUsageCopyDst,
	})
	if err != nil {
		return nil, err
	}

	attachView, err := tex.CreateView(&wgpu.TextureViewDescriptor{
		Label:           label + " (attachment)",
		Format:          renderTextureFormat,
		Dimension:       wgpu.TextureViewDimension2D,
		Aspect:          wgpu.TextureAspectAll,
		MipLevelCount:   1,
		BaseArrayLayer:  0,
		ArrayLayerCount: 1,
	})
	if err != nil {
		tex.Release()
		return nil, err
	}

	sampleView, err := tex.CreateView(&wgpu.TextureViewDescriptor{
		Label:           label + " (sample)",
		Format:          renderTextureFormat,
		Dimension:       wgpu.TextureViewDimension2DArray,
		Aspect:          wgpu.TextureAspectAll,
		MipLevelCount:   1,
		BaseArrayLayer:  0,
		ArrayLayerCount: uint32(layers),
	})
	if err != nil {
		attachView.Release()
		tex.Release()
		return nil, err
	}

	return &wgpuTexture{
		label:      label,
		width:      width,
		height:     height,
		layers:     layers,
		texture:    tex,
		attachView: attachView,
		sampleView: sampleView,
	}, nil
}

func (b *wgpuGraphicsBackend) DestroyTexture(t Texture) {
	b.mu.Lock()
	defer b.mu.Unlock()

	wt, ok := t.(*wgpuTexture)
	if !ok || wt == nil {
		return
	}
	wt.sampleView.Release()
	wt.attachView.Release()
	wt.texture.Release()
}

func (b *wgpuGraphicsBackend) CreatePipeline(desc PipelineDescriptor) (Pipeline, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	vs, err := b.device.CreateShaderModule(&wgpu.ShaderModuleDescriptor{
		Label: desc.Key + " (vertex)",
		WGSLDescriptor: &wgpu.ShaderModuleWGSLDescriptor{
			Code: desc.VertexSource,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("pipeline %q: vertex stage: %w", desc.Key, err)
	}
	fs, err := b.device.CreateShaderModule(&wgpu.ShaderModuleDescriptor{
		Label: desc.Key + " (fragment)",
		WGSLDescriptor: &wgpu.ShaderModuleWGSLDescriptor{
			Code: desc.FragmentSource,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("pipeline %q: fragment stage: %w", desc.Key, err)
	}

	layout, err := b.device.CreateBindGroupLayout(&wgpu.BindGroupLayoutDescriptor{
		Label:   desc.Key + " Bind Group Layout",
		Entries: bindGroupLayoutEntries(desc),
	})
	if err != nil {
		return nil, fmt.Errorf("pipeline %q: %w", desc.Key, err)
	}

	pipelineLayout, err := b.device.CreatePipelineLayout(&wgpu.PipelineLayoutDescriptor{
		Label:            desc.Key,
		BindGroupLayouts: []*wgpu.BindGroupLayout{layout},
	})
	if err != nil {
		return nil, fmt.Errorf("pipeline %q: %w", desc.Key, err)
	}

	targetFormat := renderTextureFormat
	if desc.SurfaceTarget {
		if b.surfaceFormat == nil {
			return nil, fmt.Errorf("pipeline %q: surface not configured", desc.Key)
		}
		targetFormat = *b.surfaceFormat
	}
	targets := make([]wgpu.ColorTargetState, desc.ColorTargetCount)
	for i := range targets {
		targets[i] = wgpu.ColorTargetState{
			Format:    targetFormat,
			Blend:     blendState(desc.Blend),
			WriteMask: wgpu.ColorWriteMaskAll,
		}
	}

	created, err := b.device.CreateRenderPipeline(&wgpu.RenderPipelineDescriptor{
		Label:  desc.Key + " Render Pipeline",
		Layout: pipelineLayout,
		Vertex: wgpu.VertexState{
			Module:     vs,
			EntryPoint: shader.VertexEntryPoint,
			Buffers:    vertexBufferLayouts(desc),
		},
		Fragment: &wgpu.FragmentState{
			Module:     fs,
			EntryPoint: shader.FragmentEntryPoint,
			Targets:    targets,
		},
		Primitive: wgpu.PrimitiveState{
			Topology:  wgpu.PrimitiveTopologyTriangleList,
			FrontFace: wgpu.FrontFaceCCW,
			CullMode:  wgpu.CullModeNone,
		},
		Multisample: wgpu.MultisampleState{
			Count: 1,
			Mask:  0xFFFFFFFF,
		},
		DepthStencil: &wgpu.DepthStencilState{
			Format:            wgpu.TextureFormatDepth24Plus,
			DepthWriteEnabled: desc.DepthWrite,
			DepthCompare:      depthCompare(desc.DepthTest),
			StencilFront: wgpu.StencilFaceState{
				Compare: wgpu.CompareFunctionAlways,
			},
			StencilBack: wgpu.StencilFaceState{
				Compare: wgpu.CompareFunctionAlways,
			},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("pipeline %q: %w", desc.Key, err)
	}

	return &wgpuPipeline{
		key:        desc.Key,
		pipeline:   created,
		layout:     layout,
		inputCount: desc.InputCount,
		blockSize:  desc.UniformBlockSize,
		fullscreen: desc.FullscreenQuad,
	}, nil
}

func (b *wgpuGraphicsBackend) CreateBuffer(label string, size int) (Buffer, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	buf, err := b.device.CreateBuffer(&wgpu.BufferDescriptor{
		Label: label,
		Size:  uint64(size),
		Usage: wgpu.BufferUsageVertex | wgpu.BufferUsageUniform | wgpu.BufferUsageCopyDst,
	})
	if err != nil {
		return nil, err
	}
	return &wgpuBuffer{size: size, buffer: buf}, nil
}

func (b *wgpuGraphicsBackend) WriteBuffer(buf Buffer, offset int, data []byte) {
	b.mu.Lock()
	defer b.mu.Unlock()

	wb, ok := buf.(*wgpuBuffer)
	if !ok || wb == nil {
		return
	}
	b.queue.WriteBuffer(wb.buffer, uint64(offset), data)
}

func (b *wgpuGraphicsBackend) BeginFrame() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.frameSurface != nil {
		return fmt.Errorf("previous frame surface not yet presented")
	}

	surfaceTexture, err := b.surface.GetCurrentTexture()
	if err != nil {
		return err
	}
	view, err := surfaceTexture.CreateView(nil)
	if err != nil {
		surfaceTexture.Release()
		return err
	}
	encoder, err := b.device.CreateCommandEncoder(nil)
	if err != nil {
		view.Release()
		surfaceTexture.Release()
		return err
	}

	b.frameEncoder = encoder
	b.frameSurface = surfaceTexture
	b.frameView = view
	return nil
}

func (b *wgpuGraphicsBackend) BeginPass(targets []Texture, surface bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.frameEncoder == nil {
		return
	}

	var colors []wgpu.RenderPassColorAttachment
	depthW, depthH := b.width, b.height
	if surface {
		colors = []wgpu.RenderPassColorAttachment{{
			View:       b.frameView,
			LoadOp:     wgpu.LoadOpClear,
			StoreOp:    wgpu.StoreOpStore,
			ClearValue: wgpu.Color{R: 0, G: 0, B: 0, A: 1},
		}}
	} else {
		for i, t := range targets {
			wt := t.(*wgpuTexture)
			if i == 0 {
				depthW, depthH = wt.width, wt.height
			}
			colors = append(colors, wgpu.RenderPassColorAttachment{
				View:       wt.attachView,
				LoadOp:     wgpu.LoadOpClear,
				StoreOp:    wgpu.StoreOpStore,
				ClearValue: wgpu.Color{R: 0, G: 0, B: 0, A: 0},
			})
		}
	}

	pass := b.frameEncoder.BeginRenderPass(&wgpu.RenderPassDescriptor{
		ColorAttachments: colors,
		DepthStencilAttachment: &wgpu.RenderPassDepthStencilAttachment{
			View:            b.depthView(depthW, depthH),
			DepthLoadOp:     wgpu.LoadOpClear,
			DepthStoreOp:    wgpu.StoreOpDiscard,
			DepthClearValue: 1.0,
		},
	})
	b.framePass = pass
}

// depthView returns the cached depth attachment for a target size, creating it
// on first use.
func (b *wgpuGraphicsBackend) depthView(width, height int) *wgpu.TextureView {
	key := [2]int{width, height}
	if view, ok := b.depthViews[key]; ok {
		return view
	}

	tex, err := b.device.CreateTexture(&wgpu.TextureDescriptor{
		Label: "Depth Texture",
		Size: wgpu.Extent3D{
			Width:              uint32(width),
			Height:             uint32(height),
			DepthOrArrayLayers: 1,
		},
		MipLevelCount: 1,
		SampleCount:   1,
		Dimension:     wgpu.TextureDimension2D,
		Format:        wgpu.TextureFormatDepth24Plus,
		Usage:         wgpu.TextureUsageRenderAttachment,
	})
	if err != nil {
		panic(err)
	}
	view, err := tex.CreateView(nil)
	if err != nil {
		panic(err)
	}
	b.depthViews[key] = view
	return view
}

func (b *wgpuGraphicsBackend) Draw(p Pipeline, instances, uniforms Buffer, inputs []Texture, instanceCount int) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.framePass == nil {
		return
	}

	wp := p.(*wgpuPipeline)
	instanceBuf := instances.(*wgpuBuffer)
	uniformBuf := uniforms.(*wgpuBuffer)

	entries := []wgpu.BindGroupEntry{{
		Binding: 0,
		Buffer:  uniformBuf.buffer,
		Size:    uint64(wp.blockSize),
	}}
	if wp.inputCount > 0 {
		entries = append(entries, wgpu.BindGroupEntry{
			Binding: 1,
			Sampler: b.sampler,
		})
		for i, t := range inputs {
			entries = append(entries, wgpu.BindGroupEntry{
				Binding:     uint32(2 + i),
				TextureView: t.(*wgpuTexture).sampleView,
			})
		}
	}
	bindGroup, err := b.device.CreateBindGroup(&wgpu.BindGroupDescriptor{
		Label:   wp.key + " Bind Group",
		Layout:  wp.layout,
		Entries: entries,
	})
	if err != nil {
		return
	}
	defer bindGroup.Release()

	quad := b.unitQuad
	if wp.fullscreen {
		quad = b.ndcQuad
	}

	b.framePass.SetPipeline(wp.pipeline)
	b.framePass.SetBindGroup(0, bindGroup, nil)
	b.framePass.SetVertexBuffer(0, quad, 0, wgpu.WholeSize)
	b.framePass.SetVertexBuffer(1, instanceBuf.buffer, 0, wgpu.WholeSize)
	b.framePass.Draw(6, uint32(instanceCount), 0, 0)
}

func (b *wgpuGraphicsBackend) EndPass() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.framePass == nil {
		return
	}
	b.framePass.End()
	b.framePass = nil
}

func (b *wgpuGraphicsBackend) CopyTexture(src, dst Texture) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.frameEncoder == nil {
		return
	}
	ws := src.(*wgpuTexture)
	wd := dst.(*wgpuTexture)

	b.frameEncoder.CopyTextureToTexture(
		&wgpu.ImageCopyTexture{
			Texture:  ws.texture,
			MipLevel: 0,
			Origin:   wgpu.Origin3D{},
			Aspect:   wgpu.TextureAspectAll,
		},
		&wgpu.ImageCopyTexture{
			Texture:  wd.texture,
			MipLevel: 0,
			Origin:   wgpu.Origin3D{},
			Aspect:   wgpu.TextureAspectAll,
		},
		&wgpu.Extent3D{
			Width:              uint32(ws.width),
			Height:             uint32(ws.height),
			DepthOrArrayLayers: uint32(ws.layers),
		},
	)
}

func (b *wgpuGraphicsBackend) EndFrame() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.frameEncoder == nil {
		return
	}

	commandBuffer, err := b.frameEncoder.Finish(nil)
	if err != nil {
		b.frameEncoder.Release()
		b.frameEncoder = nil
		return
	}
	b.queue.Submit(commandBuffer)
	commandBuffer.Release()
	b.frameEncoder.Release()
	b.frameEncoder = nil
}

func (b *wgpuGraphicsBackend) Present() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.frameSurface == nil {
		return
	}
	b.surface.Present()

	if b.frameView != nil {
		b.frameView.Release()
		b.frameView = nil
	}
	b.frameSurface.Release()
	b.frameSurface = nil
}

// bindGroupLayoutEntries builds the single pass bind group layout: the uniform
// block at binding 0, then the shared sampler and input textures when the
// shader declares inputs.
func bindGroupLayoutEntries(desc PipelineDescriptor) []wgpu.BindGroupLayoutEntry {
	entries := []wgpu.BindGroupLayoutEntry{{
		Binding:    0,
		Visibility: wgpu.ShaderStageVertex | wgpu.ShaderStageFragment,
		Buffer: wgpu.BufferBindingLayout{
			Type:           wgpu.BufferBindingTypeUniform,
			MinBindingSize: uint64(desc.UniformBlockSize),
		},
	}}
	if desc.InputCount > 0 {
		entries = append(entries, wgpu.BindGroupLayoutEntry{
			Binding:    1,
			Visibility: wgpu.ShaderStageFragment,
			Sampler: wgpu.SamplerBindingLayout{
				Type: wgpu.SamplerBindingTypeFiltering,
			},
		})
		for i := 0; i < desc.InputCount; i++ {
			entries = append(entries, wgpu.BindGroupLayoutEntry{
				Binding:    uint32(2 + i),
				Visibility: wgpu.ShaderStageFragment,
				Texture: wgpu.TextureBindingLayout{
					SampleType:    wgpu.TextureSampleTypeFloat,
					ViewDimension: wgpu.TextureViewDimension2DArray,
				},
			})
		}
	}
	return entries
}

// vertexBufferLayouts builds the two vertex buffer slots: the shared quad
// corners at vertex rate and the generated per-instance layout at instance
// rate.
func vertexBufferLayouts(desc PipelineDescriptor) []wgpu.VertexBufferLayout {
	instanceAttrs := make([]wgpu.VertexAttribute, len(desc.InstanceAttributes))
	for i, a := range desc.InstanceAttributes {
		instanceAttrs[i] = wgpu.VertexAttribute{
			Format:         vertexFormat(a.Format),
			Offset:         uint64(a.Offset),
			ShaderLocation: a.Location,
		}
	}
	return []wgpu.VertexBufferLayout{
		{
			ArrayStride: 8,
			StepMode:    wgpu.VertexStepModeVertex,
			Attributes: []wgpu.VertexAttribute{{
				Format:         wgpu.VertexFormatFloat32x2,
				Offset:         0,
				ShaderLocation: 0,
			}},
		},
		{
			ArrayStride: uint64(desc.InstanceStride),
			StepMode:    wgpu.VertexStepModeInstance,
			Attributes:  instanceAttrs,
		},
	}
}

func vertexFormat(f shader.AttributeFormat) wgpu.VertexFormat {
	switch f {
	case shader.AttrFloat32:
		return wgpu.VertexFormatFloat32
	case shader.AttrFloat32x2:
		return wgpu.VertexFormatFloat32x2
	case shader.AttrFloat32x3:
		return wgpu.VertexFormatFloat32x3
	default:
		return wgpu.VertexFormatFloat32
	}
}

func depthCompare(t DepthTest) wgpu.CompareFunction {
	switch t {
	case DepthTestLess:
		return wgpu.CompareFunctionLess
	case DepthTestLessEqual:
		return wgpu.CompareFunctionLessEqual
	case DepthTestAlways:
		fallthrough
	default:
		return wgpu.CompareFunctionAlways
	}
}

func blendState(m BlendMode) *wgpu.BlendState {
	switch m {
	case BlendAlpha:
		return &wgpu.BlendState{
			Color: wgpu.BlendComponent{
				SrcFactor: wgpu.BlendFactorSrcAlpha,
				DstFactor: wgpu.BlendFactorOneMinusSrcAlpha,
				Operation: wgpu.BlendOperationAdd,
			},
			Alpha: wgpu.BlendComponent{
				SrcFactor: wgpu.BlendFactorOne,
				DstFactor: wgpu.BlendFactorOneMinusSrcAlpha,
				Operation: wgpu.BlendOperationAdd,
			},
		}
	case BlendAdditive:
		return &wgpu.BlendState{
			Color: wgpu.BlendComponent{
				SrcFactor: wgpu.BlendFactorOne,
				DstFactor: wgpu.BlendFactorOne,
				Operation: wgpu.BlendOperationAdd,
			},
			Alpha: wgpu.BlendComponent{
				SrcFactor: wgpu.BlendFactorOne,
				DstFactor: wgpu.BlendFactorOne,
				Operation: wgpu.BlendOperationAdd,
			},
		}
	case BlendNone:
		fallthrough
	default:
		return nil
	}
}
