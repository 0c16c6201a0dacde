package renderer

import "fmt"

// testTexture is the recording backend's Texture handle.
type testTexture struct {
	label  string
	width  int
	height int
	layers int
}

func (t *testTexture) Label() string    { return t.label }
func (t *testTexture) Size() (int, int) { return t.width, t.height }
func (t *testTexture) Layers() int      { return t.layers }

// testBuffer is the recording backend's Buffer handle. It stores the last
// written contents so tests can decode uploads.
type testBuffer struct {
	label string
	size  int
	data  []byte
}

func (b *testBuffer) Size() int { return b.size }

// testPipeline is the recording backend's Pipeline handle.
type testPipeline struct {
	desc PipelineDescriptor
}

func (p *testPipeline) Key() string { return p.desc.Key }

type recordedDraw struct {
	key           string
	instanceCount int
	inputs        []Texture
	instanceData  []byte
	uniformData   []byte
}

type recordedCopy struct {
	src Texture
	dst Texture
}

// testBackend records every backend call so tests can verify the frame
// executor's command stream without a GPU.
type testBackend struct {
	width  int
	height int

	configures [][2]int
	created    []*testTexture
	destroyed  []Texture
	pipelines  []PipelineDescriptor
	draws      []recordedDraw
	copies     []recordedCopy

	// events is the ordered call log within frames.
	events []string

	failPipelines bool
}

var _ Backend = &testBackend{}

func newTestBackend(width, height int) *testBackend {
	return &testBackend{width: width, height: height}
}

func (b *testBackend) ConfigureSurface(width, height int) {
	b.width, b.height = width, height
	b.configures = append(b.configures, [2]int{width, height})
	b.events = append(b.events, fmt.Sprintf("configure %dx%d", width, height))
}

func (b *testBackend) SurfaceSize() (int, int) {
	return b.width, b.height
}

func (b *testBackend) CreateTexture(label string, width, height, layers int) (Texture, error) {
	t := &testTexture{label: label, width: width, height: height, layers: layers}
	b.created = append(b.created, t)
	return t, nil
}

func (b *testBackend) DestroyTexture(t Texture) {
	b.destroyed = append(b.destroyed, t)
}

func (b *testBackend) CreatePipeline(desc PipelineDescriptor) (Pipeline, error) {
	if b.failPipelines {
		return nil, fmt.Errorf("shader %q failed to compile", desc.Key)
	}
	b.pipelines = append(b.pipelines, desc)
	return &testPipeline{desc: desc}, nil
}

func (b *testBackend) CreateBuffer(label string, size int) (Buffer, error) {
	return &testBuffer{label: label, size: size}, nil
}

func (b *testBackend) WriteBuffer(buf Buffer, offset int, data []byte) {
	tb := buf.(*testBuffer)
	if len(tb.data) < offset+len(data) {
		grown := make([]byte, offset+len(data))
		copy(grown, tb.data)
		tb.data = grown
	}
	copy(tb.data[offset:], data)
}

func (b *testBackend) BeginFrame() error {
	b.events = append(b.events, "begin-frame")
	return nil
}

func (b *testBackend) BeginPass(targets []Texture, surface bool) {
	if surface {
		b.events = append(b.events, "begin-pass surface")
		return
	}
	names := ""
	for i, t := range targets {
		if i > 0 {
			names += ","
		}
		names += t.Label()
	}
	b.events = append(b.events, "begin-pass "+names)
}

func (b *testBackend) Draw(p Pipeline, instances, uniforms Buffer, inputs []Texture, instanceCount int) {
	instanceBuf := instances.(*testBuffer)
	uniformBuf := uniforms.(*testBuffer)
	b.draws = append(b.draws, recordedDraw{
		key:           p.Key(),
		instanceCount: instanceCount,
		inputs:        append([]Texture(nil), inputs...),
		instanceData:  append([]byte(nil), instanceBuf.data...),
		uniformData:   append([]byte(nil), uniformBuf.data...),
	})
	b.events = append(b.events, fmt.Sprintf("draw %s x%d", p.Key(), instanceCount))
}

func (b *testBackend) EndPass() {
	b.events = append(b.events, "end-pass")
}

func (b *testBackend) CopyTexture(src, dst Texture) {
	b.copies = append(b.copies, recordedCopy{src: src, dst: dst})
	b.events = append(b.events, fmt.Sprintf("copy %s -> %s", src.Label(), dst.Label()))
}

func (b *testBackend) EndFrame() {
	b.events = append(b.events, "end-frame")
}

func (b *testBackend) Present() {
	b.events = append(b.events, "present")
}
