package renderer

import (
	"encoding/binary"
	"math"
	"testing"

	"github.com/eswaidner/zen/engine/renderer/shader"
	"github.com/eswaidner/zen/engine/signal"
	"github.com/eswaidner/zen/engine/transform"
	"github.com/eswaidner/zen/engine/world"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testFragment = `@fragment
fn fs_main() -> @location(0) vec4<f32> {
    return vec4<f32>(1.0, 0.0, 1.0, 1.0);
}`

func newTestGraphics(t *testing.T) (Graphics, *testBackend) {
	t.Helper()
	b := newTestBackend(640, 480)
	g := NewGraphics(nil, WithBackend(b), WithPackWorkers(2))
	return g, b
}

func mustShader(t *testing.T, g Graphics, key string, mode shader.Mode, options ...shader.Option) shader.Shader {
	t.Helper()
	s, err := g.CreateShader(key, mode, testFragment, options...)
	require.NoError(t, err)
	return s
}

// frameHarness wires a graphics instance into a minimal signal graph so tests
// can run whole frames.
type frameHarness struct {
	world  *world.World
	graph  *signal.Graph
	render signal.Signal
}

func newFrameHarness(g Graphics) *frameHarness {
	w := world.NewWorld()
	graph := signal.NewGraph(w)
	render := graph.NewSignal()
	graph.OnSignal(render, g.FrameRunner())
	return &frameHarness{world: w, graph: graph, render: render}
}

func (h *frameHarness) runFrame() {
	h.graph.Dispatch(h.render)
}

func (h *frameHarness) spawnDrawable(p Pass, withTransform bool) (world.Entity, *Renderer) {
	e := h.world.Spawn()
	r := NewRenderer(p)
	h.world.Set(e, Key, r)
	if withTransform {
		h.world.Set(e, transform.Key, transform.New())
	}
	return e, r
}

func floatsOf(data []byte) []float32 {
	out := make([]float32, len(data)/4)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:]))
	}
	return out
}

func TestCreateRenderPassOrdering(t *testing.T) {
	g, _ := newTestGraphics(t)

	pa, err := g.CreateRenderPass(mustShader(t, g, "a", shader.ModeWorld), WithDrawOrder(5))
	require.NoError(t, err)
	pb, err := g.CreateRenderPass(mustShader(t, g, "b", shader.ModeWorld), WithDrawOrder(0))
	require.NoError(t, err)
	pc, err := g.CreateRenderPass(mustShader(t, g, "c", shader.ModeWorld), WithDrawOrder(5))
	require.NoError(t, err)
	pd, err := g.CreateRenderPass(mustShader(t, g, "d", shader.ModeWorld), WithDrawOrder(3))
	require.NoError(t, err)

	// Ascending draw order; ties keep registration order.
	assert.Equal(t, []Pass{pb, pd, pa, pc}, g.Passes())
}

func TestInstancePackingLayoutAndOrder(t *testing.T) {
	g, b := newTestGraphics(t)
	p, err := g.CreateRenderPass(mustShader(t, g, "sprite", shader.ModeWorld,
		shader.WithProperty("tint", shader.Float),
		shader.WithProperty("uv_offset", shader.Vec2),
	))
	require.NoError(t, err)

	h := newFrameHarness(g)

	e1 := h.world.Spawn()
	r1 := NewRenderer(p)
	r1.SetDepth(0.25)
	r1.SetLayer(2)
	r1.SetProperty("tint", 7)
	r1.SetProperty("uv_offset", 3, 4)
	h.world.Set(e1, Key, r1)
	tr := transform.New()
	tr.Position = mgl32.Vec2{1, 2}
	h.world.Set(e1, transform.Key, tr)

	h.spawnDrawable(p, true)

	h.runFrame()

	require.Len(t, b.draws, 1)
	assert.Equal(t, 2, b.draws[0].instanceCount)

	floats := floatsOf(b.draws[0].instanceData)
	require.Len(t, floats, 2*14)

	// First record: translation transform columns, then depth, layer, customs.
	rec := floats[:14]
	assert.Equal(t, []float32{1, 0, 0, 0, 1, 0, 1, 2, 1}, rec[:9])
	assert.Equal(t, float32(0.25), rec[9])
	assert.Equal(t, float32(2), rec[10])
	assert.Equal(t, []float32{7, 3, 4}, rec[11:14])

	// Second record: identity transform, zero customs.
	rec = floats[14:]
	assert.Equal(t, []float32{1, 0, 0, 0, 1, 0, 0, 0, 1}, rec[:9])
	assert.Equal(t, []float32{0, 0, 0, 0, 0}, rec[9:14])
}

func TestMissingTransformSkipped(t *testing.T) {
	g, b := newTestGraphics(t)
	p, err := g.CreateRenderPass(mustShader(t, g, "sprite", shader.ModeWorld))
	require.NoError(t, err)

	h := newFrameHarness(g)
	h.spawnDrawable(p, true)
	h.spawnDrawable(p, false) // no transform: warned and skipped
	h.runFrame()

	require.Len(t, b.draws, 1)
	assert.Equal(t, 1, b.draws[0].instanceCount)
}

func TestSharedTextureIdentityAndSync(t *testing.T) {
	g, b := newTestGraphics(t)

	first, err := g.CreateRenderPass(mustShader(t, g, "scene", shader.ModeWorld), WithDrawOrder(0))
	require.NoError(t, err)
	second, err := g.CreateRenderPass(mustShader(t, g, "post", shader.ModeFullscreen,
		shader.WithInputs("COLOR"),
	), WithDrawOrder(5))
	require.NoError(t, err)

	// Both passes resolve the same texture record by name.
	assert.Same(t, first.(*pass).outputs[0], second.(*pass).inputs[0])

	h := newFrameHarness(g)
	h.spawnDrawable(first, true)
	h.runFrame()

	// The shared texture is written and synced before the later pass reads it.
	require.Len(t, b.draws, 2)
	require.NotEmpty(t, b.copies)
	assert.Equal(t, "scene", b.draws[0].key)
	assert.Equal(t, "post", b.draws[1].key)
	require.Len(t, b.draws[1].inputs, 1)
	assert.Same(t, b.copies[0].dst, b.draws[1].inputs[0])

	drawFirst := indexOf(t, b.events, "draw scene x1")
	sync := indexOf(t, b.events, "copy COLOR -> COLOR (history)")
	drawSecond := indexOf(t, b.events, "draw post x1")
	assert.Less(t, drawFirst, sync)
	assert.Less(t, sync, drawSecond)
}

func indexOf(t *testing.T, events []string, want string) int {
	t.Helper()
	for i, e := range events {
		if e == want {
			return i
		}
	}
	t.Fatalf("event %q not found in %v", want, events)
	return -1
}

func TestResizeDestroysAndRecreates(t *testing.T) {
	g, b := newTestGraphics(t)
	p, err := g.CreateRenderPass(mustShader(t, g, "sprite", shader.ModeWorld))
	require.NoError(t, err)

	h := newFrameHarness(g)
	h.spawnDrawable(p, true)
	h.runFrame()

	require.NotEmpty(t, b.created)
	firstTexture := b.created[0]
	w, ht := firstTexture.Size()
	assert.Equal(t, 640, w)
	assert.Equal(t, 480, ht)

	g.Resize(800, 600)
	h.runFrame()

	assert.Contains(t, b.configures, [2]int{800, 600})
	assert.Contains(t, b.destroyed, Texture(firstTexture))

	latest := b.created[len(b.created)-1]
	w, ht = latest.Size()
	assert.Equal(t, 800, w)
	assert.Equal(t, 600, ht)
}

func TestTextureResolutionScale(t *testing.T) {
	b := newTestBackend(641, 480)
	g := NewGraphics(nil, WithBackend(b), WithPackWorkers(1))

	p, err := g.CreateRenderPass(mustShader(t, g, "sprite", shader.ModeWorld),
		WithTextureOptions("COLOR", 0.5, false, 1),
	)
	require.NoError(t, err)

	h := newFrameHarness(g)
	h.spawnDrawable(p, true)
	h.runFrame()

	require.NotEmpty(t, b.created)
	w, ht := b.created[0].Size()
	assert.Equal(t, 321, w) // ceil(641 * 0.5)
	assert.Equal(t, 240, ht)
}

func TestPresentPassDrawsOneInstance(t *testing.T) {
	g, b := newTestGraphics(t)
	p, err := g.CreateRenderPass(mustShader(t, g, "present", shader.ModeFullscreen,
		shader.WithInputs("COLOR"),
	), WithPresent())
	require.NoError(t, err)

	h := newFrameHarness(g)
	h.spawnDrawable(p, false)
	h.spawnDrawable(p, false)
	h.spawnDrawable(p, false)
	h.runFrame()

	require.Len(t, b.draws, 1)
	assert.Equal(t, 1, b.draws[0].instanceCount)
	assert.Contains(t, b.events, "begin-pass surface")
}

func TestFullscreenPassDrawsWithoutEntities(t *testing.T) {
	g, b := newTestGraphics(t)
	_, err := g.CreateRenderPass(mustShader(t, g, "post", shader.ModeFullscreen))
	require.NoError(t, err)

	h := newFrameHarness(g)
	h.runFrame()

	require.Len(t, b.draws, 1)
	assert.Equal(t, 1, b.draws[0].instanceCount)
}

func TestEmptyWorldPassSkipped(t *testing.T) {
	g, b := newTestGraphics(t)
	_, err := g.CreateRenderPass(mustShader(t, g, "sprite", shader.ModeWorld))
	require.NoError(t, err)

	h := newFrameHarness(g)
	h.runFrame()

	assert.Empty(t, b.draws)
	assert.Contains(t, b.events, "begin-frame")
	assert.Contains(t, b.events, "present")
}

func TestRegistrationErrors(t *testing.T) {
	g, b := newTestGraphics(t)

	names := []string{"o1", "o2", "o3", "o4", "o5", "o6", "o7", "o8"}
	tooMany := mustShader(t, g, "many", shader.ModeWorld, shader.WithOutputs(names...))
	_, err := g.CreateRenderPass(tooMany)
	assert.Error(t, err)

	_, err = g.CreateRenderPass(mustShader(t, g, "badDepth", shader.ModeWorld), WithDepthTest(DepthTest(99)))
	assert.Error(t, err)

	_, err = g.CreateRenderPass(mustShader(t, g, "badBlend", shader.ModeWorld), WithBlend(BlendMode(42)))
	assert.Error(t, err)

	_, err = g.CreateRenderPass(nil)
	assert.Error(t, err)

	b.failPipelines = true
	_, err = g.CreateRenderPass(mustShader(t, g, "broken", shader.ModeWorld))
	assert.Error(t, err)
}

func TestShaderCache(t *testing.T) {
	g, _ := newTestGraphics(t)

	s := mustShader(t, g, "sprite", shader.ModeWorld)
	assert.Equal(t, s, g.Shader("sprite"))
	assert.Nil(t, g.Shader("unknown"))

	_, err := g.CreateShader("sprite", shader.ModeWorld, testFragment)
	assert.Error(t, err)
}

func TestUniformStagingAndBuiltins(t *testing.T) {
	g, b := newTestGraphics(t)
	p, err := g.CreateRenderPass(mustShader(t, g, "sprite", shader.ModeWorld,
		shader.WithUniform("time", shader.UniformFloat),
	))
	require.NoError(t, err)

	p.SetUniform("time", 1.5)
	p.SetUniform("missing", 1) // undeclared: warn and no-op
	p.SetUniform("time", 1, 2) // wrong arity: warn and no-op
	p.SetUniform("view", 1)    // built-in: warn and no-op

	h := newFrameHarness(g)
	h.spawnDrawable(p, true)
	h.runFrame()

	require.Len(t, b.draws, 1)
	floats := floatsOf(b.draws[0].uniformData)

	// Declared uniform lands after the 96 built-in bytes.
	assert.Equal(t, float32(1.5), floats[96/4])

	// The view built-in is written every frame: default camera, zoom 100,
	// 640x480 viewport puts 2*zoom/width in the first column.
	assert.InDelta(t, 0.3125, floats[0], 1e-6)
	assert.InDelta(t, 2.0/4.8, floats[5], 1e-4)
}

func TestUndeclaredPropertyNoOp(t *testing.T) {
	g, b := newTestGraphics(t)
	p, err := g.CreateRenderPass(mustShader(t, g, "sprite", shader.ModeWorld,
		shader.WithProperty("tint", shader.Float),
	))
	require.NoError(t, err)

	h := newFrameHarness(g)
	_, r := h.spawnDrawable(p, true)
	r.SetProperty("tint", 5)
	r.SetProperty("nope", 1)    // undeclared: warn and no-op
	r.SetProperty("tint", 1, 2) // wrong arity: warn and no-op
	h.runFrame()

	require.Len(t, b.draws, 1)
	floats := floatsOf(b.draws[0].instanceData)
	assert.Equal(t, float32(5), floats[11])
}

func TestBatchResetBetweenFrames(t *testing.T) {
	g, b := newTestGraphics(t)
	p, err := g.CreateRenderPass(mustShader(t, g, "sprite", shader.ModeWorld))
	require.NoError(t, err)

	h := newFrameHarness(g)
	h.spawnDrawable(p, true)
	h.runFrame()
	h.runFrame()

	require.Len(t, b.draws, 2)
	assert.Equal(t, 1, b.draws[0].instanceCount)
	assert.Equal(t, 1, b.draws[1].instanceCount)
}

func TestDisabledPassSkipped(t *testing.T) {
	g, b := newTestGraphics(t)
	p, err := g.CreateRenderPass(mustShader(t, g, "sprite", shader.ModeWorld))
	require.NoError(t, err)

	h := newFrameHarness(g)
	h.spawnDrawable(p, true)

	p.SetEnabled(false)
	h.runFrame()
	assert.Empty(t, b.draws)

	p.SetEnabled(true)
	h.runFrame()
	assert.Len(t, b.draws, 1)
}
