package engine

import (
	"testing"
	"time"

	"github.com/cogentcore/webgpu/wgpu"
	"github.com/eswaidner/zen/engine/camera"
	"github.com/eswaidner/zen/engine/renderer"
	"github.com/eswaidner/zen/engine/renderer/shader"
	"github.com/eswaidner/zen/engine/signal"
	"github.com/eswaidner/zen/engine/window"
	"github.com/eswaidner/zen/engine/world"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubWindow satisfies window.Window without creating a platform window.
type stubWindow struct {
	width    int
	height   int
	onResize func(width, height int)
	closed   chan struct{}
}

var _ window.Window = &stubWindow{}

func newStubWindow() *stubWindow {
	return &stubWindow{width: 640, height: 480, closed: make(chan struct{})}
}

func (w *stubWindow) SetUpdateCallback(func()) {}

func (w *stubWindow) SetResizeCallback(cb func(int, int)) {
	w.onResize = cb
}

func (w *stubWindow) SetScrollCallback(func(float32)) {}

func (w *stubWindow) SetKeyDownCallback(func(uint32)) {}

func (w *stubWindow) SetKeyUpCallback(func(uint32)) {}

func (w *stubWindow) SetMouseDownCallback(func(uint32, int32, int32)) {}

func (w *stubWindow) SetMouseUpCallback(func(uint32, int32, int32)) {}

func (w *stubWindow) SetMouseMoveCallback(func(int32, int32)) {}

func (w *stubWindow) SurfaceDescriptor() *wgpu.SurfaceDescriptor {
	return nil
}

func (w *stubWindow) IsRunning() bool {
	select {
	case <-w.closed:
		return false
	default:
		return true
	}
}

func (w *stubWindow) Close() error {
	close(w.closed)
	return nil
}

func (w *stubWindow) ProcessMessages() {
	<-w.closed
}

func (w *stubWindow) Width() int {
	return w.width
}

func (w *stubWindow) Height() int {
	return w.height
}

// stubGraphics records frame executor dispatches and resizes.
type stubGraphics struct {
	cam     camera.Camera
	resizes [][2]int
	frames  int
	onFrame func()
}

var _ renderer.Graphics = &stubGraphics{}

func newStubGraphics() *stubGraphics {
	return &stubGraphics{cam: camera.NewCamera()}
}

func (g *stubGraphics) CreateShader(key string, mode shader.Mode, src string, options ...shader.Option) (shader.Shader, error) {
	return shader.New(key, mode, src, options...)
}
func (g *stubGraphics) Shader(string) shader.Shader { return nil }
func (g *stubGraphics) CreateRenderPass(shader.Shader, ...renderer.PassOption) (renderer.Pass, error) {
	return nil, nil
}
func (g *stubGraphics) Passes() []renderer.Pass { return nil }
func (g *stubGraphics) Resize(width, height int) {
	g.resizes = append(g.resizes, [2]int{width, height})
}
func (g *stubGraphics) Camera() camera.Camera { return g.cam }
func (g *stubGraphics) FrameRunner() signal.Runner {
	return signal.Funcs{Once: func(ctx *signal.Context) {
		g.frames++
		if g.onFrame != nil {
			g.onFrame()
		}
	}}
}

func newTestEngine(t *testing.T) (Engine, *stubWindow, *stubGraphics) {
	t.Helper()
	win := newStubWindow()
	gfx := newStubGraphics()
	return NewEngine(WithWindow(win), WithGraphics(gfx)), win, gfx
}

func TestFrameExecutorRunsAfterUpdateTasks(t *testing.T) {
	e, _, gfx := newTestEngine(t)

	var order []string
	gfx.onFrame = func() { order = append(order, "render") }
	e.Signals().OnSignal(e.Update(), signal.Funcs{Once: func(ctx *signal.Context) {
		order = append(order, "update")
	}})

	e.Signals().Advance(1.0 / 60.0)
	e.Signals().Dispatch(e.Update())

	require.Equal(t, []string{"update", "render"}, order)
	assert.Equal(t, 1, gfx.frames)
}

func TestResizeForwardedToGraphics(t *testing.T) {
	_, win, gfx := newTestEngine(t)

	require.NotNil(t, win.onResize)
	win.onResize(800, 600)

	require.Len(t, gfx.resizes, 1)
	assert.Equal(t, [2]int{800, 600}, gfx.resizes[0])
}

func TestRunStopsWhenWindowCloses(t *testing.T) {
	e, win, gfx := newTestEngine(t)

	done := make(chan struct{})
	go func() {
		e.Run()
		close(done)
	}()

	// Give the frame loop a moment to produce frames, then close the window.
	time.Sleep(50 * time.Millisecond)
	require.NoError(t, win.Close())

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after the window closed")
	}
	assert.Greater(t, gfx.frames, 0)
}

func TestQuitIsIdempotent(t *testing.T) {
	e, _, _ := newTestEngine(t)
	e.Quit()
	e.Quit()
}

func TestEngineExposesSharedState(t *testing.T) {
	e, win, gfx := newTestEngine(t)

	assert.Same(t, win, e.Window())
	assert.NotNil(t, e.World())
	assert.NotNil(t, e.Signals())
	assert.Same(t, gfx.cam, e.Camera())
	assert.NotEqual(t, e.Update(), e.Render())
}

func TestUpdateTasksSeeWorld(t *testing.T) {
	e, _, _ := newTestEngine(t)

	ent := e.World().Spawn()
	e.World().Set(ent, "tag", struct{}{})

	var seen []world.Entity
	e.Signals().OnSignal(e.Update(), signal.Funcs{
		Filter: &world.Query{Include: []string{"tag"}},
		Each: func(ee world.Entity, ctx *signal.Context) {
			seen = append(seen, ee)
		},
	})

	e.Signals().Advance(1.0 / 60.0)
	e.Signals().Dispatch(e.Update())

	require.Equal(t, []world.Entity{ent}, seen)
}
