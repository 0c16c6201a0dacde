package renderer

import (
	"log"
	"sync"

	"github.com/Carmen-Shannon/automation/tools/worker"
	"github.com/eswaidner/zen/common"
	"github.com/eswaidner/zen/engine/renderer/shader"
	"github.com/eswaidner/zen/engine/signal"
	"github.com/eswaidner/zen/engine/transform"
	"github.com/eswaidner/zen/engine/world"
	"github.com/go-gl/mathgl/mgl32"
)

// frameRunner is the two-phase frame task: the per-entity phase collects
// drawables into their pass batches, the once phase dispatches the whole pass
// graph for the frame.
type frameRunner struct {
	g *graphics
}

var _ signal.Runner = &frameRunner{}

func (f *frameRunner) Query() (world.Query, bool) {
	return world.Query{Include: []string{Key}}, true
}

func (f *frameRunner) RunEach(e world.Entity, ctx *signal.Context) {
	f.g.collect(e, ctx)
}

func (f *frameRunner) RunOnce(ctx *signal.Context) {
	f.g.dispatch()
}

// collect snapshots one drawable entity into its pass's batch. World-mode
// passes require a transform attribute; entities without one are skipped with
// a warning and do not count toward the pass's instances.
func (g *graphics) collect(e world.Entity, ctx *signal.Context) {
	r, ok := world.Get[*Renderer](ctx.World, e, Key)
	if !ok || r.pass == nil || !r.pass.enabled {
		return
	}

	rec := instanceRecord{
		depth:      r.depth,
		layer:      r.layer,
		properties: r.properties,
	}
	if r.pass.shader.Mode() == shader.ModeWorld {
		t, ok := world.Get[*transform.Transform](ctx.World, e, transform.Key)
		if !ok {
			log.Printf("[Renderer] entity %d draws with world shader %q but has no transform; skipping", e, r.pass.shader.Key())
			return
		}
		rec.transform = t.Matrix()
	}
	r.pass.batch = append(r.pass.batch, rec)
}

// dispatch runs the collected frame: reconfigure on viewport change, pack
// every pass's instance data in parallel, then encode each enabled pass in
// draw order with its uniform upload, instanced draw, and texture sync.
func (g *graphics) dispatch() {
	g.mu.Lock()
	defer g.mu.Unlock()
	defer g.resetBatches()

	if g.width != g.configuredW || g.height != g.configuredH {
		g.backend.ConfigureSurface(g.width, g.height)
		g.registry.markStale()
		g.configuredW, g.configuredH = g.width, g.height
	}
	if err := g.registry.ensure(g.configuredW, g.configuredH); err != nil {
		log.Printf("[Renderer] skipping frame: %v", err)
		return
	}

	g.packAll()

	if err := g.backend.BeginFrame(); err != nil {
		log.Printf("[Renderer] skipping frame: %v", err)
		return
	}

	view := g.cam.View(g.configuredW, g.configuredH)
	worldMat := view.Inv()

	for _, p := range g.passes {
		if !p.enabled {
			continue
		}

		stride := p.shader.Stride()
		count := len(p.instanceData) / stride
		if p.present {
			count = 1
		}
		if count == 0 {
			continue
		}

		p.stageBuiltins(view, worldMat)
		g.backend.WriteBuffer(p.uniformBuffer, 0, p.uniformData)

		if !g.uploadInstances(p) {
			continue
		}

		inputs := make([]Texture, len(p.inputs))
		for i, rt := range p.inputs {
			inputs[i] = rt.readTexture()
		}

		if p.present {
			g.backend.BeginPass(nil, true)
		} else {
			targets := make([]Texture, len(p.outputs))
			for i, rt := range p.outputs {
				targets[i] = rt.writeTexture()
			}
			g.backend.BeginPass(targets, false)
		}

		g.backend.Draw(p.pipeline, p.instanceBuffer, p.uniformBuffer, inputs, count)
		g.backend.EndPass()

		// Sync double-buffered outputs so later passes read this pass's
		// completed writes through the history copy.
		for _, rt := range p.outputs {
			if rt.needsAlternate() {
				g.backend.CopyTexture(rt.primary, rt.alternate)
			}
		}
	}

	g.backend.EndFrame()
	g.backend.Present()
}

// packAll rebuilds every pass's instance data from its batch, fanned out over
// the pack pool and joined before any GPU work. Fullscreen passes with an
// empty batch get a single zero record so the draw still has an instance.
func (g *graphics) packAll() {
	var wg sync.WaitGroup
	id := 0
	for _, p := range g.passes {
		if !p.enabled {
			continue
		}
		if len(p.batch) == 0 && (p.shader.Mode() == shader.ModeFullscreen || p.present) {
			p.batch = append(p.batch, instanceRecord{})
		}
		if len(p.batch) == 0 {
			p.instanceData = p.instanceData[:0]
			continue
		}

		wg.Add(1)
		target := p
		g.packPool.SubmitTask(worker.Task{
			ID: id,
			Do: func() (any, error) {
				defer wg.Done()
				target.pack()
				return nil, nil
			},
		})
		id++
	}
	wg.Wait()
}

// uploadInstances writes the packed instance data, growing the pass's buffer
// when the batch outgrew it.
func (g *graphics) uploadInstances(p *pass) bool {
	data := common.SliceToBytes(p.instanceData)
	if len(data) == 0 {
		return true
	}
	if p.instanceBuffer == nil || p.instanceBuffer.Size() < len(data) {
		size := len(data) * 2
		buf, err := g.backend.CreateBuffer(p.shader.Key()+" instances", size)
		if err != nil {
			log.Printf("[Renderer] pass %q: instance buffer grow failed: %v", p.shader.Key(), err)
			return false
		}
		p.instanceBuffer = buf
	}
	g.backend.WriteBuffer(p.instanceBuffer, 0, data)
	return true
}

// stageBuiltins writes the per-frame view and inverse-view matrices into the
// pass's uniform staging block.
func (p *pass) stageBuiltins(view, worldMat mgl32.Mat3) {
	if u, ok := p.shader.Uniform(shader.ViewUniform); ok {
		p.writeUniform(u, view[:])
	}
	if u, ok := p.shader.Uniform(shader.WorldUniform); ok {
		p.writeUniform(u, worldMat[:])
	}
}

func (g *graphics) resetBatches() {
	for _, p := range g.passes {
		p.reset()
	}
}
