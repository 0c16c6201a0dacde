package renderer

import (
	"fmt"
	"math"
)

// renderTexture is one named shared render target. Textures are identified by
// name: every pass input or output referring to the same name resolves to the
// same allocation. A swappable texture carries a second allocation that holds
// last-completed contents for passes that read and write the same name.
type renderTexture struct {
	name      string
	scale     float64 // resolution scale relative to the surface, > 0
	layers    int
	swappable bool

	// usage flags; a texture read and written across the pass list becomes
	// swappable automatically.
	usedAsInput  bool
	usedAsOutput bool

	primary   Texture
	alternate Texture
	stale     bool
}

// textureRegistry owns every named render texture of one Graphics instance.
type textureRegistry struct {
	backend  Backend
	textures map[string]*renderTexture
}

func newTextureRegistry(backend Backend) *textureRegistry {
	return &textureRegistry{
		backend:  backend,
		textures: make(map[string]*renderTexture),
	}
}

// acquire resolves a name to its texture record, creating a default record
// (full resolution, one layer) on first reference.
func (reg *textureRegistry) acquire(name string) *renderTexture {
	if rt, ok := reg.textures[name]; ok {
		return rt
	}
	rt := &renderTexture{name: name, scale: 1, layers: 1, stale: true}
	reg.textures[name] = rt
	return rt
}

// configure applies explicit texture options. Existing allocations are marked
// stale so the next frame recreates them at the new configuration.
func (rt *renderTexture) configure(scale float64, swappable bool, layers int) error {
	if scale <= 0 {
		return fmt.Errorf("render texture %q: resolution scale must be > 0, got %v", rt.name, scale)
	}
	if layers < 1 {
		return fmt.Errorf("render texture %q: layer count must be >= 1, got %d", rt.name, layers)
	}
	rt.scale = scale
	rt.layers = layers
	if swappable {
		rt.swappable = true
	}
	rt.stale = true
	return nil
}

// markStale flags every allocation for destroy-and-recreate. Called when the
// surface size changes; textures are never resized in place.
func (reg *textureRegistry) markStale() {
	for _, rt := range reg.textures {
		rt.stale = true
	}
}

// ensure realizes every texture for the given surface size, destroying and
// recreating any allocation whose configuration went stale. Sizes are
// ceil(surface * scale), clamped to at least 1x1.
func (reg *textureRegistry) ensure(surfaceWidth, surfaceHeight int) error {
	for _, rt := range reg.textures {
		if !rt.stale && rt.primary != nil && (!rt.needsAlternate() || rt.alternate != nil) {
			continue
		}

		if rt.primary != nil {
			reg.backend.DestroyTexture(rt.primary)
			rt.primary = nil
		}
		if rt.alternate != nil {
			reg.backend.DestroyTexture(rt.alternate)
			rt.alternate = nil
		}

		w := scaledExtent(surfaceWidth, rt.scale)
		h := scaledExtent(surfaceHeight, rt.scale)

		tex, err := reg.backend.CreateTexture(rt.name, w, h, rt.layers)
		if err != nil {
			return fmt.Errorf("render texture %q: %w", rt.name, err)
		}
		rt.primary = tex

		if rt.needsAlternate() {
			alt, err := reg.backend.CreateTexture(rt.name+" (history)", w, h, rt.layers)
			if err != nil {
				return fmt.Errorf("render texture %q: %w", rt.name, err)
			}
			rt.alternate = alt
		}
		rt.stale = false
	}
	return nil
}

// needsAlternate reports whether the texture carries a second allocation:
// either explicitly swappable or both read and written by the pass list.
func (rt *renderTexture) needsAlternate() bool {
	return rt.swappable || (rt.usedAsInput && rt.usedAsOutput)
}

// readTexture returns the allocation input bindings sample: the history copy
// for double-buffered textures, the live one otherwise.
func (rt *renderTexture) readTexture() Texture {
	if rt.needsAlternate() {
		return rt.alternate
	}
	return rt.primary
}

// writeTexture returns the allocation output attachments render into. Passes
// always write the primary; sync copies it to the history afterwards.
func (rt *renderTexture) writeTexture() Texture {
	return rt.primary
}

// scaledExtent computes one texture dimension from the surface extent and the
// resolution scale, rounding up and clamping to at least one texel.
func scaledExtent(surface int, scale float64) int {
	e := int(math.Ceil(float64(surface) * scale))
	if e < 1 {
		e = 1
	}
	return e
}
