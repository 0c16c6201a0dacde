package shader

import (
	"fmt"
	"strings"
)

// VertexEntryPoint is the entry point name of every generated vertex stage.
const VertexEntryPoint = "vs_main"

// FragmentEntryPoint is the entry point name a user fragment stage must expose.
const FragmentEntryPoint = "fs_main"

// Fixed varying locations guaranteed to every fragment stage. Declared custom
// properties follow as flat varyings starting at FirstPropertyVarying.
const (
	screenPosVarying     = 0
	worldPosVarying      = 1
	localPosVarying      = 2
	depthVarying         = 3
	layerVarying         = 4
	firstPropertyVarying = 5
)

// generateInstanceAttributes lays out the per-instance vertex buffer:
// the built-in transform columns (world mode), depth, layer, then every
// declared property in declared order. Location 0 is reserved for the quad
// corner in the vertex-rate buffer.
func generateInstanceAttributes(s *shader) []Attribute {
	var attrs []Attribute
	location := uint32(1)
	slot := 0

	push := func(format AttributeFormat, slots int) {
		attrs = append(attrs, Attribute{Location: location, Format: format, Offset: slot * 4})
		location++
		slot += slots
	}

	if s.mode == ModeWorld {
		push(AttrFloat32x3, 3) // transform column 0
		push(AttrFloat32x3, 3) // transform column 1
		push(AttrFloat32x3, 3) // transform column 2
	}
	push(AttrFloat32, 1) // depth hint
	push(AttrFloat32, 1) // layer index

	for _, p := range s.properties {
		switch p.Type {
		case Float, Int:
			push(AttrFloat32, 1)
		case Vec2:
			push(AttrFloat32x2, 2)
		case Mat3:
			push(AttrFloat32x3, 3)
			push(AttrFloat32x3, 3)
			push(AttrFloat32x3, 3)
		}
	}
	return attrs
}

// generateVertexStage synthesizes the WGSL vertex stage matching the shader's
// contract. Every declared property is copied through unmodified as a flat
// varying, since properties are per-instance constants, not per-vertex data. The
// stage always provides three derived varyings: the normalized screen
// position, the world-space position, and the raw local quad position.
func generateVertexStage(s *shader) string {
	var b strings.Builder

	writeGlobalsStruct(&b, s)
	b.WriteString("@group(0) @binding(0) var<uniform> globals: Globals;\n\n")

	// Vertex input struct.
	b.WriteString("struct VertexInput {\n")
	b.WriteString("    @location(0) corner: vec2<f32>,\n")
	location := 1
	if s.mode == ModeWorld {
		for col := 0; col < 3; col++ {
			fmt.Fprintf(&b, "    @location(%d) transform_%d: vec3<f32>,\n", location, col)
			location++
		}
	}
	fmt.Fprintf(&b, "    @location(%d) depth: f32,\n", location)
	location++
	fmt.Fprintf(&b, "    @location(%d) layer: f32,\n", location)
	location++
	for _, p := range s.properties {
		switch p.Type {
		case Float, Int:
			fmt.Fprintf(&b, "    @location(%d) %s: f32,\n", location, p.Name)
			location++
		case Vec2:
			fmt.Fprintf(&b, "    @location(%d) %s: vec2<f32>,\n", location, p.Name)
			location++
		case Mat3:
			for col := 0; col < 3; col++ {
				fmt.Fprintf(&b, "    @location(%d) %s_%d: vec3<f32>,\n", location, p.Name, col)
				location++
			}
		}
	}
	b.WriteString("};\n\n")

	writeVertexOutputStruct(&b, s)

	b.WriteString("@vertex\n")
	fmt.Fprintf(&b, "fn %s(in: VertexInput) -> VertexOutput {\n", VertexEntryPoint)
	b.WriteString("    var out: VertexOutput;\n")
	switch s.mode {
	case ModeWorld:
		b.WriteString("    let transform = mat3x3<f32>(in.transform_0, in.transform_1, in.transform_2);\n")
		b.WriteString("    let world_pos = transform * vec3<f32>(in.corner, 1.0);\n")
		b.WriteString("    let view_pos = globals.view * world_pos;\n")
		b.WriteString("    out.position = vec4<f32>(view_pos.xy, in.depth, 1.0);\n")
		b.WriteString("    out.screen_pos = view_pos.xy;\n")
		b.WriteString("    out.world_pos = world_pos.xy;\n")
	case ModeFullscreen:
		// Quad corners are already normalized device coordinates;
		// back-project through the inverse view for the world position.
		b.WriteString("    out.position = vec4<f32>(in.corner, in.depth, 1.0);\n")
		b.WriteString("    out.screen_pos = in.corner;\n")
		b.WriteString("    out.world_pos = (globals.world * vec3<f32>(in.corner, 1.0)).xy;\n")
	}
	b.WriteString("    out.local_pos = in.corner;\n")
	b.WriteString("    out.depth = in.depth;\n")
	b.WriteString("    out.layer = in.layer;\n")
	for _, p := range s.properties {
		if p.Type == Mat3 {
			for col := 0; col < 3; col++ {
				fmt.Fprintf(&b, "    out.%s_%d = in.%s_%d;\n", p.Name, col, p.Name, col)
			}
			continue
		}
		fmt.Fprintf(&b, "    out.%s = in.%s;\n", p.Name, p.Name)
	}
	b.WriteString("    return out;\n")
	b.WriteString("}\n")

	return b.String()
}

// generateFragmentPrelude synthesizes the declarations the user fragment
// stage compiles against: the Globals uniform block, the shared sampler and
// input texture bindings in declared order, and the VertexOutput struct
// mirroring the generated vertex stage. The user source follows the prelude
// in the same module and only has to define fs_main.
func generateFragmentPrelude(s *shader) string {
	var b strings.Builder

	writeGlobalsStruct(&b, s)
	b.WriteString("@group(0) @binding(0) var<uniform> globals: Globals;\n")
	if len(s.inputs) > 0 {
		b.WriteString("@group(0) @binding(1) var input_sampler: sampler;\n")
		for i, name := range s.inputs {
			fmt.Fprintf(&b, "@group(0) @binding(%d) var %s: texture_2d_array<f32>;\n", 2+i, name)
		}
	}
	b.WriteString("\n")
	writeVertexOutputStruct(&b, s)

	return b.String()
}

// writeVertexOutputStruct emits the varying struct shared by both stages:
// the derived positions, the flat depth and layer, then every declared
// property as a flat varying.
func writeVertexOutputStruct(b *strings.Builder, s *shader) {
	b.WriteString("struct VertexOutput {\n")
	b.WriteString("    @builtin(position) position: vec4<f32>,\n")
	fmt.Fprintf(b, "    @location(%d) screen_pos: vec2<f32>,\n", screenPosVarying)
	fmt.Fprintf(b, "    @location(%d) world_pos: vec2<f32>,\n", worldPosVarying)
	fmt.Fprintf(b, "    @location(%d) local_pos: vec2<f32>,\n", localPosVarying)
	fmt.Fprintf(b, "    @location(%d) @interpolate(flat) depth: f32,\n", depthVarying)
	fmt.Fprintf(b, "    @location(%d) @interpolate(flat) layer: f32,\n", layerVarying)
	location := firstPropertyVarying
	for _, p := range s.properties {
		switch p.Type {
		case Float, Int:
			fmt.Fprintf(b, "    @location(%d) @interpolate(flat) %s: f32,\n", location, p.Name)
			location++
		case Vec2:
			fmt.Fprintf(b, "    @location(%d) @interpolate(flat) %s: vec2<f32>,\n", location, p.Name)
			location++
		case Mat3:
			for col := 0; col < 3; col++ {
				fmt.Fprintf(b, "    @location(%d) @interpolate(flat) %s_%d: vec3<f32>,\n", location, p.Name, col)
				location++
			}
		}
	}
	b.WriteString("};\n\n")
}

// writeGlobalsStruct emits the pass uniform block: built-in view and world
// matrices first, then declared uniforms in declared order. Member order
// reproduces the offsets computed in resolveUniformLayout, since WGSL's
// natural uniform layout applies the same alignment rules.
func writeGlobalsStruct(b *strings.Builder, s *shader) {
	b.WriteString("struct Globals {\n")
	for _, u := range s.uniforms {
		fmt.Fprintf(b, "    %s: %s,\n", u.Name, wgslUniformType(u.Type))
	}
	b.WriteString("};\n\n")
}

func wgslUniformType(t UniformType) string {
	switch t {
	case UniformFloat:
		return "f32"
	case UniformInt:
		return "i32"
	case UniformVec2:
		return "vec2<f32>"
	case UniformMat3:
		return "mat3x3<f32>"
	default:
		return "f32"
	}
}
