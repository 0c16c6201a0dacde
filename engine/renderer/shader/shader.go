// Package shader turns a declared contract (mode, per-instance properties,
// uniforms, named inputs and outputs) plus a user-supplied WGSL fragment
// stage into a complete GPU program description: a procedurally generated
// vertex stage, a fixed per-instance buffer layout, and a uniform block
// layout with stable offsets. The declared order of properties and uniforms
// is the authoritative layout; it never changes for a shader's lifetime.
package shader

import (
	"fmt"
	"regexp"
)

// Mode selects how the synthesized vertex stage positions geometry.
type Mode int

const (
	// ModeWorld instances the quad per entity and forward-projects each
	// instance's transform through the view matrix.
	ModeWorld Mode = iota

	// ModeFullscreen treats the quad corners as normalized device
	// coordinates directly and back-projects to world space through the
	// inverse view transform. Fullscreen shaders are not instanced per
	// entity position and carry no built-in transform property.
	ModeFullscreen
)

// PropertyType is the type of one per-instance property.
type PropertyType int

const (
	// Float is a single f32 property occupying one buffer slot.
	Float PropertyType = iota

	// Int is an integer property. It rides the instance buffer as one f32
	// slot and is reassembled in shader code.
	Int

	// Vec2 is a two-component property occupying two buffer slots.
	Vec2

	// Mat3 is a 3x3 matrix property occupying nine buffer slots.
	Mat3
)

// Slots returns how many float slots of the instance buffer one value of
// this type occupies.
//
// Returns:
//   - int: the slot count (1, 1, 2, or 9)
func (t PropertyType) Slots() int {
	switch t {
	case Float, Int:
		return 1
	case Vec2:
		return 2
	case Mat3:
		return 9
	default:
		return 0
	}
}

// valid reports whether t is a known PropertyType.
func (t PropertyType) valid() bool {
	return t >= Float && t <= Mat3
}

// UniformType is the type of one declared per-pass uniform. Sampler bindings
// are implied by the shader's input list and are never declared directly.
type UniformType int

const (
	// UniformFloat is a single f32 uniform.
	UniformFloat UniformType = iota

	// UniformInt is a single i32 uniform.
	UniformInt

	// UniformVec2 is a vec2<f32> uniform.
	UniformVec2

	// UniformMat3 is a mat3x3<f32> uniform.
	UniformMat3
)

// byteSize returns the uniform's size in the uniform address space.
func (t UniformType) byteSize() int {
	switch t {
	case UniformFloat, UniformInt:
		return 4
	case UniformVec2:
		return 8
	case UniformMat3:
		return 48 // three vec3 columns, each padded to 16 bytes
	default:
		return 0
	}
}

// align returns the uniform's required alignment in the uniform address space.
func (t UniformType) align() int {
	switch t {
	case UniformFloat, UniformInt:
		return 4
	case UniformVec2:
		return 8
	case UniformMat3:
		return 16
	default:
		return 0
	}
}

// valid reports whether t is a known UniformType.
func (t UniformType) valid() bool {
	return t >= UniformFloat && t <= UniformMat3
}

// Property is one declared per-instance property and its resolved position
// in the instance record.
type Property struct {
	Name string
	Type PropertyType

	// Offset is the property's first float slot within one instance record,
	// including the built-in transform/depth/layer prefix.
	Offset int
}

// Uniform is one uniform and its resolved position in the pass uniform block.
type Uniform struct {
	Name string
	Type UniformType

	// Offset is the byte offset within the uniform block.
	Offset int
}

// AttributeFormat is the vertex format of one generated instance attribute.
type AttributeFormat int

const (
	// AttrFloat32 is a single 32-bit float attribute.
	AttrFloat32 AttributeFormat = iota

	// AttrFloat32x2 is a two-component float attribute.
	AttrFloat32x2

	// AttrFloat32x3 is a three-component float attribute.
	AttrFloat32x3
)

// Attribute describes one slot of the generated per-instance vertex layout,
// in backend-neutral terms.
type Attribute struct {
	Location uint32
	Format   AttributeFormat
	Offset   int // byte offset within one instance record
}

// ColorOutput is the implicit output every shader writes, always present at
// attachment slot 0.
const ColorOutput = "COLOR"

// Built-in uniform names injected into every shader's uniform block.
const (
	// ViewUniform is the world-to-NDC view matrix, updated every dispatch.
	ViewUniform = "view"

	// WorldUniform is the inverse view matrix, used by fullscreen shaders
	// to back-project quad corners into world space.
	WorldUniform = "world"
)

var identPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// shader is the implementation of the Shader interface. Immutable after New.
type shader struct {
	key            string
	mode           Mode
	fragmentSource string

	properties []Property
	uniforms   []Uniform
	inputs     []string
	outputs    []string

	stride           int // floats per instance record, built-ins included
	uniformBlockSize int // bytes, rounded to 16
	vertexSource     string
	fragmentPrelude  string
	attributes       []Attribute
}

// Shader is a compiled-contract GPU program description. The property and
// uniform order recorded here exactly matches the generated vertex stage
// layout; a render pass derives its instance buffer stride from it once and
// never changes it.
type Shader interface {
	// Key returns the shader's unique identifier, used for caching and lookups.
	//
	// Returns:
	//   - string: the shader key
	Key() string

	// Mode returns whether the shader is world-instanced or fullscreen.
	//
	// Returns:
	//   - Mode: ModeWorld or ModeFullscreen
	Mode() Mode

	// Properties returns the declared custom per-instance properties in
	// declared order, with resolved instance-record offsets. The built-in
	// transform/depth/layer prefix is not included.
	//
	// Returns:
	//   - []Property: the declared properties
	Properties() []Property

	// Property looks up a declared custom property by name.
	//
	// Parameters:
	//   - name: the property name
	//
	// Returns:
	//   - Property: the property descriptor
	//   - bool: true if the name is declared
	Property(name string) (Property, bool)

	// Uniforms returns every uniform in block order: the built-in view and
	// world matrices first, then declared uniforms in declared order.
	//
	// Returns:
	//   - []Uniform: the uniform block layout
	Uniforms() []Uniform

	// Uniform looks up a uniform (built-in or declared) by name.
	//
	// Parameters:
	//   - name: the uniform name
	//
	// Returns:
	//   - Uniform: the uniform descriptor
	//   - bool: true if the name exists in the block
	Uniform(name string) (Uniform, bool)

	// Inputs returns the declared input render texture names, in declared
	// order. Each becomes a texture binding after the shared sampler in the
	// pass bind group.
	//
	// Returns:
	//   - []string: the input names
	Inputs() []string

	// Outputs returns the output render texture names in attachment-slot
	// order, always starting with the implicit COLOR output.
	//
	// Returns:
	//   - []string: the output names
	Outputs() []string

	// Stride returns the number of floats one instance record occupies,
	// built-in transform/depth/layer prefix included.
	//
	// Returns:
	//   - int: floats per instance
	Stride() int

	// UniformBlockSize returns the uniform block's size in bytes.
	//
	// Returns:
	//   - int: the block size, 16-byte aligned
	UniformBlockSize() int

	// VertexSource returns the generated WGSL vertex stage.
	//
	// Returns:
	//   - string: WGSL source with entry point vs_main
	VertexSource() string

	// FragmentSource returns the complete WGSL fragment module: the generated
	// prelude (uniform block, sampler and input texture bindings, varying
	// struct) followed by the user-supplied stage.
	//
	// Returns:
	//   - string: WGSL source, expected entry point fs_main
	FragmentSource() string

	// InstanceAttributes returns the generated per-instance vertex layout.
	//
	// Returns:
	//   - []Attribute: attributes in location order
	InstanceAttributes() []Attribute
}

var _ Shader = &shader{}

// Option is a functional option declaring one element of a shader contract.
type Option func(*shader) error

// WithProperty declares one per-instance property. Declaration order is the
// instance buffer layout order.
//
// Parameters:
//   - name: the property name (a valid WGSL identifier)
//   - t: the property type
//
// Returns:
//   - Option: option function to apply
func WithProperty(name string, t PropertyType) Option {
	return func(s *shader) error {
		if !identPattern.MatchString(name) {
			return fmt.Errorf("property %q is not a valid identifier", name)
		}
		if !t.valid() {
			return fmt.Errorf("property %q has unsupported type %d", name, t)
		}
		for _, reserved := range []string{"transform", "depth", "layer", "corner"} {
			if name == reserved {
				return fmt.Errorf("property name %q is reserved", name)
			}
		}
		for _, p := range s.properties {
			if p.Name == name {
				return fmt.Errorf("property %q declared twice", name)
			}
		}
		s.properties = append(s.properties, Property{Name: name, Type: t})
		return nil
	}
}

// WithUniform declares one per-pass uniform. Declaration order is the
// uniform block layout order, after the built-in view and world matrices.
//
// Parameters:
//   - name: the uniform name (a valid WGSL identifier)
//   - t: the uniform type
//
// Returns:
//   - Option: option function to apply
func WithUniform(name string, t UniformType) Option {
	return func(s *shader) error {
		if !identPattern.MatchString(name) {
			return fmt.Errorf("uniform %q is not a valid identifier", name)
		}
		if !t.valid() {
			return fmt.Errorf("uniform %q has unsupported type %d", name, t)
		}
		if name == ViewUniform || name == WorldUniform {
			return fmt.Errorf("uniform name %q is reserved", name)
		}
		for _, u := range s.uniforms {
			if u.Name == name {
				return fmt.Errorf("uniform %q declared twice", name)
			}
		}
		s.uniforms = append(s.uniforms, Uniform{Name: name, Type: t})
		return nil
	}
}

// WithInputs declares the render textures the fragment stage reads, in
// binding order.
//
// Parameters:
//   - names: the input texture names
//
// Returns:
//   - Option: option function to apply
func WithInputs(names ...string) Option {
	return func(s *shader) error {
		for _, name := range names {
			if !identPattern.MatchString(name) {
				return fmt.Errorf("input %q is not a valid identifier", name)
			}
			for _, existing := range s.inputs {
				if existing == name {
					return fmt.Errorf("input %q declared twice", name)
				}
			}
			s.inputs = append(s.inputs, name)
		}
		return nil
	}
}

// WithOutputs declares additional render textures the fragment stage writes.
// The implicit COLOR output always occupies attachment slot 0; declared
// outputs follow in declared order.
//
// Parameters:
//   - names: the output texture names
//
// Returns:
//   - Option: option function to apply
func WithOutputs(names ...string) Option {
	return func(s *shader) error {
		for _, name := range names {
			if !identPattern.MatchString(name) {
				return fmt.Errorf("output %q is not a valid identifier", name)
			}
			for _, existing := range s.outputs {
				if existing == name {
					return fmt.Errorf("output %q declared twice", name)
				}
			}
			s.outputs = append(s.outputs, name)
		}
		return nil
	}
}

// New builds a Shader from a contract and a user fragment stage. The contract
// is resolved eagerly: instance layout offsets, uniform block offsets, the
// generated vertex stage, and the vertex attribute layout are all fixed here
// and immutable afterwards. Contract errors (bad names, unknown types,
// duplicates) are fatal for the call.
//
// Parameters:
//   - key: unique identifier for the shader
//   - mode: ModeWorld or ModeFullscreen
//   - fragmentSource: the user-supplied WGSL fragment stage
//   - options: contract declarations (properties, uniforms, inputs, outputs)
//
// Returns:
//   - Shader: the resolved shader
//   - error: a contract error, or nil
func New(key string, mode Mode, fragmentSource string, options ...Option) (Shader, error) {
	if key == "" {
		return nil, fmt.Errorf("shader key must not be empty")
	}
	if mode != ModeWorld && mode != ModeFullscreen {
		return nil, fmt.Errorf("shader %q: unsupported mode %d", key, mode)
	}
	if fragmentSource == "" {
		return nil, fmt.Errorf("shader %q: fragment source must not be empty", key)
	}

	s := &shader{
		key:            key,
		mode:           mode,
		fragmentSource: fragmentSource,
		outputs:        []string{ColorOutput},
	}
	for _, opt := range options {
		if err := opt(s); err != nil {
			return nil, fmt.Errorf("shader %q: %w", key, err)
		}
	}

	s.resolveInstanceLayout()
	s.resolveUniformLayout()
	s.vertexSource = generateVertexStage(s)
	s.fragmentPrelude = generateFragmentPrelude(s)

	return s, nil
}

// resolveInstanceLayout fixes each property's slot offset and the record
// stride. World mode prefixes the built-in transform (9 slots) ahead of the
// depth hint and layer index; fullscreen mode carries only depth and layer.
func (s *shader) resolveInstanceLayout() {
	offset := builtinSlots(s.mode)
	for i := range s.properties {
		s.properties[i].Offset = offset
		offset += s.properties[i].Type.Slots()
	}
	s.stride = offset
	s.attributes = generateInstanceAttributes(s)
}

// resolveUniformLayout fixes each uniform's byte offset within the pass
// uniform block, applying uniform-address-space alignment rules. The built-in
// view and world matrices always occupy the first 96 bytes.
func (s *shader) resolveUniformLayout() {
	block := []Uniform{
		{Name: ViewUniform, Type: UniformMat3, Offset: 0},
		{Name: WorldUniform, Type: UniformMat3, Offset: 48},
	}
	offset := 96
	for _, u := range s.uniforms {
		offset = alignUp(offset, u.Type.align())
		u.Offset = offset
		offset += u.Type.byteSize()
		block = append(block, u)
	}
	s.uniforms = block
	s.uniformBlockSize = alignUp(offset, 16)
}

// builtinSlots returns the float count of the built-in instance prefix for a
// mode: transform (world mode only), depth hint, layer index.
func builtinSlots(mode Mode) int {
	if mode == ModeWorld {
		return 9 + 1 + 1
	}
	return 1 + 1
}

func alignUp(v, align int) int {
	return (v + align - 1) / align * align
}

func (s *shader) Key() string {
	return s.key
}

func (s *shader) Mode() Mode {
	return s.mode
}

func (s *shader) Properties() []Property {
	return s.properties
}

func (s *shader) Property(name string) (Property, bool) {
	for _, p := range s.properties {
		if p.Name == name {
			return p, true
		}
	}
	return Property{}, false
}

func (s *shader) Uniforms() []Uniform {
	return s.uniforms
}

func (s *shader) Uniform(name string) (Uniform, bool) {
	for _, u := range s.uniforms {
		if u.Name == name {
			return u, true
		}
	}
	return Uniform{}, false
}

func (s *shader) Inputs() []string {
	return s.inputs
}

func (s *shader) Outputs() []string {
	return s.outputs
}

func (s *shader) Stride() int {
	return s.stride
}

func (s *shader) UniformBlockSize() int {
	return s.uniformBlockSize
}

func (s *shader) VertexSource() string {
	return s.vertexSource
}

func (s *shader) FragmentSource() string {
	return s.fragmentPrelude + s.fragmentSource
}

func (s *shader) InstanceAttributes() []Attribute {
	return s.attributes
}
