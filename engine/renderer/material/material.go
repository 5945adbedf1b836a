// Package material describes surface inputs to the G-buffer pass. Each channel is either sampled
// from a texture or supplied as a constant, decided once when the material is built.
package material

import (
	"sync"

	"github.com/Carmen-Shannon/oxy-deferred/common"
	"github.com/Carmen-Shannon/oxy-deferred/engine/renderer/gpu"
	"github.com/google/uuid"
)

// Default channel constants.
var (
	DefaultBaseColor = [4]float32{1, 1, 1, 1}
	// DefaultNormal is the tangent-space normal pointing straight out of the surface.
	DefaultNormal = [4]float32{0, 0, 1, 0}
	// DefaultORM is full occlusion, full roughness, no metal.
	DefaultORM = [4]float32{1, 1, 0, 0}
)

// material is the implementation of the Material interface.
type material struct {
	mu *sync.Mutex

	id          uuid.UUID
	name        string
	capability  Capability
	constants   [3][4]float32
	textures    [3]*common.TextureStagingData
	sampler     common.SamplerStagingData
	views       [3]gpu.TextureView
	bindGroup   gpu.BindGroup
	pipelineKey string
}

// Material defines the interface for a render material.
//
// Surface properties (channel textures and constants, and therefore the capability) are set at
// load time and are read-only through this interface. GPU resource references (texture views,
// bind group, pipeline key) are filled in once the material is registered with the renderer.
type Material interface {
	// ID returns the unique identity of the material.
	//
	// Returns:
	//   - uuid.UUID: the material id
	ID() uuid.UUID

	// Name retrieves the material identifier.
	//
	// Returns:
	//   - string: the name of the material
	Name() string

	// Capability returns the set of texture-backed channels.
	//
	// Returns:
	//   - Capability: the capability bitmask
	Capability() Capability

	// Constant returns the configured constant of a channel. It is only used by the shader when
	// the channel is not texture backed.
	//
	// Parameters:
	//   - ch: the channel
	//
	// Returns:
	//   - [4]float32: the constant value
	Constant(ch Channel) [4]float32

	// Texture returns the staged pixels of a texture-backed channel, or nil.
	//
	// Parameters:
	//   - ch: the channel
	//
	// Returns:
	//   - *common.TextureStagingData: the staged texture, or nil
	Texture(ch Channel) *common.TextureStagingData

	// Sampler returns the sampler configuration used for every channel texture.
	Sampler() common.SamplerStagingData

	// TextureView returns the uploaded view of a channel texture, zero before registration.
	TextureView(ch Channel) gpu.TextureView

	// SetTextureView records the uploaded view of a channel texture.
	//
	// Parameters:
	//   - ch: the channel
	//   - view: the uploaded texture view
	SetTextureView(ch Channel, view gpu.TextureView)

	// BindGroup returns the material texture bind group, zero for constant-only materials.
	BindGroup() gpu.BindGroup

	// SetBindGroup records the material texture bind group.
	SetBindGroup(bg gpu.BindGroup)

	// PipelineKey retrieves the key of the pipeline variant this material draws with.
	//
	// Returns:
	//   - string: the pipeline key
	PipelineKey() string

	// SetPipelineKey sets the pipeline variant key for this material.
	//
	// Parameters:
	//   - key: the pipeline key to associate with this material
	SetPipelineKey(key string)
}

var _ Material = &material{}

// NewMaterial creates a new Material instance configured with the provided options. The
// capability is derived from which channel textures were supplied.
//
// Parameters:
//   - options: variadic list of MaterialBuilderOption functions to configure the material
//
// Returns:
//   - Material: a new Material instance
func NewMaterial(options ...MaterialBuilderOption) Material {
	m := &material{
		mu:        &sync.Mutex{},
		id:        uuid.New(),
		constants: [3][4]float32{DefaultBaseColor, DefaultNormal, DefaultORM},
		sampler: common.SamplerStagingData{
			AddressModeU: gpu.AddressModeRepeat,
			AddressModeV: gpu.AddressModeRepeat,
			AddressModeW: gpu.AddressModeRepeat,
			MagFilter:    gpu.FilterModeLinear,
			MinFilter:    gpu.FilterModeLinear,
			LodMaxClamp:  32,
		},
	}
	for _, opt := range options {
		opt(m)
	}
	for _, ch := range Channels() {
		if m.textures[ch] != nil {
			m.capability |= ch.Capability()
		}
	}
	return m
}

func (m *material) ID() uuid.UUID {
	return m.id
}

func (m *material) Name() string {
	return m.name
}

func (m *material) Capability() Capability {
	return m.capability
}

func (m *material) Constant(ch Channel) [4]float32 {
	return m.constants[ch]
}

func (m *material) Texture(ch Channel) *common.TextureStagingData {
	return m.textures[ch]
}

func (m *material) Sampler() common.SamplerStagingData {
	return m.sampler
}

func (m *material) TextureView(ch Channel) gpu.TextureView {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.views[ch]
}

func (m *material) SetTextureView(ch Channel, view gpu.TextureView) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.views[ch] = view
}

func (m *material) BindGroup() gpu.BindGroup {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.bindGroup
}

func (m *material) SetBindGroup(bg gpu.BindGroup) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.bindGroup = bg
}

func (m *material) PipelineKey() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.pipelineKey
}

func (m *material) SetPipelineKey(key string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pipelineKey = key
}
