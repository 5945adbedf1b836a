package shader

import (
	"fmt"

	"github.com/gogpu/naga"
)

// spirvMagic is the first word of every SPIR-V module.
const spirvMagic = 0x07230203

// CompileSPIRV translates a processed shader to SPIR-V with naga. The WebGPU backend consumes
// WGSL directly, so this is used to validate variants ahead of time.
//
// Parameters:
//   - s: the processed shader
//
// Returns:
//   - []byte: the SPIR-V module, little-endian words
//   - error: the naga diagnostic, or an error if the output is not SPIR-V
func CompileSPIRV(s Shader) ([]byte, error) {
	spirv, err := naga.Compile(s.Source())
	if err != nil {
		return nil, fmt.Errorf("shader: failed to compile %s: %w", s.Key(), err)
	}
	if len(spirv) < 4 || uint32(spirv[0])|uint32(spirv[1])<<8|uint32(spirv[2])<<16|uint32(spirv[3])<<24 != spirvMagic {
		return nil, fmt.Errorf("shader: %s: naga output is not a SPIR-V module", s.Key())
	}
	return spirv, nil
}
