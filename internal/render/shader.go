package render

import (
	"encoding/binary"
	"os"

	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/core/core1_0"
)

const spirvMagic = 0x07230203

// ShaderCode is a pair of SPIR-V programs with entry point "main".
type ShaderCode struct {
	Vertex   []uint32
	Fragment []uint32
}

// spirvWords converts a SPIR-V blob to words, rejecting anything that is
// not a whole number of words or lacks the magic number.
func spirvWords(b []byte) ([]uint32, error) {
	if len(b) == 0 || len(b)%4 != 0 {
		return nil, errors.Newf("spir-v size %d is not a positive multiple of 4", len(b))
	}

	words := make([]uint32, len(b)/4)
	for i := range words {
		words[i] = binary.LittleEndian.Uint32(b[i*4:])
	}

	if words[0] != spirvMagic {
		return nil, errors.Newf("bad spir-v magic %#08x", words[0])
	}
	return words, nil
}

// ParseSPIRV decodes a compiled shader already held in memory.
func ParseSPIRV(b []byte) ([]uint32, error) {
	return spirvWords(b)
}

// ReadSPIRV loads a compiled shader from disk.
func ReadSPIRV(path string) ([]uint32, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "read shader %s", path)
	}

	words, err := spirvWords(b)
	return words, errors.Wrapf(err, "load shader %s", path)
}

func createShaderModule(dev *Device, code []uint32) (core1_0.ShaderModule, error) {
	module, _, err := dev.device.CreateShaderModule(nil, core1_0.ShaderModuleCreateInfo{
		Code: code,
	})
	return module, errors.Wrap(err, "create shader module")
}
