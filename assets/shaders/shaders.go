// Package shaders embeds the SPIR-V for the default pipeline. The binaries
// are compiled from the GLSL sources next to them with glslc from the
// Vulkan SDK.
package shaders

import "embed"

//go:generate glslc shader.vert -o vert.spv
//go:generate glslc shader.frag -o frag.spv

//go:embed *.spv
var FS embed.FS
