package frame

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/loov/hrtime"
)

const (
	nearPlane = 0.1
	farPlane  = 10.0
	fovY      = 45.0
)

// Clock supplies elapsed time in seconds.
type Clock interface {
	Seconds() float64
}

type hrClock struct{}

func (hrClock) Seconds() float64 {
	return hrtime.Now().Seconds()
}

// SystemClock reads the high resolution process timer.
func SystemClock() Clock {
	return hrClock{}
}

// ModelMatrix rotates the mesh 90 degrees per second around +Z.
func ModelMatrix(elapsed float64) mgl32.Mat4 {
	timePeriod := float32(math.Mod(elapsed, 4.0))
	return mgl32.HomogRotate3D(timePeriod*mgl32.DegToRad(90.0), mgl32.Vec3{0, 0, 1})
}

// ViewMatrix looks at the origin from (2, 2, 2) with +Z up.
func ViewMatrix() mgl32.Mat4 {
	return mgl32.LookAt(2, 2, 2, 0, 0, 0, 0, 0, 1)
}

// Projection is a right-handed perspective mapping depth to [0, 1] with the
// Y axis flipped for Vulkan clip space.
func Projection(aspectRatio float32) mgl32.Mat4 {
	near := nearPlane
	far := farPlane
	fovy := mgl32.DegToRad(fovY)
	fmn, f := far-near, float32(1./math.Tan(float64(fovy)/2.0))

	return mgl32.Mat4{
		f / aspectRatio, 0, 0, 0,
		0, -f, 0, 0,
		0, 0, float32(-far / fmn), -1,
		0, 0, float32(-(far * near) / fmn), 0,
	}
}

// FrameUniforms returns the view and projection for a target of the given
// pixel size.
func FrameUniforms(width, height int) Uniforms {
	aspect := float32(1)
	if height > 0 {
		aspect = float32(width) / float32(height)
	}
	return Uniforms{
		View: ViewMatrix(),
		Proj: Projection(aspect),
	}
}
