// Package frame drives the steady-state render loop: fence waits, image
// acquisition, command recording, submission, presentation and swapchain
// recreation.
//
// The GPU side is reached through Backend so the protocol can be exercised
// against a simulated timeline.
package frame

import (
	"github.com/go-gl/mathgl/mgl32"
)

// Status is the non-error outcome of acquiring or presenting an image.
type Status int

const (
	// StatusOK means the swapchain matches the surface.
	StatusOK Status = iota
	// StatusSuboptimal means the image was usable but the swapchain should
	// be rebuilt.
	StatusSuboptimal
	// StatusOutOfDate means the swapchain can no longer be used.
	StatusOutOfDate
)

func (s Status) String() string {
	switch s {
	case StatusOK:
		return "ok"
	case StatusSuboptimal:
		return "suboptimal"
	case StatusOutOfDate:
		return "out of date"
	}
	return "unknown"
}

// Uniforms is the per-image uniform buffer content.
type Uniforms struct {
	View mgl32.Mat4
	Proj mgl32.Mat4
}

// Backend owns the GPU objects the scheduler sequences. Slots index the
// frames-in-flight synchronization set, images index the swapchain.
type Backend interface {
	FramesInFlight() int
	ImageCount() int
	Extent() (width, height int)

	// WaitFence blocks until the fence of slot is signaled.
	WaitFence(slot int) error
	ResetFence(slot int) error

	// AcquireImage requests the next presentable image, signaling the
	// image-available semaphore of slot.
	AcquireImage(slot int) (int, Status, error)
	Record(image int, model mgl32.Mat4) error
	UpdateUniforms(image int, u Uniforms) error
	// Submit queues the command buffer of image, waiting on the
	// image-available semaphore of slot and signaling its render-finished
	// semaphore and fence.
	Submit(slot, image int) error
	Present(slot, image int) (Status, error)

	// Recreate waits for the device to go idle and rebuilds every
	// swapchain-scoped object.
	Recreate() error
	WaitIdle() error
}

// Window is the part of the windowing system the loop needs.
type Window interface {
	DrawableSize() (width, height int)
	PollEvents()
	// WaitEvents blocks until at least one event arrives.
	WaitEvents()
	ShouldClose() bool
}
