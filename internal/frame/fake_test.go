package frame

import (
	"fmt"
	"math/rand"

	"github.com/cockroachdb/errors"
	"github.com/go-gl/mathgl/mgl32"
)

// simulatedGPU is a Backend whose submissions complete at random points in
// time, or when their fence is waited on. It records every protocol
// violation instead of failing immediately so property tests can report
// them together.
type simulatedGPU struct {
	rng *rand.Rand

	slots  int
	images int
	width  int
	height int
	format string

	fenceSignaled []bool
	fencePending  [][]int
	commandBusy   []bool

	acquireStatus []Status
	presentStatus []Status
	acquireErr    error
	presentErr    error

	violations []string

	recorded []mgl32.Mat4
	uniforms []Uniforms
	submits  int
	presents int
	idles    int

	liveHandles      int
	createdHandles   int
	destroyedHandles int
	recreations      int
}

func newSimulatedGPU(seed int64, slots, images int) *simulatedGPU {
	g := &simulatedGPU{
		rng:    rand.New(rand.NewSource(seed)),
		slots:  slots,
		images: images,
		width:  800,
		height: 600,
		format: "B8G8R8A8_SRGB",
	}

	g.fenceSignaled = make([]bool, slots)
	g.fencePending = make([][]int, slots)
	for i := range g.fenceSignaled {
		g.fenceSignaled[i] = true
	}
	g.buildSwapchain()
	return g
}

// handlesPerImage approximates the swapchain-scoped objects: view,
// framebuffer, uniform buffer, uniform memory, command buffer.
const handlesPerImage = 5

// fixedSwapchainHandles approximates the swapchain, color and depth
// attachments, render pass, layout, pipeline and descriptor pool.
const fixedSwapchainHandles = 11

func (g *simulatedGPU) buildSwapchain() {
	count := fixedSwapchainHandles + handlesPerImage*g.images
	g.liveHandles += count
	g.createdHandles += count
	g.commandBusy = make([]bool, g.images)
}

func (g *simulatedGPU) violate(format string, args ...any) {
	g.violations = append(g.violations, fmt.Sprintf(format, args...))
}

// progress lets the GPU finish some outstanding work on its own.
func (g *simulatedGPU) progress() {
	for slot := range g.fencePending {
		if len(g.fencePending[slot]) > 0 && g.rng.Intn(3) == 0 {
			g.complete(slot)
		}
	}
}

func (g *simulatedGPU) complete(slot int) {
	for _, image := range g.fencePending[slot] {
		g.commandBusy[image] = false
	}
	g.fencePending[slot] = nil
	g.fenceSignaled[slot] = true
}

func (g *simulatedGPU) completeAll() {
	for slot := range g.fencePending {
		if len(g.fencePending[slot]) > 0 {
			g.complete(slot)
		}
	}
}

func (g *simulatedGPU) FramesInFlight() int { return g.slots }
func (g *simulatedGPU) ImageCount() int     { return g.images }
func (g *simulatedGPU) Extent() (int, int)  { return g.width, g.height }

func (g *simulatedGPU) WaitFence(slot int) error {
	g.progress()
	if len(g.fencePending[slot]) > 0 {
		g.complete(slot)
	}
	if !g.fenceSignaled[slot] {
		g.violate("wait on fence %d which was reset but never submitted", slot)
	}
	return nil
}

func (g *simulatedGPU) ResetFence(slot int) error {
	if !g.fenceSignaled[slot] {
		g.violate("reset of unsignaled fence %d", slot)
	}
	g.fenceSignaled[slot] = false
	return nil
}

func (g *simulatedGPU) AcquireImage(slot int) (int, Status, error) {
	g.progress()
	if g.acquireErr != nil {
		return 0, StatusOK, g.acquireErr
	}

	status := StatusOK
	if len(g.acquireStatus) > 0 {
		status, g.acquireStatus = g.acquireStatus[0], g.acquireStatus[1:]
	}
	return g.rng.Intn(g.images), status, nil
}

func (g *simulatedGPU) Record(image int, model mgl32.Mat4) error {
	if g.commandBusy[image] {
		g.violate("command buffer %d recorded while its previous submission is pending", image)
	}
	g.recorded = append(g.recorded, model)
	return nil
}

func (g *simulatedGPU) UpdateUniforms(image int, u Uniforms) error {
	if g.commandBusy[image] {
		g.violate("uniform buffer %d written while the GPU may read it", image)
	}
	g.uniforms = append(g.uniforms, u)
	return nil
}

func (g *simulatedGPU) Submit(slot, image int) error {
	if g.fenceSignaled[slot] {
		g.violate("submit with fence %d still signaled", slot)
	}
	g.commandBusy[image] = true
	g.fencePending[slot] = append(g.fencePending[slot], image)
	g.submits++
	return nil
}

func (g *simulatedGPU) Present(slot, image int) (Status, error) {
	g.presents++
	g.progress()
	if g.presentErr != nil {
		return StatusOK, g.presentErr
	}
	if len(g.presentStatus) > 0 {
		var status Status
		status, g.presentStatus = g.presentStatus[0], g.presentStatus[1:]
		return status, nil
	}
	return StatusOK, nil
}

func (g *simulatedGPU) Recreate() error {
	g.completeAll()
	g.idles++

	g.destroyedHandles += g.liveHandles
	g.liveHandles = 0

	g.buildSwapchain()
	g.recreations++
	return nil
}

func (g *simulatedGPU) WaitIdle() error {
	g.completeAll()
	g.idles++
	return nil
}

type fakeWindow struct {
	sizes     [][2]int
	closed    bool
	closeAt   int
	polls     int
	waits     int
	sizeCalls int
}

func (w *fakeWindow) DrawableSize() (int, int) {
	w.sizeCalls++
	if len(w.sizes) == 0 {
		return 800, 600
	}
	size := w.sizes[0]
	if len(w.sizes) > 1 {
		w.sizes = w.sizes[1:]
	}
	return size[0], size[1]
}

func (w *fakeWindow) PollEvents() {
	w.polls++
	if w.closeAt > 0 && w.polls >= w.closeAt {
		w.closed = true
	}
}

func (w *fakeWindow) WaitEvents()       { w.waits++ }
func (w *fakeWindow) ShouldClose() bool { return w.closed }

type fixedClock struct {
	now float64
}

func (c *fixedClock) Seconds() float64 { return c.now }

var errDeviceLost = errors.New("device lost")
