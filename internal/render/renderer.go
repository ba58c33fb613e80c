package render

import (
	"github.com/cockroachdb/errors"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/vkngwrapper/core/core1_0"
	"github.com/vkngwrapper/meshrender/internal/frame"
	"github.com/vkngwrapper/meshrender/internal/logging"
	"github.com/vkngwrapper/meshrender/internal/mesh"
	"github.com/vkngwrapper/meshrender/internal/texture"
)

var _ frame.Backend = (*Renderer)(nil)

// RendererOptions configures a Renderer.
type RendererOptions struct {
	Shaders        ShaderCode
	FramesInFlight int
}

// Renderer draws one textured mesh into the window surface. Objects that
// depend on the swapchain live in a scope and are rebuilt together by
// Recreate; everything else lives as long as the Renderer.
type Renderer struct {
	dev    *Device
	target Surface
	opts   RendererOptions

	samples     core1_0.SampleCountFlags
	depthFormat core1_0.Format

	setLayout   core1_0.DescriptorSetLayout
	commandPool core1_0.CommandPool
	uploader    *Uploader
	vertices    *Buffer
	indices     *Buffer
	indexCount  int
	texture     *Texture
	sync        *syncSet

	scope          scope
	swapchain      *Swapchain
	pipelineLayout core1_0.PipelineLayout
	renderPass     core1_0.RenderPass
	pipeline       core1_0.Pipeline
	color          *Image
	depth          *Image
	framebuffers   []core1_0.Framebuffer
	frames         *frameResources
	commandBuffers []core1_0.CommandBuffer
}

// NewRenderer uploads m and img and builds the swapchain for the current
// drawable size of target. On failure everything created so far is
// destroyed; dev is left alone.
func NewRenderer(dev *Device, target Surface, m mesh.Mesh, img *texture.Image, opts RendererOptions) (*Renderer, error) {
	if m.Empty() {
		return nil, errors.New("mesh has no triangles")
	}
	if opts.FramesInFlight < 1 {
		return nil, errors.Newf("frames in flight must be at least 1, got %d", opts.FramesInFlight)
	}

	r := &Renderer{
		dev:     dev,
		target:  target,
		opts:    opts,
		samples: dev.sampleCount(),
	}

	if err := r.init(m, img); err != nil {
		r.Destroy()
		return nil, err
	}
	return r, nil
}

func (r *Renderer) init(m mesh.Mesh, img *texture.Image) error {
	var err error

	r.depthFormat, err = r.dev.findDepthFormat()
	if err != nil {
		return err
	}

	r.setLayout, err = createDescriptorSetLayout(r.dev)
	if err != nil {
		return err
	}

	r.commandPool, err = createCommandPool(r.dev, r.dev.Families.Graphics, core1_0.CommandPoolCreateResetBuffer)
	if err != nil {
		return err
	}

	r.uploader, err = NewUploader(r.dev)
	if err != nil {
		return err
	}

	r.vertices, err = r.uploader.UploadBuffer(m.Vertices, core1_0.BufferUsageVertexBuffer)
	if err != nil {
		return errors.Wrap(err, "upload vertices")
	}

	r.indices, err = r.uploader.UploadBuffer(m.Indices, core1_0.BufferUsageIndexBuffer)
	if err != nil {
		return errors.Wrap(err, "upload indices")
	}
	r.indexCount = len(m.Indices)

	r.texture, err = r.uploader.UploadTexture(img)
	if err != nil {
		return errors.Wrap(err, "upload texture")
	}

	r.sync, err = createSyncSet(r.dev, r.opts.FramesInFlight)
	if err != nil {
		return err
	}

	return r.buildSwapchainScope()
}

// buildSwapchainScope creates every swapchain-sized object, registering
// each with r.scope as it goes.
func (r *Renderer) buildSwapchainScope() error {
	width, height := r.target.DrawableSize()

	var err error
	r.swapchain, err = createSwapchain(r.dev, width, height, &r.scope)
	if err != nil {
		return err
	}

	r.pipelineLayout, err = createPipelineLayout(r.dev, r.setLayout, &r.scope)
	if err != nil {
		return err
	}

	r.renderPass, err = createRenderPass(r.dev, r.swapchain.format, r.depthFormat, r.samples, &r.scope)
	if err != nil {
		return err
	}

	r.pipeline, err = createGraphicsPipeline(r.dev, pipelineParams{
		shaders:    r.opts.Shaders,
		layout:     r.pipelineLayout,
		renderPass: r.renderPass,
		samples:    r.samples,
		extent:     r.swapchain.extent,
	}, &r.scope)
	if err != nil {
		return err
	}

	r.color, err = createColorAttachment(r.dev, r.swapchain, r.samples, &r.scope)
	if err != nil {
		return err
	}

	r.depth, err = createDepthAttachment(r.dev, r.swapchain, r.depthFormat, r.samples, &r.scope)
	if err != nil {
		return err
	}

	r.framebuffers, err = createFramebuffers(r.dev, r.renderPass, r.swapchain, r.color, r.depth, &r.scope)
	if err != nil {
		return err
	}

	r.frames, err = createFrameResources(r.dev, len(r.swapchain.images), r.setLayout, r.texture, &r.scope)
	if err != nil {
		return err
	}

	return r.allocateCommandBuffers()
}

func (r *Renderer) allocateCommandBuffers() error {
	buffers, _, err := r.dev.device.AllocateCommandBuffers(core1_0.CommandBufferAllocateInfo{
		CommandPool:        r.commandPool,
		Level:              core1_0.CommandBufferLevelPrimary,
		CommandBufferCount: len(r.swapchain.images),
	})
	if err != nil {
		return errors.Wrap(err, "allocate command buffers")
	}

	r.commandBuffers = buffers
	r.scope.add("command buffers", func() { r.dev.device.FreeCommandBuffers(buffers) })
	return nil
}

// FramesInFlight is the number of frame slots.
func (r *Renderer) FramesInFlight() int {
	return r.opts.FramesInFlight
}

// ImageCount is the number of swapchain images.
func (r *Renderer) ImageCount() int {
	return len(r.swapchain.images)
}

// Extent is the swapchain size in pixels.
func (r *Renderer) Extent() (int, int) {
	return r.swapchain.extent.Width, r.swapchain.extent.Height
}

func (r *Renderer) WaitFence(slot int) error {
	return r.sync.wait(r.dev, slot)
}

func (r *Renderer) ResetFence(slot int) error {
	return r.sync.reset(r.dev, slot)
}

func (r *Renderer) AcquireImage(slot int) (int, frame.Status, error) {
	return r.swapchain.acquire(r.sync.imageAvailable[slot])
}

func (r *Renderer) Record(image int, model mgl32.Mat4) error {
	return recordDraw(r.commandBuffers[image], drawCall{
		renderPass:    r.renderPass,
		framebuffer:   r.framebuffers[image],
		extent:        r.swapchain.extent,
		pipeline:      r.pipeline,
		layout:        r.pipelineLayout,
		descriptorSet: r.frames.descriptorSets[image],
		vertices:      r.vertices.buffer,
		indices:       r.indices.buffer,
		indexCount:    r.indexCount,
		model:         model,
	})
}

func (r *Renderer) UpdateUniforms(image int, u frame.Uniforms) error {
	return r.frames.updateUniforms(image, u)
}

func (r *Renderer) Submit(slot, image int) error {
	_, err := r.dev.graphicsQueue.Submit(r.sync.inFlight[slot], []core1_0.SubmitInfo{
		{
			WaitSemaphores:   []core1_0.Semaphore{r.sync.imageAvailable[slot]},
			WaitDstStageMask: []core1_0.PipelineStageFlags{core1_0.PipelineStageColorAttachmentOutput},
			CommandBuffers:   []core1_0.CommandBuffer{r.commandBuffers[image]},
			SignalSemaphores: []core1_0.Semaphore{r.sync.renderFinished[slot]},
		},
	})
	return errors.Wrap(err, "submit draw")
}

func (r *Renderer) Present(slot, image int) (frame.Status, error) {
	return r.swapchain.present(r.dev.swapchainExt, r.dev.presentQueue, r.sync.renderFinished[slot], image)
}

// Recreate waits for the device to go idle, destroys every swapchain-sized
// object and builds them again for the current drawable size.
func (r *Renderer) Recreate() error {
	if err := r.dev.WaitIdle(); err != nil {
		return err
	}

	images := r.ImageCount()
	released := r.scope.release()

	if err := r.buildSwapchainScope(); err != nil {
		return err
	}

	logging.Logger().Debug("swapchain scope rebuilt",
		"released", released,
		"created", r.scope.len(),
		"images_before", images,
		"images_after", r.ImageCount())
	return nil
}

// WaitIdle blocks until the device has finished all submitted work.
func (r *Renderer) WaitIdle() error {
	return r.dev.WaitIdle()
}

// Destroy releases everything the Renderer created, newest first. The
// device must be idle.
func (r *Renderer) Destroy() {
	r.scope.release()
	r.swapchain = nil

	r.sync.destroy()
	r.texture.destroy()
	r.indices.destroy()
	r.vertices.destroy()
	r.sync, r.texture, r.indices, r.vertices = nil, nil, nil, nil

	if r.uploader != nil {
		r.uploader.Destroy()
		r.uploader = nil
	}
	if r.commandPool != nil {
		r.commandPool.Destroy(nil)
		r.commandPool = nil
	}
	if r.setLayout != nil {
		r.setLayout.Destroy(nil)
		r.setLayout = nil
	}
}
