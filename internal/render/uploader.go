package render

import (
	"encoding/binary"

	"github.com/cockroachdb/errors"
	"github.com/docker/go-units"
	"github.com/vkngwrapper/core/core1_0"
	"github.com/vkngwrapper/meshrender/internal/logging"
	"github.com/vkngwrapper/meshrender/internal/texture"
)

const textureFormat = core1_0.FormatR8G8B8A8SRGB

// Uploader copies host data into device local memory through staging
// buffers. Copies run on the transfer queue. Mip generation needs blits
// and fragment-stage barriers and runs on the graphics queue.
type Uploader struct {
	dev          *Device
	transferPool core1_0.CommandPool
	graphicsPool core1_0.CommandPool
}

// NewUploader creates the transient command pools uploads record into.
func NewUploader(dev *Device) (*Uploader, error) {
	u := &Uploader{dev: dev}

	var err error
	u.graphicsPool, err = createCommandPool(dev, dev.Families.Graphics, core1_0.CommandPoolCreateTransient)
	if err != nil {
		return nil, err
	}

	u.transferPool = u.graphicsPool
	if dev.Families.Transfer != dev.Families.Graphics {
		u.transferPool, err = createCommandPool(dev, dev.Families.Transfer, core1_0.CommandPoolCreateTransient)
		if err != nil {
			u.Destroy()
			return nil, err
		}
	}

	return u, nil
}

func createCommandPool(dev *Device, family int, flags core1_0.CommandPoolCreateFlags) (core1_0.CommandPool, error) {
	pool, _, err := dev.device.CreateCommandPool(nil, core1_0.CommandPoolCreateInfo{
		Flags:            flags,
		QueueFamilyIndex: family,
	})
	return pool, errors.Wrapf(err, "create command pool for family %d", family)
}

// Destroy releases the command pools.
func (u *Uploader) Destroy() {
	if u.transferPool != nil && u.transferPool != u.graphicsPool {
		u.transferPool.Destroy(nil)
	}
	if u.graphicsPool != nil {
		u.graphicsPool.Destroy(nil)
	}
	u.transferPool, u.graphicsPool = nil, nil
}

// destinationFamilies lists the families that touch uploaded resources.
func (u *Uploader) destinationFamilies() []int {
	return uniqueFamilies(u.dev.Families.Graphics, u.dev.Families.Transfer)
}

// submitOnce records a one time command buffer, submits it and waits for
// the queue to go idle before freeing it.
func (u *Uploader) submitOnce(pool core1_0.CommandPool, queue core1_0.Queue, record func(core1_0.CommandBuffer) error) error {
	buffers, _, err := u.dev.device.AllocateCommandBuffers(core1_0.CommandBufferAllocateInfo{
		CommandPool:        pool,
		Level:              core1_0.CommandBufferLevelPrimary,
		CommandBufferCount: 1,
	})
	if err != nil {
		return errors.Wrap(err, "allocate upload command buffer")
	}
	defer u.dev.device.FreeCommandBuffers(buffers)

	buffer := buffers[0]
	if _, err = buffer.Begin(core1_0.CommandBufferBeginInfo{
		Flags: core1_0.CommandBufferUsageOneTimeSubmit,
	}); err != nil {
		return errors.Wrap(err, "begin upload command buffer")
	}

	if err = record(buffer); err != nil {
		return err
	}

	if _, err = buffer.End(); err != nil {
		return errors.Wrap(err, "end upload command buffer")
	}

	if _, err = queue.Submit(nil, []core1_0.SubmitInfo{
		{
			CommandBuffers: []core1_0.CommandBuffer{buffer},
		},
	}); err != nil {
		return errors.Wrap(err, "submit upload")
	}

	_, err = queue.WaitIdle()
	return errors.Wrap(err, "wait for upload")
}

func (u *Uploader) staging(data any) (*Buffer, error) {
	size := binary.Size(data)
	if size <= 0 {
		return nil, errors.Newf("cannot upload %T of size %d", data, size)
	}

	staging, err := createBuffer(u.dev, size, core1_0.BufferUsageTransferSrc,
		core1_0.MemoryPropertyHostVisible|core1_0.MemoryPropertyHostCoherent, nil)
	if err != nil {
		return nil, errors.Wrap(err, "create staging buffer")
	}

	if err = writeData(staging.memory, 0, data); err != nil {
		staging.destroy()
		return nil, err
	}
	return staging, nil
}

// UploadBuffer creates a device local buffer with usage and fills it with
// data, which must be encodable by encoding/binary.
func (u *Uploader) UploadBuffer(data any, usage core1_0.BufferUsageFlags) (*Buffer, error) {
	staging, err := u.staging(data)
	if err != nil {
		return nil, err
	}
	defer staging.destroy()

	dst, err := createBuffer(u.dev, staging.size, core1_0.BufferUsageTransferDst|usage,
		core1_0.MemoryPropertyDeviceLocal, u.destinationFamilies())
	if err != nil {
		return nil, err
	}

	err = u.submitOnce(u.transferPool, u.dev.transferQueue, func(buffer core1_0.CommandBuffer) error {
		return buffer.CmdCopyBuffer(staging.buffer, dst.buffer, []core1_0.BufferCopy{
			{
				SrcOffset: 0,
				DstOffset: 0,
				Size:      staging.size,
			},
		})
	})
	if err != nil {
		dst.destroy()
		return nil, errors.Wrap(err, "copy buffer")
	}

	logging.Logger().Debug("buffer uploaded", "usage", usage, "size", units.BytesSize(float64(staging.size)))
	return dst, nil
}

// Texture is a sampled image with its full mip chain.
type Texture struct {
	image     *Image
	sampler   core1_0.Sampler
	mipLevels int
	width     int
	height    int
}

func (t *Texture) destroy() {
	if t == nil {
		return
	}
	if t.sampler != nil {
		t.sampler.Destroy(nil)
	}
	t.image.destroy()
}

// UploadTexture copies img into level 0 of a new image, fills the remaining
// levels by repeated linear blits and leaves every level shader readable.
func (u *Uploader) UploadTexture(img *texture.Image) (*Texture, error) {
	props := u.dev.physical.FormatProperties(textureFormat)
	if props.OptimalTilingFeatures&core1_0.FormatFeatureSampledImageFilterLinear == 0 {
		return nil, errors.Mark(errors.Newf("texture format %s does not support linear blitting", textureFormat), ErrCapabilityMissing)
	}

	staging, err := u.staging(img.Pixels)
	if err != nil {
		return nil, err
	}
	defer staging.destroy()

	t := &Texture{
		mipLevels: img.MipLevels(),
		width:     img.Width,
		height:    img.Height,
	}

	t.image, err = createImage(u.dev, imageParams{
		width:     img.Width,
		height:    img.Height,
		mipLevels: t.mipLevels,
		samples:   core1_0.Samples1,
		format:    textureFormat,
		usage:     core1_0.ImageUsageTransferSrc | core1_0.ImageUsageTransferDst | core1_0.ImageUsageSampled,
		aspect:    core1_0.ImageAspectColor,
		families:  u.destinationFamilies(),
	})
	if err != nil {
		return nil, errors.Wrap(err, "create texture image")
	}

	err = u.submitOnce(u.transferPool, u.dev.transferQueue, func(buffer core1_0.CommandBuffer) error {
		err := cmdTransition(buffer, t.image.image, core1_0.ImageLayoutUndefined, core1_0.ImageLayoutTransferDstOptimal, 0, t.mipLevels)
		if err != nil {
			return err
		}
		return cmdCopyBufferToImage(buffer, staging.buffer, t.image.image, img.Width, img.Height)
	})
	if err != nil {
		t.destroy()
		return nil, errors.Wrap(err, "copy texture")
	}

	err = u.submitOnce(u.graphicsPool, u.dev.graphicsQueue, func(buffer core1_0.CommandBuffer) error {
		return cmdGenerateMipmaps(buffer, t.image.image, img.Width, img.Height, t.mipLevels)
	})
	if err != nil {
		t.destroy()
		return nil, errors.Wrap(err, "generate mipmaps")
	}

	t.sampler, err = createSampler(u.dev, t.mipLevels)
	if err != nil {
		t.destroy()
		return nil, err
	}

	logging.Logger().Info("texture uploaded",
		"width", img.Width,
		"height", img.Height,
		"mip_levels", t.mipLevels,
		"size", units.BytesSize(float64(img.Size())))
	return t, nil
}

func cmdCopyBufferToImage(buffer core1_0.CommandBuffer, src core1_0.Buffer, image core1_0.Image, width, height int) error {
	return buffer.CmdCopyBufferToImage(src, image, core1_0.ImageLayoutTransferDstOptimal, []core1_0.BufferImageCopy{
		{
			BufferOffset:      0,
			BufferRowLength:   0,
			BufferImageHeight: 0,

			ImageSubresource: core1_0.ImageSubresourceLayers{
				AspectMask:     core1_0.ImageAspectColor,
				MipLevel:       0,
				BaseArrayLayer: 0,
				LayerCount:     1,
			},
			ImageOffset: core1_0.Offset3D{X: 0, Y: 0, Z: 0},
			ImageExtent: core1_0.Extent3D{Width: width, Height: height, Depth: 1},
		},
	})
}

// cmdGenerateMipmaps expects every level in transfer-dst layout with level
// 0 filled. Each level is blitted down into the next and then handed to the
// fragment stage.
func cmdGenerateMipmaps(buffer core1_0.CommandBuffer, image core1_0.Image, width, height, mipLevels int) error {
	mipWidth, mipHeight := width, height

	for i := 1; i < mipLevels; i++ {
		err := cmdTransition(buffer, image, core1_0.ImageLayoutTransferDstOptimal, core1_0.ImageLayoutTransferSrcOptimal, i-1, 1)
		if err != nil {
			return err
		}

		nextWidth, nextHeight := texture.MipExtent(mipWidth, mipHeight)
		err = buffer.CmdBlitImage(image, core1_0.ImageLayoutTransferSrcOptimal, image, core1_0.ImageLayoutTransferDstOptimal, []core1_0.ImageBlit{
			{
				SrcSubresource: core1_0.ImageSubresourceLayers{
					AspectMask:     core1_0.ImageAspectColor,
					MipLevel:       i - 1,
					BaseArrayLayer: 0,
					LayerCount:     1,
				},
				SrcOffsets: [2]core1_0.Offset3D{
					{X: 0, Y: 0, Z: 0},
					{X: mipWidth, Y: mipHeight, Z: 1},
				},

				DstSubresource: core1_0.ImageSubresourceLayers{
					AspectMask:     core1_0.ImageAspectColor,
					MipLevel:       i,
					BaseArrayLayer: 0,
					LayerCount:     1,
				},
				DstOffsets: [2]core1_0.Offset3D{
					{X: 0, Y: 0, Z: 0},
					{X: nextWidth, Y: nextHeight, Z: 1},
				},
			},
		}, core1_0.FilterLinear)
		if err != nil {
			return errors.Wrapf(err, "blit mip level %d", i)
		}

		err = cmdTransition(buffer, image, core1_0.ImageLayoutTransferSrcOptimal, core1_0.ImageLayoutShaderReadOnlyOptimal, i-1, 1)
		if err != nil {
			return err
		}

		mipWidth, mipHeight = nextWidth, nextHeight
	}

	return cmdTransition(buffer, image, core1_0.ImageLayoutTransferDstOptimal, core1_0.ImageLayoutShaderReadOnlyOptimal, mipLevels-1, 1)
}

func createSampler(dev *Device, mipLevels int) (core1_0.Sampler, error) {
	sampler, _, err := dev.device.CreateSampler(nil, core1_0.SamplerCreateInfo{
		MagFilter:    core1_0.FilterLinear,
		MinFilter:    core1_0.FilterLinear,
		AddressModeU: core1_0.SamplerAddressModeRepeat,
		AddressModeV: core1_0.SamplerAddressModeRepeat,
		AddressModeW: core1_0.SamplerAddressModeRepeat,

		AnisotropyEnable: true,
		MaxAnisotropy:    dev.maxAnisotropy,

		BorderColor: core1_0.BorderColorIntOpaqueBlack,

		MipmapMode: core1_0.SamplerMipmapModeLinear,
		MinLod:     0,
		MaxLod:     float32(mipLevels),
	})
	return sampler, errors.Wrap(err, "create texture sampler")
}
