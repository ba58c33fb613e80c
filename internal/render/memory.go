package render

import (
	"bytes"
	"encoding/binary"
	"unsafe"

	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/core/common"
	"github.com/vkngwrapper/core/core1_0"
)

// Buffer is a buffer with its own dedicated allocation.
type Buffer struct {
	buffer core1_0.Buffer
	memory core1_0.DeviceMemory
	size   int
}

func (b *Buffer) destroy() {
	if b == nil {
		return
	}
	if b.buffer != nil {
		b.buffer.Destroy(nil)
	}
	if b.memory != nil {
		b.memory.Free(nil)
	}
}

// memoryTypeIndex returns the first memory type allowed by typeFilter that
// has every flag in properties.
func memoryTypeIndex(types []core1_0.MemoryPropertyFlags, typeFilter uint32, properties core1_0.MemoryPropertyFlags) (int, bool) {
	for i, flags := range types {
		typeBit := uint32(1 << i)
		if typeFilter&typeBit != 0 && flags&properties == properties {
			return i, true
		}
	}
	return 0, false
}

func findMemoryType(dev *Device, typeFilter uint32, properties core1_0.MemoryPropertyFlags) (int, error) {
	var types []core1_0.MemoryPropertyFlags
	for _, memoryType := range dev.physical.MemoryProperties().MemoryTypes {
		types = append(types, memoryType.PropertyFlags)
	}

	index, ok := memoryTypeIndex(types, typeFilter, properties)
	if !ok {
		return 0, errors.Mark(errors.Newf("no memory type with properties %s", properties), ErrCapabilityMissing)
	}
	return index, nil
}

func allocate(dev *Device, size int, typeBits uint32, properties core1_0.MemoryPropertyFlags) (core1_0.DeviceMemory, error) {
	memoryIndex, err := findMemoryType(dev, typeBits, properties)
	if err != nil {
		return nil, err
	}

	memory, _, err := dev.device.AllocateMemory(nil, core1_0.MemoryAllocateInfo{
		AllocationSize:  size,
		MemoryTypeIndex: memoryIndex,
	})
	return memory, errors.Wrap(err, "allocate memory")
}

// createBuffer creates a buffer shared by families and binds fresh memory
// to it.
func createBuffer(dev *Device, size int, usage core1_0.BufferUsageFlags, properties core1_0.MemoryPropertyFlags, families []int) (*Buffer, error) {
	sharingMode, queueFamilies := sharing(families)

	buffer, _, err := dev.device.CreateBuffer(nil, core1_0.BufferCreateInfo{
		Size:               size,
		Usage:              usage,
		SharingMode:        sharingMode,
		QueueFamilyIndices: queueFamilies,
	})
	if err != nil {
		return nil, errors.Wrap(err, "create buffer")
	}
	b := &Buffer{buffer: buffer, size: size}

	memReqs := buffer.MemoryRequirements()
	b.memory, err = allocate(dev, memReqs.Size, memReqs.MemoryTypeBits, properties)
	if err != nil {
		b.destroy()
		return nil, err
	}

	if _, err = buffer.BindBufferMemory(b.memory, 0); err != nil {
		b.destroy()
		return nil, errors.Wrap(err, "bind buffer memory")
	}
	return b, nil
}

// Image is an image with its own dedicated allocation.
type Image struct {
	image  core1_0.Image
	memory core1_0.DeviceMemory
	view   core1_0.ImageView
}

func (i *Image) destroy() {
	if i == nil {
		return
	}
	if i.view != nil {
		i.view.Destroy(nil)
	}
	if i.image != nil {
		i.image.Destroy(nil)
	}
	if i.memory != nil {
		i.memory.Free(nil)
	}
}

type imageParams struct {
	width, height int
	mipLevels     int
	samples       core1_0.SampleCountFlags
	format        core1_0.Format
	usage         core1_0.ImageUsageFlags
	aspect        core1_0.ImageAspectFlags
	families      []int
}

// imageFamilies converts family indices to the form images take them in.
func imageFamilies(families []int) []uint32 {
	if families == nil {
		return nil
	}
	indices := make([]uint32, len(families))
	for i, family := range families {
		indices[i] = uint32(family)
	}
	return indices
}

// createImage creates an optimally tiled, device local image and a view
// over all of its mip levels.
func createImage(dev *Device, params imageParams) (*Image, error) {
	sharingMode, queueFamilies := sharing(params.families)

	image, _, err := dev.device.CreateImage(nil, core1_0.ImageCreateInfo{
		ImageType: core1_0.ImageType2D,
		Extent: core1_0.Extent3D{
			Width:  params.width,
			Height: params.height,
			Depth:  1,
		},
		MipLevels:          params.mipLevels,
		ArrayLayers:        1,
		Format:             params.format,
		Tiling:             core1_0.ImageTilingOptimal,
		InitialLayout:      core1_0.ImageLayoutUndefined,
		Usage:              params.usage,
		SharingMode:        sharingMode,
		QueueFamilyIndices: imageFamilies(queueFamilies),
		Samples:            params.samples,
	})
	if err != nil {
		return nil, errors.Wrap(err, "create image")
	}
	img := &Image{image: image}

	memReqs := image.MemoryRequirements()
	img.memory, err = allocate(dev, memReqs.Size, memReqs.MemoryTypeBits, core1_0.MemoryPropertyDeviceLocal)
	if err != nil {
		img.destroy()
		return nil, err
	}

	if _, err = image.BindImageMemory(img.memory, 0); err != nil {
		img.destroy()
		return nil, errors.Wrap(err, "bind image memory")
	}

	img.view, err = createImageView(dev, image, params.format, params.aspect, params.mipLevels)
	if err != nil {
		img.destroy()
		return nil, err
	}
	return img, nil
}

func createImageView(dev *Device, image core1_0.Image, format core1_0.Format, aspect core1_0.ImageAspectFlags, mipLevels int) (core1_0.ImageView, error) {
	imageView, _, err := dev.device.CreateImageView(nil, core1_0.ImageViewCreateInfo{
		Image:    image,
		ViewType: core1_0.ImageViewType2D,
		Format:   format,
		SubresourceRange: core1_0.ImageSubresourceRange{
			AspectMask:     aspect,
			BaseMipLevel:   0,
			LevelCount:     mipLevels,
			BaseArrayLayer: 0,
			LayerCount:     1,
		},
	})
	return imageView, errors.Wrap(err, "create image view")
}

// writeData maps memory, writes data in the device byte order and unmaps
// it again. The memory must be host visible and coherent.
func writeData(memory core1_0.DeviceMemory, offset int, data any) error {
	buf := &bytes.Buffer{}
	if err := binary.Write(buf, common.ByteOrder, data); err != nil {
		return errors.Wrap(err, "encode data")
	}

	memoryPtr, _, err := memory.Map(offset, buf.Len(), 0)
	if err != nil {
		return errors.Wrap(err, "map memory")
	}
	defer memory.Unmap()

	copy(unsafe.Slice((*byte)(memoryPtr), buf.Len()), buf.Bytes())
	return nil
}
