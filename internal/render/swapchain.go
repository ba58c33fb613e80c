package render

import (
	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/core/common"
	"github.com/vkngwrapper/core/core1_0"
	"github.com/vkngwrapper/extensions/khr_surface"
	"github.com/vkngwrapper/extensions/khr_swapchain"
	"github.com/vkngwrapper/meshrender/internal/frame"
)

// dynamicExtent is the width a surface reports when the swapchain decides
// its own extent.
const dynamicExtent = -1

type swapchainSupport struct {
	capabilities *khr_surface.SurfaceCapabilities
	formats      []khr_surface.SurfaceFormat
	presentModes []khr_surface.PresentMode
}

func (s swapchainSupport) adequate() bool {
	return len(s.formats) > 0 && len(s.presentModes) > 0
}

func querySwapchainSupport(surface khr_surface.Surface, device core1_0.PhysicalDevice) (swapchainSupport, error) {
	var support swapchainSupport
	var err error

	support.capabilities, _, err = surface.PhysicalDeviceSurfaceCapabilities(device)
	if err != nil {
		return support, errors.Wrap(err, "query surface capabilities")
	}

	support.formats, _, err = surface.PhysicalDeviceSurfaceFormats(device)
	if err != nil {
		return support, errors.Wrap(err, "query surface formats")
	}

	support.presentModes, _, err = surface.PhysicalDeviceSurfacePresentModes(device)
	return support, errors.Wrap(err, "query present modes")
}

func chooseSurfaceFormat(formats []khr_surface.SurfaceFormat) khr_surface.SurfaceFormat {
	for _, format := range formats {
		if format.Format == core1_0.FormatB8G8R8A8SRGB && format.ColorSpace == khr_surface.ColorSpaceSRGBNonlinear {
			return format
		}
	}

	return formats[0]
}

func choosePresentMode(modes []khr_surface.PresentMode) khr_surface.PresentMode {
	for _, mode := range modes {
		if mode == khr_surface.PresentModeMailbox {
			return mode
		}
	}

	return khr_surface.PresentModeFIFO
}

// chooseExtent uses the surface's current extent unless the surface leaves
// it to the swapchain, in which case the drawable size is clamped to the
// supported range.
func chooseExtent(caps *khr_surface.SurfaceCapabilities, width, height int) core1_0.Extent2D {
	if caps.CurrentExtent.Width != dynamicExtent {
		return caps.CurrentExtent
	}

	return core1_0.Extent2D{
		Width:  clamp(width, caps.MinImageExtent.Width, caps.MaxImageExtent.Width),
		Height: clamp(height, caps.MinImageExtent.Height, caps.MaxImageExtent.Height),
	}
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// chooseImageCount asks for one image more than the minimum. A maximum of
// zero means there is no upper bound.
func chooseImageCount(caps *khr_surface.SurfaceCapabilities) int {
	count := caps.MinImageCount + 1
	if caps.MaxImageCount > 0 && caps.MaxImageCount < count {
		count = caps.MaxImageCount
	}
	return count
}

// sharing returns the sharing mode for resources used by every family in
// families, and the family list to pass along with it.
func sharing(families []int) (core1_0.SharingMode, []int) {
	if len(families) < 2 {
		return core1_0.SharingModeExclusive, nil
	}
	return core1_0.SharingModeConcurrent, families
}

// swapchainSharing shares swapchain images across every queue family the
// device uses.
func swapchainSharing(families QueueFamilies) (core1_0.SharingMode, []int) {
	return sharing(families.Unique())
}

// Swapchain holds the presentable images and one view per image, with
// matching indices.
type Swapchain struct {
	handle      khr_swapchain.Swapchain
	images      []core1_0.Image
	views       []core1_0.ImageView
	format      core1_0.Format
	presentMode khr_surface.PresentMode
	extent      core1_0.Extent2D
}

func createSwapchain(dev *Device, width, height int, s *scope) (*Swapchain, error) {
	support, err := querySwapchainSupport(dev.surface, dev.physical)
	if err != nil {
		return nil, err
	}
	if !support.adequate() {
		return nil, errors.Mark(errors.New("surface reports no formats or present modes"), ErrCapabilityMissing)
	}

	surfaceFormat := chooseSurfaceFormat(support.formats)
	presentMode := choosePresentMode(support.presentModes)
	extent := chooseExtent(support.capabilities, width, height)
	imageCount := chooseImageCount(support.capabilities)

	sharingMode, families := swapchainSharing(dev.Families)

	handle, _, err := dev.swapchainExt.CreateSwapchain(dev.device, nil, khr_swapchain.SwapchainCreateInfo{
		Surface: dev.surface,

		MinImageCount:    imageCount,
		ImageFormat:      surfaceFormat.Format,
		ImageColorSpace:  surfaceFormat.ColorSpace,
		ImageExtent:      extent,
		ImageArrayLayers: 1,
		ImageUsage:       core1_0.ImageUsageColorAttachment,

		ImageSharingMode:   sharingMode,
		QueueFamilyIndices: families,

		PreTransform:   support.capabilities.CurrentTransform,
		CompositeAlpha: khr_surface.CompositeAlphaOpaque,
		PresentMode:    presentMode,
		Clipped:        true,
	})
	if err != nil {
		return nil, errors.Wrap(err, "create swapchain")
	}
	s.add("swapchain", func() { handle.Destroy(nil) })

	images, _, err := handle.SwapchainImages()
	if err != nil {
		return nil, errors.Wrap(err, "get swapchain images")
	}

	sc := &Swapchain{
		handle:      handle,
		images:      images,
		format:      surfaceFormat.Format,
		presentMode: presentMode,
		extent:      extent,
	}

	for i, image := range images {
		view, err := createImageView(dev, image, sc.format, core1_0.ImageAspectColor, 1)
		if err != nil {
			return nil, errors.Wrapf(err, "create view for swapchain image %d", i)
		}
		s.add("swapchain image view", func() { view.Destroy(nil) })
		sc.views = append(sc.views, view)
	}

	return sc, nil
}

func (sc *Swapchain) acquire(semaphore core1_0.Semaphore) (int, frame.Status, error) {
	index, res, err := sc.handle.AcquireNextImage(common.NoTimeout, semaphore, nil)
	switch res {
	case khr_swapchain.VKErrorOutOfDate:
		return 0, frame.StatusOutOfDate, nil
	case khr_swapchain.VKSuboptimal:
		return index, frame.StatusSuboptimal, nil
	}
	if err != nil {
		return 0, frame.StatusOK, errors.Wrap(err, "acquire next image")
	}
	return index, frame.StatusOK, nil
}

func (sc *Swapchain) present(ext khr_swapchain.Extension, queue core1_0.Queue, wait core1_0.Semaphore, image int) (frame.Status, error) {
	res, err := ext.QueuePresent(queue, khr_swapchain.PresentInfo{
		WaitSemaphores: []core1_0.Semaphore{wait},
		Swapchains:     []khr_swapchain.Swapchain{sc.handle},
		ImageIndices:   []int{image},
	})
	switch res {
	case khr_swapchain.VKErrorOutOfDate:
		return frame.StatusOutOfDate, nil
	case khr_swapchain.VKSuboptimal:
		return frame.StatusSuboptimal, nil
	}
	return frame.StatusOK, errors.Wrap(err, "queue present")
}
