package render

import (
	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/core/core1_0"
)

var sampleCountsDescending = []core1_0.SampleCountFlags{
	core1_0.Samples64,
	core1_0.Samples32,
	core1_0.Samples16,
	core1_0.Samples8,
	core1_0.Samples4,
	core1_0.Samples2,
}

// maxUsableSampleCount picks the highest count both color and depth
// framebuffers support.
func maxUsableSampleCount(color, depth core1_0.SampleCountFlags) core1_0.SampleCountFlags {
	counts := color & depth
	for _, count := range sampleCountsDescending {
		if counts&count != 0 {
			return count
		}
	}
	return core1_0.Samples1
}

func (d *Device) sampleCount() core1_0.SampleCountFlags {
	limits := d.properties.Limits
	return maxUsableSampleCount(limits.FramebufferColorSampleCounts, limits.FramebufferDepthSampleCounts)
}

func (d *Device) findSupportedFormat(formats []core1_0.Format, features core1_0.FormatFeatureFlags) (core1_0.Format, error) {
	for _, format := range formats {
		props := d.physical.FormatProperties(format)
		if props.OptimalTilingFeatures&features == features {
			return format, nil
		}
	}

	return 0, errors.Mark(errors.Newf("no format among %v supports %s", formats, features), ErrCapabilityMissing)
}

func (d *Device) findDepthFormat() (core1_0.Format, error) {
	return d.findSupportedFormat([]core1_0.Format{
		core1_0.FormatD32SignedFloat,
		core1_0.FormatD32SignedFloatS8UnsignedInt,
		core1_0.FormatD24UnsignedNormalizedS8UnsignedInt,
	}, core1_0.FormatFeatureDepthStencilAttachment)
}

// createColorAttachment creates the multisampled target that resolves into
// the swapchain image.
func createColorAttachment(dev *Device, sc *Swapchain, samples core1_0.SampleCountFlags, s *scope) (*Image, error) {
	img, err := createImage(dev, imageParams{
		width:     sc.extent.Width,
		height:    sc.extent.Height,
		mipLevels: 1,
		samples:   samples,
		format:    sc.format,
		usage:     core1_0.ImageUsageTransientAttachment | core1_0.ImageUsageColorAttachment,
		aspect:    core1_0.ImageAspectColor,
	})
	if err != nil {
		return nil, errors.Wrap(err, "create color attachment")
	}
	s.add("color attachment", img.destroy)
	return img, nil
}

func createDepthAttachment(dev *Device, sc *Swapchain, format core1_0.Format, samples core1_0.SampleCountFlags, s *scope) (*Image, error) {
	img, err := createImage(dev, imageParams{
		width:     sc.extent.Width,
		height:    sc.extent.Height,
		mipLevels: 1,
		samples:   samples,
		format:    format,
		usage:     core1_0.ImageUsageDepthStencilAttachment,
		aspect:    core1_0.ImageAspectDepth,
	})
	if err != nil {
		return nil, errors.Wrap(err, "create depth attachment")
	}
	s.add("depth attachment", img.destroy)
	return img, nil
}
