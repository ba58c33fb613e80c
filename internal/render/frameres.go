package render

import (
	"encoding/binary"

	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/core/core1_0"
	"github.com/vkngwrapper/meshrender/internal/frame"
)

var uniformSize = binary.Size(frame.Uniforms{})

// frameResources is everything indexed by swapchain image that shaders
// read: one uniform buffer and one descriptor set per image.
type frameResources struct {
	uniformBuffers []*Buffer
	descriptorPool core1_0.DescriptorPool
	descriptorSets []core1_0.DescriptorSet
}

func createFrameResources(dev *Device, imageCount int, setLayout core1_0.DescriptorSetLayout, tex *Texture, s *scope) (*frameResources, error) {
	res := &frameResources{}

	for i := 0; i < imageCount; i++ {
		buffer, err := createBuffer(dev, uniformSize, core1_0.BufferUsageUniformBuffer,
			core1_0.MemoryPropertyHostVisible|core1_0.MemoryPropertyHostCoherent, nil)
		if err != nil {
			return nil, errors.Wrapf(err, "create uniform buffer %d", i)
		}
		s.add("uniform buffer", buffer.destroy)
		res.uniformBuffers = append(res.uniformBuffers, buffer)
	}

	var err error
	res.descriptorPool, _, err = dev.device.CreateDescriptorPool(nil, core1_0.DescriptorPoolCreateInfo{
		MaxSets: imageCount,
		PoolSizes: []core1_0.DescriptorPoolSize{
			{
				Type:            core1_0.DescriptorTypeUniformBuffer,
				DescriptorCount: imageCount,
			},
			{
				Type:            core1_0.DescriptorTypeCombinedImageSampler,
				DescriptorCount: imageCount,
			},
		},
	})
	if err != nil {
		return nil, errors.Wrap(err, "create descriptor pool")
	}
	pool := res.descriptorPool
	s.add("descriptor pool", func() { pool.Destroy(nil) })

	allocLayouts := make([]core1_0.DescriptorSetLayout, imageCount)
	for i := range allocLayouts {
		allocLayouts[i] = setLayout
	}

	res.descriptorSets, _, err = dev.device.AllocateDescriptorSets(core1_0.DescriptorSetAllocateInfo{
		DescriptorPool: res.descriptorPool,
		SetLayouts:     allocLayouts,
	})
	if err != nil {
		return nil, errors.Wrap(err, "allocate descriptor sets")
	}

	for i, set := range res.descriptorSets {
		err = dev.device.UpdateDescriptorSets([]core1_0.WriteDescriptorSet{
			{
				DstSet:          set,
				DstBinding:      uniformBinding,
				DstArrayElement: 0,

				DescriptorType: core1_0.DescriptorTypeUniformBuffer,

				BufferInfo: []core1_0.DescriptorBufferInfo{
					{
						Buffer: res.uniformBuffers[i].buffer,
						Offset: 0,
						Range:  uniformSize,
					},
				},
			},
			{
				DstSet:          set,
				DstBinding:      samplerBinding,
				DstArrayElement: 0,

				DescriptorType: core1_0.DescriptorTypeCombinedImageSampler,

				ImageInfo: []core1_0.DescriptorImageInfo{
					{
						ImageView:   tex.image.view,
						Sampler:     tex.sampler,
						ImageLayout: core1_0.ImageLayoutShaderReadOnlyOptimal,
					},
				},
			},
		}, nil)
		if err != nil {
			return nil, errors.Wrapf(err, "write descriptor set %d", i)
		}
	}

	return res, nil
}

// updateUniforms overwrites the uniform buffer of image. The caller makes
// sure no submitted work still reads it.
func (f *frameResources) updateUniforms(image int, u frame.Uniforms) error {
	return errors.Wrapf(writeData(f.uniformBuffers[image].memory, 0, &u), "write uniform buffer %d", image)
}
