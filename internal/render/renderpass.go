package render

import (
	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/core/core1_0"
	"github.com/vkngwrapper/extensions/khr_swapchain"
)

// Attachment order shared by the render pass, the framebuffers and the
// clear values.
const (
	colorAttachmentIndex = iota
	depthAttachmentIndex
	resolveAttachmentIndex
)

func createRenderPass(dev *Device, colorFormat, depthFormat core1_0.Format, samples core1_0.SampleCountFlags, s *scope) (core1_0.RenderPass, error) {
	renderPass, _, err := dev.device.CreateRenderPass(nil, core1_0.RenderPassCreateInfo{
		Attachments: []core1_0.AttachmentDescription{
			colorAttachmentIndex: {
				Format:         colorFormat,
				Samples:        samples,
				LoadOp:         core1_0.AttachmentLoadOpClear,
				StoreOp:        core1_0.AttachmentStoreOpStore,
				StencilLoadOp:  core1_0.AttachmentLoadOpDontCare,
				StencilStoreOp: core1_0.AttachmentStoreOpDontCare,
				InitialLayout:  core1_0.ImageLayoutUndefined,
				FinalLayout:    core1_0.ImageLayoutColorAttachmentOptimal,
			},
			depthAttachmentIndex: {
				Format:         depthFormat,
				Samples:        samples,
				LoadOp:         core1_0.AttachmentLoadOpClear,
				StoreOp:        core1_0.AttachmentStoreOpStore,
				StencilLoadOp:  core1_0.AttachmentLoadOpDontCare,
				StencilStoreOp: core1_0.AttachmentStoreOpDontCare,
				InitialLayout:  core1_0.ImageLayoutUndefined,
				FinalLayout:    core1_0.ImageLayoutDepthStencilAttachmentOptimal,
			},
			resolveAttachmentIndex: {
				Format:         colorFormat,
				Samples:        core1_0.Samples1,
				LoadOp:         core1_0.AttachmentLoadOpClear,
				StoreOp:        core1_0.AttachmentStoreOpStore,
				StencilLoadOp:  core1_0.AttachmentLoadOpDontCare,
				StencilStoreOp: core1_0.AttachmentStoreOpDontCare,
				InitialLayout:  core1_0.ImageLayoutUndefined,
				FinalLayout:    khr_swapchain.ImageLayoutPresentSrc,
			},
		},
		Subpasses: []core1_0.SubpassDescription{
			{
				PipelineBindPoint: core1_0.PipelineBindPointGraphics,
				ColorAttachments: []core1_0.AttachmentReference{
					{
						Attachment: colorAttachmentIndex,
						Layout:     core1_0.ImageLayoutColorAttachmentOptimal,
					},
				},
				ResolveAttachments: []core1_0.AttachmentReference{
					{
						Attachment: resolveAttachmentIndex,
						Layout:     core1_0.ImageLayoutColorAttachmentOptimal,
					},
				},
				DepthStencilAttachment: &core1_0.AttachmentReference{
					Attachment: depthAttachmentIndex,
					Layout:     core1_0.ImageLayoutDepthStencilAttachmentOptimal,
				},
			},
		},
		SubpassDependencies: []core1_0.SubpassDependency{
			{
				SrcSubpass: core1_0.SubpassExternal,
				DstSubpass: 0,

				SrcStageMask:  core1_0.PipelineStageColorAttachmentOutput | core1_0.PipelineStageEarlyFragmentTests,
				SrcAccessMask: 0,

				DstStageMask:  core1_0.PipelineStageColorAttachmentOutput | core1_0.PipelineStageEarlyFragmentTests,
				DstAccessMask: core1_0.AccessColorAttachmentWrite | core1_0.AccessDepthStencilAttachmentWrite,
			},
		},
	})
	if err != nil {
		return nil, errors.Wrap(err, "create render pass")
	}

	s.add("render pass", func() { renderPass.Destroy(nil) })
	return renderPass, nil
}

func createFramebuffers(dev *Device, renderPass core1_0.RenderPass, sc *Swapchain, color, depth *Image, s *scope) ([]core1_0.Framebuffer, error) {
	framebuffers := make([]core1_0.Framebuffer, 0, len(sc.views))

	for i, view := range sc.views {
		attachments := make([]core1_0.ImageView, 3)
		attachments[colorAttachmentIndex] = color.view
		attachments[depthAttachmentIndex] = depth.view
		attachments[resolveAttachmentIndex] = view

		framebuffer, _, err := dev.device.CreateFramebuffer(nil, core1_0.FramebufferCreateInfo{
			RenderPass:  renderPass,
			Layers:      1,
			Attachments: attachments,
			Width:       sc.extent.Width,
			Height:      sc.extent.Height,
		})
		if err != nil {
			return nil, errors.Wrapf(err, "create framebuffer %d", i)
		}

		s.add("framebuffer", func() { framebuffer.Destroy(nil) })
		framebuffers = append(framebuffers, framebuffer)
	}

	return framebuffers, nil
}
