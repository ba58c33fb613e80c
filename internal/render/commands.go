package render

import (
	"bytes"
	"encoding/binary"

	"github.com/cockroachdb/errors"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/vkngwrapper/core/common"
	"github.com/vkngwrapper/core/core1_0"
)

// drawCall is what one recording of a command buffer needs.
type drawCall struct {
	renderPass    core1_0.RenderPass
	framebuffer   core1_0.Framebuffer
	extent        core1_0.Extent2D
	pipeline      core1_0.Pipeline
	layout        core1_0.PipelineLayout
	descriptorSet core1_0.DescriptorSet
	vertices      core1_0.Buffer
	indices       core1_0.Buffer
	indexCount    int
	model         mgl32.Mat4
}

func clearValues() []core1_0.ClearValue {
	values := make([]core1_0.ClearValue, 3)
	values[colorAttachmentIndex] = core1_0.ClearValueFloat{0, 0, 0, 1}
	values[depthAttachmentIndex] = core1_0.ClearValueDepthStencil{Depth: 1.0, Stencil: 0}
	values[resolveAttachmentIndex] = core1_0.ClearValueFloat{0, 0, 0, 1}
	return values
}

func pushConstantBytes(model mgl32.Mat4) ([]byte, error) {
	buf := bytes.NewBuffer(make([]byte, 0, pushConstantSize))
	if err := binary.Write(buf, common.ByteOrder, model); err != nil {
		return nil, errors.Wrap(err, "encode model matrix")
	}
	return buf.Bytes(), nil
}

// recordDraw re-records buffer from scratch. The buffer's pool must allow
// individual resets.
func recordDraw(buffer core1_0.CommandBuffer, call drawCall) error {
	model, err := pushConstantBytes(call.model)
	if err != nil {
		return err
	}

	if _, err = buffer.Begin(core1_0.CommandBufferBeginInfo{
		Flags: core1_0.CommandBufferUsageOneTimeSubmit,
	}); err != nil {
		return errors.Wrap(err, "begin command buffer")
	}

	err = buffer.CmdBeginRenderPass(core1_0.SubpassContentsInline,
		core1_0.RenderPassBeginInfo{
			RenderPass:  call.renderPass,
			Framebuffer: call.framebuffer,
			RenderArea:  fullScissor(call.extent),
			ClearValues: clearValues(),
		})
	if err != nil {
		return errors.Wrap(err, "begin render pass")
	}

	buffer.CmdBindPipeline(core1_0.PipelineBindPointGraphics, call.pipeline)
	buffer.CmdSetViewport([]core1_0.Viewport{fullViewport(call.extent)})
	buffer.CmdSetScissor([]core1_0.Rect2D{fullScissor(call.extent)})
	buffer.CmdSetLineWidth(1.0)
	buffer.CmdBindVertexBuffers([]core1_0.Buffer{call.vertices}, []int{0})
	buffer.CmdBindIndexBuffer(call.indices, 0, core1_0.IndexTypeUInt32)
	buffer.CmdBindDescriptorSets(core1_0.PipelineBindPointGraphics, call.layout, []core1_0.DescriptorSet{
		call.descriptorSet,
	}, nil)
	buffer.CmdPushConstants(call.layout, core1_0.StageVertex, 0, model)
	buffer.CmdDrawIndexed(call.indexCount, 1, 0, 0, 0)
	buffer.CmdEndRenderPass()

	_, err = buffer.End()
	return errors.Wrap(err, "end command buffer")
}
