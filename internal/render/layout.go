package render

import (
	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/core/core1_0"
)

type layoutPair struct {
	from, to core1_0.ImageLayout
}

type layoutTransition struct {
	srcAccess, dstAccess core1_0.AccessFlags
	srcStage, dstStage   core1_0.PipelineStageFlags
}

// transitions lists every layout change the uploader performs.
var transitions = map[layoutPair]layoutTransition{
	{core1_0.ImageLayoutUndefined, core1_0.ImageLayoutTransferDstOptimal}: {
		srcAccess: 0,
		dstAccess: core1_0.AccessTransferWrite,
		srcStage:  core1_0.PipelineStageTopOfPipe,
		dstStage:  core1_0.PipelineStageTransfer,
	},
	{core1_0.ImageLayoutTransferDstOptimal, core1_0.ImageLayoutTransferSrcOptimal}: {
		srcAccess: core1_0.AccessTransferWrite,
		dstAccess: core1_0.AccessTransferRead,
		srcStage:  core1_0.PipelineStageTransfer,
		dstStage:  core1_0.PipelineStageTransfer,
	},
	{core1_0.ImageLayoutTransferDstOptimal, core1_0.ImageLayoutShaderReadOnlyOptimal}: {
		srcAccess: core1_0.AccessTransferWrite,
		dstAccess: core1_0.AccessShaderRead,
		srcStage:  core1_0.PipelineStageTransfer,
		dstStage:  core1_0.PipelineStageFragmentShader,
	},
	{core1_0.ImageLayoutTransferSrcOptimal, core1_0.ImageLayoutShaderReadOnlyOptimal}: {
		srcAccess: core1_0.AccessTransferRead,
		dstAccess: core1_0.AccessShaderRead,
		srcStage:  core1_0.PipelineStageTransfer,
		dstStage:  core1_0.PipelineStageFragmentShader,
	},
}

func lookupTransition(from, to core1_0.ImageLayout) (layoutTransition, error) {
	t, ok := transitions[layoutPair{from, to}]
	if !ok {
		return layoutTransition{}, errors.AssertionFailedf("unexpected layout transition: %s -> %s", from, to)
	}
	return t, nil
}

// cmdTransition records a barrier moving levels [baseMip, baseMip+levels)
// of a color image from one layout to another.
func cmdTransition(buffer core1_0.CommandBuffer, image core1_0.Image, from, to core1_0.ImageLayout, baseMip, levels int) error {
	t, err := lookupTransition(from, to)
	if err != nil {
		return err
	}

	return buffer.CmdPipelineBarrier(t.srcStage, t.dstStage, 0, nil, nil, []core1_0.ImageMemoryBarrier{
		{
			OldLayout:           from,
			NewLayout:           to,
			SrcQueueFamilyIndex: -1,
			DstQueueFamilyIndex: -1,
			Image:               image,
			SubresourceRange: core1_0.ImageSubresourceRange{
				AspectMask:     core1_0.ImageAspectColor,
				BaseMipLevel:   baseMip,
				LevelCount:     levels,
				BaseArrayLayer: 0,
				LayerCount:     1,
			},
			SrcAccessMask: t.srcAccess,
			DstAccessMask: t.dstAccess,
		},
	})
}
