package render

import (
	"fmt"
	"io"

	"github.com/docker/go-units"
	"github.com/vkngwrapper/core/core1_0"
	"github.com/xlab/tablewriter"
)

func (d *Device) deviceLocalMemory() int64 {
	var total int64
	for _, heap := range d.physical.MemoryProperties().MemoryHeaps {
		if heap.Flags&core1_0.MemoryHeapDeviceLocal != 0 {
			total += int64(heap.Size)
		}
	}
	return total
}

// Summary writes a table describing the device, the swapchain and the
// uploaded resources.
func (r *Renderer) Summary(w io.Writer) error {
	dev := r.dev

	table := tablewriter.CreateTable()
	table.UTF8Box()
	table.AddTitle("MESHRENDER")
	table.AddRow("Physical Device Name", dev.properties.DriverName)
	table.AddRow("API Version", dev.properties.APIVersion)
	table.AddRow("Device Local Memory", units.BytesSize(float64(dev.deviceLocalMemory())))
	table.AddRow("Validation", dev.messenger != nil)

	table.AddSeparator()
	table.AddRow("Graphics Family", dev.Families.Graphics)
	table.AddRow("Present Family", dev.Families.Present)
	table.AddRow("Transfer Family", dev.Families.Transfer)

	table.AddSeparator()
	table.AddRow("Swapchain Format", r.swapchain.format)
	table.AddRow("Present Mode", r.swapchain.presentMode)
	table.AddRow("Image Size", fmt.Sprintf("%dx%d", r.swapchain.extent.Width, r.swapchain.extent.Height))
	table.AddRow("Images", len(r.swapchain.images))
	table.AddRow("Frames In Flight", r.opts.FramesInFlight)
	table.AddRow("MSAA Samples", r.samples)
	table.AddRow("Depth Format", r.depthFormat)

	table.AddSeparator()
	table.AddRow("Indices", r.indexCount)
	table.AddRow("Vertex Buffer", units.BytesSize(float64(r.vertices.size)))
	table.AddRow("Index Buffer", units.BytesSize(float64(r.indices.size)))
	table.AddRow("Texture", fmt.Sprintf("%dx%d, %d mip levels", r.texture.width, r.texture.height, r.texture.mipLevels))

	_, err := fmt.Fprintln(w, table.Render())
	return err
}
