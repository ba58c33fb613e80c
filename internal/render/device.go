// Package render owns every Vulkan object the renderer needs: the device
// context, the swapchain and the objects sized by it, the pipeline, the
// uploaded mesh and texture, and the per-frame synchronization set.
//
// Renderer implements frame.Backend.
package render

import (
	"sort"

	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/core"
	"github.com/vkngwrapper/core/common"
	"github.com/vkngwrapper/core/core1_0"
	"github.com/vkngwrapper/extensions/ext_debug_utils"
	"github.com/vkngwrapper/extensions/khr_portability_enumeration"
	"github.com/vkngwrapper/extensions/khr_portability_subset"
	"github.com/vkngwrapper/extensions/khr_surface"
	"github.com/vkngwrapper/extensions/khr_swapchain"
	"github.com/vkngwrapper/meshrender/internal/logging"
)

// ErrCapabilityMissing marks failures caused by the machine lacking a
// required extension, layer, feature or device.
var ErrCapabilityMissing = errors.New("required vulkan capability missing")

const validationLayer = "VK_LAYER_KHRONOS_validation"

var deviceExtensions = []string{khr_swapchain.ExtensionName}

// Surface is the window side of device creation.
type Surface interface {
	// RequiredExtensions lists the instance extensions the window system
	// needs to present.
	RequiredExtensions() []string
	CreateSurface(instance core1_0.Instance, ext khr_surface.Extension) (khr_surface.Surface, error)
	DrawableSize() (width, height int)
}

// DeviceOptions controls instance creation.
type DeviceOptions struct {
	ApplicationName string
	// Validation enables the Khronos validation layer and routes its
	// messages to the logger.
	Validation bool
}

// QueueFamilies holds the family index used for each kind of work.
type QueueFamilies struct {
	Graphics int
	Present  int
	Transfer int
}

// Unique returns each family index once, in ascending order.
func (q QueueFamilies) Unique() []int {
	return uniqueFamilies(q.Graphics, q.Present, q.Transfer)
}

func uniqueFamilies(families ...int) []int {
	seen := make(map[int]struct{}, len(families))
	var unique []int
	for _, family := range families {
		if _, ok := seen[family]; ok {
			continue
		}
		seen[family] = struct{}{}
		unique = append(unique, family)
	}
	sort.Ints(unique)
	return unique
}

// Device is the instance, surface, physical and logical device and the
// queues work is submitted to. It is created first and destroyed last.
type Device struct {
	instance  core1_0.Instance
	messenger *debugMessenger
	surface   khr_surface.Surface
	physical  core1_0.PhysicalDevice
	device    core1_0.Device

	swapchainExt khr_swapchain.Extension

	Families      QueueFamilies
	graphicsQueue core1_0.Queue
	presentQueue  core1_0.Queue
	transferQueue core1_0.Queue

	properties    *core1_0.PhysicalDeviceProperties
	maxAnisotropy float32
}

// NewDevice creates the instance, surface and logical device. Anything
// created before a failure is destroyed again.
func NewDevice(loader core.Loader, target Surface, opts DeviceOptions) (*Device, error) {
	dev := &Device{}

	err := dev.createInstance(loader, target, opts)
	if err == nil {
		err = dev.createSurface(target)
	}
	if err == nil {
		err = dev.pickPhysicalDevice()
	}
	if err == nil {
		err = dev.createLogicalDevice()
	}
	if err != nil {
		dev.Destroy()
		return nil, err
	}

	logging.Logger().Info("device ready",
		"device", dev.properties.DriverName,
		"graphics", dev.Families.Graphics,
		"present", dev.Families.Present,
		"transfer", dev.Families.Transfer,
		"validation", dev.messenger != nil)
	return dev, nil
}

// missingNames returns the entries of required that available lacks.
func missingNames[V any](available map[string]V, required []string) []string {
	var missing []string
	for _, name := range required {
		if _, ok := available[name]; !ok {
			missing = append(missing, name)
		}
	}
	return missing
}

func (d *Device) createInstance(loader core.Loader, target Surface, opts DeviceOptions) error {
	instanceOptions := core1_0.InstanceCreateInfo{
		ApplicationName:    opts.ApplicationName,
		ApplicationVersion: common.CreateVersion(1, 0, 0),
		EngineName:         "meshrender",
		EngineVersion:      common.CreateVersion(1, 0, 0),
		APIVersion:         common.Vulkan1_2,
	}

	extensions, _, err := loader.AvailableExtensions()
	if err != nil {
		return errors.Wrap(err, "enumerate instance extensions")
	}

	required := append([]string(nil), target.RequiredExtensions()...)
	if opts.Validation {
		required = append(required, ext_debug_utils.ExtensionName)
	}
	if missing := missingNames(extensions, required); len(missing) > 0 {
		return errors.WithHint(
			errors.Mark(errors.Newf("missing instance extensions %v", missing), ErrCapabilityMissing),
			"update the graphics driver or run without -validation")
	}
	instanceOptions.EnabledExtensionNames = required

	if _, ok := extensions[khr_portability_enumeration.ExtensionName]; ok {
		instanceOptions.EnabledExtensionNames = append(instanceOptions.EnabledExtensionNames, khr_portability_enumeration.ExtensionName)
		instanceOptions.Flags |= khr_portability_enumeration.InstanceCreateEnumeratePortability
	}

	if opts.Validation {
		layers, _, err := loader.AvailableLayers()
		if err != nil {
			return errors.Wrap(err, "enumerate instance layers")
		}
		if _, ok := layers[validationLayer]; !ok {
			return errors.WithHint(
				errors.Mark(errors.Newf("layer %s not available", validationLayer), ErrCapabilityMissing),
				"install the LunarG Vulkan SDK or run with -validation=false")
		}
		instanceOptions.EnabledLayerNames = append(instanceOptions.EnabledLayerNames, validationLayer)

		// Covers messages emitted while the instance itself is created.
		instanceOptions.Next = debugMessengerOptions()
	}

	d.instance, _, err = loader.CreateInstance(nil, instanceOptions)
	if err != nil {
		return errors.Wrap(err, "create instance")
	}

	if opts.Validation {
		d.messenger, err = createDebugMessenger(d.instance)
		if err != nil {
			return err
		}
	}

	return nil
}

func (d *Device) createSurface(target Surface) error {
	surfaceLoader := khr_surface.CreateExtensionFromInstance(d.instance)

	surface, err := target.CreateSurface(d.instance, surfaceLoader)
	if err != nil {
		return errors.Wrap(err, "create surface")
	}

	d.surface = surface
	return nil
}

// pickQueueFamilies finds a graphics family and a present family, and a
// transfer family that does no graphics work if there is one. Graphics
// doubles as transfer otherwise.
func pickQueueFamilies(flags []core1_0.QueueFlags, presentSupported func(family int) (bool, error)) (QueueFamilies, bool, error) {
	families := QueueFamilies{Graphics: -1, Present: -1, Transfer: -1}

	for family, queueFlags := range flags {
		if families.Graphics < 0 && queueFlags&core1_0.QueueGraphics != 0 {
			families.Graphics = family
		}
		if families.Transfer < 0 && queueFlags&core1_0.QueueTransfer != 0 && queueFlags&core1_0.QueueGraphics == 0 {
			families.Transfer = family
		}

		if families.Present < 0 {
			supported, err := presentSupported(family)
			if err != nil {
				return families, false, err
			}
			if supported {
				families.Present = family
			}
		}
	}

	if families.Graphics < 0 || families.Present < 0 {
		return families, false, nil
	}
	if families.Transfer < 0 {
		families.Transfer = families.Graphics
	}
	return families, true, nil
}

func (d *Device) queueFamilies(device core1_0.PhysicalDevice) (QueueFamilies, bool, error) {
	var flags []core1_0.QueueFlags
	for _, family := range device.QueueFamilyProperties() {
		flags = append(flags, family.QueueFlags)
	}

	return pickQueueFamilies(flags, func(family int) (bool, error) {
		supported, _, err := d.surface.PhysicalDeviceSurfaceSupport(device, family)
		return supported, err
	})
}

// suitable reports whether device can run the renderer, and the queue
// families to use on it.
func (d *Device) suitable(device core1_0.PhysicalDevice) (QueueFamilies, bool, error) {
	families, complete, err := d.queueFamilies(device)
	if err != nil || !complete {
		return families, false, err
	}

	extensions, _, err := device.EnumerateDeviceExtensionProperties()
	if err != nil {
		return families, false, errors.Wrap(err, "enumerate device extensions")
	}
	if len(missingNames(extensions, deviceExtensions)) > 0 {
		return families, false, nil
	}

	support, err := querySwapchainSupport(d.surface, device)
	if err != nil {
		return families, false, err
	}
	if !support.adequate() {
		return families, false, nil
	}

	return families, device.Features().SamplerAnisotropy, nil
}

func (d *Device) pickPhysicalDevice() error {
	physicalDevices, _, err := d.instance.EnumeratePhysicalDevices()
	if err != nil {
		return errors.Wrap(err, "enumerate physical devices")
	}

	for _, device := range physicalDevices {
		families, ok, err := d.suitable(device)
		if err != nil {
			return err
		}
		if ok {
			d.physical = device
			d.Families = families
			break
		}
	}

	if d.physical == nil {
		return errors.WithHint(
			errors.Mark(errors.Newf("no suitable GPU among %d devices", len(physicalDevices)), ErrCapabilityMissing),
			"a device needs VK_KHR_swapchain, sampler anisotropy and a queue that can present to the window")
	}

	d.properties, err = d.physical.Properties()
	if err != nil {
		return errors.Wrap(err, "read device properties")
	}
	d.maxAnisotropy = d.properties.Limits.MaxSamplerAnisotropy
	return nil
}

func (d *Device) createLogicalDevice() error {
	var queueFamilyOptions []core1_0.DeviceQueueCreateInfo
	queuePriority := float32(1.0)
	for _, queueFamily := range d.Families.Unique() {
		queueFamilyOptions = append(queueFamilyOptions, core1_0.DeviceQueueCreateInfo{
			QueueFamilyIndex: queueFamily,
			QueuePriorities:  []float32{queuePriority},
		})
	}

	extensionNames := append([]string(nil), deviceExtensions...)

	// Required by portability implementations such as MoltenVK whenever
	// they advertise it.
	extensions, _, err := d.physical.EnumerateDeviceExtensionProperties()
	if err != nil {
		return errors.Wrap(err, "enumerate device extensions")
	}
	if _, ok := extensions[khr_portability_subset.ExtensionName]; ok {
		extensionNames = append(extensionNames, khr_portability_subset.ExtensionName)
	}

	d.device, _, err = d.physical.CreateDevice(nil, core1_0.DeviceCreateInfo{
		QueueCreateInfos: queueFamilyOptions,
		EnabledFeatures: &core1_0.PhysicalDeviceFeatures{
			SamplerAnisotropy: true,
		},
		EnabledExtensionNames: extensionNames,
	})
	if err != nil {
		return errors.Wrap(err, "create logical device")
	}

	d.graphicsQueue = d.device.GetQueue(d.Families.Graphics, 0)
	d.presentQueue = d.device.GetQueue(d.Families.Present, 0)
	d.transferQueue = d.device.GetQueue(d.Families.Transfer, 0)
	d.swapchainExt = khr_swapchain.CreateExtensionFromDevice(d.device)
	return nil
}

// DeviceName is the driver-reported name of the selected GPU.
func (d *Device) DeviceName() string {
	return d.properties.DriverName
}

// WaitIdle blocks until every queue on the device is idle.
func (d *Device) WaitIdle() error {
	_, err := d.device.WaitIdle()
	return errors.Wrap(err, "wait for device idle")
}

// Destroy releases the device, surface, messenger and instance in that
// order. It tolerates a partially constructed Device.
func (d *Device) Destroy() {
	if d.device != nil {
		d.device.Destroy(nil)
		d.device = nil
	}

	if d.surface != nil {
		d.surface.Destroy(nil)
		d.surface = nil
	}

	d.messenger.destroy()
	d.messenger = nil

	if d.instance != nil {
		d.instance.Destroy(nil)
		d.instance = nil
	}
}
