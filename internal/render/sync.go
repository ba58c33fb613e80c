package render

import (
	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/core/common"
	"github.com/vkngwrapper/core/core1_0"
)

// syncSet is the semaphores and fence of each frame slot. Fences start
// signaled so the first wait on each slot returns at once.
type syncSet struct {
	imageAvailable []core1_0.Semaphore
	renderFinished []core1_0.Semaphore
	inFlight       []core1_0.Fence
}

func createSyncSet(dev *Device, framesInFlight int) (*syncSet, error) {
	set := &syncSet{}

	for i := 0; i < framesInFlight; i++ {
		semaphore, _, err := dev.device.CreateSemaphore(nil, core1_0.SemaphoreCreateInfo{})
		if err != nil {
			set.destroy()
			return nil, errors.Wrapf(err, "create image available semaphore %d", i)
		}
		set.imageAvailable = append(set.imageAvailable, semaphore)

		semaphore, _, err = dev.device.CreateSemaphore(nil, core1_0.SemaphoreCreateInfo{})
		if err != nil {
			set.destroy()
			return nil, errors.Wrapf(err, "create render finished semaphore %d", i)
		}
		set.renderFinished = append(set.renderFinished, semaphore)

		fence, _, err := dev.device.CreateFence(nil, core1_0.FenceCreateInfo{
			Flags: core1_0.FenceCreateSignaled,
		})
		if err != nil {
			set.destroy()
			return nil, errors.Wrapf(err, "create in flight fence %d", i)
		}
		set.inFlight = append(set.inFlight, fence)
	}

	return set, nil
}

func (s *syncSet) wait(dev *Device, slot int) error {
	_, err := dev.device.WaitForFences(true, common.NoTimeout, []core1_0.Fence{s.inFlight[slot]})
	return errors.Wrapf(err, "wait for fence %d", slot)
}

func (s *syncSet) reset(dev *Device, slot int) error {
	_, err := dev.device.ResetFences([]core1_0.Fence{s.inFlight[slot]})
	return errors.Wrapf(err, "reset fence %d", slot)
}

func (s *syncSet) destroy() {
	if s == nil {
		return
	}

	for _, fence := range s.inFlight {
		fence.Destroy(nil)
	}
	for _, semaphore := range s.renderFinished {
		semaphore.Destroy(nil)
	}
	for _, semaphore := range s.imageAvailable {
		semaphore.Destroy(nil)
	}
	s.inFlight, s.renderFinished, s.imageAvailable = nil, nil, nil
}
