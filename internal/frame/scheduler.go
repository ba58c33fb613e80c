package frame

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/meshrender/internal/logging"
)

// State is the position of the scheduler in the per-frame protocol.
type State int

const (
	StateIdle State = iota
	StateAcquiring
	StateRecording
	StateSubmitted
	StatePresenting
	StateRecreating
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateAcquiring:
		return "acquiring"
	case StateRecording:
		return "recording"
	case StateSubmitted:
		return "submitted"
	case StatePresenting:
		return "presenting"
	case StateRecreating:
		return "recreating"
	}
	return "unknown"
}

const noSlot = -1

// Stats counts what the loop has done since it started.
type Stats struct {
	Frames      uint64
	Skipped     uint64
	Recreations uint64
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithClock replaces the clock used for the model rotation and statistics.
func WithClock(c Clock) Option {
	return func(s *Scheduler) {
		s.clock = c
	}
}

// WithStatsInterval logs frame statistics every interval. Zero disables it.
func WithStatsInterval(interval time.Duration) Option {
	return func(s *Scheduler) {
		s.statsInterval = interval.Seconds()
	}
}

// Scheduler runs the frame protocol on a single goroutine.
type Scheduler struct {
	backend Backend
	window  Window
	clock   Clock

	state          State
	frame          uint64
	framesInFlight int
	imagesInFlight []int
	resized        atomic.Bool

	start         float64
	statsInterval float64
	lastStats     float64
	statsFrames   uint64
	stats         Stats
}

// NewScheduler prepares a scheduler for the images the backend currently
// holds.
func NewScheduler(backend Backend, window Window, opts ...Option) *Scheduler {
	s := &Scheduler{
		backend:        backend,
		window:         window,
		clock:          SystemClock(),
		framesInFlight: backend.FramesInFlight(),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.start = s.clock.Seconds()
	s.lastStats = s.start
	s.resetImagesInFlight()
	return s
}

// NotifyResize latches a resize. The next presented frame triggers a
// swapchain rebuild. Safe to call from any goroutine.
func (s *Scheduler) NotifyResize() {
	s.resized.Store(true)
}

// State reports where the protocol currently is.
func (s *Scheduler) State() State {
	return s.state
}

// Stats returns the counters accumulated so far.
func (s *Scheduler) Stats() Stats {
	return s.stats
}

func (s *Scheduler) resetImagesInFlight() {
	s.imagesInFlight = make([]int, s.backend.ImageCount())
	for i := range s.imagesInFlight {
		s.imagesInFlight[i] = noSlot
	}
}

// DrawFrame runs one iteration of the protocol. An out-of-date swapchain
// skips the frame and rebuilds the swapchain instead.
func (s *Scheduler) DrawFrame() error {
	slot := int(s.frame % uint64(s.framesInFlight))

	s.state = StateAcquiring
	if err := s.backend.WaitFence(slot); err != nil {
		return errors.Wrapf(err, "wait for frame slot %d", slot)
	}

	image, status, err := s.backend.AcquireImage(slot)
	if err != nil {
		return errors.Wrap(err, "acquire swapchain image")
	}
	if status == StatusOutOfDate {
		s.stats.Skipped++
		return s.recreate()
	}
	stale := status == StatusSuboptimal

	if owner := s.imagesInFlight[image]; owner != noSlot && owner != slot {
		if err := s.backend.WaitFence(owner); err != nil {
			return errors.Wrapf(err, "wait for image %d", image)
		}
	}
	s.imagesInFlight[image] = slot

	s.state = StateRecording
	elapsed := s.clock.Seconds() - s.start
	if err := s.backend.Record(image, ModelMatrix(elapsed)); err != nil {
		return errors.Wrapf(err, "record command buffer %d", image)
	}

	width, height := s.backend.Extent()
	if err := s.backend.UpdateUniforms(image, FrameUniforms(width, height)); err != nil {
		return errors.Wrapf(err, "update uniform buffer %d", image)
	}

	if err := s.backend.ResetFence(slot); err != nil {
		return errors.Wrapf(err, "reset fence %d", slot)
	}
	if err := s.backend.Submit(slot, image); err != nil {
		return errors.Wrap(err, "submit draw command buffer")
	}
	s.state = StateSubmitted

	s.state = StatePresenting
	status, err = s.backend.Present(slot, image)
	if err != nil {
		return errors.Wrap(err, "present swapchain image")
	}

	s.frame++
	s.stats.Frames++
	s.statsFrames++

	resized := s.resized.Swap(false)
	if stale || status != StatusOK || resized {
		logging.Logger().Debug("swapchain invalidated", "status", status, "stale", stale, "resized", resized)
		return s.recreate()
	}

	s.state = StateIdle
	return nil
}

func (s *Scheduler) recreate() error {
	s.state = StateRecreating
	// Any pending resize is covered by this rebuild.
	s.resized.Store(false)

	width, height := s.window.DrawableSize()
	for width == 0 || height == 0 {
		if s.window.ShouldClose() {
			s.state = StateIdle
			return nil
		}
		s.window.WaitEvents()
		width, height = s.window.DrawableSize()
	}

	if err := s.backend.Recreate(); err != nil {
		return errors.Wrap(err, "recreate swapchain")
	}

	s.resetImagesInFlight()
	s.stats.Recreations++
	s.state = StateIdle

	logging.Logger().Info("swapchain recreated", "width", width, "height", height, "images", len(s.imagesInFlight))
	return nil
}

// Run polls window events and draws frames until the window closes, ctx is
// cancelled or maxFrames frames have been presented (0 means no limit). It
// waits for the device to go idle before returning.
func (s *Scheduler) Run(ctx context.Context, maxFrames int) error {
	for !s.window.ShouldClose() {
		if ctx.Err() != nil {
			break
		}
		if maxFrames > 0 && s.stats.Frames >= uint64(maxFrames) {
			break
		}

		s.window.PollEvents()
		if s.window.ShouldClose() {
			break
		}

		if err := s.DrawFrame(); err != nil {
			return errors.CombineErrors(err, errors.Wrap(s.backend.WaitIdle(), "wait for device idle"))
		}
		s.logStats()
	}

	return errors.Wrap(s.backend.WaitIdle(), "wait for device idle")
}

func (s *Scheduler) logStats() {
	if s.statsInterval <= 0 {
		return
	}

	now := s.clock.Seconds()
	window := now - s.lastStats
	if window < s.statsInterval {
		return
	}

	logging.Logger().Info("frame stats",
		"fps", float64(s.statsFrames)/window,
		"frames", s.stats.Frames,
		"skipped", s.stats.Skipped,
		"recreations", s.stats.Recreations)

	s.lastStats = now
	s.statsFrames = 0
}
