package frame

import (
	"context"
	"strings"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/go-gl/mathgl/mgl32"
)

func TestFenceMutualExclusion(t *testing.T) {
	statuses := []Status{StatusOK, StatusOK, StatusOK, StatusOK, StatusSuboptimal, StatusOutOfDate}

	for slots := 1; slots <= 3; slots++ {
		for images := 1; images <= 4; images++ {
			for seed := int64(1); seed <= 5; seed++ {
				gpu := newSimulatedGPU(seed*int64(10*slots+images), slots, images)
				sched := NewScheduler(gpu, &fakeWindow{}, WithClock(&fixedClock{}))

				for frame := 0; frame < 300; frame++ {
					if gpu.rng.Intn(10) == 0 {
						gpu.acquireStatus = append(gpu.acquireStatus, statuses[gpu.rng.Intn(len(statuses))])
					}
					if gpu.rng.Intn(10) == 0 {
						gpu.presentStatus = append(gpu.presentStatus, statuses[gpu.rng.Intn(len(statuses))])
					}
					if gpu.rng.Intn(50) == 0 {
						sched.NotifyResize()
					}

					if err := sched.DrawFrame(); err != nil {
						t.Fatalf("slots=%d images=%d seed=%d: %v", slots, images, seed, err)
					}
				}

				if len(gpu.violations) > 0 {
					t.Errorf("slots=%d images=%d seed=%d: %d violations, first: %s",
						slots, images, seed, len(gpu.violations), gpu.violations[0])
				}
				if gpu.submits == 0 {
					t.Errorf("slots=%d images=%d seed=%d: nothing was submitted", slots, images, seed)
				}
			}
		}
	}
}

func TestSimulatedGPUDetectsOverlap(t *testing.T) {
	gpu := newSimulatedGPU(1, 2, 2)

	_ = gpu.ResetFence(0)
	_ = gpu.Submit(0, 1)
	_ = gpu.Record(1, mgl32.Ident4())

	if len(gpu.violations) != 1 {
		t.Fatalf("got %d violations, want 1", len(gpu.violations))
	}
	if !strings.Contains(gpu.violations[0], "command buffer 1") {
		t.Errorf("violation = %q", gpu.violations[0])
	}
}

func TestRecreationRoundTrip(t *testing.T) {
	gpu := newSimulatedGPU(7, 2, 3)
	sched := NewScheduler(gpu, &fakeWindow{}, WithClock(&fixedClock{}))

	freshHandles := gpu.liveHandles
	freshImages := gpu.ImageCount()
	freshFormat := gpu.format

	for i := 0; i < 4; i++ {
		sched.NotifyResize()
		if err := sched.DrawFrame(); err != nil {
			t.Fatal(err)
		}
	}

	if gpu.recreations != 4 {
		t.Fatalf("recreations = %d, want 4", gpu.recreations)
	}
	if gpu.liveHandles != freshHandles {
		t.Errorf("live handles = %d, want %d", gpu.liveHandles, freshHandles)
	}
	if gpu.createdHandles-gpu.destroyedHandles != gpu.liveHandles {
		t.Errorf("leaked handles: created %d, destroyed %d, live %d",
			gpu.createdHandles, gpu.destroyedHandles, gpu.liveHandles)
	}
	if gpu.ImageCount() != freshImages || gpu.format != freshFormat {
		t.Errorf("swapchain changed shape: %d images %s", gpu.ImageCount(), gpu.format)
	}
	if len(sched.imagesInFlight) != freshImages {
		t.Errorf("image slots = %d, want %d", len(sched.imagesInFlight), freshImages)
	}
	for i, owner := range sched.imagesInFlight {
		if owner != noSlot {
			t.Errorf("image %d still owned by slot %d after recreation", i, owner)
		}
	}
	if got := sched.Stats().Recreations; got != 4 {
		t.Errorf("stats recreations = %d", got)
	}
}

func TestResizeFlagIsConsumed(t *testing.T) {
	gpu := newSimulatedGPU(1, 2, 3)
	sched := NewScheduler(gpu, &fakeWindow{}, WithClock(&fixedClock{}))

	sched.NotifyResize()
	if err := sched.DrawFrame(); err != nil {
		t.Fatal(err)
	}
	if err := sched.DrawFrame(); err != nil {
		t.Fatal(err)
	}

	if gpu.recreations != 1 {
		t.Errorf("recreations = %d, want 1", gpu.recreations)
	}
	if gpu.presents != 2 {
		t.Errorf("presents = %d, want 2", gpu.presents)
	}
	if sched.State() != StateIdle {
		t.Errorf("state = %s", sched.State())
	}
}

func TestOutOfDateAcquireSkipsFrame(t *testing.T) {
	gpu := newSimulatedGPU(1, 2, 3)
	gpu.acquireStatus = []Status{StatusOutOfDate}
	sched := NewScheduler(gpu, &fakeWindow{}, WithClock(&fixedClock{}))

	if err := sched.DrawFrame(); err != nil {
		t.Fatal(err)
	}

	if gpu.submits != 0 || gpu.presents != 0 {
		t.Errorf("submits = %d, presents = %d, want none", gpu.submits, gpu.presents)
	}
	if gpu.recreations != 1 {
		t.Errorf("recreations = %d, want 1", gpu.recreations)
	}
	stats := sched.Stats()
	if stats.Skipped != 1 || stats.Frames != 0 {
		t.Errorf("stats = %+v", stats)
	}
	if !gpu.fenceSignaled[0] {
		t.Error("fence 0 was reset for a skipped frame")
	}

	if err := sched.DrawFrame(); err != nil {
		t.Fatal(err)
	}
	if gpu.submits != 1 || len(gpu.violations) > 0 {
		t.Errorf("submits = %d, violations = %v", gpu.submits, gpu.violations)
	}
}

func TestOutOfDateAcquireClearsResize(t *testing.T) {
	gpu := newSimulatedGPU(1, 2, 3)
	gpu.acquireStatus = []Status{StatusOutOfDate}
	sched := NewScheduler(gpu, &fakeWindow{}, WithClock(&fixedClock{}))

	sched.NotifyResize()
	for i := 0; i < 2; i++ {
		if err := sched.DrawFrame(); err != nil {
			t.Fatal(err)
		}
	}

	if gpu.recreations != 1 {
		t.Errorf("recreations = %d, want 1", gpu.recreations)
	}
	if gpu.presents != 1 {
		t.Errorf("presents = %d, want 1", gpu.presents)
	}
}

func TestSuboptimalAcquireRendersThenRecreates(t *testing.T) {
	gpu := newSimulatedGPU(1, 2, 3)
	gpu.acquireStatus = []Status{StatusSuboptimal}
	sched := NewScheduler(gpu, &fakeWindow{}, WithClock(&fixedClock{}))

	if err := sched.DrawFrame(); err != nil {
		t.Fatal(err)
	}

	if gpu.presents != 1 {
		t.Errorf("presents = %d, want 1", gpu.presents)
	}
	if gpu.recreations != 1 {
		t.Errorf("recreations = %d, want 1", gpu.recreations)
	}
}

func TestPresentResultTriggersRecreation(t *testing.T) {
	for _, status := range []Status{StatusSuboptimal, StatusOutOfDate} {
		gpu := newSimulatedGPU(1, 2, 3)
		gpu.presentStatus = []Status{status}
		sched := NewScheduler(gpu, &fakeWindow{}, WithClock(&fixedClock{}))

		if err := sched.DrawFrame(); err != nil {
			t.Fatal(err)
		}
		if gpu.recreations != 1 {
			t.Errorf("%s: recreations = %d, want 1", status, gpu.recreations)
		}
		if sched.Stats().Frames != 1 {
			t.Errorf("%s: frames = %d, want 1", status, sched.Stats().Frames)
		}
	}
}

func TestMinimizedWindowBlocksRecreation(t *testing.T) {
	gpu := newSimulatedGPU(1, 2, 3)
	win := &fakeWindow{sizes: [][2]int{{0, 0}, {0, 600}, {800, 0}, {640, 480}}}
	sched := NewScheduler(gpu, win, WithClock(&fixedClock{}))

	sched.NotifyResize()
	if err := sched.DrawFrame(); err != nil {
		t.Fatal(err)
	}

	if win.waits != 3 {
		t.Errorf("waited for events %d times, want 3", win.waits)
	}
	if gpu.recreations != 1 {
		t.Errorf("recreations = %d, want 1", gpu.recreations)
	}
}

func TestCloseWhileMinimized(t *testing.T) {
	gpu := newSimulatedGPU(1, 2, 3)
	win := &fakeWindow{sizes: [][2]int{{0, 0}}, closed: true}
	sched := NewScheduler(gpu, win, WithClock(&fixedClock{}))

	sched.NotifyResize()
	if err := sched.DrawFrame(); err != nil {
		t.Fatal(err)
	}

	if gpu.recreations != 0 {
		t.Errorf("recreated a swapchain for a closing window")
	}
	if win.waits != 0 {
		t.Errorf("blocked on events %d times", win.waits)
	}
}

func TestModelMatrixUsesInjectedClock(t *testing.T) {
	gpu := newSimulatedGPU(1, 2, 3)
	clock := &fixedClock{now: 10}
	sched := NewScheduler(gpu, &fakeWindow{}, WithClock(clock))

	clock.now = 11
	if err := sched.DrawFrame(); err != nil {
		t.Fatal(err)
	}

	if len(gpu.recorded) != 1 {
		t.Fatalf("recorded %d frames", len(gpu.recorded))
	}
	if want := ModelMatrix(1); !near(gpu.recorded[0][:], want[:], 1e-6) {
		t.Errorf("model = %v, want %v", gpu.recorded[0], ModelMatrix(1))
	}

	want := FrameUniforms(800, 600)
	if gpu.uniforms[0] != want {
		t.Errorf("uniforms = %v, want %v", gpu.uniforms[0], want)
	}
}

func TestRunStopsAtMaxFrames(t *testing.T) {
	gpu := newSimulatedGPU(3, 2, 3)
	win := &fakeWindow{}
	sched := NewScheduler(gpu, win, WithClock(&fixedClock{}))

	if err := sched.Run(context.Background(), 25); err != nil {
		t.Fatal(err)
	}

	if sched.Stats().Frames != 25 {
		t.Errorf("frames = %d, want 25", sched.Stats().Frames)
	}
	if win.polls != 25 {
		t.Errorf("polled %d times, want once per frame", win.polls)
	}
	if gpu.idles != 1 {
		t.Errorf("device idle waits = %d, want 1", gpu.idles)
	}
}

func TestRunStopsWhenWindowCloses(t *testing.T) {
	gpu := newSimulatedGPU(3, 2, 3)
	win := &fakeWindow{closeAt: 5}
	sched := NewScheduler(gpu, win, WithClock(&fixedClock{}))

	if err := sched.Run(context.Background(), 0); err != nil {
		t.Fatal(err)
	}

	if sched.Stats().Frames != 4 {
		t.Errorf("frames = %d, want 4", sched.Stats().Frames)
	}
	for slot, pending := range gpu.fencePending {
		if len(pending) > 0 {
			t.Errorf("slot %d still has pending work after shutdown", slot)
		}
	}
}

func TestRunStopsWhenCancelled(t *testing.T) {
	gpu := newSimulatedGPU(3, 2, 3)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	sched := NewScheduler(gpu, &fakeWindow{}, WithClock(&fixedClock{}))
	if err := sched.Run(ctx, 0); err != nil {
		t.Fatal(err)
	}
	if gpu.submits != 0 {
		t.Errorf("submitted %d frames after cancellation", gpu.submits)
	}
}

func TestAcquireFailureIsFatal(t *testing.T) {
	gpu := newSimulatedGPU(1, 2, 3)
	gpu.acquireErr = errDeviceLost
	sched := NewScheduler(gpu, &fakeWindow{}, WithClock(&fixedClock{}))

	err := sched.Run(context.Background(), 0)
	if !errors.Is(err, errDeviceLost) {
		t.Fatalf("err = %v, want device lost", err)
	}
	if gpu.recreations != 0 {
		t.Error("a failed acquire must not trigger recreation")
	}
}

func TestFailedFrameWaitsForIdle(t *testing.T) {
	gpu := newSimulatedGPU(1, 2, 3)
	gpu.presentErr = errDeviceLost
	sched := NewScheduler(gpu, &fakeWindow{}, WithClock(&fixedClock{}))

	err := sched.Run(context.Background(), 0)
	if !errors.Is(err, errDeviceLost) {
		t.Fatalf("err = %v, want device lost", err)
	}
	if gpu.idles != 1 {
		t.Errorf("device idle waits = %d, want 1", gpu.idles)
	}
	for slot, pending := range gpu.fencePending {
		if len(pending) > 0 {
			t.Errorf("slot %d still has pending work after a failed frame", slot)
		}
	}
}
