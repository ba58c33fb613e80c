package render

import (
	"reflect"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/core/core1_0"
)

func TestPickQueueFamilies(t *testing.T) {
	graphics := core1_0.QueueGraphics | core1_0.QueueCompute | core1_0.QueueTransfer
	transferOnly := core1_0.QueueTransfer
	computeTransfer := core1_0.QueueCompute | core1_0.QueueTransfer

	tests := []struct {
		name     string
		flags    []core1_0.QueueFlags
		present  map[int]bool
		want     QueueFamilies
		complete bool
	}{
		{
			name:     "single family",
			flags:    []core1_0.QueueFlags{graphics},
			present:  map[int]bool{0: true},
			want:     QueueFamilies{Graphics: 0, Present: 0, Transfer: 0},
			complete: true,
		},
		{
			name:     "dedicated transfer",
			flags:    []core1_0.QueueFlags{graphics, computeTransfer, transferOnly},
			present:  map[int]bool{0: true},
			want:     QueueFamilies{Graphics: 0, Present: 0, Transfer: 1},
			complete: true,
		},
		{
			name:     "separate present",
			flags:    []core1_0.QueueFlags{graphics, transferOnly},
			present:  map[int]bool{1: true},
			want:     QueueFamilies{Graphics: 0, Present: 1, Transfer: 1},
			complete: true,
		},
		{
			name:     "no present",
			flags:    []core1_0.QueueFlags{graphics},
			present:  map[int]bool{},
			complete: false,
		},
		{
			name:     "no graphics",
			flags:    []core1_0.QueueFlags{transferOnly},
			present:  map[int]bool{0: true},
			complete: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, complete, err := pickQueueFamilies(tt.flags, func(family int) (bool, error) {
				return tt.present[family], nil
			})
			if err != nil {
				t.Fatal(err)
			}
			if complete != tt.complete {
				t.Fatalf("complete = %v, want %v", complete, tt.complete)
			}
			if complete && got != tt.want {
				t.Errorf("got %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestPickQueueFamiliesPropagatesErrors(t *testing.T) {
	surfaceLost := errors.New("surface lost")
	_, _, err := pickQueueFamilies([]core1_0.QueueFlags{core1_0.QueueGraphics}, func(int) (bool, error) {
		return false, surfaceLost
	})
	if !errors.Is(err, surfaceLost) {
		t.Errorf("err = %v", err)
	}
}

func TestUniqueFamilies(t *testing.T) {
	families := QueueFamilies{Graphics: 2, Present: 0, Transfer: 2}
	if got := families.Unique(); !reflect.DeepEqual(got, []int{0, 2}) {
		t.Errorf("Unique() = %v", got)
	}
}

func TestMissingNames(t *testing.T) {
	available := map[string]int{"VK_KHR_surface": 1, "VK_EXT_debug_utils": 1}
	got := missingNames(available, []string{"VK_KHR_surface", "VK_KHR_xcb_surface", "VK_EXT_debug_utils"})
	if !reflect.DeepEqual(got, []string{"VK_KHR_xcb_surface"}) {
		t.Errorf("missingNames = %v", got)
	}
	if got := missingNames(available, nil); got != nil {
		t.Errorf("nothing required, got %v", got)
	}
}

func TestMaxUsableSampleCount(t *testing.T) {
	tests := []struct {
		color, depth core1_0.SampleCountFlags
		want         core1_0.SampleCountFlags
	}{
		{core1_0.Samples1 | core1_0.Samples2 | core1_0.Samples4 | core1_0.Samples8, core1_0.Samples1 | core1_0.Samples2 | core1_0.Samples4, core1_0.Samples4},
		{core1_0.Samples1 | core1_0.Samples64, core1_0.Samples1 | core1_0.Samples64, core1_0.Samples64},
		{core1_0.Samples1 | core1_0.Samples8, core1_0.Samples1 | core1_0.Samples4, core1_0.Samples1},
		{0, 0, core1_0.Samples1},
	}

	for _, tt := range tests {
		if got := maxUsableSampleCount(tt.color, tt.depth); got != tt.want {
			t.Errorf("maxUsableSampleCount(%v, %v) = %v, want %v", tt.color, tt.depth, got, tt.want)
		}
	}
}

func TestMemoryTypeIndex(t *testing.T) {
	types := []core1_0.MemoryPropertyFlags{
		core1_0.MemoryPropertyDeviceLocal,
		core1_0.MemoryPropertyHostVisible,
		core1_0.MemoryPropertyHostVisible | core1_0.MemoryPropertyHostCoherent,
	}
	hostCoherent := core1_0.MemoryPropertyHostVisible | core1_0.MemoryPropertyHostCoherent

	if i, ok := memoryTypeIndex(types, 0b111, hostCoherent); !ok || i != 2 {
		t.Errorf("got %d %v, want 2", i, ok)
	}
	if i, ok := memoryTypeIndex(types, 0b111, core1_0.MemoryPropertyHostVisible); !ok || i != 1 {
		t.Errorf("got %d %v, want 1", i, ok)
	}
	if _, ok := memoryTypeIndex(types, 0b011, hostCoherent); ok {
		t.Error("type 2 is filtered out and should not match")
	}
}
