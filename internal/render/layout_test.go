package render

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/vkngwrapper/core/common"
	"github.com/vkngwrapper/core/core1_0"
)

func TestTransitionTable(t *testing.T) {
	chain := [][2]core1_0.ImageLayout{
		{core1_0.ImageLayoutUndefined, core1_0.ImageLayoutTransferDstOptimal},
		{core1_0.ImageLayoutTransferDstOptimal, core1_0.ImageLayoutTransferSrcOptimal},
		{core1_0.ImageLayoutTransferSrcOptimal, core1_0.ImageLayoutShaderReadOnlyOptimal},
		{core1_0.ImageLayoutTransferDstOptimal, core1_0.ImageLayoutShaderReadOnlyOptimal},
	}

	for _, pair := range chain {
		tr, err := lookupTransition(pair[0], pair[1])
		if err != nil {
			t.Errorf("%s -> %s: %v", pair[0], pair[1], err)
			continue
		}
		if tr.dstAccess == 0 {
			t.Errorf("%s -> %s has no destination access", pair[0], pair[1])
		}
	}

	if len(transitions) != len(chain) {
		t.Errorf("table has %d entries, want %d", len(transitions), len(chain))
	}
}

func TestUnknownTransitionIsAssertion(t *testing.T) {
	_, err := lookupTransition(core1_0.ImageLayoutShaderReadOnlyOptimal, core1_0.ImageLayoutTransferDstOptimal)
	if err == nil {
		t.Fatal("expected an error")
	}
	if !errors.HasAssertionFailure(err) {
		t.Errorf("err = %v, want an assertion failure", err)
	}
}

func TestSpirvWords(t *testing.T) {
	blob := make([]byte, 8)
	binary.LittleEndian.PutUint32(blob, spirvMagic)
	binary.LittleEndian.PutUint32(blob[4:], 0x00010000)

	words, err := spirvWords(blob)
	if err != nil {
		t.Fatal(err)
	}
	if len(words) != 2 || words[0] != spirvMagic || words[1] != 0x00010000 {
		t.Errorf("words = %#x", words)
	}

	for name, bad := range map[string][]byte{
		"empty":     nil,
		"truncated": blob[:7],
		"no magic":  {1, 2, 3, 4},
	} {
		if _, err := spirvWords(bad); err == nil {
			t.Errorf("%s: expected an error", name)
		}
	}
}

func TestPushConstantBytes(t *testing.T) {
	model := mgl32.Translate3D(1, 2, 3)
	b, err := pushConstantBytes(model)
	if err != nil {
		t.Fatal(err)
	}
	if len(b) != pushConstantSize || pushConstantSize != 64 {
		t.Fatalf("push constant is %d bytes (size %d), want 64", len(b), pushConstantSize)
	}

	var decoded mgl32.Mat4
	if err := binary.Read(bytes.NewReader(b), common.ByteOrder, &decoded); err != nil {
		t.Fatal(err)
	}
	if decoded != model {
		t.Errorf("decoded %v, want %v", decoded, model)
	}
}

func TestClearValuesMatchAttachments(t *testing.T) {
	values := clearValues()
	if len(values) != 3 {
		t.Fatalf("got %d clear values", len(values))
	}
	if _, ok := values[depthAttachmentIndex].(core1_0.ClearValueDepthStencil); !ok {
		t.Errorf("depth clear value is %T", values[depthAttachmentIndex])
	}
}
