//go:build !nogpu

package wgpu

import (
	"errors"
	"testing"

	"github.com/gogpu/gputypes"

	"github.com/gogpu/gpuscan"
	"github.com/gogpu/gpuscan/gpucore"
	"github.com/gogpu/gpuscan/internal/shaders"
)

func newTestBackend(t *testing.T) *Backend {
	t.Helper()
	b, err := New()
	if err != nil {
		t.Skipf("GPU not available: %v", err)
	}
	t.Cleanup(func() { _ = b.Close() })
	return b
}

func TestLayoutEntries(t *testing.T) {
	for k := gpucore.Kernel(0); k < gpucore.KernelCount; k++ {
		entries := layoutEntries(k)
		if len(entries) != k.Bindings()+1 {
			t.Errorf("%v: %d entries, want %d", k, len(entries), k.Bindings()+1)
			continue
		}
		if entries[0].Buffer.Type != gputypes.BufferBindingTypeUniform {
			t.Errorf("%v: binding 0 is not the params uniform", k)
		}
		writable := 0
		for i, e := range entries {
			if int(e.Binding) != i {
				t.Errorf("%v: entry %d has binding %d", k, i, e.Binding)
			}
			if e.Buffer.Type == gputypes.BufferBindingTypeStorage {
				writable++
			}
		}
		if writable == 0 {
			t.Errorf("%v: no writable binding", k)
		}
	}
}

func TestCaps_StorageBindingLimit(t *testing.T) {
	tests := []struct {
		name         string
		buffer, bind uint64
		want         uint64
	}{
		{"binding smaller", 256 << 20, 128 << 20, 128 << 20},
		{"buffer smaller", 64 << 20, 128 << 20, 64 << 20},
		{"binding unset", 256 << 20, 0, 256 << 20},
		{"buffer unset", 0, 128 << 20, 128 << 20},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			limits := gputypes.DefaultLimits()
			limits.MaxBufferSize = tt.buffer
			limits.MaxStorageBufferBindingSize = tt.bind
			b := newBackend(nil, nil, "test", limits)
			if got := b.Caps().MaxBufferSize; got != tt.want {
				t.Errorf("Caps().MaxBufferSize = %d, want %d", got, tt.want)
			}
		})
	}

	caps := newBackend(nil, nil, "test", gputypes.DefaultLimits()).Caps()
	if caps.MaxWorkgroupInvocations > maxInvocations {
		t.Errorf("MaxWorkgroupInvocations = %d, want <= %d", caps.MaxWorkgroupInvocations, maxInvocations)
	}
}

func TestWordBytes(t *testing.T) {
	words := []uint32{0, 1, 0xdeadbeef}
	raw := wordsToBytes(words)
	if len(raw) != 12 || raw[8] != 0xef || raw[11] != 0xde {
		t.Fatalf("wordsToBytes() = %x", raw)
	}
	back := bytesToWords(raw)
	for i := range words {
		if back[i] != words[i] {
			t.Errorf("bytesToWords()[%d] = %#x, want %#x", i, back[i], words[i])
		}
	}
}

func TestCompileSPIRV(t *testing.T) {
	for _, p := range []int{64, 256} {
		src, err := shaders.Program(p)
		if err != nil {
			t.Fatal(err)
		}
		for _, m := range src.Modules {
			code, err := compileSPIRV(m.WGSL)
			if err != nil {
				t.Skipf("Skipping: naga cannot compile %s: %v", m.Kernel, err)
			}
			// SPIR-V magic number.
			if len(code) == 0 || code[0] != 0x07230203 {
				t.Errorf("P=%d %s: missing SPIR-V magic", p, m.Kernel)
			}
		}
	}
}

func TestCompileSPIRV_Invalid(t *testing.T) {
	if _, err := compileSPIRV("fn main( {"); err == nil {
		t.Error("compileSPIRV() accepted malformed WGSL")
	}
}

func TestNewFromProvider_NotHAL(t *testing.T) {
	if _, err := NewFromProvider(nil); !errors.Is(err, ErrProvider) {
		t.Errorf("NewFromProvider(nil) error = %v, want ErrProvider", err)
	}
}

func TestRegistered(t *testing.T) {
	found := false
	for _, name := range gpucore.Backends() {
		if name == Name {
			found = true
		}
	}
	if !found {
		t.Errorf("Backends() = %v, want %q registered", gpucore.Backends(), Name)
	}
}

// =============================================================================
// Device Tests (skip without a GPU)
// =============================================================================

func TestBackend_Buffers(t *testing.T) {
	b := newTestBackend(t)

	id, err := b.Allocate(8)
	if err != nil {
		t.Fatal(err)
	}
	defer b.Free(id)

	if err := b.Upload(id, []uint32{1, 2, 3, 4, 5}); err != nil {
		t.Fatal(err)
	}
	got, err := b.Download(id, 3, 4)
	if err != nil {
		t.Fatal(err)
	}
	want := []uint32{4, 5, 0, 0}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("Download() = %v, want %v", got, want)
		}
	}

	if _, err := b.Download(id, 6, 4); !errors.Is(err, gpucore.ErrBufferRange) {
		t.Errorf("Download past end error = %v, want ErrBufferRange", err)
	}
	if err := b.Upload(gpucore.BufferID(999), nil); !errors.Is(err, gpucore.ErrInvalidBuffer) {
		t.Errorf("Upload to unknown buffer error = %v, want ErrInvalidBuffer", err)
	}
}

func TestBackend_BuildError(t *testing.T) {
	b := newTestBackend(t)

	_, err := b.BuildProgram(&gpucore.ProgramSource{
		Label: "broken",
		Modules: []gpucore.ModuleSource{
			{Kernel: gpucore.KernelFilter, WGSL: "fn main( {", EntryPoint: "main", WorkgroupSize: 64},
		},
	})
	var be *gpucore.BuildError
	if !errors.As(err, &be) || be.Log == "" {
		t.Errorf("BuildProgram() error = %v, want BuildError with a log", err)
	}
}

func TestBackend_Compact(t *testing.T) {
	b := newTestBackend(t)

	e, err := gpuscan.New(gpuscan.WithBackend(b), gpuscan.WithPartitionSize(64))
	if err != nil {
		t.Skipf("Skipping: program build failed: %v", err)
	}
	defer e.Close()

	in := make([]int32, 5000)
	for i := range in {
		in[i] = int32(i*7919) % 10
	}

	scanned, err := e.Scan(in)
	if err != nil {
		t.Fatal(err)
	}
	want := gpuscan.ReferenceScan(in)
	for i := range want {
		if scanned[i] != want[i] {
			t.Fatalf("Scan()[%d] = %d, want %d", i, scanned[i], want[i])
		}
	}

	pred := gpuscan.GreaterThan[int32](5)
	got, err := gpuscan.Compact(e, in, pred)
	if err != nil {
		t.Fatal(err)
	}
	ref := gpuscan.ReferenceCompact(in, pred)
	if len(got) != len(ref) {
		t.Fatalf("Compact() returned %d elements, want %d", len(got), len(ref))
	}
	for i := range ref {
		if got[i] != ref[i] {
			t.Fatalf("Compact()[%d] = %d, want %d", i, got[i], ref[i])
		}
	}
}
