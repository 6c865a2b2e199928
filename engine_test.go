package gpuscan

import (
	"bytes"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"testing"

	"github.com/gogpu/gpuscan/backend/host"
	"github.com/gogpu/gpuscan/gpucore"
)

// recordingBackend wraps the host backend and records what the engine asks
// of the device.
type recordingBackend struct {
	gpucore.Backend

	mu       sync.Mutex
	kernels  []gpucore.Kernel
	groups   []int
	allocs   int
	frees    int
	closed   bool
	buildErr error
}

func newRecordingBackend(t *testing.T) *recordingBackend {
	t.Helper()
	hb := host.New(host.WithWorkers(2))
	t.Cleanup(func() { _ = hb.Close() })
	return &recordingBackend{Backend: hb}
}

func (r *recordingBackend) Allocate(words int) (gpucore.BufferID, error) {
	r.mu.Lock()
	r.allocs++
	r.mu.Unlock()
	return r.Backend.Allocate(words)
}

func (r *recordingBackend) Free(id gpucore.BufferID) {
	r.mu.Lock()
	r.frees++
	r.mu.Unlock()
	r.Backend.Free(id)
}

func (r *recordingBackend) BuildProgram(src *gpucore.ProgramSource) (gpucore.ProgramID, error) {
	if r.buildErr != nil {
		return gpucore.InvalidID, r.buildErr
	}
	return r.Backend.BuildProgram(src)
}

func (r *recordingBackend) Dispatch(desc *gpucore.DispatchDesc) error {
	r.mu.Lock()
	r.kernels = append(r.kernels, desc.Kernel)
	r.groups = append(r.groups, desc.Groups)
	r.mu.Unlock()
	return r.Backend.Dispatch(desc)
}

func (r *recordingBackend) Close() error {
	r.mu.Lock()
	r.closed = true
	r.mu.Unlock()
	return nil
}

func (r *recordingBackend) reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.kernels = nil
	r.groups = nil
	r.allocs = 0
	r.frees = 0
}

func (r *recordingBackend) dispatched() []gpucore.Kernel {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]gpucore.Kernel(nil), r.kernels...)
}

// checkReleased fails the test if any buffer allocated since reset is
// still live.
func (r *recordingBackend) checkReleased(t *testing.T) {
	t.Helper()
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.allocs != r.frees {
		t.Errorf("buffers: %d allocated, %d freed", r.allocs, r.frees)
	}
}

// newRecordingEngine returns an engine on a recording backend with the
// given partition size.
func newRecordingEngine(t *testing.T, partition int) (*Engine, *recordingBackend) {
	t.Helper()
	rb := newRecordingBackend(t)
	e, err := New(WithBackend(rb), WithPartitionSize(partition))
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	t.Cleanup(func() { _ = e.Close() })
	rb.reset()
	return e, rb
}

func newTestEngine(t *testing.T, opts ...Option) *Engine {
	t.Helper()
	e, err := New(append([]Option{WithWorkers(2)}, opts...)...)
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	t.Cleanup(func() { _ = e.Close() })
	return e
}

// =============================================================================
// Construction Tests
// =============================================================================

func TestNew_Defaults(t *testing.T) {
	e := newTestEngine(t)

	cfg := e.Config()
	if cfg.PartitionSize != DefaultPartitionSize {
		t.Errorf("PartitionSize = %d, want %d", cfg.PartitionSize, DefaultPartitionSize)
	}
	if cfg.Backend != host.Name {
		t.Errorf("Backend = %q, want %q", cfg.Backend, host.Name)
	}
	if e.Info().Name != host.Name {
		t.Errorf("Info().Name = %q, want %q", e.Info().Name, host.Name)
	}
}

func TestNew_BackendByName(t *testing.T) {
	e := newTestEngine(t, WithBackendName("host"), WithPartitionSize(64))
	if e.Config().PartitionSize != 64 {
		t.Errorf("PartitionSize = %d, want 64", e.Config().PartitionSize)
	}
}

func TestNew_InvalidPartitionSize(t *testing.T) {
	for _, p := range []int{-8, 0, 1, 3, 100, 2048} {
		_, err := New(WithPartitionSize(p))
		if !errors.Is(err, ErrConfig) {
			t.Errorf("New(WithPartitionSize(%d)) error = %v, want ErrConfig", p, err)
			continue
		}
		var ce *ConfigError
		if !errors.As(err, &ce) || ce.Field != "PartitionSize" {
			t.Errorf("New(WithPartitionSize(%d)) error = %#v, want PartitionSize ConfigError", p, err)
		}
	}
}

func TestNew_InvalidWorkers(t *testing.T) {
	if _, err := New(WithWorkers(-1)); !errors.Is(err, ErrConfig) {
		t.Errorf("New(WithWorkers(-1)) error = %v, want ErrConfig", err)
	}
}

func TestNew_UnknownBackend(t *testing.T) {
	_, err := New(WithBackendName("quantum"))
	if !errors.Is(err, ErrConfig) {
		t.Fatalf("error = %v, want ErrConfig", err)
	}
	if !strings.Contains(err.Error(), "quantum") {
		t.Errorf("error %q should name the backend", err)
	}
}

func TestNew_BuildFailure(t *testing.T) {
	rb := newRecordingBackend(t)
	rb.buildErr = &gpucore.BuildError{Label: "gpuscan-p256", Kernel: gpucore.KernelBlockScan, Log: "line 12: unknown identifier"}

	_, err := New(WithBackend(rb))
	if !errors.Is(err, ErrBackend) {
		t.Fatalf("error = %v, want ErrBackend", err)
	}
	var be *BackendError
	if !errors.As(err, &be) || be.Op != "build" || be.Kernel != "block_scan" {
		t.Errorf("BackendError = %+v, want build of block_scan", be)
	}
	var build *gpucore.BuildError
	if !errors.As(err, &build) || build.Log != "line 12: unknown identifier" {
		t.Errorf("BuildError log not reachable: %v", err)
	}
	if rb.closed {
		t.Error("injected backend must not be closed")
	}
}

func TestEngine_CloseInjectedBackend(t *testing.T) {
	rb := newRecordingBackend(t)
	e, err := New(WithBackend(rb))
	if err != nil {
		t.Fatal(err)
	}
	if err := e.Close(); err != nil {
		t.Fatalf("Close() error: %v", err)
	}
	if rb.closed {
		t.Error("Close() closed a backend the engine does not own")
	}
	if err := e.Close(); err != nil {
		t.Errorf("second Close() error: %v", err)
	}
}

// limitedBackend reports a small buffer limit.
type limitedBackend struct {
	*recordingBackend
	maxBytes uint64
}

func (l *limitedBackend) Caps() gpucore.Capabilities {
	caps := l.recordingBackend.Caps()
	caps.MaxBufferSize = l.maxBytes
	return caps
}

func TestEngine_BufferLimit(t *testing.T) {
	rb := newRecordingBackend(t)
	e, err := New(WithBackend(&limitedBackend{recordingBackend: rb, maxBytes: 64}), WithPartitionSize(4))
	if err != nil {
		t.Fatal(err)
	}
	defer e.Close()
	rb.reset()

	if _, err := e.Scan(make([]int32, 16)); err != nil {
		t.Errorf("Scan() at the limit error = %v", err)
	}
	rb.reset()

	_, err = e.Scan(make([]int32, 17))
	var ce *ConfigError
	if !errors.As(err, &ce) || ce.Field != "length" {
		t.Fatalf("Scan() past the limit error = %v, want length ConfigError", err)
	}
	if k := rb.dispatched(); len(k) != 0 || rb.allocs != 0 {
		t.Errorf("rejected input dispatched %v and allocated %d buffers", k, rb.allocs)
	}
}

func TestEngine_UseAfterClose(t *testing.T) {
	e, err := New(WithWorkers(1))
	if err != nil {
		t.Fatal(err)
	}
	_ = e.Close()

	if _, err := e.Scan([]int32{1}); !errors.Is(err, ErrClosed) {
		t.Errorf("Scan after Close error = %v, want ErrClosed", err)
	}
	if _, err := Compact(e, []int32{}, GreaterThan[int32](0)); !errors.Is(err, ErrClosed) {
		t.Errorf("Compact after Close error = %v, want ErrClosed", err)
	}
	if !errors.Is(ErrClosed, ErrConfig) {
		t.Error("ErrClosed should be a configuration error")
	}
}

// =============================================================================
// Error Type Tests
// =============================================================================

func TestErrorCategories(t *testing.T) {
	tests := []struct {
		err  error
		is   error
		not  []error
		text string
	}{
		{&BackendError{Op: "dispatch", Kernel: "scatter", Err: gpucore.ErrBufferRange}, ErrBackend, []error{ErrConfig, ErrSizeMismatch}, "dispatch scatter"},
		{&ConfigError{Field: "PartitionSize", Value: 3, Reason: "bad"}, ErrConfig, []error{ErrBackend, ErrSizeMismatch}, "PartitionSize 3"},
		{&SizeMismatchError{What: "mask", Want: 4, Got: 3}, ErrSizeMismatch, []error{ErrBackend, ErrConfig}, "mask has length 3, want 4"},
	}
	for _, tt := range tests {
		if !errors.Is(tt.err, tt.is) {
			t.Errorf("%T should match %v", tt.err, tt.is)
		}
		for _, other := range tt.not {
			if errors.Is(tt.err, other) {
				t.Errorf("%T should not match %v", tt.err, other)
			}
		}
		if !strings.Contains(tt.err.Error(), tt.text) {
			t.Errorf("%T.Error() = %q, want it to contain %q", tt.err, tt.err.Error(), tt.text)
		}
	}

	be := &BackendError{Op: "dispatch", Err: gpucore.ErrBufferRange}
	if !errors.Is(be, gpucore.ErrBufferRange) {
		t.Error("BackendError should unwrap to the backend cause")
	}
}

// =============================================================================
// Logger Tests
// =============================================================================

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestWithLogger(t *testing.T) {
	var buf syncBuffer
	l := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	e := newTestEngine(t, WithLogger(l), WithPartitionSize(4))
	if _, err := e.Scan([]int32{1, 2, 3, 4, 5}); err != nil {
		t.Fatal(err)
	}

	out := buf.String()
	for _, want := range []string{"engine ready", "program built", "gpuscan: dispatch", "kernel=block_scan", "kernel=add_carry", "host: dispatch"} {
		if !strings.Contains(out, want) {
			t.Errorf("log output missing %q", want)
		}
	}
}

// =============================================================================
// Concurrency Tests
// =============================================================================

func TestEngine_Concurrent(t *testing.T) {
	e := newTestEngine(t, WithPartitionSize(16))
	in := randomInts(1000, 10, 42)
	want := ReferenceCompact(in, GreaterThan[int32](5))

	var wg sync.WaitGroup
	errs := make(chan error, 8)
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			got, err := Compact(e, in, GreaterThan[int32](5))
			if err != nil {
				errs <- err
				return
			}
			if !equalSlices(got, want) {
				errs <- errors.New("concurrent Compact returned a wrong result")
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Error(err)
	}
}
