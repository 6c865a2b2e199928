// Package host implements gpucore.Backend on the CPU.
//
// Kernels mirror the WGSL sources one to one: every workgroup owns a
// scratch array, invocations of a group execute in phases separated by
// barriers, and workgroups of a dispatch are spread over a worker pool.
// Dispatch returns after every group has finished, which gives the same
// global ordering a device queue gives between submissions.
package host

import (
	"fmt"
	"log/slog"
	"math"
	"runtime"
	"sync"
	"sync/atomic"

	"github.com/gogpu/gpuscan/gpucore"
	"github.com/gogpu/gpuscan/internal/parallel"
)

// Name is the registry name of the host backend.
const Name = "host"

const (
	maxWorkgroupInvocations = 1024
	maxBufferWords          = math.MaxInt32
)

func init() {
	gpucore.RegisterBackend(Name, func() (gpucore.Backend, error) {
		return New(), nil
	})
}

// Option configures a host backend.
type Option func(*options)

type options struct {
	workers int
	logger  *slog.Logger
}

// WithWorkers sets the number of goroutines running workgroups.
// Zero or negative uses GOMAXPROCS.
func WithWorkers(n int) Option {
	return func(o *options) {
		o.workers = n
	}
}

// WithLogger sets the backend logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		o.logger = l
	}
}

// Backend runs kernels on the CPU.
type Backend struct {
	mu       sync.RWMutex
	buffers  map[gpucore.BufferID][]uint32
	programs map[gpucore.ProgramID]*program
	closed   bool

	nextID atomic.Uint64
	pool   *parallel.WorkerPool
	logger atomic.Pointer[slog.Logger]
}

var _ gpucore.Backend = (*Backend)(nil)

// New creates a host backend.
func New(opts ...Option) *Backend {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	b := &Backend{
		buffers:  make(map[gpucore.BufferID][]uint32),
		programs: make(map[gpucore.ProgramID]*program),
		pool:     parallel.NewWorkerPool(o.workers),
	}
	b.SetLogger(o.logger)
	return b
}

// SetLogger sets the logger. Nil disables logging.
func (b *Backend) SetLogger(l *slog.Logger) {
	if l == nil {
		l = slog.New(nopHandler{})
	}
	b.logger.Store(l)
}

func (b *Backend) log() *slog.Logger {
	return b.logger.Load()
}

func (b *Backend) newID() uint64 {
	return b.nextID.Add(1)
}

// Allocate creates a zeroed buffer of the given number of words.
func (b *Backend) Allocate(words int) (gpucore.BufferID, error) {
	if words <= 0 || words > maxBufferWords {
		return gpucore.InvalidID, fmt.Errorf("host: allocate %d words: %w", words, gpucore.ErrBufferRange)
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return gpucore.InvalidID, gpucore.ErrClosed
	}
	id := gpucore.BufferID(b.newID())
	b.buffers[id] = make([]uint32, words)
	return id, nil
}

// Free releases a buffer.
func (b *Backend) Free(id gpucore.BufferID) {
	b.mu.Lock()
	delete(b.buffers, id)
	b.mu.Unlock()
}

// Upload copies data to the start of the buffer.
func (b *Backend) Upload(id gpucore.BufferID, data []uint32) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	buf, err := b.lookupLocked(id)
	if err != nil {
		return err
	}
	if len(data) > len(buf) {
		return fmt.Errorf("host: upload %d words into %d: %w", len(data), len(buf), gpucore.ErrBufferRange)
	}
	copy(buf, data)
	return nil
}

// Download copies count words starting at offset.
func (b *Backend) Download(id gpucore.BufferID, offset, count int) ([]uint32, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	buf, err := b.lookupLocked(id)
	if err != nil {
		return nil, err
	}
	if offset < 0 || count < 0 || offset+count > len(buf) {
		return nil, fmt.Errorf("host: download [%d:%d] of %d words: %w", offset, offset+count, len(buf), gpucore.ErrBufferRange)
	}
	out := make([]uint32, count)
	copy(out, buf[offset:offset+count])
	return out, nil
}

func (b *Backend) lookupLocked(id gpucore.BufferID) ([]uint32, error) {
	if b.closed {
		return nil, gpucore.ErrClosed
	}
	buf, ok := b.buffers[id]
	if !ok {
		return nil, fmt.Errorf("host: buffer %d: %w", id, gpucore.ErrInvalidBuffer)
	}
	return buf, nil
}

// Info describes the host backend.
func (b *Backend) Info() gpucore.BackendInfo {
	return gpucore.BackendInfo{
		Name:     Name,
		Device:   fmt.Sprintf("%s/%s, %d workers", runtime.GOOS, runtime.GOARCH, b.pool.Workers()),
		Hardware: false,
		Features: cpuFeatures(),
	}
}

// Caps returns the host limits.
func (b *Backend) Caps() gpucore.Capabilities {
	return gpucore.Capabilities{
		MaxWorkgroupInvocations:   maxWorkgroupInvocations,
		MaxWorkgroupsPerDimension: math.MaxInt32,
		MaxBufferSize:             uint64(maxBufferWords) * 4,
	}
}

// Close releases all buffers and programs and stops the workers.
func (b *Backend) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	b.buffers = nil
	b.programs = nil
	b.mu.Unlock()

	b.pool.Close()
	return nil
}
