//go:build !nogpu

package wgpu

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gogpu/gpucontext"
	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
	_ "github.com/gogpu/wgpu/hal/vulkan"

	"github.com/gogpu/gpuscan/gpucore"
)

// Name is the registry name of the WebGPU backend.
const Name = "wgpu"

const (
	// fenceTimeout bounds every wait for submitted work.
	fenceTimeout = 5 * time.Second

	// maxInvocations caps the partition size regardless of what the
	// adapter reports; 256 is the WebGPU default limit.
	maxInvocations = 256

	// maxGroupsPerDimension is the WebGPU default for
	// maxComputeWorkgroupsPerDimension.
	maxGroupsPerDimension = 65535
)

func init() {
	gpucore.RegisterBackend(Name, func() (gpucore.Backend, error) {
		b, err := New()
		if err != nil {
			return nil, err
		}
		return b, nil
	})
}

// Backend runs kernels on a WebGPU device.
type Backend struct {
	mu sync.Mutex

	instance hal.Instance
	device   hal.Device
	queue    hal.Queue
	external bool // device is owned by a provider, not destroyed on Close

	adapter string
	limits  gputypes.Limits

	buffers  map[gpucore.BufferID]*buffer
	programs map[gpucore.ProgramID]*program
	nextID   uint64
	closed   bool
}

var (
	_ gpucore.Backend      = (*Backend)(nil)
	_ gpucore.LoggerSetter = (*Backend)(nil)
)

// New opens the first discrete or integrated Vulkan adapter, falling back
// to whatever adapter is enumerated first.
func New() (*Backend, error) {
	backend, ok := hal.GetBackend(gputypes.BackendVulkan)
	if !ok {
		return nil, fmt.Errorf("%w: vulkan backend not available", ErrNoGPU)
	}
	instance, err := backend.CreateInstance(&hal.InstanceDescriptor{Flags: 0})
	if err != nil {
		return nil, fmt.Errorf("wgpu: create instance: %w", err)
	}
	adapters := instance.EnumerateAdapters(nil)
	if len(adapters) == 0 {
		instance.Destroy()
		return nil, ErrNoGPU
	}
	var selected *hal.ExposedAdapter
	for i := range adapters {
		if adapters[i].Info.DeviceType == gputypes.DeviceTypeDiscreteGPU ||
			adapters[i].Info.DeviceType == gputypes.DeviceTypeIntegratedGPU {
			selected = &adapters[i]
			break
		}
	}
	if selected == nil {
		selected = &adapters[0]
	}

	limits := gputypes.DefaultLimits()
	openDev, err := selected.Adapter.Open(gputypes.Features(0), limits)
	if err != nil {
		instance.Destroy()
		return nil, fmt.Errorf("wgpu: open device: %w", err)
	}

	b := newBackend(openDev.Device, openDev.Queue, selected.Info.Name, limits)
	b.instance = instance
	slogger().Info("wgpu: device opened", "adapter", b.adapter)
	return b, nil
}

// NewFromProvider wraps a device owned by another component, such as a
// gogpu application window. The provider must also implement
// HalDevice() any and HalQueue() any returning hal.Device and hal.Queue.
// Close releases the backend's resources but leaves the device alive.
func NewFromProvider(provider gpucontext.DeviceProvider) (*Backend, error) {
	type halProvider interface {
		HalDevice() any
		HalQueue() any
	}
	hp, ok := provider.(halProvider)
	if !ok {
		return nil, ErrProvider
	}
	device, ok := hp.HalDevice().(hal.Device)
	if !ok || device == nil {
		return nil, fmt.Errorf("%w: HalDevice is not hal.Device", ErrProvider)
	}
	queue, ok := hp.HalQueue().(hal.Queue)
	if !ok || queue == nil {
		return nil, fmt.Errorf("%w: HalQueue is not hal.Queue", ErrProvider)
	}

	b := newBackend(device, queue, "shared device", gputypes.DefaultLimits())
	b.external = true
	slogger().Info("wgpu: using shared device")
	return b, nil
}

func newBackend(device hal.Device, queue hal.Queue, adapter string, limits gputypes.Limits) *Backend {
	return &Backend{
		device:   device,
		queue:    queue,
		adapter:  adapter,
		limits:   limits,
		buffers:  make(map[gpucore.BufferID]*buffer),
		programs: make(map[gpucore.ProgramID]*program),
	}
}

// SetLogger sets the logger for the wgpu package.
func (b *Backend) SetLogger(l *slog.Logger) {
	setLogger(l)
}

// Info describes the adapter.
func (b *Backend) Info() gpucore.BackendInfo {
	return gpucore.BackendInfo{
		Name:     Name,
		Device:   b.adapter,
		Hardware: true,
		Features: []string{"vulkan", "spirv"},
	}
}

// Caps reports the limits the device was opened with. MaxBufferSize is the
// smaller of the buffer and storage binding limits.
func (b *Backend) Caps() gpucore.Capabilities {
	inv := int(b.limits.MaxComputeWorkgroupSizeX)
	if inv <= 0 || inv > maxInvocations {
		inv = maxInvocations
	}
	groups := int(b.limits.MaxComputeWorkgroupsPerDimension)
	if groups <= 0 {
		groups = maxGroupsPerDimension
	}
	// Every buffer is bound as storage, so the binding limit caps it too.
	size := b.limits.MaxBufferSize
	if binding := b.limits.MaxStorageBufferBindingSize; binding > 0 && (size == 0 || binding < size) {
		size = binding
	}
	return gpucore.Capabilities{
		MaxWorkgroupInvocations:   inv,
		MaxWorkgroupsPerDimension: groups,
		MaxBufferSize:             size,
	}
}

// Close destroys every buffer and program, then the device unless it is
// shared. Close is idempotent.
func (b *Backend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil
	}
	b.closed = true

	for id, p := range b.programs {
		p.destroy(b.device)
		delete(b.programs, id)
	}
	for id, buf := range b.buffers {
		b.device.DestroyBuffer(buf.raw)
		delete(b.buffers, id)
	}
	if !b.external {
		b.device.Destroy()
		if b.instance != nil {
			b.instance.Destroy()
		}
	}
	b.device = nil
	b.queue = nil
	b.instance = nil
	slogger().Info("wgpu: backend closed")
	return nil
}

func (b *Backend) allocID() uint64 {
	b.nextID++
	return b.nextID
}

// submit ends the encoder, submits it and waits for completion.
func (b *Backend) submit(encoder hal.CommandEncoder) error {
	cmd, err := encoder.EndEncoding()
	if err != nil {
		return fmt.Errorf("wgpu: end encoding: %w", err)
	}
	defer b.device.FreeCommandBuffer(cmd)

	fence, err := b.device.CreateFence()
	if err != nil {
		return fmt.Errorf("wgpu: create fence: %w", err)
	}
	defer b.device.DestroyFence(fence)

	if err := b.queue.Submit([]hal.CommandBuffer{cmd}, fence, 1); err != nil {
		return fmt.Errorf("wgpu: submit: %w", err)
	}
	ok, err := b.device.Wait(fence, 1, fenceTimeout)
	if err != nil {
		return fmt.Errorf("wgpu: wait: %w", err)
	}
	if !ok {
		return ErrTimeout
	}
	return nil
}

func (b *Backend) encoder(label string) (hal.CommandEncoder, error) {
	enc, err := b.device.CreateCommandEncoder(&hal.CommandEncoderDescriptor{Label: label})
	if err != nil {
		return nil, fmt.Errorf("wgpu: create command encoder: %w", err)
	}
	if err := enc.BeginEncoding(label); err != nil {
		return nil, fmt.Errorf("wgpu: begin encoding: %w", err)
	}
	return enc, nil
}
