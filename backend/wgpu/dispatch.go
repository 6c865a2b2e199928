//go:build !nogpu

package wgpu

import (
	"fmt"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/gpuscan/gpucore"
)

// Dispatch runs one kernel and waits for it. Group counts above the
// per-dimension limit are folded into a two-dimensional grid; kernels
// recover the linear group index from Params.GroupsX.
func (b *Backend) Dispatch(desc *gpucore.DispatchDesc) error {
	if desc == nil || !desc.Kernel.Valid() {
		return fmt.Errorf("%w: invalid kernel", gpucore.ErrInvalidDispatch)
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return gpucore.ErrClosed
	}

	prog, ok := b.programs[desc.Program]
	if !ok {
		return fmt.Errorf("%w: %d", gpucore.ErrInvalidProgram, desc.Program)
	}
	pl := prog.pipelines[desc.Kernel]
	if pl == nil {
		return fmt.Errorf("%w: program %s has no %s kernel", gpucore.ErrInvalidDispatch, prog.label, desc.Kernel)
	}
	if desc.GroupSize != pl.groupSize {
		return fmt.Errorf("%w: group size %d, %s built for %d", gpucore.ErrInvalidDispatch, desc.GroupSize, desc.Kernel, pl.groupSize)
	}
	if len(desc.Buffers) != desc.Kernel.Bindings() {
		return fmt.Errorf("%w: %s takes %d buffers, got %d", gpucore.ErrInvalidDispatch, desc.Kernel, desc.Kernel.Bindings(), len(desc.Buffers))
	}
	if desc.Groups <= 0 {
		return nil
	}

	bufs := make([]*buffer, len(desc.Buffers))
	for i, id := range desc.Buffers {
		buf, err := b.lookupLocked(id)
		if err != nil {
			return err
		}
		bufs[i] = buf
	}

	x, y := gpucore.Grid(desc.Groups, b.Caps().MaxWorkgroupsPerDimension)
	params := desc.Params
	params.GroupsX = uint32(x) //nolint:gosec // bounded by the dimension limit

	uniform, err := b.device.CreateBuffer(&hal.BufferDescriptor{
		Label: "gpuscan_params",
		Size:  gpucore.ParamsSize,
		Usage: gputypes.BufferUsageUniform | gputypes.BufferUsageCopyDst,
	})
	if err != nil {
		return fmt.Errorf("wgpu: create uniform buffer: %w", err)
	}
	defer b.device.DestroyBuffer(uniform)
	b.queue.WriteBuffer(uniform, 0, params.ToBytes())

	entries := []gputypes.BindGroupEntry{
		{Binding: 0, Resource: gputypes.BufferBinding{Buffer: uniform.NativeHandle(), Offset: 0, Size: gpucore.ParamsSize}},
	}
	for i, buf := range bufs {
		entries = append(entries, gputypes.BindGroupEntry{
			Binding:  uint32(i + 1), //nolint:gosec // at most four bindings
			Resource: gputypes.BufferBinding{Buffer: buf.raw.NativeHandle(), Offset: 0, Size: buf.size()},
		})
	}
	bg, err := b.device.CreateBindGroup(&hal.BindGroupDescriptor{
		Label:   "gpuscan_" + desc.Kernel.String(),
		Layout:  pl.bindLayout,
		Entries: entries,
	})
	if err != nil {
		return fmt.Errorf("wgpu: create bind group: %w", err)
	}
	defer b.device.DestroyBindGroup(bg)

	enc, err := b.encoder("gpuscan_dispatch")
	if err != nil {
		return err
	}
	pass := enc.BeginComputePass(&hal.ComputePassDescriptor{Label: desc.Kernel.String()})
	pass.SetPipeline(pl.pipeline)
	pass.SetBindGroup(0, bg, nil)
	pass.Dispatch(uint32(x), uint32(y), 1) //nolint:gosec // bounded by the dimension limit
	pass.End()

	slogger().Debug("wgpu: dispatch", "kernel", desc.Kernel.String(), "groups", desc.Groups, "grid_x", x, "grid_y", y)
	return b.submit(enc)
}
