package host

import (
	"fmt"

	"github.com/gogpu/gpuscan/gpucore"
)

// groupsPerTask bounds how many workgroups one pool task runs back to back.
const groupsPerTask = 16

// Dispatch runs desc.Groups workgroups of the kernel and waits for all of
// them. Buffers stay locked for reading for the duration, so transfers on
// other goroutines wait for the dispatch to finish.
func (b *Backend) Dispatch(desc *gpucore.DispatchDesc) error {
	if desc == nil || !desc.Kernel.Valid() {
		return fmt.Errorf("host: dispatch: %w", gpucore.ErrInvalidDispatch)
	}
	if desc.Groups <= 0 {
		return nil
	}

	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return gpucore.ErrClosed
	}

	prog, ok := b.programs[desc.Program]
	if !ok {
		return fmt.Errorf("host: program %d: %w", desc.Program, gpucore.ErrInvalidProgram)
	}
	size, ok := prog.groupSizes[desc.Kernel]
	if !ok {
		return fmt.Errorf("host: program %q has no %v kernel: %w", prog.label, desc.Kernel, gpucore.ErrInvalidProgram)
	}
	if desc.GroupSize != 0 && desc.GroupSize != size {
		return fmt.Errorf("host: %v built for workgroup size %d, dispatched with %d: %w",
			desc.Kernel, size, desc.GroupSize, gpucore.ErrInvalidDispatch)
	}
	if len(desc.Buffers) != desc.Kernel.Bindings() {
		return fmt.Errorf("host: %v expects %d buffers, got %d: %w",
			desc.Kernel, desc.Kernel.Bindings(), len(desc.Buffers), gpucore.ErrInvalidDispatch)
	}

	sized := *desc
	sized.GroupSize = size
	need := minLengths(&sized)
	bufs := make([][]uint32, len(desc.Buffers))
	for i, id := range desc.Buffers {
		buf, ok := b.buffers[id]
		if !ok {
			return fmt.Errorf("host: %v binding %d: buffer %d: %w", desc.Kernel, i+1, id, gpucore.ErrInvalidBuffer)
		}
		if len(buf) < need[i] {
			return fmt.Errorf("host: %v binding %d holds %d words, needs %d: %w",
				desc.Kernel, i+1, len(buf), need[i], gpucore.ErrBufferRange)
		}
		bufs[i] = buf
	}

	params := desc.Params
	params.GroupsX = uint32(desc.Groups)
	run := kernels[desc.Kernel]

	b.log().Debug("host: dispatch",
		"kernel", desc.Kernel.String(),
		"groups", desc.Groups,
		"group_size", size,
		"n", params.N)

	return b.pool.ForRange(desc.Groups, groupsPerTask, func(lo, hi int) error {
		wg := newWorkgroup(size)
		for g := lo; g < hi; g++ {
			wg.reset(g)
			if err := run(wg, &params, bufs); err != nil {
				return err
			}
		}
		return nil
	})
}
