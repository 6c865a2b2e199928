package host

import (
	"cmp"
	"fmt"
	"math"

	"github.com/gogpu/gpuscan/gpucore"
)

// kernelFunc runs one workgroup of a kernel over the bound buffers.
type kernelFunc func(wg *workgroup, p *gpucore.Params, bufs [][]uint32) error

var kernels = [gpucore.KernelCount]kernelFunc{
	gpucore.KernelFilter:    filterKernel,
	gpucore.KernelBlockScan: blockScanKernel,
	gpucore.KernelAddCarry:  addCarryKernel,
	gpucore.KernelScatter:   scatterKernel,
}

// minLengths returns the minimum word count of each binding for a dispatch.
// Zero means the binding is bounds-checked by the kernel itself.
func minLengths(desc *gpucore.DispatchDesc) []int {
	n := int(desc.Params.N)
	switch desc.Kernel {
	case gpucore.KernelFilter:
		return []int{n, n}
	case gpucore.KernelBlockScan:
		return []int{n, n, min(int(desc.Params.NumGroups), desc.Groups)}
	case gpucore.KernelAddCarry:
		return []int{n, min(gpucore.GroupsFor(n, desc.GroupSize), desc.Groups)}
	case gpucore.KernelScatter:
		return []int{n, n, n, 0}
	}
	return nil
}

func filterKernel(wg *workgroup, p *gpucore.Params, bufs [][]uint32) error {
	src, mask := bufs[0], bufs[1]
	keep, err := comparator(p.Kind, p.Op, p.Operand)
	if err != nil {
		return err
	}
	n := int(p.N)
	wg.phase(func(t int) {
		i := wg.global(t)
		if i >= n {
			return
		}
		if keep(src[i]) {
			mask[i] = 1
		} else {
			mask[i] = 0
		}
	})
	return nil
}

func blockScanKernel(wg *workgroup, p *gpucore.Params, bufs [][]uint32) error {
	src, dst, sums := bufs[0], bufs[1], bufs[2]
	n := int(p.N)

	wg.phase(func(t int) {
		var v int32
		if i := wg.global(t); i < n {
			v = int32(src[i])
		}
		wg.regs[t] = v
		wg.scratch[t] = v
	})

	total := wg.scanScratch()
	if wg.id < int(p.NumGroups) {
		sums[wg.id] = uint32(total)
	}

	inclusive := p.Inclusive != 0
	wg.phase(func(t int) {
		i := wg.global(t)
		if i >= n {
			return
		}
		v := wg.scratch[t]
		if inclusive {
			v += wg.regs[t]
		}
		dst[i] = uint32(v)
	})
	return nil
}

func addCarryKernel(wg *workgroup, p *gpucore.Params, bufs [][]uint32) error {
	data, carries := bufs[0], bufs[1]
	n := int(p.N)
	if wg.global(0) >= n {
		return nil
	}
	carry := int32(carries[wg.id])
	wg.phase(func(t int) {
		if i := wg.global(t); i < n {
			data[i] = uint32(int32(data[i]) + carry)
		}
	})
	return nil
}

func scatterKernel(wg *workgroup, p *gpucore.Params, bufs [][]uint32) error {
	src, addr, mask, dst := bufs[0], bufs[1], bufs[2], bufs[3]
	n := int(p.N)
	var fault error
	wg.phase(func(t int) {
		i := wg.global(t)
		if i >= n || fault != nil || int32(mask[i]) != 1 {
			return
		}
		a := int32(addr[i])
		if a < 0 || int(a) >= len(dst) {
			fault = fmt.Errorf("host: scatter element %d to %d, destination holds %d: %w",
				i, a, len(dst), gpucore.ErrBufferRange)
			return
		}
		dst[a] = src[i]
	})
	return fault
}

// comparator returns the filter predicate for raw element bits.
func comparator(kind gpucore.ElementKind, op gpucore.CompareOp, operand uint32) (func(uint32) bool, error) {
	if !op.Valid() {
		return nil, fmt.Errorf("host: compare op %v: %w", op, gpucore.ErrInvalidDispatch)
	}
	switch kind {
	case gpucore.KindInt32:
		v := int32(operand)
		return func(x uint32) bool { return compare(int32(x), v, op) }, nil
	case gpucore.KindUint32:
		return func(x uint32) bool { return compare(x, operand, op) }, nil
	case gpucore.KindFloat32:
		v := math.Float32frombits(operand)
		return func(x uint32) bool { return compare(math.Float32frombits(x), v, op) }, nil
	}
	return nil, fmt.Errorf("host: element kind %v: %w", kind, gpucore.ErrInvalidDispatch)
}

// compare applies op with IEEE semantics for floats: NaN is unordered and
// unequal to everything.
func compare[T cmp.Ordered](a, b T, op gpucore.CompareOp) bool {
	switch op {
	case gpucore.OpGreaterThan:
		return a > b
	case gpucore.OpGreaterOrEqual:
		return a >= b
	case gpucore.OpLessThan:
		return a < b
	case gpucore.OpLessOrEqual:
		return a <= b
	case gpucore.OpEqual:
		return a == b
	default:
		return a != b
	}
}
