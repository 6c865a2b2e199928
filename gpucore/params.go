package gpucore

import "encoding/binary"

// ParamsSize is the size of the Params uniform in bytes.
const ParamsSize = 32

// Params is the uniform block shared by all kernels.
// Layout must match struct Params in the WGSL sources (8 x u32).
type Params struct {
	// N is the number of valid elements. Invocations at or past N load the
	// identity and write nothing.
	N uint32

	// GroupsX is the x extent of the dispatch grid. Backends fill it in;
	// kernels use it to linearise a 2D workgroup id.
	GroupsX uint32

	// NumGroups is the number of partitions. block_scan writes a group sum
	// only for groups below it.
	NumGroups uint32

	// Op is the filter comparison.
	Op CompareOp

	// Operand holds the filter threshold as raw element bits.
	Operand uint32

	// Kind tells the filter how to compare element bits.
	Kind ElementKind

	// Inclusive is non-zero for an inclusive block scan.
	Inclusive uint32

	padding uint32
}

// ToBytes encodes p in the little-endian uniform layout.
func (p Params) ToBytes() []byte {
	buf := make([]byte, ParamsSize)
	binary.LittleEndian.PutUint32(buf[0:4], p.N)
	binary.LittleEndian.PutUint32(buf[4:8], p.GroupsX)
	binary.LittleEndian.PutUint32(buf[8:12], p.NumGroups)
	binary.LittleEndian.PutUint32(buf[12:16], uint32(p.Op))
	binary.LittleEndian.PutUint32(buf[16:20], p.Operand)
	binary.LittleEndian.PutUint32(buf[20:24], uint32(p.Kind))
	binary.LittleEndian.PutUint32(buf[24:28], p.Inclusive)
	binary.LittleEndian.PutUint32(buf[28:32], p.padding)
	return buf
}

// DispatchDesc describes one kernel dispatch.
type DispatchDesc struct {
	// Program is the built program holding the kernel.
	Program ProgramID

	// Kernel selects the entry point.
	Kernel Kernel

	// Buffers are bound at bindings 1..len(Buffers) in order.
	Buffers []BufferID

	// Params is uploaded as the uniform at binding 0.
	Params Params

	// Groups is the number of workgroups to run.
	Groups int

	// GroupSize is the workgroup size the program was built with.
	GroupSize int
}

// Grid splits a linear group count into an x/y grid with x bounded by
// maxPerDim. The grid may hold a few more groups than requested; kernels
// discard them through the N bound.
func Grid(groups, maxPerDim int) (x, y int) {
	if groups <= 0 {
		return 0, 0
	}
	if maxPerDim <= 0 || groups <= maxPerDim {
		return groups, 1
	}
	y = (groups + maxPerDim - 1) / maxPerDim
	x = (groups + y - 1) / y
	return x, y
}

// GroupsFor returns the number of partitions of size groupSize needed to
// cover n elements.
func GroupsFor(n, groupSize int) int {
	if n <= 0 || groupSize <= 0 {
		return 0
	}
	return (n + groupSize - 1) / groupSize
}

// ModuleSource is the WGSL source of one kernel.
type ModuleSource struct {
	Kernel        Kernel
	WGSL          string
	EntryPoint    string
	WorkgroupSize int
}

// ProgramSource is the complete set of kernels built as one program.
type ProgramSource struct {
	Label   string
	Modules []ModuleSource
}

// Module returns the source for kernel k, or nil.
func (s *ProgramSource) Module(k Kernel) *ModuleSource {
	for i := range s.Modules {
		if s.Modules[i].Kernel == k {
			return &s.Modules[i]
		}
	}
	return nil
}
