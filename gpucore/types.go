package gpucore

import "fmt"

// Resource IDs
//
// These opaque IDs represent device resources. Each backend maintains a
// mapping between IDs and its own buffers and pipelines.
// IDs are uint64 to accommodate various backend handle sizes.

// BufferID is an opaque handle to a device buffer of 32-bit words.
type BufferID uint64

// ProgramID is an opaque handle to a built kernel program.
type ProgramID uint64

// InvalidID is the zero value, representing an invalid/null resource.
const InvalidID = 0

// Kernel identifies one compute kernel of the scan/compaction program.
type Kernel int

// Kernels of the program. Every kernel binds the Params uniform at
// binding 0 followed by [Kernel.Bindings] storage buffers.
const (
	// KernelFilter evaluates a predicate per element and writes a 0/1 mask.
	// Bindings: 1 src (read), 2 mask (read_write).
	KernelFilter Kernel = iota

	// KernelBlockScan scans each partition in workgroup memory and writes
	// the partition total to the group sums buffer.
	// Bindings: 1 src (read), 2 dst (read_write), 3 sums (read_write).
	KernelBlockScan

	// KernelAddCarry adds the scanned total of all preceding partitions to
	// every element of a partition.
	// Bindings: 1 data (read_write), 2 carries (read).
	KernelAddCarry

	// KernelScatter writes selected elements to their compacted positions.
	// Bindings: 1 src (read), 2 addr (read), 3 mask (read), 4 dst (read_write).
	KernelScatter

	// KernelCount is the number of kernels.
	KernelCount
)

var kernelNames = [...]string{"filter", "block_scan", "add_carry", "scatter"}

// String returns the kernel name as used in labels and logs.
func (k Kernel) String() string {
	if k >= 0 && k < KernelCount {
		return kernelNames[k]
	}
	return fmt.Sprintf("Kernel(%d)", int(k))
}

// Valid reports whether k names a known kernel.
func (k Kernel) Valid() bool {
	return k >= 0 && k < KernelCount
}

// Bindings returns the number of storage buffers bound after the uniform.
func (k Kernel) Bindings() int {
	switch k {
	case KernelFilter, KernelAddCarry:
		return 2
	case KernelBlockScan:
		return 3
	case KernelScatter:
		return 4
	default:
		return 0
	}
}

// ElementKind tells kernels how to interpret a 32-bit element word.
type ElementKind uint32

// Element kinds.
const (
	KindInt32 ElementKind = iota
	KindUint32
	KindFloat32
)

// String returns the kind name.
func (k ElementKind) String() string {
	switch k {
	case KindInt32:
		return "int32"
	case KindUint32:
		return "uint32"
	case KindFloat32:
		return "float32"
	default:
		return fmt.Sprintf("ElementKind(%d)", uint32(k))
	}
}

// CompareOp is the comparison applied by the filter kernel, element on the
// left and the operand on the right.
type CompareOp uint32

// Comparison operators.
const (
	OpGreaterThan CompareOp = iota
	OpGreaterOrEqual
	OpLessThan
	OpLessOrEqual
	OpEqual
	OpNotEqual

	opCount
)

var opNames = [...]string{"gt", "ge", "lt", "le", "eq", "ne"}

// String returns the short operator name accepted by [ParseCompareOp].
func (op CompareOp) String() string {
	if op < opCount {
		return opNames[op]
	}
	return fmt.Sprintf("CompareOp(%d)", uint32(op))
}

// Valid reports whether op is a known operator.
func (op CompareOp) Valid() bool {
	return op < opCount
}

// ParseCompareOp parses a short operator name ("gt", "ge", "lt", "le",
// "eq", "ne") or its symbol (">", ">=", "<", "<=", "==", "!=").
func ParseCompareOp(s string) (CompareOp, error) {
	switch s {
	case "gt", ">":
		return OpGreaterThan, nil
	case "ge", ">=":
		return OpGreaterOrEqual, nil
	case "lt", "<":
		return OpLessThan, nil
	case "le", "<=":
		return OpLessOrEqual, nil
	case "eq", "==":
		return OpEqual, nil
	case "ne", "!=":
		return OpNotEqual, nil
	}
	return 0, fmt.Errorf("gpucore: unknown compare op %q", s)
}

// Capabilities describes the limits a backend can honour.
type Capabilities struct {
	// MaxWorkgroupInvocations bounds the partition size.
	MaxWorkgroupInvocations int

	// MaxWorkgroupsPerDimension bounds the groups of a single grid axis.
	// Larger dispatches are split into an x/y grid.
	MaxWorkgroupsPerDimension int

	// MaxBufferSize is the largest buffer in bytes.
	MaxBufferSize uint64
}

// BackendInfo describes a backend for logs and reports.
type BackendInfo struct {
	// Name is the registry name ("host", "wgpu").
	Name string

	// Device is a human-readable device description.
	Device string

	// Hardware reports whether kernels run on a GPU.
	Hardware bool

	// Features lists backend-specific capability tags.
	Features []string
}

// String returns "name (device)".
func (i BackendInfo) String() string {
	if i.Device == "" {
		return i.Name
	}
	return i.Name + " (" + i.Device + ")"
}
