// Package gpucore defines the device abstraction used by the scan and
// compaction engine.
//
// A [Backend] owns word buffers, builds a program of four compute kernels
// ([KernelFilter], [KernelBlockScan], [KernelAddCarry], [KernelScatter]) and
// runs blocking dispatches. Resources are addressed through opaque IDs so
// the engine never touches backend handles directly.
//
// # Architecture
//
//	               +-----------------+
//	               |     gpuscan     |
//	               | (Engine, plans) |
//	               +--------+--------+
//	                        |
//	               +--------v--------+
//	               |     gpucore     |
//	               |    (Backend)    |
//	               +--------+--------+
//	                        |
//	         +--------------+--------------+
//	         |                             |
//	+--------v--------+          +--------v--------+
//	|  backend/host   |          |  backend/wgpu   |
//	| (Go workgroups) |          |  (hal.Device)   |
//	+-----------------+          +--------+--------+
//	                                      |
//	                             +--------v--------+
//	                             |   gogpu/wgpu    |
//	                             +-----------------+
//
// # Kernel ABI
//
// Each kernel is a separate WGSL module with entry point "main". Binding 0
// is the [Params] uniform; storage buffers follow in the order listed on
// each Kernel constant. Large dispatches are laid out as a 2D grid (see
// [Grid]) and kernels linearise the workgroup id as y*GroupsX + x.
//
// # Registry
//
// Backends register a [Factory] under a name with [RegisterBackend];
// [OpenBackend] creates a new instance. The registry holds constructors
// only, never live devices.
package gpucore
