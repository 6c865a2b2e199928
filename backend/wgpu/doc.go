// Package wgpu implements gpucore.Backend on a WebGPU device through
// github.com/gogpu/wgpu/hal.
//
// Importing the package registers the backend as "wgpu":
//
//	import _ "github.com/gogpu/gpuscan/backend/wgpu"
//
//	e, err := gpuscan.New(gpuscan.WithBackendName("wgpu"))
//
// Programs are compiled from WGSL to SPIR-V with naga. Every kernel gets its
// own bind group layout: binding 0 is the Params uniform, the remaining
// bindings are storage buffers in the order the kernel declares them.
//
// Each Dispatch, Upload and Download is a separate submission followed by a
// fence wait, so the caller observes a completed device state on return.
//
// Build with the nogpu tag to compile the package without GPU support; New
// then returns ErrUnavailable.
package wgpu
