// Package gpuscan implements data-parallel prefix sums and stream compaction
// on compute devices.
//
// # Overview
//
// An [Engine] runs three kernels over sequences of 32-bit elements:
//
//   - Filter: evaluate a [Predicate] per element, producing a 0/1 [Mask]
//   - Scan: work-efficient (Blelloch) prefix sum, per partition in
//     workgroup memory, extended to any length by scanning the partition
//     totals recursively and adding them back as carries
//   - Scatter: move every selected element to its scanned address
//
// [Compact] chains the three, keeping intermediate buffers on the device:
//
//	e, err := gpuscan.New()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer e.Close()
//
//	out, err := gpuscan.Compact(e, []int32{3, 1, 7, 0, 4, 1, 6, 3}, gpuscan.GreaterThan[int32](5))
//	// out == [7 6]
//
// # Backends
//
// Kernels run on a [gpucore.Backend]. The host backend (package
// backend/host) executes workgroups on goroutines and is always available.
// The WebGPU backend registers itself as "wgpu" when imported:
//
//	import _ "github.com/gogpu/gpuscan/backend/wgpu"
//
//	e, err := gpuscan.New(gpuscan.WithBackendName("wgpu"))
//
// # Partition size
//
// The partition size is the workgroup size of every kernel and the number
// of elements one workgroup scans. It must be a power of two no larger than
// the backend's invocation limit. A scan of n elements takes
// ceil(log_P(n)) levels.
//
// # Errors
//
// Errors match one of [ErrBackend], [ErrConfig] or [ErrSizeMismatch] via
// errors.Is. The typed errors [BackendError], [ConfigError] and
// [SizeMismatchError] carry the details; a kernel build failure exposes the
// compiler log through a wrapped *gpucore.BuildError.
//
// # Logging
//
// gpuscan is silent by default. Use [SetLogger] or [WithLogger] to receive
// structured log/slog records.
package gpuscan
