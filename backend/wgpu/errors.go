package wgpu

import "errors"

var (
	// ErrNoGPU is returned when no usable adapter is found.
	ErrNoGPU = errors.New("wgpu: no GPU adapter available")

	// ErrUnavailable is returned by New in builds without GPU support.
	ErrUnavailable = errors.New("wgpu: backend not compiled in (nogpu build)")

	// ErrTimeout is returned when the device does not signal a fence in time.
	ErrTimeout = errors.New("wgpu: timed out waiting for device")

	// ErrProvider is returned when a device provider does not expose HAL objects.
	ErrProvider = errors.New("wgpu: provider does not expose HAL device and queue")
)
