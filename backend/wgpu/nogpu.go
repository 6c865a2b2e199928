//go:build nogpu

package wgpu

// Name is the registry name of the WebGPU backend.
const Name = "wgpu"

// Backend is unavailable in builds without GPU support.
type Backend struct{}

// New always fails in builds without GPU support.
func New() (*Backend, error) {
	return nil, ErrUnavailable
}
