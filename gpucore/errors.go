package gpucore

import (
	"errors"
	"fmt"
)

var (
	// ErrUnknownBackend is returned by OpenBackend for unregistered names.
	ErrUnknownBackend = errors.New("gpucore: unknown backend")

	// ErrInvalidBuffer is returned for unknown or freed buffer IDs.
	ErrInvalidBuffer = errors.New("gpucore: invalid buffer")

	// ErrInvalidProgram is returned for unknown programs or kernels the
	// program does not contain.
	ErrInvalidProgram = errors.New("gpucore: invalid program")

	// ErrBufferRange is returned when a transfer or kernel access falls
	// outside a buffer.
	ErrBufferRange = errors.New("gpucore: buffer range out of bounds")

	// ErrInvalidDispatch is returned for malformed dispatch descriptors.
	ErrInvalidDispatch = errors.New("gpucore: invalid dispatch")

	// ErrClosed is returned by a backend after Close.
	ErrClosed = errors.New("gpucore: backend closed")

	// ErrBuild is wrapped by every BuildError.
	ErrBuild = errors.New("gpucore: program build failed")
)

// BuildError reports a kernel that failed to build. Log holds the
// diagnostic output of the compiler or validator.
type BuildError struct {
	Label  string
	Kernel Kernel
	Log    string
	Err    error
}

func (e *BuildError) Error() string {
	msg := fmt.Sprintf("gpucore: build %s/%s failed", e.Label, e.Kernel)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	if e.Log != "" {
		msg += "\n" + e.Log
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *BuildError) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return ErrBuild
}

// Is matches ErrBuild regardless of the underlying cause.
func (e *BuildError) Is(target error) bool {
	return target == ErrBuild
}
