package gpuscan

import (
	"errors"
	"fmt"
)

// Error categories. Every error returned by an Engine matches exactly one of
// them through errors.Is.
var (
	// ErrBackend reports a device failure: allocation, transfer, program
	// build or dispatch.
	ErrBackend = errors.New("gpuscan: backend error")

	// ErrConfig reports invalid configuration or arguments detected before
	// any work is submitted.
	ErrConfig = errors.New("gpuscan: invalid configuration")

	// ErrSizeMismatch reports sequences whose lengths disagree.
	ErrSizeMismatch = errors.New("gpuscan: size mismatch")

	// ErrClosed is returned by operations on a closed Engine.
	ErrClosed = fmt.Errorf("%w: engine closed", ErrConfig)
)

// BackendError wraps a failure reported by the device backend.
// The backend cause, such as a *gpucore.BuildError with its diagnostic
// log, is reachable through errors.As.
type BackendError struct {
	// Op is the engine step that failed: "open", "build", "allocate",
	// "upload", "download" or "dispatch".
	Op string

	// Kernel names the kernel for build and dispatch failures.
	Kernel string

	Err error
}

func (e *BackendError) Error() string {
	if e.Kernel != "" {
		return fmt.Sprintf("gpuscan: %s %s: %v", e.Op, e.Kernel, e.Err)
	}
	return fmt.Sprintf("gpuscan: %s: %v", e.Op, e.Err)
}

func (e *BackendError) Unwrap() error { return e.Err }

// Is matches ErrBackend.
func (e *BackendError) Is(target error) bool { return target == ErrBackend }

// ConfigError reports an invalid configuration value or argument.
type ConfigError struct {
	Field  string
	Value  any
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("gpuscan: invalid %s %v: %s", e.Field, e.Value, e.Reason)
}

// Is matches ErrConfig.
func (e *ConfigError) Is(target error) bool { return target == ErrConfig }

// SizeMismatchError reports two sequences that must have equal length.
type SizeMismatchError struct {
	What string
	Want int
	Got  int
}

func (e *SizeMismatchError) Error() string {
	return fmt.Sprintf("gpuscan: %s has length %d, want %d", e.What, e.Got, e.Want)
}

// Is matches ErrSizeMismatch.
func (e *SizeMismatchError) Is(target error) bool { return target == ErrSizeMismatch }

func backendErr(op, kernel string, err error) error {
	return &BackendError{Op: op, Kernel: kernel, Err: err}
}
