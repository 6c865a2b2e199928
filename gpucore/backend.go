package gpucore

import (
	"fmt"
	"log/slog"
	"sort"
	"sync"
)

// Backend abstracts a compute device: word buffers, program builds and
// blocking kernel dispatches.
//
// Every method blocks until the device has finished the requested work, so
// a dispatch observes all writes of the dispatches issued before it.
// Implementations must be safe for concurrent use.
type Backend interface {
	// === Buffer Management ===

	// Allocate creates a buffer of the given number of 32-bit words.
	// Contents are unspecified until written.
	Allocate(words int) (BufferID, error)

	// Free releases a buffer. Unknown IDs are ignored.
	Free(id BufferID)

	// Upload writes data to the start of a buffer.
	Upload(id BufferID, data []uint32) error

	// Download reads count words starting at word offset.
	Download(id BufferID, offset, count int) ([]uint32, error)

	// === Programs ===

	// BuildProgram compiles every module of src. A module that fails to
	// build yields a *BuildError carrying the diagnostic log.
	BuildProgram(src *ProgramSource) (ProgramID, error)

	// ReleaseProgram releases a built program. Unknown IDs are ignored.
	ReleaseProgram(id ProgramID)

	// === Execution ===

	// Dispatch runs one kernel over desc.Groups workgroups and waits for
	// completion.
	Dispatch(desc *DispatchDesc) error

	// === Capabilities ===

	// Info describes the backend.
	Info() BackendInfo

	// Caps returns the backend limits.
	Caps() Capabilities

	// Close releases all resources. Further calls fail with ErrClosed.
	Close() error
}

// LoggerSetter is implemented by backends that accept a logger.
type LoggerSetter interface {
	SetLogger(l *slog.Logger)
}

// Factory opens a new backend instance.
type Factory func() (Backend, error)

var (
	registryMu sync.RWMutex
	registry   = make(map[string]Factory)
)

// RegisterBackend makes a backend available by name. Registering a nil
// factory removes the name.
func RegisterBackend(name string, factory Factory) {
	registryMu.Lock()
	defer registryMu.Unlock()
	if factory == nil {
		delete(registry, name)
		return
	}
	registry[name] = factory
}

// OpenBackend opens a new instance of the named backend.
func OpenBackend(name string) (Backend, error) {
	registryMu.RLock()
	factory, ok := registry[name]
	registryMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q (available: %v)", ErrUnknownBackend, name, Backends())
	}
	return factory()
}

// Backends returns the registered backend names in sorted order.
func Backends() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
