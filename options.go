package gpuscan

import (
	"fmt"
	"log/slog"

	"github.com/gogpu/gpuscan/backend/host"
	"github.com/gogpu/gpuscan/gpucore"
)

// DefaultPartitionSize is the workgroup size used when none is configured.
// 256 is the WebGPU default limit for invocations per workgroup.
const DefaultPartitionSize = 256

// DefaultBackend is the backend opened when none is configured.
const DefaultBackend = host.Name

// Config holds the engine configuration.
type Config struct {
	// PartitionSize is the number of elements scanned by one workgroup.
	// Must be a power of two, at least 2 and at most the backend's
	// MaxWorkgroupInvocations.
	PartitionSize int

	// Backend is the registry name of the backend to open. Ignored when a
	// backend instance is supplied with WithBackend.
	Backend string

	// Workers is the number of goroutines of the host backend.
	// Zero uses GOMAXPROCS.
	Workers int
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{
		PartitionSize: DefaultPartitionSize,
		Backend:       DefaultBackend,
	}
}

// Validate checks the configuration against backend capabilities.
func (c Config) Validate(caps gpucore.Capabilities) error {
	p := c.PartitionSize
	if p < 2 || p&(p-1) != 0 {
		return &ConfigError{Field: "PartitionSize", Value: p, Reason: "must be a power of two >= 2"}
	}
	if caps.MaxWorkgroupInvocations > 0 && p > caps.MaxWorkgroupInvocations {
		return &ConfigError{Field: "PartitionSize", Value: p,
			Reason: fmt.Sprintf("exceeds backend limit of %d invocations per workgroup", caps.MaxWorkgroupInvocations)}
	}
	if c.Workers < 0 {
		return &ConfigError{Field: "Workers", Value: c.Workers, Reason: "must not be negative"}
	}
	return nil
}

// Option configures an Engine during creation.
//
// Example:
//
//	// Host backend, default partition size
//	e, err := gpuscan.New()
//
//	// WebGPU backend with 128-element partitions
//	import _ "github.com/gogpu/gpuscan/backend/wgpu"
//	e, err := gpuscan.New(gpuscan.WithBackendName("wgpu"), gpuscan.WithPartitionSize(128))
type Option func(*engineOptions)

type engineOptions struct {
	config  Config
	backend gpucore.Backend
	logger  *slog.Logger
}

func defaultOptions() engineOptions {
	return engineOptions{config: DefaultConfig()}
}

// WithConfig replaces the whole configuration.
func WithConfig(c Config) Option {
	return func(o *engineOptions) {
		o.config = c
	}
}

// WithPartitionSize sets the workgroup size of all kernels.
func WithPartitionSize(n int) Option {
	return func(o *engineOptions) {
		o.config.PartitionSize = n
	}
}

// WithBackendName selects a registered backend by name. The engine opens
// its own instance and closes it on Close.
func WithBackendName(name string) Option {
	return func(o *engineOptions) {
		o.config.Backend = name
	}
}

// WithBackend injects a backend instance. The engine does not take
// ownership: Close leaves the backend open.
//
// Example:
//
//	be, _ := wgpu.NewFromProvider(provider) // share an application device
//	e, err := gpuscan.New(gpuscan.WithBackend(be))
func WithBackend(b gpucore.Backend) Option {
	return func(o *engineOptions) {
		o.backend = b
	}
}

// WithWorkers sets the goroutine count of the host backend.
func WithWorkers(n int) Option {
	return func(o *engineOptions) {
		o.config.Workers = n
	}
}

// WithLogger sets the engine logger. It is passed on to the backend when
// the backend accepts a logger. Defaults to [Logger] at creation time.
func WithLogger(l *slog.Logger) Option {
	return func(o *engineOptions) {
		o.logger = l
	}
}
