package gpuscan

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gogpu/gpuscan/backend/host"
	"github.com/gogpu/gpuscan/gpucore"
	"github.com/gogpu/gpuscan/internal/shaders"
)

// Engine runs filter, scan, scatter and compaction pipelines on one
// backend. It owns the built kernel program and, when it opened the backend
// itself, the backend.
//
// Thread safety: Engine is safe for concurrent use. Invocations are
// serialised so only one pipeline uses the device queue at a time.
type Engine struct {
	mu sync.Mutex

	cfg     Config
	backend gpucore.Backend
	owned   bool
	program gpucore.ProgramID
	info    gpucore.BackendInfo
	caps    gpucore.Capabilities
	logger  *slog.Logger
	closed  bool
}

// New creates an engine, opening the configured backend and building the
// kernel program for the partition size.
//
// Example:
//
//	e, err := gpuscan.New(gpuscan.WithPartitionSize(128))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer e.Close()
//	out, err := gpuscan.Compact(e, data, gpuscan.GreaterThan[int32](5))
func New(opts ...Option) (*Engine, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	cfg := o.config
	if err := cfg.Validate(gpucore.Capabilities{}); err != nil {
		return nil, err
	}

	logger := o.logger
	if logger == nil {
		logger = Logger()
	}

	be, owned := o.backend, false
	if be == nil {
		var err error
		if be, err = openBackend(cfg); err != nil {
			return nil, err
		}
		owned = true
	}

	e := &Engine{
		backend: be,
		owned:   owned,
		info:    be.Info(),
		caps:    be.Caps(),
		logger:  logger,
	}
	cfg.Backend = e.info.Name
	e.cfg = cfg

	if err := cfg.Validate(e.caps); err != nil {
		e.closeBackend()
		return nil, err
	}
	if owned || o.logger != nil {
		propagateLogger(be, logger)
	}

	if err := e.build(); err != nil {
		e.closeBackend()
		return nil, err
	}

	logger.Info("gpuscan: engine ready",
		"backend", e.info.String(),
		"partition_size", cfg.PartitionSize)
	return e, nil
}

func openBackend(cfg Config) (gpucore.Backend, error) {
	if cfg.Backend == "" || cfg.Backend == host.Name {
		return host.New(host.WithWorkers(cfg.Workers)), nil
	}
	be, err := gpucore.OpenBackend(cfg.Backend)
	if errors.Is(err, gpucore.ErrUnknownBackend) {
		return nil, &ConfigError{Field: "Backend", Value: cfg.Backend,
			Reason: fmt.Sprintf("not registered (available: %v)", gpucore.Backends())}
	}
	if err != nil {
		return nil, backendErr("open", "", err)
	}
	return be, nil
}

func (e *Engine) build() error {
	src, err := shaders.Program(e.cfg.PartitionSize)
	if err != nil {
		return &ConfigError{Field: "PartitionSize", Value: e.cfg.PartitionSize, Reason: err.Error()}
	}
	start := time.Now()
	prog, err := e.backend.BuildProgram(src)
	if err != nil {
		kernel := ""
		var be *gpucore.BuildError
		if errors.As(err, &be) {
			kernel = be.Kernel.String()
		}
		return backendErr("build", kernel, err)
	}
	e.program = prog
	e.logger.Info("gpuscan: program built",
		"label", src.Label,
		"kernels", len(src.Modules),
		"elapsed", time.Since(start))
	return nil
}

func (e *Engine) closeBackend() {
	if !e.owned {
		return
	}
	if err := e.backend.Close(); err != nil {
		e.logger.Warn("gpuscan: backend close failed", "err", err)
	}
}

// Close releases the kernel program and, if the engine opened it, the
// backend. Close is safe to call multiple times.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return nil
	}
	e.closed = true
	e.backend.ReleaseProgram(e.program)
	if e.owned {
		if err := e.backend.Close(); err != nil {
			return backendErr("close", "", err)
		}
	}
	return nil
}

// Config returns the effective configuration.
func (e *Engine) Config() Config {
	return e.cfg
}

// Info describes the backend the engine runs on.
func (e *Engine) Info() gpucore.BackendInfo {
	return e.info
}

// run executes fn on a fresh plan under the engine lock. Buffers created
// by the plan are freed when fn returns. For n == 0 fn is not called and
// nothing is dispatched.
func (e *Engine) run(n int, stats *Stats, fn func(p *plan) error) error {
	start := time.Now()

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return ErrClosed
	}

	if stats != nil {
		stats.Backend = e.info.Name
		stats.Elements = n
		defer func() { stats.Total = time.Since(start) }()
	}
	if n == 0 {
		return nil
	}
	if err := e.checkLength(n); err != nil {
		return err
	}

	p := e.newPlan(stats)
	defer p.release()
	return fn(p)
}

func (e *Engine) checkLength(n int) error {
	if uint64(n) > uint64(^uint32(0)) {
		return &ConfigError{Field: "length", Value: n, Reason: "exceeds 2^32-1 elements"}
	}
	if e.caps.MaxBufferSize > 0 && uint64(n)*4 > e.caps.MaxBufferSize {
		return &ConfigError{Field: "length", Value: n,
			Reason: fmt.Sprintf("exceeds backend buffer limit of %d bytes", e.caps.MaxBufferSize)}
	}
	return nil
}
