//go:build !nogpu

package wgpu

import (
	"errors"
	"fmt"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/naga"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/gpuscan/gpucore"
)

// storageAccess lists, per kernel, whether each storage binding (from
// binding 1 on) is written by the kernel.
var storageAccess = [gpucore.KernelCount][]bool{
	gpucore.KernelFilter:    {false, true},
	gpucore.KernelBlockScan: {false, true, true},
	gpucore.KernelAddCarry:  {true, false},
	gpucore.KernelScatter:   {false, false, false, true},
}

type pipeline struct {
	groupSize  int
	module     hal.ShaderModule
	bindLayout hal.BindGroupLayout
	pipeLayout hal.PipelineLayout
	pipeline   hal.ComputePipeline
}

type program struct {
	label     string
	pipelines [gpucore.KernelCount]*pipeline
}

func (p *program) destroy(device hal.Device) {
	for _, pl := range p.pipelines {
		if pl != nil {
			pl.destroy(device)
		}
	}
}

func (pl *pipeline) destroy(device hal.Device) {
	if pl.pipeline != nil {
		device.DestroyComputePipeline(pl.pipeline)
	}
	if pl.pipeLayout != nil {
		device.DestroyPipelineLayout(pl.pipeLayout)
	}
	if pl.bindLayout != nil {
		device.DestroyBindGroupLayout(pl.bindLayout)
	}
	if pl.module != nil {
		device.DestroyShaderModule(pl.module)
	}
}

// BuildProgram compiles every module with naga and creates one compute
// pipeline per kernel. A compile failure is returned as a
// *gpucore.BuildError carrying the compiler message.
func (b *Backend) BuildProgram(src *gpucore.ProgramSource) (gpucore.ProgramID, error) {
	if src == nil || len(src.Modules) == 0 {
		return gpucore.InvalidID, fmt.Errorf("%w: no modules", gpucore.ErrInvalidProgram)
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return gpucore.InvalidID, gpucore.ErrClosed
	}

	prog := &program{label: src.Label}
	for i := range src.Modules {
		m := &src.Modules[i]
		if !m.Kernel.Valid() {
			prog.destroy(b.device)
			return gpucore.InvalidID, &gpucore.BuildError{Label: src.Label, Kernel: m.Kernel, Log: "unknown kernel"}
		}
		if prog.pipelines[m.Kernel] != nil {
			prog.destroy(b.device)
			return gpucore.InvalidID, &gpucore.BuildError{Label: src.Label, Kernel: m.Kernel, Log: "kernel defined twice"}
		}
		pl, err := b.buildPipeline(src.Label, m)
		if err != nil {
			prog.destroy(b.device)
			return gpucore.InvalidID, err
		}
		prog.pipelines[m.Kernel] = pl
	}

	id := gpucore.ProgramID(b.allocID())
	b.programs[id] = prog
	slogger().Info("wgpu: program built", "label", src.Label, "modules", len(src.Modules))
	return id, nil
}

func (b *Backend) buildPipeline(label string, m *gpucore.ModuleSource) (*pipeline, error) {
	name := label + "_" + m.Kernel.String()

	spirv, err := compileSPIRV(m.WGSL)
	if err != nil {
		return nil, &gpucore.BuildError{Label: label, Kernel: m.Kernel, Log: err.Error()}
	}

	pl := &pipeline{groupSize: m.WorkgroupSize}
	fail := func(step string, err error) (*pipeline, error) {
		pl.destroy(b.device)
		return nil, &gpucore.BuildError{Label: label, Kernel: m.Kernel, Err: fmt.Errorf("%s: %w", step, err)}
	}

	pl.module, err = b.device.CreateShaderModule(&hal.ShaderModuleDescriptor{
		Label:  name,
		Source: hal.ShaderSource{SPIRV: spirv},
	})
	if err != nil {
		return fail("create shader module", err)
	}

	pl.bindLayout, err = b.device.CreateBindGroupLayout(&hal.BindGroupLayoutDescriptor{
		Label:   name + "_bind_layout",
		Entries: layoutEntries(m.Kernel),
	})
	if err != nil {
		return fail("create bind group layout", err)
	}

	pl.pipeLayout, err = b.device.CreatePipelineLayout(&hal.PipelineLayoutDescriptor{
		Label:            name + "_pipe_layout",
		BindGroupLayouts: []hal.BindGroupLayout{pl.bindLayout},
	})
	if err != nil {
		return fail("create pipeline layout", err)
	}

	entry := m.EntryPoint
	if entry == "" {
		entry = "main"
	}
	pl.pipeline, err = b.device.CreateComputePipeline(&hal.ComputePipelineDescriptor{
		Label:   name,
		Layout:  pl.pipeLayout,
		Compute: hal.ComputeState{Module: pl.module, EntryPoint: entry},
	})
	if err != nil {
		return fail("create compute pipeline", err)
	}
	return pl, nil
}

func layoutEntries(k gpucore.Kernel) []gputypes.BindGroupLayoutEntry {
	entries := []gputypes.BindGroupLayoutEntry{
		{Binding: 0, Visibility: gputypes.ShaderStageCompute, Buffer: &gputypes.BufferBindingLayout{Type: gputypes.BufferBindingTypeUniform}},
	}
	for i, writes := range storageAccess[k] {
		typ := gputypes.BufferBindingTypeReadOnlyStorage
		if writes {
			typ = gputypes.BufferBindingTypeStorage
		}
		entries = append(entries, gputypes.BindGroupLayoutEntry{
			Binding:    uint32(i + 1), //nolint:gosec // at most four bindings
			Visibility: gputypes.ShaderStageCompute,
			Buffer:     &gputypes.BufferBindingLayout{Type: typ},
		})
	}
	return entries
}

// compileSPIRV compiles WGSL to little-endian SPIR-V words.
func compileSPIRV(wgsl string) ([]uint32, error) {
	code, err := naga.Compile(wgsl)
	if err != nil {
		return nil, err
	}
	if len(code)%4 != 0 {
		return nil, errors.New("naga: SPIR-V output is not word aligned")
	}
	return bytesToWords(code), nil
}

// ReleaseProgram destroys the pipelines of a program.
func (b *Backend) ReleaseProgram(id gpucore.ProgramID) {
	b.mu.Lock()
	defer b.mu.Unlock()
	p, ok := b.programs[id]
	if !ok {
		return
	}
	delete(b.programs, id)
	if b.device != nil {
		p.destroy(b.device)
	}
}
